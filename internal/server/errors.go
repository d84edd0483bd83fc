package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/property-analyzer/internal/analysis"
	"github.com/jonathan/property-analyzer/internal/compression"
	"github.com/jonathan/property-analyzer/internal/ingestion"
	"github.com/jonathan/property-analyzer/internal/storage"
)

// Error codes returned in ErrorResponse.ErrorCode.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeBadRequest   = "BAD_REQUEST"
	CodeNotFound     = "NOT_FOUND"
	CodeOverBudget   = "OVER_BUDGET"
	CodeUpstream     = "UPSTREAM_ERROR"
	CodeRateLimit    = "RATE_LIMIT_EXCEEDED"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
	CodeInternal     = "INTERNAL_ERROR"
	CodeHTTP         = "HTTP_ERROR"
	CodePayloadLarge = "PAYLOAD_TOO_LARGE"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrNotFound indicates a missing resource
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrUnavailable indicates an optional backend is not configured
type ErrUnavailable struct {
	Service string
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("%s is not configured", e.Service)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	status, _ := classify(err)
	return status
}

// ErrorCode returns the API error code for an error
func ErrorCode(err error) string {
	_, code := classify(err)
	return code
}

func classify(err error) (int, string) {
	var (
		validationErr *ErrValidation
		validatorErrs validator.ValidationErrors
		notFound      *ErrNotFound
		unavailable   *ErrUnavailable
		overBudget    *compression.OverBudgetError
		emptyInput    *compression.EmptyInputError
		policyErr     *compression.PolicyError
		fieldKindErr  *compression.FieldKindError
		tooLarge      *http.MaxBytesError
	)

	switch {
	case errors.As(err, &validationErr), errors.As(err, &validatorErrs):
		return http.StatusUnprocessableEntity, CodeValidation
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, CodePayloadLarge
	case errors.As(err, &overBudget):
		return http.StatusUnprocessableEntity, CodeOverBudget
	case errors.As(err, &emptyInput), errors.As(err, &policyErr), errors.As(err, &fieldKindErr),
		errors.Is(err, analysis.ErrEmptyQuery),
		errors.Is(err, storage.ErrInvalidSessionID),
		errors.Is(err, ingestion.ErrInvalidURL):
		return http.StatusBadRequest, CodeBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound, CodeNotFound
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable, CodeUnavailable
	case errors.Is(err, ingestion.ErrHTTPRequestFailed),
		errors.Is(err, ingestion.ErrContentExtractionFailed):
		return http.StatusBadGateway, CodeUpstream
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}
