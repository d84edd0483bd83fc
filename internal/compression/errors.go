package compression

import (
	"fmt"

	"github.com/jonathan/property-analyzer/internal/types"
)

// OverBudgetError is returned when the structured fields alone exceed the budget.
type OverBudgetError struct {
	Required int
	Budget   int
	Unit     types.SizeUnit
}

func (e *OverBudgetError) Error() string {
	return fmt.Sprintf("structured fields need %d %s but budget is %d", e.Required, e.Unit, e.Budget)
}

// EmptyInputError is returned when a listing document has no content.
type EmptyInputError struct {
	SourceURL string
}

func (e *EmptyInputError) Error() string {
	if e.SourceURL != "" {
		return fmt.Sprintf("listing document from %s is empty", e.SourceURL)
	}
	return "listing document is empty"
}

// PolicyError reports an invalid compression policy.
type PolicyError struct {
	Field   string
	Message string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("invalid compression policy: %s: %s", e.Field, e.Message)
}

// FieldKindError is returned when a listing field has a kind Compress cannot
// place in a priority category.
type FieldKindError struct {
	Kind  types.FieldKind
	Value string
}

func (e *FieldKindError) Error() string {
	return fmt.Sprintf("unknown field kind %q for value %q", e.Kind, e.Value)
}
