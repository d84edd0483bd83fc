package llm

import "fmt"

// APICallError represents a failed call to a provider API
type APICallError struct {
	Provider Provider
	Message  string
	Cause    error
}

func (e *APICallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s API call failed: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s API call failed: %s", e.Provider, e.Message)
}

func (e *APICallError) Unwrap() error {
	return e.Cause
}

// EmptyResponseError is returned when a provider answers without any text.
type EmptyResponseError struct {
	Provider     Provider
	FinishReason string
}

func (e *EmptyResponseError) Error() string {
	if e.FinishReason != "" {
		return fmt.Sprintf("%s returned no text (finish reason %s)", e.Provider, e.FinishReason)
	}
	return fmt.Sprintf("%s returned no text", e.Provider)
}
