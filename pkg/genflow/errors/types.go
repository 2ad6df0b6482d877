package errors

import (
	"fmt"
	"strings"
)

// ProviderError represents a failed call to the model provider.
type ProviderError struct {
	StatusCode int
	Message    string
	Deployment string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Deployment != "" {
		return fmt.Sprintf("provider error %d on deployment %s: %s", e.StatusCode, e.Deployment, e.Message)
	}
	return fmt.Sprintf("provider error %d: %s", e.StatusCode, e.Message)
}

// EmptyResponseError indicates the provider returned no usable text.
type EmptyResponseError struct {
	Deployment string
}

// Error implements the error interface.
func (e *EmptyResponseError) Error() string {
	return "no response from AI"
}

// JSONParseError indicates failure to extract or parse JSON from
// model output.
type JSONParseError struct {
	Input   string
	Message string
}

// Error implements the error interface.
func (e *JSONParseError) Error() string {
	return fmt.Sprintf("JSON parse error: %s", e.Message)
}

// SchemaValidationError indicates the model produced a well-formed
// document that violates the workflow schema rules.
type SchemaValidationError struct {
	Errors []string
}

// Error implements the error interface.
func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("workflow validation failed: %s", strings.Join(e.Errors, ", "))
}
