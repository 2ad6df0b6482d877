// Package errors provides error categorization for the generation pipeline.
//
// The package classifies failures so the orchestrator can decide between
// retrying, surfacing a soft validation result, or failing the call:
//   - Transient: retry with the same prompt history will likely help
//   - InvalidOutput: well-formed response failing schema rules, retry with
//     corrective feedback
//   - NotFound: the referenced conversation doesn't exist for this user
//   - InsufficientCredits: the balance cannot cover the generation cost
//   - Permanent: retry won't help (auth failures, bad configuration)
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: rate limits, timeouts, empty or unparseable model output.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: authentication failures, invalid configuration.
	CategoryPermanent

	// CategoryInvalidOutput indicates the model produced well-formed JSON
	// that failed schema validation. Retried with corrective feedback.
	CategoryInvalidOutput

	// CategoryNotFound indicates a referenced record doesn't exist.
	CategoryNotFound

	// CategoryInsufficientCredits indicates the user's balance cannot
	// cover the requested debit.
	CategoryInsufficientCredits
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	case CategoryInvalidOutput:
		return "invalid_output"
	case CategoryNotFound:
		return "not_found"
	case CategoryInsufficientCredits:
		return "insufficient_credits"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Attempts is the number of attempts that have been made.
	Attempts int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Attempts)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Attempts)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, context string) *CategorizedError {
	return &CategorizedError{
		Err:      err,
		Category: category,
		Context:  context,
	}
}

// Transient creates a transient error.
func Transient(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryTransient, context)
}

// Permanent creates a permanent error.
func Permanent(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryPermanent, context)
}

// Categorize determines how an error should be handled.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent // shouldn't happen, fail safe
	}

	// Check for already-categorized errors
	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	// Check for provider errors
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		switch provErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return CategoryTransient
		case 401, 403:
			return CategoryPermanent
		default:
			return CategoryPermanent
		}
	}

	// Empty or unparseable model output is retryable with the same history
	var emptyErr *EmptyResponseError
	if errors.As(err, &emptyErr) {
		return CategoryTransient
	}
	var jsonErr *JSONParseError
	if errors.As(err, &jsonErr) {
		return CategoryTransient
	}

	// Schema violations are retried with corrective feedback
	var schemaErr *SchemaValidationError
	if errors.As(err, &schemaErr) {
		return CategoryInvalidOutput
	}

	// Provider call timeouts count against the retry budget
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}

	// Unknown errors are permanent (fail safe)
	return CategoryPermanent
}

// IsRetryable reports whether the error should be retried with the
// unchanged message history.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}

// IsInvalidOutput reports whether the error is a schema validation
// failure that should be retried with corrective feedback.
func IsInvalidOutput(err error) bool {
	return Categorize(err) == CategoryInvalidOutput
}
