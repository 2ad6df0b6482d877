package genflow

import (
	"github.com/flowmarket/genflow/pkg/genflow/llm"
	"github.com/flowmarket/genflow/pkg/genflow/workflow"
)

// Result is the outcome of a generation call.
//
// Valid distinguishes the soft failure mode: a generation that
// exhausted its retries on schema violations returns Valid=false with
// the model's best-effort document and the violated rules, and a nil
// error. Hard failures (provider errors, unknown conversations) are
// returned as errors instead.
type Result struct {
	// ConversationID names the conversation this generation belongs
	// to. Empty on a soft failure when no conversation existed yet.
	ConversationID string `json:"conversationId"`

	// Workflow is the generated document. On a soft failure it holds
	// the final rejected attempt for display; it is not persisted.
	Workflow *workflow.Document `json:"workflow,omitempty"`

	// Valid reports whether the document passed schema validation.
	Valid bool `json:"isValid"`

	// Message is a short human-readable status.
	Message string `json:"message"`

	// ValidationErrors lists the violated schema rules when Valid is false.
	ValidationErrors []string `json:"validationErrors,omitempty"`

	// CreditsUsed is the amount debited (zero unless Valid).
	CreditsUsed int `json:"creditsUsed"`

	// CreditsRemaining is the balance after the debit (zero unless Valid).
	CreditsRemaining int `json:"creditsRemaining"`

	// Attempts is the number of provider attempts made.
	Attempts int `json:"-"`

	// Usage aggregates provider token consumption across all attempts,
	// including rejected ones.
	Usage llm.TokenUsage `json:"-"`
}
