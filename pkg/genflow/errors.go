package genflow

import "errors"

// Sentinel errors for generation inputs.
var (
	// ErrEmptyPrompt indicates the prompt was empty after trimming.
	ErrEmptyPrompt = errors.New("message is required")

	// ErrConversationNotFound indicates the conversation doesn't exist
	// or belongs to a different user.
	ErrConversationNotFound = errors.New("conversation not found")
)

// Sentinel errors for regeneration.
var (
	// ErrEmptyConversation indicates the conversation has no messages.
	ErrEmptyConversation = errors.New("no messages in conversation")

	// ErrNoUserMessage indicates the conversation holds no user-role
	// message to regenerate from.
	ErrNoUserMessage = errors.New("no user message found")
)

// Sentinel errors for generation outcomes.
var (
	// ErrGenerationFailed indicates the provider failed through all
	// retries, or failed permanently (authentication, configuration).
	ErrGenerationFailed = errors.New("failed to generate valid workflow after retries")
)
