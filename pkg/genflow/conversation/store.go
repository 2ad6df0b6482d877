// Package conversation provides durable storage for generation
// conversations: the ordered user/assistant message log and the last
// validated workflow document, scoped to one owning user.
package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/flowmarket/genflow/pkg/genflow/workflow"
)

// Message is one turn in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Conversation is the ordered exchange of messages plus the latest
// generated workflow document, scoped to one owning user.
//
// The message sequence is append-only during a generation session and
// its order is semantically meaningful: it is the literal prompt history
// replayed to the model.
type Conversation struct {
	ID        string             `json:"id"`
	UserID    string             `json:"userId"`
	Messages  []Message          `json:"messages"`
	Workflow  *workflow.Document `json:"workflow,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// LastUserMessage returns the most recent user-role message, scanning
// backward through the sequence. The second return is false if the
// conversation holds no user message.
func (c *Conversation) LastUserMessage() (Message, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleUser {
			return c.Messages[i], true
		}
	}
	return Message{}, false
}

// Store persists conversations.
// Implementations must be safe for concurrent use.
//
// The store is a persistence boundary only: no retry or validation
// logic lives here. Concurrent saves to the same conversation are not
// coordinated; the last write wins.
type Store interface {
	// Load retrieves a conversation by id, scoped to its owner.
	// Returns ErrNotFound if the conversation doesn't exist or is
	// owned by a different user.
	Load(ctx context.Context, id, userID string) (*Conversation, error)

	// Save creates or replaces a conversation. A conversation with an
	// empty ID is assigned one; timestamps are stamped on write.
	Save(ctx context.Context, c *Conversation) error

	// ListByUser returns the user's conversations, newest first.
	// Returns an empty slice (not an error) if the user has none.
	ListByUser(ctx context.Context, userID string) ([]*Conversation, error)

	// Delete removes a conversation and its whole message sequence.
	// Returns ErrNotFound if the conversation doesn't exist or is
	// owned by a different user.
	Delete(ctx context.Context, id, userID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates a conversation doesn't exist for the user.
	ErrNotFound = errors.New("conversation not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("conversation store closed")
)
