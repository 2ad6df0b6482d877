package conversation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory conversation store for testing.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]*Conversation // conversation ID -> conversation
	closed bool
}

// NewMemoryStore creates a new in-memory conversation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*Conversation),
	}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, id, userID string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	c, ok := m.data[id]
	if !ok || c.UserID != userID {
		return nil, ErrNotFound
	}
	return copyConversation(c), nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, c *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
		c.CreatedAt = now
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	m.data[c.ID] = copyConversation(c)
	return nil
}

// ListByUser implements Store.
func (m *MemoryStore) ListByUser(_ context.Context, userID string) ([]*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	result := make([]*Conversation, 0)
	for _, c := range m.data {
		if c.UserID == userID {
			result = append(result, copyConversation(c))
		}
	}

	// Newest first
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	c, ok := m.data[id]
	if !ok || c.UserID != userID {
		return ErrNotFound
	}
	delete(m.data, id)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Len returns the number of stored conversations.
// Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// copyConversation clones a conversation so callers can't mutate
// stored state.
func copyConversation(c *Conversation) *Conversation {
	clone := *c
	clone.Messages = make([]Message, len(c.Messages))
	copy(clone.Messages, c.Messages)
	return &clone
}
