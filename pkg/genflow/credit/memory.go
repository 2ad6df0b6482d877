package credit

import (
	"context"
	"sync"
)

// MemoryLedger is an in-memory credit ledger for testing.
// Data is lost when the process exits.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]int
	closed   bool
}

// NewMemoryLedger creates a new in-memory credit ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[string]int),
	}
}

// Balance implements Ledger.
func (m *MemoryLedger) Balance(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrLedgerClosed
	}

	balance, ok := m.balances[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	return balance, nil
}

// Debit implements Ledger. The check and decrement happen under one
// lock, mirroring the conditional UPDATE of the durable ledgers.
func (m *MemoryLedger) Debit(_ context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrLedgerClosed
	}

	balance, ok := m.balances[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	if balance < amount {
		return balance, ErrInsufficientCredits
	}

	m.balances[userID] = balance - amount
	return balance - amount, nil
}

// Add implements Ledger.
func (m *MemoryLedger) Add(_ context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrLedgerClosed
	}

	m.balances[userID] += amount
	return m.balances[userID], nil
}

// Close implements Ledger.
func (m *MemoryLedger) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.balances = nil
	return nil
}
