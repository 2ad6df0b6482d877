// Package credit tracks per-user credit balances.
//
// The balance is the only shared mutable resource the generation
// pipeline touches, and it may be hit by concurrent requests across
// multiple process instances. Debit is therefore an atomic conditional
// decrement at the storage layer (compare-and-decrement), not an
// in-process lock: the balance can never go negative even when the
// boundary pre-check races with the debit.
package credit

import (
	"context"
	"errors"
)

// Ledger manages user credit balances.
// Implementations must be safe for concurrent use.
type Ledger interface {
	// Balance returns the user's current balance.
	// Returns ErrUserNotFound for unknown users.
	Balance(ctx context.Context, userID string) (int, error)

	// Debit atomically subtracts amount from the user's balance and
	// returns the remaining balance. Fails with ErrInsufficientCredits
	// if the balance is below amount at debit time, and with
	// ErrUserNotFound for unknown users. The balance is never driven
	// negative.
	Debit(ctx context.Context, userID string, amount int) (int, error)

	// Add credits the user's balance and returns the new balance,
	// creating the account if it doesn't exist. Shared with the
	// credit purchase flow.
	Add(ctx context.Context, userID string, amount int) (int, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for ledger operations.
var (
	// ErrInsufficientCredits indicates the balance cannot cover a debit.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrUserNotFound indicates no balance exists for the user.
	ErrUserNotFound = errors.New("user not found")

	// ErrLedgerClosed indicates the ledger has been closed.
	ErrLedgerClosed = errors.New("credit ledger closed")

	// ErrInvalidAmount indicates a non-positive debit or credit amount.
	ErrInvalidAmount = errors.New("amount must be positive")
)
