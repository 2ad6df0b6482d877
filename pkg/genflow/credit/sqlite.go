package credit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteLedger persists credit balances to SQLite.
// It is suitable for single-process production use.
type SQLiteLedger struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteLedger creates a new SQLite credit ledger.
// The path should be a file path (e.g., "./genflow.db") or ":memory:" for testing.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A second pooled connection to ":memory:" would open a separate
	// database; writes are mutex-serialized anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS credit_balances (
			user_id TEXT PRIMARY KEY,
			balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteLedger{db: db}, nil
}

// Balance implements Ledger.
func (l *SQLiteLedger) Balance(ctx context.Context, userID string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return 0, ErrLedgerClosed
	}

	var balance int
	err := l.db.QueryRowContext(ctx, `
		SELECT balance FROM credit_balances WHERE user_id = ?
	`, userID).Scan(&balance)

	if err == sql.ErrNoRows {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return balance, nil
}

// Debit implements Ledger.
// The decrement is conditional on the current balance covering the
// amount, so the check-then-debit is a single atomic statement.
func (l *SQLiteLedger) Debit(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, ErrLedgerClosed
	}

	res, err := l.db.ExecContext(ctx, `
		UPDATE credit_balances
		SET balance = balance - ?
		WHERE user_id = ? AND balance >= ?
	`, amount, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("debit: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("debit: %w", err)
	}

	if affected == 0 {
		// Distinguish an unknown user from an uncovered balance.
		var balance int
		err := l.db.QueryRowContext(ctx, `
			SELECT balance FROM credit_balances WHERE user_id = ?
		`, userID).Scan(&balance)
		if err == sql.ErrNoRows {
			return 0, ErrUserNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("debit: %w", err)
		}
		return balance, ErrInsufficientCredits
	}

	var remaining int
	err = l.db.QueryRowContext(ctx, `
		SELECT balance FROM credit_balances WHERE user_id = ?
	`, userID).Scan(&remaining)
	if err != nil {
		return 0, fmt.Errorf("read balance after debit: %w", err)
	}
	return remaining, nil
}

// Add implements Ledger.
func (l *SQLiteLedger) Add(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, ErrLedgerClosed
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO credit_balances (user_id, balance)
		VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET balance = balance + excluded.balance
	`, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("add credits: %w", err)
	}

	var balance int
	err = l.db.QueryRowContext(ctx, `
		SELECT balance FROM credit_balances WHERE user_id = ?
	`, userID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("read balance after add: %w", err)
	}
	return balance, nil
}

// Close implements Ledger.
func (l *SQLiteLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	return l.db.Close()
}
