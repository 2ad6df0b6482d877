package credit

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// balanceRecord is the gorm row shape for a user's balance.
type balanceRecord struct {
	UserID  string `gorm:"type:uuid;primaryKey"`
	Balance int    `gorm:"not null;default:0;check:balance >= 0"`
}

// TableName sets the gorm table name.
func (balanceRecord) TableName() string {
	return "credit_balances"
}

// PostgresLedger persists credit balances to PostgreSQL via gorm.
// It is suitable for multi-process production deployments: the
// conditional UPDATE serializes concurrent debits at the database.
type PostgresLedger struct {
	db *gorm.DB
}

// NewPostgresLedger connects to PostgreSQL and migrates the
// balances table.
func NewPostgresLedger(dsn string) (*PostgresLedger, error) {
	db, err := gorm.Open(postgres.Open(dsn))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewPostgresLedgerWithDB(db)
}

// NewPostgresLedgerWithDB wraps an existing gorm connection.
// Useful when the conversation store and credit ledger share one pool.
func NewPostgresLedgerWithDB(db *gorm.DB) (*PostgresLedger, error) {
	if err := db.AutoMigrate(&balanceRecord{}); err != nil {
		return nil, fmt.Errorf("migrate balances: %w", err)
	}
	return &PostgresLedger{db: db}, nil
}

// Balance implements Ledger.
func (l *PostgresLedger) Balance(ctx context.Context, userID string) (int, error) {
	var rec balanceRecord
	err := l.db.WithContext(ctx).First(&rec, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return rec.Balance, nil
}

// Debit implements Ledger.
// The decrement is conditional on the current balance covering the
// amount; RETURNING reads back the remaining balance in the same
// statement.
func (l *PostgresLedger) Debit(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	var rec balanceRecord
	res := l.db.WithContext(ctx).
		Model(&rec).
		Clauses(clause.Returning{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return 0, fmt.Errorf("debit: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		// Distinguish an unknown user from an uncovered balance.
		balance, err := l.Balance(ctx, userID)
		if err != nil {
			return 0, err
		}
		return balance, ErrInsufficientCredits
	}

	return rec.Balance, nil
}

// Add implements Ledger.
func (l *PostgresLedger) Add(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	err := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"balance": gorm.Expr("credit_balances.balance + ?", amount),
			}),
		}).
		Create(&balanceRecord{UserID: userID, Balance: amount}).Error
	if err != nil {
		return 0, fmt.Errorf("add credits: %w", err)
	}

	return l.Balance(ctx, userID)
}

// Close implements Ledger.
func (l *PostgresLedger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
