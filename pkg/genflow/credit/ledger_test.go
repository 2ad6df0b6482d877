package credit_test

import (
	"context"
	"sync"
	"testing"

	"github.com/flowmarket/genflow/pkg/genflow/credit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ledgerImpls runs a subtest against every Ledger implementation.
func ledgerImpls(t *testing.T, fn func(t *testing.T, ledger credit.Ledger)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		ledger := credit.NewMemoryLedger()
		defer ledger.Close()
		fn(t, ledger)
	})

	t.Run("sqlite", func(t *testing.T) {
		ledger, err := credit.NewSQLiteLedger(":memory:")
		require.NoError(t, err)
		defer ledger.Close()
		fn(t, ledger)
	})
}

func TestLedger_AddCreatesAccount(t *testing.T) {
	ledgerImpls(t, func(t *testing.T, ledger credit.Ledger) {
		ctx := context.Background()

		balance, err := ledger.Add(ctx, "user-1", 100)
		require.NoError(t, err)
		assert.Equal(t, 100, balance)

		balance, err = ledger.Add(ctx, "user-1", 25)
		require.NoError(t, err)
		assert.Equal(t, 125, balance)
	})
}

func TestLedger_BalanceUnknownUser(t *testing.T) {
	ledgerImpls(t, func(t *testing.T, ledger credit.Ledger) {
		_, err := ledger.Balance(context.Background(), "nobody")
		assert.ErrorIs(t, err, credit.ErrUserNotFound)
	})
}

func TestLedger_Debit(t *testing.T) {
	ledgerImpls(t, func(t *testing.T, ledger credit.Ledger) {
		ctx := context.Background()
		_, err := ledger.Add(ctx, "user-1", 12)
		require.NoError(t, err)

		remaining, err := ledger.Debit(ctx, "user-1", 5)
		require.NoError(t, err)
		assert.Equal(t, 7, remaining)

		remaining, err = ledger.Debit(ctx, "user-1", 5)
		require.NoError(t, err)
		assert.Equal(t, 2, remaining)
	})
}

func TestLedger_DebitToZero(t *testing.T) {
	ledgerImpls(t, func(t *testing.T, ledger credit.Ledger) {
		ctx := context.Background()
		_, err := ledger.Add(ctx, "user-1", 5)
		require.NoError(t, err)

		// A balance exactly covering the amount is sufficient.
		remaining, err := ledger.Debit(ctx, "user-1", 5)
		require.NoError(t, err)
		assert.Equal(t, 0, remaining)
	})
}

func TestLedger_DebitInsufficient(t *testing.T) {
	ledgerImpls(t, func(t *testing.T, ledger credit.Ledger) {
		ctx := context.Background()
		_, err := ledger.Add(ctx, "user-1", 3)
		require.NoError(t, err)

		_, err = ledger.Debit(ctx, "user-1", 5)
		assert.ErrorIs(t, err, credit.ErrInsufficientCredits)

		// Balance untouched by the failed debit.
		balance, err := ledger.Balance(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 3, balance)
	})
}

func TestLedger_DebitUnknownUser(t *testing.T) {
	ledgerImpls(t, func(t *testing.T, ledger credit.Ledger) {
		_, err := ledger.Debit(context.Background(), "nobody", 5)
		assert.ErrorIs(t, err, credit.ErrUserNotFound)
	})
}

func TestLedger_InvalidAmounts(t *testing.T) {
	ledgerImpls(t, func(t *testing.T, ledger credit.Ledger) {
		ctx := context.Background()
		_, err := ledger.Debit(ctx, "user-1", 0)
		assert.ErrorIs(t, err, credit.ErrInvalidAmount)
		_, err = ledger.Debit(ctx, "user-1", -5)
		assert.ErrorIs(t, err, credit.ErrInvalidAmount)
		_, err = ledger.Add(ctx, "user-1", 0)
		assert.ErrorIs(t, err, credit.ErrInvalidAmount)
	})
}

func TestLedger_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	ledgerImpls(t, func(t *testing.T, ledger credit.Ledger) {
		ctx := context.Background()
		_, err := ledger.Add(ctx, "user-1", 50)
		require.NoError(t, err)

		// 20 concurrent debits of 5 against a balance of 50: exactly
		// 10 must succeed, the rest must see ErrInsufficientCredits.
		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded := 0

		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := ledger.Debit(ctx, "user-1", 5); err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 10, succeeded)
		balance, err := ledger.Balance(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 0, balance)
	})
}

func TestLedger_ClosedOperationsFail(t *testing.T) {
	ledgerImpls(t, func(t *testing.T, ledger credit.Ledger) {
		require.NoError(t, ledger.Close())

		_, err := ledger.Balance(context.Background(), "user-1")
		assert.ErrorIs(t, err, credit.ErrLedgerClosed)
		_, err = ledger.Debit(context.Background(), "user-1", 5)
		assert.ErrorIs(t, err, credit.ErrLedgerClosed)
		_, err = ledger.Add(context.Background(), "user-1", 5)
		assert.ErrorIs(t, err, credit.ErrLedgerClosed)
	})
}
