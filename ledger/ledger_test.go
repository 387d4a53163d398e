package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreprint/spoold/errors"
)

func openLedger(t *testing.T, allowOverdraft bool) *SQLiteLedger {
	t.Helper()

	l := NewLedger(Options{
		Path:           filepath.Join(t.TempDir(), "ledger.db"),
		AllowOverdraft: allowOverdraft,
	})
	require.NoError(t, l.Connect(context.Background()))
	t.Cleanup(func() { l.Close() })

	return l
}

func TestDebitAndBalance(t *testing.T) {
	t.Parallel()

	l := openLedger(t, false)
	ctx := context.Background()

	require.NoError(t, l.Credit(ctx, "alice", 10, "provisioning"))

	balance, err := l.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)

	require.NoError(t, l.Debit(ctx, "alice", 2, "job1"))

	balance, err = l.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(8), balance)
}

func TestDebitInsufficientFunds(t *testing.T) {
	t.Parallel()

	l := openLedger(t, false)
	ctx := context.Background()

	require.NoError(t, l.Credit(ctx, "bob", 1, "provisioning"))

	err := l.Debit(ctx, "bob", 5, "job2")
	assert.ErrorIs(t, err, errors.ErrInsufficientFunds)

	// Failed debit leaves the balance untouched
	balance, err := l.Balance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), balance)
}

func TestDebitOverdraftAllowed(t *testing.T) {
	t.Parallel()

	l := openLedger(t, true)
	ctx := context.Background()

	require.NoError(t, l.Debit(ctx, "carol", 3, "job3"))

	balance, err := l.Balance(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, int64(-3), balance)
}

func TestDebitZeroCost(t *testing.T) {
	t.Parallel()

	// A zero-page job bills zero units and must succeed on an empty account.
	l := openLedger(t, false)
	require.NoError(t, l.Debit(context.Background(), "dave", 0, "job4"))
}

func TestDebitNegativeAmount(t *testing.T) {
	t.Parallel()

	l := openLedger(t, false)
	assert.Error(t, l.Debit(context.Background(), "eve", -1, "job5"))
}

func TestBalanceUnknownUser(t *testing.T) {
	t.Parallel()

	l := openLedger(t, false)

	balance, err := l.Balance(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestNotConnected(t *testing.T) {
	t.Parallel()

	l := NewLedger(DefaultOptions())
	assert.ErrorIs(t, l.Health(), errors.ErrNotConnected)
	assert.ErrorIs(t, l.Debit(context.Background(), "alice", 1, "job"), errors.ErrNotConnected)
}
