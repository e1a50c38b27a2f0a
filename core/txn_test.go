package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionCommits(t *testing.T) {
	p := newFakeProvider()
	db := newTestDB(t, p, nil)

	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "outer")

	err := db.Transaction(ctx, func(ctx context.Context) error {
		assert.Equal(t, "outer", ctx.Value(ctxKey{}))
		return nil
	})
	require.NoError(t, err)
	require.Len(t, p.txs, 1)
	assert.Equal(t, 1, p.txs[0].commits)
	assert.Zero(t, p.txs[0].rollbacks)
}

func TestTransactionRollsBack(t *testing.T) {
	p := newFakeProvider()
	db := newTestDB(t, p, &Config{TransactionRetries: 3})

	boom := errors.New("boom")
	calls := 0
	err := db.Transaction(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})

	var te *TransactionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 1, te.Attempts, "plain errors are not retried")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, p.txs[0].rollbacks)
	assert.Zero(t, p.txs[0].commits)
}

func TestTransactionRetriesTransient(t *testing.T) {
	p := newFakeProvider()
	db := newTestDB(t, p, nil)

	calls := 0
	err := db.Transaction(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return labeledErr{label: "TransientTransactionError"}
		}
		return nil
	}, TxRetries(2))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	require.Len(t, p.txs, 3)
	assert.Equal(t, 1, p.txs[2].commits)
}

func TestTransactionGivesUp(t *testing.T) {
	p := newFakeProvider()
	p.txErr = labeledErr{label: "UnknownTransactionCommitResult"}
	db := newTestDB(t, p, nil)

	err := db.Transaction(context.Background(), func(ctx context.Context) error {
		return nil
	}, TxRetries(1), TxConnection("reports"))

	var te *TransactionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 2, te.Attempts)
	assert.Len(t, p.txs, 2)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(labeledErr{label: "TransientTransactionError"}))
	assert.True(t, isTransient(labeledErr{label: "UnknownTransactionCommitResult"}))
	assert.False(t, isTransient(labeledErr{label: "NoWritesPerformed"}))
	assert.False(t, isTransient(errors.New("plain")))
}
