package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
)

type txOptions struct {
	retries    int
	connection string
	delay      time.Duration
}

type TxOption func(*txOptions)

// TxRetries overrides Config.TransactionRetries for one transaction.
func TxRetries(n int) TxOption {
	return func(o *txOptions) {
		if n >= 0 {
			o.retries = n
		}
	}
}

// TxConnection runs the transaction on the named connection.
func TxConnection(name string) TxOption {
	return func(o *txOptions) { o.connection = name }
}

// Transaction runs fn inside a transaction. fn must use the context it
// is given for every call that should be part of the transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
// Transient failures are retried, fn may therefore run more than once.
func (db *DB) Transaction(ctx context.Context, fn func(ctx context.Context) error, opts ...TxOption) error {
	o := txOptions{
		retries:    db.conf.TransactionRetries,
		connection: db.conf.Connection,
		delay:      50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}

	attempts := 0
	err := retry.Do(
		func() error {
			attempts++
			return db.runTx(ctx, o.connection, fn)
		},
		retry.Attempts(uint(o.retries)+1),
		retry.RetryIf(isTransient),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.Delay(o.delay),
		retry.OnRetry(func(n uint, err error) {
			db.log.Info("retrying transaction", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		db.log.Warn("transaction failed", zap.Int("attempts", attempts), zap.Error(err))
		return &TransactionError{Attempts: attempts, Err: err}
	}
	return nil
}

func (db *DB) runTx(ctx context.Context, connection string, fn func(ctx context.Context) error) error {
	if db.provider == nil {
		return fmt.Errorf("%w: no database provider", ErrInvalidArgument)
	}
	tx, err := db.provider.BeginTx(ctx, connection)
	if err != nil {
		return err
	}

	if err := fn(tx.Context()); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			db.log.Warn("rollback failed", zap.Error(rerr))
		}
		return err
	}
	return tx.Commit()
}

// isTransient reports whether the server labeled err as safe to retry.
func isTransient(err error) bool {
	var le mongo.LabeledError
	if !errors.As(err, &le) {
		return false
	}
	return le.HasErrorLabel("TransientTransactionError") ||
		le.HasErrorLabel("UnknownTransactionCommitResult")
}
