package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const (
	txKey       contextKey = "db_tx"
	elevatedKey contextKey = "db_elevated"
)

// WithTx runs fn inside a transaction. The transaction is placed on the
// context so repositories resolve it instead of the pool; a precondition
// check and the write it guards therefore see the same snapshot. The
// transaction commits when fn returns nil and rolls back otherwise.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// TxFromContext retrieves the active transaction from context, or nil.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey).(pgx.Tx)
	return tx
}

// WithElevated marks the context as running under the service credential.
// Only the link-mutation path creates such contexts; handlers never see one.
func WithElevated(ctx context.Context) context.Context {
	return context.WithValue(ctx, elevatedKey, true)
}

// IsElevated reports whether the context carries the service credential.
func IsElevated(ctx context.Context) bool {
	v, _ := ctx.Value(elevatedKey).(bool)
	return v
}
