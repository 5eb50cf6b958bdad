// Package dbx holds the small database plumbing the repositories share: a
// DBTX interface satisfied by both *sql.DB and *sql.Tx, and a transaction
// wrapper used wherever two dependent writes must land together (consuming
// an admission proof while provisioning its user, replacing the catalog
// snapshot).
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql the repositories call. Passing a
// *sql.Tx routes every repository call through the surrounding transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction: commit when fn returns nil, rollback
// when it errors or panics. Panics are rethrown after the rollback.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}
