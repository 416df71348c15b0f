package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// withTx runs fn in the provided tx, or starts and commits a new transaction when tx is nil.
// Passing a tx lets callers batch several mutations into one commit.
func withTx(ctx context.Context, db *sqlx.DB, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}

	t, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}

	return t.Commit()
}

// querier picks the tx when present so reads see the caller's uncommitted writes.
func querier(db *sqlx.DB, tx *sqlx.Tx) sqlx.ExtContext {
	if tx != nil {
		return tx
	}
	return db
}
