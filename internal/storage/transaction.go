package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// TxFunc is the body of a transaction.
type TxFunc func(ctx context.Context, tx *sql.Tx) error

// TxBeginner is satisfied by *sql.DB.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// WithTransaction runs fn in a fact store transaction.
func (db *DB) WithTransaction(ctx context.Context, fn TxFunc) error {
	return RunInTx(ctx, db.conn, fn)
}

// RunInTx runs fn in a transaction on b, committing when it returns nil.
// An error or panic from fn rolls back; the panic is re-raised afterwards.
func RunInTx(ctx context.Context, b TxBeginner, fn TxFunc) (err error) {
	tx, err := b.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		rbErr := tx.Rollback()
		if p := recover(); p != nil {
			panic(p)
		}
		if rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}
