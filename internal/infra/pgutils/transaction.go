package pgutils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// TxOption tweaks the options a transaction is started with.
type TxOption func(*sql.TxOptions)

func Isolation(level sql.IsolationLevel) TxOption {
	return func(o *sql.TxOptions) { o.Isolation = level }
}

func ReadOnly() TxOption {
	return func(o *sql.TxOptions) { o.ReadOnly = true }
}

// WithTx runs fn in a transaction that is committed when fn returns nil
// and rolled back otherwise. A panic in fn rolls back and re-panics.
func WithTx(
	ctx context.Context,
	db *sql.DB,
	fn func(ctx context.Context, tx *sql.Tx) error,
	opts ...TxOption,
) (retErr error) {
	var txOpts sql.TxOptions
	for _, o := range opts {
		o(&txOpts)
	}

	tx, err := db.BeginTx(ctx, &txOpts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false

	defer func() {
		if committed {
			return
		}

		rbErr := tx.Rollback()
		if rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			retErr = errors.Join(retErr, fmt.Errorf("rollback tx: %w", rbErr))
		}
	}()

	err = fn(ctx, tx)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	committed = true

	return nil
}
