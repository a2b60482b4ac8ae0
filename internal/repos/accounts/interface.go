package accounts

import (
	"context"
	"database/sql"
	"errors"
)

var ErrAccountNotFound = errors.New("account not found")

// Accounts is the journaled balance projection, one row per ledger account.
type Accounts interface {
	GetBalance(ctx context.Context, accountID string) (int64, error)
	LockAndGetBalance(ctx context.Context, tx *sql.Tx, accountID string) (int64, error)
	UpsertBalance(ctx context.Context, tx *sql.Tx, accountID string, balance int64) error
}
