package transactions

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fastprodman/rewardsledger/internal/services/ledger"
)

var ErrDuplicateTransaction = errors.New("duplicate transaction")

// Transactions is the append-only journal of ledger transactions.
type Transactions interface {
	Exists(ctx context.Context, tx *sql.Tx, transactionID string) (bool, error)
	Insert(ctx context.Context, tx *sql.Tx, txn ledger.Transaction) error
	ListAll(ctx context.Context) ([]ledger.Transaction, error)
}
