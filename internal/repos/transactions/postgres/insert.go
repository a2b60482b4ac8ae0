package transactions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fastprodman/rewardsledger/internal/repos/transactions"
	"github.com/fastprodman/rewardsledger/internal/services/ledger"
)

func (r *transactionsRepo) Insert(ctx context.Context, tx *sql.Tx, txn ledger.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_transactions
			(transaction_id, seq, account_id, kind, amount, reason, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, txn.ID, int64(txn.Seq), txn.AccountID, string(txn.Kind), txn.Amount, txn.Reason, txn.Balance, txn.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return transactions.ErrDuplicateTransaction
			}
		}

		return fmt.Errorf("insert transaction: %w", err)
	}

	return nil
}
