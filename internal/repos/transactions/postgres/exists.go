package transactions

import (
	"context"
	"database/sql"
	"fmt"
)

func (r *transactionsRepo) Exists(ctx context.Context, tx *sql.Tx, transactionID string) (bool, error) {
	var exists bool

	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM ledger_transactions WHERE transaction_id = $1)
	`, transactionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check exists: %w", err)
	}

	return exists, nil
}
