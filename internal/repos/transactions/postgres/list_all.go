package transactions

import (
	"context"
	"fmt"

	"github.com/fastprodman/rewardsledger/internal/services/ledger"
)

// ListAll returns the whole journal in ledger order.
func (r *transactionsRepo) ListAll(ctx context.Context) ([]ledger.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT transaction_id, seq, account_id, kind, amount, reason, balance_after, created_at
		FROM ledger_transactions
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	//nolint:errcheck
	defer rows.Close()

	var out []ledger.Transaction

	for rows.Next() {
		var (
			txn  ledger.Transaction
			seq  int64
			kind string
		)

		err = rows.Scan(&txn.ID, &seq, &txn.AccountID, &kind, &txn.Amount, &txn.Reason, &txn.Balance, &txn.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}

		txn.Seq = uint64(seq)
		txn.Kind = ledger.Kind(kind)
		txn.CreatedAt = txn.CreatedAt.UTC()

		out = append(out, txn)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return out, nil
}
