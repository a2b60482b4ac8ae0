package accounts

import (
	"context"
	"database/sql"
	"fmt"
)

func (r *accountsRepo) UpsertBalance(ctx context.Context, tx *sql.Tx, accountID string, balance int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO account_balances (account_id, balance, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (account_id) DO UPDATE
		SET balance = EXCLUDED.balance,
		    updated_at = EXCLUDED.updated_at
	`, accountID, balance)
	if err != nil {
		return fmt.Errorf("upsert balance: %w", err)
	}

	return nil
}
