package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/rewardsledger/internal/repos/accounts"
)

// LockAndGetBalance reads the balance with FOR UPDATE. A missing row
// returns ErrAccountNotFound; nothing is locked in that case.
func (r *accountsRepo) LockAndGetBalance(ctx context.Context, tx *sql.Tx, accountID string) (int64, error) {
	var balance int64

	err := tx.QueryRowContext(ctx, `
		SELECT balance
		FROM account_balances
		WHERE account_id = $1
		FOR UPDATE
	`, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, accounts.ErrAccountNotFound
		}

		return 0, fmt.Errorf("lock/get balance: %w", err)
	}

	return balance, nil
}
