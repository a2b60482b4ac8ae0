package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/rewardsledger/internal/infra/pgutils"
	"github.com/fastprodman/rewardsledger/internal/repos/accounts"
	pgaccounts "github.com/fastprodman/rewardsledger/internal/repos/accounts/postgres"
	"github.com/fastprodman/rewardsledger/internal/repos/transactions"
	pgtransactions "github.com/fastprodman/rewardsledger/internal/repos/transactions/postgres"
	"github.com/fastprodman/rewardsledger/internal/services/ledger"
)

var ErrBalanceMismatch = errors.New("journaled balance does not match transaction")

// Journal persists ledger transactions outside the process.
type Journal interface {
	Append(ctx context.Context, txn ledger.Transaction) error
	Load(ctx context.Context) ([]ledger.Transaction, error)
	JournaledBalance(ctx context.Context, accountID string) (int64, error)
}

type PostgresJournal struct {
	db       *sql.DB
	accounts accounts.Accounts
	txns     transactions.Transactions
}

func NewPostgresJournal(db *sql.DB) *PostgresJournal {
	return &PostgresJournal{
		db:       db,
		accounts: pgaccounts.New(db),
		txns:     pgtransactions.New(db),
	}
}

// Append runs the full flow in a single DB transaction:
//
// 1) Skip transactions already journaled.
// 2) Lock the account's journaled balance (missing row -> 0).
// 3) Check that it plus the amount gives the transaction's snapshot.
// 4) Upsert the new balance.
// 5) Insert the transaction (unique-violation -> ErrDuplicateTransaction).
func (j *PostgresJournal) Append(ctx context.Context, txn ledger.Transaction) error {
	err := pgutils.WithTx(ctx, j.db, func(ctx context.Context, tx *sql.Tx) error {
		// 1) Ensure it is new
		exists, err := j.txns.Exists(ctx, tx, txn.ID)
		if err != nil {
			return fmt.Errorf("check transaction exists: %w", err)
		}

		if exists {
			return transactions.ErrDuplicateTransaction
		}

		// 2) Lock account row
		balance, err := j.accounts.LockAndGetBalance(ctx, tx, txn.AccountID)
		if err != nil && !errors.Is(err, accounts.ErrAccountNotFound) {
			return fmt.Errorf("lock and get balance: %w", err)
		}

		// 3) Check continuity
		if balance+txn.Amount != txn.Balance {
			return fmt.Errorf("account %s journaled %d + %d != %d: %w",
				txn.AccountID, balance, txn.Amount, txn.Balance, ErrBalanceMismatch)
		}

		// 4) Move the projection
		err = j.accounts.UpsertBalance(ctx, tx, txn.AccountID, txn.Balance)
		if err != nil {
			return fmt.Errorf("upsert balance: %w", err)
		}

		// 5) Insert transaction record
		err = j.txns.Insert(ctx, tx, txn)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		return nil
	}, pgutils.Isolation(sql.LevelReadCommitted))
	if err != nil {
		return fmt.Errorf("journal transaction %s: %w", txn.ID, err)
	}

	return nil
}

func (j *PostgresJournal) Load(ctx context.Context) ([]ledger.Transaction, error) {
	txns, err := j.txns.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load journal: %w", err)
	}

	return txns, nil
}

// JournaledBalance reads the persisted projection for one account.
func (j *PostgresJournal) JournaledBalance(ctx context.Context, accountID string) (int64, error) {
	balance, err := j.accounts.GetBalance(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("journaled balance: %w", err)
	}

	return balance, nil
}
