package ledger

import (
	"errors"
	"time"
)

type Kind string

const (
	KindEarned         Kind = "earned"
	KindSpent          Kind = "spent"
	KindAdminAdded     Kind = "admin-added"
	KindAdminDeducted  Kind = "admin-deducted"
	KindReferralPayout Kind = "referral-payout"
)

// IsCredit reports whether k increases a balance.
func (k Kind) IsCredit() bool {
	switch k {
	case KindEarned, KindAdminAdded, KindReferralPayout:
		return true
	default:
		return false
	}
}

// IsDebit reports whether k decreases a balance.
func (k Kind) IsDebit() bool {
	switch k {
	case KindSpent, KindAdminDeducted:
		return true
	default:
		return false
	}
}

func (k Kind) Valid() bool {
	return k.IsCredit() || k.IsDebit()
}

// Transaction is an immutable ledger entry. Amount is signed: debits are
// negative. Balance is the account balance right after the entry applied.
type Transaction struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	AccountID string    `json:"accountId"`
	Kind      Kind      `json:"kind"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
	Balance   int64     `json:"balance"`
}

type Account struct {
	ID      string `json:"id"`
	Balance int64  `json:"balance"`
}

// TransactionRecorded is emitted once for every transaction appended to the log.
type TransactionRecorded struct {
	Transaction Transaction
}

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidKind         = errors.New("invalid transaction kind")
	ErrInvalidRequest      = errors.New("invalid ledger request")
	ErrReplayMismatch      = errors.New("replayed transaction does not match ledger state")
)
