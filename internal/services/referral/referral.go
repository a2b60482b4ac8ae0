package referral

import (
	"errors"
	"time"

	"github.com/fastprodman/rewardsledger/internal/services/ledger"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusPaid      Status = "paid"
)

const PayoutReason = "referral payout"

type Referral struct {
	ID                  string    `json:"id"`
	ReferrerID          string    `json:"referrerId"`
	ReferredID          string    `json:"referredId"`
	Commission          int64     `json:"commission"`
	Status              Status    `json:"status"`
	CreatedAt           time.Time `json:"createdAt"`
	CompletedAt         time.Time `json:"completedAt,omitzero"`
	PaidAt              time.Time `json:"paidAt,omitzero"`
	PayoutTransactionID string    `json:"payoutTransactionId,omitempty"`

	seq uint64
}

// ReferrerRank is one row of the top referrers board.
type ReferrerRank struct {
	ReferrerID string `json:"referrerId"`
	Count      int    `json:"count"`
}

// Crediter is the ledger capability a payout needs.
type Crediter interface {
	Credit(accountID string, amount int64, reason string, kind ledger.Kind) (ledger.Transaction, error)
}

var (
	ErrDuplicateReferral = errors.New("referred account already attributed")
	ErrInvalidTransition = errors.New("invalid referral transition")
	ErrReferralNotFound  = errors.New("referral not found")
	ErrSelfReferral      = errors.New("account cannot refer itself")
	ErrInvalidRequest    = errors.New("invalid referral request")
)
