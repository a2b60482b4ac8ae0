package referral

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/fastprodman/rewardsledger/internal/infra/clock"
	"github.com/fastprodman/rewardsledger/internal/services/ledger"
)

// Engine tracks referral attributions and pays commissions through the
// ledger. Referrals only move forward: pending, completed, paid.
type Engine struct {
	mu         sync.RWMutex
	ledger     Crediter
	clock      clock.Clock
	commission int64
	referrals  map[string]*Referral
	byReferred map[string]string
	seq        uint64
	newID      func() string
}

// New returns an engine that pays commission coins per referral.
func New(l Crediter, commission int64, c clock.Clock) *Engine {
	return &Engine{
		ledger:     l,
		clock:      clock.OrReal(c),
		commission: commission,
		referrals:  make(map[string]*Referral),
		byReferred: make(map[string]string),
		newID:      uuid.NewString,
	}
}

// Attribute links referredID to referrerID. A referred account can be
// attributed only once, to any referrer.
func (e *Engine) Attribute(referrerID, referredID string) (Referral, error) {
	referrerID = strings.TrimSpace(referrerID)
	referredID = strings.TrimSpace(referredID)

	if referrerID == "" || referredID == "" {
		return Referral{}, ErrInvalidRequest
	}

	if referrerID == referredID {
		return Referral{}, fmt.Errorf("attribute %s: %w", referredID, ErrSelfReferral)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.byReferred[referredID]; ok {
		return Referral{}, fmt.Errorf("attribute %s (referral %s): %w", referredID, existing, ErrDuplicateReferral)
	}

	e.seq++

	r := &Referral{
		ID:         e.newID(),
		ReferrerID: referrerID,
		ReferredID: referredID,
		Commission: e.commission,
		Status:     StatusPending,
		CreatedAt:  e.clock.Now(),
		seq:        e.seq,
	}

	e.referrals[r.ID] = r
	e.byReferred[referredID] = r.ID

	return *r, nil
}

// MarkCompleted records the referred party's qualifying action.
func (e *Engine) MarkCompleted(referralID string) (Referral, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.lookup(referralID, StatusPending)
	if err != nil {
		return Referral{}, fmt.Errorf("mark completed: %w", err)
	}

	r.Status = StatusCompleted
	r.CompletedAt = e.clock.Now()

	return *r, nil
}

// Payout credits the referrer and marks the referral paid. If the ledger
// refuses the credit the referral stays completed and the ledger error is
// returned as is.
func (e *Engine) Payout(referralID string) (Referral, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.lookup(referralID, StatusCompleted)
	if err != nil {
		return Referral{}, fmt.Errorf("payout: %w", err)
	}

	txn, err := e.ledger.Credit(r.ReferrerID, r.Commission, PayoutReason, ledger.KindReferralPayout)
	if err != nil {
		return Referral{}, err
	}

	r.Status = StatusPaid
	r.PaidAt = e.clock.Now()
	r.PayoutTransactionID = txn.ID

	return *r, nil
}

// RecordPaid marks a completed referral paid by a payout credit that is
// already in the ledger, such as one replayed from the journal. Nothing
// is credited.
func (e *Engine) RecordPaid(referralID string, payout ledger.Transaction) (Referral, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.lookup(referralID, StatusCompleted)
	if err != nil {
		return Referral{}, fmt.Errorf("record paid: %w", err)
	}

	if payout.Kind != ledger.KindReferralPayout || payout.AccountID != r.ReferrerID || payout.Amount <= 0 {
		return Referral{}, fmt.Errorf("record paid %s with transaction %s (%s to %s): %w",
			referralID, payout.ID, payout.Kind, payout.AccountID, ErrInvalidRequest)
	}

	r.Status = StatusPaid
	r.Commission = payout.Amount
	r.PaidAt = payout.CreatedAt
	r.PayoutTransactionID = payout.ID

	return *r, nil
}

func (e *Engine) Get(referralID string) (Referral, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	r, ok := e.referrals[referralID]
	if !ok {
		return Referral{}, fmt.Errorf("get %s: %w", referralID, ErrReferralNotFound)
	}

	return *r, nil
}

// List returns referrals made by referrerID (all when empty), oldest first.
func (e *Engine) List(referrerID string) []Referral {
	e.mu.RLock()

	out := make([]Referral, 0, len(e.referrals))
	for _, r := range e.referrals {
		if referrerID != "" && r.ReferrerID != referrerID {
			continue
		}

		out = append(out, *r)
	}

	e.mu.RUnlock()

	slices.SortFunc(out, func(a, b Referral) int {
		return cmp.Compare(a.seq, b.seq)
	})

	return out
}

// TopReferrers ranks referrers by their completed and paid referrals. Ties
// go to the referrer whose first counted referral is older. At most limit
// rows are yielded (limit <= 0 means all); every iteration re-ranks.
func (e *Engine) TopReferrers(limit int) iter.Seq[ReferrerRank] {
	return func(yield func(ReferrerRank) bool) {
		for i, row := range e.rank() {
			if limit > 0 && i == limit {
				return
			}

			if !yield(row) {
				return
			}
		}
	}
}

func (e *Engine) rank() []ReferrerRank {
	type tally struct {
		count    int
		earliest uint64
	}

	e.mu.RLock()

	tallies := make(map[string]*tally)
	for _, r := range e.referrals {
		if r.Status != StatusCompleted && r.Status != StatusPaid {
			continue
		}

		t := tallies[r.ReferrerID]
		if t == nil {
			t = &tally{earliest: r.seq}
			tallies[r.ReferrerID] = t
		}

		t.count++
		t.earliest = min(t.earliest, r.seq)
	}

	e.mu.RUnlock()

	ids := make([]string, 0, len(tallies))
	for id := range tallies {
		ids = append(ids, id)
	}

	// seq follows creation order, so it orders by referral timestamp
	// without ambiguity when clocks tie.
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Or(
			cmp.Compare(tallies[b].count, tallies[a].count),
			cmp.Compare(tallies[a].earliest, tallies[b].earliest),
		)
	})

	out := make([]ReferrerRank, 0, len(ids))
	for _, id := range ids {
		out = append(out, ReferrerRank{ReferrerID: id, Count: tallies[id].count})
	}

	return out
}

func (e *Engine) lookup(referralID string, want Status) (*Referral, error) {
	r, ok := e.referrals[referralID]
	if !ok {
		return nil, fmt.Errorf("referral %s: %w", referralID, ErrReferralNotFound)
	}

	if r.Status != want {
		return nil, fmt.Errorf("referral %s is %s, want %s: %w", referralID, r.Status, want, ErrInvalidTransition)
	}

	return r, nil
}
