// Package seed loads demo data from a YAML fixture into the in-memory
// services.
//
//	accounts:
//	  - id: demo-seller
//	    entries:
//	      - {amount: 500, reason: first sale bonus}
//	      - {amount: 20, reason: boost, kind: spent}
//	moderation:
//	  - {type: post, ownerId: demo-seller, flagReason: spam, priority: high}
//	campaigns:
//	  - {type: coupon, start: 2026-01-01T00:00:00Z, end: 2026-12-31T00:00:00Z, usageLimit: 100}
//	referrals:
//	  - {referrerId: demo-seller, referredId: demo-student, completed: true, paid: true}
package seed

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fastprodman/rewardsledger/internal/services/campaign"
	"github.com/fastprodman/rewardsledger/internal/services/ledger"
	"github.com/fastprodman/rewardsledger/internal/services/moderation"
	"github.com/fastprodman/rewardsledger/internal/services/referral"
)

type File struct {
	Accounts   []Account        `yaml:"accounts"`
	Moderation []ModerationItem `yaml:"moderation"`
	Campaigns  []Campaign       `yaml:"campaigns"`
	Referrals  []Referral       `yaml:"referrals"`
}

type Account struct {
	ID      string  `yaml:"id"`
	Entries []Entry `yaml:"entries"`
}

// Entry is one ledger movement. Kind defaults to earned; debit kinds
// take Amount from the balance.
type Entry struct {
	Amount int64       `yaml:"amount"`
	Reason string      `yaml:"reason"`
	Kind   ledger.Kind `yaml:"kind"`
}

type ModerationItem struct {
	Type       moderation.ItemType `yaml:"type"`
	OwnerID    string              `yaml:"ownerId"`
	FlagReason string              `yaml:"flagReason"`
	Priority   moderation.Priority `yaml:"priority"`
}

type Campaign struct {
	Type       campaign.Type `yaml:"type"`
	Start      time.Time     `yaml:"start"`
	End        time.Time     `yaml:"end"`
	UsageLimit int64         `yaml:"usageLimit"`
	Paused     bool          `yaml:"paused"`
}

type Referral struct {
	ReferrerID string `yaml:"referrerId"`
	ReferredID string `yaml:"referredId"`
	Completed  bool   `yaml:"completed"`
	Paid       bool   `yaml:"paid"`
}

// Targets are the services a fixture is applied to.
type Targets struct {
	Ledger     *ledger.Ledger
	Moderation *moderation.Workflow
	Referrals  *referral.Engine
	Campaigns  *campaign.Scheduler
}

// Summary counts what Apply created.
type Summary struct {
	Transactions  int
	Items         int
	Campaigns     int
	Referrals     int
	LedgerSkipped bool
}

// Parse decodes a fixture, rejecting unknown keys.
func Parse(r io.Reader) (File, error) {
	var f File

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	err := dec.Decode(&f)
	if err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("decode seed: %w", err)
	}

	return f, nil
}

func LoadFile(path string) (File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("open seed file: %w", err)
	}
	//nolint:errcheck
	defer fh.Close()

	return Parse(fh)
}

// Apply pushes f into the services. When the ledger already holds
// transactions (a replayed journal) the ledger entries are skipped and
// paid referrals are matched to the replayed payout credits, so a restart
// does not mint coins twice.
func Apply(f File, t Targets) (Summary, error) {
	var sum Summary

	sum.LedgerSkipped = len(t.Ledger.Accounts()) > 0

	if !sum.LedgerSkipped {
		for _, acct := range f.Accounts {
			for i, e := range acct.Entries {
				err := applyEntry(t.Ledger, acct.ID, e)
				if err != nil {
					return sum, fmt.Errorf("account %s entry %d: %w", acct.ID, i, err)
				}

				sum.Transactions++
			}
		}
	}

	for i, in := range f.Moderation {
		_, err := t.Moderation.Submit(moderation.NewItem{
			Type:       in.Type,
			OwnerID:    in.OwnerID,
			FlagReason: in.FlagReason,
			Priority:   in.Priority,
		})
		if err != nil {
			return sum, fmt.Errorf("moderation item %d: %w", i, err)
		}

		sum.Items++
	}

	for i, in := range f.Campaigns {
		c, err := t.Campaigns.Create(in.Type, campaign.Window{Start: in.Start, End: in.End}, in.UsageLimit)
		if err != nil {
			return sum, fmt.Errorf("campaign %d: %w", i, err)
		}

		if in.Paused {
			_, err = t.Campaigns.Pause(c.ID)
			if err != nil {
				return sum, fmt.Errorf("pause campaign %d: %w", i, err)
			}
		}

		sum.Campaigns++
	}

	payouts := newPayoutClaims(t.Ledger)

	for i, in := range f.Referrals {
		err := applyReferral(t.Referrals, in, payouts, !sum.LedgerSkipped)
		if err != nil {
			return sum, fmt.Errorf("referral %d: %w", i, err)
		}

		sum.Referrals++
	}

	return sum, nil
}

func applyEntry(l *ledger.Ledger, accountID string, e Entry) error {
	kind := e.Kind
	if kind == "" {
		kind = ledger.KindEarned
	}

	var err error
	if kind.IsDebit() {
		_, err = l.Debit(accountID, e.Amount, e.Reason, kind)
	} else {
		_, err = l.Credit(accountID, e.Amount, e.Reason, kind)
	}

	return err
}

// applyReferral attributes in and walks it forward. With mint false a paid
// referral is bound to a referral payout already in the ledger instead of
// being paid again; without one it stays completed.
func applyReferral(e *referral.Engine, in Referral, payouts *payoutClaims, mint bool) error {
	ref, err := e.Attribute(in.ReferrerID, in.ReferredID)
	if err != nil {
		return err
	}

	if !in.Completed && !in.Paid {
		return nil
	}

	ref, err = e.MarkCompleted(ref.ID)
	if err != nil {
		return err
	}

	if !in.Paid {
		return nil
	}

	if mint {
		_, err = e.Payout(ref.ID)

		return err
	}

	txn, ok := payouts.claim(ref.ReferrerID)
	if !ok {
		return nil
	}

	_, err = e.RecordPaid(ref.ID, txn)

	return err
}

// payoutClaims hands out each referral payout in the ledger at most once,
// oldest first per referrer.
type payoutClaims struct {
	ledger  *ledger.Ledger
	claimed map[string]bool
}

func newPayoutClaims(l *ledger.Ledger) *payoutClaims {
	return &payoutClaims{ledger: l, claimed: make(map[string]bool)}
}

func (p *payoutClaims) claim(referrerID string) (ledger.Transaction, bool) {
	hist := slices.Collect(p.ledger.History(referrerID, 0))

	// History is newest first.
	for _, txn := range slices.Backward(hist) {
		if txn.Kind != ledger.KindReferralPayout || p.claimed[txn.ID] {
			continue
		}

		p.claimed[txn.ID] = true

		return txn, true
	}

	return ledger.Transaction{}, false
}
