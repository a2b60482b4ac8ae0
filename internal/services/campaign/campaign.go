package campaign

import (
	"errors"
	"time"
)

type Type string

const (
	TypeCoupon        Type = "coupon"
	TypeDiscount      Type = "discount"
	TypeFlashSale     Type = "flash-sale"
	TypeAutomation    Type = "automation"
	TypeReferralBonus Type = "referral-bonus"
)

func (t Type) Valid() bool {
	switch t {
	case TypeCoupon, TypeDiscount, TypeFlashSale, TypeAutomation, TypeReferralBonus:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusActive    Status = "active"
	StatusScheduled Status = "scheduled"
	StatusExpired   Status = "expired"
	StatusPaused    Status = "paused"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusScheduled, StatusExpired, StatusPaused:
		return true
	default:
		return false
	}
}

// Window is the inclusive validity interval of a campaign.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Campaign deliberately has no status field: use StatusOf.
type Campaign struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	Window     Window    `json:"window"`
	Usage      int64     `json:"usage"`
	UsageLimit int64     `json:"usageLimit"` // 0 means unlimited
	Paused     bool      `json:"paused"`
	CreatedAt  time.Time `json:"createdAt"`
}

// StatusOf derives the lifecycle status of c at now. Expiry wins over the
// pause flag, and a campaign that has not started is scheduled even when
// paused.
func StatusOf(c Campaign, now time.Time) Status {
	switch {
	case now.After(c.Window.End):
		return StatusExpired
	case now.Before(c.Window.Start):
		return StatusScheduled
	case c.Paused:
		return StatusPaused
	default:
		return StatusActive
	}
}

var (
	ErrUsageLimitExceeded = errors.New("campaign usage limit exceeded")
	ErrCampaignNotFound   = errors.New("campaign not found")
	ErrInvalidRequest     = errors.New("invalid campaign request")
)
