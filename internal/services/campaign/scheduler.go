package campaign

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fastprodman/rewardsledger/internal/infra/clock"
)

// Scheduler stores campaigns. It never stores a status; callers derive it
// with StatusOf or Status on every read.
type Scheduler struct {
	mu        sync.RWMutex
	clock     clock.Clock
	campaigns map[string]*Campaign
	newID     func() string
}

func New(c clock.Clock) *Scheduler {
	return &Scheduler{
		clock:     clock.OrReal(c),
		campaigns: make(map[string]*Campaign),
		newID:     uuid.NewString,
	}
}

// Create stores a new, unpaused campaign. usageLimit 0 means unlimited.
func (s *Scheduler) Create(typ Type, window Window, usageLimit int64) (Campaign, error) {
	if !typ.Valid() {
		return Campaign{}, fmt.Errorf("create campaign type %q: %w", typ, ErrInvalidRequest)
	}

	if window.Start.IsZero() || window.End.IsZero() || window.End.Before(window.Start) {
		return Campaign{}, fmt.Errorf("create campaign window %s..%s: %w", window.Start, window.End, ErrInvalidRequest)
	}

	if usageLimit < 0 {
		return Campaign{}, fmt.Errorf("create campaign usage limit %d: %w", usageLimit, ErrInvalidRequest)
	}

	c := &Campaign{
		ID:         s.newID(),
		Type:       typ,
		Window:     Window{Start: window.Start.UTC(), End: window.End.UTC()},
		UsageLimit: usageLimit,
		CreatedAt:  s.clock.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.campaigns[c.ID] = c

	return *c, nil
}

// RecordUsage counts one redemption, refusing it once the limit is reached.
func (s *Scheduler) RecordUsage(campaignID string) (Campaign, error) {
	return s.update(campaignID, func(c *Campaign) error {
		if c.UsageLimit > 0 && c.Usage+1 > c.UsageLimit {
			return fmt.Errorf("campaign %s at %d/%d: %w", c.ID, c.Usage, c.UsageLimit, ErrUsageLimitExceeded)
		}

		c.Usage++

		return nil
	})
}

func (s *Scheduler) Pause(campaignID string) (Campaign, error) {
	return s.update(campaignID, func(c *Campaign) error {
		c.Paused = true
		return nil
	})
}

func (s *Scheduler) Resume(campaignID string) (Campaign, error) {
	return s.update(campaignID, func(c *Campaign) error {
		c.Paused = false
		return nil
	})
}

func (s *Scheduler) Get(campaignID string) (Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.campaigns[campaignID]
	if !ok {
		return Campaign{}, fmt.Errorf("get %s: %w", campaignID, ErrCampaignNotFound)
	}

	return *c, nil
}

// Status derives the campaign status against the scheduler clock.
func (s *Scheduler) Status(campaignID string) (Status, error) {
	c, err := s.Get(campaignID)
	if err != nil {
		return "", err
	}

	return StatusOf(c, s.clock.Now()), nil
}

// List returns campaigns ordered by window start. A non-empty status keeps
// only campaigns currently in that status.
func (s *Scheduler) List(status Status) ([]Campaign, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("list status %q: %w", status, ErrInvalidRequest)
	}

	now := s.clock.Now()

	s.mu.RLock()

	out := make([]Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		if status != "" && StatusOf(*c, now) != status {
			continue
		}

		out = append(out, *c)
	}

	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Campaign) int {
		return cmp.Or(
			a.Window.Start.Compare(b.Window.Start),
			strings.Compare(a.ID, b.ID),
		)
	})

	return out, nil
}

// Now exposes the scheduler clock so readers derive status consistently.
func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

func (s *Scheduler) update(campaignID string, fn func(*Campaign) error) (Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[campaignID]
	if !ok {
		return Campaign{}, fmt.Errorf("campaign %s: %w", campaignID, ErrCampaignNotFound)
	}

	next := *c

	err := fn(&next)
	if err != nil {
		return Campaign{}, err
	}

	*c = next

	return next, nil
}
