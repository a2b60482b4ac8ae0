package moderation

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/fastprodman/rewardsledger/internal/infra/clock"
)

var priorityRank = map[Priority]int{
	PriorityUrgent: 0,
	PriorityHigh:   1,
	PriorityMedium: 2,
	PriorityLow:    3,
}

// Workflow owns every moderatable item and applies the transition table to
// them. Conflicting concurrent transitions on one item resolve first-writer
// wins; the loser gets a *TransitionError.
type Workflow struct {
	mu    sync.RWMutex
	clock clock.Clock
	items map[string]*Item
	newID func() string
}

func New(c clock.Clock) *Workflow {
	return &Workflow{
		clock: clock.OrReal(c),
		items: make(map[string]*Item),
		newID: uuid.NewString,
	}
}

// Submit creates a pending item.
func (w *Workflow) Submit(in NewItem) (Item, error) {
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	in.FlagReason = strings.TrimSpace(in.FlagReason)

	if in.Priority == "" {
		in.Priority = PriorityMedium
	}

	if !in.Type.Valid() || !in.Priority.Valid() || in.OwnerID == "" {
		return Item{}, fmt.Errorf("submit %q item: %w", in.Type, ErrInvalidRequest)
	}

	now := w.clock.Now()

	item := &Item{
		ID:         w.newID(),
		Type:       in.Type,
		OwnerID:    in.OwnerID,
		FlagReason: in.FlagReason,
		Priority:   in.Priority,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if item.FlagReason != "" {
		item.ReportCount = 1
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.items[item.ID] = item

	return item.snapshot(), nil
}

func (w *Workflow) Approve(itemID, moderatorID string) (Item, error) {
	if strings.TrimSpace(moderatorID) == "" {
		return Item{}, fmt.Errorf("approve without moderator: %w", ErrInvalidRequest)
	}

	return w.transition(itemID, ActionApprove, moderatorID, "")
}

func (w *Workflow) Reject(itemID, moderatorID, reason string) (Item, error) {
	if strings.TrimSpace(moderatorID) == "" || strings.TrimSpace(reason) == "" {
		return Item{}, fmt.Errorf("reject without moderator or reason: %w", ErrInvalidRequest)
	}

	return w.transition(itemID, ActionReject, moderatorID, reason)
}

func (w *Workflow) Archive(itemID, actorID string) (Item, error) {
	return w.transition(itemID, ActionArchive, actorID, "")
}

// Reflag files a new report against the item and sends it back to pending,
// whatever its current status.
func (w *Workflow) Reflag(itemID, reporterID, reason string) (Item, error) {
	if strings.TrimSpace(reason) == "" {
		return Item{}, fmt.Errorf("reflag without reason: %w", ErrInvalidRequest)
	}

	return w.transition(itemID, ActionReflag, reporterID, reason)
}

// Apply runs a single action by name.
func (w *Workflow) Apply(itemID string, action Action, actorID, reason string) (Item, error) {
	switch action {
	case ActionApprove:
		return w.Approve(itemID, actorID)
	case ActionReject:
		return w.Reject(itemID, actorID, reason)
	case ActionArchive:
		return w.Archive(itemID, actorID)
	case ActionReflag:
		return w.Reflag(itemID, actorID, reason)
	default:
		return Item{}, fmt.Errorf("unknown action %q: %w", action, ErrInvalidRequest)
	}
}

// BulkApply applies action to each item independently. A failure on one id
// never prevents the others from transitioning.
func (w *Workflow) BulkApply(itemIDs []string, action Action, actorID, reason string) map[string]BulkResult {
	out := make(map[string]BulkResult, len(itemIDs))

	for _, id := range itemIDs {
		if _, done := out[id]; done {
			continue
		}

		item, err := w.Apply(id, action, actorID, reason)
		out[id] = BulkResult{Item: item, Err: err}
	}

	return out
}

// ResolveFlag clears the flag reason and keeps the status.
func (w *Workflow) ResolveFlag(itemID string) (Item, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	item, ok := w.items[itemID]
	if !ok {
		return Item{}, fmt.Errorf("resolve flag %s: %w", itemID, ErrItemNotFound)
	}

	item.FlagReason = ""
	item.UpdatedAt = w.clock.Now()

	return item.snapshot(), nil
}

func (w *Workflow) Get(itemID string) (Item, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	item, ok := w.items[itemID]
	if !ok {
		return Item{}, fmt.Errorf("get %s: %w", itemID, ErrItemNotFound)
	}

	return item.snapshot(), nil
}

// List returns items in queue order: highest priority first, then oldest.
// An empty status lists everything.
func (w *Workflow) List(status Status) ([]Item, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("list status %q: %w", status, ErrInvalidRequest)
	}

	w.mu.RLock()

	out := make([]Item, 0, len(w.items))
	for _, item := range w.items {
		if status != "" && item.Status != status {
			continue
		}

		out = append(out, item.snapshot())
	}

	w.mu.RUnlock()

	slices.SortFunc(out, func(a, b Item) int {
		return cmp.Or(
			cmp.Compare(priorityRank[a.Priority], priorityRank[b.Priority]),
			a.CreatedAt.Compare(b.CreatedAt),
			strings.Compare(a.ID, b.ID),
		)
	})

	return out, nil
}

func (w *Workflow) transition(itemID string, action Action, actorID, reason string) (Item, error) {
	rule, ok := transitions[action]
	if !ok {
		return Item{}, fmt.Errorf("unknown action %q: %w", action, ErrInvalidRequest)
	}

	actorID = strings.TrimSpace(actorID)
	reason = strings.TrimSpace(reason)

	w.mu.Lock()
	defer w.mu.Unlock()

	item, ok := w.items[itemID]
	if !ok {
		return Item{}, fmt.Errorf("%s %s: %w", action, itemID, ErrItemNotFound)
	}

	if !slices.Contains(rule.from, item.Status) {
		return Item{}, &TransitionError{ItemID: itemID, Action: action, From: item.Status}
	}

	now := w.clock.Now()

	item.History = append(item.History, Transition{
		Action: action,
		From:   item.Status,
		To:     rule.to,
		Actor:  actorID,
		Reason: reason,
		At:     now,
	})
	item.Status = rule.to
	item.UpdatedAt = now

	switch action {
	case ActionApprove:
		item.ModeratorID = actorID
	case ActionReject:
		item.ModeratorID = actorID
		item.RejectReason = reason
	case ActionReflag:
		item.FlagReason = reason
		item.ReportCount++
		item.RejectReason = ""
	case ActionArchive:
	}

	return item.snapshot(), nil
}

func (i *Item) snapshot() Item {
	out := *i
	out.History = slices.Clone(i.History)

	return out
}
