package moderation

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusArchived Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusArchived:
		return true
	default:
		return false
	}
}

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionArchive Action = "archive"
	ActionReflag  Action = "reflag"
)

// transitions lists, per action, the statuses it may start from and the
// status it leads to. Reflag is accepted from every status.
var transitions = map[Action]struct {
	from []Status
	to   Status
}{
	ActionApprove: {from: []Status{StatusPending}, to: StatusApproved},
	ActionReject:  {from: []Status{StatusPending}, to: StatusRejected},
	ActionArchive: {from: []Status{StatusApproved}, to: StatusArchived},
	ActionReflag: {
		from: []Status{StatusPending, StatusApproved, StatusRejected, StatusArchived},
		to:   StatusPending,
	},
}

type ItemType string

const (
	TypePost       ItemType = "post"
	TypeDiscussion ItemType = "discussion"
	TypeProduct    ItemType = "product"
	TypeReview     ItemType = "review"
	TypeComment    ItemType = "comment"
	TypeFile       ItemType = "file"
)

func (t ItemType) Valid() bool {
	switch t {
	case TypePost, TypeDiscussion, TypeProduct, TypeReview, TypeComment, TypeFile:
		return true
	default:
		return false
	}
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Transition is one entry of an item's status history.
type Transition struct {
	Action Action    `json:"action"`
	From   Status    `json:"from"`
	To     Status    `json:"to"`
	Actor  string    `json:"actor,omitempty"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

type Item struct {
	ID           string       `json:"id"`
	Type         ItemType     `json:"type"`
	OwnerID      string       `json:"ownerId"`
	FlagReason   string       `json:"flagReason,omitempty"`
	Priority     Priority     `json:"priority"`
	Status       Status       `json:"status"`
	ModeratorID  string       `json:"moderatorId,omitempty"`
	RejectReason string       `json:"rejectReason,omitempty"`
	ReportCount  int          `json:"reportCount"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	History      []Transition `json:"history"`
}

type NewItem struct {
	Type       ItemType
	OwnerID    string
	FlagReason string
	Priority   Priority
}

// BulkResult is the outcome of one item in a BulkApply call.
type BulkResult struct {
	Item Item
	Err  error
}

var (
	ErrInvalidTransition = errors.New("invalid moderation transition")
	ErrItemNotFound      = errors.New("moderation item not found")
	ErrInvalidRequest    = errors.New("invalid moderation request")
)

// TransitionError reports an action attempted from a status that does not
// allow it. It matches ErrInvalidTransition.
type TransitionError struct {
	ItemID string
	Action Action
	From   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("item %s: cannot %s from %s", e.ItemID, e.Action, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
