package model

import "time"

// Status is the lifecycle state of a decision.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDecided     Status = "decided"
	StatusImplemented Status = "implemented"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusDecided, StatusImplemented:
		return true
	}
	return false
}

// CanEditTo reports whether the developer edit path may move a decision
// from s to next.  Only an approval can leave pending, so edits keep a
// pending decision pending; a decided decision may only be promoted to
// implemented.
func (s Status) CanEditTo(next Status) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	return s == StatusDecided && next == StatusImplemented
}

// Decision represents a row of the `decisions` table together with its
// ordered options.  DecidedAt and DecidedBy are set by the approval and
// stay nil while the decision is pending.
type Decision struct {
	ID          uint64     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
	DecidedBy   *string    `json:"decided_by,omitempty"`
	Options     []Option   `json:"options"`
}

// Option is one candidate choice of a decision.  SortOrder defines the
// display order; ties fall back to insertion order (id).
type Option struct {
	ID         uint64  `json:"id"`
	DecisionID uint64  `json:"decision_id"`
	Label      string  `json:"label"`
	ImageURL   *string `json:"image_url"`
	SortOrder  int     `json:"sort_order"`
}

// OptionInput is an option as submitted by a developer.  A nil
// SortOrder is replaced by the option's position in the list.  Any id
// sent by the client is ignored: options are always reinserted.
type OptionInput struct {
	Label     string  `json:"label"`
	ImageURL  *string `json:"image_url,omitempty"`
	SortOrder *int    `json:"sort_order,omitempty"`
}

// Response records the outcome of an approval.  Exactly one exists for
// every decision that left the pending state.
type Response struct {
	ID               uint64    `json:"id"`
	DecisionID       uint64    `json:"decision_id"`
	SelectedOptionID uint64    `json:"selected_option_id"`
	Comment          *string   `json:"comment"`
	Author           string    `json:"author"`
	CreatedAt        time.Time `json:"created_at"`
}

// HistoryEntry is a decided or implemented decision joined to its
// response and the selected option.
type HistoryEntry struct {
	ID                  uint64     `json:"id"`
	Title               string     `json:"title"`
	Description         *string    `json:"description"`
	Status              Status     `json:"status"`
	CreatedAt           time.Time  `json:"created_at"`
	DecidedAt           *time.Time `json:"decided_at"`
	DecidedBy           *string    `json:"decided_by"`
	Comment             *string    `json:"comment"`
	Author              string     `json:"author"`
	SelectedOptionID    uint64     `json:"selected_option_id"`
	SelectedOptionLabel string     `json:"selected_option_label"`
	SelectedOptionImage *string    `json:"selected_option_image"`
}
