// Package queue defines message payloads exchanged over the message broker
// and the consumer that turns them into the audit log.
package queue

// DecisionDecidedQueue is the durable queue carrying approval events.
const DecisionDecidedQueue = "decision.decided"

// DecisionDecidedEvent is published after an approval commits.  It holds
// enough for the audit trail without querying the primary database.
type DecisionDecidedEvent struct {
	DecisionID          uint64 `json:"decision_id"`
	Title               string `json:"title"`
	SelectedOptionID    uint64 `json:"selected_option_id"`
	SelectedOptionLabel string `json:"selected_option_label"`
	Comment             string `json:"comment,omitempty"`
	Author              string `json:"author"`
	DecidedAt           string `json:"decided_at"`
}
