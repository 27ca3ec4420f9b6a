// Package service holds the state transitions that span several
// repositories.
package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/decision-board/internal/logger"
	"github.com/iliyamo/decision-board/internal/model"
	q "github.com/iliyamo/decision-board/internal/queue"
	"github.com/iliyamo/decision-board/internal/repository"
)

// ApprovalCoordinator drives a decision from pending to decided.
type ApprovalCoordinator struct {
	Decisions *repository.DecisionRepo
	Events    EventPublisher
	Log       logger.Logger
	Now       func() time.Time

	inflight sync.WaitGroup
}

const publishTimeout = 10 * time.Second

// NewApprovalCoordinator wires a coordinator.  A nil publisher disables
// the audit events.
func NewApprovalCoordinator(decisions *repository.DecisionRepo, events EventPublisher, log logger.Logger) *ApprovalCoordinator {
	if decisions == nil {
		panic("nil repository passed to NewApprovalCoordinator")
	}
	if events == nil {
		events = NopPublisher{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &ApprovalCoordinator{Decisions: decisions, Events: events, Log: log, Now: time.Now}
}

// Approve records actor's choice of selectedOptionID for decisionID.
//
// The option must belong to the decision (ErrInvalidSelection).  The
// response insert and the pending -> decided update commit together; the
// update only matches a pending row, so of two concurrent approvals one
// wins and the other gets ErrAlreadyDecided with nothing written.
func (a *ApprovalCoordinator) Approve(ctx context.Context, decisionID, selectedOptionID uint64, comment string, actor model.User) error {
	if decisionID == 0 {
		return &repository.ValidationError{Field: "id", Message: "invalid decision id"}
	}
	if selectedOptionID == 0 {
		return &repository.ValidationError{Field: "selectedOptionId", Message: "selectedOptionId is required"}
	}

	tx, err := a.Decisions.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	ok, err := a.Decisions.OptionBelongsTx(ctx, tx, decisionID, selectedOptionID)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrInvalidSelection
	}
	pending, err := a.Decisions.IsPendingTx(ctx, tx, decisionID)
	if err != nil {
		return err
	}
	if !pending {
		return repository.ErrAlreadyDecided
	}

	resp := &model.Response{
		DecisionID:       decisionID,
		SelectedOptionID: selectedOptionID,
		Comment:          optional(comment),
		Author:           actor.Email,
	}
	if err := a.Decisions.CreateResponseTx(ctx, tx, resp); err != nil {
		return err
	}
	decidedAt := a.Now().UTC()
	if err := a.Decisions.MarkDecidedTx(ctx, tx, decisionID, actor.Email, decidedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	a.Log.Info("decision approved", "decision_id", decisionID, "option_id", selectedOptionID, "author", actor.Email)
	a.publish(ctx, a.event(ctx, resp, decidedAt))
	return nil
}

// Wait blocks until every audit event handed off by Approve has been
// published or dropped.
func (a *ApprovalCoordinator) Wait() { a.inflight.Wait() }

// event builds the audit record for a committed response.
func (a *ApprovalCoordinator) event(ctx context.Context, resp *model.Response, at time.Time) q.DecisionDecidedEvent {
	ev := q.DecisionDecidedEvent{
		DecisionID:       resp.DecisionID,
		SelectedOptionID: resp.SelectedOptionID,
		Author:           resp.Author,
		DecidedAt:        at.Format(time.RFC3339),
	}
	if resp.Comment != nil {
		ev.Comment = *resp.Comment
	}
	if d, err := a.Decisions.Get(ctx, resp.DecisionID); err == nil {
		ev.Title = d.Title
		for _, o := range d.Options {
			if o.ID == resp.SelectedOptionID {
				ev.SelectedOptionLabel = o.Label
			}
		}
	}
	return ev
}

// publish hands ev to the publisher in the background so a slow or absent
// broker never holds up the response.  Failures are logged and swallowed:
// the approval has already committed.
func (a *ApprovalCoordinator) publish(ctx context.Context, ev q.DecisionDecidedEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		defer cancel()
		if err := a.Events.PublishDecisionDecided(ctx, ev); err != nil {
			a.Log.Warn("publish decision.decided failed", "decision_id", ev.DecisionID, "err", err)
		}
	}()
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
