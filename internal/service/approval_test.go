package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/decision-board/internal/logger"
	"github.com/iliyamo/decision-board/internal/model"
	q "github.com/iliyamo/decision-board/internal/queue"
	"github.com/iliyamo/decision-board/internal/repository"
	"github.com/iliyamo/decision-board/internal/testutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []q.DecisionDecidedEvent
	err    error
}

func (p *recordingPublisher) PublishDecisionDecided(_ context.Context, ev q.DecisionDecidedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func TestApprovalCoordinator_Approve(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	setup := func(t *testing.T) (*ApprovalCoordinator, *recordingPublisher, *repository.DecisionRepo, model.User) {
		db := testutil.SetupTestDB(t)
		repo := repository.NewDecisionRepo(db)
		pub := &recordingPublisher{}
		a := NewApprovalCoordinator(repo, pub, logger.Discard())
		a.Now = func() time.Time { return fixed }
		partner := testutil.CreateUser(t, db, "partner@example.com", model.RolePartner)
		return a, pub, repo, partner
	}

	t.Run("Should move a pending decision to decided with one response", func(t *testing.T) {
		a, pub, repo, partner := setup(t)
		d := testutil.CreateDecision(t, repo.DB(), "Login form", "A", "B")

		require.NoError(t, a.Approve(ctx, d.ID, d.Options[1].ID, "cleaner", partner))
		a.Wait()

		got, err := repo.Get(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusDecided, got.Status)
		require.NotNil(t, got.DecidedAt)
		assert.True(t, fixed.Equal(*got.DecidedAt))
		require.NotNil(t, got.DecidedBy)
		assert.Equal(t, "partner@example.com", *got.DecidedBy)
		assert.Equal(t, 1, testutil.CountRows(t, repo.DB(), "decision_responses",
			"decision_id = ? AND selected_option_id = ?", d.ID, d.Options[1].ID))

		require.Len(t, pub.events, 1)
		assert.Equal(t, "Login form", pub.events[0].Title)
		assert.Equal(t, "B", pub.events[0].SelectedOptionLabel)
		assert.Equal(t, "cleaner", pub.events[0].Comment)
		assert.Equal(t, "2026-10-16T12:00:00Z", pub.events[0].DecidedAt)
	})
	t.Run("Should reject an option of another decision and change nothing", func(t *testing.T) {
		a, pub, repo, partner := setup(t)
		d1 := testutil.CreateDecision(t, repo.DB(), "one", "A")
		d2 := testutil.CreateDecision(t, repo.DB(), "two", "B")

		err := a.Approve(ctx, d1.ID, d2.Options[0].ID, "", partner)
		assert.ErrorIs(t, err, repository.ErrInvalidSelection)

		got, err := repo.Get(ctx, d1.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, got.Status)
		assert.Nil(t, got.DecidedAt)
		assert.Equal(t, 0, testutil.CountRows(t, repo.DB(), "decision_responses", ""))
		assert.Empty(t, pub.events)
	})
	t.Run("Should reject unknown options and decisions", func(t *testing.T) {
		a, _, repo, partner := setup(t)
		d := testutil.CreateDecision(t, repo.DB(), "one", "A")
		assert.ErrorIs(t, a.Approve(ctx, d.ID, 9999, "", partner), repository.ErrInvalidSelection)
		assert.ErrorIs(t, a.Approve(ctx, 9999, d.Options[0].ID, "", partner), repository.ErrInvalidSelection)
	})
	t.Run("Should validate ids before touching the database", func(t *testing.T) {
		a, _, _, partner := setup(t)
		var ve *repository.ValidationError
		require.ErrorAs(t, a.Approve(ctx, 1, 0, "", partner), &ve)
		assert.Equal(t, "selectedOptionId", ve.Field)
		require.ErrorAs(t, a.Approve(ctx, 0, 1, "", partner), &ve)
		assert.Equal(t, "id", ve.Field)
	})
	t.Run("Should refuse a second approval", func(t *testing.T) {
		a, _, repo, partner := setup(t)
		d := testutil.CreateDecision(t, repo.DB(), "one", "A", "B")
		require.NoError(t, a.Approve(ctx, d.ID, d.Options[0].ID, "", partner))

		err := a.Approve(ctx, d.ID, d.Options[1].ID, "changed my mind", partner)
		assert.ErrorIs(t, err, repository.ErrAlreadyDecided)
		assert.Equal(t, 1, testutil.CountRows(t, repo.DB(), "decision_responses", "decision_id = ?", d.ID))
	})
	t.Run("Should store a blank comment as null", func(t *testing.T) {
		a, _, repo, partner := setup(t)
		d := testutil.CreateDecision(t, repo.DB(), "one", "A")
		require.NoError(t, a.Approve(ctx, d.ID, d.Options[0].ID, "  ", partner))
		assert.Equal(t, 1, testutil.CountRows(t, repo.DB(), "decision_responses", "comment IS NULL"))
	})
	t.Run("Should succeed even when publishing fails", func(t *testing.T) {
		a, pub, repo, partner := setup(t)
		pub.err = errors.New("broker down")
		d := testutil.CreateDecision(t, repo.DB(), "one", "A")
		require.NoError(t, a.Approve(ctx, d.ID, d.Options[0].ID, "", partner))
		a.Wait()
		got, err := repo.Get(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusDecided, got.Status)
	})
	t.Run("Should return before a slow publisher finishes", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		repo := repository.NewDecisionRepo(db)
		pub := &blockingPublisher{release: make(chan struct{}), got: make(chan context.Context, 1)}
		a := NewApprovalCoordinator(repo, pub, logger.Discard())
		partner := testutil.CreateUser(t, db, "partner@example.com", model.RolePartner)
		d := testutil.CreateDecision(t, db, "one", "A")

		reqCtx, cancel := context.WithCancel(ctx)
		require.NoError(t, a.Approve(reqCtx, d.ID, d.Options[0].ID, "", partner))
		cancel()

		pubCtx := <-pub.got
		assert.NoError(t, pubCtx.Err(), "publishing must outlive the request")
		close(pub.release)
		a.Wait()
	})
}

// blockingPublisher holds every publish until release is closed.
type blockingPublisher struct {
	release chan struct{}
	got     chan context.Context
}

func (p *blockingPublisher) PublishDecisionDecided(ctx context.Context, _ q.DecisionDecidedEvent) error {
	p.got <- ctx
	<-p.release
	return nil
}

// The SQLite test database has a single connection, so approvals in these
// tests never overlap.  The cases below stage the state a losing approval
// would meet after the winner's writes, and check that nothing survives
// the rollback.
func TestApprovalCoordinator_LosingInterleavings(t *testing.T) {
	ctx := context.Background()

	t.Run("Should roll back when the response key is already taken", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		repo := repository.NewDecisionRepo(db)
		pub := &recordingPublisher{}
		a := NewApprovalCoordinator(repo, pub, logger.Discard())
		partner := testutil.CreateUser(t, db, "partner@example.com", model.RolePartner)
		d := testutil.CreateDecision(t, db, "race", "A", "B")

		// winner's response is in, its status update is not yet
		_, err := db.Exec(`INSERT INTO decision_responses (decision_id, selected_option_id, author) VALUES (?, ?, ?)`,
			d.ID, d.Options[0].ID, "winner@example.com")
		require.NoError(t, err)

		err = a.Approve(ctx, d.ID, d.Options[1].ID, "late", partner)
		assert.ErrorIs(t, err, repository.ErrAlreadyDecided)
		a.Wait()

		assert.Equal(t, 1, testutil.CountRows(t, db, "decision_responses", "decision_id = ?", d.ID))
		assert.Equal(t, 0, testutil.CountRows(t, db, "decision_responses", "author = ?", partner.Email))
		got, err := repo.Get(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, got.Status)
		assert.Empty(t, pub.events)
	})
	t.Run("Should discard the response when the status update matches nothing", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		repo := repository.NewDecisionRepo(db)
		d := testutil.CreateDecision(t, db, "race", "A")

		// the decision left pending after this transaction checked it
		tx, err := db.BeginTx(ctx, nil)
		require.NoError(t, err)
		pending, err := repo.IsPendingTx(ctx, tx, d.ID)
		require.NoError(t, err)
		require.True(t, pending)
		_, err = tx.ExecContext(ctx, `UPDATE decisions SET status = 'decided' WHERE id = ?`, d.ID)
		require.NoError(t, err)

		require.NoError(t, repo.CreateResponseTx(ctx, tx, &model.Response{
			DecisionID: d.ID, SelectedOptionID: d.Options[0].ID, Author: "late@example.com",
		}))
		err = repo.MarkDecidedTx(ctx, tx, d.ID, "late@example.com", time.Now())
		assert.ErrorIs(t, err, repository.ErrAlreadyDecided)
		require.NoError(t, tx.Rollback())

		assert.Equal(t, 0, testutil.CountRows(t, db, "decision_responses", "decision_id = ?", d.ID))
	})
}

// TestApprovalCoordinator_ConcurrentApprovals verifies that simultaneous
// approvals of one decision produce exactly one winner and one response.
// SQLite serializes the transactions, so every loser is turned away by the
// pending check; TestApprovalCoordinator_LosingInterleavings covers the
// later rejection points.
func TestApprovalCoordinator_ConcurrentApprovals(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	repo := repository.NewDecisionRepo(db)
	a := NewApprovalCoordinator(repo, nil, logger.Discard())
	partner := testutil.CreateUser(t, db, "partner@example.com", model.RolePartner)
	d := testutil.CreateDecision(t, db, "race", "A", "B")

	const callers = 8
	var (
		wins, lost atomic.Int32
		wg         sync.WaitGroup
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := a.Approve(ctx, d.ID, d.Options[i%2].ID, "", partner)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, repository.ErrAlreadyDecided):
				lost.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, callers-1, lost.Load())
	assert.Equal(t, 1, testutil.CountRows(t, db, "decision_responses", "decision_id = ?", d.ID))
}

func TestApprovalScenario(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	repo := repository.NewDecisionRepo(db)
	a := NewApprovalCoordinator(repo, nil, logger.Discard())
	partner := testutil.CreateUser(t, db, "partner@example.com", model.RolePartner)

	id, err := repo.Create(ctx, "Login form", nil, []model.OptionInput{{Label: "A"}, {Label: "B"}})
	require.NoError(t, err)

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Len(t, pending[0].Options, 2)
	assert.Equal(t, "A", pending[0].Options[0].Label)
	optB := pending[0].Options[1]
	assert.Equal(t, "B", optB.Label)

	require.NoError(t, a.Approve(ctx, id, optB.ID, "cleaner", partner))

	history, err := repo.ListHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "B", history[0].SelectedOptionLabel)
	require.NotNil(t, history[0].Comment)
	assert.Equal(t, "cleaner", *history[0].Comment)
	assert.Equal(t, model.StatusDecided, history[0].Status)

	pending, err = repo.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
