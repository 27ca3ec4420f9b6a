package repository // repository holds data access logic for domain entities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/decision-board/internal/model"
)

// ErrDecisionNotFound is returned when a decision lookup fails.
var ErrDecisionNotFound = errors.New("decision not found")

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// DecisionRepo provides CRUD over decisions and their ordered option
// lists.  Every write touching more than one row runs in a transaction.
type DecisionRepo struct {
	db *sql.DB
	// appended to status reads inside transactions; empty on SQLite,
	// whose single connection already serializes writers
	lockRow string
}

// NewDecisionRepo constructs a DecisionRepo with the given DB handle.
func NewDecisionRepo(db *sql.DB) *DecisionRepo {
	r := &DecisionRepo{db: db}
	if _, ok := db.Driver().(*mysql.MySQLDriver); ok {
		r.lockRow = " FOR UPDATE"
	}
	return r
}

// DB exposes the handle so callers can open a transaction spanning
// several Tx methods.
func (r *DecisionRepo) DB() *sql.DB { return r.db }

const decisionColumns = `id, title, description, status, created_at, decided_at, decided_by`

// ListPending returns decisions still awaiting approval, oldest first,
// each with its options in display order.
func (r *DecisionRepo) ListPending(ctx context.Context) ([]model.Decision, error) {
	const q = `SELECT ` + decisionColumns + `
	           FROM decisions
	           WHERE status = 'pending'
	           ORDER BY created_at ASC, id ASC`
	return r.listWithOptions(ctx, q)
}

// ListAll returns every decision, newest first, with options.
func (r *DecisionRepo) ListAll(ctx context.Context) ([]model.Decision, error) {
	const q = `SELECT ` + decisionColumns + `
	           FROM decisions
	           ORDER BY created_at DESC, id DESC`
	return r.listWithOptions(ctx, q)
}

// Get returns one decision with its options.
func (r *DecisionRepo) Get(ctx context.Context, id uint64) (*model.Decision, error) {
	const q = `SELECT ` + decisionColumns + ` FROM decisions WHERE id = ?`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	list, err := scanDecisions(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrDecisionNotFound
	}
	if err := attachOptions(ctx, r.db, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// ListHistory returns decided and implemented decisions joined to their
// response and selected option.  Most recently decided first; rows
// without decided_at sort last.
func (r *DecisionRepo) ListHistory(ctx context.Context) ([]model.HistoryEntry, error) {
	const q = `SELECT d.id, d.title, d.description, d.status, d.created_at, d.decided_at, d.decided_by,
	                  r.comment, r.author, o.id, o.label, o.image_url
	           FROM decisions d
	           JOIN decision_responses r ON r.decision_id = d.id
	           JOIN decision_options o ON o.id = r.selected_option_id
	           WHERE d.status <> 'pending'
	           ORDER BY d.decided_at IS NULL, d.decided_at DESC, d.created_at DESC, d.id DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.HistoryEntry{}
	for rows.Next() {
		var (
			e                     model.HistoryEntry
			status                string
			desc, by, comment, im sql.NullString
			decidedAt             sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.Title, &desc, &status, &e.CreatedAt, &decidedAt, &by,
			&comment, &e.Author, &e.SelectedOptionID, &e.SelectedOptionLabel, &im); err != nil {
			return nil, err
		}
		e.Status = model.Status(status)
		e.Description = nullString(desc)
		e.DecidedAt = nullTime(decidedAt)
		e.DecidedBy = nullString(by)
		e.Comment = nullString(comment)
		e.SelectedOptionImage = nullString(im)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Create validates the input and inserts a pending decision followed by
// its options in the given order.  Either everything is stored or
// nothing is.
func (r *DecisionRepo) Create(ctx context.Context, title string, description *string, options []model.OptionInput) (id uint64, err error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, invalid("title", "title is required")
	}
	if err := validateOptions(options); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO decisions (title, description, status) VALUES (?, ?, 'pending')`,
		title, blankToNil(description))
	if err != nil {
		return 0, fmt.Errorf("insert decision: %w", err)
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	id = uint64(lastID)
	if err = insertOptionsTx(ctx, tx, id, options); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// Update rewrites the editable fields of a decision.  While the decision
// is pending its options are replaced wholesale: every existing option is
// deleted and the submitted list reinserted, so option ids never survive
// an edit.  Once decided the options are frozen and the submitted list is
// ignored; only the promotion decided -> implemented is accepted.  An
// empty status keeps the current one.  An unknown id is a no-op.
func (r *DecisionRepo) Update(ctx context.Context, id uint64, title string, description *string, status model.Status, options []model.OptionInput) (err error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return invalid("title", "title is required")
	}
	if status != "" && !status.Valid() {
		return invalid("status", "must be pending, decided or implemented")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var current string
	if err = tx.QueryRowContext(ctx, `SELECT status FROM decisions WHERE id = ?`+r.lockRow, id).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	cur := model.Status(current)
	if status == "" {
		status = cur
	}
	if !cur.CanEditTo(status) {
		return invalid("status", fmt.Sprintf("cannot change status from %s to %s", cur, status))
	}
	replaceOptions := cur == model.StatusPending
	if replaceOptions {
		if err = validateOptions(options); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE decisions SET title = ?, description = ?, status = ? WHERE id = ? AND status = ?`,
		title, blankToNil(description), string(status), id, current)
	if err != nil {
		return fmt.Errorf("update decision: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}

	if replaceOptions {
		if _, err = tx.ExecContext(ctx, `DELETE FROM decision_options WHERE decision_id = ?`, id); err != nil {
			return fmt.Errorf("delete options: %w", err)
		}
		if err = insertOptionsTx(ctx, tx, id, options); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Delete removes a decision together with its response and options.
// Deleting an unknown id is not an error.
func (r *DecisionRepo) Delete(ctx context.Context, id uint64) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	// responses reference options, so they go first
	for _, q := range []string{
		`DELETE FROM decision_responses WHERE decision_id = ?`,
		`DELETE FROM decision_options WHERE decision_id = ?`,
		`DELETE FROM decisions WHERE id = ?`,
	} {
		if _, err = tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	return nil
}

// IsPendingTx reports whether the decision exists and is still pending,
// as seen by tx.  On MySQL the row stays locked until tx ends, so a
// concurrent approval waits here and then sees the decided status instead
// of deadlocking on the response insert.
func (r *DecisionRepo) IsPendingTx(ctx context.Context, tx *sql.Tx, decisionID uint64) (bool, error) {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM decisions WHERE id = ?`+r.lockRow, decisionID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return model.Status(status) == model.StatusPending, nil
}

// OptionBelongsTx reports whether optionID is an option of decisionID.
func (r *DecisionRepo) OptionBelongsTx(ctx context.Context, tx *sql.Tx, decisionID, optionID uint64) (bool, error) {
	var id uint64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM decision_options WHERE id = ? AND decision_id = ?`,
		optionID, decisionID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CreateResponseTx records the approval outcome.  A second response for
// the same decision violates the unique key and yields ErrAlreadyDecided.
func (r *DecisionRepo) CreateResponseTx(ctx context.Context, tx *sql.Tx, resp *model.Response) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO decision_responses (decision_id, selected_option_id, comment, author) VALUES (?, ?, ?, ?)`,
		resp.DecisionID, resp.SelectedOptionID, resp.Comment, resp.Author)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrAlreadyDecided
		}
		return fmt.Errorf("insert response: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	resp.ID = uint64(id)
	return nil
}

// MarkDecidedTx moves a pending decision to decided.  The update is
// conditioned on the current status, so when another transaction got
// there first no row matches and ErrAlreadyDecided is returned.
func (r *DecisionRepo) MarkDecidedTx(ctx context.Context, tx *sql.Tx, decisionID uint64, author string, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE decisions SET status = 'decided', decided_at = ?, decided_by = ? WHERE id = ? AND status = 'pending'`,
		at.UTC(), author, decisionID)
	if err != nil {
		return fmt.Errorf("mark decided: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyDecided
	}
	return nil
}

func (r *DecisionRepo) listWithOptions(ctx context.Context, q string) ([]model.Decision, error) {
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	list, err := scanDecisions(rows)
	if err != nil {
		return nil, err
	}
	if err := attachOptions(ctx, r.db, list); err != nil {
		return nil, err
	}
	return list, nil
}

// scanDecisions drains rows (decisionColumns) and closes them.
func scanDecisions(rows *sql.Rows) ([]model.Decision, error) {
	defer rows.Close()
	out := []model.Decision{}
	for rows.Next() {
		var (
			d         model.Decision
			status    string
			desc, by  sql.NullString
			decidedAt sql.NullTime
		)
		if err := rows.Scan(&d.ID, &d.Title, &desc, &status, &d.CreatedAt, &decidedAt, &by); err != nil {
			return nil, err
		}
		d.Status = model.Status(status)
		d.Description = nullString(desc)
		d.DecidedAt = nullTime(decidedAt)
		d.DecidedBy = nullString(by)
		d.Options = []model.Option{}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// attachOptions loads the options of every decision in list with one
// query and assigns them in sort_order, insertion order on ties.
func attachOptions(ctx context.Context, q queryer, list []model.Decision) error {
	if len(list) == 0 {
		return nil
	}
	idx := make(map[uint64]int, len(list))
	args := make([]any, 0, len(list))
	for i, d := range list {
		idx[d.ID] = i
		args = append(args, d.ID)
	}
	query := `SELECT id, decision_id, label, image_url, sort_order
	          FROM decision_options
	          WHERE decision_id IN (` + placeholders(len(args)) + `)
	          ORDER BY sort_order ASC, id ASC`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			o   model.Option
			img sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.DecisionID, &o.Label, &img, &o.SortOrder); err != nil {
			return err
		}
		o.ImageURL = nullString(img)
		if i, ok := idx[o.DecisionID]; ok {
			list[i].Options = append(list[i].Options, o)
		}
	}
	return rows.Err()
}

// insertOptionsTx inserts options for decisionID in a single statement.
// A missing sort_order takes the option's position.
func insertOptionsTx(ctx context.Context, tx *sql.Tx, decisionID uint64, options []model.OptionInput) error {
	query := `INSERT INTO decision_options (decision_id, label, image_url, sort_order) VALUES `
	args := make([]any, 0, len(options)*4)
	for i, o := range options {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		order := i
		if o.SortOrder != nil {
			order = *o.SortOrder
		}
		args = append(args, decisionID, strings.TrimSpace(o.Label), blankToNil(o.ImageURL), order)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert options: %w", err)
	}
	return nil
}

func validateOptions(options []model.OptionInput) error {
	if len(options) == 0 {
		return invalid("options", "at least one option is required")
	}
	for i, o := range options {
		if strings.TrimSpace(o.Label) == "" {
			return invalid(fmt.Sprintf("options[%d].label", i), "label is required")
		}
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
