package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/decision-board/internal/model"
	"github.com/iliyamo/decision-board/internal/utils"
)

// ErrSessionNotFound is returned by Resolve when the token matches no
// session, either because it never existed or because it was destroyed.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepo issues, resolves and destroys opaque session tokens.
//
// Sessions have no server-side expiry: a row lives until Destroy (or
// the owning user is deleted).  The seven day lifetime is carried only by
// the cookie handed to the client.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Create issues a new random token for userID and stores it.  A user may
// hold any number of concurrent sessions.
func (r *SessionRepo) Create(ctx context.Context, userID uint64) (string, error) {
	token, err := utils.NewSessionToken()
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	if _, err := r.DB.ExecContext(ctx,
		"INSERT INTO sessions (user_id, session_token) VALUES (?,?)",
		userID, token); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve returns the user owning token.
func (r *SessionRepo) Resolve(ctx context.Context, token string) (model.User, error) {
	if token == "" {
		return model.User{}, ErrSessionNotFound
	}
	const q = `SELECT u.id, u.email, u.role, u.created_at
	           FROM sessions s
	           JOIN users u ON u.id = s.user_id
	           WHERE s.session_token = ?
	           LIMIT 1`
	var (
		u    model.User
		role string
	)
	err := r.DB.QueryRowContext(ctx, q, token).Scan(&u.ID, &u.Email, &role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrSessionNotFound
		}
		return model.User{}, err
	}
	u.Role = model.Role(role)
	return u, nil
}

// Destroy deletes the session for token.  Unknown tokens are not an error.
func (r *SessionRepo) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	_, err := r.DB.ExecContext(ctx, "DELETE FROM sessions WHERE session_token = ?", token)
	return err
}

// DestroyAllForUser deletes every session of userID and returns how many
// were removed.
func (r *SessionRepo) DestroyAllForUser(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = ?", userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
