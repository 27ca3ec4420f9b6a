// Package testutil provides fixtures shared by package tests: an
// in-memory SQLite database carrying the production schema, seeded
// users and HTTP helpers.
package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/decision-board/internal/database"
	"github.com/iliyamo/decision-board/internal/model"
	"github.com/iliyamo/decision-board/internal/repository"
)

// TestPassword is the password of every user created by CreateUser.
const TestPassword = "correct horse"

// SetupTestDB opens a fresh in-memory database and applies all migrations.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err, "open sqlite")
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, database.DriverSQLite), "migrate")
	return db
}

// CreateUser inserts a user with TestPassword and returns it.
func CreateUser(t *testing.T, db *sql.DB, email string, role model.Role) model.User {
	t.Helper()
	users := repository.NewUserRepo(db)
	id, err := users.Create(context.Background(), email, TestPassword, role, bcrypt.MinCost)
	require.NoError(t, err, "create user")
	u, err := users.GetByID(context.Background(), id)
	require.NoError(t, err, "load user")
	return u
}

// Login creates a session for u and returns its token.
func Login(t *testing.T, db *sql.DB, u model.User) string {
	t.Helper()
	token, err := repository.NewSessionRepo(db).Create(context.Background(), u.ID)
	require.NoError(t, err, "create session")
	return token
}

// CreateDecision inserts a pending decision with the given option labels.
func CreateDecision(t *testing.T, db *sql.DB, title string, labels ...string) *model.Decision {
	t.Helper()
	opts := make([]model.OptionInput, 0, len(labels))
	for _, l := range labels {
		opts = append(opts, model.OptionInput{Label: l})
	}
	repo := repository.NewDecisionRepo(db)
	id, err := repo.Create(context.Background(), title, nil, opts)
	require.NoError(t, err, "create decision")
	d, err := repo.Get(context.Background(), id)
	require.NoError(t, err, "load decision")
	return d
}

// CountRows returns the number of rows in table matching where.
func CountRows(t *testing.T, db *sql.DB, table, where string, args ...any) int {
	t.Helper()
	q := "SELECT COUNT(*) FROM " + table
	if where != "" {
		q += " WHERE " + where
	}
	var n int
	require.NoError(t, db.QueryRow(q, args...).Scan(&n))
	return n
}

// MakeRequest creates an HTTP test request with an optional JSON body
// and session cookie.
func MakeRequest(method, path string, body any, cookieName, token string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, http.NoBody)
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	}
	return req
}

// DecodeJSON decodes the recorded response body into v.
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v), "decode body: %s", w.Body.String())
}
