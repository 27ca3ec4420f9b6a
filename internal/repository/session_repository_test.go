package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/decision-board/internal/model"
	"github.com/iliyamo/decision-board/internal/repository"
	"github.com/iliyamo/decision-board/internal/testutil"
)

func TestSessionRepo(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	sessions := repository.NewSessionRepo(db)
	dev := testutil.CreateUser(t, db, "dev@example.com", model.RoleDeveloper)

	t.Run("Should resolve an issued token to its owner", func(t *testing.T) {
		token, err := sessions.Create(ctx, dev.ID)
		require.NoError(t, err)
		assert.Len(t, token, 64)

		u, err := sessions.Resolve(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, dev.ID, u.ID)
		assert.Equal(t, "dev@example.com", u.Email)
		assert.Equal(t, model.RoleDeveloper, u.Role)
		assert.Empty(t, u.PasswordHash)
	})
	t.Run("Should not resolve after destroy", func(t *testing.T) {
		token, err := sessions.Create(ctx, dev.ID)
		require.NoError(t, err)
		require.NoError(t, sessions.Destroy(ctx, token))

		_, err = sessions.Resolve(ctx, token)
		assert.ErrorIs(t, err, repository.ErrSessionNotFound)
	})
	t.Run("Should treat destroy of an unknown token as success", func(t *testing.T) {
		assert.NoError(t, sessions.Destroy(ctx, "does-not-exist"))
		assert.NoError(t, sessions.Destroy(ctx, ""))
	})
	t.Run("Should reject unknown and empty tokens", func(t *testing.T) {
		_, err := sessions.Resolve(ctx, "nope")
		assert.ErrorIs(t, err, repository.ErrSessionNotFound)
		_, err = sessions.Resolve(ctx, "")
		assert.ErrorIs(t, err, repository.ErrSessionNotFound)
	})
	t.Run("Should keep concurrent sessions independent", func(t *testing.T) {
		a, err := sessions.Create(ctx, dev.ID)
		require.NoError(t, err)
		b, err := sessions.Create(ctx, dev.ID)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)

		require.NoError(t, sessions.Destroy(ctx, a))
		u, err := sessions.Resolve(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, dev.ID, u.ID)
	})
	t.Run("Should destroy every session of a user", func(t *testing.T) {
		partner := testutil.CreateUser(t, db, "p@example.com", model.RolePartner)
		for i := 0; i < 3; i++ {
			_, err := sessions.Create(ctx, partner.ID)
			require.NoError(t, err)
		}
		n, err := sessions.DestroyAllForUser(ctx, partner.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)
		assert.Equal(t, 0, testutil.CountRows(t, db, "sessions", "user_id = ?", partner.ID))
	})
}

func TestUserRepo(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	users := repository.NewUserRepo(db)

	t.Run("Should normalize email on create and lookup", func(t *testing.T) {
		id, err := users.Create(ctx, "  Dev@Example.COM ", "pw", model.RoleDeveloper, 4)
		require.NoError(t, err)
		u, err := users.GetByEmail(ctx, "dev@example.com")
		require.NoError(t, err)
		assert.Equal(t, id, u.ID)
		assert.Equal(t, "dev@example.com", u.Email)
		assert.NotEmpty(t, u.PasswordHash)
	})
	t.Run("Should report duplicate emails", func(t *testing.T) {
		_, err := users.Create(ctx, "dev@example.com", "pw", model.RolePartner, 4)
		assert.ErrorIs(t, err, repository.ErrEmailExists)
	})
	t.Run("Should reject unknown roles", func(t *testing.T) {
		_, err := users.Create(ctx, "x@example.com", "pw", model.Role("admin"), 4)
		assert.True(t, repository.IsValidation(err))
	})
	t.Run("Should return ErrUserNotFound", func(t *testing.T) {
		_, err := users.GetByEmail(ctx, "ghost@example.com")
		assert.ErrorIs(t, err, repository.ErrUserNotFound)
	})
}
