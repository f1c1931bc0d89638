package identity

import (
	"context"
	"testing"
	"time"

	"github.com/biihlive/authcodes/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore()

	user := &domain.User{Email: "Ana@Example.com", PasswordHash: "h1"}
	require.NoError(t, store.CreateUser(ctx, user))
	require.NotEmpty(t, user.ID)
	assert.ErrorIs(t, store.CreateUser(ctx, &domain.User{Email: "ana@example.com"}), domain.ErrUserExists)

	got, err := store.GetUserByEmail(ctx, " ana@example.com ")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	require.NoError(t, store.UpdatePassword(ctx, user.ID, "h2"))
	require.NoError(t, store.MarkEmailVerified(ctx, user.ID, time.Now()))
	got, err = store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "h2", got.PasswordHash)
	assert.True(t, got.EmailVerified)
	assert.NotNil(t, got.VerifiedAt)

	_, err = store.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.ErrorIs(t, store.UpdatePassword(ctx, "missing", "x"), domain.ErrUserNotFound)
}

func TestSessionStore_Revoke(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	expires := time.Now().Add(time.Hour)

	require.NoError(t, store.StoreSession(ctx, &domain.Session{UserID: "u1", TokenID: "a", ExpiresAt: expires}))
	require.NoError(t, store.StoreSession(ctx, &domain.Session{UserID: "u1", TokenID: "b", ExpiresAt: expires}))
	require.NoError(t, store.StoreSession(ctx, &domain.Session{UserID: "u2", TokenID: "c", ExpiresAt: expires}))

	n, err := store.RevokeSessionsByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = store.RevokeSessionsByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)

	s, err := store.GetSessionByTokenID(ctx, "a")
	require.NoError(t, err)
	assert.True(t, s.IsRevoked)
	s, err = store.GetSessionByTokenID(ctx, "c")
	require.NoError(t, err)
	assert.False(t, s.IsRevoked)
}
