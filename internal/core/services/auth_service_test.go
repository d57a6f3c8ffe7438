package services

import (
	"context"
	"testing"
	"time"

	"locallive/internal/core/domain"
	"locallive/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuth() AuthService {
	return NewAuthService(memory.NewMemoryUserRepository(), "test-secret", 15*time.Minute, time.Hour)
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	auth := newTestAuth()

	user, err := auth.Register(ctx, " Baker@Example.com ", "secret123", "Sarah")
	require.NoError(t, err)
	assert.Equal(t, "baker@example.com", user.Email)
	assert.NotEqual(t, []byte("secret123"), user.PasswordHash)

	got, err := auth.Login(ctx, "baker@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = auth.Login(ctx, "baker@example.com", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)

	_, err = auth.Login(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)

	_, err = auth.Register(ctx, "baker@example.com", "another1", "")
	assert.ErrorIs(t, err, domain.ErrUserExists)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	ctx := context.Background()
	auth := newTestAuth()

	_, err := auth.Register(ctx, "not-an-email", "secret123", "")
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)

	_, err = auth.Register(ctx, "a@b.c", "123", "")
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)
}

func TestAuthService_Tokens(t *testing.T) {
	auth := newTestAuth()
	user := &domain.User{ID: "u1", Email: "cookie@example.com"}

	access, err := auth.GenerateToken(user)
	require.NoError(t, err)
	claims, err := auth.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("u1"), claims.UserID)
	assert.Equal(t, "cookie", claims.Username)

	refresh, err := auth.GenerateRefreshToken(user.ID)
	require.NoError(t, err)
	_, err = auth.ValidateToken(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken, "refresh tokens are not access tokens")
	_, err = auth.ValidateRefreshToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	claims, err = auth.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("u1"), claims.UserID)

	_, err = auth.ValidateToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_ExpiredToken(t *testing.T) {
	auth := NewAuthService(memory.NewMemoryUserRepository(), "test-secret", -time.Minute, time.Hour)

	token, err := auth.GenerateToken(&domain.User{ID: "u1"})
	require.NoError(t, err)
	_, err = auth.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenAuthProvider(t *testing.T) {
	ctx := context.Background()
	auth := newTestAuth()
	user, err := auth.Register(ctx, "emma@example.com", "secret123", "")
	require.NoError(t, err)
	token, err := auth.GenerateToken(user)
	require.NoError(t, err)

	provider := NewTokenAuthProvider(auth, token)
	var states []domain.AuthState
	unsubscribe := provider.OnAuthStateChanged(func(s domain.AuthState) {
		states = append(states, s)
	})

	require.Len(t, states, 1)
	assert.True(t, states[0].IsLoading)

	resolved, err := provider.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
	require.Len(t, states, 2)
	assert.False(t, states[1].IsLoading)
	assert.Equal(t, user.ID, states[1].User.ID)

	require.NoError(t, provider.SignOut(ctx))
	require.Len(t, states, 3)
	assert.Nil(t, states[2].User)

	unsubscribe()
	provider.SetUser(user)
	assert.Len(t, states, 3)
}

func TestTokenAuthProvider_BadToken(t *testing.T) {
	provider := NewTokenAuthProvider(newTestAuth(), "garbage")

	_, err := provider.Resolve(context.Background())
	assert.ErrorIs(t, err, ErrInvalidToken)
	state := provider.State()
	assert.False(t, state.IsLoading)
	assert.Nil(t, state.User)
}
