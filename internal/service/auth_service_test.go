package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fbs/internal/config"
	"fbs/internal/domain"
	"fbs/internal/models"
	"fbs/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuthService(t *testing.T, attempts int) (*AuthService, *repository.MemorySessionRepository) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	sessions := repository.NewMemorySessionRepository()
	svc := NewAuthService(sessions, config.AuthConfig{
		Users: []models.User{
			{ID: "u1", Username: "Alice", Email: "alice@campus.edu", PasswordHash: string(hash)},
		},
		SessionTTL:      time.Hour,
		LockoutAttempts: attempts,
		LockoutWindow:   time.Minute,
	}, testLogger())
	return svc, sessions
}

func TestAuth_LoginResolveLogout(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t, 3)

	session, err := svc.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "alice@campus.edu", session.Email)
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, time.Minute)

	id, err := svc.Resolve(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, models.Identity{UserID: "u1", Email: "alice@campus.edu"}, id)

	require.NoError(t, svc.Logout(ctx, session.Token))

	_, err = svc.Resolve(ctx, session.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.ErrorIs(t, svc.Logout(ctx, session.Token), domain.ErrUnauthorized)
}

func TestAuth_Lockout(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t, 3)

	_, err := svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.Login(ctx, "ALICE", "wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, domain.ErrAccountLocked)

	// even the right password is refused while locked
	_, err = svc.Login(ctx, "alice", "s3cret")
	assert.ErrorIs(t, err, domain.ErrAccountLocked)
}

func TestAuth_SuccessResetsFailures(t *testing.T) {
	ctx := context.Background()
	svc, sessions := newAuthService(t, 3)

	_, err := svc.Login(ctx, "alice", "wrong")
	require.Error(t, err)

	_, err = svc.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)

	count, err := sessions.FailureCount(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAuth_UnknownUserAndEmptyInput(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t, 3)

	_, err := svc.Login(ctx, "mallory", "whatever")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Login(ctx, "", "")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = svc.Resolve(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.Resolve(ctx, "no-such-token")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuth_ExpiredSession(t *testing.T) {
	ctx := context.Background()
	svc, sessions := newAuthService(t, 3)

	require.NoError(t, sessions.SaveSession(ctx, &models.Session{
		Token: "old", UserID: "u1", Email: "alice@campus.edu",
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	_, err := svc.Resolve(ctx, "old")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}
