package repository

import (
	"context"
	"testing"
	"time"

	"fbs/internal/domain"
	"fbs/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionRepository(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	t.Run("SaveAndGetSession", func(t *testing.T) {
		session := &models.Session{Token: "abc", UserID: "u1", Email: "a@campus.edu", ExpiresAt: time.Now().Add(time.Hour)}
		require.NoError(t, repo.SaveSession(ctx, session))

		got, err := repo.GetSession(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, "a@campus.edu", got.Email)
	})

	t.Run("ExpiredSession", func(t *testing.T) {
		session := &models.Session{Token: "old", ExpiresAt: time.Now().Add(-time.Second)}
		require.NoError(t, repo.SaveSession(ctx, session))

		_, err := repo.GetSession(ctx, "old")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("DeleteSession", func(t *testing.T) {
		require.NoError(t, repo.DeleteSession(ctx, "abc"))
		_, err := repo.GetSession(ctx, "abc")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Failures", func(t *testing.T) {
		window := 50 * time.Millisecond
		for i := 1; i <= 3; i++ {
			count, err := repo.RegisterFailure(ctx, "alice", window)
			require.NoError(t, err)
			assert.Equal(t, i, count)
		}

		count, _ := repo.FailureCount(ctx, "alice")
		assert.Equal(t, 3, count)

		time.Sleep(window + 10*time.Millisecond)
		count, _ = repo.FailureCount(ctx, "alice")
		assert.Equal(t, 0, count)

		count, _ = repo.RegisterFailure(ctx, "alice", window)
		assert.Equal(t, 1, count)

		require.NoError(t, repo.ResetFailures(ctx, "alice"))
		count, _ = repo.FailureCount(ctx, "alice")
		assert.Equal(t, 0, count)
	})
}
