package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"fbs/internal/domain"
	"fbs/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverSessionRepository serves sessions from primary (Redis) and switches to
// fallback (memory) when primary errors, retrying primary once per recoveryInterval.
type FailoverSessionRepository struct {
	primary   domain.SessionRepository
	fallback  domain.SessionRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverSessionRepository(primary, fallback domain.SessionRepository, logger *zerolog.Logger) *FailoverSessionRepository {
	return &FailoverSessionRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// usePrimary reports whether the call should go to primary.
func (r *FailoverSessionRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	// Try to recover after 1 minute
	last := time.Unix(0, r.lastCheck.Load())
	if time.Since(last) > recoveryInterval {
		r.lastCheck.Store(time.Now().UnixNano())
		return true
	}
	return false
}

// observe records the outcome of a primary call; true means the result can be returned as is.
func (r *FailoverSessionRepository) observe(err error) bool {
	if err == nil || errors.Is(err, domain.ErrSessionNotFound) {
		if r.isDown.Swap(false) {
			r.logger.Info().Msg("Primary session repository recovered")
		}
		return true
	}
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary session repository failed, falling back to memory")
	}
	r.lastCheck.Store(time.Now().UnixNano())
	return false
}

func (r *FailoverSessionRepository) SaveSession(ctx context.Context, session *models.Session) error {
	if r.usePrimary() {
		if err := r.primary.SaveSession(ctx, session); r.observe(err) {
			return nil
		}
	}
	return r.fallback.SaveSession(ctx, session)
}

func (r *FailoverSessionRepository) GetSession(ctx context.Context, token string) (*models.Session, error) {
	if r.usePrimary() {
		session, err := r.primary.GetSession(ctx, token)
		if r.observe(err) {
			if err == nil {
				return session, nil
			}
			// sessions saved during an outage only exist in fallback
			return r.fallback.GetSession(ctx, token)
		}
	}
	return r.fallback.GetSession(ctx, token)
}

func (r *FailoverSessionRepository) DeleteSession(ctx context.Context, token string) error {
	if err := r.fallback.DeleteSession(ctx, token); err != nil {
		return err
	}
	if r.usePrimary() {
		r.observe(r.primary.DeleteSession(ctx, token))
	}
	return nil
}

func (r *FailoverSessionRepository) RegisterFailure(ctx context.Context, key string, window time.Duration) (int, error) {
	if r.usePrimary() {
		count, err := r.primary.RegisterFailure(ctx, key, window)
		if r.observe(err) {
			return count, nil
		}
	}
	return r.fallback.RegisterFailure(ctx, key, window)
}

func (r *FailoverSessionRepository) FailureCount(ctx context.Context, key string) (int, error) {
	if r.usePrimary() {
		count, err := r.primary.FailureCount(ctx, key)
		if r.observe(err) {
			return count, nil
		}
	}
	return r.fallback.FailureCount(ctx, key)
}

func (r *FailoverSessionRepository) ResetFailures(ctx context.Context, key string) error {
	if err := r.fallback.ResetFailures(ctx, key); err != nil {
		return err
	}
	if r.usePrimary() {
		r.observe(r.primary.ResetFailures(ctx, key))
	}
	return nil
}
