package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fbs/internal/config"
	"fbs/internal/domain"
	"fbs/internal/metrics"
	"fbs/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// AuthService issues bearer sessions for configured users and locks an
// account out after repeated failed logins.
type AuthService struct {
	sessions domain.SessionRepository
	users    map[string]models.User
	ttl      time.Duration
	attempts int
	window   time.Duration
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewAuthService(sessions domain.SessionRepository, cfg config.AuthConfig, logger *zerolog.Logger) *AuthService {
	users := make(map[string]models.User, len(cfg.Users))
	for _, u := range cfg.Users {
		if u.ID == "" {
			u.ID = u.Username
		}
		users[strings.ToLower(u.Username)] = u
	}

	s := &AuthService{
		sessions: sessions,
		users:    users,
		ttl:      cfg.SessionTTL,
		attempts: cfg.LockoutAttempts,
		window:   cfg.LockoutWindow,
		logger:   logger,
		now:      time.Now,
	}
	if s.ttl <= 0 {
		s.ttl = 12 * time.Hour
	}
	if s.attempts <= 0 {
		s.attempts = 5
	}
	if s.window <= 0 {
		s.window = 15 * time.Minute
	}
	return s
}

func lockoutKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*models.Session, error) {
	key := lockoutKey(username)
	if key == "" || password == "" {
		return nil, domain.NewValidationError("credentials", "username and password are required")
	}

	failures, err := s.sessions.FailureCount(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failure count: %w", err)
	}
	if failures >= s.attempts {
		s.logger.Warn().Str("username", key).Int("failures", failures).Msg("login rejected: account locked")
		return nil, domain.ErrAccountLocked
	}

	user, ok := s.users[key]
	if !ok || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, s.registerFailure(ctx, key)
	}

	if err := s.sessions.ResetFailures(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("username", key).Msg("reset login failures")
	}

	session := &models.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		Email:     user.Email,
		ExpiresAt: s.now().Add(s.ttl).UTC(),
	}
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user logged in")
	return session, nil
}

func (s *AuthService) registerFailure(ctx context.Context, key string) error {
	metrics.IncLoginFailure()
	count, err := s.sessions.RegisterFailure(ctx, key, s.window)
	if err != nil {
		return fmt.Errorf("register login failure: %w", err)
	}
	s.logger.Warn().Str("username", key).Int("failures", count).Msg("login failed")
	if count >= s.attempts {
		return domain.ErrAccountLocked
	}
	return domain.ErrUnauthorized
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	if _, err := s.Resolve(ctx, token); err != nil {
		return err
	}
	if err := s.sessions.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Resolve maps a bearer token to the identity that owns it.
func (s *AuthService) Resolve(ctx context.Context, token string) (models.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.Identity{}, domain.ErrUnauthorized
	}
	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return models.Identity{}, domain.ErrUnauthorized
		}
		return models.Identity{}, fmt.Errorf("get session: %w", err)
	}
	if session.Expired(s.now()) {
		_ = s.sessions.DeleteSession(ctx, token)
		return models.Identity{}, domain.ErrUnauthorized
	}
	return session.Identity(), nil
}
