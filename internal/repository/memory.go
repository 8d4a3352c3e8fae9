package repository

import (
	"context"
	"sync"
	"time"

	"fbs/internal/domain"
	"fbs/internal/models"
)

type MemorySessionRepository struct {
	sessions sync.Map
	mu       sync.Mutex
	failures map[string]*failureEntry
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		failures: make(map[string]*failureEntry),
	}
}

func (r *MemorySessionRepository) SaveSession(ctx context.Context, session *models.Session) error {
	stored := *session
	r.sessions.Store(session.Token, &stored)
	return nil
}

func (r *MemorySessionRepository) GetSession(ctx context.Context, token string) (*models.Session, error) {
	val, ok := r.sessions.Load(token)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	session := *val.(*models.Session)
	if session.Expired(time.Now()) {
		r.sessions.Delete(token)
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (r *MemorySessionRepository) DeleteSession(ctx context.Context, token string) error {
	r.sessions.Delete(token)
	return nil
}

type failureEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemorySessionRepository) RegisterFailure(ctx context.Context, key string, window time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	entry, ok := r.failures[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &failureEntry{expiresAt: now.Add(window)}
		r.failures[key] = entry
	}
	entry.count++
	return entry.count, nil
}

func (r *MemorySessionRepository) FailureCount(ctx context.Context, key string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.failures[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return 0, nil
	}
	return entry.count, nil
}

func (r *MemorySessionRepository) ResetFailures(ctx context.Context, key string) error {
	r.mu.Lock()
	delete(r.failures, key)
	r.mu.Unlock()
	return nil
}
