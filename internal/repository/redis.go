package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fbs/internal/config"
	"fbs/internal/domain"
	"fbs/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisSessionRepository struct {
	client *redis.Client
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisSessionRepository(client *redis.Client) *RedisSessionRepository {
	return &RedisSessionRepository{client: client}
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

func failureKey(key string) string {
	return fmt.Sprintf("login_failures:%s", key)
}

func (r *RedisSessionRepository) SaveSession(ctx context.Context, session *models.Session) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if session.ExpiresAt.IsZero() {
		ttl = 0
	} else if ttl <= 0 {
		return nil
	}

	if err := r.client.Set(ctx, sessionKey(session.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session in redis: %w", err)
	}
	return nil
}

func (r *RedisSessionRepository) GetSession(ctx context.Context, token string) (*models.Session, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if session.Expired(time.Now()) {
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (r *RedisSessionRepository) DeleteSession(ctx context.Context, token string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}

func (r *RedisSessionRepository) RegisterFailure(ctx context.Context, key string, window time.Duration) (int, error) {
	if r.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}
	k := failureKey(key)
	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment login failures: %w", err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, k, window).Err(); err != nil {
			return 0, fmt.Errorf("failed to set login failure window: %w", err)
		}
	}

	return int(count), nil
}

func (r *RedisSessionRepository) FailureCount(ctx context.Context, key string) (int, error) {
	if r.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}
	count, err := r.client.Get(ctx, failureKey(key)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get login failures: %w", err)
	}
	return count, nil
}

func (r *RedisSessionRepository) ResetFailures(ctx context.Context, key string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, failureKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to reset login failures: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
