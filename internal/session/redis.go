package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pharmacy-service/internal/apperr"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps sessions as JSON under session:<id> with a TTL
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects to Redis and pings it
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindConnection, err, "redis ping failed")
	}

	return &RedisStore{rdb: rdb}, nil
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.rdb.Close()
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return apperr.New(apperr.KindInternal, "session", "session %s already expired", s.ID)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.rdb.Set(ctx, key(s.ID), data, ttl).Err(); err != nil {
		return apperr.Wrap(apperr.KindConnection, err, "failed to save session")
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConnection, err, "failed to load session")
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, key(id)).Err(); err != nil {
		return apperr.Wrap(apperr.KindConnection, err, "failed to delete session")
	}
	return nil
}
