package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/narrative-engine/pkg/storage"
	"github.com/jwebster45206/narrative-engine/pkg/world"
)

const (
	stateKeyPrefix = "session:"
	stateTTL       = 24 * time.Hour
)

// RedisStorage implements the Storage interface using Redis as the
// key-value blob store for session world state.
type RedisStorage struct {
	client *redis.Client
	logger *slog.Logger
}

var _ storage.Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis storage instance.
func NewRedisStorage(redisAddr string, logger *slog.Logger) *RedisStorage {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	return &RedisStorage{
		client: rdb,
		logger: logger,
	}
}

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

func (r *RedisStorage) SaveState(ctx context.Context, id uuid.UUID, st *world.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		r.logger.Error("Failed to marshal world state", "session_id", id, "error", err)
		return fmt.Errorf("failed to marshal world state: %w", err)
	}

	key := stateKeyPrefix + id.String()
	if err := r.client.Set(ctx, key, string(data), stateTTL).Err(); err != nil {
		r.logger.Error("Failed to save world state", "session_id", id, "error", err)
		return fmt.Errorf("failed to save world state: %w", err)
	}

	return nil
}

func (r *RedisStorage) LoadState(ctx context.Context, id uuid.UUID) (*world.State, error) {
	key := stateKeyPrefix + id.String()
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Warn("World state not found", "session_id", id)
			return nil, nil
		}
		r.logger.Error("Failed to load world state", "session_id", id, "error", err)
		return nil, fmt.Errorf("failed to load world state: %w", err)
	}

	if data == "" {
		r.logger.Warn("World state not found", "session_id", id)
		return nil, nil
	}

	var st world.State
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		r.logger.Error("Failed to unmarshal world state", "session_id", id, "error", err)
		return nil, fmt.Errorf("failed to unmarshal world state: %w", err)
	}

	return &st, nil
}

func (r *RedisStorage) DeleteState(ctx context.Context, id uuid.UUID) error {
	key := stateKeyPrefix + id.String()
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logger.Error("Failed to delete world state", "session_id", id, "error", err)
		return fmt.Errorf("failed to delete world state: %w", err)
	}
	return nil
}
