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

	"github.com/storyloom/storyloom/internal/runner"
)

// saveTTL is how long an untouched saved game is retained.
const saveTTL = 30 * 24 * time.Hour

// RedisStorage implements Storage using Redis for saved games and the
// filesystem for story definitions.
type RedisStorage struct {
	client  *redis.Client
	logger  *slog.Logger
	dataDir string
}

var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a Redis storage instance.
func NewRedisStorage(redisURL string, dataDir string, logger *slog.Logger) *RedisStorage {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})

	if dataDir == "" {
		dataDir = "./data"
	}

	return &RedisStorage{
		client:  rdb,
		logger:  logger,
		dataDir: dataDir,
	}
}

func (r *RedisStorage) Ping(ctx context.Context) error {
	cmd := r.client.Ping(ctx)
	if err := cmd.Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	return nil
}

func saveKey(id uuid.UUID) string {
	return "savegame:" + id.String()
}

func (r *RedisStorage) SaveGame(ctx context.Context, id uuid.UUID, data *runner.SaveData) error {
	blob, err := json.Marshal(data)
	if err != nil {
		r.logger.Error("Failed to marshal save data", "uuid", id, "error", err)
		return fmt.Errorf("failed to marshal save data: %w", err)
	}

	if err := r.client.Set(ctx, saveKey(id), string(blob), saveTTL).Err(); err != nil {
		r.logger.Error("Failed to save game", "uuid", id, "error", err)
		return fmt.Errorf("failed to save game: %w", err)
	}
	return nil
}

func (r *RedisStorage) LoadGame(ctx context.Context, id uuid.UUID) (*runner.SaveData, error) {
	cmd := r.client.Get(ctx, saveKey(id))
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Warn("Saved game not found", "uuid", id)
			return nil, nil
		}
		r.logger.Error("Failed to load game", "uuid", id, "error", err)
		return nil, fmt.Errorf("failed to load game: %w", err)
	}

	var data runner.SaveData
	if err := json.Unmarshal([]byte(cmd.Val()), &data); err != nil {
		r.logger.Error("Failed to unmarshal save data", "uuid", id, "error", err)
		return nil, fmt.Errorf("failed to unmarshal save data: %w", err)
	}
	return &data, nil
}

func (r *RedisStorage) DeleteGame(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, saveKey(id)).Err(); err != nil {
		r.logger.Error("Failed to delete saved game", "uuid", id, "error", err)
		return fmt.Errorf("failed to delete saved game: %w", err)
	}
	return nil
}

// WaitForConnection polls Redis until it responds or the context ends.
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
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}
