package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/inventory/internal/core/domain"
	"github.com/rl1809/inventory/internal/port"
)

var _ port.SnapshotStore = (*RedisSnapshotStore)(nil)

const defaultSnapshotKey = "inventory:snapshot"

// RedisSnapshotStore keeps the product snapshot under one key, with the time it was
// taken alongside so operators can tell how stale it is.
type RedisSnapshotStore struct {
	client *redis.Client
	key    string
}

func NewRedisSnapshotStore(client *redis.Client, key string) *RedisSnapshotStore {
	if key == "" {
		key = defaultSnapshotKey
	}
	return &RedisSnapshotStore{client: client, key: key}
}

func (r *RedisSnapshotStore) takenAtKey() string {
	return r.key + ":taken_at"
}

func (r *RedisSnapshotStore) Save(ctx context.Context, products map[string]domain.Product) error {
	takenAt := time.Now()
	data, err := encodeSnapshot(products, takenAt)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key, data, 0)
		pipe.Set(ctx, r.takenAtKey(), takenAt.UTC().Format(time.RFC3339), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (r *RedisSnapshotStore) Load(ctx context.Context) (map[string]domain.Product, bool, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot: %w", err)
	}

	env, err := decodeSnapshot(data)
	if err != nil {
		return nil, false, err
	}
	return env.Products, true, nil
}

// TakenAt reports when the stored snapshot was saved.
func (r *RedisSnapshotStore) TakenAt(ctx context.Context) (time.Time, bool, error) {
	raw, err := r.client.Get(ctx, r.takenAtKey()).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("snapshot time: %w", err)
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("snapshot time: %w", err)
	}
	return t, true, nil
}
