// Package redisstore implements store.Store over Redis: each key becomes a
// hash of {value, created_at, updated_at} under a fixed key prefix, so
// GetAll/Clear can SCAN just this store's namespace without touching
// unrelated keys sharing the Redis instance.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tternquist/districache/internal/store"
)

const keyPrefix = "districache:kv:"

func wireKey(key string) string { return keyPrefix + key }

// Store is a Redis-backed store.Store.
type Store struct {
	client redis.UniversalClient
}

// New wraps an existing redis client. Use NewFromAddr to dial one directly.
func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// NewFromAddr dials a single-node Redis client at addr (host:port).
func NewFromAddr(addr string) *Store {
	return New(redis.NewClient(&redis.Options{Addr: addr}))
}

var _ store.Store = (*Store)(nil)

func (s *Store) Save(ctx context.Context, key, value string) (bool, error) {
	now := time.Now().Unix()
	wk := wireKey(key)

	created := now
	if existing, err := s.client.HGet(ctx, wk, "created_at").Result(); err == nil {
		if v, perr := strconv.ParseInt(existing, 10, 64); perr == nil {
			created = v
		}
	}

	err := s.client.HSet(ctx, wk, map[string]any{
		"value":      value,
		"created_at": created,
		"updated_at": now,
	}).Err()
	if err != nil {
		return false, fmt.Errorf("redisstore: save %q: %w", key, err)
	}
	return true, nil
}

func (s *Store) Fetch(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.HGet(ctx, wireKey(key), "value").Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redisstore: fetch %q: %w", key, err)
	}
	return val, true, nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, wireKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: delete %q: %w", key, err)
	}
	return n > 0, nil
}

func (s *Store) GetAll(ctx context.Context) ([]store.Row, error) {
	var cursor uint64
	out := make([]store.Row, 0)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", 1000).Result()
		if err != nil {
			return nil, fmt.Errorf("redisstore: get-all scan: %w", err)
		}
		for _, wk := range keys {
			vals, err := s.client.HGetAll(ctx, wk).Result()
			if err != nil {
				return nil, fmt.Errorf("redisstore: get-all hgetall %q: %w", wk, err)
			}
			row := store.Row{Key: wk[len(keyPrefix):], Value: vals["value"]}
			if v, err := strconv.ParseInt(vals["created_at"], 10, 64); err == nil {
				row.CreatedAt = v
			}
			if v, err := strconv.ParseInt(vals["updated_at"], 10, 64); err == nil {
				row.UpdatedAt = v
			}
			out = append(out, row)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

func (s *Store) Clear(ctx context.Context) (bool, error) {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", 1000).Result()
		if err != nil {
			return false, fmt.Errorf("redisstore: clear scan: %w", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return false, fmt.Errorf("redisstore: clear del: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return true, nil
}
