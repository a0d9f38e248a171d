package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"stocks-watcher/internal/config"
)

// RedisPriceStore keeps the price cache in Redis, one JSON value per ticker.
type RedisPriceStore struct {
	client *redis.Client
	prefix string
}

// NewRedisPriceStore connects to Redis and verifies the connection.
func NewRedisPriceStore(ctx context.Context, cfg config.RedisConfig) (*RedisPriceStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis.addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisPriceStoreWithClient(client, cfg.KeyPrefix), nil
}

// NewRedisPriceStoreWithClient wraps an existing client.
func NewRedisPriceStoreWithClient(client *redis.Client, prefix string) *RedisPriceStore {
	return &RedisPriceStore{client: client, prefix: prefix}
}

// Close releases the Redis connection pool.
func (r *RedisPriceStore) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *RedisPriceStore) key(ticker string) string {
	return r.prefix + ticker
}

// SetPrice overwrites the cached snapshot. A single SET keeps the record whole.
func (r *RedisPriceStore) SetPrice(ctx context.Context, snapshot PriceSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("%w: marshal price %s: %w", ErrStorage, snapshot.Ticker, err)
	}
	if err := r.client.Set(ctx, r.key(snapshot.Ticker), payload, 0).Err(); err != nil {
		return fmt.Errorf("%w: set price %s: %w", ErrStorage, snapshot.Ticker, err)
	}
	return nil
}

// GetPrice returns the cached snapshot, or nil when the key is absent.
func (r *RedisPriceStore) GetPrice(ctx context.Context, ticker string) (*PriceSnapshot, error) {
	payload, err := r.client.Get(ctx, r.key(ticker)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get price %s: %w", ErrStorage, ticker, err)
	}

	var snap PriceSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("%w: decode price %s: %w", ErrStorage, ticker, err)
	}
	return &snap, nil
}

var _ PriceStore = (*RedisPriceStore)(nil)
