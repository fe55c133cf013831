package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"orderflow/internal/model"
)

// RedisClient is the subset of the go-redis client used by CachedStore.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// CachedStore serves Get from Redis for orders that reached a terminal
// status. Pending orders are never cached because they still change. Redis
// failures fall back to the wrapped store.
type CachedStore struct {
	OrderStore
	client    RedisClient
	ttl       time.Duration
	keyPrefix string
	group     singleflight.Group
}

func NewCachedStore(next OrderStore, client RedisClient, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedStore{
		OrderStore: next,
		client:     client,
		ttl:        ttl,
		keyPrefix:  "order:",
	}
}

func (c *CachedStore) Get(ctx context.Context, id int64) (model.Order, error) {
	key := c.keyPrefix + strconv.FormatInt(id, 10)

	if order, ok := c.lookup(ctx, key); ok {
		return order, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		order, err := c.OrderStore.Get(ctx, id)
		if err != nil {
			return model.Order{}, err
		}
		if order.PaymentStatus.Terminal() {
			c.fill(ctx, key, order)
		}
		return order, nil
	})
	if err != nil {
		return model.Order{}, err
	}
	return v.(model.Order), nil
}

func (c *CachedStore) lookup(ctx context.Context, key string) (model.Order, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("order cache read failed", "key", key, "error", err)
		}
		return model.Order{}, false
	}

	var order model.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		slog.Warn("order cache entry corrupt", "key", key, "error", err)
		return model.Order{}, false
	}
	return order, true
}

func (c *CachedStore) fill(ctx context.Context, key string, order model.Order) {
	raw, err := json.Marshal(order)
	if err != nil {
		slog.Warn("order cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		slog.Warn("order cache write failed", "key", key, "error", err)
	}
}
