package cart

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// CachedRepository serves product lookups from Redis before falling back to
// the wrapped repository. Cart reads and writes are never cached. Concurrent
// misses for the same key share one database lookup.
type CachedRepository struct {
	Repository
	Client *redis.Client
	TTL    time.Duration
	Log    zerolog.Logger

	group *singleflight.Group
}

// NewCachedRepository wraps repo with a Redis product cache.
func NewCachedRepository(repo Repository, client *redis.Client, ttl time.Duration, log zerolog.Logger) CachedRepository {
	return CachedRepository{Repository: repo, Client: client, TTL: ttl, Log: log, group: &singleflight.Group{}}
}

func productKey(productID uuid.UUID, variantID *uuid.UUID) string {
	key := "cart:product:" + productID.String()
	if variantID != nil {
		key += ":" + variantID.String()
	}
	return key
}

// LookupProduct returns the cached product when present. Redis failures fall
// through to the database.
func (c CachedRepository) LookupProduct(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (Product, error) {
	if c.Client == nil || c.TTL <= 0 {
		return c.Repository.LookupProduct(ctx, productID, variantID)
	}
	key := productKey(productID, variantID)
	data, err := c.Client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p Product
		if jsonErr := json.Unmarshal(data, &p); jsonErr == nil {
			return p, nil
		}
	case !errors.Is(err, redis.Nil):
		c.Log.Warn().Err(err).Str("key", key).Msg("product cache read")
	}

	if c.group == nil {
		return c.load(ctx, key, productID, variantID)
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.load(ctx, key, productID, variantID)
	})
	if err != nil {
		return Product{}, err
	}
	return v.(Product), nil
}

func (c CachedRepository) load(ctx context.Context, key string, productID uuid.UUID, variantID *uuid.UUID) (Product, error) {
	p, err := c.Repository.LookupProduct(ctx, productID, variantID)
	if err != nil {
		return Product{}, err
	}
	if data, err := json.Marshal(p); err == nil {
		if err := c.Client.Set(ctx, key, data, c.TTL).Err(); err != nil {
			c.Log.Warn().Err(err).Str("key", key).Msg("product cache write")
		}
	}
	return p, nil
}
