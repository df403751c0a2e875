// Package previewcache holds pending checkout previews in Redis so a
// preview survives process restarts and is shared across replicas.
package previewcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GrandCafeLabs/tablebook/pkg/tablebook"
)

const previewKeyPrefix = "checkout:preview:"

// RedisCache implements tablebook.PreviewCache on a Redis client. One key
// per guest; GETDEL gives the consume-on-read contract.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New wires a RedisCache with the given TTL; zero means
// tablebook.DefaultPreviewTTL.
func New(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = tablebook.DefaultPreviewTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Put holds the preview for its guest, replacing any previous one.
func (cache *RedisCache) Put(ctx context.Context, preview tablebook.Preview) error {
	payload, err := json.Marshal(preview)
	if err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}
	return cache.client.Set(ctx, previewKey(preview.GuestID), payload, cache.ttl).Err()
}

// Take removes and returns the guest's held preview, if any.
func (cache *RedisCache) Take(ctx context.Context, guestID tablebook.GuestID) (tablebook.Preview, bool, error) {
	payload, err := cache.client.GetDel(ctx, previewKey(guestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return tablebook.Preview{}, false, nil
	}
	if err != nil {
		return tablebook.Preview{}, false, err
	}
	var preview tablebook.Preview
	if err := json.Unmarshal(payload, &preview); err != nil {
		return tablebook.Preview{}, false, fmt.Errorf("decode preview: %w", err)
	}
	return preview, true, nil
}

func previewKey(guestID tablebook.GuestID) string {
	return fmt.Sprintf("%s%d", previewKeyPrefix, guestID)
}
