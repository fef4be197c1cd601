package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "rbac:perms:"

// Cache stores resolved permission sets in Redis with a short TTL so role
// changes converge without hammering the store on every decision.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached permission list for a user, if present.
func (c *Cache) Get(ctx context.Context, userID int64) ([]string, bool, error) {
	data, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var perms []string
	if err := json.Unmarshal(data, &perms); err != nil {
		return nil, false, err
	}
	return perms, true, nil
}

// Set stores the permission list for a user.
func (c *Cache) Set(ctx context.Context, userID int64, perms []string) error {
	data, err := json.Marshal(perms)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(userID), data, c.ttl).Err()
}

// Invalidate drops the entry for one user.
func (c *Cache) Invalidate(ctx context.Context, userID int64) error {
	return c.client.Del(ctx, c.key(userID)).Err()
}

// Flush drops every cached permission set.
func (c *Cache) Flush(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, cacheKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (c *Cache) key(userID int64) string {
	return fmt.Sprintf("%s%d", cacheKeyPrefix, userID)
}
