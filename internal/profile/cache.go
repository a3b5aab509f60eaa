package profile

import (
	"context"
	"errors"
	"time"

	"github.com/ericfitz/whiteboard/internal/database"
	"github.com/ericfitz/whiteboard/internal/slogging"
	"github.com/redis/go-redis/v9"
)

// CachedDirectory is a read-through Redis cache in front of another Directory.
// Misses are not cached so that newly created users show up on the next lookup.
type CachedDirectory struct {
	next   Directory
	client *redis.Client
	ttl    time.Duration
}

// NewCachedDirectory wraps next with a cache whose entries live for ttl
func NewCachedDirectory(next Directory, client *redis.Client, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{next: next, client: client, ttl: ttl}
}

// DisplayName returns the cached name or loads and caches it
func (c *CachedDirectory) DisplayName(ctx context.Context, userID string) (string, error) {
	logger := slogging.Get()
	key := database.DisplayNameKey(userID)

	name, err := c.client.Get(ctx, key).Result()
	if err == nil {
		return name, nil
	}
	if !errors.Is(err, redis.Nil) {
		// Cache trouble should not hide the directory
		logger.Warn("display name cache read failed for user %s: %v", userID, err)
	}

	name, err = c.next.DisplayName(ctx, userID)
	if err != nil {
		return "", err
	}

	if err := c.client.Set(ctx, key, name, c.ttl).Err(); err != nil {
		logger.Warn("display name cache write failed for user %s: %v", userID, err)
	}
	return name, nil
}

// Invalidate drops the cached entry for userID
func (c *CachedDirectory) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, database.DisplayNameKey(userID)).Err()
}
