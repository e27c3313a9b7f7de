package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"simplesns/internal/middleware"
	"simplesns/internal/models"
	"simplesns/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	ProfileKeyPrefix = "profile:%s"
	ProfileTTL       = 5 * time.Minute
)

func ProfileKey(userID string) string {
	return fmt.Sprintf(ProfileKeyPrefix, userID)
}

// ProfileCache is a cache-aside store for profiles. A nil cache, or one
// without a client, misses on every read and ignores writes.
type ProfileCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewProfileCache returns a cache over rdb. A zero ttl means ProfileTTL.
func NewProfileCache(rdb *redis.Client, ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = ProfileTTL
	}
	return &ProfileCache{rdb: rdb, ttl: ttl}
}

func (c *ProfileCache) enabled() bool {
	return c != nil && c.rdb != nil
}

// Get returns the cached profile for userID. Redis errors count as misses.
func (c *ProfileCache) Get(ctx context.Context, userID string) (*models.Profile, bool) {
	if !c.enabled() {
		return nil, false
	}
	ctx, span := observability.GetTraceLayer().TraceRedisOperation(ctx, "get")
	defer span.End()

	raw, err := c.rdb.Get(ctx, ProfileKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			observability.RecordErrorInContext(ctx, err)
			middleware.Logger.WarnContext(ctx, "profile cache read failed", slog.String("error", err.Error()))
		}
		observability.ProfileCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}

	var p models.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		observability.ProfileCacheLookups.WithLabelValues("miss").Inc()
		c.Invalidate(ctx, userID)
		return nil, false
	}
	observability.ProfileCacheLookups.WithLabelValues("hit").Inc()
	return &p, true
}

// Set stores p under its user id.
func (c *ProfileCache) Set(ctx context.Context, p *models.Profile) {
	if !c.enabled() || p == nil || p.UserID == "" {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	ctx, span := observability.GetTraceLayer().TraceRedisOperation(ctx, "set")
	defer span.End()

	if err := c.rdb.Set(ctx, ProfileKey(p.UserID), raw, c.ttl).Err(); err != nil {
		observability.RecordErrorInContext(ctx, err)
		middleware.Logger.WarnContext(ctx, "profile cache write failed", slog.String("error", err.Error()))
	}
}

// Invalidate drops the cached profile for userID.
func (c *ProfileCache) Invalidate(ctx context.Context, userID string) {
	if !c.enabled() {
		return
	}
	ctx, span := observability.GetTraceLayer().TraceRedisOperation(ctx, "del")
	defer span.End()

	if err := c.rdb.Del(ctx, ProfileKey(userID)).Err(); err != nil {
		observability.RecordErrorInContext(ctx, err)
		middleware.Logger.WarnContext(ctx, "profile cache invalidation failed", slog.String("error", err.Error()))
	}
}
