package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"exhibition-system/models"

	"github.com/redis/go-redis/v9"
)

// ProjectionCache keeps the read-side seat projection of each session in a
// Redis hash so listing pages do not hit the store.
type ProjectionCache struct {
	redis redis.Cmdable
	ttl   time.Duration
}

func NewProjectionCache(client redis.Cmdable, ttl time.Duration) *ProjectionCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ProjectionCache{redis: client, ttl: ttl}
}

func seatsKey(sessionID string) string {
	return fmt.Sprintf("seats:session:%s", sessionID)
}

func (c *ProjectionCache) Put(ctx context.Context, p models.SeatProjection) error {
	key := seatsKey(p.GameSessionID)
	err := c.redis.HSet(ctx, key,
		"status", string(p.Status),
		"capacity", p.Capacity,
		"confirmed", p.Confirmed,
		"available", p.Available,
		"waitlisted", p.Waitlisted,
	).Err()
	if err != nil {
		return fmt.Errorf("cache seats of %s: %w", p.GameSessionID, err)
	}
	if err := c.redis.Expire(ctx, key, c.ttl).Err(); err != nil {
		return fmt.Errorf("expire seats of %s: %w", p.GameSessionID, err)
	}
	return nil
}

// Get returns the cached projection. ok is false on a miss.
func (c *ProjectionCache) Get(ctx context.Context, sessionID string) (p models.SeatProjection, ok bool, err error) {
	fields, err := c.redis.HGetAll(ctx, seatsKey(sessionID)).Result()
	if err != nil {
		return models.SeatProjection{}, false, fmt.Errorf("read cached seats of %s: %w", sessionID, err)
	}
	if len(fields) == 0 {
		return models.SeatProjection{}, false, nil
	}

	p = models.SeatProjection{
		GameSessionID: sessionID,
		Status:        models.SessionStatus(fields["status"]),
	}
	for name, dst := range map[string]*int{
		"capacity":   &p.Capacity,
		"confirmed":  &p.Confirmed,
		"available":  &p.Available,
		"waitlisted": &p.Waitlisted,
	} {
		n, err := strconv.Atoi(fields[name])
		if err != nil {
			// Treat a damaged entry as a miss; the caller recomputes it.
			return models.SeatProjection{}, false, nil
		}
		*dst = n
	}
	p.HasAvailableSeats = p.Available > 0
	return p, true, nil
}

func (c *ProjectionCache) Invalidate(ctx context.Context, sessionID string) error {
	return c.redis.Del(ctx, seatsKey(sessionID)).Err()
}
