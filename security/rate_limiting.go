package security

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/hook"
	"github.com/redis/go-redis/v9"
)

// RateLimiter counts requests per caller in fixed Redis windows.
type RateLimiter struct {
	redis  redis.Cmdable
	limit  int64
	window time.Duration
}

func NewRateLimiter(redisClient redis.Cmdable, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 20
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{redis: redisClient, limit: int64(limit), window: window}
}

// Allow records one request for identity and reports whether it fits the
// current window.
func (r *RateLimiter) Allow(ctx context.Context, identity string) (bool, error) {
	key := fmt.Sprintf("ratelimit:booking:%s", identity)

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.redis.Expire(ctx, key, r.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= r.limit, nil
}

// BookingRateLimit guards the booking routes against scripted bursts when a
// popular session opens. Redis failures let the request through.
func (r *RateLimiter) BookingRateLimit() *hook.Handler[*core.RequestEvent] {
	return &hook.Handler[*core.RequestEvent]{
		Id: "exhibitionBookingRateLimit",
		Func: func(e *core.RequestEvent) error {
			if isSuspiciousUserAgent(e.Request.Header.Get("User-Agent")) {
				return apis.NewForbiddenError("Access denied", nil)
			}

			identity := "ip:" + e.RealIP()
			if e.Auth != nil {
				identity = "user:" + e.Auth.Id
			}

			ok, err := r.Allow(e.Request.Context(), identity)
			if err != nil {
				slog.Warn("Rate limiter unavailable", "identity", identity, "error", err)
				return e.Next()
			}
			if !ok {
				return apis.NewApiError(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", nil)
			}
			return e.Next()
		},
	}
}

func isSuspiciousUserAgent(ua string) bool {
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	for _, pattern := range suspicious {
		if strings.Contains(strings.ToLower(ua), pattern) {
			return true
		}
	}
	return false
}
