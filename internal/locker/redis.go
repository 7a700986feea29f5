package locker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"exhibition-system/internal/status"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Deletes the key only while it still carries our token, so an expired holder
// cannot release a lock that somebody else acquired since.
const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

type RedisOptions struct {
	// TTL bounds how long a crashed holder can block the session.
	TTL           time.Duration
	WaitTimeout   time.Duration
	RetryInterval time.Duration
}

// Redis is a Locker shared by every instance pointed at the same server.
type Redis struct {
	client redis.Cmdable
	opts   RedisOptions
	token  func() string
}

func NewRedis(client redis.Cmdable, opts RedisOptions) *Redis {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 25 * time.Millisecond
	}
	return &Redis{client: client, opts: opts, token: uuid.NewString}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	token := r.token()
	deadline := time.Now().Add(r.opts.WaitTimeout)

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.opts.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		if !time.Now().Add(r.opts.RetryInterval).Before(deadline) {
			return nil, fmt.Errorf("%s: %w", key, status.ErrConcurrencyConflict)
		}

		select {
		case <-time.After(r.opts.RetryInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return func() {
		// The caller's context may already be done by the time it releases.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()

		if err := r.client.Eval(releaseCtx, releaseLockScript, []string{key}, token).Err(); err != nil {
			slog.Warn("Failed to release session lock", "key", key, "error", err)
		}
	}, nil
}
