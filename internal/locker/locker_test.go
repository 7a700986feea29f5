package locker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"exhibition-system/internal/status"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "lock:session:abc", SessionKey("abc"))
	assert.Equal(t, "lock:slot:abc", SlotKey("abc"))
}

func TestLocal_MutualExclusion(t *testing.T) {
	l := NewLocal(5 * time.Second)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Lock(ctx, "k")
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, l.slots)
}

func TestLocal_Timeout(t *testing.T) {
	l := NewLocal(20 * time.Millisecond)
	ctx := context.Background()

	release, err := l.Lock(ctx, "k")
	require.NoError(t, err)
	defer release()

	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, status.ErrConcurrencyConflict)

	// Other keys are independent.
	other, err := l.Lock(ctx, "other")
	require.NoError(t, err)
	other()
}

func TestLocal_ContextCancelled(t *testing.T) {
	l := NewLocal(0)
	release, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocal_ReleaseIsIdempotent(t *testing.T) {
	l := NewLocal(20 * time.Millisecond)
	release, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	release()
	release()

	again, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	again()
}

func newTestRedisLocker(wait time.Duration) (*Redis, redismock.ClientMock) {
	client, mock := redismock.NewClientMock()
	l := NewRedis(client, RedisOptions{TTL: 5 * time.Second, WaitTimeout: wait, RetryInterval: 5 * time.Millisecond})
	l.token = func() string { return "token-1" }
	return l, mock
}

func TestRedis_LockAndRelease(t *testing.T) {
	l, mock := newTestRedisLocker(0)
	ctx := context.Background()

	mock.ExpectSetNX("lock:session:s1", "token-1", 5*time.Second).SetVal(true)
	mock.ExpectEval(releaseLockScript, []string{"lock:session:s1"}, "token-1").SetVal(int64(1))

	release, err := l.Lock(ctx, SessionKey("s1"))
	require.NoError(t, err)
	release()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_RetriesUntilFree(t *testing.T) {
	l, mock := newTestRedisLocker(time.Second)
	ctx := context.Background()

	mock.ExpectSetNX("lock:session:s1", "token-1", 5*time.Second).SetVal(false)
	mock.ExpectSetNX("lock:session:s1", "token-1", 5*time.Second).SetVal(true)

	_, err := l.Lock(ctx, SessionKey("s1"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_ConflictWithoutWait(t *testing.T) {
	l, mock := newTestRedisLocker(0)

	mock.ExpectSetNX("lock:session:s1", "token-1", 5*time.Second).SetVal(false)

	_, err := l.Lock(context.Background(), SessionKey("s1"))
	assert.ErrorIs(t, err, status.ErrConcurrencyConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_ServerError(t *testing.T) {
	l, mock := newTestRedisLocker(0)

	mock.ExpectSetNX("lock:session:s1", "token-1", 5*time.Second).SetErr(errors.New("connection refused"))

	_, err := l.Lock(context.Background(), SessionKey("s1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, status.ErrConcurrencyConflict)
}
