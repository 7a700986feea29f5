package utils

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var breakerEpoch = time.Date(2026, 11, 14, 9, 0, 0, 0, time.UTC)

func newTestBreaker() (*CircuitBreaker, *ManualClock) {
	clock := NewManualClock(breakerEpoch)
	cb := NewCircuitBreaker("test", WithTrip(4, 0.5), WithOpenTimeout(10*time.Second), WithBreakerClock(clock))
	return cb, clock
}

func succeed(context.Context) error { return nil }

func fail(context.Context) error { return errors.New("failure") }

// Circuit Breaker Tests

func TestCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker("pubnub")

	assert.Equal(t, "pubnub", cb.Name())
	assert.Equal(t, uint32(20), cb.minRequests)
	assert.Equal(t, 30*time.Second, cb.timeout)
	assert.Equal(t, 0.6, cb.failureRatio)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_ExecuteSuccess(t *testing.T) {
	cb, _ := newTestBreaker()

	err := cb.Execute(context.Background(), succeed)

	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(1), cb.counts.Requests)
	assert.Equal(t, uint32(1), cb.counts.TotalSuccesses)
}

func TestCircuitBreaker_ExecuteFailurePassesErrorThrough(t *testing.T) {
	cb, _ := newTestBreaker()
	expected := errors.New("broker down")

	err := cb.Execute(context.Background(), func(context.Context) error { return expected })

	assert.Equal(t, expected, err)
	assert.Equal(t, uint32(1), cb.counts.TotalFailures)
}

func TestCircuitBreaker_ClosedToOpen(t *testing.T) {
	cb, _ := newTestBreaker()
	ctx := context.Background()

	assert.NoError(t, cb.Execute(ctx, succeed))
	assert.NoError(t, cb.Execute(ctx, succeed))
	assert.Error(t, cb.Execute(ctx, fail))
	assert.Equal(t, StateClosed, cb.State(), "three requests is below the trip minimum")

	assert.Error(t, cb.Execute(ctx, fail))
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	cb, clock := newTestBreaker()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = cb.Execute(ctx, fail)
	}
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(11 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	assert.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = cb.Execute(ctx, fail)
	}
	clock.Advance(11 * time.Second)

	assert.Error(t, cb.Execute(ctx, fail))
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_HalfOpenAdmitsSingleProbe(t *testing.T) {
	cb, clock := newTestBreaker()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = cb.Execute(ctx, fail)
	}
	clock.Advance(11 * time.Second)

	var second error
	err := cb.Execute(ctx, func(ctx context.Context) error {
		second = cb.Execute(ctx, succeed)
		return nil
	})
	assert.NoError(t, err)
	assert.ErrorIs(t, second, ErrTooManyRequests)
}

func TestCircuitBreaker_WindowResets(t *testing.T) {
	cb, clock := newTestBreaker()
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)

	clock.Advance(61 * time.Second)
	_ = cb.Execute(ctx, fail)

	assert.Equal(t, StateClosed, cb.State(), "old failures belong to a previous window")
	assert.Equal(t, uint32(1), cb.counts.TotalFailures)
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker("test", WithTrip(1000, 0.9))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cb.Execute(ctx, succeed)
		}()
	}
	wg.Wait()

	assert.Equal(t, uint32(50), cb.counts.Requests)
	assert.Equal(t, uint32(50), cb.counts.TotalSuccesses)
}

func TestCircuitBreaker_PanicRecovery(t *testing.T) {
	cb, _ := newTestBreaker()

	assert.Panics(t, func() {
		_ = cb.Execute(context.Background(), func(context.Context) error {
			panic("test panic")
		})
	})
	assert.Equal(t, uint32(1), cb.counts.TotalFailures)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
}

// Clock Tests

func TestManualClock(t *testing.T) {
	clock := NewManualClock(breakerEpoch)
	assert.Equal(t, breakerEpoch, clock.Now())

	clock.Advance(time.Minute)
	assert.Equal(t, breakerEpoch.Add(time.Minute), clock.Now())

	clock.Set(breakerEpoch)
	assert.Equal(t, breakerEpoch, clock.Now())
}

// Redis Health Check Tests

func TestRedisHealthCheck_Success(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectPing().SetVal("PONG")

	err := RedisHealthCheck(context.Background(), db)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisHealthCheck_Failure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectPing().SetErr(errors.New("connection refused"))

	err := RedisHealthCheck(context.Background(), db)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis health check failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func BenchmarkCircuitBreaker_Execute_Success(b *testing.B) {
	cb := NewCircuitBreaker("bench")
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Execute(ctx, succeed)
	}
}
