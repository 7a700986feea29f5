package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	bookingOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_operations_total",
			Help: "Total booking operations by outcome",
		},
		[]string{"operation", "result"},
	)

	sessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_transitions_total",
			Help: "Game session state transitions",
		},
		[]string{"from", "to"},
	)

	waitlistPromotions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waitlist_promotions_total",
			Help: "Bookings promoted from the waiting list",
		},
	)

	sessionSeats = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "session_seats",
			Help: "Seat usage per game session",
		},
		[]string{"session_id", "kind"},
	)

	lockWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "session_lock_wait_seconds",
			Help:    "Time spent waiting for a per-session lock",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	lockConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_lock_conflicts_total",
			Help: "Units of work that gave up waiting for a session lock",
		},
	)

	redisPoolConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "redis_pool_connections",
			Help: "Redis connection pool usage",
		},
		[]string{"state"},
	)
)

type poolStatter interface {
	PoolStats() *redis.PoolStats
}

type Monitor struct {
	redis poolStatter
}

// NewMonitor builds the metrics facade. redisClient may be nil when the
// service runs without Redis.
func NewMonitor(redisClient poolStatter) *Monitor {
	return &Monitor{redis: redisClient}
}

// Run samples the Redis pool until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	if m.redis == nil {
		return
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		m.collectRedisMetrics()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) collectRedisMetrics() {
	stats := m.redis.PoolStats()
	redisPoolConns.WithLabelValues("total").Set(float64(stats.TotalConns))
	redisPoolConns.WithLabelValues("idle").Set(float64(stats.IdleConns))
	redisPoolConns.WithLabelValues("stale").Set(float64(stats.StaleConns))
}

// Track booking operations
func (m *Monitor) TrackBookingOperation(operation, result string) {
	bookingOperations.WithLabelValues(operation, result).Inc()
}

func (m *Monitor) TrackSessionTransition(from, to string) {
	sessionTransitions.WithLabelValues(from, to).Inc()
}

func (m *Monitor) TrackPromotion() {
	waitlistPromotions.Inc()
}

func (m *Monitor) TrackLockWait(d time.Duration, acquired bool) {
	lockWait.Observe(d.Seconds())
	if !acquired {
		lockConflicts.Inc()
	}
}

func (m *Monitor) SetSeats(sessionID string, capacity, confirmed, waitlisted int) {
	sessionSeats.WithLabelValues(sessionID, "capacity").Set(float64(capacity))
	sessionSeats.WithLabelValues(sessionID, "confirmed").Set(float64(confirmed))
	sessionSeats.WithLabelValues(sessionID, "waitlisted").Set(float64(waitlisted))
}

// ForgetSession drops the per-session series once a session is over.
func (m *Monitor) ForgetSession(sessionID string) {
	sessionSeats.DeletePartialMatch(prometheus.Labels{"session_id": sessionID})
}
