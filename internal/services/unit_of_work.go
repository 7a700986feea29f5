package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"exhibition-system/internal/events"
	"exhibition-system/internal/locker"
	"exhibition-system/internal/status"
	"exhibition-system/internal/store"
	"exhibition-system/models"
	"exhibition-system/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "exhibition-system/internal/services"

// Metrics is the slice of monitoring.Monitor the engine reports to.
type Metrics interface {
	TrackBookingOperation(operation, result string)
	TrackSessionTransition(from, to string)
	TrackPromotion()
	TrackLockWait(d time.Duration, acquired bool)
	SetSeats(sessionID string, capacity, confirmed, waitlisted int)
	ForgetSession(sessionID string)
}

type nopMetrics struct{}

func (nopMetrics) TrackBookingOperation(string, string) {}
func (nopMetrics) TrackSessionTransition(string, string) {}
func (nopMetrics) TrackPromotion() {}
func (nopMetrics) TrackLockWait(time.Duration, bool) {}
func (nopMetrics) SetSeats(string, int, int, int) {}
func (nopMetrics) ForgetSession(string) {}

// Engine bundles what every service needs to run a unit of work.
type Engine struct {
	Store     store.Store
	Locker    locker.Locker
	Publisher events.Publisher
	Clock     utils.Clock
	Metrics   Metrics
	// Cache is optional; when set, seat projections are written through
	// after every ledger mutation while the session lock is still held.
	Cache *ProjectionCache
	// CheckInGrace is how long before a session starts players may check in.
	CheckInGrace time.Duration
	// DefaultDuration is the preferred session length when none is given.
	DefaultDuration time.Duration

	tracer trace.Tracer
}

// NewEngine fills defaults for the optional collaborators.
func NewEngine(st store.Store, lk locker.Locker, pub events.Publisher) *Engine {
	return &Engine{
		Store:           st,
		Locker:          lk,
		Publisher:       pub,
		Clock:           utils.SystemClock{},
		Metrics:         nopMetrics{},
		CheckInGrace:    30 * time.Minute,
		DefaultDuration: 120 * time.Minute,
		tracer:          otel.Tracer(tracerName),
	}
}

func (e *Engine) tracerOrDefault() trace.Tracer {
	if e.tracer == nil {
		return otel.Tracer(tracerName)
	}
	return e.tracer
}

// outbox collects what a unit of work wants to announce once it committed.
type outbox struct {
	now        time.Time
	events     []models.DomainEvent
	seats      *models.SeatProjection
	promotions int
	transition [2]models.SessionStatus
}

func (o *outbox) emit(evt models.DomainEvent) {
	evt.ID = uuid.NewString()
	evt.OccurredAt = o.now
	o.events = append(o.events, evt)
}

func (o *outbox) moved(from, to models.SessionStatus) {
	o.transition = [2]models.SessionStatus{from, to}
}

type work func(ctx context.Context, tx store.Tx, out *outbox) error

// run executes fn as one serialized unit of work: take the locks for keys in
// order, run fn in a store transaction, release, then publish. A lock timeout
// retries the whole unit once.
func (e *Engine) run(ctx context.Context, op string, keys []string, fn work) error {
	ctx, span := e.tracerOrDefault().Start(ctx, op, trace.WithAttributes(
		attribute.StringSlice("exhibition.lock_keys", keys),
	))
	defer span.End()

	out, err := e.attempt(ctx, keys, fn)
	if errors.Is(err, status.ErrConcurrencyConflict) {
		slog.Debug("Retrying unit of work after lock conflict", "op", op, "keys", keys)
		span.AddEvent("retry")
		out, err = e.attempt(ctx, keys, fn)
	}
	if err != nil {
		span.RecordError(err)
		if status.IsUserFacing(err) || errors.Is(err, status.ErrIllegalTransition) {
			slog.Debug("Unit of work refused", "op", op, "error", err)
		} else {
			span.SetStatus(otelcodes.Error, err.Error())
			slog.Error("Unit of work failed", "op", op, "keys", keys, "error", err)
		}
		return err
	}

	e.afterCommit(ctx, out)
	return nil
}

func (e *Engine) attempt(ctx context.Context, keys []string, fn work) (*outbox, error) {
	for _, key := range keys {
		started := time.Now()
		release, err := e.Locker.Lock(ctx, key)
		e.Metrics.TrackLockWait(time.Since(started), err == nil)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	out := &outbox{now: e.Clock.Now()}
	err := e.Store.RunInTransaction(ctx, func(tx store.Tx) error {
		return fn(ctx, tx, out)
	})
	if err != nil {
		return nil, err
	}
	e.refreshSeats(ctx, out.seats)
	return out, nil
}

// refreshSeats writes p to the cache. It must run under the session lock so
// writes land in commit order. A failed write drops the entry instead of
// leaving the previous projection behind.
func (e *Engine) refreshSeats(ctx context.Context, p *models.SeatProjection) {
	if e.Cache == nil || p == nil {
		return
	}
	err := e.Cache.Put(ctx, *p)
	if err == nil {
		return
	}
	slog.Warn("Failed to refresh seat projection cache", "session_id", p.GameSessionID, "error", err)
	if err := e.Cache.Invalidate(ctx, p.GameSessionID); err != nil {
		slog.Error("Stale seat projection left in cache", "session_id", p.GameSessionID, "error", err)
	}
}

func (e *Engine) afterCommit(ctx context.Context, out *outbox) {
	if from, to := out.transition[0], out.transition[1]; to != "" {
		e.Metrics.TrackSessionTransition(string(from), string(to))
	}
	for i := 0; i < out.promotions; i++ {
		e.Metrics.TrackPromotion()
	}
	if p := out.seats; p != nil {
		switch p.Status {
		case models.SessionCancelled, models.SessionRejected:
			e.Metrics.ForgetSession(p.GameSessionID)
		default:
			e.Metrics.SetSeats(p.GameSessionID, p.Capacity, p.Confirmed, p.Waitlisted)
		}
	}
	if e.Publisher != nil {
		events.PublishAll(ctx, e.Publisher, out.events)
	}
}

// view runs read-only work without taking a lock.
func (e *Engine) view(ctx context.Context, fn func(tx store.Tx) error) error {
	return e.Store.View(ctx, fn)
}
