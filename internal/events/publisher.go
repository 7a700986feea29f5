// Package events delivers domain events to the notification channels after
// the unit of work that produced them has committed.
package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"exhibition-system/models"
	"exhibition-system/utils"
)

type Publisher interface {
	Publish(ctx context.Context, evt models.DomainEvent) error
}

// Fanout hands every event to each sink. Delivery is best effort: a failing
// sink is logged and tripped, never reported back to the booking that caused
// the event.
type Fanout struct {
	sinks []guardedSink
}

type guardedSink struct {
	name    string
	pub     Publisher
	breaker *utils.CircuitBreaker
}

func NewFanout() *Fanout {
	return &Fanout{}
}

// Add registers a sink under name. Nil publishers are skipped so optional
// transports can be passed straight from configuration.
func (f *Fanout) Add(name string, pub Publisher, opts ...utils.BreakerOption) *Fanout {
	if pub == nil {
		return f
	}
	f.sinks = append(f.sinks, guardedSink{
		name:    name,
		pub:     pub,
		breaker: utils.NewCircuitBreaker(name, opts...),
	})
	return f
}

func (f *Fanout) Publish(ctx context.Context, evt models.DomainEvent) error {
	var wg sync.WaitGroup
	errs := make([]error, len(f.sinks))

	for i, sink := range f.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := sink.breaker.Execute(ctx, func(ctx context.Context) error {
				return sink.pub.Publish(ctx, evt)
			})
			if err != nil {
				slog.Warn("Failed to publish domain event",
					"sink", sink.name,
					"event_type", evt.Type,
					"event_id", evt.ID,
					"session_id", evt.GameSessionID,
					"error", err,
				)
				errs[i] = err
			}
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

// PublishAll delivers events in order. Errors are logged by Publish.
func PublishAll(ctx context.Context, pub Publisher, evts []models.DomainEvent) {
	for _, evt := range evts {
		_ = pub.Publish(ctx, evt)
	}
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []models.DomainEvent
}

func (r *Recorder) Publish(ctx context.Context, evt models.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *Recorder) Events() []models.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.DomainEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) OfType(t models.DomainEventType) []models.DomainEvent {
	var out []models.DomainEvent
	for _, evt := range r.Events() {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
