// Package locker serializes units of work per game session.
package locker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"exhibition-system/internal/status"
)

// Locker hands out an exclusive hold on key. The returned release function
// must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

func SessionKey(sessionID string) string {
	return fmt.Sprintf("lock:session:%s", sessionID)
}

// SlotKey guards table assignment inside one time slot.
func SlotKey(timeSlotID string) string {
	return fmt.Sprintf("lock:slot:%s", timeSlotID)
}

// Local is an in-process Locker built on one-slot channels, so a waiter can
// give up on timeout or context cancellation.
type Local struct {
	mu          sync.Mutex
	slots       map[string]*localSlot
	waitTimeout time.Duration
}

type localSlot struct {
	ch   chan struct{}
	refs int
}

func NewLocal(waitTimeout time.Duration) *Local {
	return &Local{slots: map[string]*localSlot{}, waitTimeout: waitTimeout}
}

func (l *Local) acquireSlot(key string) *localSlot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[key]
	if !ok {
		s = &localSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) dropSlot(key string, s *localSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	s := l.acquireSlot(key)

	var timeout <-chan time.Time
	if l.waitTimeout > 0 {
		timer := time.NewTimer(l.waitTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case s.ch <- struct{}{}:
	case <-timeout:
		l.dropSlot(key, s)
		return nil, fmt.Errorf("%s: %w", key, status.ErrConcurrencyConflict)
	case <-ctx.Done():
		l.dropSlot(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.dropSlot(key, s)
		})
	}, nil
}
