package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"exhibition-system/internal/events"
	"exhibition-system/internal/locker"
	"exhibition-system/internal/status"
	"exhibition-system/internal/store"
	"exhibition-system/models"
	"exhibition-system/utils"

	"github.com/stretchr/testify/require"
)

var showDay = time.Date(2026, 11, 14, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return showDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type recordingMetrics struct {
	mu          sync.Mutex
	promotions  int
	transitions []string
	operations  map[string]int
}

func (m *recordingMetrics) TrackBookingOperation(operation, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.operations == nil {
		m.operations = map[string]int{}
	}
	m.operations[operation+"/"+result]++
}

func (m *recordingMetrics) TrackSessionTransition(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, from+"->"+to)
}

func (m *recordingMetrics) TrackPromotion() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promotions++
}

func (m *recordingMetrics) TrackLockWait(time.Duration, bool) {}

func (m *recordingMetrics) SetSeats(string, int, int, int) {}

func (m *recordingMetrics) ForgetSession(string) {}

type fixture struct {
	ctx        context.Context
	store      *store.Memory
	clock      *utils.ManualClock
	recorder   *events.Recorder
	metrics    *recordingMetrics
	engine     *Engine
	sessions   *SessionService
	ledger     *SeatLedger
	moderation *ModerationService
	planner    *SeriesPlanner

	slots int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mem := store.NewMemory()
	mem.PutZone(models.Zone{ID: "zone-mod", Name: "Board games", ModerationRequired: true})
	mem.PutZone(models.Zone{ID: "zone-open", Name: "Partner corner", ModerationRequired: false})

	f := &fixture{
		ctx:      context.Background(),
		store:    mem,
		clock:    utils.NewManualClock(at(7, 0)),
		recorder: &events.Recorder{},
		metrics:  &recordingMetrics{},
	}
	f.engine = NewEngine(mem, locker.NewLocal(5*time.Second), f.recorder)
	f.engine.Clock = f.clock
	f.engine.Metrics = f.metrics

	f.sessions = NewSessionService(f.engine)
	f.ledger = NewSeatLedger(f.engine)
	f.moderation = NewModerationService(f.engine)
	f.planner = NewSeriesPlanner(f.engine, f.sessions)
	return f
}

// addSlot seeds a 09:00-13:00 slot with one table, both in zoneID.
func (f *fixture) addSlot(zoneID string) (slotID, tableID string) {
	f.slots++
	slotID = fmt.Sprintf("slot-%d", f.slots)
	tableID = fmt.Sprintf("table-%d", f.slots)
	f.store.PutTimeSlot(models.TimeSlot{
		ID:                 slotID,
		ZoneID:             zoneID,
		Start:              at(9, 0),
		End:                at(13, 0),
		MaxDurationMinutes: 240,
		BufferTimeMinutes:  15,
	})
	f.store.PutTable(models.Table{ID: tableID, ZoneID: zoneID, Name: fmt.Sprintf("Table %d", f.slots)})
	return slotID, tableID
}

func (f *fixture) draftSession(t *testing.T, zoneID string, capacity int, withTable bool) models.GameSession {
	t.Helper()

	slotID, tableID := f.addSlot(zoneID)
	if !withTable {
		tableID = ""
	}
	s, err := f.sessions.Create(f.ctx, CreateSessionInput{
		TimeSlotID:      slotID,
		TableID:         tableID,
		Title:           "Root",
		Capacity:        capacity,
		ScheduledStart:  at(10, 0),
		ScheduledEnd:    at(12, 0),
		CreatedByUserID: "gm-1",
	})
	require.NoError(t, err)
	require.Equal(t, models.SessionDraft, s.Status)
	return s
}

// validatedSession runs a 10:00-12:00 session through moderation.
func (f *fixture) validatedSession(t *testing.T, capacity int) models.GameSession {
	t.Helper()

	s := f.draftSession(t, "zone-mod", capacity, true)
	s, err := f.sessions.Submit(f.ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, models.SessionPendingModeration, s.Status)

	s, err = f.moderation.Approve(f.ctx, s.ID, "reviewer-1")
	require.NoError(t, err)
	require.Equal(t, models.SessionValidated, s.Status)

	f.recorder.Reset()
	return s
}

func (f *fixture) reserve(t *testing.T, sessionID, userID string) models.Booking {
	t.Helper()
	b, err := f.ledger.Reserve(f.ctx, sessionID, userID, models.RolePlayer)
	require.NoError(t, err)
	return b
}

func (f *fixture) booking(t *testing.T, id string) models.Booking {
	t.Helper()
	var b models.Booking
	require.NoError(t, f.store.View(f.ctx, func(tx store.Tx) error {
		var err error
		b, err = tx.GetBooking(f.ctx, id)
		return err
	}))
	return b
}

// flakyLocker refuses the first failures calls with a lock conflict.
type flakyLocker struct {
	failures int32
	calls    int32
}

func (l *flakyLocker) Lock(ctx context.Context, key string) (func(), error) {
	if n := atomic.AddInt32(&l.calls, 1); n <= l.failures {
		return nil, fmt.Errorf("%s: %w", key, status.ErrConcurrencyConflict)
	}
	return func() {}, nil
}
