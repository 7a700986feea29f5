package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"exhibition-system/internal/status"
	"exhibition-system/models"

	"github.com/google/uuid"
)

// Memory is an in-process Store. Transactions run against a copy of the data
// and replace it on success, so a failed unit of work leaves nothing behind.
type Memory struct {
	mu   sync.Mutex
	data *memData
}

type memData struct {
	zones      map[string]models.Zone
	tables     map[string]models.Table
	slots      map[string]models.TimeSlot
	sessions   map[string]models.GameSession
	bookings   map[string]models.Booking
	moderation []models.ModerationEntry
}

func NewMemory() *Memory {
	return &Memory{data: &memData{
		zones:    map[string]models.Zone{},
		tables:   map[string]models.Table{},
		slots:    map[string]models.TimeSlot{},
		sessions: map[string]models.GameSession{},
		bookings: map[string]models.Booking{},
	}}
}

func (d *memData) clone() *memData {
	return &memData{
		zones:      maps.Clone(d.zones),
		tables:     maps.Clone(d.tables),
		slots:      maps.Clone(d.slots),
		sessions:   maps.Clone(d.sessions),
		bookings:   maps.Clone(d.bookings),
		moderation: slices.Clone(d.moderation),
	}
}

func (m *Memory) RunInTransaction(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.data.clone()
	if err := fn(&memTx{d: work}); err != nil {
		return err
	}
	m.data = work
	return nil
}

func (m *Memory) View(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Hand out a copy so a misbehaving reader cannot write through.
	return fn(&memTx{d: m.data.clone()})
}

// PutZone, PutTable and PutTimeSlot seed the records owned by zone management.
func (m *Memory) PutZone(z models.Zone) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.zones[z.ID] = z
}

func (m *Memory) PutTable(t models.Table) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.tables[t.ID] = t
}

func (m *Memory) PutTimeSlot(s models.TimeSlot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.slots[s.ID] = s
}

type memTx struct {
	d *memData
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, status.ErrNotFound)
}

func (t *memTx) GetZone(ctx context.Context, id string) (models.Zone, error) {
	z, ok := t.d.zones[id]
	if !ok {
		return models.Zone{}, notFound("zone", id)
	}
	return z, nil
}

func (t *memTx) GetTable(ctx context.Context, id string) (models.Table, error) {
	tb, ok := t.d.tables[id]
	if !ok {
		return models.Table{}, notFound("table", id)
	}
	return tb, nil
}

func (t *memTx) GetTimeSlot(ctx context.Context, id string) (models.TimeSlot, error) {
	s, ok := t.d.slots[id]
	if !ok {
		return models.TimeSlot{}, notFound("time slot", id)
	}
	return s, nil
}

func (t *memTx) GetSession(ctx context.Context, id string) (models.GameSession, error) {
	s, ok := t.d.sessions[id]
	if !ok {
		return models.GameSession{}, notFound("game session", id)
	}
	return s, nil
}

func (t *memTx) ListSessionsBySlot(ctx context.Context, timeSlotID string) ([]models.GameSession, error) {
	out := []models.GameSession{}
	for _, s := range t.d.sessions {
		if s.TimeSlotID == timeSlotID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) CreateSession(ctx context.Context, session *models.GameSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if _, exists := t.d.sessions[session.ID]; exists {
		return fmt.Errorf("game session %q already exists", session.ID)
	}
	t.d.sessions[session.ID] = *session
	return nil
}

func (t *memTx) UpdateSession(ctx context.Context, session *models.GameSession) error {
	if _, ok := t.d.sessions[session.ID]; !ok {
		return notFound("game session", session.ID)
	}
	t.d.sessions[session.ID] = *session
	return nil
}

func (t *memTx) GetBooking(ctx context.Context, id string) (models.Booking, error) {
	b, ok := t.d.bookings[id]
	if !ok {
		return models.Booking{}, notFound("booking", id)
	}
	return b, nil
}

func (t *memTx) ListBookings(ctx context.Context, sessionID string) ([]models.Booking, error) {
	out := []models.Booking{}
	for _, b := range t.d.bookings {
		if b.GameSessionID == sessionID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (t *memTx) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if _, exists := t.d.bookings[booking.ID]; exists {
		return fmt.Errorf("booking %q already exists", booking.ID)
	}
	t.d.bookings[booking.ID] = *booking
	return nil
}

func (t *memTx) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	if _, ok := t.d.bookings[booking.ID]; !ok {
		return notFound("booking", booking.ID)
	}
	t.d.bookings[booking.ID] = *booking
	return nil
}

func (t *memTx) AppendModeration(ctx context.Context, entry *models.ModerationEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	t.d.moderation = append(t.d.moderation, *entry)
	return nil
}

func (t *memTx) ListModeration(ctx context.Context, sessionID string) ([]models.ModerationEntry, error) {
	out := []models.ModerationEntry{}
	for _, e := range t.d.moderation {
		if e.GameSessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}
