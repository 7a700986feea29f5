package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"exhibition-system/internal/status"
	"exhibition-system/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

const (
	CollectionZones      = "zones"
	CollectionTables     = "zone_tables"
	CollectionTimeSlots  = "time_slots"
	CollectionSessions   = "game_sessions"
	CollectionBookings   = "bookings"
	CollectionModeration = "moderation_log"
)

// PocketBase persists the engine in the collections created by the migrations
// package. SQLite serializes write transactions, which backs the per-session
// lock taken by the services.
type PocketBase struct {
	app core.App
}

func NewPocketBase(app core.App) *PocketBase {
	return &PocketBase{app: app}
}

func (p *PocketBase) RunInTransaction(ctx context.Context, fn func(tx Tx) error) error {
	return p.app.RunInTransaction(func(txApp core.App) error {
		return fn(&pbTx{app: txApp})
	})
}

func (p *PocketBase) View(ctx context.Context, fn func(tx Tx) error) error {
	return fn(&pbTx{app: p.app})
}

type pbTx struct {
	app core.App
}

func (t *pbTx) find(collection, id string) (*core.Record, error) {
	record, err := t.app.FindRecordById(collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %q: %w", collection, id, status.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s %q: %w", collection, id, err)
	}
	return record, nil
}

func (t *pbTx) newRecord(collection string) (*core.Record, error) {
	c, err := t.app.FindCollectionByNameOrId(collection)
	if err != nil {
		return nil, fmt.Errorf("find collection %s: %w", collection, err)
	}
	return core.NewRecord(c), nil
}

func (t *pbTx) GetZone(ctx context.Context, id string) (models.Zone, error) {
	r, err := t.find(CollectionZones, id)
	if err != nil {
		return models.Zone{}, err
	}
	return models.Zone{
		ID:                 r.Id,
		Name:               r.GetString("name"),
		ModerationRequired: r.GetBool("moderation_required"),
	}, nil
}

func (t *pbTx) GetTable(ctx context.Context, id string) (models.Table, error) {
	r, err := t.find(CollectionTables, id)
	if err != nil {
		return models.Table{}, err
	}
	return models.Table{
		ID:     r.Id,
		ZoneID: r.GetString("zone"),
		Name:   r.GetString("name"),
	}, nil
}

func (t *pbTx) GetTimeSlot(ctx context.Context, id string) (models.TimeSlot, error) {
	r, err := t.find(CollectionTimeSlots, id)
	if err != nil {
		return models.TimeSlot{}, err
	}
	return models.TimeSlot{
		ID:                 r.Id,
		ZoneID:             r.GetString("zone"),
		Start:              r.GetDateTime("start").Time(),
		End:                r.GetDateTime("end").Time(),
		MaxDurationMinutes: r.GetInt("max_duration_minutes"),
		BufferTimeMinutes:  r.GetInt("buffer_time_minutes"),
	}, nil
}

func sessionFromRecord(r *core.Record) models.GameSession {
	return models.GameSession{
		ID:                 r.Id,
		ZoneID:             r.GetString("zone"),
		TimeSlotID:         r.GetString("time_slot"),
		TableID:            r.GetString("table"),
		Title:              r.GetString("title"),
		Capacity:           r.GetInt("capacity"),
		ScheduledStart:     r.GetDateTime("scheduled_start").Time(),
		ScheduledEnd:       r.GetDateTime("scheduled_end").Time(),
		Status:             models.SessionStatus(r.GetString("status")),
		CreatedByUserID:    r.GetString("created_by"),
		CancellationReason: r.GetString("cancellation_reason"),
		CreatedAt:          r.GetDateTime("created_at").Time(),
		UpdatedAt:          r.GetDateTime("updated_at").Time(),
	}
}

func fillSession(r *core.Record, s *models.GameSession) {
	r.Set("zone", s.ZoneID)
	r.Set("time_slot", s.TimeSlotID)
	r.Set("table", s.TableID)
	r.Set("title", s.Title)
	r.Set("capacity", s.Capacity)
	r.Set("scheduled_start", s.ScheduledStart)
	r.Set("scheduled_end", s.ScheduledEnd)
	r.Set("status", string(s.Status))
	r.Set("created_by", s.CreatedByUserID)
	r.Set("cancellation_reason", s.CancellationReason)
	r.Set("created_at", s.CreatedAt)
	r.Set("updated_at", s.UpdatedAt)
}

func (t *pbTx) GetSession(ctx context.Context, id string) (models.GameSession, error) {
	r, err := t.find(CollectionSessions, id)
	if err != nil {
		return models.GameSession{}, err
	}
	return sessionFromRecord(r), nil
}

func (t *pbTx) ListSessionsBySlot(ctx context.Context, timeSlotID string) ([]models.GameSession, error) {
	records, err := t.app.FindRecordsByFilter(
		CollectionSessions,
		"time_slot = {:slot}",
		"created_at",
		0,
		0,
		dbx.Params{"slot": timeSlotID},
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions of slot %q: %w", timeSlotID, err)
	}

	sessions := make([]models.GameSession, len(records))
	for i, r := range records {
		sessions[i] = sessionFromRecord(r)
	}
	return sessions, nil
}

func (t *pbTx) CreateSession(ctx context.Context, session *models.GameSession) error {
	r, err := t.newRecord(CollectionSessions)
	if err != nil {
		return err
	}
	fillSession(r, session)
	if err := t.app.SaveWithContext(ctx, r); err != nil {
		return fmt.Errorf("create game session: %w", err)
	}
	session.ID = r.Id
	return nil
}

func (t *pbTx) UpdateSession(ctx context.Context, session *models.GameSession) error {
	r, err := t.find(CollectionSessions, session.ID)
	if err != nil {
		return err
	}
	fillSession(r, session)
	if err := t.app.SaveWithContext(ctx, r); err != nil {
		return fmt.Errorf("update game session %q: %w", session.ID, err)
	}
	return nil
}

func optionalTime(r *core.Record, field string) *time.Time {
	dt := r.GetDateTime(field)
	if dt.IsZero() {
		return nil
	}
	t := dt.Time()
	return &t
}

func setOptionalTime(r *core.Record, field string, t *time.Time) {
	if t == nil {
		r.Set(field, "")
		return
	}
	r.Set(field, *t)
}

func bookingFromRecord(r *core.Record) models.Booking {
	return models.Booking{
		ID:            r.Id,
		GameSessionID: r.GetString("game_session"),
		UserID:        r.GetString("user"),
		Role:          models.BookingRole(r.GetString("role")),
		Status:        models.BookingStatus(r.GetString("status")),
		Sequence:      int64(r.GetInt("sequence")),
		RegisteredAt:  r.GetDateTime("registered_at").Time(),
		CheckedInAt:   optionalTime(r, "checked_in_at"),
		CancelledAt:   optionalTime(r, "cancelled_at"),
	}
}

func fillBooking(r *core.Record, b *models.Booking) {
	r.Set("game_session", b.GameSessionID)
	r.Set("user", b.UserID)
	r.Set("role", string(b.Role))
	r.Set("status", string(b.Status))
	r.Set("sequence", b.Sequence)
	r.Set("registered_at", b.RegisteredAt)
	setOptionalTime(r, "checked_in_at", b.CheckedInAt)
	setOptionalTime(r, "cancelled_at", b.CancelledAt)
}

func (t *pbTx) GetBooking(ctx context.Context, id string) (models.Booking, error) {
	r, err := t.find(CollectionBookings, id)
	if err != nil {
		return models.Booking{}, err
	}
	return bookingFromRecord(r), nil
}

func (t *pbTx) ListBookings(ctx context.Context, sessionID string) ([]models.Booking, error) {
	records, err := t.app.FindRecordsByFilter(
		CollectionBookings,
		"game_session = {:session}",
		"registered_at,sequence",
		0,
		0,
		dbx.Params{"session": sessionID},
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings of session %q: %w", sessionID, err)
	}

	bookings := make([]models.Booking, len(records))
	for i, r := range records {
		bookings[i] = bookingFromRecord(r)
	}
	return bookings, nil
}

func (t *pbTx) CreateBooking(ctx context.Context, booking *models.Booking) error {
	r, err := t.newRecord(CollectionBookings)
	if err != nil {
		return err
	}
	fillBooking(r, booking)
	if err := t.app.SaveWithContext(ctx, r); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	booking.ID = r.Id
	return nil
}

func (t *pbTx) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	r, err := t.find(CollectionBookings, booking.ID)
	if err != nil {
		return err
	}
	fillBooking(r, booking)
	if err := t.app.SaveWithContext(ctx, r); err != nil {
		return fmt.Errorf("update booking %q: %w", booking.ID, err)
	}
	return nil
}

func (t *pbTx) AppendModeration(ctx context.Context, entry *models.ModerationEntry) error {
	r, err := t.newRecord(CollectionModeration)
	if err != nil {
		return err
	}
	r.Set("game_session", entry.GameSessionID)
	r.Set("reviewer", entry.ReviewerID)
	r.Set("action", string(entry.Action))
	r.Set("comment", entry.Comment)
	r.Set("from_status", string(entry.FromStatus))
	r.Set("to_status", string(entry.ToStatus))
	r.Set("timestamp", entry.Timestamp)
	if err := t.app.SaveWithContext(ctx, r); err != nil {
		return fmt.Errorf("append moderation entry: %w", err)
	}
	entry.ID = r.Id
	return nil
}

func (t *pbTx) ListModeration(ctx context.Context, sessionID string) ([]models.ModerationEntry, error) {
	records, err := t.app.FindRecordsByFilter(
		CollectionModeration,
		"game_session = {:session}",
		"timestamp",
		0,
		0,
		dbx.Params{"session": sessionID},
	)
	if err != nil {
		return nil, fmt.Errorf("list moderation of session %q: %w", sessionID, err)
	}

	entries := make([]models.ModerationEntry, len(records))
	for i, r := range records {
		entries[i] = models.ModerationEntry{
			ID:            r.Id,
			GameSessionID: r.GetString("game_session"),
			ReviewerID:    r.GetString("reviewer"),
			Action:        models.ModerationAction(r.GetString("action")),
			Comment:       r.GetString("comment"),
			FromStatus:    models.SessionStatus(r.GetString("from_status")),
			ToStatus:      models.SessionStatus(r.GetString("to_status")),
			Timestamp:     r.GetDateTime("timestamp").Time(),
		}
	}
	return entries, nil
}
