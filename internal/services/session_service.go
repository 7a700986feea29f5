package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"exhibition-system/internal/lifecycle"
	"exhibition-system/internal/locker"
	"exhibition-system/internal/schedule"
	"exhibition-system/internal/status"
	"exhibition-system/internal/store"
	"exhibition-system/models"
)

type CreateSessionInput struct {
	ZoneID     string `json:"zone_id"`
	TimeSlotID string `json:"time_slot_id"`
	TableID    string `json:"table_id"`
	Title      string `json:"title"`
	Capacity   int    `json:"capacity"`
	// Zero start and end pick the slot's default window.
	ScheduledStart  time.Time `json:"scheduled_start"`
	ScheduledEnd    time.Time `json:"scheduled_end"`
	CreatedByUserID string    `json:"created_by_user_id"`
}

// SessionService drives a game session through its lifecycle and carries
// the side effects of each transition.
type SessionService struct {
	engine *Engine
}

func NewSessionService(engine *Engine) *SessionService {
	return &SessionService{engine: engine}
}

func (s *SessionService) Create(ctx context.Context, in CreateSessionInput) (models.GameSession, error) {
	if in.Capacity <= 0 {
		return models.GameSession{}, status.ErrInvalidCapacity
	}
	if strings.TrimSpace(in.Title) == "" {
		return models.GameSession{}, fmt.Errorf("title is required: %w", status.ErrInvalidSession)
	}

	var created models.GameSession
	err := s.engine.run(ctx, "session.create", []string{locker.SlotKey(in.TimeSlotID)}, func(ctx context.Context, tx store.Tx, out *outbox) error {
		slot, err := tx.GetTimeSlot(ctx, in.TimeSlotID)
		if err != nil {
			return err
		}
		if in.ZoneID == "" {
			in.ZoneID = slot.ZoneID
		}
		if slot.ZoneID != in.ZoneID {
			return fmt.Errorf("time slot %s is not in zone %s: %w", slot.ID, in.ZoneID, status.ErrInvalidSession)
		}

		start, end := in.ScheduledStart, in.ScheduledEnd
		if start.IsZero() && end.IsZero() {
			start, end = schedule.DefaultWindow(slot, s.engine.DefaultDuration)
		}
		if err := schedule.Validate(slot, start, end); err != nil {
			return err
		}

		session := models.GameSession{
			ZoneID:          in.ZoneID,
			TimeSlotID:      slot.ID,
			Title:           strings.TrimSpace(in.Title),
			Capacity:        in.Capacity,
			ScheduledStart:  start,
			ScheduledEnd:    end,
			Status:          models.SessionDraft,
			CreatedByUserID: in.CreatedByUserID,
			CreatedAt:       out.now,
			UpdatedAt:       out.now,
		}
		if in.TableID != "" {
			if err := checkTable(ctx, tx, session, slot, in.TableID); err != nil {
				return err
			}
			session.TableID = in.TableID
		}

		if err := tx.CreateSession(ctx, &session); err != nil {
			return err
		}
		out.moved("", session.Status)
		created = session
		return nil
	})
	return created, err
}

func (s *SessionService) Get(ctx context.Context, id string) (models.GameSession, error) {
	var session models.GameSession
	err := s.engine.view(ctx, func(tx store.Tx) error {
		var err error
		session, err = tx.GetSession(ctx, id)
		return err
	})
	return session, err
}

// NextActions lists what a caller without organizer override may do next.
func (s *SessionService) NextActions(ctx context.Context, id string) ([]lifecycle.Event, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return lifecycle.NextEvents(session.Status), nil
}

// Reschedule moves an editable session inside its slot.
func (s *SessionService) Reschedule(ctx context.Context, id string, start, end time.Time) (models.GameSession, error) {
	return s.mutateWithSlot(ctx, "session.reschedule", id, func(ctx context.Context, tx store.Tx, out *outbox, session *models.GameSession) error {
		if session.Status != models.SessionDraft && session.Status != models.SessionChangesRequested {
			return &status.IllegalTransitionError{From: string(session.Status), Event: "reschedule"}
		}
		slot, err := tx.GetTimeSlot(ctx, session.TimeSlotID)
		if err != nil {
			return err
		}
		if err := schedule.Validate(slot, start, end); err != nil {
			return err
		}

		session.ScheduledStart, session.ScheduledEnd = start, end
		if session.HasTable() {
			if err := checkTable(ctx, tx, *session, slot, session.TableID); err != nil {
				return err
			}
		}
		return nil
	})
}

// AssignTable sets the session's table. Once validated only organizers may
// move a session, through override.
func (s *SessionService) AssignTable(ctx context.Context, id, tableID string, override bool) (models.GameSession, error) {
	return s.mutateWithSlot(ctx, "session.assign_table", id, func(ctx context.Context, tx store.Tx, out *outbox, session *models.GameSession) error {
		if err := lifecycle.AssignTable(session.Status, override); err != nil {
			return err
		}
		slot, err := tx.GetTimeSlot(ctx, session.TimeSlotID)
		if err != nil {
			return err
		}
		if err := checkTable(ctx, tx, *session, slot, tableID); err != nil {
			return err
		}
		session.TableID = tableID
		return nil
	})
}

// Submit sends a draft to moderation, or validates it straight away when the
// zone does not moderate and a table is already assigned.
func (s *SessionService) Submit(ctx context.Context, id string) (models.GameSession, error) {
	return s.mutate(ctx, "session.submit", id, func(ctx context.Context, tx store.Tx, out *outbox, session *models.GameSession) error {
		if err := validateWindow(ctx, tx, *session); err != nil {
			return err
		}
		zone, err := tx.GetZone(ctx, session.ZoneID)
		if err != nil {
			return err
		}
		tr, err := lifecycle.Submit(*session, zone.ModerationRequired)
		if err != nil {
			return err
		}

		from := session.Status
		session.Status = tr.To
		if tr.To == models.SessionValidated {
			entry := models.ModerationEntry{
				GameSessionID: session.ID,
				ReviewerID:    session.CreatedByUserID,
				Action:        models.ModerationAutoApproved,
				FromStatus:    from,
				ToStatus:      tr.To,
				Timestamp:     out.now,
			}
			if err := tx.AppendModeration(ctx, &entry); err != nil {
				return err
			}
			out.emit(models.DomainEvent{
				Type:          models.EventSessionApproved,
				GameSessionID: session.ID,
				ActorID:       session.CreatedByUserID,
			})
		}
		return nil
	})
}

func (s *SessionService) Resubmit(ctx context.Context, id string) (models.GameSession, error) {
	return s.mutate(ctx, "session.resubmit", id, func(ctx context.Context, tx store.Tx, out *outbox, session *models.GameSession) error {
		tr, err := lifecycle.Apply(session.Status, lifecycle.EvResubmit)
		if err != nil {
			return err
		}
		if err := validateWindow(ctx, tx, *session); err != nil {
			return err
		}
		session.Status = tr.To
		return nil
	})
}

// Start opens a validated session. Before its scheduled start it returns the
// session unchanged.
func (s *SessionService) Start(ctx context.Context, id string) (models.GameSession, error) {
	return s.mutate(ctx, "session.start", id, func(ctx context.Context, tx store.Tx, out *outbox, session *models.GameSession) error {
		tr, err := lifecycle.Apply(session.Status, lifecycle.EvStart)
		if err != nil {
			return err
		}
		if out.now.Before(session.ScheduledStart) {
			return nil
		}
		session.Status = tr.To
		return nil
	})
}

func (s *SessionService) End(ctx context.Context, id string) (models.GameSession, error) {
	return s.mutate(ctx, "session.end", id, func(ctx context.Context, tx store.Tx, out *outbox, session *models.GameSession) error {
		tr, err := lifecycle.Apply(session.Status, lifecycle.EvEnd)
		if err != nil {
			return err
		}
		session.Status = tr.To
		return nil
	})
}

// Cancel ends the session for good and cancels every booking still open on
// it, in the same unit of work as the transition.
func (s *SessionService) Cancel(ctx context.Context, id, actorID, reason string) (models.GameSession, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.GameSession{}, status.ErrReasonRequired
	}

	return s.mutate(ctx, "session.cancel", id, func(ctx context.Context, tx store.Tx, out *outbox, session *models.GameSession) error {
		tr, err := lifecycle.Apply(session.Status, lifecycle.EvCancel)
		if err != nil {
			return err
		}

		bookings, err := tx.ListBookings(ctx, session.ID)
		if err != nil {
			return err
		}
		var affected []string
		for _, b := range bookings {
			if lifecycle.IsBookingTerminal(b.Status) {
				continue
			}
			next, err := lifecycle.ApplyBooking(b.Status, lifecycle.BkCancel)
			if err != nil {
				return err
			}
			cancelledAt := out.now
			b.Status = next
			b.CancelledAt = &cancelledAt
			if err := tx.UpdateBooking(ctx, &b); err != nil {
				return err
			}
			affected = append(affected, b.UserID)
		}

		session.Status = tr.To
		session.CancellationReason = reason
		out.emit(models.DomainEvent{
			Type:            models.EventSessionCancelled,
			GameSessionID:   session.ID,
			ActorID:         actorID,
			Reason:          reason,
			AffectedUserIDs: affected,
		})
		return nil
	})
}

type sessionMutation func(ctx context.Context, tx store.Tx, out *outbox, session *models.GameSession) error

// mutate loads the session under its lock, lets fn change it and saves the
// result when fn succeeds.
func (s *SessionService) mutate(ctx context.Context, op, id string, fn sessionMutation) (models.GameSession, error) {
	return s.engine.mutateSession(ctx, op, []string{locker.SessionKey(id)}, id, fn)
}

// mutateWithSlot also holds the slot lock, for changes that compete for
// tables with sibling sessions.
func (s *SessionService) mutateWithSlot(ctx context.Context, op, id string, fn sessionMutation) (models.GameSession, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return models.GameSession{}, err
	}
	keys := []string{locker.SessionKey(id), locker.SlotKey(session.TimeSlotID)}
	return s.engine.mutateSession(ctx, op, keys, id, fn)
}

func (e *Engine) mutateSession(ctx context.Context, op string, keys []string, id string, fn sessionMutation) (models.GameSession, error) {
	var result models.GameSession
	err := e.run(ctx, op, keys, func(ctx context.Context, tx store.Tx, out *outbox) error {
		session, err := tx.GetSession(ctx, id)
		if err != nil {
			return err
		}
		before := session
		if err := fn(ctx, tx, out, &session); err != nil {
			return err
		}
		if session == before {
			result = session
			return nil
		}

		session.UpdatedAt = out.now
		if err := tx.UpdateSession(ctx, &session); err != nil {
			return err
		}
		if before.Status != session.Status {
			out.moved(before.Status, session.Status)
			bookings, err := tx.ListBookings(ctx, session.ID)
			if err != nil {
				return err
			}
			out.seats = projectionOf(session, bookings)
		}
		result = session
		return nil
	})
	return result, err
}

func validateWindow(ctx context.Context, tx store.Tx, session models.GameSession) error {
	slot, err := tx.GetTimeSlot(ctx, session.TimeSlotID)
	if err != nil {
		return err
	}
	return schedule.Validate(slot, session.ScheduledStart, session.ScheduledEnd)
}

// checkTable verifies the table sits in the session's zone and is free in the
// slot once the slot's buffer time is added around each session.
func checkTable(ctx context.Context, tx store.Tx, session models.GameSession, slot models.TimeSlot, tableID string) error {
	table, err := tx.GetTable(ctx, tableID)
	if err != nil {
		return err
	}
	if table.ZoneID != session.ZoneID {
		return fmt.Errorf("table %s is not in zone %s: %w", table.ID, session.ZoneID, status.ErrInvalidSession)
	}

	siblings, err := tx.ListSessionsBySlot(ctx, slot.ID)
	if err != nil {
		return err
	}
	for _, other := range siblings {
		if other.ID == session.ID || other.TableID != tableID {
			continue
		}
		if other.Status == models.SessionCancelled || other.Status == models.SessionRejected {
			continue
		}
		if schedule.Overlaps(session.ScheduledStart, session.ScheduledEnd, other.ScheduledStart, other.ScheduledEnd, slot.Buffer()) {
			return fmt.Errorf("table %s is taken by session %s: %w", table.Name, other.ID, status.ErrTableConflict)
		}
	}
	return nil
}
