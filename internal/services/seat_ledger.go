package services

import (
	"context"
	"fmt"
	"log/slog"

	"exhibition-system/internal/lifecycle"
	"exhibition-system/internal/locker"
	"exhibition-system/internal/status"
	"exhibition-system/internal/store"
	"exhibition-system/models"
)

// SeatLedger owns bookings: seat arithmetic, the FIFO waiting list,
// check-in and attendance.
type SeatLedger struct {
	engine *Engine
}

func NewSeatLedger(engine *Engine) *SeatLedger {
	return &SeatLedger{engine: engine}
}

// Reserve books userID onto the session. Players beyond capacity land on the
// waiting list; other roles never take a seat.
func (l *SeatLedger) Reserve(ctx context.Context, sessionID, userID string, role models.BookingRole) (models.Booking, error) {
	if !role.Valid() {
		return models.Booking{}, fmt.Errorf("%q: %w", role, status.ErrInvalidRole)
	}

	var booking models.Booking
	err := l.engine.run(ctx, "ledger.reserve", []string{locker.SessionKey(sessionID)}, func(ctx context.Context, tx store.Tx, out *outbox) error {
		session, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		bookings, err := tx.ListBookings(ctx, sessionID)
		if err != nil {
			return err
		}

		var lastSeq int64
		for _, b := range bookings {
			if b.UserID == userID && b.Active() {
				return status.ErrAlreadyBooked
			}
			lastSeq = max(lastSeq, b.Sequence)
		}
		if session.Status != models.SessionValidated {
			return fmt.Errorf("session is %s: %w", session.Status, status.ErrSessionNotBookable)
		}

		booking = models.Booking{
			GameSessionID: sessionID,
			UserID:        userID,
			Role:          role,
			Status:        models.BookingPending,
			Sequence:      lastSeq + 1,
			RegisteredAt:  out.now,
		}

		ev := lifecycle.BkConfirm
		if role == models.RolePlayer && heldSeats(bookings) >= session.Capacity {
			ev = lifecycle.BkWaitlist
		}
		if booking.Status, err = lifecycle.ApplyBooking(booking.Status, ev); err != nil {
			return err
		}
		if err := tx.CreateBooking(ctx, &booking); err != nil {
			return err
		}

		evtType := models.EventBookingConfirmed
		if booking.Status == models.BookingWaitingList {
			evtType = models.EventBookingWaitlisted
		}
		out.emit(models.DomainEvent{
			Type:          evtType,
			GameSessionID: sessionID,
			BookingID:     booking.ID,
			UserID:        userID,
		})
		out.seats = projectionOf(session, append(bookings, booking))
		return nil
	})

	l.track("reserve", booking, err)
	return booking, err
}

// Cancel releases a booking. A freed seat goes to the head of the waiting
// list while the session is still open for booking.
func (l *SeatLedger) Cancel(ctx context.Context, bookingID string) (models.Booking, error) {
	sessionID, err := l.sessionOf(ctx, bookingID)
	if err != nil {
		return models.Booking{}, err
	}

	var booking models.Booking
	err = l.engine.run(ctx, "ledger.cancel", []string{locker.SessionKey(sessionID)}, func(ctx context.Context, tx store.Tx, out *outbox) error {
		session, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		booking, err = tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if lifecycle.IsBookingTerminal(booking.Status) {
			return fmt.Errorf("booking is %s: %w", booking.Status, status.ErrBookingNotActive)
		}
		if session.Status == models.SessionFinished {
			return fmt.Errorf("session is %s: %w", session.Status, status.ErrSessionNotBookable)
		}

		heldSeat := booking.HoldsSeat()
		if booking.Status, err = lifecycle.ApplyBooking(booking.Status, lifecycle.BkCancel); err != nil {
			return err
		}
		cancelledAt := out.now
		booking.CancelledAt = &cancelledAt
		if err := tx.UpdateBooking(ctx, &booking); err != nil {
			return err
		}
		out.emit(models.DomainEvent{
			Type:          models.EventBookingCancelled,
			GameSessionID: sessionID,
			BookingID:     booking.ID,
			UserID:        booking.UserID,
		})

		bookings, err := tx.ListBookings(ctx, sessionID)
		if err != nil {
			return err
		}
		if heldSeat && session.Status == models.SessionValidated {
			if bookings, err = promote(ctx, tx, out, session, bookings); err != nil {
				return err
			}
		}
		out.seats = projectionOf(session, bookings)
		return nil
	})

	l.track("cancel", booking, err)
	return booking, err
}

// promote fills free seats from the head of the waiting list. Seats are
// recounted from the committed bookings, so each freed seat is handed out
// exactly once.
func promote(ctx context.Context, tx store.Tx, out *outbox, session models.GameSession, bookings []models.Booking) ([]models.Booking, error) {
	held := heldSeats(bookings)
	for i := range bookings {
		if held >= session.Capacity {
			break
		}
		b := &bookings[i]
		if b.Status != models.BookingWaitingList {
			continue
		}

		next, err := lifecycle.ApplyBooking(b.Status, lifecycle.BkPromote)
		if err != nil {
			return nil, err
		}
		b.Status = next
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return nil, err
		}
		held++
		out.promotions++
		out.emit(models.DomainEvent{
			Type:          models.EventWaitlistPromoted,
			GameSessionID: session.ID,
			BookingID:     b.ID,
			UserID:        b.UserID,
		})
	}
	return bookings, nil
}

// CheckIn marks a confirmed booking as present. It is only open during the
// grace period right before the session starts.
func (l *SeatLedger) CheckIn(ctx context.Context, bookingID string) (models.Booking, error) {
	sessionID, err := l.sessionOf(ctx, bookingID)
	if err != nil {
		return models.Booking{}, err
	}

	var booking models.Booking
	err = l.engine.run(ctx, "ledger.check_in", []string{locker.SessionKey(sessionID)}, func(ctx context.Context, tx store.Tx, out *outbox) error {
		session, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		booking, err = tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking.Status != models.BookingConfirmed {
			return fmt.Errorf("booking is %s: %w", booking.Status, status.ErrNotConfirmed)
		}

		opens := session.ScheduledStart.Add(-l.engine.CheckInGrace)
		if out.now.Before(opens) || !out.now.Before(session.ScheduledStart) {
			return fmt.Errorf("check-in runs from %s to %s: %w",
				opens.Format("15:04"), session.ScheduledStart.Format("15:04"), status.ErrOutsideCheckInWindow)
		}

		if booking.Status, err = lifecycle.ApplyBooking(booking.Status, lifecycle.BkCheckIn); err != nil {
			return err
		}
		checkedInAt := out.now
		booking.CheckedInAt = &checkedInAt
		return tx.UpdateBooking(ctx, &booking)
	})

	l.track("check_in", booking, err)
	return booking, err
}

// MarkAttendance records the outcome of one booking after the session
// finished.
func (l *SeatLedger) MarkAttendance(ctx context.Context, bookingID string, attended bool) (models.Booking, error) {
	sessionID, err := l.sessionOf(ctx, bookingID)
	if err != nil {
		return models.Booking{}, err
	}

	var booking models.Booking
	err = l.engine.run(ctx, "ledger.mark_attendance", []string{locker.SessionKey(sessionID)}, func(ctx context.Context, tx store.Tx, out *outbox) error {
		session, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.Status != models.SessionFinished {
			return fmt.Errorf("session is %s: %w", session.Status, status.ErrSessionNotFinished)
		}
		booking, err = tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}

		ev := lifecycle.BkNoShow
		if attended {
			if booking.Status != models.BookingCheckedIn {
				return fmt.Errorf("booking is %s: %w", booking.Status, status.ErrNotCheckedIn)
			}
			ev = lifecycle.BkAttend
		}
		if booking.Status, err = lifecycle.ApplyBooking(booking.Status, ev); err != nil {
			return err
		}
		if err := tx.UpdateBooking(ctx, &booking); err != nil {
			return err
		}
		bookings, err := tx.ListBookings(ctx, sessionID)
		if err != nil {
			return err
		}
		out.seats = projectionOf(session, bookings)
		return nil
	})

	l.track("mark_attendance", booking, err)
	return booking, err
}

// CloseAttendance settles every open booking of a finished session: checked
// in players attended, confirmed ones did not show up.
func (l *SeatLedger) CloseAttendance(ctx context.Context, sessionID string) ([]models.Booking, error) {
	var settled []models.Booking
	err := l.engine.run(ctx, "ledger.close_attendance", []string{locker.SessionKey(sessionID)}, func(ctx context.Context, tx store.Tx, out *outbox) error {
		settled = settled[:0]

		session, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.Status != models.SessionFinished {
			return fmt.Errorf("session is %s: %w", session.Status, status.ErrSessionNotFinished)
		}
		bookings, err := tx.ListBookings(ctx, sessionID)
		if err != nil {
			return err
		}

		for _, b := range bookings {
			var ev lifecycle.BookingEvent
			switch b.Status {
			case models.BookingCheckedIn:
				ev = lifecycle.BkAttend
			case models.BookingConfirmed:
				ev = lifecycle.BkNoShow
			default:
				continue
			}
			if b.Status, err = lifecycle.ApplyBooking(b.Status, ev); err != nil {
				return err
			}
			if err := tx.UpdateBooking(ctx, &b); err != nil {
				return err
			}
			settled = append(settled, b)
		}
		bookings, err = tx.ListBookings(ctx, sessionID)
		if err != nil {
			return err
		}
		out.seats = projectionOf(session, bookings)
		return nil
	})
	if err == nil {
		slog.Info("Attendance closed", "session_id", sessionID, "settled", len(settled))
	}
	return settled, err
}

// Seats returns the seat projection, from the cache when one is configured.
// A miss is refilled under the session lock so it cannot race a mutation.
func (l *SeatLedger) Seats(ctx context.Context, sessionID string) (models.SeatProjection, error) {
	c := l.engine.Cache
	if c == nil {
		return l.project(ctx, sessionID)
	}

	p, ok, err := c.Get(ctx, sessionID)
	if err != nil {
		slog.Warn("Seat projection cache unavailable", "session_id", sessionID, "error", err)
		return l.project(ctx, sessionID)
	}
	if ok {
		return p, nil
	}

	release, err := l.engine.Locker.Lock(ctx, locker.SessionKey(sessionID))
	if err != nil {
		slog.Debug("Serving seats without cache fill", "session_id", sessionID, "error", err)
		return l.project(ctx, sessionID)
	}
	defer release()

	p, err = l.project(ctx, sessionID)
	if err != nil {
		return models.SeatProjection{}, err
	}
	l.engine.refreshSeats(ctx, &p)
	return p, nil
}

func (l *SeatLedger) project(ctx context.Context, sessionID string) (models.SeatProjection, error) {
	var p models.SeatProjection
	err := l.engine.view(ctx, func(tx store.Tx) error {
		session, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		bookings, err := tx.ListBookings(ctx, sessionID)
		if err != nil {
			return err
		}
		p = *projectionOf(session, bookings)
		return nil
	})
	if err != nil {
		return models.SeatProjection{}, err
	}
	return p, nil
}

// WaitlistPosition is the 1-based place of a booking on its session's waiting
// list, or 0 when the booking is not waiting.
func (l *SeatLedger) WaitlistPosition(ctx context.Context, bookingID string) (int, error) {
	position := 0
	err := l.engine.view(ctx, func(tx store.Tx) error {
		booking, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking.Status != models.BookingWaitingList {
			return nil
		}
		bookings, err := tx.ListBookings(ctx, booking.GameSessionID)
		if err != nil {
			return err
		}
		for _, b := range bookings {
			if b.Status != models.BookingWaitingList {
				continue
			}
			position++
			if b.ID == bookingID {
				return nil
			}
		}
		return nil
	})
	return position, err
}

// Bookings lists every booking of a session in registration order.
func (l *SeatLedger) Bookings(ctx context.Context, sessionID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := l.engine.view(ctx, func(tx store.Tx) error {
		if _, err := tx.GetSession(ctx, sessionID); err != nil {
			return err
		}
		var err error
		bookings, err = tx.ListBookings(ctx, sessionID)
		return err
	})
	return bookings, err
}

func (l *SeatLedger) Booking(ctx context.Context, bookingID string) (models.Booking, error) {
	var booking models.Booking
	err := l.engine.view(ctx, func(tx store.Tx) error {
		var err error
		booking, err = tx.GetBooking(ctx, bookingID)
		return err
	})
	return booking, err
}

func (l *SeatLedger) sessionOf(ctx context.Context, bookingID string) (string, error) {
	b, err := l.Booking(ctx, bookingID)
	return b.GameSessionID, err
}

func (l *SeatLedger) track(operation string, booking models.Booking, err error) {
	result := string(booking.Status)
	if err != nil {
		result = "error"
		if status.IsUserFacing(err) {
			result = "refused"
		}
	}
	l.engine.Metrics.TrackBookingOperation(operation, result)
}

func heldSeats(bookings []models.Booking) int {
	held := 0
	for _, b := range bookings {
		if b.HoldsSeat() {
			held++
		}
	}
	return held
}

func projectionOf(session models.GameSession, bookings []models.Booking) *models.SeatProjection {
	p := &models.SeatProjection{
		GameSessionID: session.ID,
		Status:        session.Status,
		Capacity:      session.Capacity,
		Confirmed:     heldSeats(bookings),
	}
	for _, b := range bookings {
		if b.Status == models.BookingWaitingList {
			p.Waitlisted++
		}
	}
	p.Available = max(p.Capacity-p.Confirmed, 0)
	p.HasAvailableSeats = p.Available > 0
	return p
}
