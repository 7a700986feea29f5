package services

import (
	"errors"
	"testing"

	"exhibition-system/internal/lifecycle"
	"exhibition-system/internal/status"
	"exhibition-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionService_CreateDefaultsToSlotWindow(t *testing.T) {
	f := newFixture(t)
	slotID, _ := f.addSlot("zone-mod")

	s, err := f.sessions.Create(f.ctx, CreateSessionInput{TimeSlotID: slotID, Title: "Cascadia", Capacity: 4})
	require.NoError(t, err)

	assert.Equal(t, "zone-mod", s.ZoneID)
	assert.Equal(t, at(9, 0), s.ScheduledStart)
	assert.Equal(t, at(11, 0), s.ScheduledEnd)
	assert.False(t, s.HasTable())
	assert.Equal(t, []string{"->DRAFT"}, f.metrics.transitions)
}

func TestSessionService_CreateValidatesWindow(t *testing.T) {
	f := newFixture(t)
	slotID, _ := f.addSlot("zone-mod")

	tests := []struct {
		name       string
		start, end [2]int
		codes      []status.ValidationCode
	}{
		{"ends after slot", [2]int{9, 0}, [2]int{14, 0}, []status.ValidationCode{status.EndAfterSlot, status.DurationExceedsMax}},
		{"too short", [2]int{9, 0}, [2]int{9, 20}, []status.ValidationCode{status.DurationTooShort}},
		{"starts before slot", [2]int{8, 30}, [2]int{10, 0}, []status.ValidationCode{status.StartBeforeSlot}},
		{"end before start", [2]int{11, 0}, [2]int{10, 0}, []status.ValidationCode{status.EndNotAfterStart}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.sessions.Create(f.ctx, CreateSessionInput{
				TimeSlotID:     slotID,
				Title:          "Root",
				Capacity:       4,
				ScheduledStart: at(tt.start[0], tt.start[1]),
				ScheduledEnd:   at(tt.end[0], tt.end[1]),
			})
			require.ErrorIs(t, err, status.ErrValidation)

			var verrs status.ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.ElementsMatch(t, tt.codes, verrs.Codes())
		})
	}
}

func TestSessionService_CreateRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	slotID, _ := f.addSlot("zone-mod")

	_, err := f.sessions.Create(f.ctx, CreateSessionInput{TimeSlotID: slotID, Title: "Root", Capacity: 0})
	assert.ErrorIs(t, err, status.ErrInvalidCapacity)

	_, err = f.sessions.Create(f.ctx, CreateSessionInput{TimeSlotID: slotID, Title: "  ", Capacity: 4})
	assert.ErrorIs(t, err, status.ErrInvalidSession)

	_, err = f.sessions.Create(f.ctx, CreateSessionInput{ZoneID: "zone-open", TimeSlotID: slotID, Title: "Root", Capacity: 4})
	assert.ErrorIs(t, err, status.ErrInvalidSession)

	_, err = f.sessions.Create(f.ctx, CreateSessionInput{TimeSlotID: "missing", Title: "Root", Capacity: 4})
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestSessionService_TableConflictHonoursBuffer(t *testing.T) {
	f := newFixture(t)
	slotID, tableID := f.addSlot("zone-mod")

	first, err := f.sessions.Create(f.ctx, CreateSessionInput{
		TimeSlotID: slotID, TableID: tableID, Title: "Root", Capacity: 4,
		ScheduledStart: at(9, 0), ScheduledEnd: at(10, 30),
	})
	require.NoError(t, err)

	// 10:30 + 15 minutes of buffer still overlaps a 10:40 start.
	_, err = f.sessions.Create(f.ctx, CreateSessionInput{
		TimeSlotID: slotID, TableID: tableID, Title: "Wingspan", Capacity: 4,
		ScheduledStart: at(10, 40), ScheduledEnd: at(12, 0),
	})
	assert.ErrorIs(t, err, status.ErrTableConflict)

	_, err = f.sessions.Create(f.ctx, CreateSessionInput{
		TimeSlotID: slotID, TableID: tableID, Title: "Wingspan", Capacity: 4,
		ScheduledStart: at(11, 0), ScheduledEnd: at(12, 30),
	})
	assert.NoError(t, err)

	// A cancelled session frees its table.
	_, err = f.sessions.Cancel(f.ctx, first.ID, "organizer", "designer unavailable")
	require.NoError(t, err)
	_, err = f.sessions.Create(f.ctx, CreateSessionInput{
		TimeSlotID: slotID, TableID: tableID, Title: "Azul", Capacity: 4,
		ScheduledStart: at(9, 0), ScheduledEnd: at(10, 0),
	})
	assert.NoError(t, err)
}

func TestSessionService_AssignTable(t *testing.T) {
	f := newFixture(t)
	s := f.draftSession(t, "zone-mod", 4, false)
	_, tableOtherZone := f.addSlot("zone-open")
	_, tableSameZone := f.addSlot("zone-mod")

	_, err := f.sessions.AssignTable(f.ctx, s.ID, tableOtherZone, false)
	assert.ErrorIs(t, err, status.ErrInvalidSession)

	_, err = f.sessions.AssignTable(f.ctx, s.ID, "missing", false)
	assert.ErrorIs(t, err, status.ErrNotFound)

	got, err := f.sessions.AssignTable(f.ctx, s.ID, tableSameZone, false)
	require.NoError(t, err)
	assert.Equal(t, tableSameZone, got.TableID)
}

func TestSessionService_AssignTableAfterValidationNeedsOverride(t *testing.T) {
	f := newFixture(t)
	s := f.validatedSession(t, 4)
	_, otherTable := f.addSlot("zone-mod")

	_, err := f.sessions.AssignTable(f.ctx, s.ID, otherTable, false)
	assert.ErrorIs(t, err, status.ErrIllegalTransition)

	got, err := f.sessions.AssignTable(f.ctx, s.ID, otherTable, true)
	require.NoError(t, err)
	assert.Equal(t, otherTable, got.TableID)
	assert.Equal(t, models.SessionValidated, got.Status)
}

func TestSessionService_AutoValidation(t *testing.T) {
	f := newFixture(t)
	s := f.draftSession(t, "zone-open", 4, true)

	got, err := f.sessions.Submit(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionValidated, got.Status)

	history, err := f.moderation.History(f.ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.ModerationAutoApproved, history[0].Action)
	assert.Equal(t, models.SessionDraft, history[0].FromStatus)
	assert.Equal(t, models.SessionValidated, history[0].ToStatus)

	assert.Contains(t, f.metrics.transitions, "DRAFT->VALIDATED")
	assert.NotContains(t, f.metrics.transitions, "DRAFT->PENDING_MODERATION")
	assert.Len(t, f.recorder.OfType(models.EventSessionApproved), 1)
}

func TestSessionService_OpenZoneWithoutTableGoesToModeration(t *testing.T) {
	f := newFixture(t)
	s := f.draftSession(t, "zone-open", 4, false)

	got, err := f.sessions.Submit(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionPendingModeration, got.Status)
}

func TestSessionService_RescheduleOnlyWhileEditable(t *testing.T) {
	f := newFixture(t)
	s := f.draftSession(t, "zone-mod", 4, true)

	got, err := f.sessions.Reschedule(f.ctx, s.ID, at(11, 0), at(12, 30))
	require.NoError(t, err)
	assert.Equal(t, at(11, 0), got.ScheduledStart)

	_, err = f.sessions.Reschedule(f.ctx, s.ID, at(12, 0), at(14, 0))
	assert.ErrorIs(t, err, status.ErrValidation)

	_, err = f.sessions.Submit(f.ctx, s.ID)
	require.NoError(t, err)
	_, err = f.sessions.Reschedule(f.ctx, s.ID, at(9, 0), at(10, 0))
	assert.ErrorIs(t, err, status.ErrIllegalTransition)
}

func TestSessionService_StartEnd(t *testing.T) {
	f := newFixture(t)
	s := f.validatedSession(t, 4)

	f.clock.Set(at(9, 59))
	got, err := f.sessions.Start(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionValidated, got.Status)

	_, err = f.sessions.End(f.ctx, s.ID)
	assert.ErrorIs(t, err, status.ErrIllegalTransition)

	f.clock.Set(at(10, 0))
	got, err = f.sessions.Start(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionInProgress, got.Status)

	got, err = f.sessions.End(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionFinished, got.Status)

	_, err = f.sessions.Cancel(f.ctx, s.ID, "organizer", "too late")
	var illegal *status.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, "FINISHED", illegal.From)
	assert.Equal(t, "cancel", illegal.Event)
}

func TestSessionService_CancelCascades(t *testing.T) {
	f := newFixture(t)
	s := f.validatedSession(t, 1)
	a := f.reserve(t, s.ID, "alice")
	b := f.reserve(t, s.ID, "bob")

	_, err := f.sessions.Cancel(f.ctx, s.ID, "organizer", "   ")
	assert.ErrorIs(t, err, status.ErrReasonRequired)

	got, err := f.sessions.Cancel(f.ctx, s.ID, "organizer", "power outage")
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, got.Status)
	assert.Equal(t, "power outage", got.CancellationReason)

	for _, id := range []string{a.ID, b.ID} {
		booking := f.booking(t, id)
		assert.Equal(t, models.BookingCancelled, booking.Status)
		assert.NotNil(t, booking.CancelledAt)
	}

	cancelled := f.recorder.OfType(models.EventSessionCancelled)
	require.Len(t, cancelled, 1)
	assert.Equal(t, []string{"alice", "bob"}, cancelled[0].AffectedUserIDs)
	assert.Equal(t, "power outage", cancelled[0].Reason)
	assert.Empty(t, f.recorder.OfType(models.EventWaitlistPromoted))

	_, err = f.ledger.Reserve(f.ctx, s.ID, "carol", models.RolePlayer)
	assert.ErrorIs(t, err, status.ErrSessionNotBookable)
}

func TestSessionService_NextActions(t *testing.T) {
	f := newFixture(t)
	s := f.draftSession(t, "zone-mod", 4, true)

	actions, err := f.sessions.NextActions(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []lifecycle.Event{lifecycle.EvSubmit, lifecycle.EvCancel, lifecycle.EvAssignTable}, actions)

	_, err = f.sessions.NextActions(f.ctx, "missing")
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestSessionService_RetriesOnceOnLockConflict(t *testing.T) {
	f := newFixture(t)
	s := f.validatedSession(t, 2)

	flaky := &flakyLocker{failures: 1}
	f.engine.Locker = flaky
	b, err := f.ledger.Reserve(f.ctx, s.ID, "alice", models.RolePlayer)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, b.Status)
	assert.Equal(t, int32(2), flaky.calls)

	stubborn := &flakyLocker{failures: 2}
	f.engine.Locker = stubborn
	_, err = f.ledger.Reserve(f.ctx, s.ID, "bob", models.RolePlayer)
	assert.ErrorIs(t, err, status.ErrConcurrencyConflict)
	assert.Equal(t, int32(2), stubborn.calls)

	bookings, err := f.ledger.Bookings(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
}
