package lifecycle

import (
	"testing"

	"exhibition-system/internal/status"
	"exhibition-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_TransitionClosure(t *testing.T) {
	legal := map[models.SessionStatus]map[Event]models.SessionStatus{
		models.SessionDraft: {
			EvSubmit:      models.SessionPendingModeration,
			EvCancel:      models.SessionCancelled,
			EvAssignTable: models.SessionDraft,
		},
		models.SessionPendingModeration: {
			EvApprove:        models.SessionValidated,
			EvReject:         models.SessionRejected,
			EvRequestChanges: models.SessionChangesRequested,
			EvCancel:         models.SessionCancelled,
			EvAssignTable:    models.SessionPendingModeration,
		},
		models.SessionChangesRequested: {
			EvResubmit:    models.SessionPendingModeration,
			EvCancel:      models.SessionCancelled,
			EvAssignTable: models.SessionChangesRequested,
		},
		models.SessionValidated: {
			EvStart:       models.SessionInProgress,
			EvCancel:      models.SessionCancelled,
			EvAssignTable: models.SessionValidated,
		},
		models.SessionInProgress: {
			EvEnd:         models.SessionFinished,
			EvAssignTable: models.SessionInProgress,
		},
	}

	for _, from := range models.SessionStatuses {
		for _, ev := range Events {
			tr, err := Apply(from, ev)
			want, ok := legal[from][ev]
			if !ok {
				require.Error(t, err, "%s --%s--> should be illegal", from, ev)
				assert.ErrorIs(t, err, status.ErrIllegalTransition)
				continue
			}
			require.NoError(t, err, "%s --%s-->", from, ev)
			assert.Equal(t, want, tr.To, "%s --%s-->", from, ev)
		}
	}
}

func TestTerminalStatesAcceptNothing(t *testing.T) {
	for _, s := range []models.SessionStatus{models.SessionFinished, models.SessionCancelled, models.SessionRejected} {
		assert.True(t, IsTerminal(s))
		assert.Empty(t, NextEvents(s))
		for _, ev := range Events {
			_, err := Apply(s, ev)
			assert.ErrorIs(t, err, status.ErrIllegalTransition)
		}
	}
	assert.False(t, IsTerminal(models.SessionValidated))
}

func TestSubmit(t *testing.T) {
	draft := models.GameSession{Status: models.SessionDraft}
	withTable := models.GameSession{Status: models.SessionDraft, TableID: "table-1"}

	tests := []struct {
		name       string
		session    models.GameSession
		moderation bool
		expected   models.SessionStatus
	}{
		{"Moderated zone", withTable, true, models.SessionPendingModeration},
		{"Auto validation with table", withTable, false, models.SessionValidated},
		{"Auto validation without table", draft, false, models.SessionPendingModeration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := Submit(tt.session, tt.moderation)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, tr.To)
			assert.Equal(t, EvSubmit, tr.Event)
		})
	}

	_, err := Submit(models.GameSession{Status: models.SessionValidated, TableID: "t"}, false)
	assert.ErrorIs(t, err, status.ErrIllegalTransition)
}

func TestAssignTable(t *testing.T) {
	assert.NoError(t, AssignTable(models.SessionDraft, false))
	assert.NoError(t, AssignTable(models.SessionChangesRequested, false))
	assert.ErrorIs(t, AssignTable(models.SessionValidated, false), status.ErrIllegalTransition)
	assert.NoError(t, AssignTable(models.SessionValidated, true))
	assert.NoError(t, AssignTable(models.SessionInProgress, true))
	assert.ErrorIs(t, AssignTable(models.SessionFinished, true), status.ErrIllegalTransition)
}

func TestNextEvents(t *testing.T) {
	assert.Equal(t, []Event{EvSubmit, EvCancel, EvAssignTable}, NextEvents(models.SessionDraft))
	assert.Equal(t, []Event{EvStart, EvCancel}, NextEvents(models.SessionValidated))
	assert.Equal(t, []Event{EvEnd}, NextEvents(models.SessionInProgress))
}

func TestApplyBooking(t *testing.T) {
	next, err := ApplyBooking(models.BookingConfirmed, BkCheckIn)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCheckedIn, next)

	next, err = ApplyBooking(models.BookingWaitingList, BkPromote)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, next)

	_, err = ApplyBooking(models.BookingCheckedIn, BkCheckIn)
	assert.ErrorIs(t, err, status.ErrIllegalTransition)

	_, err = ApplyBooking(models.BookingCancelled, BkCancel)
	assert.ErrorIs(t, err, status.ErrIllegalTransition)

	assert.True(t, IsBookingTerminal(models.BookingNoShow))
	assert.False(t, IsBookingTerminal(models.BookingWaitingList))
}
