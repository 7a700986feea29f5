// Package lifecycle holds the authoritative transition tables for game
// sessions and bookings. Services and UI layers both query it for legal moves.
package lifecycle

import (
	"exhibition-system/internal/status"
	"exhibition-system/models"
)

type Event string

const (
	EvSubmit         Event = "submit"
	EvApprove        Event = "approve"
	EvReject         Event = "reject"
	EvRequestChanges Event = "request_changes"
	EvResubmit       Event = "resubmit"
	EvStart          Event = "start"
	EvEnd            Event = "end"
	EvCancel         Event = "cancel"
	EvAssignTable    Event = "assign_table"
)

// Events lists every session event.
var Events = []Event{
	EvSubmit, EvApprove, EvReject, EvRequestChanges, EvResubmit,
	EvStart, EvEnd, EvCancel, EvAssignTable,
}

type Transition struct {
	From  models.SessionStatus
	To    models.SessionStatus
	Event Event
	// NeedsReason marks events that carry a mandatory reason or comment.
	NeedsReason bool
	// NeedsOverride marks edges only organizers may take.
	NeedsOverride bool
}

var transitionsTable = []Transition{
	{From: models.SessionDraft, To: models.SessionPendingModeration, Event: EvSubmit},
	{From: models.SessionPendingModeration, To: models.SessionValidated, Event: EvApprove},
	{From: models.SessionPendingModeration, To: models.SessionRejected, Event: EvReject, NeedsReason: true},
	{From: models.SessionPendingModeration, To: models.SessionChangesRequested, Event: EvRequestChanges, NeedsReason: true},
	{From: models.SessionChangesRequested, To: models.SessionPendingModeration, Event: EvResubmit},
	{From: models.SessionValidated, To: models.SessionInProgress, Event: EvStart},
	{From: models.SessionInProgress, To: models.SessionFinished, Event: EvEnd},

	{From: models.SessionDraft, To: models.SessionCancelled, Event: EvCancel, NeedsReason: true},
	{From: models.SessionPendingModeration, To: models.SessionCancelled, Event: EvCancel, NeedsReason: true},
	{From: models.SessionChangesRequested, To: models.SessionCancelled, Event: EvCancel, NeedsReason: true},
	{From: models.SessionValidated, To: models.SessionCancelled, Event: EvCancel, NeedsReason: true},

	{From: models.SessionDraft, To: models.SessionDraft, Event: EvAssignTable},
	{From: models.SessionPendingModeration, To: models.SessionPendingModeration, Event: EvAssignTable},
	{From: models.SessionChangesRequested, To: models.SessionChangesRequested, Event: EvAssignTable},
	{From: models.SessionValidated, To: models.SessionValidated, Event: EvAssignTable, NeedsOverride: true},
	{From: models.SessionInProgress, To: models.SessionInProgress, Event: EvAssignTable, NeedsOverride: true},
}

// autoValidate is the partner fast path: submit lands directly on VALIDATED
// without ever exposing PENDING_MODERATION.
var autoValidate = Transition{From: models.SessionDraft, To: models.SessionValidated, Event: EvSubmit}

// TransitionFor returns the allowed transition for a given state+event.
func TransitionFor(from models.SessionStatus, ev Event) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}

// Apply resolves ev from the given state or reports an IllegalTransitionError.
func Apply(from models.SessionStatus, ev Event) (Transition, error) {
	tr, ok := TransitionFor(from, ev)
	if !ok {
		return Transition{}, &status.IllegalTransitionError{From: string(from), Event: string(ev)}
	}
	return tr, nil
}

// Submit picks the submit edge. With moderation disabled and a table already
// assigned the session is validated in the same step.
func Submit(session models.GameSession, moderationRequired bool) (Transition, error) {
	tr, err := Apply(session.Status, EvSubmit)
	if err != nil {
		return Transition{}, err
	}
	if !moderationRequired && session.HasTable() {
		return autoValidate, nil
	}
	return tr, nil
}

// AssignTable checks whether the table may change in the current state.
func AssignTable(from models.SessionStatus, override bool) error {
	tr, err := Apply(from, EvAssignTable)
	if err != nil {
		return err
	}
	if tr.NeedsOverride && !override {
		return &status.IllegalTransitionError{From: string(from), Event: string(EvAssignTable)}
	}
	return nil
}

func IsTerminal(s models.SessionStatus) bool {
	switch s {
	case models.SessionFinished, models.SessionCancelled, models.SessionRejected:
		return true
	}
	return false
}

// NextEvents lists the events a caller without organizer override may fire
// from s, in table order.
func NextEvents(s models.SessionStatus) []Event {
	var out []Event
	seen := map[Event]bool{}
	for _, tr := range transitionsTable {
		if tr.From != s || tr.NeedsOverride || seen[tr.Event] {
			continue
		}
		seen[tr.Event] = true
		out = append(out, tr.Event)
	}
	return out
}
