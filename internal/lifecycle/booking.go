package lifecycle

import (
	"exhibition-system/internal/status"
	"exhibition-system/models"
)

type BookingEvent string

const (
	BkPromote  BookingEvent = "promote"
	BkCancel   BookingEvent = "cancel"
	BkCheckIn  BookingEvent = "check_in"
	BkAttend   BookingEvent = "attend"
	BkNoShow   BookingEvent = "no_show"
	BkConfirm  BookingEvent = "confirm"
	BkWaitlist BookingEvent = "waitlist"
)

type BookingTransition struct {
	From  models.BookingStatus
	To    models.BookingStatus
	Event BookingEvent
}

var bookingTransitions = []BookingTransition{
	{From: models.BookingPending, To: models.BookingConfirmed, Event: BkConfirm},
	{From: models.BookingPending, To: models.BookingWaitingList, Event: BkWaitlist},
	{From: models.BookingPending, To: models.BookingCancelled, Event: BkCancel},

	{From: models.BookingWaitingList, To: models.BookingConfirmed, Event: BkPromote},
	{From: models.BookingWaitingList, To: models.BookingCancelled, Event: BkCancel},

	{From: models.BookingConfirmed, To: models.BookingCheckedIn, Event: BkCheckIn},
	{From: models.BookingConfirmed, To: models.BookingCancelled, Event: BkCancel},
	{From: models.BookingConfirmed, To: models.BookingNoShow, Event: BkNoShow},

	{From: models.BookingCheckedIn, To: models.BookingCancelled, Event: BkCancel},
	{From: models.BookingCheckedIn, To: models.BookingAttended, Event: BkAttend},
	{From: models.BookingCheckedIn, To: models.BookingNoShow, Event: BkNoShow},
}

func BookingTransitionFor(from models.BookingStatus, ev BookingEvent) (BookingTransition, bool) {
	for _, tr := range bookingTransitions {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return BookingTransition{}, false
}

func ApplyBooking(from models.BookingStatus, ev BookingEvent) (models.BookingStatus, error) {
	tr, ok := BookingTransitionFor(from, ev)
	if !ok {
		return from, &status.IllegalTransitionError{From: string(from), Event: string(ev)}
	}
	return tr.To, nil
}

func IsBookingTerminal(s models.BookingStatus) bool {
	switch s {
	case models.BookingCancelled, models.BookingAttended, models.BookingNoShow:
		return true
	}
	return false
}
