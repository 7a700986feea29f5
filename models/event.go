package models

import (
	"time"
)

type DomainEventType string

const (
	EventSessionCancelled  DomainEventType = "SessionCancelled"
	EventSessionApproved   DomainEventType = "SessionApproved"
	EventSessionRejected   DomainEventType = "SessionRejected"
	EventChangesRequested  DomainEventType = "ChangesRequested"
	EventBookingConfirmed  DomainEventType = "BookingConfirmed"
	EventBookingWaitlisted DomainEventType = "BookingWaitlisted"
	EventBookingCancelled  DomainEventType = "BookingCancelled"
	EventWaitlistPromoted  DomainEventType = "WaitlistPromoted"
)

// RoutingKey is the dotted form used on message brokers, e.g. "session.cancelled".
func (t DomainEventType) RoutingKey() string {
	switch t {
	case EventSessionCancelled:
		return "session.cancelled"
	case EventSessionApproved:
		return "session.approved"
	case EventSessionRejected:
		return "session.rejected"
	case EventChangesRequested:
		return "session.changes_requested"
	case EventBookingConfirmed:
		return "booking.confirmed"
	case EventBookingWaitlisted:
		return "booking.waitlisted"
	case EventBookingCancelled:
		return "booking.cancelled"
	case EventWaitlistPromoted:
		return "booking.promoted"
	}
	return "exhibition.unknown"
}

type DomainEvent struct {
	ID            string          `json:"id"`
	Type          DomainEventType `json:"type"`
	GameSessionID string          `json:"game_session_id"`
	BookingID     string          `json:"booking_id,omitempty"`
	UserID        string          `json:"user_id,omitempty"`
	ActorID       string          `json:"actor_id,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	// AffectedUserIDs lists the booking holders touched by a session-wide event.
	AffectedUserIDs []string  `json:"affected_user_ids,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}
