package models

import (
	"time"
)

type BookingRole string

const (
	RoleGM        BookingRole = "GM"
	RolePlayer    BookingRole = "PLAYER"
	RoleAssistant BookingRole = "ASSISTANT"
	RoleSpectator BookingRole = "SPECTATOR"
)

func (r BookingRole) Valid() bool {
	switch r {
	case RoleGM, RolePlayer, RoleAssistant, RoleSpectator:
		return true
	}
	return false
}

type BookingStatus string

const (
	BookingPending     BookingStatus = "PENDING"
	BookingConfirmed   BookingStatus = "CONFIRMED"
	BookingWaitingList BookingStatus = "WAITING_LIST"
	BookingCheckedIn   BookingStatus = "CHECKED_IN"
	BookingAttended    BookingStatus = "ATTENDED"
	BookingNoShow      BookingStatus = "NO_SHOW"
	BookingCancelled   BookingStatus = "CANCELLED"
)

type Booking struct {
	ID            string        `json:"id"`
	GameSessionID string        `json:"game_session_id"`
	UserID        string        `json:"user_id"`
	Role          BookingRole   `json:"role"`
	Status        BookingStatus `json:"status"`
	Sequence      int64         `json:"sequence"`
	RegisteredAt  time.Time     `json:"registered_at"`
	CheckedInAt   *time.Time    `json:"checked_in_at,omitempty"`
	CancelledAt   *time.Time    `json:"cancelled_at,omitempty"`
}

func (b Booking) Active() bool {
	return b.Status != BookingCancelled
}

// HoldsSeat reports whether the booking occupies one of the session's seats.
// Checked-in players keep their seat.
func (b Booking) HoldsSeat() bool {
	return b.Role == RolePlayer && (b.Status == BookingConfirmed || b.Status == BookingCheckedIn)
}

// Before orders waitlisted bookings: earliest registration first, sequence breaks ties.
func (b Booking) Before(other Booking) bool {
	if !b.RegisteredAt.Equal(other.RegisteredAt) {
		return b.RegisteredAt.Before(other.RegisteredAt)
	}
	return b.Sequence < other.Sequence
}

// SeatProjection is the read model handed to presentation layers.
type SeatProjection struct {
	GameSessionID     string        `json:"game_session_id"`
	Status            SessionStatus `json:"status"`
	Capacity          int           `json:"capacity"`
	Confirmed         int           `json:"confirmed"`
	Available         int           `json:"available"`
	Waitlisted        int           `json:"waitlisted"`
	HasAvailableSeats bool          `json:"has_available_seats"`
}
