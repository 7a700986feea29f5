// Package store is the persistence boundary of the engine.
package store

import (
	"context"

	"exhibition-system/models"
)

// Tx is the set of reads and writes available inside one unit of work.
type Tx interface {
	GetZone(ctx context.Context, id string) (models.Zone, error)
	GetTable(ctx context.Context, id string) (models.Table, error)
	GetTimeSlot(ctx context.Context, id string) (models.TimeSlot, error)

	GetSession(ctx context.Context, id string) (models.GameSession, error)
	ListSessionsBySlot(ctx context.Context, timeSlotID string) ([]models.GameSession, error)
	CreateSession(ctx context.Context, session *models.GameSession) error
	UpdateSession(ctx context.Context, session *models.GameSession) error

	GetBooking(ctx context.Context, id string) (models.Booking, error)
	// ListBookings returns every booking of a session ordered by registration.
	ListBookings(ctx context.Context, sessionID string) ([]models.Booking, error)
	CreateBooking(ctx context.Context, booking *models.Booking) error
	UpdateBooking(ctx context.Context, booking *models.Booking) error

	AppendModeration(ctx context.Context, entry *models.ModerationEntry) error
	ListModeration(ctx context.Context, sessionID string) ([]models.ModerationEntry, error)
}

type Store interface {
	// RunInTransaction commits every write of fn or none of them.
	RunInTransaction(ctx context.Context, fn func(tx Tx) error) error
	// View runs read-only work outside a write transaction.
	View(ctx context.Context, fn func(tx Tx) error) error
}
