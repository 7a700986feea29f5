package migrations

import (
	"exhibition-system/models"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func values[T ~string](in ...T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

var (
	sessionStatuses = values(models.SessionStatuses...)
	bookingStatuses = values(
		models.BookingPending, models.BookingConfirmed, models.BookingWaitingList, models.BookingCheckedIn,
		models.BookingAttended, models.BookingNoShow, models.BookingCancelled,
	)
	bookingRoles      = values(models.RoleGM, models.RolePlayer, models.RoleAssistant, models.RoleSpectator)
	moderationActions = values(
		models.ModerationApproved, models.ModerationAutoApproved, models.ModerationRejected, models.ModerationChangesRequested,
	)
)

func init() {
	m.Register(func(app core.App) error {
		zones := core.NewBaseCollection("zones")
		zones.Fields.Add(
			&core.TextField{Name: "name", Required: true},
			&core.BoolField{Name: "moderation_required"},
		)
		if err := app.Save(zones); err != nil {
			return err
		}

		tables := core.NewBaseCollection("zone_tables")
		tables.Fields.Add(
			&core.RelationField{Name: "zone", CollectionId: zones.Id, MaxSelect: 1, Required: true, CascadeDelete: true},
			&core.TextField{Name: "name", Required: true},
		)
		if err := app.Save(tables); err != nil {
			return err
		}

		slots := core.NewBaseCollection("time_slots")
		slots.Fields.Add(
			&core.RelationField{Name: "zone", CollectionId: zones.Id, MaxSelect: 1, Required: true, CascadeDelete: true},
			&core.DateField{Name: "start", Required: true},
			&core.DateField{Name: "end", Required: true},
			&core.NumberField{Name: "max_duration_minutes", OnlyInt: true, Required: true},
			&core.NumberField{Name: "buffer_time_minutes", OnlyInt: true},
		)
		if err := app.Save(slots); err != nil {
			return err
		}

		sessions := core.NewBaseCollection("game_sessions")
		sessions.Fields.Add(
			&core.RelationField{Name: "zone", CollectionId: zones.Id, MaxSelect: 1, Required: true},
			&core.RelationField{Name: "time_slot", CollectionId: slots.Id, MaxSelect: 1, Required: true},
			&core.RelationField{Name: "table", CollectionId: tables.Id, MaxSelect: 1},
			&core.TextField{Name: "title", Required: true},
			&core.NumberField{Name: "capacity", OnlyInt: true, Required: true},
			&core.DateField{Name: "scheduled_start", Required: true},
			&core.DateField{Name: "scheduled_end", Required: true},
			&core.SelectField{Name: "status", Values: sessionStatuses, MaxSelect: 1, Required: true},
			&core.TextField{Name: "created_by"},
			&core.TextField{Name: "cancellation_reason"},
			&core.DateField{Name: "created_at"},
			&core.DateField{Name: "updated_at"},
		)
		sessions.AddIndex("idx_game_sessions_slot", false, "time_slot, created_at", "")
		sessions.AddIndex("idx_game_sessions_table", false, "`table`, scheduled_start", "")
		if err := app.Save(sessions); err != nil {
			return err
		}

		bookings := core.NewBaseCollection("bookings")
		bookings.Fields.Add(
			&core.RelationField{Name: "game_session", CollectionId: sessions.Id, MaxSelect: 1, Required: true, CascadeDelete: true},
			&core.TextField{Name: "user", Required: true},
			&core.SelectField{Name: "role", Values: bookingRoles, MaxSelect: 1, Required: true},
			&core.SelectField{Name: "status", Values: bookingStatuses, MaxSelect: 1, Required: true},
			&core.NumberField{Name: "sequence", OnlyInt: true},
			&core.DateField{Name: "registered_at", Required: true},
			&core.DateField{Name: "checked_in_at"},
			&core.DateField{Name: "cancelled_at"},
		)
		// A user holds at most one live booking per session.
		bookings.AddIndex("idx_bookings_active_user", true, "game_session, user", "status != 'CANCELLED'")
		bookings.AddIndex("idx_bookings_queue", false, "game_session, registered_at, sequence", "")
		if err := app.Save(bookings); err != nil {
			return err
		}

		moderation := core.NewBaseCollection("moderation_log")
		moderation.Fields.Add(
			&core.RelationField{Name: "game_session", CollectionId: sessions.Id, MaxSelect: 1, Required: true, CascadeDelete: true},
			&core.TextField{Name: "reviewer"},
			&core.SelectField{Name: "action", Values: moderationActions, MaxSelect: 1, Required: true},
			&core.TextField{Name: "comment"},
			&core.TextField{Name: "from_status"},
			&core.TextField{Name: "to_status"},
			&core.DateField{Name: "timestamp", Required: true},
		)
		moderation.AddIndex("idx_moderation_log_session", false, "game_session, timestamp", "")
		return app.Save(moderation)
	}, func(app core.App) error {
		for _, name := range []string{"moderation_log", "bookings", "game_sessions", "time_slots", "zone_tables", "zones"} {
			collection, err := app.FindCollectionByNameOrId(name)
			if err != nil {
				return err
			}
			if err := app.Delete(collection); err != nil {
				return err
			}
		}
		return nil
	})
}
