package services

import (
	"context"
	"fmt"
	"log/slog"

	"exhibition-system/internal/schedule"
	"exhibition-system/internal/store"
	"exhibition-system/models"
)

// SeriesPlanner creates one session per (slot, table) pair of a series.
type SeriesPlanner struct {
	engine   *Engine
	sessions *SessionService
}

func NewSeriesPlanner(engine *Engine, sessions *SessionService) *SeriesPlanner {
	return &SeriesPlanner{engine: engine, sessions: sessions}
}

// Plan walks slots in the outer loop and tables in the inner one. A pair that
// fails becomes a warning; the rest of the series is still created.
func (p *SeriesPlanner) Plan(ctx context.Context, req models.SeriesRequest) (models.SeriesResult, error) {
	result := models.SeriesResult{
		Sessions: []models.GameSession{},
		Warnings: []string{},
	}
	if req.Template.Capacity <= 0 {
		return result, fmt.Errorf("series template: capacity %d must be positive", req.Template.Capacity)
	}

	tables := req.TableIDs
	if len(tables) == 0 {
		tables = []string{""}
	}

	for _, slotID := range req.TimeSlotIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		slot, err := p.slot(ctx, slotID)
		if err != nil {
			for _, tableID := range tables {
				result.Warnings = append(result.Warnings, warning(slotID, tableID, err))
			}
			continue
		}
		start, end := schedule.DefaultWindow(slot, p.engine.DefaultDuration)

		for _, tableID := range tables {
			if err := schedule.Validate(slot, start, end); err != nil {
				result.Warnings = append(result.Warnings, warning(slotID, tableID, err))
				continue
			}

			session, err := p.sessions.Create(ctx, CreateSessionInput{
				ZoneID:          req.Template.ZoneID,
				TimeSlotID:      slotID,
				TableID:         tableID,
				Title:           req.Template.Title,
				Capacity:        req.Template.Capacity,
				ScheduledStart:  start,
				ScheduledEnd:    end,
				CreatedByUserID: req.Template.CreatedByUserID,
			})
			if err != nil {
				result.Warnings = append(result.Warnings, warning(slotID, tableID, err))
				continue
			}
			result.Sessions = append(result.Sessions, session)
		}
	}

	result.CreatedCount = len(result.Sessions)
	slog.Info("Series planned",
		"zone_id", req.Template.ZoneID,
		"created", result.CreatedCount,
		"warnings", len(result.Warnings),
	)
	return result, nil
}

func (p *SeriesPlanner) slot(ctx context.Context, id string) (models.TimeSlot, error) {
	var slot models.TimeSlot
	err := p.engine.view(ctx, func(tx store.Tx) error {
		var err error
		slot, err = tx.GetTimeSlot(ctx, id)
		return err
	})
	return slot, err
}

func warning(slotID, tableID string, err error) string {
	if tableID == "" {
		return fmt.Sprintf("slot %s: %v", slotID, err)
	}
	return fmt.Sprintf("slot %s / table %s: %v", slotID, tableID, err)
}
