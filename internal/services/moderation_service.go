package services

import (
	"context"
	"strings"

	"exhibition-system/internal/lifecycle"
	"exhibition-system/internal/locker"
	"exhibition-system/internal/status"
	"exhibition-system/internal/store"
	"exhibition-system/models"
)

// ModerationService runs reviewer decisions. Every decision is written to
// the moderation log in the same unit of work as the transition it causes.
type ModerationService struct {
	engine *Engine
}

func NewModerationService(engine *Engine) *ModerationService {
	return &ModerationService{engine: engine}
}

func (m *ModerationService) Approve(ctx context.Context, sessionID, reviewerID string) (models.GameSession, error) {
	return m.decide(ctx, sessionID, reviewerID, lifecycle.EvApprove, "")
}

func (m *ModerationService) Reject(ctx context.Context, sessionID, reviewerID, reason string) (models.GameSession, error) {
	return m.decide(ctx, sessionID, reviewerID, lifecycle.EvReject, reason)
}

func (m *ModerationService) RequestChanges(ctx context.Context, sessionID, reviewerID, comment string) (models.GameSession, error) {
	return m.decide(ctx, sessionID, reviewerID, lifecycle.EvRequestChanges, comment)
}

var moderationOutcomes = map[lifecycle.Event]struct {
	action models.ModerationAction
	event  models.DomainEventType
}{
	lifecycle.EvApprove:        {models.ModerationApproved, models.EventSessionApproved},
	lifecycle.EvReject:         {models.ModerationRejected, models.EventSessionRejected},
	lifecycle.EvRequestChanges: {models.ModerationChangesRequested, models.EventChangesRequested},
}

func (m *ModerationService) decide(ctx context.Context, sessionID, reviewerID string, ev lifecycle.Event, comment string) (models.GameSession, error) {
	comment = strings.TrimSpace(comment)
	outcome := moderationOutcomes[ev]

	return m.engine.mutateSession(ctx, "moderation."+string(ev), []string{locker.SessionKey(sessionID)}, sessionID,
		func(ctx context.Context, tx store.Tx, out *outbox, session *models.GameSession) error {
			tr, err := lifecycle.Apply(session.Status, ev)
			if err != nil {
				return err
			}
			if tr.NeedsReason && comment == "" {
				return status.ErrReasonRequired
			}
			if tr.To == models.SessionValidated && !session.HasTable() {
				return status.ErrTableRequired
			}

			entry := models.ModerationEntry{
				GameSessionID: session.ID,
				ReviewerID:    reviewerID,
				Action:        outcome.action,
				Comment:       comment,
				FromStatus:    session.Status,
				ToStatus:      tr.To,
				Timestamp:     out.now,
			}
			if err := tx.AppendModeration(ctx, &entry); err != nil {
				return err
			}

			session.Status = tr.To
			out.emit(models.DomainEvent{
				Type:          outcome.event,
				GameSessionID: session.ID,
				ActorID:       reviewerID,
				Reason:        comment,
				UserID:        session.CreatedByUserID,
			})
			return nil
		})
}

// History returns the moderation log of a session, oldest first.
func (m *ModerationService) History(ctx context.Context, sessionID string) ([]models.ModerationEntry, error) {
	var entries []models.ModerationEntry
	err := m.engine.view(ctx, func(tx store.Tx) error {
		if _, err := tx.GetSession(ctx, sessionID); err != nil {
			return err
		}
		var err error
		entries, err = tx.ListModeration(ctx, sessionID)
		return err
	})
	return entries, err
}
