package models

import (
	"time"
)

type SessionStatus string

const (
	SessionDraft             SessionStatus = "DRAFT"
	SessionPendingModeration SessionStatus = "PENDING_MODERATION"
	SessionChangesRequested  SessionStatus = "CHANGES_REQUESTED"
	SessionValidated         SessionStatus = "VALIDATED"
	SessionRejected          SessionStatus = "REJECTED"
	SessionInProgress        SessionStatus = "IN_PROGRESS"
	SessionFinished          SessionStatus = "FINISHED"
	SessionCancelled         SessionStatus = "CANCELLED"
)

// SessionStatuses lists every session status in lifecycle order.
var SessionStatuses = []SessionStatus{
	SessionDraft,
	SessionPendingModeration,
	SessionChangesRequested,
	SessionValidated,
	SessionRejected,
	SessionInProgress,
	SessionFinished,
	SessionCancelled,
}

type GameSession struct {
	ID                 string        `json:"id"`
	ZoneID             string        `json:"zone_id"`
	TimeSlotID         string        `json:"time_slot_id"`
	TableID            string        `json:"table_id,omitempty"` // empty until assigned
	Title              string        `json:"title"`
	Capacity           int           `json:"capacity"`
	ScheduledStart     time.Time     `json:"scheduled_start"`
	ScheduledEnd       time.Time     `json:"scheduled_end"`
	Status             SessionStatus `json:"status"`
	CreatedByUserID    string        `json:"created_by_user_id"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

func (s GameSession) HasTable() bool {
	return s.TableID != ""
}

func (s GameSession) Duration() time.Duration {
	return s.ScheduledEnd.Sub(s.ScheduledStart)
}

type ModerationAction string

const (
	ModerationApproved         ModerationAction = "approved"
	ModerationAutoApproved     ModerationAction = "auto_approved"
	ModerationRejected         ModerationAction = "rejected"
	ModerationChangesRequested ModerationAction = "changes_requested"
)

// ModerationEntry is one line of the append-only moderation audit log.
type ModerationEntry struct {
	ID            string           `json:"id"`
	GameSessionID string           `json:"game_session_id"`
	ReviewerID    string           `json:"reviewer_id"`
	Action        ModerationAction `json:"action"`
	Comment       string           `json:"comment,omitempty"`
	FromStatus    SessionStatus    `json:"from_status"`
	ToStatus      SessionStatus    `json:"to_status"`
	Timestamp     time.Time        `json:"timestamp"`
}
