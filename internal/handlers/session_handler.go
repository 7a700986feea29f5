package handlers

import (
	"context"
	"net/http"
	"time"

	"exhibition-system/internal/services"
	"exhibition-system/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type SessionHandler struct {
	sessions *services.SessionService
}

func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// CreateSession - Create a DRAFT session owned by the caller
func (h *SessionHandler) CreateSession(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var in services.CreateSessionInput
	if err := e.BindBody(&in); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	in.CreatedByUserID = e.Auth.Id

	session, err := h.sessions.Create(e.Request.Context(), in)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusCreated, session)
}

func (h *SessionHandler) GetSession(e *core.RequestEvent) error {
	session, err := h.sessions.Get(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, session)
}

// GetNextActions - Events the session accepts from its current state
func (h *SessionHandler) GetNextActions(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	actions, err := h.sessions.NextActions(e.Request.Context(), id)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"game_session_id": id,
		"actions":         actions,
	})
}

func (h *SessionHandler) Reschedule(e *core.RequestEvent) error {
	if err := h.sessionOwnerOrSuperuser(e); err != nil {
		return err
	}
	var req struct {
		ScheduledStart time.Time `json:"scheduled_start"`
		ScheduledEnd   time.Time `json:"scheduled_end"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	session, err := h.sessions.Reschedule(e.Request.Context(), e.Request.PathValue("id"), req.ScheduledStart, req.ScheduledEnd)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, session)
}

// AssignTable - Only superusers may move the table of a validated session
func (h *SessionHandler) AssignTable(e *core.RequestEvent) error {
	if err := h.sessionOwnerOrSuperuser(e); err != nil {
		return err
	}
	var req struct {
		TableID string `json:"table_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.TableID == "" {
		return apis.NewBadRequestError("table_id is required", nil)
	}

	session, err := h.sessions.AssignTable(e.Request.Context(), e.Request.PathValue("id"), req.TableID, e.HasSuperuserAuth())
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, session)
}

func (h *SessionHandler) Submit(e *core.RequestEvent) error {
	if err := h.sessionOwnerOrSuperuser(e); err != nil {
		return err
	}
	return h.step(e, h.sessions.Submit)
}

func (h *SessionHandler) Resubmit(e *core.RequestEvent) error {
	if err := h.sessionOwnerOrSuperuser(e); err != nil {
		return err
	}
	return h.step(e, h.sessions.Resubmit)
}

func (h *SessionHandler) Start(e *core.RequestEvent) error {
	return h.step(e, h.sessions.Start)
}

func (h *SessionHandler) End(e *core.RequestEvent) error {
	return h.step(e, h.sessions.End)
}

func (h *SessionHandler) Cancel(e *core.RequestEvent) error {
	if err := h.sessionOwnerOrSuperuser(e); err != nil {
		return err
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	session, err := h.sessions.Cancel(e.Request.Context(), e.Request.PathValue("id"), e.Auth.Id, req.Reason)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, session)
}

func (h *SessionHandler) step(e *core.RequestEvent, fn func(ctx context.Context, id string) (models.GameSession, error)) error {
	session, err := fn(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, session)
}

// sessionOwnerOrSuperuser lets only the organizer who created the session, or
// a superuser, change it.
func (h *SessionHandler) sessionOwnerOrSuperuser(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	if e.HasSuperuserAuth() {
		return nil
	}

	session, err := h.sessions.Get(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return apiError(err)
	}
	if session.CreatedByUserID != e.Auth.Id {
		return apis.NewForbiddenError("Not your session", nil)
	}
	return nil
}
