package handlers

import (
	"context"
	"net/http"

	"exhibition-system/internal/services"
	"exhibition-system/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

// ModerationHandler serves reviewer decisions and the series planner. Routes
// are bound behind superuser auth.
type ModerationHandler struct {
	moderation *services.ModerationService
	planner    *services.SeriesPlanner
}

func NewModerationHandler(moderation *services.ModerationService, planner *services.SeriesPlanner) *ModerationHandler {
	return &ModerationHandler{moderation: moderation, planner: planner}
}

func (h *ModerationHandler) Approve(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	session, err := h.moderation.Approve(e.Request.Context(), e.Request.PathValue("id"), e.Auth.Id)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, session)
}

func (h *ModerationHandler) Reject(e *core.RequestEvent) error {
	return h.withComment(e, h.moderation.Reject)
}

func (h *ModerationHandler) RequestChanges(e *core.RequestEvent) error {
	return h.withComment(e, h.moderation.RequestChanges)
}

func (h *ModerationHandler) GetHistory(e *core.RequestEvent) error {
	entries, err := h.moderation.History(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, entries)
}

// PlanSeries - Create one session per (slot, table) pair of the request
func (h *ModerationHandler) PlanSeries(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req models.SeriesRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if len(req.TimeSlotIDs) == 0 {
		return apis.NewBadRequestError("time_slot_ids is required", nil)
	}
	if req.Template.CreatedByUserID == "" {
		req.Template.CreatedByUserID = e.Auth.Id
	}

	result, err := h.planner.Plan(e.Request.Context(), req)
	if err != nil {
		return apis.NewBadRequestError(err.Error(), nil)
	}
	return e.JSON(http.StatusOK, result)
}

type decision func(ctx context.Context, sessionID, reviewerID, comment string) (models.GameSession, error)

func (h *ModerationHandler) withComment(e *core.RequestEvent, decide decision) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		Comment string `json:"comment"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	session, err := decide(e.Request.Context(), e.Request.PathValue("id"), e.Auth.Id, req.Comment)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, session)
}
