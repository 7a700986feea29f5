package handlers

import (
	"net/http"

	"exhibition-system/internal/services"
	"exhibition-system/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type BookingHandler struct {
	ledger *services.SeatLedger
}

func NewBookingHandler(ledger *services.SeatLedger) *BookingHandler {
	return &BookingHandler{ledger: ledger}
}

// Reserve - Book the caller onto a session, or onto its waiting list when full
func (h *BookingHandler) Reserve(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		Role models.BookingRole `json:"role"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Role == "" {
		req.Role = models.RolePlayer
	}

	booking, err := h.ledger.Reserve(e.Request.Context(), e.Request.PathValue("id"), e.Auth.Id, req.Role)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusCreated, booking)
}

func (h *BookingHandler) Cancel(e *core.RequestEvent) error {
	if err := h.ownerOrSuperuser(e); err != nil {
		return err
	}
	booking, err := h.ledger.Cancel(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, booking)
}

func (h *BookingHandler) CheckIn(e *core.RequestEvent) error {
	if err := h.ownerOrSuperuser(e); err != nil {
		return err
	}
	booking, err := h.ledger.CheckIn(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, booking)
}

func (h *BookingHandler) MarkAttendance(e *core.RequestEvent) error {
	var req struct {
		Attended *bool `json:"attended"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Attended == nil {
		return apis.NewBadRequestError("attended is required", nil)
	}

	booking, err := h.ledger.MarkAttendance(e.Request.Context(), e.Request.PathValue("id"), *req.Attended)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, booking)
}

// CloseAttendance - Settle every booking of a finished session
func (h *BookingHandler) CloseAttendance(e *core.RequestEvent) error {
	settled, err := h.ledger.CloseAttendance(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"settled": settled,
		"count":   len(settled),
	})
}

func (h *BookingHandler) GetWaitlistPosition(e *core.RequestEvent) error {
	if err := h.ownerOrSuperuser(e); err != nil {
		return err
	}
	id := e.Request.PathValue("id")
	position, err := h.ledger.WaitlistPosition(e.Request.Context(), id)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"booking_id": id,
		"position":   position,
	})
}

func (h *BookingHandler) GetSeats(e *core.RequestEvent) error {
	seats, err := h.ledger.Seats(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, seats)
}

func (h *BookingHandler) ListBookings(e *core.RequestEvent) error {
	bookings, err := h.ledger.Bookings(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, bookings)
}

// ownerOrSuperuser lets a user act on their own booking only.
func (h *BookingHandler) ownerOrSuperuser(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	if e.HasSuperuserAuth() {
		return nil
	}

	booking, err := h.ledger.Booking(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return apiError(err)
	}
	if booking.UserID != e.Auth.Id {
		return apis.NewForbiddenError("Not your booking", nil)
	}
	return nil
}
