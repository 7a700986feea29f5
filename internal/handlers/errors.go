package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"exhibition-system/internal/status"

	"github.com/pocketbase/pocketbase/apis"
)

// apiError turns a service error into the HTTP error pocketbase renders.
func apiError(err error) error {
	var verrs status.ValidationErrors
	if errors.As(err, &verrs) {
		data := make(map[string]error, len(verrs))
		for _, v := range verrs {
			data[string(v.Code)] = v
		}
		return apis.NewBadRequestError("Invalid session window", data)
	}

	switch {
	case errors.Is(err, status.ErrNotFound):
		return apis.NewNotFoundError("Not found", err)
	case errors.Is(err, status.ErrAlreadyBooked),
		errors.Is(err, status.ErrTableConflict),
		errors.Is(err, status.ErrConcurrencyConflict):
		return apis.NewApiError(http.StatusConflict, err.Error(), nil)
	case errors.Is(err, status.ErrIllegalTransition),
		errors.Is(err, status.ErrTableRequired),
		errors.Is(err, status.ErrSessionNotBookable),
		errors.Is(err, status.ErrNotConfirmed),
		errors.Is(err, status.ErrNotCheckedIn),
		errors.Is(err, status.ErrOutsideCheckInWindow),
		errors.Is(err, status.ErrSessionNotFinished),
		errors.Is(err, status.ErrBookingNotActive):
		return apis.NewApiError(http.StatusUnprocessableEntity, err.Error(), nil)
	case status.IsUserFacing(err):
		return apis.NewBadRequestError(err.Error(), nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apis.NewApiError(http.StatusServiceUnavailable, "Request cancelled", nil)
	}

	slog.Error("Unhandled service error", "error", err)
	return apis.NewInternalServerError("Something went wrong", nil)
}
