package status

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound            = errors.New("store: record not found")
	ErrConcurrencyConflict = errors.New("lock: concurrency conflict")

	ErrValidation        = errors.New("schedule: invalid session window")
	ErrIllegalTransition = errors.New("lifecycle: illegal transition")
	ErrReasonRequired    = errors.New("lifecycle: reason required")
	ErrTableRequired     = errors.New("lifecycle: table must be assigned")
	ErrTableConflict     = errors.New("schedule: table already booked in this slot")
	ErrInvalidCapacity   = errors.New("session: capacity must be positive")
	ErrInvalidSession    = errors.New("session: invalid session")

	ErrAlreadyBooked        = errors.New("booking: user already booked this session")
	ErrSessionNotBookable   = errors.New("booking: session is not open for booking")
	ErrNotConfirmed         = errors.New("booking: booking is not confirmed")
	ErrNotCheckedIn         = errors.New("booking: booking is not checked in")
	ErrOutsideCheckInWindow = errors.New("booking: outside check-in window")
	ErrSessionNotFinished   = errors.New("booking: session is not finished")
	ErrBookingNotActive     = errors.New("booking: booking is no longer active")
	ErrInvalidRole          = errors.New("booking: invalid role")
)

type ValidationCode string

const (
	StartBeforeSlot    ValidationCode = "StartBeforeSlot"
	EndAfterSlot       ValidationCode = "EndAfterSlot"
	EndNotAfterStart   ValidationCode = "EndNotAfterStart"
	DurationExceedsMax ValidationCode = "DurationExceedsMax"
	DurationTooShort   ValidationCode = "DurationTooShort"
)

type ValidationError struct {
	Code    ValidationCode `json:"code"`
	Message string         `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ValidationErrors carries every violation of a session window at once.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return "schedule: " + strings.Join(parts, "; ")
}

func (errs ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

func (errs ValidationErrors) Has(code ValidationCode) bool {
	for _, e := range errs {
		if e.Code == code {
			return true
		}
	}
	return false
}

func (errs ValidationErrors) Codes() []ValidationCode {
	codes := make([]ValidationCode, len(errs))
	for i, e := range errs {
		codes[i] = e.Code
	}
	return codes
}

type IllegalTransitionError struct {
	From  string
	Event string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("lifecycle: illegal transition %q from %s", e.Event, e.From)
}

func (e *IllegalTransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

// IsUserFacing reports whether err is an expected condition the presentation
// layer renders as-is rather than a system failure.
func IsUserFacing(err error) bool {
	for _, target := range []error{
		ErrValidation,
		ErrAlreadyBooked,
		ErrSessionNotBookable,
		ErrNotConfirmed,
		ErrNotCheckedIn,
		ErrOutsideCheckInWindow,
		ErrSessionNotFinished,
		ErrBookingNotActive,
		ErrReasonRequired,
		ErrTableRequired,
		ErrTableConflict,
		ErrInvalidCapacity,
		ErrInvalidSession,
		ErrInvalidRole,
		ErrNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
