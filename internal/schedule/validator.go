// Package schedule validates session windows against their time slot.
package schedule

import (
	"fmt"
	"time"

	"exhibition-system/internal/status"
	"exhibition-system/models"
)

const (
	MinSessionDuration     = 30 * time.Minute
	DefaultSessionDuration = 120 * time.Minute
)

// Check returns every rule the proposed window violates. It never stops at the
// first violation.
func Check(slot models.TimeSlot, start, end time.Time) []status.ValidationError {
	var errs []status.ValidationError

	if start.Before(slot.Start) {
		errs = append(errs, status.ValidationError{
			Code:    status.StartBeforeSlot,
			Message: fmt.Sprintf("session starts at %s, before slot start %s", start.Format(time.RFC3339), slot.Start.Format(time.RFC3339)),
		})
	}
	if end.After(slot.End) {
		errs = append(errs, status.ValidationError{
			Code:    status.EndAfterSlot,
			Message: fmt.Sprintf("session ends at %s, after slot end %s", end.Format(time.RFC3339), slot.End.Format(time.RFC3339)),
		})
	}

	if !end.After(start) {
		errs = append(errs, status.ValidationError{
			Code:    status.EndNotAfterStart,
			Message: "session must end after it starts",
		})
		return errs
	}

	duration := end.Sub(start)
	if duration > slot.MaxDuration() {
		errs = append(errs, status.ValidationError{
			Code:    status.DurationExceedsMax,
			Message: fmt.Sprintf("session lasts %d minutes, slot allows at most %d", int(duration.Minutes()), slot.MaxDurationMinutes),
		})
	}
	if duration < MinSessionDuration {
		errs = append(errs, status.ValidationError{
			Code:    status.DurationTooShort,
			Message: fmt.Sprintf("session lasts %d minutes, minimum is %d", int(duration.Minutes()), int(MinSessionDuration.Minutes())),
		})
	}

	return errs
}

// Validate is Check folded into an error value.
func Validate(slot models.TimeSlot, start, end time.Time) error {
	errs := Check(slot, start, end)
	if len(errs) == 0 {
		return nil
	}
	return status.ValidationErrors(errs)
}

// DefaultWindow starts at the slot start and lasts min(preferred, slot max),
// never running past the slot end.
func DefaultWindow(slot models.TimeSlot, preferred time.Duration) (time.Time, time.Time) {
	if preferred <= 0 {
		preferred = DefaultSessionDuration
	}
	length := preferred
	if max := slot.MaxDuration(); max < length {
		length = max
	}

	start := slot.Start
	end := start.Add(length)
	if end.After(slot.End) {
		end = slot.End
	}
	return start, end
}

// Overlaps reports whether two windows collide once buffer is appended to each.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time, buffer time.Duration) bool {
	return aStart.Before(bEnd.Add(buffer)) && bStart.Before(aEnd.Add(buffer))
}
