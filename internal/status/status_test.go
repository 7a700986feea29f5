package status

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationErrors_MatchesSentinel(t *testing.T) {
	var err error = ValidationErrors{
		{Code: EndAfterSlot, Message: "ends after the slot"},
		{Code: DurationExceedsMax, Message: "too long"},
	}

	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, fmt.Errorf("create session: %w", err), ErrValidation)

	var verrs ValidationErrors
	require.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &verrs))
	assert.Equal(t, []ValidationCode{EndAfterSlot, DurationExceedsMax}, verrs.Codes())
	assert.True(t, verrs.Has(DurationExceedsMax))
	assert.False(t, verrs.Has(DurationTooShort))
	assert.Contains(t, err.Error(), "EndAfterSlot")
}

func TestIllegalTransitionError(t *testing.T) {
	err := fmt.Errorf("submit: %w", &IllegalTransitionError{From: "FINISHED", Event: "cancel"})

	assert.ErrorIs(t, err, ErrIllegalTransition)

	var ite *IllegalTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, "FINISHED", ite.From)
	assert.Equal(t, "cancel", ite.Event)
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"Already booked", ErrAlreadyBooked, true},
		{"Wrapped check-in window", fmt.Errorf("check in: %w", ErrOutsideCheckInWindow), true},
		{"Validation list", ValidationErrors{{Code: DurationTooShort}}, true},
		{"Concurrency conflict", ErrConcurrencyConflict, false},
		{"Illegal transition", &IllegalTransitionError{From: "DRAFT", Event: "end"}, false},
		{"Unknown", errors.New("disk full"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsUserFacing(tt.err))
		})
	}
}
