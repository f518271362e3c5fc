package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Is(t *testing.T) {
	err := New(CodeCapacityExceeded, "slot %s is fully booked", "abc")

	assert.True(t, errors.Is(err, ErrCapacityExceeded))
	assert.False(t, errors.Is(err, ErrPastDate))

	wrapped := fmt.Errorf("create reservation: %w", err)
	assert.True(t, errors.Is(wrapped, ErrCapacityExceeded))
	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.Equal(t, CodeCapacityExceeded, CodeOf(wrapped))
}

func TestError_Message(t *testing.T) {
	err := New(CodeOutsideOperatingHours, "slot is outside operating hours").
		WithEntry(Entry{Index: 3, Date: "2025-01-10", Start: "11:30", End: "12:30"})

	assert.Equal(t,
		"outside_operating_hours: slot is outside operating hours (entry 3 2025-01-10 11:30-12:30)",
		err.Error())
	require.NotNil(t, err.Entry)
	assert.Equal(t, 3, err.Entry.Index)

	state := New(CodeInvalidStatus, "cannot cancel").WithStatus("cancelled")
	assert.Equal(t, "invalid_status: cannot cancel [status=cancelled]", state.Error())
	assert.Equal(t, KindState, state.Kind)
}

func TestError_Wrap(t *testing.T) {
	cause := New(CodeCapacityExceeded, "full")
	err := New(CodeNewSlotUnavailable, "cannot move reservation").Wrap(cause)

	assert.True(t, errors.Is(err, ErrNewSlotUnavailable))
	assert.True(t, errors.Is(err, ErrCapacityExceeded))
	assert.Equal(t, CodeNewSlotUnavailable, CodeOf(err))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(CodeTransientConflict, "retry")))
	assert.False(t, IsRetryable(New(CodeCapacityExceeded, "full")))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestKindsCoverEveryCode(t *testing.T) {
	for _, sentinel := range []*Error{
		ErrInvalidTimeRange, ErrOutsideOperatingHours, ErrPastDate, ErrBatchTooLarge,
		ErrDateSpanTooLong, ErrInvalidInterval, ErrInvalidSchedule, ErrInvalidCapacity,
		ErrSlotOverlap, ErrCapacityExceeded, ErrDuplicateReservation, ErrSlotInUse,
		ErrNewSlotUnavailable, ErrInvalidStatus, ErrDeadlinePassed, ErrNotElapsed, ErrTransientConflict,
		ErrSlotNotFound, ErrReservationNotFound, ErrBusinessNotFound, ErrMenuNotFound,
		ErrNotOwner, ErrForbidden,
	} {
		assert.Equal(t, sentinel.Kind, New(sentinel.Code, "x").Kind, string(sentinel.Code))
	}
}
