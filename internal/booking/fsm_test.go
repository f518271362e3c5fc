package booking

import (
	"testing"

	"slotbook/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestFSMTransitions(t *testing.T) {
	tests := []struct {
		name        string
		from        models.ReservationStatus
		to          models.ReservationStatus
		fromPending bool
		shouldAllow bool
	}{
		{"pending to confirmed", models.StatusPending, models.StatusConfirmed, true, true},
		{"pending to cancelled", models.StatusPending, models.StatusCancelled, true, true},
		{"confirmed to completed", models.StatusConfirmed, models.StatusCompleted, true, true},
		{"confirmed to cancelled", models.StatusConfirmed, models.StatusCancelled, true, true},
		{"pending to completed allowed", models.StatusPending, models.StatusCompleted, true, true},
		{"pending to completed disallowed", models.StatusPending, models.StatusCompleted, false, false},
		// Terminal states
		{"cancelled to cancelled", models.StatusCancelled, models.StatusCancelled, true, false},
		{"cancelled to confirmed", models.StatusCancelled, models.StatusConfirmed, true, false},
		{"completed to cancelled", models.StatusCompleted, models.StatusCancelled, true, false},
		// Invalid transitions
		{"confirmed to pending", models.StatusConfirmed, models.StatusPending, true, false},
		{"unknown state", models.ReservationStatus("lost"), models.StatusCancelled, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsm := NewFSM(tt.fromPending)
			assert.Equal(t, tt.shouldAllow, fsm.CanTransition(tt.from, tt.to))
		})
	}
}
