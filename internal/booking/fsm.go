// Package booking implements the reservation lifecycle.
package booking

import (
	"slotbook/internal/models"
)

// FSM holds the allowed reservation status transitions.
type FSM struct {
	transitions map[models.ReservationStatus][]models.ReservationStatus
}

// NewFSM creates the reservation FSM. allowCompleteFromPending adds PENDING -> COMPLETED.
func NewFSM(allowCompleteFromPending bool) *FSM {
	pending := []models.ReservationStatus{models.StatusConfirmed, models.StatusCancelled}
	if allowCompleteFromPending {
		pending = append(pending, models.StatusCompleted)
	}
	return &FSM{
		transitions: map[models.ReservationStatus][]models.ReservationStatus{
			models.StatusPending:   pending,
			models.StatusConfirmed: {models.StatusCompleted, models.StatusCancelled},
			models.StatusCompleted: nil,
			models.StatusCancelled: nil,
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *FSM) CanTransition(from, to models.ReservationStatus) bool {
	allowed, ok := f.transitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}
