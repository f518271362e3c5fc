package models

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCompleted ReservationStatus = "completed"
	StatusCancelled ReservationStatus = "cancelled"
)

// IsTerminal reports whether no transition can leave the status.
func (s ReservationStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsActive reports whether the reservation still holds a seat.
func (s ReservationStatus) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Reservation is a customer's claim on one seat of a slot.
// Date, Start, DurationMinutes and PriceCents are snapshotted when the seat is claimed.
type Reservation struct {
	ID              string            `json:"id"`
	SlotID          string            `json:"slot_id"`
	BusinessID      int64             `json:"business_id"`
	MenuID          int64             `json:"menu_id"`
	CustomerID      int64             `json:"customer_id"`
	Status          ReservationStatus `json:"status"`
	Date            time.Time         `json:"date"`
	Start           ClockTime         `json:"start"`
	DurationMinutes int               `json:"duration_minutes"`
	PriceCents      int64             `json:"price_cents"`
	OrderType       string            `json:"order_type,omitempty"`
	Version         int64             `json:"version"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	CancelledAt     *time.Time        `json:"cancelled_at,omitempty"`
	CancelledBy     *int64            `json:"cancelled_by,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
}

// StartsAt returns the snapshotted start in loc.
func (r *Reservation) StartsAt(loc *time.Location) time.Time {
	return r.Start.On(r.Date, loc)
}

// EndsAt returns the snapshotted end in loc.
func (r *Reservation) EndsAt(loc *time.Location) time.Time {
	return r.StartsAt(loc).Add(time.Duration(r.DurationMinutes) * time.Minute)
}

// SnapshotSlot copies the slot's date and time into r.
func (r *Reservation) SnapshotSlot(slot *BookingSlot) {
	r.SlotID = slot.ID
	r.BusinessID = slot.BusinessID
	r.MenuID = slot.MenuID
	r.Date = slot.Date
	r.Start = slot.Start
	r.DurationMinutes = slot.DurationMinutes()
}
