package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/apperr"
	"slotbook/internal/capacity"
	"slotbook/internal/models"

	"github.com/google/uuid"
)

// Tx is one unit of work spanning slot counters and reservation rows.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) listSlots(ctx context.Context, menuID int64, date time.Time) ([]models.BookingSlot, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+slotColumns+`
		FROM booking_slots
		WHERE menu_id = ? AND date = ?
		ORDER BY start_time`,
		menuID, models.FormatDate(date),
	)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

// GetSlot reads a slot inside the transaction.
func (t *Tx) GetSlot(ctx context.Context, id string) (*models.BookingSlot, error) {
	s, err := scanSlot(t.tx.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM booking_slots WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("slot %s: %w", id, ErrNotFound)
	}
	return s, err
}

// LoadCounter implements capacity.Store.
func (t *Tx) LoadCounter(ctx context.Context, slotID string) (capacity.Counter, error) {
	var c capacity.Counter
	err := t.tx.QueryRowContext(ctx,
		`SELECT booked_count, capacity, version FROM booking_slots WHERE id = ?`, slotID,
	).Scan(&c.Booked, &c.Capacity, &c.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return c, apperr.New(apperr.CodeSlotNotFound, "slot %s does not exist", slotID).Wrap(ErrNotFound)
	}
	return c, err
}

// SwapCounter implements capacity.Store. The booked count never leaves [0, capacity].
func (t *Tx) SwapCounter(ctx context.Context, slotID string, expectedVersion int64, booked int) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE booking_slots
		SET booked_count = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND ? BETWEEN 0 AND capacity`,
		booked, time.Now().UTC(), slotID, expectedVersion, booked,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CountActiveReservations counts pending and confirmed reservations on a slot.
func (t *Tx) CountActiveReservations(ctx context.Context, slotID string) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reservations
		WHERE slot_id = ? AND status IN ('pending', 'confirmed')`,
		slotID,
	).Scan(&n)
	return n, err
}

// HasActiveReservation reports whether customerID already holds an active reservation on slotID.
func (t *Tx) HasActiveReservation(ctx context.Context, customerID int64, slotID string) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reservations
		WHERE customer_id = ? AND slot_id = ? AND status IN ('pending', 'confirmed')`,
		customerID, slotID,
	).Scan(&n)
	return n > 0, err
}

// GetReservation reads a reservation inside the transaction.
func (t *Tx) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	r, err := scanReservation(t.tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reservation %s: %w", id, ErrNotFound)
	}
	return r, err
}

// InsertReservation writes a new reservation. A second active reservation of the
// same customer on the same slot fails with ErrDuplicate.
func (t *Tx) InsertReservation(ctx context.Context, r *models.Reservation) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Version == 0 {
		r.Version = 1
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO reservations (`+reservationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SlotID, r.BusinessID, r.MenuID, r.CustomerID, string(r.Status),
		models.FormatDate(r.Date), r.Start.String(), r.DurationMinutes, r.PriceCents, r.OrderType,
		r.Version, r.CreatedAt, r.UpdatedAt, nullTime(r.CancelledAt), nullInt(r.CancelledBy), nullTime(r.CompletedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("reservation for customer %d on slot %s: %w", r.CustomerID, r.SlotID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// UpdateReservation writes r if its stored version still equals r.Version and bumps the version.
func (t *Tx) UpdateReservation(ctx context.Context, r *models.Reservation) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE reservations SET
			slot_id = ?, business_id = ?, menu_id = ?, status = ?, date = ?, start_time = ?,
			duration_minutes = ?, price_cents = ?, order_type = ?, updated_at = ?,
			cancelled_at = ?, cancelled_by = ?, completed_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		r.SlotID, r.BusinessID, r.MenuID, string(r.Status), models.FormatDate(r.Date), r.Start.String(),
		r.DurationMinutes, r.PriceCents, r.OrderType, r.UpdatedAt,
		nullTime(r.CancelledAt), nullInt(r.CancelledBy), nullTime(r.CompletedAt),
		r.ID, r.Version,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("reservation for customer %d on slot %s: %w", r.CustomerID, r.SlotID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("reservation %s version %d: %w", r.ID, r.Version, ErrConcurrentModification)
	}
	r.Version++
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
