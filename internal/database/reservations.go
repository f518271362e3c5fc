package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"slotbook/internal/models"
)

const reservationColumns = `id, slot_id, business_id, menu_id, customer_id, status, date, start_time,
	duration_minutes, price_cents, order_type, version, created_at, updated_at,
	cancelled_at, cancelled_by, completed_at`

func scanReservation(row scanner) (*models.Reservation, error) {
	var (
		r                   models.Reservation
		status, date, start string
		cancelledAt         sql.NullTime
		completedAt         sql.NullTime
		cancelledBy         sql.NullInt64
	)
	err := row.Scan(&r.ID, &r.SlotID, &r.BusinessID, &r.MenuID, &r.CustomerID, &status, &date, &start,
		&r.DurationMinutes, &r.PriceCents, &r.OrderType, &r.Version, &r.CreatedAt, &r.UpdatedAt,
		&cancelledAt, &cancelledBy, &completedAt)
	if err != nil {
		return nil, err
	}

	r.Status = models.ReservationStatus(status)
	if r.Date, err = models.ParseDate(date); err != nil {
		return nil, fmt.Errorf("reservation %s date: %w", r.ID, err)
	}
	if r.Start, err = models.ParseClockTime(start); err != nil {
		return nil, fmt.Errorf("reservation %s start: %w", r.ID, err)
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		r.CancelledAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	if cancelledBy.Valid {
		v := cancelledBy.Int64
		r.CancelledBy = &v
	}
	return &r, nil
}

func collectReservations(rows *sql.Rows) ([]models.Reservation, error) {
	defer rows.Close()
	var out []models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// GetReservation returns a reservation by id.
func (db *DB) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	r, err := scanReservation(db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reservation %s: %w", id, ErrNotFound)
	}
	return r, err
}

// ListReservationsByCustomer returns a customer's reservations, newest first.
func (db *DB) ListReservationsByCustomer(ctx context.Context, customerID int64) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE customer_id = ?
		ORDER BY date DESC, start_time DESC`,
		customerID,
	)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

// ListReservationsForBusiness returns reservations of a business with from <= date <= to.
func (db *DB) ListReservationsForBusiness(ctx context.Context, businessID int64, from, to time.Time) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE business_id = ? AND date BETWEEN ? AND ?
		ORDER BY date, start_time, created_at`,
		businessID, models.FormatDate(from), models.FormatDate(to),
	)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

// ReservationCursor is the (date, start, id) position a keyset scan resumes after.
type ReservationCursor struct {
	Date  time.Time
	Start models.ClockTime
	ID    string
}

// ListReservationsThrough returns reservations in statuses dated on or before date,
// ordered by date, start and id, beginning after the cursor when one is given.
func (db *DB) ListReservationsThrough(ctx context.Context, date time.Time, statuses []models.ReservationStatus, after *ReservationCursor, limit int) ([]models.Reservation, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	placeholders := make([]string, len(statuses))
	args := make([]any, 0, len(statuses)+5)
	for i, st := range statuses {
		placeholders[i] = "?"
		args = append(args, string(st))
	}
	args = append(args, models.FormatDate(date))

	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status IN (` + strings.Join(placeholders, ",") + `) AND date <= ?`
	if after != nil {
		query += ` AND (date, start_time, id) > (?, ?, ?)`
		args = append(args, models.FormatDate(after.Date), after.Start.String(), after.ID)
	}
	query += `
		ORDER BY date, start_time, id
		LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}
