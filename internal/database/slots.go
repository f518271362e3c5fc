package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"slotbook/internal/models"

	"github.com/google/uuid"
)

const slotColumns = `id, business_id, menu_id, date, start_time, end_time, capacity, booked_count, version, created_at, updated_at`

// SlotOverlapError names the persisted slot a new slot collides with.
type SlotOverlapError struct {
	Index    int
	Existing models.BookingSlot
}

func (e *SlotOverlapError) Error() string {
	return fmt.Sprintf("slot %d overlaps existing slot %s (%s)", e.Index, e.Existing.ID, e.Existing.Window())
}

func (e *SlotOverlapError) Unwrap() error {
	return ErrSlotOverlap
}

func scanSlot(row scanner) (*models.BookingSlot, error) {
	var (
		s                models.BookingSlot
		date, start, end string
	)
	err := row.Scan(&s.ID, &s.BusinessID, &s.MenuID, &date, &start, &end,
		&s.Capacity, &s.BookedCount, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if s.Date, err = models.ParseDate(date); err != nil {
		return nil, fmt.Errorf("slot %s date: %w", s.ID, err)
	}
	if s.Start, err = models.ParseClockTime(start); err != nil {
		return nil, fmt.Errorf("slot %s start: %w", s.ID, err)
	}
	if s.End, err = models.ParseClockTime(end); err != nil {
		return nil, fmt.Errorf("slot %s end: %w", s.ID, err)
	}
	return &s, nil
}

func collectSlots(rows *sql.Rows) ([]models.BookingSlot, error) {
	defer rows.Close()
	var out []models.BookingSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// InsertSlots persists all drafts or none. Drafts overlapping a persisted slot of
// the same menu and date fail with a *SlotOverlapError.
func (db *DB) InsertSlots(ctx context.Context, drafts []models.SlotDraft) ([]models.BookingSlot, error) {
	if len(drafts) == 0 {
		return nil, nil
	}

	var created []models.BookingSlot
	err := db.InTx(ctx, func(tx *Tx) error {
		taken := make(map[string][]models.BookingSlot)
		now := time.Now().UTC()

		for i, d := range drafts {
			key := fmt.Sprintf("%d/%s", d.MenuID, models.FormatDate(d.Date))
			if _, ok := taken[key]; !ok {
				existing, err := tx.listSlots(ctx, d.MenuID, d.Date)
				if err != nil {
					return fmt.Errorf("list slots: %w", err)
				}
				taken[key] = existing
			}

			w := d.Window()
			for _, s := range taken[key] {
				if s.Window().Overlaps(w) {
					return &SlotOverlapError{Index: i, Existing: s}
				}
			}

			slot := models.BookingSlot{
				ID:         uuid.NewString(),
				BusinessID: d.BusinessID,
				MenuID:     d.MenuID,
				Date:       models.DateOf(d.Date),
				Start:      d.Start,
				End:        d.End,
				Capacity:   d.Capacity,
				Version:    1,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			_, err := tx.tx.ExecContext(ctx, `
				INSERT INTO booking_slots (`+slotColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				slot.ID, slot.BusinessID, slot.MenuID, models.FormatDate(slot.Date), slot.Start.String(), slot.End.String(),
				slot.Capacity, 0, slot.Version, slot.CreatedAt, slot.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("insert slot %d: %w", i, err)
			}

			taken[key] = append(taken[key], slot)
			created = append(created, slot)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetSlot returns a slot by id.
func (db *DB) GetSlot(ctx context.Context, id string) (*models.BookingSlot, error) {
	s, err := scanSlot(db.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM booking_slots WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("slot %s: %w", id, ErrNotFound)
	}
	return s, err
}

// ListSlots returns the slots of a business menu on date ordered by start time.
func (db *DB) ListSlots(ctx context.Context, businessID, menuID int64, date time.Time) ([]models.BookingSlot, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+slotColumns+`
		FROM booking_slots
		WHERE business_id = ? AND menu_id = ? AND date = ?
		ORDER BY start_time`,
		businessID, menuID, models.FormatDate(date),
	)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

// ListSlotsForDates returns all slots of a menu on any of dates.
func (db *DB) ListSlotsForDates(ctx context.Context, menuID int64, dates []time.Time) ([]models.BookingSlot, error) {
	if len(dates) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(dates))
	args := make([]any, 0, len(dates)+1)
	args = append(args, menuID)
	for i, d := range dates {
		placeholders[i] = "?"
		args = append(args, models.FormatDate(d))
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+slotColumns+`
		FROM booking_slots
		WHERE menu_id = ? AND date IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY date, start_time`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

// DeleteSlot removes a slot that has no booked seats and no active reservations.
func (db *DB) DeleteSlot(ctx context.Context, id string) (*models.BookingSlot, error) {
	var deleted *models.BookingSlot
	err := db.InTx(ctx, func(tx *Tx) error {
		slot, err := tx.GetSlot(ctx, id)
		if err != nil {
			return err
		}
		if slot.BookedCount > 0 {
			return fmt.Errorf("slot %s has %d booked seats: %w", id, slot.BookedCount, ErrSlotInUse)
		}
		active, err := tx.CountActiveReservations(ctx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("slot %s has %d active reservations: %w", id, active, ErrSlotInUse)
		}

		// Cancelled and completed reservations keep their snapshot of the slot.
		if _, err := tx.tx.ExecContext(ctx, `DELETE FROM booking_slots WHERE id = ? AND booked_count = 0`, id); err != nil {
			return fmt.Errorf("delete slot: %w", err)
		}
		deleted = slot
		return nil
	})
	return deleted, err
}
