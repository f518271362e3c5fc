package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/models"
)

// GetWeeklySchedule returns the stored week of a business, or nil if it was never set.
func (db *DB) GetWeeklySchedule(ctx context.Context, businessID int64) (*models.OperatingHours, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT day_of_week, is_closed, open_time, close_time, breaks, is_default, updated_at
		FROM operating_hours
		WHERE business_id = ?
		ORDER BY day_of_week`,
		businessID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hours := &models.OperatingHours{BusinessID: businessID, Week: models.DefaultWeeklySchedule(), IsDefault: true}
	found := 0
	for rows.Next() {
		var (
			dow                  int
			closed, isDef        bool
			openAt, closeAt, brk string
			updatedAt            time.Time
		)
		if err := rows.Scan(&dow, &closed, &openAt, &closeAt, &brk, &isDef, &updatedAt); err != nil {
			return nil, err
		}

		day := models.DaySchedule{Weekday: time.Weekday(dow), Closed: closed}
		if day.Open, err = models.ParseClockTime(openAt); err != nil {
			return nil, fmt.Errorf("business %d day %d: %w", businessID, dow, err)
		}
		if day.Close, err = models.ParseClockTime(closeAt); err != nil {
			return nil, fmt.Errorf("business %d day %d: %w", businessID, dow, err)
		}
		if err := json.Unmarshal([]byte(brk), &day.Breaks); err != nil {
			return nil, fmt.Errorf("business %d day %d breaks: %w", businessID, dow, err)
		}
		if len(day.Breaks) == 0 {
			day.Breaks = nil
		}

		hours.Week[dow] = day
		hours.IsDefault = hours.IsDefault && isDef
		if updatedAt.After(hours.UpdatedAt) {
			hours.UpdatedAt = updatedAt
		}
		found++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if found == 0 {
		return nil, nil
	}
	return hours, nil
}

// SaveWeeklySchedule replaces all seven days of a business in one transaction.
func (db *DB) SaveWeeklySchedule(ctx context.Context, hours *models.OperatingHours) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM operating_hours WHERE business_id = ?`, hours.BusinessID); err != nil {
		return fmt.Errorf("delete week: %w", err)
	}

	updatedAt := hours.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	for _, day := range hours.Week {
		breaks := day.Breaks
		if breaks == nil {
			breaks = []models.TimeWindow{}
		}
		brk, err := json.Marshal(breaks)
		if err != nil {
			return fmt.Errorf("encode breaks: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO operating_hours (
				business_id, day_of_week, is_closed, open_time, close_time, breaks, is_default, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			hours.BusinessID, int(day.Weekday), day.Closed, day.Open.String(), day.Close.String(),
			string(brk), hours.IsDefault, updatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert day %d: %w", day.Weekday, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetOverride returns the override for date, or nil if none exists.
func (db *DB) GetOverride(ctx context.Context, businessID int64, date time.Time) (*models.ScheduleOverride, error) {
	var (
		o       models.ScheduleOverride
		windows string
	)
	err := db.QueryRowContext(ctx, `
		SELECT is_closed, windows, reason, created_at, updated_at
		FROM schedule_overrides
		WHERE business_id = ? AND date = ?`,
		businessID, models.FormatDate(date),
	).Scan(&o.Closed, &windows, &o.Reason, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(windows), &o.Windows); err != nil {
		return nil, fmt.Errorf("decode override windows: %w", err)
	}
	if len(o.Windows) == 0 {
		o.Windows = nil
	}
	o.BusinessID = businessID
	o.Date = models.DateOf(date)
	return &o, nil
}

// UpsertOverride creates or replaces the override for o.Date.
func (db *DB) UpsertOverride(ctx context.Context, o *models.ScheduleOverride) error {
	if o == nil {
		return fmt.Errorf("override is nil")
	}

	windows := o.Windows
	if windows == nil {
		windows = []models.TimeWindow{}
	}
	encoded, err := json.Marshal(windows)
	if err != nil {
		return fmt.Errorf("encode override windows: %w", err)
	}

	now := o.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO schedule_overrides (business_id, date, is_closed, windows, reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(business_id, date) DO UPDATE SET
			is_closed = excluded.is_closed,
			windows = excluded.windows,
			reason = excluded.reason,
			updated_at = excluded.updated_at`,
		o.BusinessID, models.FormatDate(o.Date), o.Closed, string(encoded), o.Reason, now, now,
	)
	return err
}

// DeleteOverride removes the override for date.
func (db *DB) DeleteOverride(ctx context.Context, businessID int64, date time.Time) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM schedule_overrides WHERE business_id = ? AND date = ?",
		businessID, models.FormatDate(date),
	)
	return err
}
