// Package hours resolves the open time windows of a business for a given date.
package hours

import (
	"context"
	"fmt"
	"sort"
	"time"

	"slotbook/internal/apperr"
	"slotbook/internal/clock"
	"slotbook/internal/models"

	"github.com/rs/zerolog"
)

// Store persists weekly schedules and per-date overrides.
// Get methods return nil, nil when nothing is stored.
type Store interface {
	GetWeeklySchedule(ctx context.Context, businessID int64) (*models.OperatingHours, error)
	SaveWeeklySchedule(ctx context.Context, hours *models.OperatingHours) error
	GetOverride(ctx context.Context, businessID int64, date time.Time) (*models.ScheduleOverride, error)
	UpsertOverride(ctx context.Context, o *models.ScheduleOverride) error
	DeleteOverride(ctx context.Context, businessID int64, date time.Time) error
}

// Calendar is the operating-hours calendar of all businesses.
type Calendar struct {
	store  Store
	clock  clock.Clock
	logger zerolog.Logger
}

// NewCalendar creates a calendar backed by store.
func NewCalendar(store Store, clk clock.Clock, logger *zerolog.Logger) *Calendar {
	return &Calendar{
		store:  store,
		clock:  clk,
		logger: logger.With().Str("component", "hours").Logger(),
	}
}

// Get returns the business's weekly schedule, or the default one if never set.
func (c *Calendar) Get(ctx context.Context, businessID int64) (*models.OperatingHours, error) {
	stored, err := c.store.GetWeeklySchedule(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("get weekly schedule: %w", err)
	}
	if stored == nil {
		return &models.OperatingHours{
			BusinessID: businessID,
			Week:       models.DefaultWeeklySchedule(),
			IsDefault:  true,
		}, nil
	}
	return stored, nil
}

// Resolve returns the open windows of the business on date, breaks subtracted.
// A per-date override takes precedence over the weekly schedule.
func (c *Calendar) Resolve(ctx context.Context, businessID int64, date time.Time) ([]models.TimeWindow, error) {
	date = models.DateOf(date)

	override, err := c.store.GetOverride(ctx, businessID, date)
	if err != nil {
		return nil, fmt.Errorf("get override: %w", err)
	}
	if override != nil {
		if override.Closed {
			return nil, nil
		}
		return sortedWindows(override.Windows), nil
	}

	hours, err := c.Get(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return hours.Week.Day(date).Windows(), nil
}

// Set replaces the full week atomically after validating every day.
func (c *Calendar) Set(ctx context.Context, businessID int64, week models.WeeklySchedule) (*models.OperatingHours, error) {
	week = normalizeWeek(week)
	if err := ValidateWeek(week); err != nil {
		return nil, err
	}

	hours := &models.OperatingHours{
		BusinessID: businessID,
		Week:       week,
		UpdatedAt:  c.clock.Now().UTC(),
	}
	if err := c.store.SaveWeeklySchedule(ctx, hours); err != nil {
		return nil, fmt.Errorf("save weekly schedule: %w", err)
	}

	c.logger.Info().Int64("business_id", businessID).Msg("operating hours updated")
	return hours, nil
}

// ResetToDefault restores the all-days-open 09:00-18:00 schedule.
func (c *Calendar) ResetToDefault(ctx context.Context, businessID int64) (*models.OperatingHours, error) {
	hours := &models.OperatingHours{
		BusinessID: businessID,
		Week:       models.DefaultWeeklySchedule(),
		IsDefault:  true,
		UpdatedAt:  c.clock.Now().UTC(),
	}
	if err := c.store.SaveWeeklySchedule(ctx, hours); err != nil {
		return nil, fmt.Errorf("save weekly schedule: %w", err)
	}

	c.logger.Info().Int64("business_id", businessID).Msg("operating hours reset to default")
	return hours, nil
}

// SetOverride stores a closed day or special windows for one date.
func (c *Calendar) SetOverride(ctx context.Context, o models.ScheduleOverride) (*models.ScheduleOverride, error) {
	o.Date = models.DateOf(o.Date)
	o.Windows = sortedWindows(o.Windows)
	if err := ValidateOverride(o); err != nil {
		return nil, err
	}

	now := c.clock.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	if err := c.store.UpsertOverride(ctx, &o); err != nil {
		return nil, fmt.Errorf("upsert override: %w", err)
	}

	c.logger.Info().
		Int64("business_id", o.BusinessID).
		Str("date", models.FormatDate(o.Date)).
		Bool("closed", o.Closed).
		Msg("schedule override set")
	return &o, nil
}

// ClearOverride removes the override for date, if any.
func (c *Calendar) ClearOverride(ctx context.Context, businessID int64, date time.Time) error {
	if err := c.store.DeleteOverride(ctx, businessID, models.DateOf(date)); err != nil {
		return fmt.Errorf("delete override: %w", err)
	}
	return nil
}

// ValidateWeek checks every day: open < close, breaks inside [open, close) and not overlapping.
func ValidateWeek(week models.WeeklySchedule) error {
	for i := range week {
		if err := ValidateDay(week[i]); err != nil {
			return err
		}
	}
	return nil
}

// ValidateDay checks a single weekday. Closed days are always valid.
func ValidateDay(day models.DaySchedule) error {
	if day.Closed {
		return nil
	}

	entry := apperr.Entry{Index: int(day.Weekday), Date: day.Weekday.String(), Start: day.Open.String(), End: day.Close.String()}
	open := models.TimeWindow{Start: day.Open, End: day.Close}
	if !open.Valid() {
		return apperr.New(apperr.CodeInvalidSchedule, "open time must be before close time").WithEntry(entry)
	}

	breaks := sortedWindows(day.Breaks)
	for i, b := range breaks {
		entry.Start, entry.End = b.Start.String(), b.End.String()
		if !b.Valid() {
			return apperr.New(apperr.CodeInvalidSchedule, "break start must be before break end").WithEntry(entry)
		}
		if !open.Contains(b) {
			return apperr.New(apperr.CodeInvalidSchedule, "break %s is outside %s", b, open).WithEntry(entry)
		}
		if i > 0 && breaks[i-1].Overlaps(b) {
			return apperr.New(apperr.CodeInvalidSchedule, "break %s overlaps %s", b, breaks[i-1]).WithEntry(entry)
		}
	}
	return nil
}

// ValidateOverride checks that an override is either closed or has disjoint valid windows.
func ValidateOverride(o models.ScheduleOverride) error {
	entry := apperr.Entry{Date: models.FormatDate(o.Date)}
	if o.Closed {
		if len(o.Windows) > 0 {
			return apperr.New(apperr.CodeInvalidSchedule, "closed override cannot have windows").WithEntry(entry)
		}
		return nil
	}
	if len(o.Windows) == 0 {
		return apperr.New(apperr.CodeInvalidSchedule, "override must be closed or list windows").WithEntry(entry)
	}

	windows := sortedWindows(o.Windows)
	for i, w := range windows {
		entry.Index = i
		entry.Start, entry.End = w.Start.String(), w.End.String()
		if !w.Valid() {
			return apperr.New(apperr.CodeInvalidTimeRange, "window start must be before window end").WithEntry(entry)
		}
		if i > 0 && windows[i-1].Overlaps(w) {
			return apperr.New(apperr.CodeInvalidSchedule, "window %s overlaps %s", w, windows[i-1]).WithEntry(entry)
		}
	}
	return nil
}

func normalizeWeek(week models.WeeklySchedule) models.WeeklySchedule {
	for i := range week {
		week[i].Weekday = time.Weekday(i)
		week[i].Breaks = sortedWindows(week[i].Breaks)
	}
	return week
}

func sortedWindows(ws []models.TimeWindow) []models.TimeWindow {
	if len(ws) == 0 {
		return nil
	}
	out := make([]models.TimeWindow, len(ws))
	copy(out, ws)
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
