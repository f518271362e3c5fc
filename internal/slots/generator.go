package slots

import (
	"context"
	"fmt"
	"time"

	"slotbook/internal/apperr"
	"slotbook/internal/models"

	"github.com/rs/zerolog"
)

// Calendar resolves operating windows for a date.
type Calendar interface {
	Resolve(ctx context.Context, businessID int64, date time.Time) ([]models.TimeWindow, error)
}

// SlotReader lists already persisted slots of a menu.
type SlotReader interface {
	ListSlotsForDates(ctx context.Context, menuID int64, dates []time.Time) ([]models.BookingSlot, error)
}

// Request describes one batch generation.
type Request struct {
	BusinessID      int64
	MenuID          int64
	IntervalMinutes int
	Capacity        int
	Days            []models.DailySchedule
	Location        *time.Location
}

// Generator expands daily schedules into slot drafts.
type Generator struct {
	calendar  Calendar
	slots     SlotReader
	validator *Validator
	logger    zerolog.Logger
}

// NewGenerator creates a new slot generator.
func NewGenerator(calendar Calendar, slots SlotReader, validator *Validator, logger *zerolog.Logger) *Generator {
	return &Generator{
		calendar:  calendar,
		slots:     slots,
		validator: validator,
		logger:    logger.With().Str("component", "slots").Logger(),
	}
}

// Generate returns validated drafts for the request. Either every draft is valid or an error is returned.
// Days with no explicit windows use the business's operating hours for that date.
func (g *Generator) Generate(ctx context.Context, req Request) ([]models.SlotDraft, error) {
	if req.IntervalMinutes <= 0 || req.IntervalMinutes > models.MinutesPerDay {
		return nil, apperr.New(apperr.CodeInvalidInterval, "interval must be between 1 and %d minutes, got %d",
			models.MinutesPerDay, req.IntervalMinutes)
	}
	if req.Capacity < 1 {
		return nil, apperr.New(apperr.CodeInvalidCapacity, "capacity must be at least 1, got %d", req.Capacity)
	}
	if len(req.Days) == 0 {
		return nil, nil
	}

	resolved := make(map[string][]models.TimeWindow, len(req.Days))
	dates := make([]time.Time, 0, len(req.Days))
	var drafts []models.SlotDraft

	for _, day := range req.Days {
		date := models.DateOf(day.Date)
		key := models.FormatDate(date)

		if _, ok := resolved[key]; !ok {
			windows, err := g.calendar.Resolve(ctx, req.BusinessID, date)
			if err != nil {
				return nil, fmt.Errorf("resolve hours for %s: %w", key, err)
			}
			resolved[key] = windows
			dates = append(dates, date)
		}

		windows := day.Windows
		if len(windows) == 0 {
			windows = resolved[key]
		}

		for _, w := range windows {
			if !w.Valid() {
				// Keep the malformed window so the validator names it.
				drafts = append(drafts, draft(req, date, w))
				continue
			}
			for _, piece := range Expand(w, req.IntervalMinutes) {
				drafts = append(drafts, draft(req, date, piece))
			}
		}
	}

	existing, err := g.slots.ListSlotsForDates(ctx, req.MenuID, dates)
	if err != nil {
		return nil, fmt.Errorf("list existing slots: %w", err)
	}

	if err := g.validator.Validate(Batch{
		Drafts:   drafts,
		Windows:  resolved,
		Existing: existing,
		Location: req.Location,
	}); err != nil {
		g.logger.Debug().Err(err).
			Int64("business_id", req.BusinessID).
			Int64("menu_id", req.MenuID).
			Msg("slot generation rejected")
		return nil, err
	}

	g.logger.Debug().
		Int64("business_id", req.BusinessID).
		Int64("menu_id", req.MenuID).
		Int("drafts", len(drafts)).
		Msg("slots drafted")
	return drafts, nil
}

// Expand cuts w into consecutive intervals of the given length, dropping a partial tail.
func Expand(w models.TimeWindow, intervalMinutes int) []models.TimeWindow {
	if intervalMinutes <= 0 {
		return nil
	}
	var out []models.TimeWindow
	for cursor := w.Start; cursor.Add(intervalMinutes) <= w.End; cursor = cursor.Add(intervalMinutes) {
		out = append(out, models.TimeWindow{Start: cursor, End: cursor.Add(intervalMinutes)})
	}
	return out
}

func draft(req Request, date time.Time, w models.TimeWindow) models.SlotDraft {
	return models.SlotDraft{
		BusinessID: req.BusinessID,
		MenuID:     req.MenuID,
		Date:       date,
		Start:      w.Start,
		End:        w.End,
		Capacity:   req.Capacity,
	}
}
