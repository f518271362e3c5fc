// Package slots validates and generates bookable slot drafts.
package slots

import (
	"strconv"
	"time"

	"slotbook/internal/apperr"
	"slotbook/internal/clock"
	"slotbook/internal/models"
)

// Limits bound the cost of one generation request.
type Limits struct {
	MaxBatchSize    int
	MaxDateSpanDays int
}

// DefaultLimits are used when configuration leaves a limit unset.
var DefaultLimits = Limits{MaxBatchSize: 500, MaxDateSpanDays: 31}

// Batch is a set of drafts together with the context needed to check them.
type Batch struct {
	Drafts []models.SlotDraft
	// Windows holds the resolved operating windows keyed by YYYY-MM-DD.
	Windows map[string][]models.TimeWindow
	// Existing holds already persisted slots of the same menus on the drafted dates.
	Existing []models.BookingSlot
	Location *time.Location
}

// Validator rejects slot definitions that are malformed, in the past,
// outside business hours or overlapping each other.
type Validator struct {
	limits Limits
	clock  clock.Clock
}

// NewValidator creates a validator; zero limits fall back to DefaultLimits.
func NewValidator(limits Limits, clk clock.Clock) *Validator {
	if limits.MaxBatchSize <= 0 {
		limits.MaxBatchSize = DefaultLimits.MaxBatchSize
	}
	if limits.MaxDateSpanDays <= 0 {
		limits.MaxDateSpanDays = DefaultLimits.MaxDateSpanDays
	}
	return &Validator{limits: limits, clock: clk}
}

// Limits returns the effective limits.
func (v *Validator) Limits() Limits {
	return v.limits
}

type placed struct {
	index  int
	window models.TimeWindow
}

// Validate returns the first violation found, naming the offending draft.
func (v *Validator) Validate(b Batch) error {
	if len(b.Drafts) == 0 {
		return nil
	}
	if len(b.Drafts) > v.limits.MaxBatchSize {
		d := b.Drafts[v.limits.MaxBatchSize]
		return apperr.New(apperr.CodeBatchTooLarge, "%d slots requested, limit is %d", len(b.Drafts), v.limits.MaxBatchSize).
			WithEntry(entryOf(v.limits.MaxBatchSize, d))
	}

	minIdx, maxIdx := 0, 0
	for i, d := range b.Drafts {
		if d.Date.Before(b.Drafts[minIdx].Date) {
			minIdx = i
		}
		if d.Date.After(b.Drafts[maxIdx].Date) {
			maxIdx = i
		}
	}
	if span := models.DaysBetween(b.Drafts[minIdx].Date, b.Drafts[maxIdx].Date); span > v.limits.MaxDateSpanDays {
		return apperr.New(apperr.CodeDateSpanTooLong, "date span of %d days exceeds %d", span, v.limits.MaxDateSpanDays).
			WithEntry(entryOf(maxIdx, b.Drafts[maxIdx]))
	}

	loc := b.Location
	if loc == nil {
		loc = time.UTC
	}
	today := models.DateOf(v.clock.Now().In(loc))

	existing := make(map[string][]models.BookingSlot)
	for _, s := range b.Existing {
		k := dayKey(s.MenuID, s.Date)
		existing[k] = append(existing[k], s)
	}
	accepted := make(map[string][]placed)

	for i, d := range b.Drafts {
		entry := entryOf(i, d)
		w := d.Window()

		if !w.Valid() {
			return apperr.New(apperr.CodeInvalidTimeRange, "start must be before end").WithEntry(entry)
		}
		if d.Capacity < 1 {
			return apperr.New(apperr.CodeInvalidCapacity, "capacity must be at least 1, got %d", d.Capacity).WithEntry(entry)
		}
		if d.Date.Before(today) {
			return apperr.New(apperr.CodePastDate, "date is before %s", models.FormatDate(today)).WithEntry(entry)
		}
		if !insideAny(w, b.Windows[models.FormatDate(d.Date)]) {
			return apperr.New(apperr.CodeOutsideOperatingHours, "slot is not inside an operating window").WithEntry(entry)
		}

		k := dayKey(d.MenuID, d.Date)
		for _, p := range accepted[k] {
			if p.window.Overlaps(w) {
				return apperr.New(apperr.CodeSlotOverlap, "overlaps entry %d (%s)", p.index, p.window).WithEntry(entry)
			}
		}
		for _, s := range existing[k] {
			if s.Window().Overlaps(w) {
				return apperr.New(apperr.CodeSlotOverlap, "overlaps existing slot %s (%s)", s.ID, s.Window()).WithEntry(entry)
			}
		}
		accepted[k] = append(accepted[k], placed{index: i, window: w})
	}
	return nil
}

func insideAny(w models.TimeWindow, windows []models.TimeWindow) bool {
	for _, open := range windows {
		if open.Contains(w) {
			return true
		}
	}
	return false
}

func entryOf(i int, d models.SlotDraft) apperr.Entry {
	return apperr.Entry{Index: i, Date: models.FormatDate(d.Date), Start: d.Start.String(), End: d.End.String()}
}

func dayKey(menuID int64, date time.Time) string {
	return models.FormatDate(date) + "#" + strconv.FormatInt(menuID, 10)
}
