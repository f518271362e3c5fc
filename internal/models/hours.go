package models

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// MinutesPerDay is the upper bound of a ClockTime. "24:00" is a valid close time.
const MinutesPerDay = 24 * 60

// ClockTime is a wall-clock time of day stored as minutes since midnight.
type ClockTime int

// ParseClockTime parses "HH:MM" (00:00..24:00).
func ParseClockTime(s string) (ClockTime, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, errH := strconv.Atoi(s[:2])
	m, errM := strconv.Atoi(s[3:])
	if errH != nil || errM != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return ClockTime(h*60 + m), nil
}

// MustClockTime is ParseClockTime for literals; it panics on malformed input.
func MustClockTime(s string) ClockTime {
	c, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Valid reports whether c lies within a day.
func (c ClockTime) Valid() bool {
	return c >= 0 && c <= MinutesPerDay
}

// Add shifts c by the given number of minutes.
func (c ClockTime) Add(minutes int) ClockTime {
	return c + ClockTime(minutes)
}

// On places c on the given civil date in loc.
func (c ClockTime) On(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Add(time.Duration(c) * time.Minute)
}

func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(b []byte) error {
	v, err := ParseClockTime(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// TimeWindow is a half-open [Start, End) interval within one day.
type TimeWindow struct {
	Start ClockTime `json:"start" yaml:"start"`
	End   ClockTime `json:"end" yaml:"end"`
}

// Window builds a TimeWindow from two "HH:MM" literals; it panics on malformed input.
func Window(start, end string) TimeWindow {
	return TimeWindow{Start: MustClockTime(start), End: MustClockTime(end)}
}

// Valid reports whether the window is non-empty and inside the day.
func (w TimeWindow) Valid() bool {
	return w.Start.Valid() && w.End.Valid() && w.Start < w.End
}

// Minutes returns the window length.
func (w TimeWindow) Minutes() int {
	return int(w.End - w.Start)
}

// Overlaps uses half-open semantics: touching windows do not overlap.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	return w.Start < o.End && o.Start < w.End
}

// Contains reports whether o lies entirely inside w.
func (w TimeWindow) Contains(o TimeWindow) bool {
	return w.Start <= o.Start && o.End <= w.End
}

func (w TimeWindow) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// DaySchedule is one weekday of a business's operating hours.
type DaySchedule struct {
	Weekday time.Weekday `json:"weekday"`
	Closed  bool         `json:"closed"`
	Open    ClockTime    `json:"open"`
	Close   ClockTime    `json:"close"`
	Breaks  []TimeWindow `json:"breaks,omitempty"`
}

// Windows returns the open intervals of the day after subtracting breaks.
// Breaks are expected to be validated (inside [Open, Close), non-overlapping).
func (d DaySchedule) Windows() []TimeWindow {
	if d.Closed || d.Open >= d.Close {
		return nil
	}

	breaks := make([]TimeWindow, len(d.Breaks))
	copy(breaks, d.Breaks)
	sort.Slice(breaks, func(i, j int) bool { return breaks[i].Start < breaks[j].Start })

	windows := make([]TimeWindow, 0, len(breaks)+1)
	cursor := d.Open
	for _, b := range breaks {
		if b.Start > cursor {
			windows = append(windows, TimeWindow{Start: cursor, End: b.Start})
		}
		if b.End > cursor {
			cursor = b.End
		}
	}
	if cursor < d.Close {
		windows = append(windows, TimeWindow{Start: cursor, End: d.Close})
	}
	return windows
}

// WeeklySchedule holds one DaySchedule per weekday, indexed by time.Weekday (Sunday=0).
type WeeklySchedule [7]DaySchedule

// Default opening hours applied until a business sets its own.
var (
	DefaultOpen  = ClockTime(9 * 60)
	DefaultClose = ClockTime(18 * 60)
)

// DefaultWeeklySchedule returns the canonical all-days-open schedule.
func DefaultWeeklySchedule() WeeklySchedule {
	var w WeeklySchedule
	for i := range w {
		w[i] = DaySchedule{Weekday: time.Weekday(i), Open: DefaultOpen, Close: DefaultClose}
	}
	return w
}

// Day returns the schedule for the weekday of date.
func (w WeeklySchedule) Day(date time.Time) DaySchedule {
	return w[date.Weekday()]
}

// OperatingHours is the weekly schedule owned by a business.
type OperatingHours struct {
	BusinessID int64          `json:"business_id"`
	Week       WeeklySchedule `json:"week"`
	IsDefault  bool           `json:"is_default"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// ScheduleOverride replaces the weekly schedule for one date: either closed or explicit windows.
type ScheduleOverride struct {
	BusinessID int64        `json:"business_id"`
	Date       time.Time    `json:"date"`
	Closed     bool         `json:"closed"`
	Windows    []TimeWindow `json:"windows,omitempty"`
	Reason     string       `json:"reason,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}
