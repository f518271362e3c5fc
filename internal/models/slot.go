package models

import "time"

// BookingSlot is a bookable interval for one menu on one date.
type BookingSlot struct {
	ID          string    `json:"id"`
	BusinessID  int64     `json:"business_id"`
	MenuID      int64     `json:"menu_id"`
	Date        time.Time `json:"date"`
	Start       ClockTime `json:"start"`
	End         ClockTime `json:"end"`
	Capacity    int       `json:"capacity"`
	BookedCount int       `json:"booked_count"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Window returns the slot's [Start, End) interval.
func (s *BookingSlot) Window() TimeWindow {
	return TimeWindow{Start: s.Start, End: s.End}
}

// DurationMinutes returns the slot length.
func (s *BookingSlot) DurationMinutes() int {
	return int(s.End - s.Start)
}

// Remaining returns the number of free seats.
func (s *BookingSlot) Remaining() int {
	if s.BookedCount >= s.Capacity {
		return 0
	}
	return s.Capacity - s.BookedCount
}

// IsFull reports whether no seat is left.
func (s *BookingSlot) IsFull() bool {
	return s.Remaining() == 0
}

// StartsAt returns the absolute start of the slot in loc.
func (s *BookingSlot) StartsAt(loc *time.Location) time.Time {
	return s.Start.On(s.Date, loc)
}

// SlotDraft is a slot proposed by the generator and not yet persisted.
type SlotDraft struct {
	BusinessID int64     `json:"business_id"`
	MenuID     int64     `json:"menu_id"`
	Date       time.Time `json:"date"`
	Start      ClockTime `json:"start"`
	End        ClockTime `json:"end"`
	Capacity   int       `json:"capacity"`
}

// Window returns the draft's [Start, End) interval.
func (d SlotDraft) Window() TimeWindow {
	return TimeWindow{Start: d.Start, End: d.End}
}

// DailySchedule is one generation day. Empty Windows means "use the operating hours".
type DailySchedule struct {
	Date    time.Time    `json:"date"`
	Windows []TimeWindow `json:"windows,omitempty"`
}

// FirstOverlap returns the index of the first window in ws overlapping w, or -1.
func FirstOverlap(w TimeWindow, ws []TimeWindow) int {
	for i, o := range ws {
		if w.Overlaps(o) {
			return i
		}
	}
	return -1
}
