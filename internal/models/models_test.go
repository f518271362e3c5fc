package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		in      string
		want    ClockTime
		wantErr bool
	}{
		{"09:00", 540, false},
		{"00:00", 0, false},
		{"24:00", 1440, false},
		{"13:45", 825, false},
		{"24:30", 0, true},
		{"9:00", 0, true},
		{"12:60", 0, true},
		{"ab:cd", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClockTime(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestClockTime_On(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	got := MustClockTime("14:30").On(Date(2025, 1, 10), loc)
	assert.Equal(t, time.Date(2025, 1, 10, 14, 30, 0, 0, loc), got)
}

func TestTimeWindow_Overlaps(t *testing.T) {
	tests := []struct {
		name     string
		a, b     TimeWindow
		expected bool
	}{
		{"same window", Window("09:00", "10:00"), Window("09:00", "10:00"), true},
		{"partial", Window("09:00", "10:00"), Window("09:30", "10:30"), true},
		{"contained", Window("09:00", "12:00"), Window("10:00", "11:00"), true},
		{"touching is not overlap", Window("09:00", "10:00"), Window("10:00", "11:00"), false},
		{"disjoint", Window("09:00", "10:00"), Window("11:00", "12:00"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.expected, tt.b.Overlaps(tt.a))
		})
	}
}

func TestDaySchedule_Windows(t *testing.T) {
	tests := []struct {
		name     string
		day      DaySchedule
		expected []TimeWindow
	}{
		{
			name:     "no breaks",
			day:      DaySchedule{Open: MustClockTime("09:00"), Close: MustClockTime("18:00")},
			expected: []TimeWindow{Window("09:00", "18:00")},
		},
		{
			name: "lunch break",
			day: DaySchedule{
				Open:   MustClockTime("09:00"),
				Close:  MustClockTime("18:00"),
				Breaks: []TimeWindow{Window("12:00", "13:00")},
			},
			expected: []TimeWindow{Window("09:00", "12:00"), Window("13:00", "18:00")},
		},
		{
			name: "unordered breaks",
			day: DaySchedule{
				Open:   MustClockTime("08:00"),
				Close:  MustClockTime("20:00"),
				Breaks: []TimeWindow{Window("16:00", "16:30"), Window("12:00", "13:00")},
			},
			expected: []TimeWindow{Window("08:00", "12:00"), Window("13:00", "16:00"), Window("16:30", "20:00")},
		},
		{
			name: "break at opening",
			day: DaySchedule{
				Open:   MustClockTime("09:00"),
				Close:  MustClockTime("12:00"),
				Breaks: []TimeWindow{Window("09:00", "10:00")},
			},
			expected: []TimeWindow{Window("10:00", "12:00")},
		},
		{
			name:     "closed",
			day:      DaySchedule{Closed: true, Open: MustClockTime("09:00"), Close: MustClockTime("18:00")},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.day.Windows())
		})
	}
}

func TestDefaultWeeklySchedule(t *testing.T) {
	week := DefaultWeeklySchedule()
	for i, day := range week {
		assert.Equal(t, time.Weekday(i), day.Weekday)
		assert.False(t, day.Closed)
		assert.Equal(t, []TimeWindow{Window("09:00", "18:00")}, day.Windows())
	}

	sunday := Date(2025, 1, 12)
	assert.Equal(t, time.Sunday, week.Day(sunday).Weekday)
}

func TestBookingSlot_Remaining(t *testing.T) {
	slot := BookingSlot{Capacity: 3, BookedCount: 1, Start: MustClockTime("10:00"), End: MustClockTime("10:45")}
	assert.Equal(t, 2, slot.Remaining())
	assert.False(t, slot.IsFull())
	assert.Equal(t, 45, slot.DurationMinutes())

	slot.BookedCount = 3
	assert.Equal(t, 0, slot.Remaining())
	assert.True(t, slot.IsFull())
}

func TestReservationStatus(t *testing.T) {
	assert.True(t, StatusPending.IsActive())
	assert.True(t, StatusConfirmed.IsActive())
	assert.False(t, StatusCancelled.IsActive())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
}

func TestReservation_SnapshotSlot(t *testing.T) {
	slot := &BookingSlot{
		ID:         "slot-1",
		BusinessID: 7,
		MenuID:     3,
		Date:       Date(2025, 1, 10),
		Start:      MustClockTime("15:00"),
		End:        MustClockTime("15:30"),
	}

	var r Reservation
	r.SnapshotSlot(slot)

	assert.Equal(t, "slot-1", r.SlotID)
	assert.Equal(t, int64(7), r.BusinessID)
	assert.Equal(t, 30, r.DurationMinutes)
	assert.Equal(t, time.Date(2025, 1, 10, 15, 30, 0, 0, time.UTC), r.EndsAt(time.UTC))
}

func TestDateHelpers(t *testing.T) {
	d, err := ParseDate("2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, Date(2025, 1, 10), d)
	assert.Equal(t, "2025-01-10", FormatDate(d))
	assert.Equal(t, 31, DaysBetween(Date(2025, 1, 1), Date(2025, 2, 1)))

	local := time.Date(2025, 1, 10, 23, 30, 0, 0, time.FixedZone("X", -5*60*60))
	assert.Equal(t, Date(2025, 1, 10), DateOf(local))
}
