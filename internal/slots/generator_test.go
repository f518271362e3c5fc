package slots

import (
	"context"
	"errors"
	"testing"
	"time"

	"slotbook/internal/apperr"
	"slotbook/internal/clock"
	"slotbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCalendar struct {
	mock.Mock
}

func (m *MockCalendar) Resolve(ctx context.Context, businessID int64, date time.Time) ([]models.TimeWindow, error) {
	args := m.Called(ctx, businessID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TimeWindow), args.Error(1)
}

type MockSlotReader struct {
	mock.Mock
}

func (m *MockSlotReader) ListSlotsForDates(ctx context.Context, menuID int64, dates []time.Time) ([]models.BookingSlot, error) {
	args := m.Called(ctx, menuID, dates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BookingSlot), args.Error(1)
}

func lunchWindows() []models.TimeWindow {
	return []models.TimeWindow{models.Window("09:00", "12:00"), models.Window("13:00", "18:00")}
}

func newTestGenerator(cal Calendar, reader SlotReader) *Generator {
	logger := zerolog.Nop()
	clk := clock.NewFixed(time.Date(2025, 1, 9, 12, 0, 0, 0, time.UTC))
	return NewGenerator(cal, reader, NewValidator(Limits{}, clk), &logger)
}

func TestGenerator_TwoDaysWithLunch(t *testing.T) {
	cal := new(MockCalendar)
	reader := new(MockSlotReader)
	cal.On("Resolve", mock.Anything, int64(1), mock.Anything).Return(lunchWindows(), nil)
	reader.On("ListSlotsForDates", mock.Anything, int64(5), mock.Anything).Return([]models.BookingSlot{}, nil)

	gen := newTestGenerator(cal, reader)
	drafts, err := gen.Generate(context.Background(), Request{
		BusinessID:      1,
		MenuID:          5,
		IntervalMinutes: 30,
		Capacity:        1,
		Days: []models.DailySchedule{
			{Date: models.Date(2025, 1, 10)},
			{Date: models.Date(2025, 1, 11)},
		},
	})
	require.NoError(t, err)

	perDay := map[string]int{}
	lunch := models.Window("12:00", "13:00")
	for _, d := range drafts {
		perDay[models.FormatDate(d.Date)]++
		assert.False(t, d.Window().Overlaps(lunch), "slot %s crosses lunch", d.Window())
		assert.Equal(t, 30, d.Window().Minutes())
		assert.Equal(t, 1, d.Capacity)
	}
	assert.Equal(t, map[string]int{"2025-01-10": 16, "2025-01-11": 16}, perDay)
	assert.Equal(t, models.MustClockTime("09:00"), drafts[0].Start)
	assert.Equal(t, models.MustClockTime("17:30"), drafts[15].Start)

	cal.AssertNumberOfCalls(t, "Resolve", 2)
	reader.AssertExpectations(t)
}

func TestGenerator_ExplicitWindows(t *testing.T) {
	cal := new(MockCalendar)
	reader := new(MockSlotReader)
	cal.On("Resolve", mock.Anything, int64(1), mock.Anything).Return(lunchWindows(), nil)
	reader.On("ListSlotsForDates", mock.Anything, int64(5), mock.Anything).Return(nil, nil)

	gen := newTestGenerator(cal, reader)

	t.Run("window inside hours", func(t *testing.T) {
		drafts, err := gen.Generate(context.Background(), Request{
			BusinessID:      1,
			MenuID:          5,
			IntervalMinutes: 45,
			Capacity:        2,
			Days:            []models.DailySchedule{{Date: models.Date(2025, 1, 10), Windows: []models.TimeWindow{models.Window("14:00", "16:00")}}},
		})
		require.NoError(t, err)
		// 14:00, 14:45; 15:30-16:15 would overrun the window.
		require.Len(t, drafts, 2)
		assert.Equal(t, models.Window("14:45", "15:30"), drafts[1].Window())
		assert.Equal(t, 2, drafts[0].Capacity)
	})

	t.Run("window straddling a break", func(t *testing.T) {
		_, err := gen.Generate(context.Background(), Request{
			BusinessID:      1,
			MenuID:          5,
			IntervalMinutes: 60,
			Capacity:        1,
			Days:            []models.DailySchedule{{Date: models.Date(2025, 1, 10), Windows: []models.TimeWindow{models.Window("11:00", "14:00")}}},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperr.ErrOutsideOperatingHours))
		e, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, 1, e.Entry.Index)
		assert.Equal(t, "12:00", e.Entry.Start)
	})

	t.Run("inverted window", func(t *testing.T) {
		_, err := gen.Generate(context.Background(), Request{
			BusinessID:      1,
			MenuID:          5,
			IntervalMinutes: 30,
			Capacity:        1,
			Days:            []models.DailySchedule{{Date: models.Date(2025, 1, 10), Windows: []models.TimeWindow{models.Window("15:00", "14:00")}}},
		})
		assert.True(t, errors.Is(err, apperr.ErrInvalidTimeRange))
	})
}

func TestGenerator_RejectsExistingOverlap(t *testing.T) {
	cal := new(MockCalendar)
	reader := new(MockSlotReader)
	cal.On("Resolve", mock.Anything, int64(1), mock.Anything).Return(lunchWindows(), nil)
	reader.On("ListSlotsForDates", mock.Anything, int64(5), mock.Anything).Return([]models.BookingSlot{{
		ID:     "existing",
		MenuID: 5,
		Date:   models.Date(2025, 1, 10),
		Start:  models.MustClockTime("10:00"),
		End:    models.MustClockTime("10:30"),
	}}, nil)

	gen := newTestGenerator(cal, reader)
	drafts, err := gen.Generate(context.Background(), Request{
		BusinessID:      1,
		MenuID:          5,
		IntervalMinutes: 30,
		Capacity:        1,
		Days:            []models.DailySchedule{{Date: models.Date(2025, 1, 10)}},
	})
	assert.Nil(t, drafts)
	assert.True(t, errors.Is(err, apperr.ErrSlotOverlap))
	assert.Contains(t, err.Error(), "existing")
}

func TestGenerator_RequestValidation(t *testing.T) {
	gen := newTestGenerator(new(MockCalendar), new(MockSlotReader))

	_, err := gen.Generate(context.Background(), Request{IntervalMinutes: 0, Capacity: 1})
	assert.True(t, errors.Is(err, apperr.ErrInvalidInterval))

	_, err = gen.Generate(context.Background(), Request{IntervalMinutes: 30, Capacity: 0})
	assert.True(t, errors.Is(err, apperr.ErrInvalidCapacity))

	drafts, err := gen.Generate(context.Background(), Request{IntervalMinutes: 30, Capacity: 1})
	assert.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestGenerator_ClosedDayYieldsNothing(t *testing.T) {
	cal := new(MockCalendar)
	reader := new(MockSlotReader)
	cal.On("Resolve", mock.Anything, int64(1), mock.Anything).Return(nil, nil)
	reader.On("ListSlotsForDates", mock.Anything, int64(5), mock.Anything).Return(nil, nil)

	gen := newTestGenerator(cal, reader)
	drafts, err := gen.Generate(context.Background(), Request{
		BusinessID:      1,
		MenuID:          5,
		IntervalMinutes: 30,
		Capacity:        1,
		Days:            []models.DailySchedule{{Date: models.Date(2025, 1, 12)}},
	})
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestGenerator_CalendarErrorIsWrapped(t *testing.T) {
	cal := new(MockCalendar)
	cal.On("Resolve", mock.Anything, int64(1), mock.Anything).Return(nil, errors.New("db down"))

	gen := newTestGenerator(cal, new(MockSlotReader))
	_, err := gen.Generate(context.Background(), Request{
		BusinessID:      1,
		MenuID:          5,
		IntervalMinutes: 30,
		Capacity:        1,
		Days:            []models.DailySchedule{{Date: models.Date(2025, 1, 10)}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestExpand(t *testing.T) {
	tests := []struct {
		name     string
		window   models.TimeWindow
		interval int
		expected int
	}{
		{"exact fit", models.Window("09:00", "12:00"), 30, 6},
		{"partial tail dropped", models.Window("09:00", "10:40"), 30, 3},
		{"interval longer than window", models.Window("09:00", "09:20"), 30, 0},
		{"whole day", models.Window("00:00", "24:00"), 60, 24},
		{"zero interval", models.Window("09:00", "10:00"), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, Expand(tt.window, tt.interval), tt.expected)
		})
	}
}
