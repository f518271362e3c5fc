package hours

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"slotbook/internal/apperr"
	"slotbook/internal/clock"
	"slotbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu        sync.Mutex
	weeks     map[int64]models.OperatingHours
	overrides map[string]models.ScheduleOverride
	saveErr   error
}

func newMemStore() *memStore {
	return &memStore{
		weeks:     make(map[int64]models.OperatingHours),
		overrides: make(map[string]models.ScheduleOverride),
	}
}

func overrideKey(businessID int64, date time.Time) string {
	return fmt.Sprintf("%d/%s", businessID, models.FormatDate(date))
}

func (m *memStore) GetWeeklySchedule(_ context.Context, businessID int64) (*models.OperatingHours, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.weeks[businessID]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (m *memStore) SaveWeeklySchedule(_ context.Context, h *models.OperatingHours) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.weeks[h.BusinessID] = *h
	return nil
}

func (m *memStore) GetOverride(_ context.Context, businessID int64, date time.Time) (*models.ScheduleOverride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.overrides[overrideKey(businessID, date)]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *memStore) UpsertOverride(_ context.Context, o *models.ScheduleOverride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[overrideKey(o.BusinessID, o.Date)] = *o
	return nil
}

func (m *memStore) DeleteOverride(_ context.Context, businessID int64, date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.overrides, overrideKey(businessID, date))
	return nil
}

func newTestCalendar(t *testing.T) (*Calendar, *memStore) {
	t.Helper()
	logger := zerolog.Nop()
	store := newMemStore()
	clk := clock.NewFixed(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC))
	return NewCalendar(store, clk, &logger), store
}

func lunchWeek() models.WeeklySchedule {
	week := models.DefaultWeeklySchedule()
	for i := range week {
		week[i].Breaks = []models.TimeWindow{models.Window("12:00", "13:00")}
	}
	week[time.Sunday].Closed = true
	return week
}

func TestCalendar_ResolveDefault(t *testing.T) {
	cal, _ := newTestCalendar(t)
	ctx := context.Background()

	windows, err := cal.Resolve(ctx, 1, models.Date(2025, 1, 10))
	require.NoError(t, err)
	assert.Equal(t, []models.TimeWindow{models.Window("09:00", "18:00")}, windows)

	hours, err := cal.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, hours.IsDefault)
}

func TestCalendar_SetAndResolve(t *testing.T) {
	cal, _ := newTestCalendar(t)
	ctx := context.Background()

	hours, err := cal.Set(ctx, 1, lunchWeek())
	require.NoError(t, err)
	assert.False(t, hours.IsDefault)

	friday := models.Date(2025, 1, 10)
	windows, err := cal.Resolve(ctx, 1, friday)
	require.NoError(t, err)
	assert.Equal(t, []models.TimeWindow{models.Window("09:00", "12:00"), models.Window("13:00", "18:00")}, windows)

	sunday := models.Date(2025, 1, 12)
	windows, err = cal.Resolve(ctx, 1, sunday)
	require.NoError(t, err)
	assert.Empty(t, windows)

	// Other businesses are unaffected.
	windows, err = cal.Resolve(ctx, 2, friday)
	require.NoError(t, err)
	assert.Equal(t, []models.TimeWindow{models.Window("09:00", "18:00")}, windows)
}

func TestCalendar_SetRejectsMalformedDay(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(w *models.WeeklySchedule)
	}{
		{"open after close", func(w *models.WeeklySchedule) {
			w[time.Monday].Open = models.MustClockTime("18:00")
			w[time.Monday].Close = models.MustClockTime("09:00")
		}},
		{"break outside hours", func(w *models.WeeklySchedule) {
			w[time.Tuesday].Breaks = []models.TimeWindow{models.Window("17:30", "18:30")}
		}},
		{"inverted break", func(w *models.WeeklySchedule) {
			w[time.Wednesday].Breaks = []models.TimeWindow{models.Window("13:00", "12:00")}
		}},
		{"overlapping breaks", func(w *models.WeeklySchedule) {
			w[time.Thursday].Breaks = []models.TimeWindow{models.Window("12:00", "13:00"), models.Window("12:30", "14:00")}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal, store := newTestCalendar(t)
			week := models.DefaultWeeklySchedule()
			tt.mutate(&week)

			_, err := cal.Set(context.Background(), 1, week)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrInvalidSchedule))
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Empty(t, store.weeks, "nothing is written on validation failure")
		})
	}
}

func TestCalendar_ClosedDaySkipsValidation(t *testing.T) {
	cal, _ := newTestCalendar(t)
	week := models.DefaultWeeklySchedule()
	week[time.Saturday] = models.DaySchedule{Closed: true}

	_, err := cal.Set(context.Background(), 1, week)
	assert.NoError(t, err)
}

func TestCalendar_ResetToDefault(t *testing.T) {
	cal, _ := newTestCalendar(t)
	ctx := context.Background()

	_, err := cal.Set(ctx, 1, lunchWeek())
	require.NoError(t, err)

	hours, err := cal.ResetToDefault(ctx, 1)
	require.NoError(t, err)
	assert.True(t, hours.IsDefault)

	windows, err := cal.Resolve(ctx, 1, models.Date(2025, 1, 12))
	require.NoError(t, err)
	assert.Equal(t, []models.TimeWindow{models.Window("09:00", "18:00")}, windows)
}

func TestCalendar_Overrides(t *testing.T) {
	cal, _ := newTestCalendar(t)
	ctx := context.Background()
	date := models.Date(2025, 1, 10)

	_, err := cal.SetOverride(ctx, models.ScheduleOverride{BusinessID: 1, Date: date, Closed: true, Reason: "holiday"})
	require.NoError(t, err)

	windows, err := cal.Resolve(ctx, 1, date)
	require.NoError(t, err)
	assert.Empty(t, windows)

	_, err = cal.SetOverride(ctx, models.ScheduleOverride{
		BusinessID: 1,
		Date:       date,
		Windows:    []models.TimeWindow{models.Window("14:00", "16:00"), models.Window("10:00", "12:00")},
	})
	require.NoError(t, err)

	windows, err = cal.Resolve(ctx, 1, date)
	require.NoError(t, err)
	assert.Equal(t, []models.TimeWindow{models.Window("10:00", "12:00"), models.Window("14:00", "16:00")}, windows)

	require.NoError(t, cal.ClearOverride(ctx, 1, date))
	windows, err = cal.Resolve(ctx, 1, date)
	require.NoError(t, err)
	assert.Equal(t, []models.TimeWindow{models.Window("09:00", "18:00")}, windows)
}

func TestValidateOverride(t *testing.T) {
	date := models.Date(2025, 1, 10)

	err := ValidateOverride(models.ScheduleOverride{Date: date})
	assert.True(t, errors.Is(err, apperr.ErrInvalidSchedule))

	err = ValidateOverride(models.ScheduleOverride{Date: date, Closed: true, Windows: []models.TimeWindow{models.Window("09:00", "10:00")}})
	assert.True(t, errors.Is(err, apperr.ErrInvalidSchedule))

	err = ValidateOverride(models.ScheduleOverride{Date: date, Windows: []models.TimeWindow{models.Window("10:00", "09:00")}})
	assert.True(t, errors.Is(err, apperr.ErrInvalidTimeRange))

	err = ValidateOverride(models.ScheduleOverride{Date: date, Windows: []models.TimeWindow{models.Window("09:00", "11:00"), models.Window("10:00", "12:00")}})
	assert.True(t, errors.Is(err, apperr.ErrInvalidSchedule))
}

func TestCalendar_StoreErrorIsWrapped(t *testing.T) {
	cal, store := newTestCalendar(t)
	store.saveErr = errors.New("disk full")

	_, err := cal.Set(context.Background(), 1, models.DefaultWeeklySchedule())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, apperr.Kind(""), apperr.KindOf(err))
}
