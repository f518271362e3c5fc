package capacity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"slotbook/internal/apperr"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCounter struct {
	mu       sync.Mutex
	counters map[string]Counter
	// lose makes the next N swaps fail as if another writer committed first.
	lose int
}

func newMemCounter(slotID string, capacity, booked int) *memCounter {
	return &memCounter{counters: map[string]Counter{slotID: {Booked: booked, Capacity: capacity, Version: 1}}}
}

func (m *memCounter) LoadCounter(_ context.Context, slotID string) (Counter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counters[slotID]
	if !ok {
		return Counter{}, apperr.New(apperr.CodeSlotNotFound, "slot %s", slotID)
	}
	return c, nil
}

func (m *memCounter) SwapCounter(_ context.Context, slotID string, expected int64, booked int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lose > 0 {
		m.lose--
		c := m.counters[slotID]
		c.Version++
		m.counters[slotID] = c
		return false, nil
	}
	c := m.counters[slotID]
	if c.Version != expected {
		return false, nil
	}
	c.Booked = booked
	c.Version++
	m.counters[slotID] = c
	return true, nil
}

func (m *memCounter) get(slotID string) Counter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[slotID]
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingObserver) ObserveClaim(outcome string, _ int) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, outcome)
	r.mu.Unlock()
}

func newTestTracker(observer Observer) *Tracker {
	logger := zerolog.Nop()
	return NewTracker(3, observer, &logger)
}

func TestTracker_Claim(t *testing.T) {
	ctx := context.Background()
	store := newMemCounter("s1", 2, 0)
	obs := &recordingObserver{}
	tracker := newTestTracker(obs)

	res, err := tracker.Claim(ctx, store, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Booked)
	assert.Equal(t, 1, res.Attempts)

	res, err = tracker.Claim(ctx, store, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Booked)

	_, err = tracker.Claim(ctx, store, "s1")
	assert.True(t, errors.Is(err, apperr.ErrCapacityExceeded))
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, 2, store.get("s1").Booked)

	assert.Equal(t, []string{"claimed", "claimed", "capacity_exceeded"}, obs.outcomes)
}

func TestTracker_ClaimUnknownSlot(t *testing.T) {
	tracker := newTestTracker(nil)
	_, err := tracker.Claim(context.Background(), newMemCounter("s1", 1, 0), "missing")
	assert.True(t, errors.Is(err, apperr.ErrSlotNotFound))
}

func TestTracker_ClaimRetriesVersionConflicts(t *testing.T) {
	store := newMemCounter("s1", 1, 0)
	store.lose = 2
	tracker := newTestTracker(nil)

	res, err := tracker.Claim(context.Background(), store, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 1, store.get("s1").Booked)
}

func TestTracker_ClaimRetriesExhausted(t *testing.T) {
	store := newMemCounter("s1", 5, 0)
	store.lose = 3
	obs := &recordingObserver{}
	tracker := newTestTracker(obs)

	_, err := tracker.Claim(context.Background(), store, "s1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrTransientConflict))
	assert.True(t, apperr.IsRetryable(err))
	assert.False(t, errors.Is(err, apperr.ErrCapacityExceeded))
	assert.Equal(t, 0, store.get("s1").Booked)
	assert.Equal(t, []string{"conflict"}, obs.outcomes)
}

func TestTracker_Release(t *testing.T) {
	ctx := context.Background()
	store := newMemCounter("s1", 2, 2)
	tracker := newTestTracker(nil)

	res, err := tracker.Release(ctx, store, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Booked)

	_, err = tracker.Release(ctx, store, "s1")
	require.NoError(t, err)

	res, err = tracker.Release(ctx, store, "s1")
	require.NoError(t, err, "release on an empty slot is floored, not an error")
	assert.Equal(t, 0, res.Booked)
	assert.Equal(t, 0, store.get("s1").Booked)
}

func TestTracker_ConcurrentClaimsLastSeat(t *testing.T) {
	store := newMemCounter("s1", 1, 0)
	tracker := newTestTracker(nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	start := make(chan struct{})
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = tracker.Claim(context.Background(), store, "s1")
		}(i)
	}
	close(start)
	wg.Wait()

	successes, exceeded := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, apperr.ErrCapacityExceeded):
			exceeded++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, exceeded)
	assert.Equal(t, 1, store.get("s1").Booked)
}

func TestTracker_ConcurrentClaimsNeverOverbook(t *testing.T) {
	const capacity, workers = 5, 40
	store := newMemCounter("s1", capacity, 0)
	tracker := newTestTracker(nil)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tracker.Claim(context.Background(), store, "s1")
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, apperr.ErrCapacityExceeded) || errors.Is(err, apperr.ErrTransientConflict), err)
		}()
	}
	wg.Wait()

	c := store.get("s1")
	assert.LessOrEqual(t, c.Booked, capacity)
	assert.Equal(t, successes, c.Booked)
}
