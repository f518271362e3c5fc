// Package capacity claims and releases seats of a booking slot.
package capacity

import (
	"context"
	"fmt"

	"slotbook/internal/apperr"

	"github.com/rs/zerolog"
)

// DefaultMaxRetries bounds compare-and-swap attempts per claim or release.
const DefaultMaxRetries = 3

// Counter is the concurrency-relevant part of a slot row.
type Counter struct {
	Booked   int
	Capacity int
	Version  int64
}

// Store exposes the compare-and-swap primitive on a slot counter.
// Implementations usually run inside the caller's transaction.
type Store interface {
	// LoadCounter reads the current counter. It returns an error satisfying
	// errors.Is(err, apperr.ErrSlotNotFound) when the slot does not exist.
	LoadCounter(ctx context.Context, slotID string) (Counter, error)
	// SwapCounter sets booked and bumps the version only if the stored version
	// still equals expectedVersion. It reports whether the write happened.
	SwapCounter(ctx context.Context, slotID string, expectedVersion int64, booked int) (bool, error)
}

// Result describes the counter after a successful claim or release.
type Result struct {
	SlotID   string
	Booked   int
	Capacity int
	Version  int64
	Attempts int
}

// Observer receives tracker outcomes, typically metrics.
type Observer interface {
	ObserveClaim(outcome string, attempts int)
}

// Tracker reserves and releases one seat at a time.
type Tracker struct {
	maxRetries int
	observer   Observer
	logger     zerolog.Logger
}

// NewTracker creates a tracker. maxRetries <= 0 selects DefaultMaxRetries.
func NewTracker(maxRetries int, observer Observer, logger *zerolog.Logger) *Tracker {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Tracker{
		maxRetries: maxRetries,
		observer:   observer,
		logger:     logger.With().Str("component", "capacity").Logger(),
	}
}

// Claim increments the booked count of slotID if a seat is free.
// It fails with CapacityExceeded when the slot is full and with TransientConflict
// when every compare-and-swap attempt lost a race.
func (t *Tracker) Claim(ctx context.Context, store Store, slotID string) (Result, error) {
	for attempt := 1; attempt <= t.maxRetries; attempt++ {
		c, err := store.LoadCounter(ctx, slotID)
		if err != nil {
			return Result{}, fmt.Errorf("load counter: %w", err)
		}
		if c.Booked >= c.Capacity {
			t.observe("capacity_exceeded", attempt)
			return Result{}, apperr.New(apperr.CodeCapacityExceeded, "slot %s is fully booked (%d/%d)", slotID, c.Booked, c.Capacity)
		}

		ok, err := store.SwapCounter(ctx, slotID, c.Version, c.Booked+1)
		if err != nil {
			return Result{}, fmt.Errorf("swap counter: %w", err)
		}
		if ok {
			t.observe("claimed", attempt)
			return Result{SlotID: slotID, Booked: c.Booked + 1, Capacity: c.Capacity, Version: c.Version + 1, Attempts: attempt}, nil
		}

		t.logger.Debug().Str("slot_id", slotID).Int("attempt", attempt).Msg("claim lost version race, retrying")
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
	}

	t.observe("conflict", t.maxRetries)
	t.logger.Warn().Str("slot_id", slotID).Int("attempts", t.maxRetries).Msg("claim retries exhausted")
	return Result{}, apperr.New(apperr.CodeTransientConflict, "slot %s is under contention, retry later", slotID)
}

// Release decrements the booked count of slotID, floored at zero.
func (t *Tracker) Release(ctx context.Context, store Store, slotID string) (Result, error) {
	for attempt := 1; attempt <= t.maxRetries; attempt++ {
		c, err := store.LoadCounter(ctx, slotID)
		if err != nil {
			return Result{}, fmt.Errorf("load counter: %w", err)
		}
		if c.Booked <= 0 {
			t.logger.Warn().Str("slot_id", slotID).Msg("release on empty slot ignored")
			return Result{SlotID: slotID, Booked: 0, Capacity: c.Capacity, Version: c.Version, Attempts: attempt}, nil
		}

		ok, err := store.SwapCounter(ctx, slotID, c.Version, c.Booked-1)
		if err != nil {
			return Result{}, fmt.Errorf("swap counter: %w", err)
		}
		if ok {
			t.observe("released", attempt)
			return Result{SlotID: slotID, Booked: c.Booked - 1, Capacity: c.Capacity, Version: c.Version + 1, Attempts: attempt}, nil
		}
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
	}

	t.observe("conflict", t.maxRetries)
	return Result{}, apperr.New(apperr.CodeTransientConflict, "slot %s is under contention, retry later", slotID)
}

func (t *Tracker) observe(outcome string, attempts int) {
	if t.observer != nil {
		t.observer.ObserveClaim(outcome, attempts)
	}
}
