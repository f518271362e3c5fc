// Package cache keeps slot listings in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Observer records cache hits and misses.
type Observer interface {
	ObserveCache(hit bool)
}

// SlotCache stores listSlots results per business, menu and date. A nil client disables it.
type SlotCache struct {
	redis    *redis.Client
	ttl      time.Duration
	observer Observer
	logger   zerolog.Logger
}

// NewSlotCache creates a cache over client.
func NewSlotCache(client *redis.Client, ttl time.Duration, observer Observer, logger *zerolog.Logger) *SlotCache {
	return &SlotCache{
		redis:    client,
		ttl:      ttl,
		observer: observer,
		logger:   logger.With().Str("component", "cache").Logger(),
	}
}

func key(businessID, menuID int64, date time.Time) string {
	return fmt.Sprintf("slots:%d:%d:%s", businessID, menuID, models.FormatDate(date))
}

func (c *SlotCache) enabled() bool {
	return c != nil && c.redis != nil && c.ttl > 0
}

// Get returns the cached listing, if present.
func (c *SlotCache) Get(ctx context.Context, businessID, menuID int64, date time.Time) ([]models.BookingSlot, bool) {
	if !c.enabled() {
		return nil, false
	}

	val, err := c.redis.Get(ctx, key(businessID, menuID, date)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("slot cache read failed")
		}
		c.observe(false)
		return nil, false
	}

	var slots []models.BookingSlot
	if err := json.Unmarshal(val, &slots); err != nil {
		c.logger.Warn().Err(err).Msg("slot cache entry is corrupt")
		c.observe(false)
		return nil, false
	}
	c.observe(true)
	return slots, true
}

// Set stores a listing for the configured TTL.
func (c *SlotCache) Set(ctx context.Context, businessID, menuID int64, date time.Time, slots []models.BookingSlot) {
	if !c.enabled() {
		return
	}
	if slots == nil {
		slots = []models.BookingSlot{}
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key(businessID, menuID, date), data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("slot cache write failed")
	}
}

// Invalidate drops the listings of a business menu on each date.
func (c *SlotCache) Invalidate(ctx context.Context, businessID, menuID int64, dates ...time.Time) {
	if !c.enabled() || len(dates) == 0 {
		return
	}
	keys := make([]string, 0, len(dates))
	for _, d := range dates {
		keys = append(keys, key(businessID, menuID, d))
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn().Err(err).Strs("keys", keys).Msg("slot cache invalidation failed")
	}
}

// InvalidateReservation drops the listings whose booked counts a reservation change touched.
// previous is the reservation before a modification, or nil.
func (c *SlotCache) InvalidateReservation(ctx context.Context, r, previous *models.Reservation) {
	c.Invalidate(ctx, r.BusinessID, r.MenuID, r.Date)
	if previous != nil {
		c.Invalidate(ctx, previous.BusinessID, previous.MenuID, previous.Date)
	}
}

// Ping checks the Redis connection.
func (c *SlotCache) Ping(ctx context.Context) error {
	if c == nil || c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}

func (c *SlotCache) observe(hit bool) {
	if c.observer != nil {
		c.observer.ObserveCache(hit)
	}
}
