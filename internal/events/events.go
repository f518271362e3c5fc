// Package events delivers reservation events to subscribers after the change is committed.
package events

import (
	"context"
	"sync"
	"time"

	"slotbook/internal/models"

	"github.com/rs/zerolog"
)

// Type names a reservation event.
type Type string

const (
	ReservationCreated   Type = "reservation.created"
	ReservationConfirmed Type = "reservation.confirmed"
	ReservationCancelled Type = "reservation.cancelled"
	ReservationModified  Type = "reservation.modified"
	ReservationCompleted Type = "reservation.completed"
)

// Event is one committed reservation change. Previous is set for modifications.
type Event struct {
	Type        Type
	Reservation models.Reservation
	Previous    *models.Reservation
	Actor       models.Actor
	CreatedAt   time.Time
}

// Handler reacts to an event.
type Handler func(ctx context.Context, event Event) error

// DropCounter is notified when the queue is full.
type DropCounter interface {
	IncDropped()
}

// Bus is an in-process pub/sub with a bounded queue. Publish never blocks.
type Bus struct {
	subscribers map[Type][]Handler
	all         []Handler
	mu          sync.RWMutex

	queue   chan Event
	dropped DropCounter
	logger  zerolog.Logger
}

// NewBus constructs an empty bus with room for queueSize pending events.
func NewBus(queueSize int, dropped DropCounter, logger *zerolog.Logger) *Bus {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Bus{
		subscribers: make(map[Type][]Handler),
		queue:       make(chan Event, queueSize),
		dropped:     dropped,
		logger:      logger.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType Type, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, handler)
}

// Publish enqueues the event. When the queue is full the event is dropped.
func (b *Bus) Publish(event Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	select {
	case b.queue <- event:
	default:
		if b.dropped != nil {
			b.dropped.IncDropped()
		}
		b.logger.Warn().
			Str("type", string(event.Type)).
			Str("reservation_id", event.Reservation.ID).
			Msg("event queue full, event dropped")
	}
}

// Run delivers queued events until ctx is done. Handler errors are logged, not retried.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-b.queue:
			b.dispatch(ctx, event)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			b.logger.Error().Err(err).
				Str("type", string(event.Type)).
				Str("reservation_id", event.Reservation.ID).
				Msg("event handler failed")
		}
	}
}
