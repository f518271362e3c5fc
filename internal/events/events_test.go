package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"slotbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type dropCount struct{ n atomic.Int32 }

func (d *dropCount) IncDropped() { d.n.Add(1) }

func TestBus_DeliversToSubscribers(t *testing.T) {
	logger := zerolog.Nop()
	bus := NewBus(8, nil, &logger)

	var (
		mu      sync.Mutex
		typed   []string
		anyType []Type
	)
	bus.Subscribe(ReservationCancelled, func(_ context.Context, e Event) error {
		mu.Lock()
		typed = append(typed, e.Reservation.ID)
		mu.Unlock()
		return errors.New("handler errors are logged only")
	})
	bus.SubscribeAll(func(_ context.Context, e Event) error {
		mu.Lock()
		anyType = append(anyType, e.Type)
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	bus.Publish(Event{Type: ReservationCreated, Reservation: models.Reservation{ID: "r1"}})
	bus.Publish(Event{Type: ReservationCancelled, Reservation: models.Reservation{ID: "r1"}})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(anyType) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"r1"}, typed)
	assert.Equal(t, []Type{ReservationCreated, ReservationCancelled}, anyType)
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	logger := zerolog.Nop()
	drops := &dropCount{}
	bus := NewBus(1, drops, &logger)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			bus.Publish(Event{Type: ReservationCreated})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
	assert.Equal(t, int32(4), drops.n.Load())
}
