// Package notify sends reservation events to the business's Telegram chat.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"slotbook/internal/events"
	"slotbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// TelegramSender is satisfied by *tgbotapi.BotAPI.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Directory resolves the business and menu of a reservation.
type Directory interface {
	Business(id int64) (*models.Business, error)
	Menu(id int64) (*models.Menu, error)
}

// Counter records delivery outcomes.
type Counter interface {
	IncSent(status string)
}

// RetryConfig holds the retry policy for failed sends.
type RetryConfig struct {
	MaxRetries  int
	RetryDelays []time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		RetryDelays: []time.Duration{
			1 * time.Second,
			5 * time.Second,
			30 * time.Second,
		},
	}
}

// Notifier formats events and delivers them with rate limiting and retries.
type Notifier struct {
	sender    TelegramSender
	directory Directory
	limiter   *rate.Limiter
	retry     RetryConfig
	counter   Counter
	logger    zerolog.Logger
}

// NewNotifier creates a notifier allowing ratePerSecond messages per second.
func NewNotifier(sender TelegramSender, directory Directory, ratePerSecond float64, retry RetryConfig, counter Counter, logger *zerolog.Logger) *Notifier {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	return &Notifier{
		sender:    sender,
		directory: directory,
		limiter:   rate.NewLimiter(rate.Limit(ratePerSecond), 1),
		retry:     retry,
		counter:   counter,
		logger:    logger.With().Str("component", "notify").Logger(),
	}
}

// Handle is an events.Handler.
func (n *Notifier) Handle(ctx context.Context, ev events.Event) error {
	business, err := n.directory.Business(ev.Reservation.BusinessID)
	if err != nil {
		n.count("skipped")
		return fmt.Errorf("notify: %w", err)
	}
	if business.NotifyChatID == 0 {
		n.count("skipped")
		return nil
	}

	menuName := ""
	if menu, err := n.directory.Menu(ev.Reservation.MenuID); err == nil {
		menuName = menu.Name
	}

	msg := tgbotapi.NewMessage(business.NotifyChatID, FormatEvent(ev, business, menuName))
	if err := n.send(ctx, msg); err != nil {
		n.count("failed")
		n.logger.Error().Err(err).
			Str("reservation_id", ev.Reservation.ID).
			Int64("chat_id", business.NotifyChatID).
			Msg("notification not delivered")
		return err
	}

	n.count("sent")
	n.logger.Debug().
		Str("reservation_id", ev.Reservation.ID).
		Str("type", string(ev.Type)).
		Msg("notification sent")
	return nil
}

func (n *Notifier) send(ctx context.Context, msg tgbotapi.MessageConfig) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= n.retry.MaxRetries; attempt++ {
		_, err := n.sender.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err

		wait := n.delay(attempt)
		var tgErr *tgbotapi.Error
		if errors.As(err, &tgErr) {
			switch tgErr.Code {
			case 429:
				if tgErr.RetryAfter > 0 {
					wait = time.Duration(tgErr.RetryAfter) * time.Second
				}
				n.logger.Info().Dur("retry_after", wait).Int("attempt", attempt).Msg("rate limited by Telegram, waiting")
			case 400, 403:
				return err
			}
		}

		if attempt == n.retry.MaxRetries {
			break
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (n *Notifier) delay(attempt int) time.Duration {
	delays := n.retry.RetryDelays
	if len(delays) == 0 {
		return 0
	}
	if attempt < len(delays) {
		return delays[attempt]
	}
	return delays[len(delays)-1]
}

func (n *Notifier) count(status string) {
	if n.counter != nil {
		n.counter.IncSent(status)
	}
}

// FormatEvent renders the message text for ev.
func FormatEvent(ev events.Event, business *models.Business, menuName string) string {
	r := ev.Reservation
	loc := business.Location
	if loc == nil {
		loc = time.UTC
	}

	var b strings.Builder
	switch ev.Type {
	case events.ReservationCreated:
		b.WriteString("New reservation")
	case events.ReservationConfirmed:
		b.WriteString("Reservation confirmed")
	case events.ReservationCancelled:
		b.WriteString("Reservation cancelled")
	case events.ReservationModified:
		b.WriteString("Reservation moved")
	case events.ReservationCompleted:
		b.WriteString("Reservation completed")
	default:
		b.WriteString(string(ev.Type))
	}
	fmt.Fprintf(&b, " at %s\n", business.Name)
	if menuName != "" {
		fmt.Fprintf(&b, "Service: %s\n", menuName)
	}
	fmt.Fprintf(&b, "When: %s\n", r.StartsAt(loc).Format("02.01.2006 15:04"))
	if ev.Previous != nil {
		fmt.Fprintf(&b, "Was: %s\n", ev.Previous.StartsAt(loc).Format("02.01.2006 15:04"))
	}
	fmt.Fprintf(&b, "Customer: %d\n", r.CustomerID)
	fmt.Fprintf(&b, "Status: %s", r.Status)
	return b.String()
}
