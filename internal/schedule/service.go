// Package schedule is the management entry point for operating hours and slots.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/apperr"
	"slotbook/internal/cache"
	"slotbook/internal/database"
	"slotbook/internal/hours"
	"slotbook/internal/models"
	"slotbook/internal/slots"

	"github.com/rs/zerolog"
)

// Directory resolves businesses and menus.
type Directory interface {
	Business(id int64) (*models.Business, error)
	Menu(id int64) (*models.Menu, error)
}

// Observer records generated slot counts.
type Observer interface {
	AddSlotsGenerated(n int)
}

// GenerateRequest asks for slots of one menu. IntervalMinutes 0 uses the menu
// duration; Capacity 0 uses the menu default, then the service default.
type GenerateRequest struct {
	BusinessID      int64
	MenuID          int64
	IntervalMinutes int
	Capacity        int
	Days            []models.DailySchedule
}

type Service struct {
	db              *database.DB
	calendar        *hours.Calendar
	generator       *slots.Generator
	directory       Directory
	cache           *cache.SlotCache
	observer        Observer
	defaultCapacity int
	logger          zerolog.Logger
}

func NewService(
	db *database.DB,
	calendar *hours.Calendar,
	generator *slots.Generator,
	directory Directory,
	slotCache *cache.SlotCache,
	defaultCapacity int,
	logger *zerolog.Logger,
) *Service {
	if defaultCapacity <= 0 {
		defaultCapacity = 1
	}
	return &Service{
		db:              db,
		calendar:        calendar,
		generator:       generator,
		directory:       directory,
		cache:           slotCache,
		defaultCapacity: defaultCapacity,
		logger:          logger.With().Str("component", "schedule").Logger(),
	}
}

// SetObserver sets the receiver of generation counts.
func (s *Service) SetObserver(o Observer) {
	s.observer = o
}

// SetOperatingHours replaces the weekly schedule of a business.
func (s *Service) SetOperatingHours(ctx context.Context, actor models.Actor, businessID int64, week models.WeeklySchedule) (*models.OperatingHours, error) {
	if _, err := s.authorize(actor, businessID); err != nil {
		return nil, err
	}
	return s.calendar.Set(ctx, businessID, week)
}

// GetOperatingHours returns the weekly schedule, or the default when none was set.
func (s *Service) GetOperatingHours(ctx context.Context, businessID int64) (*models.OperatingHours, error) {
	if _, err := s.directory.Business(businessID); err != nil {
		return nil, err
	}
	return s.calendar.Get(ctx, businessID)
}

// ResetOperatingHours restores the default weekly schedule.
func (s *Service) ResetOperatingHours(ctx context.Context, actor models.Actor, businessID int64) (*models.OperatingHours, error) {
	if _, err := s.authorize(actor, businessID); err != nil {
		return nil, err
	}
	return s.calendar.ResetToDefault(ctx, businessID)
}

// SetOverride closes a date or replaces its windows.
func (s *Service) SetOverride(ctx context.Context, actor models.Actor, o models.ScheduleOverride) (*models.ScheduleOverride, error) {
	if _, err := s.authorize(actor, o.BusinessID); err != nil {
		return nil, err
	}
	return s.calendar.SetOverride(ctx, o)
}

// ClearOverride returns a date to its weekly schedule.
func (s *Service) ClearOverride(ctx context.Context, actor models.Actor, businessID int64, date time.Time) error {
	if _, err := s.authorize(actor, businessID); err != nil {
		return err
	}
	return s.calendar.ClearOverride(ctx, businessID, date)
}

// GenerateSlots validates and persists a batch of slots. Either every slot is
// created or none is.
func (s *Service) GenerateSlots(ctx context.Context, actor models.Actor, req GenerateRequest) ([]models.BookingSlot, error) {
	business, err := s.authorize(actor, req.BusinessID)
	if err != nil {
		return nil, err
	}
	menu, err := s.directory.Menu(req.MenuID)
	if err != nil {
		return nil, err
	}
	if menu.BusinessID != req.BusinessID {
		return nil, apperr.New(apperr.CodeMenuNotFound, "menu %d does not belong to business %d", req.MenuID, req.BusinessID)
	}

	interval := req.IntervalMinutes
	if interval == 0 {
		interval = menu.DurationMinutes
	}
	capacity := req.Capacity
	if capacity == 0 {
		capacity = menu.DefaultCapacity
	}
	if capacity == 0 {
		capacity = s.defaultCapacity
	}

	drafts, err := s.generator.Generate(ctx, slots.Request{
		BusinessID:      req.BusinessID,
		MenuID:          req.MenuID,
		IntervalMinutes: interval,
		Capacity:        capacity,
		Days:            req.Days,
		Location:        business.Location,
	})
	if err != nil {
		return nil, err
	}

	created, err := s.db.InsertSlots(ctx, drafts)
	if err != nil {
		var overlap *database.SlotOverlapError
		if errors.As(err, &overlap) {
			d := drafts[overlap.Index]
			return nil, apperr.New(apperr.CodeSlotOverlap, "overlaps existing slot %s (%s)", overlap.Existing.ID, overlap.Existing.Window()).
				WithEntry(apperr.Entry{
					Index: overlap.Index,
					Date:  models.FormatDate(d.Date),
					Start: d.Start.String(),
					End:   d.End.String(),
				}).Wrap(err)
		}
		return nil, fmt.Errorf("insert slots: %w", err)
	}

	s.invalidate(ctx, req.BusinessID, req.MenuID, created)
	if s.observer != nil {
		s.observer.AddSlotsGenerated(len(created))
	}

	s.logger.Info().
		Int64("business_id", req.BusinessID).
		Int64("menu_id", req.MenuID).
		Int("interval_minutes", interval).
		Int("slots", len(created)).
		Int64("actor_id", actor.ID).
		Msg("slots generated")
	return created, nil
}

// ListSlots returns the slots of a menu on a date. No authorization is required.
func (s *Service) ListSlots(ctx context.Context, businessID, menuID int64, date time.Time) ([]models.BookingSlot, error) {
	date = models.DateOf(date)
	if cached, ok := s.cache.Get(ctx, businessID, menuID, date); ok {
		return cached, nil
	}

	list, err := s.db.ListSlots(ctx, businessID, menuID, date)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	s.cache.Set(ctx, businessID, menuID, date, list)
	return list, nil
}

// DeleteSlot removes a slot that holds no active reservation.
func (s *Service) DeleteSlot(ctx context.Context, actor models.Actor, slotID string) error {
	slot, err := s.db.GetSlot(ctx, slotID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return apperr.New(apperr.CodeSlotNotFound, "slot %s does not exist", slotID).Wrap(err)
		}
		return err
	}
	if _, err := s.authorize(actor, slot.BusinessID); err != nil {
		return err
	}

	deleted, err := s.db.DeleteSlot(ctx, slotID)
	switch {
	case errors.Is(err, database.ErrSlotInUse):
		return apperr.New(apperr.CodeSlotInUse, "slot %s still has reservations", slotID).Wrap(err)
	case errors.Is(err, database.ErrNotFound):
		return apperr.New(apperr.CodeSlotNotFound, "slot %s does not exist", slotID).Wrap(err)
	case err != nil:
		return fmt.Errorf("delete slot: %w", err)
	}

	s.invalidate(ctx, deleted.BusinessID, deleted.MenuID, []models.BookingSlot{*deleted})
	s.logger.Info().Str("slot_id", slotID).Int64("actor_id", actor.ID).Msg("slot deleted")
	return nil
}

func (s *Service) authorize(actor models.Actor, businessID int64) (*models.Business, error) {
	business, err := s.directory.Business(businessID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleSystem || (actor.IsStaff() && business.HasMember(actor.ID)) {
		return business, nil
	}
	return nil, apperr.New(apperr.CodeForbidden, "actor %d may not manage business %d", actor.ID, businessID)
}

func (s *Service) invalidate(ctx context.Context, businessID, menuID int64, list []models.BookingSlot) {
	seen := make(map[string]bool)
	var dates []time.Time
	for _, slot := range list {
		k := models.FormatDate(slot.Date)
		if !seen[k] {
			seen[k] = true
			dates = append(dates, slot.Date)
		}
	}
	s.cache.Invalidate(ctx, businessID, menuID, dates...)
}
