package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/apperr"
	"slotbook/internal/capacity"
	"slotbook/internal/clock"
	"slotbook/internal/database"
	"slotbook/internal/events"
	"slotbook/internal/models"

	"github.com/rs/zerolog"
)

// Policy holds the deadline rules of the lifecycle.
type Policy struct {
	CancellationLead         time.Duration
	ModificationLead         time.Duration
	AllowCompleteFromPending bool
}

// DefaultPolicy returns a 2h cancellation lead and a 24h modification lead.
func DefaultPolicy() Policy {
	return Policy{
		CancellationLead:         2 * time.Hour,
		ModificationLead:         24 * time.Hour,
		AllowCompleteFromPending: true,
	}
}

// Directory resolves the businesses and menus a reservation refers to.
type Directory interface {
	Business(id int64) (*models.Business, error)
	Menu(id int64) (*models.Menu, error)
}

// Publisher receives committed reservation changes.
type Publisher interface {
	Publish(event events.Event)
}

// Invalidator drops cached slot listings after a seat was claimed or released.
type Invalidator interface {
	InvalidateReservation(ctx context.Context, r, previous *models.Reservation)
}

// Observer records operation results, typically metrics.
type Observer interface {
	ObserveReservation(operation, result string)
}

// Service runs reservation state transitions. Every transition commits in one
// transaction together with the seat claim or release it implies.
type Service struct {
	db        *database.DB
	directory Directory
	tracker   *capacity.Tracker
	fsm       *FSM
	policy    Policy
	clock     clock.Clock
	publisher   Publisher
	observer    Observer
	invalidator Invalidator
	logger      zerolog.Logger
}

// NewService creates the reservation lifecycle service.
func NewService(
	db *database.DB,
	directory Directory,
	tracker *capacity.Tracker,
	policy Policy,
	clk clock.Clock,
	logger *zerolog.Logger,
) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Service{
		db:        db,
		directory: directory,
		tracker:   tracker,
		fsm:       NewFSM(policy.AllowCompleteFromPending),
		policy:    policy,
		clock:     clk,
		logger:    logger.With().Str("component", "booking").Logger(),
	}
}

// SetPublisher sets the receiver of reservation events.
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

// SetObserver sets the receiver of operation results.
func (s *Service) SetObserver(o Observer) {
	s.observer = o
}

// SetInvalidator sets the cache cleared after every committed seat change.
func (s *Service) SetInvalidator(i Invalidator) {
	s.invalidator = i
}

// Create claims a seat on slotID and records a PENDING reservation for customerID.
func (s *Service) Create(ctx context.Context, customerID int64, slotID string) (res *models.Reservation, err error) {
	defer func() { s.observe("create", err) }()
	now := s.clock.Now()

	slot, err := s.db.GetSlot(ctx, slotID)
	if err != nil {
		return nil, slotError(slotID, err)
	}
	business, err := s.directory.Business(slot.BusinessID)
	if err != nil {
		return nil, err
	}
	if err := checkNotStarted(slot, now, location(business)); err != nil {
		return nil, err
	}
	menu, err := s.directory.Menu(slot.MenuID)
	if err != nil {
		return nil, err
	}

	r := &models.Reservation{
		CustomerID: customerID,
		Status:     models.StatusPending,
		PriceCents: menu.PriceCents,
		OrderType:  menu.OrderType,
		CreatedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
	}
	r.SnapshotSlot(slot)

	err = s.db.InTx(ctx, func(tx *database.Tx) error {
		dup, err := tx.HasActiveReservation(ctx, customerID, slotID)
		if err != nil {
			return fmt.Errorf("check duplicate: %w", err)
		}
		if dup {
			return apperr.New(apperr.CodeDuplicateReservation,
				"customer %d already holds a reservation on slot %s", customerID, slotID)
		}
		if _, err := s.tracker.Claim(ctx, tx, slotID); err != nil {
			return err
		}
		return writeError(tx.InsertReservation(ctx, r))
	})
	if err != nil {
		s.logger.Debug().Err(err).Int64("customer_id", customerID).Str("slot_id", slotID).Msg("reservation rejected")
		return nil, err
	}

	s.logger.Info().
		Str("reservation_id", r.ID).
		Str("slot_id", slotID).
		Int64("customer_id", customerID).
		Int64("business_id", r.BusinessID).
		Msg("reservation created")
	s.invalidate(ctx, r, nil)
	s.publish(events.ReservationCreated, r, nil, models.Actor{ID: customerID, Role: models.RoleCustomer})
	return r, nil
}

// Confirm moves a PENDING reservation to CONFIRMED. Business members only.
func (s *Service) Confirm(ctx context.Context, reservationID string, actor models.Actor) (res *models.Reservation, err error) {
	defer func() { s.observe("confirm", err) }()
	now := s.clock.Now()

	var r *models.Reservation
	err = s.db.InTx(ctx, func(tx *database.Tx) error {
		var err error
		if r, err = loadReservation(ctx, tx, reservationID); err != nil {
			return err
		}
		business, err := s.directory.Business(r.BusinessID)
		if err != nil {
			return err
		}
		if !isMember(actor, business) {
			return apperr.New(apperr.CodeForbidden, "actor %d is not a member of business %d", actor.ID, r.BusinessID)
		}
		if !s.fsm.CanTransition(r.Status, models.StatusConfirmed) {
			return invalidStatus("confirm", r)
		}

		r.Status = models.StatusConfirmed
		r.UpdatedAt = now.UTC()
		return writeError(tx.UpdateReservation(ctx, r))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("reservation_id", r.ID).Int64("actor_id", actor.ID).Msg("reservation confirmed")
	s.publish(events.ReservationConfirmed, r, nil, actor)
	return r, nil
}

// Cancel moves an active reservation to CANCELLED and releases its seat.
// The reservation's customer or a business member may cancel until the
// cancellation deadline.
func (s *Service) Cancel(ctx context.Context, reservationID string, actor models.Actor) (res *models.Reservation, err error) {
	defer func() { s.observe("cancel", err) }()
	now := s.clock.Now()

	var r *models.Reservation
	err = s.db.InTx(ctx, func(tx *database.Tx) error {
		var err error
		if r, err = loadReservation(ctx, tx, reservationID); err != nil {
			return err
		}
		business, err := s.directory.Business(r.BusinessID)
		if err != nil {
			return err
		}
		if err := authorizeOwnerOrMember(actor, r, business); err != nil {
			return err
		}
		if !s.fsm.CanTransition(r.Status, models.StatusCancelled) {
			return invalidStatus("cancel", r)
		}
		if err := checkDeadline("cancellation", r, now, location(business), s.policy.CancellationLead); err != nil {
			return err
		}

		at := now.UTC()
		by := actor.ID
		r.Status = models.StatusCancelled
		r.CancelledAt = &at
		r.CancelledBy = &by
		r.UpdatedAt = at
		if err := writeError(tx.UpdateReservation(ctx, r)); err != nil {
			return err
		}
		_, err = s.tracker.Release(ctx, tx, r.SlotID)
		return err
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("reservation_id", reservationID).Int64("actor_id", actor.ID).Msg("cancellation rejected")
		return nil, err
	}

	s.logger.Info().Str("reservation_id", r.ID).Str("slot_id", r.SlotID).Int64("actor_id", actor.ID).Msg("reservation cancelled")
	s.invalidate(ctx, r, nil)
	s.publish(events.ReservationCancelled, r, nil, actor)
	return r, nil
}

// Modify moves an active reservation to newSlotID. The new seat is claimed
// before the old one is released; if the claim fails nothing changes.
func (s *Service) Modify(ctx context.Context, reservationID string, actor models.Actor, newSlotID string) (res *models.Reservation, err error) {
	defer func() { s.observe("modify", err) }()
	now := s.clock.Now()

	var (
		r        *models.Reservation
		previous models.Reservation
	)
	err = s.db.InTx(ctx, func(tx *database.Tx) error {
		var err error
		if r, err = loadReservation(ctx, tx, reservationID); err != nil {
			return err
		}
		business, err := s.directory.Business(r.BusinessID)
		if err != nil {
			return err
		}
		loc := location(business)
		if err := authorizeOwnerOrMember(actor, r, business); err != nil {
			return err
		}
		if !r.Status.IsActive() {
			return invalidStatus("modify", r)
		}
		if err := checkDeadline("modification", r, now, loc, s.policy.ModificationLead); err != nil {
			return err
		}

		next, err := s.checkTarget(ctx, tx, r, newSlotID, now, loc)
		if err != nil {
			return err
		}
		menu, err := s.directory.Menu(next.MenuID)
		if err != nil {
			return unavailable(newSlotID, err)
		}

		if _, err := s.tracker.Claim(ctx, tx, newSlotID); err != nil {
			if apperr.KindOf(err) == apperr.KindConflict || errors.Is(err, apperr.ErrSlotNotFound) {
				return unavailable(newSlotID, err)
			}
			return err
		}
		if _, err := s.tracker.Release(ctx, tx, r.SlotID); err != nil {
			return err
		}

		previous = *r
		r.SnapshotSlot(next)
		r.PriceCents = menu.PriceCents
		r.OrderType = menu.OrderType
		r.UpdatedAt = now.UTC()
		if err := tx.UpdateReservation(ctx, r); err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				return unavailable(newSlotID, err)
			}
			return writeError(err)
		}
		return nil
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("reservation_id", reservationID).Str("new_slot_id", newSlotID).Msg("modification rejected")
		return nil, err
	}

	s.logger.Info().
		Str("reservation_id", r.ID).
		Str("from_slot_id", previous.SlotID).
		Str("to_slot_id", r.SlotID).
		Int64("actor_id", actor.ID).
		Msg("reservation modified")
	s.invalidate(ctx, r, &previous)
	s.publish(events.ReservationModified, r, &previous, actor)
	return r, nil
}

func (s *Service) checkTarget(ctx context.Context, tx *database.Tx, r *models.Reservation, slotID string, now time.Time, loc *time.Location) (*models.BookingSlot, error) {
	if slotID == r.SlotID {
		return nil, apperr.New(apperr.CodeNewSlotUnavailable, "reservation %s already holds slot %s", r.ID, slotID)
	}
	next, err := tx.GetSlot(ctx, slotID)
	if err != nil {
		return nil, unavailable(slotID, slotError(slotID, err))
	}
	if next.BusinessID != r.BusinessID {
		return nil, apperr.New(apperr.CodeNewSlotUnavailable, "slot %s belongs to another business", slotID)
	}
	if err := checkNotStarted(next, now, loc); err != nil {
		return nil, unavailable(slotID, err)
	}
	dup, err := tx.HasActiveReservation(ctx, r.CustomerID, slotID)
	if err != nil {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	if dup {
		return nil, unavailable(slotID, apperr.New(apperr.CodeDuplicateReservation,
			"customer %d already holds a reservation on slot %s", r.CustomerID, slotID))
	}
	return next, nil
}

// Complete marks a reservation whose slot has ended as COMPLETED. Business members only.
func (s *Service) Complete(ctx context.Context, reservationID string, actor models.Actor) (res *models.Reservation, err error) {
	defer func() { s.observe("complete", err) }()
	now := s.clock.Now()

	var r *models.Reservation
	err = s.db.InTx(ctx, func(tx *database.Tx) error {
		var err error
		if r, err = loadReservation(ctx, tx, reservationID); err != nil {
			return err
		}
		business, err := s.directory.Business(r.BusinessID)
		if err != nil {
			return err
		}
		if !isMember(actor, business) {
			return apperr.New(apperr.CodeForbidden, "actor %d is not a member of business %d", actor.ID, r.BusinessID)
		}
		if !s.fsm.CanTransition(r.Status, models.StatusCompleted) {
			return invalidStatus("complete", r)
		}
		if end := r.EndsAt(location(business)); now.Before(end) {
			return apperr.New(apperr.CodeNotElapsed, "reservation %s ends at %s", r.ID, end.Format(time.RFC3339)).
				WithStatus(string(r.Status))
		}

		at := now.UTC()
		r.Status = models.StatusCompleted
		r.CompletedAt = &at
		r.UpdatedAt = at
		return writeError(tx.UpdateReservation(ctx, r))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("reservation_id", r.ID).Int64("actor_id", actor.ID).Msg("reservation completed")
	s.publish(events.ReservationCompleted, r, nil, actor)
	return r, nil
}

// Get returns a reservation visible to actor.
func (s *Service) Get(ctx context.Context, reservationID string, actor models.Actor) (*models.Reservation, error) {
	r, err := s.db.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, reservationError(reservationID, err)
	}
	business, err := s.directory.Business(r.BusinessID)
	if err != nil {
		return nil, err
	}
	if err := authorizeOwnerOrMember(actor, r, business); err != nil {
		return nil, err
	}
	return r, nil
}

// ListForCustomer returns every reservation of a customer, newest first.
func (s *Service) ListForCustomer(ctx context.Context, customerID int64) ([]models.Reservation, error) {
	return s.db.ListReservationsByCustomer(ctx, customerID)
}

// ListForBusiness returns reservations of a business between two civil dates. Business members only.
func (s *Service) ListForBusiness(ctx context.Context, actor models.Actor, businessID int64, from, to time.Time) ([]models.Reservation, error) {
	business, err := s.directory.Business(businessID)
	if err != nil {
		return nil, err
	}
	if !isMember(actor, business) {
		return nil, apperr.New(apperr.CodeForbidden, "actor %d is not a member of business %d", actor.ID, businessID)
	}
	if to.Before(from) {
		return nil, apperr.New(apperr.CodeInvalidTimeRange, "range end %s is before start %s",
			models.FormatDate(to), models.FormatDate(from))
	}
	return s.db.ListReservationsForBusiness(ctx, businessID, models.DateOf(from), models.DateOf(to))
}

// ListElapsed returns up to limit active reservations whose slot has ended and
// whose status may move to COMPLETED. Rows that cannot be completed are paged past.
func (s *Service) ListElapsed(ctx context.Context, limit int) ([]models.Reservation, error) {
	if limit <= 0 {
		limit = 100
	}
	now := s.clock.Now()
	statuses := []models.ReservationStatus{models.StatusConfirmed}
	if s.fsm.CanTransition(models.StatusPending, models.StatusCompleted) {
		statuses = append(statuses, models.StatusPending)
	}
	// Civil dates east of UTC may already be tomorrow.
	through := models.DateOf(now.UTC()).AddDate(0, 0, 1)

	var (
		out   []models.Reservation
		after *database.ReservationCursor
	)
	for len(out) < limit {
		page, err := s.db.ListReservationsThrough(ctx, through, statuses, after, limit)
		if err != nil {
			return nil, err
		}
		for _, r := range page {
			business, err := s.directory.Business(r.BusinessID)
			if err != nil {
				s.logger.Warn().Err(err).Str("reservation_id", r.ID).Msg("skipping reservation of unknown business")
				continue
			}
			if !now.Before(r.EndsAt(location(business))) {
				out = append(out, r)
				if len(out) == limit {
					break
				}
			}
		}
		if len(page) < limit {
			break
		}
		last := page[len(page)-1]
		after = &database.ReservationCursor{Date: last.Date, Start: last.Start, ID: last.ID}
	}
	return out, nil
}

func (s *Service) invalidate(ctx context.Context, r, previous *models.Reservation) {
	if s.invalidator != nil {
		s.invalidator.InvalidateReservation(ctx, r, previous)
	}
}

func (s *Service) publish(t events.Type, r *models.Reservation, previous *models.Reservation, actor models.Actor) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(events.Event{
		Type:        t,
		Reservation: *r,
		Previous:    previous,
		Actor:       actor,
		CreatedAt:   s.clock.Now(),
	})
}

func (s *Service) observe(operation string, err error) {
	if s.observer == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		if code := apperr.CodeOf(err); code != "" {
			result = string(code)
		}
	}
	s.observer.ObserveReservation(operation, result)
}

func loadReservation(ctx context.Context, tx *database.Tx, id string) (*models.Reservation, error) {
	r, err := tx.GetReservation(ctx, id)
	if err != nil {
		return nil, reservationError(id, err)
	}
	return r, nil
}

func location(b *models.Business) *time.Location {
	if b == nil || b.Location == nil {
		return time.UTC
	}
	return b.Location
}

func isMember(actor models.Actor, b *models.Business) bool {
	if actor.Role == models.RoleSystem {
		return true
	}
	return actor.IsStaff() && b.HasMember(actor.ID)
}

func authorizeOwnerOrMember(actor models.Actor, r *models.Reservation, b *models.Business) error {
	if actor.ID == r.CustomerID && actor.Role == models.RoleCustomer {
		return nil
	}
	if isMember(actor, b) {
		return nil
	}
	return apperr.New(apperr.CodeNotOwner, "actor %d does not own reservation %s", actor.ID, r.ID)
}

// checkNotStarted fails with PastDate when the slot's date is before today or its start has passed.
func checkNotStarted(slot *models.BookingSlot, now time.Time, loc *time.Location) error {
	today := models.DateOf(now.In(loc))
	if slot.Date.Before(today) {
		return apperr.New(apperr.CodePastDate, "slot %s is on %s, today is %s",
			slot.ID, models.FormatDate(slot.Date), models.FormatDate(today))
	}
	if start := slot.StartsAt(loc); !now.Before(start) {
		return apperr.New(apperr.CodePastDate, "slot %s started at %s", slot.ID, start.Format(time.RFC3339))
	}
	return nil
}

// checkDeadline requires now to be strictly before the reservation start minus lead.
func checkDeadline(what string, r *models.Reservation, now time.Time, loc *time.Location, lead time.Duration) error {
	deadline := r.StartsAt(loc).Add(-lead)
	if now.Before(deadline) {
		return nil
	}
	return apperr.New(apperr.CodeDeadlinePassed, "%s deadline for reservation %s was %s",
		what, r.ID, deadline.Format(time.RFC3339)).WithStatus(string(r.Status))
}

func invalidStatus(operation string, r *models.Reservation) error {
	return apperr.New(apperr.CodeInvalidStatus, "cannot %s reservation %s", operation, r.ID).
		WithStatus(string(r.Status))
}

func unavailable(slotID string, cause error) error {
	return apperr.New(apperr.CodeNewSlotUnavailable, "slot %s cannot take this reservation", slotID).Wrap(cause)
}

func slotError(slotID string, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return apperr.New(apperr.CodeSlotNotFound, "slot %s does not exist", slotID).Wrap(err)
	}
	return fmt.Errorf("get slot: %w", err)
}

func reservationError(id string, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return apperr.New(apperr.CodeReservationNotFound, "reservation %s does not exist", id).Wrap(err)
	}
	return fmt.Errorf("get reservation: %w", err)
}

func writeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrDuplicate):
		return apperr.New(apperr.CodeDuplicateReservation, "an active reservation already exists").Wrap(err)
	case errors.Is(err, database.ErrConcurrentModification):
		return apperr.New(apperr.CodeTransientConflict, "reservation changed concurrently, retry later").Wrap(err)
	default:
		return err
	}
}
