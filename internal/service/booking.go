package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/transport-booking/internal/model"
	"github.com/iliyamo/transport-booking/internal/queue"
	"github.com/iliyamo/transport-booking/internal/repository"
)

// Seat count bounds per booking.
const (
	MinSeatsPerBooking = 1
	MaxSeatsPerBooking = 10
)

// Notifier publishes post-commit booking notifications.
type Notifier interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

// BookingRequest is the customer's input to CreateBooking.
type BookingRequest struct {
	ScheduleID uint64
	FareClass  model.FareClass
	SeatCount  int
	Comments   string
}

// BookingResult describes a committed booking. NotificationSent is false
// when the confirmation could not be queued; the booking itself still
// stands.
type BookingResult struct {
	Reservation      *model.Reservation  `json:"reservation"`
	BonusRedeemed    *model.BonusTicket  `json:"bonus_redeemed,omitempty"`
	BonusEarned      []model.BonusTicket `json:"bonus_earned"`
	SeatsRemaining   int                 `json:"seats_remaining"`
	NotificationSent bool                `json:"notification_sent"`
	Message          string              `json:"message"`
}

// BonusTicketView adds the computed validity flag to a bonus ticket.
type BonusTicketView struct {
	model.BonusTicket
	Valid bool `json:"valid"`
}

// BookingService runs the booking transaction and the customer-facing
// reservation reads.
type BookingService struct {
	store    repository.Store
	ledger   *LoyaltyLedger
	cache    *AvailabilityCache
	notifier Notifier
	log      *zap.Logger

	Codes CodeSource
	Now   func() time.Time
}

// NewBookingService wires a BookingService. cache and notifier may be nil.
func NewBookingService(store repository.Store, ledger *LoyaltyLedger, cache *AvailabilityCache, notifier Notifier, log *zap.Logger) *BookingService {
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingService{
		store:    store,
		ledger:   ledger,
		cache:    cache,
		notifier: notifier,
		log:      log,
		Codes:    UUIDCodes,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

func validateBooking(req BookingRequest) error {
	if req.ScheduleID == 0 {
		return invalid("schedule id is required")
	}
	if !req.FareClass.Valid() {
		return invalid("unknown fare class %q", req.FareClass)
	}
	if req.SeatCount < MinSeatsPerBooking || req.SeatCount > MaxSeatsPerBooking {
		return invalid("seat count must be between %d and %d, got %d", MinSeatsPerBooking, MaxSeatsPerBooking, req.SeatCount)
	}
	return nil
}

// CreateBooking reserves SeatCount seats of one fare class on a schedule.
// Inventory check, bonus redemption, reservation and ticket creation, the
// counter decrement and the loyalty update commit together or not at all.
func (s *BookingService) CreateBooking(ctx context.Context, actor model.Actor, req BookingRequest) (*BookingResult, error) {
	if err := validateBooking(req); err != nil {
		return nil, err
	}
	profile, err := s.store.CustomerByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, lookup("customer profile", err)
	}

	now := s.Now()
	var (
		reservation *model.Reservation
		customer    *model.Customer
		schedule    *model.Schedule
		redeemed    *model.BonusTicket
		earned      []model.BonusTicket
		remaining   int
	)
	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		// customer before schedule, always
		c, err := tx.LockCustomer(ctx, profile.ID)
		if err != nil {
			return lookup("customer profile", err)
		}
		sc, err := tx.LockSchedule(ctx, req.ScheduleID)
		if err != nil {
			return lookup("schedule", err)
		}
		available := sc.Seats(req.FareClass)
		if req.SeatCount > available {
			return insufficient(req.FareClass, req.SeatCount, available)
		}

		unit := sc.Price(req.FareClass)
		var used *model.BonusTicket
		bonuses, err := tx.ValidBonusTickets(ctx, c.ID, now)
		if err != nil {
			return fmt.Errorf("load bonus tickets: %w", err)
		}
		for i := range bonuses {
			if bonuses[i].SeatsGranted < req.SeatCount {
				continue
			}
			if err := tx.MarkBonusTicketUsed(ctx, bonuses[i].ID, now); err != nil {
				return fmt.Errorf("redeem bonus ticket: %w", err)
			}
			b := bonuses[i]
			b.Used = true
			b.UsedAt = &now
			used = &b
			unit = 0
			break
		}

		ref, err := uniqueReference(ctx, tx, s.Codes)
		if err != nil {
			return err
		}
		r := &model.Reservation{
			CustomerID:  c.ID,
			ScheduleID:  sc.ID,
			Reference:   ref,
			Status:      model.ReservationConfirmed,
			TotalAmount: unit * int64(req.SeatCount),
		}
		if note := strings.TrimSpace(req.Comments); note != "" {
			r.Comments = &note
		}
		if err := tx.CreateReservation(ctx, r); err != nil {
			return fmt.Errorf("create reservation: %w", err)
		}

		tickets := make([]model.Ticket, 0, req.SeatCount)
		for i := 1; i <= req.SeatCount; i++ {
			tickets = append(tickets, model.Ticket{
				ReservationID: r.ID,
				FareClass:     req.FareClass,
				Price:         unit,
				SeatLabel:     fmt.Sprintf("%s-%d", req.FareClass.Code(), i),
			})
		}
		if err := tx.CreateTickets(ctx, tickets); err != nil {
			return fmt.Errorf("create tickets: %w", err)
		}
		r.Tickets = tickets

		if err := tx.DecrementSeats(ctx, sc.ID, req.FareClass, req.SeatCount); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return insufficient(req.FareClass, req.SeatCount, available)
			}
			return fmt.Errorf("decrement seats: %w", err)
		}

		minted, err := s.ledger.RecordSeats(ctx, tx, c, req.SeatCount, now)
		if err != nil {
			return err
		}

		reservation, customer, schedule, redeemed, earned = r, c, sc, used, minted
		remaining = available - req.SeatCount
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Reload so ticket IDs and column defaults are populated.
	if full, err := s.store.ReservationByID(ctx, reservation.ID); err == nil {
		reservation = full
	} else {
		s.log.Warn("reload reservation after commit", zap.Uint64("reservation_id", reservation.ID), zap.Error(err))
	}

	res := &BookingResult{
		Reservation:    reservation,
		BonusRedeemed:  redeemed,
		BonusEarned:    earned,
		SeatsRemaining: remaining,
	}
	s.afterCommit(ctx, res, customer, schedule, req.FareClass)
	return res, nil
}

// afterCommit performs the side effects that must never roll a booking
// back: cache invalidation and the confirmation notification.
func (s *BookingService) afterCommit(ctx context.Context, res *BookingResult, c *model.Customer, sc *model.Schedule, class model.FareClass) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	r := res.Reservation
	if err := s.cache.Invalidate(ctx, sc.ID); err != nil {
		s.log.Warn("availability cache invalidation failed", zap.Uint64("schedule_id", sc.ID), zap.Error(err))
	}

	res.Message = "booking confirmed"
	if len(res.BonusEarned) > 0 {
		res.Message += fmt.Sprintf("; %d bonus ticket(s) earned", len(res.BonusEarned))
	}
	if s.notifier == nil {
		return
	}

	ev := queue.BookingConfirmedEvent{
		ReservationID: r.ID,
		Reference:     r.Reference,
		CustomerID:    c.ID,
		CustomerName:  c.FullName,
		CustomerEmail: c.Email,
		ScheduleID:    sc.ID,
		RouteID:       sc.RouteID,
		DepartsAt:     sc.DepartsAt.UTC().Format(time.RFC3339),
		ArrivesAt:     sc.ArrivesAt.UTC().Format(time.RFC3339),
		FareClass:     string(class),
		TotalAmount:   r.TotalAmount,
		ConfirmedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
	}
	for _, t := range r.Tickets {
		ev.SeatLabels = append(ev.SeatLabels, t.SeatLabel)
	}
	if res.BonusRedeemed != nil {
		ev.BonusRedeemed = res.BonusRedeemed.Code
	}
	for _, b := range res.BonusEarned {
		ev.BonusEarned = append(ev.BonusEarned, b.Code)
	}

	if err := s.notifier.PublishBookingConfirmed(ctx, ev); err != nil {
		s.log.Warn("booking confirmation not queued",
			zap.String("reference", r.Reference),
			zap.Uint64("reservation_id", r.ID),
			zap.Error(err),
		)
		res.Message += "; confirmation email could not be sent"
		return
	}
	res.NotificationSent = true
}

// customerOf resolves the actor's customer profile. An actor without one
// owns nothing, so a miss is reported as ErrForbidden.
func customerOf(ctx context.Context, store repository.Reader, actor model.Actor) (*model.Customer, error) {
	c, err := store.CustomerByUserID(ctx, actor.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: no customer profile for this account", ErrForbidden)
	}
	if err != nil {
		return nil, fmt.Errorf("load customer profile: %w", err)
	}
	return c, nil
}

// GetReservation returns one reservation to its owner or to staff.
func (s *BookingService) GetReservation(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	r, err := s.store.ReservationByID(ctx, id)
	if err != nil {
		return nil, lookup("reservation", err)
	}
	if actor.IsStaff() {
		return r, nil
	}
	c, err := customerOf(ctx, s.store, actor)
	if err != nil {
		return nil, err
	}
	if r.CustomerID != c.ID {
		return nil, fmt.Errorf("%w: reservation belongs to another customer", ErrForbidden)
	}
	return r, nil
}

// ListReservations returns the actor's reservations, newest first.
func (s *BookingService) ListReservations(ctx context.Context, actor model.Actor) ([]model.Reservation, error) {
	c, err := s.store.CustomerByUserID(ctx, actor.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return []model.Reservation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load customer profile: %w", err)
	}
	out, err := s.store.ReservationsByCustomer(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	if out == nil {
		out = []model.Reservation{}
	}
	return out, nil
}

// ListBonusTickets returns the actor's bonus tickets with their validity
// evaluated now.
func (s *BookingService) ListBonusTickets(ctx context.Context, actor model.Actor) ([]BonusTicketView, error) {
	c, err := s.store.CustomerByUserID(ctx, actor.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return []BonusTicketView{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load customer profile: %w", err)
	}
	tickets, err := s.store.BonusTicketsByCustomer(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list bonus tickets: %w", err)
	}
	now := s.Now()
	out := make([]BonusTicketView, 0, len(tickets))
	for _, b := range tickets {
		out = append(out, BonusTicketView{BonusTicket: b, Valid: b.ValidAt(now)})
	}
	return out, nil
}
