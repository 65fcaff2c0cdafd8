package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/transport-booking/internal/model"
	"github.com/iliyamo/transport-booking/internal/repository"
)

// Refund policy applied on customer cancellation.
const (
	RefundPercent = 80
	RefundReason  = "customer-initiated cancellation"
)

// RefundAmount is the share of total refunded to the customer.
func RefundAmount(total int64) int64 {
	return total * RefundPercent / 100
}

// CancelResult describes a committed cancellation.
type CancelResult struct {
	Reservation *model.Reservation `json:"reservation"`
	Refund      *model.Refund      `json:"refund,omitempty"`
}

// CancellationService handles customer cancellation, refund processing
// and the staff "used" transition.
type CancellationService struct {
	store  repository.Store
	ledger *LoyaltyLedger
	log    *zap.Logger

	Now func() time.Time
}

// NewCancellationService wires a CancellationService.
func NewCancellationService(store repository.Store, ledger *LoyaltyLedger, log *zap.Logger) *CancellationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CancellationService{store: store, ledger: ledger, log: log, Now: func() time.Time { return time.Now().UTC() }}
}

// CancelReservation cancels a confirmed reservation owned by the actor.
// A paid reservation gets an unprocessed refund request for 80% of its
// total, a pending payment is marked FAILED, and the customer's loyalty
// counter loses the cancelled seats.
// Seat counters on the schedule are left as they are.
func (s *CancellationService) CancelReservation(ctx context.Context, actor model.Actor, id uint64) (*CancelResult, error) {
	owner, err := customerOf(ctx, s.store, actor)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	var out CancelResult
	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		r, err := tx.LockReservation(ctx, id)
		if err != nil {
			return lookup("reservation", err)
		}
		if r.CustomerID != owner.ID {
			return fmt.Errorf("%w: reservation belongs to another customer", ErrForbidden)
		}
		if r.Status != model.ReservationConfirmed {
			return transition("reservation %s is %s and cannot be cancelled", r.Reference, r.Status)
		}
		if err := tx.UpdateReservationStatus(ctx, r.ID, model.ReservationCancelled); err != nil {
			return fmt.Errorf("cancel reservation: %w", err)
		}
		r.Status = model.ReservationCancelled
		r.UpdatedAt = now

		if p := r.Payment; p != nil && p.Status == model.PaymentPending {
			if err := tx.UpdatePaymentStatus(ctx, p.ID, model.PaymentFailed); err != nil {
				return fmt.Errorf("abandon pending payment: %w", err)
			}
			p.Status = model.PaymentFailed
		}

		var refund *model.Refund
		if p := r.Payment; p != nil && p.Status == model.PaymentPaid {
			refund = &model.Refund{
				PaymentID:   p.ID,
				Amount:      RefundAmount(r.TotalAmount),
				Reason:      RefundReason,
				Processed:   false,
				RequestedAt: now,
			}
			if err := tx.CreateRefund(ctx, refund); err != nil {
				return fmt.Errorf("create refund: %w", err)
			}
		}

		c, err := tx.LockCustomer(ctx, r.CustomerID)
		if err != nil {
			return lookup("customer profile", err)
		}
		if err := s.ledger.Reverse(ctx, tx, c, len(r.Tickets)); err != nil {
			return err
		}

		out = CancelResult{Reservation: r, Refund: refund}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("reservation cancelled",
		zap.Uint64("reservation_id", out.Reservation.ID),
		zap.String("reference", out.Reservation.Reference),
		zap.Bool("refund_requested", out.Refund != nil),
	)
	return &out, nil
}

// ProcessRefund marks a refund as paid out and its payment as refunded.
// Staff only.
func (s *CancellationService) ProcessRefund(ctx context.Context, actor model.Actor, refundID uint64) (*model.Refund, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: refunds are processed by staff", ErrForbidden)
	}
	now := s.Now()
	var out *model.Refund
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		rf, err := tx.LockRefund(ctx, refundID)
		if err != nil {
			return lookup("refund", err)
		}
		if rf.Processed {
			return transition("refund %d was already processed", rf.ID)
		}
		if err := tx.MarkRefundProcessed(ctx, rf.ID, now); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return transition("refund %d was already processed", rf.ID)
			}
			return fmt.Errorf("mark refund processed: %w", err)
		}
		if err := tx.UpdatePaymentStatus(ctx, rf.PaymentID, model.PaymentRefunded); err != nil {
			return fmt.Errorf("mark payment refunded: %w", err)
		}
		rf.Processed = true
		rf.ProcessedAt = &now
		out = rf
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("refund processed", zap.Uint64("refund_id", out.ID), zap.Int64("amount", out.Amount))
	return out, nil
}

// ListRefunds returns refund requests for staff review.
func (s *CancellationService) ListRefunds(ctx context.Context, actor model.Actor, pendingOnly bool) ([]model.Refund, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: refunds are visible to staff only", ErrForbidden)
	}
	out, err := s.store.Refunds(ctx, pendingOnly)
	if err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}
	if out == nil {
		out = []model.Refund{}
	}
	return out, nil
}

// AllReservations lists reservations for staff, newest first, optionally
// filtered by status.
func (s *CancellationService) AllReservations(ctx context.Context, actor model.Actor, status model.ReservationStatus) ([]model.Reservation, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: the reservation register is visible to staff only", ErrForbidden)
	}
	switch status {
	case "", model.ReservationConfirmed, model.ReservationCancelled, model.ReservationUsed, model.ReservationRefunded:
	default:
		return nil, invalid("unknown reservation status %q", status)
	}
	out, err := s.store.AllReservations(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	if out == nil {
		out = []model.Reservation{}
	}
	return out, nil
}

// MarkUsed records that the passenger travelled. Staff only; the
// reservation must be confirmed.
func (s *CancellationService) MarkUsed(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: only staff can validate tickets", ErrForbidden)
	}
	var out *model.Reservation
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		r, err := tx.LockReservation(ctx, id)
		if err != nil {
			return lookup("reservation", err)
		}
		if r.Status != model.ReservationConfirmed {
			return transition("reservation %s is %s and cannot be used", r.Reference, r.Status)
		}
		if err := tx.UpdateReservationStatus(ctx, r.ID, model.ReservationUsed); err != nil {
			return fmt.Errorf("mark reservation used: %w", err)
		}
		r.Status = model.ReservationUsed
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
