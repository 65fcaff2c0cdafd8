package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/transport-booking/internal/model"
	"github.com/iliyamo/transport-booking/internal/repository"
)

// PaymentService is a stand-in for a payment gateway: it records a
// pending payment and lets the caller report the gateway outcome.
type PaymentService struct {
	store repository.Store
	log   *zap.Logger

	Codes CodeSource
	Now   func() time.Time
}

// NewPaymentService wires a PaymentService.
func NewPaymentService(store repository.Store, log *zap.Logger) *PaymentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentService{store: store, log: log, Codes: UUIDCodes, Now: func() time.Time { return time.Now().UTC() }}
}

// PaymentRequest is the customer's input to InitiatePayment.
type PaymentRequest struct {
	Operator model.PaymentOperator
	Phone    string
}

// InitiatePayment opens a pending payment for the full reservation total.
// Only the owner may pay and only confirmed reservations are payable. A
// reservation carries at most one payment; a FAILED one is reopened for
// the new attempt.
func (s *PaymentService) InitiatePayment(ctx context.Context, actor model.Actor, reservationID uint64, req PaymentRequest) (*model.Payment, error) {
	op := model.PaymentOperator(strings.ToLower(strings.TrimSpace(string(req.Operator))))
	if !op.Valid() {
		return nil, invalid("unsupported payment operator %q", req.Operator)
	}
	owner, err := customerOf(ctx, s.store, actor)
	if err != nil {
		return nil, err
	}
	var out *model.Payment
	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		r, err := tx.LockReservation(ctx, reservationID)
		if err != nil {
			return lookup("reservation", err)
		}
		if r.CustomerID != owner.ID {
			return fmt.Errorf("%w: reservation belongs to another customer", ErrForbidden)
		}
		if r.Status != model.ReservationConfirmed {
			return transition("reservation %s is %s and cannot be paid", r.Reference, r.Status)
		}
		if r.Payment != nil && r.Payment.Status != model.PaymentFailed {
			return transition("reservation %s already has a %s payment", r.Reference, r.Payment.Status)
		}
		ext := s.Codes.PaymentRef()
		p := &model.Payment{
			ReservationID: r.ID,
			Amount:        r.TotalAmount,
			Status:        model.PaymentPending,
			Operator:      &op,
			ExternalRef:   &ext,
		}
		if phone := strings.TrimSpace(req.Phone); phone != "" {
			p.Phone = &phone
		}
		write := tx.CreatePayment
		if r.Payment != nil {
			p.ID = r.Payment.ID
			write = tx.ReopenPayment
		}
		if err := write(ctx, p); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return transition("reservation %s already has a payment", r.Reference)
			}
			return fmt.Errorf("save payment: %w", err)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CompletePayment applies the gateway outcome to a pending payment of a
// confirmed reservation. The reservation owner or staff may report it.
func (s *PaymentService) CompletePayment(ctx context.Context, actor model.Actor, reservationID uint64, succeeded bool) (*model.Payment, error) {
	var ownerID uint64
	if !actor.IsStaff() {
		owner, err := customerOf(ctx, s.store, actor)
		if err != nil {
			return nil, err
		}
		ownerID = owner.ID
	}
	var out *model.Payment
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		r, err := tx.LockReservation(ctx, reservationID)
		if err != nil {
			return lookup("reservation", err)
		}
		if !actor.IsStaff() && r.CustomerID != ownerID {
			return fmt.Errorf("%w: reservation belongs to another customer", ErrForbidden)
		}
		if r.Payment == nil {
			return fmt.Errorf("%w: payment for reservation %s", ErrNotFound, r.Reference)
		}
		if r.Status != model.ReservationConfirmed {
			return transition("reservation %s is %s; its payment can no longer settle", r.Reference, r.Status)
		}
		if r.Payment.Status != model.PaymentPending {
			return transition("payment is %s, not pending", r.Payment.Status)
		}
		next := model.PaymentFailed
		if succeeded {
			next = model.PaymentPaid
		}
		if err := tx.UpdatePaymentStatus(ctx, r.Payment.ID, next); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		p := *r.Payment
		p.Status = next
		p.UpdatedAt = s.Now()
		out = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("payment completed", zap.Uint64("reservation_id", reservationID), zap.String("status", string(out.Status)))
	return out, nil
}
