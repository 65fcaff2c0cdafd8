package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/transport-booking/internal/model"
	"github.com/iliyamo/transport-booking/internal/repository"
)

// Loyalty defaults: one free seat for every five seats booked, valid for
// thirty days.
const (
	DefaultLoyaltyThreshold = 5
	DefaultBonusValidity    = 30 * 24 * time.Hour
)

// Accrue adds seats to a loyalty counter and returns the new counter and
// the number of bonus tickets earned. The counter always ends below the
// threshold.
func Accrue(counter, seats, threshold int) (int, int) {
	counter += seats
	awards := 0
	for counter >= threshold {
		counter -= threshold
		awards++
	}
	return counter, awards
}

// LoyaltyLedger keeps each customer's reserved-seats counter and mints
// bonus tickets. It only ever runs inside a caller's transaction on a
// customer row that the caller has locked.
type LoyaltyLedger struct {
	threshold int
	validity  time.Duration
	codes     CodeSource
}

// NewLoyaltyLedger builds a ledger. Non-positive arguments fall back to
// the defaults.
func NewLoyaltyLedger(threshold int, validity time.Duration, codes CodeSource) *LoyaltyLedger {
	if threshold <= 0 {
		threshold = DefaultLoyaltyThreshold
	}
	if validity <= 0 {
		validity = DefaultBonusValidity
	}
	if codes == nil {
		codes = UUIDCodes
	}
	return &LoyaltyLedger{threshold: threshold, validity: validity, codes: codes}
}

// RecordSeats credits seats to the customer and mints one bonus ticket
// per threshold crossed. c is updated in place.
func (l *LoyaltyLedger) RecordSeats(ctx context.Context, tx repository.Tx, c *model.Customer, seats int, at time.Time) ([]model.BonusTicket, error) {
	counter, awards := Accrue(c.ReservedSeatsCounter, seats, l.threshold)
	if err := tx.UpdateCustomerSeatCounter(ctx, c.ID, counter); err != nil {
		return nil, fmt.Errorf("update seat counter: %w", err)
	}
	c.ReservedSeatsCounter = counter

	minted := make([]model.BonusTicket, 0, awards)
	for i := 0; i < awards; i++ {
		b, err := l.mint(ctx, tx, c.ID, at)
		if err != nil {
			return nil, err
		}
		minted = append(minted, *b)
	}
	return minted, nil
}

func (l *LoyaltyLedger) mint(ctx context.Context, tx repository.Tx, customerID uint64, at time.Time) (*model.BonusTicket, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		b := &model.BonusTicket{
			CustomerID:   customerID,
			Code:         l.codes.BonusCode(),
			Amount:       0,
			SeatsGranted: 1,
			CreatedAt:    at,
			ExpiresAt:    at.Add(l.validity),
		}
		err := tx.CreateBonusTicket(ctx, b)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("create bonus ticket: %w", err)
		}
	}
	return nil, errors.New("could not allocate a unique bonus code")
}

// Reverse removes seats from the counter, never going below zero. Bonus
// tickets already minted are kept.
func (l *LoyaltyLedger) Reverse(ctx context.Context, tx repository.Tx, c *model.Customer, seats int) error {
	counter := c.ReservedSeatsCounter - seats
	if counter < 0 {
		counter = 0
	}
	if err := tx.UpdateCustomerSeatCounter(ctx, c.ID, counter); err != nil {
		return fmt.Errorf("update seat counter: %w", err)
	}
	c.ReservedSeatsCounter = counter
	return nil
}
