// Package service implements the booking engine: fare and inventory
// resolution, the booking transaction, the loyalty ledger, cancellation
// and refunds, the payment stub, schedule administration and sales
// reporting. Handlers translate the sentinel errors below into HTTP
// status codes with errors.Is.
package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/transport-booking/internal/model"
	"github.com/iliyamo/transport-booking/internal/repository"
)

var (
	// ErrInsufficientInventory means the requested fare class has fewer
	// seats left than asked for. The wrapped message names the class.
	ErrInsufficientInventory = errors.New("insufficient inventory")
	// ErrInvalidTransition means the entity is not in a state that allows
	// the requested operation.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrForbidden means the actor may not act on the entity.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound means a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation means the input was rejected before any state change.
	ErrValidation = errors.New("validation error")
)

func insufficient(class model.FareClass, requested, available int) error {
	return fmt.Errorf("%w: %s class has %d seat(s) left, %d requested", ErrInsufficientInventory, class, available, requested)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func transition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}

// lookup converts a repository miss into ErrNotFound naming the entity
// and wraps anything else with context.
func lookup(what string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return fmt.Errorf("load %s: %w", what, err)
}
