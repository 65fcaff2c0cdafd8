// Package repository defines the persistence ports used by the service
// layer together with their MySQL implementation. The sentinel values
// below are shared by every store implementation so that services can
// tell missing rows apart from lost races.
package repository

import "errors"

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional write affected no rows or
// hit a unique key, for example a seat decrement racing another booking
// or a duplicate reservation reference.
var ErrConflict = errors.New("conflict")
