package model

import "time"

// FareClass identifies one of the three seat categories sold on a schedule.
type FareClass string

const (
	FareStandard FareClass = "STANDARD"
	FareBusiness FareClass = "BUSINESS"
	FareFirst    FareClass = "FIRST"
)

// FareClasses lists every class in display order.
var FareClasses = []FareClass{FareStandard, FareBusiness, FareFirst}

// Valid reports whether f is one of the known classes.
func (f FareClass) Valid() bool {
	switch f {
	case FareStandard, FareBusiness, FareFirst:
		return true
	}
	return false
}

// Code is the short prefix used in seat labels (STD-1, BUS-2, FST-3).
func (f FareClass) Code() string {
	switch f {
	case FareStandard:
		return "STD"
	case FareBusiness:
		return "BUS"
	case FareFirst:
		return "FST"
	}
	return "UNK"
}

// Schedule is a dated departure on a route. Each fare class carries its
// own fixed price (minor currency units) and its own remaining seat
// counter; the counters are the only inventory the system tracks.
type Schedule struct {
	ID            uint64    `json:"id"`
	RouteID       uint64    `json:"route_id"`
	DepartsAt     time.Time `json:"departs_at"`
	ArrivesAt     time.Time `json:"arrives_at"`
	PriceStandard int64     `json:"price_standard"`
	PriceBusiness int64     `json:"price_business"`
	PriceFirst    int64     `json:"price_first"`
	SeatsStandard int       `json:"seats_standard"`
	SeatsBusiness int       `json:"seats_business"`
	SeatsFirst    int       `json:"seats_first"`
	CreatedAt     time.Time `json:"created_at"`
}

// Seats returns the remaining seat counter for the class.
func (s *Schedule) Seats(class FareClass) int {
	switch class {
	case FareStandard:
		return s.SeatsStandard
	case FareBusiness:
		return s.SeatsBusiness
	case FareFirst:
		return s.SeatsFirst
	}
	return 0
}

// Price returns the unit price for the class.
func (s *Schedule) Price(class FareClass) int64 {
	switch class {
	case FareStandard:
		return s.PriceStandard
	case FareBusiness:
		return s.PriceBusiness
	case FareFirst:
		return s.PriceFirst
	}
	return 0
}

// SetSeats overwrites the counter for the class. Stores use it after a
// successful conditional decrement.
func (s *Schedule) SetSeats(class FareClass, n int) {
	switch class {
	case FareStandard:
		s.SeatsStandard = n
	case FareBusiness:
		s.SeatsBusiness = n
	case FareFirst:
		s.SeatsFirst = n
	}
}

// TotalSeats sums the three counters.
func (s *Schedule) TotalSeats() int {
	return s.SeatsStandard + s.SeatsBusiness + s.SeatsFirst
}

// Overlaps reports whether [departs, arrives) intersects this schedule.
func (s *Schedule) Overlaps(departs, arrives time.Time) bool {
	return departs.Before(s.ArrivesAt) && s.DepartsAt.Before(arrives)
}

// ClassAvailability is one row of a schedule availability view.
type ClassAvailability struct {
	FareClass FareClass `json:"fare_class"`
	Price     int64     `json:"price"`
	Seats     int       `json:"seats"`
}

// Availability is the public read model for a schedule.
type Availability struct {
	ScheduleID uint64              `json:"schedule_id"`
	RouteID    uint64              `json:"route_id"`
	DepartsAt  time.Time           `json:"departs_at"`
	ArrivesAt  time.Time           `json:"arrives_at"`
	Classes    []ClassAvailability `json:"classes"`
	TotalSeats int                 `json:"total_seats"`
}

// AvailabilityOf builds the read model from a schedule row.
func AvailabilityOf(s *Schedule) Availability {
	a := Availability{
		ScheduleID: s.ID,
		RouteID:    s.RouteID,
		DepartsAt:  s.DepartsAt,
		ArrivesAt:  s.ArrivesAt,
		TotalSeats: s.TotalSeats(),
	}
	for _, fc := range FareClasses {
		a.Classes = append(a.Classes, ClassAvailability{FareClass: fc, Price: s.Price(fc), Seats: s.Seats(fc)})
	}
	return a
}
