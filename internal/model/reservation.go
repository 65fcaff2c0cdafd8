package model

import "time"

// ReservationStatus enumerates the reservation lifecycle.
type ReservationStatus string

const (
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationUsed      ReservationStatus = "USED"
	ReservationRefunded  ReservationStatus = "REFUNDED"
)

// Reservation is a customer's booking on a schedule. Tickets are created
// in the same transaction and always sum to TotalAmount. Payment is nil
// until the customer initiates one.
type Reservation struct {
	ID          uint64            `json:"id"`
	CustomerID  uint64            `json:"customer_id"`
	ScheduleID  uint64            `json:"schedule_id"`
	Reference   string            `json:"reference"`
	Status      ReservationStatus `json:"status"`
	TotalAmount int64             `json:"total_amount"`
	Comments    *string           `json:"comments,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Tickets     []Ticket          `json:"tickets"`
	Payment     *Payment          `json:"payment,omitempty"`
}

// Ticket is one seat inside a reservation.
type Ticket struct {
	ID            uint64    `json:"id"`
	ReservationID uint64    `json:"reservation_id"`
	FareClass     FareClass `json:"fare_class"`
	Price         int64     `json:"price"`
	SeatLabel     string    `json:"seat_label"`
}

// ReservationRow is the reduced projection used by sales reporting.
type ReservationRow struct {
	ID          uint64
	TotalAmount int64
	Status      ReservationStatus
	CreatedAt   time.Time
}
