// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingConfirmedEvent is published after a booking transaction commits.
// It carries everything the notification consumer needs to write the
// confirmation email without querying the primary database.
type BookingConfirmedEvent struct {
	ReservationID uint64   `json:"reservation_id"`
	Reference     string   `json:"reference"`
	CustomerID    uint64   `json:"customer_id"`
	CustomerName  string   `json:"customer_name"`
	CustomerEmail string   `json:"customer_email"`
	ScheduleID    uint64   `json:"schedule_id"`
	RouteID       uint64   `json:"route_id"`
	DepartsAt     string   `json:"departs_at"`
	ArrivesAt     string   `json:"arrives_at"`
	FareClass     string   `json:"fare_class"`
	SeatLabels    []string `json:"seats"`
	TotalAmount   int64    `json:"total_amount"`
	BonusRedeemed string   `json:"bonus_redeemed,omitempty"`
	BonusEarned   []string `json:"bonus_earned,omitempty"`
	ConfirmedAt   string   `json:"confirmed_at"`
}
