package model

import "time"

// Customer is the booking profile linked one-to-one with an account.
// ReservedSeatsCounter accumulates seats towards the next loyalty bonus.
type Customer struct {
	ID                   uint64    `json:"id"`
	UserID               uint64    `json:"user_id"`
	Email                string    `json:"email"`
	FullName             string    `json:"full_name"`
	Phone                *string   `json:"phone,omitempty"`
	ReservedSeatsCounter int       `json:"reserved_seats_counter"`
	CreatedAt            time.Time `json:"created_at"`
}

// BonusTicket is a loyalty reward redeemable for a free booking of up to
// SeatsGranted seats.
type BonusTicket struct {
	ID           uint64     `json:"id"`
	CustomerID   uint64     `json:"customer_id"`
	Code         string     `json:"code"`
	Amount       int64      `json:"amount"`
	SeatsGranted int        `json:"seats_granted"`
	Used         bool       `json:"used"`
	UsedAt       *time.Time `json:"used_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
}

// ValidAt reports whether the ticket is unused and not expired at t.
func (b *BonusTicket) ValidAt(t time.Time) bool {
	return !b.Used && t.Before(b.ExpiresAt)
}
