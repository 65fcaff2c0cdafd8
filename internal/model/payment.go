package model

import "time"

// PaymentStatus enumerates the payment lifecycle.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// PaymentOperator names the mobile money or card channel used to pay.
type PaymentOperator string

const (
	OperatorLumicash PaymentOperator = "lumicash"
	OperatorEcocash  PaymentOperator = "ecocash"
	OperatorIhela    PaymentOperator = "ihela"
	OperatorPaypal   PaymentOperator = "paypal"
	OperatorCard     PaymentOperator = "card"
)

// Valid reports whether o is a supported operator.
func (o PaymentOperator) Valid() bool {
	switch o {
	case OperatorLumicash, OperatorEcocash, OperatorIhela, OperatorPaypal, OperatorCard:
		return true
	}
	return false
}

// Payment is the single payment record of a reservation.
type Payment struct {
	ID            uint64           `json:"id"`
	ReservationID uint64           `json:"reservation_id"`
	Amount        int64            `json:"amount"`
	Status        PaymentStatus    `json:"status"`
	Operator      *PaymentOperator `json:"operator,omitempty"`
	Phone         *string          `json:"phone,omitempty"`
	ExternalRef   *string          `json:"external_ref,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Refund is requested when a paid reservation is cancelled and is
// processed later by staff.
type Refund struct {
	ID          uint64     `json:"id"`
	PaymentID   uint64     `json:"payment_id"`
	Amount      int64      `json:"amount"`
	Reason      string     `json:"reason"`
	Processed   bool       `json:"processed"`
	RequestedAt time.Time  `json:"requested_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}
