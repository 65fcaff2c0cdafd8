package model

import "time"

// DailyTotal is the revenue and booking count of one UTC calendar day.
type DailyTotal struct {
	Day   string `json:"day"`
	Total int64  `json:"total"`
	Count int    `json:"count"`
}

// MethodTotal is the paid revenue collected through one operator.
type MethodTotal struct {
	Method string `json:"method"`
	Total  int64  `json:"total"`
	Count  int    `json:"count"`
}

// SalesReport summarises bookings and payments over [Start, End).
type SalesReport struct {
	Start                 time.Time     `json:"start"`
	End                   time.Time     `json:"end"`
	DailyTotals           []DailyTotal  `json:"daily_totals"`
	GrandTotal            int64         `json:"grand_total"`
	ReservationCount      int           `json:"reservation_count"`
	TotalsByPaymentMethod []MethodTotal `json:"totals_by_payment_method"`
}
