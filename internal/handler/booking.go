package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/transport-booking/internal/model"
	"github.com/iliyamo/transport-booking/internal/service"
)

// BookingHandler serves the customer-facing reservation endpoints.
// JWTAuth and RequireRole have already run.
type BookingHandler struct {
	Bookings *service.BookingService
	Cancels  *service.CancellationService
	Payments *service.PaymentService
	Log      *zap.Logger
}

// NewBookingHandler panics on a missing service.
func NewBookingHandler(b *service.BookingService, cs *service.CancellationService, p *service.PaymentService, log *zap.Logger) *BookingHandler {
	if b == nil || cs == nil || p == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: b, Cancels: cs, Payments: p, Log: orNop(log)}
}

type bookingBody struct {
	FareClass string `json:"fare_class"`
	Seats     int    `json:"seats"`
	Comments  string `json:"comments"`
}

// CreateBooking handles POST /v1/schedules/:id/bookings.
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	scheduleID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid schedule id")
	}
	var body bookingBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := h.Bookings.CreateBooking(c.Request().Context(), actor, service.BookingRequest{
		ScheduleID: scheduleID,
		FareClass:  model.FareClass(body.FareClass),
		SeatCount:  body.Seats,
		Comments:   body.Comments,
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// ListReservations handles GET /v1/my-reservations.
func (h *BookingHandler) ListReservations(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	items, err := h.Bookings.ListReservations(c.Request().Context(), actor)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetReservation handles GET /v1/reservations/:id for the owner or staff.
func (h *BookingHandler) GetReservation(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	r, err := h.Bookings.GetReservation(c.Request().Context(), actor, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, r)
}

// CancelReservation handles POST /v1/reservations/:id/cancel.
func (h *BookingHandler) CancelReservation(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	res, err := h.Cancels.CancelReservation(c.Request().Context(), actor, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

type paymentBody struct {
	Operator string `json:"operator"`
	Phone    string `json:"phone"`
}

// InitiatePayment handles POST /v1/reservations/:id/payment.
func (h *BookingHandler) InitiatePayment(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	var body paymentBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	p, err := h.Payments.InitiatePayment(c.Request().Context(), actor, id, service.PaymentRequest{
		Operator: model.PaymentOperator(body.Operator),
		Phone:    body.Phone,
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// CompletePayment handles POST /v1/reservations/:id/payment/complete with
// {"succeeded": true|false} as reported by the gateway.
func (h *BookingHandler) CompletePayment(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	var body struct {
		Succeeded *bool `json:"succeeded"`
	}
	if err := c.Bind(&body); err != nil || body.Succeeded == nil {
		return badRequest(c, "succeeded is required")
	}
	p, err := h.Payments.CompletePayment(c.Request().Context(), actor, id, *body.Succeeded)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

// ListBonusTickets handles GET /v1/my-bonus-tickets.
func (h *BookingHandler) ListBonusTickets(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	items, err := h.Bookings.ListBonusTickets(c.Request().Context(), actor)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
