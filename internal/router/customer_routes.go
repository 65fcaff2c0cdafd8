package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/transport-booking/internal/handler"
	"github.com/iliyamo/transport-booking/internal/middleware"
	"github.com/iliyamo/transport-booking/internal/model"
)

// RegisterCustomer registers the reservation endpoints under /v1. Every
// route needs a valid JWT; reading a reservation and reporting a payment
// outcome are also open to staff. limiter guards booking creation.
func RegisterCustomer(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	customer := middleware.RequireRole(model.RoleCustomer)
	either := middleware.RequireRole(model.RoleCustomer, model.RoleStaff)

	g.POST("/schedules/:id/bookings", h.CreateBooking, customer, limiter)
	g.GET("/my-reservations", h.ListReservations, customer)
	g.GET("/my-bonus-tickets", h.ListBonusTickets, customer)
	g.GET("/reservations/:id", h.GetReservation, either)
	g.POST("/reservations/:id/cancel", h.CancelReservation, customer)
	g.POST("/reservations/:id/payment", h.InitiatePayment, customer)
	g.POST("/reservations/:id/payment/complete", h.CompletePayment, either)
}
