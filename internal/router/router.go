// Package router wires handlers and middleware onto Echo routes.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/transport-booking/internal/handler"
)

// RegisterRoutes registers the unauthenticated endpoints: the health check,
// station and route lookups, schedule search and schedule availability.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, p *handler.PublicHandler) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/v1/cities/:id/stations", p.Stations)
	e.GET("/v1/routes", p.Routes)
	e.GET("/v1/schedules", p.Search)
	e.GET("/v1/schedules/:id/availability", p.Availability)
}
