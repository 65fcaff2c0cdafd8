package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/transport-booking/internal/handler"
	"github.com/iliyamo/transport-booking/internal/middleware"
	"github.com/iliyamo/transport-booking/internal/model"
)

// RegisterStaff registers the back-office endpoints under /v1/staff. The
// sales report is served through reportCache.
func RegisterStaff(e *echo.Echo, h *handler.StaffHandler, jwtSecret string, reportCache echo.MiddlewareFunc) {
	g := e.Group("/v1/staff", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleStaff))

	g.POST("/routes", h.CreateRoute)
	g.POST("/schedules", h.CreateSchedule)
	g.GET("/reservations", h.ListReservations)
	g.POST("/reservations/:id/use", h.MarkUsed)
	g.GET("/refunds", h.ListRefunds)
	g.POST("/refunds/:id/process", h.ProcessRefund)
	g.GET("/reports/sales", h.SalesReport, reportCache)
}
