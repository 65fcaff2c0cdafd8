package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/transport-booking/internal/model"
	"github.com/iliyamo/transport-booking/internal/service"
)

// StaffHandler serves the back-office endpoints under /v1/staff.
type StaffHandler struct {
	Schedules *service.ScheduleService
	Cancels   *service.CancellationService
	Reports   *service.ReportService
	Log       *zap.Logger
}

// NewStaffHandler panics on a missing service.
func NewStaffHandler(s *service.ScheduleService, cs *service.CancellationService, r *service.ReportService, log *zap.Logger) *StaffHandler {
	if s == nil || cs == nil || r == nil {
		panic("nil service passed to NewStaffHandler")
	}
	return &StaffHandler{Schedules: s, Cancels: cs, Reports: r, Log: orNop(log)}
}

// CreateRoute handles POST /v1/staff/routes.
func (h *StaffHandler) CreateRoute(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	var in service.RouteInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	rt, err := h.Schedules.CreateRoute(c.Request().Context(), actor, in)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, rt)
}

// CreateSchedule handles POST /v1/staff/schedules. Times are RFC 3339.
func (h *StaffHandler) CreateSchedule(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	var in service.ScheduleInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	sc, err := h.Schedules.CreateSchedule(c.Request().Context(), actor, in)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, sc)
}

// MarkUsed handles POST /v1/staff/reservations/:id/use.
func (h *StaffHandler) MarkUsed(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	r, err := h.Cancels.MarkUsed(c.Request().Context(), actor, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, r)
}

// ListReservations handles GET /v1/staff/reservations[?status=CONFIRMED].
func (h *StaffHandler) ListReservations(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	status := model.ReservationStatus(strings.ToUpper(strings.TrimSpace(c.QueryParam("status"))))
	items, err := h.Cancels.AllReservations(c.Request().Context(), actor, status)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListRefunds handles GET /v1/staff/refunds[?pending=true].
func (h *StaffHandler) ListRefunds(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	pending := false
	if v := c.QueryParam("pending"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return badRequest(c, "pending must be true or false")
		}
		pending = b
	}
	items, err := h.Cancels.ListRefunds(c.Request().Context(), actor, pending)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ProcessRefund handles POST /v1/staff/refunds/:id/process.
func (h *StaffHandler) ProcessRefund(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid refund id")
	}
	rf, err := h.Cancels.ProcessRefund(c.Request().Context(), actor, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, rf)
}

const dayLayout = "2006-01-02"

// reportPeriod reads ?from=&to= as UTC days, to inclusive. Either bound
// missing means the default window.
func reportPeriod(c echo.Context) (*time.Time, *time.Time, error) {
	fromRaw, toRaw := c.QueryParam("from"), c.QueryParam("to")
	if fromRaw == "" || toRaw == "" {
		return nil, nil, nil
	}
	from, err := time.Parse(dayLayout, fromRaw)
	if err != nil {
		return nil, nil, err
	}
	to, err := time.Parse(dayLayout, toRaw)
	if err != nil {
		return nil, nil, err
	}
	end := to.Add(24 * time.Hour)
	return &from, &end, nil
}

// SalesReport handles GET /v1/staff/reports/sales.
func (h *StaffHandler) SalesReport(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	from, to, err := reportPeriod(c)
	if err != nil {
		return badRequest(c, "from and to must be YYYY-MM-DD dates")
	}
	rep, err := h.Reports.SalesReport(c.Request().Context(), actor, from, to)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, rep)
}
