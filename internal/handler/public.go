package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/transport-booking/internal/service"
)

// PublicHandler serves unauthenticated reads.
type PublicHandler struct {
	Schedules *service.ScheduleService
	Log       *zap.Logger
}

// NewPublicHandler panics on a missing service.
func NewPublicHandler(s *service.ScheduleService, log *zap.Logger) *PublicHandler {
	if s == nil {
		panic("nil service passed to NewPublicHandler")
	}
	return &PublicHandler{Schedules: s, Log: orNop(log)}
}

// Availability handles GET /v1/schedules/:id/availability.
func (h *PublicHandler) Availability(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid schedule id")
	}
	a, err := h.Schedules.Availability(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, a)
}

func queryID(c echo.Context, name string) (uint64, bool) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return 0, true
	}
	id, err := strconv.ParseUint(v, 10, 64)
	return id, err == nil && id > 0
}

func queryInt(c echo.Context, name string) (int, bool) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

// Search handles GET /v1/schedules?departure=&arrival=&date=&page=&page_size=.
// date is a YYYY-MM-DD day in UTC.
func (h *PublicHandler) Search(c echo.Context) error {
	var in service.SearchInput
	var ok bool
	if in.DepartureStationID, ok = queryID(c, "departure"); !ok {
		return badRequest(c, "invalid departure station")
	}
	if in.ArrivalStationID, ok = queryID(c, "arrival"); !ok {
		return badRequest(c, "invalid arrival station")
	}
	if v := strings.TrimSpace(c.QueryParam("date")); v != "" {
		day, err := time.Parse(dayLayout, v)
		if err != nil {
			return badRequest(c, "date must be YYYY-MM-DD")
		}
		in.Day = &day
	}
	if in.Page, ok = queryInt(c, "page"); !ok {
		return badRequest(c, "invalid page")
	}
	if in.PageSize, ok = queryInt(c, "page_size"); !ok {
		return badRequest(c, "invalid page_size")
	}
	page, err := h.Schedules.Search(c.Request().Context(), in)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, page)
}

// Stations handles GET /v1/cities/:id/stations.
func (h *PublicHandler) Stations(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid city id")
	}
	items, err := h.Schedules.Stations(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Routes handles GET /v1/routes?departure=&arrival=.
func (h *PublicHandler) Routes(c echo.Context) error {
	dep, ok := queryID(c, "departure")
	if !ok {
		return badRequest(c, "invalid departure station")
	}
	arr, ok := queryID(c, "arrival")
	if !ok {
		return badRequest(c, "invalid arrival station")
	}
	items, err := h.Schedules.Routes(c.Request().Context(), dep, arr)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
