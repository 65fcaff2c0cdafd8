package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/transport-booking/internal/config"
	"github.com/iliyamo/transport-booking/internal/handler"
	"github.com/iliyamo/transport-booking/internal/middleware"
	"github.com/iliyamo/transport-booking/internal/model"
	"github.com/iliyamo/transport-booking/internal/repository/memstore"
	"github.com/iliyamo/transport-booking/internal/router"
	"github.com/iliyamo/transport-booking/internal/service"
	"github.com/iliyamo/transport-booking/internal/utils"
)

const secret = "handler-test-secret"

type testServer struct {
	e          *echo.Echo
	store      *memstore.Store
	stations   [2]uint64
	routeID    uint64
	scheduleID uint64

	customer, other, staff string
}

func token(t *testing.T, userID uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, userID, role, time.Hour)
	require.NoError(t, err)
	return tok.Token
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	st := memstore.New()
	s := &testServer{store: st}
	s.stations[0] = st.AddStation(&model.Station{Name: "Bujumbura Central"})
	s.stations[1] = st.AddStation(&model.Station{Name: "Gitega Terminal"})
	s.routeID = st.AddRoute(&model.Route{DepartureStationID: s.stations[0], ArrivalStationID: s.stations[1], DurationMinutes: 150, Active: true})
	dep := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Hour)
	s.scheduleID = st.AddSchedule(&model.Schedule{
		RouteID: s.routeID, DepartsAt: dep, ArrivesAt: dep.Add(150 * time.Minute),
		PriceStandard: 10000, PriceBusiness: 18000, PriceFirst: 25000,
		SeatsStandard: 3, SeatsBusiness: 2, SeatsFirst: 1,
	})
	st.AddCustomer(&model.Customer{UserID: 1, Email: "ada@example.com", FullName: "Ada"})
	st.AddCustomer(&model.Customer{UserID: 3, Email: "bob@example.com", FullName: "Bob"})
	s.customer = token(t, 1, model.RoleCustomer)
	s.other = token(t, 3, model.RoleCustomer)
	s.staff = token(t, 2, model.RoleStaff)

	ledger := service.NewLoyaltyLedger(service.DefaultLoyaltyThreshold, service.DefaultBonusValidity, nil)
	cache := service.NewAvailabilityCache(nil, time.Minute)
	bookings := service.NewBookingService(st, ledger, cache, nil, nil)
	cancels := service.NewCancellationService(st, ledger, nil)
	payments := service.NewPaymentService(st, nil)
	schedules := service.NewScheduleService(st, cache, nil)
	reports := service.NewReportService(st)

	s.e = echo.New()
	router.RegisterRoutes(s.e, nil, handler.NewPublicHandler(schedules, nil))
	router.RegisterCustomer(s.e, handler.NewBookingHandler(bookings, cancels, payments, nil), secret,
		middleware.NewTokenBucket(config.RateLimitConfig{}, nil, nil))
	router.RegisterStaff(s.e, handler.NewStaffHandler(schedules, cancels, reports, nil), secret,
		middleware.NewRedisCache(config.CacheConfig{}, nil, nil))
	return s
}

func (s *testServer) do(t *testing.T, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if tok != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) bookingsPath() string {
	return fmt.Sprintf("/v1/schedules/%d/bookings", s.scheduleID)
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestBookingLifecycle(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, s.bookingsPath(), s.customer, echo.Map{"fare_class": "STANDARD", "seats": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	booked := decode[service.BookingResult](t, rec)
	assert.Equal(t, int64(20000), booked.Reservation.TotalAmount)
	assert.Len(t, booked.Reservation.Tickets, 2)
	assert.Equal(t, 1, booked.SeatsRemaining)
	resID := booked.Reservation.ID

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/v1/schedules/%d/availability", s.scheduleID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	avail := decode[model.Availability](t, rec)
	assert.Equal(t, 1, avail.Classes[0].Seats)

	rec = s.do(t, http.MethodPost, s.bookingsPath(), s.customer, echo.Map{"fare_class": "STANDARD", "seats": 2})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient inventory")

	rec = s.do(t, http.MethodGet, "/v1/my-reservations", s.customer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct{ Items []model.Reservation }](t, rec)
	assert.Len(t, list.Items, 1)

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/v1/reservations/%d/payment", resID), s.customer, echo.Map{"operator": "lumicash", "phone": "+25779000000"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPost, fmt.Sprintf("/v1/reservations/%d/payment/complete", resID), s.staff, echo.Map{"succeeded": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.PaymentPaid, decode[model.Payment](t, rec).Status)

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/v1/reservations/%d/cancel", resID), s.customer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cancelled := decode[service.CancelResult](t, rec)
	assert.Equal(t, model.ReservationCancelled, cancelled.Reservation.Status)
	require.NotNil(t, cancelled.Refund)
	assert.Equal(t, int64(16000), cancelled.Refund.Amount)

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/v1/reservations/%d/cancel", resID), s.customer, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/staff/refunds?pending=true", s.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	refunds := decode[struct{ Items []model.Refund }](t, rec)
	require.Len(t, refunds.Items, 1)

	processPath := fmt.Sprintf("/v1/staff/refunds/%d/process", refunds.Items[0].ID)
	rec = s.do(t, http.MethodPost, processPath, s.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[model.Refund](t, rec).Processed)
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, processPath, s.staff, nil).Code)
}

func TestBookingErrorsMapToStatusCodes(t *testing.T) {
	s := newServer(t)
	body := echo.Map{"fare_class": "STANDARD", "seats": 1}

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, s.bookingsPath(), "", body).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, s.bookingsPath(), s.staff, body).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/v1/schedules/abc/bookings", s.customer, body).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, s.bookingsPath(), s.customer, echo.Map{"fare_class": "STANDARD", "seats": 0}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, s.bookingsPath(), s.customer, echo.Map{"fare_class": "ECONOMY", "seats": 1}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/v1/schedules/9999/bookings", s.customer, body).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/v1/staff/refunds", s.customer, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/v1/schedules/9999/availability", "", nil).Code)
}

func TestGetReservationVisibility(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodPost, s.bookingsPath(), s.customer, echo.Map{"fare_class": "FIRST", "seats": 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	path := fmt.Sprintf("/v1/reservations/%d", decode[service.BookingResult](t, rec).Reservation.ID)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, path, s.customer, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, path, s.staff, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, path, s.other, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/v1/reservations/9999", s.customer, nil).Code)
}

func TestStaffSchedulingAndReport(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/v1/staff/routes", s.staff, echo.Map{
		"departure_station_id": s.stations[0], "arrival_station_id": s.stations[0], "duration_minutes": 60,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/staff/routes", s.staff, echo.Map{
		"departure_station_id": s.stations[1], "arrival_station_id": s.stations[0], "duration_minutes": 150, "distance_km": 100,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	back := decode[model.Route](t, rec)

	dep := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Hour)
	rec = s.do(t, http.MethodPost, "/v1/staff/schedules", s.staff, service.ScheduleInput{
		RouteID: back.ID, DepartsAt: dep, ArrivesAt: dep.Add(150 * time.Minute),
		PriceStandard: 9000, PriceBusiness: 15000, PriceFirst: 22000,
		SeatsStandard: 30, SeatsBusiness: 8, SeatsFirst: 4,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, s.bookingsPath(), s.customer, echo.Map{"fare_class": "BUSINESS", "seats": 2})
	require.Equal(t, http.StatusCreated, rec.Code)
	resID := decode[service.BookingResult](t, rec).Reservation.ID
	rec = s.do(t, http.MethodPost, fmt.Sprintf("/v1/staff/reservations/%d/use", resID), s.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.ReservationUsed, decode[model.Reservation](t, rec).Status)

	today := time.Now().UTC().Format("2006-01-02")
	rec = s.do(t, http.MethodGet, "/v1/staff/reports/sales?from="+today+"&to="+today, s.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rep := decode[model.SalesReport](t, rec)
	assert.Equal(t, int64(36000), rep.GrandTotal)
	assert.Equal(t, 1, rep.ReservationCount)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/v1/staff/reports/sales?from=yesterday&to="+today, s.staff, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/v1/staff/reports/sales?from=2026-03-10&to=2026-03-01", s.staff, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/v1/staff/reports/sales", s.customer, nil).Code)
}

func TestScheduleSearch(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, fmt.Sprintf("/v1/schedules?departure=%d&arrival=%d", s.stations[0], s.stations[1]), "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode[service.SearchPage](t, rec)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, service.DefaultSearchPageSize, page.PageSize)
	require.Len(t, page.Items, 1)
	assert.Equal(t, s.scheduleID, page.Items[0].ID)
	assert.Equal(t, "Bujumbura Central", page.Items[0].DepartureStation)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/v1/schedules?departure=%d", s.stations[1]), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[service.SearchPage](t, rec).Items)

	for _, q := range []string{"departure=abc", "date=tomorrow", "page_size=500", "page=-1"} {
		rec = s.do(t, http.MethodGet, "/v1/schedules?"+q, "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestStaffReservationRegister(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodPost, s.bookingsPath(), s.customer, echo.Map{"fare_class": "STANDARD", "seats": 1})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/v1/staff/reservations?status=confirmed", s.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[struct{ Items []model.Reservation }](t, rec).Items, 1)

	rec = s.do(t, http.MethodGet, "/v1/staff/reservations?status=cancelled", s.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[struct{ Items []model.Reservation }](t, rec).Items)

	rec = s.do(t, http.MethodGet, "/v1/staff/reservations?status=lost", s.staff, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/staff/reservations", s.customer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStationAndRouteLookups(t *testing.T) {
	s := newServer(t)
	city := s.store.AddCity(&model.City{Name: "Rumonge", Code: "RUM"})
	st := s.store.AddStation(&model.Station{CityID: city, Name: "Rumonge Port"})

	rec := s.do(t, http.MethodGet, fmt.Sprintf("/v1/cities/%d/stations", city), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stations := decode[struct{ Items []model.Station }](t, rec).Items
	require.Len(t, stations, 1)
	assert.Equal(t, st, stations[0].ID)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/v1/routes?departure=%d&arrival=%d", s.stations[0], s.stations[1]), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	routes := decode[struct{ Items []model.Route }](t, rec).Items
	require.Len(t, routes, 1)
	assert.Equal(t, s.routeID, routes[0].ID)

	rec = s.do(t, http.MethodGet, "/v1/routes?departure=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
