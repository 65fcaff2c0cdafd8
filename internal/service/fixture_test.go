package service_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/transport-booking/internal/model"
	"github.com/iliyamo/transport-booking/internal/queue"
	"github.com/iliyamo/transport-booking/internal/repository/memstore"
	"github.com/iliyamo/transport-booking/internal/service"
)

// mockNotifier records published events.
type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// seqCodes hands out predictable codes.
type seqCodes struct {
	n atomic.Int64
}

func (s *seqCodes) next() int64        { return s.n.Add(1) }
func (s *seqCodes) Reference() string  { return fmt.Sprintf("RES-%08X", s.next()) }
func (s *seqCodes) BonusCode() string  { return fmt.Sprintf("BONUS-%08X", s.next()) }
func (s *seqCodes) PaymentRef() string { return fmt.Sprintf("PAY-%08X", s.next()) }

var fixedNow = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memstore.Store
	notifier  *mockNotifier
	booking   *service.BookingService
	cancel    *service.CancellationService
	payments  *service.PaymentService
	reports   *service.ReportService
	schedules *service.ScheduleService

	routeID    uint64
	scheduleID uint64
	customerID uint64
	customer   model.Actor
	other      model.Actor
	staff      model.Actor
}

type fixtureOpts struct {
	seatsStandard int
	priceStandard int64
	rdb           *redis.Client
	noNotifier    bool
}

func newFixture(t *testing.T, o fixtureOpts) *fixture {
	t.Helper()
	if o.priceStandard == 0 {
		o.priceStandard = 10000
	}
	st := memstore.New()
	st.Now = func() time.Time { return fixedNow }

	from := st.AddStation(&model.Station{Name: "Bujumbura Central"})
	to := st.AddStation(&model.Station{Name: "Gitega Terminal"})
	routeID := st.AddRoute(&model.Route{DepartureStationID: from, ArrivalStationID: to, DurationMinutes: 150, Active: true})
	dep := fixedNow.Add(48 * time.Hour)
	scheduleID := st.AddSchedule(&model.Schedule{
		RouteID: routeID, DepartsAt: dep, ArrivesAt: dep.Add(150 * time.Minute),
		PriceStandard: o.priceStandard, PriceBusiness: 18000, PriceFirst: 25000,
		SeatsStandard: o.seatsStandard, SeatsBusiness: 4, SeatsFirst: 2,
	})
	customerID := st.AddCustomer(&model.Customer{UserID: 100, Email: "ada@example.com", FullName: "Ada"})
	st.AddCustomer(&model.Customer{UserID: 200, Email: "bob@example.com", FullName: "Bob"})

	codes := &seqCodes{}
	ledger := service.NewLoyaltyLedger(5, 30*24*time.Hour, codes)
	cache := service.NewAvailabilityCache(o.rdb, time.Minute)

	f := &fixture{
		store:      st,
		routeID:    routeID,
		scheduleID: scheduleID,
		customerID: customerID,
		customer:   model.Actor{UserID: 100, Role: model.RoleCustomer},
		other:      model.Actor{UserID: 200, Role: model.RoleCustomer},
		staff:      model.Actor{UserID: 1, Role: model.RoleStaff},
	}
	var notifier service.Notifier
	if !o.noNotifier {
		f.notifier = &mockNotifier{}
		notifier = f.notifier
	}
	f.booking = service.NewBookingService(st, ledger, cache, notifier, nil)
	f.booking.Codes = codes
	f.booking.Now = func() time.Time { return fixedNow }
	f.cancel = service.NewCancellationService(st, ledger, nil)
	f.cancel.Now = func() time.Time { return fixedNow }
	f.payments = service.NewPaymentService(st, nil)
	f.payments.Codes = codes
	f.payments.Now = func() time.Time { return fixedNow }
	f.reports = service.NewReportService(st)
	f.reports.Now = func() time.Time { return fixedNow.Add(time.Hour) }
	f.schedules = service.NewScheduleService(st, cache, nil)
	f.schedules.Now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) expectNotify() {
	f.notifier.On("PublishBookingConfirmed", mock.Anything, mock.AnythingOfType("queue.BookingConfirmedEvent")).Return(nil)
}

func (f *fixture) book(t *testing.T, class model.FareClass, seats int) *service.BookingResult {
	t.Helper()
	res, err := f.booking.CreateBooking(context.Background(), f.customer, service.BookingRequest{
		ScheduleID: f.scheduleID, FareClass: class, SeatCount: seats,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) seats(t *testing.T, class model.FareClass) int {
	t.Helper()
	sc, err := f.store.ScheduleByID(context.Background(), f.scheduleID)
	require.NoError(t, err)
	return sc.Seats(class)
}

func (f *fixture) counter(t *testing.T) int {
	t.Helper()
	c, ok := f.store.Customer(f.customerID)
	require.True(t, ok)
	return c.ReservedSeatsCounter
}

// pay runs the payment stub through to PAID.
func (f *fixture) pay(t *testing.T, reservationID uint64) {
	t.Helper()
	ctx := context.Background()
	_, err := f.payments.InitiatePayment(ctx, f.customer, reservationID, service.PaymentRequest{Operator: model.OperatorLumicash, Phone: "+25779000000"})
	require.NoError(t, err)
	p, err := f.payments.CompletePayment(ctx, f.customer, reservationID, true)
	require.NoError(t, err)
	require.Equal(t, model.PaymentPaid, p.Status)
}
