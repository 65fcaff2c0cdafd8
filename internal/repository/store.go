package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/transport-booking/internal/model"
)

// Reader groups the read-only queries that run outside a transaction.
type Reader interface {
	CustomerByUserID(ctx context.Context, userID uint64) (*model.Customer, error)
	ScheduleByID(ctx context.Context, id uint64) (*model.Schedule, error)
	ReservationByID(ctx context.Context, id uint64) (*model.Reservation, error)
	ReservationsByCustomer(ctx context.Context, customerID uint64) ([]model.Reservation, error)
	BonusTicketsByCustomer(ctx context.Context, customerID uint64) ([]model.BonusTicket, error)
	Refunds(ctx context.Context, pendingOnly bool) ([]model.Refund, error)
	ReservationsCreatedBetween(ctx context.Context, start, end time.Time, statuses []model.ReservationStatus) ([]model.ReservationRow, error)
	PaymentsCreatedBetween(ctx context.Context, start, end time.Time, status model.PaymentStatus) ([]model.Payment, error)
	SearchSchedules(ctx context.Context, q ScheduleSearchQuery) ([]ScheduleSearchRow, int64, error)
	// AllReservations lists every reservation, newest first; an empty
	// status means all statuses.
	AllReservations(ctx context.Context, status model.ReservationStatus) ([]model.Reservation, error)
	StationsByCity(ctx context.Context, cityID uint64) ([]model.Station, error)
	ActiveRoutes(ctx context.Context, departureStationID, arrivalStationID uint64) ([]model.Route, error)
}

// Tx is the unit of work handed to RunInTx callbacks. Lock* methods take
// row locks that are held until the callback returns.
type Tx interface {
	LockCustomer(ctx context.Context, id uint64) (*model.Customer, error)
	UpdateCustomerSeatCounter(ctx context.Context, customerID uint64, counter int) error

	LockSchedule(ctx context.Context, id uint64) (*model.Schedule, error)
	// DecrementSeats lowers the class counter by n only if at least n seats
	// remain, returning ErrConflict otherwise.
	DecrementSeats(ctx context.Context, scheduleID uint64, class model.FareClass, n int) error

	ValidBonusTickets(ctx context.Context, customerID uint64, at time.Time) ([]model.BonusTicket, error)
	MarkBonusTicketUsed(ctx context.Context, id uint64, at time.Time) error
	CreateBonusTicket(ctx context.Context, b *model.BonusTicket) error

	ReferenceExists(ctx context.Context, ref string) (bool, error)
	CreateReservation(ctx context.Context, r *model.Reservation) error
	CreateTickets(ctx context.Context, tickets []model.Ticket) error
	LockReservation(ctx context.Context, id uint64) (*model.Reservation, error)
	UpdateReservationStatus(ctx context.Context, id uint64, status model.ReservationStatus) error

	CreatePayment(ctx context.Context, p *model.Payment) error
	// ReopenPayment turns a FAILED payment back into p (same ID) for a new
	// attempt, returning ErrConflict when the row is not FAILED.
	ReopenPayment(ctx context.Context, p *model.Payment) error
	UpdatePaymentStatus(ctx context.Context, id uint64, status model.PaymentStatus) error
	CreateRefund(ctx context.Context, r *model.Refund) error
	LockRefund(ctx context.Context, id uint64) (*model.Refund, error)
	MarkRefundProcessed(ctx context.Context, id uint64, at time.Time) error

	StationExists(ctx context.Context, id uint64) (bool, error)
	RouteExists(ctx context.Context, departureStationID, arrivalStationID uint64) (bool, error)
	CreateRoute(ctx context.Context, r *model.Route) error
	LockRoute(ctx context.Context, id uint64) (*model.Route, error)
	SchedulesByRoute(ctx context.Context, routeID uint64) ([]model.Schedule, error)
	CreateSchedule(ctx context.Context, s *model.Schedule) error
}

// Store is implemented by the MySQL store and the in-memory store.
// RunInTx commits when fn returns nil and rolls back otherwise.
type Store interface {
	Reader
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var _ Store = (*MySQLStore)(nil)

// MySQLStore wires the per-table repositories behind the Store port.
type MySQLStore struct {
	db           *sql.DB
	Customers    *CustomerRepo
	Schedules    *ScheduleRepo
	Routes       *RouteRepo
	Reservations *ReservationRepo
	Payments     *PaymentRepo
	Bonuses      *BonusTicketRepo
}

// NewMySQLStore builds a store over an open connection pool.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{
		db:           db,
		Customers:    NewCustomerRepo(db),
		Schedules:    NewScheduleRepo(db),
		Routes:       NewRouteRepo(db),
		Reservations: NewReservationRepo(db),
		Payments:     NewPaymentRepo(db),
		Bonuses:      NewBonusTicketRepo(db),
	}
}

// DB exposes the underlying pool for health checks.
func (s *MySQLStore) DB() *sql.DB { return s.db }

// RunInTx begins a transaction, runs fn and commits. Any error from fn,
// or a panic, rolls the transaction back.
func (s *MySQLStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&mysqlTx{tx: tx, s: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

func (s *MySQLStore) CustomerByUserID(ctx context.Context, userID uint64) (*model.Customer, error) {
	return s.Customers.GetByUserID(ctx, userID)
}

func (s *MySQLStore) ScheduleByID(ctx context.Context, id uint64) (*model.Schedule, error) {
	return s.Schedules.GetByID(ctx, id)
}

func (s *MySQLStore) ReservationByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.Reservations.GetByID(ctx, id)
}

func (s *MySQLStore) ReservationsByCustomer(ctx context.Context, customerID uint64) ([]model.Reservation, error) {
	return s.Reservations.ListByCustomer(ctx, customerID)
}

func (s *MySQLStore) BonusTicketsByCustomer(ctx context.Context, customerID uint64) ([]model.BonusTicket, error) {
	return s.Bonuses.ListByCustomer(ctx, customerID)
}

func (s *MySQLStore) Refunds(ctx context.Context, pendingOnly bool) ([]model.Refund, error) {
	return s.Payments.ListRefunds(ctx, pendingOnly)
}

func (s *MySQLStore) ReservationsCreatedBetween(ctx context.Context, start, end time.Time, statuses []model.ReservationStatus) ([]model.ReservationRow, error) {
	return s.Reservations.CreatedBetween(ctx, start, end, statuses)
}

func (s *MySQLStore) PaymentsCreatedBetween(ctx context.Context, start, end time.Time, status model.PaymentStatus) ([]model.Payment, error) {
	return s.Payments.CreatedBetween(ctx, start, end, status)
}

func (s *MySQLStore) SearchSchedules(ctx context.Context, q ScheduleSearchQuery) ([]ScheduleSearchRow, int64, error) {
	return s.Schedules.Search(ctx, q)
}

func (s *MySQLStore) AllReservations(ctx context.Context, status model.ReservationStatus) ([]model.Reservation, error) {
	return s.Reservations.List(ctx, status)
}

func (s *MySQLStore) StationsByCity(ctx context.Context, cityID uint64) ([]model.Station, error) {
	return s.Routes.StationsByCity(ctx, cityID)
}

func (s *MySQLStore) ActiveRoutes(ctx context.Context, departureStationID, arrivalStationID uint64) ([]model.Route, error) {
	return s.Routes.Active(ctx, departureStationID, arrivalStationID)
}

// mysqlTx adapts the repositories' Tx methods to the Tx port.
type mysqlTx struct {
	tx *sql.Tx
	s  *MySQLStore
}

func (t *mysqlTx) LockCustomer(ctx context.Context, id uint64) (*model.Customer, error) {
	return t.s.Customers.LockTx(ctx, t.tx, id)
}

func (t *mysqlTx) UpdateCustomerSeatCounter(ctx context.Context, customerID uint64, counter int) error {
	return t.s.Customers.UpdateSeatCounterTx(ctx, t.tx, customerID, counter)
}

func (t *mysqlTx) LockSchedule(ctx context.Context, id uint64) (*model.Schedule, error) {
	return t.s.Schedules.LockTx(ctx, t.tx, id)
}

func (t *mysqlTx) DecrementSeats(ctx context.Context, scheduleID uint64, class model.FareClass, n int) error {
	return t.s.Schedules.DecrementSeatsTx(ctx, t.tx, scheduleID, class, n)
}

func (t *mysqlTx) ValidBonusTickets(ctx context.Context, customerID uint64, at time.Time) ([]model.BonusTicket, error) {
	return t.s.Bonuses.ValidForCustomerTx(ctx, t.tx, customerID, at)
}

func (t *mysqlTx) MarkBonusTicketUsed(ctx context.Context, id uint64, at time.Time) error {
	return t.s.Bonuses.MarkUsedTx(ctx, t.tx, id, at)
}

func (t *mysqlTx) CreateBonusTicket(ctx context.Context, b *model.BonusTicket) error {
	return t.s.Bonuses.CreateTx(ctx, t.tx, b)
}

func (t *mysqlTx) ReferenceExists(ctx context.Context, ref string) (bool, error) {
	return t.s.Reservations.ReferenceExistsTx(ctx, t.tx, ref)
}

func (t *mysqlTx) CreateReservation(ctx context.Context, r *model.Reservation) error {
	return t.s.Reservations.CreateTx(ctx, t.tx, r)
}

func (t *mysqlTx) CreateTickets(ctx context.Context, tickets []model.Ticket) error {
	return t.s.Reservations.CreateTicketsBulkTx(ctx, t.tx, tickets)
}

func (t *mysqlTx) LockReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return t.s.Reservations.LockTx(ctx, t.tx, id)
}

func (t *mysqlTx) UpdateReservationStatus(ctx context.Context, id uint64, status model.ReservationStatus) error {
	return t.s.Reservations.UpdateStatusTx(ctx, t.tx, id, status)
}

func (t *mysqlTx) CreatePayment(ctx context.Context, p *model.Payment) error {
	return t.s.Payments.CreateTx(ctx, t.tx, p)
}

func (t *mysqlTx) ReopenPayment(ctx context.Context, p *model.Payment) error {
	return t.s.Payments.ReopenTx(ctx, t.tx, p)
}

func (t *mysqlTx) UpdatePaymentStatus(ctx context.Context, id uint64, status model.PaymentStatus) error {
	return t.s.Payments.UpdateStatusTx(ctx, t.tx, id, status)
}

func (t *mysqlTx) CreateRefund(ctx context.Context, r *model.Refund) error {
	return t.s.Payments.CreateRefundTx(ctx, t.tx, r)
}

func (t *mysqlTx) LockRefund(ctx context.Context, id uint64) (*model.Refund, error) {
	return t.s.Payments.LockRefundTx(ctx, t.tx, id)
}

func (t *mysqlTx) MarkRefundProcessed(ctx context.Context, id uint64, at time.Time) error {
	return t.s.Payments.MarkRefundProcessedTx(ctx, t.tx, id, at)
}

func (t *mysqlTx) StationExists(ctx context.Context, id uint64) (bool, error) {
	return t.s.Routes.StationExistsTx(ctx, t.tx, id)
}

func (t *mysqlTx) RouteExists(ctx context.Context, departureStationID, arrivalStationID uint64) (bool, error) {
	return t.s.Routes.ExistsTx(ctx, t.tx, departureStationID, arrivalStationID)
}

func (t *mysqlTx) CreateRoute(ctx context.Context, r *model.Route) error {
	return t.s.Routes.CreateTx(ctx, t.tx, r)
}

func (t *mysqlTx) LockRoute(ctx context.Context, id uint64) (*model.Route, error) {
	return t.s.Routes.LockTx(ctx, t.tx, id)
}

func (t *mysqlTx) SchedulesByRoute(ctx context.Context, routeID uint64) ([]model.Schedule, error) {
	return t.s.Schedules.ListByRouteTx(ctx, t.tx, routeID)
}

func (t *mysqlTx) CreateSchedule(ctx context.Context, s *model.Schedule) error {
	return t.s.Schedules.CreateTx(ctx, t.tx, s)
}

// isDuplicateKey reports a MySQL 1062 unique violation.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// notFound maps sql.ErrNoRows to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
