package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/transport-booking/internal/model"
)

// ScheduleRepo manages persistence for schedules and their per-class
// seat counters.
type ScheduleRepo struct {
	db *sql.DB
}

// NewScheduleRepo constructs a ScheduleRepo with the given DB handle.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo { return &ScheduleRepo{db: db} }

const scheduleColumns = `id, route_id, departs_at, arrives_at,
	price_standard, price_business, price_first,
	seats_standard, seats_business, seats_first, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(sc rowScanner) (*model.Schedule, error) {
	var s model.Schedule
	err := sc.Scan(
		&s.ID, &s.RouteID, &s.DepartsAt, &s.ArrivesAt,
		&s.PriceStandard, &s.PriceBusiness, &s.PriceFirst,
		&s.SeatsStandard, &s.SeatsBusiness, &s.SeatsFirst, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByID retrieves a schedule without locking it. ErrNotFound is
// returned when no row matches.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uint64) (*model.Schedule, error) {
	q := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = ?`
	s, err := scanSchedule(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// LockTx reads the schedule with SELECT ... FOR UPDATE so that concurrent
// bookings on the same schedule serialise on the row.
func (r *ScheduleRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Schedule, error) {
	q := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = ? FOR UPDATE`
	s, err := scanSchedule(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// seatColumn maps a fare class onto its counter column. The result is
// only ever one of three literals so it is safe to splice into SQL.
func seatColumn(class model.FareClass) (string, error) {
	switch class {
	case model.FareStandard:
		return "seats_standard", nil
	case model.FareBusiness:
		return "seats_business", nil
	case model.FareFirst:
		return "seats_first", nil
	}
	return "", fmt.Errorf("unknown fare class %q", class)
}

// DecrementSeatsTx subtracts n from the class counter only when at least
// n seats remain. Zero affected rows means another transaction got there
// first and ErrConflict is returned.
func (r *ScheduleRepo) DecrementSeatsTx(ctx context.Context, tx *sql.Tx, scheduleID uint64, class model.FareClass, n int) error {
	col, err := seatColumn(class)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`UPDATE schedules SET %[1]s = %[1]s - ? WHERE id = ? AND %[1]s >= ?`, col)
	res, err := tx.ExecContext(ctx, q, n, scheduleID, n)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// ListByRouteTx returns every schedule on a route. Used for the overlap
// check when a new schedule is created under a locked route row.
func (r *ScheduleRepo) ListByRouteTx(ctx context.Context, tx *sql.Tx, routeID uint64) ([]model.Schedule, error) {
	q := `SELECT ` + scheduleColumns + ` FROM schedules WHERE route_id = ? ORDER BY departs_at`
	rows, err := tx.QueryContext(ctx, q, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// CreateTx inserts a schedule and populates its ID and created_at.
func (r *ScheduleRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.Schedule) error {
	const q = `INSERT INTO schedules (route_id, departs_at, arrives_at,
		price_standard, price_business, price_first,
		seats_standard, seats_business, seats_first)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, s.RouteID, s.DepartsAt.UTC(), s.ArrivesAt.UTC(),
		s.PriceStandard, s.PriceBusiness, s.PriceFirst,
		s.SeatsStandard, s.SeatsBusiness, s.SeatsFirst)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return tx.QueryRowContext(ctx, `SELECT created_at FROM schedules WHERE id = ?`, s.ID).Scan(&s.CreatedAt)
}
