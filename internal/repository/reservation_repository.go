package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/transport-booking/internal/model"
)

// ReservationRepo provides CRUD operations for reservations and their
// tickets. Tickets live in the tickets table and are always written in
// the same transaction as their reservation. All timestamp fields are
// stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, customer_id, schedule_id, reference, status, total_amount, comments, created_at, updated_at`

func scanReservation(sc rowScanner) (*model.Reservation, error) {
	var r model.Reservation
	var comments sql.NullString
	err := sc.Scan(&r.ID, &r.CustomerID, &r.ScheduleID, &r.Reference, &r.Status, &r.TotalAmount, &comments, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if comments.Valid {
		c := comments.String
		r.Comments = &c
	}
	return &r, nil
}

// loadDetails attaches tickets and the optional payment to r.
func loadDetails(ctx context.Context, q queryer, r *model.Reservation) error {
	tickets, err := ticketsOf(ctx, q, r.ID)
	if err != nil {
		return err
	}
	r.Tickets = tickets
	p, err := paymentOf(ctx, q, r.ID)
	if err != nil {
		return err
	}
	r.Payment = p
	return nil
}

func ticketsOf(ctx context.Context, q queryer, reservationID uint64) ([]model.Ticket, error) {
	const sel = `SELECT id, reservation_id, fare_class, price, seat_label FROM tickets WHERE reservation_id = ? ORDER BY id`
	rows, err := q.QueryContext(ctx, sel, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tickets := []model.Ticket{}
	for rows.Next() {
		var t model.Ticket
		if err := rows.Scan(&t.ID, &t.ReservationID, &t.FareClass, &t.Price, &t.SeatLabel); err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// GetByID returns a reservation with its tickets and payment.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err)
	}
	if err := loadDetails(ctx, r.db, res); err != nil {
		return nil, err
	}
	return res, nil
}

// LockTx reads a reservation FOR UPDATE together with its tickets and
// payment. Cancellation and payment transitions start here.
func (r *ReservationRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ? FOR UPDATE`
	res, err := scanReservation(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err)
	}
	if err := loadDetails(ctx, tx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// ListByCustomer returns the customer's reservations, newest first, with
// tickets and payments attached.
func (r *ReservationRepo) ListByCustomer(ctx context.Context, customerID uint64) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE customer_id = ? ORDER BY created_at DESC, id DESC`
	return r.listDetailed(ctx, q, customerID)
}

// List returns all reservations, newest first, optionally restricted to one
// status.
func (r *ReservationRepo) List(ctx context.Context, status model.ReservationStatus) ([]model.Reservation, error) {
	if status == "" {
		return r.listDetailed(ctx, `SELECT `+reservationColumns+` FROM reservations ORDER BY created_at DESC, id DESC`)
	}
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE status = ? ORDER BY created_at DESC, id DESC`
	return r.listDetailed(ctx, q, status)
}

// listDetailed runs q and attaches tickets and payments once the row
// cursor is closed.
func (r *ReservationRepo) listDetailed(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	for i := range out {
		if err := loadDetails(ctx, r.db, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReferenceExistsTx reports whether a reference is already taken.
func (r *ReservationRepo) ReferenceExistsTx(ctx context.Context, tx *sql.Tx, ref string) (bool, error) {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE reference = ?`, ref).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateTx inserts a new reservation within the scope of an existing
// transaction. It populates the generated ID and timestamps on the
// provided record. A duplicate reference is reported as ErrConflict.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (customer_id, schedule_id, reference, status, total_amount, comments)
	           VALUES (?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, res.CustomerID, res.ScheduleID, res.Reference, res.Status, res.TotalAmount, res.Comments)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	// Query back the timestamps populated by column defaults
	const sel = `SELECT created_at, updated_at FROM reservations WHERE id = ?`
	return tx.QueryRowContext(ctx, sel, res.ID).Scan(&res.CreatedAt, &res.UpdatedAt)
}

// CreateTicketsBulkTx inserts multiple tickets in a single statement.
// Passing an empty slice has no effect and returns nil.
func (r *ReservationRepo) CreateTicketsBulkTx(ctx context.Context, tx *sql.Tx, tickets []model.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO tickets (reservation_id, fare_class, price, seat_label) VALUES `)
	args := make([]any, 0, len(tickets)*4)
	for i, t := range tickets {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?)")
		args = append(args, t.ReservationID, t.FareClass, t.Price, t.SeatLabel)
	}
	_, err := tx.ExecContext(ctx, sb.String(), args...)
	return err
}

// UpdateStatusTx sets the reservation status.
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.ReservationStatus) error {
	const q = `UPDATE reservations SET status = ? WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, status, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreatedBetween returns the reservations created in [start, end) whose
// status is one of statuses.
func (r *ReservationRepo) CreatedBetween(ctx context.Context, start, end time.Time, statuses []model.ReservationStatus) ([]model.ReservationRow, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	q := `SELECT id, total_amount, status, created_at FROM reservations
	      WHERE created_at >= ? AND created_at < ? AND status IN (` + placeholders + `)
	      ORDER BY created_at`
	args := []any{start.UTC(), end.UTC()}
	for _, s := range statuses {
		args = append(args, s)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ReservationRow
	for rows.Next() {
		var row model.ReservationRow
		if err := rows.Scan(&row.ID, &row.TotalAmount, &row.Status, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
