package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/transport-booking/internal/model"
)

// CustomerRepo provides access to customer profiles and their loyalty
// seat counter.
type CustomerRepo struct {
	db *sql.DB
}

// NewCustomerRepo returns a new CustomerRepo bound to the given database.
func NewCustomerRepo(db *sql.DB) *CustomerRepo { return &CustomerRepo{db: db} }

const customerColumns = `id, user_id, email, full_name, phone, reserved_seats_counter, created_at`

func scanCustomer(sc rowScanner) (*model.Customer, error) {
	var c model.Customer
	var phone sql.NullString
	if err := sc.Scan(&c.ID, &c.UserID, &c.Email, &c.FullName, &phone, &c.ReservedSeatsCounter, &c.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	if phone.Valid {
		p := phone.String
		c.Phone = &p
	}
	return &c, nil
}

// GetByUserID resolves the customer profile of an account.
func (r *CustomerRepo) GetByUserID(ctx context.Context, userID uint64) (*model.Customer, error) {
	q := `SELECT ` + customerColumns + ` FROM customers WHERE user_id = ?`
	return scanCustomer(r.db.QueryRowContext(ctx, q, userID))
}

// LockTx reads a customer FOR UPDATE. Bookings and cancellations take
// this lock before touching the loyalty counter.
func (r *CustomerRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Customer, error) {
	q := `SELECT ` + customerColumns + ` FROM customers WHERE id = ? FOR UPDATE`
	return scanCustomer(tx.QueryRowContext(ctx, q, id))
}

// UpdateSeatCounterTx stores the new loyalty counter value.
func (r *CustomerRepo) UpdateSeatCounterTx(ctx context.Context, tx *sql.Tx, customerID uint64, counter int) error {
	const q = `UPDATE customers SET reserved_seats_counter = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, counter, customerID)
	return err
}
