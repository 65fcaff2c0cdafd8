package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/transport-booking/internal/model"
)

// PaymentRepo stores payments and the refunds raised against them.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo constructs a PaymentRepo.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, reservation_id, amount, status, operator, phone, external_ref, created_at, updated_at`

func scanPayment(sc rowScanner) (*model.Payment, error) {
	var p model.Payment
	var op, phone, ext sql.NullString
	if err := sc.Scan(&p.ID, &p.ReservationID, &p.Amount, &p.Status, &op, &phone, &ext, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if op.Valid {
		o := model.PaymentOperator(op.String)
		p.Operator = &o
	}
	if phone.Valid {
		s := phone.String
		p.Phone = &s
	}
	if ext.Valid {
		s := ext.String
		p.ExternalRef = &s
	}
	return &p, nil
}

// paymentOf returns the reservation's payment or nil when there is none.
func paymentOf(ctx context.Context, q queryer, reservationID uint64) (*model.Payment, error) {
	sel := `SELECT ` + paymentColumns + ` FROM payments WHERE reservation_id = ?`
	p, err := scanPayment(q.QueryRowContext(ctx, sel, reservationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// CreateTx inserts a payment. The reservation_id column is unique; a
// second payment row for the same reservation yields ErrConflict, and a
// retry after a failure goes through ReopenTx instead.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	const q = `INSERT INTO payments (reservation_id, amount, status, operator, phone, external_ref) VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, p.ReservationID, p.Amount, p.Status, p.Operator, p.Phone, p.ExternalRef)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return tx.QueryRowContext(ctx, `SELECT created_at, updated_at FROM payments WHERE id = ?`, p.ID).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// ReopenTx starts a new attempt on a FAILED payment row, replacing the
// operator, phone and external reference. Rows in any other status are
// left alone and ErrConflict is returned.
func (r *PaymentRepo) ReopenTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	const q = `UPDATE payments SET amount = ?, status = ?, operator = ?, phone = ?, external_ref = ?
	           WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, p.Amount, p.Status, p.Operator, p.Phone, p.ExternalRef, p.ID, model.PaymentFailed)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return tx.QueryRowContext(ctx, `SELECT created_at, updated_at FROM payments WHERE id = ?`, p.ID).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// UpdateStatusTx sets the payment status.
func (r *PaymentRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.PaymentStatus) error {
	_, err := tx.ExecContext(ctx, `UPDATE payments SET status = ? WHERE id = ?`, status, id)
	return err
}

// CreatedBetween returns the payments with the given status created in
// [start, end).
func (r *PaymentRepo) CreatedBetween(ctx context.Context, start, end time.Time, status model.PaymentStatus) ([]model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE status = ? AND created_at >= ? AND created_at < ? ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q, status, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

const refundColumns = `id, payment_id, amount, reason, processed, requested_at, processed_at`

func scanRefund(sc rowScanner) (*model.Refund, error) {
	var rf model.Refund
	var processedAt sql.NullTime
	if err := sc.Scan(&rf.ID, &rf.PaymentID, &rf.Amount, &rf.Reason, &rf.Processed, &rf.RequestedAt, &processedAt); err != nil {
		return nil, err
	}
	if processedAt.Valid {
		t := processedAt.Time
		rf.ProcessedAt = &t
	}
	return &rf, nil
}

// CreateRefundTx inserts a refund request for a payment.
func (r *PaymentRepo) CreateRefundTx(ctx context.Context, tx *sql.Tx, rf *model.Refund) error {
	const q = `INSERT INTO refunds (payment_id, amount, reason, processed, requested_at) VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, rf.PaymentID, rf.Amount, rf.Reason, rf.Processed, rf.RequestedAt.UTC())
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rf.ID = uint64(id)
	return nil
}

// LockRefundTx reads a refund FOR UPDATE.
func (r *PaymentRepo) LockRefundTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Refund, error) {
	q := `SELECT ` + refundColumns + ` FROM refunds WHERE id = ? FOR UPDATE`
	rf, err := scanRefund(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err)
	}
	return rf, nil
}

// MarkRefundProcessedTx records that staff paid the refund out.
func (r *PaymentRepo) MarkRefundProcessedTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error {
	const q = `UPDATE refunds SET processed = TRUE, processed_at = ? WHERE id = ? AND processed = FALSE`
	res, err := tx.ExecContext(ctx, q, at.UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// ListRefunds returns refunds oldest first, optionally only unprocessed ones.
func (r *PaymentRepo) ListRefunds(ctx context.Context, pendingOnly bool) ([]model.Refund, error) {
	q := `SELECT ` + refundColumns + ` FROM refunds`
	if pendingOnly {
		q += ` WHERE processed = FALSE`
	}
	q += ` ORDER BY requested_at, id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Refund
	for rows.Next() {
		rf, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rf)
	}
	return out, rows.Err()
}
