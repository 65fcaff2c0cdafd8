package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/transport-booking/internal/model"
)

// BonusTicketRepo stores loyalty bonus tickets.
type BonusTicketRepo struct {
	db *sql.DB
}

// NewBonusTicketRepo constructs a BonusTicketRepo.
func NewBonusTicketRepo(db *sql.DB) *BonusTicketRepo { return &BonusTicketRepo{db: db} }

const bonusColumns = `id, customer_id, code, amount, seats_granted, used, used_at, created_at, expires_at`

func scanBonusRows(rows *sql.Rows) ([]model.BonusTicket, error) {
	defer rows.Close()
	var out []model.BonusTicket
	for rows.Next() {
		var b model.BonusTicket
		var usedAt sql.NullTime
		if err := rows.Scan(&b.ID, &b.CustomerID, &b.Code, &b.Amount, &b.SeatsGranted, &b.Used, &usedAt, &b.CreatedAt, &b.ExpiresAt); err != nil {
			return nil, err
		}
		if usedAt.Valid {
			t := usedAt.Time
			b.UsedAt = &t
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListByCustomer returns all bonus tickets of a customer, newest first.
func (r *BonusTicketRepo) ListByCustomer(ctx context.Context, customerID uint64) ([]model.BonusTicket, error) {
	q := `SELECT ` + bonusColumns + ` FROM bonus_tickets WHERE customer_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, customerID)
	if err != nil {
		return nil, err
	}
	return scanBonusRows(rows)
}

// ValidForCustomerTx locks and returns the unused, unexpired tickets of a
// customer, soonest expiry first.
func (r *BonusTicketRepo) ValidForCustomerTx(ctx context.Context, tx *sql.Tx, customerID uint64, at time.Time) ([]model.BonusTicket, error) {
	q := `SELECT ` + bonusColumns + ` FROM bonus_tickets
	      WHERE customer_id = ? AND used = FALSE AND expires_at > ?
	      ORDER BY expires_at, id FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, customerID, at.UTC())
	if err != nil {
		return nil, err
	}
	return scanBonusRows(rows)
}

// MarkUsedTx flips the used flag. A ticket that is already used yields
// ErrConflict.
func (r *BonusTicketRepo) MarkUsedTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error {
	const q = `UPDATE bonus_tickets SET used = TRUE, used_at = ? WHERE id = ? AND used = FALSE`
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

// CreateTx inserts a bonus ticket. A code collision is reported as
// ErrConflict so the caller can draw a new code.
func (r *BonusTicketRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.BonusTicket) error {
	const q = `INSERT INTO bonus_tickets (customer_id, code, amount, seats_granted, used, created_at, expires_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, b.CustomerID, b.Code, b.Amount, b.SeatsGranted, b.Used, b.CreatedAt.UTC(), b.ExpiresAt.UTC())
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
	b.ID = uint64(id)
	return nil
}
