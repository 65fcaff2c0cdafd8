package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/iliyamo/transport-booking/internal/model"
	"github.com/iliyamo/transport-booking/internal/repository"
)

// memTx mutates a cloned state; the owning Store swaps it in on success.
// Locks are implicit because the Store holds its write lock throughout.
type memTx struct {
	st  *state
	now func() time.Time
}

func (t *memTx) LockCustomer(_ context.Context, id uint64) (*model.Customer, error) {
	c, ok := t.st.customers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (t *memTx) UpdateCustomerSeatCounter(_ context.Context, customerID uint64, counter int) error {
	c, ok := t.st.customers[customerID]
	if !ok {
		return repository.ErrNotFound
	}
	c.ReservedSeatsCounter = counter
	t.st.customers[customerID] = c
	return nil
}

func (t *memTx) LockSchedule(_ context.Context, id uint64) (*model.Schedule, error) {
	s, ok := t.st.schedules[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (t *memTx) DecrementSeats(_ context.Context, scheduleID uint64, class model.FareClass, n int) error {
	s, ok := t.st.schedules[scheduleID]
	if !ok {
		return repository.ErrNotFound
	}
	if !class.Valid() || s.Seats(class) < n {
		return repository.ErrConflict
	}
	s.SetSeats(class, s.Seats(class)-n)
	t.st.schedules[scheduleID] = s
	return nil
}

func (t *memTx) ValidBonusTickets(_ context.Context, customerID uint64, at time.Time) ([]model.BonusTicket, error) {
	var out []model.BonusTicket
	for _, b := range t.st.bonuses {
		if b.CustomerID == customerID && b.ValidAt(at) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ExpiresAt.Before(out[j].ExpiresAt)
	})
	return out, nil
}

func (t *memTx) MarkBonusTicketUsed(_ context.Context, id uint64, at time.Time) error {
	b, ok := t.st.bonuses[id]
	if !ok {
		return repository.ErrNotFound
	}
	if b.Used {
		return repository.ErrConflict
	}
	b.Used = true
	b.UsedAt = &at
	t.st.bonuses[id] = b
	return nil
}

func (t *memTx) CreateBonusTicket(_ context.Context, b *model.BonusTicket) error {
	for _, existing := range t.st.bonuses {
		if existing.Code == b.Code {
			return repository.ErrConflict
		}
	}
	b.ID = t.st.id()
	t.st.bonuses[b.ID] = *b
	return nil
}

func (t *memTx) ReferenceExists(_ context.Context, ref string) (bool, error) {
	for _, r := range t.st.reservations {
		if r.Reference == ref {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) CreateReservation(ctx context.Context, r *model.Reservation) error {
	if taken, _ := t.ReferenceExists(ctx, r.Reference); taken {
		return repository.ErrConflict
	}
	r.ID = t.st.id()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = t.now()
	}
	r.UpdatedAt = r.CreatedAt
	stored := *r
	stored.Tickets = nil
	stored.Payment = nil
	t.st.reservations[r.ID] = stored
	return nil
}

func (t *memTx) CreateTickets(_ context.Context, tickets []model.Ticket) error {
	for _, tk := range tickets {
		if _, ok := t.st.reservations[tk.ReservationID]; !ok {
			return repository.ErrNotFound
		}
		for _, existing := range t.st.tickets[tk.ReservationID] {
			if existing.SeatLabel == tk.SeatLabel {
				return repository.ErrConflict
			}
		}
		tk.ID = t.st.id()
		t.st.tickets[tk.ReservationID] = append(t.st.tickets[tk.ReservationID], tk)
	}
	return nil
}

func (t *memTx) LockReservation(_ context.Context, id uint64) (*model.Reservation, error) {
	r, ok := t.st.reservation(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r, nil
}

func (t *memTx) UpdateReservationStatus(_ context.Context, id uint64, status model.ReservationStatus) error {
	r, ok := t.st.reservations[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = t.now()
	t.st.reservations[id] = r
	return nil
}

func (t *memTx) CreatePayment(_ context.Context, p *model.Payment) error {
	if _, ok := t.st.paymentByRes[p.ReservationID]; ok {
		return repository.ErrConflict
	}
	p.ID = t.st.id()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = t.now()
	}
	p.UpdatedAt = p.CreatedAt
	t.st.payments[p.ID] = *p
	t.st.paymentByRes[p.ReservationID] = p.ID
	return nil
}

func (t *memTx) ReopenPayment(_ context.Context, p *model.Payment) error {
	cur, ok := t.st.payments[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Status != model.PaymentFailed || cur.ReservationID != p.ReservationID {
		return repository.ErrConflict
	}
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = t.now()
	t.st.payments[p.ID] = *p
	return nil
}

func (t *memTx) UpdatePaymentStatus(_ context.Context, id uint64, status model.PaymentStatus) error {
	p, ok := t.st.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = t.now()
	t.st.payments[id] = p
	return nil
}

func (t *memTx) CreateRefund(_ context.Context, r *model.Refund) error {
	for _, existing := range t.st.refunds {
		if existing.PaymentID == r.PaymentID {
			return repository.ErrConflict
		}
	}
	r.ID = t.st.id()
	t.st.refunds[r.ID] = *r
	return nil
}

func (t *memTx) LockRefund(_ context.Context, id uint64) (*model.Refund, error) {
	r, ok := t.st.refunds[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (t *memTx) MarkRefundProcessed(_ context.Context, id uint64, at time.Time) error {
	r, ok := t.st.refunds[id]
	if !ok {
		return repository.ErrNotFound
	}
	if r.Processed {
		return repository.ErrConflict
	}
	r.Processed = true
	r.ProcessedAt = &at
	t.st.refunds[id] = r
	return nil
}

func (t *memTx) StationExists(_ context.Context, id uint64) (bool, error) {
	_, ok := t.st.stations[id]
	return ok, nil
}

func (t *memTx) RouteExists(_ context.Context, departureStationID, arrivalStationID uint64) (bool, error) {
	for _, r := range t.st.routes {
		if r.DepartureStationID == departureStationID && r.ArrivalStationID == arrivalStationID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) CreateRoute(ctx context.Context, r *model.Route) error {
	if dup, _ := t.RouteExists(ctx, r.DepartureStationID, r.ArrivalStationID); dup {
		return repository.ErrConflict
	}
	r.ID = t.st.id()
	t.st.routes[r.ID] = *r
	return nil
}

func (t *memTx) LockRoute(_ context.Context, id uint64) (*model.Route, error) {
	r, ok := t.st.routes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (t *memTx) SchedulesByRoute(_ context.Context, routeID uint64) ([]model.Schedule, error) {
	var out []model.Schedule
	for _, s := range t.st.schedules {
		if s.RouteID == routeID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartsAt.Before(out[j].DepartsAt) })
	return out, nil
}

func (t *memTx) CreateSchedule(_ context.Context, s *model.Schedule) error {
	if _, ok := t.st.routes[s.RouteID]; !ok {
		return repository.ErrNotFound
	}
	s.ID = t.st.id()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = t.now()
	}
	t.st.schedules[s.ID] = *s
	return nil
}
