// Package memstore is an in-memory implementation of repository.Store.
// Transactions are serialised on one mutex and run against a copy of the
// state that replaces the live state only when the callback succeeds, so
// a failed transaction leaves nothing behind.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/transport-booking/internal/model"
	"github.com/iliyamo/transport-booking/internal/repository"
)

type state struct {
	nextID       uint64
	cities       map[uint64]model.City
	stations     map[uint64]model.Station
	routes       map[uint64]model.Route
	schedules    map[uint64]model.Schedule
	customers    map[uint64]model.Customer
	reservations map[uint64]model.Reservation
	tickets      map[uint64][]model.Ticket
	payments     map[uint64]model.Payment
	paymentByRes map[uint64]uint64
	refunds      map[uint64]model.Refund
	bonuses      map[uint64]model.BonusTicket
}

func newState() *state {
	return &state{
		cities:       map[uint64]model.City{},
		stations:     map[uint64]model.Station{},
		routes:       map[uint64]model.Route{},
		schedules:    map[uint64]model.Schedule{},
		customers:    map[uint64]model.Customer{},
		reservations: map[uint64]model.Reservation{},
		tickets:      map[uint64][]model.Ticket{},
		payments:     map[uint64]model.Payment{},
		paymentByRes: map[uint64]uint64{},
		refunds:      map[uint64]model.Refund{},
		bonuses:      map[uint64]model.BonusTicket{},
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	c := &state{
		nextID:       s.nextID,
		cities:       copyMap(s.cities),
		stations:     copyMap(s.stations),
		routes:       copyMap(s.routes),
		schedules:    copyMap(s.schedules),
		customers:    copyMap(s.customers),
		reservations: copyMap(s.reservations),
		tickets:      make(map[uint64][]model.Ticket, len(s.tickets)),
		payments:     copyMap(s.payments),
		paymentByRes: copyMap(s.paymentByRes),
		refunds:      copyMap(s.refunds),
		bonuses:      copyMap(s.bonuses),
	}
	for k, v := range s.tickets {
		c.tickets[k] = append([]model.Ticket(nil), v...)
	}
	return c
}

func (s *state) id() uint64 {
	s.nextID++
	return s.nextID
}

// reservation returns a reservation with tickets and payment attached.
func (s *state) reservation(id uint64) (*model.Reservation, bool) {
	r, ok := s.reservations[id]
	if !ok {
		return nil, false
	}
	r.Tickets = append([]model.Ticket{}, s.tickets[id]...)
	r.Payment = nil
	if pid, ok := s.paymentByRes[id]; ok {
		p := s.payments[pid]
		r.Payment = &p
	}
	return &r, true
}

var _ repository.Store = (*Store)(nil)

// Store is safe for concurrent use.
type Store struct {
	mu sync.RWMutex
	st *state
	// Now stamps created_at style columns; tests may replace it.
	Now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{st: newState(), Now: func() time.Time { return time.Now().UTC() }}
}

// RunInTx runs fn against a private copy of the state while holding the
// write lock and publishes the copy only when fn returns nil.
func (s *Store) RunInTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(&memTx{st: work, now: s.Now}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) CustomerByUserID(_ context.Context, userID uint64) (*model.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.st.customers {
		if c.UserID == userID {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) ScheduleByID(_ context.Context, id uint64) (*model.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.st.schedules[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sc, nil
}

func (s *Store) ReservationByID(_ context.Context, id uint64) (*model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.st.reservation(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r, nil
}

func (s *Store) ReservationsByCustomer(_ context.Context, customerID uint64) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Reservation
	for id, r := range s.st.reservations {
		if r.CustomerID == customerID {
			full, _ := s.st.reservation(id)
			out = append(out, *full)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) BonusTicketsByCustomer(_ context.Context, customerID uint64) ([]model.BonusTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.BonusTicket
	for _, b := range s.st.bonuses {
		if b.CustomerID == customerID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) Refunds(_ context.Context, pendingOnly bool) ([]model.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Refund
	for _, rf := range s.st.refunds {
		if pendingOnly && rf.Processed {
			continue
		}
		out = append(out, rf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

func (s *Store) ReservationsCreatedBetween(_ context.Context, start, end time.Time, statuses []model.ReservationStatus) ([]model.ReservationRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := map[model.ReservationStatus]bool{}
	for _, st := range statuses {
		want[st] = true
	}
	var out []model.ReservationRow
	for _, r := range s.st.reservations {
		if want[r.Status] && inRange(r.CreatedAt, start, end) {
			out = append(out, model.ReservationRow{ID: r.ID, TotalAmount: r.TotalAmount, Status: r.Status, CreatedAt: r.CreatedAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) PaymentsCreatedBetween(_ context.Context, start, end time.Time, status model.PaymentStatus) ([]model.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Payment
	for _, p := range s.st.payments {
		if p.Status == status && inRange(p.CreatedAt, start, end) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SearchSchedules(_ context.Context, q repository.ScheduleSearchQuery) ([]repository.ScheduleSearchRow, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var dayStart, dayEnd time.Time
	if q.Day != nil {
		dayStart = q.Day.UTC().Truncate(24 * time.Hour)
		dayEnd = dayStart.Add(24 * time.Hour)
	}
	var hits []repository.ScheduleSearchRow
	for _, sc := range s.st.schedules {
		if sc.DepartsAt.Before(q.After) || sc.TotalSeats() <= 0 {
			continue
		}
		if q.Day != nil && !inRange(sc.DepartsAt, dayStart, dayEnd) {
			continue
		}
		rt, ok := s.st.routes[sc.RouteID]
		if !ok {
			continue
		}
		if q.DepartureStationID != 0 && rt.DepartureStationID != q.DepartureStationID {
			continue
		}
		if q.ArrivalStationID != 0 && rt.ArrivalStationID != q.ArrivalStationID {
			continue
		}
		hits = append(hits, repository.ScheduleSearchRow{
			Schedule:         sc,
			DepartureStation: s.st.stations[rt.DepartureStationID].Name,
			ArrivalStation:   s.st.stations[rt.ArrivalStationID].Name,
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].DepartsAt.Equal(hits[j].DepartsAt) {
			return hits[i].ID < hits[j].ID
		}
		return hits[i].DepartsAt.Before(hits[j].DepartsAt)
	})
	total := int64(len(hits))
	from := q.Offset()
	if from >= len(hits) {
		return []repository.ScheduleSearchRow{}, total, nil
	}
	to := len(hits)
	if q.PageSize > 0 && from+q.PageSize < to {
		to = from + q.PageSize
	}
	return hits[from:to], total, nil
}

func (s *Store) AllReservations(_ context.Context, status model.ReservationStatus) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Reservation
	for id, r := range s.st.reservations {
		if status != "" && r.Status != status {
			continue
		}
		full, _ := s.st.reservation(id)
		out = append(out, *full)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) StationsByCity(_ context.Context, cityID uint64) ([]model.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Station{}
	for _, st := range s.st.stations {
		if st.CityID == cityID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) ActiveRoutes(_ context.Context, departureStationID, arrivalStationID uint64) ([]model.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Route{}
	for _, rt := range s.st.routes {
		if rt.Active && rt.DepartureStationID == departureStationID && rt.ArrivalStationID == arrivalStationID {
			out = append(out, rt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
