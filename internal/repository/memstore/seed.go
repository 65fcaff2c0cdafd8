package memstore

import (
	"time"

	"github.com/iliyamo/transport-booking/internal/model"
)

// The Add* helpers insert reference rows directly. They assign the ID on
// the passed value and return it.

func (s *Store) AddCity(c *model.City) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.st.id()
	s.st.cities[c.ID] = *c
	return c.ID
}

func (s *Store) AddStation(st *model.Station) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.ID = s.st.id()
	s.st.stations[st.ID] = *st
	return st.ID
}

func (s *Store) AddRoute(r *model.Route) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.st.id()
	s.st.routes[r.ID] = *r
	return r.ID
}

func (s *Store) AddSchedule(sc *model.Schedule) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc.ID = s.st.id()
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = s.Now()
	}
	s.st.schedules[sc.ID] = *sc
	return sc.ID
}

func (s *Store) AddCustomer(c *model.Customer) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.st.id()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.Now()
	}
	s.st.customers[c.ID] = *c
	return c.ID
}

func (s *Store) AddBonusTicket(b *model.BonusTicket) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.st.id()
	s.st.bonuses[b.ID] = *b
	return b.ID
}

// Customer returns a snapshot of a customer row.
func (s *Store) Customer(id uint64) (model.Customer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.st.customers[id]
	return c, ok
}

// ReservationCount reports how many reservations exist.
func (s *Store) ReservationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.reservations)
}

// SeedDemo loads a small network for STORE_DRIVER=memory: one route with
// a departure tomorrow, a customer bound to account 1 and staff account 2
// (staff need no profile).
func (s *Store) SeedDemo() {
	bujumbura := s.AddCity(&model.City{Name: "Bujumbura", Code: "BJM"})
	gitega := s.AddCity(&model.City{Name: "Gitega", Code: "GIT"})
	from := s.AddStation(&model.Station{CityID: bujumbura, Name: "Bujumbura Central"})
	to := s.AddStation(&model.Station{CityID: gitega, Name: "Gitega Terminal"})
	route := s.AddRoute(&model.Route{DepartureStationID: from, ArrivalStationID: to, DurationMinutes: 150, DistanceKm: 100, Active: true})
	dep := s.Now().Add(24 * time.Hour).Truncate(time.Hour)
	s.AddSchedule(&model.Schedule{
		RouteID:       route,
		DepartsAt:     dep,
		ArrivesAt:     dep.Add(150 * time.Minute),
		PriceStandard: 10000,
		PriceBusiness: 18000,
		PriceFirst:    25000,
		SeatsStandard: 40,
		SeatsBusiness: 12,
		SeatsFirst:    6,
	})
	s.AddCustomer(&model.Customer{UserID: 1, Email: "demo@example.com", FullName: "Demo Customer"})
}
