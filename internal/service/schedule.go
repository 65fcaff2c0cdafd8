package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/transport-booking/internal/model"
	"github.com/iliyamo/transport-booking/internal/repository"
)

// RouteInput is the staff input for CreateRoute.
type RouteInput struct {
	DepartureStationID uint64 `json:"departure_station_id"`
	ArrivalStationID   uint64 `json:"arrival_station_id"`
	DurationMinutes    int    `json:"duration_minutes"`
	DistanceKm         int    `json:"distance_km"`
}

// ScheduleInput is the staff input for CreateSchedule.
type ScheduleInput struct {
	RouteID       uint64    `json:"route_id"`
	DepartsAt     time.Time `json:"departs_at"`
	ArrivesAt     time.Time `json:"arrives_at"`
	PriceStandard int64     `json:"price_standard"`
	PriceBusiness int64     `json:"price_business"`
	PriceFirst    int64     `json:"price_first"`
	SeatsStandard int       `json:"seats_standard"`
	SeatsBusiness int       `json:"seats_business"`
	SeatsFirst    int       `json:"seats_first"`
}

// ScheduleService maintains routes and schedules and serves the public
// availability view.
type ScheduleService struct {
	store repository.Store
	cache *AvailabilityCache
	log   *zap.Logger
	Now   func() time.Time
}

// NewScheduleService wires a ScheduleService. cache may be nil.
func NewScheduleService(store repository.Store, cache *AvailabilityCache, log *zap.Logger) *ScheduleService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ScheduleService{store: store, cache: cache, log: log, Now: func() time.Time { return time.Now().UTC() }}
}

// CreateRoute adds a route between two distinct existing stations.
func (s *ScheduleService) CreateRoute(ctx context.Context, actor model.Actor, in RouteInput) (*model.Route, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: routes are managed by staff", ErrForbidden)
	}
	if in.DepartureStationID == 0 || in.ArrivalStationID == 0 {
		return nil, invalid("departure and arrival stations are required")
	}
	if in.DepartureStationID == in.ArrivalStationID {
		return nil, invalid("departure and arrival stations must differ")
	}
	if in.DurationMinutes <= 0 {
		return nil, invalid("duration must be positive")
	}
	if in.DistanceKm < 0 {
		return nil, invalid("distance cannot be negative")
	}
	rt := &model.Route{
		DepartureStationID: in.DepartureStationID,
		ArrivalStationID:   in.ArrivalStationID,
		DurationMinutes:    in.DurationMinutes,
		DistanceKm:         in.DistanceKm,
		Active:             true,
	}
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		for _, id := range []uint64{in.DepartureStationID, in.ArrivalStationID} {
			ok, err := tx.StationExists(ctx, id)
			if err != nil {
				return fmt.Errorf("load station: %w", err)
			}
			if !ok {
				return fmt.Errorf("%w: station %d", ErrNotFound, id)
			}
		}
		dup, err := tx.RouteExists(ctx, in.DepartureStationID, in.ArrivalStationID)
		if err != nil {
			return fmt.Errorf("check route: %w", err)
		}
		if dup {
			return invalid("a route between these stations already exists")
		}
		if err := tx.CreateRoute(ctx, rt); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return invalid("a route between these stations already exists")
			}
			return fmt.Errorf("create route: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func validateSchedule(in ScheduleInput) error {
	if in.RouteID == 0 {
		return invalid("route id is required")
	}
	if in.DepartsAt.IsZero() || in.ArrivesAt.IsZero() {
		return invalid("departure and arrival times are required")
	}
	if !in.ArrivesAt.After(in.DepartsAt) {
		return invalid("arrival must be after departure")
	}
	if in.PriceStandard <= 0 || in.PriceBusiness <= 0 || in.PriceFirst <= 0 {
		return invalid("every fare class needs a positive price")
	}
	if in.SeatsStandard < 0 || in.SeatsBusiness < 0 || in.SeatsFirst < 0 {
		return invalid("seat counts cannot be negative")
	}
	return nil
}

// CreateSchedule adds a departure to a route. The route row is locked
// while existing schedules are checked for overlap, so two concurrent
// creations cannot both pass.
func (s *ScheduleService) CreateSchedule(ctx context.Context, actor model.Actor, in ScheduleInput) (*model.Schedule, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: schedules are managed by staff", ErrForbidden)
	}
	if err := validateSchedule(in); err != nil {
		return nil, err
	}
	sc := &model.Schedule{
		RouteID:       in.RouteID,
		DepartsAt:     in.DepartsAt.UTC(),
		ArrivesAt:     in.ArrivesAt.UTC(),
		PriceStandard: in.PriceStandard,
		PriceBusiness: in.PriceBusiness,
		PriceFirst:    in.PriceFirst,
		SeatsStandard: in.SeatsStandard,
		SeatsBusiness: in.SeatsBusiness,
		SeatsFirst:    in.SeatsFirst,
	}
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.LockRoute(ctx, in.RouteID); err != nil {
			return lookup("route", err)
		}
		existing, err := tx.SchedulesByRoute(ctx, in.RouteID)
		if err != nil {
			return fmt.Errorf("load schedules: %w", err)
		}
		for i := range existing {
			if existing[i].Overlaps(sc.DepartsAt, sc.ArrivesAt) {
				return invalid("schedule overlaps departure %d on the same route", existing[i].ID)
			}
		}
		if err := tx.CreateSchedule(ctx, sc); err != nil {
			return fmt.Errorf("create schedule: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("schedule created", zap.Uint64("schedule_id", sc.ID), zap.Uint64("route_id", sc.RouteID))
	return sc, nil
}

// Availability returns per-class seats and prices for a schedule, served
// from Redis when a fresh copy is cached.
func (s *ScheduleService) Availability(ctx context.Context, scheduleID uint64) (*model.Availability, error) {
	if a, hit, err := s.cache.Get(ctx, scheduleID); err != nil {
		s.log.Warn("availability cache read failed", zap.Uint64("schedule_id", scheduleID), zap.Error(err))
	} else if hit {
		return a, nil
	}
	sc, err := s.store.ScheduleByID(ctx, scheduleID)
	if err != nil {
		return nil, lookup("schedule", err)
	}
	a := model.AvailabilityOf(sc)
	if err := s.cache.Set(ctx, a); err != nil {
		s.log.Warn("availability cache write failed", zap.Uint64("schedule_id", scheduleID), zap.Error(err))
	}
	return &a, nil
}

const (
	DefaultSearchPageSize = 10
	MaxSearchPageSize     = 100
)

// SearchInput narrows Search. Zero values mean "any station", "any day"
// and the first page of DefaultSearchPageSize rows.
type SearchInput struct {
	DepartureStationID uint64
	ArrivalStationID   uint64
	Day                *time.Time
	Page               int
	PageSize           int
}

// SearchPage is one page of upcoming departures.
type SearchPage struct {
	Items    []repository.ScheduleSearchRow `json:"items"`
	Total    int64                          `json:"total"`
	Page     int                            `json:"page"`
	PageSize int                            `json:"page_size"`
}

// Search lists departures that have not left yet and still have seats,
// earliest first.
func (s *ScheduleService) Search(ctx context.Context, in SearchInput) (*SearchPage, error) {
	if in.Page < 0 || in.PageSize < 0 {
		return nil, invalid("page and page_size cannot be negative")
	}
	if in.PageSize > MaxSearchPageSize {
		return nil, invalid("page_size cannot exceed %d", MaxSearchPageSize)
	}
	if in.Page == 0 {
		in.Page = 1
	}
	if in.PageSize == 0 {
		in.PageSize = DefaultSearchPageSize
	}
	q := repository.ScheduleSearchQuery{
		DepartureStationID: in.DepartureStationID,
		ArrivalStationID:   in.ArrivalStationID,
		Day:                in.Day,
		After:              s.Now(),
		Page:               in.Page,
		PageSize:           in.PageSize,
	}
	rows, total, err := s.store.SearchSchedules(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search schedules: %w", err)
	}
	if rows == nil {
		rows = []repository.ScheduleSearchRow{}
	}
	return &SearchPage{Items: rows, Total: total, Page: in.Page, PageSize: in.PageSize}, nil
}

// Stations lists the stations of a city.
func (s *ScheduleService) Stations(ctx context.Context, cityID uint64) ([]model.Station, error) {
	if cityID == 0 {
		return nil, invalid("city id is required")
	}
	out, err := s.store.StationsByCity(ctx, cityID)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	return out, nil
}

// Routes lists the active routes between two stations. A missing station
// yields an empty list.
func (s *ScheduleService) Routes(ctx context.Context, departureStationID, arrivalStationID uint64) ([]model.Route, error) {
	if departureStationID == 0 || arrivalStationID == 0 {
		return []model.Route{}, nil
	}
	out, err := s.store.ActiveRoutes(ctx, departureStationID, arrivalStationID)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	return out, nil
}
