package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/transport-booking/internal/model"
)

// RouteRepo manages routes and the station reference data they point at.
type RouteRepo struct {
	db *sql.DB
}

// NewRouteRepo constructs a RouteRepo with the given DB handle.
func NewRouteRepo(db *sql.DB) *RouteRepo { return &RouteRepo{db: db} }

// StationExistsTx reports whether a station row exists.
func (r *RouteRepo) StationExistsTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM stations WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// ExistsTx reports whether a route already links the two stations in that
// direction.
func (r *RouteRepo) ExistsTx(ctx context.Context, tx *sql.Tx, departureStationID, arrivalStationID uint64) (bool, error) {
	const q = `SELECT COUNT(*) FROM routes WHERE departure_station_id = ? AND arrival_station_id = ?`
	var n int
	if err := tx.QueryRowContext(ctx, q, departureStationID, arrivalStationID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateTx inserts a route. A duplicate station pair surfaces as
// ErrConflict from the unique key.
func (r *RouteRepo) CreateTx(ctx context.Context, tx *sql.Tx, rt *model.Route) error {
	const q = `INSERT INTO routes (departure_station_id, arrival_station_id, duration_minutes, distance_km, active)
	           VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, rt.DepartureStationID, rt.ArrivalStationID, rt.DurationMinutes, rt.DistanceKm, rt.Active)
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
	rt.ID = uint64(id)
	return nil
}

// LockTx reads a route row FOR UPDATE. Schedule creation holds this lock
// while it checks for overlapping departures.
func (r *RouteRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Route, error) {
	const q = `SELECT id, departure_station_id, arrival_station_id, duration_minutes, distance_km, active
	           FROM routes WHERE id = ? FOR UPDATE`
	var rt model.Route
	err := tx.QueryRowContext(ctx, q, id).Scan(
		&rt.ID, &rt.DepartureStationID, &rt.ArrivalStationID, &rt.DurationMinutes, &rt.DistanceKm, &rt.Active,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &rt, nil
}

// StationsByCity lists a city's stations by name.
func (r *RouteRepo) StationsByCity(ctx context.Context, cityID uint64) ([]model.Station, error) {
	const q = `SELECT id, city_id, name, address FROM stations WHERE city_id = ? ORDER BY name, id`
	rows, err := r.db.QueryContext(ctx, q, cityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Station{}
	for rows.Next() {
		var st model.Station
		var addr sql.NullString
		if err := rows.Scan(&st.ID, &st.CityID, &st.Name, &addr); err != nil {
			return nil, err
		}
		st.Address = addr.String
		out = append(out, st)
	}
	return out, rows.Err()
}

// Active lists the active routes from one station to another.
func (r *RouteRepo) Active(ctx context.Context, departureStationID, arrivalStationID uint64) ([]model.Route, error) {
	const q = `SELECT id, departure_station_id, arrival_station_id, duration_minutes, distance_km, active
	           FROM routes WHERE departure_station_id = ? AND arrival_station_id = ? AND active = TRUE ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, departureStationID, arrivalStationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Route{}
	for rows.Next() {
		var rt model.Route
		if err := rows.Scan(&rt.ID, &rt.DepartureStationID, &rt.ArrivalStationID, &rt.DurationMinutes, &rt.DistanceKm, &rt.Active); err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}
