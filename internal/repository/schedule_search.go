package repository

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/transport-booking/internal/model"
)

// ScheduleSearchQuery filters upcoming departures that still have seats.
// Zero station IDs and a nil Day mean "any".
type ScheduleSearchQuery struct {
	DepartureStationID uint64
	ArrivalStationID   uint64
	Day                *time.Time // UTC calendar day of departure
	After              time.Time  // earliest departure considered
	Page               int
	PageSize           int
}

// Offset is the number of rows skipped for the requested page.
func (q ScheduleSearchQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.PageSize
}

// ScheduleSearchRow is a schedule plus the station names a traveller
// recognises.
type ScheduleSearchRow struct {
	model.Schedule
	DepartureStation string `json:"departure_station"`
	ArrivalStation   string `json:"arrival_station"`
}

// Search returns one page of matching schedules ordered by departure time
// and the total number of matches.
func (r *ScheduleRepo) Search(ctx context.Context, q ScheduleSearchQuery) ([]ScheduleSearchRow, int64, error) {
	where := []string{
		"s.departs_at >= ?",
		"s.seats_standard + s.seats_business + s.seats_first > 0",
	}
	args := []any{q.After}
	if q.DepartureStationID != 0 {
		where = append(where, "r.departure_station_id = ?")
		args = append(args, q.DepartureStationID)
	}
	if q.ArrivalStationID != 0 {
		where = append(where, "r.arrival_station_id = ?")
		args = append(args, q.ArrivalStationID)
	}
	if q.Day != nil {
		day := q.Day.UTC().Truncate(24 * time.Hour)
		where = append(where, "s.departs_at >= ? AND s.departs_at < ?")
		args = append(args, day, day.Add(24*time.Hour))
	}
	from := `FROM schedules s
		JOIN routes r    ON r.id = s.route_id
		JOIN stations d  ON d.id = r.departure_station_id
		JOIN stations a  ON a.id = r.arrival_station_id
		WHERE ` + strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) `+from, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := `SELECT s.id, s.route_id, s.departs_at, s.arrives_at,
		s.price_standard, s.price_business, s.price_first,
		s.seats_standard, s.seats_business, s.seats_first, s.created_at,
		d.name, a.name ` + from + `
		ORDER BY s.departs_at, s.id
		LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, dataSQL, append(args, q.PageSize, q.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]ScheduleSearchRow, 0, q.PageSize)
	for rows.Next() {
		var row ScheduleSearchRow
		s := &row.Schedule
		if err := rows.Scan(
			&s.ID, &s.RouteID, &s.DepartsAt, &s.ArrivesAt,
			&s.PriceStandard, &s.PriceBusiness, &s.PriceFirst,
			&s.SeatsStandard, &s.SeatsBusiness, &s.SeatsFirst, &s.CreatedAt,
			&row.DepartureStation, &row.ArrivalStation,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
