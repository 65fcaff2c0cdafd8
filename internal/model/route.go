package model

// City is reference data for stations.
type City struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// Station is a departure or arrival point inside a city.
type Station struct {
	ID      uint64 `json:"id"`
	CityID  uint64 `json:"city_id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// Route connects two distinct stations. A (departure, arrival) pair is
// unique.
type Route struct {
	ID                 uint64 `json:"id"`
	DepartureStationID uint64 `json:"departure_station_id"`
	ArrivalStationID   uint64 `json:"arrival_station_id"`
	DurationMinutes    int    `json:"duration_minutes"`
	DistanceKm         int    `json:"distance_km"`
	Active             bool   `json:"active"`
}
