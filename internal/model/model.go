// Package model contains domain models for the transit route-search service.
// These structs map to the transport catalog schema (stops, routes, flights,
// datasets) and to the in-memory routing graph.
package model

import (
	"strings"
	"time"
)

// ─── Enums ──────────────────────────────────────────────────

// TransportType classifies a route or flight by vehicle.
type TransportType string

const (
	TransportBus      TransportType = "bus"
	TransportAirplane TransportType = "airplane"
	TransportTrain    TransportType = "train"
	TransportFerry    TransportType = "ferry"
	TransportTaxi     TransportType = "taxi"
	TransportUnknown  TransportType = "unknown"
)

// NormalizeTransportType maps the catalog's assorted spellings (PLANE, Bus,
// avia, …) onto the canonical lower-case set.
func NormalizeTransportType(raw string) TransportType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "bus", "autobus":
		return TransportBus
	case "airplane", "plane", "avia", "air":
		return TransportAirplane
	case "train", "rail", "railway":
		return TransportTrain
	case "ferry", "ship", "boat":
		return TransportFerry
	case "taxi":
		return TransportTaxi
	default:
		return TransportUnknown
	}
}

// DataMode reflects how much of a dataset is trustworthy catalog data.
type DataMode string

const (
	ModeReal     DataMode = "REAL"     // quality >= real threshold
	ModeRecovery DataMode = "RECOVERY" // recoverable gaps, pipeline filled them
	ModeMock     DataMode = "MOCK"     // demo fallback data
	ModeUnknown  DataMode = "UNKNOWN"  // not yet validated
)

// ─── Location ───────────────────────────────────────────────

// Location represents a WGS-84 geographic point (EPSG:4326).
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// InRange reports whether the point is a valid WGS-84 coordinate.
func (l Location) InRange() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lon >= -180 && l.Lon <= 180
}

// ─── Catalog entities ───────────────────────────────────────

// Stop is a boarding point: an airport, a railway station, a bus terminal,
// a ferry pier, or a synthetic city-level virtual stop.
type Stop struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	CityID          string            `json:"city_id,omitempty"`
	Location        *Location         `json:"location,omitempty"`
	IsAirport       bool              `json:"is_airport,omitempty"`
	IsRailway       bool              `json:"is_railway,omitempty"`
	IsFerryTerminal bool              `json:"is_ferry_terminal,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Route is an ordered sequence of stops served by one transport type.
type Route struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Stops           []string          `json:"stops"`
	TransportType   TransportType     `json:"transport_type"`
	BaseFare        float64           `json:"base_fare,omitempty"`
	Operator        string            `json:"operator,omitempty"`
	DurationMinutes float64           `json:"duration_minutes,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Flight is one concrete departure on a segment of a route.
type Flight struct {
	ID            string        `json:"id"`
	RouteID       string        `json:"route_id"`
	FromStopID    string        `json:"from_stop_id"`
	ToStopID      string        `json:"to_stop_id"`
	Departure     time.Time     `json:"departure"`
	Arrival       time.Time     `json:"arrival"`
	Price         float64       `json:"price,omitempty"`
	Seats         int           `json:"seats,omitempty"`
	TransportType TransportType `json:"transport_type,omitempty"`
}

// DurationMinutes returns the scheduled flight time in minutes.
func (f *Flight) DurationMinutes() float64 {
	return f.Arrival.Sub(f.Departure).Minutes()
}

// Dataset is the unit the pipeline moves around: everything needed to build
// a routing graph, plus provenance.
type Dataset struct {
	Routes   []Route           `json:"routes"`
	Stops    []Stop            `json:"stops"`
	Flights  []Flight          `json:"flights"`
	Mode     DataMode          `json:"mode"`
	Quality  int               `json:"quality"`
	LoadedAt time.Time         `json:"loaded_at"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy. Recovery steps operate on clones so a dataset
// handed to the cache or the graph builder is never mutated afterwards.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		Routes:   make([]Route, len(d.Routes)),
		Stops:    make([]Stop, len(d.Stops)),
		Flights:  make([]Flight, len(d.Flights)),
		Mode:     d.Mode,
		Quality:  d.Quality,
		LoadedAt: d.LoadedAt,
		Source:   d.Source,
	}
	for i, r := range d.Routes {
		cp := r
		cp.Stops = append([]string(nil), r.Stops...)
		if r.Metadata != nil {
			cp.Metadata = make(map[string]string, len(r.Metadata))
			for k, v := range r.Metadata {
				cp.Metadata[k] = v
			}
		}
		out.Routes[i] = cp
	}
	for i, s := range d.Stops {
		cp := s
		if s.Location != nil {
			loc := *s.Location
			cp.Location = &loc
		}
		if s.Metadata != nil {
			cp.Metadata = make(map[string]string, len(s.Metadata))
			for k, v := range s.Metadata {
				cp.Metadata[k] = v
			}
		}
		out.Stops[i] = cp
	}
	copy(out.Flights, d.Flights)
	if d.Metadata != nil {
		out.Metadata = make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// ─── Quality report ─────────────────────────────────────────

// QualityReport is the validator's verdict on a dataset. All scores are
// percentages in [0, 100].
type QualityReport struct {
	OverallScore      int                `json:"overall_score"`
	RoutesScore       int                `json:"routes_score"`
	StopsScore        int                `json:"stops_score"`
	CoordinatesScore  int                `json:"coordinates_score"`
	SchedulesScore    int                `json:"schedules_score"`
	MissingFields     []string           `json:"missing_fields,omitempty"`
	Recommendations   []string           `json:"recommendations,omitempty"`
	ValidatedAt       time.Time          `json:"validated_at"`
	Details           map[string]float64 `json:"details,omitempty"`
}

// ─── Risk assessment ────────────────────────────────────────

// RiskScore is a 1–10 value with a human-readable bucket.
type RiskScore struct {
	Value       float64 `json:"value"`
	Level       string  `json:"level"`
	Description string  `json:"description"`
}

// RiskFactors are the inputs to the risk scorer. Historical fields are
// optional; nil means "not supplied".
type RiskFactors struct {
	TransferCount         int      `json:"transfer_count"`
	AverageDelay90Days    *float64 `json:"average_delay_90_days,omitempty"`
	DelayFrequency        *float64 `json:"delay_frequency,omitempty"`
	CancellationRate90Days *float64 `json:"cancellation_rate_90_days,omitempty"`
	AverageOccupancy      *float64 `json:"average_occupancy,omitempty"`
}

// RiskAssessment annotates one found route.
type RiskAssessment struct {
	RouteID         string      `json:"route_id"`
	RiskScore       RiskScore   `json:"risk_score"`
	Factors         RiskFactors `json:"factors"`
	Recommendations []string    `json:"recommendations,omitempty"`
}

// ─── Search DTOs ────────────────────────────────────────────

// RouteSegment is one leg of a found itinerary. Consecutive graph edges that
// share a route id are collapsed into a single segment.
type RouteSegment struct {
	SegmentID     string        `json:"segment_id"`
	From          string        `json:"from"`
	To            string        `json:"to"`
	TransportType TransportType `json:"transport_type"`
	DepartureTime *time.Time    `json:"departure_time,omitempty"`
	ArrivalTime   *time.Time    `json:"arrival_time,omitempty"`
	Duration      float64       `json:"duration"`
	Price         *float64      `json:"price,omitempty"`
	Carrier       string        `json:"carrier,omitempty"`
	FlightNumber  string        `json:"flight_number,omitempty"`
}

// FoundRoute is a complete itinerary from origin city to destination city.
type FoundRoute struct {
	RouteID       string         `json:"route_id"`
	Segments      []RouteSegment `json:"segments"`
	TotalDuration float64        `json:"total_duration"`
	TotalPrice    *float64       `json:"total_price,omitempty"`
	TransferCount int            `json:"transfer_count"`
	StopIDs       []string       `json:"-"`
}

// SearchRequest carries the validated query parameters.
type SearchRequest struct {
	FromCity   string    `json:"from"`
	ToCity     string    `json:"to"`
	Date       time.Time `json:"date"`
	Passengers int       `json:"passengers"`
}

// SearchResult is what the path finder returns to the controller layer.
type SearchResult struct {
	Success         bool         `json:"success"`
	Routes          []FoundRoute `json:"routes"`
	Alternatives    []FoundRoute `json:"alternatives,omitempty"`
	ExecutionTimeMs float64      `json:"execution_time_ms"`
	GraphAvailable  bool         `json:"graph_available"`
	ErrorCode       string       `json:"error,omitempty"`
	ErrorMessage    string       `json:"error_message,omitempty"`
}
