package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/yakutia-transit/routesearch/internal/model"
)

// fetchTimeout bounds every catalog query. The orchestrator falls back to
// demo data rather than wait on a slow catalog.
const fetchTimeout = 10 * time.Second

// CatalogProvider reads the transport catalog from PostgreSQL.
type CatalogProvider struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewCatalogProvider creates the primary provider over the given pool.
func NewCatalogProvider(pool *pgxpool.Pool, log *zap.Logger) *CatalogProvider {
	return &CatalogProvider{pool: pool, log: log.Named("catalog")}
}

// Name implements Provider.
func (p *CatalogProvider) Name() string { return "primary" }

// Available probes the catalog: a ping plus a cheap existence check on the
// stops table. Any failure means "use the fallback".
func (p *CatalogProvider) Available(ctx context.Context) bool {
	if p.pool == nil {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := p.pool.Ping(probeCtx); err != nil {
		p.log.Warn("catalog ping failed", zap.Error(err))
		return false
	}
	var one int
	if err := p.pool.QueryRow(probeCtx, `SELECT 1 FROM stops LIMIT 1`).Scan(&one); err != nil {
		p.log.Warn("catalog probe failed", zap.Error(err))
		return false
	}
	return true
}

// Load retrieves stops, routes, and flights and maps them into a dataset
// with source "primary" and mode UNKNOWN (the validator decides the mode).
func (p *CatalogProvider) Load(ctx context.Context) (*model.Dataset, error) {
	loadCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	stops, err := p.loadStops(loadCtx)
	if err != nil {
		return nil, classifyFetchErr("stops", err)
	}
	routes, err := p.loadRoutes(loadCtx)
	if err != nil {
		return nil, classifyFetchErr("routes", err)
	}
	flights, err := p.loadFlights(loadCtx)
	if err != nil {
		return nil, classifyFetchErr("flights", err)
	}

	p.log.Info("catalog loaded",
		zap.Int("stops", len(stops)),
		zap.Int("routes", len(routes)),
		zap.Int("flights", len(flights)),
	)

	return &model.Dataset{
		Stops:    stops,
		Routes:   routes,
		Flights:  flights,
		Mode:     model.ModeUnknown,
		Source:   p.Name(),
		LoadedAt: time.Now().UTC(),
	}, nil
}

func (p *CatalogProvider) loadStops(ctx context.Context) ([]model.Stop, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, COALESCE(city_id, ''), lat, lon,
		       is_airport, is_railway, is_ferry_terminal
		FROM stops`)
	if err != nil {
		return nil, fmt.Errorf("query stops: %w", err)
	}
	defer rows.Close()

	var stops []model.Stop
	for rows.Next() {
		var s model.Stop
		var lat, lon *float64
		if err := rows.Scan(&s.ID, &s.Name, &s.CityID, &lat, &lon,
			&s.IsAirport, &s.IsRailway, &s.IsFerryTerminal); err != nil {
			return nil, fmt.Errorf("scan stop: %w", err)
		}
		if lat != nil && lon != nil {
			s.Location = &model.Location{Lat: *lat, Lon: *lon}
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

func (p *CatalogProvider) loadRoutes(ctx context.Context) ([]model.Route, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, stops, transport_type,
		       COALESCE(base_fare, 0), COALESCE(operator, ''),
		       COALESCE(duration_minutes, 0)
		FROM routes`)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()

	var routes []model.Route
	for rows.Next() {
		var r model.Route
		var rawType string
		if err := rows.Scan(&r.ID, &r.Name, &r.Stops, &rawType,
			&r.BaseFare, &r.Operator, &r.DurationMinutes); err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}
		r.TransportType = model.NormalizeTransportType(rawType)
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

func (p *CatalogProvider) loadFlights(ctx context.Context) ([]model.Flight, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, route_id, from_stop_id, to_stop_id,
		       departure, arrival, COALESCE(price, 0), COALESCE(seats, 0),
		       COALESCE(transport_type, '')
		FROM flights`)
	if err != nil {
		return nil, fmt.Errorf("query flights: %w", err)
	}
	defer rows.Close()

	var flights []model.Flight
	for rows.Next() {
		var f model.Flight
		var rawType string
		if err := rows.Scan(&f.ID, &f.RouteID, &f.FromStopID, &f.ToStopID,
			&f.Departure, &f.Arrival, &f.Price, &f.Seats, &rawType); err != nil {
			return nil, fmt.Errorf("scan flight: %w", err)
		}
		if rawType != "" {
			f.TransportType = model.NormalizeTransportType(rawType)
		}
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

// classifyFetchErr maps a query failure onto the fetch-error taxonomy.
func classifyFetchErr(collection string, err error) error {
	kind := FetchErrConnection
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = FetchErrTimeout
	case isScanErr(err):
		kind = FetchErrInvalid
	}
	return &FetchError{Kind: kind, Err: fmt.Errorf("%s: %w", collection, err)}
}

func isScanErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "scan")
}
