// Package syncworker keeps the transport catalog tables aligned with the
// primary provider. It fetches on an interval, hashes a canonical rendering
// of the dataset, and writes to Postgres only when the hash changed.
package syncworker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/yakutia-transit/routesearch/internal/model"
	"github.com/yakutia-transit/routesearch/internal/provider"
	"github.com/yakutia-transit/routesearch/pkg/metrics"
)

// chainSignal names the downstream job notified after a successful sync.
const chainSignal = "virtual-entities-generator"

// SyncResult summarizes one worker run.
type SyncResult struct {
	Changed     bool      `json:"changed"`
	ContentHash string    `json:"content_hash"`
	Stops       int       `json:"stops"`
	Routes      int       `json:"routes"`
	Flights     int       `json:"flights"`
	RanAt       time.Time `json:"ran_at"`
}

// Worker runs the periodic catalog synchronization.
type Worker struct {
	log      *zap.Logger
	pool     *pgxpool.Pool
	source   provider.Provider
	metrics  *metrics.Metrics
	interval time.Duration

	// onChanged fires after a committed change, before the next tick. The
	// graph manager hooks in here to mark its snapshot stale.
	onChanged func(ctx context.Context)

	mu      sync.Mutex
	lastRun time.Time
}

// New creates a sync worker. interval gates how often RunOnce may do work.
func New(log *zap.Logger, pool *pgxpool.Pool, source provider.Provider, m *metrics.Metrics, interval time.Duration, onChanged func(ctx context.Context)) *Worker {
	return &Worker{
		log:       log.Named("syncworker"),
		pool:      pool,
		source:    source,
		metrics:   m,
		interval:  interval,
		onChanged: onChanged,
	}
}

// CanRun reports whether the minimum interval since the last run has passed.
func (w *Worker) CanRun() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRun.IsZero() || time.Since(w.lastRun) >= w.interval
}

// Start loops until the context is cancelled. Failures are logged and the
// worker waits for the next tick; catalog state is never left half-written.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("sync worker started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.log.Info("sync worker stopped")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.log.Warn("sync run failed", zap.Error(err))
			}
		}
	}
}

// RunOnce performs a single synchronization attempt. A run that fetches an
// unchanged dataset exits early without touching the database.
func (w *Worker) RunOnce(ctx context.Context) (*SyncResult, error) {
	if !w.CanRun() {
		return nil, nil
	}

	d, err := w.source.Load(ctx)
	if err != nil {
		// Fetch failure leaves both lastRun and the catalog untouched so the
		// next tick retries immediately.
		w.metrics.Errors.WithLabelValues("syncworker", "fetch_failed").Inc()
		return nil, fmt.Errorf("sync fetch: %w", err)
	}

	hash, err := ContentHash(d)
	if err != nil {
		return nil, fmt.Errorf("sync hash: %w", err)
	}

	result := &SyncResult{
		ContentHash: hash,
		Stops:       len(d.Stops),
		Routes:      len(d.Routes),
		Flights:     len(d.Flights),
		RanAt:       time.Now().UTC(),
	}

	prev, err := w.latestHash(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync lookup: %w", err)
	}
	if prev == hash {
		w.log.Info("catalog unchanged", zap.String("hash", shortHash(hash)))
		w.markRun()
		return result, nil
	}

	if err := w.persist(ctx, d, hash); err != nil {
		w.metrics.Errors.WithLabelValues("syncworker", "persist_failed").Inc()
		return nil, fmt.Errorf("sync persist: %w", err)
	}
	result.Changed = true
	w.markRun()

	w.log.Info("catalog updated",
		zap.String("hash", shortHash(hash)),
		zap.Int("stops", result.Stops),
		zap.Int("routes", result.Routes),
		zap.Int("flights", result.Flights),
		zap.String("signal", chainSignal),
	)
	if w.onChanged != nil {
		w.onChanged(ctx)
	}
	return result, nil
}

func (w *Worker) markRun() {
	w.mu.Lock()
	w.lastRun = time.Now()
	w.mu.Unlock()
}

// latestHash reads the content hash of the most recent dataset record.
func (w *Worker) latestHash(ctx context.Context) (string, error) {
	var hash string
	err := w.pool.QueryRow(ctx,
		`SELECT content_hash FROM datasets ORDER BY created_at DESC LIMIT 1`,
	).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

// persist upserts the catalog and records the new dataset inside one
// transaction. Any failure rolls the whole run back.
func (w *Worker) persist(ctx context.Context, d *model.Dataset, hash string) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for i := range d.Stops {
		s := &d.Stops[i]
		var lat, lon *float64
		if s.Location != nil {
			lat, lon = &s.Location.Lat, &s.Location.Lon
		}
		batch.Queue(`
			INSERT INTO stops (id, name, city_id, lat, lon, is_airport, is_railway, is_ferry_terminal)
			VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				city_id = EXCLUDED.city_id,
				lat = EXCLUDED.lat,
				lon = EXCLUDED.lon,
				is_airport = EXCLUDED.is_airport,
				is_railway = EXCLUDED.is_railway,
				is_ferry_terminal = EXCLUDED.is_ferry_terminal`,
			s.ID, s.Name, s.CityID, lat, lon, s.IsAirport, s.IsRailway, s.IsFerryTerminal)
	}
	for i := range d.Routes {
		r := &d.Routes[i]
		batch.Queue(`
			INSERT INTO routes (id, name, stops, transport_type, duration_minutes, operator, base_fare)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				stops = EXCLUDED.stops,
				transport_type = EXCLUDED.transport_type,
				duration_minutes = EXCLUDED.duration_minutes,
				operator = EXCLUDED.operator,
				base_fare = EXCLUDED.base_fare`,
			r.ID, r.Name, r.Stops, string(r.TransportType), r.DurationMinutes, r.Operator, r.BaseFare)
	}
	for i := range d.Flights {
		f := &d.Flights[i]
		batch.Queue(`
			INSERT INTO flights (id, route_id, from_stop_id, to_stop_id, departure, arrival, price, seats)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				departure = EXCLUDED.departure,
				arrival = EXCLUDED.arrival,
				price = EXCLUDED.price,
				seats = EXCLUDED.seats`,
			f.ID, f.RouteID, f.FromStopID, f.ToStopID, f.Departure.UTC(), f.Arrival.UTC(), f.Price, f.Seats)
	}
	batch.Queue(`
		INSERT INTO datasets (id, content_hash, source, mode, quality, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), hash, d.Source, string(d.Mode), d.Quality, time.Now().UTC())

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ─── Canonical hashing ──────────────────────────────────────

// Canonical renderings: collections sorted by id, fields in a fixed order,
// timestamps as RFC3339 UTC. Two loads of the same catalog always produce
// the same bytes regardless of source ordering.

type canonicalStop struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	CityID string   `json:"city_id"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
}

type canonicalRoute struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Stops         []string `json:"stops"`
	TransportType string   `json:"transport_type"`
	Duration      float64  `json:"duration_minutes"`
}

type canonicalFlight struct {
	ID        string `json:"id"`
	RouteID   string `json:"route_id"`
	From      string `json:"from_stop_id"`
	To        string `json:"to_stop_id"`
	Departure string `json:"departure"`
	Arrival   string `json:"arrival"`
}

type canonicalDataset struct {
	Stops   []canonicalStop   `json:"stops"`
	Routes  []canonicalRoute  `json:"routes"`
	Flights []canonicalFlight `json:"flights"`
}

// ContentHash returns the sha-256 hex digest of the canonical rendering.
func ContentHash(d *model.Dataset) (string, error) {
	c := canonicalDataset{
		Stops:   make([]canonicalStop, 0, len(d.Stops)),
		Routes:  make([]canonicalRoute, 0, len(d.Routes)),
		Flights: make([]canonicalFlight, 0, len(d.Flights)),
	}
	for i := range d.Stops {
		s := &d.Stops[i]
		cs := canonicalStop{ID: s.ID, Name: s.Name, CityID: s.CityID}
		if s.Location != nil {
			cs.Lat, cs.Lon = &s.Location.Lat, &s.Location.Lon
		}
		c.Stops = append(c.Stops, cs)
	}
	for i := range d.Routes {
		r := &d.Routes[i]
		c.Routes = append(c.Routes, canonicalRoute{
			ID:            r.ID,
			Name:          r.Name,
			Stops:         r.Stops,
			TransportType: string(r.TransportType),
			Duration:      r.DurationMinutes,
		})
	}
	for i := range d.Flights {
		f := &d.Flights[i]
		c.Flights = append(c.Flights, canonicalFlight{
			ID:        f.ID,
			RouteID:   f.RouteID,
			From:      f.FromStopID,
			To:        f.ToStopID,
			Departure: f.Departure.UTC().Format(time.RFC3339),
			Arrival:   f.Arrival.UTC().Format(time.RFC3339),
		})
	}
	sort.Slice(c.Stops, func(i, j int) bool { return c.Stops[i].ID < c.Stops[j].ID })
	sort.Slice(c.Routes, func(i, j int) bool { return c.Routes[i].ID < c.Routes[j].ID })
	sort.Slice(c.Flights, func(i, j int) bool { return c.Flights[i].ID < c.Flights[j].ID })

	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
