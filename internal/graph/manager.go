package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yakutia-transit/routesearch/internal/datacache"
	"github.com/yakutia-transit/routesearch/internal/model"
	"github.com/yakutia-transit/routesearch/pkg/cityname"
	"github.com/yakutia-transit/routesearch/pkg/metrics"
)

// ─── Lifecycle ──────────────────────────────────────────────

// Status is the manager's lifecycle state.
type Status string

const (
	StatusUninitialized Status = "UNINITIALIZED"
	StatusInitializing  Status = "INITIALIZING"
	StatusReady         Status = "READY"
	StatusStale         Status = "STALE"
)

// ErrGraphInvalid marks a graph that failed validation even after one
// automatic re-synchronization attempt. Callers must not serve search
// from it.
var ErrGraphInvalid = errors.New("graph failed validation")

// ErrNotReady marks a manager whose initialization has not completed.
var ErrNotReady = errors.New("graph not initialized")

// DataLoader yields dataset snapshots; the orchestrator implements it.
type DataLoader interface {
	LoadData(ctx context.Context) (*model.Dataset, error)
}

// ManagerStats is the operational summary exposed to handlers.
type ManagerStats struct {
	Status        Status         `json:"status"`
	Graph         Stats          `json:"graph"`
	DatasetMode   model.DataMode `json:"dataset_mode"`
	DatasetSource string         `json:"dataset_source"`
	Quality       int            `json:"quality"`
	LoadedAt      time.Time      `json:"loaded_at,omitempty"`
	Version       string         `json:"version,omitempty"`
}

// Manager owns the lifecycle of the routing graph. Readers always get a
// consistent snapshot; rebuilds happen on a fresh graph that is swapped in
// atomically once it passes validation.
type Manager struct {
	log       *zap.Logger
	loader    DataLoader
	builder   *Builder
	snapshots *datacache.SnapshotStore
	metrics   *metrics.Metrics

	sf singleflight.Group

	mu          sync.RWMutex
	status      Status
	current     *Graph
	dataset     *model.Dataset
	knownCities map[string]bool
	version     string
}

// NewManager creates an uninitialized manager.
func NewManager(log *zap.Logger, loader DataLoader, builder *Builder, snapshots *datacache.SnapshotStore, m *metrics.Metrics) *Manager {
	return &Manager{
		log:       log.Named("graphmanager"),
		loader:    loader,
		builder:   builder,
		snapshots: snapshots,
		metrics:   m,
		status:    StatusUninitialized,
	}
}

// Status returns the current lifecycle state.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Initialize loads a dataset, builds the graph, and publishes it. Concurrent
// callers share one in-flight initialization; calling it on a ready manager
// is a no-op.
func (m *Manager) Initialize(ctx context.Context) error {
	if m.Status() == StatusReady {
		return nil
	}
	_, err, _ := m.sf.Do("initialize", func() (interface{}, error) {
		if m.Status() == StatusReady {
			return nil, nil
		}
		return nil, m.rebuild(ctx)
	})
	return err
}

// Refresh forces a rebuild from a freshly loaded dataset. The previous graph
// keeps serving readers until the replacement passes validation.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err, _ := m.sf.Do("initialize", func() (interface{}, error) {
		return nil, m.rebuild(ctx)
	})
	return err
}

// UpdateGraph rebuilds the edge set from the dataset behind the published
// graph without reloading data. Nodes present in the old graph survive even
// when no route backs them anymore; the replacement is published only after
// it passes the same checks as a full rebuild.
func (m *Manager) UpdateGraph(ctx context.Context) error {
	m.mu.RLock()
	d := m.dataset
	prev := m.current
	m.mu.RUnlock()
	if d == nil || prev == nil {
		return ErrNotReady
	}

	g := m.builder.Build(d)
	for _, id := range prev.NodeIDs() {
		if _, ok := g.GetNode(id); !ok {
			if n, ok := prev.GetNode(id); ok {
				g.AddNode(n)
			}
		}
	}
	g.Synchronize()
	if res := g.Validate(); !res.IsValid {
		return fmt.Errorf("graph update: %w: %v", ErrGraphInvalid, firstN(res.Errors, 3))
	}
	if audit := g.ValidateAllEdgesWeight(); audit.TotalInvalid > 0 {
		return fmt.Errorf("graph update: %w: %d invalid weights", ErrGraphInvalid, audit.TotalInvalid)
	}

	version := datacache.NewVersion(time.Now())
	m.mu.Lock()
	m.current = g
	m.version = version
	m.status = StatusReady
	m.mu.Unlock()

	stats := g.GetStats()
	m.metrics.GraphNodes.Set(float64(stats.Nodes))
	m.metrics.GraphEdges.Set(float64(stats.Edges))

	if m.snapshots != nil {
		m.snapshots.Publish(ctx, datacache.GraphSnapshot{
			Version:     version,
			Nodes:       stats.Nodes,
			Edges:       stats.Edges,
			DatasetMode: string(d.Mode),
			PublishedAt: time.Now().UTC(),
		})
	}

	m.log.Info("graph edges rebuilt",
		zap.String("version", version),
		zap.Int("nodes", stats.Nodes),
		zap.Int("edges", stats.Edges),
	)
	return nil
}

// MarkStale flags the published graph as outdated. Search keeps working; the
// next Initialize or Refresh replaces it.
func (m *Manager) MarkStale() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusReady {
		m.status = StatusStale
	}
}

// GetGraph returns the published snapshot after re-checking its invariants.
// A failing check triggers one automatic re-synchronization; if the graph is
// still broken the caller gets ErrGraphInvalid and must not serve search.
func (m *Manager) GetGraph(ctx context.Context) (*Graph, error) {
	m.mu.RLock()
	ready := m.status == StatusReady || m.status == StatusStale
	m.mu.RUnlock()
	if !ready {
		if err := m.Initialize(ctx); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, ErrNotReady
	}
	if m.checkLocked() {
		return m.current, nil
	}

	m.log.Warn("published graph failed invariant check, re-synchronizing")
	report := m.current.Synchronize()
	m.log.Info("graph re-synchronized",
		zap.Int("removed_edges", report.RemovedEdges),
		zap.Int("fixed_edges", report.FixedEdges),
		zap.Int("initialized_nodes", report.InitializedNodes),
	)
	if m.checkLocked() {
		return m.current, nil
	}
	return nil, ErrGraphInvalid
}

// KnownCities returns the normalized city names present in the current
// dataset, including cities that only exist as virtual stops.
func (m *Manager) KnownCities() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool, len(m.knownCities))
	for c := range m.knownCities {
		out[c] = true
	}
	return out
}

// Stats returns the operational summary.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := ManagerStats{Status: m.status, Version: m.version}
	if m.current != nil {
		s.Graph = m.current.GetStats()
	}
	if m.dataset != nil {
		s.DatasetMode = m.dataset.Mode
		s.DatasetSource = m.dataset.Source
		s.Quality = m.dataset.Quality
		s.LoadedAt = m.dataset.LoadedAt
	}
	return s
}

// Dataset returns the dataset snapshot behind the published graph.
func (m *Manager) Dataset() *model.Dataset {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dataset
}

// checkLocked runs the validation and weight audit under the held lock.
func (m *Manager) checkLocked() bool {
	res := m.current.Validate()
	if !res.IsValid {
		m.log.Warn("graph validation failed", zap.Strings("errors", firstN(res.Errors, 5)))
		return false
	}
	audit := m.current.ValidateAllEdgesWeight()
	if audit.TotalInvalid > 0 {
		m.log.Warn("graph weight audit failed", zap.Int("invalid", audit.TotalInvalid))
		return false
	}
	return true
}

// ─── Rebuild pipeline ───────────────────────────────────────

// rebuild runs the full pipeline: load, sanitize, build, synchronize,
// validate, audit, publish. On any failure the previously published graph is
// left untouched.
func (m *Manager) rebuild(ctx context.Context) error {
	m.mu.Lock()
	if m.status == StatusUninitialized {
		m.status = StatusInitializing
	}
	m.mu.Unlock()

	started := time.Now()

	d, err := m.loader.LoadData(ctx)
	if err != nil {
		m.failLocked()
		return fmt.Errorf("graph rebuild: %w", err)
	}

	dropped := sanitizeDataset(d)
	if dropped.stops > 0 || dropped.routes > 0 || dropped.flights > 0 {
		m.log.Warn("dropped stale virtual entities",
			zap.Int("stops", dropped.stops),
			zap.Int("routes", dropped.routes),
			zap.Int("flights", dropped.flights),
		)
	}

	g := m.builder.Build(d)

	report := g.Synchronize()
	if report.RemovedEdges > 0 || report.FixedEdges > 0 {
		m.log.Info("graph synchronized after build",
			zap.Int("removed_edges", report.RemovedEdges),
			zap.Int("fixed_edges", report.FixedEdges),
		)
	}

	if res := g.Validate(); !res.IsValid {
		m.failLocked()
		return fmt.Errorf("graph rebuild: %w: %v", ErrGraphInvalid, firstN(res.Errors, 3))
	}
	if audit := g.ValidateAllEdgesWeight(); audit.TotalInvalid > 0 {
		m.failLocked()
		return fmt.Errorf("graph rebuild: %w: %d invalid weights", ErrGraphInvalid, audit.TotalInvalid)
	}

	m.logConnectivity(g)

	version := datacache.NewVersion(time.Now())
	cities := citiesOf(d)

	m.mu.Lock()
	m.current = g
	m.dataset = d
	m.knownCities = cities
	m.version = version
	m.status = StatusReady
	m.mu.Unlock()

	stats := g.GetStats()
	m.metrics.GraphNodes.Set(float64(stats.Nodes))
	m.metrics.GraphEdges.Set(float64(stats.Edges))

	if m.snapshots != nil {
		m.snapshots.Publish(ctx, datacache.GraphSnapshot{
			Version:     version,
			Nodes:       stats.Nodes,
			Edges:       stats.Edges,
			DatasetMode: string(d.Mode),
			PublishedAt: time.Now().UTC(),
		})
	}

	m.log.Info("graph published",
		zap.String("version", version),
		zap.String("mode", string(d.Mode)),
		zap.Int("nodes", stats.Nodes),
		zap.Int("virtual_nodes", stats.VirtualNodes),
		zap.Int("edges", stats.Edges),
		zap.Int("cities", stats.Cities),
		zap.Duration("took", time.Since(started)),
	)
	return nil
}

func (m *Manager) failLocked() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		m.status = StatusUninitialized
	} else {
		m.status = StatusStale
	}
}

// logConnectivity summarizes the out-degree distribution. Poorly connected
// nodes are the usual symptom of a broken recovery mesh.
func (m *Manager) logConnectivity(g *Graph) {
	buckets := map[string]int{"0": 0, "1": 0, "2-5": 0, "6-20": 0, "21+": 0}
	isolated := make([]string, 0, 8)
	for _, id := range g.NodeIDs() {
		deg := len(g.EdgesFrom(id))
		switch {
		case deg == 0:
			buckets["0"]++
			if len(isolated) < 8 {
				isolated = append(isolated, id)
			}
		case deg == 1:
			buckets["1"]++
		case deg <= 5:
			buckets["2-5"]++
		case deg <= 20:
			buckets["6-20"]++
		default:
			buckets["21+"]++
		}
	}
	fields := []zap.Field{
		zap.Int("degree_0", buckets["0"]),
		zap.Int("degree_1", buckets["1"]),
		zap.Int("degree_2_5", buckets["2-5"]),
		zap.Int("degree_6_20", buckets["6-20"]),
		zap.Int("degree_21_plus", buckets["21+"]),
	}
	if len(isolated) > 0 {
		fields = append(fields, zap.Strings("isolated_sample", isolated))
	}
	m.log.Info("graph connectivity", fields...)
}

// ─── Dataset sanitation ─────────────────────────────────────

type droppedEntities struct {
	stops   int
	routes  int
	flights int
}

// sanitizeDataset strips virtual stops whose id does not match the
// deterministic id derived from their city, then removes routes and flights
// left dangling. Cached datasets from older releases can carry such ids.
func sanitizeDataset(d *model.Dataset) droppedEntities {
	var dropped droppedEntities

	keptStops := d.Stops[:0]
	valid := make(map[string]bool, len(d.Stops))
	for _, s := range d.Stops {
		if cityname.IsVirtualStopID(s.ID) {
			city := cityname.CityOf(s.CityID, s.Name)
			if s.ID != cityname.VirtualStopID(city) {
				dropped.stops++
				continue
			}
		}
		valid[s.ID] = true
		keptStops = append(keptStops, s)
	}
	d.Stops = keptStops

	keptRoutes := d.Routes[:0]
	validRoutes := make(map[string]bool, len(d.Routes))
	for _, r := range d.Routes {
		ok := len(r.Stops) >= 2
		for _, id := range r.Stops {
			if !valid[id] {
				ok = false
				break
			}
		}
		if !ok {
			dropped.routes++
			continue
		}
		validRoutes[r.ID] = true
		keptRoutes = append(keptRoutes, r)
	}
	d.Routes = keptRoutes

	keptFlights := d.Flights[:0]
	for _, f := range d.Flights {
		if !validRoutes[f.RouteID] || !valid[f.FromStopID] || !valid[f.ToStopID] {
			dropped.flights++
			continue
		}
		keptFlights = append(keptFlights, f)
	}
	d.Flights = keptFlights

	return dropped
}

// citiesOf collects the normalized city of every stop in the dataset.
func citiesOf(d *model.Dataset) map[string]bool {
	out := make(map[string]bool, len(d.Stops))
	for i := range d.Stops {
		s := &d.Stops[i]
		if city := cityname.CityOf(s.CityID, s.Name); city != "" {
			out[cityname.Normalize(city)] = true
		}
	}
	return out
}

func firstN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
