package graph

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yakutia-transit/routesearch/internal/model"
	"github.com/yakutia-transit/routesearch/pkg/metrics"
)

// fakeLoader serves a fixed dataset and counts loads.
type fakeLoader struct {
	mu      sync.Mutex
	dataset *model.Dataset
	err     error
	loads   int
}

func (f *fakeLoader) LoadData(ctx context.Context) (*model.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	return f.dataset.Clone(), nil
}

func (f *fakeLoader) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

func managerWith(loader DataLoader) *Manager {
	log := zap.NewNop()
	return NewManager(log, loader, NewBuilder(log), nil, metrics.New())
}

func TestManager_InitializePublishesGraph(t *testing.T) {
	loader := &fakeLoader{dataset: buildDataset()}
	m := managerWith(loader)

	assert.Equal(t, StatusUninitialized, m.Status())
	require.NoError(t, m.Initialize(context.Background()))
	assert.Equal(t, StatusReady, m.Status())

	g, err := m.GetGraph(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, g.NodeCount())

	stats := m.Stats()
	assert.Equal(t, StatusReady, stats.Status)
	assert.Equal(t, 4, stats.Graph.Nodes)
	assert.NotEmpty(t, stats.Version)
}

func TestManager_InitializeIsIdempotent(t *testing.T) {
	loader := &fakeLoader{dataset: buildDataset()}
	m := managerWith(loader)

	require.NoError(t, m.Initialize(context.Background()))
	require.NoError(t, m.Initialize(context.Background()))
	assert.Equal(t, 1, loader.loadCount())
}

func TestManager_InitializeFailureLeavesUninitialized(t *testing.T) {
	loader := &fakeLoader{err: errors.New("catalog down")}
	m := managerWith(loader)

	err := m.Initialize(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusUninitialized, m.Status())

	_, err = m.GetGraph(context.Background())
	assert.Error(t, err)
}

func TestManager_GetGraphInitializesLazily(t *testing.T) {
	loader := &fakeLoader{dataset: buildDataset()}
	m := managerWith(loader)

	g, err := m.GetGraph(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, g)
	assert.Equal(t, StatusReady, m.Status())
}

// A snapshot corrupted after publication gets one automatic
// re-synchronization; only a graph still broken after that is refused.
func TestManager_GetGraphRepairsCorruptedSnapshot(t *testing.T) {
	loader := &fakeLoader{dataset: buildDataset()}
	m := managerWith(loader)
	require.NoError(t, m.Initialize(context.Background()))

	m.mu.Lock()
	m.current.edgesFrom["yks-bus"] = append(m.current.edgesFrom["yks-bus"],
		Edge{FromStopID: "yks-bus", ToStopID: "gone", Weight: 5, Type: EdgeRide})
	m.mu.Unlock()

	g, err := m.GetGraph(context.Background())
	require.NoError(t, err)
	assert.True(t, g.Validate().IsValid)
}

func TestManager_GetGraphRefusesUnrepairableSnapshot(t *testing.T) {
	loader := &fakeLoader{dataset: buildDataset()}
	m := managerWith(loader)
	require.NoError(t, m.Initialize(context.Background()))

	// A NaN weight survives Synchronize; the graph must be refused.
	m.mu.Lock()
	m.current.edgesFrom["yks-bus"] = append(m.current.edgesFrom["yks-bus"],
		Edge{FromStopID: "yks-bus", ToStopID: "olk-bus", Weight: math.NaN(), RouteID: "bad", Type: EdgeRide})
	m.mu.Unlock()

	_, err := m.GetGraph(context.Background())
	assert.ErrorIs(t, err, ErrGraphInvalid)
}

func TestManager_RefreshSwapsSnapshot(t *testing.T) {
	loader := &fakeLoader{dataset: buildDataset()}
	m := managerWith(loader)
	require.NoError(t, m.Initialize(context.Background()))
	firstVersion := m.Stats().Version

	bigger := buildDataset()
	bigger.Stops = append(bigger.Stops, model.Stop{
		ID: "mjz-airport", Name: "Аэропорт, г. Мирный",
		Location: &model.Location{Lat: 62.53, Lon: 114.03}, IsAirport: true,
	})
	loader.mu.Lock()
	loader.dataset = bigger
	loader.mu.Unlock()

	m.MarkStale()
	assert.Equal(t, StatusStale, m.Status())
	require.NoError(t, m.Refresh(context.Background()))

	assert.Equal(t, StatusReady, m.Status())
	g, err := m.GetGraph(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, g.NodeCount())
	assert.NotEqual(t, firstVersion, m.Stats().Version)
}

// UpdateGraph rebuilds edges from the dataset already in memory. A node that
// lost its last route must survive the rebuild with no outgoing edges.
func TestManager_UpdateGraphKeepsOrphanedNodes(t *testing.T) {
	loader := &fakeLoader{dataset: buildDataset()}
	m := managerWith(loader)
	require.NoError(t, m.Initialize(context.Background()))
	firstVersion := m.Stats().Version

	m.mu.Lock()
	kept := m.dataset.Routes[:0]
	for _, r := range m.dataset.Routes {
		if r.ID != "bus-yks-olk" {
			kept = append(kept, r)
		}
	}
	m.dataset.Routes = kept
	m.mu.Unlock()

	require.NoError(t, m.UpdateGraph(context.Background()))

	g, err := m.GetGraph(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, g.NodeCount(), "orphaned stops stay in the node set")
	_, ok := g.GetNode("olk-bus")
	assert.True(t, ok)
	assert.NotEqual(t, firstVersion, m.Stats().Version)
}

func TestManager_UpdateGraphRequiresInitialization(t *testing.T) {
	m := managerWith(&fakeLoader{dataset: buildDataset()})
	assert.ErrorIs(t, m.UpdateGraph(context.Background()), ErrNotReady)
}

func TestManager_RefreshFailureKeepsServing(t *testing.T) {
	loader := &fakeLoader{dataset: buildDataset()}
	m := managerWith(loader)
	require.NoError(t, m.Initialize(context.Background()))

	loader.mu.Lock()
	loader.err = errors.New("catalog down")
	loader.mu.Unlock()

	require.Error(t, m.Refresh(context.Background()))
	assert.Equal(t, StatusStale, m.Status())

	g, err := m.GetGraph(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, g.NodeCount())
}

func TestManager_KnownCities(t *testing.T) {
	loader := &fakeLoader{dataset: buildDataset()}
	m := managerWith(loader)
	require.NoError(t, m.Initialize(context.Background()))

	cities := m.KnownCities()
	assert.True(t, cities["якутск"])
	assert.True(t, cities["олекминск"])
	assert.True(t, cities["тикси"])
	assert.False(t, cities["москва"])
}

// Virtual stops whose id does not match the deterministic id for their city
// are leftovers from older releases and must not reach the graph.
func TestSanitizeDataset_DropsMismatchedVirtualEntities(t *testing.T) {
	d := buildDataset()
	d.Stops = append(d.Stops, model.Stop{
		ID: "virtual-stop-12345", Name: "Тикси", CityID: "тикси",
		Location: &model.Location{Lat: 71.64, Lon: 128.87},
	})
	d.Routes = append(d.Routes, model.Route{
		ID: "virtual-route-x", Name: "x", TransportType: model.TransportBus,
		Stops: []string{"yks-bus", "virtual-stop-12345"},
	})
	d.Flights = append(d.Flights, model.Flight{
		ID: "fx", RouteID: "virtual-route-x", FromStopID: "yks-bus", ToStopID: "virtual-stop-12345",
	})

	dropped := sanitizeDataset(d)

	assert.Equal(t, 1, dropped.stops)
	assert.Equal(t, 1, dropped.routes)
	assert.Equal(t, 1, dropped.flights)
	for _, s := range d.Stops {
		assert.NotEqual(t, "virtual-stop-12345", s.ID)
	}
}

func TestSanitizeDataset_KeepsWellFormedVirtualStops(t *testing.T) {
	d := buildDataset()
	require.Equal(t, droppedEntities{}, sanitizeDataset(d))
	assert.Len(t, d.Stops, 4)
	assert.Len(t, d.Routes, 2)
}
