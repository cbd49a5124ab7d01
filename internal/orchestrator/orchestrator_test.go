package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yakutia-transit/routesearch/config"
	"github.com/yakutia-transit/routesearch/internal/datacache"
	"github.com/yakutia-transit/routesearch/internal/model"
	"github.com/yakutia-transit/routesearch/internal/quality"
	"github.com/yakutia-transit/routesearch/internal/recovery"
	"github.com/yakutia-transit/routesearch/pkg/metrics"
)

// fakeProvider scripts availability and load results.
type fakeProvider struct {
	name      string
	available bool
	dataset   *model.Dataset
	err       error
	loads     int
}

func (p *fakeProvider) Name() string                       { return p.name }
func (p *fakeProvider) Available(ctx context.Context) bool { return p.available }

func (p *fakeProvider) Load(ctx context.Context) (*model.Dataset, error) {
	p.loads++
	if p.err != nil {
		return nil, p.err
	}
	return p.dataset.Clone(), nil
}

func loc(lat, lon float64) *model.Location {
	return &model.Location{Lat: lat, Lon: lon}
}

// realDataset validates at 100.
func realDataset() *model.Dataset {
	return &model.Dataset{
		Stops: []model.Stop{
			{ID: "yks", Name: "Аэропорт, г. Якутск", Location: loc(62.09, 129.77)},
			{ID: "mjz", Name: "Аэропорт, г. Мирный", Location: loc(62.53, 114.03)},
		},
		Routes: []model.Route{
			{ID: "r1", Name: "Якутск - Мирный", TransportType: model.TransportAirplane, Stops: []string{"yks", "mjz"}},
		},
		Flights: []model.Flight{
			{ID: "f1", RouteID: "r1", FromStopID: "yks", ToStopID: "mjz",
				Departure: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
				Arrival:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		},
		Source: "primary",
	}
}

// recoverableDataset lands in the RECOVERY band: no schedules, one stop
// without coordinates. 0.4*100 + 0.3*100 + 0.2*50 + 0.1*0 = 80.
func recoverableDataset() *model.Dataset {
	d := realDataset()
	d.Flights = nil
	d.Stops[1].Location = nil
	return d
}

type fixture struct {
	orch     *Orchestrator
	primary  *fakeProvider
	fallback *fakeProvider
	cache    *datacache.DatasetCache
}

func newFixture(t *testing.T, primary *fakeProvider) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log := zap.NewNop()
	fallback := &fakeProvider{name: "fallback", available: true, dataset: realDataset()}
	fallback.dataset.Source = "fallback"

	cache := datacache.New(client, log, true, time.Second)
	orch := New(
		log,
		primary, fallback,
		quality.NewValidator(90, 50),
		recovery.NewService(log, config.RegionConfig{HubCityName: "Якутск", RegionCenterLat: 62, RegionCenterLon: 129}),
		cache,
		metrics.New(),
		"dataset", time.Hour,
	)
	return &fixture{orch: orch, primary: primary, fallback: fallback, cache: cache}
}

func TestLoadData_RealMode(t *testing.T) {
	fx := newFixture(t, &fakeProvider{name: "primary", available: true, dataset: realDataset()})

	d, err := fx.orch.LoadData(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.ModeReal, d.Mode)
	assert.Equal(t, 100, d.Quality)
	assert.Equal(t, "primary", d.Source)
	assert.Zero(t, fx.fallback.loads)
	assert.False(t, d.LoadedAt.IsZero())
}

func TestLoadData_RecoveryMode(t *testing.T) {
	fx := newFixture(t, &fakeProvider{name: "primary", available: true, dataset: recoverableDataset()})

	d, err := fx.orch.LoadData(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.ModeRecovery, d.Mode)
	assert.GreaterOrEqual(t, d.Quality, 90)
	assert.Equal(t, "primary", d.Source)
	assert.NotEmpty(t, d.Flights, "recovery should have synthesized schedules")
	assert.Greater(t, len(d.Stops), 2, "recovery should have created virtual stops")
	for _, s := range d.Stops {
		require.NotNil(t, s.Location, "stop %s left without coordinates", s.ID)
	}
}

func TestLoadData_PrimaryUnavailableFallsBack(t *testing.T) {
	fx := newFixture(t, &fakeProvider{name: "primary", available: false, dataset: realDataset()})

	d, err := fx.orch.LoadData(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "fallback", d.Source)
	assert.Equal(t, model.ModeMock, d.Mode)
	assert.Zero(t, fx.primary.loads)
}

func TestLoadData_PrimaryLoadFailureFallsBack(t *testing.T) {
	fx := newFixture(t, &fakeProvider{name: "primary", available: true, err: errors.New("connection reset")})

	d, err := fx.orch.LoadData(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "fallback", d.Source)
	assert.Equal(t, model.ModeMock, d.Mode)
	assert.Equal(t, 1, fx.primary.loads)
}

func TestLoadData_QualityTooLowUsesFallback(t *testing.T) {
	// Routes all broken: scores land below the recovery band.
	junk := &model.Dataset{
		Stops:  []model.Stop{{ID: "a", Name: ""}},
		Routes: []model.Route{{ID: "", Name: "", Stops: nil}},
		Source: "primary",
	}
	fx := newFixture(t, &fakeProvider{name: "primary", available: true, dataset: junk})

	d, err := fx.orch.LoadData(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.ModeMock, d.Mode)
	assert.Equal(t, "fallback", d.Source)
	assert.Greater(t, len(d.Stops), 2, "fallback data should have been recovered into a virtual mesh")
}

func TestLoadData_EverythingDownFails(t *testing.T) {
	fx := newFixture(t, &fakeProvider{name: "primary", available: false})
	fx.fallback.err = errors.New("embedded data unreadable")

	_, err := fx.orch.LoadData(context.Background())
	assert.Error(t, err)
}

func TestLoadData_SecondCallServedFromCache(t *testing.T) {
	primary := &fakeProvider{name: "primary", available: true, dataset: realDataset()}
	fx := newFixture(t, primary)

	first, err := fx.orch.LoadData(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, primary.loads)

	second, err := fx.orch.LoadData(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, primary.loads, "second load must hit the cache")
	assert.Equal(t, first.Mode, second.Mode)
	assert.Equal(t, first.Quality, second.Quality)
}

// The first load of a process drops whatever an older release left in the
// cache instead of trusting it.
func TestLoadData_StaleCacheDroppedOnFirstLoad(t *testing.T) {
	primary := &fakeProvider{name: "primary", available: true, dataset: realDataset()}
	fx := newFixture(t, primary)

	stale := realDataset()
	stale.Quality = 1
	fx.cache.Set(context.Background(), "dataset", stale, time.Hour)

	d, err := fx.orch.LoadData(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, primary.loads, "stale cache entry must not be served")
	assert.Equal(t, 100, d.Quality)
}
