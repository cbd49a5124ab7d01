package recovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yakutia-transit/routesearch/config"
	"github.com/yakutia-transit/routesearch/internal/model"
	"github.com/yakutia-transit/routesearch/pkg/cityname"
)

func testService() *Service {
	return NewService(zap.NewNop(), config.RegionConfig{
		HubCityName:     "Якутск",
		RegionCenterLat: 62.0,
		RegionCenterLon: 129.0,
	})
}

func loc(lat, lon float64) *model.Location {
	return &model.Location{Lat: lat, Lon: lon}
}

// sparseDataset has a hub stop, one provincial stop, a coordinate gap, and
// no schedules: the typical shape that lands in the RECOVERY band.
func sparseDataset() *model.Dataset {
	return &model.Dataset{
		Stops: []model.Stop{
			{ID: "yks-airport", Name: "Аэропорт, г. Якутск", Location: loc(62.09, 129.77)},
			{ID: "olk-bus", Name: "Автостанция, Олёкминск"},
			{ID: "lnk-ferry", Name: "Речной порт, Ленск", Location: loc(60.72, 114.93)},
		},
		Routes: []model.Route{
			{ID: "r1", Name: "Якутск - Ленск", TransportType: model.TransportBus,
				Stops: []string{"yks-airport", "olk-bus", "lnk-ferry"}},
		},
	}
}

// ─── Coordinates ────────────────────────────────────────────

func TestRecoverCoordinates_Midpoint(t *testing.T) {
	s := testService()
	d := &model.Dataset{
		Stops: []model.Stop{
			{ID: "a", Name: "A", Location: loc(60, 130)},
			{ID: "b", Name: "B"},
			{ID: "c", Name: "C", Location: loc(62, 132)},
		},
		Routes: []model.Route{
			{ID: "r", Name: "r", TransportType: model.TransportBus, Stops: []string{"a", "b", "c"}},
		},
	}

	ops := &Operations{}
	require.NoError(t, s.recoverCoordinates(d, ops))

	assert.Equal(t, 1, ops.CoordinatesRecovered)
	require.NotNil(t, d.Stops[1].Location)
	assert.Equal(t, 61.0, d.Stops[1].Location.Lat)
	assert.Equal(t, 131.0, d.Stops[1].Location.Lon)
}

func TestRecoverCoordinates_SingleNeighbor(t *testing.T) {
	s := testService()
	d := &model.Dataset{
		Stops: []model.Stop{
			{ID: "a", Name: "A", Location: loc(60, 130)},
			{ID: "b", Name: "B"},
		},
		Routes: []model.Route{
			{ID: "r", Name: "r", TransportType: model.TransportBus, Stops: []string{"a", "b"}},
		},
	}

	require.NoError(t, s.recoverCoordinates(d, &Operations{}))

	require.NotNil(t, d.Stops[1].Location)
	assert.InDelta(t, 60+singleNeighborOffsetDeg, d.Stops[1].Location.Lat, 1e-9)
	assert.InDelta(t, 130+singleNeighborOffsetDeg, d.Stops[1].Location.Lon, 1e-9)
}

func TestRecoverCoordinates_RegionCenterFallback(t *testing.T) {
	s := testService()
	d := &model.Dataset{
		Stops: []model.Stop{{ID: "orphan", Name: "X"}},
	}

	require.NoError(t, s.recoverCoordinates(d, &Operations{}))

	require.NotNil(t, d.Stops[0].Location)
	assert.Equal(t, 62.0, d.Stops[0].Location.Lat)
	assert.Equal(t, 129.0, d.Stops[0].Location.Lon)
}

// ─── Schedules ──────────────────────────────────────────────

func TestSynthesizeRouteFlights_Deterministic(t *testing.T) {
	route := &model.Route{
		ID: "r1", Name: "r1", TransportType: model.TransportBus,
		Stops: []string{"a", "b"},
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := synthesizeRouteFlights(route, now)
	second := synthesizeRouteFlights(route, now)

	require.Equal(t, len(first), len(second))
	assert.Equal(t, first, second)

	// Bus template: 4 flights per day per leg over a year.
	assert.Len(t, first, scheduleDays*4)
	assert.Equal(t, "r1-d000-s0-l0", first[0].ID)
	assert.Equal(t, 240.0, first[0].DurationMinutes())
}

func TestSynthesizeRouteFlights_TemplatePerType(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		transport model.TransportType
		perDay    int
		duration  float64
	}{
		{model.TransportAirplane, 2, 120},
		{model.TransportBus, 4, 240},
		{model.TransportTrain, 3, 180},
		{model.TransportFerry, 2, 180},
		{model.TransportTaxi, 1, 60},
		{model.TransportUnknown, 2, 120},
	}
	for _, tc := range cases {
		route := &model.Route{ID: "r-" + string(tc.transport), TransportType: tc.transport, Stops: []string{"a", "b"}}
		flights := synthesizeRouteFlights(route, now)
		assert.Len(t, flights, scheduleDays*tc.perDay, "type %s", tc.transport)
		assert.Equal(t, tc.duration, flights[0].DurationMinutes(), "type %s", tc.transport)
	}
}

func TestTemplateDurationMinutes(t *testing.T) {
	assert.Equal(t, 240.0, TemplateDurationMinutes(model.TransportBus))
	assert.Equal(t, 120.0, TemplateDurationMinutes(model.TransportType("hovercraft")))
}

// ─── Full pipeline ──────────────────────────────────────────

func TestRecover_FillsGapsAndBuildsVirtualLayer(t *testing.T) {
	s := testService()
	in := sparseDataset()

	out, ops := s.Recover(in, &model.QualityReport{OverallScore: 60})

	// Input untouched.
	assert.Nil(t, in.Stops[1].Location)
	assert.Len(t, in.Routes, 1)

	assert.Equal(t, model.ModeRecovery, out.Mode)
	assert.Equal(t, 1, ops.CoordinatesRecovered)
	assert.Positive(t, ops.FlightsGenerated)
	assert.Positive(t, ops.VirtualStopsCreated)
	assert.Positive(t, ops.HubRoutesCreated)
	assert.Positive(t, ops.MeshRoutesCreated)
	assert.Positive(t, ops.BridgeRoutesCreated)

	// Cities already covered by catalog stops get no virtual stop.
	for _, stop := range out.Stops {
		if cityname.IsVirtualStopID(stop.ID) {
			assert.NotEqual(t, "virtual-stop-якутск", stop.ID)
			assert.NotEqual(t, "virtual-stop-олекминск", stop.ID)
			assert.NotEqual(t, "virtual-stop-ленск", stop.ID)
		}
	}
}

func TestRecover_VirtualMeshComplete(t *testing.T) {
	s := testService()
	out, _ := s.Recover(sparseDataset(), &model.QualityReport{OverallScore: 60})

	var virtual []model.Stop
	for _, stop := range out.Stops {
		if cityname.IsVirtualStopID(stop.ID) {
			virtual = append(virtual, stop)
		}
	}
	require.NotEmpty(t, virtual)

	routes := make(map[string]bool, len(out.Routes))
	for _, r := range out.Routes {
		routes[r.ID] = true
	}
	for _, a := range virtual {
		for _, b := range virtual {
			if a.ID == b.ID {
				continue
			}
			id := cityname.VirtualRouteID(a.ID, b.ID)
			assert.True(t, routes[id], "missing mesh route %s", id)
		}
	}
}

func TestRecover_BridgesRealAndVirtual(t *testing.T) {
	s := testService()
	out, _ := s.Recover(sparseDataset(), &model.QualityReport{OverallScore: 60})

	routes := make(map[string]bool, len(out.Routes))
	for _, r := range out.Routes {
		routes[r.ID] = true
	}
	for _, stop := range out.Stops {
		if !cityname.IsVirtualStopID(stop.ID) {
			continue
		}
		assert.True(t, routes[cityname.VirtualRouteID("yks-airport", stop.ID)],
			"real stop not bridged to %s", stop.ID)
		assert.True(t, routes[cityname.VirtualRouteID(stop.ID, "yks-airport")],
			"%s not bridged back to real stop", stop.ID)
	}
}

// Deterministic ids make re-running recovery over an already recovered
// dataset a complete no-op.
func TestRecover_Idempotent(t *testing.T) {
	s := testService()

	first, _ := s.Recover(sparseDataset(), &model.QualityReport{OverallScore: 60})
	second, ops2 := s.Recover(first, &model.QualityReport{OverallScore: 60})

	assert.Equal(t, len(first.Stops), len(second.Stops))
	assert.Equal(t, len(first.Routes), len(second.Routes))
	assert.Equal(t, len(first.Flights), len(second.Flights))
	assert.Equal(t, &Operations{}, ops2)
}

func TestFillMissingNames(t *testing.T) {
	s := testService()
	d := &model.Dataset{
		Stops: []model.Stop{
			{ID: "a", Name: "named"},
			{ID: "b"},
			{ID: "c"},
		},
	}

	ops := &Operations{}
	require.NoError(t, s.fillMissingNames(d, ops))

	assert.Equal(t, 2, ops.NamesFilled)
	assert.Equal(t, "named", d.Stops[0].Name)
	assert.Equal(t, "Stop #2", d.Stops[1].Name)
	assert.Equal(t, "Stop #3", d.Stops[2].Name)
}

func TestRegionCities(t *testing.T) {
	cities := RegionCities()
	assert.Equal(t, RegionCityCount(), len(cities))
	assert.GreaterOrEqual(t, len(cities), 20)

	seen := make(map[string]bool, len(cities))
	for _, c := range cities {
		norm := cityname.Normalize(c.Name)
		assert.False(t, seen[norm], "duplicate region city %s", c.Name)
		seen[norm] = true
		assert.True(t, c.Location.InRange(), "city %s has out-of-range coordinates", c.Name)
	}
	assert.True(t, seen["якутск"], "hub city missing from region table")
}
