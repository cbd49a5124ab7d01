package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yakutia-transit/routesearch/internal/model"
)

func buildDataset() *model.Dataset {
	l := func(lat, lon float64) *model.Location { return &model.Location{Lat: lat, Lon: lon} }
	return &model.Dataset{
		Stops: []model.Stop{
			{ID: "yks-airport", Name: "Аэропорт, г. Якутск", Location: l(62.09, 129.77), IsAirport: true},
			{ID: "yks-bus", Name: "Автовокзал, г. Якутск", Location: l(62.02, 129.71)},
			{ID: "olk-bus", Name: "Автостанция, Олёкминск", Location: l(60.37, 120.42)},
			{ID: "virtual-stop-тикси", Name: "Тикси", CityID: "тикси", Location: l(71.64, 128.87)},
		},
		Routes: []model.Route{
			{ID: "bus-yks-olk", Name: "Якутск - Олёкминск", TransportType: model.TransportBus,
				Stops: []string{"yks-bus", "olk-bus"}, DurationMinutes: 240},
			{ID: "air-yks-tik", Name: "Якутск - Тикси", TransportType: model.TransportAirplane,
				Stops: []string{"yks-airport", "virtual-stop-тикси"}},
		},
	}
}

func edgeBetween(t *testing.T, g *Graph, from, to string) Edge {
	t.Helper()
	for _, e := range g.EdgesFrom(from) {
		if e.ToStopID == to {
			return e
		}
	}
	t.Fatalf("no edge %s -> %s", from, to)
	return Edge{}
}

func TestBuild_NodesCarryCityAndVirtualFlag(t *testing.T) {
	g := NewBuilder(zap.NewNop()).Build(buildDataset())

	require.Equal(t, 4, g.NodeCount())

	n, ok := g.GetNode("yks-airport")
	require.True(t, ok)
	assert.Equal(t, "якутск", n.CityName)
	assert.False(t, n.IsVirtual)

	v, ok := g.GetNode("virtual-stop-тикси")
	require.True(t, ok)
	assert.True(t, v.IsVirtual)
	assert.Len(t, g.FindNodesByCity("Якутск"), 2)
}

func TestBuild_WeightFromRouteDuration(t *testing.T) {
	g := NewBuilder(zap.NewNop()).Build(buildDataset())

	e := edgeBetween(t, g, "yks-bus", "olk-bus")
	assert.Equal(t, 240.0, e.Weight)
	assert.Equal(t, EdgeRide, e.Type)
	assert.Equal(t, "bus-yks-olk", e.RouteID)
	assert.Positive(t, e.DistanceKm)
}

func TestBuild_WeightFromRepresentativeFlight(t *testing.T) {
	d := buildDataset()
	dep := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	d.Flights = []model.Flight{
		// A later, longer flight must not win over the earliest departure.
		{ID: "f2", RouteID: "bus-yks-olk", FromStopID: "yks-bus", ToStopID: "olk-bus",
			Departure: dep.Add(6 * time.Hour), Arrival: dep.Add(6*time.Hour + 500*time.Minute)},
		{ID: "f1", RouteID: "bus-yks-olk", FromStopID: "yks-bus", ToStopID: "olk-bus",
			Departure: dep, Arrival: dep.Add(230 * time.Minute)},
	}

	g := NewBuilder(zap.NewNop()).Build(d)

	e := edgeBetween(t, g, "yks-bus", "olk-bus")
	assert.Equal(t, 230.0, e.Weight)
	assert.Equal(t, "f1", e.FlightID)
}

func TestBuild_WeightFromTemplateFallback(t *testing.T) {
	g := NewBuilder(zap.NewNop()).Build(buildDataset())

	// Airplane route has no flights and no duration: template gives 120.
	e := edgeBetween(t, g, "yks-airport", "virtual-stop-тикси")
	assert.Equal(t, 120.0, e.Weight)
}

func TestBuild_MultiStopRouteSplitsDuration(t *testing.T) {
	d := buildDataset()
	d.Routes = []model.Route{
		{ID: "r", Name: "r", TransportType: model.TransportBus,
			Stops: []string{"yks-airport", "yks-bus", "olk-bus"}, DurationMinutes: 300},
	}

	g := NewBuilder(zap.NewNop()).Build(d)

	assert.Equal(t, 150.0, edgeBetween(t, g, "yks-airport", "yks-bus").Weight)
	assert.Equal(t, 150.0, edgeBetween(t, g, "yks-bus", "olk-bus").Weight)
}

func TestBuild_TransferEdges(t *testing.T) {
	g := NewBuilder(zap.NewNop()).Build(buildDataset())

	// Airport and bus terminal in Yakutsk are different facilities: a
	// bidirectional transfer pair of the default weight.
	forward := edgeBetween(t, g, "yks-airport", "yks-bus")
	back := edgeBetween(t, g, "yks-bus", "yks-airport")
	assert.Equal(t, EdgeTransfer, forward.Type)
	assert.Equal(t, EdgeTransfer, back.Type)
	assert.Equal(t, float64(TransferWeightMinutes), forward.Weight)
	assert.Equal(t, float64(TransferWeightMinutes), back.Weight)
}

func TestBuild_NoTransferBetweenSameFacility(t *testing.T) {
	d := buildDataset()
	d.Stops = append(d.Stops, model.Stop{
		ID: "yks-bus-2", Name: "Автостанция, г. Якутск",
		Location: &model.Location{Lat: 62.01, Lon: 129.70},
	})

	g := NewBuilder(zap.NewNop()).Build(d)

	for _, e := range g.EdgesFrom("yks-bus") {
		assert.NotEqual(t, "yks-bus-2", e.ToStopID, "two bus terminals must not get a transfer edge")
	}
}

func TestBuild_SkipsDegenerateRoutes(t *testing.T) {
	d := buildDataset()
	d.Routes = append(d.Routes,
		model.Route{ID: "single", Name: "single", TransportType: model.TransportBus, Stops: []string{"yks-bus"}},
		model.Route{ID: "dangling", Name: "dangling", TransportType: model.TransportBus, Stops: []string{"yks-bus", "ghost"}},
	)

	g := NewBuilder(zap.NewNop()).Build(d)

	for _, e := range g.EdgesFrom("yks-bus") {
		assert.NotEqual(t, "ghost", e.ToStopID)
	}
	assert.True(t, g.Validate().IsValid)
}

func TestBuild_ResultPassesWeightAudit(t *testing.T) {
	g := NewBuilder(zap.NewNop()).Build(buildDataset())
	assert.Zero(t, g.ValidateAllEdgesWeight().TotalInvalid)
}
