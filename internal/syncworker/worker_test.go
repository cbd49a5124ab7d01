package syncworker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yakutia-transit/routesearch/internal/model"
	"github.com/yakutia-transit/routesearch/pkg/metrics"
)

func hashDataset() *model.Dataset {
	return &model.Dataset{
		Stops: []model.Stop{
			{ID: "b", Name: "B", Location: &model.Location{Lat: 62, Lon: 129}},
			{ID: "a", Name: "A"},
		},
		Routes: []model.Route{
			{ID: "r2", Name: "R2", TransportType: model.TransportBus, Stops: []string{"a", "b"}},
			{ID: "r1", Name: "R1", TransportType: model.TransportAirplane, Stops: []string{"b", "a"}},
		},
		Flights: []model.Flight{
			{ID: "f1", RouteID: "r1", FromStopID: "b", ToStopID: "a",
				Departure: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
				Arrival:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		},
	}
}

func TestContentHash_Stable(t *testing.T) {
	first, err := ContentHash(hashDataset())
	require.NoError(t, err)
	second, err := ContentHash(hashDataset())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

// The canonical form sorts collections by id, so source ordering must not
// change the hash.
func TestContentHash_OrderIndependent(t *testing.T) {
	base, err := ContentHash(hashDataset())
	require.NoError(t, err)

	shuffled := hashDataset()
	shuffled.Stops[0], shuffled.Stops[1] = shuffled.Stops[1], shuffled.Stops[0]
	shuffled.Routes[0], shuffled.Routes[1] = shuffled.Routes[1], shuffled.Routes[0]

	got, err := ContentHash(shuffled)
	require.NoError(t, err)
	assert.Equal(t, base, got)
}

// Provenance fields are not content: reloading the same catalog at a
// different time must hash identically.
func TestContentHash_IgnoresProvenance(t *testing.T) {
	base, err := ContentHash(hashDataset())
	require.NoError(t, err)

	reloaded := hashDataset()
	reloaded.Mode = model.ModeReal
	reloaded.Quality = 97
	reloaded.Source = "primary"
	reloaded.LoadedAt = time.Now()

	got, err := ContentHash(reloaded)
	require.NoError(t, err)
	assert.Equal(t, base, got)
}

func TestContentHash_DetectsChanges(t *testing.T) {
	base, err := ContentHash(hashDataset())
	require.NoError(t, err)

	cases := map[string]func(*model.Dataset){
		"stop renamed":     func(d *model.Dataset) { d.Stops[1].Name = "A2" },
		"stop added":       func(d *model.Dataset) { d.Stops = append(d.Stops, model.Stop{ID: "c", Name: "C"}) },
		"route reordered":  func(d *model.Dataset) { d.Routes[0].Stops = []string{"b", "a"} },
		"flight rescheduled": func(d *model.Dataset) {
			d.Flights[0].Departure = d.Flights[0].Departure.Add(time.Hour)
		},
		"coordinates moved": func(d *model.Dataset) { d.Stops[0].Location.Lat = 63 },
	}
	for name, mutate := range cases {
		d := hashDataset()
		mutate(d)
		got, err := ContentHash(d)
		require.NoError(t, err)
		assert.NotEqual(t, base, got, name)
	}
}

// Timezone-shifted timestamps of the same instant are the same content.
func TestContentHash_TimesNormalizedToUTC(t *testing.T) {
	base, err := ContentHash(hashDataset())
	require.NoError(t, err)

	shifted := hashDataset()
	yakutsk := time.FixedZone("YAKT", 9*3600)
	shifted.Flights[0].Departure = shifted.Flights[0].Departure.In(yakutsk)
	shifted.Flights[0].Arrival = shifted.Flights[0].Arrival.In(yakutsk)

	got, err := ContentHash(shifted)
	require.NoError(t, err)
	assert.Equal(t, base, got)
}

func TestCanRun_MinimumInterval(t *testing.T) {
	w := New(zap.NewNop(), nil, nil, metrics.New(), time.Hour, nil)

	assert.True(t, w.CanRun(), "first run is always allowed")

	w.markRun()
	assert.False(t, w.CanRun(), "second run inside the interval is gated")

	w.mu.Lock()
	w.lastRun = time.Now().Add(-2 * time.Hour)
	w.mu.Unlock()
	assert.True(t, w.CanRun())
}
