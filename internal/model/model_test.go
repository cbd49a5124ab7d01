package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataset_CloneIsDeep(t *testing.T) {
	orig := &Dataset{
		Stops: []Stop{
			{ID: "a", Name: "A", Location: &Location{Lat: 62, Lon: 129}},
		},
		Routes: []Route{
			{ID: "r1", Name: "R1", Stops: []string{"a", "b"},
				Metadata: map[string]string{"carrier": "x"}},
		},
		Flights: []Flight{
			{ID: "f1", RouteID: "r1", Departure: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)},
		},
		Mode:    ModeReal,
		Quality: 97,
		Source:  "primary",
	}

	clone := orig.Clone()
	require.Equal(t, orig, clone)

	clone.Stops[0].Location.Lat = 0
	clone.Routes[0].Stops[0] = "mutated"
	clone.Routes[0].Metadata["carrier"] = "y"
	clone.Flights[0].ID = "f2"

	assert.Equal(t, 62.0, orig.Stops[0].Location.Lat)
	assert.Equal(t, "a", orig.Routes[0].Stops[0])
	assert.Equal(t, "x", orig.Routes[0].Metadata["carrier"])
	assert.Equal(t, "f1", orig.Flights[0].ID)
}

func TestLocation_InRange(t *testing.T) {
	cases := []struct {
		lat, lon float64
		want     bool
	}{
		{62.03, 129.73, true},
		{0, 0, true},
		{90, 180, true},
		{-91, 0, false},
		{0, 181, false},
	}
	for _, c := range cases {
		l := Location{Lat: c.lat, Lon: c.lon}
		assert.Equal(t, c.want, l.InRange(), "(%v, %v)", c.lat, c.lon)
	}
}
