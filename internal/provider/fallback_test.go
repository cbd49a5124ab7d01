package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yakutia-transit/routesearch/internal/model"
)

func TestFallback_LoadsEmbeddedDemoData(t *testing.T) {
	p := NewFallbackProvider("", zap.NewNop())

	assert.True(t, p.Available(context.Background()))

	d, err := p.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.ModeMock, d.Mode)
	assert.Equal(t, 100, d.Quality)
	assert.Equal(t, "fallback", d.Source)
	assert.NotEmpty(t, d.Stops)
	assert.NotEmpty(t, d.Routes)
	assert.NotEmpty(t, d.Flights)
}

func TestFallback_DemoDataIsWellFormed(t *testing.T) {
	p := NewFallbackProvider("", zap.NewNop())
	d, err := p.Load(context.Background())
	require.NoError(t, err)

	stopIDs := make(map[string]bool, len(d.Stops))
	for _, s := range d.Stops {
		assert.NotEmpty(t, s.ID)
		assert.NotEmpty(t, s.Name)
		require.NotNil(t, s.Location, "demo stop %s lacks coordinates", s.ID)
		assert.True(t, s.Location.InRange())
		stopIDs[s.ID] = true
	}

	routeIDs := make(map[string]bool, len(d.Routes))
	for _, r := range d.Routes {
		assert.NotEqual(t, model.TransportUnknown, r.TransportType, "route %s", r.ID)
		require.GreaterOrEqual(t, len(r.Stops), 2, "route %s", r.ID)
		for _, id := range r.Stops {
			assert.True(t, stopIDs[id], "route %s references unknown stop %s", r.ID, id)
		}
		routeIDs[r.ID] = true
	}

	for _, f := range d.Flights {
		assert.True(t, routeIDs[f.RouteID], "flight %s references unknown route", f.ID)
		assert.True(t, f.Arrival.After(f.Departure), "flight %s has non-positive duration", f.ID)
	}
}

func TestFallback_MissingDataDirFails(t *testing.T) {
	p := NewFallbackProvider("/nonexistent-demo-dir", zap.NewNop())
	_, err := p.Load(context.Background())
	assert.Error(t, err)
}

func TestCatalog_UnavailableWithoutPool(t *testing.T) {
	p := NewCatalogProvider(nil, zap.NewNop())
	assert.False(t, p.Available(context.Background()))
	assert.Equal(t, "primary", p.Name())
}
