package provider

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/yakutia-transit/routesearch/internal/model"
)

//go:embed demo/stops.json demo/routes.json demo/flights.json
var demoFS embed.FS

// FallbackProvider serves the static demonstration dataset. It reads three
// JSON blobs from a directory, or from the embedded demo files when no
// directory is configured. As long as the files parse it never fails.
type FallbackProvider struct {
	dataDir string
	log     *zap.Logger
}

// NewFallbackProvider creates a fallback provider. An empty dataDir selects
// the embedded demo dataset.
func NewFallbackProvider(dataDir string, log *zap.Logger) *FallbackProvider {
	return &FallbackProvider{dataDir: dataDir, log: log.Named("fallback")}
}

// Name implements Provider.
func (p *FallbackProvider) Name() string { return "fallback" }

// Available implements Provider. The demo data ships with the binary, so
// the fallback is always available.
func (p *FallbackProvider) Available(ctx context.Context) bool { return true }

// Load reads the three demo collections. The resulting dataset is marked
// MOCK with quality 100: it is complete by construction, just not real.
func (p *FallbackProvider) Load(ctx context.Context) (*model.Dataset, error) {
	var stops []model.Stop
	var routes []model.Route
	var flights []model.Flight

	if err := p.readJSON("stops.json", &stops); err != nil {
		return nil, err
	}
	if err := p.readJSON("routes.json", &routes); err != nil {
		return nil, err
	}
	if err := p.readJSON("flights.json", &flights); err != nil {
		return nil, err
	}

	for i := range routes {
		routes[i].TransportType = model.NormalizeTransportType(string(routes[i].TransportType))
	}

	p.log.Info("fallback dataset loaded",
		zap.Int("stops", len(stops)),
		zap.Int("routes", len(routes)),
		zap.Int("flights", len(flights)),
	)

	return &model.Dataset{
		Stops:    stops,
		Routes:   routes,
		Flights:  flights,
		Mode:     model.ModeMock,
		Quality:  100,
		Source:   p.Name(),
		LoadedAt: time.Now().UTC(),
	}, nil
}

func (p *FallbackProvider) readJSON(name string, out interface{}) error {
	var (
		data []byte
		err  error
	)
	if p.dataDir != "" {
		data, err = os.ReadFile(filepath.Join(p.dataDir, name))
	} else {
		data, err = fs.ReadFile(demoFS, "demo/"+name)
	}
	if err != nil {
		return fmt.Errorf("fallback: read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("fallback: parse %s: %w", name, err)
	}
	return nil
}
