// Package recovery completes partial datasets so that a usable, fully
// connected graph can always be built.
//
// The seven steps run in a fixed order and every generated entity has a
// deterministic id, so re-running recovery over an already recovered dataset
// is a no-op. A failing step is logged and skipped; the dataset continues
// with partial recovery.
package recovery

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yakutia-transit/routesearch/config"
	"github.com/yakutia-transit/routesearch/internal/model"
	"github.com/yakutia-transit/routesearch/pkg/cityname"
	"github.com/yakutia-transit/routesearch/pkg/geo"
)

// ─── Constants ──────────────────────────────────────────────

const (
	// singleNeighborOffsetDeg displaces an interpolated stop from its only
	// known neighbor so the two don't collapse onto one point.
	singleNeighborOffsetDeg = 0.01

	// hubSearchRadiusDeg is the window around the configured hub coordinate
	// used when no stop matches the hub city by name.
	hubSearchRadiusDeg = 0.5
)

// Operations reports how much each step changed the dataset.
type Operations struct {
	CoordinatesRecovered int `json:"coordinates_recovered"`
	FlightsGenerated     int `json:"flights_generated"`
	NamesFilled          int `json:"names_filled"`
	VirtualStopsCreated  int `json:"virtual_stops_created"`
	HubRoutesCreated     int `json:"hub_routes_created"`
	MeshRoutesCreated    int `json:"mesh_routes_created"`
	BridgeRoutesCreated  int `json:"bridge_routes_created"`
}

// Service runs the recovery pipeline.
type Service struct {
	log          *zap.Logger
	hubCityName  string
	regionCenter model.Location
}

// NewService creates a recovery service for the configured region.
func NewService(log *zap.Logger, region config.RegionConfig) *Service {
	return &Service{
		log:         log.Named("recovery"),
		hubCityName: region.HubCityName,
		regionCenter: model.Location{
			Lat: region.RegionCenterLat,
			Lon: region.RegionCenterLon,
		},
	}
}

// Recover returns a completed copy of the dataset plus the applied
// operations. The input dataset is never mutated.
func (s *Service) Recover(d *model.Dataset, report *model.QualityReport) (*model.Dataset, *Operations) {
	out := d.Clone()
	ops := &Operations{}

	steps := []struct {
		name string
		run  func(*model.Dataset, *Operations) error
	}{
		{"recover_coordinates", s.recoverCoordinates},
		{"synthesize_schedules", s.synthesizeSchedules},
		{"fill_missing_names", s.fillMissingNames},
		{"create_virtual_stops", s.createVirtualStops},
		{"create_hub_routes", s.createHubRoutes},
		{"create_virtual_mesh", s.createVirtualMesh},
		{"bridge_real_virtual", s.bridgeRealVirtual},
	}

	for _, step := range steps {
		if err := step.run(out, ops); err != nil {
			s.log.Warn("recovery step failed, continuing with partial recovery",
				zap.String("step", step.name),
				zap.Error(err),
			)
		}
	}

	out.Mode = model.ModeRecovery
	s.log.Info("recovery completed",
		zap.Int("coordinates_recovered", ops.CoordinatesRecovered),
		zap.Int("flights_generated", ops.FlightsGenerated),
		zap.Int("names_filled", ops.NamesFilled),
		zap.Int("virtual_stops", ops.VirtualStopsCreated),
		zap.Int("hub_routes", ops.HubRoutesCreated),
		zap.Int("mesh_routes", ops.MeshRoutesCreated),
		zap.Int("bridge_routes", ops.BridgeRoutesCreated),
	)
	return out, ops
}

// ─── Step 1: coordinates ────────────────────────────────────

// recoverCoordinates interpolates missing stop coordinates from route
// neighbors: midpoint of the nearest known previous and next stop, a small
// offset from a single known neighbor, or the region center as last resort.
func (s *Service) recoverCoordinates(d *model.Dataset, ops *Operations) error {
	locByID := make(map[string]*model.Location, len(d.Stops))
	for i := range d.Stops {
		if d.Stops[i].Location != nil {
			locByID[d.Stops[i].ID] = d.Stops[i].Location
		}
	}

	for i := range d.Stops {
		stop := &d.Stops[i]
		if stop.Location != nil {
			continue
		}

		var left, right *model.Location
		for _, route := range d.Routes {
			pos := indexOf(route.Stops, stop.ID)
			if pos < 0 {
				continue
			}
			if left == nil {
				for j := pos - 1; j >= 0; j-- {
					if loc := locByID[route.Stops[j]]; loc != nil {
						left = loc
						break
					}
				}
			}
			if right == nil {
				for j := pos + 1; j < len(route.Stops); j++ {
					if loc := locByID[route.Stops[j]]; loc != nil {
						right = loc
						break
					}
				}
			}
			if left != nil && right != nil {
				break
			}
		}

		var recovered model.Location
		switch {
		case left != nil && right != nil:
			recovered = geo.Midpoint(*left, *right)
		case left != nil:
			recovered = model.Location{Lat: left.Lat + singleNeighborOffsetDeg, Lon: left.Lon + singleNeighborOffsetDeg}
		case right != nil:
			recovered = model.Location{Lat: right.Lat + singleNeighborOffsetDeg, Lon: right.Lon + singleNeighborOffsetDeg}
		default:
			recovered = s.regionCenter
		}

		stop.Location = &recovered
		locByID[stop.ID] = stop.Location
		ops.CoordinatesRecovered++
	}
	return nil
}

// ─── Step 2: schedules ──────────────────────────────────────

// synthesizeSchedules generates a year of template-driven flights for every
// catalog route that has none. Virtual routes are skipped: they carry an
// explicit duration and the graph builder weights them from it directly.
func (s *Service) synthesizeSchedules(d *model.Dataset, ops *Operations) error {
	scheduled := make(map[string]bool, len(d.Routes))
	for _, f := range d.Flights {
		scheduled[f.RouteID] = true
	}

	now := time.Now().UTC()
	for i := range d.Routes {
		route := &d.Routes[i]
		if scheduled[route.ID] || len(route.Stops) < 2 || cityname.IsVirtualRouteID(route.ID) {
			continue
		}
		flights := synthesizeRouteFlights(route, now)
		d.Flights = append(d.Flights, flights...)
		ops.FlightsGenerated += len(flights)
	}
	return nil
}

// ─── Step 3: names ──────────────────────────────────────────

func (s *Service) fillMissingNames(d *model.Dataset, ops *Operations) error {
	for i := range d.Stops {
		if d.Stops[i].Name == "" {
			d.Stops[i].Name = fmt.Sprintf("Stop #%d", i+1)
			ops.NamesFilled++
		}
	}
	return nil
}

// ─── Step 4: virtual stops ──────────────────────────────────

// createVirtualStops inserts one virtual stop per region-table city that no
// existing stop covers.
func (s *Service) createVirtualStops(d *model.Dataset, ops *Operations) error {
	present := make(map[string]bool, len(d.Stops))
	for _, stop := range d.Stops {
		present[stopCity(&stop)] = true
	}

	for _, city := range RegionCities() {
		norm := cityname.Normalize(city.Name)
		if present[norm] {
			continue
		}
		loc := city.Location
		d.Stops = append(d.Stops, model.Stop{
			ID:       cityname.VirtualStopID(city.Name),
			Name:     city.Name,
			CityID:   norm,
			Location: &loc,
			Metadata: map[string]string{"virtual": "true"},
		})
		present[norm] = true
		ops.VirtualStopsCreated++
	}
	return nil
}

// ─── Step 5: hub routes ─────────────────────────────────────

// createHubRoutes stars every city-level stop to the hub in both directions
// and synthesizes a year of bus-template flights for each new route.
func (s *Service) createHubRoutes(d *model.Dataset, ops *Operations) error {
	hub := s.findHub(d)
	if hub == nil {
		return fmt.Errorf("no hub stop found for city %q", s.hubCityName)
	}
	hubCity := stopCity(hub)

	routeByID := routeIDSet(d)
	for i := range d.Stops {
		stop := &d.Stops[i]
		if !cityname.IsVirtualStopID(stop.ID) || stopCity(stop) == hubCity {
			continue
		}
		for _, pair := range [][2]*model.Stop{{stop, hub}, {hub, stop}} {
			from, to := pair[0], pair[1]
			routeID := cityname.VirtualRouteID(from.ID, to.ID)
			if routeByID[routeID] {
				continue
			}
			route := virtualRoute(routeID, from, to, model.TransportBus)
			d.Routes = append(d.Routes, route)
			routeByID[routeID] = true
			ops.HubRoutesCreated++

			flights := synthesizeRouteFlights(&route, time.Now().UTC())
			d.Flights = append(d.Flights, flights...)
			ops.FlightsGenerated += len(flights)
		}
	}
	return nil
}

// findHub picks the hub stop: the first stop in the hub city by normalized
// name, else the nearest stop within the search window of the hub coordinate.
func (s *Service) findHub(d *model.Dataset) *model.Stop {
	hubNorm := cityname.Normalize(s.hubCityName)
	for i := range d.Stops {
		if stopCity(&d.Stops[i]) == hubNorm {
			return &d.Stops[i]
		}
	}

	hubLoc := s.regionCenter
	for _, city := range RegionCities() {
		if cityname.Normalize(city.Name) == hubNorm {
			hubLoc = city.Location
			break
		}
	}

	var best *model.Stop
	bestDist := hubSearchRadiusDeg
	for i := range d.Stops {
		stop := &d.Stops[i]
		if stop.Location == nil {
			continue
		}
		if dist := geo.EuclideanDeg(*stop.Location, hubLoc); dist <= bestDist {
			best = stop
			bestDist = dist
		}
	}
	return best
}

// ─── Step 6: virtual mesh ───────────────────────────────────

// createVirtualMesh guarantees a direct virtual route between every ordered
// pair of virtual stops. Route duration is the haversine travel estimate.
func (s *Service) createVirtualMesh(d *model.Dataset, ops *Operations) error {
	var virtual []int
	for i := range d.Stops {
		if cityname.IsVirtualStopID(d.Stops[i].ID) {
			virtual = append(virtual, i)
		}
	}

	routeByID := routeIDSet(d)
	for _, ai := range virtual {
		for _, bi := range virtual {
			if ai == bi {
				continue
			}
			from, to := &d.Stops[ai], &d.Stops[bi]
			routeID := cityname.VirtualRouteID(from.ID, to.ID)
			if routeByID[routeID] {
				continue
			}
			d.Routes = append(d.Routes, virtualRoute(routeID, from, to, model.TransportBus))
			routeByID[routeID] = true
			ops.MeshRoutesCreated++
		}
	}
	return nil
}

// ─── Step 7: real↔virtual bridging ──────────────────────────

// bridgeRealVirtual connects every real stop with every virtual stop in both
// directions, so catalog stops are always reachable from the virtual mesh.
func (s *Service) bridgeRealVirtual(d *model.Dataset, ops *Operations) error {
	var real, virtual []int
	for i := range d.Stops {
		if cityname.IsVirtualStopID(d.Stops[i].ID) {
			virtual = append(virtual, i)
		} else {
			real = append(real, i)
		}
	}

	routeByID := routeIDSet(d)
	for _, ri := range real {
		for _, vi := range virtual {
			for _, pair := range [][2]int{{ri, vi}, {vi, ri}} {
				from, to := &d.Stops[pair[0]], &d.Stops[pair[1]]
				routeID := cityname.VirtualRouteID(from.ID, to.ID)
				if routeByID[routeID] {
					continue
				}
				d.Routes = append(d.Routes, virtualRoute(routeID, from, to, model.TransportBus))
				routeByID[routeID] = true
				ops.BridgeRoutesCreated++
			}
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────

// stopCity resolves a stop's normalized city through the shared contract.
func stopCity(stop *model.Stop) string {
	return cityname.CityOf(stop.CityID, stop.Name)
}

func virtualRoute(routeID string, from, to *model.Stop, t model.TransportType) model.Route {
	route := model.Route{
		ID:            routeID,
		Name:          fmt.Sprintf("%s - %s", from.Name, to.Name),
		Stops:         []string{from.ID, to.ID},
		TransportType: t,
		Metadata:      map[string]string{"virtual": "true"},
	}
	if from.Location != nil && to.Location != nil {
		route.DurationMinutes = geo.VirtualTravelMinutes(*from.Location, *to.Location)
	}
	return route
}

func routeIDSet(d *model.Dataset) map[string]bool {
	set := make(map[string]bool, len(d.Routes))
	for _, r := range d.Routes {
		set[r.ID] = true
	}
	return set
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
