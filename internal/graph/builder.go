package graph

import (
	"sort"

	"go.uber.org/zap"

	"github.com/yakutia-transit/routesearch/internal/model"
	"github.com/yakutia-transit/routesearch/internal/recovery"
	"github.com/yakutia-transit/routesearch/pkg/cityname"
	"github.com/yakutia-transit/routesearch/pkg/geo"
)

// minEdgeWeightMinutes floors every derived weight; a zero or negative
// travel time would break the shortest-path invariants.
const minEdgeWeightMinutes = 1

// Builder transforms a dataset into a routing graph.
type Builder struct {
	log *zap.Logger
}

// NewBuilder creates a graph builder.
func NewBuilder(log *zap.Logger) *Builder {
	return &Builder{log: log.Named("builder")}
}

// Build constructs a fresh graph from the dataset. The dataset is treated as
// an immutable snapshot.
//
// Edge weight precedence per adjacent stop pair:
//  1. a representative flight on that pair (earliest departure): minutes
//     between arrival and departure
//  2. route duration divided across the route's pairs
//  3. the schedule template's default duration for the transport type
func (b *Builder) Build(d *model.Dataset) *Graph {
	g := New()

	// ── Nodes ───────────────────────────────────────────
	for i := range d.Stops {
		stop := &d.Stops[i]
		g.AddNode(Node{
			StopID:    stop.ID,
			StopName:  stop.Name,
			CityName:  cityname.CityOf(stop.CityID, stop.Name),
			Location:  stop.Location,
			IsVirtual: cityname.IsVirtualStopID(stop.ID),
		})
	}

	// ── Route edges ─────────────────────────────────────
	flightIdx := indexFlights(d.Flights)
	skipped := 0
	for i := range d.Routes {
		route := &d.Routes[i]
		if len(route.Stops) < 2 {
			continue
		}
		pairs := len(route.Stops) - 1
		for j := 0; j < pairs; j++ {
			from, to := route.Stops[j], route.Stops[j+1]
			edge := Edge{
				FromStopID:    from,
				ToStopID:      to,
				RouteID:       route.ID,
				TransportType: route.TransportType,
				Type:          EdgeRide,
			}

			if rep := flightIdx.representative(route.ID, from, to); rep != nil {
				edge.Weight = rep.DurationMinutes()
				edge.FlightID = rep.ID
			} else if route.DurationMinutes > 0 {
				edge.Weight = route.DurationMinutes / float64(pairs)
			} else {
				edge.Weight = recovery.TemplateDurationMinutes(route.TransportType)
			}
			if edge.Weight < minEdgeWeightMinutes {
				edge.Weight = minEdgeWeightMinutes
			}

			if fn, ok := g.GetNode(from); ok {
				if tn, tok := g.GetNode(to); tok && fn.Location != nil && tn.Location != nil {
					edge.DistanceKm = geo.HaversineKm(*fn.Location, *tn.Location)
				}
			}

			if err := g.AddEdge(edge); err != nil {
				skipped++
			}
		}
	}

	// ── Transfer edges ──────────────────────────────────
	transfers := b.addTransferEdges(g, d)

	if skipped > 0 {
		b.log.Warn("builder skipped invalid edges", zap.Int("skipped", skipped))
	}
	b.log.Info("graph built",
		zap.Int("nodes", g.NodeCount()),
		zap.Int("edges", g.EdgeCount()),
		zap.Int("transfer_edges", transfers),
	)
	return g
}

// addTransferEdges connects real stops that share a city but serve different
// facilities (airport, railway station, ferry pier, bus terminal) with
// bidirectional TRANSFER edges of the default weight.
func (b *Builder) addTransferEdges(g *Graph, d *model.Dataset) int {
	byCity := make(map[string][]*model.Stop)
	for i := range d.Stops {
		stop := &d.Stops[i]
		if cityname.IsVirtualStopID(stop.ID) {
			continue
		}
		city := cityname.CityOf(stop.CityID, stop.Name)
		byCity[city] = append(byCity[city], stop)
	}

	added := 0
	for _, stops := range byCity {
		if len(stops) < 2 {
			continue
		}
		sort.Slice(stops, func(i, j int) bool { return stops[i].ID < stops[j].ID })
		for i := 0; i < len(stops); i++ {
			for j := i + 1; j < len(stops); j++ {
				a, b2 := stops[i], stops[j]
				if facility(a) == facility(b2) {
					continue
				}
				for _, pair := range [][2]string{{a.ID, b2.ID}, {b2.ID, a.ID}} {
					err := g.AddEdge(Edge{
						FromStopID:    pair[0],
						ToStopID:      pair[1],
						Weight:        TransferWeightMinutes,
						TransportType: model.TransportUnknown,
						Type:          EdgeTransfer,
					})
					if err == nil {
						added++
					}
				}
			}
		}
	}
	return added
}

// facility classifies the transport facility of a stop.
func facility(s *model.Stop) string {
	switch {
	case s.IsAirport:
		return "airport"
	case s.IsRailway:
		return "railway"
	case s.IsFerryTerminal:
		return "ferry"
	default:
		return "terminal"
	}
}

// ─── Flight index ───────────────────────────────────────────

type pairKey struct {
	routeID string
	from    string
	to      string
}

type flightIndex map[pairKey]*model.Flight

// indexFlights keeps the earliest departure per (route, from, to) pair as
// the representative flight for edge weighting.
func indexFlights(flights []model.Flight) flightIndex {
	idx := make(flightIndex, len(flights))
	for i := range flights {
		f := &flights[i]
		if !f.Arrival.After(f.Departure) {
			continue
		}
		key := pairKey{f.RouteID, f.FromStopID, f.ToStopID}
		if cur, ok := idx[key]; !ok || f.Departure.Before(cur.Departure) {
			idx[key] = f
		}
	}
	return idx
}

func (idx flightIndex) representative(routeID, from, to string) *model.Flight {
	return idx[pairKey{routeID, from, to}]
}
