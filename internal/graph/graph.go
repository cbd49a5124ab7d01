// Package graph owns the in-memory routing graph: node and edge tables,
// their invariants, and the builder and manager that feed them.
//
// Invariants maintained by every public mutation:
//   - every edge endpoint exists in the node table
//   - every node has an adjacency entry, possibly empty
//   - every edge weight is a finite number of minutes > 0
//   - no self-loops
//   - one edge per (from, to, route) triple; duplicates are idempotent
package graph

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/yakutia-transit/routesearch/internal/model"
	"github.com/yakutia-transit/routesearch/pkg/cityname"
)

// ─── Types ──────────────────────────────────────────────────

// EdgeType distinguishes scheduled travel from intra-city transfers.
type EdgeType string

const (
	EdgeRide     EdgeType = "RIDE"
	EdgeTransfer EdgeType = "TRANSFER"
)

// TransferWeightMinutes is the default cost of an intra-city mode change.
const TransferWeightMinutes = 90

// maxReportedInvalidEdges caps the edge list in a weight-audit result.
const maxReportedInvalidEdges = 10

// Node is one stop in the routing graph.
type Node struct {
	StopID    string          `json:"stop_id"`
	StopName  string          `json:"stop_name"`
	CityName  string          `json:"city_name"`
	Location  *model.Location `json:"location,omitempty"`
	IsVirtual bool            `json:"is_virtual"`
}

// Edge is one directed connection. Weight is minutes, strictly positive
// and finite.
type Edge struct {
	FromStopID    string              `json:"from_stop_id"`
	ToStopID      string              `json:"to_stop_id"`
	Weight        float64             `json:"weight"`
	RouteID       string              `json:"route_id,omitempty"`
	TransportType model.TransportType `json:"transport_type"`
	Type          EdgeType            `json:"type"`
	DistanceKm    float64             `json:"distance_km,omitempty"`
	FlightID      string              `json:"flight_id,omitempty"`
}

// ErrInvalidEdge is returned by AddEdge for any invariant violation.
var ErrInvalidEdge = errors.New("invalid edge")

// Graph is the in-memory adjacency structure. It is not safe for concurrent
// mutation; the manager publishes immutable snapshots to readers.
type Graph struct {
	nodes     map[string]Node
	edgesFrom map[string][]Edge
	cityIndex map[string][]string // normalized city -> stop ids
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:     make(map[string]Node),
		edgesFrom: make(map[string][]Edge),
		cityIndex: make(map[string][]string),
	}
}

// ─── Mutations ──────────────────────────────────────────────

// AddNode inserts a node, idempotent by stop id, and guarantees the node has
// an adjacency entry.
func (g *Graph) AddNode(n Node) {
	if _, exists := g.nodes[n.StopID]; !exists {
		city := cityname.Normalize(n.CityName)
		g.cityIndex[city] = append(g.cityIndex[city], n.StopID)
	}
	g.nodes[n.StopID] = n
	if _, ok := g.edgesFrom[n.StopID]; !ok {
		g.edgesFrom[n.StopID] = nil
	}
}

// AddEdge inserts a directed edge. Both endpoints must already be nodes.
// Self-loops, non-finite or non-positive weights, and duplicate
// (from, to, route) triples are rejected; duplicates are a silent no-op.
func (g *Graph) AddEdge(e Edge) error {
	if _, ok := g.nodes[e.FromStopID]; !ok {
		return fmt.Errorf("%w: unknown from node %q", ErrInvalidEdge, e.FromStopID)
	}
	if _, ok := g.nodes[e.ToStopID]; !ok {
		return fmt.Errorf("%w: unknown to node %q", ErrInvalidEdge, e.ToStopID)
	}
	if e.FromStopID == e.ToStopID {
		return fmt.Errorf("%w: self-loop at %q", ErrInvalidEdge, e.FromStopID)
	}
	if !validWeight(e.Weight) {
		return fmt.Errorf("%w: weight %v on %s->%s", ErrInvalidEdge, e.Weight, e.FromStopID, e.ToStopID)
	}
	for _, existing := range g.edgesFrom[e.FromStopID] {
		if existing.ToStopID == e.ToStopID && existing.RouteID == e.RouteID {
			return nil // idempotent insert
		}
	}
	g.edgesFrom[e.FromStopID] = append(g.edgesFrom[e.FromStopID], e)
	return nil
}

// Clear empties the graph.
func (g *Graph) Clear() {
	g.nodes = make(map[string]Node)
	g.edgesFrom = make(map[string][]Edge)
	g.cityIndex = make(map[string][]string)
}

// ─── Queries ────────────────────────────────────────────────

// GetNode returns a node by stop id.
func (g *Graph) GetNode(stopID string) (Node, bool) {
	n, ok := g.nodes[stopID]
	return n, ok
}

// EdgesFrom returns the outgoing edges of a node.
func (g *Graph) EdgesFrom(stopID string) []Edge {
	return g.edgesFrom[stopID]
}

// Neighbors returns the distinct target stop ids reachable in one hop. The
// slice is non-nil for any stop id, so callers can range without a presence
// check.
func (g *Graph) Neighbors(stopID string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(g.edgesFrom[stopID]))
	for _, e := range g.edgesFrom[stopID] {
		if !seen[e.ToStopID] {
			seen[e.ToStopID] = true
			out = append(out, e.ToStopID)
		}
	}
	return out
}

// FindNodesByCity returns all nodes whose city matches after normalization.
func (g *Graph) FindNodesByCity(city string) []Node {
	ids := g.cityIndex[cityname.Normalize(city)]
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// NodeIDs returns all stop ids in deterministic order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NodeCount and EdgeCount size the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }

func (g *Graph) EdgeCount() int {
	total := 0
	for _, edges := range g.edgesFrom {
		total += len(edges)
	}
	return total
}

// ─── Synchronize ────────────────────────────────────────────

// SyncReport summarizes what Synchronize repaired.
type SyncReport struct {
	RemovedEdges     int `json:"removed_edges"`
	FixedEdges       int `json:"fixed_edges"`
	InitializedNodes int `json:"initialized_nodes"`
}

// Synchronize repairs the graph in place: drops edges with missing
// endpoints, deduplicates (from, to, route) triples, and initializes missing
// adjacency entries. Running it twice changes nothing the second time.
func (g *Graph) Synchronize() SyncReport {
	report := SyncReport{}

	for from, edges := range g.edgesFrom {
		if _, ok := g.nodes[from]; !ok {
			report.RemovedEdges += len(edges)
			delete(g.edgesFrom, from)
			continue
		}
		seen := make(map[string]bool, len(edges))
		kept := edges[:0]
		for _, e := range edges {
			if _, ok := g.nodes[e.ToStopID]; !ok {
				report.RemovedEdges++
				continue
			}
			key := e.ToStopID + "\x00" + e.RouteID
			if seen[key] {
				report.FixedEdges++
				continue
			}
			seen[key] = true
			kept = append(kept, e)
		}
		g.edgesFrom[from] = kept
	}

	for id := range g.nodes {
		if _, ok := g.edgesFrom[id]; !ok {
			g.edgesFrom[id] = nil
			report.InitializedNodes++
		}
	}

	return report
}

// ─── Validation ─────────────────────────────────────────────

// ValidationResult is the outcome of a full invariant check.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors,omitempty"`
}

// Validate checks referential integrity, adjacency completeness, weights,
// self-loops, and duplicate triples without modifying the graph.
func (g *Graph) Validate() ValidationResult {
	var errs []string

	for from, edges := range g.edgesFrom {
		if _, ok := g.nodes[from]; !ok {
			errs = append(errs, fmt.Sprintf("edges from unknown node %q", from))
		}
		seen := make(map[string]bool, len(edges))
		for _, e := range edges {
			if _, ok := g.nodes[e.ToStopID]; !ok {
				errs = append(errs, fmt.Sprintf("edge %s->%s targets unknown node", e.FromStopID, e.ToStopID))
			}
			if e.FromStopID == e.ToStopID {
				errs = append(errs, fmt.Sprintf("self-loop at %q", e.FromStopID))
			}
			if !validWeight(e.Weight) {
				errs = append(errs, fmt.Sprintf("edge %s->%s has invalid weight %v", e.FromStopID, e.ToStopID, e.Weight))
			}
			key := e.ToStopID + "\x00" + e.RouteID
			if seen[key] {
				errs = append(errs, fmt.Sprintf("duplicate edge %s->%s route %q", e.FromStopID, e.ToStopID, e.RouteID))
			}
			seen[key] = true
		}
	}

	for id := range g.nodes {
		if _, ok := g.edgesFrom[id]; !ok {
			errs = append(errs, fmt.Sprintf("node %q has no adjacency entry", id))
		}
	}

	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

// WeightAudit is the result of ValidateAllEdgesWeight.
type WeightAudit struct {
	TotalInvalid int    `json:"total_invalid"`
	Samples      []Edge `json:"samples,omitempty"`
}

// ValidateAllEdgesWeight scans every edge weight and returns the first few
// offenders plus the total count. A graph failing this audit must not be
// served to search.
func (g *Graph) ValidateAllEdgesWeight() WeightAudit {
	audit := WeightAudit{}
	for _, edges := range g.edgesFrom {
		for _, e := range edges {
			if validWeight(e.Weight) {
				continue
			}
			audit.TotalInvalid++
			if len(audit.Samples) < maxReportedInvalidEdges {
				audit.Samples = append(audit.Samples, e)
			}
		}
	}
	return audit
}

// ─── Stats ──────────────────────────────────────────────────

// Stats summarizes graph size.
type Stats struct {
	Nodes        int `json:"nodes"`
	VirtualNodes int `json:"virtual_nodes"`
	Edges        int `json:"edges"`
	Cities       int `json:"cities"`
}

// GetStats returns current counts.
func (g *Graph) GetStats() Stats {
	s := Stats{
		Nodes:  len(g.nodes),
		Edges:  g.EdgeCount(),
		Cities: len(g.cityIndex),
	}
	for _, n := range g.nodes {
		if n.IsVirtual {
			s.VirtualNodes++
		}
	}
	return s
}

// ─── Helpers ────────────────────────────────────────────────

func validWeight(w float64) bool {
	return w > 0 && !math.IsNaN(w) && !math.IsInf(w, 0)
}
