// Package search implements the shortest-time path finder over the routing
// graph: a multi-source multi-target Dijkstra with deterministic tie-breaks
// and Yen-style alternative enumeration.
package search

import (
	"container/heap"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yakutia-transit/routesearch/internal/graph"
	"github.com/yakutia-transit/routesearch/internal/model"
	"github.com/yakutia-transit/routesearch/pkg/cityname"
)

// ─── Error codes ────────────────────────────────────────────

const (
	ErrCodeStopsNotFound    = "STOPS_NOT_FOUND"
	ErrCodeGraphOutOfSync   = "GRAPH_OUT_OF_SYNC"
	ErrCodeRoutesNotFound   = "ROUTES_NOT_FOUND"
	ErrCodeGraphInvalid     = "GRAPH_INVALID"
	ErrCodeGraphUnavailable = "GRAPH_UNAVAILABLE"
)

// DefaultKAlternatives is how many alternative itineraries are enumerated.
const DefaultKAlternatives = 3

// Finder runs searches over a published graph snapshot. It keeps no mutable
// state between searches; all scratch structures are per-call.
type Finder struct {
	log           *zap.Logger
	kAlternatives int
}

// NewFinder creates a path finder.
func NewFinder(log *zap.Logger, kAlternatives int) *Finder {
	if kAlternatives <= 0 {
		kAlternatives = DefaultKAlternatives
	}
	return &Finder{log: log.Named("search"), kAlternatives: kAlternatives}
}

// Search resolves both cities to node sets and finds the fastest itinerary
// plus alternatives. knownCities is the set of normalized city names present
// in the source catalog; it separates "city does not exist" from "graph is
// out of sync with the catalog".
func (f *Finder) Search(ctx context.Context, g *graph.Graph, knownCities map[string]bool, req model.SearchRequest) model.SearchResult {
	start := time.Now()
	result := model.SearchResult{GraphAvailable: g != nil}

	if g == nil {
		return fail(result, start, ErrCodeGraphUnavailable, "routing graph is not available")
	}

	// Guardrail: a graph with any invalid edge weight must not be searched.
	if audit := g.ValidateAllEdgesWeight(); audit.TotalInvalid > 0 {
		f.log.Error("graph failed weight audit, refusing search",
			zap.Int("invalid_edges", audit.TotalInvalid))
		return fail(result, start, ErrCodeGraphInvalid,
			fmt.Sprintf("graph contains %d edges with invalid weight", audit.TotalInvalid))
	}

	fromNodes := g.FindNodesByCity(req.FromCity)
	toNodes := g.FindNodesByCity(req.ToCity)

	if len(fromNodes) == 0 {
		return fail(result, start, f.classifyMissingCity(knownCities, req.FromCity), missingCityMessage(knownCities, req.FromCity))
	}
	if len(toNodes) == 0 {
		return fail(result, start, f.classifyMissingCity(knownCities, req.ToCity), missingCityMessage(knownCities, req.ToCity))
	}

	sources := nodeIDs(fromNodes)
	targets := make(map[string]bool, len(toNodes))
	for _, n := range toNodes {
		targets[n.StopID] = true
	}

	primary := dijkstra(g, sources, targets, bans{})
	if primary == nil {
		return fail(result, start, ErrCodeRoutesNotFound,
			fmt.Sprintf("no route found from %q to %q", req.FromCity, req.ToCity))
	}

	result.Routes = []model.FoundRoute{f.reconstruct(primary)}
	if ctx.Err() == nil {
		result.Alternatives = f.alternatives(g, sources, targets, primary, result.Routes[0])
	}
	result.Success = true
	result.ExecutionTimeMs = float64(time.Since(start).Microseconds()) / 1000.0
	return result
}

func (f *Finder) classifyMissingCity(knownCities map[string]bool, city string) string {
	// Stops known to the catalog but absent from the graph mean the graph
	// lagged behind a sync, not that the city is wrong.
	if knownCities[cityname.Normalize(city)] {
		return ErrCodeGraphOutOfSync
	}
	return ErrCodeStopsNotFound
}

func missingCityMessage(knownCities map[string]bool, city string) string {
	if knownCities[cityname.Normalize(city)] {
		return fmt.Sprintf("graph is out of sync: catalog knows city %q but graph has no matching nodes", city)
	}
	return fmt.Sprintf("No stops found for city: %s", city)
}

// ─── Dijkstra ───────────────────────────────────────────────

// pathResult is a found path in edge form.
type pathResult struct {
	nodes    []string
	edges    []graph.Edge
	duration float64
}

// bans excludes edges and nodes during spur searches for alternatives.
type bans struct {
	edges map[string]bool // "from\x00to\x00route"
	nodes map[string]bool
}

func (b bans) edgeBanned(e graph.Edge) bool {
	if b.edges == nil {
		return false
	}
	return b.edges[edgeKey(e)]
}

func (b bans) nodeBanned(id string) bool {
	return b.nodes != nil && b.nodes[id]
}

func edgeKey(e graph.Edge) string {
	return e.FromStopID + "\x00" + e.ToStopID + "\x00" + e.RouteID
}

// visitState orders the heap: cumulative minutes first, then hop count, then
// the lexicographic stop-id path. The last two make results deterministic
// across map iteration orders.
type visitState struct {
	dist    float64
	hops    int
	pathKey string
	node    string
	index   int
}

type visitQueue []*visitState

func (q visitQueue) Len() int { return len(q) }

func (q visitQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	if q[i].hops != q[j].hops {
		return q[i].hops < q[j].hops
	}
	return q[i].pathKey < q[j].pathKey
}

func (q visitQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *visitQueue) Push(x interface{}) {
	item := x.(*visitState)
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *visitQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// dijkstra runs a multi-source shortest-time search and stops at the first
// popped target. Returns nil when no target is reachable.
func dijkstra(g *graph.Graph, sources []string, targets map[string]bool, banned bans) *pathResult {
	type best struct {
		dist    float64
		hops    int
		pathKey string
	}
	bestTo := make(map[string]best)
	prevEdge := make(map[string]graph.Edge)
	prevNode := make(map[string]string)
	settled := make(map[string]bool)

	q := &visitQueue{}
	heap.Init(q)

	sorted := append([]string(nil), sources...)
	sort.Strings(sorted)
	for _, s := range sorted {
		if banned.nodeBanned(s) {
			continue
		}
		bestTo[s] = best{0, 0, s}
		heap.Push(q, &visitState{dist: 0, hops: 0, pathKey: s, node: s})
	}

	for q.Len() > 0 {
		cur := heap.Pop(q).(*visitState)
		if settled[cur.node] {
			continue
		}
		settled[cur.node] = true

		if targets[cur.node] {
			return backtrack(cur.node, sources, prevNode, prevEdge, cur.dist)
		}

		for _, e := range g.EdgesFrom(cur.node) {
			if settled[e.ToStopID] || banned.nodeBanned(e.ToStopID) || banned.edgeBanned(e) {
				continue
			}
			cand := best{
				dist:    cur.dist + e.Weight,
				hops:    cur.hops + 1,
				pathKey: cur.pathKey + "\x00" + e.ToStopID,
			}
			known, ok := bestTo[e.ToStopID]
			if ok && !better(cand.dist, cand.hops, cand.pathKey, known.dist, known.hops, known.pathKey) {
				continue
			}
			bestTo[e.ToStopID] = cand
			prevEdge[e.ToStopID] = e
			prevNode[e.ToStopID] = cur.node
			heap.Push(q, &visitState{dist: cand.dist, hops: cand.hops, pathKey: cand.pathKey, node: e.ToStopID})
		}
	}
	return nil
}

func better(dist float64, hops int, pathKey string, oDist float64, oHops int, oPathKey string) bool {
	if dist != oDist {
		return dist < oDist
	}
	if hops != oHops {
		return hops < oHops
	}
	return pathKey < oPathKey
}

func backtrack(target string, sources []string, prevNode map[string]string, prevEdge map[string]graph.Edge, dist float64) *pathResult {
	sourceSet := make(map[string]bool, len(sources))
	for _, s := range sources {
		sourceSet[s] = true
	}

	var revNodes []string
	var revEdges []graph.Edge
	node := target
	revNodes = append(revNodes, node)
	for !sourceSet[node] {
		e, ok := prevEdge[node]
		if !ok {
			break
		}
		revEdges = append(revEdges, e)
		node = prevNode[node]
		revNodes = append(revNodes, node)
	}

	// Reverse in place.
	for i, j := 0, len(revNodes)-1; i < j; i, j = i+1, j-1 {
		revNodes[i], revNodes[j] = revNodes[j], revNodes[i]
	}
	for i, j := 0, len(revEdges)-1; i < j; i, j = i+1, j-1 {
		revEdges[i], revEdges[j] = revEdges[j], revEdges[i]
	}

	return &pathResult{nodes: revNodes, edges: revEdges, duration: dist}
}

// ─── Reconstruction ─────────────────────────────────────────

// reconstruct collapses consecutive edges that share a route id into one
// segment and assembles the itinerary DTO.
func (f *Finder) reconstruct(p *pathResult) model.FoundRoute {
	route := model.FoundRoute{
		RouteID:       uuid.NewString(),
		TotalDuration: p.duration,
		StopIDs:       p.nodes,
	}

	var seg *model.RouteSegment
	var segRoute string
	flush := func() {
		if seg != nil {
			route.Segments = append(route.Segments, *seg)
			seg = nil
		}
	}

	for i := range p.edges {
		e := &p.edges[i]
		// Consecutive edges on the same route are one segment.
		if seg != nil && segRoute == e.RouteID && seg.To == e.FromStopID {
			seg.To = e.ToStopID
			seg.Duration += e.Weight
			continue
		}
		flush()
		segRoute = e.RouteID
		seg = &model.RouteSegment{
			SegmentID:     uuid.NewString(),
			From:          e.FromStopID,
			To:            e.ToStopID,
			TransportType: model.NormalizeTransportType(string(e.TransportType)),
			Duration:      e.Weight,
			FlightNumber:  e.FlightID,
		}
	}
	flush()

	if len(route.Segments) > 0 {
		route.TransferCount = len(route.Segments) - 1
	}
	return route
}

// ─── Alternatives ───────────────────────────────────────────

// alternatives enumerates up to K alternative paths with Yen's algorithm.
// Candidates whose duration equals the primary's are kept only when their
// segment composition differs; the result is sorted ascending by duration.
func (f *Finder) alternatives(g *graph.Graph, sources []string, targets map[string]bool, primary *pathResult, primaryRoute model.FoundRoute) []model.FoundRoute {
	type candidate struct {
		path *pathResult
		key  string
	}
	accepted := []*pathResult{primary}
	seen := map[string]bool{pathKeyOf(primary): true}
	var pool []candidate

	for k := 0; k < f.kAlternatives; k++ {
		base := accepted[len(accepted)-1]
		for i := 0; i < len(base.nodes)-1; i++ {
			spur := base.nodes[i]
			banned := bans{edges: make(map[string]bool), nodes: make(map[string]bool)}

			// Ban the next edge of every accepted path sharing this root.
			for _, p := range accepted {
				if len(p.nodes) > i && equalPrefix(p.nodes, base.nodes, i+1) && len(p.edges) > i {
					banned.edges[edgeKey(p.edges[i])] = true
				}
			}
			// Ban root nodes so the spur path cannot loop back.
			for _, n := range base.nodes[:i] {
				banned.nodes[n] = true
			}

			spurPath := dijkstra(g, []string{spur}, targets, banned)
			if spurPath == nil {
				continue
			}

			total := joinPaths(base, i, spurPath)
			key := pathKeyOf(total)
			if seen[key] {
				continue
			}
			seen[key] = true
			pool = append(pool, candidate{path: total, key: key})
		}

		if len(pool) == 0 {
			break
		}
		sort.Slice(pool, func(a, b int) bool {
			if pool[a].path.duration != pool[b].path.duration {
				return pool[a].path.duration < pool[b].path.duration
			}
			return pool[a].key < pool[b].key
		})
		accepted = append(accepted, pool[0].path)
		pool = pool[1:]
	}

	var out []model.FoundRoute
	for _, p := range accepted[1:] {
		alt := f.reconstruct(p)
		if alt.TotalDuration == primaryRoute.TotalDuration &&
			sameComposition(alt, primaryRoute) {
			continue
		}
		out = append(out, alt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalDuration < out[j].TotalDuration })
	return out
}

func equalPrefix(a, b []string, n int) bool {
	if len(a) < n || len(b) < n {
		return false
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func joinPaths(base *pathResult, rootLen int, spur *pathResult) *pathResult {
	nodes := append(append([]string(nil), base.nodes[:rootLen]...), spur.nodes...)
	edges := append(append([]graph.Edge(nil), base.edges[:rootLen]...), spur.edges...)
	duration := 0.0
	for _, e := range edges {
		duration += e.Weight
	}
	return &pathResult{nodes: nodes, edges: edges, duration: duration}
}

func pathKeyOf(p *pathResult) string {
	return strings.Join(p.nodes, "\x00")
}

// sameComposition compares itineraries by their (transport, from, to)
// segment sequences.
func sameComposition(a, b model.FoundRoute) bool {
	if len(a.Segments) != len(b.Segments) {
		return false
	}
	for i := range a.Segments {
		as, bs := a.Segments[i], b.Segments[i]
		if as.TransportType != bs.TransportType || as.From != bs.From || as.To != bs.To {
			return false
		}
	}
	return true
}

// ─── Helpers ────────────────────────────────────────────────

func fail(result model.SearchResult, start time.Time, code, message string) model.SearchResult {
	result.Success = false
	result.ErrorCode = code
	result.ErrorMessage = message
	result.ExecutionTimeMs = float64(time.Since(start).Microseconds()) / 1000.0
	return result
}

func nodeIDs(nodes []graph.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.StopID
	}
	return out
}
