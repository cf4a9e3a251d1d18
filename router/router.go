package router

import (
	"time"

	"github.com/pearl-natalia/lumen/risk"
	"github.com/pearl-natalia/lumen/router/algo"
	"github.com/pearl-natalia/lumen/streets"
)

// Options select how one pricing run treats risk.
type Options struct {
	// Night applies the night multipliers to incidents and cameras.
	Night bool
	// Now anchors incident decay, zero means time.Now().
	Now time.Time
}

// Router prices a street network once and answers point-to-point
// queries on it.
type Router struct {
	params CostParams
	net    *streets.Network
	proj   projection
	name   string

	costs     map[streets.EdgeID]float64
	graph     *algo.SearchGraph[int64, *streets.Edge]
	nodeIndex map[int64]int
}

type arcKey struct {
	from, to int64
}

// New builds the safest-walk router: incident and camera points are
// aggregated onto the network and every segment priced with EdgeCost.
func New(net *streets.Network, points []risk.Point, params CostParams, opt Options) *Router {
	now := opt.Now
	if now.IsZero() {
		now = time.Now()
	}
	bound := net.Bound()
	proj := newProjection(bound.Center())

	var incidentPts, cameraPts []WeightedPoint
	outside := 0
	for _, pt := range points {
		if !bound.Contains(pt.Loc) {
			outside++
			continue
		}
		wp := WeightedPoint{
			Loc:    proj.project(pt.Loc),
			Weight: params.PointWeight(pt, now, opt.Night),
		}
		if pt.Kind == risk.KindCamera {
			cameraPts = append(cameraPts, wp)
		} else {
			incidentPts = append(incidentPts, wp)
		}
	}
	if outside > 0 {
		log.Debugf("trimmed %d risk points outside the network bound", outside)
	}

	incidentSums := aggregate(net, proj, incidentPts, params.IncidentRadiusM)
	cameraSums := aggregate(net, proj, cameraPts, params.CameraRadiusM)
	rows := ComputeWeights(net, params, incidentSums, cameraSums)

	r := &Router{
		params: params,
		net:    net,
		proj:   proj,
		name:   "Safest Night Walk",
		costs:  ApplyWeights(net, rows),
	}
	// risk-priced costs can undercut the metric length, so no distance
	// heuristic is admissible here
	r.buildGraph(algo.ZeroHeuristics{})
	log.Infof("safest router ready: %d nodes, %d incident points, %d camera points",
		net.NodeCount(), len(incidentPts), len(cameraPts))
	return r
}

// NewShortest builds a plain shortest-walk router over the same network,
// costs are just the segment lengths.
func NewShortest(net *streets.Network, params CostParams) *Router {
	costs := make(map[streets.EdgeID]float64, len(net.Edges()))
	for _, e := range net.Edges() {
		costs[e.EdgeID] = e.Length
	}
	r := &Router{
		params: params,
		net:    net,
		proj:   newProjection(net.Bound().Center()),
		name:   "Shortest Walk",
		costs:  costs,
	}
	r.buildGraph(algo.GreatCircleHeuristics{})
	log.Infof("shortest router ready: %d nodes", net.NodeCount())
	return r
}

// buildGraph flattens the multigraph into the search graph. The arc
// between a node pair takes the cheapest parallel segment, first wins a
// tie, and the winning segment rides along as the edge attr.
func (r *Router) buildGraph(h algo.Heuristics) {
	graph := algo.NewSearchGraph[int64, *streets.Edge](h)
	r.nodeIndex = make(map[int64]int, r.net.NodeCount())
	for _, node := range r.net.Nodes() {
		r.nodeIndex[node.ID] = graph.InitNode(node.Loc, node.ID)
	}
	bestEdge := make(map[arcKey]*streets.Edge)
	bestCost := make(map[arcKey]float64)
	order := make([]arcKey, 0, len(r.net.Edges()))
	for _, e := range r.net.Edges() {
		k := arcKey{from: e.From, to: e.To}
		c := r.costs[e.EdgeID]
		if cur, ok := bestCost[k]; !ok {
			bestCost[k] = c
			bestEdge[k] = e
			order = append(order, k)
		} else if c < cur {
			bestCost[k] = c
			bestEdge[k] = e
		}
	}
	for _, k := range order {
		graph.InitEdge(r.nodeIndex[k.from], r.nodeIndex[k.to], bestCost[k], bestEdge[k])
	}
	r.graph = graph
}

// Cost returns the priced cost of one directed segment.
func (r *Router) Cost(id streets.EdgeID) (float64, bool) {
	c, ok := r.costs[id]
	return c, ok
}

// Name returns the label routes from this router carry.
func (r *Router) Name() string {
	return r.name
}

// Network returns the priced street network.
func (r *Router) Network() *streets.Network {
	return r.net
}
