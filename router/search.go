package router

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// ErrNoRoute means the endpoints sit in disconnected parts of the
// walkable network.
var ErrNoRoute = errors.New("no walkable route between the endpoints")

// nearestNode returns the search-graph index of the node closest to p.
func (r *Router) nearestNode(p orb.Point) int {
	pp := r.proj.project(p)
	best := 0
	bestD := math.Inf(0)
	for i := 0; i < r.graph.NodeCount(); i++ {
		q := r.proj.project(r.graph.NodePoint(i))
		dx := q[0] - pp[0]
		dy := q[1] - pp[1]
		if d := dx*dx + dy*dy; d < bestD {
			bestD = d
			best = i
		}
	}
	return best
}

// Navigate snaps both points to their nearest network nodes and runs the
// priced search between them.
func (r *Router) Navigate(origin, dest orb.Point) (route *Route, err error) {
	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("%v", e)
			log.Errorln(err)
		}
	}()
	path, cost := r.graph.ShortestPath(r.nearestNode(origin), r.nearestNode(dest))
	if path == nil || math.IsInf(cost, 0) || len(path) < 2 {
		log.Debugf("routing failed, no path between %v and %v", origin, dest)
		return nil, fmt.Errorf("%w: %v to %v", ErrNoRoute, origin, dest)
	}
	return r.assemble(path, cost), nil
}
