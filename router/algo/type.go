package algo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Heuristics estimates the remaining cost between two node positions.
// The estimate must never exceed the true remaining cost.
type Heuristics interface {
	Estimate(p1, p2 orb.Point) float64
}

// ZeroHeuristics degrades A* to plain Dijkstra. Use it whenever the edge
// weights are not plain distances, e.g. risk-scaled costs that can drop
// below the metric length.
type ZeroHeuristics struct{}

func (ZeroHeuristics) Estimate(p1, p2 orb.Point) float64 {
	return 0
}

// GreatCircleHeuristics lower-bounds the remaining cost with the
// great-circle distance in meters. Only admissible when the edge weights
// are plain lengths in meters.
type GreatCircleHeuristics struct{}

func (GreatCircleHeuristics) Estimate(p1, p2 orb.Point) float64 {
	return geo.Distance(p1, p2)
}
