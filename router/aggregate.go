package router

import (
	"math"

	"github.com/pearl-natalia/lumen/streets"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const (
	metersPerDegLat   = 110574.0
	metersPerDegLonEq = 111320.0
)

// projection maps lon/lat onto a local tangent plane in meters. Over a
// city-sized bound the distance error stays well under the probe radii,
// unlike Web Mercator which inflates meters by ~40% at this latitude.
type projection struct {
	lon0, lat0 float64
	mPerLon    float64
	mPerLat    float64
}

func newProjection(center orb.Point) projection {
	return projection{
		lon0:    center.Lon(),
		lat0:    center.Lat(),
		mPerLon: metersPerDegLonEq * math.Cos(center.Lat()*math.Pi/180),
		mPerLat: metersPerDegLat,
	}
}

func (pr projection) project(p orb.Point) orb.Point {
	return orb.Point{
		(p.Lon() - pr.lon0) * pr.mPerLon,
		(p.Lat() - pr.lat0) * pr.mPerLat,
	}
}

// WeightedPoint is a projected risk point carrying its aggregation
// weight.
type WeightedPoint struct {
	Loc    orb.Point // projected meters
	Weight float64
}

type indexedSegment struct {
	id   streets.EdgeID
	a, b orb.Point
}

// edgeIndex buckets projected geometry segments on a uniform grid so a
// radius probe only inspects nearby cells.
type edgeIndex struct {
	cell float64
	grid map[[2]int][]indexedSegment
}

func newEdgeIndex(cell float64) *edgeIndex {
	return &edgeIndex{
		cell: cell,
		grid: make(map[[2]int][]indexedSegment),
	}
}

func (ix *edgeIndex) cellAt(x float64) int {
	return int(math.Floor(x / ix.cell))
}

func (ix *edgeIndex) insert(id streets.EdgeID, a, b orb.Point) {
	seg := indexedSegment{id: id, a: a, b: b}
	// cover every cell under the segment's bounding box
	for cx := ix.cellAt(math.Min(a[0], b[0])); cx <= ix.cellAt(math.Max(a[0], b[0])); cx++ {
		for cy := ix.cellAt(math.Min(a[1], b[1])); cy <= ix.cellAt(math.Max(a[1], b[1])); cy++ {
			key := [2]int{cx, cy}
			ix.grid[key] = append(ix.grid[key], seg)
		}
	}
}

// sumNear adds each point's weight onto every edge whose geometry passes
// within radius of it. An edge counts a point once no matter how many of
// its segments are in range.
func (ix *edgeIndex) sumNear(points []WeightedPoint, radius float64) map[streets.EdgeID]float64 {
	out := make(map[streets.EdgeID]float64)
	reach := int(radius/ix.cell) + 1
	for _, pt := range points {
		cx0 := ix.cellAt(pt.Loc[0])
		cy0 := ix.cellAt(pt.Loc[1])
		seen := make(map[streets.EdgeID]struct{})
		for dx := -reach; dx <= reach; dx++ {
			for dy := -reach; dy <= reach; dy++ {
				for _, seg := range ix.grid[[2]int{cx0 + dx, cy0 + dy}] {
					if _, ok := seen[seg.id]; ok {
						continue
					}
					if planar.DistanceFromSegment(seg.a, seg.b, pt.Loc) <= radius {
						seen[seg.id] = struct{}{}
						out[seg.id] += pt.Weight
					}
				}
			}
		}
	}
	return out
}

// aggregate sums point weights over every directed segment of the
// network within radius.
func aggregate(net *streets.Network, proj projection, points []WeightedPoint, radius float64) map[streets.EdgeID]float64 {
	if len(points) == 0 {
		return map[streets.EdgeID]float64{}
	}
	cell := math.Max(radius, 1)
	ix := newEdgeIndex(cell)
	for _, e := range net.Edges() {
		for i := 1; i < len(e.Geometry); i++ {
			ix.insert(e.EdgeID, proj.project(e.Geometry[i-1]), proj.project(e.Geometry[i]))
		}
	}
	return ix.sumNear(points, radius)
}
