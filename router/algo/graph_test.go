package algo_test

import (
	"math"
	"testing"

	"github.com/pearl-natalia/lumen/router/algo"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestSearchGraph(t *testing.T) {
	g := algo.NewSearchGraph[int, int](algo.ZeroHeuristics{})

	n1 := g.InitNode(orb.Point{0, 0}, 1)
	n2 := g.InitNode(orb.Point{0, 1}, 2)
	n3 := g.InitNode(orb.Point{1, 0}, 3)
	n4 := g.InitNode(orb.Point{1, 1}, 4)

	g.InitEdge(n1, n2, 1, 12)
	g.InitEdge(n2, n3, 1, 23)
	g.InitEdge(n3, n4, 1, 34)

	assert.Equal(t, 4, g.NodeCount())
	assert.Equal(t, orb.Point{0, 1}, g.NodePoint(n2))

	weight := g.GetEdgeWeight(n1, n2)
	assert.Equal(t, 1.0, weight)
	assert.NoError(t, g.SetEdgeWeight(n1, n2, 2.0))
	weight = g.GetEdgeWeight(n1, n2)
	assert.Equal(t, 2.0, weight)
	assert.NoError(t, g.SetEdgeWeight(n1, n2, 1.0))

	path, cost := g.ShortestPath(n1, n4)
	assert.Len(t, path, 4)
	assert.Equal(t, 1, path[0].NodeAttr)
	assert.Equal(t, 12, path[0].EdgeAttr)
	assert.Equal(t, 2, path[1].NodeAttr)
	assert.Equal(t, 23, path[1].EdgeAttr)
	assert.Equal(t, 3, path[2].NodeAttr)
	assert.Equal(t, 34, path[2].EdgeAttr)
	assert.Equal(t, 4, path[3].NodeAttr)
	assert.Equal(t, 3.0, cost)

	path, cost = g.ShortestPath(n3, n3)
	assert.Len(t, path, 1)
	assert.Equal(t, 3, path[0].NodeAttr)
	assert.Equal(t, 0.0, cost)

	// node with no edges at all is unreachable
	n5 := g.InitNode(orb.Point{2, 2}, 5)
	path, cost = g.ShortestPath(n1, n5)
	assert.Nil(t, path)
	assert.Equal(t, math.Inf(0), cost)
}

func TestSearchGraphDetour(t *testing.T) {
	g := algo.NewSearchGraph[int, int](algo.ZeroHeuristics{})

	n1 := g.InitNode(orb.Point{0, 0}, 1)
	n2 := g.InitNode(orb.Point{0, 1}, 2)
	n3 := g.InitNode(orb.Point{1, 0}, 3)

	// direct edge is heavier than the two-hop detour
	g.InitEdge(n1, n2, 10, 12)
	g.InitEdge(n1, n3, 2, 13)
	g.InitEdge(n3, n2, 1, 32)

	path, cost := g.ShortestPath(n1, n2)
	assert.Len(t, path, 3)
	assert.Equal(t, 1, path[0].NodeAttr)
	assert.Equal(t, 13, path[0].EdgeAttr)
	assert.Equal(t, 3, path[1].NodeAttr)
	assert.Equal(t, 32, path[1].EdgeAttr)
	assert.Equal(t, 2, path[2].NodeAttr)
	assert.Equal(t, 3.0, cost)
}

func TestSearchGraphSetEdgeWeight(t *testing.T) {
	g := algo.NewSearchGraph[int, int](algo.ZeroHeuristics{})

	n1 := g.InitNode(orb.Point{0, 0}, 1)
	n2 := g.InitNode(orb.Point{0, 1}, 2)
	g.InitEdge(n1, n2, 1, 12)

	assert.ErrorIs(t, g.SetEdgeWeight(n1, n2, -1), algo.ErrNegativeWeight)
	assert.ErrorIs(t, g.SetEdgeWeight(n2, n1, 1), algo.ErrNoEdge)

	// rerouting after a weight change picks up the new weight
	assert.NoError(t, g.SetEdgeWeight(n1, n2, 5))
	_, cost := g.ShortestPath(n1, n2)
	assert.Equal(t, 5.0, cost)
}
