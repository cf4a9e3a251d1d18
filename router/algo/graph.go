package algo

import (
	"container/heap"
	"log"
	"math"

	"github.com/paulmach/orb"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/samber/lo"
)

type node[T any] struct {
	p    orb.Point
	attr T
}

type edge[T any] struct {
	weight float64
	attr   T
}

// SearchGraph is a directed graph with non-negative edge weights searched
// by A*. Nodes and edges are fixed after construction, but weights may be
// swapped between searches, so weight access goes through the mutex.
type SearchGraph[NT any, ET any] struct {
	// adjacency, in node -> out node -> weighted edge
	edges []map[int]edge[ET]
	// node positions, indexed by the int returned from InitNode
	nodes []node[NT]
	// A* remaining-cost estimate
	h Heuristics

	mu *xsync.RBMutex
}

func NewSearchGraph[NT any, ET any](h Heuristics) *SearchGraph[NT, ET] {
	return &SearchGraph[NT, ET]{
		edges: make([]map[int]edge[ET], 0),
		nodes: make([]node[NT], 0),
		h:     h,
		mu:    xsync.NewRBMutex(),
	}
}

func (g *SearchGraph[NT, ET]) InitNode(p orb.Point, attr NT) int {
	g.nodes = append(g.nodes, node[NT]{p: p, attr: attr})
	g.edges = append(g.edges, make(map[int]edge[ET]))
	return len(g.nodes) - 1
}

func (g *SearchGraph[NT, ET]) InitEdge(from, to int, weight float64, attr ET) {
	if from >= len(g.edges) {
		log.Panicf("from node %d >= len(g.edges) %d", from, len(g.edges))
	}
	if to >= len(g.edges) {
		log.Panicf("to node %d >= len(g.edges) %d", to, len(g.edges))
	}
	if weight < 0 {
		log.Panicf("negative weight %f on edge (%d,%d)", weight, from, to)
	}
	g.edges[from][to] = edge[ET]{
		weight: weight,
		attr:   attr,
	}
}

func (g *SearchGraph[NT, ET]) NodeCount() int {
	return len(g.nodes)
}

func (g *SearchGraph[NT, ET]) NodePoint(i int) orb.Point {
	return g.nodes[i].p
}

func (g *SearchGraph[NT, ET]) GetEdgeWeightAndAttr(from, to int) (float64, ET) {
	token := g.mu.RLock()
	defer g.mu.RUnlock(token)
	edge := g.edges[from][to]
	return edge.weight, edge.attr
}

func (g *SearchGraph[NT, ET]) GetEdgeWeight(from, to int) float64 {
	token := g.mu.RLock()
	defer g.mu.RUnlock(token)
	return g.edges[from][to].weight
}

// SetEdgeWeight replaces the weight of an existing edge. Used when the
// risk overlay is recomputed without rebuilding the graph.
func (g *SearchGraph[NT, ET]) SetEdgeWeight(from, to int, weight float64) error {
	if weight < 0 {
		return ErrNegativeWeight
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if from >= len(g.edges) {
		return ErrNoEdge
	}
	edge, ok := g.edges[from][to]
	if !ok {
		return ErrNoEdge
	}
	edge.weight = weight
	g.edges[from][to] = edge
	return nil
}

type PathItem[NT any, ET any] struct {
	NodeAttr NT
	// attr of the edge leaving this node, zero value on the last item
	EdgeAttr ET
}

func (g *SearchGraph[NT, ET]) reconstructPath(cameFrom map[int]int, curNode int) ([]PathItem[NT, ET], float64) {
	pathBeforeReversed := []PathItem[NT, ET]{{NodeAttr: g.nodes[curNode].attr}}
	cost := .0
	for {
		if from, ok := cameFrom[curNode]; ok {
			edge := g.edges[from][curNode]
			cost += edge.weight
			curNode = from
			pathBeforeReversed = append(pathBeforeReversed, PathItem[NT, ET]{
				NodeAttr: g.nodes[curNode].attr,
				EdgeAttr: edge.attr,
			})
		} else {
			break
		}
	}
	return lo.Reverse(pathBeforeReversed), cost
}

// ShortestPath runs A* from start to end and returns the node attrs along
// the path plus the summed weight. Returns nil and +Inf when end is not
// reachable from start.
func (g *SearchGraph[NT, ET]) ShortestPath(start, end int) ([]PathItem[NT, ET], float64) {
	token := g.mu.RLock()
	defer g.mu.RUnlock(token)
	if start == end {
		return []PathItem[NT, ET]{{NodeAttr: g.nodes[start].attr}}, 0
	}
	openSet := make(PriorityQueue, 1)
	openSetMap := make(map[int]*Item, 1) // openSet value -> openSet item
	cameFrom := make(map[int]int)
	gScore := make(map[int]float64)
	gScore[start] = .0
	fScore := g.h.Estimate(g.nodes[start].p, g.nodes[end].p)
	openSet[0] = &Item{Value: start, Priority: fScore, Index: 0}
	openSetMap[start] = openSet[0]
	heap.Init(&openSet)
	for openSet.Len() > 0 {
		cur := heap.Pop(&openSet).(*Item).Value
		if cur == end {
			return g.reconstructPath(cameFrom, cur)
		}
		for neighbor, edge := range g.edges[cur] {
			gScoreTentative := gScore[cur] + edge.weight
			var gScoreNeighbor float64
			s, ok := gScore[neighbor]
			if ok {
				gScoreNeighbor = s
			} else {
				gScoreNeighbor = math.Inf(0)
			}
			if gScoreTentative < gScoreNeighbor {
				cameFrom[neighbor] = cur
				gScore[neighbor] = gScoreTentative
				fScore := gScoreTentative + g.h.Estimate(g.nodes[neighbor].p, g.nodes[end].p)
				if ok {
					// seen before, lower its priority in place
					openSetMap[neighbor].Priority = fScore
					heap.Fix(&openSet, openSetMap[neighbor].Index)
				} else {
					item := &Item{Value: neighbor, Priority: fScore}
					heap.Push(&openSet, item)
					openSetMap[neighbor] = item
				}
			}
		}
	}
	return nil, math.Inf(0)
}
