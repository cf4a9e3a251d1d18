package streets

import (
	"errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/osm"
	"github.com/samber/lo"
)

var ErrEmptyNetwork = errors.New("no walkable streets in range")

// Node is a street intersection or way endpoint, kept under its OSM node id.
type Node struct {
	ID  int64
	Loc orb.Point
}

// EdgeID names one directed street segment. Parallel disambiguates
// multiple segments between the same node pair and is assigned in
// insertion order, starting at 0.
type EdgeID struct {
	From     int64
	To       int64
	Parallel int
}

// Edge is a directed walkable segment between two graph nodes.
type Edge struct {
	EdgeID
	Way      int64  // id of the OSM way the segment was cut from
	Name     string // street name, may be empty
	Length   float64
	Geometry orb.LineString // lon/lat, runs from From to To
}

// Network is a directed multigraph of walkable street segments. Every
// undirected OSM segment appears twice, once per direction.
type Network struct {
	nodes    map[int64]*Node
	nodeList []*Node // insertion order
	edges    []*Edge // insertion order
	out      map[int64]map[int64][]*Edge
	bound    orb.Bound
	hasBound bool
}

func NewNetwork() *Network {
	return &Network{
		nodes: make(map[int64]*Node),
		out:   make(map[int64]map[int64][]*Edge),
	}
}

func (n *Network) extendBound(p orb.Point) {
	if !n.hasBound {
		n.bound = orb.Bound{Min: p, Max: p}
		n.hasBound = true
		return
	}
	n.bound = n.bound.Extend(p)
}

// AddNode registers a node. Re-adding an existing id keeps the first
// location.
func (n *Network) AddNode(id int64, loc orb.Point) *Node {
	if node, ok := n.nodes[id]; ok {
		return node
	}
	node := &Node{ID: id, Loc: loc}
	n.nodes[id] = node
	n.nodeList = append(n.nodeList, node)
	n.extendBound(loc)
	return node
}

// AddEdge appends a directed segment between two registered nodes and
// assigns its Parallel index. The geometry must have at least two points
// and run from from to to.
func (n *Network) AddEdge(from, to, way int64, name string, geom orb.LineString) *Edge {
	if _, ok := n.nodes[from]; !ok {
		log.Panicf("edge references unknown from node %d", from)
	}
	if _, ok := n.nodes[to]; !ok {
		log.Panicf("edge references unknown to node %d", to)
	}
	if len(geom) < 2 {
		log.Panicf("edge (%d,%d) has %d geometry points", from, to, len(geom))
	}
	length := .0
	for i := 1; i < len(geom); i++ {
		length += geo.Distance(geom[i-1], geom[i])
		n.extendBound(geom[i])
	}
	n.extendBound(geom[0])
	if n.out[from] == nil {
		n.out[from] = make(map[int64][]*Edge)
	}
	edge := &Edge{
		EdgeID:   EdgeID{From: from, To: to, Parallel: len(n.out[from][to])},
		Way:      way,
		Name:     name,
		Length:   length,
		Geometry: geom,
	}
	n.out[from][to] = append(n.out[from][to], edge)
	n.edges = append(n.edges, edge)
	return edge
}

// Edges returns all segments in insertion order.
func (n *Network) Edges() []*Edge {
	return n.edges
}

// Nodes returns all nodes in insertion order.
func (n *Network) Nodes() []*Node {
	return n.nodeList
}

func (n *Network) Node(id int64) (*Node, bool) {
	node, ok := n.nodes[id]
	return node, ok
}

func (n *Network) NodeCount() int {
	return len(n.nodes)
}

// ParallelEdges returns every segment from from to to, ordered by
// Parallel index. Nil when the pair is not connected.
func (n *Network) ParallelEdges(from, to int64) []*Edge {
	return n.out[from][to]
}

// Bound is the lon/lat box covering every node and geometry point.
func (n *Network) Bound() orb.Bound {
	return n.bound
}

func sameGeometry(a, b orb.LineString) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Merge copies other's nodes and segments into n. Segments already
// present, same way id and same geometry between the same nodes, are
// skipped; the rest get fresh Parallel indexes. Used to join networks
// fetched around distant endpoints.
func (n *Network) Merge(other *Network) {
	for _, node := range other.nodeList {
		n.AddNode(node.ID, node.Loc)
	}
	for _, e := range other.edges {
		dup := false
		for _, have := range n.out[e.From][e.To] {
			if have.Way == e.Way && sameGeometry(have.Geometry, e.Geometry) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		n.AddEdge(e.From, e.To, e.Way, e.Name, e.Geometry)
	}
}

// walkable reports whether a tagged way is usable on foot. The tag
// checks mirror the Overpass way filter in WalkQuery.
func walkable(tags map[string]string) bool {
	highway, ok := tags["highway"]
	if !ok {
		return false
	}
	switch highway {
	case "abandoned", "bus_guideway", "construction", "cycleway",
		"motorway", "motorway_link", "planned", "platform", "proposed",
		"raceway", "razed":
		return false
	}
	if tags["foot"] == "no" {
		return false
	}
	if tags["service"] == "private" {
		return false
	}
	if tags["area"] == "yes" {
		return false
	}
	return true
}

// BuildNetwork cuts the walkable ways of an Overpass response into graph
// segments. Ways are split wherever two or more kept ways share a node,
// and every segment is added in both directions. Returns ErrEmptyNetwork
// when nothing walkable survives the cut.
func BuildNetwork(o *osm.OSM) (*Network, error) {
	// count kept-way visits per node, with way endpoints counted twice so
	// they always become graph nodes
	usage := make(map[int64]int)
	kept := make([]*osm.Way, 0, len(o.Ways))
	for _, way := range o.Ways {
		if !walkable(way.TagMap()) {
			continue
		}
		ids := way.Nodes.NodeIDs()
		if len(ids) < 2 {
			continue
		}
		kept = append(kept, way)
		for _, id := range ids {
			usage[id.FeatureID().Ref()]++
		}
		usage[ids[0].FeatureID().Ref()]++
		usage[ids[len(ids)-1].FeatureID().Ref()]++
	}

	locs := make(map[int64]orb.Point, len(o.Nodes))
	for _, node := range o.Nodes {
		locs[node.FeatureID().Ref()] = orb.Point{node.Lon, node.Lat}
	}

	net := NewNetwork()
	for _, way := range kept {
		ids := way.Nodes.NodeIDs()
		complete := true
		for _, id := range ids {
			if _, ok := locs[id.FeatureID().Ref()]; !ok {
				complete = false
				break
			}
		}
		if !complete {
			log.Warnf("way %d references nodes missing from the response, skipped", way.ID)
			continue
		}
		wayID := way.FeatureID().Ref()
		name := way.TagMap()["name"]
		start := ids[0].FeatureID().Ref()
		seg := orb.LineString{locs[start]}
		for i := 1; i < len(ids); i++ {
			cur := ids[i].FeatureID().Ref()
			p := locs[cur]
			seg = append(seg, p)
			if usage[cur] > 1 && cur != start {
				net.AddNode(start, seg[0])
				net.AddNode(cur, p)
				net.AddEdge(start, cur, wayID, name, seg)
				rev := make(orb.LineString, len(seg))
				copy(rev, seg)
				net.AddEdge(cur, start, wayID, name, lo.Reverse(rev))
				start = cur
				seg = orb.LineString{p}
			}
		}
	}
	if len(net.edges) == 0 {
		return nil, ErrEmptyNetwork
	}
	log.Debugf("street network: %d nodes, %d directed segments", len(net.nodes), len(net.edges))
	return net, nil
}
