package router

import (
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pearl-natalia/lumen/router/algo"
	"github.com/pearl-natalia/lumen/streets"
)

// Route is one priced walk through the network. Coords holds the node
// locations along the walk in order.
type Route struct {
	Name        string
	Nodes       []int64
	Coords      orb.LineString
	TotalLength float64
	TotalCost   float64
	TimeSeconds float64
}

func (r *Router) assemble(path []algo.PathItem[int64, *streets.Edge], cost float64) *Route {
	rt := &Route{
		Name:      r.name,
		Nodes:     make([]int64, 0, len(path)),
		Coords:    make(orb.LineString, 0, len(path)),
		TotalCost: cost,
	}
	for _, item := range path {
		rt.Nodes = append(rt.Nodes, item.NodeAttr)
		if n, ok := r.net.Node(item.NodeAttr); ok {
			rt.Coords = append(rt.Coords, n.Loc)
		}
		if item.EdgeAttr != nil {
			rt.TotalLength += item.EdgeAttr.Length
		}
	}
	rt.TimeSeconds = rt.TotalLength / r.params.WalkSpeedMps
	return rt
}

// Feature renders the route as a GeoJSON LineString feature.
func (rt *Route) Feature() *geojson.Feature {
	f := geojson.NewFeature(rt.Coords)
	f.Properties["name"] = rt.Name
	f.Properties["length_m"] = rt.TotalLength
	f.Properties["time_s"] = rt.TimeSeconds
	f.Properties["cost"] = rt.TotalCost
	return f
}

// WriteRouteFile writes the route as a one-feature collection, replacing
// any previous artifact at path.
func WriteRouteFile(path string, rt *Route) error {
	fc := geojson.NewFeatureCollection()
	fc.Append(rt.Feature())
	raw, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
