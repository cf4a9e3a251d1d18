package router

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteFeature(t *testing.T) {
	net := triangleNet(t)
	r := NewShortest(net, DefaultCostParams())

	route, err := r.Navigate(triA, triB)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, route.Nodes)
	assert.Equal(t, orb.LineString{{0, 0}, {0.01, 0}}, route.Coords)
	assert.InDelta(t, route.TotalLength/1.33, route.TimeSeconds, 1e-9)

	f := route.Feature()
	assert.Equal(t, "LineString", f.Geometry.GeoJSONType())
	assert.Equal(t, "Shortest Walk", f.Properties["name"])
	assert.InDelta(t, route.TotalLength, f.Properties["length_m"], 1e-9)
	assert.InDelta(t, route.TimeSeconds, f.Properties["time_s"], 1e-9)
	assert.InDelta(t, route.TotalCost, f.Properties["cost"], 1e-9)
}

func TestWriteRouteFile(t *testing.T) {
	net := triangleNet(t)
	safest := New(net, nil, DefaultCostParams(), Options{})
	route, err := safest.Navigate(triA, triB)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "data", "safest_route.geojson")
	require.NoError(t, WriteRouteFile(path, route))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Safest Night Walk", fc.Features[0].Properties["name"])
	assert.InDelta(t, route.TotalLength, fc.Features[0].Properties["length_m"], 1e-9)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must not survive the rename")
}

func TestWriteRouteFileReplacesPrevious(t *testing.T) {
	net := triangleNet(t)
	params := DefaultCostParams()
	path := filepath.Join(t.TempDir(), "safest_route.geojson")

	first, err := New(net, nil, params, Options{}).Navigate(triA, triB)
	require.NoError(t, err)
	require.NoError(t, WriteRouteFile(path, first))

	second, err := NewShortest(net, params).Navigate(triA, triB)
	require.NoError(t, err)
	require.NoError(t, WriteRouteFile(path, second))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Shortest Walk", fc.Features[0].Properties["name"])
}
