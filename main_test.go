package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pearl-natalia/lumen/geocode"
	"github.com/pearl-natalia/lumen/risk"
	"github.com/pearl-natalia/lumen/router"
)

func TestNewPath(t *testing.T) {
	p, err := NewPath("")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.False(t, p.IsFile())
	assert.Equal(t, "<none>", p.String())

	existing := filepath.Join(t.TempDir(), "rows")
	require.NoError(t, os.WriteFile(existing, nil, 0o644))
	p, err = NewPath(existing)
	require.NoError(t, err)
	assert.True(t, p.IsFile())
	assert.Equal(t, existing, p.String())

	// not-yet-created files still count when the name looks like one
	p, err = NewPath("sources/incidents.csv")
	require.NoError(t, err)
	assert.True(t, p.IsFile())

	p, err = NewPath("incidents.csv")
	require.NoError(t, err)
	assert.True(t, p.IsFile())

	p, err = NewPath("public_safety.incidents")
	require.NoError(t, err)
	assert.False(t, p.IsFile())
	assert.Equal(t, "public_safety", p.DB)
	assert.Equal(t, "incidents", p.Coll)
	assert.Equal(t, "public_safety.incidents", p.String())

	_, err = NewPath("a.b.c")
	assert.Error(t, err)
	_, err = NewPath("incidents")
	assert.Error(t, err)
}

type stubGeocoder struct {
	loc   orb.Point
	calls int
}

func (s *stubGeocoder) Geocode(ctx context.Context, query string, proximity orb.Point) (orb.Point, error) {
	s.calls++
	return s.loc, nil
}

func testApp(t *testing.T, stub *stubGeocoder) *App {
	t.Helper()
	return &App{
		cfg:      Config{Params: router.DefaultCostParams()},
		provider: stub,
		cache:    geocode.NewCache(filepath.Join(t.TempDir(), "cache.csv")),
	}
}

func TestNewAppRequiresMapboxToken(t *testing.T) {
	// the token check precedes the cache load and the mongo dial
	app, err := NewApp(context.Background(), Config{
		CacheFile: filepath.Join(t.TempDir(), "cache.csv"),
	})
	assert.ErrorIs(t, err, geocode.ErrMissingToken)
	assert.Nil(t, app)
}

func TestResolveEndpoint(t *testing.T) {
	stub := &stubGeocoder{loc: orb.Point{-80.5, 43.47}}
	app := testApp(t, stub)
	ctx := context.Background()

	// raw [lon,lat] pairs skip the geocoder entirely
	p, err := app.resolveEndpoint(ctx, "", json.RawMessage(`[-80.52, 43.46]`))
	require.NoError(t, err)
	assert.Equal(t, orb.Point{-80.52, 43.46}, p)
	assert.Equal(t, 0, stub.calls)

	// the text field wins over raw
	p, err = app.resolveEndpoint(ctx, "Victoria Park", json.RawMessage(`[-80.52, 43.46]`))
	require.NoError(t, err)
	assert.Equal(t, stub.loc, p)
	assert.Equal(t, 1, stub.calls)

	// raw place names geocode too
	p, err = app.resolveEndpoint(ctx, "", json.RawMessage(`"Kitchener City Hall"`))
	require.NoError(t, err)
	assert.Equal(t, stub.loc, p)

	_, err = app.resolveEndpoint(ctx, "", nil)
	assert.Error(t, err)
	_, err = app.resolveEndpoint(ctx, "", json.RawMessage(`null`))
	assert.Error(t, err)
	_, err = app.resolveEndpoint(ctx, "", json.RawMessage(`12`))
	assert.Error(t, err)
}

func TestResolveArg(t *testing.T) {
	stub := &stubGeocoder{loc: orb.Point{-80.5, 43.47}}
	app := testApp(t, stub)
	ctx := context.Background()

	p, err := app.resolveArg(ctx, "-80.52,43.46")
	require.NoError(t, err)
	assert.Equal(t, orb.Point{-80.52, 43.46}, p)
	assert.Equal(t, 0, stub.calls)

	// a place name with one comma still geocodes
	p, err = app.resolveArg(ctx, "Victoria Park, Kitchener")
	require.NoError(t, err)
	assert.Equal(t, stub.loc, p)
	assert.Equal(t, 1, stub.calls)
}

func TestApplyUniformETA(t *testing.T) {
	app := &App{cfg: Config{Params: router.DefaultCostParams()}}
	ls := orb.LineString{{-80.52, 43.46}, {-80.52, 43.461}, {-80.519, 43.461}}
	f := geojson.NewFeature(ls)
	f.Properties["length_m"] = 1.0
	f.Properties["time_s"] = 2.0

	app.applyUniformETA(f)

	want := geo.Distance(ls[0], ls[1]) + geo.Distance(ls[1], ls[2])
	assert.InDelta(t, want, f.Properties["length_m"], 1e-9)
	assert.InDelta(t, want/1.33, f.Properties["time_s"], 1e-9)

	// only LineStrings are touched
	pt := geojson.NewFeature(orb.Point{-80.52, 43.46})
	app.applyUniformETA(pt)
	assert.NotContains(t, pt.Properties, "length_m")
}

func TestLoadRouteFeaturesTagsAndFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "safest_route.geojson")

	fc := geojson.NewFeatureCollection()
	fc.Append(errorFeature("stale", "previous failure"))
	good := geojson.NewFeature(orb.LineString{{-80.52, 43.46}, {-80.51, 43.46}})
	good.Properties["name"] = "Safest Night Walk"
	fc.Append(good)
	fc.Append(geojson.NewFeature(orb.Point{-80.52, 43.46}))
	data, err := fc.MarshalJSON()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	feats := loadRouteFeatures(path, "safest")

	// the empty error feature and the point are dropped
	require.Len(t, feats, 1)
	assert.Equal(t, "safest", feats[0].Properties["route_type"])
	assert.Equal(t, "Safest Night Walk", feats[0].Properties["name"])
}

func TestLoadRouteFeaturesBareFeature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "route.geojson")
	f := geojson.NewFeature(orb.LineString{{-80.52, 43.46}, {-80.51, 43.46}})
	data, err := f.MarshalJSON()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	feats := loadRouteFeatures(path, "shortest")
	require.Len(t, feats, 1)
	assert.Equal(t, "shortest", feats[0].Properties["route_type"])
}

func TestLoadRouteFeaturesMissingFile(t *testing.T) {
	assert.Nil(t, loadRouteFeatures(filepath.Join(t.TempDir(), "nope.geojson"), "safest"))
}

func TestErrorFeature(t *testing.T) {
	f := errorFeature("safest", "could not load safest_route.geojson")
	assert.Equal(t, "safest", f.Properties["route_type"])
	assert.Equal(t, "could not load safest_route.geojson", f.Properties["error"])
	ls, ok := f.Geometry.(orb.LineString)
	require.True(t, ok)
	assert.Empty(t, ls)
}

func TestCrimeFeature(t *testing.T) {
	when := time.Date(2025, time.August, 8, 13, 5, 0, 0, time.UTC)
	inc := risk.StoredIncident{
		IncidentID:   "WA25018416",
		CallType:     "Theft",
		Location:     "KING ST E",
		TitleLine:    "Theft from vehicle",
		IncidentDate: &when,
	}
	f := crimeFeature(inc, orb.Point{-80.48, 43.45})

	assert.Equal(t, orb.Point{-80.48, 43.45}, f.Geometry)
	assert.Equal(t, "WA25018416", f.Properties["incident_id"])
	assert.Equal(t, "Theft", f.Properties["call_type"])
	assert.Equal(t, "August 08, 2025", f.Properties["formatted_date"])
	assert.Equal(t, "01:05 PM", f.Properties["formatted_time"])
	assert.Equal(t, "crime", f.Properties["incident_type"])
}

func TestCrimeFeatureDefaults(t *testing.T) {
	f := crimeFeature(risk.StoredIncident{IncidentID: "WA1", Location: "X"}, orb.Point{})
	assert.Equal(t, "Unknown", f.Properties["call_type"])
	assert.Equal(t, "Unknown date", f.Properties["formatted_date"])
	assert.Equal(t, "Unknown time", f.Properties["formatted_time"])
}

func TestNightSetting(t *testing.T) {
	noon := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	evening := time.Date(2025, time.June, 1, 23, 0, 0, 0, time.UTC)

	assert.True(t, (&App{cfg: Config{Night: "on"}}).night(noon))
	assert.False(t, (&App{cfg: Config{Night: "off"}}).night(evening))
	assert.False(t, (&App{cfg: Config{Night: "auto"}}).night(noon))
	assert.True(t, (&App{cfg: Config{Night: "auto"}}).night(evening))
}

func TestHandlerBasics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stub := &stubGeocoder{loc: orb.Point{-80.5, 43.47}}
	app := testApp(t, stub)
	app.cfg.MapboxToken = "pk.test"
	h := app.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/token", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"token":"pk.test"}`, w.Body.String())

	// no mongo configured means an empty overlay, not an error
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/crime-data", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, w.Body.String())

	// both endpoints missing is a client error
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/route", strings.NewReader(`{"mode":"both"}`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}
