package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"github.com/pearl-natalia/lumen/geocode"
	"github.com/pearl-natalia/lumen/risk"
	"github.com/pearl-natalia/lumen/router"
	"github.com/pearl-natalia/lumen/streets"
)

// Config carries everything the app needs at construction.
type Config struct {
	MapboxToken string
	MongoURI    string
	MongoDB     string

	Incidents    *Path
	RedLightCams *Path
	SpeedCams    *Path

	DataDir   string
	StaticDir string
	CacheFile string
	Night     string // auto, on or off

	Params router.CostParams
}

// App wires the geocoder, the risk sources and the routing pipeline
// behind the HTTP API.
type App struct {
	cfg      Config
	provider geocode.Provider
	cache    *geocode.Cache
	store    *risk.Store // nil when mongo is not configured
	overpass *streets.OverpassClient

	// one generator run at a time, the artifact files are shared
	genMu sync.Mutex
}

// NewApp builds the app. A missing Mapbox token fails here, before any
// network call. Mongo trouble only degrades the app, the CSV sources
// still work without it.
func NewApp(ctx context.Context, cfg Config) (*App, error) {
	provider, err := geocode.NewMapbox(cfg.MapboxToken)
	if err != nil {
		return nil, err
	}
	cache := geocode.NewCache(cfg.CacheFile)
	if err := cache.Load(); err != nil {
		log.Warnf("geocode cache: %v", err)
	}
	var store *risk.Store
	if cfg.MongoURI != "" {
		store, err = risk.NewStore(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Warnf("mongo unavailable, continuing without it: %v", err)
			store = nil
		} else if err := store.EnsureIndexes(ctx); err != nil {
			log.Warnf("mongo indexes: %v", err)
		}
	}
	return &App{
		cfg:      cfg,
		provider: provider,
		cache:    cache,
		store:    store,
		overpass: streets.NewOverpassClient(),
	}, nil
}

func (a *App) Close(ctx context.Context) {
	if err := a.cache.Flush(); err != nil {
		log.Warnf("geocode cache flush: %v", err)
	}
	if a.store != nil {
		if err := a.store.Close(ctx); err != nil {
			log.Warnf("mongo disconnect: %v", err)
		}
	}
}

// Handler builds the gin engine with the API routes and the optional
// static frontend.
func (a *App) Handler() http.Handler {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	r.Use(cors.New(corsCfg))

	r.POST("/route", a.handleRoute)
	r.GET("/token", a.handleToken)
	r.GET("/healthz", a.handleHealthz)
	r.GET("/crime-data", a.handleCrimeData)

	if a.cfg.StaticDir != "" {
		r.Static("/static", a.cfg.StaticDir)
		r.GET("/", func(c *gin.Context) {
			c.File(filepath.Join(a.cfg.StaticDir, "index.html"))
		})
	}
	return r
}

// routeRequest accepts endpoints as text fields or as raw values that
// may hold a [lon,lat] pair or a place name.
type routeRequest struct {
	Mode      string          `json:"mode"`
	Start     json.RawMessage `json:"start"`
	StartText string          `json:"start_text"`
	End       json.RawMessage `json:"end"`
	EndText   string          `json:"end_text"`
}

func (a *App) handleRoute(c *gin.Context) {
	var req routeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode := strings.ToLower(req.Mode)
	if mode == "" {
		mode = "both"
	}
	ctx := c.Request.Context()
	start, err := a.resolveEndpoint(ctx, req.StartText, req.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	end, err := a.resolveEndpoint(ctx, req.EndText, req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fc := geojson.NewFeatureCollection()
	if mode == "both" || mode == "safest" {
		a.appendRoute(ctx, fc, "safest", start, end)
	}
	if mode == "both" || mode == "shortest" {
		a.appendRoute(ctx, fc, "shortest", start, end)
	}
	c.JSON(http.StatusOK, fc)
}

// resolveEndpoint turns one endpoint into a coordinate. The text field
// wins when both are present.
func (a *App) resolveEndpoint(ctx context.Context, text string, raw json.RawMessage) (orb.Point, error) {
	if q := strings.TrimSpace(text); q != "" {
		return a.cache.Resolve(ctx, a.provider, q, orb.Point{})
	}
	if len(raw) == 0 || string(raw) == "null" {
		return orb.Point{}, errors.New("provide start_text/end_text or start/end")
	}
	var pair [2]float64
	if err := json.Unmarshal(raw, &pair); err == nil {
		return orb.Point{pair[0], pair[1]}, nil
	}
	var q string
	if err := json.Unmarshal(raw, &q); err == nil {
		if q = strings.TrimSpace(q); q != "" {
			return a.cache.Resolve(ctx, a.provider, q, orb.Point{})
		}
	}
	return orb.Point{}, errors.New("endpoint must be [lon,lat] or a place name")
}

// appendRoute runs one generator and appends whatever its artifact file
// now holds, so a stale route still serves when the run fails. The
// error feature only appears when nothing at all can be loaded.
func (a *App) appendRoute(ctx context.Context, fc *geojson.FeatureCollection, routeType string, start, end orb.Point) {
	path := a.safestPath()
	if routeType == "shortest" {
		path = a.shortestPath()
	}
	a.genMu.Lock()
	var genErr error
	if routeType == "shortest" {
		_, genErr = a.GenerateShortest(ctx, start, end)
	} else {
		_, genErr = a.GenerateSafest(ctx, start, end)
	}
	a.genMu.Unlock()
	if genErr != nil {
		log.Errorf("%s generator: %v", routeType, genErr)
	}

	feats := loadRouteFeatures(path, routeType)
	if len(feats) == 0 {
		msg := fmt.Sprintf("could not load %s", filepath.Base(path))
		if genErr != nil {
			msg = fmt.Sprintf("%s. %v", msg, genErr)
		}
		fc.Append(errorFeature(routeType, msg))
		return
	}
	for _, f := range feats {
		a.applyUniformETA(f)
		fc.Append(f)
	}
}

// loadRouteFeatures reads a route artifact and keeps only LineString
// features that carry coordinates, each tagged with route_type.
func loadRouteFeatures(path, routeType string) []*geojson.Feature {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("read %s: %v", path, err)
		}
		return nil
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		// a bare Feature is accepted too
		f, ferr := geojson.UnmarshalFeature(data)
		if ferr != nil {
			log.Warnf("parse %s: %v", path, err)
			return nil
		}
		fc = geojson.NewFeatureCollection()
		fc.Append(f)
	}
	var feats []*geojson.Feature
	for _, f := range fc.Features {
		ls, ok := f.Geometry.(orb.LineString)
		if !ok || len(ls) == 0 {
			continue
		}
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		f.Properties["route_type"] = routeType
		feats = append(feats, f)
	}
	return feats
}

// errorFeature is the empty placeholder served when a route cannot be
// produced, the frontend keys off the error property.
func errorFeature(routeType, message string) *geojson.Feature {
	f := geojson.NewFeature(orb.LineString{})
	f.Properties["route_type"] = routeType
	f.Properties["error"] = message
	return f
}

// applyUniformETA overwrites length_m and time_s from the drawn
// geometry so both routes share one speed model.
func (a *App) applyUniformETA(f *geojson.Feature) {
	ls, ok := f.Geometry.(orb.LineString)
	if !ok {
		return
	}
	length := 0.0
	for i := 1; i < len(ls); i++ {
		length += geo.Distance(ls[i-1], ls[i])
	}
	speed := math.Max(0.1, a.cfg.Params.WalkSpeedMps)
	f.Properties["length_m"] = length
	f.Properties["time_s"] = length / speed
}

func (a *App) handleToken(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"token": a.cfg.MapboxToken})
}

func (a *App) handleHealthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// handleCrimeData serves recent stored incidents as geocoded points
// for the map overlay. Without mongo the overlay is just empty.
func (a *App) handleCrimeData(c *gin.Context) {
	ctx := c.Request.Context()
	fc := geojson.NewFeatureCollection()
	if a.store == nil {
		log.Warnln("crime data requested but mongo is not configured")
		c.JSON(http.StatusOK, fc)
		return
	}
	since := time.Now().AddDate(0, -6, 0)
	incidents, err := a.store.RecentIncidents(ctx, since, 1000)
	if err != nil {
		log.Errorf("crime data fetch: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	queries := make([]string, 0, len(incidents))
	for _, inc := range incidents {
		if strings.TrimSpace(inc.Location) != "" {
			queries = append(queries, crimeQuery(inc.Location))
		}
	}
	results := a.cache.ResolveAll(ctx, a.provider, queries, orb.Point{}, geocodeLimit)
	for _, inc := range incidents {
		if strings.TrimSpace(inc.Location) == "" {
			continue
		}
		res := results[crimeQuery(inc.Location)]
		if res.Err != nil {
			log.Warnf("failed to geocode location %q: %v", inc.Location, res.Err)
			continue
		}
		fc.Append(crimeFeature(inc, res.Loc))
	}
	c.JSON(http.StatusOK, fc)
}

func crimeQuery(location string) string {
	return location + ", Kitchener, ON, Canada"
}

// crimeFeature renders one stored incident the way the overlay popup
// expects it.
func crimeFeature(inc risk.StoredIncident, loc orb.Point) *geojson.Feature {
	callType := inc.CallType
	if callType == "" {
		callType = "Unknown"
	}
	date, clock := "Unknown date", "Unknown time"
	if inc.IncidentDate != nil {
		date = inc.IncidentDate.Format("January 02, 2006")
		clock = inc.IncidentDate.Format("03:04 PM")
	}
	f := geojson.NewFeature(loc)
	f.Properties["incident_id"] = inc.IncidentID
	f.Properties["call_type"] = callType
	f.Properties["location"] = inc.Location
	f.Properties["title_line"] = inc.TitleLine
	f.Properties["formatted_date"] = date
	f.Properties["formatted_time"] = clock
	f.Properties["incident_type"] = "crime"
	return f
}
