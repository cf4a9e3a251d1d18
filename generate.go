package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/pearl-natalia/lumen/risk"
	"github.com/pearl-natalia/lumen/router"
	"github.com/pearl-natalia/lumen/streets"
)

const (
	safestFile   = "safest_route.geojson"
	shortestFile = "shortest_route.geojson"

	// concurrent geocode requests per batch
	geocodeLimit = 8
)

func (a *App) safestPath() string   { return filepath.Join(a.cfg.DataDir, safestFile) }
func (a *App) shortestPath() string { return filepath.Join(a.cfg.DataDir, shortestFile) }

// night resolves the night setting, auto follows the clock.
func (a *App) night(now time.Time) bool {
	switch a.cfg.Night {
	case "on":
		return true
	case "off":
		return false
	default:
		return router.IsNight(now)
	}
}

// buildNetwork fetches the walkable streets around the start and, when
// the endpoints are far apart, around the end as well.
func (a *App) buildNetwork(ctx context.Context, start, end orb.Point) (*streets.Network, error) {
	dist := a.cfg.Params.FetchDistM
	net, err := a.overpass.FetchWalkNetwork(ctx, start, dist)
	if err != nil {
		return nil, err
	}
	if geo.Distance(start, end) > dist*0.8 {
		other, err := a.overpass.FetchWalkNetwork(ctx, end, dist)
		if err != nil {
			return nil, err
		}
		net.Merge(other)
	}
	return net, nil
}

// incidentRows loads incident rows from the configured source.
func (a *App) incidentRows(ctx context.Context) ([]risk.Incident, error) {
	p := a.cfg.Incidents
	if p == nil {
		return nil, nil
	}
	if p.IsFile() {
		return risk.ReadIncidents(p.File)
	}
	if a.store == nil {
		return nil, fmt.Errorf("incidents source %s needs mongo", p)
	}
	docs, err := a.store.IncidentsIn(ctx, p.DB, p.Coll)
	if err != nil {
		return nil, err
	}
	rows := make([]risk.Incident, len(docs))
	for i, doc := range docs {
		rows[i] = doc.CSV()
	}
	return rows, nil
}

// cameraRows loads one camera source.
func (a *App) cameraRows(ctx context.Context, p *Path, typ risk.CameraType) ([]risk.Camera, error) {
	if p == nil {
		return nil, nil
	}
	if p.IsFile() {
		return risk.ReadCameras(p.File, typ)
	}
	if a.store == nil {
		return nil, fmt.Errorf("camera source %s needs mongo", p)
	}
	return a.store.CamerasIn(ctx, p.DB, p.Coll, typ)
}

// riskPoints geocodes every configured risk source into map points,
// biased toward the route origin.
func (a *App) riskPoints(ctx context.Context, origin orb.Point, now time.Time) ([]risk.Point, error) {
	incidents, err := a.incidentRows(ctx)
	if err != nil {
		return nil, err
	}
	var cameras []risk.Camera
	sources := []struct {
		path *Path
		typ  risk.CameraType
	}{
		{a.cfg.RedLightCams, risk.CameraRedLight},
		{a.cfg.SpeedCams, risk.CameraSpeed},
	}
	for _, src := range sources {
		rows, err := a.cameraRows(ctx, src.path, src.typ)
		if err != nil {
			return nil, err
		}
		cameras = append(cameras, rows...)
	}

	loader := &risk.Loader{
		Cache:     a.cache,
		Provider:  a.provider,
		Proximity: origin,
		Limit:     geocodeLimit,
		Now:       now,
	}
	points, dropped := loader.Incidents(ctx, incidents)
	camPoints, camDropped := loader.Cameras(ctx, cameras)
	points = append(points, camPoints...)
	dropped = append(dropped, camDropped...)
	if len(dropped) > 0 {
		log.Warnf("dropped %d of %d risk points", len(dropped), len(points)+len(dropped))
	}
	return points, nil
}

// GenerateSafest prices the streets around the endpoints with current
// risk data and writes the safest walk artifact.
func (a *App) GenerateSafest(ctx context.Context, start, end orb.Point) (*router.Route, error) {
	now := time.Now()
	net, err := a.buildNetwork(ctx, start, end)
	if err != nil {
		return nil, err
	}
	points, err := a.riskPoints(ctx, start, now)
	if err != nil {
		return nil, err
	}
	r := router.New(net, points, a.cfg.Params, router.Options{Night: a.night(now), Now: now})
	route, err := r.Navigate(start, end)
	if err != nil {
		return nil, err
	}
	if err := router.WriteRouteFile(a.safestPath(), route); err != nil {
		return nil, err
	}
	log.Infof("%s: %.0f m, %.0f s", route.Name, route.TotalLength, route.TimeSeconds)
	return route, nil
}

// GenerateShortest writes the plain shortest walk artifact.
func (a *App) GenerateShortest(ctx context.Context, start, end orb.Point) (*router.Route, error) {
	net, err := a.buildNetwork(ctx, start, end)
	if err != nil {
		return nil, err
	}
	r := router.NewShortest(net, a.cfg.Params)
	route, err := r.Navigate(start, end)
	if err != nil {
		return nil, err
	}
	if err := router.WriteRouteFile(a.shortestPath(), route); err != nil {
		return nil, err
	}
	log.Infof("%s: %.0f m, %.0f s", route.Name, route.TotalLength, route.TimeSeconds)
	return route, nil
}

// runOnce generates the requested artifacts for one endpoint pair and
// returns, the command line twin of POST /route.
func (a *App) runOnce(ctx context.Context, startArg, endArg, mode string) error {
	if startArg == "" || endArg == "" {
		return errors.New("one-shot mode needs both -start and -end")
	}
	mode = strings.ToLower(mode)
	if mode != "both" && mode != "safest" && mode != "shortest" {
		return fmt.Errorf("unknown mode: %s", mode)
	}
	start, err := a.resolveArg(ctx, startArg)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	end, err := a.resolveArg(ctx, endArg)
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}
	if mode == "both" || mode == "safest" {
		if _, err := a.GenerateSafest(ctx, start, end); err != nil {
			return err
		}
	}
	if mode == "both" || mode == "shortest" {
		if _, err := a.GenerateShortest(ctx, start, end); err != nil {
			return err
		}
	}
	return nil
}

// resolveArg accepts "lon,lat" or a place name. Place names with one
// comma fall through to the geocoder when the halves do not parse.
func (a *App) resolveArg(ctx context.Context, arg string) (orb.Point, error) {
	arg = strings.TrimSpace(arg)
	if parts := strings.Split(arg, ","); len(parts) == 2 {
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errLon == nil && errLat == nil {
			return orb.Point{lon, lat}, nil
		}
	}
	return a.cache.Resolve(ctx, a.provider, arg, orb.Point{})
}
