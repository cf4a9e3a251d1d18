package risk

import (
	"context"
	"time"

	"github.com/pearl-natalia/lumen/geocode"
	"github.com/paulmach/orb"
)

// Dropped records a source row that produced no usable point.
type Dropped struct {
	Query  string
	Reason string
}

// Loader geocodes source records into risk points. Rows that cannot be
// located are dropped, never fatal.
type Loader struct {
	Cache     *geocode.Cache
	Provider  geocode.Provider
	Proximity orb.Point
	Limit     int       // max concurrent geocode requests
	Now       time.Time // zero means time.Now(), used to pin missing years
}

func (l *Loader) now() time.Time {
	if l.Now.IsZero() {
		return time.Now()
	}
	return l.Now
}

// Incidents geocodes incident rows. Each row keeps its own point even
// when several rows share a query.
func (l *Loader) Incidents(ctx context.Context, rows []Incident) ([]Point, []Dropped) {
	queries := make([]string, 0, len(rows))
	dropped := make([]Dropped, 0)
	for _, row := range rows {
		if q := row.Query(); q != "" {
			queries = append(queries, q)
		}
	}
	resolved := l.Cache.ResolveAll(ctx, l.Provider, queries, l.Proximity, l.Limit)

	now := l.now()
	points := make([]Point, 0, len(rows))
	for _, row := range rows {
		q := row.Query()
		if q == "" {
			dropped = append(dropped, Dropped{Reason: "no location"})
			continue
		}
		res := resolved[q]
		if res.Err != nil {
			dropped = append(dropped, Dropped{Query: q, Reason: res.Err.Error()})
			continue
		}
		points = append(points, Point{
			Kind:  KindIncident,
			Query: q,
			Loc:   res.Loc,
			Time:  row.When(now),
		})
	}
	if len(dropped) > 0 {
		log.Warnf("dropped %d of %d incident rows", len(dropped), len(rows))
	}
	return points, dropped
}

// Cameras geocodes camera rows.
func (l *Loader) Cameras(ctx context.Context, rows []Camera) ([]Point, []Dropped) {
	queries := make([]string, 0, len(rows))
	dropped := make([]Dropped, 0)
	usable := make([]Camera, 0, len(rows))
	for _, row := range rows {
		if row.PrimaryRoad == "" || row.City == "" {
			dropped = append(dropped, Dropped{Reason: "incomplete camera row"})
			continue
		}
		usable = append(usable, row)
		queries = append(queries, row.Query())
	}
	resolved := l.Cache.ResolveAll(ctx, l.Provider, queries, l.Proximity, l.Limit)

	points := make([]Point, 0, len(usable))
	for _, row := range usable {
		q := row.Query()
		res := resolved[q]
		if res.Err != nil {
			dropped = append(dropped, Dropped{Query: q, Reason: res.Err.Error()})
			continue
		}
		points = append(points, Point{
			Kind:   KindCamera,
			Camera: row.CameraType,
			Query:  q,
			Loc:    res.Loc,
		})
	}
	if len(dropped) > 0 {
		log.Warnf("dropped %d of %d camera rows", len(dropped), len(rows))
	}
	return points, dropped
}
