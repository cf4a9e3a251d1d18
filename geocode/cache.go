package geocode

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var cacheHeader = []string{"q", "lon", "lat"}

// Result is the outcome of resolving one query.
type Result struct {
	Loc orb.Point
	Err error
}

// Cache keeps resolved queries in memory and mirrors them to a CSV file
// so restarts do not re-geocode. Keys are the trimmed query text, case
// kept as is. The file is rewritten per batch of resolutions, not per
// call, so a crash mid-batch loses only in-progress entries. Cache file
// trouble is logged and never fails a resolve.
type Cache struct {
	path   string
	m      *xsync.MapOf[string, orb.Point]
	sf     singleflight.Group
	dirty  atomic.Bool
	fileMu sync.Mutex
}

func NewCache(path string) *Cache {
	return &Cache{
		path: path,
		m:    xsync.NewMapOf[string, orb.Point](),
	}
}

// Load reads the cache file. A missing file is an empty cache.
func (c *Cache) Load() error {
	f, err := os.Open(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open geocode cache: %w", err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	first := true
	n := 0
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read geocode cache: %w", err)
		}
		if first {
			first = false
			if len(row) > 0 && row[0] == cacheHeader[0] {
				continue
			}
		}
		if len(row) < 3 {
			continue
		}
		lon, errLon := strconv.ParseFloat(row[1], 64)
		lat, errLat := strconv.ParseFloat(row[2], 64)
		if errLon != nil || errLat != nil {
			log.Warnf("geocode cache row for %q has bad coordinates, skipped", row[0])
			continue
		}
		c.m.Store(strings.TrimSpace(row[0]), orb.Point{lon, lat})
		n++
	}
	log.Debugf("geocode cache: %d entries from %s", n, c.path)
	return nil
}

func (c *Cache) Lookup(query string) (orb.Point, bool) {
	return c.m.Load(strings.TrimSpace(query))
}

func (c *Cache) Size() int {
	return c.m.Size()
}

// Put stores a resolved query in memory. The entry reaches the file on
// the next Flush.
func (c *Cache) Put(query string, loc orb.Point) {
	c.m.Store(strings.TrimSpace(query), loc)
	c.dirty.Store(true)
}

// Flush rewrites the cache file when entries were added since the last
// flush. The file is replaced via rename, never written in place.
func (c *Cache) Flush() error {
	if !c.dirty.Swap(false) {
		return nil
	}
	rows := make([][]string, 0, c.m.Size())
	c.m.Range(func(q string, loc orb.Point) bool {
		rows = append(rows, []string{
			q,
			strconv.FormatFloat(loc.Lon(), 'f', -1, 64),
			strconv.FormatFloat(loc.Lat(), 'f', -1, 64),
		})
		return true
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })

	c.fileMu.Lock()
	defer c.fileMu.Unlock()
	if err := c.writeFile(rows); err != nil {
		c.dirty.Store(true)
		return err
	}
	log.Debugf("geocode cache: %d entries to %s", len(rows), c.path)
	return nil
}

func (c *Cache) writeFile(rows [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(cacheHeader); err != nil {
		return fmt.Errorf("encode geocode cache: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("encode geocode cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("geocode cache dir: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write geocode cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace geocode cache: %w", err)
	}
	return nil
}

// Resolve answers from the cache or asks the provider, collapsing
// concurrent misses on the same query into one upstream call. The new
// entry stays in memory until the batch flush.
func (c *Cache) Resolve(ctx context.Context, provider Provider, query string, proximity orb.Point) (orb.Point, error) {
	query = strings.TrimSpace(query)
	if loc, ok := c.m.Load(query); ok {
		return loc, nil
	}
	v, err, _ := c.sf.Do(query, func() (interface{}, error) {
		if loc, ok := c.m.Load(query); ok {
			return loc, nil
		}
		loc, err := provider.Geocode(ctx, query, proximity)
		if err != nil {
			return orb.Point{}, err
		}
		c.Put(query, loc)
		return loc, nil
	})
	if err != nil {
		return orb.Point{}, err
	}
	return v.(orb.Point), nil
}

// ResolveAll resolves the unique queries concurrently, at most limit in
// flight, then flushes the cache file once. Failures stay per-query in
// the result map, they never abort the batch.
func (c *Cache) ResolveAll(ctx context.Context, provider Provider, queries []string, proximity orb.Point, limit int) map[string]Result {
	unique := lo.Uniq(queries)
	results := make(map[string]Result, len(unique))
	var mu sync.Mutex
	var eg errgroup.Group
	if limit > 0 {
		eg.SetLimit(limit)
	}
	for _, query := range unique {
		query := query
		eg.Go(func() error {
			loc, err := c.Resolve(ctx, provider, query, proximity)
			mu.Lock()
			results[query] = Result{Loc: loc, Err: err}
			mu.Unlock()
			return nil
		})
	}
	eg.Wait()
	if err := c.Flush(); err != nil {
		log.Warnf("geocode cache flush: %v", err)
	}
	return results
}
