package geocode_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/pearl-natalia/lumen/geocode"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider answers from a fixed table and counts upstream calls.
type countingProvider struct {
	calls int64
	table map[string]orb.Point
}

func (p *countingProvider) Geocode(ctx context.Context, query string, proximity orb.Point) (orb.Point, error) {
	atomic.AddInt64(&p.calls, 1)
	loc, ok := p.table[query]
	if !ok {
		return orb.Point{}, fmt.Errorf("geocode %q: %w", query, geocode.ErrNoResult)
	}
	return loc, nil
}

func TestCacheResolveHitsProviderOncePerQuery(t *testing.T) {
	provider := &countingProvider{table: map[string]orb.Point{
		"King St N & University Ave, Waterloo": {-80.5280, 43.4773},
	}}
	cache := geocode.NewCache(filepath.Join(t.TempDir(), "geocode_cache.csv"))

	prox := orb.Point{-80.5204096, 43.479265}
	for i := 0; i < 3; i++ {
		loc, err := cache.Resolve(context.Background(), provider,
			"King St N & University Ave, Waterloo", prox)
		require.NoError(t, err)
		assert.Equal(t, orb.Point{-80.5280, 43.4773}, loc)
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&provider.calls))
}

func TestCacheKeysAreExact(t *testing.T) {
	provider := &countingProvider{table: map[string]orb.Point{
		"King St, Waterloo": {-80.52, 43.47},
		"king st, waterloo": {-80.99, 43.99},
	}}
	cache := geocode.NewCache(filepath.Join(t.TempDir(), "geocode_cache.csv"))

	a, err := cache.Resolve(context.Background(), provider, "King St, Waterloo", orb.Point{})
	require.NoError(t, err)
	b, err := cache.Resolve(context.Background(), provider, "king st, waterloo", orb.Point{})
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "differently-cased queries are distinct cache keys")
	assert.Equal(t, int64(2), atomic.LoadInt64(&provider.calls))
}

func TestCacheKeysAreTrimmed(t *testing.T) {
	provider := &countingProvider{table: map[string]orb.Point{
		"King St, Waterloo": {-80.52, 43.47},
	}}
	cache := geocode.NewCache(filepath.Join(t.TempDir(), "geocode_cache.csv"))

	_, err := cache.Resolve(context.Background(), provider, "  King St, Waterloo \n", orb.Point{})
	require.NoError(t, err)
	_, err = cache.Resolve(context.Background(), provider, "King St, Waterloo", orb.Point{})
	require.NoError(t, err)

	loc, ok := cache.Lookup(" King St, Waterloo ")
	assert.True(t, ok)
	assert.Equal(t, orb.Point{-80.52, 43.47}, loc)
	assert.Equal(t, int64(1), atomic.LoadInt64(&provider.calls),
		"whitespace variants share one cache entry")
}

func TestCachePersistsAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geocode_cache.csv")
	provider := &countingProvider{table: map[string]orb.Point{
		"Victoria St & Lawrence Ave, Kitchener": {-80.4679, 43.4421},
	}}

	first := geocode.NewCache(path)
	require.NoError(t, first.Load())
	_, err := first.Resolve(context.Background(), provider,
		"Victoria St & Lawrence Ave, Kitchener", orb.Point{})
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "a single resolve must not touch the file")
	require.NoError(t, first.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "q,lon,lat")
	assert.Contains(t, string(data), "Victoria St & Lawrence Ave, Kitchener")

	// a fresh cache over the same file answers without the provider
	second := geocode.NewCache(path)
	require.NoError(t, second.Load())
	loc, err := second.Resolve(context.Background(), provider,
		"Victoria St & Lawrence Ave, Kitchener", orb.Point{})
	require.NoError(t, err)
	assert.Equal(t, orb.Point{-80.4679, 43.4421}, loc)
	assert.Equal(t, int64(1), atomic.LoadInt64(&provider.calls))
}

func TestCacheLoadMissingFile(t *testing.T) {
	cache := geocode.NewCache(filepath.Join(t.TempDir(), "nope.csv"))
	require.NoError(t, cache.Load())
	assert.Equal(t, 0, cache.Size())
}

func TestCacheFlushWithoutNewEntriesIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geocode_cache.csv")
	cache := geocode.NewCache(path)
	require.NoError(t, cache.Flush())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "a clean cache must not create the file")

	cache.Put("Weber St, Waterloo", orb.Point{-80.51, 43.48})
	require.NoError(t, cache.Flush())
	require.NoError(t, cache.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "q,lon,lat\n\"Weber St, Waterloo\",-80.51,43.48\n", string(data))
}

func TestResolveAllKeepsFailuresPerQuery(t *testing.T) {
	provider := &countingProvider{table: map[string]orb.Point{
		"Weber St, Waterloo":    {-80.51, 43.48},
		"Columbia St, Waterloo": {-80.54, 43.48},
	}}
	cache := geocode.NewCache(filepath.Join(t.TempDir(), "geocode_cache.csv"))

	queries := []string{
		"Weber St, Waterloo",
		"Columbia St, Waterloo",
		"nowhere at all",
		"Weber St, Waterloo", // duplicate collapses
	}
	results := cache.ResolveAll(context.Background(), provider, queries, orb.Point{}, 4)
	require.Len(t, results, 3)
	assert.NoError(t, results["Weber St, Waterloo"].Err)
	assert.NoError(t, results["Columbia St, Waterloo"].Err)
	assert.ErrorIs(t, results["nowhere at all"].Err, geocode.ErrNoResult)
	assert.Equal(t, orb.Point{-80.51, 43.48}, results["Weber St, Waterloo"].Loc)
	assert.Equal(t, int64(3), atomic.LoadInt64(&provider.calls))
}
