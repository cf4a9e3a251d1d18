package main

import (
	"context"
	"flag"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"math/rand"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"github.com/pearl-natalia/lumen/router"
)

var (
	benchmarkCount  = flag.Int("benchmark.count", 1000, "the random routing count for benchmark")
	benchmarkCenter = flag.String("benchmark.center", "-80.5204,43.4643", "the center the street network is fetched around, \"lon,lat\" or a place name")
	benchmarkSeed   = flag.Int64("benchmark.seed", 0, "the seed for benchmark")
	benchmarkCPU    = flag.Int("benchmark.cpu", 1, "the cpu count for benchmark")
)

// runBenchmark prices one network and times random point-to-point
// searches on it.
func runBenchmark(app *App) {
	log.Logger.SetLevel(logrus.WarnLevel)
	ctx := context.Background()
	center, err := app.resolveArg(ctx, *benchmarkCenter)
	if err != nil {
		log.Fatalf("benchmark center: %v", err)
	}
	now := time.Now()
	net, err := app.overpass.FetchWalkNetwork(ctx, center, app.cfg.Params.FetchDistM)
	if err != nil {
		log.Fatalf("benchmark network: %v", err)
	}
	points, err := app.riskPoints(ctx, center, now)
	if err != nil {
		log.Fatalf("benchmark risk points: %v", err)
	}
	r := router.New(net, points, app.cfg.Params, router.Options{Night: app.night(now), Now: now})

	// random endpoint pairs over the fetched nodes
	e := rand.New(rand.NewSource(*benchmarkSeed))
	nodes := net.Nodes()
	type pair struct{ from, to orb.Point }
	pairs := make([]pair, *benchmarkCount)
	for i := range pairs {
		pairs[i] = pair{
			from: nodes[e.Intn(len(nodes))].Loc,
			to:   nodes[e.Intn(len(nodes))].Loc,
		}
	}

	start := time.Now()
	var wg sync.WaitGroup
	var success atomic.Int32
	if *benchmarkCPU == 1 {
		for _, p := range pairs {
			if _, err := r.Navigate(p.from, p.to); err == nil {
				success.Add(1)
			}
		}
	} else {
		runtime.GOMAXPROCS(*benchmarkCPU)
		wg.Add(len(pairs))
		for _, p := range pairs {
			go func(p pair) {
				defer wg.Done()
				if _, err := r.Navigate(p.from, p.to); err == nil {
					success.Add(1)
				}
			}(p)
		}
		wg.Wait()
	}
	timeCost := time.Since(start) * time.Duration(*benchmarkCPU)
	log.Error(
		"benchmark finished", "\n",
		"count:", *benchmarkCount, "\n",
		"time:", timeCost, "\n",
		"avg:", timeCost/time.Duration(*benchmarkCount), "\n",
		"success:", success.Load(), "\n",
	)
}
