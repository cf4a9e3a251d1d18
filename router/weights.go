package router

import (
	"math"

	"github.com/pearl-natalia/lumen/streets"
	"github.com/samber/lo"
)

// WeightRow pairs an edge id with its priced cost.
type WeightRow struct {
	ID         streets.EdgeID
	BaseLength float64
	Cost       float64
}

// ComputeWeights prices every directed segment from the aggregated risk
// sums, in network enumeration order.
func ComputeWeights(net *streets.Network, params CostParams, incidentSums, cameraSums map[streets.EdgeID]float64) []WeightRow {
	rows := make([]WeightRow, 0, len(net.Edges()))
	for _, e := range net.Edges() {
		rows = append(rows, WeightRow{
			ID:         e.EdgeID,
			BaseLength: e.Length,
			Cost:       params.EdgeCost(e.Length, incidentSums[e.EdgeID], cameraSums[e.EdgeID]),
		})
	}
	return rows
}

// ApplyWeights maps priced rows back onto the network. An edge missing
// an exact row falls back to the row of its closest-length parallel,
// then to its own plain length, so the result always covers every edge.
func ApplyWeights(net *streets.Network, rows []WeightRow) map[streets.EdgeID]float64 {
	byID := make(map[streets.EdgeID]WeightRow, len(rows))
	byPair := make(map[[2]int64][]WeightRow)
	for _, r := range rows {
		byID[r.ID] = r
		pair := [2]int64{r.ID.From, r.ID.To}
		byPair[pair] = append(byPair[pair], r)
	}
	out := make(map[streets.EdgeID]float64, len(net.Edges()))
	for _, e := range net.Edges() {
		if r, ok := byID[e.EdgeID]; ok {
			out[e.EdgeID] = r.Cost
			continue
		}
		if candidates := byPair[[2]int64{e.From, e.To}]; len(candidates) > 0 {
			best := lo.MinBy(candidates, func(a, b WeightRow) bool {
				return math.Abs(a.BaseLength-e.Length) < math.Abs(b.BaseLength-e.Length)
			})
			out[e.EdgeID] = best.Cost
			continue
		}
		out[e.EdgeID] = e.Length
	}
	return out
}
