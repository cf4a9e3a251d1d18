package router

import (
	"math"
	"testing"
	"time"

	"github.com/pearl-natalia/lumen/risk"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecay(t *testing.T) {
	p := DefaultCostParams()
	assert.Equal(t, 1.0, p.Decay(0))
	assert.Equal(t, 1.0, p.Decay(-5), "future timestamps count as fresh")
	assert.InDelta(t, math.Exp(-1), p.Decay(p.DecayTauHours), 1e-12)
	assert.Greater(t, p.Decay(6), p.Decay(24))
	assert.Greater(t, p.Decay(24), p.Decay(24*7))
}

func TestPointWeight(t *testing.T) {
	p := DefaultCostParams()
	now := time.Date(2025, 8, 23, 22, 0, 0, 0, time.UTC)

	camera := risk.Point{Kind: risk.KindCamera, Loc: orb.Point{-80.5, 43.45}}
	assert.Equal(t, 1.0, p.PointWeight(camera, now, false))
	assert.Equal(t, p.NightCameraMult, p.PointWeight(camera, now, true))

	undated := risk.Point{Kind: risk.KindIncident, Loc: orb.Point{-80.5, 43.45}}
	assert.Equal(t, 1.0, p.PointWeight(undated, now, false))
	assert.Equal(t, p.NightIncidentMult, p.PointWeight(undated, now, true))

	when := now.Add(-12 * time.Hour)
	dated := risk.Point{Kind: risk.KindIncident, Time: &when}
	assert.InDelta(t, math.Exp(-1), p.PointWeight(dated, now, false), 1e-12)
	assert.InDelta(t, math.Exp(-1)*p.NightIncidentMult, p.PointWeight(dated, now, true), 1e-12)

	future := now.Add(3 * time.Hour)
	early := risk.Point{Kind: risk.KindIncident, Time: &future}
	assert.Equal(t, 1.0, p.PointWeight(early, now, false))
}

func TestEdgeCost(t *testing.T) {
	p := DefaultCostParams()

	assert.Equal(t, 100.0, p.EdgeCost(100, 0, 0))
	assert.InDelta(t, 220.0, p.EdgeCost(100, 1, 0), 1e-9)
	assert.InDelta(t, 100.0/1.3, p.EdgeCost(100, 0, 1), 1e-9)

	// more incidents never cheapen, more cameras never raise
	assert.Greater(t, p.EdgeCost(100, 2, 0), p.EdgeCost(100, 1, 0))
	assert.Less(t, p.EdgeCost(100, 0, 2), p.EdgeCost(100, 0, 1))

	// the floor holds even when cameras would push the cost near zero
	require.Equal(t, p.MinEdgeCost, p.EdgeCost(0.2, 0, 100))
	assert.Positive(t, p.EdgeCost(0, 0, 0))
}

func TestRadius(t *testing.T) {
	p := DefaultCostParams()
	assert.Equal(t, p.IncidentRadiusM, p.Radius(risk.KindIncident))
	assert.Equal(t, p.CameraRadiusM, p.Radius(risk.KindCamera))
}

func TestIsNight(t *testing.T) {
	day := func(h, m int) time.Time {
		return time.Date(2025, 8, 23, h, m, 0, 0, time.UTC)
	}
	assert.False(t, IsNight(day(12, 0)))
	assert.False(t, IsNight(day(17, 59)))
	assert.True(t, IsNight(day(18, 0)))
	assert.True(t, IsNight(day(23, 30)))
	assert.True(t, IsNight(day(0, 0)))
	assert.True(t, IsNight(day(5, 59)))
	assert.False(t, IsNight(day(6, 0)))
}
