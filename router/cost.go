package router

import (
	"math"
	"time"

	"github.com/pearl-natalia/lumen/risk"
)

// CostParams are the tunables of the risk-priced walking cost.
type CostParams struct {
	IncidentRadiusM float64 // incident influence radius
	CameraRadiusM   float64 // camera influence radius

	IncidentGain float64 // cost growth per unit of incident weight
	CameraGain   float64 // cost reduction per camera

	NightIncidentMult float64
	NightCameraMult   float64

	DecayTauHours float64 // incident freshness half-life scale
	MinEdgeCost   float64 // floor below which no edge cost may drop

	WalkSpeedMps float64 // single walking speed behind every ETA
	FetchDistM   float64 // street fetch radius around each endpoint
}

func DefaultCostParams() CostParams {
	return CostParams{
		IncidentRadiusM:   120,
		CameraRadiusM:     60,
		IncidentGain:      1.20,
		CameraGain:        0.30,
		NightIncidentMult: 1.25,
		NightCameraMult:   1.35,
		DecayTauHours:     12,
		MinEdgeCost:       0.1,
		WalkSpeedMps:      1.33,
		FetchDistM:        3000,
	}
}

// Decay is the freshness weight of an incident ageHours old. Future
// timestamps count as fresh.
func (p CostParams) Decay(ageHours float64) float64 {
	if ageHours < 0 {
		ageHours = 0
	}
	return math.Exp(-ageHours / p.DecayTauHours)
}

// PointWeight is one risk point's contribution before aggregation.
// Incidents with no timestamp count at full weight. The night multiplier
// is applied exactly once, here.
func (p CostParams) PointWeight(pt risk.Point, now time.Time, night bool) float64 {
	if pt.Kind == risk.KindCamera {
		w := 1.0
		if night {
			w *= p.NightCameraMult
		}
		return w
	}
	w := 1.0
	if pt.Time != nil {
		w = p.Decay(now.Sub(*pt.Time).Hours())
	}
	if night {
		w *= p.NightIncidentMult
	}
	return w
}

// Radius is the influence radius for a point kind.
func (p CostParams) Radius(kind risk.Kind) float64 {
	if kind == risk.KindCamera {
		return p.CameraRadiusM
	}
	return p.IncidentRadiusM
}

// EdgeCost prices one segment: incidents scale the length up, cameras
// scale it back down, and the floor keeps costs strictly positive.
func (p CostParams) EdgeCost(length, incidentSum, cameraSum float64) float64 {
	up := 1.0 + p.IncidentGain*incidentSum
	down := 1.0 + p.CameraGain*cameraSum
	return math.Max(p.MinEdgeCost, length*up/down)
}

// IsNight reports whether t falls in the 18:00 to 06:00 window.
func IsNight(t time.Time) bool {
	h := t.Hour()
	return h >= 18 || h < 6
}
