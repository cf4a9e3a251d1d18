// Package risk loads the incident and camera records that shape walking
// costs, geocodes them into map points and keeps them synced between CSV
// files and MongoDB.
package risk

import (
	"time"

	"github.com/paulmach/orb"
)

// Kind tells whether a point raises cost or lowers it.
type Kind string

const (
	KindIncident Kind = "incident"
	KindCamera   Kind = "camera"
)

// CameraType matches the camera_type values stored in MongoDB.
type CameraType string

const (
	CameraRedLight CameraType = "red_light"
	CameraSpeed    CameraType = "speed"
)

// Point is one geocoded risk location.
type Point struct {
	Kind   Kind
	Camera CameraType // set when Kind is KindCamera
	Query  string     // geocode query the point came from
	Loc    orb.Point
	Time   *time.Time // incident time, nil when unknown
}
