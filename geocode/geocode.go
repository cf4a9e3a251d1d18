// Package geocode turns free-form place text into lon/lat coordinates,
// with a persistent cache so repeated risk points never hit the paid
// API twice.
package geocode

import (
	"context"
	"errors"

	"github.com/paulmach/orb"
)

var (
	// the query produced no feature at all
	ErrNoResult = errors.New("geocoder returned no result")
	// the provider requires an API token and none was configured
	ErrMissingToken = errors.New("missing geocoder API token")
)

// Provider resolves one query to a point, biased toward proximity.
type Provider interface {
	Geocode(ctx context.Context, query string, proximity orb.Point) (orb.Point, error)
}
