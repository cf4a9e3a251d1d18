package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

const DefaultMapboxURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// Mapbox geocodes against the Mapbox places API.
type Mapbox struct {
	BaseURL string
	HTTP    *http.Client

	token string
}

func NewMapbox(token string) (*Mapbox, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	return &Mapbox{
		BaseURL: DefaultMapboxURL,
		HTTP:    &http.Client{Timeout: 20 * time.Second},
		token:   token,
	}, nil
}

func formatLonLat(p orb.Point) string {
	return strconv.FormatFloat(p.Lon(), 'f', -1, 64) + "," +
		strconv.FormatFloat(p.Lat(), 'f', -1, 64)
}

func (m *Mapbox) Geocode(ctx context.Context, query string, proximity orb.Point) (orb.Point, error) {
	params := url.Values{}
	params.Set("access_token", m.token)
	params.Set("limit", "1")
	if proximity != (orb.Point{}) {
		params.Set("proximity", formatLonLat(proximity))
	}
	u := m.BaseURL + "/" + url.PathEscape(query) + ".json?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return orb.Point{}, fmt.Errorf("build geocode request: %w", err)
	}
	resp, err := m.HTTP.Do(req)
	if err != nil {
		return orb.Point{}, fmt.Errorf("geocode %q: %w", query, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return orb.Point{}, fmt.Errorf("geocode %q: status %d", query, resp.StatusCode)
	}
	var out struct {
		Features []struct {
			Center [2]float64 `json:"center"` // lon, lat
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return orb.Point{}, fmt.Errorf("decode geocode response for %q: %w", query, err)
	}
	if len(out.Features) == 0 {
		return orb.Point{}, fmt.Errorf("geocode %q: %w", query, ErrNoResult)
	}
	return orb.Point(out.Features[0].Center), nil
}
