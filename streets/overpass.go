package streets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

const DefaultOverpassURL = "https://overpass-api.de/api/interpreter"

// WalkQuery selects ways a pedestrian can use within dist meters of
// center, with their nodes recursed in. The way filter must stay in sync
// with walkable().
func WalkQuery(center orb.Point, dist float64) string {
	var b strings.Builder
	b.WriteString("[out:json][timeout:180];\n(\n")
	fmt.Fprintf(&b,
		`  way["highway"]["area"!~"yes"]`+
			`["highway"!~"abandoned|bus_guideway|construction|cycleway|motorway|motorway_link|planned|platform|proposed|raceway|razed"]`+
			`["foot"!~"no"]["service"!~"private"](around:%.0f,%.6f,%.6f);`+"\n",
		dist, center.Lat(), center.Lon())
	b.WriteString(");\nout body;\n>;\nout skel qt;\n")
	return b.String()
}

// OverpassClient fetches walkable street data from an Overpass API
// endpoint.
type OverpassClient struct {
	HTTP *http.Client
	URL  string
}

func NewOverpassClient() *OverpassClient {
	return &OverpassClient{
		HTTP: &http.Client{Timeout: 185 * time.Second},
		URL:  DefaultOverpassURL,
	}
}

// WalkNetwork downloads the raw OSM data of the walkable streets within
// dist meters of center.
func (c *OverpassClient) WalkNetwork(ctx context.Context, center orb.Point, dist float64) (*osm.OSM, error) {
	query := WalkQuery(center, dist)
	log.Debugf("overpass query around (%.6f,%.6f), %.0fm", center.Lat(), center.Lon(), dist)
	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("overpass status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	o := &osm.OSM{}
	if err := json.NewDecoder(resp.Body).Decode(o); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}
	log.Debugf("overpass returned %d nodes, %d ways", len(o.Nodes), len(o.Ways))
	return o, nil
}

// FetchWalkNetwork downloads and cuts the street network around center.
func (c *OverpassClient) FetchWalkNetwork(ctx context.Context, center orb.Point, dist float64) (*Network, error) {
	o, err := c.WalkNetwork(ctx, center, dist)
	if err != nil {
		return nil, err
	}
	return BuildNetwork(o)
}
