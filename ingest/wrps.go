// Package ingest pulls raw incident records from the public WRPS
// incident listing pages.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pearl-natalia/lumen/risk"
	"golang.org/x/net/html"
)

const DefaultWRPSURL = "https://wrps.ca/news/incidents"

// listingMarker is present on every rendered incident listing page.
// Pages without it are error or placeholder pages.
const listingMarker = "Automated Incidents"

var (
	reTitle        = regexp.MustCompile(`(?m)^(WA\d{8}\s*-\s*.+)$`)
	reIncidentNo   = regexp.MustCompile(`(?i)Incident\s*#:\s*(WA\d+)`)
	reBareID       = regexp.MustCompile(`WA\d{8}`)
	rePostedOn     = regexp.MustCompile(`Posted on:\s*([^\n]+)`)
	reCallType     = regexp.MustCompile(`(?im)^\s*(Break & Enter|Disturbance|Fire|MVC Personal Injury|Offensive Weapon|Property Damage|Robbery|Theft|Traffic)\s*$`)
	reIncidentDate = regexp.MustCompile(`(?i)Incident Date:\s*([^\n]+)`)
	reLocation     = regexp.MustCompile(`(?m)^\s*([A-Z0-9 ,.&'/()-]+(?:, (?:WATERLOO|KITCHENER|CAMBRIDGE|WATERLOO REGION|NORTH DUMFRIES|WELLESLEY|WILMOT|WOOLWICH|OUTSIDE REGION|ON))?)\s*$`)
)

// canonical call type spellings, keyed by lowercase match
var callTypes = func() map[string]string {
	names := []string{
		"Break & Enter", "Disturbance", "Fire", "MVC Personal Injury",
		"Offensive Weapon", "Property Damage", "Robbery", "Theft", "Traffic",
	}
	m := make(map[string]string, len(names))
	for _, n := range names {
		m[strings.ToLower(n)] = n
	}
	return m
}()

// Scraper walks the WRPS incident listing pages and parses their text
// blocks into incident rows.
type Scraper struct {
	HTTP      *http.Client
	BaseURL   string
	UserAgent string

	// MaxPages caps one run.
	MaxPages int
	// EmptyStreak stops the run after this many consecutive pages
	// without incident blocks.
	EmptyStreak int
	// Delay is the pause between page fetches.
	Delay time.Duration
	// Cities keeps only rows whose location mentions one of these,
	// uppercase.
	Cities []string
}

func NewScraper() *Scraper {
	return &Scraper{
		HTTP:        &http.Client{Timeout: 20 * time.Second},
		BaseURL:     DefaultWRPSURL,
		UserAgent:   "Mozilla/5.0 (lumen incident scraper; contact: you@example.com)",
		MaxPages:    50,
		EmptyStreak: 3,
		Delay:       400 * time.Millisecond,
		Cities:      []string{"KITCHENER", "WATERLOO"},
	}
}

// Fetch walks the listing pages in order and returns the parsed rows,
// deduplicated by incident id. Ids in known are skipped. Fetch errors
// end the run with whatever was collected so far.
func (s *Scraper) Fetch(ctx context.Context, known map[string]struct{}) ([]risk.Incident, error) {
	seen := make(map[string]struct{}, len(known))
	for id := range known {
		seen[id] = struct{}{}
	}
	var rows []risk.Incident
	empty := 0
	for page := 1; page <= s.MaxPages; page++ {
		url := s.BaseURL
		if page > 1 {
			url = fmt.Sprintf("%s?page=%d", s.BaseURL, page-1)
		}
		text, err := s.fetchPage(ctx, url)
		if err != nil {
			log.Warnf("fetch page %d: %v", page, err)
			break
		}
		if !strings.Contains(text, listingMarker) {
			empty++
			if empty >= s.EmptyStreak {
				break
			}
			continue
		}
		parsed, blocks := s.ParsePage(text, url)
		if blocks == 0 {
			empty++
			if empty >= s.EmptyStreak {
				break
			}
			continue
		}
		for _, row := range parsed {
			if _, ok := seen[row.IncidentID]; ok {
				continue
			}
			seen[row.IncidentID] = struct{}{}
			rows = append(rows, row)
		}
		empty = 0
		if s.Delay > 0 && page < s.MaxPages {
			select {
			case <-time.After(s.Delay):
			case <-ctx.Done():
				return rows, ctx.Err()
			}
		}
	}
	log.Infof("scraped %d new incidents", len(rows))
	return rows, nil
}

// ParsePage extracts incident rows from the flattened text of one
// listing page. It returns the rows that pass the city filter and the
// number of raw incident blocks seen.
func (s *Scraper) ParsePage(text, pageURL string) ([]risk.Incident, int) {
	starts := reTitle.FindAllStringIndex(text, -1)
	var rows []risk.Incident
	for i, span := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		blk := text[span[0]:end]

		id := ""
		if m := reIncidentNo.FindStringSubmatch(blk); m != nil {
			id = m[1]
		} else {
			id = reBareID.FindString(blk)
		}
		if id == "" {
			continue
		}

		row := risk.Incident{
			IncidentID: id,
			TitleLine:  strings.TrimSpace(text[span[0]:span[1]]),
			PageURL:    pageURL,
		}
		if m := rePostedOn.FindStringSubmatch(blk); m != nil {
			row.PostedOn = strings.TrimSpace(m[1])
		}
		if m := reCallType.FindStringSubmatch(blk); m != nil {
			row.CallType = callTypes[strings.ToLower(strings.TrimSpace(m[1]))]
		}
		// the location line follows the incident date in every block
		if m := reIncidentDate.FindStringSubmatchIndex(blk); m != nil {
			row.IncidentDate = strings.TrimSpace(blk[m[2]:m[3]])
			if lm := reLocation.FindStringSubmatch(blk[m[3]:]); lm != nil {
				row.Location = strings.TrimSpace(lm[1])
			}
		}
		row.City = s.city(row.Location)
		if row.City == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, len(starts)
}

// city matches the location text against the city filter, first hit
// wins.
func (s *Scraper) city(location string) string {
	up := strings.ToUpper(location)
	for _, c := range s.Cities {
		if c != "" && strings.Contains(up, c) {
			return c[:1] + strings.ToLower(c[1:])
		}
	}
	return ""
}

func (s *Scraper) fetchPage(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return pageText(resp.Body)
}

// pageText flattens an HTML document to its visible text, one text node
// per line, the shape the block regexes expect.
func pageText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find("script, style").Remove()
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return strings.Join(parts, "\n"), nil
}
