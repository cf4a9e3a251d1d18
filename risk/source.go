package risk

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Incident is one scraped WRPS incident row, fields as stored in
// sources/incidents.csv.
type Incident struct {
	IncidentID   string
	PostedOn     string
	IncidentDate string
	CallType     string
	TitleLine    string
	Location     string
	City         string
	PageURL      string
}

var incidentHeader = []string{
	"incident_id", "posted_on", "incident_date", "call_type",
	"title_line", "location", "city", "page_url",
}

func (i Incident) record() []string {
	return []string{
		i.IncidentID, i.PostedOn, i.IncidentDate, i.CallType,
		i.TitleLine, i.Location, i.City, i.PageURL,
	}
}

func incidentFromRow(get func(string) string) Incident {
	return Incident{
		IncidentID:   get("incident_id"),
		PostedOn:     get("posted_on"),
		IncidentDate: get("incident_date"),
		CallType:     get("call_type"),
		TitleLine:    get("title_line"),
		Location:     get("location"),
		City:         get("city"),
		PageURL:      get("page_url"),
	}
}

// Query is the geocode query for the incident, empty when the row has no
// location.
func (i Incident) Query() string {
	loc := strings.Trim(strings.TrimSpace(i.Location), `"`)
	city := strings.Trim(strings.TrimSpace(i.City), `"`)
	if loc == "" {
		return ""
	}
	if city == "" {
		return loc
	}
	return loc + ", " + city
}

// Title is the headline with the leading incident id stripped.
func (i Incident) Title() string {
	if _, after, found := strings.Cut(i.TitleLine, " - "); found {
		return strings.TrimSpace(after)
	}
	return i.TitleLine
}

// When is the best-effort incident time, preferring the incident date
// over the posting date. Nil when neither parses.
func (i Incident) When(now time.Time) *time.Time {
	raw := i.IncidentDate
	if strings.TrimSpace(raw) == "" {
		raw = i.PostedOn
	}
	return ParseWhen(raw, now)
}

// wrpsLayouts match strings like "Monday August 18, 1pm". The pages
// carry no year, so now's year is filled in.
var wrpsLayouts = []string{"Monday January 2, 3pm", "Monday January 2, 3PM"}

// ParseWhen parses the date strings found on WRPS incident pages. It
// tries the page's own layout first, then falls back to permissive
// parsing for anything else. Returns nil when nothing matches.
func ParseWhen(s string, now time.Time) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range wrpsLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = time.Date(now.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
			return &t
		}
	}
	if t, err := dateparse.ParseAny(s); err == nil {
		return &t
	}
	return nil
}

// Camera is one enforcement camera row. The CSV files carry no type
// column, the type comes from which file the row was read from.
type Camera struct {
	CameraType         CameraType
	City               string
	PrimaryRoad        string
	CrossStreetOrNotes string
}

// approach_direction rides along in the source CSVs but is not stored,
// exports leave it blank
var cameraHeader = []string{"city", "approach_direction", "primary_road", "cross_street_or_notes"}

func (c Camera) record() []string {
	return []string{c.City, "", c.PrimaryRoad, c.CrossStreetOrNotes}
}

// Query is the geocode query for the camera, intersection style when a
// cross street is known.
func (c Camera) Query() string {
	p := strings.TrimSpace(c.PrimaryRoad)
	cross := strings.TrimSpace(c.CrossStreetOrNotes)
	city := strings.TrimSpace(c.City)
	if cross != "" {
		return fmt.Sprintf("%s & %s, %s", p, cross, city)
	}
	return fmt.Sprintf("%s, %s", p, city)
}

func readCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	rows := make([]map[string]string, 0)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(rec) {
				row[name] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadIncidents loads an incidents CSV. A missing file is an empty list.
func ReadIncidents(path string) ([]Incident, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	incidents := make([]Incident, 0, len(rows))
	for _, row := range rows {
		incidents = append(incidents, incidentFromRow(func(k string) string { return row[k] }))
	}
	return incidents, nil
}

// ReadCameras loads a camera CSV, tagging every row with cameraType.
// A missing file is an empty list.
func ReadCameras(path string, cameraType CameraType) ([]Camera, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	cameras := make([]Camera, 0, len(rows))
	for _, row := range rows {
		cameras = append(cameras, Camera{
			CameraType:         cameraType,
			City:               row["city"],
			PrimaryRoad:        row["primary_road"],
			CrossStreetOrNotes: row["cross_street_or_notes"],
		})
	}
	return cameras, nil
}

func writeAll(path string, header []string, records [][]string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// WriteIncidents replaces the incidents CSV with rows.
func WriteIncidents(path string, rows []Incident) error {
	records := make([][]string, len(rows))
	for i, row := range rows {
		records[i] = row.record()
	}
	return writeAll(path, incidentHeader, records)
}

// WriteCameras replaces a camera CSV with rows.
func WriteCameras(path string, rows []Camera) error {
	records := make([][]string, len(rows))
	for i, row := range rows {
		records[i] = row.record()
	}
	return writeAll(path, cameraHeader, records)
}

// AppendIncidents appends rows to the incidents CSV, writing the header
// first when the file is new or empty.
func AppendIncidents(path string, rows []Incident) error {
	if len(rows) == 0 {
		return nil
	}
	info, err := os.Stat(path)
	fresh := os.IsNotExist(err) || (err == nil && info.Size() == 0)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(incidentHeader); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	for _, row := range rows {
		if err := w.Write(row.record()); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}
