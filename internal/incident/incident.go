// Package incident loads historical incident records from portal exports
// (CSV or XLSX) into model.Incident values.
package incident

import (
	"errors"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/saferoute/internal/model"
)

// ErrMissingField marks a record without a coordinate or timestamp. Such
// records are dropped and counted, never fatal.
var ErrMissingField = eris.New("incident: missing field")

// maxAreaCode bounds the community area column; larger values are bad data.
const maxAreaCode = 1 << 16

// dateLayouts are tried in order.
var dateLayouts = []string{
	"01/02/2006 03:04:05 PM",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// record is one export row. Every field is decoded as text so a blank cell
// never aborts the file.
type record struct {
	ID            string `csv:"id"`
	Date          string `csv:"date"`
	PrimaryType   string `csv:"primary_type"`
	CommunityArea string `csv:"community_area"`
	Latitude      string `csv:"latitude"`
	Longitude     string `csv:"longitude"`
}

// Options controls how rows are interpreted.
type Options struct {
	// Location is the zone naive timestamps are read in. Defaults to UTC.
	Location *time.Location
}

// Stats counts rows seen and dropped by a load.
type Stats struct {
	Rows         int `json:"rows"`
	Loaded       int `json:"loaded"`
	MissingField int `json:"missing_field"`
	Invalid      int `json:"invalid"`
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Rows += other.Rows
	s.Loaded += other.Loaded
	s.MissingField += other.MissingField
	s.Invalid += other.Invalid
}

// Load reads incidents from a .csv or .xlsx file.
func Load(path string, opts Options) ([]model.Incident, Stats, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSVFile(path, opts)
	case ".xlsx":
		return LoadXLSX(path, opts)
	default:
		return nil, Stats{}, eris.Errorf("incident: unsupported file type %q", filepath.Ext(path))
	}
}

// decode drains a row reader whose first row is the header.
func decode(r csvutil.Reader, opts Options) ([]model.Incident, Stats, error) {
	log := zap.L().With(zap.String("component", "incident.loader"))

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, Stats{}, nil
		}
		return nil, Stats{}, eris.Wrap(err, "incident: read header")
	}
	for i, h := range header {
		header[i] = normalizeHeader(h)
	}

	dec, err := csvutil.NewDecoder(&padReader{r: r, width: len(header)}, header...)
	if err != nil {
		return nil, Stats{}, eris.Wrap(err, "incident: create decoder")
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	var (
		out   []model.Incident
		stats Stats
		upper = cases.Upper(language.English)
	)
	for {
		var rec record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, stats, eris.Wrapf(err, "incident: decode row %d", stats.Rows+1)
		}
		stats.Rows++

		inc, err := rec.toIncident(loc, upper)
		switch {
		case err == nil:
			out = append(out, inc)
			stats.Loaded++
		case eris.Is(err, ErrMissingField):
			stats.MissingField++
		default:
			stats.Invalid++
			log.Debug("skipping invalid row", zap.String("id", rec.ID), zap.Error(err))
		}
	}

	if stats.MissingField > 0 || stats.Invalid > 0 {
		log.Info("dropped incident rows",
			zap.Int("missing_field", stats.MissingField),
			zap.Int("invalid", stats.Invalid),
			zap.Int("loaded", stats.Loaded),
		)
	}
	return out, stats, nil
}

// padReader fixes every row to the header width; spreadsheet rows drop
// trailing blank cells.
type padReader struct {
	r     csvutil.Reader
	width int
}

func (p *padReader) Read() ([]string, error) {
	row, err := p.r.Read()
	if err != nil {
		return nil, err
	}
	if len(row) > p.width {
		return row[:p.width], nil
	}
	for len(row) < p.width {
		row = append(row, "")
	}
	return row, nil
}

func (rec record) toIncident(loc *time.Location, upper cases.Caser) (model.Incident, error) {
	if strings.TrimSpace(rec.Date) == "" {
		return model.Incident{}, eris.Wrapf(ErrMissingField, "incident %s: date", rec.ID)
	}
	if strings.TrimSpace(rec.Latitude) == "" || strings.TrimSpace(rec.Longitude) == "" {
		return model.Incident{}, eris.Wrapf(ErrMissingField, "incident %s: coordinate", rec.ID)
	}

	at, err := parseTime(rec.Date, loc)
	if err != nil {
		return model.Incident{}, err
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(rec.Latitude), 64)
	if err != nil {
		return model.Incident{}, eris.Wrapf(err, "incident %s: latitude", rec.ID)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(rec.Longitude), 64)
	if err != nil {
		return model.Incident{}, eris.Wrapf(err, "incident %s: longitude", rec.ID)
	}
	if !finite(lat) || !finite(lng) || math.Abs(lat) > 90 || math.Abs(lng) > 180 {
		return model.Incident{}, eris.Errorf("incident %s: coordinate %v,%v out of range", rec.ID, lat, lng)
	}

	var area int
	if s := strings.TrimSpace(rec.CommunityArea); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.Incident{}, eris.Wrapf(err, "incident %s: community area", rec.ID)
		}
		if !finite(f) || f < 0 || f > maxAreaCode || f != math.Trunc(f) {
			return model.Incident{}, eris.Errorf("incident %s: community area %q out of range", rec.ID, s)
		}
		area = int(f)
	}

	return model.Incident{
		ID:         strings.TrimSpace(rec.ID),
		Category:   upper.String(strings.TrimSpace(rec.PrimaryType)),
		OccurredAt: at,
		Location:   &model.Coordinate{Lat: lat, Lng: lng},
		Area:       area,
	}, nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("incident: unrecognized date %q", s)
}

// normalizeHeader maps "Primary Type" and "primary type" to "primary_type".
func normalizeHeader(h string) string {
	h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	return strings.ReplaceAll(strings.ToLower(h), " ", "_")
}

// Merge appends recent to base, dropping any record whose id was already
// seen. The first occurrence wins. Records without an id are always kept.
func Merge(base, recent []model.Incident) []model.Incident {
	seen := make(map[string]struct{}, len(base)+len(recent))
	out := make([]model.Incident, 0, len(base)+len(recent))
	for _, list := range [][]model.Incident{base, recent} {
		for _, inc := range list {
			if inc.ID != "" {
				if _, dup := seen[inc.ID]; dup {
					continue
				}
				seen[inc.ID] = struct{}{}
			}
			out = append(out, inc)
		}
	}
	return out
}

// ByArea groups incidents by their source area code, preserving input order
// within each group.
func ByArea(incs []model.Incident) map[int][]model.Incident {
	out := make(map[int][]model.Incident)
	for _, inc := range incs {
		out[inc.Area] = append(out[inc.Area], inc)
	}
	return out
}
