package triplog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/pawelz/trainlog-new-tracks/internal/config"
)

// tripTimeLayouts are tried in order. Zoned values keep their wall clock.
var tripTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Load reads a travel-log CSV export. Rows keep their file order.
func Load(path string, cols config.Columns) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &InputError{Path: path, Err: err}
	}
	defer f.Close()

	// Spreadsheet tools like to prepend a BOM to CSV exports
	reader := csv.NewReader(transform.NewReader(f, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &InputError{Path: path, Err: errors.New("file is empty")}
	}
	if err != nil {
		return nil, &InputError{Path: path, Row: 1, Err: err}
	}

	idx := makeIndex(header)
	index, err := resolveIndex(idx, cols)
	if err != nil {
		var inErr *InputError
		if errors.As(err, &inErr) {
			inErr.Path = path
		}
		return nil, err
	}

	lg := &Log{
		Path:   path,
		Header: header,
		Index:  index,
	}

	for row := 0; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return nil, &InputError{Path: path, Row: parseErr.Line, Err: parseErr.Err}
			}
			return nil, &InputError{Path: path, Err: err}
		}
		line, _ := reader.FieldPos(0)

		id := field(record, index.ID)
		if id == "" {
			id = "line " + strconv.Itoa(line)
		}

		raw := field(record, index.Date)
		start, err := ParseTripTime(raw)
		if err != nil {
			lg.Rejected = append(lg.Rejected, Rejected{
				Line: line,
				ID:   id,
				Type: field(record, index.Type),
				Date: raw,
			})
			continue
		}

		lg.Trips = append(lg.Trips, Trip{
			Row:    row,
			ID:     id,
			Type:   field(record, index.Type),
			Start:  start,
			Path:   field(record, index.Path),
			Fields: record,
		})
	}

	log.Printf("Loaded %d trips from %s (%d rows with invalid dates)", len(lg.Trips), path, len(lg.Rejected))
	return lg, nil
}

// ParseTripTime parses the date column of the export. Values carrying a
// zone offset keep their local wall clock so a trip is attributed to the
// day it was taken on.
func ParseTripTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range tripTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseCutoff parses the --since_day value (YYYY-MM-DD).
func ParseCutoff(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &InputError{Column: "since_day", Err: fmt.Errorf("want YYYY-MM-DD, got %q", s)}
	}
	return t, nil
}

// ParseTypes splits a comma-separated list of trip types.
func ParseTypes(s string) []string {
	seen := make(map[string]bool)
	var types []string
	for _, part := range strings.Split(s, ",") {
		t := strings.TrimSpace(part)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		types = append(types, t)
	}
	return types
}

func resolveIndex(idx map[string]int, cols config.Columns) (Index, error) {
	index := Index{ID: -1}
	if i, ok := idx[cols.ID]; ok && cols.ID != "" {
		index.ID = i
	}

	required := []struct {
		name string
		dst  *int
	}{
		{cols.Type, &index.Type},
		{cols.Date, &index.Date},
		{cols.Path, &index.Path},
	}
	for _, r := range required {
		i, ok := idx[r.name]
		if !ok {
			return index, &InputError{Column: r.name, Err: errors.New("missing required column")}
		}
		*r.dst = i
	}
	return index, nil
}

func makeIndex(header []string) map[string]int {
	idx := make(map[string]int)
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

func field(record []string, i int) string {
	if i >= 0 && i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}
