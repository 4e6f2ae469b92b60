package newtracks

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/pawelz/trainlog-new-tracks/internal/config"
	"github.com/pawelz/trainlog-new-tracks/internal/metrics"
	"github.com/pawelz/trainlog-new-tracks/internal/track"
	"github.com/pawelz/trainlog-new-tracks/internal/triplog"
)

var header = []string{"uid", "username", "type", "start_datetime", "path"}

// eastward returns a line along latitude lat with a vertex every 0.01 degrees.
func eastward(lat, lon0, lon1 float64) orb.LineString {
	var line orb.LineString
	for lon := lon0; lon < lon1-1e-9; lon += 0.01 {
		line = append(line, orb.Point{lon, lat})
	}
	return append(line, orb.Point{lon1, lat})
}

type tripRow struct {
	id, typ, date, path string
}

func trip(id, typ, date string, line orb.LineString) tripRow {
	return tripRow{id, typ, date, track.Encode(line)}
}

func writeInput(t *testing.T, rows ...tripRow) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trips.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := csv.NewWriter(f)
	w.Write(header)
	for _, r := range rows {
		w.Write([]string{r.id, "pawel", r.typ, r.date, r.path})
	}
	w.Flush()
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(t *testing.T, input string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.InputFile = input
	cfg.SinceDay = "2024-01-01"
	cfg.OutputFile = filepath.Join(t.TempDir(), "new_tracks.csv")
	cfg.Progress = false
	return cfg
}

func run(t *testing.T, cfg *config.Config) *Result {
	t.Helper()
	res, err := Run(context.Background(), cfg, io.Discard)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return res
}

func readOutput(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) == 0 || strings.Join(rows[0], ",") != strings.Join(header, ",") {
		t.Fatalf("output header = %v, want %v", rows, header)
	}
	return rows[1:]
}

func TestRunPriorTripsNeverOutput(t *testing.T) {
	input := writeInput(t,
		trip("p1", "train", "2023-05-01 10:00:00", eastward(41.0, 2.0, 2.1)),
		trip("p2", "train", "2023-12-31 23:59:59", eastward(42.0, 2.0, 2.1)),
		trip("c1", "train", "2024-01-01 00:00:00", eastward(43.0, 2.0, 2.1)),
	)
	cfg := testConfig(t, input)
	run(t, cfg)

	rows := readOutput(t, cfg.OutputFile)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d: %v", len(rows), rows)
	}
	if rows[0][0] != "c1" {
		t.Errorf("only the candidate may be written, got %s", rows[0][0])
	}
}

func TestRunIdentityRoundTrip(t *testing.T) {
	// Without history nothing is filtered, so paths come back verbatim
	lines := []orb.LineString{
		eastward(41.0, 2.0, 2.1),
		{{2.17340, 41.38510}, {2.15899, 41.40145}, {2.12010, 41.41220}},
	}
	input := writeInput(t,
		trip("c1", "train", "2024-02-01 08:00:00", lines[0]),
		trip("c2", "train", "2024-03-01 08:00:00", lines[1]),
	)
	cfg := testConfig(t, input)
	run(t, cfg)

	rows := readOutput(t, cfg.OutputFile)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for i, line := range lines {
		if rows[i][4] != track.Encode(line) {
			t.Errorf("row %d path = %q, want %q", i, rows[i][4], track.Encode(line))
		}
		if rows[i][1] != "pawel" || rows[i][2] != "train" {
			t.Errorf("row %d lost original fields: %v", i, rows[i])
		}
	}
}

func TestRunIdempotent(t *testing.T) {
	input := writeInput(t,
		trip("p1", "train", "2023-05-01", eastward(41.0, 2.0, 2.1)),
		trip("c1", "train", "2024-02-01", eastward(41.0, 2.0, 2.3)),
		trip("c2", "train", "2024-02-02", eastward(41.2, 2.0, 2.1)),
	)
	cfg := testConfig(t, input)

	run(t, cfg)
	first, err := os.ReadFile(cfg.OutputFile)
	if err != nil {
		t.Fatal(err)
	}
	run(t, cfg)
	second, err := os.ReadFile(cfg.OutputFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Errorf("runs differ:\n%s\n---\n%s", first, second)
	}
}

func TestRunDuplicateOfPrior(t *testing.T) {
	route := eastward(41.0, 2.0, 2.1)
	input := writeInput(t,
		trip("p1", "train", "2023-05-01", route),
		trip("c1", "train", "2024-02-01", route),
	)
	cfg := testConfig(t, input)
	res := run(t, cfg)

	if rows := readOutput(t, cfg.OutputFile); len(rows) != 0 {
		t.Errorf("duplicate route should produce no rows, got %v", rows)
	}
	if len(res.Trips) != 1 || res.Trips[0].Segments != 0 {
		t.Errorf("trip results = %+v", res.Trips)
	}
}

func TestRunDisjointCandidate(t *testing.T) {
	candidate := eastward(41.5, 2.0, 2.1)
	input := writeInput(t,
		trip("p1", "train", "2023-05-01", eastward(41.0, 2.0, 2.1)),
		trip("c1", "train", "2024-02-01", candidate),
	)
	cfg := testConfig(t, input)
	run(t, cfg)

	rows := readOutput(t, cfg.OutputFile)
	if len(rows) != 1 {
		t.Fatalf("expected exactly 1 row, got %d", len(rows))
	}
	if rows[0][4] != track.Encode(candidate) {
		t.Errorf("disjoint candidate should be written whole, got %q", rows[0][4])
	}
}

func TestRunSequentialSameRoute(t *testing.T) {
	newRoute := eastward(41.5, 2.0, 2.1)
	input := writeInput(t,
		// file order is not date order; the later trip comes first
		trip("c2", "train", "2024-03-01", newRoute),
		trip("p1", "train", "2023-05-01", eastward(41.0, 2.0, 2.1)),
		trip("c1", "train", "2024-02-01", newRoute),
	)
	cfg := testConfig(t, input)
	run(t, cfg)

	rows := readOutput(t, cfg.OutputFile)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d: %v", len(rows), rows)
	}
	if rows[0][0] != "c1" {
		t.Errorf("the earlier trip owns the new route, got %s", rows[0][0])
	}
	if rows[0][4] != track.Encode(newRoute) {
		t.Errorf("first traversal should be written whole")
	}
}

func TestRunOutAndBack(t *testing.T) {
	input := writeInput(t,
		trip("p1", "train", "2023-05-01", eastward(41.0, 2.0, 2.1)),
		trip("c1", "train", "2024-02-01", eastward(41.0, 2.0, 2.2)),
	)
	cfg := testConfig(t, input)
	run(t, cfg)

	rows := readOutput(t, cfg.OutputFile)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	line, err := track.Decode(rows[0][4])
	if err != nil {
		t.Fatalf("output path does not decode: %v", err)
	}
	b := line.Bound()
	if math.Abs(b.Min.Lon()-(2.1+config.DefaultTolerance)) > 1e-4 {
		t.Errorf("new half starts at lon %.5f, want about %.5f", b.Min.Lon(), 2.1+config.DefaultTolerance)
	}
	if math.Abs(b.Max.Lon()-2.2) > 1e-4 {
		t.Errorf("new half ends at lon %.5f, want 2.2", b.Max.Lon())
	}
}

func TestRunMalformedCandidateSkipped(t *testing.T) {
	input := writeInput(t,
		trip("p1", "train", "2023-05-01", eastward(41.0, 2.0, 2.1)),
		tripRow{"bad", "train", "2024-02-01", "this is not a polyline"},
		trip("c2", "train", "2024-02-02", eastward(41.5, 2.0, 2.1)),
	)
	cfg := testConfig(t, input)
	res := run(t, cfg)

	rows := readOutput(t, cfg.OutputFile)
	if len(rows) != 1 || rows[0][0] != "c2" {
		t.Fatalf("expected only c2, got %v", rows)
	}
	if res.Trips[0].TripID != "bad" || res.Trips[0].Skipped == "" {
		t.Errorf("malformed trip should be reported as skipped, got %+v", res.Trips[0])
	}
}

func TestRunBadHistory(t *testing.T) {
	input := writeInput(t,
		tripRow{"p-bad", "train", "2023-05-01", "this is not a polyline"},
		trip("c1", "train", "2024-02-01", eastward(41.0, 2.0, 2.1)),
	)

	cfg := testConfig(t, input)
	_, err := Run(context.Background(), cfg, io.Discard)
	var gErr *track.GeometryError
	if !errors.As(err, &gErr) {
		t.Fatalf("expected *track.GeometryError, got %v", err)
	}
	if gErr.TripID != "p-bad" {
		t.Errorf("TripID = %q, want p-bad", gErr.TripID)
	}
	if _, statErr := os.Stat(cfg.OutputFile); !os.IsNotExist(statErr) {
		t.Error("no output should be written when the baseline fails")
	}

	cfg.SkipBadHistory = true
	run(t, cfg)
	if rows := readOutput(t, cfg.OutputFile); len(rows) != 1 {
		t.Errorf("expected 1 row with bad history skipped, got %d", len(rows))
	}
}

func TestRunFiltersTypes(t *testing.T) {
	input := writeInput(t,
		trip("b1", "bus", "2024-02-01", eastward(41.0, 2.0, 2.1)),
		trip("t1", "train", "2024-02-02", eastward(41.0, 2.0, 2.1)),
		trip("f1", "ferry", "2024-02-03", eastward(41.5, 2.0, 2.1)),
	)
	cfg := testConfig(t, input)
	cfg.TripTypes = []string{"train", "ferry"}
	res := run(t, cfg)

	rows := readOutput(t, cfg.OutputFile)
	if len(rows) != 2 || rows[0][0] != "t1" || rows[1][0] != "f1" {
		t.Errorf("expected t1 and f1, got %v", rows)
	}
	if res.Split.ByType["bus"] != 1 {
		t.Errorf("split should still count the bus trip, got %v", res.Split.ByType)
	}
}

func TestRunDropsBadDates(t *testing.T) {
	input := writeInput(t,
		trip("x", "train", "someday", eastward(41.0, 2.0, 2.1)),
		trip("y", "bus", "never", eastward(41.0, 2.0, 2.1)),
		trip("c1", "train", "2024-02-01", eastward(41.0, 2.0, 2.1)),
	)
	cfg := testConfig(t, input)
	res := run(t, cfg)

	// Only rows of the selected types count as dropped
	if res.Split.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", res.Split.Dropped)
	}
	if got := skipped(t, res, metrics.ReasonBadDate); got != 1 {
		t.Errorf("bad_date skips = %v, want 1", got)
	}
	if rows := readOutput(t, cfg.OutputFile); len(rows) != 1 {
		t.Errorf("expected 1 row, got %d", len(rows))
	}
}

func TestRunAncientDateIsPrior(t *testing.T) {
	route := eastward(41.0, 2.0, 2.1)
	input := writeInput(t,
		trip("typo", "train", "1600-05-01 10:00:00", route),
		trip("c1", "train", "2024-02-01", route),
	)
	cfg := testConfig(t, input)
	res := run(t, cfg)

	if rows := readOutput(t, cfg.OutputFile); len(rows) != 0 {
		t.Errorf("a trip dated 1600 is history, got output %v", rows)
	}
	if res.Split.Prior != 1 || res.Split.Candidates != 1 {
		t.Errorf("split = %d prior, %d candidates", res.Split.Prior, res.Split.Candidates)
	}
}

func skipped(t *testing.T, res *Result, reason string) float64 {
	t.Helper()
	families, err := res.Metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "trainlog_trips_skipped_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "reason" && l.GetValue() == reason {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRunNoCandidatesWritesHeader(t *testing.T) {
	input := writeInput(t,
		trip("p1", "train", "2023-05-01", eastward(41.0, 2.0, 2.1)),
	)
	cfg := testConfig(t, input)
	res := run(t, cfg)

	if rows := readOutput(t, cfg.OutputFile); len(rows) != 0 {
		t.Errorf("expected no rows, got %v", rows)
	}
	if res.Split.HistoryFirst.Year() != 2023 {
		t.Errorf("history range not reported: %+v", res.Split)
	}
}

func TestRunOptionalOutputs(t *testing.T) {
	input := writeInput(t,
		trip("c1", "train", "2024-02-01", eastward(41.0, 2.0, 2.1)),
	)
	cfg := testConfig(t, input)
	dir := t.TempDir()
	cfg.GeoJSONFile = filepath.Join(dir, "new_tracks.geojson")
	cfg.MetricsFile = filepath.Join(dir, "new_tracks.prom")
	run(t, cfg)

	geo, err := os.ReadFile(cfg.GeoJSONFile)
	if err != nil {
		t.Fatalf("GeoJSON not written: %v", err)
	}
	if !strings.Contains(string(geo), `"trip_id":"c1"`) {
		t.Errorf("GeoJSON missing trip: %s", geo)
	}

	prom, err := os.ReadFile(cfg.MetricsFile)
	if err != nil {
		t.Fatalf("metrics not written: %v", err)
	}
	if !strings.Contains(string(prom), "trainlog_new_segments_total 1") {
		t.Errorf("metrics missing segment count:\n%s", prom)
	}
}

func TestRunInputErrors(t *testing.T) {
	input := writeInput(t)

	t.Run("bad cutoff", func(t *testing.T) {
		cfg := testConfig(t, input)
		cfg.SinceDay = "01/02/2024"
		var inErr *triplog.InputError
		if _, err := Run(context.Background(), cfg, io.Discard); !errors.As(err, &inErr) {
			t.Errorf("expected *triplog.InputError, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		cfg := testConfig(t, filepath.Join(t.TempDir(), "nope.csv"))
		var inErr *triplog.InputError
		if _, err := Run(context.Background(), cfg, io.Discard); !errors.As(err, &inErr) {
			t.Errorf("expected *triplog.InputError, got %v", err)
		}
	})

	t.Run("no types", func(t *testing.T) {
		cfg := testConfig(t, input)
		cfg.TripTypes = nil
		var inErr *triplog.InputError
		if _, err := Run(context.Background(), cfg, io.Discard); !errors.As(err, &inErr) {
			t.Errorf("expected *triplog.InputError, got %v", err)
		}
	})
}

func TestRunCancelled(t *testing.T) {
	input := writeInput(t,
		trip("c1", "train", "2024-02-01", eastward(41.0, 2.0, 2.1)),
	)
	cfg := testConfig(t, input)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, cfg, io.Discard); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
