// Package newtracks finds the parts of recent trips that run over track not
// travelled before a cutoff day.
package newtracks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/schollz/progressbar/v3"

	"github.com/pawelz/trainlog-new-tracks/internal/config"
	"github.com/pawelz/trainlog-new-tracks/internal/db"
	"github.com/pawelz/trainlog-new-tracks/internal/export"
	"github.com/pawelz/trainlog-new-tracks/internal/metrics"
	"github.com/pawelz/trainlog-new-tracks/internal/report"
	"github.com/pawelz/trainlog-new-tracks/internal/track"
	"github.com/pawelz/trainlog-new-tracks/internal/triplog"
)

// Result describes a finished run
type Result struct {
	Split   report.Split
	Trips   []report.TripResult
	Records []export.Record
	Metrics *metrics.Collector
}

// Run loads the export, builds the known track from trips before the cutoff
// and writes the novel segments of every later trip. Summaries are rendered
// to out.
func Run(ctx context.Context, cfg *config.Config, out io.Writer) (*Result, error) {
	started := time.Now()
	m := metrics.NewCollector()

	cutoff, err := triplog.ParseCutoff(cfg.SinceDay)
	if err != nil {
		return nil, err
	}
	if len(cfg.TripTypes) == 0 {
		return nil, &triplog.InputError{Column: "trip_types", Err: errors.New("no trip types selected")}
	}

	tl, err := triplog.Load(cfg.InputFile, cfg.Columns)
	if err != nil {
		return nil, err
	}
	m.TripsLoaded.Add(float64(len(tl.Trips)))

	rejected := tl.RejectedFor(cfg.TripTypes)
	for _, r := range rejected {
		log.Printf("Warning: %s line %d (trip %s): dropping row with unparsable date %q", tl.Path, r.Line, r.ID, r.Date)
	}
	m.TripsSkipped.WithLabelValues(metrics.ReasonBadDate).Add(float64(len(rejected)))

	store, err := db.Connect(cfg.WorkDB)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	rows := make([]db.TripRow, len(tl.Trips))
	byRow := make(map[int]triplog.Trip, len(tl.Trips))
	for i, t := range tl.Trips {
		rows[i] = db.TripRow{Row: t.Row, TripID: t.ID, TripType: t.Type, StartedAt: t.Start, Path: t.Path}
		byRow[t.Row] = t
	}
	if err := store.InsertTrips(ctx, rows); err != nil {
		return nil, err
	}

	prior, candidates, err := store.Split(ctx, cfg.TripTypes, cutoff)
	if err != nil {
		return nil, err
	}
	m.TripsPrior.Add(float64(len(prior)))
	m.TripsCandidates.Add(float64(len(candidates)))

	split := report.Split{
		Input:      cfg.InputFile,
		Loaded:     len(tl.Trips),
		Dropped:    len(rejected),
		Types:      cfg.TripTypes,
		Cutoff:     cutoff,
		Prior:      len(prior),
		Candidates: len(candidates),
	}
	if split.ByType, err = store.CountByType(ctx); err != nil {
		return nil, err
	}
	first, last, ok, err := store.HistoryRange(ctx, cfg.TripTypes, cutoff)
	if err != nil {
		return nil, err
	}
	if ok {
		split.HistoryFirst, split.HistoryLast = first, last
	}
	report.WriteSplit(out, split)

	engine, err := track.NewEngine(track.Options{
		Tolerance:       cfg.Tolerance,
		MinLengthMeters: cfg.MinLengthMeters,
	})
	if err != nil {
		return nil, err
	}

	if err := buildKnown(ctx, engine, prior, cfg.SkipBadHistory, m); err != nil {
		return nil, err
	}
	log.Printf("Known track built from %d prior trips", engine.Known().Len())

	res := &Result{Split: split, Metrics: m}
	if err := extractAll(ctx, engine, candidates, byRow, cfg.Progress, res); err != nil {
		return nil, err
	}
	m.KnownBuffers.Set(float64(engine.Known().Len()))
	log.Printf("Found %d new segments in %d candidate trips", len(res.Records), len(candidates))

	report.WriteResults(out, res.Trips)

	if err := export.WriteCSV(cfg.OutputFile, tl.Header, tl.Index.Path, res.Records); err != nil {
		log.Printf("Processing succeeded but saving the results failed")
		return res, err
	}
	if cfg.GeoJSONFile != "" {
		if err := export.WriteGeoJSON(cfg.GeoJSONFile, res.Records); err != nil {
			log.Printf("Processing succeeded but saving the GeoJSON preview failed")
			return res, err
		}
	}

	m.Finish(started)
	if cfg.MetricsFile != "" {
		if err := m.WriteFile(cfg.MetricsFile); err != nil {
			log.Printf("Warning: %v", err)
		}
	}

	return res, nil
}

// buildKnown merges all prior trips into the known track. An undecodable
// prior trip is fatal unless skipBad is set.
func buildKnown(ctx context.Context, engine *track.Engine, prior []db.TripRow, skipBad bool, m *metrics.Collector) error {
	for _, row := range prior {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("building known track: %w", err)
		}

		line, err := track.Resolve(row.TripID, row.Path)
		if err == nil {
			err = tagTrip(engine.AddKnown(line), row.TripID)
		}
		if err == nil {
			continue
		}
		if !skipBad {
			return err
		}
		log.Printf("Warning: skipping prior trip: %v", err)
		m.Skip(metrics.ReasonBadHistory)
	}
	return nil
}

// extractAll feeds the candidates to the engine in order, collecting output
// records into res. A candidate with bad geometry is skipped.
func extractAll(ctx context.Context, engine *track.Engine, candidates []db.TripRow, byRow map[int]triplog.Trip, progress bool, res *Result) error {
	var w io.Writer = os.Stderr
	if !progress {
		w = io.Discard
	}
	bar := progressbar.NewOptions(
		len(candidates),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Checking trips"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	defer bar.Finish()

	m := res.Metrics
	for _, row := range candidates {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("checking trips: %w", err)
		}
		bar.Add(1)

		trip := byRow[row.Row]
		tr := report.TripResult{TripID: trip.ID, Type: trip.Type, Start: trip.Start}

		line, err := track.Resolve(trip.ID, trip.Path)
		var novel []orb.LineString
		if err == nil {
			novel, err = engine.ExtractNew(line)
			err = tagTrip(err, trip.ID)
		}
		if err != nil {
			log.Printf("Warning: skipping trip: %v", err)
			m.Skip(metrics.ReasonBadGeometry)
			tr.Skipped = metrics.ReasonBadGeometry
			res.Trips = append(res.Trips, tr)
			continue
		}

		tr.TotalMeters = geo.Length(line)
		for i, piece := range novel {
			tr.NewMeters += geo.Length(piece)
			res.Records = append(res.Records, export.Record{Trip: trip, Index: i, Line: piece})
		}
		tr.Segments = len(novel)
		if tr.Segments == 0 {
			m.Skip(metrics.ReasonNothingNew)
		}
		m.Segments.Add(float64(tr.Segments))
		m.ObserveCandidate(tr.TotalMeters, tr.NewMeters)
		res.Trips = append(res.Trips, tr)
	}
	return nil
}

// tagTrip names the trip on engine errors, which know only the geometry.
func tagTrip(err error, tripID string) error {
	var gErr *track.GeometryError
	if errors.As(err, &gErr) && gErr.TripID == "" {
		gErr.TripID = tripID
	}
	return err
}
