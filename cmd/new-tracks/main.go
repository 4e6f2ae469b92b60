package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/pawelz/trainlog-new-tracks/internal/config"
	"github.com/pawelz/trainlog-new-tracks/internal/export"
	"github.com/pawelz/trainlog-new-tracks/internal/newtracks"
	"github.com/pawelz/trainlog-new-tracks/internal/track"
	"github.com/pawelz/trainlog-new-tracks/internal/triplog"
)

// Exit codes
const (
	exitOK       = 0
	exitInput    = 1
	exitUsage    = 2
	exitBaseline = 3
	exitOutput   = 4
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("new-tracks", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	inputFile := fs.String("input_file", "", "Travel-log CSV export (required)")
	sinceDay := fs.String("since_day", "", "First day to look for new track, YYYY-MM-DD (required)")
	outputFile := fs.String("output_file", "new_tracks.csv", "Where to write the new segments")
	tripTypes := fs.String("trip_types", "train", "Comma-separated trip types to consider")
	configPath := fs.String("config", "", "Optional YAML config file")
	tolerance := fs.Float64("tolerance", config.DefaultTolerance, "Buffer around known track, in degrees")
	minLength := fs.Float64("min_length", 0, "Drop new segments shorter than this many meters")
	geojsonFile := fs.String("geojson_file", "", "Also write the segments as GeoJSON")
	metricsFile := fs.String("metrics_file", "", "Write run metrics in Prometheus text format")
	skipBadHistory := fs.Bool("skip_bad_history", false, "Skip undecodable trips before the cutoff instead of failing")
	quiet := fs.Bool("quiet", false, "Disable the progress bar")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	var missing []string
	if *inputFile == "" {
		missing = append(missing, "--input_file")
	}
	if *sinceDay == "" {
		missing = append(missing, "--since_day")
	}
	if len(missing) > 0 {
		fmt.Fprintf(stderr, "missing required flags: %v\n", missing)
		fs.PrintDefaults()
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return exitUsage
	}

	// Flags override the config file and environment
	cfg.InputFile = *inputFile
	cfg.SinceDay = *sinceDay
	if fs.Changed("output_file") || cfg.OutputFile == "" {
		cfg.OutputFile = *outputFile
	}
	if fs.Changed("trip_types") {
		cfg.TripTypes = triplog.ParseTypes(*tripTypes)
	}
	if fs.Changed("tolerance") {
		cfg.Tolerance = *tolerance
	}
	if fs.Changed("min_length") {
		cfg.MinLengthMeters = *minLength
	}
	if fs.Changed("geojson_file") {
		cfg.GeoJSONFile = *geojsonFile
	}
	if fs.Changed("metrics_file") {
		cfg.MetricsFile = *metricsFile
	}
	if fs.Changed("skip_bad_history") {
		cfg.SkipBadHistory = *skipBadHistory
	}
	if *quiet {
		cfg.Progress = false
	}

	if err := cfg.Validate(); err != nil {
		log.Printf("Invalid configuration: %v", err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Looking for new %v track since %s in %s", cfg.TripTypes, cfg.SinceDay, cfg.InputFile)

	res, err := newtracks.Run(ctx, cfg, stdout)
	if err != nil {
		log.Printf("ERROR: %v", err)
		return exitCode(err)
	}

	log.Printf("Done: %d new segments written to %s (mean novel share %.0f%%)",
		len(res.Records), cfg.OutputFile, res.Metrics.Novel.Mean*100)
	return exitOK
}

func exitCode(err error) int {
	var (
		inErr  *triplog.InputError
		geoErr *track.GeometryError
		outErr *export.OutputError
	)
	switch {
	case errors.As(err, &inErr):
		return exitInput
	case errors.As(err, &geoErr):
		return exitBaseline
	case errors.As(err, &outErr):
		return exitOutput
	default:
		return exitInput
	}
}
