package metrics

import (
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Skip reasons used as the "reason" label of trips_skipped_total.
const (
	ReasonBadDate     = "bad_date"
	ReasonBadHistory  = "bad_history"
	ReasonBadGeometry = "bad_geometry"
	ReasonNothingNew  = "nothing_new"
)

// Collector holds the counters of a single run. It uses its own registry so
// a run writes only its own series.
type Collector struct {
	reg *prometheus.Registry

	TripsLoaded     prometheus.Counter
	TripsPrior      prometheus.Counter
	TripsCandidates prometheus.Counter
	TripsSkipped    *prometheus.CounterVec // reason label
	Segments        prometheus.Counter
	NewTrackMeters  prometheus.Counter
	KnownBuffers    prometheus.Gauge
	NovelFraction   prometheus.Histogram
	RunDuration     prometheus.Gauge // seconds
	LastSuccess     prometheus.Gauge // unix seconds

	// Novel holds the fraction of each candidate's length that was new.
	Novel RunningStats
}

// NewCollector creates a collector with all series registered and zeroed.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		TripsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trainlog_trips_loaded_total",
			Help: "Trips read from the input export.",
		}),
		TripsPrior: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trainlog_trips_prior_total",
			Help: "Trips before the cutoff used as known track.",
		}),
		TripsCandidates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trainlog_trips_candidates_total",
			Help: "Trips on or after the cutoff checked for new track.",
		}),
		TripsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trainlog_trips_skipped_total",
			Help: "Trips that produced no output, by reason.",
		}, []string{"reason"}),
		Segments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trainlog_new_segments_total",
			Help: "Novel segments written.",
		}),
		NewTrackMeters: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trainlog_new_track_meters_total",
			Help: "Geodesic length of all novel segments in meters.",
		}),
		KnownBuffers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trainlog_known_track_buffers",
			Help: "Buffered trips in the known track at the end of the run.",
		}),
		NovelFraction: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trainlog_candidate_novel_fraction",
			Help:    "Share of each candidate's length that was new track.",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trainlog_run_duration_seconds",
			Help: "Wall time of the run.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trainlog_last_success_timestamp_seconds",
			Help: "Unix time the run finished successfully.",
		}),
	}

	reg.MustRegister(
		c.TripsLoaded, c.TripsPrior, c.TripsCandidates, c.TripsSkipped,
		c.Segments, c.NewTrackMeters, c.KnownBuffers, c.NovelFraction,
		c.RunDuration, c.LastSuccess,
	)

	return c
}

// Skip counts a trip that produced no output.
func (c *Collector) Skip(reason string) {
	c.TripsSkipped.WithLabelValues(reason).Inc()
}

// ObserveCandidate records how much of a candidate of totalMeters was new.
func (c *Collector) ObserveCandidate(totalMeters, newMeters float64) {
	if totalMeters <= 0 {
		return
	}
	frac := newMeters / totalMeters
	if frac > 1 {
		frac = 1
	}
	c.Novel.Update(frac)
	c.NovelFraction.Observe(frac)
	c.NewTrackMeters.Add(newMeters)
}

// Finish stamps the run duration and completion time.
func (c *Collector) Finish(started time.Time) {
	c.RunDuration.Set(time.Since(started).Seconds())
	c.LastSuccess.SetToCurrentTime()
}

// Registry exposes the private registry, for gathering in tests.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// WriteFile writes all series in the node_exporter textfile format.
func (c *Collector) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.reg); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	log.Printf("Wrote run metrics to %s", path)
	return nil
}
