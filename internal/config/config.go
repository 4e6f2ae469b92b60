package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// DefaultTolerance is the buffer distance (in degrees) around known track.
// Roughly 150 m at mid latitudes, enough to absorb GPS noise and the
// 1e-5 rounding of the polyline encoding.
const DefaultTolerance = 0.0015

// Columns maps the logical trip fields to column names in the export.
type Columns struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"`
	Date string `yaml:"date"`
	Path string `yaml:"path"`
}

// Config holds all configuration for a new-tracks run
type Config struct {
	// Files
	InputFile   string `yaml:"-"`
	OutputFile  string `yaml:"output_file"`
	GeoJSONFile string `yaml:"geojson_file"`
	MetricsFile string `yaml:"metrics_file"`

	// Selection
	SinceDay  string   `yaml:"-"`
	TripTypes []string `yaml:"trip_types"`

	Columns Columns `yaml:"columns"`

	// Novelty engine
	Tolerance       float64 `yaml:"tolerance"`
	MinLengthMeters float64 `yaml:"min_length_m"`
	SkipBadHistory  bool    `yaml:"skip_bad_history"`

	// Working trip table; ":memory:" unless debugging
	WorkDB string `yaml:"work_db"`

	Progress bool `yaml:"progress"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		OutputFile: "new_tracks.csv",
		TripTypes:  []string{"train"},
		Columns: Columns{
			ID:   "uid",
			Type: "type",
			Date: "start_datetime",
			Path: "path",
		},
		Tolerance: DefaultTolerance,
		WorkDB:    ":memory:",
		Progress:  true,
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment (including a .env file in the working directory).
// Command-line flags are applied on top by the caller.
func Load(path string) (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Columns.ID = getEnv("TRAINLOG_COL_ID", cfg.Columns.ID)
	cfg.Columns.Type = getEnv("TRAINLOG_COL_TYPE", cfg.Columns.Type)
	cfg.Columns.Date = getEnv("TRAINLOG_COL_DATE", cfg.Columns.Date)
	cfg.Columns.Path = getEnv("TRAINLOG_COL_PATH", cfg.Columns.Path)
	cfg.WorkDB = getEnv("TRAINLOG_WORK_DB", cfg.WorkDB)

	var err error
	if cfg.Tolerance, err = getEnvFloat("TRAINLOG_TOLERANCE", cfg.Tolerance); err != nil {
		return nil, err
	}
	if cfg.MinLengthMeters, err = getEnvFloat("TRAINLOG_MIN_LENGTH_M", cfg.MinLengthMeters); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that would make the run meaningless.
func (c *Config) Validate() error {
	if c.InputFile == "" {
		return errors.New("input file is required")
	}
	if c.SinceDay == "" {
		return errors.New("since day is required")
	}
	if c.OutputFile == "" {
		return errors.New("output file must not be empty")
	}
	if len(c.TripTypes) == 0 {
		return errors.New("at least one trip type is required")
	}
	if c.Tolerance <= 0 {
		return fmt.Errorf("invalid tolerance: %v (must be > 0)", c.Tolerance)
	}
	if c.MinLengthMeters < 0 {
		return fmt.Errorf("invalid minimum length: %v (must be >= 0)", c.MinLengthMeters)
	}
	for name, col := range map[string]string{
		"type": c.Columns.Type,
		"date": c.Columns.Date,
		"path": c.Columns.Path,
	} {
		if strings.TrimSpace(col) == "" {
			return fmt.Errorf("column name for %s must not be empty", name)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, value)
	}
	return f, nil
}
