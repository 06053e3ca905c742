package config

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is constructed once at
// startup and passed into each pipeline stage; nothing reads ambient global
// paths.
type Config struct {
	Paths    PathsConfig    `yaml:"paths" mapstructure:"paths"`
	Study    StudyConfig    `yaml:"study" mapstructure:"study"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// PathsConfig locates input and output files relative to a data root.
type PathsConfig struct {
	Root       string `yaml:"root" mapstructure:"root"`
	Raw        string `yaml:"raw" mapstructure:"raw"`
	Geo        string `yaml:"geo" mapstructure:"geo"`
	Isochrones string `yaml:"isochrones" mapstructure:"isochrones"`
	Processed  string `yaml:"processed" mapstructure:"processed"`
	Tables     string `yaml:"tables" mapstructure:"tables"`
}

// RawDir returns the directory holding raw incident downloads.
func (p PathsConfig) RawDir() string { return filepath.Join(p.Root, p.Raw) }

// GeoDir returns the directory holding boundary files.
func (p PathsConfig) GeoDir() string { return filepath.Join(p.Root, p.Geo) }

// IsochronesDir returns the directory holding isochrone ring files.
func (p PathsConfig) IsochronesDir() string { return filepath.Join(p.Root, p.Isochrones) }

// ProcessedDir returns the directory holding stage snapshots.
func (p PathsConfig) ProcessedDir() string { return filepath.Join(p.Root, p.Processed) }

// TablesDir returns the directory holding report tables.
func (p PathsConfig) TablesDir() string { return filepath.Join(p.Root, p.Tables) }

// StudyConfig describes the study area and its coordinate reference system.
type StudyConfig struct {
	Name string `yaml:"name" mapstructure:"name"`
	SRID int    `yaml:"srid" mapstructure:"srid"`
	BBox BBox   `yaml:"bbox" mapstructure:"bbox"`
}

// BBox is the study-area bounding box used for coordinate validation.
type BBox struct {
	MinLat float64 `yaml:"min_lat" mapstructure:"min_lat"`
	MaxLat float64 `yaml:"max_lat" mapstructure:"max_lat"`
	MinLng float64 `yaml:"min_lng" mapstructure:"min_lng"`
	MaxLng float64 `yaml:"max_lng" mapstructure:"max_lng"`
}

// Contains reports whether the coordinate falls inside the box (inclusive).
func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// PipelineConfig holds the analysis thresholds.
type PipelineConfig struct {
	// RingMinutes are the isochrone thresholds, ascending.
	RingMinutes []int `yaml:"ring_minutes" mapstructure:"ring_minutes"`
	// BeyondCoverageMinutes is assigned when a centroid is outside every ring.
	BeyondCoverageMinutes int `yaml:"beyond_coverage_minutes" mapstructure:"beyond_coverage_minutes"`
	// GoldenHourMinutes is the binary good/poor access cutoff.
	GoldenHourMinutes int `yaml:"golden_hour_minutes" mapstructure:"golden_hour_minutes"`
	// TercileBalanceTolerancePts is the max-minus-min class share allowed
	// by the tercile balance validation check, in percentage points.
	TercileBalanceTolerancePts float64 `yaml:"tercile_balance_tolerance_pts" mapstructure:"tercile_balance_tolerance_pts"`
	// AssignWorkers bounds the point-in-polygon fan-out. 0 means GOMAXPROCS.
	AssignWorkers int `yaml:"assign_workers" mapstructure:"assign_workers"`
}

// StoreConfig configures the results database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TRAUMA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("paths.root", "data")
	v.SetDefault("paths.raw", "raw")
	v.SetDefault("paths.geo", "geo")
	v.SetDefault("paths.isochrones", "isochrones")
	v.SetDefault("paths.processed", "processed")
	v.SetDefault("paths.tables", "tables")
	v.SetDefault("study.name", "Philadelphia")
	v.SetDefault("study.srid", 4326)
	v.SetDefault("study.bbox.min_lat", 39.86)
	v.SetDefault("study.bbox.max_lat", 40.14)
	v.SetDefault("study.bbox.min_lng", -75.28)
	v.SetDefault("study.bbox.max_lng", -74.95)
	v.SetDefault("pipeline.ring_minutes", []int{5, 10, 15, 20, 30})
	v.SetDefault("pipeline.beyond_coverage_minutes", 31)
	v.SetDefault("pipeline.golden_hour_minutes", 20)
	v.SetDefault("pipeline.tercile_balance_tolerance_pts", 15.0)
	v.SetDefault("pipeline.assign_workers", 0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "trauma_desert.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if len(c.Pipeline.RingMinutes) == 0 {
		return eris.New("config: pipeline.ring_minutes must not be empty")
	}
	for i := 1; i < len(c.Pipeline.RingMinutes); i++ {
		if c.Pipeline.RingMinutes[i] <= c.Pipeline.RingMinutes[i-1] {
			return eris.Errorf("config: pipeline.ring_minutes must be strictly ascending, got %v", c.Pipeline.RingMinutes)
		}
	}
	maxRing := c.Pipeline.RingMinutes[len(c.Pipeline.RingMinutes)-1]
	if c.Pipeline.BeyondCoverageMinutes <= maxRing {
		return eris.Errorf("config: beyond_coverage_minutes (%d) must exceed the largest ring threshold (%d)",
			c.Pipeline.BeyondCoverageMinutes, maxRing)
	}
	if c.Study.BBox.MinLat >= c.Study.BBox.MaxLat || c.Study.BBox.MinLng >= c.Study.BBox.MaxLng {
		return eris.New("config: study.bbox is degenerate")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
