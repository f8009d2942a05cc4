package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wiesnflow/crowdgrid/internal/grid"
)

// Config holds the full application configuration.
type Config struct {
	Grid   GridConfig   `yaml:"grid" mapstructure:"grid"`
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Venue  VenueConfig  `yaml:"venue" mapstructure:"venue"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// GridConfig defines the venue bounding box and tile size.
type GridConfig struct {
	TopLeft        []float64 `yaml:"top_left" mapstructure:"top_left"`
	BottomRight    []float64 `yaml:"bottom_right" mapstructure:"bottom_right"`
	TileSizeMeters float64   `yaml:"tile_size_meters" mapstructure:"tile_size_meters"`
}

// BoundingBox converts the configured corners into a grid.BoundingBox.
// Corners are [lon, lat] pairs, GeoJSON order.
func (g GridConfig) BoundingBox() (grid.BoundingBox, error) {
	if len(g.TopLeft) != 2 || len(g.BottomRight) != 2 {
		return grid.BoundingBox{}, eris.New("config: grid corners must be [lon, lat] pairs")
	}
	box := grid.BoundingBox{
		TopLeft:     grid.Coordinate{Lon: g.TopLeft[0], Lat: g.TopLeft[1]},
		BottomRight: grid.Coordinate{Lon: g.BottomRight[0], Lat: g.BottomRight[1]},
	}
	if err := box.Validate(); err != nil {
		return grid.BoundingBox{}, err
	}
	return box, nil
}

// EngineConfig tunes the aggregation engine.
type EngineConfig struct {
	WindowMinutes    int   `yaml:"window_minutes" mapstructure:"window_minutes"`
	CrowdedThreshold int   `yaml:"crowded_threshold" mapstructure:"crowded_threshold"`
	SmoothingKernel  []int `yaml:"smoothing_kernel" mapstructure:"smoothing_kernel"`
}

// StoreConfig configures the position database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// VenueConfig points at the static station/entrance/adjacency file.
type VenueConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// ServerConfig configures the HTTP query surface.
type ServerConfig struct {
	Port           int `yaml:"port" mapstructure:"port"`
	RefreshSeconds int `yaml:"refresh_seconds" mapstructure:"refresh_seconds"`
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
	v.SetEnvPrefix("CROWDGRID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults: the Theresienwiese festival grounds.
	v.SetDefault("grid.top_left", []float64{11.544973, 48.136293})
	v.SetDefault("grid.bottom_right", []float64{11.553518, 48.126496})
	v.SetDefault("grid.tile_size_meters", 50)
	v.SetDefault("engine.window_minutes", 60)
	v.SetDefault("engine.crowded_threshold", 60)
	v.SetDefault("engine.smoothing_kernel", []int{1, 2, 3, 2, 1})
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "crowdgrid.db")
	v.SetDefault("venue.file", "venue.yaml")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.refresh_seconds", 15)
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

	return &cfg, nil
}

// Validate checks settings whose failure must abort startup.
func (c *Config) Validate() error {
	if _, err := c.Grid.BoundingBox(); err != nil {
		return err
	}
	if c.Grid.TileSizeMeters <= 0 {
		return eris.Errorf("config: tile_size_meters must be positive, got %f", c.Grid.TileSizeMeters)
	}
	if c.Engine.WindowMinutes <= 0 {
		return eris.New("config: window_minutes must be positive")
	}
	if c.Engine.CrowdedThreshold <= 0 {
		return eris.New("config: crowded_threshold must be positive")
	}
	if len(c.Engine.SmoothingKernel) == 0 || len(c.Engine.SmoothingKernel)%2 == 0 {
		return eris.New("config: smoothing_kernel must have odd length")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
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
