package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"drone-route-planner/internal/campus"
	"drone-route-planner/internal/grid"
	"drone-route-planner/internal/planner"
)

// Config holds all application configuration.
type Config struct {
	Data    DataConfig    `mapstructure:"data"`
	Grid    GridConfig    `mapstructure:"grid"`
	Planner PlannerConfig `mapstructure:"planner"`
	Batch   BatchConfig   `mapstructure:"batch"`
	Output  OutputConfig  `mapstructure:"output"`
	Server  ServerConfig  `mapstructure:"server"`
	Cache   CacheConfig   `mapstructure:"cache"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Log     LogConfig     `mapstructure:"log"`
}

type DataConfig struct {
	Dir             string  `mapstructure:"dir"`
	SimplifyEpsilon float64 `mapstructure:"simplify_epsilon"`
	MergeContained  bool    `mapstructure:"merge_contained"`
	SortDorms       bool    `mapstructure:"sort_dorms"`
}

type GridConfig struct {
	CellSize   float64 `mapstructure:"cell_size"`
	Clearance  float64 `mapstructure:"clearance"`
	Margin     float64 `mapstructure:"margin"`
	BufferMode string  `mapstructure:"buffer_mode"`
	MaxCells   int     `mapstructure:"max_cells"`
}

type PlannerConfig struct {
	Heuristic                     string `mapstructure:"heuristic"`
	StraightLineSteps             int    `mapstructure:"straight_line_steps"`
	RescueRadius                  int    `mapstructure:"rescue_radius"`
	MaxExpansions                 int    `mapstructure:"max_expansions"`
	StraightLineOnBlockedEndpoint bool   `mapstructure:"straight_line_on_blocked_endpoint"`
}

type BatchConfig struct {
	Workers       int `mapstructure:"workers"`
	ProgressEvery int `mapstructure:"progress_every"`
}

// OutputConfig names the batch outputs. An empty path disables that output.
type OutputConfig struct {
	ResultsJSON string `mapstructure:"results_json"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	ImagePath   string `mapstructure:"image_path"`
	ImageWidth  int    `mapstructure:"image_width"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type CacheConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ValkeyAddr string `mapstructure:"valkey_addr"` // empty uses the in-memory cache
	TTLSeconds int    `mapstructure:"ttl_seconds"`
	MemorySize int    `mapstructure:"memory_size"`
}

// NATSConfig enables route event publishing when URL is set.
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from defaults, an optional config file and
// environment variables. configFile overrides the config.yaml search and must exist.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		_ = v.ReadInConfig() // OK if missing
	}

	// Environment variables: DRONEPLAN_GRID_CELL_SIZE → grid.cell_size
	v.SetEnvPrefix("DRONEPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.simplify_epsilon", 0.0)
	v.SetDefault("data.merge_contained", false)
	v.SetDefault("data.sort_dorms", false)

	v.SetDefault("grid.cell_size", 0.0001)
	v.SetDefault("grid.clearance", 0.0005)
	v.SetDefault("grid.margin", 0.001)
	v.SetDefault("grid.buffer_mode", string(grid.BufferVertex))
	v.SetDefault("grid.max_cells", 25_000_000)

	v.SetDefault("planner.heuristic", string(planner.Manhattan))
	v.SetDefault("planner.straight_line_steps", planner.DefaultStraightLineSteps)
	v.SetDefault("planner.rescue_radius", planner.DefaultRescueRadius)
	v.SetDefault("planner.max_expansions", 0)
	v.SetDefault("planner.straight_line_on_blocked_endpoint", false)

	v.SetDefault("batch.workers", 1)
	v.SetDefault("batch.progress_every", 100)

	v.SetDefault("output.results_json", "route_planning_results.json")
	v.SetDefault("output.sqlite_path", "")
	v.SetDefault("output.image_path", "drone_delivery_routes.png")
	v.SetDefault("output.image_width", 1600)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.valkey_addr", "")
	v.SetDefault("cache.ttl_seconds", 600)
	v.SetDefault("cache.memory_size", 10000)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "droneplan.routes")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate checks that configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Data.Dir == "" {
		errs = append(errs, "data.dir is required")
	}
	if c.Data.SimplifyEpsilon < 0 {
		errs = append(errs, "data.simplify_epsilon must not be negative")
	}
	if !(c.Grid.CellSize > 0) {
		errs = append(errs, fmt.Sprintf("grid.cell_size must be positive, got %v", c.Grid.CellSize))
	}
	if c.Grid.Clearance < 0 {
		errs = append(errs, "grid.clearance must not be negative")
	}
	if c.Grid.Margin < 0 {
		errs = append(errs, "grid.margin must not be negative")
	}
	switch grid.BufferMode(c.Grid.BufferMode) {
	case grid.BufferVertex, grid.BufferEdge:
	default:
		errs = append(errs, fmt.Sprintf("grid.buffer_mode must be vertex or edge, got %q", c.Grid.BufferMode))
	}
	if c.Grid.MaxCells < 0 {
		errs = append(errs, "grid.max_cells must not be negative")
	}
	if _, err := planner.ParseHeuristic(c.Planner.Heuristic); err != nil {
		errs = append(errs, "planner.heuristic: "+err.Error())
	}
	if c.Planner.StraightLineSteps <= 0 {
		errs = append(errs, "planner.straight_line_steps must be positive")
	}
	if c.Planner.RescueRadius <= 0 {
		errs = append(errs, "planner.rescue_radius must be positive")
	}
	if c.Planner.MaxExpansions < 0 {
		errs = append(errs, "planner.max_expansions must not be negative")
	}
	if c.Batch.Workers <= 0 {
		errs = append(errs, fmt.Sprintf("batch.workers must be positive, got %d", c.Batch.Workers))
	}
	if c.Output.ImagePath != "" && c.Output.ImageWidth < 100 {
		errs = append(errs, "output.image_width must be at least 100")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Cache.TTLSeconds < 0 {
		errs = append(errs, "cache.ttl_seconds must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LoadOptions returns the campus loader settings.
func (c *Config) LoadOptions() campus.LoadOptions {
	return campus.LoadOptions{
		SimplifyEpsilon: c.Data.SimplifyEpsilon,
		MergeContained:  c.Data.MergeContained,
		SortDorms:       c.Data.SortDorms,
	}
}

// GridFor returns the grid configuration over bounds.
func (c *Config) GridFor(bounds grid.Bounds) grid.Config {
	return grid.Config{
		Bounds:     bounds,
		CellSize:   c.Grid.CellSize,
		Clearance:  c.Grid.Clearance,
		BufferMode: grid.BufferMode(c.Grid.BufferMode),
		MaxCells:   c.Grid.MaxCells,
	}
}

// PlannerOptions returns the planner settings. Validate has already checked the heuristic.
func (c *Config) PlannerOptions() planner.Options {
	h, _ := planner.ParseHeuristic(c.Planner.Heuristic)
	return planner.Options{
		Heuristic:                     h,
		StraightLineSteps:             c.Planner.StraightLineSteps,
		RescueRadius:                  c.Planner.RescueRadius,
		MaxExpansions:                 c.Planner.MaxExpansions,
		StraightLineOnBlockedEndpoint: c.Planner.StraightLineOnBlockedEndpoint,
	}
}

// CacheTTL returns the cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}
