package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	Mode string `mapstructure:"mode"` // gin mode: debug | release | test
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"` // 为空只写 stdout
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type DatabaseConfig struct {
	DSN     string `mapstructure:"dsn"`
	MaxOpen int    `mapstructure:"max_open"`
	MaxIdle int    `mapstructure:"max_idle"`
}

type TilesConfig struct {
	Source string `mapstructure:"source"` // file | db
	Dir    string `mapstructure:"dir"`
}

type CacheConfig struct {
	Capacity   int           `mapstructure:"capacity"`
	RawMaxCost int64         `mapstructure:"raw_max_cost"`
	RawTTL     time.Duration `mapstructure:"raw_ttl"`
}

type FetchConfig struct {
	QueueSize int     `mapstructure:"queue_size"`
	RateLimit float64 `mapstructure:"rate_limit"` // loads per second, 0 = unlimited
	Burst     int     `mapstructure:"burst"`
}

type ThresholdConfig struct {
	Below float64 `mapstructure:"below"`
	Level uint8   `mapstructure:"level"`
}

type ChooserConfig struct {
	Thresholds    []ThresholdConfig `mapstructure:"thresholds"`
	FallbackLevel uint8             `mapstructure:"fallback_level"`
	Radius        int               `mapstructure:"radius"`
	ZUpperBound   float64           `mapstructure:"z_upper_bound"`
}

type ViewerConfig struct {
	SessionTTL  time.Duration `mapstructure:"session_ttl"`
	MaxSessions int           `mapstructure:"max_sessions"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Tiles    TilesConfig    `mapstructure:"tiles"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Chooser  ChooserConfig  `mapstructure:"chooser"`
	Viewer   ViewerConfig   `mapstructure:"viewer"`
}

var (
	conf   *Config
	confMu sync.Mutex
)

// Default is the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080", Mode: "release"},
		Log:    LogConfig{Level: "info", MaxSize: 100, MaxBackups: 5, MaxAge: 30},
		Database: DatabaseConfig{
			MaxOpen: 20,
			MaxIdle: 5,
		},
		Tiles: TilesConfig{Source: "file", Dir: "assets/generated/tiles"},
		Cache: CacheConfig{
			Capacity:   512,
			RawMaxCost: 256 << 20,
			RawTTL:     10 * time.Minute,
		},
		Fetch: FetchConfig{QueueSize: 1024, Burst: 1},
		Chooser: ChooserConfig{
			Thresholds: []ThresholdConfig{
				{Below: 0.05, Level: 6},
				{Below: 0.1, Level: 5},
				{Below: 0.2, Level: 4},
				{Below: 0.5, Level: 3},
				{Below: 0.7, Level: 2},
			},
			FallbackLevel: 1,
			Radius:        6,
			ZUpperBound:   0.05,
		},
		Viewer: ViewerConfig{SessionTTL: 5 * time.Minute, MaxSessions: 64},
	}
}

// Init loads .env, then the yaml file at path (optional) and GAIA_* environment overrides.
func Init(path string) error {
	_ = godotenv.Load()

	c, err := Load(path)
	if err != nil {
		return err
	}
	confMu.Lock()
	conf = c
	confMu.Unlock()
	return nil
}

// Load reads a configuration without touching the package-level instance.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("GAIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func GetConfig() *Config {
	confMu.Lock()
	defer confMu.Unlock()
	if conf == nil {
		conf = Default()
	}
	return conf
}

func (c *Config) Validate() error {
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be positive, got %d", c.Cache.Capacity)
	}
	if c.Fetch.QueueSize <= 0 {
		return fmt.Errorf("fetch.queue_size must be positive, got %d", c.Fetch.QueueSize)
	}
	if c.Chooser.Radius < 0 {
		return fmt.Errorf("chooser.radius must not be negative, got %d", c.Chooser.Radius)
	}
	switch c.Tiles.Source {
	case "file", "db":
	default:
		return fmt.Errorf("tiles.source must be file or db, got %q", c.Tiles.Source)
	}
	if c.Tiles.Source == "db" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required when tiles.source is db")
	}
	for i := 1; i < len(c.Chooser.Thresholds); i++ {
		if c.Chooser.Thresholds[i].Below <= c.Chooser.Thresholds[i-1].Below {
			return fmt.Errorf("chooser.thresholds must be ascending at index %d", i)
		}
	}
	return nil
}

// viper only resolves env overrides for keys it knows about.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size", d.Log.MaxSize)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age", d.Log.MaxAge)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("database.max_open", d.Database.MaxOpen)
	v.SetDefault("database.max_idle", d.Database.MaxIdle)
	v.SetDefault("tiles.source", d.Tiles.Source)
	v.SetDefault("tiles.dir", d.Tiles.Dir)
	v.SetDefault("cache.capacity", d.Cache.Capacity)
	v.SetDefault("cache.raw_max_cost", d.Cache.RawMaxCost)
	v.SetDefault("cache.raw_ttl", d.Cache.RawTTL)
	v.SetDefault("fetch.queue_size", d.Fetch.QueueSize)
	v.SetDefault("fetch.rate_limit", d.Fetch.RateLimit)
	v.SetDefault("fetch.burst", d.Fetch.Burst)
	thresholds := make([]map[string]any, 0, len(d.Chooser.Thresholds))
	for _, th := range d.Chooser.Thresholds {
		thresholds = append(thresholds, map[string]any{"below": th.Below, "level": th.Level})
	}
	v.SetDefault("chooser.thresholds", thresholds)
	v.SetDefault("chooser.fallback_level", d.Chooser.FallbackLevel)
	v.SetDefault("chooser.radius", d.Chooser.Radius)
	v.SetDefault("chooser.z_upper_bound", d.Chooser.ZUpperBound)
	v.SetDefault("viewer.session_ttl", d.Viewer.SessionTTL)
	v.SetDefault("viewer.max_sessions", d.Viewer.MaxSessions)
}
