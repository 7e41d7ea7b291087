package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/forest-cli/internal/analysis"
	"github.com/sells-group/forest-cli/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Platform PlatformConfig `yaml:"platform" mapstructure:"platform"`
	Assets   AssetsConfig   `yaml:"assets" mapstructure:"assets"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Retry    RetryConfig    `yaml:"retry" mapstructure:"retry"`
	Circuit  CircuitConfig  `yaml:"circuit" mapstructure:"circuit"`
}

// PlatformConfig holds the remote analysis platform endpoint and credentials.
type PlatformConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Project     string  `yaml:"project" mapstructure:"project"`
	Token       string  `yaml:"token" mapstructure:"token"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// AssetsConfig names the image and boundary assets used by the analyses.
type AssetsConfig struct {
	Forma250   string `yaml:"forma250" mapstructure:"forma250"`
	Admin0     string `yaml:"admin0" mapstructure:"admin0"`
	Admin1     string `yaml:"admin1" mapstructure:"admin1"`
	Extent     string `yaml:"extent" mapstructure:"extent"`
	ExtentBand string `yaml:"extent_band" mapstructure:"extent_band"`
}

// AnalysisConfig tunes request fan-out.
type AnalysisConfig struct {
	Concurrency  int `yaml:"concurrency" mapstructure:"concurrency"`
	DefaultTiles int `yaml:"default_tiles" mapstructure:"default_tiles"`
}

// CacheConfig selects and tunes the result cache.
type CacheConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	TTLMinutes    int    `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
	MaxEntries    int    `yaml:"max_entries" mapstructure:"max_entries"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
	Prefix        string `yaml:"prefix" mapstructure:"prefix"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port         int      `yaml:"port" mapstructure:"port"`
	CORSOrigins  []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	ShutdownSecs int      `yaml:"shutdown_secs" mapstructure:"shutdown_secs"`
	MaxBodyMB    int      `yaml:"max_body_mb" mapstructure:"max_body_mb"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RetryConfig configures retries of remote calls.
type RetryConfig struct {
	Attempts   int     `yaml:"attempts" mapstructure:"attempts"`
	InitialMs  int     `yaml:"initial_ms" mapstructure:"initial_ms"`
	MaxMs      int     `yaml:"max_ms" mapstructure:"max_ms"`
	Multiplier float64 `yaml:"multiplier" mapstructure:"multiplier"`
	Jitter     float64 `yaml:"jitter" mapstructure:"jitter"`
}

// CircuitConfig configures the platform circuit breaker. A zero threshold
// disables it.
type CircuitConfig struct {
	Threshold    int `yaml:"threshold" mapstructure:"threshold"`
	CooldownSecs int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// Backoff converts the retry settings.
func (c RetryConfig) Backoff() resilience.Backoff {
	return resilience.Backoff{
		Attempts:   c.Attempts,
		Initial:    time.Duration(c.InitialMs) * time.Millisecond,
		Max:        time.Duration(c.MaxMs) * time.Millisecond,
		Multiplier: c.Multiplier,
		Jitter:     c.Jitter,
	}
}

// Policy builds the resilience policy for the platform client.
func (c *Config) Policy() *resilience.Policy {
	var breaker *resilience.Breaker
	if c.Circuit.Threshold > 0 {
		breaker = resilience.NewBreaker(c.Circuit.Threshold, time.Duration(c.Circuit.CooldownSecs)*time.Second)
	}
	return resilience.NewPolicy("earthengine", c.Retry.Backoff(), breaker)
}

// AnalysisService returns the analysis settings derived from assets,
// analysis and cache sections.
func (c *Config) AnalysisService() analysis.Config {
	return analysis.Config{
		FormaAsset:  c.Assets.Forma250,
		Admin0Asset: c.Assets.Admin0,
		Admin1Asset: c.Assets.Admin1,
		ExtentAsset: c.Assets.Extent,
		ExtentBand:  c.Assets.ExtentBand,
		Concurrency: c.Analysis.Concurrency,
		CacheTTL:    time.Duration(c.Cache.TTLMinutes) * time.Minute,
	}
}

// Load reads configuration from .env, config.yaml and the environment, in
// increasing order of precedence.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FOREST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("platform.base_url", "https://earthengine.googleapis.com")
	v.SetDefault("platform.project", "")
	v.SetDefault("platform.token", "")
	v.SetDefault("platform.timeout_secs", 300)
	v.SetDefault("platform.rate_limit", 10)
	v.SetDefault("assets.forma250", "projects/wri-datalab/FORMA250")
	v.SetDefault("assets.admin0", "projects/wri-datalab/gadm36_0")
	v.SetDefault("assets.admin1", "projects/wri-datalab/gadm36_1")
	v.SetDefault("assets.extent", "projects/wri-datalab/HansenComposite_18")
	v.SetDefault("assets.extent_band", "tree")
	v.SetDefault("analysis.concurrency", 4)
	v.SetDefault("analysis.default_tiles", 1)
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("cache.max_entries", 1000)
	v.SetDefault("cache.redis_addr", "127.0.0.1:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.prefix", "forest:")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "forest.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_secs", 15)
	v.SetDefault("server.max_body_mb", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.initial_ms", 500)
	v.SetDefault("retry.max_ms", 20000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter", 0.25)
	v.SetDefault("circuit.threshold", 5)
	v.SetDefault("circuit.cooldown_secs", 30)

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

// Validate checks the settings a command needs. mode is one of "analysis"
// (remote reductions), "serve" (analysis plus the HTTP server) or "runs"
// (run history only).
func (c *Config) Validate(mode string) error {
	var errs []string

	platform := func() {
		if c.Platform.Project == "" {
			errs = append(errs, "platform.project is required")
		}
		if c.Platform.Token == "" {
			errs = append(errs, "platform.token is required")
		}
		if c.Analysis.Concurrency < 1 || c.Analysis.Concurrency > 64 {
			errs = append(errs, "analysis.concurrency must be between 1 and 64")
		}
		switch c.Cache.Driver {
		case "memory", "redis", "none":
		default:
			errs = append(errs, fmt.Sprintf("cache.driver %q must be memory, redis or none", c.Cache.Driver))
		}
	}
	storeCheck := func() {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
		}
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	}

	switch mode {
	case "analysis":
		platform()
		storeCheck()
	case "serve":
		platform()
		storeCheck()
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "runs":
		storeCheck()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
