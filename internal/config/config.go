// Package config assembles service configuration from defaults, an
// optional YAML file, a .env file and TLESTATE_* environment variables,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TLESTATE_"

// Config is the complete service configuration.
type Config struct {
	HTTPAddr    string            `yaml:"http_addr"`
	TrustProxy  bool              `yaml:"trust_proxy"`
	Auth        AuthConfig        `yaml:"auth"`
	TLE         TLEConfig         `yaml:"tle"`
	Propagation PropagationConfig `yaml:"propagation"`
	Log         LogConfig         `yaml:"log"`
}

// AuthConfig controls bearer token auth on mutating routes.
type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// TLEConfig controls where catalog data comes from and how long it lives.
type TLEConfig struct {
	EnableFetch     bool          `yaml:"enable_fetch"`
	SourceURL       string        `yaml:"source_url"`
	ExtraSourceURLs []string      `yaml:"extra_source_urls"`
	CacheDir        string        `yaml:"cache_dir"`
	MaxFiles        int           `yaml:"max_files"`
	MaxAge          time.Duration `yaml:"max_age"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	FetchInterval   time.Duration `yaml:"fetch_interval"` // minimum spacing of manual fetches
}

// PropagationConfig bounds request-scoped propagation work.
type PropagationConfig struct {
	MaxPositions       int           `yaml:"max_positions"`
	DefaultStep        time.Duration `yaml:"default_step"`
	MaxConcurrentPerIP int           `yaml:"max_concurrent_per_ip"`
}

// LogConfig selects log level and an optional rotated log file.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		TLE: TLEConfig{
			EnableFetch: true,
			CacheDir:    "/tmp/tlestate/tle",
			MaxFiles:    5,
			MaxAge:      24 * time.Hour,
			ExtraSourceURLs: []string{
				// ISS (NORAD 25544), a well-documented reference satellite.
				"https://celestrak.org/NORAD/elements/gp.php?CATNR=25544&FORMAT=tle",
			},
			RefreshInterval: 10 * time.Minute,
			FetchInterval:   time.Minute,
		},
		Propagation: PropagationConfig{
			MaxPositions:       3601,
			DefaultStep:        time.Minute,
			MaxConcurrentPerIP: 4,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// Load builds the configuration. envFile is loaded into the process
// environment when it exists; existing variables are not overwritten.
// The YAML file named by TLESTATE_CONFIG, if any, is applied before the
// individual TLESTATE_* overrides.
func Load(logger *slog.Logger, envFile string) (Config, error) {
	cfg := Default()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := applyEnv(logger, &cfg); err != nil {
		return cfg, err
	}

	if cfg.Auth.Enabled && cfg.Auth.Token == "" {
		return cfg, errors.New(EnvPrefix + "AUTH_TOKEN is required when auth is enabled")
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// validate rejects non-positive limits and intervals. The environment
// helpers already refuse them, but the YAML layer does not.
func (c Config) validate() error {
	durations := []struct {
		key string
		v   time.Duration
	}{
		{"tle.max_age", c.TLE.MaxAge},
		{"tle.refresh_interval", c.TLE.RefreshInterval},
		{"tle.fetch_interval", c.TLE.FetchInterval},
		{"propagation.default_step", c.Propagation.DefaultStep},
	}
	for _, d := range durations {
		if d.v <= 0 {
			return fmt.Errorf("%s must be positive, got %v", d.key, d.v)
		}
	}

	ints := []struct {
		key string
		v   int
	}{
		{"tle.max_files", c.TLE.MaxFiles},
		{"propagation.max_positions", c.Propagation.MaxPositions},
		{"propagation.max_concurrent_per_ip", c.Propagation.MaxConcurrentPerIP},
	}
	for _, n := range ints {
		if n.v < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", n.key, n.v)
		}
	}
	return nil
}

func applyEnv(logger *slog.Logger, cfg *Config) error {
	envString("HTTP_ADDR", &cfg.HTTPAddr)
	envBool(logger, "TRUST_PROXY", &cfg.TrustProxy)

	if v := os.Getenv(EnvPrefix + "AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return errors.New(EnvPrefix + "AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Auth.Enabled = enabled
	}
	envString("AUTH_TOKEN", &cfg.Auth.Token)

	envBool(logger, "ENABLE_TLE_FETCH", &cfg.TLE.EnableFetch)
	envString("TLE_SOURCE_URL", &cfg.TLE.SourceURL)
	if v, ok := os.LookupEnv(EnvPrefix + "TLE_EXTRA_URLS"); ok {
		var urls []string
		for _, u := range strings.Split(v, ",") {
			u = strings.TrimSpace(u)
			if u != "" {
				urls = append(urls, u)
			}
		}
		cfg.TLE.ExtraSourceURLs = urls
	}
	envString("TLE_CACHE_DIR", &cfg.TLE.CacheDir)
	envInt(logger, "TLE_MAX_FILES", &cfg.TLE.MaxFiles)
	envSeconds(logger, "TLE_MAX_AGE", &cfg.TLE.MaxAge)
	envSeconds(logger, "TLE_REFRESH_INTERVAL", &cfg.TLE.RefreshInterval)
	envSeconds(logger, "TLE_FETCH_INTERVAL", &cfg.TLE.FetchInterval)

	envInt(logger, "PROP_MAX_POSITIONS", &cfg.Propagation.MaxPositions)
	envSeconds(logger, "PROP_DEFAULT_STEP", &cfg.Propagation.DefaultStep)
	envInt(logger, "PROP_MAX_CONCURRENT", &cfg.Propagation.MaxConcurrentPerIP)

	envString("LOG_LEVEL", &cfg.Log.Level)
	envString("LOG_FILE", &cfg.Log.File)
	return nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

func envBool(logger *slog.Logger, key string, dst *bool) {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid "+EnvPrefix+key+" value, using default", "value", v, "default", *dst)
		return
	}
	*dst = b
}

func envInt(logger *slog.Logger, key string, dst *int) {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Warn("invalid "+EnvPrefix+key+" value, using default", "value", v, "default", *dst)
		return
	}
	*dst = n
}

// envSeconds reads a positive whole number of seconds.
func envSeconds(logger *slog.Logger, key string, dst *time.Duration) {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Warn("invalid "+EnvPrefix+key+" value, using default", "value", v, "default", dst.Seconds())
		return
	}
	*dst = time.Duration(n) * time.Second
}
