package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Symbol            string  `yaml:"symbol"`
	RefreshIntervalMS int     `yaml:"refresh_interval_ms"`
	MAWindow          int     `yaml:"ma_window"`
	BandK             float64 `yaml:"band_k"`
	StdDevMode        string  `yaml:"stddev_mode"`
	LongMAWindow      int     `yaml:"long_ma_window"`
	DisplayTimezone   string  `yaml:"display_timezone"`
	Period            string  `yaml:"period"`
	Interval          string  `yaml:"interval"`
	FetchTimeoutMS    int     `yaml:"fetch_timeout_ms"`
	FetchRetries      int     `yaml:"fetch_retries"`
	CacheTTLMS        int     `yaml:"cache_ttl_ms"`

	DataSource struct {
		Provider string `yaml:"provider"` // yahoo, barsapi or mock
		BaseURL  string `yaml:"base_url"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"data_source"`
	HTTP struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"http"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"` // "off" disables the audit log
	} `yaml:"database"`
	Session struct {
		StateFile string `yaml:"state_file"`
	} `yaml:"session"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	// Zero is meaningful for these (no retries, no cache), so they are
	// prefilled rather than defaulted after decoding.
	cfg := &Config{
		FetchRetries: 2,
		CacheTTLMS:   10000,
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	envString("SYMBOL", &cfg.Symbol)
	if err := envInt("REFRESH_INTERVAL_MS", &cfg.RefreshIntervalMS); err != nil {
		return nil, err
	}
	if err := envInt("MA_WINDOW", &cfg.MAWindow); err != nil {
		return nil, err
	}
	if err := envInt("LONG_MA_WINDOW", &cfg.LongMAWindow); err != nil {
		return nil, err
	}
	if v := os.Getenv("BAND_K"); v != "" {
		k, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("parse BAND_K: %w", err)
		}
		cfg.BandK = k
	}
	envString("DISPLAY_TIMEZONE", &cfg.DisplayTimezone)
	envString("PERIOD", &cfg.Period)
	envString("INTERVAL", &cfg.Interval)
	envString("DATA_SOURCE", &cfg.DataSource.Provider)
	envString("BARS_API_BASE_URL", &cfg.DataSource.BaseURL)
	envString("BARS_API_KEY", &cfg.DataSource.APIKey)
	envString("LISTEN_ADDR", &cfg.HTTP.ListenAddr)
	envString("SQLITE_PATH", &cfg.Database.SQLitePath)
	envString("STATE_FILE", &cfg.Session.StateFile)
	envString("LOG_LEVEL", &cfg.Log.Level)
	envString("LOG_FILE", &cfg.Log.File)
	envString("HTTPS_PROXY", &cfg.Proxy)

	// Defaults
	if cfg.Symbol == "" {
		cfg.Symbol = "NVDA"
	}
	cfg.Symbol = strings.ToUpper(strings.TrimSpace(cfg.Symbol))
	if cfg.RefreshIntervalMS == 0 {
		cfg.RefreshIntervalMS = 60000
	}
	if cfg.MAWindow == 0 {
		cfg.MAWindow = 20
	}
	if cfg.BandK == 0 {
		cfg.BandK = 2.0
	}
	if cfg.StdDevMode == "" {
		cfg.StdDevMode = "sample"
	}
	if cfg.DisplayTimezone == "" {
		cfg.DisplayTimezone = "America/New_York"
	}
	if cfg.Period == "" {
		cfg.Period = "intraday"
	}
	if cfg.Interval == "" {
		cfg.Interval = "1m"
		if cfg.Period == "long" {
			cfg.Interval = "1d"
		}
	}
	if cfg.FetchTimeoutMS == 0 {
		cfg.FetchTimeoutMS = 15000
	}
	if cfg.DataSource.Provider == "" {
		cfg.DataSource.Provider = "yahoo"
		if cfg.DataSource.BaseURL != "" {
			cfg.DataSource.Provider = "barsapi"
		}
	}
	if cfg.HTTP.ListenAddr == "" {
		cfg.HTTP.ListenAddr = ":8050"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/livechart.db"
	}
	if cfg.Session.StateFile == "" {
		cfg.Session.StateFile = "data/session.json"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return cfg, nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = n
	return nil
}

// Validate checks that all fields hold usable values.
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if c.RefreshIntervalMS <= 0 {
		return fmt.Errorf("refresh_interval_ms must be positive")
	}
	if c.MAWindow <= 0 {
		return fmt.Errorf("ma_window must be positive")
	}
	if c.LongMAWindow < 0 {
		return fmt.Errorf("long_ma_window must not be negative")
	}
	if c.BandK < 0 {
		return fmt.Errorf("band_k must not be negative")
	}
	switch c.StdDevMode {
	case "sample", "population":
	default:
		return fmt.Errorf("stddev_mode must be sample or population, got %q", c.StdDevMode)
	}
	switch c.Period {
	case "intraday", "long":
	default:
		return fmt.Errorf("period must be intraday or long, got %q", c.Period)
	}
	interval, err := c.IntervalDuration()
	if err != nil {
		return err
	}
	if c.Period == "long" && interval < 24*time.Hour {
		return fmt.Errorf("interval must be at least 1d for period long, got %q", c.Interval)
	}
	if c.FetchTimeoutMS <= 0 {
		return fmt.Errorf("fetch_timeout_ms must be positive")
	}
	if c.FetchRetries < 0 {
		return fmt.Errorf("fetch_retries must not be negative")
	}
	if c.CacheTTLMS < 0 {
		return fmt.Errorf("cache_ttl_ms must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.DataSource.Provider {
	case "yahoo", "mock":
	case "barsapi":
		if c.DataSource.BaseURL == "" {
			return fmt.Errorf("data_source.base_url is required for barsapi")
		}
	default:
		return fmt.Errorf("unknown data_source.provider %q", c.DataSource.Provider)
	}
	return nil
}

// RefreshInterval returns the timer period.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMS) * time.Millisecond
}

// FetchTimeout bounds a single fetch.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}

// CacheTTL is how long a fetched series is reused.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMS) * time.Millisecond
}

// IntervalDuration parses the bar size. Besides Go durations it accepts day
// and week units ("1d", "1wk").
func (c *Config) IntervalDuration() (time.Duration, error) {
	s := strings.TrimSpace(c.Interval)
	for suffix, unit := range map[string]time.Duration{"wk": 7 * 24 * time.Hour, "d": 24 * time.Hour} {
		if strings.HasSuffix(s, suffix) {
			n, err := strconv.Atoi(strings.TrimSuffix(s, suffix))
			if err != nil || n <= 0 {
				return 0, fmt.Errorf("invalid interval %q", c.Interval)
			}
			return time.Duration(n) * unit, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid interval %q", c.Interval)
	}
	return d, nil
}

// Location loads the display time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("load display_timezone %q: %w", c.DisplayTimezone, err)
	}
	return loc, nil
}

// RecorderEnabled reports whether the SQLite audit log should be opened.
func (c *Config) RecorderEnabled() bool {
	return c.Database.SQLitePath != "off"
}
