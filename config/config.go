package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/marketcache/auth"
	"github.com/jonwraymond/marketcache/cache"
	"github.com/jonwraymond/marketcache/observe"
	"github.com/jonwraymond/marketcache/tradedate"
	"github.com/jonwraymond/marketcache/upstream"
)

// ErrInvalidConfig wraps every configuration error.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the root of the configuration file.
type Config struct {
	Cache    cache.Config   `yaml:"cache"`
	Calendar CalendarConfig `yaml:"calendar"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Service  ServiceConfig  `yaml:"service"`
	Health   HealthConfig   `yaml:"health"`
	Observe  observe.Config `yaml:"observe"`
	Server   ServerConfig   `yaml:"server"`
}

// CalendarConfig describes the market's trading calendar.
type CalendarConfig struct {
	// Timezone is an IANA zone name. Default: Asia/Shanghai
	Timezone string `yaml:"timezone"`

	// SessionClose is the local time of day, HH:MM, after which the day's
	// data counts as published. Default: 15:00
	SessionClose string `yaml:"session_close"`

	// Holidays are YYYY-MM-DD dates the market is closed on a weekday.
	Holidays []string `yaml:"holidays"`
}

// UpstreamConfig configures the market-data source.
type UpstreamConfig struct {
	HTTP  upstream.HTTPConfig  `yaml:"http"`
	Guard upstream.GuardConfig `yaml:"guard"`
}

// ServiceConfig tunes the data services.
type ServiceConfig struct {
	// Coalesce merges concurrent identical misses into one upstream fetch.
	Coalesce bool `yaml:"coalesce"`
}

// HealthConfig tunes the health checks.
type HealthConfig struct {
	// Timeout bounds each check. Default: 5s
	Timeout time.Duration `yaml:"timeout"`

	// MaxHeapMB is the heap ceiling of the memory check. Zero disables it.
	MaxHeapMB int `yaml:"max_heap_mb"`
}

// ServerConfig configures the HTTP tool surface.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Auth            auth.Config   `yaml:"auth"`
}

// Default returns the configuration used for absent keys.
func Default() Config {
	return Config{
		Cache: cache.Config{
			Backend:   cache.BackendMemory,
			Namespace: cache.DefaultNamespace,
			Policy:    cache.DefaultPolicy(),
		},
		Calendar: CalendarConfig{
			Timezone:     "Asia/Shanghai",
			SessionClose: "15:00",
		},
		Upstream: UpstreamConfig{
			HTTP:  upstream.HTTPConfig{Timeout: 30 * time.Second, UserAgent: "marketcache"},
			Guard: upstream.DefaultGuardConfig("upstream"),
		},
		Observe: observe.Config{
			ServiceName: "marketcache",
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info", Format: "json"},
		},
		Health: HealthConfig{Timeout: 5 * time.Second},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			Auth:            auth.Config{Mode: auth.ModeNone},
		},
	}
}

// Load reads the configuration at path. envFiles are loaded into the
// process environment first without overriding variables already set; a
// missing ".env" is ignored, any other missing env file is an error. An
// empty path returns Default() after env loading and validation.
func Load(ctx context.Context, path string, envFiles ...string) (*Config, error) {
	if err := loadEnv(envFiles); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := cfg.decode(raw); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := cfg.resolveSecrets(ctx, NewSecretResolver()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse decodes YAML text over Default() and validates it.
func Parse(ctx context.Context, raw []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(raw); err != nil {
		return nil, err
	}
	if err := cfg.resolveSecrets(ctx, NewSecretResolver()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) decode(raw []byte) error {
	expanded, err := ExpandEnvStrict(string(raw))
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func loadEnv(files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if f == ".env" && errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load env file %s: %w", f, err)
		}
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("%w: cache: %w", ErrInvalidConfig, err)
	}
	if _, err := c.Calendar.build(nil); err != nil {
		return err
	}
	if c.Upstream.HTTP.BaseURL != "" {
		if _, err := upstream.NewHTTPFetcher(c.Upstream.HTTP); err != nil {
			return fmt.Errorf("%w: upstream: %w", ErrInvalidConfig, err)
		}
	}
	if c.Upstream.Guard.Timeout < 0 {
		return fmt.Errorf("%w: upstream.guard.timeout must be >= 0", ErrInvalidConfig)
	}
	if c.Health.Timeout < 0 || c.Health.MaxHeapMB < 0 {
		return fmt.Errorf("%w: health.timeout and health.max_heap_mb must be >= 0", ErrInvalidConfig)
	}
	if err := c.Observe.Validate(); err != nil {
		return fmt.Errorf("%w: observe: %w", ErrInvalidConfig, err)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is required", ErrInvalidConfig)
	}
	if err := c.Server.Auth.Validate(); err != nil {
		return fmt.Errorf("%w: server.auth: %w", ErrInvalidConfig, err)
	}
	return nil
}

// NewCalendar builds the trading calendar on clock.
func (c *Config) NewCalendar(clock clockwork.Clock) (*tradedate.WeekdayCalendar, error) {
	return c.Calendar.build(clock)
}

func (c CalendarConfig) build(clock clockwork.Clock) (*tradedate.WeekdayCalendar, error) {
	cfg := tradedate.WeekdayCalendarConfig{Clock: clock}

	if c.Timezone != "" {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return nil, fmt.Errorf("%w: calendar.timezone: %w", ErrInvalidConfig, err)
		}
		cfg.Location = loc
	}

	if c.SessionClose != "" {
		t, err := time.Parse("15:04", c.SessionClose)
		if err != nil {
			return nil, fmt.Errorf("%w: calendar.session_close %q must be HH:MM", ErrInvalidConfig, c.SessionClose)
		}
		cfg.SessionClose = time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
	}

	for _, h := range c.Holidays {
		d, err := time.Parse("2006-01-02", h)
		if err != nil {
			return nil, fmt.Errorf("%w: calendar.holidays: %q is not YYYY-MM-DD", ErrInvalidConfig, h)
		}
		cfg.Holidays = append(cfg.Holidays, d)
	}

	return tradedate.NewWeekdayCalendar(cfg), nil
}
