// Package config loads service settings from a YAML file, a .env file and
// the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Store    StoreConfig    `yaml:"store"`
	Redis    RedisConfig    `yaml:"redis"`
	Geocoder GeocoderConfig `yaml:"geocoder"`
	Router   RouterConfig   `yaml:"router"`
	Map      MapConfig      `yaml:"map"`
	Webhooks WebhookConfig  `yaml:"webhooks"`
}

type ServerConfig struct {
	Addr         string   `yaml:"addr"`
	AllowOrigins []string `yaml:"allow_origins"`
	RateRPS      float64  `yaml:"rate_rps"` // per-client request rate, 0 disables
	RateBurst    int      `yaml:"rate_burst"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

type StoreConfig struct {
	// DSN selects the backend: empty for memory, postgres://, mongodb://,
	// sqlite:path or a bare file path for SQLite.
	DSN     string `yaml:"dsn"`
	MongoDB string `yaml:"mongo_database"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type GeocoderConfig struct {
	// URL of a Nominatim instance; empty uses the static gazetteer.
	URL       string        `yaml:"url"`
	Gazetteer string        `yaml:"gazetteer"`
	UserAgent string        `yaml:"user_agent"`
	Language  string        `yaml:"language"`
	RateRPS   float64       `yaml:"rate_rps"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

type RouterConfig struct {
	// URL of an OSRM instance; empty uses the static router.
	URL string `yaml:"url"`
}

type MapConfig struct {
	RegionMeters      float64       `yaml:"region_meters"`
	RecenterThreshold float64       `yaml:"recenter_threshold_meters"`
	AlertDelay        time.Duration `yaml:"alert_delay"`
	RecenterDelay     time.Duration `yaml:"recenter_delay"`
	SessionIdle       time.Duration `yaml:"session_idle"`
}

type WebhookConfig struct {
	Targets     []WebhookTarget `yaml:"targets"`
	MaxAttempts int             `yaml:"max_attempts"`
}

type WebhookTarget struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}

func Default() *Config {
	return &Config{
		Server:  ServerConfig{Addr: ":8080", RateBurst: 20},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Store:   StoreConfig{MongoDB: "myplaces"},
		Geocoder: GeocoderConfig{
			UserAgent: "MyPlaces/1.0",
			RateRPS:   1,
			CacheTTL:  24 * time.Hour,
		},
		Map: MapConfig{
			RegionMeters:      1000,
			RecenterThreshold: 50,
			AlertDelay:        time.Second,
			RecenterDelay:     3 * time.Second,
			SessionIdle:       30 * time.Minute,
		},
		Webhooks: WebhookConfig{MaxAttempts: 10},
	}
}

// Load reads path (a missing file is not an error), then .env, then the
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	// .env is optional; variables already set win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	if v := os.Getenv("ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("ALLOW_ORIGINS"); v != "" {
		c.Server.AllowOrigins = splitList(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("MONGO_DATABASE"); v != "" {
		c.Store.MongoDB = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("GEOCODER_URL"); v != "" {
		c.Geocoder.URL = v
	}
	if v := os.Getenv("GAZETTEER"); v != "" {
		c.Geocoder.Gazetteer = v
	}
	if v := os.Getenv("GEOCODER_USER_AGENT"); v != "" {
		c.Geocoder.UserAgent = v
	}
	if v := os.Getenv("ROUTER_URL"); v != "" {
		c.Router.URL = v
	}
	// a single env target replaces any configured list
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		c.Webhooks.Targets = []WebhookTarget{{URL: v, Secret: os.Getenv("WEBHOOK_SECRET")}}
	}

	var errs []error
	floatEnv(&errs, "RATE_RPS", &c.Server.RateRPS)
	intEnv(&errs, "RATE_BURST", &c.Server.RateBurst)
	floatEnv(&errs, "GEOCODER_RPS", &c.Geocoder.RateRPS)
	durationEnv(&errs, "GEOCODE_CACHE_TTL", &c.Geocoder.CacheTTL)
	durationEnv(&errs, "ALERT_DELAY", &c.Map.AlertDelay)
	durationEnv(&errs, "RECENTER_DELAY", &c.Map.RecenterDelay)
	durationEnv(&errs, "SESSION_IDLE", &c.Map.SessionIdle)
	intEnv(&errs, "WEBHOOK_MAX_ATTEMPTS", &c.Webhooks.MaxAttempts)
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func floatEnv(errs *[]error, key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = f
	}
}

func intEnv(errs *[]error, key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func durationEnv(errs *[]error, key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
}

// Redacted is the view exposed on the debug endpoint: URLs are reduced to
// whether they are set.
func (c *Config) Redacted() map[string]any {
	return map[string]any{
		"addr":             c.Server.Addr,
		"allowOrigins":     c.Server.AllowOrigins,
		"rateRps":          c.Server.RateRPS,
		"rateBurst":        c.Server.RateBurst,
		"logLevel":         c.Logging.Level,
		"hasDatabaseUrl":   c.Store.DSN != "",
		"hasRedisUrl":      c.Redis.URL != "",
		"geocoderUrl":      c.Geocoder.URL,
		"routerUrl":        c.Router.URL,
		"geocoderRps":      c.Geocoder.RateRPS,
		"alertDelay":       c.Map.AlertDelay.String(),
		"recenterDelay":    c.Map.RecenterDelay.String(),
		"regionMeters":     c.Map.RegionMeters,
		"recenterMeters":   c.Map.RecenterThreshold,
		"sessionIdle":      c.Map.SessionIdle.String(),
		"geocodeCacheTtl":  c.Geocoder.CacheTTL.String(),
		"gazetteerEnabled": c.Geocoder.Gazetteer != "",
		"webhookTargets":   len(c.Webhooks.Targets),
	}
}
