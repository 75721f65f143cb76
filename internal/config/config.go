package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment variable read by Load.
	EnvPrefix = "VENUECHAT_"
	// ConfigPathEnvVar names the YAML config file when -config is not given.
	ConfigPathEnvVar = "VENUECHAT_CONFIG"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	GRPC        GRPCConfig        `koanf:"grpc"`
	Database    DatabaseConfig    `koanf:"database"`
	Presence    PresenceConfig    `koanf:"presence"`
	Nearby      NearbyConfig      `koanf:"nearby"`
	Persistence PersistenceConfig `koanf:"persistence"`
	Events      EventsConfig      `koanf:"events"`
	Auth        AuthConfig        `koanf:"auth"`
	Chat        ChatConfig        `koanf:"chat"`
	Log         LogConfig         `koanf:"log"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Mock        MockConfig        `koanf:"mock"`
}

type ServerConfig struct {
	Addr              string        `koanf:"addr"`
	AllowedOrigins    []string      `koanf:"allowed_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
}

type GRPCConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// PresenceConfig locates the Badger presence cache. An empty Dir keeps it in memory.
type PresenceConfig struct {
	Dir string `koanf:"dir"`
}

type NearbyConfig struct {
	RadiusKm        float64       `koanf:"radius_km"`
	Window          time.Duration `koanf:"window"`
	RefreshInterval time.Duration `koanf:"refresh_interval"`
}

type PersistenceConfig struct {
	Enabled       bool          `koanf:"enabled"`
	BufferSize    int           `koanf:"buffer_size"`
	FlushInterval time.Duration `koanf:"flush_interval"`
}

// EventsConfig selects the change-feed broker. With an empty URL an
// embedded NATS server is started on EmbeddedHost:EmbeddedPort.
type EventsConfig struct {
	URL          string `koanf:"url"`
	Prefix       string `koanf:"prefix"`
	EmbeddedHost string `koanf:"embedded_host"`
	EmbeddedPort int    `koanf:"embedded_port"`
}

type AuthConfig struct {
	HMACSecret    string        `koanf:"hmac_secret"`
	PublicKeyFile string        `koanf:"public_key_file"`
	Issuer        string        `koanf:"issuer"`
	Audience      string        `koanf:"audience"`
	CacheTTL      time.Duration `koanf:"cache_ttl"`
}

type ChatConfig struct {
	RatePerSecond float64 `koanf:"rate_per_second"`
	Burst         int     `koanf:"burst"`
	HistoryLimit  int     `koanf:"history_limit"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type TelemetryConfig struct {
	TracingEnabled bool `koanf:"tracing_enabled"`
}

// MockConfig drives the simulator that moves synthetic users around a centre point.
type MockConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Users     int           `koanf:"users"`
	Latitude  float64       `koanf:"latitude"`
	Longitude float64       `koanf:"longitude"`
	Interval  time.Duration `koanf:"interval"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			AllowedOrigins:    []string{},
			RateLimitRequests: 300,
			RateLimitWindow:   time.Minute,
		},
		GRPC: GRPCConfig{
			Enabled: true,
			Addr:    ":9000",
		},
		Database: DatabaseConfig{Path: getDefaultDBPath()},
		Nearby: NearbyConfig{
			RadiusKm:        5,
			Window:          15 * time.Minute,
			RefreshInterval: 30 * time.Second,
		},
		Persistence: PersistenceConfig{
			Enabled:       true,
			BufferSize:    10000,
			FlushInterval: 5 * time.Second,
		},
		Events: EventsConfig{
			Prefix:       "venuechat",
			EmbeddedHost: "127.0.0.1",
			EmbeddedPort: 4222,
		},
		Auth: AuthConfig{CacheTTL: 5 * time.Minute},
		Chat: ChatConfig{
			RatePerSecond: 1,
			Burst:         5,
			HistoryLimit:  100,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Mock: MockConfig{
			Users:     25,
			Latitude:  40.4168,
			Longitude: -3.7038,
			Interval:  5 * time.Second,
		},
	}
}

// envMappings maps VENUECHAT_* variables (prefix stripped, lower-cased) to config paths.
var envMappings = map[string]string{
	"addr":                    "server.addr",
	"allowed_origins":         "server.allowed_origins",
	"rate_limit_requests":     "server.rate_limit_requests",
	"rate_limit_window":       "server.rate_limit_window",
	"grpc_enabled":            "grpc.enabled",
	"grpc_addr":               "grpc.addr",
	"db":                      "database.path",
	"db_path":                 "database.path",
	"presence_dir":            "presence.dir",
	"nearby_radius_km":        "nearby.radius_km",
	"nearby_window":           "nearby.window",
	"nearby_refresh_interval": "nearby.refresh_interval",
	"persistence":             "persistence.enabled",
	"persistence_buffer_size": "persistence.buffer_size",
	"persistence_flush":       "persistence.flush_interval",
	"nats_url":                "events.url",
	"nats_prefix":             "events.prefix",
	"nats_host":               "events.embedded_host",
	"nats_port":               "events.embedded_port",
	"jwt_secret":              "auth.hmac_secret",
	"jwt_public_key":          "auth.public_key_file",
	"jwt_issuer":              "auth.issuer",
	"jwt_audience":            "auth.audience",
	"jwt_cache_ttl":           "auth.cache_ttl",
	"chat_rate":               "chat.rate_per_second",
	"chat_burst":              "chat.burst",
	"chat_history_limit":      "chat.history_limit",
	"log_level":               "log.level",
	"log_format":              "log.format",
	"tracing":                 "telemetry.tracing_enabled",
	"mock":                    "mock.enabled",
	"mock_users":              "mock.users",
	"mock_lat":                "mock.latitude",
	"mock_lng":                "mock.longitude",
	"mock_interval":           "mock.interval",
}

// sliceConfigPaths are parsed from comma separated strings when set from the environment.
var sliceConfigPaths = []string{"server.allowed_origins"}

func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return envMappings[key]
}

// Load layers defaults, the optional YAML file, VENUECHAT_* environment
// variables and command line flags, in increasing precedence.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("venuechat", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv(ConfigPathEnvVar), "Path to YAML config file")
	addr := fs.String("addr", "", "HTTP server address")
	dbPath := fs.String("db", "", "Path to SQLite database")
	mock := fs.Bool("mock", false, "Run the user simulator")
	debug := fs.Bool("debug", false, "Enable verbose debug logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if *configPath != "" {
		if err := k.Load(file.Provider(*configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", *configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Command Line Flags (Override Env)
	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		var err error
		switch f.Name {
		case "addr":
			err = k.Set("server.addr", *addr)
		case "db":
			err = k.Set("database.path", *dbPath)
		case "mock":
			err = k.Set("mock.enabled", *mock)
		case "debug":
			if *debug {
				err = k.Set("log.level", "debug")
			}
		}
		flagErr = errors.Join(flagErr, err)
	})
	if flagErr != nil {
		return nil, fmt.Errorf("failed to apply flags: %w", flagErr)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		trimmed := make([]string, 0)
		for _, p := range strings.Split(strVal, ",") {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Addr != "", "server.addr is required")
	check(c.Server.RateLimitRequests >= 0, "server.rate_limit_requests must not be negative")
	check(c.Server.RateLimitRequests == 0 || c.Server.RateLimitWindow > 0, "server.rate_limit_window must be positive")
	check(!c.GRPC.Enabled || c.GRPC.Addr != "", "grpc.addr is required when grpc is enabled")
	check(c.Database.Path != "", "database.path is required")
	check(c.Nearby.RadiusKm > 0, "nearby.radius_km must be positive")
	check(c.Nearby.Window > 0, "nearby.window must be positive")
	check(c.Nearby.RefreshInterval > 0, "nearby.refresh_interval must be positive")
	check(c.Persistence.BufferSize >= 0, "persistence.buffer_size must not be negative")
	check(c.Persistence.FlushInterval > 0, "persistence.flush_interval must be positive")
	check(c.Events.Prefix != "" && !strings.ContainsAny(c.Events.Prefix, " *>"), "events.prefix must be a plain subject token")
	check(c.Events.URL != "" || (c.Events.EmbeddedPort >= -1 && c.Events.EmbeddedPort <= 65535), "events.embedded_port is out of range")
	check(c.Auth.HMACSecret != "" || c.Auth.PublicKeyFile != "", "auth.hmac_secret or auth.public_key_file is required")
	check(c.Auth.CacheTTL >= 0, "auth.cache_ttl must not be negative")
	check(c.Chat.RatePerSecond > 0, "chat.rate_per_second must be positive")
	check(c.Chat.Burst > 0, "chat.burst must be positive")
	check(c.Chat.HistoryLimit > 0, "chat.history_limit must be positive")
	check(c.Log.Format == "json" || c.Log.Format == "text", "log.format must be json or text, got %q", c.Log.Format)
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Mock.Enabled {
		check(c.Mock.Users > 0, "mock.users must be positive")
		check(c.Mock.Interval > 0, "mock.interval must be positive")
		check(c.Mock.Latitude >= -90 && c.Mock.Latitude <= 90, "mock.latitude is out of range")
		check(c.Mock.Longitude >= -180 && c.Mock.Longitude <= 180, "mock.longitude is out of range")
	}

	return errors.Join(errs...)
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// getDefaultDBPath returns the default database path in user's home directory.
// Creates the directory if it doesn't exist.
func getDefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("could not get user home directory, using current dir", "error", err)
		return "venuechat.db"
	}

	dir := filepath.Join(home, ".venuechat")
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Warn("could not create .venuechat directory, using current dir", "error", err)
		return "venuechat.db"
	}

	return filepath.Join(dir, "venuechat.db")
}
