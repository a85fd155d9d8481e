package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// StartupMode defines how the daemon handles initialization failures
type StartupMode string

const (
	// StartupModeStrict fails fast on any initialization error (default)
	StartupModeStrict StartupMode = "strict"
	// StartupModeGraceful starts with degraded functionality, logging warnings
	StartupModeGraceful StartupMode = "graceful"
)

// Settings holds the daemon's own runtime settings, loaded from orthrus.yaml
// and ORTHRUS_* environment variables. Distinct from the XML configuration
// document: Settings say where the document lives and how the process runs,
// the document says what the engine detects.
type Settings struct {
	// StartupMode controls how initialization failures are handled
	// "strict" (default): fail fast on any error
	// "graceful": start with degraded functionality, log warnings
	StartupMode StartupMode `mapstructure:"startup_mode"`

	Config struct {
		// Dir is the directory holding the configuration document and schema
		Dir string `mapstructure:"dir"`
		// File is the configuration document name (ORTHRUS_CONFIG_FILE)
		File string `mapstructure:"file"`
		// SchemaFile is the schema name used for validator defaulting
		SchemaFile string `mapstructure:"schema_file"`
	} `mapstructure:"config"`

	Watch struct {
		Enabled  bool          `mapstructure:"enabled"`
		Debounce time.Duration `mapstructure:"debounce"`
	} `mapstructure:"watch"`

	API struct {
		Enabled bool   `mapstructure:"enabled"`
		Host    string `mapstructure:"host"`
		Port    int    `mapstructure:"port"`
	} `mapstructure:"api"`

	Engine struct {
		// RateLimit caps event intake per second; 0 disables throttling
		RateLimit int `mapstructure:"rate_limit"`
		RateBurst int `mapstructure:"rate_burst"`
		// WindowCacheSize bounds the per detection point attack window cache
		WindowCacheSize int `mapstructure:"window_cache_size"`
	} `mapstructure:"engine"`

	SQLite struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"sqlite"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
		PoolSize int    `mapstructure:"pool_size"`
	} `mapstructure:"redis"`
}

// setDefaults sets default settings values
func setDefaults() {
	viper.SetDefault("startup_mode", string(StartupModeStrict))

	viper.SetDefault("config.dir", ".")
	viper.SetDefault("config.file", DefaultConfigFile)
	viper.SetDefault("config.schema_file", DefaultSchemaFile)

	viper.SetDefault("watch.enabled", false)
	viper.SetDefault("watch.debounce", 500*time.Millisecond)

	viper.SetDefault("api.enabled", true)
	viper.SetDefault("api.host", "127.0.0.1")
	viper.SetDefault("api.port", 8090)

	viper.SetDefault("engine.rate_limit", 0) // throttling off
	viper.SetDefault("engine.rate_burst", 1)
	viper.SetDefault("engine.window_cache_size", 1024)

	viper.SetDefault("sqlite.path", "./data/orthrus.db")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)
}

// loadFromEnv sets up environment variable loading
func loadFromEnv() {
	viper.SetEnvPrefix("ORTHRUS")
	viper.AutomaticEnv()

	// Explicit bindings so the common overrides keep short names
	_ = viper.BindEnv("startup_mode", "ORTHRUS_STARTUP_MODE")
	_ = viper.BindEnv("config.dir", "ORTHRUS_CONFIG_DIR")
	_ = viper.BindEnv("config.file", "ORTHRUS_CONFIG_FILE")
	_ = viper.BindEnv("config.schema_file", "ORTHRUS_SCHEMA_FILE")
	_ = viper.BindEnv("watch.enabled", "ORTHRUS_WATCH_ENABLED")
	_ = viper.BindEnv("api.enabled", "ORTHRUS_API_ENABLED")
	_ = viper.BindEnv("api.host", "ORTHRUS_API_HOST")
	_ = viper.BindEnv("api.port", "ORTHRUS_API_PORT")
	_ = viper.BindEnv("sqlite.path", "ORTHRUS_SQLITE_PATH")
	_ = viper.BindEnv("redis.addr", "ORTHRUS_REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "ORTHRUS_REDIS_PASSWORD")
}

// LoadSettings loads settings from file and environment variables
func LoadSettings() (*Settings, error) {
	viper.SetConfigName("orthrus")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Settings file not found, will use defaults and env vars
	}

	var settings Settings
	if err := viper.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("unable to decode settings: %w", err)
	}

	if err := validateSettings(&settings); err != nil {
		return nil, fmt.Errorf("settings validation failed: %w", err)
	}

	return &settings, nil
}

// validateSettings validates the settings for correctness
func validateSettings(s *Settings) error {
	if s.StartupMode != StartupModeStrict && s.StartupMode != StartupModeGraceful {
		return fmt.Errorf("invalid startup_mode %q (must be %q or %q)", s.StartupMode, StartupModeStrict, StartupModeGraceful)
	}
	if s.Config.File == "" {
		return fmt.Errorf("config.file cannot be empty")
	}
	if s.API.Enabled {
		if s.API.Port < 1 || s.API.Port > 65535 {
			return fmt.Errorf("invalid api.port: %d (must be 1-65535)", s.API.Port)
		}
		if s.API.Host == "" {
			return fmt.Errorf("invalid api.host: host cannot be empty")
		}
	}
	if s.Watch.Enabled && s.Watch.Debounce <= 0 {
		return fmt.Errorf("watch.debounce must be positive when watching is enabled")
	}
	if s.Engine.RateLimit < 0 {
		return fmt.Errorf("engine.rate_limit cannot be negative")
	}
	if s.Engine.RateLimit > 0 && s.Engine.RateBurst < 1 {
		return fmt.Errorf("engine.rate_burst must be at least 1 when rate limiting is enabled")
	}
	if s.Engine.WindowCacheSize < 1 {
		return fmt.Errorf("engine.window_cache_size must be positive")
	}
	return nil
}

// DocumentPath returns the resolved configuration document path.
func (s *Settings) DocumentPath() string {
	return filepath.Join(s.Config.Dir, s.Config.File)
}

// SchemaPath returns the resolved schema path.
func (s *Settings) SchemaPath() string {
	return filepath.Join(s.Config.Dir, s.Config.SchemaFile)
}

// APIAddr returns the bind address for the introspection API.
func (s *Settings) APIAddr() string {
	return fmt.Sprintf("%s:%d", s.API.Host, s.API.Port)
}

// IsGracefulMode returns true if the startup mode is graceful
func (s *Settings) IsGracefulMode() bool {
	return s.StartupMode == StartupModeGraceful
}
