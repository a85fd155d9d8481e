package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSettings returns valid Settings for testing
func newTestSettings() *Settings {
	var s Settings
	s.StartupMode = StartupModeStrict
	s.Config.Dir = "."
	s.Config.File = DefaultConfigFile
	s.Config.SchemaFile = DefaultSchemaFile
	s.Watch.Enabled = false
	s.Watch.Debounce = 500 * time.Millisecond
	s.API.Enabled = true
	s.API.Host = "127.0.0.1"
	s.API.Port = 8090
	s.Engine.RateLimit = 0
	s.Engine.RateBurst = 1
	s.Engine.WindowCacheSize = 1024
	s.SQLite.Path = "./data/orthrus.db"
	s.Redis.Addr = "localhost:6379"
	s.Redis.PoolSize = 10
	return &s
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(s *Settings) {},
		},
		{
			name:    "unknown startup mode",
			mutate:  func(s *Settings) { s.StartupMode = "bogus" },
			wantErr: "invalid startup_mode",
		},
		{
			name:    "empty config file",
			mutate:  func(s *Settings) { s.Config.File = "" },
			wantErr: "config.file cannot be empty",
		},
		{
			name:    "api port out of range",
			mutate:  func(s *Settings) { s.API.Port = 70000 },
			wantErr: "invalid api.port",
		},
		{
			name: "api disabled skips address checks",
			mutate: func(s *Settings) {
				s.API.Enabled = false
				s.API.Port = 0
				s.API.Host = ""
			},
		},
		{
			name: "watch needs positive debounce",
			mutate: func(s *Settings) {
				s.Watch.Enabled = true
				s.Watch.Debounce = 0
			},
			wantErr: "watch.debounce",
		},
		{
			name:    "negative rate limit",
			mutate:  func(s *Settings) { s.Engine.RateLimit = -1 },
			wantErr: "rate_limit cannot be negative",
		},
		{
			name: "rate limiting needs a burst",
			mutate: func(s *Settings) {
				s.Engine.RateLimit = 100
				s.Engine.RateBurst = 0
			},
			wantErr: "rate_burst",
		},
		{
			name:    "zero window cache",
			mutate:  func(s *Settings) { s.Engine.WindowCacheSize = 0 },
			wantErr: "window_cache_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSettings()
			tt.mutate(s)
			err := validateSettings(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	s, err := LoadSettings()
	require.NoError(t, err)

	assert.Equal(t, StartupModeStrict, s.StartupMode)
	assert.False(t, s.IsGracefulMode())
	assert.Equal(t, ".", s.Config.Dir)
	assert.Equal(t, DefaultConfigFile, s.Config.File)
	assert.Equal(t, DefaultSchemaFile, s.Config.SchemaFile)
	assert.False(t, s.Watch.Enabled)
	assert.Equal(t, 500*time.Millisecond, s.Watch.Debounce)
	assert.True(t, s.API.Enabled)
	assert.Equal(t, "127.0.0.1:8090", s.APIAddr())
	assert.Zero(t, s.Engine.RateLimit)
	assert.Equal(t, 1024, s.Engine.WindowCacheSize)
	assert.Equal(t, "./data/orthrus.db", s.SQLite.Path)
	assert.Equal(t, "localhost:6379", s.Redis.Addr)
	assert.Equal(t, 10, s.Redis.PoolSize)
}

func TestLoadSettingsEnvOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("ORTHRUS_STARTUP_MODE", "graceful")
	t.Setenv("ORTHRUS_CONFIG_DIR", filepath.Join("/etc", "orthrus"))
	t.Setenv("ORTHRUS_API_PORT", "9999")
	t.Setenv("ORTHRUS_REDIS_ADDR", "redis.internal:6380")

	s, err := LoadSettings()
	require.NoError(t, err)

	assert.True(t, s.IsGracefulMode())
	assert.Equal(t, filepath.Join("/etc", "orthrus", DefaultConfigFile), s.DocumentPath())
	assert.Equal(t, filepath.Join("/etc", "orthrus", DefaultSchemaFile), s.SchemaPath())
	assert.Equal(t, 9999, s.API.Port)
	assert.Equal(t, "redis.internal:6380", s.Redis.Addr)
}

func TestLoadSettingsRejectsInvalidEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("ORTHRUS_STARTUP_MODE", "yolo")

	s, err := LoadSettings()
	assert.Nil(t, s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid startup_mode")
}
