package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithSecret(t *testing.T) {
	t.Setenv("VENUECHAT_JWT_SECRET", "s3cret")
	t.Setenv("VENUECHAT_DB", filepath.Join(t.TempDir(), "test.db"))

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5.0, cfg.Nearby.RadiusKm)
	assert.Equal(t, 15*time.Minute, cfg.Nearby.Window)
	assert.Equal(t, 30*time.Second, cfg.Nearby.RefreshInterval)
	assert.Equal(t, "venuechat", cfg.Events.Prefix)
	assert.Equal(t, "s3cret", cfg.Auth.HMACSecret)
	assert.True(t, cfg.GRPC.Enabled)
	assert.True(t, cfg.Persistence.Enabled)
	assert.False(t, cfg.Mock.Enabled)
}

func TestLoad_RequiresVerifierKey(t *testing.T) {
	t.Setenv("VENUECHAT_DB", filepath.Join(t.TempDir(), "test.db"))

	_, err := Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.hmac_secret")
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "venuechat.yaml")
	yamlDoc := `
server:
  addr: ":7000"
  allowed_origins:
    - https://a.example.com
nearby:
  radius_km: 2.5
  window: 10m
auth:
  hmac_secret: from-file
log:
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	t.Setenv("VENUECHAT_CONFIG", path)
	t.Setenv("VENUECHAT_DB", filepath.Join(dir, "test.db"))
	t.Setenv("VENUECHAT_NEARBY_WINDOW", "20m")
	t.Setenv("VENUECHAT_CHAT_BURST", "9")
	t.Setenv("VENUECHAT_MOCK", "true")
	t.Setenv("VENUECHAT_PERSISTENCE", "false")

	cfg, err := Load([]string{"-addr", ":7100"})
	require.NoError(t, err)

	assert.Equal(t, ":7100", cfg.Server.Addr, "flag beats file")
	assert.Equal(t, []string{"https://a.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 2.5, cfg.Nearby.RadiusKm, "file beats defaults")
	assert.Equal(t, 20*time.Minute, cfg.Nearby.Window, "env beats file")
	assert.Equal(t, 9, cfg.Chat.Burst)
	assert.Equal(t, "from-file", cfg.Auth.HMACSecret)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.True(t, cfg.Mock.Enabled)
	assert.False(t, cfg.Persistence.Enabled)
}

func TestLoad_SliceFromEnv(t *testing.T) {
	t.Setenv("VENUECHAT_JWT_SECRET", "s3cret")
	t.Setenv("VENUECHAT_DB", filepath.Join(t.TempDir(), "test.db"))
	t.Setenv("VENUECHAT_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowedOrigins)
}

func TestLoad_DebugFlag(t *testing.T) {
	t.Setenv("VENUECHAT_JWT_SECRET", "s3cret")
	t.Setenv("VENUECHAT_DB", filepath.Join(t.TempDir(), "test.db"))

	cfg, err := Load([]string{"-debug"})
	require.NoError(t, err)

	lvl, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("VENUECHAT_JWT_SECRET", "s3cret")

	_, err := Load([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Auth.HMACSecret = "s3cret"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"zero radius", func(c *Config) { c.Nearby.RadiusKm = 0 }, "nearby.radius_km"},
		{"negative window", func(c *Config) { c.Nearby.Window = -time.Second }, "nearby.window"},
		{"wildcard prefix", func(c *Config) { c.Events.Prefix = "venues.*" }, "events.prefix"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"grpc without addr", func(c *Config) { c.GRPC.Addr = "" }, "grpc.addr"},
		{"mock without users", func(c *Config) { c.Mock.Enabled = true; c.Mock.Users = 0 }, "mock.users"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
