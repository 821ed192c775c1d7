package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg := LoadFromEnv()

	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultRegion, cfg.Region)
	assert.False(t, cfg.EnableHTTPS)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("SMPIT_PORT", "4567")
	t.Setenv("SMPIT_ACCESS_KEY_ID", "testkey")
	t.Setenv("SMPIT_ENABLE_HTTPS", "true")
	t.Setenv("SMPIT_CLEANUP_INTERVAL", "60")

	cfg := LoadFromEnv()
	assert.Equal(t, 4567, cfg.Port)
	assert.Equal(t, "testkey", cfg.AccessKeyID)
	assert.True(t, cfg.EnableHTTPS)
	assert.Equal(t, "0.0.0.0:4567", cfg.Addr())
	assert.EqualValues(t, 60e9, cfg.CleanupInterval)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Port = 0 }},
		{"empty access key", func(c *Config) { c.AccessKeyID = "" }},
		{"https without certs", func(c *Config) { c.EnableHTTPS = true }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"zero cleanup interval", func(c *Config) { c.CleanupInterval = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := LoadFromEnv()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
