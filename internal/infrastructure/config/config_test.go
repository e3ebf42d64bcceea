package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("RATE_LIMIT_CREATE", "5")
	t.Setenv("PLAYGROUND_AUTOSAVE_DELAY", "250ms")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 5, cfg.RateLimit.CreateLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.Playground.AutosaveDelay)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoadOrDefaultOnBadValue(t *testing.T) {
	t.Setenv("SANDBOX_POOL_SIZE", "many")

	cfg := LoadOrDefault()
	assert.Equal(t, 8, cfg.Sandbox.PoolSize)
}
