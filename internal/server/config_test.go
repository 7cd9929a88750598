package server_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mkettner/relaychat/internal/server"
)

func TestNewConfigDefaults(t *testing.T) {
	req := require.New(t)
	cfg := server.NewConfig()

	req.Equal(":8080", cfg.Port)
	req.Equal("dev", cfg.Env)
	req.Equal([]string{"http://localhost:8080"}, cfg.AllowedOrigins)
	req.Equal(int64(4096), cfg.MaxMessageSize)
	req.Equal(10, cfg.RateLimitBurst)
	req.Equal(time.Second, cfg.RateLimitRefill)
	req.Equal(10*time.Second, cfg.ShutdownTimeout)
}

func TestNewConfigFromEnvOverrides(t *testing.T) {
	req := require.New(t)

	t.Setenv("APP_ENV", "prod")
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("ALLOWED_ORIGINS", "https://chat.example.com,https://admin.example.com")
	t.Setenv("MAX_MESSAGE_SIZE", "8192")
	t.Setenv("RATE_LIMIT_BURST", "20")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")

	cfg, err := server.NewConfigFromEnv()
	req.NoError(err)
	req.Equal("prod", cfg.Env)
	req.Equal(":9090", cfg.Port)
	req.Equal([]string{"https://chat.example.com", "https://admin.example.com"}, cfg.AllowedOrigins)
	req.Equal(int64(8192), cfg.MaxMessageSize)
	req.Equal(20, cfg.RateLimitBurst)
	req.Equal(2*time.Second, cfg.RateLimitRefill)
}

func TestNewConfigFromEnvClampsInvalidValues(t *testing.T) {
	req := require.New(t)

	t.Setenv("MAX_MESSAGE_SIZE", "-1")
	t.Setenv("RATE_LIMIT_BURST", "0")

	cfg, err := server.NewConfigFromEnv()
	req.NoError(err)
	req.Equal(int64(4096), cfg.MaxMessageSize)
	req.Equal(10, cfg.RateLimitBurst)
}

func TestConfigRateLimit(t *testing.T) {
	req := require.New(t)
	cfg := server.NewConfig()

	limit := cfg.RateLimit()
	req.Equal(cfg.RateLimitBurst, limit.Burst)
	req.Equal(cfg.RateLimitRefill, limit.RefillInterval)
}
