package config

import (
	"errors"
	"os"
)

type Config struct {
	Port string

	LogLevel string
	Env      string

	// JWTSecret signs both connection tokens and dashboard cookies.
	JWTSecret string

	// BroadcastAPIKey authorizes the control-plane paths:
	// POST /auth/token and POST /broadcast.
	BroadcastAPIKey string

	// Dashboard credentials. The dashboard is enabled only when BOTH
	// are set; otherwise /dashboard answers 403.
	DashboardUsername string
	DashboardPassword string

	// RedisURL enables the Redis delivery-event mirror when set.
	// Empty means no mirror — the relay itself never needs Redis.
	RedisURL string
}

// ErrPortNotSet means the process has no listen port. There is no
// sensible default for a relay that other services must be pointed at,
// so startup refuses rather than guessing.
var ErrPortNotSet = errors.New("PORT environment variable is not set")

func LoadConfig() (*Config, error) {
	port, ok := os.LookupEnv("PORT")
	if !ok || port == "" {
		return nil, ErrPortNotSet
	}

	return &Config{
		Port:              port,
		JWTSecret:         GetEnv("JWT_SECRET", "a_very_secret_key"),
		BroadcastAPIKey:   GetEnv("BROADCAST_API_KEY", "my_super_secret_broadcast_api_key"),
		DashboardUsername: GetEnv("DASHBOARD_USERNAME", ""),
		DashboardPassword: GetEnv("DASHBOARD_PASSWORD", ""),
		RedisURL:          GetEnv("REDIS_URL", ""),
		Env:               GetEnv("ENV", "development"),
		LogLevel:          GetEnv("LOG_LEVEL", "info"),
	}, nil
}

// DashboardEnabled reports whether the operator configured dashboard
// credentials. Both must be present.
func (c *Config) DashboardEnabled() bool {
	return c.DashboardUsername != "" && c.DashboardPassword != ""
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
