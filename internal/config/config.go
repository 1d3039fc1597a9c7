package config

import (
	"time"

	"github.com/spf13/viper"
)

// Defaults applied when a key is absent from configs/config.yml.
const (
	defaultPort              = "8080"
	defaultDBPath            = "stations.db"
	defaultSigningKey        = "dev-only-signing-key"
	defaultReconcileInterval = 30 * time.Second
	defaultJanitorInterval   = time.Hour
)

// Load reads configs/config.yml into viper.
func Load() error {
	viper.AddConfigPath("configs")
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// HTTPPort returns the port the API listens on.
func HTTPPort() string {
	if port := viper.GetString("port"); port != "" {
		return port
	}
	return defaultPort
}

// DBPath returns the SQLite database file path.
func DBPath() string {
	if path := viper.GetString("db.path"); path != "" {
		return path
	}
	return defaultDBPath
}

// SigningKey returns the JWT signing key. The fallback is only suitable
// for local development.
func SigningKey() []byte {
	if key := viper.GetString("auth.signing_key"); key != "" {
		return []byte(key)
	}
	return []byte(defaultSigningKey)
}

// ReconcileInterval returns how often the supervisor re-checks desired
// station state against running connections.
func ReconcileInterval() time.Duration {
	if d := viper.GetDuration("supervisor.reconcile_interval"); d > 0 {
		return d
	}
	return defaultReconcileInterval
}

// BreachRetention returns how long breach rows are kept. Zero disables
// the retention janitor.
func BreachRetention() time.Duration {
	return viper.GetDuration("retention.breach_max_age")
}

// JanitorInterval returns how often retention cleanup runs.
func JanitorInterval() time.Duration {
	if d := viper.GetDuration("retention.janitor_interval"); d > 0 {
		return d
	}
	return defaultJanitorInterval
}
