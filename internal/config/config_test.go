package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaultsWhenUnset(t *testing.T) {
	viper.Reset()

	if got := HTTPPort(); got != "8080" {
		t.Errorf("HTTPPort() = %q, want 8080", got)
	}
	if got := DBPath(); got != "stations.db" {
		t.Errorf("DBPath() = %q, want stations.db", got)
	}
	if got := ReconcileInterval(); got != 30*time.Second {
		t.Errorf("ReconcileInterval() = %v, want 30s", got)
	}
	if got := BreachRetention(); got != 0 {
		t.Errorf("BreachRetention() = %v, want 0 (disabled)", got)
	}
	if got := JanitorInterval(); got != time.Hour {
		t.Errorf("JanitorInterval() = %v, want 1h", got)
	}
	if got := string(SigningKey()); got == "" {
		t.Error("SigningKey() must never be empty")
	}
}

func TestConfiguredValuesWin(t *testing.T) {
	viper.Reset()
	viper.Set("port", "9090")
	viper.Set("db.path", "/var/lib/sm/stations.db")
	viper.Set("auth.signing_key", "prod-key")
	viper.Set("supervisor.reconcile_interval", "10s")
	viper.Set("retention.breach_max_age", "720h")
	viper.Set("retention.janitor_interval", "15m")
	defer viper.Reset()

	if got := HTTPPort(); got != "9090" {
		t.Errorf("HTTPPort() = %q", got)
	}
	if got := DBPath(); got != "/var/lib/sm/stations.db" {
		t.Errorf("DBPath() = %q", got)
	}
	if got := string(SigningKey()); got != "prod-key" {
		t.Errorf("SigningKey() = %q", got)
	}
	if got := ReconcileInterval(); got != 10*time.Second {
		t.Errorf("ReconcileInterval() = %v", got)
	}
	if got := BreachRetention(); got != 720*time.Hour {
		t.Errorf("BreachRetention() = %v", got)
	}
	if got := JanitorInterval(); got != 15*time.Minute {
		t.Errorf("JanitorInterval() = %v", got)
	}
}
