package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlDoc := `
port: "9090"
log_level: debug
fetch_interval: 5m
archive:
  backend: sqlite
  dsn: data/raw.db
mqtt:
  broker: broker.local
  topic: gateways/occupancy
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("FETCH_INTERVAL", "")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("ARCHIVE_BACKEND", "")
	t.Setenv("ARCHIVE_DSN", "")
	t.Setenv("DATASET_DIR", "")
	t.Setenv("MQTT_BROKER", "")
	t.Setenv("MQTT_PORT", "not-a-number")
	t.Setenv("MQTT_TOPIC", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want file value 9090", cfg.Port)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want env value warn", cfg.LogLevel)
	}
	if cfg.FetchInterval != 5*time.Minute {
		t.Errorf("FetchInterval = %v, want 5m", cfg.FetchInterval)
	}
	if cfg.HTTPTimeout != 3*time.Second {
		t.Errorf("HTTPTimeout = %v, want 3s", cfg.HTTPTimeout)
	}
	if cfg.Archive.Backend != "sqlite" || cfg.Archive.DSN != "data/raw.db" || cfg.Archive.Dir != "dataset" {
		t.Errorf("Archive = %+v", cfg.Archive)
	}
	if !cfg.MQTT.Enabled() || cfg.MQTT.Topic != "gateways/occupancy" || cfg.MQTT.Port != 1883 {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	if cfg.Location != time.UTC {
		t.Errorf("Location = %v, want UTC", cfg.Location)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("FETCH_INTERVAL", "often")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for invalid FETCH_INTERVAL")
	}

	t.Setenv("FETCH_INTERVAL", "")
	t.Setenv("TIMEZONE", "Mars/Olympus_Mons")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown TIMEZONE")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("TIMEZONE", "UTC")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
