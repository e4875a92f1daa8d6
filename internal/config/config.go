package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	// Timezone every stored timestamp is normalized into; hour-of-day
	// aggregates are computed in this zone.
	Timezone string         `yaml:"timezone"`
	Location *time.Location `yaml:"-"`

	// FetchInterval controls how often the feed is polled (0 disables polling).
	FetchInterval time.Duration `yaml:"fetch_interval"`
	HTTPTimeout   time.Duration `yaml:"http_timeout"`
	FeedURL       string        `yaml:"feed_url"`

	Archive ArchiveConfig `yaml:"archive"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
}

type ArchiveConfig struct {
	Backend string `yaml:"backend"` // dir | sqlite | postgres | none
	Dir     string `yaml:"dir"`
	DSN     string `yaml:"dsn"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"` // empty disables the subscriber
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

// Enabled reports whether an MQTT broker is configured.
func (m MQTTConfig) Enabled() bool {
	return strings.TrimSpace(m.Broker) != ""
}

func defaults() *AppConfig {
	return &AppConfig{
		Port:          "8080",
		LogLevel:      "info",
		Timezone:      "Asia/Taipei",
		FetchInterval: time.Minute,
		HTTPTimeout:   10 * time.Second,
		Archive: ArchiveConfig{
			Backend: "dir",
			Dir:     "dataset",
		},
		MQTT: MQTTConfig{
			Port:     1883,
			ClientID: "bike-occupancy",
			Topic:    "bike/occupancy",
		},
	}
}

// Load reads configuration with sensible defaults. Values come, in increasing
// precedence, from the defaults, the YAML file at path (or CONFIG_FILE when
// path is empty), and the environment (including a .env file).
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := defaults()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.Port = getenvDefault("PORT", cfg.Port)
	cfg.LogLevel = getenvDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.Timezone = getenvDefault("TIMEZONE", cfg.Timezone)
	cfg.FeedURL = getenvDefault("FEED_URL", cfg.FeedURL)

	var err error
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", cfg.FetchInterval); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", cfg.HTTPTimeout); err != nil {
		return nil, err
	}

	cfg.Archive.Backend = getenvDefault("ARCHIVE_BACKEND", cfg.Archive.Backend)
	cfg.Archive.Dir = getenvDefault("DATASET_DIR", cfg.Archive.Dir)
	cfg.Archive.DSN = getenvDefault("ARCHIVE_DSN", cfg.Archive.DSN)

	cfg.MQTT.Broker = getenvDefault("MQTT_BROKER", cfg.MQTT.Broker)
	cfg.MQTT.Port = getenvInt("MQTT_PORT", cfg.MQTT.Port)
	cfg.MQTT.ClientID = getenvDefault("MQTT_CLIENT_ID", cfg.MQTT.ClientID)
	cfg.MQTT.Topic = getenvDefault("MQTT_TOPIC", cfg.MQTT.Topic)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	return cfg, nil
}

func loadFile(path string, cfg *AppConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
