package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries every runtime knob of the service. Values resolve in
// three layers: compiled defaults, then the optional YAML file named by
// CONFIG_FILE, then environment variables.
type Config struct {
	DatabaseURL string `yaml:"database_url"`
	Port        string `yaml:"port"`

	RedisHost     string `yaml:"redis_host"`
	RedisPort     string `yaml:"redis_port"`
	RedisPassword string `yaml:"redis_password"`

	GDELTBaseURL      string `yaml:"gdelt_base_url"`
	GDELTDailyBaseURL string `yaml:"gdelt_daily_base_url"`

	RealtimeIntervalMin int `yaml:"realtime_interval_min"`
	DailyHourUTC        int `yaml:"daily_hour_utc"`
	TopN                int `yaml:"top_n"`

	ThemesIndex             int `yaml:"v2themes_index"`
	PersonsIndex            int `yaml:"v2persons_index"`
	OrgsIndex               int `yaml:"v2orgs_index"`
	DocumentIdentifierIndex int `yaml:"document_identifier_index"`
	LocationsIndex          int `yaml:"v2locations_index"`
	ToneIndex               int `yaml:"v2tone_index"`
	DateAddedIndex          int `yaml:"dateadded_index"`

	EnableRealtimeWorker bool `yaml:"enable_realtime_worker"`
	EnableDailyWorker    bool `yaml:"enable_daily_worker"`

	BackfillWorkers int `yaml:"backfill_workers"`
	BackfillQueue   int `yaml:"backfill_queue"`

	SkipMigration bool   `yaml:"skip_migration"`
	SchemaPath    string `yaml:"schema_path"`
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		Port:                    "8080",
		RedisPort:               "6379",
		GDELTBaseURL:            "http://data.gdeltproject.org/gdeltv2",
		GDELTDailyBaseURL:       "http://data.gdeltproject.org/gkg",
		RealtimeIntervalMin:     15,
		DailyHourUTC:            0,
		TopN:                    50,
		ThemesIndex:             7,
		PersonsIndex:            9,
		OrgsIndex:               10,
		DocumentIdentifierIndex: 4,
		LocationsIndex:          11,
		ToneIndex:               15,
		DateAddedIndex:          1,
		EnableRealtimeWorker:    true,
		EnableDailyWorker:       true,
		BackfillWorkers:         2,
		BackfillQueue:           16,
		SchemaPath:              "schema.sql",
	}
}

// Load resolves the configuration from defaults, the optional
// CONFIG_FILE, and the environment, in that order.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// RealtimeInterval is the poll cadence of the realtime worker.
func (c *Config) RealtimeInterval() time.Duration {
	min := c.RealtimeIntervalMin
	if min <= 0 {
		min = 15
	}
	return time.Duration(min) * time.Minute
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnv() {
	envStr(&c.DatabaseURL, "DATABASE_URL")
	envStr(&c.Port, "PORT")
	envStr(&c.RedisHost, "REDIS_HOST")
	envStr(&c.RedisPort, "REDIS_PORT")
	envStr(&c.RedisPassword, "REDIS_PASSWORD")
	envStr(&c.GDELTBaseURL, "GDELT_BASE_URL")
	envStr(&c.GDELTDailyBaseURL, "GDELT_DAILY_BASE_URL")
	envStr(&c.SchemaPath, "SCHEMA_PATH")

	envInt(&c.RealtimeIntervalMin, "REALTIME_INTERVAL_MIN")
	envInt(&c.DailyHourUTC, "DAILY_HOUR_UTC")
	envInt(&c.TopN, "TOP_N")
	envInt(&c.ThemesIndex, "V2THEMES_INDEX")
	envInt(&c.PersonsIndex, "V2PERSONS_INDEX")
	envInt(&c.OrgsIndex, "V2ORGS_INDEX")
	envInt(&c.DocumentIdentifierIndex, "DOCUMENT_IDENTIFIER_INDEX")
	envInt(&c.LocationsIndex, "V2LOCATIONS_INDEX")
	envInt(&c.ToneIndex, "V2TONE_INDEX")
	envInt(&c.DateAddedIndex, "DATEADDED_INDEX")
	envInt(&c.BackfillWorkers, "BACKFILL_WORKERS")
	envInt(&c.BackfillQueue, "BACKFILL_QUEUE")

	// Workers default to enabled; only the literal "false" turns one off.
	if v := os.Getenv("ENABLE_REALTIME_WORKER"); v != "" {
		c.EnableRealtimeWorker = v != "false"
	}
	if v := os.Getenv("ENABLE_DAILY_WORKER"); v != "" {
		c.EnableDailyWorker = v != "false"
	}
	if v := os.Getenv("SKIP_MIGRATION"); v != "" {
		c.SkipMigration = v == "true"
	}
}

func envStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
