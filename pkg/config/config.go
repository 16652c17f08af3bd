package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. It is loaded once and passed
// explicitly to the commands and servers that need it.
type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Interest struct {
		DailyRate string `yaml:"daily_rate"`
	} `yaml:"interest"`
	Server struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Schedule struct {
		SnapshotCron string `yaml:"snapshot_cron"`
	} `yaml:"schedule"`
	Debug bool `yaml:"debug"`
}

// CronParser accepts the six-field (with seconds) specs used by the scheduler.
var CronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// Environment variable overrides
	if v := os.Getenv("LEDGER_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LEDGER_DAILY_RATE"); v != "" {
		cfg.Interest.DailyRate = v
	}
	if v := os.Getenv("LEDGER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("LEDGER_SNAPSHOT_CRON"); v != "" {
		cfg.Schedule.SnapshotCron = v
	}
	if v := os.Getenv("LEDGER_DEBUG"); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = debug
		}
	}

	// Defaults
	if cfg.Database.Path == "" {
		cfg.Database.Path = "db.sqlite3"
	}
	if cfg.Interest.DailyRate == "" {
		cfg.Interest.DailyRate = "0.00035"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:8080"}
	}
	if cfg.Schedule.SnapshotCron == "" {
		cfg.Schedule.SnapshotCron = "0 5 0 * * *"
	}

	return cfg, nil
}

// Validate checks that every field holds a usable value.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if _, err := c.DailyRate(); err != nil {
		return err
	}
	if _, err := CronParser.Parse(c.Schedule.SnapshotCron); err != nil {
		return fmt.Errorf("schedule.snapshot_cron %q: %w", c.Schedule.SnapshotCron, err)
	}
	return nil
}

// DailyRate parses the configured daily interest rate.
func (c *Config) DailyRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.Interest.DailyRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("interest.daily_rate %q is not a number", c.Interest.DailyRate)
	}
	if rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("interest.daily_rate must not be negative")
	}
	return rate, nil
}
