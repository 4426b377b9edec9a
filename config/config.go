/*
Package config loads server configuration from the environment.

ENVIRONMENT:
  PAYROLL_PORT               HTTP server port (default: 8080)
  PAYROLL_DB                 SQLite database path (default: payroll.db)
                             Use ":memory:" for an in-memory database
  PAYROLL_LOG_LEVEL          trace, debug, info, warn, error (default: info)
  PAYROLL_LOG_JSON           JSON log lines instead of console output
  PAYROLL_CORS_ORIGINS       Comma-separated allowed origins
  PAYROLL_RULESETS           Ruleset catalog (JSON or YAML) loaded at startup
  PAYROLL_GENERATE_SCHEDULE  Cron spec of the monthly payslip run
                             (default: "0 6 1 * *", 06:00 on the 1st)
  PAYROLL_GENERATE_LINE_TYPE Line type of generated payslip lines;
                             generation is disabled when empty
  PAYROLL_SHUTDOWN_TIMEOUT   Graceful shutdown deadline (default: 30s)

Command-line flags in cmd/server override the port and database path.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
)

// Config is the server configuration.
type Config struct {
	Port     int    `env:"PAYROLL_PORT"      envDefault:"8080"`
	DBPath   string `env:"PAYROLL_DB"        envDefault:"payroll.db"`
	RuleSets string `env:"PAYROLL_RULESETS"`

	Log  LogConfig
	CORS CORSConfig

	GenerateSchedule string `env:"PAYROLL_GENERATE_SCHEDULE"  envDefault:"0 6 1 * *"`
	GenerateLineType string `env:"PAYROLL_GENERATE_LINE_TYPE"`

	ShutdownTimeout time.Duration `env:"PAYROLL_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level string `env:"PAYROLL_LOG_LEVEL" envDefault:"info"`
	JSON  bool   `env:"PAYROLL_LOG_JSON"`
}

// CORSConfig lists the origins the API answers to.
type CORSConfig struct {
	Origins []string `env:"PAYROLL_CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:8080"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the environment parser cannot.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.GenerateLineType != "" {
		if _, err := cron.ParseStandard(c.GenerateSchedule); err != nil {
			return fmt.Errorf("invalid generate schedule %q: %w", c.GenerateSchedule, err)
		}
	}
	return nil
}
