/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/friendsincode/notification_central/internal/notifications"
	"github.com/friendsincode/notification_central/internal/tempo"
)

// StoreBackend selects where notification definitions live.
type StoreBackend string

const (
	StoreNotion   StoreBackend = "notion"
	StorePostgres StoreBackend = "postgres"
	StoreMySQL    StoreBackend = "mysql"
	StoreSQLite   StoreBackend = "sqlite"
)

// IsSQL reports whether the backend is served by gorm.
func (b StoreBackend) IsSQL() bool {
	return b == StorePostgres || b == StoreMySQL || b == StoreSQLite
}

// PropertyNames are the Notion property names the store decodes.
type PropertyNames struct {
	Title         string
	Active        string
	Tempo         string
	Primed        string
	TriggerKey    string
	TriggerToggle string
}

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	LogLevel    string

	StoreBackend     StoreBackend
	NotionAPIKey     string
	NotionDatabaseID string
	NotionBaseURL    string
	NotionVersion    string
	Properties       PropertyNames
	DBDSN            string

	Timezone      string
	ScheduleShape tempo.Shape
	TriggerMode   notifications.Mode
	TriggerKey    string

	RateLimitRPS     float64
	RateLimitBurst   int
	WriteConcurrency int
	TickCron         string

	HTTPBind string
	HTTPPort int

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Multi-instance configuration
	LeaderElectionEnabled bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	InstanceID            string

	location *time.Location
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnvAny([]string{"NC_ENV"}, "production"),
		LogLevel:    getEnvAny([]string{"NC_LOG_LEVEL", "LOG_LEVEL"}, ""),

		StoreBackend:     StoreBackend(strings.ToLower(getEnvAny([]string{"NC_STORE_BACKEND"}, string(StoreNotion)))),
		NotionAPIKey:     getEnvAny([]string{"NC_NOTION_API_KEY", "NOTION_API_KEY"}, ""),
		NotionDatabaseID: getEnvAny([]string{"NC_NOTIFICATION_DB_ID", "NOTIFICATION_DB_ID"}, ""),
		NotionBaseURL:    getEnvAny([]string{"NC_NOTION_BASE_URL"}, "https://api.notion.com/v1"),
		NotionVersion:    getEnvAny([]string{"NC_NOTION_VERSION"}, "2022-06-28"),
		Properties: PropertyNames{
			Title:         getEnvAny([]string{"NC_PROP_NAME"}, "Name"),
			Active:        getEnvAny([]string{"NC_PROP_ACTIVE"}, "Is Active?"),
			Tempo:         getEnvAny([]string{"NC_PROP_TEMPO"}, "Tempo"),
			Primed:        getEnvAny([]string{"NC_PROP_PRIMED"}, "Primed?"),
			TriggerKey:    getEnvAny([]string{"NC_PROP_TRIGGER_KEY"}, "Trigger: Key"),
			TriggerToggle: getEnvAny([]string{"NC_PROP_TRIGGER_TOGGLE"}, "Trigger: Toggle"),
		},
		DBDSN: getEnvAny([]string{"NC_DB_DSN"}, ""),

		Timezone:   getEnvAny([]string{"NC_TIMEZONE", "TIMEZONE"}, "America/Los_Angeles"),
		TriggerKey: getEnvAny([]string{"NC_TRIGGER_KEY"}, "NC_TRIGGER_V1"),

		RateLimitRPS:     getEnvFloatAny([]string{"NC_RATE_LIMIT_RPS", "GLOBAL_RPS"}, 3),
		RateLimitBurst:   getEnvIntAny([]string{"NC_RATE_LIMIT_BURST", "TOKEN_BUCKET_CAPACITY"}, 3),
		WriteConcurrency: getEnvIntAny([]string{"NC_WRITE_CONCURRENCY"}, 1),
		TickCron:         getEnvAny([]string{"NC_TICK_CRON"}, "0,15,30,45 * * * *"),

		HTTPBind: getEnvAny([]string{"NC_HTTP_BIND"}, "127.0.0.1"),
		HTTPPort: getEnvIntAny([]string{"NC_HTTP_PORT"}, 9090),

		TracingEnabled:    getEnvBoolAny([]string{"NC_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"NC_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"NC_TRACING_SAMPLE_RATE"}, 1.0),

		LeaderElectionEnabled: getEnvBoolAny([]string{"NC_LEADER_ELECTION_ENABLED"}, false),
		RedisAddr:             getEnvAny([]string{"NC_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword:         getEnvAny([]string{"NC_REDIS_PASSWORD"}, ""),
		RedisDB:               getEnvIntAny([]string{"NC_REDIS_DB"}, 0),
		InstanceID:            getEnvAny([]string{"NC_INSTANCE_ID"}, ""),
	}

	switch {
	case cfg.StoreBackend == StoreNotion:
		if cfg.NotionAPIKey == "" {
			return nil, fmt.Errorf("NC_NOTION_API_KEY or NOTION_API_KEY must be provided")
		}
		if cfg.NotionDatabaseID == "" {
			return nil, fmt.Errorf("NC_NOTIFICATION_DB_ID or NOTIFICATION_DB_ID must be provided")
		}
	case cfg.StoreBackend.IsSQL():
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("NC_DB_DSN must be provided for the %s store", cfg.StoreBackend)
		}
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	cfg.location = loc

	if cfg.ScheduleShape, err = tempo.ParseShape(getEnvAny([]string{"NC_SCHEDULE_SHAPE"}, "")); err != nil {
		return nil, err
	}
	if cfg.TriggerMode, err = notifications.ParseMode(getEnvAny([]string{"NC_TRIGGER_MODE"}, "")); err != nil {
		return nil, err
	}

	if cfg.RateLimitRPS <= 0 {
		return nil, fmt.Errorf("NC_RATE_LIMIT_RPS must be positive, got %v", cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst <= 0 {
		return nil, fmt.Errorf("NC_RATE_LIMIT_BURST must be positive, got %d", cfg.RateLimitBurst)
	}
	if cfg.WriteConcurrency <= 0 {
		cfg.WriteConcurrency = 1
	}
	if strings.TrimSpace(cfg.TriggerKey) == "" {
		return nil, fmt.Errorf("NC_TRIGGER_KEY must not be blank")
	}

	return cfg, nil
}

// Location returns the tick timezone resolved during Load.
func (c *Config) Location() *time.Location {
	if c == nil || c.location == nil {
		return time.UTC
	}
	return c.location
}

// HTTPAddr returns the ops server listen address.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
