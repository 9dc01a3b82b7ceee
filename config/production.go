// Package config provides configuration management and environment variable handling for the application
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// EngineConfig holds all configuration for the ad serving engine
type EngineConfig struct {
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Logging  LoggingConfig  `json:"logging"`
	Serving  ServingConfig  `json:"serving" validate:"required"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
}

type RedisConfig struct {
	URL      string `json:"url"`
	DB       int    `json:"db"`
	Password string `json:"password"`
}

type LoggingConfig struct {
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

// PredictorWeights maps each scoring feature to its weight. The closed set of
// named features replaces positional indexing so a missing or negative weight
// is caught at load time.
type PredictorWeights struct {
	IntentChild        float64 `json:"intent_child" validate:"gte=0"`
	IntentParent       float64 `json:"intent_parent" validate:"gte=0"`
	InterestChild      float64 `json:"interest_child" validate:"gte=0"`
	InterestParent     float64 `json:"interest_parent" validate:"gte=0"`
	AdLastSeen         float64 `json:"ad_last_seen" validate:"gte=0"`
	AdvertiserLastSeen float64 `json:"advertiser_last_seen" validate:"gte=0"`
	Priority           float64 `json:"priority" validate:"gte=0"`
}

// HistoryWindowConfig bounds the browsing history fetch used by the
// anti-targeting rule
type HistoryWindowConfig struct {
	MaxCount int `json:"max_count" validate:"gt=0"`
	DaysAgo  int `json:"days_ago" validate:"gt=0"`
}

type ServingConfig struct {
	Weights           PredictorWeights    `json:"weights"`
	History           HistoryWindowConfig `json:"history"`
	CycleInterval     time.Duration       `json:"cycle_interval"`
	AntiTargetingPath string              `json:"anti_targeting_path"`
}

// LoadEngineConfig loads configuration from environment variables with
// production defaults and validates it
func LoadEngineConfig() (*EngineConfig, error) {
	cfg := &EngineConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "adserving"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
		},
		Redis: RedisConfig{
			URL:      getEnvString("REDIS_URL", "localhost:6379"),
			DB:       getEnvInt("REDIS_DB", 0),
			Password: getEnvString("REDIS_PASSWORD", ""),
		},
		Logging: LoggingConfig{
			File:       getEnvString("LOG_FILE", ""),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 28),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Serving: ServingConfig{
			Weights: PredictorWeights{
				IntentChild:        getEnvFloat("WEIGHT_INTENT_CHILD", 1.0),
				IntentParent:       getEnvFloat("WEIGHT_INTENT_PARENT", 1.0),
				InterestChild:      getEnvFloat("WEIGHT_INTEREST_CHILD", 1.0),
				InterestParent:     getEnvFloat("WEIGHT_INTEREST_PARENT", 1.0),
				AdLastSeen:         getEnvFloat("WEIGHT_AD_LAST_SEEN", 1.0),
				AdvertiserLastSeen: getEnvFloat("WEIGHT_ADVERTISER_LAST_SEEN", 1.0),
				Priority:           getEnvFloat("WEIGHT_PRIORITY", 1.0),
			},
			History: HistoryWindowConfig{
				MaxCount: getEnvInt("BROWSING_HISTORY_MAX_COUNT", 5000),
				DaysAgo:  getEnvInt("BROWSING_HISTORY_DAYS_AGO", 180),
			},
			CycleInterval:     getEnvDuration("SERVING_CYCLE_INTERVAL", 2*time.Minute),
			AntiTargetingPath: getEnvString("ANTI_TARGETING_PATH", "resources/anti_targeting.json"),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid engine configuration: %w", err)
	}

	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
