package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	LLMProvider     string // "anthropic" or "openai"
	AnthropicAPIKey string
	OpenAIAPIKey    string
	ModelName       string

	RedisURL string
	DataDir  string

	CompactionInterval  int
	HighWaterImportance int
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),

		LLMProvider:     getEnv("LLM_PROVIDER", "anthropic"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		ModelName:       getEnv("MODEL_NAME", "claude-sonnet-4-20250514"),

		RedisURL: getEnv("REDIS_URL", "localhost:6379"),
		DataDir:  getEnv("DATA_DIR", "./data"),
	}

	var err error
	cfg.CompactionInterval, err = getEnvInt("COMPACTION_INTERVAL", 5)
	if err != nil {
		return nil, err
	}
	cfg.HighWaterImportance, err = getEnvInt("HIGH_WATER_IMPORTANCE", 9)
	if err != nil {
		return nil, err
	}

	if cfg.CompactionInterval < 1 {
		return nil, fmt.Errorf("COMPACTION_INTERVAL must be at least 1")
	}

	return cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
