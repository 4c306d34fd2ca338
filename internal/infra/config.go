package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Abuse store backends selectable through ABUSE_STORE.
const (
	AbuseStoreRedis    = "redis"
	AbuseStorePostgres = "postgres"
	AbuseStoreMemory   = "memory"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	JWTSecret          string
	CORSAllowedOrigins []string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int

	DatabaseURL      string
	DatabaseMaxConns int
	RedisURL         string

	AbuseStore         string
	AbuseWindow        time.Duration
	AbuseThresholdLow  int
	AbuseThresholdMid  int
	AbuseThresholdHigh int
	PromptPolicyPath   string

	ModerationBaseURL  string
	ModerationAPIKey   string
	ModerationModel    string
	ModerationTimeout  time.Duration
	ModerationFailOpen bool

	OrchestratorBaseURL string
	OrchestratorToken   string
	OrchestratorTimeout time.Duration
	SignalsEndpoint     string

	MaxPromptLength         int
	MaxNegativePromptLength int
	MaxRandomSeed           int64
	WhatIfETAHorizon        time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DatabaseMaxConns: getEnvInt("DB_MAX_CONNS", 4),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),

		AbuseStore:         strings.ToLower(getEnv("ABUSE_STORE", AbuseStoreRedis)),
		AbuseWindow:        time.Hour * time.Duration(getEnvInt("ABUSE_WINDOW_HOURS", 24)),
		AbuseThresholdLow:  getEnvInt("ABUSE_THRESHOLD_LOW", 3),
		AbuseThresholdMid:  getEnvInt("ABUSE_THRESHOLD_MID", 5),
		AbuseThresholdHigh: getEnvInt("ABUSE_THRESHOLD_HIGH", 8),
		PromptPolicyPath:   os.Getenv("PROMPT_POLICY_PATH"),

		ModerationBaseURL:  getEnv("MODERATION_BASE_URL", "https://api.openai.com/v1"),
		ModerationAPIKey:   os.Getenv("MODERATION_API_KEY"),
		ModerationModel:    getEnv("MODERATION_MODEL", "omni-moderation-latest"),
		ModerationTimeout:  time.Second * time.Duration(getEnvInt("MODERATION_TIMEOUT_SECONDS", 5)),
		ModerationFailOpen: getEnvBool("MODERATION_FAIL_OPEN", true),

		OrchestratorBaseURL: getEnv("ORCHESTRATOR_BASE_URL", "https://orchestration.civitai.com"),
		OrchestratorToken:   os.Getenv("ORCHESTRATOR_TOKEN"),
		OrchestratorTimeout: time.Second * time.Duration(getEnvInt("ORCHESTRATOR_TIMEOUT_SECONDS", 30)),
		SignalsEndpoint:     strings.TrimRight(getEnv("SIGNALS_ENDPOINT", "http://localhost:8081"), "/"),

		MaxPromptLength:         getEnvInt("MAX_PROMPT_LENGTH", 1500),
		MaxNegativePromptLength: getEnvInt("MAX_NEGATIVE_PROMPT_LENGTH", 1000),
		MaxRandomSeed:           getEnvInt64("MAX_RANDOM_SEED", 2147483647),
		WhatIfETAHorizon:        time.Minute * time.Duration(getEnvInt("WHATIF_ETA_MINUTES", 10)),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	switch cfg.AbuseStore {
	case AbuseStoreRedis, AbuseStoreMemory:
	case AbuseStorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when ABUSE_STORE=postgres")
		}
	default:
		return nil, fmt.Errorf("ABUSE_STORE must be one of redis, postgres, memory (got %q)", cfg.AbuseStore)
	}

	if cfg.MaxRandomSeed < 1 || cfg.MaxRandomSeed > 4294967295 {
		return nil, fmt.Errorf("MAX_RANDOM_SEED must be between 1 and 4294967295")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
