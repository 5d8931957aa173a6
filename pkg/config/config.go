package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment keys that commands may require before doing any I/O.
const (
	KeyDatabaseURL = "DB_URL"
	KeyLLMAPIKey   = "OPENROUTER_API_KEY"
	KeyLLMModel    = "OPENROUTER_MODEL"
	KeyFeedURL     = "API_URL"
	KeyFeedToken   = "API_TOKEN"
)

// Required key sets per command.
var (
	IngestKeys = []string{KeyDatabaseURL, KeyFeedURL, KeyFeedToken}
	LLMKeys    = []string{KeyDatabaseURL, KeyLLMAPIKey, KeyLLMModel}
	AllKeys    = []string{KeyDatabaseURL, KeyLLMAPIKey, KeyLLMModel, KeyFeedURL, KeyFeedToken}
)

// Invalid label policies for the classifier.
const (
	InvalidPolicyOthers = "others"
	InvalidPolicySkip   = "skip"
)

// LLM providers.
const (
	ProviderOpenRouter = "openrouter"
	ProviderEino       = "eino"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	Database   DatabaseConfig
	Redis      RedisConfig
	Feed       FeedConfig
	LLM        LLMConfig
	Classifier ClassifierConfig
	Simulator  SimulatorConfig
	Schedule   ScheduleConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// FeedConfig holds the analyst rating feed settings
type FeedConfig struct {
	URL       string
	Token     string
	Timeout   time.Duration
	PageDelay time.Duration
}

// LLMConfig holds the language model endpoint settings
type LLMConfig struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration
	Referer  string
	Title    string

	// Requests per minute across all processes sharing Redis. 0 disables it.
	RateLimitPerMinute int
}

// ClassifierConfig holds sector classification settings
type ClassifierConfig struct {
	BatchSize     int
	BatchDelay    time.Duration
	MaxAttempts   int
	InvalidPolicy string
}

// SimulatorConfig holds snapshot simulation settings
type SimulatorConfig struct {
	CompoundTargets bool
	Seed            int64 // 0 = time based
}

// ScheduleConfig holds cron expressions (with seconds) for scheduled jobs
type ScheduleConfig struct {
	Ingest   string
	Classify string
	Simulate string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
//
// Required keys are not checked here; each command calls Require with the
// keys it actually needs.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv(KeyDatabaseURL, getEnv("DATABASE_URL", "")),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Feed: FeedConfig{
			URL:       getEnv(KeyFeedURL, ""),
			Token:     getEnv(KeyFeedToken, ""),
			Timeout:   getEnvAsDuration("API_TIMEOUT", "30s"),
			PageDelay: getEnvAsDuration("PAGE_DELAY", "1s"),
		},

		LLM: LLMConfig{
			Provider:           strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenRouter)),
			BaseURL:            strings.TrimRight(getEnv("LLM_BASE_URL", "https://openrouter.ai/api/v1"), "/"),
			APIKey:             getEnv(KeyLLMAPIKey, ""),
			Model:              getEnv(KeyLLMModel, ""),
			Timeout:            getEnvAsDuration("LLM_TIMEOUT", "60s"),
			Referer:            getEnv("LLM_HTTP_REFERER", ""),
			Title:              getEnv("LLM_APP_TITLE", "stockgame"),
			RateLimitPerMinute: getEnvAsInt("LLM_RATE_LIMIT_PER_MINUTE", 0),
		},

		Classifier: ClassifierConfig{
			BatchSize:     getEnvAsInt("CLASSIFY_BATCH_SIZE", 10),
			BatchDelay:    getEnvAsDuration("CLASSIFY_BATCH_DELAY", "500ms"),
			MaxAttempts:   getEnvAsInt("CLASSIFY_MAX_ATTEMPTS", 3),
			InvalidPolicy: strings.ToLower(getEnv("CLASSIFY_INVALID_POLICY", InvalidPolicyOthers)),
		},

		Simulator: SimulatorConfig{
			CompoundTargets: getEnvAsBool("SIM_COMPOUND_TARGETS", false),
			Seed:            int64(getEnvAsInt("SIM_SEED", 0)),
		},

		Schedule: ScheduleConfig{
			Ingest:   getEnv("SCHEDULE_INGEST", "0 0 6 * * *"),
			Classify: getEnv("SCHEDULE_CLASSIFY", "0 15 * * * *"),
			Simulate: getEnv("SCHEDULE_SIMULATE", "0 0 7 * * *"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFile loads an explicit .env file before reading the environment.
// Variables already set in the process environment win.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("load env file %s: %w", path, err)
	}
	return Load()
}

// MissingKeysError lists required environment keys that are unset
type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("required environment variables are not set: %s", strings.Join(e.Keys, ", "))
}

// Require checks that every key has a non-empty value
func (c *Config) Require(keys ...string) error {
	values := map[string]string{
		KeyDatabaseURL: c.Database.URL,
		KeyLLMAPIKey:   c.LLM.APIKey,
		KeyLLMModel:    c.LLM.Model,
		KeyFeedURL:     c.Feed.URL,
		KeyFeedToken:   c.Feed.Token,
	}

	var missing []string
	for _, key := range keys {
		if strings.TrimSpace(values[key]) == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return &MissingKeysError{Keys: missing}
	}
	return nil
}

// validate checks option values, not presence
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" && c.Env != "test" {
		return fmt.Errorf("ENV must be one of: development, staging, production, test")
	}

	if c.LLM.Provider != ProviderOpenRouter && c.LLM.Provider != ProviderEino {
		return fmt.Errorf("LLM_PROVIDER must be one of: %s, %s", ProviderOpenRouter, ProviderEino)
	}

	if c.Classifier.InvalidPolicy != InvalidPolicyOthers && c.Classifier.InvalidPolicy != InvalidPolicySkip {
		return fmt.Errorf("CLASSIFY_INVALID_POLICY must be one of: %s, %s", InvalidPolicyOthers, InvalidPolicySkip)
	}

	if c.Classifier.BatchSize <= 0 {
		return fmt.Errorf("CLASSIFY_BATCH_SIZE must be positive")
	}

	if c.Classifier.MaxAttempts <= 0 {
		return fmt.Errorf("CLASSIFY_MAX_ATTEMPTS must be positive")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
