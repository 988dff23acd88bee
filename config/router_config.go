package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// generateWorkerID creates a unique worker ID using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "router"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string

	// Logging
	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// Database
	DatabaseURL string
	DBDriver    string
	SQLitePath  string
	DBMaxConns  int
	RedisURL    string

	// OpenAI
	OpenAIAPIKey   string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64

	// Classification
	ClassifierAITimeout time.Duration
	ClassifierCacheTTL  time.Duration

	// Learning
	LearningRefreshEvery    int
	LearningAnalyzeInterval time.Duration

	// Pipeline
	BatchConcurrency int

	// Worker
	WorkerID   string
	WorkerMax  int
	QueueSize  int
	MaxRetries int

	// Auth / API
	JWTSecret       string
	RateLimitPerMin int
	AllowedOrigins  []string

	// Team directory override
	TeamsFile string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBDriver:    getEnv("DB_DRIVER", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "query_router.db"),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 25),
		RedisURL:    getEnv("REDIS_URL", ""),

		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 1024),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.1),

		ClassifierAITimeout: time.Duration(getEnvInt("CLASSIFIER_AI_TIMEOUT_SEC", 15)) * time.Second,
		ClassifierCacheTTL:  time.Duration(getEnvInt("CLASSIFIER_CACHE_TTL_MIN", 30)) * time.Minute,

		LearningRefreshEvery:    getEnvInt("LEARNING_REFRESH_EVERY", 10),
		LearningAnalyzeInterval: time.Duration(getEnvInt("LEARNING_ANALYZE_INTERVAL_MIN", 60)) * time.Minute,

		BatchConcurrency: getEnvInt("BATCH_CONCURRENCY", 4),

		WorkerID:   getEnv("WORKER_ID", generateWorkerID()),
		WorkerMax:  getEnvInt("WORKER_MAX", 8),
		QueueSize:  getEnvInt("WORKER_QUEUE_SIZE", 256),
		MaxRetries: getEnvInt("CONSUMER_MAX_RETRIES", 3),

		JWTSecret:       getEnv("JWT_SECRET", ""),
		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MIN", 120),
		AllowedOrigins:  getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		TeamsFile: getEnv("TEAMS_FILE", ""),
	}

	if cfg.DBDriver == "" {
		cfg.DBDriver = driverFor(cfg.DatabaseURL)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// driverFor picks pgx for postgres URLs and sqlite otherwise.
func driverFor(url string) string {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return "pgx"
	}
	return "sqlite"
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "pgx", "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for driver %s", c.DBDriver)
		}
	case "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.BatchConcurrency < 1 {
		c.BatchConcurrency = 1
	}
	return nil
}

// DSN returns the connection string for the selected driver.
func (c *Config) DSN() string {
	if c.DBDriver == "sqlite" {
		if c.DatabaseURL != "" && !strings.Contains(c.DatabaseURL, "://") {
			return c.DatabaseURL
		}
		return c.SQLitePath
	}
	return c.DatabaseURL
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
