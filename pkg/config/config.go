package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port           string
		Env            string
		Timeout        time.Duration
		GRPCPort       string
		MetricsEnabled bool
	}

	// Database configuration
	Database struct {
		Driver   string
		Path     string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
	}

	// Redis configuration. An empty URL keeps broadcasting in-process.
	Redis struct {
		URL           string
		ChannelPrefix string
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Generation configuration
	Generation struct {
		Backend           string
		Command           string
		Model             string
		OllamaURL         string
		OpenAIBaseURL     string
		Timeout           time.Duration
		ContextWindowSize int
		PromptWindowSize  int
		BreakerThreshold  int
		BreakerRetry      time.Duration
	}

	// Cache configuration. A zero GameTTL disables the game cache.
	Cache struct {
		GameTTL      time.Duration
		GameMaxItems int
	}

	// Vault configuration
	Vault struct {
		Enabled     bool
		Address     string
		Token       string
		SecretsPath string
	}

	// OpenAPI configuration
	OpenAPI struct {
		SchemaPath string
	}
}

// Generation backends
const (
	BackendCLI    = "cli"
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
)

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		_ = godotenv.Load()

		instance = Load()
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Load reads a fresh Config from the environment without touching the singleton
func Load() *Config {
	cfg := &Config{}

	// Server config
	cfg.Server.Port = getEnvString("PORT", "3000")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
	cfg.Server.GRPCPort = getEnvString("GRPC_PORT", "9094")
	cfg.Server.MetricsEnabled = getEnvBool("METRICS_ENABLED", true)

	// Database config
	cfg.Database.Driver = strings.ToLower(getEnvString("DB_DRIVER", "sqlite"))
	cfg.Database.Path = getEnvString("DB_PATH", "db.sqlite")
	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "tabletop")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)

	// Redis config
	cfg.Redis.URL = getEnvString("REDIS_URL", "")
	cfg.Redis.ChannelPrefix = getEnvString("REDIS_CHANNEL_PREFIX", "tabletop")

	// Security config
	cfg.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 5))
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	cfg.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})

	// Logging config
	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	// Generation config
	cfg.Generation.Backend = strings.ToLower(getEnvString("GENERATION_BACKEND", BackendCLI))
	cfg.Generation.Command = getEnvString("GENERATION_COMMAND", "ollama")
	cfg.Generation.Model = getEnvString("GENERATION_MODEL", "mistral")
	cfg.Generation.OllamaURL = getEnvString("OLLAMA_URL", "http://localhost:11434")
	cfg.Generation.OpenAIBaseURL = getEnvString("OPENAI_BASE_URL", "")
	cfg.Generation.Timeout = getEnvDuration("GENERATION_TIMEOUT", 90*time.Second)
	cfg.Generation.ContextWindowSize = getEnvInt("CONTEXT_WINDOW_SIZE", 20)
	cfg.Generation.PromptWindowSize = getEnvInt("PROMPT_WINDOW_SIZE", 12)
	cfg.Generation.BreakerThreshold = getEnvInt("BREAKER_FAILURE_THRESHOLD", 5)
	cfg.Generation.BreakerRetry = getEnvDuration("BREAKER_RETRY_TIMEOUT", 60*time.Second)

	// Cache config
	cfg.Cache.GameTTL = getEnvDuration("GAME_CACHE_TTL", 30*time.Second)
	cfg.Cache.GameMaxItems = getEnvInt("GAME_CACHE_MAX_ITEMS", 256)

	// Vault config
	cfg.Vault.Enabled = getEnvBool("VAULT_ENABLED", false)
	cfg.Vault.Address = getEnvString("VAULT_ADDR", "http://localhost:8200")
	cfg.Vault.Token = getEnvString("VAULT_TOKEN", "")
	cfg.Vault.SecretsPath = getEnvString("VAULT_SECRETS_PATH", "secret/data/tabletop")

	// OpenAPI config
	cfg.OpenAPI.SchemaPath = getEnvString("OPENAPI_SCHEMA_PATH", "api/openapi.yaml")

	return cfg
}

// IsDevelopment reports whether the service runs in the development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
