package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	App      AppConfig
	Push     PushConfig
	Agent    AgentConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret            string
	RefreshExpiration string
	AccessExpiration  string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port     int
	Env      string
	LogLevel string
}

// PushConfig holds the VAPID keypair used to sign Web Push requests.
// Keys are base64url raw (unpadded).
type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subject         string
	TTLSeconds      int
}

// AgentConfig holds the client runtime configuration
type AgentConfig struct {
	ServerURL      string
	CacheDir       string
	PollInterval   time.Duration
	APIPathPrefix  string
	RequestTimeout time.Duration
}

func Load() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, using process environment")
	}

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "vecinapp-feed"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:     appPort,
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:            getEnv("JWT_SECRET_KEY", ""),
		RefreshExpiration: getEnv("JWT_REFRESH_EXPIRATION_TIME", "168h"),
		AccessExpiration:  getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	// Web Push configuration
	pushTTL, err := strconv.Atoi(getEnv("PUSH_TTL_SECONDS", "86400"))
	if err != nil {
		return nil, fmt.Errorf("invalid PUSH_TTL_SECONDS: %w", err)
	}
	config.Push = PushConfig{
		VAPIDPublicKey:  getEnv("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: getEnv("VAPID_PRIVATE_KEY", ""),
		Subject:         getEnv("VAPID_SUBJECT", "mailto:soporte@vecinapp.example"),
		TTLSeconds:      pushTTL,
	}

	// Agent (client runtime) configuration
	pollInterval, err := time.ParseDuration(getEnv("AGENT_POLL_INTERVAL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid AGENT_POLL_INTERVAL: %w", err)
	}
	requestTimeout, err := time.ParseDuration(getEnv("AGENT_REQUEST_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid AGENT_REQUEST_TIMEOUT: %w", err)
	}
	config.Agent = AgentConfig{
		ServerURL:      getEnv("AGENT_SERVER_URL", "http://localhost:8080"),
		CacheDir:       getEnv("AGENT_CACHE_DIR", defaultCacheDir()),
		PollInterval:   pollInterval,
		APIPathPrefix:  getEnv("AGENT_API_PATH_PREFIX", "/api/v1"),
		RequestTimeout: requestTimeout,
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadAgent loads only the client runtime configuration. The agent never
// touches the database or signing keys, so none of the server-side required
// fields apply.
func LoadAgent() (*AgentConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	pollInterval, err := time.ParseDuration(getEnv("AGENT_POLL_INTERVAL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid AGENT_POLL_INTERVAL: %w", err)
	}
	requestTimeout, err := time.ParseDuration(getEnv("AGENT_REQUEST_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid AGENT_REQUEST_TIMEOUT: %w", err)
	}

	return &AgentConfig{
		ServerURL:      getEnv("AGENT_SERVER_URL", "http://localhost:8080"),
		CacheDir:       getEnv("AGENT_CACHE_DIR", defaultCacheDir()),
		PollInterval:   pollInterval,
		APIPathPrefix:  getEnv("AGENT_API_PATH_PREFIX", "/api/v1"),
		RequestTimeout: requestTimeout,
	}, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Push.VAPIDPublicKey == "" {
		return fmt.Errorf("VAPID_PUBLIC_KEY is required")
	}
	if c.Push.VAPIDPrivateKey == "" {
		return fmt.Errorf("VAPID_PRIVATE_KEY is required")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".vecinapp"
	}
	return strings.TrimRight(dir, "/") + "/vecinapp"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
