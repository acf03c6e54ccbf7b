package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server reads from the environment.
type Config struct {
	Port           string
	Env            string
	JWTSecret      string
	AllowedOrigins []string

	DBType      string
	DatabaseURL string
	MongoURI    string
	MongoDB     string

	RedisURL       string
	UnreadCache    string
	RealtimeBroker string

	TypingTTL        time.Duration
	MessageRateLimit int
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),

		DBType:   getEnv("DB_TYPE", "postgres"),
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGO_DB", "alumni"),

		RedisURL:       os.Getenv("REDIS_URL"),
		UnreadCache:    getEnv("UNREAD_CACHE", "memory"),
		RealtimeBroker: getEnv("REALTIME_BROKER", "local"),
	}

	var err error
	if cfg.TypingTTL, err = getEnvDuration("TYPING_TTL", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.MessageRateLimit, err = getEnvInt("MESSAGE_RATE_LIMIT", 50); err != nil {
		return nil, err
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && cfg.DBType == "postgres" {
		cfg.DatabaseURL = postgresURLFromParts()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}

	switch c.DBType {
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("database connection details missing: set DATABASE_URL or DB_HOST, DB_NAME and DB_USER")
		}
	case "mongo":
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required when DB_TYPE=mongo")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported DB_TYPE %q", c.DBType)
	}

	switch c.UnreadCache {
	case "redis", "memory", "off":
	default:
		return fmt.Errorf("unsupported UNREAD_CACHE %q", c.UnreadCache)
	}
	switch c.RealtimeBroker {
	case "local", "redis":
	default:
		return fmt.Errorf("unsupported REALTIME_BROKER %q", c.RealtimeBroker)
	}
	if (c.UnreadCache == "redis" || c.RealtimeBroker == "redis") && c.RedisURL == "" {
		return errors.New("REDIS_URL is required when redis is selected")
	}

	if c.TypingTTL <= 0 {
		return errors.New("TYPING_TTL must be positive")
	}
	if c.MessageRateLimit <= 0 {
		return errors.New("MESSAGE_RATE_LIMIT must be positive")
	}
	return nil
}

// IsProduction reports whether gin should run in release mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func postgresURLFromParts() string {
	host := os.Getenv("DB_HOST")
	name := os.Getenv("DB_NAME")
	user := os.Getenv("DB_USER")
	if host == "" || name == "" || user == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		user, os.Getenv("DB_PASSWORD"), host, getEnv("DB_PORT", "5432"), name)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
