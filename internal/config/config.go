package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port               string
	DBUrl              string
	JWTSecret          string
	AppEnv             string
	LogLevel           string
	AllowedOrigins     string
	SupabaseURL        string
	SupabaseBucket     string
	SupabaseServiceKey string
	TranslateURL       string
	TranslateAPIKey    string
	PushWebhookURL     string
	PushWebhookKey     string
	PushWorkers        int
	SendRatePerSecond  float64
	SendBurst          int
	AdminEmail         string
	AdminPassword      string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found")
	}

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		DBUrl:              getEnv("DB_URL", ""),
		JWTSecret:          jwtSecret,
		AppEnv:             normalizeEnv(getEnv("APP_ENV", "production")),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		AllowedOrigins:     getEnv("ALLOWED_ORIGINS", "*"),
		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseBucket:     getEnv("SUPABASE_BUCKET", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
		TranslateURL:       getEnv("TRANSLATE_URL", ""),
		TranslateAPIKey:    getEnv("TRANSLATE_API_KEY", ""),
		PushWebhookURL:     getEnv("PUSH_WEBHOOK_URL", ""),
		PushWebhookKey:     getEnv("PUSH_WEBHOOK_KEY", ""),
		PushWorkers:        getEnvInt("PUSH_WORKERS", 5),
		SendRatePerSecond:  getEnvFloat("SEND_RATE_PER_SECOND", 5),
		SendBurst:          getEnvInt("SEND_BURST", 10),
		AdminEmail:         getEnv("DEFAULT_ADMIN_EMAIL", ""),
		AdminPassword:      getEnv("DEFAULT_ADMIN_PASSWORD", ""),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		log.Warn().Str("key", key).Str("value", value).Msg("ignoring invalid integer setting")
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 {
		log.Warn().Str("key", key).Str("value", value).Msg("ignoring invalid number setting")
		return fallback
	}
	return parsed
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

func (c *Config) StorageConfigured() bool {
	return c != nil && c.SupabaseURL != "" && c.SupabaseBucket != "" && c.SupabaseServiceKey != ""
}

// Origins splits ALLOWED_ORIGINS into the comma separated form cors expects.
func (c *Config) Origins() string {
	parts := strings.Split(c.AllowedOrigins, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return "*"
	}
	return strings.Join(cleaned, ",")
}
