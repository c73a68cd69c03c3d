package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment        string
	HTTPPort           string
	DatabaseURL        string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	SigningSecret      string
	Issuer             string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	LoginAttemptTTL    time.Duration
	PairingCodeTTL     time.Duration
	PublicBaseURL      string
	ServiceName        string
	RateLimitRPM       int
	CORSAllowedOrigins []string
	TelemetryEndpoint  string
	TelemetryInsecure  bool

	GithubClientID     string
	GithubClientSecret string
	YandexClientID     string
	YandexClientSecret string
}

// Load reads configuration from environment variables with sane defaults.
// The signing secret is mandatory: it is loaded once at startup and is
// immutable for the process lifetime. Rotating it invalidates every
// outstanding access and refresh token.
func Load() (Config, error) {
	_ = godotenv.Load()

	secret := strings.TrimSpace(os.Getenv("JWT_SIGNING_SECRET"))
	if secret == "" {
		return Config{}, fmt.Errorf("JWT_SIGNING_SECRET is required")
	}
	if len(secret) < 32 {
		return Config{}, fmt.Errorf("JWT_SIGNING_SECRET must be at least 32 bytes")
	}

	cfg := Config{
		Environment:        getEnv("APP_ENV", "development"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getInt("REDIS_DB", 0),
		SigningSecret:      secret,
		Issuer:             getEnv("JWT_ISSUER", "lectory-auth"),
		AccessTokenTTL:     getDuration("ACCESS_TOKEN_TTL", 5*time.Minute),
		RefreshTokenTTL:    getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		LoginAttemptTTL:    getDuration("LOGIN_ATTEMPT_TTL", 5*time.Minute),
		PairingCodeTTL:     getDuration("PAIRING_CODE_TTL", time.Minute),
		PublicBaseURL:      getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		ServiceName:        getEnv("SERVICE_NAME", "lectory-auth"),
		RateLimitRPM:       getInt("RATE_LIMIT_RPM", 600),
		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		TelemetryEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:  getBool("OTEL_EXPORTER_OTLP_INSECURE", true),

		GithubClientID:     os.Getenv("OAUTH_GITHUB_CLIENT_ID"),
		GithubClientSecret: os.Getenv("OAUTH_GITHUB_CLIENT_SECRET"),
		YandexClientID:     os.Getenv("OAUTH_YANDEX_CLIENT_ID"),
		YandexClientSecret: os.Getenv("OAUTH_YANDEX_CLIENT_SECRET"),
	}

	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		var items []string
		for _, item := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				items = append(items, trimmed)
			}
		}
		if len(items) > 0 {
			return items
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}
