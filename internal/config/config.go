package config

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port int

	// postgres | mongo | memory
	StoreDriver string
	DBURL       string
	MongoURI    string
	MongoDB     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret              string
	JWTAccessTTLMinutes    int
	JWTLoginAccessTTLHours int
	JWTRefreshTTLDays      int
	ClaimTTLHours          int

	FrontendURL string

	MailDriver       string
	MailFrom         string
	MailFromName     string
	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPass         string
	MailerSendAPIKey string

	OTELEnabled     bool
	OTELEndpoint    string
	OTELSampleRatio float64

	AdminEmail    string
	AdminPassword string
	AdminName     string
	AdminRole     string

	CORSAllowedOrigins  []string
	UserCacheTTLSeconds int
}

func Load() Config {
	// a missing .env is fine, real environments inject variables directly
	_ = godotenv.Load()

	return Config{
		Env:  getEnv("APP_ENV", "dev"),
		Port: getEnvInt("PORT", 8080),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
		DBURL:       buildDBURL(),
		MongoURI:    getEnv("MONGO_URI", "mongodb://127.0.0.1:27017"),
		MongoDB:     getEnv("MONGO_DB", "estategate"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret:              getEnv("JWT_SECRET", "dev-only-secret-change-me"),
		JWTAccessTTLMinutes:    getEnvInt("JWT_ACCESS_TTL_MINUTES", 15),
		JWTLoginAccessTTLHours: getEnvInt("JWT_LOGIN_ACCESS_TTL_HOURS", 24),
		JWTRefreshTTLDays:      getEnvInt("JWT_REFRESH_TTL_DAYS", 30),
		ClaimTTLHours:          getEnvInt("CLAIM_TTL_HOURS", 48),

		FrontendURL: strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5000"), "/"),

		MailDriver:       strings.ToLower(getEnv("MAIL_DRIVER", "log")),
		MailFrom:         getEnv("MAIL_FROM", "noreply@estategate.local"),
		MailFromName:     getEnv("MAIL_FROM_NAME", "Estate Gate"),
		SMTPHost:         getEnv("SMTP_HOST", "localhost"),
		SMTPPort:         getEnvInt("SMTP_PORT", 1025),
		SMTPUser:         getEnv("SMTP_USER", ""),
		SMTPPass:         getEnv("SMTP_PASS", ""),
		MailerSendAPIKey: getEnv("MAILERSEND_API_KEY", ""),

		OTELEnabled:     getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELSampleRatio: getEnvFloat("OTEL_SAMPLE_RATIO", 1),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Estate Admin"),
		AdminRole:     getEnv("ADMIN_ROLE", "Admin"),

		CORSAllowedOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5000")),
		UserCacheTTLSeconds: getEnvInt("USER_CACHE_TTL_SECONDS", 5),
	}
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

func (c Config) LoginAccessTTL() time.Duration {
	return time.Duration(c.JWTLoginAccessTTLHours) * time.Hour
}

func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.JWTRefreshTTLDays) * 24 * time.Hour
}

func (c Config) ClaimTTL() time.Duration {
	return time.Duration(c.ClaimTTLHours) * time.Hour
}

func (c Config) UserCacheTTL() time.Duration {
	return time.Duration(c.UserCacheTTLSeconds) * time.Second
}

func buildDBURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "estategate")
	pass := getEnv("DB_PASSWORD", "estategate")
	name := getEnv("DB_NAME", "estategate")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			slog.Warn("invalid integer env value, using default", "key", key, "value", v)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			slog.Warn("invalid float env value, using default", "key", key, "value", v)
			return fallback
		}
		return f
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return b
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
