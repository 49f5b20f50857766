package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string
	DBSSLMode  string

	HTTPAddr   string
	CORSOrigin string
	LogLevel   string

	JWTSecret       string
	DefaultUserID   string
	DefaultUserRole string
}

// Load reads a .env file when present and then the process environment.
// It reports whether a .env file was found so the caller can log it once the
// logger is configured.
func Load() (Config, bool) {
	loaded := godotenv.Load() == nil

	cfg := Config{
		DBUser:     env("DB_USER", ""),
		DBPassword: env("DB_PASSWORD", ""),
		DBHost:     env("DB_HOST", "localhost"),
		DBPort:     env("DB_PORT", "5432"),
		DBName:     env("DB_NAME", "notevault"),
		DBSSLMode:  env("DB_SSLMODE", "require"),

		HTTPAddr:   env("HTTP_ADDR", ":8080"),
		CORSOrigin: env("CORS_ORIGIN", "*"),
		LogLevel:   env("LOG_LEVEL", "info"),

		JWTSecret:       env("JWT_SECRET", ""),
		DefaultUserID:   env("DEFAULT_USER_ID", "default_user"),
		DefaultUserRole: strings.ToUpper(env("DEFAULT_USER_ROLE", "USER")),
	}
	return cfg, loaded
}

// DSN builds the postgres connection URL.
func (c Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%s", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
