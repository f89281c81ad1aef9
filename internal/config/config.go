package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// minJWTSecretLength はこれ未満のJWT_SECRETに警告を出す長さ。
const minJWTSecretLength = 32

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// JWT
	JWTSecret      string
	JWTExpiryHours int

	// Server
	ServerPort string
	AppURL     string
	APIURL     string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel slog.Level

	// Mail
	FromEmail string
	SMTPHost  string
	SMTPPort  int
	SMTPUser  string
	SMTPPass  string

	// OAuth（読み込むのみ。ログイン処理には使わない）
	GoogleClientID     string
	GoogleClientSecret string
	GitHubClientID     string
	GitHubClientSecret string

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral   int
	RateLimitMagicLink int

	// Cleanup
	MagicLinkRetention time.Duration
	CleanupInterval    time.Duration

	// Warnings は起動は継続できるが運用上問題のある設定の一覧。
	Warnings []string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定、または値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.JWTExpiryHours = getEnvInt("JWT_EXPIRY_HOURS", 168)
	cfg.ServerPort = getEnvString("SERVER_PORT", "3001")
	cfg.AppURL = strings.TrimRight(getEnvString("APP_URL", "http://localhost:3000"), "/")
	cfg.APIURL = strings.TrimRight(getEnvString("API_URL", "http://localhost:3001"), "/")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", cfg.AppURL)
	cfg.FromEmail = getEnvString("FROM_EMAIL", "noreply@rfsbase.com")
	cfg.SMTPHost = getEnvString("SMTP_HOST", "")
	cfg.SMTPPort = getEnvInt("SMTP_PORT", 587)
	cfg.SMTPUser = getEnvString("SMTP_USER", "")
	cfg.SMTPPass = getEnvString("SMTP_PASS", "")
	cfg.GoogleClientID = getEnvString("GOOGLE_CLIENT_ID", "")
	cfg.GoogleClientSecret = getEnvString("GOOGLE_CLIENT_SECRET", "")
	cfg.GitHubClientID = getEnvString("GITHUB_CLIENT_ID", "")
	cfg.GitHubClientSecret = getEnvString("GITHUB_CLIENT_SECRET", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitMagicLink = getEnvInt("RATE_LIMIT_MAGIC_LINK", 5)
	cfg.MagicLinkRetention = getEnvDuration("MAGIC_LINK_RETENTION", 24*time.Hour)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", time.Hour)

	level, err := parseLogLevel(getEnvString("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate は値の範囲を検査し、致命的でない問題はWarningsに積む。
func (c *Config) validate() error {
	if c.JWTExpiryHours <= 0 {
		return fmt.Errorf("JWT_EXPIRY_HOURS must be positive, got %d", c.JWTExpiryHours)
	}
	if c.RateLimitGeneral <= 0 {
		return fmt.Errorf("RATE_LIMIT_GENERAL must be positive, got %d", c.RateLimitGeneral)
	}
	if c.RateLimitMagicLink <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAGIC_LINK must be positive, got %d", c.RateLimitMagicLink)
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be positive, got %s", c.CleanupInterval)
	}

	if len(c.JWTSecret) < minJWTSecretLength {
		c.Warnings = append(c.Warnings,
			fmt.Sprintf("JWT_SECRET is shorter than %d characters", minJWTSecretLength))
	}
	if c.SMTPHost == "" {
		c.Warnings = append(c.Warnings, "SMTP_HOST is not set; magic links will only be logged")
	}
	return nil
}

// SMTPEnabled はSMTP送信が設定されているかを返す。
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
