package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultAdminPassword = "west123"
	defaultTokenSecret   = "dev-secret"
	logMailerFromAddress = "noreply@localhost"
)

type Config struct {
	Addr     string
	Env      string
	LogLevel string

	StorageURL         string
	MongoDatabase      string
	DefaultContentPath string

	AdminPassword string
	TokenSecret   string

	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
	SMTPFrom       string
	SMTPTimeout    time.Duration
	ResendAPIKey   string
	MailerProvider string

	ContactReceiverEmail string
	ContactSiteName      string
	ContactSiteLocation  string

	RedisURL        string
	RateLimitRPS    float64
	RateLimitBurst  int
	RateLimitWindow time.Duration
}

// loadDotEnv fills unset environment variables from path. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func loadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SITE_DB", "site-data.db")
	v.SetDefault("MONGODB_DATABASE", "site")
	v.SetDefault("DEFAULT_CONTENT_PATH", "site-data.json")
	v.SetDefault("ADMIN_PASSWORD", defaultAdminPassword)
	v.SetDefault("TOKEN_SECRET", defaultTokenSecret)
	v.SetDefault("SMTP_PORT", "587")
	v.SetDefault("SMTP_TIMEOUT_SECONDS", "15")
	v.SetDefault("CONTACT_SITE_NAME", "West Basketball Club")
	v.SetDefault("CONTACT_SITE_LOCATION", "Newcastle • Australia")
	v.SetDefault("RATE_LIMIT_RPS", "0.2")
	v.SetDefault("RATE_LIMIT_BURST", "5")
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", "60")

	addr := strings.TrimSpace(v.GetString("GIN_ADDR"))
	if addr == "" {
		addr = ":" + strings.TrimSpace(v.GetString("PORT"))
	}

	cfg := &Config{
		Addr:                 addr,
		Env:                  strings.TrimSpace(v.GetString("APP_ENV")),
		LogLevel:             strings.TrimSpace(v.GetString("LOG_LEVEL")),
		StorageURL:           strings.TrimSpace(v.GetString("SITE_DB")),
		MongoDatabase:        strings.TrimSpace(v.GetString("MONGODB_DATABASE")),
		DefaultContentPath:   strings.TrimSpace(v.GetString("DEFAULT_CONTENT_PATH")),
		AdminPassword:        v.GetString("ADMIN_PASSWORD"),
		TokenSecret:          v.GetString("TOKEN_SECRET"),
		SMTPHost:             strings.TrimSpace(v.GetString("SMTP_HOST")),
		SMTPUser:             strings.TrimSpace(v.GetString("SMTP_USER")),
		SMTPPassword:         v.GetString("SMTP_PASSWORD"),
		SMTPFrom:             strings.TrimSpace(v.GetString("SMTP_FROM")),
		ResendAPIKey:         strings.TrimSpace(v.GetString("RESEND_API_KEY")),
		MailerProvider:       strings.TrimSpace(v.GetString("MAILER_PROVIDER")),
		ContactReceiverEmail: strings.TrimSpace(v.GetString("CONTACT_RECEIVER_EMAIL")),
		ContactSiteName:      strings.TrimSpace(v.GetString("CONTACT_SITE_NAME")),
		ContactSiteLocation:  strings.TrimSpace(v.GetString("CONTACT_SITE_LOCATION")),
		RedisURL:             strings.TrimSpace(v.GetString("REDIS_URL")),
	}

	if cfg.SMTPFrom == "" {
		cfg.SMTPFrom = cfg.SMTPUser
	}
	if cfg.ContactReceiverEmail == "" {
		cfg.ContactReceiverEmail = cfg.SMTPFrom
	}

	var err error
	if cfg.SMTPPort, err = positiveInt(v, "SMTP_PORT"); err != nil {
		return nil, err
	}
	timeoutSeconds, err := positiveInt(v, "SMTP_TIMEOUT_SECONDS")
	if err != nil {
		return nil, err
	}
	cfg.SMTPTimeout = time.Duration(timeoutSeconds) * time.Second

	if cfg.RateLimitRPS, err = strconv.ParseFloat(strings.TrimSpace(v.GetString("RATE_LIMIT_RPS")), 64); err != nil || cfg.RateLimitRPS <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_RPS must be a positive number")
	}
	if cfg.RateLimitBurst, err = positiveInt(v, "RATE_LIMIT_BURST"); err != nil {
		return nil, err
	}
	windowSeconds, err := positiveInt(v, "RATE_LIMIT_WINDOW_SECONDS")
	if err != nil {
		return nil, err
	}
	cfg.RateLimitWindow = time.Duration(windowSeconds) * time.Second

	if cfg.AdminPassword == "" {
		return nil, fmt.Errorf("ADMIN_PASSWORD must not be empty")
	}
	if cfg.StorageURL == "" {
		return nil, fmt.Errorf("SITE_DB must not be empty")
	}

	return cfg, nil
}

func positiveInt(v *viper.Viper, key string) (int, error) {
	parsed, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return parsed, nil
}

// mailerFromAddress is the sender for every outbound message. The log provider
// gets a placeholder so development setups work without SMTP settings.
func (c *Config) mailerFromAddress() string {
	if c.SMTPFrom == "" && strings.EqualFold(c.MailerProvider, "log") {
		return logMailerFromAddress
	}
	return c.SMTPFrom
}

func (c *Config) logLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
