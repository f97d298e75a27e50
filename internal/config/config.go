package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	ServerPort  int
	LogLevel    string

	DBDriver    string
	DatabaseURL string

	JWTAccessSecret  []byte
	JWTRefreshSecret []byte
	CookieSecure     bool
	AdminEmail       string

	KafkaBrokers []string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	UploadDir string

	StripeAPIKey string
	Currency     string
	SuccessURL   string
	CancelURL    string

	MailDriver   string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	ResendAPIKey string
	MailFrom     string
	MailTo       string

	ShopName                string
	NewsletterRequiresLogin bool
}

func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		slog.Info("env_file_not_found", "reason", "using process environment", "error", err)
	}

	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "stone_shop"),
		ServerPort:  EnvIntDefault("SERVER_PORT", 8080),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		DBDriver:    EnvDefault("DB_DRIVER", "sqlite"),
		DatabaseURL: EnvDefault("DATABASE_URL", "shop.db"),

		JWTAccessSecret:  []byte(os.Getenv("JWT_SECRET")),
		JWTRefreshSecret: []byte(os.Getenv("JWT_REFRESH_SECRET")),
		CookieSecure:     EnvBoolDefault("COOKIE_SECURE", false),
		AdminEmail:       strings.ToLower(os.Getenv("ADMIN_EMAIL")),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),
		ESIndex:    EnvDefault("ES_INDEX", "products"),

		UploadDir: EnvDefault("UPLOAD_DIR", "static/images"),

		StripeAPIKey: os.Getenv("STRIPE_API_KEY"),
		Currency:     EnvDefault("CURRENCY", "usd"),
		SuccessURL:   EnvDefault("CHECKOUT_SUCCESS_URL", "http://localhost:8080/success"),
		CancelURL:    EnvDefault("CHECKOUT_CANCEL_URL", "http://localhost:8080/cancel"),

		MailDriver:   EnvDefault("MAIL_DRIVER", "smtp"),
		SMTPHost:     EnvDefault("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     EnvIntDefault("SMTP_PORT", 587),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		MailFrom:     os.Getenv("MAIL_FROM"),
		MailTo:       os.Getenv("MAIL_TO"),

		ShopName:                EnvDefault("SHOP_NAME", "Sticks & Stones"),
		NewsletterRequiresLogin: EnvBoolDefault("NEWSLETTER_REQUIRE_LOGIN", true),
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
