package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL string   `env:"DATABASE_URL"`
	PG          PGParams `envPrefix:"PG"`
	RedisURL    string   `env:"REDIS_URL,required"`

	BotToken         string `env:"TELEGRAM_BOT_TOKEN,required"`
	WebhookSecret    string `env:"TELEGRAM_WEBHOOK_SECRET"`
	LawyerTelegramID string `env:"LAWYER_TELEGRAM_ID" envDefault:""`
	LawyerChatID     string `env:"LAWYER_CHAT_ID"`
	LawyerContact    string `env:"LAWYER_CONTACT" envDefault:"@narhipovd"`

	YooKassaShopID    string `env:"YOOKASSA_SHOP_ID"`
	YooKassaSecretKey string `env:"YOOKASSA_SECRET_KEY"`
	PaymentReturnURL  string `env:"PAYMENT_RETURN_URL" envDefault:"https://t.me"`
	PaymentPollSecs   int    `env:"PAYMENT_POLL_SECONDS" envDefault:"60"`

	CodeWord string `env:"CODE_WORD" envDefault:"ЮРИСТ2024"`

	LawyerClientEnabled bool   `env:"LAWYER_CLIENT_ENABLED" envDefault:"false"`
	TelegramAPIID       int    `env:"TELEGRAM_API_ID"`
	TelegramAPIHash     string `env:"TELEGRAM_API_HASH"`
	TelegramPhone       string `env:"TELEGRAM_PHONE"`
	SessionFile         string `env:"SESSION_FILE" envDefault:"lawyer_session.bin"`
	EncryptionKey       string `env:"ENCRYPTION_KEY"`

	OperatorPasswordHash string `env:"OPERATOR_PASSWORD_HASH"`
}

// PGParams are the discrete connection parameters used when DATABASE_URL is absent.
type PGParams struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"5432"`
	Database string `env:"DATABASE"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	SSLMode  string `env:"SSLMODE" envDefault:"require"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) PaymentPollInterval() time.Duration {
	if c.PaymentPollSecs <= 0 {
		return DefaultPaymentPollInterval
	}
	return time.Duration(c.PaymentPollSecs) * time.Second
}

// LawyerIDs parses LAWYER_TELEGRAM_ID as a comma-separated list of numeric ids.
func (c *Config) LawyerIDs() []int64 {
	var ids []int64
	for _, part := range strings.Split(c.LawyerTelegramID, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			log.Warn().Str("value", part).Msg("ignoring malformed LAWYER_TELEGRAM_ID entry")
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// OperatorIdentityConfigured reports whether the secondary identity can log in.
func (c *Config) OperatorIdentityConfigured() bool {
	return c.TelegramAPIID != 0 && c.TelegramAPIHash != "" && c.TelegramPhone != ""
}

func (c *Config) PaymentsConfigured() bool {
	return c.YooKassaShopID != "" && c.YooKassaSecretKey != ""
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" && c.PG.Host == "" {
		return fmt.Errorf("either DATABASE_URL or PGHOST must be set")
	}

	if c.OperatorPasswordHash != "" {
		if !strings.HasPrefix(c.OperatorPasswordHash, "$2a$") &&
			!strings.HasPrefix(c.OperatorPasswordHash, "$2b$") &&
			!strings.HasPrefix(c.OperatorPasswordHash, "$2y$") {
			return fmt.Errorf("OPERATOR_PASSWORD_HASH must be a bcrypt hash (generate with: go run scripts/hash-password.go <password>)")
		}
	}

	if c.EncryptionKey != "" && len(c.EncryptionKey) != 64 {
		return fmt.Errorf("ENCRYPTION_KEY must be 64 hex characters")
	}

	if strings.TrimSpace(c.CodeWord) == "" {
		return fmt.Errorf("CODE_WORD must not be blank")
	}

	if !c.PaymentsConfigured() {
		log.Warn().Msg("YOOKASSA_SHOP_ID or YOOKASSA_SECRET_KEY is empty: purchases are disabled")
	}
	if c.WebhookSecret == "" {
		log.Warn().Msg("TELEGRAM_WEBHOOK_SECRET is empty: webhook secret verification disabled")
	}
	if len(c.LawyerIDs()) == 0 {
		log.Warn().Msg("LAWYER_TELEGRAM_ID is empty: nobody can use /check")
	}

	return nil
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
