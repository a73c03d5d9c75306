package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"

	"github.com/trelloplus/bot-server-go/internal/util"
)

type Config struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	SiteURL     string `env:"SITE_URL" envDefault:"http://localhost:8080"`

	TelegramBotToken                 string  `env:"TELEGRAM_BOT_TOKEN,required"`
	TelegramBotName                  string  `env:"TELEGRAM_BOT_NAME"`
	TelegramTokenHash                string  `env:"TELEGRAM_TOKEN_HASH"`
	TelegramAPIURL                   string  `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
	TelegramRatePerSec               float64 `env:"TELEGRAM_RATE_PER_SEC" envDefault:"25"`
	TelegramResponseErrorOnException bool    `env:"TELEGRAM_RESPONSE_ERROR_ON_EXCEPTION"`
	PollTimeoutSeconds               int     `env:"POLL_TIMEOUT_SECONDS" envDefault:"30"`

	Admins            []int64 `env:"TG_ADMINS" envSeparator:","`
	FeedbackGroupID   int64   `env:"FEEDBACK_GROUP_ID"`
	ErrorLogGroupID   int64   `env:"ERROR_LOG_GROUP_ID"`
	UnderConstruction bool    `env:"UNDER_CONSTRUCTION"`
	Debug             bool    `env:"DEBUG"`
	Testing           bool    `env:"TESTING"`

	LockTimeoutSeconds int `env:"LOCK_TIMEOUT_SECONDS" envDefault:"10"`

	TrelloAPIKey  string `env:"TRELLO_API_KEY"`
	TrelloAppName string `env:"TRELLO_APP_NAME" envDefault:"Trello Plus"`

	EncryptionKey     string `env:"ENCRYPTION_KEY"`
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`
	CleanupSchedule   string `env:"CLEANUP_SCHEDULE" envDefault:"@every 1h"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSeconds) * time.Second
}

func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutSeconds) * time.Second
}

// WebhookTokenHash is the secret path segment of the webhook URL.
func (c *Config) WebhookTokenHash() string {
	if c.TelegramTokenHash != "" {
		return c.TelegramTokenHash
	}
	return util.HashToken(c.TelegramBotToken)[:WebhookHashLength]
}

func (c *Config) WebhookURL() string {
	return fmt.Sprintf("%s/bot/%s/", strings.TrimRight(c.SiteURL, "/"), c.WebhookTokenHash())
}

// TokenReturnURL is where Trello sends the user back after authorization.
func (c *Config) TokenReturnURL() string {
	return strings.TrimRight(c.SiteURL, "/") + "/token/"
}

func (c *Config) Validate() error {
	if c.AdminPasswordHash != "" {
		if !strings.HasPrefix(c.AdminPasswordHash, "$2a$") &&
			!strings.HasPrefix(c.AdminPasswordHash, "$2b$") &&
			!strings.HasPrefix(c.AdminPasswordHash, "$2y$") {
			return fmt.Errorf("ADMIN_PASSWORD_HASH must be a bcrypt hash (generate with: server hash-password <password>)")
		}
	}

	if c.EncryptionKey != "" {
		key, err := hex.DecodeString(c.EncryptionKey)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("ENCRYPTION_KEY must be 32 bytes encoded as 64 hex chars")
		}
	}

	if c.LockTimeoutSeconds <= 0 {
		return fmt.Errorf("LOCK_TIMEOUT_SECONDS must be positive")
	}

	if c.TelegramRatePerSec <= 0 {
		return fmt.Errorf("TELEGRAM_RATE_PER_SEC must be positive")
	}

	if c.IsProduction() {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required in production")
		}
		if c.TelegramBotName == "" {
			return fmt.Errorf("TELEGRAM_BOT_NAME is required in production")
		}
		if c.TrelloAPIKey == "" {
			log.Warn().Msg("TRELLO_API_KEY is empty in production: authorization links will not work")
		}
		if c.RedisURL == "" {
			log.Warn().Msg("REDIS_URL is empty in production: per-user locks are process-local")
		} else if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.EncryptionKey == "" {
			log.Warn().Msg("ENCRYPTION_KEY is empty in production: Trello tokens will not be encrypted at rest")
		}
		if c.UnderConstruction {
			log.Warn().Msg("UNDER_CONSTRUCTION is set: only admins are served")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
