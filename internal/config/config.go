package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"

	"github.com/bandmail/warmup-engine/internal/domain"
)

const EnvProduction = "production"

type Config struct {
	AppEnv      string `env:"APP_ENV,default=development"`
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`

	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=25"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=1h"`

	ResendAPIKey string `env:"RESEND_API_KEY"`
	ResendAPIURL string `env:"RESEND_API_URL,default=https://api.resend.com"`
	MailFrom     string `env:"MAIL_FROM,default=noreply@bandmail.local"`

	ResendWebhookSecret      string `env:"RESEND_WEBHOOK_SECRET"`
	MailgunWebhookSigningKey string `env:"MAILGUN_WEBHOOK_SIGNING_KEY"`
	WebhookToleranceSeconds  int    `env:"WEBHOOK_TOLERANCE_SECONDS,default=300"`

	SendRateLimitPerSec int `env:"SEND_RATE_LIMIT_PER_SEC,default=10"`
	BatchConcurrency    int `env:"BATCH_CONCURRENCY,default=8"`

	QuotaResetPeriod    string        `env:"QUOTA_RESET_PERIOD,default=monthly"`
	DefaultMonthlyLimit int           `env:"DEFAULT_MONTHLY_LIMIT,default=10000"`
	QuotaResetInterval  time.Duration `env:"QUOTA_RESET_INTERVAL,default=1h"`
	CampaignLockTTL     time.Duration `env:"CAMPAIGN_LOCK_TTL,default=10m"`

	APIPort  int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), EnvProduction)
}

// WebhookVerificationDisabled reports whether inbound webhooks may be accepted
// without a signature check. Only possible outside production.
func (c *Config) WebhookVerificationDisabled() bool {
	return !c.IsProduction() && (c.ResendWebhookSecret == "" || c.MailgunWebhookSigningKey == "")
}

func (c *Config) QuotaPeriod() domain.QuotaPeriod {
	period, err := domain.ParseQuotaPeriodFromString(c.QuotaResetPeriod)
	if err != nil {
		return domain.QuotaPeriodMonthly
	}
	return period
}

func (c *Config) WebhookTolerance() time.Duration {
	return time.Duration(c.WebhookToleranceSeconds) * time.Second
}

func (c *Config) Validate() error {
	var errs []error

	if _, err := domain.ParseQuotaPeriodFromString(c.QuotaResetPeriod); err != nil {
		errs = append(errs, err)
	}
	if c.WebhookToleranceSeconds <= 0 {
		errs = append(errs, errors.New("WEBHOOK_TOLERANCE_SECONDS must be positive"))
	}
	if c.SendRateLimitPerSec <= 0 {
		errs = append(errs, errors.New("SEND_RATE_LIMIT_PER_SEC must be positive"))
	}
	if c.BatchConcurrency <= 0 {
		errs = append(errs, errors.New("BATCH_CONCURRENCY must be positive"))
	}
	if c.DefaultMonthlyLimit <= 0 {
		errs = append(errs, errors.New("DEFAULT_MONTHLY_LIMIT must be positive"))
	}

	if c.IsProduction() {
		if c.ResendWebhookSecret == "" {
			errs = append(errs, errors.New("RESEND_WEBHOOK_SECRET is required in production"))
		}
		if c.MailgunWebhookSigningKey == "" {
			errs = append(errs, errors.New("MAILGUN_WEBHOOK_SIGNING_KEY is required in production"))
		}
		if c.ResendAPIKey == "" {
			errs = append(errs, errors.New("RESEND_API_KEY is required in production"))
		}
	}

	return errors.Join(errs...)
}
