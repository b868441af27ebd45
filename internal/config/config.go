// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token         string  `yaml:"token" env:"BOT_TOKEN"`
	Username      string  `yaml:"username" env:"BOT_USERNAME"`
	Workers       int     `yaml:"workers"` // polling workers
	AdminIDs      []int64 `yaml:"admin_ids"`
	AdminChatID   int64   `yaml:"admin_chat_id" env:"BOT_ADMIN_CHAT_ID"`     // transaction log destination
	SupportChatID int64   `yaml:"support_chat_id" env:"BOT_SUPPORT_CHAT_ID"` // forum supergroup for tickets
	RateLimit     int     `yaml:"rate_limit"`                                // messages per user per minute
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"` // trace|debug|info|warn|error
	Format   string `yaml:"format"`                // json|console
	Sampling bool   `yaml:"sampling"`
}

type HTTPConfig struct {
	Port         int           `yaml:"port" env:"HTTP_PORT"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// RequestTimeout bounds every handler, the webhook included.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type DatabaseConfig struct {
	URL            string `yaml:"url" env:"DATABASE_URL"`
	MaxConns       int32  `yaml:"max_conns"`
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

type RedisConfig struct {
	URL      string        `yaml:"url" env:"REDIS_URL"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // tariff cache ttl
}

type PanelConfig struct {
	URL            string        `yaml:"url" env:"PANEL_URL"`
	Username       string        `yaml:"username" env:"PANEL_USERNAME"`
	Password       string        `yaml:"password" env:"PANEL_PASSWORD"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	SafetyMargin   time.Duration `yaml:"safety_margin"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RPS            float64       `yaml:"rps"`
	InboundTag     string        `yaml:"inbound_tag"`
	Protocol       string        `yaml:"protocol"`
}

type PaymentConfig struct {
	YooKassa struct {
		ShopID    string `yaml:"shop_id" env:"YOOKASSA_SHOP_ID"`
		SecretKey string `yaml:"secret_key" env:"YOOKASSA_SECRET_KEY"`
		BaseURL   string `yaml:"base_url"`
	} `yaml:"yookassa"`
	Currency       string `yaml:"currency"`
	ReturnURL      string `yaml:"return_url" env:"PAYMENT_RETURN_URL"`
	WebhookPath    string `yaml:"webhook_path"`
	VerifyWebhooks bool   `yaml:"verify_webhooks"`
}

type SubscriptionConfig struct {
	ReferralBonusDays int   `yaml:"referral_bonus_days" env:"REFERRAL_BONUS_DAYS"`
	TrialDays         int   `yaml:"trial_days" env:"TRIAL_DAYS"`
	ReminderDays      []int `yaml:"reminder_days"`
	ReminderHours     int   `yaml:"reminder_hours"`
}

type SupportConfig struct {
	SessionTimeout time.Duration `yaml:"session_timeout"`
}

type SchedulerConfig struct {
	ReminderInterval time.Duration `yaml:"reminder_interval"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	GaugeInterval    time.Duration `yaml:"gauge_interval"`
	SweepBatch       int           `yaml:"sweep_batch"`
}

type WebConfig struct {
	JWTSecret    string        `yaml:"jwt_secret" env:"WEB_JWT_SECRET"`
	SecureCookie bool          `yaml:"secure_cookie"`
	CookieDomain string        `yaml:"cookie_domain"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	AdminAPIKey  string        `yaml:"admin_api_key" env:"ADMIN_API_KEY"`
}

// MailConfig configures the SMTP relay used for password reset codes. An empty host disables mail.
type MailConfig struct {
	Host          string        `yaml:"host" env:"SMTP_HOST"`
	Port          int           `yaml:"port" env:"SMTP_PORT"`
	Username      string        `yaml:"username" env:"SMTP_USER"`
	Password      string        `yaml:"password" env:"SMTP_PASSWORD"`
	From          string        `yaml:"from" env:"SMTP_FROM"`
	InsecureNoTLS bool          `yaml:"insecure_no_tls"`
	Timeout       time.Duration `yaml:"timeout"`
	ResetCodeTTL  time.Duration `yaml:"reset_code_ttl"`
	ResetAttempts int           `yaml:"reset_attempts"`
}

type AMQPConfig struct {
	URL      string `yaml:"url" env:"AMQP_URL"` // empty disables the publisher
	Exchange string `yaml:"exchange"`
}

type Config struct {
	Bot          BotConfig          `yaml:"bot"`
	Log          LogConfig          `yaml:"log"`
	HTTP         HTTPConfig         `yaml:"http"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Panel        PanelConfig        `yaml:"panel"`
	Payment      PaymentConfig      `yaml:"payment"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Support      SupportConfig      `yaml:"support"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Web          WebConfig          `yaml:"web"`
	AMQP         AMQPConfig         `yaml:"amqp"`
	Mail         MailConfig         `yaml:"mail"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file, applies .env and environment overrides,
// fills defaults and validates the required fields.
func LoadConfig(path string, dev bool) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse builds a Config from YAML bytes plus the process environment.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.RateLimit <= 0 {
		cfg.Bot.RateLimit = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.ReadTimeout <= 0 {
		cfg.HTTP.ReadTimeout = 10 * time.Second
	}
	if cfg.HTTP.WriteTimeout <= 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 25 * time.Second
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.Panel.TokenTTL <= 0 {
		cfg.Panel.TokenTTL = 24 * time.Hour
	}
	if cfg.Panel.SafetyMargin < time.Minute {
		cfg.Panel.SafetyMargin = time.Minute
	}
	if cfg.Panel.RequestTimeout <= 0 {
		cfg.Panel.RequestTimeout = 15 * time.Second
	}
	if cfg.Panel.RPS <= 0 {
		cfg.Panel.RPS = 10
	}
	if cfg.Panel.InboundTag == "" {
		cfg.Panel.InboundTag = "VLESS-Reality"
	}
	if cfg.Panel.Protocol == "" {
		cfg.Panel.Protocol = "vless"
	}

	if cfg.Mail.Port == 0 {
		cfg.Mail.Port = 587
	}
	if cfg.Mail.From == "" {
		cfg.Mail.From = cfg.Mail.Username
	}
	if cfg.Mail.Timeout <= 0 {
		cfg.Mail.Timeout = 10 * time.Second
	}
	if cfg.Mail.ResetCodeTTL <= 0 {
		cfg.Mail.ResetCodeTTL = 15 * time.Minute
	}
	if cfg.Mail.ResetAttempts <= 0 {
		cfg.Mail.ResetAttempts = 5
	}

	if cfg.Payment.YooKassa.BaseURL == "" {
		cfg.Payment.YooKassa.BaseURL = "https://api.yookassa.ru/v3"
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "RUB"
	}
	if cfg.Payment.WebhookPath == "" {
		cfg.Payment.WebhookPath = "/webhook/yookassa"
	}

	if cfg.Subscription.ReferralBonusDays <= 0 {
		cfg.Subscription.ReferralBonusDays = 7
	}
	if cfg.Subscription.TrialDays <= 0 {
		cfg.Subscription.TrialDays = 7
	}
	if len(cfg.Subscription.ReminderDays) == 0 {
		cfg.Subscription.ReminderDays = []int{7, 3}
	}
	if cfg.Subscription.ReminderHours <= 0 {
		cfg.Subscription.ReminderHours = 24
	}
	if cfg.Support.SessionTimeout <= 0 {
		cfg.Support.SessionTimeout = 5 * time.Minute
	}
	if cfg.Scheduler.ReminderInterval <= 0 {
		cfg.Scheduler.ReminderInterval = time.Hour
	}
	if cfg.Scheduler.SweepInterval <= 0 {
		cfg.Scheduler.SweepInterval = 10 * time.Minute
	}
	if cfg.Scheduler.GaugeInterval <= 0 {
		cfg.Scheduler.GaugeInterval = time.Minute
	}
	if cfg.Scheduler.SweepBatch <= 0 {
		cfg.Scheduler.SweepBatch = 50
	}
	if cfg.Web.SessionTTL <= 0 {
		cfg.Web.SessionTTL = 7 * 24 * time.Hour
	}
	if cfg.AMQP.Exchange == "" {
		cfg.AMQP.Exchange = "transactions"
	}
}

// Minimal validation
func validate(cfg *Config) error {
	if cfg.Bot.Token == "" {
		return errors.New("bot.token is required")
	}
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if cfg.Panel.URL == "" {
		return errors.New("panel.url is required")
	}
	if cfg.Panel.TokenTTL <= cfg.Panel.SafetyMargin {
		return fmt.Errorf("panel.token_ttl (%s) must be longer than panel.safety_margin (%s)",
			cfg.Panel.TokenTTL, cfg.Panel.SafetyMargin)
	}
	if cfg.Payment.YooKassa.ShopID == "" || cfg.Payment.YooKassa.SecretKey == "" {
		return errors.New("payment.yookassa.shop_id and secret_key are required")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
