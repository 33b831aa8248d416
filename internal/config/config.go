package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/vallegrande/notification-engine/internal/domain"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`

	SMSGatewayURL      string `env:"SMS_GATEWAY_URL,required=true"`
	WhatsAppGatewayURL string `env:"WHATSAPP_GATEWAY_URL,required=true"`
	EmailGatewayURL    string `env:"EMAIL_GATEWAY_URL,required=true"`
	GatewayAPIKey      string `env:"GATEWAY_API_KEY"`

	RateLimitPerSec   int    `env:"RATE_LIMIT_PER_SEC,default=100"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY,default=16"`
	APIPort           int    `env:"API_PORT,default=8080"`
	MetricsPort       int    `env:"METRICS_PORT,default=9090"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`

	// Per-channel overrides of RATE_LIMIT_PER_SEC; zero keeps the global limit.
	SMSRateLimitPerSec      int `env:"SMS_RATE_LIMIT_PER_SEC"`
	WhatsAppRateLimitPerSec int `env:"WHATSAPP_RATE_LIMIT_PER_SEC"`
	EmailRateLimitPerSec    int `env:"EMAIL_RATE_LIMIT_PER_SEC"`
	InAppRateLimitPerSec    int `env:"IN_APP_RATE_LIMIT_PER_SEC"`

	RetryPolicyFile      string `env:"RETRY_POLICY_FILE"`
	DefaultTimezone      string `env:"DEFAULT_TIMEZONE,default=America/Lima"`
	StrictTemplateParams bool   `env:"STRICT_TEMPLATE_PARAMS,default=false"`

	SchedulerSpec       string `env:"SCHEDULER_SPEC,default=@every 5s"`
	SchedulerBatchLimit int    `env:"SCHEDULER_BATCH_LIMIT,default=100"`
	LockTTLSeconds      int    `env:"LOCK_TTL_SECONDS,default=30"`
	TemplateCacheTTLSec int    `env:"TEMPLATE_CACHE_TTL_SECONDS,default=300"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Location resolves DefaultTimezone, the zone used for users without one.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_TIMEZONE %q: %w", c.DefaultTimezone, err)
	}
	return loc, nil
}

func (c *Config) LockTTL() time.Duration {
	if c.LockTTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.LockTTLSeconds) * time.Second
}

func (c *Config) TemplateCacheTTL() time.Duration {
	if c.TemplateCacheTTLSec <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.TemplateCacheTTLSec) * time.Second
}

// ChannelRateLimits returns the configured per-channel overrides.
func (c *Config) ChannelRateLimits() map[domain.Channel]int {
	limits := make(map[domain.Channel]int)
	for channel, limit := range map[domain.Channel]int{
		domain.ChannelSMS:      c.SMSRateLimitPerSec,
		domain.ChannelWhatsApp: c.WhatsAppRateLimitPerSec,
		domain.ChannelEmail:    c.EmailRateLimitPerSec,
		domain.ChannelInApp:    c.InAppRateLimitPerSec,
	} {
		if limit > 0 {
			limits[channel] = limit
		}
	}
	return limits
}
