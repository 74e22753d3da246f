package core

import (
	"fmt"
	"strings"
	"time"
)

type GatewayConfig struct {
	BaseURL           string        `koanf:"base_url" mapstructure:"base_url"`
	Token             string        `koanf:"token" mapstructure:"token"`
	MaxAttempts       int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	AttemptTimeout    time.Duration `koanf:"attempt_timeout" mapstructure:"attempt_timeout"`
	InitialBackoff    time.Duration `koanf:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration `koanf:"max_backoff" mapstructure:"max_backoff"`
	FailureThreshold  int           `koanf:"failure_threshold" mapstructure:"failure_threshold"`
	Cooldown          time.Duration `koanf:"cooldown" mapstructure:"cooldown"`
	DefaultRetryAfter time.Duration `koanf:"default_retry_after" mapstructure:"default_retry_after"`
}

type ThrottleConfig struct {
	Window time.Duration `koanf:"window" mapstructure:"window"`
	Limit  int           `koanf:"limit" mapstructure:"limit"`
}

type CacheConfig struct {
	DefaultTTL    time.Duration `koanf:"default_ttl" mapstructure:"default_ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval" mapstructure:"sweep_interval"`
}

type WebhookConfig struct {
	SecretToken string `koanf:"secret_token" mapstructure:"secret_token"`
	MaxAttempts int    `koanf:"max_attempts" mapstructure:"max_attempts"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	BotName     string         `koanf:"bot_name" mapstructure:"bot_name"`
	Gateway     GatewayConfig  `koanf:"gateway" mapstructure:"gateway"`
	Throttle    ThrottleConfig `koanf:"throttle" mapstructure:"throttle"`
	Cache       CacheConfig    `koanf:"cache" mapstructure:"cache"`
	Webhook     WebhookConfig  `koanf:"webhook" mapstructure:"webhook"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "botway",
		BotName:     "botway",
		Gateway: GatewayConfig{
			BaseURL:           "https://api.telegram.org",
			MaxAttempts:       3,
			AttemptTimeout:    10 * time.Second,
			InitialBackoff:    time.Second,
			MaxBackoff:        5 * time.Second,
			FailureThreshold:  5,
			Cooldown:          30 * time.Second,
			DefaultRetryAfter: time.Second,
		},
		Throttle: ThrottleConfig{
			Window: time.Minute,
			Limit:  10,
		},
		Cache: CacheConfig{
			DefaultTTL:    time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		Webhook: WebhookConfig{
			MaxAttempts: 8,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Gateway.MaxAttempts < 1 {
		return fmt.Errorf("core: gateway max_attempts must be >= 1")
	}
	if c.Gateway.FailureThreshold < 1 {
		return fmt.Errorf("core: gateway failure_threshold must be >= 1")
	}
	if c.Gateway.Cooldown <= 0 {
		return fmt.Errorf("core: gateway cooldown must be positive")
	}
	if c.Throttle.Limit < 1 {
		return fmt.Errorf("core: throttle limit must be >= 1")
	}
	if c.Throttle.Window <= 0 {
		return fmt.Errorf("core: throttle window must be positive")
	}
	if c.Cache.SweepInterval <= 0 {
		return fmt.Errorf("core: cache sweep_interval must be positive")
	}
	return nil
}
