package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

// DefaultErrorMapper maps arbitrary errors onto the bot error envelope.
func DefaultErrorMapper() ErrorMapper {
	return botErrorMapper
}

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// NewStaticRawConfigLoader wraps literal values as a raw config source.
func NewStaticRawConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || strings.TrimSpace(cfg.BotName) != "" {
		layer["bot_name"] = cfg.BotName
	}

	gateway := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Gateway.BaseURL) != "" {
		gateway["base_url"] = cfg.Gateway.BaseURL
	}
	if includeZero || strings.TrimSpace(cfg.Gateway.Token) != "" {
		gateway["token"] = cfg.Gateway.Token
	}
	if includeZero || cfg.Gateway.MaxAttempts != 0 {
		gateway["max_attempts"] = cfg.Gateway.MaxAttempts
	}
	if includeZero || cfg.Gateway.AttemptTimeout != 0 {
		gateway["attempt_timeout"] = cfg.Gateway.AttemptTimeout
	}
	if includeZero || cfg.Gateway.InitialBackoff != 0 {
		gateway["initial_backoff"] = cfg.Gateway.InitialBackoff
	}
	if includeZero || cfg.Gateway.MaxBackoff != 0 {
		gateway["max_backoff"] = cfg.Gateway.MaxBackoff
	}
	if includeZero || cfg.Gateway.FailureThreshold != 0 {
		gateway["failure_threshold"] = cfg.Gateway.FailureThreshold
	}
	if includeZero || cfg.Gateway.Cooldown != 0 {
		gateway["cooldown"] = cfg.Gateway.Cooldown
	}
	if includeZero || cfg.Gateway.DefaultRetryAfter != 0 {
		gateway["default_retry_after"] = cfg.Gateway.DefaultRetryAfter
	}
	if len(gateway) > 0 {
		layer["gateway"] = gateway
	}

	throttle := map[string]any{}
	if includeZero || cfg.Throttle.Window != 0 {
		throttle["window"] = cfg.Throttle.Window
	}
	if includeZero || cfg.Throttle.Limit != 0 {
		throttle["limit"] = cfg.Throttle.Limit
	}
	if len(throttle) > 0 {
		layer["throttle"] = throttle
	}

	cache := map[string]any{}
	if includeZero || cfg.Cache.DefaultTTL != 0 {
		cache["default_ttl"] = cfg.Cache.DefaultTTL
	}
	if includeZero || cfg.Cache.SweepInterval != 0 {
		cache["sweep_interval"] = cfg.Cache.SweepInterval
	}
	if len(cache) > 0 {
		layer["cache"] = cache
	}

	webhook := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Webhook.SecretToken) != "" {
		webhook["secret_token"] = cfg.Webhook.SecretToken
	}
	if includeZero || cfg.Webhook.MaxAttempts != 0 {
		webhook["max_attempts"] = cfg.Webhook.MaxAttempts
	}
	if len(webhook) > 0 {
		layer["webhook"] = webhook
	}

	return layer
}
