package botway

import (
	"context"
	"fmt"

	"github.com/goliatone/go-botway/cache"
	"github.com/goliatone/go-botway/core"
	"github.com/goliatone/go-botway/dispatch"
	"github.com/goliatone/go-botway/gateway"
	"github.com/goliatone/go-botway/ratelimit"
	"github.com/goliatone/go-botway/stats"
	"github.com/goliatone/go-botway/webhooks"
	glog "github.com/goliatone/go-logger/glog"
)

type Config = core.Config

type GatewayConfig = core.GatewayConfig
type ThrottleConfig = core.ThrottleConfig
type CacheConfig = core.CacheConfig
type WebhookConfig = core.WebhookConfig

type Logger = core.Logger
type LoggerProvider = core.LoggerProvider
type MetricsRecorder = core.MetricsRecorder
type ErrorMapper = core.ErrorMapper
type ConfigProvider = core.ConfigProvider
type OptionsResolver = core.OptionsResolver

type Update = core.Update
type UpdateKind = core.UpdateKind
type APIResult = core.APIResult
type UsageSnapshot = core.UsageSnapshot
type DispatchOutcome = core.DispatchOutcome
type DispatchActivity = core.DispatchActivity
type DispatchActivityFilter = core.DispatchActivityFilter
type DispatchActivityPage = core.DispatchActivityPage
type InboundRequest = core.InboundRequest
type InboundResult = core.InboundResult

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// StoreFactory is the contract a persistence-backed store factory satisfies
// so the service can resolve its delivery ledger and activity stores.
type StoreFactory interface {
	BuildStores(persistenceClient any) error
	DeliveryLedger() webhooks.DeliveryLedger
}

// Service wires the TTL store, usage aggregator, throttle policy, resilient
// gateway, update dispatcher and webhook processor behind one lifecycle.
type Service struct {
	config           Config
	logger           Logger
	loggerProvider   LoggerProvider
	metricsRecorder  MetricsRecorder
	errorMapper      ErrorMapper
	store            cache.Store
	sweeper          *cache.Sweeper
	usage            core.UsageRecorder
	throttle         core.ThrottlePolicy
	caller           core.APICaller
	gatewayClient    *gateway.Client
	dispatcher       *dispatch.Dispatcher
	ledger           webhooks.DeliveryLedger
	processor        *webhooks.Processor
	activityRecorder core.ActivityRecorder
	activityReader   core.ActivityReader
	persistence      any
	storeFactory     any
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := serviceBuilder{runtimeConfig: cfg}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("botway", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("botway"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = core.NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = core.DefaultErrorMapper()
	}
	if builder.configProvider == nil {
		builder.configProvider = core.NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = core.GoOptionsResolver{}
	}

	defaults := core.DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	store := builder.store
	if store == nil {
		store = cache.NewMemoryStore(finalConfig.Cache.DefaultTTL)
	}
	var sweeper *cache.Sweeper
	if sweepable, ok := store.(cache.Sweepable); ok {
		sweeper = cache.NewSweeper(sweepable, finalConfig.Cache.SweepInterval)
	}

	usage := builder.usageRecorder
	if usage == nil {
		usage = stats.NewAggregator(store)
	}
	throttle := builder.throttlePolicy
	if throttle == nil {
		throttle = ratelimit.NewFixedWindowPolicy(
			store,
			finalConfig.Throttle.Window,
			finalConfig.Throttle.Limit,
		)
	}

	caller := builder.apiCaller
	var gatewayClient *gateway.Client
	if caller == nil {
		gatewayClient = gateway.NewClient(finalConfig.Gateway)
		gatewayClient.Logger = logger
		gatewayClient.Metrics = builder.metricsRecorder
		if builder.httpClient != nil {
			gatewayClient.HTTPClient = builder.httpClient
		}
		caller = gatewayClient
	}

	ledger := builder.deliveryLedger
	activityRecorder := builder.activityRecorder
	activityReader := builder.activityReader
	if builder.storeFactory != nil {
		if factory, ok := builder.storeFactory.(StoreFactory); ok {
			if err := factory.BuildStores(builder.persistence); err != nil {
				return nil, mapBuildError(builder.errorMapper, err)
			}
			if ledger == nil {
				ledger = factory.DeliveryLedger()
			}
		}
		if activityRecorder == nil {
			if p, ok := builder.storeFactory.(interface{ ActivityRecorder() core.ActivityRecorder }); ok {
				activityRecorder = p.ActivityRecorder()
			}
		}
		if activityReader == nil {
			if p, ok := builder.storeFactory.(interface{ ActivityReader() core.ActivityReader }); ok {
				activityReader = p.ActivityReader()
			}
		}
	}
	if ledger == nil {
		ledger = webhooks.NewMemoryLedger()
	}

	dispatcher := dispatch.NewDispatcher(caller, usage, throttle)
	dispatcher.Logger = logger
	dispatcher.Metrics = builder.metricsRecorder
	dispatcher.BotName = finalConfig.BotName
	dispatcher.Activity = activityRecorder
	if builder.extensionHooks != nil {
		if err := builder.extensionHooks.ApplyResponderPacks(dispatcher); err != nil {
			return nil, mapBuildError(builder.errorMapper, err)
		}
	}

	verifier := builder.verifier
	if verifier == nil {
		if finalConfig.Webhook.SecretToken != "" {
			verifier = webhooks.NewSecretTokenVerifier(finalConfig.Webhook.SecretToken)
		} else {
			verifier = webhooks.NoopVerifier{}
		}
	}
	processor := webhooks.NewProcessor(verifier, ledger, dispatcher)
	processor.Logger = logger
	if finalConfig.Webhook.MaxAttempts > 0 {
		processor.MaxAttempts = finalConfig.Webhook.MaxAttempts
	}

	return &Service{
		config:           finalConfig,
		logger:           logger,
		loggerProvider:   provider,
		metricsRecorder:  builder.metricsRecorder,
		errorMapper:      builder.errorMapper,
		store:            store,
		sweeper:          sweeper,
		usage:            usage,
		throttle:         throttle,
		caller:           caller,
		gatewayClient:    gatewayClient,
		dispatcher:       dispatcher,
		ledger:           ledger,
		processor:        processor,
		activityRecorder: activityRecorder,
		activityReader:   activityReader,
		persistence:      builder.persistence,
		storeFactory:     builder.storeFactory,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper != nil {
		if mapped := mapper(err); mapped != nil {
			return mapped
		}
	}
	return err
}

// Start launches the background cache sweeper. Safe to call once; Stop
// reverses it.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("botway: service is not configured")
	}
	if s.sweeper != nil {
		s.sweeper.Start()
	}
	core.EmitLog(ctx, s.logger, "info", "bot gateway started", map[string]any{
		"service":  s.config.ServiceName,
		"bot_name": s.config.BotName,
	})
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	core.EmitLog(ctx, s.logger, "info", "bot gateway stopped", map[string]any{
		"service": s.config.ServiceName,
	})
	return nil
}

// ProcessWebhook verifies, dedupes and dispatches one raw delivery.
func (s *Service) ProcessWebhook(ctx context.Context, req InboundRequest) (InboundResult, error) {
	if s == nil || s.processor == nil {
		return InboundResult{}, fmt.Errorf("botway: webhook processor is not configured")
	}
	result, err := s.processor.Process(ctx, req)
	if err != nil {
		return result, s.mapError(err)
	}
	return result, nil
}

// ProcessUpdate routes one decoded update. It always returns an outcome.
func (s *Service) ProcessUpdate(ctx context.Context, update Update) DispatchOutcome {
	if s == nil || s.dispatcher == nil {
		return DispatchOutcome{Status: core.DispatchStatusDropped, Detail: "service not configured"}
	}
	return s.dispatcher.Dispatch(ctx, update)
}

// SendMessage issues a direct sendMessage call through the gateway.
func (s *Service) SendMessage(ctx context.Context, chatID int64, text string) (APIResult, error) {
	if s == nil || s.caller == nil {
		return APIResult{}, fmt.Errorf("botway: api caller is not configured")
	}
	result := s.caller.Call(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if !result.Success {
		return result, s.mapError(fmt.Errorf("botway: send message failed: %s", result.Error))
	}
	return result, nil
}

func (s *Service) UsageSnapshot() UsageSnapshot {
	if s == nil || s.usage == nil {
		return UsageSnapshot{}
	}
	return s.usage.Snapshot()
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Logger() Logger {
	if s == nil {
		return glog.Nop()
	}
	return s.logger
}

func (s *Service) Caller() core.APICaller {
	if s == nil {
		return nil
	}
	return s.caller
}

// Gateway returns the built-in gateway client, or nil when a custom caller
// was supplied.
func (s *Service) Gateway() *gateway.Client {
	if s == nil {
		return nil
	}
	return s.gatewayClient
}

func (s *Service) Dispatcher() *dispatch.Dispatcher {
	if s == nil {
		return nil
	}
	return s.dispatcher
}

func (s *Service) Processor() *webhooks.Processor {
	if s == nil {
		return nil
	}
	return s.processor
}

func (s *Service) DeliveryLedger() webhooks.DeliveryLedger {
	if s == nil {
		return nil
	}
	return s.ledger
}

func (s *Service) Usage() core.UsageRecorder {
	if s == nil {
		return nil
	}
	return s.usage
}

func (s *Service) Throttle() core.ThrottlePolicy {
	if s == nil {
		return nil
	}
	return s.throttle
}

func (s *Service) ActivityRecorder() core.ActivityRecorder {
	if s == nil {
		return nil
	}
	return s.activityRecorder
}

func (s *Service) ActivityReader() core.ActivityReader {
	if s == nil {
		return nil
	}
	return s.activityReader
}

func (s *Service) CacheStore() cache.Store {
	if s == nil {
		return nil
	}
	return s.store
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s != nil && s.errorMapper != nil {
		if mapped := s.errorMapper(err); mapped != nil {
			return mapped
		}
	}
	return err
}
