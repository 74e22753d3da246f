package botway

import (
	"net/http"

	"github.com/goliatone/go-botway/cache"
	"github.com/goliatone/go-botway/core"
	"github.com/goliatone/go-botway/webhooks"
)

type serviceBuilder struct {
	runtimeConfig    Config
	logger           Logger
	loggerProvider   LoggerProvider
	metricsRecorder  MetricsRecorder
	errorMapper      ErrorMapper
	configProvider   ConfigProvider
	optionsResolver  OptionsResolver
	httpClient       *http.Client
	apiCaller        core.APICaller
	store            cache.Store
	usageRecorder    core.UsageRecorder
	throttlePolicy   core.ThrottlePolicy
	deliveryLedger   webhooks.DeliveryLedger
	verifier         webhooks.Verifier
	activityRecorder core.ActivityRecorder
	activityReader   core.ActivityReader
	persistence      any
	storeFactory     any
	extensionHooks   *ExtensionHooks
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

// WithHTTPClient overrides the upstream client used by the default gateway.
// Ignored when WithAPICaller supplies a complete caller.
func WithHTTPClient(client *http.Client) Option {
	return func(b *serviceBuilder) {
		b.httpClient = client
	}
}

func WithAPICaller(caller core.APICaller) Option {
	return func(b *serviceBuilder) {
		b.apiCaller = caller
	}
}

// WithCacheStore swaps the TTL store backing usage counters and throttle
// windows.
func WithCacheStore(store cache.Store) Option {
	return func(b *serviceBuilder) {
		b.store = store
	}
}

func WithUsageRecorder(recorder core.UsageRecorder) Option {
	return func(b *serviceBuilder) {
		b.usageRecorder = recorder
	}
}

func WithThrottlePolicy(policy core.ThrottlePolicy) Option {
	return func(b *serviceBuilder) {
		b.throttlePolicy = policy
	}
}

func WithDeliveryLedger(ledger webhooks.DeliveryLedger) Option {
	return func(b *serviceBuilder) {
		b.deliveryLedger = ledger
	}
}

func WithWebhookVerifier(verifier webhooks.Verifier) Option {
	return func(b *serviceBuilder) {
		b.verifier = verifier
	}
}

func WithActivityRecorder(recorder core.ActivityRecorder) Option {
	return func(b *serviceBuilder) {
		b.activityRecorder = recorder
	}
}

func WithActivityReader(reader core.ActivityReader) Option {
	return func(b *serviceBuilder) {
		b.activityReader = reader
	}
}

// WithPersistenceClient hands the database client to the store factory.
func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistence = client
	}
}

// WithStoreFactory supplies a factory that builds the delivery ledger and
// activity stores from the persistence client.
func WithStoreFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.storeFactory = factory
	}
}

// WithExtensionHooks applies registered responder packs to the dispatcher
// during construction.
func WithExtensionHooks(hooks *ExtensionHooks) Option {
	return func(b *serviceBuilder) {
		b.extensionHooks = hooks
	}
}
