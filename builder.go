package jobwire

import (
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jobwire/jobwire-go/apierror"
	"github.com/jobwire/jobwire-go/cache"
	"github.com/jobwire/jobwire-go/mutate"
	"github.com/jobwire/jobwire-go/session"
	"github.com/jobwire/jobwire-go/transport"
)

// Builder assembles a [Client]. Configure it during initialization, call
// [Builder.Build] once, and treat the result as immutable.
type Builder struct {
	config Config

	storage    session.Storage
	redis      *redis.Client
	httpClient *http.Client
	logger     zerolog.Logger

	onAuthExpired func()

	built bool
}

// New returns a [Builder] with defaults applied.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: zerolog.Nop(),
	}
}

// WithConfig replaces the full configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets the API base URL.
func (b *Builder) WithBaseURL(url string) *Builder {
	b.config.API.BaseURL = url
	return b
}

// WithStorage sets the session storage backend directly.
func (b *Builder) WithStorage(storage session.Storage) *Builder {
	b.storage = storage
	return b
}

// WithRedis uses client as the session storage backend, namespaced under
// [SessionConfig.RedisPrefix]. Ignored when [Builder.WithStorage] was called.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient replaces the internal HTTP client, primarily for tests.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithLogger sets the structured logger. The default discards everything.
func (b *Builder) WithLogger(log zerolog.Logger) *Builder {
	b.logger = log
	return b
}

// WithOverrides sets the friendly-message override table.
func (b *Builder) WithOverrides(overrides apierror.Overrides) *Builder {
	b.config.Errors.Overrides = overrides
	return b
}

// WithAuthExpiredHandler registers the callback invoked when 401 recovery
// fails and the session is cleared. The embedding UI navigates to its login
// entry point here.
func (b *Builder) WithAuthExpiredHandler(handler func()) *Builder {
	b.onAuthExpired = handler
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the request-latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the client together. A
// Builder can build at most one client.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderReused
	}

	cfg := cloneConfig(b.config)
	cfg.resolveBaseURL()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	storage := b.storage
	if storage == nil && b.redis != nil {
		storage = session.NewRedisStorage(b.redis, cfg.Session.RedisPrefix)
	}
	if storage == nil {
		return nil, ErrStorageRequired
	}

	sessions := session.NewStore(storage, cfg.Session.StorageKey, cfg.Session.LegacyStorageKey, b.logger)

	entities, err := cache.New(cfg.Cache.Size)
	if err != nil {
		return nil, err
	}

	metrics := NewMetrics(cfg.Metrics)

	pipeline := transport.New(transport.Config{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout,
		Overrides:  cfg.Errors.Overrides,
		HTTPClient: b.httpClient,
	}, sessions, b.logger)

	mutations := mutate.New(entities, cfg.Errors.Overrides, b.logger)

	client := &Client{
		config:    cfg,
		log:       b.logger,
		sessions:  sessions,
		cache:     entities,
		pipeline:  pipeline,
		mutations: mutations,
		metrics:   metrics,
	}

	pipeline.SetRecoveryHook(func(success bool) {
		if success {
			metrics.Inc(MetricAuthRetrySuccess)
		} else {
			metrics.Inc(MetricAuthRetryFailure)
		}
	})
	pipeline.SetAuthExpiredHook(func() {
		entities.Purge()
		if b.onAuthExpired != nil {
			b.onAuthExpired()
		}
	})
	mutations.SetSettleHook(func(_ cache.Key, committed bool) {
		if committed {
			metrics.Inc(MetricMutationCommitted)
		} else {
			metrics.Inc(MetricMutationRolledBack)
		}
	})

	b.built = true
	return client, nil
}
