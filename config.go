package jobwire

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/jobwire/jobwire-go/apierror"
	"github.com/jobwire/jobwire-go/cache"
	"github.com/jobwire/jobwire-go/session"
	"github.com/jobwire/jobwire-go/transport"
)

// EnvAPIURL is the environment variable consulted when [APIConfig.BaseURL]
// is empty.
const EnvAPIURL = "JOBWIRE_API_URL"

// Config is the top-level configuration for a [Client]. The zero value plus
// a base URL is a working setup; defaults are filled during Build.
type Config struct {
	API     APIConfig
	Session SessionConfig
	Cache   CacheConfig
	Errors  ErrorsConfig
	Metrics MetricsConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig configures the request pipeline.
type APIConfig struct {
	// BaseURL of the jobwire API. Falls back to [EnvAPIURL] when empty. An
	// "/api" path suffix is appended when absent.
	BaseURL string
	// Timeout per HTTP call. Defaults to [transport.DefaultTimeout].
	Timeout time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures persisted session storage.
type SessionConfig struct {
	// StorageKey for the session record. Defaults to [session.DefaultKey].
	StorageKey string
	// LegacyStorageKey older clients used for a bare token. Defaults to
	// [session.DefaultLegacyKey].
	LegacyStorageKey string
	// RedisPrefix namespaces keys when the Redis backend is used.
	RedisPrefix string
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig bounds the entity cache.
type CacheConfig struct {
	// Size is the confirmed-entry capacity. Defaults to [cache.DefaultSize].
	// Speculative entries are pinned outside this bound.
	Size int
}

/*
====================================
ERRORS CONFIG
====================================
*/

// ErrorsConfig customizes error presentation.
type ErrorsConfig struct {
	// Overrides replaces built-in friendly messages per error code, the
	// localization hook for embedding applications.
	Overrides apierror.Overrides
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig configures the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			Timeout: transport.DefaultTimeout,
		},
		Session: SessionConfig{
			StorageKey:       session.DefaultKey,
			LegacyStorageKey: session.DefaultLegacyKey,
		},
		Cache: CacheConfig{
			Size: cache.DefaultSize,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Errors.Overrides != nil {
		overrides := make(apierror.Overrides, len(cfg.Errors.Overrides))
		for code, msg := range cfg.Errors.Overrides {
			overrides[code] = msg
		}
		out.Errors.Overrides = overrides
	}
	return out
}

// resolveBaseURL applies the environment fallback.
func (c *Config) resolveBaseURL() {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		c.API.BaseURL = os.Getenv(EnvAPIURL)
	}
}

// Validate checks the configuration after defaults are applied.
func (c Config) Validate() error {
	base := strings.TrimSpace(c.API.BaseURL)
	if base == "" {
		return ErrBaseURLRequired
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return errors.New("api base url must be http or https")
	}
	if c.API.Timeout < 0 {
		return errors.New("api timeout must not be negative")
	}
	if c.Cache.Size < 0 {
		return errors.New("cache size must not be negative")
	}
	return nil
}
