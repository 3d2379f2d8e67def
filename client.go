package jobwire

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/jobwire/jobwire-go/cache"
	"github.com/jobwire/jobwire-go/chat"
	"github.com/jobwire/jobwire-go/mutate"
	"github.com/jobwire/jobwire-go/session"
	"github.com/jobwire/jobwire-go/transport"
)

// Client is the state synchronization core. One Client serves one user
// session; all methods are safe for concurrent use.
type Client struct {
	config Config
	log    zerolog.Logger

	sessions  *session.Store
	cache     *cache.Store
	pipeline  *transport.Pipeline
	mutations *mutate.Coordinator
	metrics   *Metrics
}

/*
====================================
SESSION
====================================
*/

// Login authenticates with the jobwire API and installs the session. The
// returned state carries the decoded user identity.
func (c *Client) Login(ctx context.Context, username, password string) (session.State, error) {
	// A 401 here means bad credentials, not an expired session; it must not
	// trigger the restore-retry path.
	var resp session.LoginResponse
	req := LoginRequest{Username: username, Password: password}
	if err := c.request(ctx, http.MethodPost, "/auth/login", req, &resp, transport.SkipAuthRedirect()); err != nil {
		c.metrics.Inc(MetricLoginFailure)
		return session.State{}, err
	}

	if err := c.sessions.Login(ctx, resp); err != nil {
		c.metrics.Inc(MetricLoginFailure)
		return session.State{}, err
	}

	c.metrics.Inc(MetricLoginSuccess)
	return c.sessions.Current(), nil
}

// Logout tells the server, then clears the session and purges the cache.
// The server call is best effort; local logout always wins.
func (c *Client) Logout(ctx context.Context) {
	if c.sessions.Authenticated() {
		if err := c.request(ctx, http.MethodPost, "/auth/logout", nil, nil, transport.SkipAuthRedirect()); err != nil {
			c.log.Debug().Err(err).Msg("server logout failed, clearing locally")
		}
	}

	c.sessions.Clear(ctx)
	c.cache.Purge()
	c.metrics.Inc(MetricLogout)
}

// Restore brings the session back from persisted storage, migrating the
// legacy bare-token key when present. Returns whether a usable session is
// active afterwards.
func (c *Client) Restore(ctx context.Context) bool {
	ok := c.sessions.Restore(ctx)
	if ok {
		c.metrics.Inc(MetricRestoreSuccess)
	} else {
		c.metrics.Inc(MetricRestoreFailure)
	}
	return ok
}

// Authenticated reports whether a session is active.
func (c *Client) Authenticated() bool { return c.sessions.Authenticated() }

// Hydrated reports whether persisted storage has been checked at least
// once. Render no auth-dependent UI until this is true.
func (c *Client) Hydrated() bool { return c.sessions.Hydrated() }

// CurrentUser returns the logged-in user, if any.
func (c *Client) CurrentUser() (session.User, bool) {
	state := c.sessions.Current()
	if !state.Authenticated || state.User == nil {
		return session.User{}, false
	}
	return *state.User, true
}

/*
====================================
READS
====================================
*/

// Get returns the entity at key, fetching path on a cache miss. A fetch
// that loses to a concurrent mutation still returns its value, but the
// speculative cache entry is left untouched.
func (c *Client) Get(ctx context.Context, key cache.Key, path string) (cache.Value, error) {
	if value, _, ok := c.cache.Get(key); ok {
		c.metrics.Inc(MetricCacheHit)
		return value, nil
	}
	c.metrics.Inc(MetricCacheMiss)

	gen := c.cache.BeginRead(key)
	var value cache.Value
	if err := c.request(ctx, http.MethodGet, path, nil, &value); err != nil {
		return nil, err
	}
	c.cache.CompleteRead(key, gen, value)
	return value, nil
}

// Cached returns the entity at key without fetching. [ErrNotCached] when
// absent.
func (c *Client) Cached(key cache.Key) (cache.Value, error) {
	value, _, ok := c.cache.Get(key)
	if !ok {
		return nil, ErrNotCached
	}
	return value, nil
}

// Watch subscribes to cache changes for key. Call cancel exactly once.
func (c *Client) Watch(key cache.Key) (<-chan cache.Event, func()) {
	return c.cache.Subscribe(key)
}

// Probe checks whether a resource exists behind an existence-probe
// endpoint. An expected 404 is (false, nil), not an error.
func (c *Client) Probe(ctx context.Context, path string, out any) (bool, error) {
	return c.pipeline.Probe(ctx, path, out)
}

/*
====================================
MUTATIONS
====================================
*/

// Mutate applies patch to key optimistically, sends method/body to path,
// and settles the cache against the outcome: the server response on
// success, the pre-mutation snapshot on failure. Overlapping mutations on
// one key queue behind each other.
func (c *Client) Mutate(ctx context.Context, key cache.Key, patch cache.Patch, method, path string, body any) (cache.Value, error) {
	return c.mutations.Perform(ctx, key, patch, func(ctx context.Context) (cache.Value, error) {
		var value cache.Value
		if err := c.request(ctx, method, path, body, &value); err != nil {
			return nil, err
		}
		return value, nil
	})
}

// Pending returns the unsettled mutation intents, for pending indicators.
func (c *Client) Pending() []mutate.Intent { return c.mutations.Pending() }

// PendingFor reports whether key has an unsettled mutation.
func (c *Client) PendingFor(key cache.Key) bool { return c.mutations.PendingFor(key) }

/*
====================================
RAW ACCESS
====================================
*/

// Do executes an arbitrary API request through the authenticated pipeline.
// Use it for endpoints without cache semantics, such as paginated listings.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...transport.Option) error {
	return c.request(ctx, method, path, body, out, opts...)
}

// OpenChat connects the realtime channel for one conversation using the
// session token.
func (c *Client) OpenChat(ctx context.Context, conversationID string) (*chat.Channel, error) {
	tok := c.sessions.Token()
	if tok == "" {
		return nil, ErrNotAuthenticated
	}
	return chat.Dial(ctx, c.pipeline.BaseURL(), conversationID, tok, c.log)
}

// Metrics returns a snapshot of the in-process counters.
func (c *Client) Metrics() MetricsSnapshot { return c.metrics.Snapshot() }

func (c *Client) request(ctx context.Context, method, path string, body, out any, opts ...transport.Option) error {
	start := time.Now()
	err := c.pipeline.Do(ctx, method, path, body, out, opts...)
	c.metrics.Observe(MetricRequestLatency, time.Since(start))
	return err
}
