// Package transport is the authenticated request pipeline. Every outbound
// call to the jobwire API goes through [Pipeline.Do]: it resolves the base
// URL, attaches the bearer token, executes with a fixed timeout, recovers
// from a 401 at most once via session restoration, and normalizes every
// failure exactly once before it leaves the boundary.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jobwire/jobwire-go/apierror"
)

// DefaultTimeout bounds every HTTP call. There is no mutation-level timeout
// above this; the transport deadline is the only one.
const DefaultTimeout = 30 * time.Second

// Credentials is the slice of the session store the pipeline needs: read
// the token, trigger one restoration, and clear on escalation.
// *session.Store satisfies it.
type Credentials interface {
	Token() string
	Authenticated() bool
	Restore(ctx context.Context) bool
	Clear(ctx context.Context)
}

// Config configures a [Pipeline].
type Config struct {
	// BaseURL of the API. An "/api" suffix is appended when absent.
	BaseURL string
	// Timeout per HTTP call; DefaultTimeout when zero.
	Timeout time.Duration
	// Overrides is the optional friendly-message override table.
	Overrides apierror.Overrides
	// HTTPClient, when set, replaces the internal client (tests). Its
	// Timeout is left untouched.
	HTTPClient *http.Client
}

// Pipeline executes authenticated API requests.
type Pipeline struct {
	http      *http.Client
	baseURL   string
	creds     Credentials
	overrides apierror.Overrides
	log       zerolog.Logger

	// onAuthExpired fires when 401 recovery fails: session cleared, UI must
	// navigate to the login entry point.
	onAuthExpired func()
	// onRecovery observes each 401 restore attempt (metrics hook).
	onRecovery func(success bool)
}

// New creates a [Pipeline] using creds as its token source.
func New(cfg Config, creds Credentials, log zerolog.Logger) *Pipeline {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Pipeline{
		http:      httpClient,
		baseURL:   ResolveBaseURL(cfg.BaseURL),
		creds:     creds,
		overrides: cfg.Overrides,
		log:       log,
	}
}

// SetAuthExpiredHook registers the forced-logout callback. Must be called
// before the pipeline is shared across goroutines.
func (p *Pipeline) SetAuthExpiredHook(hook func()) { p.onAuthExpired = hook }

// SetRecoveryHook registers the 401-recovery observer. Must be called
// before the pipeline is shared across goroutines.
func (p *Pipeline) SetRecoveryHook(hook func(success bool)) { p.onRecovery = hook }

// BaseURL returns the resolved API root.
func (p *Pipeline) BaseURL() string { return p.baseURL }

// ResolveBaseURL trims a trailing slash and appends "/api" when the
// environment-provided URL does not already end in it.
func ResolveBaseURL(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" {
		return ""
	}
	if !strings.HasSuffix(raw, "/api") {
		raw += "/api"
	}
	return raw
}

// Do executes method on path with an optional JSON body, decoding a 2xx
// response into out when out is non-nil. The returned error, when non-nil,
// is always an *apierror.Normalized.
//
// 401 handling: requests flagged [SkipAuthRedirect] reject immediately with
// no side effects. Otherwise the pipeline attempts exactly one session
// restoration; if the session is valid afterwards the original request is
// retried once with the refreshed token, and if not the session is cleared
// and the auth-expired hook fires. The retry flag is per original request,
// so a 401 on the retried attempt escalates instead of looping.
func (p *Pipeline) Do(ctx context.Context, method, path string, body, out any, opts ...Option) error {
	options := buildOptions(opts)

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return apierror.Normalize(err, p.overrides)
		}
	}

	requestID := requestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	retried := false

	for {
		resp, err := p.execute(ctx, method, path, payload, requestID)
		if err != nil {
			return apierror.Normalize(err, p.overrides)
		}

		if resp.StatusCode < http.StatusMultipleChoices {
			return p.decode(resp, out)
		}

		if resp.StatusCode == http.StatusUnauthorized && !options.skipAuthRedirect {
			// Capture the payload before recovery: if the session cannot be
			// restored, the caller gets the server's actual code (for example
			// a revocation), not a synthesized one.
			respErr := apierror.FromResponse(resp)
			_ = resp.Body.Close()
			if !retried {
				retried = true
				if p.recover(ctx) {
					p.log.Debug().Str("request_id", requestID).Msg("retrying after session restore")
					continue
				}
			}
			p.escalate(ctx)
			return p.expiredError(respErr)
		}

		normalized := apierror.Normalize(apierror.FromResponse(resp), p.overrides)
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound && options.expectAbsent {
			normalized.ExpectedAbsence = true
		}
		return normalized
	}
}

// Probe issues a GET against an existence-probe endpoint. It returns
// exists=false without error on an expected 404, and never touches session
// state on 401: a probe failing authentication is an outcome for the
// caller, not a trigger for recovery.
func (p *Pipeline) Probe(ctx context.Context, path string, out any) (bool, error) {
	err := p.Do(ctx, http.MethodGet, path, nil, out, SkipAuthRedirect(), ExpectAbsent())
	if err != nil {
		var normalized *apierror.Normalized
		if errors.As(err, &normalized) && normalized.IsNotFoundProbe() {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p *Pipeline) execute(ctx context.Context, method, path string, payload []byte, requestID string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := p.creds.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	return p.http.Do(req)
}

func (p *Pipeline) decode(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apierror.Normalize(err, p.overrides)
	}
	return nil
}

// recover performs the single guarded session restoration for a 401.
func (p *Pipeline) recover(ctx context.Context) bool {
	p.creds.Restore(ctx)
	ok := p.creds.Authenticated()
	if p.onRecovery != nil {
		p.onRecovery(ok)
	}
	return ok
}

func (p *Pipeline) escalate(ctx context.Context) {
	p.creds.Clear(ctx)
	p.log.Info().Msg("session expired, forcing logout")
	if p.onAuthExpired != nil {
		p.onAuthExpired()
	}
}

// expiredError normalizes an unrecoverable 401. The server's own code and
// message win when present; a bare 401 falls back to the token-expired code.
func (p *Pipeline) expiredError(respErr *apierror.ResponseError) error {
	normalized := apierror.Normalize(respErr, p.overrides)
	if normalized.Code == apierror.CodeUnknown {
		normalized.Code = apierror.CodeTokenExpired
		if strings.TrimSpace(normalized.Message) == "" {
			normalized.FriendlyMessage = mustFriendly(apierror.CodeTokenExpired)
		}
	}
	return normalized
}

func mustFriendly(code apierror.Code) string {
	msg, _ := apierror.FriendlyMessage(code)
	return msg
}
