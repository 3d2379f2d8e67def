package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jobwire/jobwire-go/apierror"
)

type fakeCreds struct {
	mu           sync.Mutex
	token        string
	restoreToken string
	restoreOK    bool
	restores     int
	clears       int
}

func (f *fakeCreds) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeCreds) Authenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token != ""
}

func (f *fakeCreds) Restore(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restores++
	if f.restoreOK {
		f.token = f.restoreToken
		return true
	}
	f.token = ""
	return false
}

func (f *fakeCreds) Clear(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	f.token = ""
}

func newPipeline(t *testing.T, server *httptest.Server, creds Credentials) *Pipeline {
	t.Helper()
	return New(Config{BaseURL: server.URL + "/api"}, creds, zerolog.Nop())
}

func TestDoAttachesHeaders(t *testing.T) {
	var gotAuth, gotRequestID, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"42"}`))
	}))
	defer server.Close()

	p := newPipeline(t, server, &fakeCreds{token: "tok123"})

	var out map[string]any
	if err := p.Do(context.Background(), http.MethodGet, "/jobs/42", nil, &out); err != nil {
		t.Fatalf("do failed: %v", err)
	}
	if gotAuth != "Bearer tok123" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotRequestID == "" {
		t.Error("request id missing")
	}
	if gotAccept != "application/json" {
		t.Errorf("accept = %q", gotAccept)
	}
	if out["id"] != "42" {
		t.Errorf("decoded %v", out)
	}
}

func TestDoOmitsBearerWhenLoggedOut(t *testing.T) {
	var sawAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawAuth = r.Header["Authorization"]
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	p := newPipeline(t, server, &fakeCreds{})
	if err := p.Do(context.Background(), http.MethodGet, "/jobs", nil, nil); err != nil {
		t.Fatalf("do failed: %v", err)
	}
	if sawAuth {
		t.Error("authorization header sent without a session")
	}
}

func TestDoUsesRequestIDFromContext(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-ID")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	p := newPipeline(t, server, &fakeCreds{})
	ctx := WithRequestID(context.Background(), "trace-1")
	if err := p.Do(ctx, http.MethodGet, "/jobs", nil, nil); err != nil {
		t.Fatalf("do failed: %v", err)
	}
	if got != "trace-1" {
		t.Errorf("request id = %q, want trace-1", got)
	}
}

func TestDo401RetriesExactlyOnceAfterRestore(t *testing.T) {
	var mu sync.Mutex
	var auths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auths = append(auths, r.Header.Get("Authorization"))
		attempt := len(auths)
		mu.Unlock()
		if attempt == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	creds := &fakeCreds{token: "stale", restoreOK: true, restoreToken: "fresh"}
	p := newPipeline(t, server, creds)

	var out map[string]any
	if err := p.Do(context.Background(), http.MethodGet, "/me", nil, &out); err != nil {
		t.Fatalf("do failed: %v", err)
	}
	if creds.restores != 1 {
		t.Errorf("restores = %d, want 1", creds.restores)
	}
	if len(auths) != 2 || auths[0] != "Bearer stale" || auths[1] != "Bearer fresh" {
		t.Errorf("auth sequence = %v", auths)
	}
}

func TestDo401EscalatesWhenRestoreFails(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	creds := &fakeCreds{token: "stale", restoreOK: false}
	p := newPipeline(t, server, creds)

	var expired bool
	p.SetAuthExpiredHook(func() { expired = true })

	err := p.Do(context.Background(), http.MethodGet, "/me", nil, nil)
	if err == nil {
		t.Fatal("do succeeded on unrecoverable 401")
	}
	var normalized *apierror.Normalized
	if !errors.As(err, &normalized) || !normalized.IsAuth() {
		t.Fatalf("err = %v, want auth failure", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry without a session)", attempts)
	}
	if creds.restores != 1 || creds.clears != 1 {
		t.Errorf("restores = %d clears = %d, want 1 each", creds.restores, creds.clears)
	}
	if !expired {
		t.Error("auth-expired hook not invoked")
	}
}

func TestDo401OnRetryEscalatesInsteadOfLooping(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	creds := &fakeCreds{token: "stale", restoreOK: true, restoreToken: "fresh"}
	p := newPipeline(t, server, creds)

	err := p.Do(context.Background(), http.MethodGet, "/me", nil, nil)
	if err == nil {
		t.Fatal("do succeeded on persistent 401")
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want exactly 2", attempts)
	}
	if creds.restores != 1 {
		t.Errorf("restores = %d, want 1", creds.restores)
	}
	if creds.clears != 1 {
		t.Errorf("clears = %d, want 1", creds.clears)
	}
}

func TestDo401EscalationKeepsServerErrorCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"SESSION_REVOKED","message":"session revoked by user"}`))
	}))
	defer server.Close()

	creds := &fakeCreds{token: "stale", restoreOK: false}
	p := newPipeline(t, server, creds)

	err := p.Do(context.Background(), http.MethodGet, "/me", nil, nil)
	var normalized *apierror.Normalized
	if !errors.As(err, &normalized) {
		t.Fatalf("err = %v, want normalized", err)
	}
	if normalized.Code != apierror.CodeSessionRevoked {
		t.Errorf("code = %q, want the server's SESSION_REVOKED, not a synthesized one", normalized.Code)
	}
	if normalized.Message != "session revoked by user" {
		t.Errorf("message = %q, want the server's message", normalized.Message)
	}
	msg, _ := apierror.FriendlyMessage(apierror.CodeSessionRevoked)
	if normalized.FriendlyMessage != msg {
		t.Errorf("friendly = %q, want %q", normalized.FriendlyMessage, msg)
	}
}

func TestDo401EscalationFallsBackToTokenExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	p := newPipeline(t, server, &fakeCreds{token: "stale", restoreOK: false})

	err := p.Do(context.Background(), http.MethodGet, "/me", nil, nil)
	var normalized *apierror.Normalized
	if !errors.As(err, &normalized) {
		t.Fatalf("err = %v, want normalized", err)
	}
	if normalized.Code != apierror.CodeTokenExpired {
		t.Errorf("code = %q, want TOKEN_EXPIRED for a bare 401", normalized.Code)
	}
}

func TestSkipAuthRedirectHasNoSideEffects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	creds := &fakeCreds{token: "tok", restoreOK: true, restoreToken: "fresh"}
	p := newPipeline(t, server, creds)

	err := p.Do(context.Background(), http.MethodGet, "/probe", nil, nil, SkipAuthRedirect())
	if err == nil {
		t.Fatal("do succeeded on 401")
	}
	if creds.restores != 0 || creds.clears != 0 {
		t.Errorf("restores = %d clears = %d, want 0 each", creds.restores, creds.clears)
	}
	if creds.Token() != "tok" {
		t.Error("session touched by a skip-redirect request")
	}
}

func TestExpectAbsentFlags404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"PROFILE_NOT_FOUND"}`, http.StatusNotFound)
	}))
	defer server.Close()

	p := newPipeline(t, server, &fakeCreds{token: "tok"})

	err := p.Do(context.Background(), http.MethodGet, "/profiles/u-1", nil, nil, ExpectAbsent())
	var normalized *apierror.Normalized
	if !errors.As(err, &normalized) || !normalized.IsNotFoundProbe() {
		t.Fatalf("err = %v, want expected-absence 404", err)
	}

	// Without the option, the same 404 is an ordinary failure.
	err = p.Do(context.Background(), http.MethodGet, "/profiles/u-1", nil, nil)
	if errors.As(err, &normalized) && normalized.IsNotFoundProbe() {
		t.Error("plain 404 flagged as expected absence")
	}
}

func TestProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/profiles/jobseeker/u-1":
			_, _ = w.Write([]byte(`{"id":"u-1"}`))
		default:
			http.Error(w, `{"code":"PROFILE_NOT_FOUND"}`, http.StatusNotFound)
		}
	}))
	defer server.Close()

	p := newPipeline(t, server, &fakeCreds{token: "tok"})

	var out map[string]any
	exists, err := p.Probe(context.Background(), "/profiles/jobseeker/u-1", &out)
	if err != nil || !exists {
		t.Fatalf("probe = %v, %v; want exists", exists, err)
	}
	if out["id"] != "u-1" {
		t.Errorf("decoded %v", out)
	}

	exists, err = p.Probe(context.Background(), "/profiles/employer/u-1", nil)
	if err != nil {
		t.Fatalf("probe absent: %v", err)
	}
	if exists {
		t.Error("absent resource reported as existing")
	}
}

func TestServerErrorIsNormalized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"REVIEW_ALREADY_EXISTS","message":"dup"}`, http.StatusConflict)
	}))
	defer server.Close()

	p := newPipeline(t, server, &fakeCreds{token: "tok"})

	err := p.Do(context.Background(), http.MethodPost, "/reviews", map[string]any{"rating": 5}, nil)
	var normalized *apierror.Normalized
	if !errors.As(err, &normalized) {
		t.Fatalf("err %T, want *apierror.Normalized", err)
	}
	if normalized.Code != apierror.CodeReviewAlreadyExists || !normalized.IsConflict() {
		t.Errorf("normalized = %+v", normalized)
	}
	if normalized.FriendlyMessage == "" {
		t.Error("friendly message missing")
	}
}

func TestTransportFailureIsNormalized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	p := New(Config{BaseURL: server.URL}, &fakeCreds{}, zerolog.Nop())
	err := p.Do(context.Background(), http.MethodGet, "/jobs", nil, nil)

	var normalized *apierror.Normalized
	if !errors.As(err, &normalized) || !normalized.IsTransport() {
		t.Fatalf("err = %v, want transport failure", err)
	}
}

func TestResolveBaseURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"http://localhost:8080", "http://localhost:8080/api"},
		{"http://localhost:8080/", "http://localhost:8080/api"},
		{"http://localhost:8080/api", "http://localhost:8080/api"},
		{"http://localhost:8080/api/", "http://localhost:8080/api"},
		{"https://jobwire.example.com", "https://jobwire.example.com/api"},
		{"  https://jobwire.example.com/api  ", "https://jobwire.example.com/api"},
	}
	for _, tc := range cases {
		if got := ResolveBaseURL(tc.in); got != tc.want {
			t.Errorf("ResolveBaseURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
