package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jobwire/jobwire-go/token"
)

// DefaultKey is the storage key for the persisted session record.
const DefaultKey = "auth-storage"

// DefaultLegacyKey is the storage key older clients used for a bare access
// token. It is migrated into [DefaultKey] on first successful restore and
// then deleted.
const DefaultLegacyKey = "token"

// ErrNoToken is returned by [Store.Login] when the server response carries
// no usable access token.
var ErrNoToken = errors.New("login response carries no valid token")

// LoginResponse is the wire shape of a successful POST /auth/login.
type LoginResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Token    string `json:"token"`
}

// Store is the injectable session container. It holds the in-memory [State],
// persists the record through a [Storage] backend, and owns restoration and
// legacy-key migration. All fields change together under one lock; readers
// always observe a complete session or none.
type Store struct {
	storage   Storage
	key       string
	legacyKey string
	log       zerolog.Logger
	now       func() time.Time

	restores singleflight.Group

	mu       sync.RWMutex
	state    State
	hydrated bool
}

// NewStore creates a [Store] over the given backend. Empty key arguments
// fall back to [DefaultKey] and [DefaultLegacyKey].
func NewStore(storage Storage, key, legacyKey string, log zerolog.Logger) *Store {
	if key == "" {
		key = DefaultKey
	}
	if legacyKey == "" {
		legacyKey = DefaultLegacyKey
	}
	return &Store{
		storage:   storage,
		key:       key,
		legacyKey: legacyKey,
		log:       log,
		now:       time.Now,
	}
}

// Current returns a copy of the session state.
func (s *Store) Current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Token returns the access token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.AccessToken
}

// Authenticated reports whether a session is active.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Authenticated
}

// Hydrated reports whether persisted storage has been checked at least once.
// Consumers use this to distinguish "not yet checked" from "checked, no
// session" and avoid flashing a logged-out UI during startup.
func (s *Store) Hydrated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hydrated
}

// Login installs the session from a server login response and persists it.
// The token must be structurally valid and unexpired; the server should
// never issue anything else, so a failure here is surfaced as [ErrNoToken].
// The platform issues no refresh tokens; that field stays empty.
func (s *Store) Login(ctx context.Context, resp LoginResponse) error {
	if _, err := token.DecodeValid(resp.Token, s.now()); err != nil {
		return ErrNoToken
	}

	next := State{
		User: &User{
			ID:       resp.ID,
			Username: resp.Username,
			Email:    resp.Email,
			Role:     resp.Role,
		},
		AccessToken:   resp.Token,
		Authenticated: true,
	}

	s.mu.Lock()
	s.state = next
	s.hydrated = true
	s.mu.Unlock()

	s.persist(ctx, next)
	s.log.Debug().Str("user", resp.Username).Msg("session established")
	return nil
}

// Clear resets the session to the empty state and removes both persisted
// keys. Storage failures are logged and swallowed: the in-memory logout
// must always win.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.state = State{}
	s.hydrated = true
	s.mu.Unlock()

	if err := s.storage.Delete(ctx, s.key); err != nil {
		s.log.Warn().Err(err).Msg("session record delete failed")
	}
	if err := s.storage.Delete(ctx, s.legacyKey); err != nil {
		s.log.Warn().Err(err).Msg("legacy token delete failed")
	}
}

// Restore brings the session back from persisted storage. It is a no-op
// when the in-memory token is still valid. Otherwise it decodes the
// persisted record, falling back to the legacy bare-token key (migrating it
// on success), and clears the session when nothing valid is found.
// Malformed JSON, expired tokens, and structurally broken tokens are all
// treated identically: no session.
//
// Concurrent calls are collapsed into a single storage read, so a burst of
// 401 recoveries triggers one restoration.
func (s *Store) Restore(ctx context.Context) bool {
	s.mu.RLock()
	current := s.state
	s.mu.RUnlock()

	if current.Authenticated {
		if _, err := token.DecodeValid(current.AccessToken, s.now()); err == nil {
			s.mu.Lock()
			s.hydrated = true
			s.mu.Unlock()
			return true
		}
	}

	restored, _, _ := s.restores.Do("restore", func() (interface{}, error) {
		return s.restoreLocked(ctx), nil
	})
	ok, _ := restored.(bool)
	return ok
}

func (s *Store) restoreLocked(ctx context.Context) bool {
	if next, ok := s.fromRecord(ctx); ok {
		s.install(next)
		return true
	}
	if next, ok := s.fromLegacy(ctx); ok {
		s.install(next)
		return true
	}

	s.Clear(ctx)
	return false
}

func (s *Store) fromRecord(ctx context.Context) (State, bool) {
	raw, err := s.storage.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Warn().Err(err).Msg("session record read failed")
		}
		return State{}, false
	}

	rec, err := decodeRecord(raw)
	if err != nil {
		return State{}, false
	}

	claims, err := token.DecodeValid(rec.AccessToken, s.now())
	if err != nil {
		return State{}, false
	}

	return stateFromClaims(rec.AccessToken, rec.RefreshToken, claims), true
}

// fromLegacy migrates the pre-record storage format: a bare token string.
// On success the migrated record is persisted and the legacy key removed.
func (s *Store) fromLegacy(ctx context.Context) (State, bool) {
	raw, err := s.storage.Get(ctx, s.legacyKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Warn().Err(err).Msg("legacy token read failed")
		}
		return State{}, false
	}

	claims, err := token.DecodeValid(raw, s.now())
	if err != nil {
		return State{}, false
	}

	next := stateFromClaims(raw, "", claims)
	s.persist(ctx, next)
	if err := s.storage.Delete(ctx, s.legacyKey); err != nil {
		s.log.Warn().Err(err).Msg("legacy token delete failed")
	}
	s.log.Info().Msg("migrated legacy token storage")
	return next, true
}

func (s *Store) install(next State) {
	s.mu.Lock()
	s.state = next
	s.hydrated = true
	s.mu.Unlock()
}

func (s *Store) persist(ctx context.Context, state State) {
	raw, err := encodeRecord(state)
	if err != nil {
		s.log.Warn().Err(err).Msg("session record encode failed")
		return
	}
	if err := s.storage.Set(ctx, s.key, raw); err != nil {
		s.log.Warn().Err(err).Msg("session record write failed")
	}
}

func stateFromClaims(access, refresh string, claims *token.Claims) State {
	return State{
		User: &User{
			ID:       claims.UserID,
			Username: claims.Username(),
			Email:    claims.Email,
			Role:     claims.Role,
		},
		AccessToken:   access,
		RefreshToken:  refresh,
		Authenticated: true,
	}
}
