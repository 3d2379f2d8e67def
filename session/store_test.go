package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

func signToken(t *testing.T, sub, userID, email, role string, exp time.Time) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":    sub,
		"userId": userID,
		"email":  email,
		"role":   role,
		"exp":    exp.Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func newTestStore(t *testing.T) (*Store, *MemoryStorage) {
	t.Helper()
	storage := NewMemoryStorage()
	return NewStore(storage, "", "", zerolog.Nop()), storage
}

func aliceLogin(t *testing.T) LoginResponse {
	t.Helper()
	return LoginResponse{
		ID:       "u-1",
		Username: "alice",
		Email:    "alice@example.com",
		Role:     "ROLE_JOBSEEKER",
		Token:    signToken(t, "alice", "u-1", "alice@example.com", "ROLE_JOBSEEKER", time.Now().Add(time.Hour)),
	}
}

func TestLoginInstallsAndPersists(t *testing.T) {
	ctx := context.Background()
	store, storage := newTestStore(t)

	if store.Hydrated() {
		t.Fatal("store must not report hydrated before first check")
	}

	if err := store.Login(ctx, aliceLogin(t)); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	state := store.Current()
	if !state.Authenticated {
		t.Fatal("state not authenticated after login")
	}
	if state.User == nil || state.User.Username != "alice" || state.User.Role != "ROLE_JOBSEEKER" {
		t.Errorf("user = %+v", state.User)
	}
	if !store.Hydrated() {
		t.Error("login must mark the store hydrated")
	}

	raw, err := storage.Get(ctx, DefaultKey)
	if err != nil {
		t.Fatalf("persisted record missing: %v", err)
	}
	persisted, err := decodeRecord(raw)
	if err != nil {
		t.Fatalf("persisted record unreadable: %v", err)
	}
	if persisted.AccessToken != state.AccessToken || !persisted.Authenticated {
		t.Error("persisted record does not match in-memory state")
	}
}

func TestLoginRejectsUnusableToken(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	cases := []string{
		"",
		"not-a-token",
		signToken(t, "alice", "u-1", "", "", time.Now().Add(-time.Minute)),
	}
	for _, raw := range cases {
		resp := aliceLogin(t)
		resp.Token = raw
		if err := store.Login(ctx, resp); !errors.Is(err, ErrNoToken) {
			t.Errorf("Login with token %q: err = %v, want ErrNoToken", raw, err)
		}
	}
	if store.Authenticated() {
		t.Error("failed logins must not authenticate")
	}
}

func TestRestoreFromRecord(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()

	tok := signToken(t, "alice", "u-1", "alice@example.com", "ROLE_JOBSEEKER", time.Now().Add(time.Hour))
	raw, err := encodeRecord(State{
		User:          &User{ID: "u-1", Username: "alice", Role: "ROLE_JOBSEEKER"},
		AccessToken:   tok,
		Authenticated: true,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := storage.Set(ctx, DefaultKey, raw); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := NewStore(storage, "", "", zerolog.Nop())
	if !store.Restore(ctx) {
		t.Fatal("restore failed with a valid persisted record")
	}

	state := store.Current()
	if state.User == nil || state.User.Username != "alice" {
		t.Errorf("restored user = %+v", state.User)
	}
	if !store.Hydrated() {
		t.Error("restore must mark the store hydrated")
	}
}

func TestRestoreMigratesLegacyToken(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()

	tok := signToken(t, "bob", "u-2", "bob@example.com", "ROLE_EMPLOYER", time.Now().Add(time.Hour))
	if err := storage.Set(ctx, DefaultLegacyKey, tok); err != nil {
		t.Fatalf("seed legacy key: %v", err)
	}

	store := NewStore(storage, "", "", zerolog.Nop())
	if !store.Restore(ctx) {
		t.Fatal("restore failed with a valid legacy token")
	}

	state := store.Current()
	if state.AccessToken != tok {
		t.Error("restored token does not match legacy value")
	}
	if state.User == nil || state.User.ID != "u-2" || state.User.Username != "bob" || state.User.Role != "ROLE_EMPLOYER" {
		t.Errorf("user rebuilt from claims = %+v", state.User)
	}

	// Migration: record written under the new key, legacy key gone.
	if _, err := storage.Get(ctx, DefaultKey); err != nil {
		t.Errorf("migrated record missing: %v", err)
	}
	if _, err := storage.Get(ctx, DefaultLegacyKey); !errors.Is(err, ErrNotFound) {
		t.Errorf("legacy key still present: %v", err)
	}
}

func TestRestoreTreatsBadStateAsLoggedOut(t *testing.T) {
	expired := signToken(t, "alice", "u-1", "", "", time.Now().Add(-time.Minute))
	expiredRecord, _ := encodeRecord(State{AccessToken: expired, Authenticated: true})

	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"nothing persisted", "", ""},
		{"malformed record", DefaultKey, `{"accessToken": 42`},
		{"expired token in record", DefaultKey, expiredRecord},
		{"garbage legacy token", DefaultLegacyKey, "not-a-jwt"},
		{"expired legacy token", DefaultLegacyKey, expired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			storage := NewMemoryStorage()
			if tc.key != "" {
				if err := storage.Set(ctx, tc.key, tc.value); err != nil {
					t.Fatalf("seed: %v", err)
				}
			}

			store := NewStore(storage, "", "", zerolog.Nop())
			if store.Restore(ctx) {
				t.Fatal("restore reported success")
			}
			if store.Authenticated() {
				t.Error("store authenticated after failed restore")
			}
			if !store.Hydrated() {
				t.Error("failed restore must still mark the store hydrated")
			}
			// Bad persisted state is cleaned up.
			if _, err := storage.Get(ctx, DefaultKey); !errors.Is(err, ErrNotFound) {
				t.Errorf("record still present: %v", err)
			}
		})
	}
}

func TestRestoreIsNoOpWhileTokenValid(t *testing.T) {
	ctx := context.Background()
	store, storage := newTestStore(t)

	if err := store.Login(ctx, aliceLogin(t)); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	// Wipe storage behind the store's back; the in-memory token is still
	// valid, so restore must not touch the backend.
	if err := storage.Delete(ctx, DefaultKey); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !store.Restore(ctx) {
		t.Fatal("restore failed with a valid in-memory token")
	}
	if !store.Authenticated() {
		t.Error("session lost by a fast-path restore")
	}
}

func TestRestoreConcurrent(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()

	tok := signToken(t, "alice", "u-1", "", "ROLE_JOBSEEKER", time.Now().Add(time.Hour))
	raw, _ := encodeRecord(State{AccessToken: tok, Authenticated: true})
	if err := storage.Set(ctx, DefaultKey, raw); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := NewStore(storage, "", "", zerolog.Nop())

	const n = 16
	var wg sync.WaitGroup
	results := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = store.Restore(ctx)
		}(i)
	}
	wg.Wait()

	for i, ok := range results {
		if !ok {
			t.Errorf("concurrent restore %d failed", i)
		}
	}
	if !store.Authenticated() {
		t.Error("store not authenticated after concurrent restores")
	}
}

func TestClearRemovesBothKeys(t *testing.T) {
	ctx := context.Background()
	store, storage := newTestStore(t)

	if err := store.Login(ctx, aliceLogin(t)); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if err := storage.Set(ctx, DefaultLegacyKey, "stale"); err != nil {
		t.Fatalf("seed legacy: %v", err)
	}

	store.Clear(ctx)

	if store.Authenticated() {
		t.Error("store authenticated after clear")
	}
	if store.Token() != "" {
		t.Error("token survived clear")
	}
	for _, key := range []string{DefaultKey, DefaultLegacyKey} {
		if _, err := storage.Get(ctx, key); !errors.Is(err, ErrNotFound) {
			t.Errorf("key %q still present after clear", key)
		}
	}
}

func TestCurrentReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	if err := store.Login(ctx, aliceLogin(t)); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	state := store.Current()
	state.User.Username = "mallory"

	if store.Current().User.Username != "alice" {
		t.Error("mutating a returned state leaked into the store")
	}
}
