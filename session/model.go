// Package session owns the client's authentication state: the in-memory
// session, its persisted form, and the restore/migration lifecycle. All
// mutation goes through [Store]; the rest of the SDK reads copies.
package session

import "encoding/json"

// User is the authenticated identity derived from a login response or
// reconstructed from access-token claims on restore.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// State is the client-held session. The invariant maintained by [Store] is
// that Authenticated is true only while AccessToken is present, structurally
// valid, and unexpired. State is always replaced wholesale; partial states
// never escape the store.
type State struct {
	User          *User
	AccessToken   string
	RefreshToken  string
	Authenticated bool
}

// record is the persisted subset of State, stored as JSON under the
// auth-storage key. Field names match the wire format used by every client
// of the platform, so sessions survive SDK upgrades.
type record struct {
	AccessToken   string `json:"accessToken"`
	RefreshToken  string `json:"refreshToken,omitempty"`
	User          *User  `json:"user"`
	Authenticated bool   `json:"isAuthenticated"`
}

func encodeRecord(s State) (string, error) {
	data, err := json.Marshal(record{
		AccessToken:   s.AccessToken,
		RefreshToken:  s.RefreshToken,
		User:          s.User,
		Authenticated: s.Authenticated,
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeRecord(raw string) (State, error) {
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return State{}, err
	}
	return State{
		User:          rec.User,
		AccessToken:   rec.AccessToken,
		RefreshToken:  rec.RefreshToken,
		Authenticated: rec.Authenticated,
	}, nil
}

// clone returns a deep copy so callers can never alias store-internal state.
func (s State) clone() State {
	out := s
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	return out
}
