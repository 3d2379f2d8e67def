package jobwire

import (
	"github.com/jobwire/jobwire-go/apierror"
	"github.com/jobwire/jobwire-go/cache"
	"github.com/jobwire/jobwire-go/mutate"
	"github.com/jobwire/jobwire-go/session"
	"github.com/jobwire/jobwire-go/transport"
)

// LoginRequest is the wire shape of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// User is the authenticated identity attached to a session.
type User = session.User

// State is the full session state.
type State = session.State

// Key identifies a cached entity by resource type and id.
type Key = cache.Key

// Value is a generic entity body.
type Value = cache.Value

// Patch is a shallow field patch applied over a [Value].
type Patch = cache.Patch

// Event notifies a [Client.Watch] subscriber of a cache change.
type Event = cache.Event

// Intent is the record of one in-flight mutation.
type Intent = mutate.Intent

// Normalized is the uniform error every failed operation returns.
type Normalized = apierror.Normalized

// Code is a server error code.
type Code = apierror.Code

// RequestOption adjusts one request through [Client.Do].
type RequestOption = transport.Option

// SkipAuthRedirect makes a 401 reject immediately with no session side
// effects.
func SkipAuthRedirect() RequestOption { return transport.SkipAuthRedirect() }

// ExpectAbsent marks a 404 as expected absence on an existence probe.
func ExpectAbsent() RequestOption { return transport.ExpectAbsent() }
