// Package apierror maps transport failures and server error payloads into a
// single normalized taxonomy with user-facing messages. Every error crosses
// this boundary exactly once, at the request pipeline, before it reaches
// mutation or UI code.
package apierror

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// Violation is a field-level validation error returned by the server.
// Field may be empty for form-wide violations.
type Violation struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
}

// Payload is the wire shape of a jobwire API error response.
type Payload struct {
	Status     int         `json:"status,omitempty"`
	Code       Code        `json:"code,omitempty"`
	LegacyCode Code        `json:"error,omitempty"`
	Message    string      `json:"message,omitempty"`
	Path       string      `json:"path,omitempty"`
	Violations []Violation `json:"violations,omitempty"`
}

// Normalized is the uniform error produced by [Normalize]. Status is zero
// when no HTTP response was received (transport failure or a client-side
// error). Normalized implements error so it can flow through standard
// error-return plumbing unchanged.
type Normalized struct {
	Status          int
	Code            Code
	Message         string
	Violations      []Violation
	FriendlyMessage string

	// ExpectedAbsence marks a 404 on an existence-probe endpoint: the
	// resource is legitimately absent rather than the request being broken.
	ExpectedAbsence bool

	cause error
}

func (n *Normalized) Error() string {
	if n.Message != "" {
		return n.Message
	}
	if n.cause != nil {
		return n.cause.Error()
	}
	return genericFallback
}

func (n *Normalized) Unwrap() error { return n.cause }

// Overrides is an optional code→message table consulted before the built-in
// one, the localization hook for embedding applications.
type Overrides map[Code]string

// Normalize converts any error into a [Normalized]. Passing an existing
// *Normalized returns it unchanged, which is what makes the
// normalize-exactly-once contract safe to apply defensively at the boundary.
func Normalize(err error, overrides Overrides) *Normalized {
	if err == nil {
		return nil
	}

	var already *Normalized
	if errors.As(err, &already) {
		return already
	}

	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return fromPayload(respErr, overrides)
	}

	// Client-side failure: no response was received.
	return &Normalized{
		Message:         err.Error(),
		FriendlyMessage: err.Error(),
		cause:           err,
	}
}

// ResponseError carries an HTTP error response through the pipeline until it
// is normalized. Body holds the raw response body; parsing is deferred so
// normalization owns the single decode.
type ResponseError struct {
	StatusCode int
	Body       []byte
}

func (e *ResponseError) Error() string {
	return "server returned " + http.StatusText(e.StatusCode)
}

// FromResponse drains and wraps a non-2xx response. The response body is
// consumed; callers must not read it afterwards.
func FromResponse(resp *http.Response) *ResponseError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return &ResponseError{StatusCode: resp.StatusCode, Body: body}
}

func fromPayload(respErr *ResponseError, overrides Overrides) *Normalized {
	n := &Normalized{
		Status: respErr.StatusCode,
		cause:  respErr,
	}

	var payload Payload
	if len(respErr.Body) > 0 && json.Unmarshal(respErr.Body, &payload) == nil {
		n.Code = payload.Code
		if n.Code == CodeUnknown {
			n.Code = payload.LegacyCode
		}
		n.Message = payload.Message
		n.Violations = payload.Violations
		if payload.Status != 0 {
			n.Status = payload.Status
		}
	}

	n.FriendlyMessage = resolveFriendly(n, overrides)
	return n
}

// resolveFriendly picks, in order: the override table, the built-in table,
// the server's raw message, the generic fallback.
func resolveFriendly(n *Normalized, overrides Overrides) string {
	if msg, ok := overrides[n.Code]; ok && msg != "" {
		return msg
	}
	if msg, ok := FriendlyMessage(n.Code); ok {
		return msg
	}
	if strings.TrimSpace(n.Message) != "" {
		return n.Message
	}
	return genericFallback
}

// IsTransport reports whether no HTTP response was received at all.
func (n *Normalized) IsTransport() bool { return n.Status == 0 }

// IsValidation reports a 4xx response carrying field violations.
func (n *Normalized) IsValidation() bool {
	return n.Status >= 400 && n.Status < 500 && len(n.Violations) > 0
}

// IsAuth reports an authentication or authorization failure.
func (n *Normalized) IsAuth() bool {
	return n.Status == http.StatusUnauthorized || n.Status == http.StatusForbidden
}

// IsNotFoundProbe reports an expected-absence 404 from a probe endpoint.
func (n *Normalized) IsNotFoundProbe() bool {
	return n.Status == http.StatusNotFound && n.ExpectedAbsence
}

// IsConflict reports a 409, e.g. a duplicate application or review.
func (n *Normalized) IsConflict() bool { return n.Status == http.StatusConflict }

// IsServer reports a 5xx response.
func (n *Normalized) IsServer() bool { return n.Status >= 500 }

// SplitViolations partitions the violations into those matching a known form
// field and the residual list the caller must surface some other way.
func (n *Normalized) SplitViolations(fields []string) (mapped map[string]string, residual []Violation) {
	if len(n.Violations) == 0 {
		return nil, nil
	}

	known := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		known[f] = struct{}{}
	}

	mapped = make(map[string]string)
	for _, v := range n.Violations {
		if _, ok := known[v.Field]; ok && v.Field != "" {
			mapped[v.Field] = v.Message
			continue
		}
		residual = append(residual, v)
	}
	if len(mapped) == 0 {
		mapped = nil
	}
	return mapped, residual
}
