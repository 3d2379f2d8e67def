package transport

import "context"

type requestIDContextKey struct{}

// WithRequestID attaches a caller-chosen request id to ctx. The pipeline
// sends it as X-Request-ID instead of generating one, which lets an
// embedding application correlate its own traces with server logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}
