package jobwire

import (
	"context"

	"github.com/jobwire/jobwire-go/transport"
)

// WithRequestID attaches a caller-chosen request id to ctx. The pipeline
// sends it as X-Request-ID instead of generating one, so an embedding
// application can correlate its traces with server logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return transport.WithRequestID(ctx, id)
}
