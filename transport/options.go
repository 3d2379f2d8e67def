package transport

// Option adjusts how the pipeline treats a single request.
type Option func(*requestOptions)

type requestOptions struct {
	skipAuthRedirect bool
	expectAbsent     bool
}

// SkipAuthRedirect makes a 401 reject immediately with no session side
// effects and no restore attempt. Used for probe-type requests where a 401
// is an expected, non-fatal outcome.
func SkipAuthRedirect() Option {
	return func(o *requestOptions) { o.skipAuthRedirect = true }
}

// ExpectAbsent marks a 404 as expected absence rather than breakage, for
// existence-probe endpoints such as "does a profile of this kind exist".
func ExpectAbsent() Option {
	return func(o *requestOptions) { o.expectAbsent = true }
}

func buildOptions(opts []Option) requestOptions {
	var out requestOptions
	for _, opt := range opts {
		opt(&out)
	}
	return out
}
