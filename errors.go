package jobwire

import "errors"

var (
	// ErrBuilderReused is returned when Build is called twice on one Builder.
	ErrBuilderReused = errors.New("builder already used")
	// ErrBaseURLRequired is returned when no API base URL is configured and
	// the environment provides none.
	ErrBaseURLRequired = errors.New("api base url required")
	// ErrStorageRequired is returned when Build is called without a session
	// storage backend.
	ErrStorageRequired = errors.New("session storage required")
	// ErrNotAuthenticated is returned by operations that need an active
	// session, such as opening a chat channel.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNotCached is returned by cache-only lookups when the entity has not
	// been fetched.
	ErrNotCached = errors.New("entity not cached")
)
