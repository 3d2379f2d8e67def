// Package jobwire is the client state synchronization core for the jobwire
// job-board platform. It owns the authenticated request pipeline, the
// session/token lifecycle, the entity cache, and the optimistic-mutation
// coordination that keeps locally displayed state consistent with server
// truth under concurrent edits, network failure, and token expiry.
//
// UI layers (forms, lists, routing) are external collaborators: they drive
// the core exclusively through [Client] and re-render from cache
// notifications. Business semantics of jobs, reviews, and mentorship are not
// modeled here; the core manipulates generic entities keyed by resource type
// and id.
//
// # Architecture boundaries
//
// jobwire is the public surface. It exposes [Client], [Builder], [Config],
// sentinel errors, and metric IDs. Subsystem mechanics live in focused
// subpackages: token claim decoding in token, persisted session state in
// session, the HTTP pipeline in transport, error normalization in apierror,
// the entity cache in cache, optimistic writes in mutate, and the chat
// channel in chat.
//
// # What this package must NOT do
//
//   - Render, route, or validate business forms.
//   - Mutate cached entities outside the mutation coordinator's settle cycle.
//   - Retry failed requests beyond the single guarded 401 recovery.
//
// # Consistency contract
//
// After any mutation settles, the cache holds either the exact pre-mutation
// snapshot (failure) or the exact server response (success), never an
// unconfirmed client patch. Overlapping mutations on one key are serialized,
// so every snapshot is taken from confirmed state.
package jobwire
