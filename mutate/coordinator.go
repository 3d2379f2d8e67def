// Package mutate coordinates optimistic writes: it applies speculative
// patches to the cache, issues the network call, and reconciles or rolls
// back when the call settles. The guarantee is that after settle the cache
// holds either the exact pre-mutation snapshot or the exact server response,
// never a lingering client patch.
//
// Mutations on the same key are serialized through a per-key gate. The
// historical client took an independent snapshot per call without
// serialization, so rapid repeated actions (double-clicking "helpful") could
// roll back to a state that was never server-confirmed; queueing the second
// writer until the first settles closes that hole while keeping
// last-settled-wins semantics across keys.
package mutate

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jobwire/jobwire-go/apierror"
	"github.com/jobwire/jobwire-go/cache"
)

// RequestFunc performs the network call for a mutation and returns the
// server-confirmed entity body.
type RequestFunc func(ctx context.Context) (cache.Value, error)

// Status is the lifecycle state of a mutation intent.
type Status uint8

const (
	StatusPending Status = iota
	StatusCommitted
	StatusRolledBack
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCommitted:
		return "committed"
	case StatusRolledBack:
		return "rolled-back"
	default:
		return "unknown"
	}
}

// Intent is the record of one in-flight mutation. Intents exist only while
// the mutation is unsettled; they are never persisted.
type Intent struct {
	ID     string
	Key    cache.Key
	Status Status
}

// Coordinator owns the speculative-write settle cycle for one cache store.
type Coordinator struct {
	cache     *cache.Store
	overrides apierror.Overrides
	log       zerolog.Logger

	// onSettle, when set, observes every settle outcome (metrics hook).
	onSettle func(key cache.Key, committed bool)

	mu      sync.Mutex
	gates   map[cache.Key]*gate
	intents map[string]*Intent
}

// gate serializes writers on one key. slot has capacity one; refs counts
// waiters so the map entry can be dropped when the last writer leaves.
type gate struct {
	slot chan struct{}
	refs int
}

// New creates a [Coordinator] over store. overrides may be nil.
func New(store *cache.Store, overrides apierror.Overrides, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		cache:     store,
		overrides: overrides,
		log:       log,
		gates:     make(map[cache.Key]*gate),
		intents:   make(map[string]*Intent),
	}
}

// SetSettleHook registers an observer invoked after every settle. Must be
// called before the coordinator is shared across goroutines.
func (c *Coordinator) SetSettleHook(hook func(key cache.Key, committed bool)) {
	c.onSettle = hook
}

// Perform runs one optimistic mutation to completion:
//
//  1. wait for any earlier mutation on key to settle
//  2. snapshot the current cache value
//  3. cancel in-flight reads for key and apply patch speculatively
//  4. invoke send
//  5. on success, overwrite the entry with the exact server response;
//     on failure, restore the snapshot and return the normalized error
//
// The returned error, when non-nil, is always an *apierror.Normalized.
func (c *Coordinator) Perform(ctx context.Context, key cache.Key, patch cache.Patch, send RequestFunc) (cache.Value, error) {
	g := c.acquire(key)
	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		c.release(key)
		return nil, apierror.Normalize(ctx.Err(), c.overrides)
	}
	defer func() {
		<-g.slot
		c.release(key)
	}()

	intent := &Intent{ID: uuid.NewString(), Key: key, Status: StatusPending}
	c.track(intent)
	defer c.untrack(intent)

	snapshot, existed := c.cache.Snapshot(key)
	c.cache.CancelReads(key)
	c.cache.ApplyPatch(key, patch)

	resp, err := send(ctx)
	if err != nil {
		c.cache.Restore(key, snapshot, existed)
		intent.Status = StatusRolledBack
		c.settle(key, false)

		normalized := apierror.Normalize(err, c.overrides)
		c.log.Debug().
			Str("key", key.String()).
			Str("intent", intent.ID).
			Int("status", normalized.Status).
			Msg("mutation rolled back")
		return nil, normalized
	}

	c.cache.Put(key, resp)
	intent.Status = StatusCommitted
	c.settle(key, true)
	return resp, nil
}

// Pending returns the in-flight intents, for UI pending indicators.
func (c *Coordinator) Pending() []Intent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Intent, 0, len(c.intents))
	for _, in := range c.intents {
		out = append(out, *in)
	}
	return out
}

// PendingFor reports whether key has an unsettled mutation.
func (c *Coordinator) PendingFor(key cache.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, in := range c.intents {
		if in.Key == key {
			return true
		}
	}
	return false
}

func (c *Coordinator) settle(key cache.Key, committed bool) {
	if c.onSettle != nil {
		c.onSettle(key, committed)
	}
}

func (c *Coordinator) track(in *Intent) {
	c.mu.Lock()
	c.intents[in.ID] = in
	c.mu.Unlock()
}

func (c *Coordinator) untrack(in *Intent) {
	c.mu.Lock()
	delete(c.intents, in.ID)
	c.mu.Unlock()
}

func (c *Coordinator) acquire(key cache.Key) *gate {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.gates[key]
	if !ok {
		g = &gate{slot: make(chan struct{}, 1)}
		c.gates[key] = g
	}
	g.refs++
	return g
}

func (c *Coordinator) release(key cache.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.gates[key]
	if !ok {
		return
	}
	g.refs--
	if g.refs <= 0 {
		delete(c.gates, key)
	}
}
