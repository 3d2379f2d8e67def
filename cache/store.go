// Package cache is the in-memory table of fetched entities, keyed by
// resource type and id. It is the single source the UI renders from: reads
// come out of it, optimistic writes go into it, and the mutation coordinator
// reconciles it against server responses.
//
// Confirmed entries live in a bounded LRU; entries carrying an unconfirmed
// speculative write are pinned in an overlay so cache pressure can never
// evict the state a rollback depends on.
package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Key identifies a cached entity.
type Key struct {
	Resource string
	ID       string
}

func (k Key) String() string { return k.Resource + "/" + k.ID }

// Value is a generic entity body. The core does not model business
// semantics; entities are JSON objects.
type Value = map[string]any

// Patch is a shallow field patch applied over a Value.
type Patch = map[string]any

// Event notifies a subscriber that the entry at Key changed. Speculative is
// true while the new value is an unconfirmed optimistic write.
type Event struct {
	Key         Key
	Value       Value
	Speculative bool
	Deleted     bool
}

// DefaultSize bounds the confirmed-entry LRU when no size is configured.
const DefaultSize = 4096

// Store holds cached entities. All mutation must go through the exported
// methods; handing out deep-copied values keeps external code from bypassing
// the settle cycle.
type Store struct {
	mu sync.Mutex

	confirmed *lru.Cache[Key, Value]
	// speculative entries, pinned against LRU eviction until settle
	pinned map[Key]Value

	// readGen invalidates in-flight reads: a read completed against an older
	// generation is discarded instead of clobbering a speculative write.
	readGen map[Key]uint64

	watchers map[Key][]chan Event
}

// New creates a [Store] bounded to size confirmed entries.
func New(size int) (*Store, error) {
	if size <= 0 {
		size = DefaultSize
	}
	confirmed, err := lru.New[Key, Value](size)
	if err != nil {
		return nil, err
	}
	return &Store{
		confirmed: confirmed,
		pinned:    make(map[Key]Value),
		readGen:   make(map[Key]uint64),
		watchers:  make(map[Key][]chan Event),
	}, nil
}

// Get returns a copy of the entry and whether it exists. Speculative
// reports whether the value is an unconfirmed optimistic write.
func (s *Store) Get(key Key) (value Value, speculative, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, pinnedOK := s.pinned[key]; pinnedOK {
		return cloneValue(v), true, true
	}
	if v, lruOK := s.confirmed.Get(key); lruOK {
		return cloneValue(v), false, true
	}
	return nil, false, false
}

// Put stores a server-confirmed value, clearing any speculative state.
func (s *Store) Put(key Key, value Value) {
	s.mu.Lock()
	delete(s.pinned, key)
	s.confirmed.Add(key, cloneValue(value))
	s.notifyLocked(key, Event{Key: key, Value: cloneValue(value)})
	s.mu.Unlock()
}

// ApplyPatch overlays patch onto the current entry and marks it
// speculative. A missing entry starts from an empty object. The entry is
// pinned until [Put], [Restore], or [Invalidate] settles it.
func (s *Store) ApplyPatch(key Key, patch Patch) {
	s.mu.Lock()
	base, _, _ := s.currentLocked(key)
	next := cloneValue(base)
	if next == nil {
		next = Value{}
	}
	for k, v := range patch {
		next[k] = cloneAny(v)
	}
	s.confirmed.Remove(key)
	s.pinned[key] = next
	s.notifyLocked(key, Event{Key: key, Value: cloneValue(next), Speculative: true})
	s.mu.Unlock()
}

// Restore reinstates a pre-mutation snapshot after a failed request and
// clears the speculative flag. existed=false removes the entry entirely,
// for mutations that speculatively created it.
func (s *Store) Restore(key Key, snapshot Value, existed bool) {
	s.mu.Lock()
	delete(s.pinned, key)
	if !existed {
		s.confirmed.Remove(key)
		s.notifyLocked(key, Event{Key: key, Deleted: true})
		s.mu.Unlock()
		return
	}
	s.confirmed.Add(key, cloneValue(snapshot))
	s.notifyLocked(key, Event{Key: key, Value: cloneValue(snapshot)})
	s.mu.Unlock()
}

// Purge drops every entry, confirmed and speculative. Watchers receive a
// deletion event for their key. Used on logout so one account's entities
// never leak into the next session.
func (s *Store) Purge() {
	s.mu.Lock()
	s.pinned = make(map[Key]Value)
	s.confirmed.Purge()
	for key := range s.watchers {
		s.notifyLocked(key, Event{Key: key, Deleted: true})
	}
	s.mu.Unlock()
}

// Invalidate drops the entry.
func (s *Store) Invalidate(key Key) {
	s.mu.Lock()
	delete(s.pinned, key)
	s.confirmed.Remove(key)
	s.notifyLocked(key, Event{Key: key, Deleted: true})
	s.mu.Unlock()
}

// Snapshot returns a copy of the current entry for rollback bookkeeping.
func (s *Store) Snapshot(key Key) (Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _, ok := s.currentLocked(key)
	return cloneValue(v), ok
}

// Speculative reports whether the entry currently holds an unconfirmed write.
func (s *Store) Speculative(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pinned[key]
	return ok
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmed.Len() + len(s.pinned)
}

func (s *Store) currentLocked(key Key) (Value, bool, bool) {
	if v, ok := s.pinned[key]; ok {
		return v, true, true
	}
	if v, ok := s.confirmed.Peek(key); ok {
		return v, false, true
	}
	return nil, false, false
}

/*
====================================
READ CANCELLATION
====================================
*/

// BeginRead returns the read generation for key. A fetch started now must
// present this generation to [CompleteRead].
func (s *Store) BeginRead(key Key) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readGen[key]
}

// CompleteRead stores a fetched value unless the read was cancelled
// (generation advanced) or a speculative write now owns the entry. Returns
// whether the value was stored.
func (s *Store) CompleteRead(key Key, gen uint64, value Value) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readGen[key] != gen {
		return false
	}
	if _, speculative := s.pinned[key]; speculative {
		return false
	}
	s.confirmed.Add(key, cloneValue(value))
	s.notifyLocked(key, Event{Key: key, Value: cloneValue(value)})
	return true
}

// CancelReads invalidates all in-flight reads for key. The mutation
// coordinator calls this before a speculative write so a stale read cannot
// clobber it.
func (s *Store) CancelReads(key Key) {
	s.mu.Lock()
	s.readGen[key]++
	s.mu.Unlock()
}

/*
====================================
WATCHERS
====================================
*/

// Subscribe registers a watcher for key. Events are delivered best-effort
// on a buffered channel; a slow consumer drops intermediate events rather
// than blocking settle. The returned cancel must be called exactly once.
func (s *Store) Subscribe(key Key) (<-chan Event, func()) {
	ch := make(chan Event, 16)

	s.mu.Lock()
	s.watchers[key] = append(s.watchers[key], ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		ws := s.watchers[key]
		for i, w := range ws {
			if w == ch {
				s.watchers[key] = append(ws[:i], ws[i+1:]...)
				break
			}
		}
		if len(s.watchers[key]) == 0 {
			delete(s.watchers, key)
		}
	}
	return ch, cancel
}

func (s *Store) notifyLocked(key Key, ev Event) {
	for _, ch := range s.watchers[key] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// cloneValue deep-copies a decoded JSON object. Nested objects and arrays
// are copied too; a handed-out value must never alias cache-internal state,
// or callers could mutate confirmed entries and rollback snapshots in place.
func cloneValue(v Value) Value {
	if v == nil {
		return nil
	}
	out := make(Value, len(v))
	for k, val := range v {
		out[k] = cloneAny(val)
	}
	return out
}

func cloneAny(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneValue(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = cloneAny(elem)
		}
		return out
	default:
		return v
	}
}
