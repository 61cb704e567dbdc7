package observable

import (
	"context"
	"runtime"
	"sync/atomic"
)

// Config configures a store created by NewWithConfig.
type Config[V any] struct {
	// Name of the store, used in logging.
	Name string
	// Clone returns a deep copy of a value. It's applied to values as they're
	// Put into the store, and to each snapshot returned from it. If nil,
	// values implementing Cloner are cloned using it, and all other values
	// are copied by assignment.
	Clone func(V) V
}

// Map is a handle to a shared store of keys and values. Map is safe for
// concurrent use. Clone returns an additional handle to the same store,
// which is closed when all of its handles are released.
type Map[K comparable, V any] struct {
	ref *ref[K, V]
}

// ref is held by a single Map handle, and by its registered cleanup.
type ref[K comparable, V any] struct {
	store    *store[K, V]
	released atomic.Bool
	// releasedCh is closed upon release of the handle.
	releasedCh chan struct{}
}

func (r *ref[K, V]) release() {
	if r.released.CompareAndSwap(false, true) {
		r.store.release()
		close(r.releasedCh)
	}
}

// New returns a handle to a new and empty store.
func New[K comparable, V any]() *Map[K, V] {
	return NewWithConfig[K, V](Config[V]{})
}

// NewWithConfig returns a handle to a new and empty store having the Config.
func NewWithConfig[K comparable, V any](cfg Config[V]) *Map[K, V] {
	return newHandle(newStore[K, V](cfg))
}

func newHandle[K comparable, V any](s *store[K, V]) *Map[K, V] {
	var r = &ref[K, V]{store: s, releasedCh: make(chan struct{})}
	var m = &Map[K, V]{ref: r}

	// A handle which becomes unreachable is released on its behalf.
	runtime.AddCleanup(m, func(r *ref[K, V]) { r.release() }, r)
	return m
}

// Clone returns a second handle to the store of this Map. Effects of either
// handle are immediately visible through the other. A Clone of a released
// handle is itself released.
func (m *Map[K, V]) Clone() *Map[K, V] {
	if m.ref.released.Load() || !m.ref.store.acquire() {
		var out = &Map[K, V]{ref: &ref[K, V]{store: m.ref.store, releasedCh: make(chan struct{})}}
		out.ref.released.Store(true)
		close(out.ref.releasedCh)
		return out
	}
	return newHandle(m.ref.store)
}

// Release the handle. Once every handle of a store is released, the store is
// closed and any goroutines blocked awaiting its keys return ErrClosed.
// Release is idempotent. Operations of a released handle return ErrReleased.
func (m *Map[K, V]) Release() { m.ref.release() }

// Put |value| as the current value of |key|, incrementing its version and
// waking all goroutines awaiting it. The key is created if it doesn't exist.
func (m *Map[K, V]) Put(key K, value V) error {
	if m.ref.released.Load() {
		return ErrReleased
	} else if err := m.ref.store.put(key, value); err != nil {
		return err
	}
	putTotal.Inc()
	return nil
}

// Get returns the current value of |key|, and whether it's present.
// Get never blocks on an update of the key.
func (m *Map[K, V]) Get(key K) (V, bool, error) {
	var v, ok, err = m.GetVersioned(key)
	return v.Value, ok, err
}

// GetVersioned returns the current value and version of |key|, and
// whether it's present.
func (m *Map[K, V]) GetVersioned(key K) (Versioned[V], bool, error) {
	if m.ref.released.Load() {
		return Versioned[V]{}, false, ErrReleased
	}
	return m.ref.store.get(key)
}

// WaitForNext blocks until |key| is next written, and returns its value.
// A write which happened prior to the invocation of WaitForNext isn't
// considered, even if the caller hasn't yet observed it: use WaitForVersion
// to resume from a known version. WaitForNext blocks indefinitely until
// a write occurs, the Context is done, or the store is closed or poisoned.
func (m *Map[K, V]) WaitForNext(ctx context.Context, key K) (V, error) {
	if m.ref.released.Load() {
		var zero V
		return zero, ErrReleased
	}
	var v, err = m.ref.store.wait(ctx, key, 0, true)
	// The handle must remain reachable while blocked, or its cleanup may
	// close the store beneath the waiter.
	runtime.KeepAlive(m)
	return v.Value, err
}

// WaitForVersion blocks until the version of |key| is greater than |after|,
// and returns its versioned value. If the key has already been written
// beyond |after|, WaitForVersion returns immediately. An |after| of zero
// returns the current value of a key which has been written at least once.
func (m *Map[K, V]) WaitForVersion(ctx context.Context, key K, after uint64) (Versioned[V], error) {
	if m.ref.released.Load() {
		return Versioned[V]{}, ErrReleased
	}
	var v, err = m.ref.store.wait(ctx, key, after, false)
	runtime.KeepAlive(m)
	return v, err
}

// Snapshot returns the versioned values of all present keys.
func (m *Map[K, V]) Snapshot() (map[K]Versioned[V], error) {
	if m.ref.released.Load() {
		return nil, ErrReleased
	}
	return m.ref.store.snapshot()
}

// Len returns the number of present keys.
func (m *Map[K, V]) Len() (int, error) {
	if m.ref.released.Load() {
		return 0, ErrReleased
	}
	return m.ref.store.len()
}

// Unpoison clears a poisoning of the store, returning the error which
// caused it (or nil, if the store wasn't poisoned). Callers are responsible
// for determining that the store is consistent before continuing its use.
func (m *Map[K, V]) Unpoison() error {
	if m.ref.released.Load() {
		return ErrReleased
	}
	return m.ref.store.unpoison()
}
