package observable

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Versioned is a snapshot of a key's value, and the version at which
// that value was written.
type Versioned[V any] struct {
	Value   V
	Version uint64
}

// Cloner is implemented by values which require a deep copy in order to be
// safely handed to another goroutine. If a Config doesn't provide a Clone
// function, values implementing Cloner are cloned through it.
type Cloner[V any] interface {
	Clone() V
}

// entry is the state of a single key. An entry which has never been written
// has a zero version, and no value.
type entry[V any] struct {
	value   V
	version uint64
	waiters int // Number of goroutines blocked awaiting the entry.
	// updateCh is closed upon the next write (or poisoning, or close) of the
	// store. It's lazily created by the first waiter following a signal.
	updateCh chan struct{}
}

func (e *entry[V]) present() bool { return e.version != 0 }

// ready returns a channel which is closed upon the next signal of the entry.
// The store must be write-locked.
func (e *entry[V]) ready() <-chan struct{} {
	if e.updateCh == nil {
		e.updateCh = make(chan struct{})
	}
	return e.updateCh
}

// signal wakes all goroutines awaiting the entry. The store must be write-locked.
func (e *entry[V]) signal() {
	if e.updateCh != nil {
		close(e.updateCh)
		e.updateCh = nil
	}
}

// store is the shared state referenced by one or more Map handles.
type store[K comparable, V any] struct {
	name  string
	clone func(V) V

	// mu guards all fields below, and every entry of |entries|.
	mu       sync.RWMutex
	entries  map[K]*entry[V]
	poisoned error
	closed   bool
	refs     int // Number of unreleased handles.
	// termCh is closed upon poisoning or close of the store, and is
	// replaced if the store is unpoisoned.
	termCh chan struct{}
}

func newStore[K comparable, V any](cfg Config[V]) *store[K, V] {
	var s = &store[K, V]{
		name:    cfg.Name,
		clone:   cfg.Clone,
		entries: make(map[K]*entry[V]),
		refs:    1,
		termCh:  make(chan struct{}),
	}
	if s.clone == nil {
		s.clone = cloneValue[V]
	}
	return s
}

func cloneValue[V any](v V) V {
	if c, ok := any(v).(Cloner[V]); ok {
		return c.Clone()
	}
	return v
}

// errLocked returns the terminal error of the store, if any.
// The store must be read-locked.
func (s *store[K, V]) errLocked() error {
	if s.closed {
		return ErrClosed
	} else {
		return s.poisoned
	}
}

// terminated returns a channel which is closed once the store is poisoned
// or closed. Upon its close, err returns the cause.
func (s *store[K, V]) terminated() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.termCh
}

// err returns the terminal error of the store, if any.
func (s *store[K, V]) err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errLocked()
}

// terminateLocked closes |termCh|, if it's not already closed.
// The store must be write-locked.
func (s *store[K, V]) terminateLocked() {
	select {
	case <-s.termCh:
	default:
		close(s.termCh)
	}
}

// guard invokes |fn| while the store is write-locked. A panic of |fn| is
// recovered, and poisons the store.
func (s *store[K, V]) guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = s.poisonLocked(r)
		}
	}()
	fn()
	return nil
}

// guardRead invokes |fn| while the store is read-locked. State is not
// mutated under a read lock, so a panic of |fn| is recovered and returned
// but does not poison the store.
func (s *store[K, V]) guardRead(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic while reading observable map %q: %v", s.name, r)
		}
	}()
	fn()
	return nil
}

func (s *store[K, V]) poisonLocked(r interface{}) error {
	s.poisoned = errors.Wrapf(ErrPoisoned, "panic while locked: %v", r)

	for _, e := range s.entries {
		e.signal()
	}
	s.terminateLocked()
	poisonedTotal.Inc()

	log.WithFields(log.Fields{
		"map":   s.name,
		"panic": r,
	}).Error("observable map poisoned")

	return s.poisoned
}

// lookupLocked returns the entry of |key|, creating it if required.
// The store must be write-locked.
func (s *store[K, V]) lookupLocked(key K) *entry[V] {
	var e, ok = s.entries[key]
	if !ok {
		e = new(entry[V])
		s.entries[key] = e
		keysGauge.Inc()
	}
	return e
}

func (s *store[K, V]) put(key K, value V) error {
	// Clone outside of the lock: the store retains a copy which no caller
	// may subsequently mutate.
	value = s.clone(value)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.errLocked(); err != nil {
		return err
	}
	return s.guard(func() {
		var e = s.lookupLocked(key)
		e.value = value
		e.version++
		e.signal()
	})
}

func (s *store[K, V]) get(key K) (Versioned[V], bool, error) {
	var out Versioned[V]
	var ok bool

	s.mu.RLock()
	var err = s.errLocked()
	if err == nil {
		err = s.guardRead(func() {
			if e := s.entries[key]; e != nil && e.present() {
				out, ok = Versioned[V]{Value: e.value, Version: e.version}, true
			}
		})
	}
	s.mu.RUnlock()

	if err != nil {
		return Versioned[V]{}, false, err
	} else if ok {
		out.Value = s.clone(out.Value)
	}
	return out, ok, nil
}

// wait blocks until the version of |key| is greater than |after| or, if
// |fromCurrent|, greater than the version observed upon entry to wait.
// The observation of the current version and the registration of the
// waiter happen in a single critical section, so no write can be missed.
func (s *store[K, V]) wait(ctx context.Context, key K, after uint64, fromCurrent bool) (Versioned[V], error) {
	s.mu.Lock()

	var e *entry[V]
	var err = s.errLocked()

	if err == nil {
		err = s.guard(func() { e = s.lookupLocked(key) })
	}
	if err != nil {
		s.mu.Unlock()
		return Versioned[V]{}, err
	}

	if fromCurrent {
		after = e.version
	}
	waitTotal.Inc()

	for e.version <= after {
		if err = s.errLocked(); err == nil {
			err = ctx.Err()
		}
		if err != nil {
			s.mu.Unlock()
			return Versioned[V]{}, err
		}
		var ch = e.ready()
		e.waiters++

		s.mu.Unlock()
		waitersGauge.Inc()

		select {
		case <-ch:
			wakeupTotal.Inc()
		case <-ctx.Done():
		}

		waitersGauge.Dec()
		s.mu.Lock()
		e.waiters--
	}

	var out = Versioned[V]{Value: e.value, Version: e.version}
	s.mu.Unlock()

	out.Value = s.clone(out.Value)
	return out, nil
}

func (s *store[K, V]) snapshot() (map[K]Versioned[V], error) {
	s.mu.RLock()
	if err := s.errLocked(); err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	var out = make(map[K]Versioned[V], len(s.entries))
	for key, e := range s.entries {
		if e.present() {
			out[key] = Versioned[V]{Value: e.value, Version: e.version}
		}
	}
	s.mu.RUnlock()

	for key, v := range out {
		v.Value = s.clone(v.Value)
		out[key] = v
	}
	return out, nil
}

func (s *store[K, V]) len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.errLocked(); err != nil {
		return 0, err
	}
	var n int
	for _, e := range s.entries {
		if e.present() {
			n++
		}
	}
	return n, nil
}

func (s *store[K, V]) unpoison() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err = s.poisoned
	s.poisoned = nil

	if err != nil {
		if !s.closed {
			s.termCh = make(chan struct{})
		}
		log.WithFields(log.Fields{
			"map": s.name,
			"err": err,
		}).Warn("observable map unpoisoned")
	}
	return err
}

// acquire adds a reference to the store, returning false if it's closed.
func (s *store[K, V]) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.refs++
	return true
}

// release drops a reference to the store. Upon release of the final
// reference the store is closed, and all waiters are woken.
func (s *store[K, V]) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs--; s.refs != 0 {
		return
	}
	s.closed = true

	for _, e := range s.entries {
		e.signal()
	}
	s.terminateLocked()
	keysGauge.Sub(float64(len(s.entries)))
	closedTotal.Inc()

	log.WithFields(log.Fields{
		"map":  s.name,
		"keys": len(s.entries),
	}).Debug("observable map closed")

	s.entries = nil
}
