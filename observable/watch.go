package observable

import "context"

// Watch delivers successive versions of a single key.
type Watch[V any] struct {
	// C receives each observed version of the key, in order. Versions which
	// are written while a previous version remains un-received are
	// coalesced, and only the latest is delivered. C is closed upon the
	// Watch's termination, after which Err describes its cause.
	C <-chan Versioned[V]

	done chan struct{}
	err  error
}

// Done returns a channel which is closed when the Watch terminates.
func (w *Watch[V]) Done() <-chan struct{} { return w.done }

// Err returns the terminal error of the Watch, or nil if it's running.
func (w *Watch[V]) Err() error {
	select {
	case <-w.done:
		return w.err
	default:
		return nil
	}
}

// Watch |key| for versions greater than |after|, until the Context is done,
// the handle is released, or the store is closed or poisoned. Termination
// doesn't await a consumer of C to receive an undelivered version.
// An |after| of zero delivers the current value of the key first, if it
// has one.
func (m *Map[K, V]) Watch(ctx context.Context, key K, after uint64) *Watch[V] {
	var ch = make(chan Versioned[V])
	var w = &Watch[V]{C: ch, done: make(chan struct{})}

	go func() {
		for w.err == nil {
			var v Versioned[V]
			if v, w.err = m.WaitForVersion(ctx, key, after); w.err != nil {
				break
			}
			after = v.Version
			w.err = m.deliver(ctx, ch, v)
		}
		close(ch)
		close(w.done)
	}()

	return w
}

// deliver sends |v| to |ch|, returning early with the cause should the
// Context be done, the handle be released, or the store terminate.
func (m *Map[K, V]) deliver(ctx context.Context, ch chan<- Versioned[V], v Versioned[V]) error {
	for {
		select {
		case ch <- v:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-m.ref.releasedCh:
			if err := m.ref.store.err(); err != nil {
				return err
			}
			return ErrReleased
		case <-m.ref.store.terminated():
			// A poisoning may be cleared before its cause is read.
			// If so, resume the send with the store's new channel.
			if err := m.ref.store.err(); err != nil {
				return err
			}
		}
	}
}
