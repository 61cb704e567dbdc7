// Package observable implements a concurrent key/value Map whose defining
// feature is blocking observation: rather than polling, a caller may block
// until the value of a key changes.
//
// Each key is tracked by an entry holding its current value and a version,
// which starts at zero and is incremented by exactly one on each Put. A
// waiter records the version it has observed and is woken only once the
// version advances beyond it, so a write which lands between a waiter's
// check and its suspension is never missed. Waiters may coalesce over
// intermediate values: they're assured of observing the latest value as
// of their wake-up, not every historical one.
//
// A Map is a handle. Clone returns another handle over the identical
// underlying store, and the store is torn down when the last handle is
// released (either explicitly, or by the garbage collector). Waiters
// blocked at that time are woken with ErrClosed.
//
// Should a panic occur while the store's lock is held, the store is
// "poisoned": the panic is recovered and every current and future call
// returns ErrPoisoned, until a caller chooses to Unpoison.
package observable

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	putTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "obsmap_put_total",
		Help: "Cumulative number of values put to observable maps.",
	})
	waitTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "obsmap_wait_total",
		Help: "Cumulative number of blocking waits started on observable map keys.",
	})
	wakeupTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "obsmap_wakeup_total",
		Help: "Cumulative number of times a blocked waiter was woken to re-check its key.",
	})
	waitersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "obsmap_waiters",
		Help: "Number of waiters currently blocked on observable map keys.",
	})
	keysGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "obsmap_keys",
		Help: "Number of key entries held across all open observable maps.",
	})
	poisonedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "obsmap_poisoned_total",
		Help: "Cumulative number of observable maps poisoned by a panic while locked.",
	})
	closedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "obsmap_closed_total",
		Help: "Cumulative number of observable maps torn down upon release of their last handle.",
	})
)
