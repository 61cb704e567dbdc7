package feed

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/apd"
	petname "github.com/dustinkirkland/golang-petname"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.gazette.dev/obsmap/observable"
)

// Observation summarizes the versions of a symbol seen by an Observer.
type Observation struct {
	Symbol string
	// Observed is the number of versions received.
	Observed uint64
	// Coalesced is the number of versions which were superseded before
	// the Observer could receive them.
	Coalesced uint64
	// Last received price and version.
	Last observable.Versioned[*apd.Decimal]
}

// Observer blocks on and records successive prices of symbols.
type Observer struct {
	Name   string
	Prices *Prices

	mu  sync.Mutex
	obs map[string]*Observation
}

// NewObserver returns an Observer of |prices|. If |name| is empty,
// a random name is generated.
func NewObserver(name string, prices *Prices) *Observer {
	if name == "" {
		name = petname.Generate(2, "-")
	}
	return &Observer{
		Name:   name,
		Prices: prices,
		obs:    make(map[string]*Observation),
	}
}

// Observe |symbol| until the Context is done. Each received version is
// resumed from, so that no write of the symbol goes unaccounted: every
// version is either observed, or counted as coalesced.
func (o *Observer) Observe(ctx context.Context, symbol string) error {
	var after uint64

	for {
		var v, err = o.Prices.WaitForVersion(ctx, symbol, after)

		if ctx.Err() != nil && (err == context.Canceled || err == context.DeadlineExceeded) {
			return nil
		} else if err != nil {
			return errors.WithMessagef(err, "observer %s awaiting %s", o.Name, symbol)
		} else if v.Version <= after {
			return errors.Errorf("observer %s: version of %s regressed (%d <= %d)",
				o.Name, symbol, v.Version, after)
		}

		o.record(symbol, after, v)
		after = v.Version
	}
}

func (o *Observer) record(symbol string, after uint64, v observable.Versioned[*apd.Decimal]) {
	var coalesced = v.Version - after - 1

	o.mu.Lock()
	var obs, ok = o.obs[symbol]
	if !ok {
		obs = &Observation{Symbol: symbol}
		o.obs[symbol] = obs
	}
	obs.Observed++
	obs.Coalesced += coalesced
	obs.Last = v
	o.mu.Unlock()

	observedTotal.WithLabelValues(symbol).Inc()
	coalescedTotal.WithLabelValues(symbol).Add(float64(coalesced))

	log.WithFields(log.Fields{
		"observer": o.Name,
		"symbol":   symbol,
		"version":  v.Version,
		"price":    v.Value.String(),
	}).Debug("observed price")
}

// Observations returns the Observations of the Observer, ordered on symbol.
func (o *Observer) Observations() []Observation {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out = make([]Observation, 0, len(o.obs))
	for _, obs := range o.obs {
		var cp = *obs
		cp.Last.Value = CloneDecimal(obs.Last.Value)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
