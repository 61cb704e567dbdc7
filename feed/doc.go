// Package feed drives an observable.Map of decimal prices: Producers random-walk
// the prices of symbols, and Observers block on and record each new price
// they see. A Scenario describes the symbols and their behavior, and may be
// loaded from YAML.
package feed

import (
	"github.com/cockroachdb/apd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.gazette.dev/obsmap/observable"
)

// Prices is an observable.Map of symbols to their current price.
type Prices = observable.Map[string, *apd.Decimal]

// NewPrices returns a new Prices map. Decimals are deep-copied as they're
// written to and read from the map.
func NewPrices(name string) *Prices {
	return observable.NewWithConfig[string, *apd.Decimal](observable.Config[*apd.Decimal]{
		Name:  name,
		Clone: CloneDecimal,
	})
}

// CloneDecimal returns a deep copy of |d|.
func CloneDecimal(d *apd.Decimal) *apd.Decimal {
	if d == nil {
		return nil
	}
	return new(apd.Decimal).Set(d)
}

var (
	priceUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "obsmap_feed_price_updates_total",
		Help: "Cumulative number of price updates written by producers.",
	}, []string{"symbol"})
	observedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "obsmap_feed_observed_total",
		Help: "Cumulative number of price versions observed by observers.",
	}, []string{"symbol"})
	coalescedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "obsmap_feed_coalesced_total",
		Help: "Cumulative number of price versions which observers coalesced over, and didn't observe.",
	}, []string{"symbol"})
)
