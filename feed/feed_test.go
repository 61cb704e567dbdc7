package feed

import (
	"bytes"
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/cockroachdb/apd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.gazette.dev/obsmap/observable"
	"go.gazette.dev/obsmap/task"
)

func TestStepCases(t *testing.T) {
	for _, tc := range []struct {
		price  string
		bp     int64
		expect string
	}{
		{"100.00", 10, "100.10"},
		{"100.00", -10, "99.90"},
		{"100.00", 0, "100.00"},
		{"3.1415926535897932384", 1, "3.14"},
		{"0.01", -9999, "0.00"},
		{"42000.00", 25, "42105.00"},
	} {
		var price, _, err = apd.NewFromString(tc.price)
		require.NoError(t, err)

		out, err := Step(price, tc.bp)
		require.NoError(t, err)
		assert.Equal(t, tc.expect, out.String(), "%s %+d", tc.price, tc.bp)
		assert.True(t, out.Sign() >= 0)
	}
}

func TestCloneDecimal(t *testing.T) {
	var d = apd.New(12345, -2)
	var cp = CloneDecimal(d)

	d.SetInt64(1)
	assert.Equal(t, "123.45", cp.String())
	assert.Nil(t, CloneDecimal(nil))
}

func TestProducersAndObservers(t *testing.T) {
	var prices = NewPrices("test")
	defer prices.Release()

	var scenario, err = ParseScenario([]byte(`
observers: 2
symbols:
  - {symbol: BTC, price: "42000.00", step_bp: 50, interval: 1ms}
  - {symbol: ETH, price: "3000.00", step_bp: 50, interval: 2ms}
`))
	require.NoError(t, err)

	var ctx, cancel = context.WithCancel(context.Background())
	var tasks = task.NewGroup(ctx)
	var observers []*Observer

	for i := 0; i != scenario.Observers; i++ {
		var o = NewObserver("", prices.Clone())
		observers = append(observers, o)

		for _, sym := range scenario.Symbols {
			var sym = sym.Symbol
			tasks.Queue("observe "+sym, func() error { return o.Observe(tasks.Context(), sym) })
		}
	}
	for i, spec := range scenario.Symbols {
		var p = &Producer{Spec: spec, Prices: prices.Clone(), Rand: rand.New(rand.NewSource(int64(i)))}
		tasks.Queue("produce "+spec.Symbol, func() error { return p.Serve(tasks.Context()) })
	}
	tasks.GoRun()

	// Run until each observer has seen a number of versions of each symbol.
	require.Eventually(t, func() bool {
		for _, o := range observers {
			var obs = o.Observations()
			if len(obs) != 2 || obs[0].Observed < 10 || obs[1].Observed < 10 {
				return false
			}
		}
		return true
	}, 10*time.Second, time.Millisecond)

	cancel()
	require.NoError(t, tasks.Wait())

	var snapshot, _ = prices.Snapshot()
	require.Len(t, snapshot, 2)

	for _, o := range observers {
		assert.NotEmpty(t, o.Name)

		for _, obs := range o.Observations() {
			var current = snapshot[obs.Symbol]

			// Every version up to the last observed one was either observed,
			// or coalesced over.
			assert.Equal(t, obs.Last.Version, obs.Observed+obs.Coalesced)
			assert.LessOrEqual(t, obs.Last.Version, current.Version)
			assert.True(t, obs.Last.Value.Sign() > 0)
		}
	}
}

func TestProducerValidatesItsSpec(t *testing.T) {
	var prices = NewPrices("invalid")
	defer prices.Release()

	var p = &Producer{
		Spec:   SymbolSpec{Symbol: "BTC", Price: "1.00", StepBasisPoints: -5, Interval: time.Millisecond},
		Prices: prices,
	}
	assert.EqualError(t, p.Serve(context.Background()),
		`producer of "BTC": expected StepBasisPoints in range (0, 10000) (got -5)`)

	// Nothing was written.
	var n, err = prices.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestObserverFailsOnClosedPrices(t *testing.T) {
	var prices = NewPrices("closing")
	var o = NewObserver("watcher", prices.Clone())

	var errCh = make(chan error)
	go func() { errCh <- o.Observe(context.Background(), "BTC") }()

	require.NoError(t, prices.Put("BTC", apd.New(1, 0)))
	require.Eventually(t, func() bool { return len(o.Observations()) == 1 },
		5*time.Second, time.Millisecond)

	prices.Release()
	o.Prices.Release()

	// The Observer is either blocked and woken by the close of its store,
	// or next awaits through its already-released handle.
	assert.Regexp(t, `^observer watcher awaiting BTC: observable map (closed|handle released)$`, <-errCh)
}

func TestWriteSummary(t *testing.T) {
	var prices = NewPrices("summary")
	defer prices.Release()

	var o = NewObserver("steady-observer", prices)
	o.record("BTC", 0, observable.Versioned[*apd.Decimal]{Value: apd.New(4200000, -2), Version: 1})
	o.record("BTC", 1, observable.Versioned[*apd.Decimal]{Value: apd.New(4210000, -2), Version: 1234})

	require.NoError(t, prices.Put("BTC", apd.New(4210000, -2)))
	require.NoError(t, prices.Put("ETH", apd.New(300000, -2)))

	var snapshot, err = prices.Snapshot()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, snapshot, []*Observer{o}))

	var out = buf.String()
	for _, expect := range []string{
		"42100.00", "3000.00", "steady-observer", "1,232", "1,234",
	} {
		assert.Contains(t, out, expect)
	}

	// Without observers, only prices are written.
	buf.Reset()
	require.NoError(t, WriteSummary(&buf, snapshot, nil))
	assert.Contains(t, buf.String(), "42100.00")
	assert.NotContains(t, buf.String(), "steady-observer")
}
