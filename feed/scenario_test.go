package feed

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioFixture = `
observers: 3
symbols:
  - symbol: BTC
    price: "42000.00"
    step_bp: 25
    interval: 20ms
  - symbol: pi
    price: "3.1415926535897932384"
`

func TestParseScenarioWithDefaults(t *testing.T) {
	var s, err = ParseScenario([]byte(scenarioFixture))
	require.NoError(t, err)

	assert.Equal(t, &Scenario{
		Observers: 3,
		Symbols: []SymbolSpec{
			{Symbol: "BTC", Price: "42000.00", StepBasisPoints: 25, Interval: 20 * time.Millisecond},
			{Symbol: "pi", Price: "3.1415926535897932384", StepBasisPoints: 10, Interval: 100 * time.Millisecond},
		},
	}, s)

	// Decimal prices are decoded without loss of precision.
	d, err := s.Symbols[1].InitialPrice()
	require.NoError(t, err)
	assert.Equal(t, "3.1415926535897932384", d.String())
}

func TestParseScenarioValidationCases(t *testing.T) {
	for _, tc := range []struct {
		yaml   string
		expect string
	}{
		{`symbols: []`, `validating scenario: expected at least one Symbol`},
		{`{observers: -1, symbols: [{symbol: A}]}`, `validating scenario: expected Observers > 0 \(got -1\)`},
		{`symbols: [{price: "1"}]`, `validating scenario: Symbols\[0\]: expected Symbol`},
		{`symbols: [{symbol: A, price: "one"}]`, `validating scenario: Symbols\[0\]: parsing price "one": .*`},
		{`symbols: [{symbol: A, price: "-1"}]`, `validating scenario: Symbols\[0\]: expected Price >= 0 \(got -1\)`},
		{`symbols: [{symbol: A, step_bp: 10000}]`, `.*expected StepBasisPoints in range \(0, 10000\) \(got 10000\)`},
		{`symbols: [{symbol: A, interval: -1s}]`, `.*expected Interval > 0 \(got -1s\)`},
		{`symbols: [{symbol: A}, {symbol: A}]`, `validating scenario: Symbols\[1\]: duplicated Symbol "A"`},
		{`symbols: [{symbol: A, unknown: field}]`, `decoding scenario: .*field unknown not found.*`},
	} {
		var _, err = ParseScenario([]byte(tc.yaml))
		assert.Regexp(t, "(?s)^"+tc.expect+"$", err, tc.yaml)
	}
}

func TestLoadScenario(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioFixture), 0644))

	var s, err = LoadScenario(path)
	require.NoError(t, err)
	assert.Len(t, s.Symbols, 2)

	_, err = LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Regexp(t, `reading scenario: .*no such file.*`, err)
}

func TestNewScenario(t *testing.T) {
	var s, err = NewScenario(2, "BTC", "ETH")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Observers)
	assert.Equal(t, SymbolSpec{
		Symbol:          "ETH",
		Price:           defaultPrice,
		StepBasisPoints: defaultStepBasisPoints,
		Interval:        defaultInterval,
	}, s.Symbols[1])

	_, err = NewScenario(1)
	assert.EqualError(t, err, "expected at least one Symbol")
}
