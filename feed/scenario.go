package feed

import (
	"os"
	"time"

	"github.com/cockroachdb/apd"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// SymbolSpec describes the price behavior of a single symbol.
type SymbolSpec struct {
	// Symbol is the key of the symbol's price.
	Symbol string `yaml:"symbol"`
	// Price is the initial price, as a decimal string.
	Price string `yaml:"price"`
	// StepBasisPoints bounds the relative change of each price update.
	StepBasisPoints int64 `yaml:"step_bp,omitempty"`
	// Interval between price updates.
	Interval time.Duration `yaml:"interval,omitempty"`
}

// Scenario is a set of symbols to produce, and a number of observers of them.
type Scenario struct {
	Observers int          `yaml:"observers,omitempty"`
	Symbols   []SymbolSpec `yaml:"symbols"`
}

const (
	defaultObservers       = 1
	defaultStepBasisPoints = 10
	defaultInterval        = 100 * time.Millisecond
	defaultPrice           = "100.00"
)

// InitialPrice returns the decoded initial Price of the SymbolSpec.
func (s SymbolSpec) InitialPrice() (*apd.Decimal, error) {
	var d, _, err = apd.NewFromString(s.Price)
	if err != nil {
		return nil, errors.WithMessagef(err, "parsing price %q", s.Price)
	}
	return d, nil
}

// Validate returns an error if the SymbolSpec is not well-formed.
func (s SymbolSpec) Validate() error {
	if s.Symbol == "" {
		return errors.New("expected Symbol")
	} else if d, err := s.InitialPrice(); err != nil {
		return err
	} else if d.Sign() < 0 {
		return errors.Errorf("expected Price >= 0 (got %s)", s.Price)
	} else if s.StepBasisPoints <= 0 || s.StepBasisPoints >= 10000 {
		return errors.Errorf("expected StepBasisPoints in range (0, 10000) (got %d)", s.StepBasisPoints)
	} else if s.Interval <= 0 {
		return errors.Errorf("expected Interval > 0 (got %s)", s.Interval)
	}
	return nil
}

// Validate returns an error if the Scenario is not well-formed.
func (s *Scenario) Validate() error {
	if s.Observers <= 0 {
		return errors.Errorf("expected Observers > 0 (got %d)", s.Observers)
	} else if len(s.Symbols) == 0 {
		return errors.New("expected at least one Symbol")
	}
	var seen = make(map[string]struct{}, len(s.Symbols))

	for i, sym := range s.Symbols {
		if err := sym.Validate(); err != nil {
			return errors.WithMessagef(err, "Symbols[%d]", i)
		} else if _, ok := seen[sym.Symbol]; ok {
			return errors.Errorf("Symbols[%d]: duplicated Symbol %q", i, sym.Symbol)
		}
		seen[sym.Symbol] = struct{}{}
	}
	return nil
}

// setDefaults fills zero-valued fields of the Scenario with defaults.
func (s *Scenario) setDefaults() {
	if s.Observers == 0 {
		s.Observers = defaultObservers
	}
	for i := range s.Symbols {
		var sym = &s.Symbols[i]

		if sym.Price == "" {
			sym.Price = defaultPrice
		}
		if sym.StepBasisPoints == 0 {
			sym.StepBasisPoints = defaultStepBasisPoints
		}
		if sym.Interval == 0 {
			sym.Interval = defaultInterval
		}
	}
}

// ParseScenario strictly decodes a YAML Scenario, applies defaults,
// and validates it.
func ParseScenario(b []byte) (*Scenario, error) {
	var s = new(Scenario)

	if err := yaml.UnmarshalStrict(b, s); err != nil {
		return nil, errors.WithMessage(err, "decoding scenario")
	}
	s.setDefaults()

	if err := s.Validate(); err != nil {
		return nil, errors.WithMessage(err, "validating scenario")
	}
	return s, nil
}

// LoadScenario reads and parses the YAML Scenario at |path|.
func LoadScenario(path string) (*Scenario, error) {
	var b, err = os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading scenario")
	}
	return ParseScenario(b)
}

// NewScenario returns a Scenario of |symbols| having default behaviors.
func NewScenario(observers int, symbols ...string) (*Scenario, error) {
	var s = &Scenario{Observers: observers}
	for _, sym := range symbols {
		s.Symbols = append(s.Symbols, SymbolSpec{Symbol: sym})
	}
	s.setDefaults()

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
