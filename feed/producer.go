package feed

import (
	"context"
	"math/rand"
	"time"

	"github.com/cockroachdb/apd"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// priceContext is the decimal Context of price arithmetic.
var priceContext = apd.BaseContext.WithPrecision(34)

// Step returns |price| moved by |bp| basis points, quantized to cents.
// The returned price is never negative.
func Step(price *apd.Decimal, bp int64) (*apd.Decimal, error) {
	var delta, next = new(apd.Decimal), new(apd.Decimal)

	if _, err := priceContext.Mul(delta, price, apd.New(bp, -4)); err != nil {
		return nil, errors.Wrap(err, "scaling price step")
	} else if _, err = priceContext.Add(next, price, delta); err != nil {
		return nil, errors.Wrap(err, "adding price step")
	} else if _, err = priceContext.Quantize(next, next, -2); err != nil {
		return nil, errors.Wrap(err, "quantizing price")
	}
	if next.Sign() < 0 {
		next.SetInt64(0)
	}
	return next, nil
}

// Producer random-walks the price of a symbol.
type Producer struct {
	Spec   SymbolSpec
	Prices *Prices
	// Rand is the source of price steps. If nil, a source seeded from
	// the current time is used.
	Rand *rand.Rand
}

// Serve writes the initial price of the Producer's symbol, and thereafter
// steps and writes the price on each Interval until the Context is done.
func (p *Producer) Serve(ctx context.Context) error {
	if err := p.Spec.Validate(); err != nil {
		return errors.WithMessagef(err, "producer of %q", p.Spec.Symbol)
	}
	var price, err = p.Spec.InitialPrice()
	if err != nil {
		return err
	}
	if p.Rand == nil {
		p.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if err = p.put(price); err != nil {
		return err
	}

	var ticker = time.NewTicker(p.Spec.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		var bp = p.Rand.Int63n(2*p.Spec.StepBasisPoints+1) - p.Spec.StepBasisPoints
		if price, err = Step(price, bp); err != nil {
			return errors.WithMessagef(err, "stepping %s", p.Spec.Symbol)
		} else if err = p.put(price); err != nil {
			return err
		}
	}
}

func (p *Producer) put(price *apd.Decimal) error {
	if err := p.Prices.Put(p.Spec.Symbol, price); err != nil {
		return errors.WithMessagef(err, "writing price of %s", p.Spec.Symbol)
	}
	priceUpdatesTotal.WithLabelValues(p.Spec.Symbol).Inc()

	log.WithFields(log.Fields{
		"symbol": p.Spec.Symbol,
		"price":  price.String(),
	}).Trace("produced price")

	return nil
}
