package feed

import (
	"fmt"
	"io"
	"sort"

	"github.com/cockroachdb/apd"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"go.gazette.dev/obsmap/observable"
)

// WriteSummary writes a table of current prices of |snapshot|, and of the
// observations of each of |observers|, to |w|.
func WriteSummary(w io.Writer, snapshot map[string]observable.Versioned[*apd.Decimal], observers []*Observer) error {
	var symbols = make([]string, 0, len(snapshot))
	for sym := range snapshot {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var prices = tablewriter.NewWriter(w)
	prices.Header("Symbol", "Version", "Price")

	for _, sym := range symbols {
		var v = snapshot[sym]
		if err := prices.Append([]string{
			sym,
			humanize.Comma(int64(v.Version)),
			v.Value.String(),
		}); err != nil {
			return errors.Wrapf(err, "appending price of %s", sym)
		}
	}
	if err := prices.Render(); err != nil {
		return errors.Wrap(err, "rendering prices")
	}

	if len(observers) == 0 {
		return nil
	}
	fmt.Fprintln(w)

	var table = tablewriter.NewWriter(w)
	table.Header("Observer", "Symbol", "Observed", "Coalesced", "Last Version", "Last Price")

	for _, o := range observers {
		for _, obs := range o.Observations() {
			if err := table.Append([]string{
				o.Name,
				obs.Symbol,
				humanize.Comma(int64(obs.Observed)),
				humanize.Comma(int64(obs.Coalesced)),
				humanize.Comma(int64(obs.Last.Version)),
				obs.Last.Value.String(),
			}); err != nil {
				return errors.Wrapf(err, "appending observation of %s by %s", obs.Symbol, o.Name)
			}
		}
	}
	if err := table.Render(); err != nil {
		return errors.Wrap(err, "rendering observations")
	}
	return nil
}
