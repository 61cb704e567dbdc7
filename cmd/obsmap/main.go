package main

import (
	"github.com/jessevdk/go-flags"
	mbp "go.gazette.dev/obsmap/mainboilerplate"
)

const iniFilename = "obsmap.ini"

// Config is the top-level configuration object of obsmap.
var Config = new(struct {
	Log         mbp.LogConfig         `group:"Logging" namespace:"log" env-namespace:"LOG"`
	Diagnostics mbp.DiagnosticsConfig `group:"Debug" namespace:"debug" env-namespace:"DEBUG"`
})

func main() {
	var parser = flags.NewParser(Config, flags.Default)
	parser.EnvNamespace = "OBSMAP"

	_, _ = parser.AddCommand("pi", "Wait for a decimal value written by another goroutine", `
Run a writer goroutine which, after a delay, puts an arbitrary precision
decimal approximation of pi into an observable map. Meanwhile the main
goroutine blocks awaiting the first value of the key, and prints it.
`, &cmdPi{})

	_, _ = parser.AddCommand("ticker", "Produce and observe random-walk prices", `
Run producers which random-walk prices of a set of symbols, and observers
which block on and record each new price. Symbols are specified by a YAML
scenario file, or by --symbol flags. The ticker runs until --duration elapses
or it's signaled, and then prints a summary of prices and observations.
`, &cmdTicker{})

	mbp.AddPrintConfigCmd(parser, iniFilename)
	mbp.MustParseConfig(parser, iniFilename)
}
