package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"go.gazette.dev/obsmap/feed"
	mbp "go.gazette.dev/obsmap/mainboilerplate"
	"go.gazette.dev/obsmap/task"
)

type cmdTicker struct {
	Scenario  string        `long:"scenario" description:"Path to a YAML scenario file"`
	Symbols   []string      `long:"symbol" default:"BTC" default:"ETH" description:"Symbols to produce, if no --scenario is given"`
	Observers int           `long:"observers" default:"2" description:"Number of observers, if no --scenario is given"`
	Duration  time.Duration `long:"duration" default:"5s" description:"Duration to run for. Zero runs until signaled"`
	Seed      int64         `long:"seed" description:"Seed of random price walks. Zero seeds from the current time"`
}

func (cmd *cmdTicker) Execute([]string) error {
	defer mbp.InitDiagnosticsAndRecover(Config.Diagnostics)()
	mbp.InitLog(Config.Log)

	var scenario *feed.Scenario
	var err error

	if cmd.Scenario != "" {
		scenario, err = feed.LoadScenario(cmd.Scenario)
	} else {
		scenario, err = feed.NewScenario(cmd.Observers, cmd.Symbols...)
	}
	mbp.Must(err, "failed to build scenario")

	if cmd.Seed == 0 {
		cmd.Seed = time.Now().UnixNano()
	}
	log.WithFields(log.Fields{
		"symbols":   len(scenario.Symbols),
		"observers": scenario.Observers,
		"duration":  cmd.Duration,
		"seed":      cmd.Seed,
	}).Info("starting ticker")

	var ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	if cmd.Duration != 0 {
		ctx, cancel = context.WithTimeout(ctx, cmd.Duration)
		defer cancel()
	}

	var prices = feed.NewPrices("ticker")
	defer prices.Release()

	var tasks = task.NewGroup(ctx)
	var observers []*feed.Observer

	for i := 0; i != scenario.Observers; i++ {
		var o = feed.NewObserver("", prices.Clone())
		defer o.Prices.Release()
		observers = append(observers, o)

		for _, spec := range scenario.Symbols {
			var symbol = spec.Symbol
			tasks.Queue("observe "+symbol+" by "+o.Name, func() error {
				return o.Observe(tasks.Context(), symbol)
			})
		}
	}
	for i, spec := range scenario.Symbols {
		var p = &feed.Producer{
			Spec:   spec,
			Prices: prices.Clone(),
			Rand:   rand.New(rand.NewSource(cmd.Seed + int64(i))),
		}
		defer p.Prices.Release()

		tasks.Queue("produce "+spec.Symbol, func() error {
			return p.Serve(tasks.Context())
		})
	}

	// Install a signal handler which cancels the group on SIGINT or SIGTERM.
	var signalCh = make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGTERM, syscall.SIGINT)

	tasks.Queue("watch signalCh", func() error {
		select {
		case sig := <-signalCh:
			log.WithField("signal", sig).Info("caught signal")
			tasks.Cancel()
		case <-tasks.Context().Done():
		}
		return nil
	})
	tasks.GoRun()

	err = tasks.Wait()
	signal.Stop(signalCh)
	mbp.Must(err, "ticker task failed")

	snapshot, err := prices.Snapshot()
	mbp.Must(err, "failed to snapshot prices")
	mbp.Must(feed.WriteSummary(os.Stdout, snapshot, observers), "failed to write summary")

	log.Info("goodbye")
	return nil
}
