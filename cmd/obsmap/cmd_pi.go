package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/apd"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.gazette.dev/obsmap/feed"
	"go.gazette.dev/obsmap/observable"
	mbp "go.gazette.dev/obsmap/mainboilerplate"
)

type cmdPi struct {
	Key   string        `long:"key" default:"pi" description:"Key to write and await"`
	Value string        `long:"value" default:"3.1415926535897932384" description:"Decimal value to write"`
	Delay time.Duration `long:"delay" default:"1s" description:"Delay before the value is written"`
}

func (cmd *cmdPi) Execute([]string) error {
	defer mbp.InitDiagnosticsAndRecover(Config.Diagnostics)()
	mbp.InitLog(Config.Log)

	var value, _, err = apd.NewFromString(cmd.Value)
	mbp.Must(err, "failed to parse value", "value", cmd.Value)

	var m = feed.NewPrices("pi")
	defer m.Release()

	out, err := cmd.exchange(context.Background(), m, value)
	if err != nil {
		return err
	}
	fmt.Printf("%s => %s\n", cmd.Key, out.Value)
	return nil
}

// exchange writes |value| to the Key of |m| from a writer goroutine, after
// the configured Delay, while blocking for the Key's first version.
func (cmd *cmdPi) exchange(ctx context.Context, m *feed.Prices, value *apd.Decimal) (observable.Versioned[*apd.Decimal], error) {
	// The writer goroutine operates through its own handle of the map.
	var writer = m.Clone()
	var writeErr = make(chan error, 1)

	go func() {
		defer writer.Release()
		time.Sleep(cmd.Delay)

		var err = writer.Put(cmd.Key, value)
		if err == nil {
			log.WithFields(log.Fields{"key": cmd.Key, "value": value.String()}).Info("inserted")
		}
		writeErr <- err
	}()

	// Block until the key is first written. The key is new, so this is its
	// next value, and a Put which lands before the wait begins isn't missed.
	var out, err = m.WaitForVersion(ctx, cmd.Key, 0)
	if err != nil {
		return out, errors.WithMessagef(err, "awaiting %s", cmd.Key)
	} else if err = <-writeErr; err != nil {
		return out, errors.WithMessagef(err, "writing %s", cmd.Key)
	}
	log.WithFields(log.Fields{
		"key":     cmd.Key,
		"value":   out.Value.String(),
		"version": out.Version,
	}).Info("updated")

	if out.Value.Cmp(value) != 0 {
		return out, errors.Errorf("observed value %s != written value %s", out.Value, value)
	}
	return out, nil
}
