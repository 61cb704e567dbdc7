// Package task runs a collection of goroutines which start, fail, and are
// waited on together.
package task

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Group is a group of tasks to be run concurrently and collectively waited
// upon. Tasks must return upon cancellation of the Group Context, and the
// first task to return a non-nil error cancels the Group. Group is not
// itself thread-safe: Queue, GoRun and Wait are called by its owner.
type Group struct {
	// ctx is cancelled by a task error, by Cancel, or by its parent.
	ctx      context.Context
	cancelFn context.CancelFunc

	tasks   []task
	eg      *errgroup.Group
	started bool
}

type task struct {
	desc string
	fn   func() error
}

// NewGroup returns a new, empty Group deriving from the Context.
func NewGroup(ctx context.Context) *Group {
	ctx, cancel := context.WithCancel(ctx)
	eg, ctx := errgroup.WithContext(ctx)
	return &Group{ctx: ctx, eg: eg, cancelFn: cancel}
}

// Context of the Group.
func (g *Group) Context() context.Context { return g.ctx }

// Cancel the Group Context.
func (g *Group) Cancel() { g.cancelFn() }

// Queue |fn| for execution, described by |desc|.
// Queue panics if called after GoRun.
func (g *Group) Queue(desc string, fn func() error) {
	if g.started {
		panic("Queue called after GoRun")
	}
	g.tasks = append(g.tasks, task{desc: desc, fn: fn})
}

// GoRun starts all queued tasks. It panics if called more than once.
// The exit of each task is logged with its description and runtime. Task
// errors are logged as warnings, unless they're the consequence of an
// already-cancelled Group.
func (g *Group) GoRun() {
	if g.started {
		panic("GoRun already called")
	}
	g.started = true

	for i := range g.tasks {
		var t = g.tasks[i]
		var started = time.Now()

		g.eg.Go(func() error {
			var err = t.fn()

			var entry = log.WithFields(log.Fields{
				"task":    t.desc,
				"index":   i,
				"elapsed": time.Since(started),
			})
			if err == nil {
				entry.Debug("task exited")
			} else if g.ctx.Err() != nil && errors.Cause(err) == context.Canceled {
				entry.WithField("err", err).Debug("task cancelled")
			} else {
				entry.WithField("err", err).Warn("task failed")
			}
			return errors.WithMessage(err, t.desc)
		})
	}
}

// Wait for all started tasks to return, and return the first non-nil error.
// Wait panics unless GoRun was called.
func (g *Group) Wait() error {
	if !g.started {
		panic("Wait called before GoRun")
	}
	var err = g.eg.Wait()
	g.cancelFn()
	return err
}
