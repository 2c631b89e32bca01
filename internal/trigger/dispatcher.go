// Package trigger fans fired triggers out to their consumers: persistence,
// the event stream, an optional webhook, an optional Redis channel, and the
// command executor that runs the pattern's actions.
package trigger

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/aura/pkg/models"
)

// deliverTimeout bounds the fan-out of one trigger across all sinks.
const deliverTimeout = 10 * time.Second

// Sink receives one fired trigger. Delivery failures are logged and never
// stop the dispatcher or other sinks.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, t *models.Trigger) error
}

// Dispatcher drains the engine's trigger queue and hands each trigger to
// every sink in order. It is the only consumer of the queue, which keeps the
// engine decoupled from slow consumers.
type Dispatcher struct {
	source <-chan models.Trigger
	sinks  []Sink

	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// NewDispatcher builds a dispatcher over the engine's trigger channel.
func NewDispatcher(source <-chan models.Trigger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		source: source,
		sinks:  sinks,
	}
}

// Start launches the dispatch loop. Calling Start on a running dispatcher is
// a no-op.
func (d *Dispatcher) Start() {
	if !d.running.CompareAndSwap(false, true) {
		return
	}
	d.stop = make(chan struct{})
	d.done = make(chan struct{})

	log.Info().Int("sinks", len(d.sinks)).Msg("trigger dispatcher started")
	go d.run()
}

// Stop halts the dispatch loop after the in-flight trigger completes.
// Calling Stop on a stopped dispatcher is a no-op.
func (d *Dispatcher) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}
	close(d.stop)
	<-d.done
	log.Info().Msg("trigger dispatcher stopped")
}

// Running reports whether the dispatch loop is active.
func (d *Dispatcher) Running() bool {
	return d.running.Load()
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for {
		select {
		case <-d.stop:
			// Drain what is already queued so stopping never loses a
			// fired trigger.
			for {
				select {
				case t := <-d.source:
					d.Dispatch(&t)
				default:
					return
				}
			}
		case t := <-d.source:
			d.Dispatch(&t)
		}
	}
}

// Dispatch delivers one trigger to every sink. Each failure is logged with
// the sink's name; remaining sinks still run.
func (d *Dispatcher) Dispatch(t *models.Trigger) {
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	for _, sink := range d.sinks {
		if err := sink.Deliver(ctx, t); err != nil {
			log.Warn().Err(err).
				Str("sink", sink.Name()).
				Str("pattern", t.PatternName).
				Str("trigger_id", t.ID).
				Msg("trigger delivery failed")
		}
	}
}
