// Package orchestrator implements the Session Orchestrator of spec §4.4:
// the outer loop that pumps events through a transport, cycles them
// through the kernel and runtime, and persists state as it goes.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/agencyrun/agency/internal/capability"
	"github.com/agencyrun/agency/internal/kernel"
	"github.com/agencyrun/agency/internal/logging"
	"github.com/agencyrun/agency/internal/runtime"
	"github.com/agencyrun/agency/internal/storage"
	"github.com/agencyrun/agency/internal/transport"
	"github.com/agencyrun/agency/pkg/agency"
	"github.com/agencyrun/agency/pkg/envelope"
	"github.com/agencyrun/agency/pkg/ids"
)

// Orchestrator owns one session's lifecycle: a kernel, a runtime, the
// transport feeding it events, and the persistence layer keeping its state
// durable across restarts.
type Orchestrator struct {
	SessionID ids.SessionID

	kernel    kernel.Kernel
	runtime   *runtime.Runtime
	transport *transport.FIFO
	store     *storage.Storage
	autosave  *storage.Autosaver
	rc        *capability.RuntimeContext

	// Responses receives ResponseEmittedObs texts, for a caller (CLI, HTTP
	// handler, nested worker) to consume without polling storage. The send
	// does not block: a text is dropped when the channel's buffer is full.
	Responses chan string

	condenser *Condenser
}

// Options configures a new Orchestrator.
type Options struct {
	SessionID ids.SessionID
	Kernel    kernel.Kernel
	Runtime   *runtime.Runtime
	Transport *transport.FIFO
	Store     *storage.Storage
	Autosave  *storage.Autosaver
	RC        *capability.RuntimeContext
	Condenser *Condenser
}

// New constructs an Orchestrator from Options.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		SessionID: opts.SessionID,
		kernel:    opts.Kernel,
		runtime:   opts.Runtime,
		transport: opts.Transport,
		store:     opts.Store,
		autosave:  opts.Autosave,
		rc:        opts.RC,
		condenser: opts.Condenser,
		Responses: make(chan string, 16),
	}
}

// Publish enqueues an event as a new envelope on the session's transport,
// the normal way external callers (chat input, approval decisions, worker
// completions) feed the orchestrator.
func (o *Orchestrator) Publish(ctx context.Context, source string, seq uint64, ev agency.Event) error {
	env := envelope.New(source, o.SessionID, seq, ev)
	return o.transport.Publish(ctx, env)
}

// Run drives the outer loop of spec §4.4 until ctx is cancelled or the
// kernel halts terminally: pull a batch of envelopes, feed their events to
// the kernel, execute the resulting IntentGraph, feed the runtime's
// observations back in as next cycle's events.
func (o *Orchestrator) Run(ctx context.Context) error {
	log := logging.ForSession(string(o.SessionID))
	defer func() {
		if o.autosave != nil {
			o.autosave.Stop()
		}
	}()

	var pending []agency.Event

	for {
		if o.kernel.IsTerminal() && len(pending) == 0 {
			log.Info().Msg("session halted, orchestrator loop exiting")
			return nil
		}

		if len(pending) == 0 {
			batch, err := o.transport.NextBatch(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, transport.ErrClosed) {
					return nil
				}
				return err
			}
			for _, env := range batch {
				pending = append(pending, env.Event)
			}
		}

		events := pending
		pending = nil

		if o.condenser != nil {
			events = o.condenser.MaybeCondense(ctx, o.kernel.State(), events)
		}

		g, err := o.kernel.Process(events)
		if err != nil {
			log.Error().Err(err).Msg("kernel process failed")
			return err
		}

		summary, err := o.runtime.Execute(ctx, o.rc, g)
		for _, runtimeErr := range summary.Errors {
			log.Warn().Err(runtimeErr).Msg("intent execution error")
		}
		if err != nil {
			log.Error().Err(err).Msg("runtime execute failed")
			return err
		}

		for _, obs := range summary.Observations {
			if respObs, ok := obs.(agency.ResponseEmittedObs); ok {
				select {
				case o.Responses <- respObs.Text:
				default:
				}
			}
		}

		if o.autosave != nil {
			o.autosave.Save(storage.SnapshotFrom(string(o.SessionID), stepOf(o.kernel), o.kernel.State(), time.Now()))
		}

		pending = kernelEvents(summary)
	}
}

// kernelEvents converts the runtime's observations back into next-cycle
// kernel events, keeping only the kinds the kernel actually reacts to.
// ResponseEmitted and Halted are user-facing terminal effects: feeding them
// back would read as "something happened, continue" and spin the default
// LLM cycle after every answer.
func kernelEvents(summary runtime.Summary) []agency.Event {
	var out []agency.Event
	for _, obs := range summary.Observations {
		switch obs.(type) {
		case agency.ResponseEmittedObs, agency.HaltedObs, agency.WorkerSpawnedObs:
			continue
		}
		out = append(out, obs.IntoEvent())
	}
	return out
}

// stepOf extracts the current step count for persistence bookkeeping. Only
// *kernel.LLMKernel exposes it directly; other Kernel implementations fall
// back to the business-facing StepCount.
func stepOf(k kernel.Kernel) uint64 {
	if llm, ok := k.(*kernel.LLMKernel); ok {
		return llm.Step()
	}
	return uint64(k.State().StepCount)
}
