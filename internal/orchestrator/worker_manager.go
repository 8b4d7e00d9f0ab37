package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/agencyrun/agency/internal/capability"
	"github.com/agencyrun/agency/internal/kernel"
	"github.com/agencyrun/agency/internal/logging"
	"github.com/agencyrun/agency/internal/runtime"
	"github.com/agencyrun/agency/internal/transport"
	"github.com/agencyrun/agency/pkg/agency"
	"github.com/agencyrun/agency/pkg/ids"
)

// WorkerManager implements capability.Worker by spawning nested
// Orchestrators in-process. It is the state-machine enforcement point for
// spec §9's resolved Open Question: worker depth and concurrency limits are
// enforced here, not left advisory to the capability implementation.
type WorkerManager struct {
	mu            sync.Mutex
	active        int
	nextID        uint64
	depth         int
	maxDepth      int
	maxConcurrent int

	// Factory builds the capability.Set a nested worker session should run
	// with, typically the same Set the parent uses minus Worker (or a
	// depth-decremented WorkerManager) when CanDelegate is requested.
	Factory NestedFactory
}

// NestedFactory builds everything a nested worker session needs: a fresh
// kernel (already Init'd), a runtime wired to the right capability set for
// this depth, and the RuntimeContext the nested session runs under.
type NestedFactory func(spec agency.SpawnWorker, depth int) (kernel.Kernel, *runtime.Runtime, *capability.RuntimeContext, error)

// NewWorkerManager returns a WorkerManager enforcing maxDepth/maxConcurrent
// from the kernel's WorkerPolicy (spec §3 Configuration).
func NewWorkerManager(policy kernel.WorkerPolicy, depth int, factory NestedFactory) *WorkerManager {
	return &WorkerManager{maxDepth: policy.MaxDepth, maxConcurrent: policy.MaxConcurrentWorkers, depth: depth, Factory: factory}
}

// errCapacity is returned when spawning would exceed depth or concurrency
// limits; the runtime surfaces this as a non-retryable RuntimeError.
type errCapacity struct{ reason string }

func (e errCapacity) Error() string { return "worker capacity exceeded: " + e.reason }

// Spawn implements capability.Worker.
func (w *WorkerManager) Spawn(ctx context.Context, rc *capability.RuntimeContext, spec agency.SpawnWorker) (capability.WorkerHandle, error) {
	if w.depth+1 > w.maxDepth {
		return nil, errCapacity{reason: fmt.Sprintf("max worker depth %d reached", w.maxDepth)}
	}

	w.mu.Lock()
	if w.maxConcurrent > 0 && w.active >= w.maxConcurrent {
		w.mu.Unlock()
		return nil, errCapacity{reason: fmt.Sprintf("max concurrent workers %d reached", w.maxConcurrent)}
	}
	w.active++
	id := atomic.AddUint64(&w.nextID, 1)
	w.mu.Unlock()

	done := make(chan agency.WorkerResult, 1)
	handle := &workerHandle{id: id, done: done}

	go func() {
		defer func() {
			w.mu.Lock()
			w.active--
			w.mu.Unlock()
		}()
		done <- w.run(ctx, ids.WorkerID(id), spec)
		close(done)
	}()

	return handle, nil
}

// run materializes and drives one nested session until it halts or yields
// an explicit CLAIM/PROGRESS/COMPLETE/FAIL scratchpad marker, converting the
// outcome into a WorkerResult.
func (w *WorkerManager) run(ctx context.Context, workerID ids.WorkerID, spec agency.SpawnWorker) agency.WorkerResult {
	log := logging.Logger.With().Uint64("workerId", uint64(workerID)).Logger()

	k, rt, rc, err := w.Factory(spec, w.depth+1)
	if err != nil {
		return agency.WorkerResult{OK: false, Error: &agency.WorkerError{Message: err.Error()}}
	}

	fifo := transport.New(16)
	sessionID := ids.NewSessionID()
	orc := New(Options{SessionID: sessionID, Kernel: k, Runtime: rt, Transport: fifo, RC: rc})

	nestedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- orc.Run(nestedCtx) }()

	if err := orc.Publish(nestedCtx, "worker_spec", 0, agency.UserMessage{Content: spec.Objective}); err != nil {
		return agency.WorkerResult{OK: false, Error: &agency.WorkerError{Message: err.Error()}}
	}

	var lastText string
	var claimed bool
	seq := uint64(0)

	// acknowledge prompts the worker to keep going after an intermediate
	// scratchpad marker; without it the nested session would sit idle
	// waiting for input that never comes.
	acknowledge := func() {
		seq++
		if err := orc.Publish(nestedCtx, "worker_protocol", seq, agency.UserMessage{Content: "acknowledged, continue"}); err != nil {
			log.Debug().Err(err).Msg("worker continuation publish failed")
		}
	}

	for {
		select {
		case text := <-orc.Responses:
			lastText = text
			switch {
			case strings.HasPrefix(text, "CLAIM:"):
				claimed = true
				log.Debug().Str("marker", text).Msg("worker scratchpad update")
				acknowledge()
				continue
			case strings.HasPrefix(text, "PROGRESS:"):
				log.Debug().Str("marker", text).Msg("worker scratchpad update")
				acknowledge()
				continue
			case strings.HasPrefix(text, "COMPLETE:"):
				cancel()
				if !claimed {
					return agency.WorkerResult{OK: false, Error: &agency.WorkerError{
						Message: "worker emitted COMPLETE without a prior CLAIM for its objective",
						Code:    "protocol_violation",
					}}
				}
				return agency.WorkerResult{OK: true, Output: strings.TrimSpace(strings.TrimPrefix(text, "COMPLETE:"))}
			case strings.HasPrefix(text, "FAIL:"):
				cancel()
				return agency.WorkerResult{OK: false, Error: &agency.WorkerError{Message: strings.TrimSpace(strings.TrimPrefix(text, "FAIL:"))}}
			default:
				// A plain response with no protocol marker is the worker's
				// final answer; its "user" is the parent session.
				cancel()
				return agency.WorkerResult{OK: true, Output: text}
			}
		case runErr := <-runErrCh:
			if runErr != nil {
				return agency.WorkerResult{OK: false, Error: &agency.WorkerError{Message: runErr.Error()}}
			}
			// Natural halt with no explicit terminal marker: the last
			// response text (if any) is the worker's output.
			return agency.WorkerResult{OK: true, Output: lastText}
		case <-ctx.Done():
			return agency.WorkerResult{OK: false, Error: &agency.WorkerError{Message: "cancelled", Code: "cancelled"}}
		}
	}
}

type workerHandle struct {
	id   uint64
	done chan agency.WorkerResult
}

func (h *workerHandle) ID() uint64                      { return h.id }
func (h *workerHandle) Done() <-chan agency.WorkerResult { return h.done }
