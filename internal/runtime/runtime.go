// Package runtime implements the Agency Runtime of spec §4.2: an async
// executor that walks an IntentGraph with bounded concurrency, turning each
// Intent into a capability call and each outcome into an Observation.
package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/agencyrun/agency/internal/capability"
	"github.com/agencyrun/agency/internal/kernel"
	"github.com/agencyrun/agency/pkg/agency"
	"github.com/agencyrun/agency/pkg/graph"
	"github.com/agencyrun/agency/pkg/ids"
)

// Runtime executes IntentGraphs against an injected set of capabilities,
// honoring the policies carried in kernel.Config. A Runtime instance is
// shared across every graph it executes (including nested worker sessions
// reusing the same capability set), so the per-capability-class semaphores
// below bound Runtime-wide concurrency, not just one graph's (spec §4.3
// "Runtime-level policies": max_concurrent_tools, max_concurrent_llm are
// "separate semaphores per capability class").
type Runtime struct {
	Capabilities  capability.Set
	Policies      kernel.Policies
	MaxConcurrent int

	// DefaultToolTimeout/DefaultLLMTimeout apply only when a node's own
	// Timeout is unset (spec §4.3 Runtime-level policies
	// default_tool_timeout/default_llm_timeout); the kernel never sets a
	// per-node timeout itself since wall-clock durations would break its
	// determinism guarantee (spec §4.1 Purity guarantees).
	DefaultToolTimeout time.Duration
	DefaultLLMTimeout  time.Duration

	toolSem chan struct{}
	llmSem  chan struct{}
}

// New returns a Runtime whose DAG executor dispatches up to maxConcurrent
// nodes at once (<=0 treated as 1, fully sequential — spec §4.2). Tool and
// LLM capability calls are additionally bounded by their own Runtime-wide
// semaphores, each also sized maxConcurrent (use NewWithLimits to size them
// independently), with no default per-node timeout.
func New(caps capability.Set, policies kernel.Policies, maxConcurrent int) *Runtime {
	return NewWithLimits(caps, policies, maxConcurrent, maxConcurrent, maxConcurrent)
}

// NewWithLimits is New with independently-sized per-capability-class
// semaphores, matching the RuntimeSection config fields one-to-one.
func NewWithLimits(caps capability.Set, policies kernel.Policies, maxConcurrent, maxConcurrentTools, maxConcurrentLLM int) *Runtime {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if maxConcurrentTools <= 0 {
		maxConcurrentTools = 1
	}
	if maxConcurrentLLM <= 0 {
		maxConcurrentLLM = 1
	}
	return &Runtime{
		Capabilities:  caps,
		Policies:      policies,
		MaxConcurrent: maxConcurrent,
		toolSem:       make(chan struct{}, maxConcurrentTools),
		llmSem:        make(chan struct{}, maxConcurrentLLM),
	}
}

// WithDefaultTimeouts sets the fallback per-class timeouts applied to nodes
// that don't carry their own Timeout, returning r for chaining at
// construction time.
func (r *Runtime) WithDefaultTimeouts(tool, llm time.Duration) *Runtime {
	r.DefaultToolTimeout = tool
	r.DefaultLLMTimeout = llm
	return r
}

// Summary is everything observed while executing one IntentGraph.
type Summary struct {
	Observations []agency.Observation
	Errors       []error
	Cancelled    bool
}

// Events converts every observation in the summary back into the kernel's
// event alphabet, in the order observations completed.
func (s Summary) Events() []agency.Event {
	out := make([]agency.Event, 0, len(s.Observations))
	for _, obs := range s.Observations {
		out = append(out, obs.IntoEvent())
	}
	return out
}

type nodeResult struct {
	id  ids.IntentID
	obs agency.Observation
	err error
}

// Execute walks g to completion: repeatedly computing the ready set,
// dispatching newly-ready nodes up to MaxConcurrent at a time, and folding
// finished results back in until every node has completed or been skipped
// (spec §4.2.c scheduling algorithm).
func (r *Runtime) Execute(ctx context.Context, rc *capability.RuntimeContext, g *graph.IntentGraph) (Summary, error) {
	var summary Summary
	if g == nil || g.IsEmpty() {
		return summary, nil
	}

	completed := make(map[ids.IntentID]bool, g.Len())
	poisoned := make(map[ids.IntentID]bool)
	dispatched := make(map[ids.IntentID]bool, g.Len())
	results := make(chan nodeResult)
	inFlight := 0

	// dispatchReady fills the free executor slots from the ready set, which
	// g.Ready already returns in (Priority, IntentID) order: with
	// available_slots = max_parallel - in_flight, the first `available`
	// undispatched nodes are exactly the deterministic choice of spec
	// §4.2.c. Which node runs next never depends on goroutine scheduling.
	dispatchReady := func() {
		available := r.MaxConcurrent - inFlight
		if available <= 0 {
			return
		}
		for _, node := range g.Ready(completed) {
			if available == 0 {
				break
			}
			if dispatched[node.ID] {
				continue
			}
			dispatched[node.ID] = true
			available--
			inFlight++

			node := node
			blocked := anyPoisoned(node.Dependencies, poisoned)
			go func() {
				if blocked {
					results <- nodeResult{id: node.ID, obs: agency.CancelledObs{IntentID: node.ID}}
					return
				}
				obs, err := r.executeNode(ctx, rc, node)
				results <- nodeResult{id: node.ID, obs: obs, err: err}
			}()
		}
	}

	dispatchReady()
	for inFlight > 0 {
		res := <-results
		inFlight--
		completed[res.id] = true

		if res.err != nil {
			summary.Errors = append(summary.Errors, res.err)
		}
		if res.obs != nil {
			summary.Observations = append(summary.Observations, res.obs)
			if isPoisoning(res.obs) {
				poisoned[res.id] = true
			}
		}
		if ctx.Err() != nil {
			summary.Cancelled = true
		}

		dispatchReady()
		if inFlight == 0 && len(completed) < g.Len() {
			return summary, fmt.Errorf("runtime: deadlock in intent graph, %d/%d intents completed", len(completed), g.Len())
		}
	}

	return summary, nil
}

// anyPoisoned reports whether any of deps was marked poisoned: a denied
// approval or failed/cancelled upstream intent that must block, not just
// skip, everything depending on it (spec §7 scenario: "tool intent never
// executes" after a denial).
func anyPoisoned(deps []ids.IntentID, poisoned map[ids.IntentID]bool) bool {
	for _, d := range deps {
		if poisoned[d] {
			return true
		}
	}
	return false
}

// isPoisoning reports whether obs should block everything depending on its
// intent rather than merely having completed.
func isPoisoning(obs agency.Observation) bool {
	switch o := obs.(type) {
	case agency.ApprovalCompletedObs:
		return o.Outcome != agency.ApprovalGranted
	case agency.CancelledObs:
		return true
	case agency.TimeoutObs:
		return true
	case agency.RuntimeErrorObs:
		return true
	default:
		return false
	}
}
