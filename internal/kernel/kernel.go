// Package kernel implements the Agency Kernel of spec §4.1: a pure,
// deterministic reducer that consumes events and emits a DAG of intents.
// It performs no I/O, no concurrency and reads no wall clock; the only
// randomness it may use comes from Config.Seed.
package kernel

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/agencyrun/agency/pkg/agency"
	"github.com/agencyrun/agency/pkg/graph"
)

// Kernel is the AgencyKernel contract of spec §4.1.
type Kernel interface {
	Init(cfg Config) error
	Process(events []agency.Event) (*graph.IntentGraph, error)
	State() *State
	IsTerminal() bool
}

// LLMKernel is the primary Kernel implementation described in spec §4.1:
// it folds events into state, extracts short-key JSON decisions from
// assistant content, and turns those decisions into intent graphs.
type LLMKernel struct {
	cfg     Config
	state   *State
	schemas toolSchemaIndex
	step    uint64
}

// NewLLMKernel returns a kernel initialized with cfg. It is equivalent to
// calling Init on a zero-value LLMKernel.
func NewLLMKernel(cfg Config) (*LLMKernel, error) {
	k := &LLMKernel{}
	if err := k.Init(cfg); err != nil {
		return nil, err
	}
	return k, nil
}

// Init implements Kernel.
func (k *LLMKernel) Init(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	k.cfg = cfg
	k.state = NewState(cfg.MaxSteps)
	k.schemas = buildToolSchemaIndex(cfg.ToolSchemas)
	k.step = 0
	return nil
}

// State implements Kernel.
func (k *LLMKernel) State() *State { return k.state }

// Restore re-initializes the kernel from a previously persisted step and
// state, for resuming a session after a restart. The config is validated
// exactly as in Init.
func (k *LLMKernel) Restore(cfg Config, step uint64, state State) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	k.cfg = cfg
	restored := state
	k.state = &restored
	k.schemas = buildToolSchemaIndex(cfg.ToolSchemas)
	k.step = step
	return nil
}

// IsTerminal implements Kernel.
func (k *LLMKernel) IsTerminal() bool { return k.state.Halted }

// Step returns the internal per-Process-call counter used to keep
// IntentIDs dense and unique across calls. Exposed so callers can persist
// enough state to resume numbering after a restart.
func (k *LLMKernel) Step() uint64 { return k.step }

// Process implements Kernel, following the algorithm of spec §4.1.
func (k *LLMKernel) Process(events []agency.Event) (*graph.IntentGraph, error) {
	if k.state == nil {
		return nil, newError(ErrStateError, "kernel not initialized")
	}

	// Invariant: once halted, every subsequent process() returns the empty
	// graph (spec §3 invariant, §8.5).
	if k.state.Halted {
		return graph.New(), nil
	}

	k.step++
	b := newStepBuilder(k.step, k.state)

	// Step 1: fold every event into state.
	for _, ev := range events {
		k.state.applyEvent(ev)
	}

	// An Interrupt folds into state as an immediate halt; surface it as an
	// explicit Halt intent so the runtime and the caller observe it too.
	if k.state.Halted {
		reason := agency.ExitReason{Kind: agency.ExitInterrupted}
		if k.state.HaltReason != nil {
			reason = *k.state.HaltReason
		}
		b.add(agency.IntentNode{
			ID:       b.nextID(),
			Intent:   agency.Halt{Reason: reason},
			Priority: agency.PriorityCritical,
		})
		return b.g, nil
	}

	// A runtime error reaching the kernel means the runtime already spent
	// the intent's retry budget; the only move left is a clean Halt(Error)
	// preserving the final message (spec §7 propagation policy).
	for _, ev := range events {
		if re, ok := ev.(agency.RuntimeErrorEvent); ok {
			k.emitHalt(b, agency.ExitReason{Kind: agency.ExitError, Message: re.Error})
			return b.g, nil
		}
	}

	// Step limit is enforced before any new decision is allowed to extend
	// the conversation (spec §8.4 boundary behaviour): exactly at
	// step_count == max_steps, the next process() halts.
	if k.state.StepCount >= k.state.MaxSteps {
		k.emitHalt(b, agency.ExitReason{Kind: agency.ExitStepLimit})
		return b.g, nil
	}

	producedDecision := false

	// Step 2-3: parse decisions out of any LLMCompleted event content and
	// turn them into sibling intents.
	for _, ev := range events {
		completed, ok := ev.(agency.LLMCompleted)
		if !ok {
			continue
		}

		decisions, err := ParseDecisions(completed.Response.Content)
		if err != nil {
			k.emitFormatCorrection(b, completed.Response.Content)
			producedDecision = true
			continue
		}

		for _, d := range decisions {
			b.applyDecision(k.cfg, k.schemas, d)
		}
		producedDecision = true
	}

	if producedDecision {
		k.state.StepCount++
		return b.g, nil
	}

	// Step 4: no new decisions emerged. If at least one conversational
	// event was consumed, run the default continuation: request the LLM's
	// next turn. Ticks and session-lifecycle notifications don't advance
	// the conversation and never cost an LLM round-trip on their own.
	if anyConversational(events) {
		k.defaultCycle(b)
		k.state.StepCount++
		return b.g, nil
	}

	// Empty event batch: no state change, empty graph (spec §8 boundary).
	return b.g, nil
}

func anyConversational(events []agency.Event) bool {
	for _, ev := range events {
		switch ev.(type) {
		case agency.UserMessage, agency.ToolCompleted, agency.ApprovalGiven,
			agency.WorkerCompleted, agency.WorkerFailed:
			return true
		}
	}
	return false
}

// defaultCycle implements spec §4.1 step 4: with no new decisions and at
// least one consumed event, the kernel must still make forward progress.
// The natural continuation after a UserMessage/ToolCompleted/
// ApprovalGiven/WorkerCompleted event is to ask the LLM for its next move.
func (k *LLMKernel) defaultCycle(b *stepBuilder) {
	if len(k.state.History) == 0 {
		k.emitHalt(b, agency.ExitReason{Kind: agency.ExitCompleted})
		return
	}

	b.add(agency.IntentNode{
		ID: b.nextID(),
		Intent: agency.RequestLLM{
			Context: append([]agency.Message{}, k.state.History...),
		},
		Priority: agency.PriorityCritical,
	})
}

// emitFormatCorrection synthesizes an assistant-facing correction nudge
// when the short-key parser fails (spec §4.1 Short-key JSON semantics:
// "Malformed input ... produces a synthesized assistant message asking for
// format correction"). If the malformed content names something close to a
// known tool, a "did you mean" suggestion is included.
func (k *LLMKernel) emitFormatCorrection(b *stepBuilder, badContent string) {
	msg := "Your last response could not be parsed as the expected " +
		`{"t":thought,"a":action,"i":input,"f":final} short-key JSON format. ` +
		"Please resend your decision using that format."

	if suggestion := suggestClosestTool(badContent, k.cfg.ToolSchemas); suggestion != "" {
		msg += " Did you mean tool \"" + suggestion + "\"?"
	}

	b.add(agency.IntentNode{
		ID: b.nextID(),
		Intent: agency.RequestLLM{
			Context: append(append([]agency.Message{}, k.state.History...),
				agency.Message{Role: agency.RoleSystem, Content: msg}),
		},
		Priority: agency.PriorityHigh,
	})
}

// suggestClosestTool returns the known tool name with the smallest
// Levenshtein distance to any word in content, when that distance is small
// enough to plausibly be a typo (within 3 edits of a name at least 4
// characters long).
func suggestClosestTool(content string, schemas []ToolSchema) string {
	if len(schemas) == 0 {
		return ""
	}

	words := strings.Fields(content)
	best := ""
	bestDist := -1
	for _, schema := range schemas {
		if len(schema.Name) < 4 {
			continue
		}
		for _, word := range words {
			dist := levenshtein.ComputeDistance(word, schema.Name)
			if bestDist == -1 || dist < bestDist {
				bestDist = dist
				best = schema.Name
			}
		}
	}

	if bestDist >= 0 && bestDist <= 3 {
		return best
	}
	return ""
}

// emitHalt appends a single Halt node and marks state terminal.
func (k *LLMKernel) emitHalt(b *stepBuilder, reason agency.ExitReason) {
	b.add(agency.IntentNode{
		ID:       b.nextID(),
		Intent:   agency.Halt{Reason: reason},
		Priority: agency.PriorityCritical,
	})
	k.state.halt(reason)
}
