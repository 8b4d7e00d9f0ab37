package kernel

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/agencyrun/agency/pkg/agency"
	"github.com/agencyrun/agency/pkg/graph"
	"github.com/agencyrun/agency/pkg/ids"
)

// stepBuilder accumulates IntentNodes for one process() call, assigning
// dense IntentIDs of the form (step, index) as it goes (spec §4.1 step 3).
type stepBuilder struct {
	step  uint64
	next  uint32
	g     *graph.IntentGraph
	state *State
}

func newStepBuilder(step uint64, state *State) *stepBuilder {
	return &stepBuilder{step: step, g: graph.New(), state: state}
}

func (b *stepBuilder) nextID() ids.IntentID {
	id := ids.NewIntentID(b.step, b.next)
	b.next++
	return id
}

// add inserts node and panics only on a programmer error (dangling
// dependency within the same batch); the kernel constructs dependencies
// exclusively from IDs it has itself just allocated, so this is a defensive
// invariant check, not a user-facing failure path.
func (b *stepBuilder) add(node agency.IntentNode) ids.IntentID {
	if err := b.g.Add(node); err != nil {
		panic(fmt.Sprintf("kernel: internal graph construction error: %v", err))
	}
	return node.ID
}

// addCallTool appends a CallTool node, consulting the approval policy per
// spec §4.1 step 5: if approval is required, a RequestApproval node is
// inserted first and the tool node depends on it.
func (b *stepBuilder) addCallTool(cfg Config, schemas toolSchemaIndex, name string, args json.RawMessage, deps []ids.IntentID, priority agency.Priority, forceApproval bool, reason string) ids.IntentID {
	needsApproval, policyReason := requiresApproval(cfg.Policies.Approval, schemas, name)
	if forceApproval {
		needsApproval = true
		if policyReason == "" {
			policyReason = reason
		}
	}

	toolDeps := deps
	if needsApproval {
		approvalID := b.nextID()
		b.add(agency.IntentNode{
			ID:      approvalID,
			Intent:  agency.RequestApproval{Tool: name, Args: args, Reason: policyReason},
			Priority: agency.PriorityHigh,
		})
		// RequestedAt is derived from the step number, not the wall clock:
		// the kernel must stay deterministic (spec §4.1 Purity guarantees).
		b.state.addPendingApproval(approvalID, name, string(args), stepTimestamp(b.step))
		toolDeps = append(append([]ids.IntentID{}, deps...), approvalID)
	}

	id := b.nextID()
	b.add(agency.IntentNode{
		ID:           id,
		Intent:       agency.CallTool{Name: name, Arguments: args},
		Dependencies: toolDeps,
		Priority:     priority,
		Retryable:    true,
		MaxRetries:   3,
	})
	return id
}

// applyDecision converts one parsed Decision into sibling intent nodes.
func (b *stepBuilder) applyDecision(cfg Config, schemas toolSchemaIndex, d Decision) {
	switch {
	case d.Final != "":
		// "f alone -> EmitResponse" (spec §4.1 Short-key JSON semantics).
		b.add(agency.IntentNode{
			ID:       b.nextID(),
			Intent:   agency.EmitResponse{Text: d.Final},
			Priority: agency.PriorityCritical,
		})

	case d.Confirm && d.Action != "":
		// "c: true with a+i -> emit EmitResponse(t) first and a
		// confirm-gated tool intent dependent on explicit user approval."
		if d.Thought != "" {
			b.add(agency.IntentNode{
				ID:       b.nextID(),
				Intent:   agency.EmitResponse{Text: d.Thought},
				Priority: agency.PriorityHigh,
			})
		}
		b.addCallTool(cfg, schemas, d.Action, d.Input, nil, agency.PriorityNormal, true,
			"explicit user confirmation requested by the assistant")

	case d.Action != "":
		// "a+i -> CallTool."
		b.addCallTool(cfg, schemas, d.Action, d.Input, nil, agency.PriorityNormal, false, "")

	default:
		// d.Thought only, or entirely empty: surface the thought so it is
		// not silently dropped, matching the teacher's behavior of always
		// persisting assistant content to history.
		if d.Thought != "" {
			b.add(agency.IntentNode{
				ID:       b.nextID(),
				Intent:   agency.EmitResponse{Text: d.Thought},
				Priority: agency.PriorityNormal,
			})
		}
	}

	if cfg.Features.MemoryCapture && d.Remember != "" {
		// "A memory-capture keyword r fires a fire-and-forget memory write
		// concurrent with any action" -- modeled as a background,
		// dependency-free CallTool against the conventional memory.store
		// tool name, never gating the primary action.
		args, _ := json.Marshal(map[string]string{"content": d.Remember})
		b.add(agency.IntentNode{
			ID:        b.nextID(),
			Intent:    agency.CallTool{Name: "memory.store", Arguments: args},
			Priority:  agency.PriorityBackground,
			Retryable: false,
		})
	}
}

// stepTimestamp maps a step number onto a time.Time deterministically, so
// PendingApproval.RequestedAt is orderable without reading the wall clock.
func stepTimestamp(step uint64) time.Time {
	return time.Unix(int64(step), 0).UTC()
}
