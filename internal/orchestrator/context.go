package orchestrator

import (
	"context"

	"github.com/agencyrun/agency/internal/capability"
	"github.com/agencyrun/agency/internal/kernel"
	"github.com/agencyrun/agency/pkg/agency"
)

// charsPerToken approximates token count from byte length without a real
// tokenizer, matching the teacher's own coarse context-budget estimate.
const charsPerToken = 4

// minRetainedMessages is the number of most recent history messages the
// condenser never touches, regardless of how aggressively it needs to
// shrink context.
const minRetainedMessages = 8

// Condenser keeps a session's history within its configured token budget,
// summarizing the oldest contiguous span of non-system messages via the
// LLM capability before falling back to outright pruning (spec §4.4
// Context management). History is only ever mutated through the kernel's
// own CondenseHistory/PruneHistory methods, never by reaching into the
// History slice from here.
type Condenser struct {
	LLM               capability.LLM
	RC                *capability.RuntimeContext
	MaxContextTokens  int
	CondenseThreshold float64 // fraction of MaxContextTokens that triggers condensation
}

// NewCondenser builds a Condenser from the kernel's prompt config.
func NewCondenser(llm capability.LLM, rc *capability.RuntimeContext, prompt kernel.PromptConfig) *Condenser {
	return &Condenser{LLM: llm, RC: rc, MaxContextTokens: prompt.MaxContextTokens, CondenseThreshold: prompt.CondenseThreshold}
}

// MaybeCondense estimates the token cost of state.History and, if over
// threshold, summarizes the oldest eligible span (or prunes it when no LLM
// is available), returning events unchanged. The summary message replaces
// the condensed span in state.History directly, via State.CondenseHistory.
func (c *Condenser) MaybeCondense(ctx context.Context, state *kernel.State, events []agency.Event) []agency.Event {
	if c == nil || c.MaxContextTokens <= 0 {
		return events
	}

	estimate := estimateTokens(state.History)
	threshold := c.CondenseThreshold
	if threshold <= 0 {
		threshold = 0.75
	}
	if float64(estimate) < threshold*float64(c.MaxContextTokens) {
		return events
	}

	span := state.CondensableSpan(minRetainedMessages)
	if len(span) == 0 {
		return events
	}

	summary, ok := c.summarize(ctx, span)
	if !ok {
		state.PruneHistory(minRetainedMessages)
		return events
	}

	state.CondenseHistory(len(span), "Earlier conversation summary: "+summary)
	return events
}

// estimateTokens sums the coarse per-message token estimate across history.
func estimateTokens(history []agency.Message) int {
	total := 0
	for _, m := range history {
		total += len(m.Content) / charsPerToken
	}
	return total
}

// summarize asks the LLM capability to compress span into a few sentences.
func (c *Condenser) summarize(ctx context.Context, span []agency.Message) (string, bool) {
	if c.LLM == nil {
		return "", false
	}

	req := capability.LLMRequest{
		Context: append(append([]agency.Message{}, span...), agency.Message{
			Role:    agency.RoleSystem,
			Content: "Summarize the conversation above in a few sentences, preserving any decisions, facts or commitments made.",
		}),
	}
	resp, err := c.LLM.Complete(ctx, c.RC, req)
	if err != nil || resp.Content == "" {
		return "", false
	}
	return resp.Content, true
}
