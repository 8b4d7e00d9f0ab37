package kernel

import (
	"time"

	"github.com/agencyrun/agency/pkg/agency"
	"github.com/agencyrun/agency/pkg/ids"
)

// PendingApproval tracks a RequestApproval intent awaiting resolution (spec
// §3 Kernel state: pending_approvals).
type PendingApproval struct {
	IntentID    ids.IntentID
	Tool        string
	Args        string
	RequestedAt time.Time
}

// State is the kernel's internal state (spec §3 Kernel state). The only
// mutations allowed from outside this package are applyEvent (via Process)
// and the CondenseHistory/PruneHistory context-management methods; all of
// them preserve the history-ordering invariant and the step-count cap.
type State struct {
	StepCount        int
	MaxSteps         int
	History          []agency.Message
	Scratchpad       string
	ActiveWorkers    int
	Halted           bool
	HaltReason       *agency.ExitReason
	TokenUsage       agency.TokenUsage
	PendingApprovals []PendingApproval
}

// NewState returns a fresh state bound to the given step cap.
func NewState(maxSteps int) *State {
	return &State{MaxSteps: maxSteps}
}

// appendHistory is the only way History grows; callers never truncate or
// reorder it (spec §3 invariant: history ordering is append-only).
func (s *State) appendHistory(msg agency.Message) {
	s.History = append(s.History, msg)
}

// applyEvent folds one Event into state, per spec §4.1 step 1.
func (s *State) applyEvent(ev agency.Event) {
	switch e := ev.(type) {
	case agency.UserMessage:
		s.appendHistory(agency.Message{Role: agency.RoleUser, Content: e.Content})

	case agency.LLMCompleted:
		s.appendHistory(agency.Message{Role: agency.RoleAssistant, Content: e.Response.Content})
		s.TokenUsage = s.TokenUsage.Add(e.Response.Usage)

	case agency.ToolCompleted:
		content := e.Result.Output
		if e.Result.Kind == agency.ToolResultError {
			content = e.Result.Message
		}
		s.appendHistory(agency.Message{Role: agency.RoleTool, Content: content})

	case agency.ApprovalGiven:
		s.resolveApproval(e.IntentID)

	case agency.WorkerCompleted:
		if s.ActiveWorkers > 0 {
			s.ActiveWorkers--
		}

	case agency.WorkerFailed:
		if s.ActiveWorkers > 0 {
			s.ActiveWorkers--
		}

	case agency.Interrupt:
		s.Halted = true
		reason := agency.ExitReason{Kind: agency.ExitInterrupted}
		s.HaltReason = &reason
	}
}

// resolveApproval removes a pending approval entry by IntentID. It is a
// no-op if the ID is not pending, matching the kernel's "never panic on
// malformed events" guarantee (spec §4.1).
func (s *State) resolveApproval(id ids.IntentID) {
	for i, pa := range s.PendingApprovals {
		if pa.IntentID == id {
			s.PendingApprovals = append(s.PendingApprovals[:i], s.PendingApprovals[i+1:]...)
			return
		}
	}
}

// addPendingApproval records a newly emitted RequestApproval intent.
func (s *State) addPendingApproval(id ids.IntentID, tool, args string, now time.Time) {
	s.PendingApprovals = append(s.PendingApprovals, PendingApproval{
		IntentID:    id,
		Tool:        tool,
		Args:        args,
		RequestedAt: now,
	})
}

// leadingSystemCount counts the system-prompt prefix that condensation and
// pruning must both leave untouched.
func (s *State) leadingSystemCount() int {
	n := 0
	for _, m := range s.History {
		if m.Role != agency.RoleSystem {
			break
		}
		n++
	}
	return n
}

// CondensableSpan returns the oldest contiguous run of non-system history
// messages eligible for summarization: everything after the leading system
// prefix, excluding the most recent retain messages. The returned slice
// aliases History and must be treated as read-only.
func (s *State) CondensableSpan(retain int) []agency.Message {
	lead := s.leadingSystemCount()
	if len(s.History)-lead <= retain {
		return nil
	}
	return s.History[lead : len(s.History)-retain]
}

// CondenseHistory replaces the span oldest non-system messages (the ones
// CondensableSpan returned) with a single assistant summary message,
// keeping the leading system prefix and everything after the span intact.
// This is the one sanctioned non-append history mutation: condensation
// trades verbatim history for a summary without reordering what remains
// (spec §4.4 Context management).
func (s *State) CondenseHistory(span int, summary string) {
	lead := s.leadingSystemCount()
	if span <= 0 || lead+span > len(s.History) {
		return
	}
	condensed := make([]agency.Message, 0, len(s.History)-span+1)
	condensed = append(condensed, s.History[:lead]...)
	condensed = append(condensed, agency.Message{Role: agency.RoleAssistant, Content: summary})
	condensed = append(condensed, s.History[lead+span:]...)
	s.History = condensed
}

// PruneHistory drops the oldest non-system messages outright, keeping the
// leading system prefix plus at most retain of the most recent messages.
// The first retained non-system message is guaranteed to have role User
// when any user message survives the cut (some providers reject a
// conversation opening on an assistant or tool turn).
func (s *State) PruneHistory(retain int) {
	lead := s.leadingSystemCount()
	if len(s.History)-lead <= retain {
		return
	}

	remaining := s.History[len(s.History)-retain:]
	start := 0
	for start < len(remaining) && remaining[start].Role != agency.RoleUser {
		start++
	}
	if start == len(remaining) {
		start = 0
	}

	pruned := make([]agency.Message, 0, lead+len(remaining)-start)
	pruned = append(pruned, s.History[:lead]...)
	pruned = append(pruned, remaining[start:]...)
	s.History = pruned
}

// halt marks the state terminal with the given reason. Once set, Halted
// never reverts (spec §3 invariant).
func (s *State) halt(reason agency.ExitReason) {
	if s.Halted {
		return
	}
	s.Halted = true
	r := reason
	s.HaltReason = &r
}
