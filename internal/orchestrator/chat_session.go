package orchestrator

import (
	"context"
	"sync/atomic"

	"github.com/agencyrun/agency/pkg/agency"
	"github.com/agencyrun/agency/pkg/ids"
)

// ChatSession is the external-facing handle a transport layer (CLI, HTTP
// handler) uses to talk to one Orchestrator: it owns the monotonic sequence
// numbering for envelopes published on this session's FIFO (spec §5
// Envelope: "Sequence strictly increases per session").
type ChatSession struct {
	*Orchestrator
	seq uint64
}

// NewChatSession wraps an Orchestrator with sequence bookkeeping.
func NewChatSession(orc *Orchestrator) *ChatSession {
	return &ChatSession{Orchestrator: orc}
}

func (s *ChatSession) nextSeq() uint64 { return atomic.AddUint64(&s.seq, 1) }

// SendMessage publishes a new user chat turn.
func (s *ChatSession) SendMessage(ctx context.Context, content string) error {
	return s.Publish(ctx, "chat", s.nextSeq(), agency.UserMessage{Content: content})
}

// Approve resolves a pending RequestApproval intent.
func (s *ChatSession) Approve(ctx context.Context, intentID ids.IntentID, outcome agency.ApprovalOutcome) error {
	return s.Publish(ctx, "approval", s.nextSeq(), agency.ApprovalGiven{IntentID: intentID, Outcome: outcome})
}

// Interrupt signals the session to halt at its next opportunity.
func (s *ChatSession) Interrupt(ctx context.Context) error {
	return s.Publish(ctx, "control", s.nextSeq(), agency.Interrupt{})
}

// Tick publishes a wall-clock heartbeat, letting the kernel observe time
// passing through the same event stream as everything else (spec §3
// Event Tick).
func (s *ChatSession) Tick(ctx context.Context, unixTime int64) error {
	return s.Publish(ctx, "clock", s.nextSeq(), agency.Tick{Time: unixTime})
}
