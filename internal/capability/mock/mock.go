// Package mock provides deterministic in-memory capability fakes used by
// the runtime's own tests, by orchestrator-level integration tests, and by
// cmd/agencyd's run command; real provider/tool bodies are out of scope
// (spec §1).
package mock

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/agencyrun/agency/internal/capability"
	"github.com/agencyrun/agency/pkg/agency"
)

// LLM is a scripted capability.LLM: each call to Complete pops the next
// scripted response, looping on the last one once the script is exhausted.
type LLM struct {
	mu        sync.Mutex
	Responses []agency.LLMResponse
	calls     int
}

func NewLLM(responses ...agency.LLMResponse) *LLM {
	return &LLM{Responses: responses}
}

func (m *LLM) Complete(ctx context.Context, rc *capability.RuntimeContext, req capability.LLMRequest) (agency.LLMResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Responses) == 0 {
		return agency.LLMResponse{Content: `{"f":"done"}`, FinishReason: "stop"}, nil
	}
	idx := m.calls
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	m.calls++
	return m.Responses[idx], nil
}

func (m *LLM) CompleteStream(ctx context.Context, rc *capability.RuntimeContext, req capability.LLMRequest) (capability.LLMStream, error) {
	resp, err := m.Complete(ctx, rc, req)
	if err != nil {
		return nil, err
	}
	return &staticStream{resp: resp}, nil
}

type staticStream struct {
	resp agency.LLMResponse
	sent bool
}

func (s *staticStream) Recv() (agency.LLMResponse, error) {
	if s.sent {
		return agency.LLMResponse{}, io.EOF
	}
	s.sent = true
	return s.resp, nil
}

func (s *staticStream) Close() error { return nil }

// Tool is a scripted capability.Tool keyed by tool name.
type Tool struct {
	mu      sync.Mutex
	Scripts map[string]func(agency.CallTool) (agency.ToolResult, error)
	Calls   []agency.CallTool
}

func NewTool() *Tool {
	return &Tool{Scripts: make(map[string]func(agency.CallTool) (agency.ToolResult, error))}
}

func (t *Tool) On(name string, fn func(agency.CallTool) (agency.ToolResult, error)) *Tool {
	t.Scripts[name] = fn
	return t
}

func (t *Tool) Execute(ctx context.Context, rc *capability.RuntimeContext, call agency.CallTool) (agency.ToolResult, error) {
	t.mu.Lock()
	t.Calls = append(t.Calls, call)
	fn, ok := t.Scripts[call.Name]
	t.mu.Unlock()
	if !ok {
		return agency.ToolResult{Kind: agency.ToolResultError, Message: fmt.Sprintf("no script for tool %q", call.Name)}, nil
	}
	return fn(call)
}

// Lookup implements capability.ToolLookup for a single-tool registry keyed
// by the same Scripts map: any scripted name is "known".
func (t *Tool) Lookup(name string) (capability.Tool, bool) {
	t.mu.Lock()
	_, ok := t.Scripts[name]
	t.mu.Unlock()
	if !ok {
		return nil, false
	}
	return t, true
}

// Registry is a name -> capability.Tool map satisfying capability.ToolLookup,
// used when different tools need different fakes.
type Registry map[string]capability.Tool

func (r Registry) Lookup(name string) (capability.Tool, bool) {
	t, ok := r[name]
	return t, ok
}

// Approval auto-resolves every request to a fixed outcome.
type Approval struct {
	Outcome agency.ApprovalOutcome
	Calls   []agency.RequestApproval
	mu      sync.Mutex
}

func NewApproval(outcome agency.ApprovalOutcome) *Approval {
	return &Approval{Outcome: outcome}
}

func (a *Approval) Request(ctx context.Context, rc *capability.RuntimeContext, req agency.RequestApproval) (agency.ApprovalOutcome, error) {
	a.mu.Lock()
	a.Calls = append(a.Calls, req)
	a.mu.Unlock()
	return a.Outcome, nil
}

// Worker never actually spawns anything; it resolves immediately with a
// fixed result, enough to exercise the SpawnWorker -> WorkerCompleted path
// without standing up a nested orchestrator.
type Worker struct {
	Result agency.WorkerResult
	nextID uint64
}

func NewWorker(result agency.WorkerResult) *Worker {
	return &Worker{Result: result}
}

func (w *Worker) Spawn(ctx context.Context, rc *capability.RuntimeContext, spec agency.SpawnWorker) (capability.WorkerHandle, error) {
	id := atomic.AddUint64(&w.nextID, 1)
	done := make(chan agency.WorkerResult, 1)
	done <- w.Result
	close(done)
	return &workerHandle{id: id, done: done}, nil
}

type workerHandle struct {
	id   uint64
	done chan agency.WorkerResult
}

func (h *workerHandle) ID() uint64                           { return h.id }
func (h *workerHandle) Done() <-chan agency.WorkerResult      { return h.done }

// Telemetry buffers every recorded event for later assertions.
type Telemetry struct {
	mu        sync.Mutex
	Decisions []Record
	Results   []Record
}

type Record struct {
	Label  string
	Fields map[string]any
}

func NewTelemetry() *Telemetry { return &Telemetry{} }

func (t *Telemetry) RecordDecision(ctx context.Context, label string, fields map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Decisions = append(t.Decisions, Record{Label: label, Fields: fields})
}

func (t *Telemetry) RecordResult(ctx context.Context, label string, fields map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Results = append(t.Results, Record{Label: label, Fields: fields})
}

// Memory is a slice-backed store with trivial substring search.
type Memory struct {
	mu      sync.Mutex
	Entries []capability.MemoryEntry
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Store(ctx context.Context, content string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, capability.MemoryEntry{Content: content, Metadata: metadata, Confidence: 1})
	return nil
}

func (m *Memory) Search(ctx context.Context, query string, limit int) ([]capability.MemoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []capability.MemoryEntry
	for _, e := range m.Entries {
		if limit > 0 && len(out) >= limit {
			break
		}
		if query == "" || strings.Contains(e.Content, query) {
			out = append(out, e)
		}
	}
	return out, nil
}
