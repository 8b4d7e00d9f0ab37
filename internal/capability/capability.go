// Package capability defines the narrow interfaces through which the
// runtime touches the outside world (spec §4.3). These are the ONLY way
// the core speaks to concrete LLM providers, tools, approval UIs, worker
// executors, telemetry sinks and memory stores; every implementation is
// injected at construction, and the core never names a specific provider.
package capability

import (
	"context"
	"sync"

	"github.com/agencyrun/agency/pkg/agency"
)

// RuntimeContext carries the ambient state every capability call may need:
// cancellation, tracing, the working directory/environment for tool
// execution, and an optional scoped terminal handle for shared-PTY tools
// (spec §9 "Scoped terminal acquisition").
type RuntimeContext struct {
	TraceID string
	WorkDir string
	Env     map[string]string

	// cancel is shared by pointer so derived contexts (WithTerminal) and
	// their parent observe one another's cancellation.
	cancel *cancelState

	terminal TerminalHandle
	hasTerm  bool
}

type cancelState struct {
	once sync.Once
	ch   chan struct{}
}

// NewRuntimeContext returns a RuntimeContext ready for one intent
// execution, or one whole DAG run when shared across nodes.
func NewRuntimeContext(traceID, workDir string, env map[string]string) *RuntimeContext {
	return &RuntimeContext{
		TraceID: traceID,
		WorkDir: workDir,
		Env:     env,
		cancel:  &cancelState{ch: make(chan struct{})},
	}
}

// Cancel signals every capability call sharing this context to observe
// cancellation at its next suspension point (spec §5 Cancellation).
func (c *RuntimeContext) Cancel() {
	c.cancel.once.Do(func() { close(c.cancel.ch) })
}

// Done returns a channel closed once Cancel has been called.
func (c *RuntimeContext) Done() <-chan struct{} { return c.cancel.ch }

// Cancelled reports whether Cancel has already been called.
func (c *RuntimeContext) Cancelled() bool {
	select {
	case <-c.cancel.ch:
		return true
	default:
		return false
	}
}

// WithTerminal returns a derived context carrying a scoped terminal handle.
// Acquisition/drop semantics are a no-op at this layer; the capability body
// that implements TerminalHandle owns the PTY's lifecycle (spec §9).
func (c *RuntimeContext) WithTerminal(h TerminalHandle) *RuntimeContext {
	derived := *c
	derived.terminal = h
	derived.hasTerm = true
	return &derived
}

// Terminal returns the scoped terminal handle, if one was attached.
func (c *RuntimeContext) Terminal() (TerminalHandle, bool) { return c.terminal, c.hasTerm }

// TerminalHandle is a borrowed handle onto a shared PTY, used to augment a
// tool's output with "TERMINAL CONTEXT / COMMAND OUTPUT" framing (spec
// §4.3 Tool execution flow, step 3).
type TerminalHandle interface {
	Snapshot(ctx context.Context) (string, error)
}

// LLM completes chat requests. Retrying network/rate-limit failures is the
// runtime's job, not the capability's; a capability simply reports what
// happened.
type LLM interface {
	Complete(ctx context.Context, rc *RuntimeContext, req LLMRequest) (agency.LLMResponse, error)
	CompleteStream(ctx context.Context, rc *RuntimeContext, req LLMRequest) (LLMStream, error)
}

// LLMRequest mirrors the RequestLLM intent's payload.
type LLMRequest struct {
	Context        []agency.Message
	MaxTokens      int
	Temperature    float64
	Model          string
	ResponseFormat string
}

// LLMStream yields incremental completion chunks; Close releases any
// underlying connection.
type LLMStream interface {
	Recv() (agency.LLMResponse, error) // io.EOF-compatible: returns io.EOF when done
	Close() error
}

// Tool executes a CallTool intent's named tool.
type Tool interface {
	Execute(ctx context.Context, rc *RuntimeContext, call agency.CallTool) (agency.ToolResult, error)
}

// Approval requests a grant/deny/timeout decision for a pending tool call.
type Approval interface {
	Request(ctx context.Context, rc *RuntimeContext, req agency.RequestApproval) (agency.ApprovalOutcome, error)
}

// Worker spawns a nested sub-agent session for a SpawnWorker intent.
type Worker interface {
	Spawn(ctx context.Context, rc *RuntimeContext, spec agency.SpawnWorker) (WorkerHandle, error)
}

// WorkerHandle identifies a spawned worker and lets the runtime await its
// eventual completion without holding a back-reference into the worker's
// own session (spec §9: "never form cycles").
type WorkerHandle interface {
	ID() uint64
	Done() <-chan agency.WorkerResult
}

// Telemetry records decisions and results on a side channel that never
// blocks control flow (spec §4.3 table).
type Telemetry interface {
	RecordDecision(ctx context.Context, label string, fields map[string]any)
	RecordResult(ctx context.Context, label string, fields map[string]any)
}

// Memory stores and searches long-term recall entries.
type Memory interface {
	Store(ctx context.Context, content string, metadata map[string]any) error
	Search(ctx context.Context, query string, limit int) ([]MemoryEntry, error)
}

// MemoryEntry is one recalled item.
type MemoryEntry struct {
	Content    string
	Metadata   map[string]any
	Confidence float64
}

// Set bundles every capability the runtime needs. All fields are required
// except Memory, which is optional (spec §4.3 table: "Optional; used for
// long-term recall").
type Set struct {
	LLM       LLM
	Tool      ToolLookup
	Approval  Approval
	Worker    Worker
	Telemetry Telemetry
	Memory    Memory // nil if unused
}

// ToolLookup resolves a tool by name, returning ErrToolNotFound-compatible
// behavior via the second return value (spec §4.3 Tool execution flow,
// step 1).
type ToolLookup interface {
	Lookup(name string) (Tool, bool)
}
