package agency

import (
	"encoding/json"
	"time"

	"github.com/agencyrun/agency/pkg/ids"
)

// IntentKind discriminates the tagged Intent variants of spec §3.
type IntentKind string

const (
	IntentCallTool         IntentKind = "call_tool"
	IntentRequestLLM       IntentKind = "request_llm"
	IntentRequestApproval  IntentKind = "request_approval"
	IntentSpawnWorker      IntentKind = "spawn_worker"
	IntentEmitResponse     IntentKind = "emit_response"
	IntentHalt             IntentKind = "halt"
)

// Intent is the only thing the kernel is allowed to produce: a declaration
// of what should happen next. Concrete variants implement this interface
// purely for a stable discriminator; the runtime type-switches on the
// concrete type to dispatch to a capability.
type Intent interface {
	Kind() IntentKind
}

// CallTool asks the runtime to invoke a named tool capability.
type CallTool struct {
	Name       string          `json:"name"`
	Arguments  json.RawMessage `json:"arguments"`
	WorkingDir string          `json:"workingDir,omitempty"`
	Timeout    time.Duration   `json:"timeout,omitempty"`
}

func (CallTool) Kind() IntentKind { return IntentCallTool }

// RequestLLM asks the runtime to complete a chat request against the LLM
// capability.
type RequestLLM struct {
	Context        []Message `json:"context"`
	MaxTokens      int       `json:"maxTokens,omitempty"`
	Temperature    float64   `json:"temperature,omitempty"`
	Model          string    `json:"model,omitempty"`
	ResponseFormat string    `json:"responseFormat,omitempty"`
	Stream         bool      `json:"stream"`
}

func (RequestLLM) Kind() IntentKind { return IntentRequestLLM }

// RequestApproval asks the runtime to request user/policy approval before a
// dependent tool intent may run.
type RequestApproval struct {
	Tool   string          `json:"tool"`
	Args   json.RawMessage `json:"args"`
	Reason string          `json:"reason"`
}

func (RequestApproval) Kind() IntentKind { return IntentRequestApproval }

// SpawnWorker asks the runtime to materialize a nested sub-agent session.
type SpawnWorker struct {
	Objective     string    `json:"objective"`
	Context       []Message `json:"context"`
	MaxIterations int       `json:"maxIterations,omitempty"`
	CanDelegate   bool      `json:"canDelegate"`
	AllowedTools  []string  `json:"allowedTools,omitempty"`
	Model         string    `json:"model,omitempty"`
}

func (SpawnWorker) Kind() IntentKind { return IntentSpawnWorker }

// EmitResponse is user-visible output text.
type EmitResponse struct {
	Text string `json:"text"`
}

func (EmitResponse) Kind() IntentKind { return IntentEmitResponse }

// ExitReasonKind discriminates why a session halted.
type ExitReasonKind string

const (
	ExitCompleted   ExitReasonKind = "completed"
	ExitUserRequest ExitReasonKind = "user_request"
	ExitStepLimit   ExitReasonKind = "step_limit"
	ExitError       ExitReasonKind = "error"
	ExitInterrupted ExitReasonKind = "interrupted"
)

// ExitReason is the payload of a Halt intent/observation.
type ExitReason struct {
	Kind    ExitReasonKind `json:"kind"`
	Message string         `json:"message,omitempty"`
}

// Halt signals the end of the session.
type Halt struct {
	Reason ExitReason `json:"reason"`
}

func (Halt) Kind() IntentKind { return IntentHalt }

// Priority orders intent execution within the DAG executor's ready set
// (spec §4.2.c): Critical < High < Normal < Background.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityBackground
)

// IntentNode wraps an Intent with DAG-scheduling metadata.
type IntentNode struct {
	ID           ids.IntentID    `json:"id"`
	Intent       Intent          `json:"-"`
	Dependencies []ids.IntentID  `json:"dependencies,omitempty"`
	Priority     Priority        `json:"priority"`
	Timeout      time.Duration   `json:"timeout,omitempty"`
	Retryable    bool            `json:"retryable"`
	MaxRetries   int             `json:"maxRetries"`
}
