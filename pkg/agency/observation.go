package agency

import "github.com/agencyrun/agency/pkg/ids"

// ObservationKind discriminates the tagged Observation variants of spec §3.
// The set mirrors Event plus the runtime-only WorkerSpawned/Halted/Timeout/
// Cancelled variants.
type ObservationKind string

const (
	ObsToolCompleted      ObservationKind = "tool_completed"
	ObsLLMCompleted       ObservationKind = "llm_completed"
	ObsApprovalCompleted  ObservationKind = "approval_completed"
	ObsWorkerSpawned      ObservationKind = "worker_spawned"
	ObsWorkerCompleted    ObservationKind = "worker_completed"
	ObsResponseEmitted    ObservationKind = "response_emitted"
	ObsHalted             ObservationKind = "halted"
	ObsRuntimeError       ObservationKind = "runtime_error"
	ObsTimeout            ObservationKind = "timeout"
	ObsCancelled          ObservationKind = "cancelled"
)

// Observation is the runtime's output: the result of executing one Intent.
// Every Observation carries the IntentID it satisfies and can be converted
// back into a kernel-facing Event.
type Observation interface {
	Kind() ObservationKind
	SatisfiesIntent() ids.IntentID
	IntoEvent() Event
}

// ToolCompletedObs mirrors the ToolCompleted event.
type ToolCompletedObs struct {
	IntentID ids.IntentID
	Tool     string
	Result   ToolResult
}

func (o ToolCompletedObs) Kind() ObservationKind        { return ObsToolCompleted }
func (o ToolCompletedObs) SatisfiesIntent() ids.IntentID { return o.IntentID }
func (o ToolCompletedObs) IntoEvent() Event {
	return ToolCompleted{IntentID: o.IntentID, Tool: o.Tool, Result: o.Result}
}

// LLMCompletedObs mirrors the LLMCompleted event.
type LLMCompletedObs struct {
	IntentID ids.IntentID
	Response LLMResponse
}

func (o LLMCompletedObs) Kind() ObservationKind        { return ObsLLMCompleted }
func (o LLMCompletedObs) SatisfiesIntent() ids.IntentID { return o.IntentID }
func (o LLMCompletedObs) IntoEvent() Event {
	return LLMCompleted{IntentID: o.IntentID, Response: o.Response}
}

// ApprovalCompletedObs reports an approval request's resolution.
type ApprovalCompletedObs struct {
	IntentID ids.IntentID
	Outcome  ApprovalOutcome
}

func (o ApprovalCompletedObs) Kind() ObservationKind        { return ObsApprovalCompleted }
func (o ApprovalCompletedObs) SatisfiesIntent() ids.IntentID { return o.IntentID }
func (o ApprovalCompletedObs) IntoEvent() Event {
	return ApprovalGiven{IntentID: o.IntentID, Outcome: o.Outcome}
}

// WorkerSpawnedObs reports that a SpawnWorker intent produced a running
// worker. This is telemetry-only; the kernel only cares about the eventual
// WorkerCompletedObs/WorkerFailed.
type WorkerSpawnedObs struct {
	IntentID ids.IntentID
	WorkerID ids.WorkerID
}

func (o WorkerSpawnedObs) Kind() ObservationKind        { return ObsWorkerSpawned }
func (o WorkerSpawnedObs) SatisfiesIntent() ids.IntentID { return o.IntentID }
func (o WorkerSpawnedObs) IntoEvent() Event {
	return SessionEvent{Name: "worker_spawned", Data: map[string]any{"workerId": o.WorkerID}}
}

// WorkerCompletedObs reports that a spawned worker's session halted.
type WorkerCompletedObs struct {
	IntentID ids.IntentID
	WorkerID ids.WorkerID
	Result   WorkerResult
}

func (o WorkerCompletedObs) Kind() ObservationKind        { return ObsWorkerCompleted }
func (o WorkerCompletedObs) SatisfiesIntent() ids.IntentID { return o.IntentID }
func (o WorkerCompletedObs) IntoEvent() Event {
	return WorkerCompleted{WorkerID: o.WorkerID, Result: o.Result}
}

// ResponseEmittedObs reports that an EmitResponse intent was delivered.
type ResponseEmittedObs struct {
	IntentID ids.IntentID
	Text     string
}

func (o ResponseEmittedObs) Kind() ObservationKind        { return ObsResponseEmitted }
func (o ResponseEmittedObs) SatisfiesIntent() ids.IntentID { return o.IntentID }
func (o ResponseEmittedObs) IntoEvent() Event {
	return SessionEvent{Name: "response_emitted", Data: map[string]any{"text": o.Text}}
}

// HaltedObs reports that a Halt intent executed.
type HaltedObs struct {
	IntentID ids.IntentID
	Reason   ExitReason
}

func (o HaltedObs) Kind() ObservationKind        { return ObsHalted }
func (o HaltedObs) SatisfiesIntent() ids.IntentID { return o.IntentID }
func (o HaltedObs) IntoEvent() Event {
	return SessionEvent{Name: "halted", Data: map[string]any{"reason": o.Reason.Kind, "message": o.Reason.Message}}
}

// RuntimeErrorObs reports a capability failure that exhausted retries or was
// non-retryable.
type RuntimeErrorObs struct {
	IntentID ids.IntentID
	Error    string
}

func (o RuntimeErrorObs) Kind() ObservationKind        { return ObsRuntimeError }
func (o RuntimeErrorObs) SatisfiesIntent() ids.IntentID { return o.IntentID }
func (o RuntimeErrorObs) IntoEvent() Event {
	return RuntimeErrorEvent{IntentID: o.IntentID, Error: o.Error}
}

// TimeoutObs reports that an intent's own timeout fired.
type TimeoutObs struct {
	IntentID    ids.IntentID
	TimeoutSecs float64
}

func (o TimeoutObs) Kind() ObservationKind        { return ObsTimeout }
func (o TimeoutObs) SatisfiesIntent() ids.IntentID { return o.IntentID }
func (o TimeoutObs) IntoEvent() Event {
	return RuntimeErrorEvent{IntentID: o.IntentID, Error: "timeout"}
}

// CancelledObs reports that an intent was cancelled before or during
// execution.
type CancelledObs struct {
	IntentID ids.IntentID
}

func (o CancelledObs) Kind() ObservationKind        { return ObsCancelled }
func (o CancelledObs) SatisfiesIntent() ids.IntentID { return o.IntentID }
func (o CancelledObs) IntoEvent() Event {
	return RuntimeErrorEvent{IntentID: o.IntentID, Error: "cancelled"}
}
