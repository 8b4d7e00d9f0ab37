package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agencyrun/agency/internal/capability"
	"github.com/agencyrun/agency/pkg/agency"
	"github.com/agencyrun/agency/pkg/ids"
	"github.com/cenkalti/backoff/v4"
)

// acquire blocks until sem has a free slot or ctx is cancelled, implementing
// the per-capability-class semaphore of spec §4.3 ("Runtime-level
// policies").
func acquire(ctx context.Context, sem chan struct{}) error {
	select {
	case sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func release(sem chan struct{}) { <-sem }

// effectiveTimeout returns node.Timeout when the kernel set one explicitly,
// otherwise the Runtime-level default for its intent's capability class
// (spec §4.3 default_tool_timeout/default_llm_timeout); intents with no
// notion of a wall-clock timeout (approvals, worker spawns, responses, halt)
// get none.
func (r *Runtime) effectiveTimeout(node agency.IntentNode) time.Duration {
	if node.Timeout > 0 {
		return node.Timeout
	}
	switch node.Intent.(type) {
	case agency.CallTool:
		return r.DefaultToolTimeout
	case agency.RequestLLM:
		return r.DefaultLLMTimeout
	default:
		return 0
	}
}

// executeNode dispatches node.Intent to the matching capability and
// converts the outcome into an Observation, applying per-node timeout,
// cancellation and retry according to spec §4.2.
func (r *Runtime) executeNode(ctx context.Context, rc *capability.RuntimeContext, node agency.IntentNode) (agency.Observation, error) {
	if rc.Cancelled() || ctx.Err() != nil {
		return agency.CancelledObs{IntentID: node.ID}, nil
	}

	timeout := r.effectiveTimeout(node)

	nodeCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		nodeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	obs, err := r.dispatch(nodeCtx, rc, node)
	if errors.Is(nodeCtx.Err(), context.DeadlineExceeded) {
		return agency.TimeoutObs{IntentID: node.ID, TimeoutSecs: timeout.Seconds()}, nil
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return agency.CancelledObs{IntentID: node.ID}, nil
	}
	if err != nil {
		return agency.RuntimeErrorObs{IntentID: node.ID, Error: err.Error()}, err
	}
	return obs, nil
}

// dispatch performs the single attempt (or retried attempts, for
// CallTool/RequestLLM) against the capability matching node.Intent's
// concrete type.
func (r *Runtime) dispatch(ctx context.Context, rc *capability.RuntimeContext, node agency.IntentNode) (agency.Observation, error) {
	idStr := node.ID.String()

	switch intent := node.Intent.(type) {
	case agency.CallTool:
		if err := acquire(ctx, r.toolSem); err != nil {
			return agency.CancelledObs{IntentID: node.ID}, nil
		}
		defer release(r.toolSem)

		var result agency.ToolResult
		op := func() error {
			res, err := r.executeTool(ctx, rc, idStr, intent)
			if err != nil {
				if !r.retryableFailure(node.Retryable, err) {
					return backoff.Permanent(err)
				}
				return err
			}
			result = res
			return nil
		}
		if err := backoff.Retry(op, r.newRetryBackoff(ctx, node.MaxRetries)); err != nil {
			return nil, err
		}
		return agency.ToolCompletedObs{IntentID: node.ID, Tool: intent.Name, Result: result}, nil

	case agency.RequestLLM:
		if err := acquire(ctx, r.llmSem); err != nil {
			return agency.CancelledObs{IntentID: node.ID}, nil
		}
		defer release(r.llmSem)

		var resp agency.LLMResponse
		op := func() error {
			res, err := r.Capabilities.LLM.Complete(ctx, rc, capability.LLMRequest{
				Context:        intent.Context,
				MaxTokens:      intent.MaxTokens,
				Temperature:    intent.Temperature,
				Model:          intent.Model,
				ResponseFormat: intent.ResponseFormat,
			})
			if err != nil {
				if !r.retryableFailure(node.Retryable, err) {
					return backoff.Permanent(err)
				}
				return err
			}
			resp = res
			return nil
		}
		if err := backoff.Retry(op, r.newRetryBackoff(ctx, node.MaxRetries)); err != nil {
			return nil, newRuntimeError(ErrLLMRequestFailed, "request_llm", idStr, err, false)
		}
		if r.Capabilities.Telemetry != nil {
			r.Capabilities.Telemetry.RecordResult(ctx, "request_llm", map[string]any{
				"intentId": idStr, "model": resp.Model, "tokens": resp.Usage.Total(),
			})
		}
		return agency.LLMCompletedObs{IntentID: node.ID, Response: resp}, nil

	case agency.RequestApproval:
		outcome, err := r.Capabilities.Approval.Request(ctx, rc, intent)
		if err != nil {
			return nil, newRuntimeError(ErrInternal, "request_approval", idStr, err, false)
		}
		return agency.ApprovalCompletedObs{IntentID: node.ID, Outcome: outcome}, nil

	case agency.SpawnWorker:
		handle, err := r.Capabilities.Worker.Spawn(ctx, rc, intent)
		if err != nil {
			return nil, newRuntimeError(ErrInternal, "spawn_worker", idStr, err, false)
		}
		if r.Capabilities.Telemetry != nil {
			r.Capabilities.Telemetry.RecordDecision(ctx, "worker_spawned", map[string]any{
				"intentId": idStr, "workerId": handle.ID(),
			})
		}
		select {
		case result := <-handle.Done():
			return agency.WorkerCompletedObs{IntentID: node.ID, WorkerID: ids.WorkerID(handle.ID()), Result: result}, nil
		case <-ctx.Done():
			return agency.CancelledObs{IntentID: node.ID}, nil
		}

	case agency.EmitResponse:
		if r.Capabilities.Telemetry != nil {
			r.Capabilities.Telemetry.RecordResult(ctx, "emit_response", map[string]any{"intentId": idStr})
		}
		return agency.ResponseEmittedObs{IntentID: node.ID, Text: intent.Text}, nil

	case agency.Halt:
		return agency.HaltedObs{IntentID: node.ID, Reason: intent.Reason}, nil

	default:
		return nil, newRuntimeError(ErrInternal, "dispatch", idStr, fmt.Errorf("unknown intent kind %T", node.Intent), false)
	}
}
