package runtime

import (
	"context"
	"regexp"
	"strings"

	"github.com/agencyrun/agency/internal/capability"
	"github.com/agencyrun/agency/internal/kernel"
	"github.com/agencyrun/agency/pkg/agency"
)

// truncationSentinel marks tool output that was cut short by MaxOutputBytes
// (spec §4.2 Tool execution flow, step 4).
const truncationSentinel = "\n... [output truncated]"

// safetyBlockCode is the ToolResult.Code used when the safety filter
// unconditionally rejects a call (spec §4.3 Tool execution flow, step 4).
// A safety block is a legitimate tool outcome, not a RuntimeError: the
// kernel sees it exactly like any other ToolResult.Error and decides how
// to proceed (spec §7).
const safetyBlockCode = "SAFETY_BLOCK"

// safetyPatterns is the fixed list of byte-pattern predicates spec §4.3
// names as an example: destructive shell idioms no policy configuration
// can override. Matching is substring, case-sensitive, against the
// serialized call arguments.
var safetyPatterns = []string{
	"rm -rf /",
	"rm -rf /*",
	"> /dev/sda",
	"dd if=/dev/zero",
	":(){ :|:& };:",
}

// executeTool runs the CallTool execution flow of spec §4.3: apply the
// unconditional safety filter, re-check the allow/block policy, look the
// tool up, invoke the capability, apply the content filter and truncate,
// prepend the terminal snapshot when one is attached, then record telemetry.
func (r *Runtime) executeTool(ctx context.Context, rc *capability.RuntimeContext, intentID string, call agency.CallTool) (agency.ToolResult, error) {
	if blocked, pattern := matchesSafetyPattern(call.Arguments); blocked {
		if r.Capabilities.Telemetry != nil {
			r.Capabilities.Telemetry.RecordResult(ctx, "call_tool", map[string]any{
				"intentId": intentID, "tool": call.Name, "code": safetyBlockCode, "pattern": pattern,
			})
		}
		return agency.ToolResult{
			Kind:    agency.ToolResultError,
			Message: "blocked by safety filter: matches pattern " + pattern,
			Code:    safetyBlockCode,
		}, nil
	}

	if !kernel.ToolAllowed(r.Policies.Tools, call.Name) {
		return agency.ToolResult{}, newRuntimeError(ErrToolExecutionFailed, "call_tool", intentID,
			errBlocked(call.Name), false)
	}

	if r.Capabilities.Tool == nil {
		return agency.ToolResult{}, newRuntimeError(ErrNotAvailable, "call_tool", intentID, errUnknownTool(call.Name), false)
	}

	tool, ok := r.Capabilities.Tool.Lookup(call.Name)
	if !ok {
		return agency.ToolResult{}, newRuntimeError(ErrToolNotFound, "call_tool", intentID, errUnknownTool(call.Name), false)
	}

	if r.Capabilities.Telemetry != nil {
		r.Capabilities.Telemetry.RecordDecision(ctx, "call_tool", map[string]any{
			"intentId": intentID, "tool": call.Name,
		})
	}

	result, err := tool.Execute(ctx, rc, call)
	if err != nil {
		return agency.ToolResult{}, newRuntimeError(ErrToolExecutionFailed, "call_tool", intentID, err, true)
	}

	result = applyContentFilter(r.Policies.ContentFilter, result)
	result = truncateOutput(r.Policies.Tools.MaxOutputBytes, result)

	if t, ok := rc.Terminal(); ok {
		if snapshot, snapErr := t.Snapshot(ctx); snapErr == nil && snapshot != "" {
			result.Output = "TERMINAL CONTEXT\n" + snapshot + "\nCOMMAND OUTPUT\n" + result.Output
		}
	}

	if r.Capabilities.Telemetry != nil {
		r.Capabilities.Telemetry.RecordResult(ctx, "call_tool", map[string]any{
			"intentId": intentID, "tool": call.Name, "kind": result.Kind,
		})
	}

	return result, nil
}

// matchesSafetyPattern reports whether call's arguments contain any fixed
// safety pattern, regardless of tool allow/block policy configuration.
func matchesSafetyPattern(arguments []byte) (bool, string) {
	s := string(arguments)
	for _, p := range safetyPatterns {
		if strings.Contains(s, p) {
			return true, p
		}
	}
	return false, ""
}

// applyContentFilter redacts output matching any configured pattern (spec
// §3 Configuration, ContentFilterPolicy). Patterns are plain regular
// expressions; an invalid pattern is skipped rather than failing the tool
// call.
func applyContentFilter(policy kernel.ContentFilterPolicy, result agency.ToolResult) agency.ToolResult {
	if !policy.Enabled || len(policy.Patterns) == 0 || result.Output == "" {
		return result
	}
	out := result.Output
	for _, pattern := range policy.Patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		out = re.ReplaceAllString(out, "[redacted]")
	}
	result.Output = out
	return result
}

// truncateOutput caps tool output at maxBytes, appending a sentinel so the
// LLM knows the content was cut rather than naturally short.
func truncateOutput(maxBytes int, result agency.ToolResult) agency.ToolResult {
	if maxBytes <= 0 || len(result.Output) <= maxBytes {
		return result
	}
	result.Output = result.Output[:maxBytes] + truncationSentinel
	return result
}

func errBlocked(name string) error {
	return &toolPolicyError{name: name, reason: "blocked by tool policy"}
}

func errUnknownTool(name string) error {
	return &toolPolicyError{name: name, reason: "no tool registered with this name"}
}

type toolPolicyError struct {
	name   string
	reason string
}

func (e *toolPolicyError) Error() string {
	return strings.Join([]string{"tool", e.name, e.reason}, " ")
}
