package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencyrun/agency/internal/capability"
	"github.com/agencyrun/agency/internal/kernel"
	"github.com/agencyrun/agency/pkg/agency"
)

func TestApplyContentFilterRedactsPatterns(t *testing.T) {
	policy := kernel.ContentFilterPolicy{Enabled: true, Patterns: []string{`\d{3}-\d{2}-\d{4}`}}
	result := agency.ToolResult{Output: "ssn is 123-45-6789 ok"}
	filtered := applyContentFilter(policy, result)
	assert.Equal(t, "ssn is [redacted] ok", filtered.Output)
}

func TestApplyContentFilterDisabledIsNoop(t *testing.T) {
	result := agency.ToolResult{Output: "123-45-6789"}
	filtered := applyContentFilter(kernel.ContentFilterPolicy{Enabled: false}, result)
	assert.Equal(t, result.Output, filtered.Output)
}

func TestApplyContentFilterSkipsInvalidPattern(t *testing.T) {
	policy := kernel.ContentFilterPolicy{Enabled: true, Patterns: []string{"("}}
	result := agency.ToolResult{Output: "unchanged"}
	filtered := applyContentFilter(policy, result)
	assert.Equal(t, "unchanged", filtered.Output)
}

func TestTruncateOutputAppendsSentinel(t *testing.T) {
	result := agency.ToolResult{Output: "0123456789"}
	truncated := truncateOutput(4, result)
	assert.Equal(t, "0123"+truncationSentinel, truncated.Output)
}

func TestTruncateOutputUnderLimitUnchanged(t *testing.T) {
	result := agency.ToolResult{Output: "short"}
	truncated := truncateOutput(100, result)
	assert.Equal(t, "short", truncated.Output)
}

func TestTruncateOutputZeroMaxBytesDisables(t *testing.T) {
	result := agency.ToolResult{Output: "anything"}
	truncated := truncateOutput(0, result)
	assert.Equal(t, "anything", truncated.Output)
}

func TestExecuteToolBlocksFixedSafetyPatternsRegardlessOfPolicy(t *testing.T) {
	caps := capability.Set{}
	r := &Runtime{Capabilities: caps, Policies: kernel.Policies{Tools: kernel.ToolPolicy{}}}

	rc := capability.NewRuntimeContext("t", "/tmp", nil)
	result, err := r.executeTool(context.Background(), rc, "1.0", agency.CallTool{
		Name:      "shell.run",
		Arguments: []byte(`{"cmd":"rm -rf /"}`),
	})
	require.NoError(t, err, "a safety block is a ToolResult outcome, not a RuntimeError")
	assert.Equal(t, agency.ToolResultError, result.Kind)
	assert.Equal(t, "SAFETY_BLOCK", result.Code)
}

func TestMatchesSafetyPatternAllowsOrdinaryArguments(t *testing.T) {
	blocked, pattern := matchesSafetyPattern([]byte(`{"cmd":"ls -la"}`))
	assert.False(t, blocked)
	assert.Empty(t, pattern)
}

type staticTerminal struct{ snapshot string }

func (s staticTerminal) Snapshot(ctx context.Context) (string, error) { return s.snapshot, nil }

func TestExecuteToolWithTerminalFailsLookupForUnregisteredTool(t *testing.T) {
	caps := capability.Set{}
	r := &Runtime{Capabilities: caps}

	rc := capability.NewRuntimeContext("t", "/tmp", nil).WithTerminal(staticTerminal{snapshot: "prompt$ ls"})

	result, err := r.executeTool(context.Background(), rc, "1.0", agency.CallTool{Name: "noop"})
	require.Error(t, err, "no tool is registered, so lookup must fail before the terminal framing runs")
	assert.Empty(t, result.Output)
}

func TestErrBlockedAndUnknownToolMessages(t *testing.T) {
	require.Error(t, errBlocked("fs.delete"))
	require.Error(t, errUnknownTool("ghost"))
	assert.Contains(t, errBlocked("fs.delete").Error(), "blocked")
	assert.Contains(t, errUnknownTool("ghost").Error(), "no tool registered")
}
