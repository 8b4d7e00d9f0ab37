package kernel

import "time"

// ApprovalPolicy controls when a CallTool intent must be preceded by a
// RequestApproval intent (spec §3 Configuration, Policies).
type ApprovalPolicy struct {
	// RequireForDestructive gates any tool tagged destructive in its schema.
	RequireForDestructive bool `toml:"require_for_destructive"`
	// RequireForNetwork gates any tool tagged network-capable.
	RequireForNetwork bool `toml:"require_for_network"`
	// ToolAllowlist requires approval for any tool whose name matches one of
	// these doublestar glob patterns (e.g. "fs.write*"); the destructive,
	// network and cost checks still apply to tools that do not match.
	ToolAllowlist []string `toml:"tool_allowlist"`
	// CostThreshold requires approval once a tool's declared cost estimate
	// exceeds this value; zero disables the check.
	CostThreshold float64 `toml:"cost_threshold"`
}

// ToolPolicy bounds which tools may run and how.
type ToolPolicy struct {
	Allow            []string      `toml:"allow"`
	Block            []string      `toml:"block"`
	MaxExecutionTime time.Duration `toml:"max_execution_time"`
	MaxOutputBytes   int           `toml:"max_output_bytes"`
}

// WorkerPolicy bounds nested worker sessions.
type WorkerPolicy struct {
	MaxDepth             int `toml:"max_depth"`
	MaxConcurrentWorkers int `toml:"max_concurrent_workers"`
}

// RetryConfig bounds the runtime's exponential backoff for retryable
// capability failures (spec §3 Configuration: "Retry config"). The delay
// formula is delay = min(base_delay_ms * 2^attempt, max_delay_ms).
// RetryableErrors, when non-empty, restricts which runtime error kinds are
// retried at all (values match the runtime's error-kind strings, e.g.
// "network", "rate_limited", "timeout", "not_available"); empty means any
// failure the capability reported as retryable.
type RetryConfig struct {
	MaxAttempts     int      `toml:"max_attempts"`
	BaseDelayMs     int64    `toml:"base_delay_ms"`
	MaxDelayMs      int64    `toml:"max_delay_ms"`
	RetryableErrors []string `toml:"retryable_errors"`
}

// ContentFilterPolicy is a placeholder for content-safety screening; the
// concrete filter body is an external collaborator (spec §1), but the
// config surface for enabling/disabling it lives in the kernel.
type ContentFilterPolicy struct {
	Enabled  bool     `toml:"enabled"`
	Patterns []string `toml:"patterns"`
}

// Policies bundles every policy surface spec §3 names.
type Policies struct {
	Approval      ApprovalPolicy      `toml:"approval"`
	Tools         ToolPolicy          `toml:"tools"`
	Workers       WorkerPolicy        `toml:"workers"`
	Retry         RetryConfig         `toml:"retry"`
	ContentFilter ContentFilterPolicy `toml:"content_filter"`
}

// ToolSchema describes a tool the kernel may reference in a CallTool
// intent; concrete execution lives in the runtime's Tool capability.
type ToolSchema struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Destructive bool   `toml:"destructive"`
	Network     bool   `toml:"network"`
	CostEstimate float64 `toml:"cost_estimate"`
}

// PromptConfig holds the system-prompt assembly knobs the kernel consults
// when building a RequestLLM intent's context. Template rendering itself is
// an external concern (spec §1); this is pure data.
type PromptConfig struct {
	SystemPrompt        string  `toml:"system_prompt"`
	CondenseThreshold    float64 `toml:"condense_threshold"`
	MaxContextTokens     int     `toml:"max_context_tokens"`
}

// Features toggles optional kernel behaviors.
type Features struct {
	MemoryCapture     bool `toml:"memory_capture"`
	ConfirmGatedTools bool `toml:"confirm_gated_tools"`
	RecoveryLLMCall   bool `toml:"recovery_llm_call"`
}

// Config is the kernel's pure-data configuration (spec §3 Configuration).
// It contains no executors: capabilities are injected into the runtime,
// never into the kernel.
type Config struct {
	MaxSteps             int          `toml:"max_steps"`
	MaxWorkerDepth       int          `toml:"max_worker_depth"`
	MaxConcurrentWorkers int          `toml:"max_concurrent_workers"`
	ToolSchemas          []ToolSchema `toml:"tool_schemas"`
	Policies             Policies     `toml:"policies"`
	WorkerLimits         WorkerPolicy `toml:"worker_limits"`
	Prompt               PromptConfig `toml:"prompt"`
	Features             Features     `toml:"features"`
	// Seed is the only source of randomness the kernel may use (spec
	// §4.1 Purity guarantees: no randomness except from a config seed).
	Seed int64 `toml:"seed"`
}

// Validate rejects configurations that would make the kernel unable to
// maintain its invariants.
func (c Config) Validate() error {
	if c.MaxSteps <= 0 {
		return newError(ErrInvalidConfig, "max_steps must be positive, got %d", c.MaxSteps)
	}
	if c.MaxWorkerDepth < 0 {
		return newError(ErrInvalidConfig, "max_worker_depth must be non-negative")
	}
	if c.MaxConcurrentWorkers < 0 {
		return newError(ErrInvalidConfig, "max_concurrent_workers must be non-negative")
	}
	if c.Prompt.CondenseThreshold < 0 || c.Prompt.CondenseThreshold > 1 {
		return newError(ErrInvalidConfig, "condense_threshold must be in [0,1], got %f", c.Prompt.CondenseThreshold)
	}
	return nil
}

// DefaultConfig returns sane defaults mirroring the teacher's MaxSteps=50
// agentic-loop default.
func DefaultConfig() Config {
	return Config{
		MaxSteps:             50,
		MaxWorkerDepth:       3,
		MaxConcurrentWorkers: 4,
		WorkerLimits:         WorkerPolicy{MaxDepth: 3, MaxConcurrentWorkers: 4},
		Policies: Policies{
			Retry: RetryConfig{MaxAttempts: 3, BaseDelayMs: 200, MaxDelayMs: 10_000},
		},
		Prompt: PromptConfig{
			CondenseThreshold: 0.75,
			MaxContextTokens:  150000,
		},
		Features: Features{
			MemoryCapture:     true,
			ConfirmGatedTools: true,
			RecoveryLLMCall:   true,
		},
	}
}
