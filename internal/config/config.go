// Package config loads the combined kernel/runtime/orchestrator
// configuration from a TOML file (spec §6 Configuration: "configuration is
// expressed as TOML").
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/agencyrun/agency/internal/kernel"
)

// RuntimeSection configures the Agency Runtime (spec §4.2, §4.3 "Runtime-level
// policies"). MaxConcurrent bounds how many DAG nodes the executor dispatches
// at once for a single IntentGraph; MaxConcurrentTools/MaxConcurrentLLM are
// separate, Runtime-wide semaphores per capability class (spec §4.3 table,
// §8 property 8), shared across every graph the Runtime executes including
// nested worker sessions that reuse the same capability set.
type RuntimeSection struct {
	MaxConcurrent      int           `toml:"max_concurrent"`
	MaxConcurrentTools int           `toml:"max_concurrent_tools"`
	MaxConcurrentLLM   int           `toml:"max_concurrent_llm"`
	DefaultToolTimeout time.Duration `toml:"default_tool_timeout"`
	DefaultLLMTimeout  time.Duration `toml:"default_llm_timeout"`
}

// OrchestratorSection configures the Session Orchestrator (spec §4.4).
type OrchestratorSection struct {
	AutosaveDebounce  time.Duration `toml:"autosave_debounce"`
	Incognito         bool          `toml:"incognito"`
	StorageDir        string        `toml:"storage_dir"`
	IntrospectionAddr string        `toml:"introspection_addr"` // empty disables the read-only HTTP server
}

// File is the on-disk shape of agency.toml.
type File struct {
	Kernel       kernel.Config       `toml:"kernel"`
	Runtime      RuntimeSection      `toml:"runtime"`
	Orchestrator OrchestratorSection `toml:"orchestrator"`
}

// Default returns a File populated with the same defaults as
// kernel.DefaultConfig, plus sensible runtime/orchestrator defaults.
func Default() File {
	return File{
		Kernel: kernel.DefaultConfig(),
		Runtime: RuntimeSection{
			MaxConcurrent:      4,
			MaxConcurrentTools: 4,
			MaxConcurrentLLM:   2,
			DefaultToolTimeout: 30 * time.Second,
			DefaultLLMTimeout:  60 * time.Second,
		},
		Orchestrator: OrchestratorSection{
			AutosaveDebounce: 500 * time.Millisecond,
			StorageDir:       "",
		},
	}
}

// Load reads and parses a TOML config file at path, merging onto Default()
// so an incomplete file still yields a usable config.
func Load(path string) (File, error) {
	f := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := f.Kernel.Validate(); err != nil {
		return f, fmt.Errorf("config: invalid kernel section: %w", err)
	}
	if f.Runtime.MaxConcurrent <= 0 {
		f.Runtime.MaxConcurrent = 1
	}
	if f.Runtime.MaxConcurrentTools <= 0 {
		f.Runtime.MaxConcurrentTools = 1
	}
	if f.Runtime.MaxConcurrentLLM <= 0 {
		f.Runtime.MaxConcurrentLLM = 1
	}
	return f, nil
}

// Save writes f to path as TOML, creating parent directories as needed.
func Save(path string, f File) error {
	data, err := toml.Marshal(f)
	if err != nil {
		return fmt.Errorf("config: marshaling: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}
