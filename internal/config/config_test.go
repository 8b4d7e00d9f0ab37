package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	f := Default()
	require.NoError(t, f.Kernel.Validate())
	assert.Equal(t, 4, f.Runtime.MaxConcurrent)
	assert.Equal(t, 4, f.Runtime.MaxConcurrentTools)
	assert.Equal(t, 2, f.Runtime.MaxConcurrentLLM)
	assert.Equal(t, 500*time.Millisecond, f.Orchestrator.AutosaveDebounce)
}

func TestLoadZeroPerClassConcurrencyFallsBackToOne(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agency.toml")
	contents := `
[runtime]
max_concurrent_tools = 0
max_concurrent_llm = 0
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Runtime.MaxConcurrentTools)
	assert.Equal(t, 1, f.Runtime.MaxConcurrentLLM)
}

func TestLoadMergesPartialFileOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agency.toml")
	contents := `
[runtime]
max_concurrent = 8
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, f.Runtime.MaxConcurrent)
	assert.Equal(t, Default().Kernel.MaxSteps, f.Kernel.MaxSteps, "unset sections must fall back to defaults")
}

func TestLoadRejectsInvalidKernelSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agency.toml")
	contents := `
[kernel]
max_steps = 0
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadZeroMaxConcurrentFallsBackToOne(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agency.toml")
	contents := `
[runtime]
max_concurrent = 0
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Runtime.MaxConcurrent)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agency.toml")
	orig := Default()
	orig.Runtime.MaxConcurrent = 6
	orig.Orchestrator.StorageDir = "/var/lib/agency"

	require.NoError(t, Save(path, orig))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, loaded.Runtime.MaxConcurrent)
	assert.Equal(t, "/var/lib/agency", loaded.Orchestrator.StorageDir)
}
