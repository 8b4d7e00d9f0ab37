package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencyrun/agency/internal/capability"
	"github.com/agencyrun/agency/internal/capability/mock"
	"github.com/agencyrun/agency/internal/kernel"
	"github.com/agencyrun/agency/internal/runtime"
	"github.com/agencyrun/agency/pkg/agency"
)

func nestedFactory(responses ...string) NestedFactory {
	return func(spec agency.SpawnWorker, depth int) (kernel.Kernel, *runtime.Runtime, *capability.RuntimeContext, error) {
		k, err := kernel.NewLLMKernel(testKernelConfig())
		if err != nil {
			return nil, nil, nil, err
		}
		llmResponses := make([]agency.LLMResponse, len(responses))
		for i, c := range responses {
			llmResponses[i] = agency.LLMResponse{Content: c}
		}
		caps := capability.Set{LLM: mock.NewLLM(llmResponses...), Tool: mock.Registry{}, Telemetry: mock.NewTelemetry()}
		rt := runtime.New(caps, kernel.Policies{}, 1)
		rc := capability.NewRuntimeContext("nested", "/tmp", nil)
		return k, rt, rc, nil
	}
}

func TestWorkerManagerSpawnRunsToCompleteMarker(t *testing.T) {
	wm := NewWorkerManager(kernel.WorkerPolicy{MaxDepth: 2, MaxConcurrentWorkers: 2}, 0,
		nestedFactory(`{"f":"CLAIM: do the thing"}`, `{"f":"COMPLETE: task finished"}`))

	handle, err := wm.Spawn(context.Background(), nil, agency.SpawnWorker{Objective: "do the thing"})
	require.NoError(t, err)

	select {
	case result := <-handle.Done():
		assert.True(t, result.OK)
		assert.Equal(t, "task finished", result.Output)
	case <-time.After(2 * time.Second):
		t.Fatal("worker never completed")
	}
}

func TestWorkerManagerSpawnCompleteWithoutClaimIsProtocolViolation(t *testing.T) {
	wm := NewWorkerManager(kernel.WorkerPolicy{MaxDepth: 2, MaxConcurrentWorkers: 2}, 0,
		nestedFactory(`{"f":"COMPLETE: task finished"}`))

	handle, err := wm.Spawn(context.Background(), nil, agency.SpawnWorker{Objective: "do the thing"})
	require.NoError(t, err)

	select {
	case result := <-handle.Done():
		assert.False(t, result.OK)
		require.NotNil(t, result.Error)
		assert.Equal(t, "protocol_violation", result.Error.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("worker never completed")
	}
}

func TestWorkerManagerSpawnPropagatesFailMarker(t *testing.T) {
	wm := NewWorkerManager(kernel.WorkerPolicy{MaxDepth: 2, MaxConcurrentWorkers: 2}, 0, nestedFactory(`{"f":"FAIL: could not do it"}`))

	handle, err := wm.Spawn(context.Background(), nil, agency.SpawnWorker{Objective: "do the thing"})
	require.NoError(t, err)

	select {
	case result := <-handle.Done():
		assert.False(t, result.OK)
		require.NotNil(t, result.Error)
		assert.Equal(t, "could not do it", result.Error.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("worker never completed")
	}
}

func TestWorkerManagerRejectsBeyondMaxDepth(t *testing.T) {
	wm := NewWorkerManager(kernel.WorkerPolicy{MaxDepth: 1, MaxConcurrentWorkers: 2}, 1, nestedFactory(`{"f":"COMPLETE: x"}`))

	_, err := wm.Spawn(context.Background(), nil, agency.SpawnWorker{Objective: "go deeper"})
	assert.Error(t, err)
}

func TestWorkerManagerRejectsBeyondMaxConcurrent(t *testing.T) {
	wm := NewWorkerManager(kernel.WorkerPolicy{MaxDepth: 2, MaxConcurrentWorkers: 1}, 0, nestedFactory(`{"f":"COMPLETE: x"}`))
	wm.active = 1 // simulate one already running

	_, err := wm.Spawn(context.Background(), nil, agency.SpawnWorker{Objective: "too many"})
	assert.Error(t, err)
}

func TestWorkerManagerSpawnWiresFactoryError(t *testing.T) {
	boom := func(spec agency.SpawnWorker, depth int) (kernel.Kernel, *runtime.Runtime, *capability.RuntimeContext, error) {
		return nil, nil, nil, assert.AnError
	}
	wm := NewWorkerManager(kernel.WorkerPolicy{MaxDepth: 2, MaxConcurrentWorkers: 2}, 0, boom)

	handle, err := wm.Spawn(context.Background(), nil, agency.SpawnWorker{Objective: "x"})
	require.NoError(t, err)

	select {
	case result := <-handle.Done():
		assert.False(t, result.OK)
		require.NotNil(t, result.Error)
	case <-time.After(time.Second):
		t.Fatal("worker never resolved after factory error")
	}
}
