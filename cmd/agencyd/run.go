package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agencyrun/agency/internal/capability"
	"github.com/agencyrun/agency/internal/capability/mock"
	"github.com/agencyrun/agency/internal/config"
	"github.com/agencyrun/agency/internal/kernel"
	"github.com/agencyrun/agency/internal/orchestrator"
	"github.com/agencyrun/agency/internal/runtime"
	"github.com/agencyrun/agency/internal/storage"
	"github.com/agencyrun/agency/internal/telemetry"
	"github.com/agencyrun/agency/internal/transport"
	"github.com/agencyrun/agency/pkg/agency"
	"github.com/agencyrun/agency/pkg/ids"
)

// buildRunCmd wires a session end to end against mock capabilities: this
// module ships no concrete LLM/tool/approval providers (those are explicit
// out-of-scope collaborators), so `run` is a demonstration harness proving
// the kernel/runtime/orchestrator wiring rather than a production entrypoint.
func buildRunCmd() *cobra.Command {
	var configPath string
	var message string
	var storageDir string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive one chat turn against mock capabilities and print the transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, configPath, message, storageDir, timeout)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to agency.toml (defaults built in if omitted)")
	cmd.Flags().StringVarP(&message, "message", "m", "hello", "user message to send")
	cmd.Flags().StringVar(&storageDir, "storage-dir", "", "session snapshot directory (if empty, no snapshots are saved)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "run deadline")
	return cmd
}

func runOnce(cmd *cobra.Command, configPath, message, storageDir string, timeout time.Duration) error {
	out := cmd.OutOrStdout()

	cfgFile := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfgFile = loaded
	}

	k, err := kernel.NewLLMKernel(cfgFile.Kernel)
	if err != nil {
		return fmt.Errorf("kernel init: %w", err)
	}

	bus := telemetry.NewBus(64)
	defer bus.Close()

	caps := capability.Set{
		LLM: mock.NewLLM(
			agency.LLMResponse{Content: `{"t":"greet the user","f":"hello! how can I help?"}`, FinishReason: "stop"},
		),
		Tool:      mock.Registry{},
		Approval:  mock.NewApproval(agency.ApprovalGranted),
		Worker:    mock.NewWorker(agency.WorkerResult{OK: true, Output: "done"}),
		Telemetry: bus,
		Memory:    mock.NewMemory(),
	}

	rt := runtime.NewWithLimits(caps, cfgFile.Kernel.Policies,
		cfgFile.Runtime.MaxConcurrent, cfgFile.Runtime.MaxConcurrentTools, cfgFile.Runtime.MaxConcurrentLLM).
		WithDefaultTimeouts(cfgFile.Runtime.DefaultToolTimeout, cfgFile.Runtime.DefaultLLMTimeout)

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	rc := capability.NewRuntimeContext(string(ids.NewSessionID()), ".", nil)

	fifo := transport.New(16)
	sessionID := ids.NewSessionID()

	opts := orchestrator.Options{
		SessionID: sessionID,
		Kernel:    k,
		Runtime:   rt,
		Transport: fifo,
		RC:        rc,
	}

	if storageDir != "" {
		store, err := storage.New(storageDir)
		if err != nil {
			return fmt.Errorf("storage init: %w", err)
		}
		opts.Store = store
		opts.Autosave = storage.NewAutosaver(store, cfgFile.Orchestrator.AutosaveDebounce, false)
	}

	orc := orchestrator.New(opts)

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- orc.Run(ctx) }()

	if err := orc.Publish(ctx, "cli", 1, agency.UserMessage{Content: message}); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	for {
		select {
		case text := <-orc.Responses:
			fmt.Fprintf(out, "agent: %s\n", text)
			// One turn demonstrated; wind the session down.
			fifo.Close()
		case err := <-runErrCh:
			return err
		case <-ctx.Done():
			fmt.Fprintln(out, "run: deadline reached")
			return nil
		}
	}
}
