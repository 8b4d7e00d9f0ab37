package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agencyrun/agency/internal/config"
	"github.com/agencyrun/agency/internal/kernel"
	"github.com/agencyrun/agency/internal/storage"
	"github.com/agencyrun/agency/pkg/agency"
)

// buildReplayCmd feeds a persisted session's history back through a fresh
// kernel initialized with the same config, checking the determinism
// property of spec §8.1 by comparing the replayed state's Halted flag and
// History length with the snapshot's (see statesEquivalent). It does not
// re-run the runtime (no capability side effects are replayed), only the
// kernel's pure reduction.
func buildReplayCmd() *cobra.Command {
	var storageDir string
	var sessionID string
	var configPath string

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a persisted session's history through a fresh kernel and verify determinism",
		RunE: func(cmd *cobra.Command, args []string) error {
			return replaySession(cmd, storageDir, sessionID, configPath)
		},
	}

	cmd.Flags().StringVar(&storageDir, "storage-dir", "", "session snapshot directory")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to replay (defaults to the most recent snapshot)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to agency.toml the session was originally run with")
	_ = cmd.MarkFlagRequired("storage-dir")
	return cmd
}

func replaySession(cmd *cobra.Command, storageDir, sessionID, configPath string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	store, err := storage.New(storageDir)
	if err != nil {
		return fmt.Errorf("storage init: %w", err)
	}

	snap, err := loadSnapshot(ctx, store, sessionID)
	if err != nil {
		return err
	}

	cfgFile := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfgFile = loaded
	}

	replayed, err := kernel.NewLLMKernel(cfgFile.Kernel)
	if err != nil {
		return fmt.Errorf("replay kernel init: %w", err)
	}

	replayEvents := historyToEvents(snap.State.History)
	if _, err := replayed.Process(replayEvents); err != nil {
		return fmt.Errorf("replay process: %w", err)
	}

	match := statesEquivalent(replayed.State(), &snap.State)
	fmt.Fprintf(out, "session %s: step=%d halted=%v deterministic_replay_match=%v\n",
		snap.SessionID, snap.Step, snap.State.Halted, match)
	if !match {
		return fmt.Errorf("replay: resulting state diverged from persisted snapshot")
	}
	return nil
}

func loadSnapshot(ctx context.Context, store *storage.Storage, sessionID string) (storage.Snapshot, error) {
	if sessionID == "" {
		return store.GetLatest(ctx)
	}
	return store.Get(ctx, sessionID)
}

// historyToEvents turns retained chat history back into the UserMessage
// events that originally produced it, the only event kind a snapshot's
// History can losslessly reconstruct without replaying tool/LLM I/O.
func historyToEvents(history []agency.Message) []agency.Event {
	var events []agency.Event
	for _, m := range history {
		if m.Role == agency.RoleUser {
			events = append(events, agency.UserMessage{Content: m.Content})
		}
	}
	return events
}

// statesEquivalent compares two kernel states by their Halted flag and the
// length of their History only; message contents and every other field
// (e.g. in-flight intent ids) are not compared.
func statesEquivalent(a, b *kernel.State) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Halted == b.Halted && len(a.History) == len(b.History)
}
