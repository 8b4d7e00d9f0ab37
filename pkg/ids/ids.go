// Package ids defines the identifier types shared across the kernel,
// runtime and orchestrator: event, intent, session and worker IDs, plus the
// logical-clock placeholders reserved for a future distributed extension.
package ids

import (
	"fmt"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
)

// EventID uniquely identifies a produced kernel event.
type EventID uint64

// eventCounter hands out process-local, strictly increasing EventIDs.
var eventCounter uint64

// NewEventID returns a fresh, monotonically increasing EventID.
func NewEventID() EventID {
	return EventID(atomic.AddUint64(&eventCounter, 1))
}

// IntentID encodes (step, index-within-step) so that a freshly built
// IntentGraph has densely allocated, stable identifiers. Two IntentIDs
// compare by step first, then by index, which is also the executor's
// deterministic tie-break order (spec §4.2.c).
type IntentID struct {
	Step  uint64
	Index uint32
}

// NewIntentID constructs an IntentID for the given step and index.
func NewIntentID(step uint64, index uint32) IntentID {
	return IntentID{Step: step, Index: index}
}

// String renders the ID as "<step>.<index>" for debugging and error
// messages; maps key on the IntentID struct itself and ordering uses Less.
func (id IntentID) String() string {
	return fmt.Sprintf("%d.%d", id.Step, id.Index)
}

// Less reports whether id sorts before other: by Step, then by Index.
func (id IntentID) Less(other IntentID) bool {
	if id.Step != other.Step {
		return id.Step < other.Step
	}
	return id.Index < other.Index
}

// SessionID is a stable string identifier for a chat session.
type SessionID string

// NewSessionID returns a new globally-unique SessionID backed by a ULID, so
// IDs stay lexicographically sortable by creation time.
func NewSessionID() SessionID {
	return SessionID("ses_" + ulid.Make().String())
}

// WorkerID is assigned by the worker manager when a SpawnWorker intent is
// materialized into a nested session.
type WorkerID uint64

// workerCounter hands out process-local, strictly increasing WorkerIDs.
var workerCounter uint64

// NewWorkerID returns a fresh, monotonically increasing WorkerID.
func NewWorkerID() WorkerID {
	return WorkerID(atomic.AddUint64(&workerCounter, 1))
}

// NodeID and LogicalClock are reserved for a future distributed extension.
// The core runs single-node (spec §1 Non-goals), so a monotonic counter is
// sufficient today.
type NodeID uint64

// LogicalClock is a Lamport-style counter. The single-node implementation
// never needs to merge clocks from other nodes, but envelopes carry it so a
// future distributed runtime can do so without a wire-format change.
type LogicalClock uint64

// clockCounter backs the process-local logical clock.
var clockCounter uint64

// NextLogicalClock advances and returns the local logical clock.
func NextLogicalClock() LogicalClock {
	return LogicalClock(atomic.AddUint64(&clockCounter, 1))
}
