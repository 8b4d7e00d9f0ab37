// Package envelope wraps kernel-facing events with the transport metadata
// described in spec §3 (Events): IDs, logical clocks, session linkage and
// trace context. Envelopes are the only unit the transport layer moves.
package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/agencyrun/agency/pkg/agency"
	"github.com/agencyrun/agency/pkg/ids"
)

// TraceSpan is a single hop of distributed trace context carried for
// observability; the core never interprets it.
type TraceSpan struct {
	Name      string `json:"name"`
	StartedAt int64  `json:"startedAt"`
}

// Envelope wraps one kernel Event with transport metadata.
type Envelope struct {
	ID               ids.EventID      `json:"id"`
	Source           string           `json:"source"`
	LogicalTimestamp ids.LogicalClock `json:"logicalTimestamp"`
	SessionID        ids.SessionID    `json:"sessionId"`
	Sequence         uint64           `json:"sequence"`
	ParentID         *ids.EventID     `json:"parentId,omitempty"`
	TraceSpans       []TraceSpan      `json:"traceSpans,omitempty"`
	Event            agency.Event     `json:"event"`
}

// New builds an envelope for event, stamping a fresh EventID and logical
// clock tick. Sequence must be assigned by the caller (the orchestrator
// owns the per-session strictly-increasing counter, spec §5).
func New(source string, sessionID ids.SessionID, sequence uint64, event agency.Event) Envelope {
	return Envelope{
		ID:               ids.NewEventID(),
		Source:           source,
		LogicalTimestamp: ids.NextLogicalClock(),
		SessionID:        sessionID,
		Sequence:         sequence,
		Event:            event,
	}
}

// envelopeWire is the JSON-serializable shadow of Envelope: agency.Event is
// an interface, so it is encoded/decoded through agency's tagged-variant
// helpers rather than naively by encoding/json.
type envelopeWire struct {
	ID               ids.EventID      `json:"id"`
	Source           string           `json:"source"`
	LogicalTimestamp ids.LogicalClock `json:"logicalTimestamp"`
	SessionID        ids.SessionID    `json:"sessionId"`
	Sequence         uint64           `json:"sequence"`
	ParentID         *ids.EventID     `json:"parentId,omitempty"`
	TraceSpans       []TraceSpan      `json:"traceSpans,omitempty"`
	Event            json.RawMessage  `json:"event"`
}

// MarshalJSON implements json.Marshaler, round-tripping the tagged Event
// variant (spec §8: envelope serialize-then-deserialize yields an equal
// envelope).
func (e Envelope) MarshalJSON() ([]byte, error) {
	eventJSON, err := agency.MarshalEvent(e.Event)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal event: %w", err)
	}
	return json.Marshal(envelopeWire{
		ID:               e.ID,
		Source:           e.Source,
		LogicalTimestamp: e.LogicalTimestamp,
		SessionID:        e.SessionID,
		Sequence:         e.Sequence,
		ParentID:         e.ParentID,
		TraceSpans:       e.TraceSpans,
		Event:            eventJSON,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var wire envelopeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	ev, err := agency.UnmarshalEvent(wire.Event)
	if err != nil {
		return fmt.Errorf("envelope: unmarshal event: %w", err)
	}
	e.ID = wire.ID
	e.Source = wire.Source
	e.LogicalTimestamp = wire.LogicalTimestamp
	e.SessionID = wire.SessionID
	e.Sequence = wire.Sequence
	e.ParentID = wire.ParentID
	e.TraceSpans = wire.TraceSpans
	e.Event = ev
	return nil
}
