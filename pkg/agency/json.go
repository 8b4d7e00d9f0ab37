package agency

import (
	"encoding/json"
	"fmt"
)

// eventWire is the {"kind": ..., "data": ...} wire shape for the tagged
// Event union, used by pkg/envelope so Envelope.Event round-trips through
// encoding/json (spec §8 round-trip property).
type eventWire struct {
	Kind EventKind       `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalEvent encodes an Event into its tagged wire form.
func MarshalEvent(e Event) (json.RawMessage, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(eventWire{Kind: e.Kind(), Data: data})
}

// UnmarshalEvent decodes an Event from its tagged wire form.
func UnmarshalEvent(raw json.RawMessage) (Event, error) {
	var wire eventWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}

	var target Event
	switch wire.Kind {
	case EventUserMessage:
		target = &UserMessage{}
	case EventToolCompleted:
		target = &ToolCompleted{}
	case EventLLMCompleted:
		target = &LLMCompleted{}
	case EventApprovalGiven:
		target = &ApprovalGiven{}
	case EventWorkerCompleted:
		target = &WorkerCompleted{}
	case EventWorkerFailed:
		target = &WorkerFailed{}
	case EventRuntimeError:
		target = &RuntimeErrorEvent{}
	case EventInterrupt:
		target = &Interrupt{}
	case EventTick:
		target = &Tick{}
	case EventSession:
		target = &SessionEvent{}
	default:
		return nil, fmt.Errorf("agency: unknown event kind %q", wire.Kind)
	}

	if err := json.Unmarshal(wire.Data, target); err != nil {
		return nil, err
	}
	return derefEvent(target), nil
}

// derefEvent returns the pointed-to value so equality comparisons between a
// freshly constructed Event and one round-tripped through JSON behave the
// same (both are value types, not pointers).
func derefEvent(e Event) Event {
	switch v := e.(type) {
	case *UserMessage:
		return *v
	case *ToolCompleted:
		return *v
	case *LLMCompleted:
		return *v
	case *ApprovalGiven:
		return *v
	case *WorkerCompleted:
		return *v
	case *WorkerFailed:
		return *v
	case *RuntimeErrorEvent:
		return *v
	case *Interrupt:
		return *v
	case *Tick:
		return *v
	case *SessionEvent:
		return *v
	default:
		return e
	}
}
