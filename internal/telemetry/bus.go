// Package telemetry implements the side-channel Telemetry capability (spec
// §4.3 table) on top of watermill's in-memory gochannel pub/sub, the same
// infrastructure the teacher's internal/event package wraps for its
// session/message event bus. Telemetry is explicitly best-effort and
// unordered with respect to control flow (spec §5): Record* publishes onto
// a topic and returns without waiting for subscribers to drain it.
package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/agencyrun/agency/internal/logging"
)

// Topic names the two channels telemetry records are published on, mirroring
// the Telemetry interface's two methods.
const (
	TopicDecision = "telemetry.decision"
	TopicResult   = "telemetry.result"
)

// Record is the envelope published on either topic.
type Record struct {
	Label  string         `json:"label"`
	Fields map[string]any `json:"fields"`
}

// Bus is a capability.Telemetry backed by a watermill GoChannel pub/sub.
// It never blocks the caller: Publish errors (e.g. a full subscriber
// channel) are logged and dropped, matching "telemetry never blocks
// control flow" (spec §4.3).
type Bus struct {
	pubsub *gochannel.GoChannel
	log    watermill.LoggerAdapter
}

// NewBus constructs a telemetry bus with a non-persistent gochannel whose
// per-subscriber output channels are buffered to bufferSize (0 gives each
// subscriber an unbuffered channel).
func NewBus(bufferSize int64) *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: bufferSize,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
	}
}

// RecordDecision implements capability.Telemetry.
func (b *Bus) RecordDecision(ctx context.Context, label string, fields map[string]any) {
	b.publish(ctx, TopicDecision, label, fields)
}

// RecordResult implements capability.Telemetry.
func (b *Bus) RecordResult(ctx context.Context, label string, fields map[string]any) {
	b.publish(ctx, TopicResult, label, fields)
}

func (b *Bus) publish(ctx context.Context, topic, label string, fields map[string]any) {
	payload, err := json.Marshal(Record{Label: label, Fields: fields})
	if err != nil {
		logging.Error().Err(err).Str("topic", topic).Msg("telemetry: marshal record")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("recorded_at", time.Now().UTC().Format(time.RFC3339Nano))
	if err := b.pubsub.Publish(topic, msg); err != nil {
		logging.Error().Err(err).Str("topic", topic).Msg("telemetry: publish")
	}
}

// Subscribe returns a channel of decoded Records for topic, for a consumer
// (e.g. the introspection server, or a test) that wants to observe
// telemetry as it is recorded. The returned channel closes when ctx is
// cancelled or Close is called.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan Record, error) {
	msgs, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}
	out := make(chan Record)
	go func() {
		defer close(out)
		for msg := range msgs {
			var rec Record
			if err := json.Unmarshal(msg.Payload, &rec); err != nil {
				msg.Nack()
				continue
			}
			msg.Ack()
			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close releases the underlying pub/sub and all subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
