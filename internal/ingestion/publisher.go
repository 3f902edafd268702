package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"SynthPool/internal/core"
)

// OutboundPublisher publishes applied-operation notifications for LP
// keepers and downstream consumers.
// Subjects follow the pattern: synth.pool.events.{kind}
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan core.Notification
}

type notificationJSON struct {
	Sequence    int64  `json:"sequence"`
	Kind        string `json:"kind"`
	CycleIndex  int64  `json:"cycle_index"`
	State       string `json:"state"`
	TimestampUs int64  `json:"timestamp_us"`
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan core.Notification) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case note, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, note); err != nil {
				log.Printf("WARN: outbound publish failed seq=%d: %v", note.Sequence, err)
				// Non-fatal: consumers can query the operation log directly
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, note core.Notification) error {
	data, err := json.Marshal(notificationJSON{
		Sequence:    note.Sequence,
		Kind:        note.Kind,
		CycleIndex:  note.CycleIndex,
		State:       note.State,
		TimestampUs: note.Timestamp.UnixMicro(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	subject := fmt.Sprintf("synth.pool.events.%s", note.Kind)
	_, err = op.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutboundStream creates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "SYNTH_POOL_EVENTS",
		Subjects:  []string{"synth.pool.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	log.Println("INFO: ensured outbound stream SYNTH_POOL_EVENTS")
	return nil
}
