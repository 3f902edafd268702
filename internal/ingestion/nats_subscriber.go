package ingestion

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSSubscriber subscribes to NATS JetStream subjects and feeds raw
// messages to the shell, which parses them into oracle updates or
// engine commands. NATS is the high-throughput ingest surface; the
// HTTP API covers interactive callers.
type NATSSubscriber struct {
	js        jetstream.JetStream
	msgChan   chan<- RawMessage
	consumers []jetstream.ConsumeContext
}

// RawMessage is an unparsed NATS message plus its ack hooks.
type RawMessage struct {
	Subject  string
	Data     []byte
	Received time.Time
	AckFunc  func() // Call to ACK after successful processing
	NakFunc  func() // Call to NAK on failure (will be redelivered)
}

// SubjectConfig maps one NATS subject to a durable consumer.
type SubjectConfig struct {
	Subject      string
	ConsumerName string
	StreamName   string
}

// DefaultSubjects returns the standard subject configuration.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: "synth.oracle.price", ConsumerName: "pool-oracle-price", StreamName: "SYNTH_ORACLE"},
		{Subject: "synth.oracle.session", ConsumerName: "pool-oracle-session", StreamName: "SYNTH_ORACLE"},
		{Subject: "synth.oracle.market", ConsumerName: "pool-oracle-market", StreamName: "SYNTH_ORACLE"},
		{Subject: "synth.ops.requests.deposit", ConsumerName: "pool-req-deposit", StreamName: "SYNTH_OPS"},
		{Subject: "synth.ops.requests.deposit_bare", ConsumerName: "pool-req-deposit-bare", StreamName: "SYNTH_OPS"},
		{Subject: "synth.ops.requests.redeem", ConsumerName: "pool-req-redeem", StreamName: "SYNTH_OPS"},
		{Subject: "synth.ops.claims.asset", ConsumerName: "pool-claim-asset", StreamName: "SYNTH_OPS"},
		{Subject: "synth.ops.claims.reserve", ConsumerName: "pool-claim-reserve", StreamName: "SYNTH_OPS"},
		{Subject: "synth.ops.collateral.add", ConsumerName: "pool-coll-add", StreamName: "SYNTH_OPS"},
		{Subject: "synth.ops.collateral.reduce", ConsumerName: "pool-coll-reduce", StreamName: "SYNTH_OPS"},
		{Subject: "synth.ops.rebalance.offchain", ConsumerName: "pool-reb-offchain", StreamName: "SYNTH_OPS"},
		{Subject: "synth.ops.rebalance.onchain", ConsumerName: "pool-reb-onchain", StreamName: "SYNTH_OPS"},
		{Subject: "synth.ops.rebalance.pool", ConsumerName: "pool-reb-pool", StreamName: "SYNTH_OPS"},
		{Subject: "synth.ops.rebalance.lp", ConsumerName: "pool-reb-lp", StreamName: "SYNTH_OPS"},
		{Subject: "synth.ops.rebalance.force", ConsumerName: "pool-reb-force", StreamName: "SYNTH_OPS"},
		{Subject: "synth.ops.admin.resolve", ConsumerName: "pool-admin-resolve", StreamName: "SYNTH_OPS"},
	}
}

func NewNATSSubscriber(js jetstream.JetStream, msgChan chan<- RawMessage) *NATSSubscriber {
	return &NATSSubscriber{
		js:      js,
		msgChan: msgChan,
	}
}

// Subscribe creates JetStream consumers for all configured subjects.
// Consumers use explicit ACK, max_deliver=5, ack_wait=30s.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		consumer, err := ns.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
			raw := RawMessage{
				Subject:  msg.Subject(),
				Data:     msg.Data(),
				Received: time.Now(),
				AckFunc:  func() { msg.Ack() },
				NakFunc:  func() { msg.Nak() },
			}

			select {
			case ns.msgChan <- raw:
			case <-ctx.Done():
				msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}

		ns.consumers = append(ns.consumers, consumerContext)
		log.Printf("INFO: subscribed to %s (consumer=%s)", cfg.Subject, cfg.ConsumerName)
	}

	return nil
}

// EnsureStreams creates the required JetStream streams if they don't
// exist. Streams use FileStorage, retention=Limits, max_age=72h.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	streams := []jetstream.StreamConfig{
		{
			Name:      "SYNTH_ORACLE",
			Subjects:  []string{"synth.oracle.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "SYNTH_OPS",
			Subjects:  []string{"synth.ops.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
	}

	for _, cfg := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		log.Printf("INFO: ensured stream %s", cfg.Name)
	}

	return nil
}

// Stop gracefully stops all consumers.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.consumers {
		cc.Stop()
	}
	log.Println("INFO: NATS subscribers stopped")
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("WARN: NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Println("INFO: NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
