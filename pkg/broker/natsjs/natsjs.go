// Package natsjs implements broker.Broker against a real NATS JetStream
// server, grounded on the nats-io/nats.go dependency shared by several
// example repositories (C360Studio-semspec's reactive workflow processors,
// WessleyAI-wessley-mvp's ingest engine, dataparency-dev-AI-delegation, and
// copyleftdev-synapse-spec-first): durable JetStream consumer, explicit ack
// policy, bounded fetch-with-timeout loop.
package natsjs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/lonestarx1/gogrid/pkg/broker"
)

// Config controls connection and consumer behavior.
type Config struct {
	// URL is the NATS server URL, e.g. "nats://localhost:4222".
	URL string
	// ConnectRetries bounds the number of connection attempts at startup.
	// 0 means a single attempt, no retry.
	ConnectRetries int
	// ConnectBackoff is the delay between connection attempts.
	ConnectBackoff time.Duration
	// AckWait bounds how long JetStream waits for an ack before
	// redelivering.
	AckWait time.Duration
	// MaxDeliver bounds redelivery attempts per message.
	MaxDeliver int
}

func (c Config) withDefaults() Config {
	if c.AckWait == 0 {
		c.AckWait = 180 * time.Second
	}
	if c.MaxDeliver == 0 {
		c.MaxDeliver = 5
	}
	if c.ConnectBackoff == 0 {
		c.ConnectBackoff = time.Second
	}
	return c
}

// Broker wraps a connected JetStream context.
type Broker struct {
	cfg  Config
	conn *nats.Conn
	js   jetstream.JetStream
}

// Connect dials the NATS server, retrying up to cfg.ConnectRetries times
// with cfg.ConnectBackoff between attempts, then opens a JetStream context.
func Connect(ctx context.Context, cfg Config) (*Broker, error) {
	cfg = cfg.withDefaults()

	var conn *nats.Conn
	var lastErr error
	for attempt := 0; attempt <= cfg.ConnectRetries; attempt++ {
		conn, lastErr = nats.Connect(cfg.URL)
		if lastErr == nil {
			break
		}
		if attempt == cfg.ConnectRetries {
			break
		}
		select {
		case <-time.After(cfg.ConnectBackoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("natsjs: connect after %d attempts: %w", cfg.ConnectRetries+1, lastErr)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("natsjs: open jetstream context: %w", err)
	}

	return &Broker{cfg: cfg, conn: conn, js: js}, nil
}

// streamName derives a JetStream-legal stream name from a subject (no
// wildcards, no dots).
func streamName(subject string) string {
	return strings.ReplaceAll(subject, ".", "_")
}

// consumerName derives a durable consumer name from a subject.
func consumerName(subject string) string {
	return streamName(subject) + "_consumer"
}

// EnsureStream declares a durable, subject-scoped JetStream stream if it
// does not already exist.
func (b *Broker) EnsureStream(ctx context.Context, subject string) error {
	_, err := b.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName(subject),
		Subjects: []string{subject},
	})
	if err != nil {
		return fmt.Errorf("natsjs: ensure stream %s: %w", subject, err)
	}
	return nil
}

// Publish durably publishes data to subject.
func (b *Broker) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := b.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("natsjs: publish %s: %w", subject, err)
	}
	return nil
}

// Consume creates or reuses a durable explicit-ack consumer bound to
// subject and delivers messages to the returned channel, never more than
// prefetch outstanding (unacked) at once.
func (b *Broker) Consume(ctx context.Context, subject string, prefetch int) (<-chan broker.Delivery, error) {
	if prefetch <= 0 {
		prefetch = 1
	}

	stream, err := b.js.Stream(ctx, streamName(subject))
	if err != nil {
		return nil, fmt.Errorf("natsjs: get stream for %s: %w", subject, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       consumerName(subject),
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       b.cfg.AckWait,
		MaxDeliver:    b.cfg.MaxDeliver,
		MaxAckPending: prefetch,
	})
	if err != nil {
		return nil, fmt.Errorf("natsjs: create consumer for %s: %w", subject, err)
	}

	out := make(chan broker.Delivery)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msgs, err := consumer.Fetch(prefetch, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				continue
			}

			for msg := range msgs.Messages() {
				delivery := broker.Delivery{
					Subject:   subject,
					Data:      msg.Data(),
					Ack:       msg.Ack,
					Nack:      func() error { return msg.Nak() },
					Terminate: func() error { return msg.Term() },
				}
				select {
				case out <- delivery:
				case <-ctx.Done():
					return
				}
			}
			if msgs.Error() != nil && ctx.Err() == nil {
				continue
			}
		}
	}()

	return out, nil
}

// Close drains and closes the underlying NATS connection.
func (b *Broker) Close() error {
	b.conn.Drain()
	return nil
}
