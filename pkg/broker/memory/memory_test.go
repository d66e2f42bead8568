package memory

import (
	"context"
	"testing"
	"time"

	"github.com/lonestarx1/gogrid/pkg/broker"
)

func TestPublishThenConsumeDeliversInOrder(t *testing.T) {
	b := New()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := b.EnsureStream(ctx, "agent.ingest"); err != nil {
		t.Fatalf("EnsureStream: %v", err)
	}
	if err := b.Publish(ctx, "agent.ingest", []byte("one")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := b.Publish(ctx, "agent.ingest", []byte("two")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	deliveries, err := b.Consume(ctx, "agent.ingest", 10)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}

	first := recv(t, deliveries)
	if string(first.Data) != "one" {
		t.Fatalf("first = %q, want one", first.Data)
	}
	if err := first.Ack(); err != nil {
		t.Fatalf("Ack: %v", err)
	}

	second := recv(t, deliveries)
	if string(second.Data) != "two" {
		t.Fatalf("second = %q, want two", second.Data)
	}
	if err := second.Ack(); err != nil {
		t.Fatalf("Ack: %v", err)
	}
}

func TestNackRequeuesMessage(t *testing.T) {
	b := New()
	defer b.Close()
	ctx := context.Background()

	if err := b.Publish(ctx, "agent.plan", []byte("payload")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	deliveries, err := b.Consume(ctx, "agent.plan", 1)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}

	first := recv(t, deliveries)
	if err := first.Nack(); err != nil {
		t.Fatalf("Nack: %v", err)
	}

	redelivered := recv(t, deliveries)
	if string(redelivered.Data) != "payload" {
		t.Fatalf("redelivered = %q, want payload", redelivered.Data)
	}
}

func TestPrefetchBoundsOutstandingDeliveries(t *testing.T) {
	b := New()
	defer b.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Publish(ctx, "agent.execute", []byte{byte('a' + i)}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	deliveries, err := b.Consume(ctx, "agent.execute", 1)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}

	first := recv(t, deliveries)

	select {
	case <-deliveries:
		t.Fatalf("second delivery arrived before first was acked, want prefetch=1 to block it")
	case <-time.After(50 * time.Millisecond):
	}

	if err := first.Ack(); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	recv(t, deliveries)
}

func recv(t *testing.T, ch <-chan broker.Delivery) broker.Delivery {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for delivery")
		return broker.Delivery{}
	}
}
