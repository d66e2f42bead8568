// Package memory implements an in-process broker.Broker fake: a
// mutex-guarded map keyed by name, with no persistence across process
// restarts. Used by pkg/runtime's tests and by local development profiles
// that have no NATS server running.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/lonestarx1/gogrid/pkg/broker"
)

// Broker is a thread-safe, in-memory implementation of broker.Broker. Each
// subject is backed by a single bounded FIFO channel; Consume enforces
// prefetch with a counting semaphore and requeues on Nack.
type Broker struct {
	mu      sync.Mutex
	queues  map[string]chan []byte
	closed  bool
	closeCh chan struct{}
}

// New creates an empty in-memory broker.
func New() *Broker {
	return &Broker{
		queues:  make(map[string]chan []byte),
		closeCh: make(chan struct{}),
	}
}

const queueCapacity = 4096

func (b *Broker) ensureQueueLocked(subject string) chan []byte {
	q, ok := b.queues[subject]
	if !ok {
		q = make(chan []byte, queueCapacity)
		b.queues[subject] = q
	}
	return q
}

// EnsureStream creates subject's backing queue if absent. Idempotent.
func (b *Broker) EnsureStream(_ context.Context, subject string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("memory broker: closed")
	}
	b.ensureQueueLocked(subject)
	return nil
}

// Publish enqueues data onto subject, creating the queue if needed.
func (b *Broker) Publish(ctx context.Context, subject string, data []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.New("memory broker: closed")
	}
	q := b.ensureQueueLocked(subject)
	b.mu.Unlock()

	select {
	case q <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.closeCh:
		return errors.New("memory broker: closed")
	}
}

// Consume starts delivering messages from subject's queue, never more than
// prefetch of them unacked at once. The returned channel closes when ctx is
// canceled or Close is called.
func (b *Broker) Consume(ctx context.Context, subject string, prefetch int) (<-chan broker.Delivery, error) {
	if prefetch <= 0 {
		prefetch = 1
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, errors.New("memory broker: closed")
	}
	q := b.ensureQueueLocked(subject)
	b.mu.Unlock()

	out := make(chan broker.Delivery)
	sem := make(chan struct{}, prefetch)

	go func() {
		defer close(out)
		for {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			case <-b.closeCh:
				return
			}

			select {
			case data, ok := <-q:
				if !ok {
					<-sem
					return
				}
				var once sync.Once
				release := func() { once.Do(func() { <-sem }) }
				delivery := broker.Delivery{
					Subject: subject,
					Data:    data,
					Ack:     func() error { release(); return nil },
					Nack: func() error {
						release()
						select {
						case q <- data:
						default:
						}
						return nil
					},
					Terminate: func() error { release(); return nil },
				}
				select {
				case out <- delivery:
				case <-ctx.Done():
					release()
					return
				case <-b.closeCh:
					release()
					return
				}
			case <-ctx.Done():
				<-sem
				return
			case <-b.closeCh:
				<-sem
				return
			}
		}
	}()

	return out, nil
}

// Close releases all queues. Subsequent Publish/Consume calls fail.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.closeCh)
	}
	return nil
}
