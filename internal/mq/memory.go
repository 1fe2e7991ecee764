package mq

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const memoryQueueSize = 64

var errMemoryBusClosed = errors.New("memory bus closed")

// MemoryBus delivers messages between goroutines of one process. Each channel
// is a single bounded queue; concurrent subscribers compete for messages. A
// message whose handler fails is delivered once more.
type MemoryBus struct {
	mu     sync.Mutex
	queues map[string]chan memoryDelivery
	closed bool
}

type memoryDelivery struct {
	msg         Message
	redelivered bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{queues: make(map[string]chan memoryDelivery)}
}

// queueLocked returns the queue for channel. b.mu must be held.
func (b *MemoryBus) queueLocked(channel string) chan memoryDelivery {
	q, ok := b.queues[channel]
	if !ok {
		q = make(chan memoryDelivery, memoryQueueSize)
		b.queues[channel] = q
	}
	return q
}

func (b *MemoryBus) enqueue(channel string, d memoryDelivery) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errMemoryBusClosed
	}
	select {
	case b.queueLocked(channel) <- d:
		return nil
	default:
		return errors.New("memory bus queue full")
	}
}

func (b *MemoryBus) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("memory bus channel is required")
	}
	msg := Message{ID: uuid.NewString(), Data: append([]byte(nil), data...), Attributes: attrs}
	if err := b.enqueue(channel, memoryDelivery{msg: msg}); err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("memory bus channel is required")
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errMemoryBusClosed
	}
	q := b.queueLocked(channel)
	b.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-q:
			if !ok {
				return errMemoryBusClosed
			}
			if err := handler(ctx, d.msg); err != nil && !d.redelivered {
				_ = b.enqueue(channel, memoryDelivery{msg: d.msg, redelivered: true})
			}
		}
	}
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, q := range b.queues {
		close(q)
	}
	return nil
}
