package bus

import (
	"context"
	"sync"

	"dualbot/pkg/event"
)

// DefaultCapacity is the dispatch queue size used when none is configured.
const DefaultCapacity = 100

// Queue is the bounded dispatch queue between ingestion sources and workers.
//
// Publish suspends the producer while the queue is full; there is no drop
// or overflow path. Any number of producers and consumers may use it.
type Queue struct {
	items chan *event.Context

	eventSubscribers      map[uint64]chan Event
	nextEventSubscriberID uint64

	done      chan struct{}
	closeOnce sync.Once

	mu sync.RWMutex
}

// NewQueue builds a queue holding at most capacity contexts.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Queue{
		items:            make(chan *event.Context, capacity),
		eventSubscribers: make(map[uint64]chan Event),
		done:             make(chan struct{}),
	}
}

// Publish hands ctx to the queue, waiting for a free slot.
// It returns false if the caller's context ends or the queue is closed first.
func (q *Queue) Publish(ctx context.Context, ec *event.Context) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return false
	case <-q.done:
		return false
	default:
	}

	select {
	case <-ctx.Done():
		return false
	case <-q.done:
		return false
	case q.items <- ec:
		q.PublishEvent(ctx, Event{
			Type:      EventReceived,
			Platform:  ec.Platform,
			EventType: ec.Type,
		})
		return true
	}
}

// Consume waits for the next context.
func (q *Queue) Consume(ctx context.Context) (*event.Context, bool) {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return nil, false
	case <-q.done:
		return nil, false
	case ec := <-q.items:
		return ec, true
	}
}

// Len reports how many contexts are waiting.
func (q *Queue) Len() int {
	return len(q.items)
}

// Cap reports the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.items)
}

// Close wakes every blocked producer and consumer. Queued contexts are discarded.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)

		q.mu.Lock()
		for id, ch := range q.eventSubscribers {
			close(ch)
			delete(q.eventSubscribers, id)
		}
		q.mu.Unlock()
	})
}
