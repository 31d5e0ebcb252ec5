package bus

import (
	"context"
	"sync"
	"time"

	"dualbot/pkg/event"
)

// EventType names a pipeline observation.
type EventType string

const (
	EventReceived         EventType = "event_received"
	EventHandlerCompleted EventType = "handler_completed"
	EventHandlerFailed    EventType = "handler_failed"
)

// Event is a pipeline observation fanned out to subscribers such as the status server.
type Event struct {
	Type      EventType      `json:"type"`
	At        time.Time      `json:"at"`
	Platform  event.Platform `json:"platform,omitempty"`
	EventType event.Type     `json:"event_type,omitempty"`
	Worker    int            `json:"worker,omitempty"`
	Duration  time.Duration  `json:"duration,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// PublishEvent delivers ev to every subscriber without blocking on slow ones.
func (q *Queue) PublishEvent(ctx context.Context, ev Event) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return false
	case <-q.done:
		return false
	default:
	}

	// Sends stay under the read lock so unsubscribe cannot close a channel mid-send.
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, ch := range q.eventSubscribers {
		select {
		case ch <- ev:
		default:
			// Drop instead of blocking the publisher on slow subscribers.
		}
	}

	return true
}

// SubscribeEvents registers a buffered subscriber. The channel closes on
// unsubscribe, when ctx ends, or when the queue closes.
func (q *Queue) SubscribeEvents(ctx context.Context, buffer int) (<-chan Event, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	if buffer <= 0 {
		buffer = DefaultCapacity
	}

	ch := make(chan Event, buffer)

	q.mu.Lock()
	select {
	case <-q.done:
		q.mu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}

	id := q.nextEventSubscriberID
	q.nextEventSubscriberID++
	q.eventSubscribers[id] = ch
	q.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			q.mu.Lock()
			if eventCh, ok := q.eventSubscribers[id]; ok {
				delete(q.eventSubscribers, id)
				close(eventCh)
			}
			q.mu.Unlock()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-q.done:
			unsubscribe()
		}
	}()

	return ch, unsubscribe
}
