package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"dualbot/pkg/bus"
	"dualbot/pkg/event"
	"dualbot/pkg/middleware"
)

// DefaultSize is the number of workers started when none is configured.
const DefaultSize = 4

// Pool runs a fixed number of workers, each taking one context at a time from
// the queue and passing it through the shared chain.
//
// A context is handled by exactly one worker. Contexts handed to different
// workers run concurrently with no ordering between them.
type Pool struct {
	queue *bus.Queue
	chain *middleware.Chain
	size  int
	log   *slog.Logger
}

// NewPool validates its collaborators and returns a pool of size workers.
func NewPool(queue *bus.Queue, chain *middleware.Chain, size int, log *slog.Logger) (*Pool, error) {
	if queue == nil {
		return nil, errors.New("queue is required")
	}
	if chain == nil {
		return nil, errors.New("middleware chain is required")
	}
	if size <= 0 {
		size = DefaultSize
	}
	if log == nil {
		log = slog.Default()
	}

	return &Pool{
		queue: queue,
		chain: chain,
		size:  size,
		log:   log.With("component", "worker.pool"),
	}, nil
}

// Size returns the worker count.
func (p *Pool) Size() int {
	return p.size
}

// Run starts the workers and blocks until ctx ends or the queue closes.
// Contexts still queued at that point are not processed.
func (p *Pool) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	p.log.Info("Worker pool started", "workers", p.size, "queue_capacity", p.queue.Cap())

	var wg sync.WaitGroup
	for id := 1; id <= p.size; id++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.work(ctx, id)
		}()
	}
	wg.Wait()

	p.log.Info("Worker pool stopped", "pending", p.queue.Len())
}

func (p *Pool) work(ctx context.Context, id int) {
	for {
		ec, ok := p.queue.Consume(ctx)
		if !ok {
			return
		}

		p.handle(ctx, id, ec)
	}
}

// handle runs one context through the chain, isolating the worker from panics.
func (p *Pool) handle(ctx context.Context, id int, ec *event.Context) {
	start := time.Now()
	err := p.execute(ctx, ec)
	elapsed := time.Since(start)

	ev := bus.Event{
		Platform:  ec.Platform,
		EventType: ec.Type,
		Worker:    id,
		Duration:  elapsed,
	}

	if err != nil {
		ev.Type = bus.EventHandlerFailed
		ev.Error = err.Error()
		p.log.Error("Handler chain failed", "worker", id, "platform", ec.Platform, "type", ec.Type, "error", err)
	} else {
		ev.Type = bus.EventHandlerCompleted
		p.log.Debug("Handled event", "worker", id, "platform", ec.Platform, "type", ec.Type, "duration", elapsed)
	}

	p.queue.PublishEvent(ctx, ev)
}

func (p *Pool) execute(ctx context.Context, ec *event.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			p.log.Debug("Recovered handler panic", "stack", string(debug.Stack()))
			err = fmt.Errorf("handler panic: %v", recovered)
		}
	}()

	p.chain.Execute(ctx, ec)
	return nil
}
