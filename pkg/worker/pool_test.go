package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dualbot/pkg/bus"
	"dualbot/pkg/event"
	"dualbot/pkg/middleware"

	"github.com/stretchr/testify/require"
)

func runPool(t *testing.T, queue *bus.Queue, chain *middleware.Chain, size int) (context.CancelFunc, <-chan struct{}) {
	t.Helper()

	pool, err := NewPool(queue, chain, size, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	return cancel, done
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()

	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for pool to stop")
	}
}

func TestNewPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewPool(nil, middleware.NewChain(), 1, nil)
	require.Error(t, err)

	_, err = NewPool(bus.NewQueue(1), nil, 1, nil)
	require.Error(t, err)

	pool, err := NewPool(bus.NewQueue(1), middleware.NewChain(), 0, nil)
	require.NoError(t, err)
	require.Equal(t, DefaultSize, pool.Size())
}

func TestPoolHandlesEveryContextExactlyOnce(t *testing.T) {
	t.Parallel()

	const total = 200

	var mu sync.Mutex
	seen := make(map[int64]int, total)
	var handled sync.WaitGroup
	handled.Add(total)

	chain := middleware.NewChain(func(_ context.Context, ec *event.Context) *event.Context {
		mu.Lock()
		seen[ec.EventID]++
		mu.Unlock()
		handled.Done()
		return ec
	})

	queue := bus.NewQueue(10)
	cancel, done := runPool(t, queue, chain, 4)
	defer cancel()

	for i := int64(1); i <= total; i++ {
		require.True(t, queue.Publish(context.Background(), &event.Context{EventID: i}))
	}
	handled.Wait()

	mu.Lock()
	require.Len(t, seen, total)
	for id, count := range seen {
		require.Equal(t, 1, count, "event %d", id)
	}
	mu.Unlock()

	cancel()
	waitClosed(t, done)
}

func TestPoolRunsUpToSizeConcurrently(t *testing.T) {
	t.Parallel()

	const size = 3

	var active, peak atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{}, 10)

	chain := middleware.NewChain(func(_ context.Context, ec *event.Context) *event.Context {
		now := active.Add(1)
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}
		started <- struct{}{}
		<-release
		active.Add(-1)
		return ec
	})

	queue := bus.NewQueue(10)
	cancel, done := runPool(t, queue, chain, size)
	defer cancel()

	for i := 0; i < 6; i++ {
		require.True(t, queue.Publish(context.Background(), &event.Context{}))
	}

	for i := 0; i < size; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("workers did not start")
		}
	}

	select {
	case <-started:
		t.Fatal("more handlers running than workers")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	cancel()
	waitClosed(t, done)
	require.Equal(t, int32(size), peak.Load())
}

func TestPoolSurvivesHandlerPanic(t *testing.T) {
	t.Parallel()

	handled := make(chan string, 2)
	chain := middleware.NewChain(func(_ context.Context, ec *event.Context) *event.Context {
		if ec.Text == "boom" {
			panic("handler exploded")
		}
		handled <- ec.Text
		return ec
	})

	queue := bus.NewQueue(4)
	events, unsubscribe := queue.SubscribeEvents(context.Background(), 16)
	defer unsubscribe()

	cancel, done := runPool(t, queue, chain, 1)
	defer cancel()

	require.True(t, queue.Publish(context.Background(), &event.Context{Text: "boom", Platform: event.PlatformVK}))
	require.True(t, queue.Publish(context.Background(), &event.Context{Text: "after", Platform: event.PlatformVK}))

	select {
	case got := <-handled:
		require.Equal(t, "after", got)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not continue after panic")
	}

	var failed, completed int
	deadline := time.After(2 * time.Second)
	for failed == 0 || completed == 0 {
		select {
		case ev := <-events:
			switch ev.Type {
			case bus.EventHandlerFailed:
				failed++
				require.Contains(t, ev.Error, "handler exploded")
				require.Equal(t, 1, ev.Worker)
			case bus.EventHandlerCompleted:
				completed++
				require.Equal(t, event.PlatformVK, ev.Platform)
			}
		case <-deadline:
			t.Fatalf("missing pipeline events: failed=%d completed=%d", failed, completed)
		}
	}

	cancel()
	waitClosed(t, done)
}

func TestPoolStopsWhenQueueCloses(t *testing.T) {
	t.Parallel()

	queue := bus.NewQueue(1)
	cancel, done := runPool(t, queue, middleware.NewChain(), 2)
	defer cancel()

	queue.Close()
	waitClosed(t, done)
}
