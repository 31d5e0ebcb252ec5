package middleware

import (
	"context"
	"errors"

	"dualbot/pkg/event"
)

// Handler receives the per-event context and returns it, or a replacement, to
// the next handler. Returning nil keeps the context passed in.
//
// A handler may start outbound sends it does not wait for. Chain completion
// says nothing about whether those sends were delivered.
type Handler func(context.Context, *event.Context) *event.Context

// Chain is an immutable ordered list of handlers shared by all workers.
type Chain struct {
	handlers []Handler
}

// Registry collects handlers during startup and freezes them into a Chain.
type Registry struct {
	handlers []Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Use appends handlers in execution order.
func (r *Registry) Use(handlers ...Handler) *Registry {
	r.handlers = append(r.handlers, handlers...)
	return r
}

// Len reports how many handlers are registered.
func (r *Registry) Len() int {
	return len(r.handlers)
}

// Build freezes the registered handlers into a Chain. Later Use calls do not affect it.
func (r *Registry) Build() (*Chain, error) {
	for _, h := range r.handlers {
		if h == nil {
			return nil, errors.New("middleware handler must not be nil")
		}
	}

	return NewChain(r.handlers...), nil
}

// NewChain copies handlers into a new Chain. Nil handlers are skipped.
func NewChain(handlers ...Handler) *Chain {
	frozen := make([]Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			frozen = append(frozen, h)
		}
	}

	return &Chain{handlers: frozen}
}

// Len reports the number of handlers.
func (c *Chain) Len() int {
	return len(c.handlers)
}

// Execute runs every handler in order, each starting after the previous one returned.
func (c *Chain) Execute(ctx context.Context, ec *event.Context) *event.Context {
	for _, h := range c.handlers {
		if next := h(ctx, ec); next != nil {
			ec = next
		}
	}

	return ec
}
