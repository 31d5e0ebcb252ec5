package channel

import (
	"context"

	"dualbot/pkg/event"
)

// Publisher accepts normalized contexts for dispatch. Publish blocks while the
// queue is full and returns false once ctx ends or the queue closes.
type Publisher interface {
	Publish(context.Context, *event.Context) bool
}

// Source is one ingestion front-end (a long-poll loop or the webhook server).
type Source interface {
	Name() string
	Run(context.Context, Publisher) error
}
