package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const deregisterTimeout = 10 * time.Second

// Registrar installs and removes the platform's push subscription.
type Registrar interface {
	Register(context.Context) error
	Deregister(context.Context) error
}

// Lifecycle brackets webhook serving with registration and deregistration.
type Lifecycle struct {
	registrar Registrar
	log       *slog.Logger
}

// NewLifecycle returns a lifecycle driving registrar.
func NewLifecycle(registrar Registrar, log *slog.Logger) (*Lifecycle, error) {
	if registrar == nil {
		return nil, errors.New("registrar is required")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Lifecycle{registrar: registrar, log: log.With("component", "webhook.lifecycle")}, nil
}

// Run registers the callback URL, then calls serve until ctx ends (the
// shutdown signal), then deregisters.
//
// A registration failure is returned before serve is called. A
// deregistration failure is logged and does not change the result.
// Contexts already handed to workers are not waited for.
func (l *Lifecycle) Run(ctx context.Context, serve func(context.Context) error) error {
	if err := l.registrar.Register(ctx); err != nil {
		return fmt.Errorf("register webhook: %w", err)
	}

	serveErr := serve(ctx)

	deregisterCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deregisterTimeout)
	defer cancel()
	if err := l.registrar.Deregister(deregisterCtx); err != nil {
		l.log.Error("Failed to deregister webhook", "error", err)
	} else {
		l.log.Info("Webhook deregistered")
	}

	return serveErr
}
