package cmd

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"dualbot/pkg/api"
	"dualbot/pkg/config"
	"dualbot/pkg/event"
	"dualbot/pkg/middleware"
)

var (
	pingPattern = regexp.MustCompile(`^/ping\b`)
	echoPattern = regexp.MustCompile(`(?s)^/echo\s+(.+)$`)
)

// replier sends a detached reply to the conversation an event came from.
type replier interface {
	Reply(ctx context.Context, ec *event.Context, text string) <-chan error
}

// defaultRegistry is the handler chain both run modes start with.
func defaultRegistry(cfg *config.Config, client replier, log *slog.Logger) *middleware.Registry {
	router := middleware.NewRouter().
		Hears(pingPattern, func(ctx context.Context, ec *event.Context, _ []string) {
			client.Reply(ctx, ec, "pong")
		}).
		Hears(echoPattern, func(ctx context.Context, ec *event.Context, match []string) {
			client.Reply(ctx, ec, strings.TrimSpace(match[1]))
		})

	return middleware.NewRegistry().Use(
		middleware.Logging(log),
		middleware.AllowFrom(cfg.AllowFrom),
		router.Handler(),
	)
}

var _ replier = (*api.Client)(nil)
