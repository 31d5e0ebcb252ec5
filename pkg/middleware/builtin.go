package middleware

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"dualbot/pkg/event"
)

const textPreviewLimit = 240

// Logging records every context entering the chain at debug level.
func Logging(log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "middleware.logging")

	return func(_ context.Context, ec *event.Context) *event.Context {
		log.Debug("Received event",
			"platform", ec.Platform,
			"type", ec.Type,
			"sender_id", ec.SenderID,
			"conversation_id", ec.ConversationID,
			"text", previewText(ec.Text),
			"attachments", len(ec.Attachments),
		)
		return ec
	}
}

// AllowFrom stops contexts whose sender is not listed. Entries are sender ids,
// optionally prefixed with a platform ("vk:1", "telegram:2").
//
// An empty list allows every sender.
func AllowFrom(allowFrom []string) Handler {
	allowed := allowFromSet(allowFrom)

	return func(_ context.Context, ec *event.Context) *event.Context {
		if len(allowed) == 0 || ec.Type == event.TypeUnknown {
			return ec
		}

		sender := strconv.FormatInt(ec.SenderID, 10)
		if _, ok := allowed[sender]; ok {
			return ec
		}
		if _, ok := allowed[ec.Platform.String()+":"+sender]; ok {
			return ec
		}

		ec.Stop()
		return ec
	}
}

// Skip wraps h so it does not run for contexts an earlier handler stopped.
func Skip(h Handler) Handler {
	return func(ctx context.Context, ec *event.Context) *event.Context {
		if ec.Stopped() {
			return ec
		}
		return h(ctx, ec)
	}
}

// CommandFunc handles a matched command. match holds the regexp submatches.
type CommandFunc func(ctx context.Context, ec *event.Context, match []string)

type route struct {
	pattern *regexp.Regexp
	fn      CommandFunc
}

// Router dispatches message and callback text to the first matching pattern.
type Router struct {
	routes   []route
	fallback CommandFunc
}

// NewRouter returns an empty command router.
func NewRouter() *Router {
	return &Router{}
}

// Hears registers fn for text matching pattern. Patterns are tried in registration order.
func (r *Router) Hears(pattern *regexp.Regexp, fn CommandFunc) *Router {
	r.routes = append(r.routes, route{pattern: pattern, fn: fn})
	return r
}

// Default registers fn for text no pattern matched.
func (r *Router) Default(fn CommandFunc) *Router {
	r.fallback = fn
	return r
}

// Handler turns the router into a chain handler. Stopped contexts and event
// types without user text are passed through untouched.
func (r *Router) Handler() Handler {
	routes := append([]route(nil), r.routes...)
	fallback := r.fallback

	return func(ctx context.Context, ec *event.Context) *event.Context {
		if ec.Stopped() {
			return ec
		}
		if ec.Type != event.TypeMessageNew && ec.Type != event.TypeCallbackQuery {
			return ec
		}

		for _, rt := range routes {
			if match := rt.pattern.FindStringSubmatch(ec.Text); match != nil {
				rt.fn(ctx, ec, match)
				return ec
			}
		}

		if fallback != nil {
			fallback(ctx, ec, nil)
		}
		return ec
	}
}

// allowFromSet normalizes allow_from values into a lookup set.
func allowFromSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	if len(allowed) == 0 {
		return nil
	}

	return allowed
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= textPreviewLimit {
		return trimmed
	}

	cut := textPreviewLimit
	for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
		cut--
	}

	return trimmed[:cut] + "..."
}
