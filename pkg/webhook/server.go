package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"dualbot/pkg/channel"
	"dualbot/pkg/config"
	"dualbot/pkg/event"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

const (
	// SecretHeader carries the shared secret on Telegram webhook calls.
	SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

	requestIDHeader = "X-Request-Id"
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

type ctxKey string

const ctxKeyRequestID ctxKey = "request_id"

// Server receives pushed updates for both platforms under one path prefix.
//
// Request latency covers decode and enqueue only; handlers run later on the worker pool.
type Server struct {
	webhook  config.WebhookConfig
	settings *config.Config
	log      *slog.Logger
}

var _ channel.Source = (*Server)(nil)

// NewServer validates the webhook block of settings.
func NewServer(settings *config.Config, log *slog.Logger) (*Server, error) {
	if settings == nil {
		return nil, errors.New("config is required")
	}
	if settings.Webhook == nil {
		return nil, errors.New("webhook config is required")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		webhook:  *settings.Webhook,
		settings: settings,
		log:      log.With("component", "webhook.server"),
	}, nil
}

// Name returns the source identifier used in logs and status output.
func (s *Server) Name() string {
	return "webhook"
}

// Handler builds the HTTP routes, publishing accepted updates to pub.
func (s *Server) Handler(pub channel.Publisher) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(chimiddleware.Recoverer)

	// Wrong methods on known paths are reported like unknown paths.
	notFound := func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	r.Route(s.webhook.RoutePrefix(), func(r chi.Router) {
		r.MethodNotAllowed(notFound)
		r.Post("/vk", s.handleVK(pub))
		r.Post("/telegram", s.handleTelegram(pub))
	})

	return r
}

// Run serves until ctx ends and then shuts the listener down.
// In-flight requests get a short grace period; queued work is not waited on.
func (s *Server) Run(ctx context.Context, pub channel.Publisher) error {
	if pub == nil {
		return errors.New("publisher is required")
	}

	server := &http.Server{
		Addr:              s.webhook.Address(),
		Handler:           s.Handler(pub),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Webhook server started", "address", server.Addr, "prefix", s.webhook.RoutePrefix())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start webhook server: %w", err)
	}

	return nil
}

func (s *Server) handleVK(pub channel.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := s.readBody(w, r)
		if !ok {
			return
		}

		if gjson.GetBytes(body, "type").String() == event.VKTypeConfirmation {
			s.log.Info("Answered VK confirmation", "request_id", requestIDFromContext(r.Context()))
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = io.WriteString(w, s.webhook.Secret)
			return
		}

		update := &event.VKUpdate{}
		if err := json.Unmarshal(body, update); err != nil {
			s.log.Warn("Malformed VK update, using empty update", "request_id", requestIDFromContext(r.Context()), "error", err)
			update = &event.VKUpdate{}
		}

		if !s.publish(w, r, pub, update) {
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	}
}

func (s *Server) handleTelegram(pub channel.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !secretMatches(r.Header.Get(SecretHeader), s.webhook.Secret) {
			s.log.Warn("Rejected Telegram webhook call", "request_id", requestIDFromContext(r.Context()), "remote", r.RemoteAddr)
			w.WriteHeader(http.StatusForbidden)
			return
		}

		body, ok := s.readBody(w, r)
		if !ok {
			return
		}

		update := &event.TelegramUpdate{}
		if err := json.Unmarshal(body, &update.Update); err != nil {
			s.log.Warn("Malformed Telegram update, using empty update", "request_id", requestIDFromContext(r.Context()), "error", err)
			update = &event.TelegramUpdate{}
		}

		if !s.publish(w, r, pub, update) {
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

// readBody reads a bounded request body. Oversized or unreadable bodies get 400.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.log.Warn("Failed to read webhook body", "request_id", requestIDFromContext(r.Context()), "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return nil, false
	}

	return body, true
}

// publish normalizes raw and hands it to the queue, answering 503 when the
// queue is closed or the caller went away while waiting for space.
func (s *Server) publish(w http.ResponseWriter, r *http.Request, pub channel.Publisher, raw event.Raw) bool {
	ec := event.Normalize(raw, s.settings)
	if !pub.Publish(r.Context(), ec) {
		s.log.Warn("Dropped webhook update, queue unavailable", "request_id", requestIDFromContext(r.Context()), "platform", ec.Platform)
		w.WriteHeader(http.StatusServiceUnavailable)
		return false
	}

	s.log.Debug("Accepted webhook update", "request_id", requestIDFromContext(r.Context()), "platform", ec.Platform, "type", ec.Type)
	return true
}

func secretMatches(got, want string) bool {
	if got == "" || want == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFromContext(ctx context.Context) string {
	reqID, _ := ctx.Value(ctxKeyRequestID).(string)
	return reqID
}
