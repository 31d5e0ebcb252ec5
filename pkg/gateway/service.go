package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"dualbot/pkg/bus"
	"dualbot/pkg/channel"
	"dualbot/pkg/config"
	"dualbot/pkg/event"
	"dualbot/pkg/worker"

	"github.com/go-chi/chi/v5"
)

const defaultStatusHost = "0.0.0.0"

// Service runs the ingestion sources, the dispatch queue and the worker pool
// together, plus an optional status server.
type Service struct {
	cfg     *config.Config
	log     *slog.Logger
	queue   *bus.Queue
	pool    *worker.Pool
	sources []channel.Source

	mu           sync.RWMutex
	startedAt    time.Time
	sourceStates map[string]sourceState
	platforms    map[event.Platform]*platformCounters
}

type sourceState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type platformCounters struct {
	Received  int64 `json:"received"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

type queueStatus struct {
	Length   int `json:"length"`
	Capacity int `json:"capacity"`
}

type statusResponse struct {
	Status        string                              `json:"status"`
	UptimeSeconds int64                               `json:"uptime_seconds"`
	Workers       int                                 `json:"workers"`
	Queue         queueStatus                         `json:"queue"`
	Sources       map[string]sourceState              `json:"sources"`
	Platforms     map[event.Platform]platformCounters `json:"platforms"`
}

// NewService wires sources to queue and pool.
func NewService(cfg *config.Config, queue *bus.Queue, pool *worker.Pool, sources []channel.Source, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if queue == nil {
		return nil, errors.New("queue is required")
	}
	if pool == nil {
		return nil, errors.New("worker pool is required")
	}
	if len(sources) == 0 {
		return nil, errors.New("at least one source is required")
	}
	if log == nil {
		log = slog.Default()
	}

	states := make(map[string]sourceState, len(sources))
	for _, source := range sources {
		states[source.Name()] = sourceState{}
	}

	return &Service{
		cfg:          cfg,
		log:          log.With("component", "gateway.service"),
		queue:        queue,
		pool:         pool,
		sources:      sources,
		sourceStates: states,
		platforms: map[event.Platform]*platformCounters{
			event.PlatformVK:       {},
			event.PlatformTelegram: {},
		},
	}, nil
}

// Run blocks until ctx ends or a source or the status server fails.
// It returns without draining contexts that are still queued or in flight.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	events, unsubscribe := s.queue.SubscribeEvents(ctx, 0)
	defer unsubscribe()
	go s.track(events)

	serverErrors := make(chan error, 1)
	if s.cfg.Status.Port > 0 {
		go s.runStatusServer(ctx, serverErrors)
	}

	go s.pool.Run(ctx)

	errCh := make(chan error, len(s.sources))
	for _, source := range s.sources {
		s.setSourceState(source.Name(), sourceState{Running: true})

		go func() {
			err := source.Run(ctx, s.queue)
			s.setSourceState(source.Name(), sourceState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("run %s source: %w", source.Name(), err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErrors:
		return err
	case err := <-errCh:
		return err
	}
}

// track folds pipeline events into per-platform counters until events closes.
func (s *Service) track(events <-chan bus.Event) {
	for ev := range events {
		s.mu.Lock()
		counters, ok := s.platforms[ev.Platform]
		if !ok {
			counters = &platformCounters{}
			s.platforms[ev.Platform] = counters
		}
		switch ev.Type {
		case bus.EventReceived:
			counters.Received++
		case bus.EventHandlerCompleted:
			counters.Completed++
		case bus.EventHandlerFailed:
			counters.Failed++
		}
		s.mu.Unlock()
	}
}

func (s *Service) runStatusServer(ctx context.Context, errCh chan<- error) {
	host := strings.TrimSpace(s.cfg.Status.Host)
	if host == "" {
		host = defaultStatusHost
	}

	addr := host + ":" + strconv.Itoa(s.cfg.Status.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.statusRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Status server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start status server: %w", err)
	}
}

func (s *Service) statusRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/statusz", s.handleStatus)
	return r
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := "ready"
	if !s.isReady() {
		status = "not_ready"
	}

	s.respondStatus(w, http.StatusOK, status)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	sources := make(map[string]sourceState, len(s.sourceStates))
	for name, state := range s.sourceStates {
		sources[name] = state
	}

	platforms := make(map[event.Platform]platformCounters, len(s.platforms))
	for platform, counters := range s.platforms {
		platforms[platform] = *counters
	}

	return statusResponse{
		Status:        status,
		UptimeSeconds: uptime,
		Workers:       s.pool.Size(),
		Queue:         queueStatus{Length: s.queue.Len(), Capacity: s.queue.Cap()},
		Sources:       sources,
		Platforms:     platforms,
	}
}

// isReady reports whether every source is running.
func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.sourceStates) == 0 {
		return false
	}

	for _, state := range s.sourceStates {
		if !state.Running {
			return false
		}
	}

	return true
}

func (s *Service) setSourceState(name string, state sourceState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sourceStates[name] = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
