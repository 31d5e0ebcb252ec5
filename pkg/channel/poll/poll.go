package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dualbot/pkg/channel"
	"dualbot/pkg/config"
	"dualbot/pkg/event"
)

// ErrSessionExpired is returned by a Fetcher when the server-side session is
// gone. The poller refreshes the session before the next fetch.
var ErrSessionExpired = errors.New("long-poll session expired")

// Cursor is the resume position of one long-poll loop. Only that loop reads or writes it.
type Cursor struct {
	// Position is an opaque server marker such as the VK "ts" value.
	Position string
	// Offset is a numeric resume offset such as the next Telegram update_id.
	Offset int64
	// Server and Key hold session metadata for transports that need it.
	// Only SessionRefresher.Refresh sets them; the poller carries them across
	// fetches whatever cursor Fetch returns.
	Server string
	Key    string
}

// Fetcher retrieves the next batch of updates after cursor and returns the
// cursor to use once they are dispatched.
type Fetcher interface {
	Platform() event.Platform
	Fetch(ctx context.Context, cursor Cursor) ([]event.Raw, Cursor, error)
}

// SessionRefresher is implemented by fetchers whose session expires
// server-side. Refresh returns cursor with fresh session metadata.
type SessionRefresher interface {
	Refresh(ctx context.Context, cursor Cursor) (Cursor, error)
}

// Poller drives one platform's long-poll loop: fetch, normalize, publish,
// then advance the cursor.
type Poller struct {
	fetcher   Fetcher
	refresher SessionRefresher
	settings  *config.Config

	refreshInterval time.Duration
	errorBackoff    time.Duration

	log *slog.Logger
}

var _ channel.Source = (*Poller)(nil)

// New wraps fetcher in a poll loop. Fetchers implementing SessionRefresher
// get a refresh at start and then every polling.refresh_interval_seconds.
func New(fetcher Fetcher, settings *config.Config, log *slog.Logger) (*Poller, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if settings == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		log = slog.Default()
	}

	p := &Poller{
		fetcher:         fetcher,
		settings:        settings,
		refreshInterval: settings.Polling.RefreshInterval(),
		errorBackoff:    settings.Polling.ErrorBackoff(),
		log:             log.With("component", "channel.poll", "platform", fetcher.Platform()),
	}
	if refresher, ok := fetcher.(SessionRefresher); ok {
		p.refresher = refresher
	}
	if p.refreshInterval <= 0 {
		p.refreshInterval = config.DefaultRefreshIntervalSeconds * time.Second
	}
	if p.errorBackoff <= 0 {
		p.errorBackoff = config.DefaultErrorBackoffMillis * time.Millisecond
	}

	return p, nil
}

// Name returns the source identifier used in logs and status output.
func (p *Poller) Name() string {
	return "poll." + p.fetcher.Platform().String()
}

// Run polls until ctx ends. Only a failed initial session setup is returned
// as an error; every later failure is logged and retried.
func (p *Poller) Run(ctx context.Context, pub channel.Publisher) error {
	if pub == nil {
		return errors.New("publisher is required")
	}

	var cursor Cursor
	if p.refresher != nil {
		refreshed, err := p.refresher.Refresh(ctx, cursor)
		if err != nil {
			return fmt.Errorf("open %s long-poll session: %w", p.fetcher.Platform(), err)
		}
		cursor = refreshed
	}

	var refreshTick <-chan time.Time
	if p.refresher != nil {
		ticker := time.NewTicker(p.refreshInterval)
		defer ticker.Stop()
		refreshTick = ticker.C
	}

	p.log.Info("Long polling started")

	for {
		if ctx.Err() != nil {
			return nil
		}

		select {
		case <-refreshTick:
			cursor = p.refresh(ctx, cursor)
		default:
		}

		updates, next, err := p.fetcher.Fetch(ctx, cursor)
		next.Server, next.Key = cursor.Server, cursor.Key
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrSessionExpired) && p.refresher != nil {
				p.log.Info("Long-poll session expired, refreshing")
				cursor = p.refresh(ctx, next)
				continue
			}

			p.log.Warn("Fetch failed, treating as empty batch", "error", err)
			if !sleep(ctx, p.errorBackoff) {
				return nil
			}
			continue
		}

		for _, raw := range updates {
			if !pub.Publish(ctx, event.Normalize(raw, p.settings)) {
				return nil
			}
		}
		if len(updates) > 0 {
			p.log.Debug("Dispatched batch", "updates", len(updates))
		}

		cursor = next
	}
}

// refresh replaces session metadata, keeping the old cursor when it fails.
func (p *Poller) refresh(ctx context.Context, cursor Cursor) Cursor {
	refreshed, err := p.refresher.Refresh(ctx, cursor)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn("Session refresh failed", "error", err)
			sleep(ctx, p.errorBackoff)
		}
		return cursor
	}

	p.log.Debug("Session refreshed")
	return refreshed
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
