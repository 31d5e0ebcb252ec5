package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dualbot/pkg/channel/poll"
	"dualbot/pkg/config"
	"dualbot/pkg/event"

	"github.com/mymmrac/telego"
)

// NewBot builds a telego bot for the configured token and API server.
func NewBot(cfg config.TelegramConfig) (*telego.Bot, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("telegram.token is required")
	}

	options := []telego.BotOption{telego.WithDiscardLogger()}
	if server := strings.TrimRight(strings.TrimSpace(cfg.APIServer), "/"); server != "" {
		options = append(options, telego.WithAPIServer(server))
	}

	bot, err := telego.NewBot(token, options...)
	if err != nil {
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}

	return bot, nil
}

// Fetcher reads Telegram updates with getUpdates. The cursor offset is the
// next update_id to request.
type Fetcher struct {
	bot     *telego.Bot
	wait    int
	limit   int
	timeout time.Duration
}

var _ poll.Fetcher = (*Fetcher)(nil)

// NewFetcher builds a long-poll fetcher on bot.
func NewFetcher(bot *telego.Bot, cfg *config.Config) (*Fetcher, error) {
	if bot == nil {
		return nil, errors.New("telegram bot is required")
	}
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	wait := cfg.Polling.WaitSeconds
	if wait <= 0 {
		wait = config.DefaultWaitSeconds
	}
	limit := cfg.Polling.Limit
	if limit <= 0 {
		limit = config.DefaultPollLimit
	}

	return &Fetcher{
		bot:     bot,
		wait:    wait,
		limit:   limit,
		timeout: time.Duration(wait+10) * time.Second,
	}, nil
}

// Platform reports Telegram.
func (f *Fetcher) Platform() event.Platform {
	return event.PlatformTelegram
}

// Fetch returns updates starting at cursor.Offset. The returned cursor points
// past the highest update_id received.
func (f *Fetcher) Fetch(ctx context.Context, cursor poll.Cursor) ([]event.Raw, poll.Cursor, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	updates, err := f.bot.GetUpdates(fetchCtx, &telego.GetUpdatesParams{
		Offset:  int(cursor.Offset),
		Limit:   f.limit,
		Timeout: f.wait,
	})
	if err != nil {
		return nil, cursor, fmt.Errorf("get updates: %w", err)
	}

	next := cursor
	raws := make([]event.Raw, 0, len(updates))
	for _, update := range updates {
		raws = append(raws, &event.TelegramUpdate{Update: update})
		if offset := int64(update.UpdateID) + 1; offset > next.Offset {
			next.Offset = offset
		}
	}

	return raws, next, nil
}

// Registrar points Telegram's push delivery at this service and removes it again.
type Registrar struct {
	bot    *telego.Bot
	url    string
	secret string
	log    *slog.Logger
}

// NewRegistrar builds a registrar for the webhook block of cfg.
func NewRegistrar(bot *telego.Bot, webhook config.WebhookConfig, log *slog.Logger) (*Registrar, error) {
	if bot == nil {
		return nil, errors.New("telegram bot is required")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Registrar{
		bot:    bot,
		url:    webhook.TelegramURL(),
		secret: webhook.Secret,
		log:    log.With("component", "channel.telegram"),
	}, nil
}

// URL returns the callback URL handed to Telegram.
func (r *Registrar) URL() string {
	return r.url
}

// Register calls setWebhook with the callback URL and shared secret.
func (r *Registrar) Register(ctx context.Context) error {
	if err := r.bot.SetWebhook(ctx, &telego.SetWebhookParams{
		URL:         r.url,
		SecretToken: r.secret,
	}); err != nil {
		return fmt.Errorf("set telegram webhook: %w", err)
	}

	r.log.Info("Telegram webhook registered", "url", r.url)
	return nil
}

// Deregister calls deleteWebhook.
func (r *Registrar) Deregister(ctx context.Context) error {
	if err := r.bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{}); err != nil {
		return fmt.Errorf("delete telegram webhook: %w", err)
	}

	r.log.Info("Telegram webhook removed")
	return nil
}
