package vk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"dualbot/pkg/api"
	"dualbot/pkg/channel/poll"
	"dualbot/pkg/config"
	"dualbot/pkg/event"

	"github.com/tidwall/gjson"
)

// Fetcher reads VK community events from the Bots Long Poll API.
type Fetcher struct {
	client  *api.Client
	groupID int64
	wait    int
	log     *slog.Logger
}

var (
	_ poll.Fetcher          = (*Fetcher)(nil)
	_ poll.SessionRefresher = (*Fetcher)(nil)
)

// NewFetcher builds a VK fetcher using client for both the method API and the long-poll server.
func NewFetcher(client *api.Client, cfg *config.Config, log *slog.Logger) (*Fetcher, error) {
	if client == nil {
		return nil, errors.New("api client is required")
	}
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.VK.GroupID <= 0 {
		return nil, errors.New("vk.group_id is required")
	}
	if log == nil {
		log = slog.Default()
	}

	wait := cfg.Polling.WaitSeconds
	if wait <= 0 {
		wait = config.DefaultWaitSeconds
	}

	return &Fetcher{
		client:  client,
		groupID: cfg.VK.GroupID,
		wait:    wait,
		log:     log.With("component", "channel.vk"),
	}, nil
}

// Platform reports VK.
func (f *Fetcher) Platform() event.Platform {
	return event.PlatformVK
}

// Refresh requests a new long-poll server and key. A cursor that already has
// a position keeps it so no events are skipped across refreshes.
func (f *Fetcher) Refresh(ctx context.Context, cursor poll.Cursor) (poll.Cursor, error) {
	resp, err := f.client.Call(ctx, event.PlatformVK, "groups.getLongPollServer", api.Params{}.AddInt("group_id", f.groupID))
	if err != nil {
		return cursor, fmt.Errorf("get long-poll server: %w", err)
	}

	server := resp.Get("server").String()
	key := resp.Get("key").String()
	if server == "" || key == "" {
		return cursor, errors.New("get long-poll server: response is missing server or key")
	}

	cursor.Server = server
	cursor.Key = key
	if cursor.Position == "" {
		cursor.Position = resp.Get("ts").String()
	}

	return cursor, nil
}

// Fetch waits for events after cursor.Position.
//
// failed=1 moves the cursor to the server's ts and returns no events.
// failed=2 and failed=3 return poll.ErrSessionExpired; for failed=3 the
// position is cleared so the refreshed session supplies a new one.
func (f *Fetcher) Fetch(ctx context.Context, cursor poll.Cursor) ([]event.Raw, poll.Cursor, error) {
	params := api.Params{}.
		Add("act", "a_check").
		Add("key", cursor.Key).
		Add("ts", cursor.Position).
		Add("wait", strconv.Itoa(f.wait))

	resp, err := f.client.Fetch(ctx, cursor.Server, params, time.Duration(f.wait+10)*time.Second)
	if err != nil {
		return nil, cursor, err
	}

	body := resp.Result()
	if failed := body.Get("failed"); failed.Exists() {
		switch failed.Int() {
		case 1:
			cursor.Position = body.Get("ts").String()
			return nil, cursor, nil
		case 2:
			return nil, cursor, fmt.Errorf("failed=2 key expired: %w", poll.ErrSessionExpired)
		case 3:
			cursor.Position = ""
			return nil, cursor, fmt.Errorf("failed=3 session lost: %w", poll.ErrSessionExpired)
		default:
			return nil, cursor, fmt.Errorf("long-poll failed with code %d", failed.Int())
		}
	}

	next := cursor
	if ts := body.Get("ts"); ts.Exists() {
		next.Position = ts.String()
	}

	updates := body.Get("updates").Array()
	raws := make([]event.Raw, 0, len(updates))
	for _, item := range updates {
		update, ok := f.decode(item)
		if !ok {
			continue
		}
		raws = append(raws, update)
	}

	return raws, next, nil
}

func (f *Fetcher) decode(item gjson.Result) (*event.VKUpdate, bool) {
	var update event.VKUpdate
	if err := json.Unmarshal([]byte(item.Raw), &update); err != nil {
		f.log.Warn("Dropping undecodable update", "error", err, "update", strings.TrimSpace(previewRaw(item.Raw)))
		return nil, false
	}

	return &update, true
}

const rawPreviewLimit = 240

func previewRaw(raw string) string {
	if len(raw) <= rawPreviewLimit {
		return raw
	}

	cut := rawPreviewLimit
	for cut > 0 && !utf8.RuneStart(raw[cut]) {
		cut--
	}

	return raw[:cut] + "..."
}
