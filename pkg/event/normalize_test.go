package event

import (
	"encoding/json"
	"testing"

	"dualbot/pkg/config"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/require"
)

func decodeVK(t *testing.T, body string) *VKUpdate {
	t.Helper()

	var update VKUpdate
	require.NoError(t, json.Unmarshal([]byte(body), &update))
	return &update
}

func decodeTelegram(t *testing.T, body string) *TelegramUpdate {
	t.Helper()

	var update telego.Update
	require.NoError(t, json.Unmarshal([]byte(body), &update))
	return &TelegramUpdate{Update: update}
}

func TestNormalizeVKMessageNew(t *testing.T) {
	t.Parallel()

	settings := &config.Config{}
	update := decodeVK(t, `{
	  "type": "message_new",
	  "group_id": 1,
	  "object": {
	    "message": {
	      "id": 77, "from_id": 10, "peer_id": 2000000001, "text": "/ping",
	      "attachments": [
	        {"type": "photo", "photo": {"id": 5, "owner_id": -1, "sizes": [
	          {"type": "s", "url": "https://vk.example/s.jpg", "width": 75, "height": 50},
	          {"type": "x", "url": "https://vk.example/x.jpg", "width": 604, "height": 403}
	        ]}},
	        {"type": "doc", "doc": {"id": 9, "owner_id": 10, "title": "cv.pdf", "url": "https://vk.example/doc", "access_key": "k"}},
	        {"type": "poll", "poll": {"id": 1}}
	      ]
	    }
	  }
	}`)

	ctx := Normalize(update, settings)

	require.Equal(t, TypeMessageNew, ctx.Type)
	require.Equal(t, PlatformVK, ctx.Platform)
	require.Equal(t, "/ping", ctx.Text)
	require.Equal(t, int64(10), ctx.SenderID)
	require.Equal(t, int64(2000000001), ctx.ConversationID)
	require.Equal(t, int64(77), ctx.EventID)
	require.Same(t, settings, ctx.Settings)

	require.Equal(t, []Attachment{
		{Kind: AttachmentPhoto, ID: "photo-1_5", URL: "https://vk.example/x.jpg"},
		{Kind: AttachmentDocument, ID: "doc10_9_k", URL: "https://vk.example/doc", Name: "cv.pdf"},
		{Kind: AttachmentOther, Name: "poll"},
	}, ctx.Attachments)

	raw, ok := ctx.VK()
	require.True(t, ok)
	require.Same(t, update, raw)
	_, ok = ctx.Telegram()
	require.False(t, ok)
}

func TestNormalizeVKMessageEdit(t *testing.T) {
	t.Parallel()

	ctx := Normalize(decodeVK(t, `{"type":"message_edit","object":{"id":3,"from_id":4,"peer_id":5,"text":"fixed"}}`), nil)

	require.Equal(t, TypeMessageEdit, ctx.Type)
	require.Equal(t, "fixed", ctx.Text)
	require.Equal(t, int64(4), ctx.SenderID)
	require.Equal(t, int64(5), ctx.ConversationID)
	require.Equal(t, int64(3), ctx.EventID)
}

func TestNormalizeVKMessageEvent(t *testing.T) {
	t.Parallel()

	ctx := Normalize(decodeVK(t, `{
	  "type": "message_event",
	  "object": {"user_id": 11, "peer_id": 12, "event_id": "abc", "payload": {"cmd":"buy"}, "conversation_message_id": 13}
	}`), nil)

	require.Equal(t, TypeCallbackQuery, ctx.Type)
	require.Equal(t, `{"cmd":"buy"}`, ctx.Text)
	require.Equal(t, int64(11), ctx.SenderID)
	require.Equal(t, int64(12), ctx.ConversationID)
	require.Equal(t, int64(13), ctx.EventID)
}

func TestNormalizeVKUnknownShapes(t *testing.T) {
	t.Parallel()

	bodies := []string{
		`{"type":"wall_post_new","object":{"id":1,"text":"post"}}`,
		`{"type":"message_new","object":"not an object"}`,
		`{"type":"message_new"}`,
		`{"type":"message_new","object":null}`,
		`{"type":"message_new","object":{}}`,
		`{"type":"message_new","object":{"message":null}}`,
		`{"type":"message_new","object":{"message":{"id":1,"text":"no peer"}}}`,
		`{"type":"message_edit","object":{"foo":1}}`,
		`{"type":"message_edit","object":null}`,
		`{"type":"message_event","object":null}`,
		`{"type":"message_event","object":{"user_id":11,"event_id":"abc"}}`,
		`{}`,
	}

	for _, body := range bodies {
		ctx := Normalize(decodeVK(t, body), nil)
		require.Equal(t, TypeUnknown, ctx.Type, body)
		require.Equal(t, PlatformVK, ctx.Platform, body)
		require.Empty(t, ctx.Text, body)
		require.Zero(t, ctx.SenderID, body)
		require.Zero(t, ctx.ConversationID, body)
		require.Zero(t, ctx.EventID, body)
		require.Empty(t, ctx.Attachments, body)
	}
}

func TestNormalizeTelegramMessage(t *testing.T) {
	t.Parallel()

	update := decodeTelegram(t, `{
	  "update_id": 100,
	  "message": {
	    "message_id": 5, "date": 1700000000,
	    "from": {"id": 42, "is_bot": false, "first_name": "A"},
	    "chat": {"id": -100, "type": "group"},
	    "caption": "look",
	    "photo": [
	      {"file_id": "small", "file_unique_id": "s", "width": 90, "height": 90},
	      {"file_id": "large", "file_unique_id": "l", "width": 800, "height": 800}
	    ]
	  }
	}`)

	ctx := Normalize(update, nil)

	require.Equal(t, TypeMessageNew, ctx.Type)
	require.Equal(t, PlatformTelegram, ctx.Platform)
	require.Equal(t, "look", ctx.Text)
	require.Equal(t, int64(42), ctx.SenderID)
	require.Equal(t, int64(-100), ctx.ConversationID)
	require.Equal(t, int64(5), ctx.EventID)
	require.Equal(t, []Attachment{{Kind: AttachmentPhoto, ID: "large"}}, ctx.Attachments)

	raw, ok := ctx.Telegram()
	require.True(t, ok)
	require.Equal(t, 100, raw.UpdateID)
}

func TestNormalizeTelegramEditedMessage(t *testing.T) {
	t.Parallel()

	ctx := Normalize(decodeTelegram(t, `{
	  "update_id": 1,
	  "edited_message": {"message_id": 8, "date": 1, "from": {"id": 3, "is_bot": false, "first_name": "B"}, "chat": {"id": 3, "type": "private"}, "text": "edit"}
	}`), nil)

	require.Equal(t, TypeMessageEdit, ctx.Type)
	require.Equal(t, "edit", ctx.Text)
	require.Equal(t, int64(8), ctx.EventID)
}

func TestNormalizeTelegramInlineAndChosen(t *testing.T) {
	t.Parallel()

	inline := Normalize(decodeTelegram(t, `{
	  "update_id": 2,
	  "inline_query": {"id": "q1", "from": {"id": 9, "is_bot": false, "first_name": "C"}, "query": "cats", "offset": ""}
	}`), nil)
	require.Equal(t, TypeInlineQuery, inline.Type)
	require.Equal(t, "cats", inline.Text)
	require.Equal(t, int64(9), inline.SenderID)
	require.Zero(t, inline.ConversationID)
	require.Zero(t, inline.EventID)

	chosen := Normalize(decodeTelegram(t, `{
	  "update_id": 3,
	  "chosen_inline_result": {"result_id": "r1", "from": {"id": 9, "is_bot": false, "first_name": "C"}, "query": "dogs"}
	}`), nil)
	require.Equal(t, TypeChosenInlineResult, chosen.Type)
	require.Equal(t, "dogs", chosen.Text)
	require.Equal(t, int64(9), chosen.SenderID)
}

func TestNormalizeTelegramCallbackQuery(t *testing.T) {
	t.Parallel()

	ctx := Normalize(decodeTelegram(t, `{
	  "update_id": 4,
	  "callback_query": {
	    "id": "cb1", "chat_instance": "ci", "data": "buy",
	    "from": {"id": 15, "is_bot": false, "first_name": "D"},
	    "message": {"message_id": 21, "date": 1, "chat": {"id": 16, "type": "private"}, "text": "menu"}
	  }
	}`), nil)

	require.Equal(t, TypeCallbackQuery, ctx.Type)
	require.Equal(t, "buy", ctx.Text)
	require.Equal(t, int64(15), ctx.SenderID)
	require.Equal(t, int64(16), ctx.ConversationID)
	require.Equal(t, int64(21), ctx.EventID)
}

func TestNormalizeTelegramUnknown(t *testing.T) {
	t.Parallel()

	for _, raw := range []Raw{&TelegramUpdate{}, decodeTelegram(t, `{"update_id": 5, "poll": {"id": "p"}}`)} {
		ctx := Normalize(raw, nil)
		require.Equal(t, TypeUnknown, ctx.Type)
		require.Equal(t, PlatformTelegram, ctx.Platform)
		require.Empty(t, ctx.Text)
		require.Zero(t, ctx.SenderID)
		require.Zero(t, ctx.ConversationID)
		require.Zero(t, ctx.EventID)
	}
}

func TestNormalizeNilInput(t *testing.T) {
	t.Parallel()

	require.Equal(t, TypeUnknown, Normalize(nil, nil).Type)
	require.Equal(t, TypeUnknown, Normalize((*VKUpdate)(nil), nil).Type)
	require.Equal(t, TypeUnknown, Normalize((*TelegramUpdate)(nil), nil).Type)
}

func TestNormalizeIsPure(t *testing.T) {
	t.Parallel()

	raws := []Raw{
		decodeVK(t, `{"type":"message_new","object":{"message":{"id":1,"from_id":2,"peer_id":3,"text":"hi"}}}`),
		decodeTelegram(t, `{"update_id":1,"message":{"message_id":1,"date":1,"chat":{"id":1,"type":"private"},"text":"hi"}}`),
		&VKUpdate{Type: "group_join"},
	}

	for _, raw := range raws {
		first := Normalize(raw, nil)
		second := Normalize(raw, nil)
		require.Equal(t, first, second)
		require.NotSame(t, first, second)
	}
}
