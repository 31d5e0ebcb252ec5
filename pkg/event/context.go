package event

import (
	"dualbot/pkg/config"
)

// Platform identifies the chat service an event came from.
type Platform string

const (
	PlatformVK       Platform = "vk"
	PlatformTelegram Platform = "telegram"
)

func (p Platform) String() string { return string(p) }

// Type is the normalized kind of an inbound event.
type Type string

const (
	TypeMessageNew         Type = "message_new"
	TypeMessageEdit        Type = "message_edit"
	TypeInlineQuery        Type = "inline_query"
	TypeChosenInlineResult Type = "chosen_inline_result"
	TypeCallbackQuery      Type = "callback_query"
	TypeUnknown            Type = "unknown"
)

func (t Type) String() string { return string(t) }

// Context is the platform-independent view of one inbound event.
//
// A Context is created once by Normalize and then handed from producer to
// queue to worker to middleware chain. Only the current holder touches it, so
// the user data slot needs no locking. User data never outlives the event:
// every Context starts with an empty slot.
type Context struct {
	Text           string
	SenderID       int64
	ConversationID int64
	EventID        int64
	Type           Type
	Platform       Platform
	Raw            Raw
	Attachments    []Attachment

	// Settings is the shared process configuration. Handlers must not mutate it.
	Settings *config.Config

	data    map[string]any
	stopped bool
}

// Stop marks the context so that later handlers guarded by middleware.Skip
// leave it alone. The chain itself still runs every handler.
func (c *Context) Stop() {
	c.stopped = true
}

// Stopped reports whether an earlier handler called Stop.
func (c *Context) Stopped() bool {
	return c.stopped
}

// VK returns the decoded VK update when the event came from VK.
func (c *Context) VK() (*VKUpdate, bool) {
	update, ok := c.Raw.(*VKUpdate)
	return update, ok
}

// Telegram returns the decoded Telegram update when the event came from Telegram.
func (c *Context) Telegram() (*TelegramUpdate, bool) {
	update, ok := c.Raw.(*TelegramUpdate)
	return update, ok
}

// Key is a typed handle into the per-event user data slot.
type Key[T any] struct {
	name string
}

// NewKey declares a user data key. Keys with equal names address the same value.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Set stores value under the key for the lifetime of this event.
func (k Key[T]) Set(c *Context, value T) {
	if c.data == nil {
		c.data = make(map[string]any)
	}
	c.data[k.name] = value
}

// Get returns the stored value and whether one of type T was present.
func (k Key[T]) Get(c *Context) (T, bool) {
	value, ok := c.data[k.name].(T)
	return value, ok
}

// Delete clears the key.
func (k Key[T]) Delete(c *Context) {
	delete(c.data, k.name)
}
