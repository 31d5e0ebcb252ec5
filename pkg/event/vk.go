package event

import (
	"encoding/json"
)

// VK callback/long-poll update types handled by the normalizer.
const (
	VKTypeConfirmation = "confirmation"
	VKTypeMessageNew   = "message_new"
	VKTypeMessageEdit  = "message_edit"
	VKTypeMessageEvent = "message_event"
)

// Raw is the decoded platform update a Context was built from.
// It is implemented by *VKUpdate and *TelegramUpdate only.
type Raw interface {
	Platform() Platform
	sealed()
}

// VKUpdate is one Bots Long Poll / Callback API update.
//
// Only the object shapes the normalizer understands are decoded; the raw
// object is kept for handlers that need other update types.
type VKUpdate struct {
	Type    string          `json:"type"`
	GroupID int64           `json:"group_id,omitempty"`
	EventID string          `json:"event_id,omitempty"`
	Version string          `json:"v,omitempty"`
	Secret  string          `json:"secret,omitempty"`
	Object  json.RawMessage `json:"object,omitempty"`

	MessageNew   *VKMessageNew   `json:"-"`
	MessageEdit  *VKMessage      `json:"-"`
	MessageEvent *VKMessageEvent `json:"-"`
}

func (*VKUpdate) Platform() Platform { return PlatformVK }
func (*VKUpdate) sealed()            {}

// UnmarshalJSON decodes the envelope and then the object matching Type.
// An object that is null, malformed or missing its peer leaves the typed
// field nil, so the update normalizes to unknown.
func (u *VKUpdate) UnmarshalJSON(data []byte) error {
	type envelope VKUpdate
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	*u = VKUpdate(env)

	if len(u.Object) == 0 || string(u.Object) == "null" {
		return nil
	}

	switch u.Type {
	case VKTypeMessageNew:
		var object VKMessageNew
		if json.Unmarshal(u.Object, &object) == nil && object.Message.valid() {
			u.MessageNew = &object
		}
	case VKTypeMessageEdit:
		var object *VKMessage
		if json.Unmarshal(u.Object, &object) == nil && object.valid() {
			u.MessageEdit = object
		}
	case VKTypeMessageEvent:
		var object *VKMessageEvent
		if json.Unmarshal(u.Object, &object) == nil && object != nil && object.UserID != 0 && object.PeerID != 0 {
			u.MessageEvent = object
		}
	}

	return nil
}

// VKMessageNew is the message_new object.
type VKMessageNew struct {
	Message    *VKMessage      `json:"message"`
	ClientInfo json.RawMessage `json:"client_info,omitempty"`
}

// VKMessage is a community message.
type VKMessage struct {
	ID                    int64          `json:"id"`
	ConversationMessageID int64          `json:"conversation_message_id,omitempty"`
	Date                  int64          `json:"date"`
	FromID                int64          `json:"from_id"`
	PeerID                int64          `json:"peer_id"`
	Text                  string         `json:"text"`
	Payload               string         `json:"payload,omitempty"`
	Attachments           []VKAttachment `json:"attachments,omitempty"`
	FwdMessages           []VKMessage    `json:"fwd_messages,omitempty"`
	ReplyMessage          *VKMessage     `json:"reply_message,omitempty"`
	Ref                   string         `json:"ref,omitempty"`
	RefSource             string         `json:"ref_source,omitempty"`
}

func (m *VKMessage) valid() bool {
	return m != nil && m.PeerID != 0
}

// VKMessageEvent is the message_event object sent for callback buttons.
type VKMessageEvent struct {
	UserID                int64           `json:"user_id"`
	PeerID                int64           `json:"peer_id"`
	EventID               string          `json:"event_id"`
	Payload               json.RawMessage `json:"payload,omitempty"`
	ConversationMessageID int64           `json:"conversation_message_id"`
}

// VKAttachment is one message attachment. Type names the populated field.
type VKAttachment struct {
	Type    string     `json:"type"`
	Photo   *VKPhoto   `json:"photo,omitempty"`
	Video   *VKMedia   `json:"video,omitempty"`
	Audio   *VKMedia   `json:"audio,omitempty"`
	Doc     *VKDoc     `json:"doc,omitempty"`
	Link    *VKLink    `json:"link,omitempty"`
	Sticker *VKSticker `json:"sticker,omitempty"`
	Wall    *VKMedia   `json:"wall,omitempty"`
}

// VKPhoto is a photo attachment.
type VKPhoto struct {
	ID        int64         `json:"id"`
	OwnerID   int64         `json:"owner_id"`
	AccessKey string        `json:"access_key,omitempty"`
	Text      string        `json:"text,omitempty"`
	Sizes     []VKPhotoSize `json:"sizes,omitempty"`
}

// VKPhotoSize is one rendition of a photo.
type VKPhotoSize struct {
	Type   string `json:"type"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// VKMedia covers video, audio and wall attachments, which share an id/owner pair.
type VKMedia struct {
	ID        int64  `json:"id"`
	OwnerID   int64  `json:"owner_id"`
	AccessKey string `json:"access_key,omitempty"`
	Title     string `json:"title,omitempty"`
	URL       string `json:"url,omitempty"`
}

// VKDoc is a document attachment.
type VKDoc struct {
	ID        int64  `json:"id"`
	OwnerID   int64  `json:"owner_id"`
	AccessKey string `json:"access_key,omitempty"`
	Title     string `json:"title"`
	Ext       string `json:"ext"`
	URL       string `json:"url"`
	Size      int64  `json:"size"`
}

// VKLink is a link attachment.
type VKLink struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// VKSticker is a sticker attachment.
type VKSticker struct {
	ProductID int64 `json:"product_id"`
	StickerID int64 `json:"sticker_id"`
}
