package event

import (
	"dualbot/pkg/config"

	"github.com/mymmrac/telego"
)

// Normalize collapses a decoded platform update into a Context.
//
// It is pure and total: the same update always yields an equal Context, and
// any update without a recognized sub-event becomes TypeUnknown with zero
// identifiers and empty text. A nil raw update is treated as unknown VK input.
func Normalize(raw Raw, settings *config.Config) *Context {
	switch update := raw.(type) {
	case *VKUpdate:
		return normalizeVK(update, settings)
	case *TelegramUpdate:
		return normalizeTelegram(update, settings)
	default:
		return &Context{Type: TypeUnknown, Platform: PlatformVK, Settings: settings}
	}
}

// normalizeVK checks message_new, message_edit and message_event in that order.
func normalizeVK(update *VKUpdate, settings *config.Config) *Context {
	ctx := &Context{
		Type:     TypeUnknown,
		Platform: PlatformVK,
		Raw:      update,
		Settings: settings,
	}
	if update == nil {
		ctx.Raw = &VKUpdate{}
		return ctx
	}

	switch {
	case update.MessageNew != nil && update.MessageNew.Message != nil:
		ctx.Type = TypeMessageNew
		fillVKMessage(ctx, update.MessageNew.Message)
	case update.MessageEdit != nil:
		ctx.Type = TypeMessageEdit
		fillVKMessage(ctx, update.MessageEdit)
	case update.MessageEvent != nil:
		object := update.MessageEvent
		ctx.Type = TypeCallbackQuery
		ctx.Text = string(object.Payload)
		ctx.SenderID = object.UserID
		ctx.ConversationID = object.PeerID
		ctx.EventID = object.ConversationMessageID
	}

	return ctx
}

func fillVKMessage(ctx *Context, message *VKMessage) {
	ctx.Text = message.Text
	ctx.SenderID = message.FromID
	ctx.ConversationID = message.PeerID
	ctx.EventID = message.ID
	ctx.Attachments = vkAttachments(message.Attachments)
}

// normalizeTelegram checks message, edited_message, inline_query,
// chosen_inline_result and callback_query in that order.
func normalizeTelegram(update *TelegramUpdate, settings *config.Config) *Context {
	ctx := &Context{
		Type:     TypeUnknown,
		Platform: PlatformTelegram,
		Raw:      update,
		Settings: settings,
	}
	if update == nil {
		ctx.Raw = &TelegramUpdate{}
		return ctx
	}

	switch {
	case update.Message != nil:
		ctx.Type = TypeMessageNew
		fillTelegramMessage(ctx, update.Message)
	case update.EditedMessage != nil:
		ctx.Type = TypeMessageEdit
		fillTelegramMessage(ctx, update.EditedMessage)
	case update.InlineQuery != nil:
		ctx.Type = TypeInlineQuery
		ctx.Text = update.InlineQuery.Query
		ctx.SenderID = update.InlineQuery.From.ID
	case update.ChosenInlineResult != nil:
		ctx.Type = TypeChosenInlineResult
		ctx.Text = update.ChosenInlineResult.Query
		ctx.SenderID = update.ChosenInlineResult.From.ID
	case update.CallbackQuery != nil:
		query := update.CallbackQuery
		ctx.Type = TypeCallbackQuery
		ctx.Text = query.Data
		ctx.SenderID = query.From.ID
		if query.Message != nil {
			ctx.ConversationID = query.Message.GetChat().ID
			ctx.EventID = int64(query.Message.GetMessageID())
		}
	}

	return ctx
}

func fillTelegramMessage(ctx *Context, message *telego.Message) {
	ctx.Text = message.Text
	if ctx.Text == "" {
		ctx.Text = message.Caption
	}
	if message.From != nil {
		ctx.SenderID = message.From.ID
	}
	ctx.ConversationID = message.Chat.ID
	ctx.EventID = int64(message.MessageID)
	ctx.Attachments = telegramAttachments(message)
}
