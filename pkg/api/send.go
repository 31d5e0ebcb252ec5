package api

import (
	"context"
	"fmt"

	"dualbot/pkg/event"
)

// Go starts send as a detached unit of work and returns a channel that
// receives its single result.
//
// The caller is not expected to wait. A middleware handler that calls Go and
// returns has not observed delivery; chain completion is not an
// acknowledgement that the send happened or succeeded.
func Go(ctx context.Context, send func(context.Context) error) <-chan error {
	result := make(chan error, 1)

	go func() {
		defer close(result)
		defer func() {
			if recovered := recover(); recovered != nil {
				result <- fmt.Errorf("send panic: %v", recovered)
			}
		}()

		result <- send(ctx)
	}()

	return result
}

// SendText posts text to a conversation and waits for the platform's answer.
func (c *Client) SendText(ctx context.Context, platform event.Platform, conversationID int64, text string) (Response, error) {
	switch platform {
	case event.PlatformVK:
		return c.Call(ctx, platform, "messages.send", Params{}.
			AddInt("peer_id", conversationID).
			Add("message", text).
			Add("random_id", "0"))
	case event.PlatformTelegram:
		return c.Call(ctx, platform, "sendMessage", Params{}.
			AddInt("chat_id", conversationID).
			Add("text", text))
	default:
		return Response{}, fmt.Errorf("unsupported platform %q", platform)
	}
}

// Reply sends text back to the conversation ec came from without blocking
// the caller. See Go for the delivery contract.
func (c *Client) Reply(ctx context.Context, ec *event.Context, text string) <-chan error {
	platform, conversationID := ec.Platform, ec.ConversationID

	return Go(ctx, func(ctx context.Context) error {
		_, err := c.SendText(ctx, platform, conversationID, text)
		if err != nil {
			c.log.Warn("Reply failed", "platform", platform, "conversation_id", conversationID, "category", CategoryFromError(err), "error", err)
		}
		return err
	})
}
