package event

import (
	"github.com/mymmrac/telego"
)

// TelegramUpdate is a Bot API update as decoded by telego.
type TelegramUpdate struct {
	telego.Update
}

func (*TelegramUpdate) Platform() Platform { return PlatformTelegram }
func (*TelegramUpdate) sealed()            {}
