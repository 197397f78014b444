package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cmdCheck = "check"

	cbUnsubscribe = "unsubscribe"
	cbCancel      = "noop"
	cbCheck       = "check"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	attrs := []any{"data", cb.Data, "chat_id", chatID}
	if cb.From != nil {
		attrs = append(attrs, "user_id", cb.From.ID, "username", cb.From.UserName)
	}
	b.log.Info("callback", attrs...)

	switch cb.Data {
	case cbUnsubscribe:
		b.unsubscribe(ctx, chatID)
	case cbCheck:
		b.handleCheck(ctx, chatID)
	case cbCancel:
		b.reply(chatID, "Okay, you stay subscribed.")
	}
}
