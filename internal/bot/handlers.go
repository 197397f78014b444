package bot

import (
	"context"
	"fmt"
	"slices"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	added, err := b.store.AddSubscriber(ctx, chatID)
	if err != nil {
		b.log.Error("add subscriber", "chat_id", chatID, "error", err)
		b.reply(chatID, "Could not subscribe right now, please try again later.")
		return
	}
	if !added {
		b.reply(chatID, "👀 You're already subscribed.")
		return
	}
	b.log.Info("subscribed", "chat_id", chatID)
	b.reply(chatID, "✅ You are now subscribed to apartment alerts!\n\n"+FormatCriteria(b.cfg)+"\n\nUse /stop to unsubscribe, /help for all commands.")
}

func (b *Bot) handleStop(ctx context.Context, chatID int64) {
	subscribed, err := b.isSubscribed(ctx, chatID)
	if err != nil {
		b.log.Error("list subscribers", "error", err)
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if !subscribed {
		b.reply(chatID, "You are not subscribed. Use /start to subscribe.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, "Stop apartment alerts for this chat?")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes, unsubscribe", cbUnsubscribe),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", cbCancel),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send unsubscribe confirmation", "error", err)
	}
}

func (b *Bot) unsubscribe(ctx context.Context, chatID int64) {
	removed, err := b.store.RemoveSubscriber(ctx, chatID)
	if err != nil {
		b.log.Error("remove subscriber", "chat_id", chatID, "error", err)
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if !removed {
		b.reply(chatID, "You are not subscribed.")
		return
	}
	b.log.Info("unsubscribed", "chat_id", chatID)
	b.reply(chatID, "🔕 Unsubscribed. Use /start to subscribe again.")
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	subs, err := b.store.ListSubscribers(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	msg := tgbotapi.NewMessage(chatID, FormatStatus(b.cfg, slices.Contains(subs, chatID), len(subs)))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Check now", cbCheck),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send status", "error", err)
	}
}

func (b *Bot) handleCheck(ctx context.Context, chatID int64) {
	if b.checker == nil {
		b.reply(chatID, "Checking is not available right now.")
		return
	}
	n, err := b.checker.Check(ctx)
	if err != nil {
		b.log.Error("manual check", "chat_id", chatID, "error", err)
		b.reply(chatID, fmt.Sprintf("Check failed: %v", err))
		return
	}
	if n == 0 {
		b.reply(chatID, "No new offers.")
		return
	}
	b.reply(chatID, fmt.Sprintf("Found %d new offer(s).", n))
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Apartment alerts for inberlinwohnen.de

/start — subscribe this chat
/stop — unsubscribe this chat
/status — subscription and search criteria
/check — check for new offers now
/help — this message`)
}

func (b *Bot) isSubscribed(ctx context.Context, chatID int64) (bool, error) {
	subs, err := b.store.ListSubscribers(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(subs, chatID), nil
}
