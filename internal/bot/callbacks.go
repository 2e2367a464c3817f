package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cmdInfo        = "info"
	cmdSubscribe   = "subscribe"
	cmdUnsubscribe = "unsubscribe"

	actionUnsubscribeConfirm = "unsubscribe_confirm"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	data := cb.Data
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	action, idStr, ok := strings.Cut(data, ":")
	if !ok {
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return
	}

	b.log.Info("callback",
		"action", action,
		"id", id,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cmdInfo:
		b.handleInfo(ctx, chatID, idStr)
	case cmdSubscribe:
		b.handleSubscribe(ctx, chatID, idStr)
	case actionUnsubscribeConfirm:
		m, err := b.store.GetManga(ctx, id)
		if err != nil {
			b.reply(chatID, fmt.Sprintf("Manga #%d not found.", id))
			return
		}
		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Unsubscribe from #%d \"%s\"?", id, m.Name))
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Yes, unsubscribe", callbackData(cmdUnsubscribe, id)),
				tgbotapi.NewInlineKeyboardButtonData("Cancel", "noop:0"),
			),
		)
		b.send(msg)
	case cmdUnsubscribe:
		b.handleUnsubscribe(ctx, chatID, idStr)
	}
}

func callbackData(action string, id int64) string {
	return fmt.Sprintf("%s:%d", action, id)
}
