package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"kmanga/internal/model"
	"kmanga/internal/storage"
)

const (
	searchPageSize = 5
	suggestLimit   = 3
	latestLimit    = 10
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to kmanga!

Find a manga and get its new issues delivered here.

Quick start:
1. /search <name> — find a manga
2. /subscribe <id> — follow it
3. /frequency <id> <n> — limit issues per day

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Catalog:
/search <name> — search by name, alternative name or description
/latest — recently updated manga
/info <id> — manga details

Subscriptions:
/subscribe <id> — follow a manga
/unsubscribe <id> — stop following a manga
/list — show your subscriptions
/pause <id> — stop deliveries for a while
/resume <id> — restart deliveries
/frequency <id> <n> — deliver at most n issues per day`)
}

func (b *Bot) handleSearch(chatID int64, term string) {
	if term == "" {
		b.reply(chatID, "Usage: /search <name>")
		return
	}

	res := b.index.Search(term)
	if res.Len() == 0 {
		b.reply(chatID, FormatSuggestions(term, b.index.Suggest(term, suggestLimit)))
		return
	}

	hits := res.Page(0, searchPageSize).Hits()
	msg := tgbotapi.NewMessage(chatID, FormatSearchResults(term, hits, res.Len()))
	msg.DisableWebPagePreview = true
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(hits))
	for _, h := range hits {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("#%d info", h.Manga.ID), callbackData(cmdInfo, h.Manga.ID)),
			tgbotapi.NewInlineKeyboardButtonData("Subscribe", callbackData(cmdSubscribe, h.Manga.ID)),
		))
	}
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(msg)
}

func (b *Bot) handleLatest(ctx context.Context, chatID int64) {
	list, err := b.store.LatestManga(ctx, latestLimit)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatLatest(list))
}

func (b *Bot) handleInfo(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /info <id>")
		return
	}

	m, err := b.store.GetManga(ctx, id)
	if err != nil || m.Status == model.MangaDeleted {
		b.reply(chatID, fmt.Sprintf("Manga #%d not found.", id))
		return
	}

	issues, err := b.store.ListIssues(ctx, id)
	if err != nil {
		b.log.Error("list issues", "manga_id", id, "error", err)
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	subs, err := b.store.Subscriptions(ctx, storage.SubscriptionFilter{UserID: chatID, MangaID: id})
	if err != nil {
		b.log.Error("list subscriptions", "chat_id", chatID, "manga_id", id, "error", err)
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	var sub *model.Subscription
	if len(subs) > 0 {
		sub = &subs[0]
	}
	b.reply(chatID, FormatMangaInfo(m, issues, sub))
}

func (b *Bot) handleSubscribe(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /subscribe <id>")
		return
	}

	sub, err := b.store.Subscribe(ctx, chatID, id)
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(chatID, fmt.Sprintf("Manga #%d not found.", id))
		return
	}
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	if sub.State == model.StatePaused {
		b.reply(chatID, fmt.Sprintf("Already subscribed to %s, deliveries are paused. Use /resume %d.", sub, id))
		return
	}
	b.reply(chatID, fmt.Sprintf("Subscribed to %s.", sub))
}

func (b *Bot) handleUnsubscribe(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /unsubscribe <id>")
		return
	}

	ok, err := b.store.IsSubscribed(ctx, chatID, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if !ok {
		b.reply(chatID, fmt.Sprintf("You are not subscribed to manga #%d.", id))
		return
	}

	if err := b.store.Unsubscribe(ctx, chatID, id); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Unsubscribed from manga #%d.", id))
}

func (b *Bot) handleList(ctx context.Context, chatID int64) {
	subs, err := b.store.Subscriptions(ctx, storage.SubscriptionFilter{UserID: chatID})
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	msg := tgbotapi.NewMessage(chatID, FormatSubscriptionList(subs))
	if len(subs) > 0 {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(subs))
		for _, s := range subs {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Unsubscribe #%d", s.MangaID), callbackData(actionUnsubscribeConfirm, s.MangaID)),
			))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	b.send(msg)
}

func (b *Bot) handlePause(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /pause <id>")
		return
	}
	if err := b.store.Pause(ctx, chatID, id); err != nil {
		b.replySubscriptionError(chatID, id, err)
		return
	}
	b.reply(chatID, fmt.Sprintf("Deliveries for manga #%d paused.", id))
}

func (b *Bot) handleResume(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /resume <id>")
		return
	}
	if err := b.store.Resume(ctx, chatID, id); err != nil {
		b.replySubscriptionError(chatID, id, err)
		return
	}
	b.reply(chatID, fmt.Sprintf("Deliveries for manga #%d resumed.", id))
}

func (b *Bot) handleFrequency(ctx context.Context, chatID int64, args string) {
	id, perDay, err := ParseFrequencyArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	if err := b.store.SetFrequency(ctx, chatID, id, perDay); err != nil {
		b.replySubscriptionError(chatID, id, err)
		return
	}
	b.reply(chatID, fmt.Sprintf("Manga #%d: up to %d issue(s) per day.", id, perDay))
}

func (b *Bot) replySubscriptionError(chatID, mangaID int64, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(chatID, fmt.Sprintf("You are not subscribed to manga #%d.", mangaID))
		return
	}
	b.reply(chatID, fmt.Sprintf("Error: %v", err))
}
