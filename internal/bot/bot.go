// Package bot is the Telegram chat front end: users search the catalog and
// manage their own subscriptions. The chat ID is the user ID.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"kmanga/internal/config"
	"kmanga/internal/model"
	"kmanga/internal/notify"
	"kmanga/internal/search"
	"kmanga/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Searcher answers catalog queries.
type Searcher interface {
	Search(term string) search.Result
	Suggest(term string, limit int) []model.Manga
}

// Bot handles user commands and exposes a notification sender that shares
// its API client.
type Bot struct {
	api      telegramAPI
	store    storage.Storage
	index    Searcher
	cfg      *config.Config
	notifier *notify.Telegram
	log      *slog.Logger
}

// New creates a Bot with the given Telegram token, storage, search index and config.
func New(token string, store storage.Storage, index Searcher, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	log.Info("telegram bot authorized", "username", api.Self.UserName)

	return newBot(api, store, index, cfg, log), nil
}

func newBot(api telegramAPI, store storage.Storage, index Searcher, cfg *config.Config, log *slog.Logger) *Bot {
	return &Bot{
		api:      api,
		store:    store,
		index:    index,
		cfg:      cfg,
		notifier: notify.NewTelegram(api, log),
		log:      log,
	}
}

// Notifier returns the sender used for issue notifications.
func (b *Bot) Notifier() *notify.Telegram {
	return b.notifier
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate dispatches commands and callbacks from private chats only.
// Subscriptions are keyed by chat ID, which equals the user ID there.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if cb := update.CallbackQuery; cb != nil {
		if cb.From == nil || cb.Message == nil || !cb.Message.Chat.IsPrivate() {
			return
		}
		if b.cfg.IsUserAllowed(cb.From.ID) {
			b.handleCallback(ctx, cb)
		}
		return
	}
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}
	if !msg.Chat.IsPrivate() {
		b.reply(msg.Chat.ID, "Please talk to me in a private chat.")
		return
	}
	if msg.From == nil || !b.cfg.IsUserAllowed(msg.From.ID) {
		b.reply(msg.Chat.ID, "Access denied.")
		return
	}
	b.handleCommand(ctx, msg)
}

// reply sends a plain text message to the chat.
func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	b.send(msg)
}

func (b *Bot) send(msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", msg.ChatID, "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "search":
		b.handleSearch(chatID, args)
	case "latest":
		b.handleLatest(ctx, chatID)
	case cmdInfo:
		b.handleInfo(ctx, chatID, args)
	case cmdSubscribe:
		b.handleSubscribe(ctx, chatID, args)
	case cmdUnsubscribe:
		b.handleUnsubscribe(ctx, chatID, args)
	case "list":
		b.handleList(ctx, chatID)
	case "pause":
		b.handlePause(ctx, chatID, args)
	case "resume":
		b.handleResume(ctx, chatID, args)
	case "frequency":
		b.handleFrequency(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
