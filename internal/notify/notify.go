// Package notify delivers issue notifications to users.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"kmanga/internal/model"
)

// Sender delivers a text message to a user.
type Sender interface {
	Send(ctx context.Context, userID int64, text string) error
}

// TelegramAPI is the part of the Telegram bot API used to send messages.
type TelegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends messages through a Telegram bot. User IDs are chat IDs.
type Telegram struct {
	api TelegramAPI
	log *slog.Logger
}

// NewTelegram creates a Telegram sender on top of an authorized bot API.
func NewTelegram(api TelegramAPI, log *slog.Logger) *Telegram {
	return &Telegram{api: api, log: log}
}

// Send sends text to the user's chat with link previews disabled.
func (t *Telegram) Send(ctx context.Context, userID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(userID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send message to %d: %w", userID, err)
	}
	t.log.Debug("message sent", "user_id", userID)
	return nil
}

// Log writes messages to the logger instead of sending them. It is used when
// no bot token is configured.
type Log struct {
	log *slog.Logger
}

// NewLog creates a Log sender.
func NewLog(log *slog.Logger) *Log {
	return &Log{log: log}
}

// Send logs the message.
func (l *Log) Send(_ context.Context, userID int64, text string) error {
	l.log.Info("notification", "user_id", userID, "text", text)
	return nil
}

// FormatIssue formats a new issue as a notification message.
func FormatIssue(sub model.Subscription, issue model.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n\n", sub.MangaName)
	b.WriteString(issue.Name)
	if issue.Number != "" && !strings.Contains(issue.Name, issue.Number) {
		fmt.Fprintf(&b, " (#%s)", issue.Number)
	}
	if issue.URL != "" {
		b.WriteString("\n\n")
		b.WriteString(issue.URL)
	}
	return b.String()
}
