package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kmanga/internal/bot"
	"kmanga/internal/notify"
	"kmanga/internal/scheduler"
	"kmanga/internal/search"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler and, with a bot token, the Telegram bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context())
		},
	}
}

func (a *app) run(ctx context.Context) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	idx := search.New(store, a.log)

	var (
		sender notify.Sender
		chat   *bot.Bot
	)
	if a.cfg.TelegramBotToken != "" {
		chat, err = bot.New(a.cfg.TelegramBotToken, store, idx, a.cfg, a.log)
		if err != nil {
			return err
		}
		sender = chat.Notifier()
	} else {
		a.log.Warn("TELEGRAM_BOT_TOKEN not set, notifications are only logged")
		sender = notify.NewLog(a.log)
	}

	sched := scheduler.New(store, idx, sender, a.log, scheduler.Options{
		RefreshInterval:  a.cfg.RefreshInterval,
		IngestInterval:   a.cfg.IngestInterval,
		DeliveryInterval: a.cfg.DeliveryInterval,
		SendRate:         a.cfg.SendRate,
		Allowed:          a.cfg.IsUserAllowed,
	})

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a.log.Info("starting", "database", a.cfg.DatabasePath, "bot", chat != nil)

	if chat == nil {
		sched.Run(ctx)
	} else {
		go sched.Run(ctx)
		chat.Run(ctx)
	}

	a.log.Info("stopped")
	return nil
}
