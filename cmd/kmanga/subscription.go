package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"kmanga/internal/model"
	"kmanga/internal/storage"
)

// pairCmd builds a command taking USER and MANGA arguments.
func pairCmd(a *app, use, short string, fn func(ctx context.Context, cmd *cobra.Command, store *storage.SQLite, userID, mangaID int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " USER_ID MANGA_ID",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID("user", args[0])
			if err != nil {
				return err
			}
			mangaID, err := parseID("manga", args[1])
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			return fn(cmd.Context(), cmd, store, userID, mangaID)
		},
	}
}

func newSubscribeCmd(a *app) *cobra.Command {
	return pairCmd(a, "subscribe", "Subscribe a user to a manga",
		func(ctx context.Context, cmd *cobra.Command, store *storage.SQLite, userID, mangaID int64) error {
			sub, err := store.Subscribe(ctx, userID, mangaID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Subscription #%d: %s [%s]\n", sub.ID, sub, sub.State)
			return nil
		})
}

func newUnsubscribeCmd(a *app) *cobra.Command {
	return pairCmd(a, "unsubscribe", "Remove a user's subscription to a manga",
		func(ctx context.Context, cmd *cobra.Command, store *storage.SQLite, userID, mangaID int64) error {
			if err := store.Unsubscribe(ctx, userID, mangaID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Unsubscribed.")
			return nil
		})
}

func newPauseCmd(a *app) *cobra.Command {
	return pairCmd(a, "pause", "Stop deliveries of a subscription",
		func(ctx context.Context, cmd *cobra.Command, store *storage.SQLite, userID, mangaID int64) error {
			if err := store.Pause(ctx, userID, mangaID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Paused.")
			return nil
		})
}

func newResumeCmd(a *app) *cobra.Command {
	return pairCmd(a, "resume", "Restart deliveries of a paused subscription",
		func(ctx context.Context, cmd *cobra.Command, store *storage.SQLite, userID, mangaID int64) error {
			if err := store.Resume(ctx, userID, mangaID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Resumed.")
			return nil
		})
}

func newFrequencyCmd(a *app) *cobra.Command {
	var perDay int
	cmd := pairCmd(a, "frequency", "Set how many issues per day a subscription receives",
		func(ctx context.Context, cmd *cobra.Command, store *storage.SQLite, userID, mangaID int64) error {
			if err := store.SetFrequency(ctx, userID, mangaID, perDay); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Frequency set to %d per day.\n", perDay)
			return nil
		})
	cmd.Flags().IntVar(&perDay, "per-day", model.DefaultPerDay, "issues per day")
	return cmd
}

func newSubscriptionsCmd(a *app) *cobra.Command {
	var all bool
	var userID int64
	cmd := &cobra.Command{
		Use:   "subscriptions",
		Short: "List subscriptions, most recently delivered first",
		Long: `List subscriptions that are not deleted, ordered by their last successful
delivery. With --all, every subscription ever created is listed by ID,
deleted ones included.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var subs []model.Subscription
			switch {
			case all:
				subs, err = store.AllSubscriptions(cmd.Context(), storage.SubscriptionFilter{UserID: userID})
			case userID != 0:
				subs, err = store.Subscriptions(cmd.Context(), storage.SubscriptionFilter{UserID: userID})
			default:
				subs, err = store.Latests(cmd.Context())
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(subs) == 0 {
				fmt.Fprintln(out, "No subscriptions.")
				return nil
			}
			for _, sub := range subs {
				last := "never"
				if sub.LastSentAt != nil {
					last = sub.LastSentAt.Local().Format("2006-01-02 15:04")
				}
				fmt.Fprintf(out, "#%d user %d: %s [%s] last sent %s\n", sub.ID, sub.UserID, sub, sub.State, last)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include deleted subscriptions")
	cmd.Flags().Int64Var(&userID, "user", 0, "only subscriptions of this user")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history USER_ID ISSUE_ID",
		Short: "Show every delivery attempt of an issue to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID("user", args[0])
			if err != nil {
				return err
			}
			issueID, err := parseID("issue", args[1])
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := cmd.Context()
			records, err := store.History(ctx, userID, issueID)
			if err != nil {
				return err
			}
			sent, err := store.IsSent(ctx, userID, issueID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Issue %d for user %d: sent=%s\n", issueID, userID, strconv.FormatBool(sent))
			for _, r := range records {
				fmt.Fprintf(out, "  %s %s via subscription #%d\n",
					r.SentAt.Local().Format("2006-01-02 15:04:05"), r.Outcome, r.SubscriptionID)
			}
			return nil
		},
	}
}
