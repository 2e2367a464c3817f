// Package scheduler runs the periodic jobs: search index refresh, release
// feed ingestion and issue delivery.
package scheduler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"kmanga/internal/fetcher"
	"kmanga/internal/model"
	"kmanga/internal/notify"
	"kmanga/internal/storage"
)

// deliveryWindow is the period a subscription's PerDay budget applies to.
const deliveryWindow = 24 * time.Hour

// Refresher rebuilds the search index.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Options configures job intervals and delivery limits. A zero interval
// disables the periodic run of that job.
type Options struct {
	RefreshInterval  time.Duration
	IngestInterval   time.Duration
	DeliveryInterval time.Duration
	// SendRate caps notifications per second across all users.
	SendRate float64
	// Allowed reports whether a user may receive notifications. Nil allows
	// everyone.
	Allowed func(userID int64) bool
}

// Scheduler periodically refreshes the index, ingests releases and delivers
// pending issues to subscribers.
type Scheduler struct {
	store   storage.Storage
	index   Refresher
	fetcher *fetcher.Fetcher
	sender  notify.Sender
	log     *slog.Logger
	opts    Options
	limiter *rate.Limiter
	now     func() time.Time
}

// New creates a Scheduler with the default HTTP client.
func New(store storage.Storage, index Refresher, sender notify.Sender, log *slog.Logger, opts Options) *Scheduler {
	return NewWithFetcher(store, index, fetcher.New(http.DefaultClient), sender, log, opts)
}

// NewWithFetcher creates a Scheduler with a custom fetcher (useful for testing).
func NewWithFetcher(store storage.Storage, index Refresher, f *fetcher.Fetcher, sender notify.Sender, log *slog.Logger, opts Options) *Scheduler {
	limit := rate.Inf
	if opts.SendRate > 0 {
		limit = rate.Limit(opts.SendRate)
	}
	return &Scheduler{
		store:   store,
		index:   index,
		fetcher: f,
		sender:  sender,
		log:     log,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}
}

// Run runs every job once and then on its interval, blocking until ctx is
// cancelled. On startup the index is built before any feed is fetched and
// rebuilt after ingestion, so the first delivery sees the new issues.
func (s *Scheduler) Run(ctx context.Context) {
	s.refresh(ctx)
	s.ingest(ctx)
	s.refresh(ctx)
	s.deliver(ctx)

	refreshC, stopRefresh := ticker(s.opts.RefreshInterval)
	defer stopRefresh()
	ingestC, stopIngest := ticker(s.opts.IngestInterval)
	defer stopIngest()
	deliverC, stopDeliver := ticker(s.opts.DeliveryInterval)
	defer stopDeliver()

	for {
		select {
		case <-ctx.Done():
			return
		case <-refreshC:
			s.refresh(ctx)
		case <-ingestC:
			s.ingest(ctx)
		case <-deliverC:
			s.deliver(ctx)
		}
	}
}

// ticker returns a nil channel, which never fires, for a zero interval.
func ticker(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(d)
	return t.C, t.Stop
}

func (s *Scheduler) refresh(ctx context.Context) {
	if err := s.index.Refresh(ctx); err != nil {
		s.log.Error("refresh search index", "error", err)
	}
}

func (s *Scheduler) ingest(ctx context.Context) {
	list, err := s.store.ListManga(ctx)
	if err != nil {
		s.log.Error("list manga", "error", err)
		return
	}

	for _, m := range list {
		if ctx.Err() != nil {
			return
		}
		if m.Status != model.MangaOngoing || m.URL == "" {
			continue
		}
		s.ingestManga(ctx, m)
	}
}

func (s *Scheduler) ingestManga(ctx context.Context, m model.Manga) {
	s.log.Debug("checking releases", "manga_id", m.ID, "name", m.Name)

	feed, err := s.fetcher.Fetch(ctx, m.URL)
	if err != nil {
		s.log.Error("fetch releases", "manga_id", m.ID, "url", m.URL, "error", err)
		return
	}

	created := 0
	for _, issue := range fetcher.Issues(m.ID, feed) {
		ok, err := s.store.EnsureIssue(ctx, &issue)
		if err != nil {
			s.log.Error("store issue", "manga_id", m.ID, "guid", issue.GUID, "error", err)
			continue
		}
		if ok {
			created++
		}
	}

	if created > 0 {
		s.log.Info("new issues", "manga_id", m.ID, "name", m.Name, "count", created)
	}
}

func (s *Scheduler) deliver(ctx context.Context) {
	subs, err := s.store.Subscriptions(ctx, storage.SubscriptionFilter{State: model.StateActive})
	if err != nil {
		s.log.Error("list active subscriptions", "error", err)
		return
	}

	for _, sub := range subs {
		if ctx.Err() != nil {
			return
		}
		if s.opts.Allowed != nil && !s.opts.Allowed(sub.UserID) {
			s.log.Debug("user not allowed", "user_id", sub.UserID, "subscription_id", sub.ID)
			continue
		}
		s.deliverSubscription(ctx, sub)
	}
}

// deliverSubscription sends pending issues within the subscription's daily
// budget. It stops at the first failed send; the issue stays pending.
func (s *Scheduler) deliverSubscription(ctx context.Context, sub model.Subscription) {
	sent, err := s.store.SentSince(ctx, sub.ID, s.now().Add(-deliveryWindow))
	if err != nil {
		s.log.Error("count sent", "subscription_id", sub.ID, "error", err)
		return
	}
	budget := sub.PerDay - sent
	if budget <= 0 {
		return
	}

	pending, err := s.store.PendingIssues(ctx, sub.ID, budget)
	if err != nil {
		s.log.Error("list pending issues", "subscription_id", sub.ID, "error", err)
		return
	}

	delivered := 0
	for _, issue := range pending {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}

		outcome := model.OutcomeSuccess
		sendErr := s.sender.Send(ctx, sub.UserID, notify.FormatIssue(sub, issue))
		if sendErr != nil {
			outcome = model.OutcomeFailure
		}

		if _, err := s.store.AddSent(ctx, sub.ID, issue.ID, outcome); err != nil {
			s.log.Error("record delivery", "subscription_id", sub.ID, "issue_id", issue.ID, "error", err)
			return
		}
		if sendErr != nil {
			s.log.Warn("send issue", "subscription_id", sub.ID, "user_id", sub.UserID, "issue_id", issue.ID, "error", sendErr)
			break
		}
		delivered++
	}

	if delivered > 0 {
		s.log.Info("delivered issues", "subscription_id", sub.ID, "user_id", sub.UserID, "count", delivered)
	}
}
