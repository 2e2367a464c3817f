package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"kmanga/internal/model"
)

// subscriptionSelect joins the manga name and the time of the last
// successful delivery onto every subscription row.
const subscriptionSelect = `
SELECT s.id, s.user_id, s.manga_id, m.name, s.per_day, s.state, s.last_issue_id,
       ls.last_sent_at, s.created_at, s.updated_at
FROM subscriptions s
JOIN manga m ON m.id = s.manga_id
LEFT JOIN (
    SELECT subscription_id, MAX(sent_at) AS last_sent_at
    FROM deliveries
    WHERE outcome = 'success'
    GROUP BY subscription_id
) ls ON ls.subscription_id = s.id`

// Subscribe makes sure the user has a live subscription to the manga.
//
// An existing active or paused row is returned untouched. Otherwise the most
// recent deleted row is revived, keeping its ID and delivery history, and only
// when the pair has never been subscribed is a new row created.
func (s *SQLite) Subscribe(ctx context.Context, userID, mangaID int64) (*model.Subscription, error) {
	var sub *model.Subscription
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM manga WHERE id = ?`, mangaID).Scan(&status)
		if err != nil {
			return notFound(err, "manga", mangaID)
		}
		if model.MangaStatus(status) == model.MangaDeleted {
			return fmt.Errorf("manga %d: %w", mangaID, ErrNotFound)
		}

		now := s.timestamp()
		var id int64
		var state string
		err = tx.QueryRowContext(ctx,
			`SELECT id, state FROM subscriptions
			 WHERE user_id = ? AND manga_id = ?
			 ORDER BY state = 'deleted', id DESC
			 LIMIT 1`, userID, mangaID,
		).Scan(&id, &state)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx,
				`INSERT INTO subscriptions (user_id, manga_id, per_day, state, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				userID, mangaID, model.DefaultPerDay, string(model.StateActive), now, now,
			)
			if err != nil {
				return fmt.Errorf("insert subscription: %w", err)
			}
			if id, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("last insert id: %w", err)
			}
		case err != nil:
			return fmt.Errorf("scan subscription: %w", err)
		case model.SubscriptionState(state) == model.StateDeleted:
			if _, err := tx.ExecContext(ctx,
				`UPDATE subscriptions SET state = ?, updated_at = ? WHERE id = ?`,
				string(model.StateActive), now, id,
			); err != nil {
				return fmt.Errorf("revive subscription: %w", err)
			}
		}

		sub, err = getSubscription(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Unsubscribe soft-deletes the live subscription of the pair, if any.
func (s *SQLite) Unsubscribe(ctx context.Context, userID, mangaID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET state = ?, updated_at = ?
		 WHERE user_id = ? AND manga_id = ? AND state <> 'deleted'`,
		string(model.StateDeleted), s.timestamp(), userID, mangaID,
	)
	if err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}

// Pause stops deliveries for an active subscription.
func (s *SQLite) Pause(ctx context.Context, userID, mangaID int64) error {
	return s.transition(ctx, userID, mangaID, model.StateActive, model.StatePaused)
}

// Resume restarts deliveries for a paused subscription.
func (s *SQLite) Resume(ctx context.Context, userID, mangaID int64) error {
	return s.transition(ctx, userID, mangaID, model.StatePaused, model.StateActive)
}

// transition moves the live row of the pair from one state to another. A row
// already in the target state is left alone.
func (s *SQLite) transition(ctx context.Context, userID, mangaID int64, from, to model.SubscriptionState) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		var state string
		err := tx.QueryRowContext(ctx,
			`SELECT id, state FROM subscriptions
			 WHERE user_id = ? AND manga_id = ? AND state <> 'deleted'`, userID, mangaID,
		).Scan(&id, &state)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("subscription of user %d to manga %d: %w", userID, mangaID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("scan subscription: %w", err)
		}
		if model.SubscriptionState(state) != from {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE subscriptions SET state = ?, updated_at = ? WHERE id = ?`,
			string(to), s.timestamp(), id,
		); err != nil {
			return fmt.Errorf("update subscription state: %w", err)
		}
		return nil
	})
}

// SetFrequency changes how many issues per day the live subscription receives.
func (s *SQLite) SetFrequency(ctx context.Context, userID, mangaID int64, perDay int) error {
	if perDay <= 0 {
		return ErrInvalidFrequency
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET per_day = ?, updated_at = ?
		 WHERE user_id = ? AND manga_id = ? AND state <> 'deleted'`,
		perDay, s.timestamp(), userID, mangaID,
	)
	if err != nil {
		return fmt.Errorf("update frequency: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("subscription of user %d to manga %d: %w", userID, mangaID, ErrNotFound)
	}
	return nil
}

// IsSubscribed reports whether the user has an active or paused subscription
// to the manga.
func (s *SQLite) IsSubscribed(ctx context.Context, userID, mangaID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscriptions
		 WHERE user_id = ? AND manga_id = ? AND state <> 'deleted'`,
		userID, mangaID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check subscribed: %w", err)
	}
	return count > 0, nil
}

// GetSubscription returns a subscription in any state.
func (s *SQLite) GetSubscription(ctx context.Context, id int64) (*model.Subscription, error) {
	return getSubscription(ctx, s.db, id)
}

func getSubscription(ctx context.Context, q queryer, id int64) (*model.Subscription, error) {
	row := q.QueryRowContext(ctx, subscriptionSelect+` WHERE s.id = ?`, id)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, notFound(err, "subscription", id)
	}
	return sub, nil
}

// Subscriptions lists the subscriptions that are not deleted, ordered by ID.
func (s *SQLite) Subscriptions(ctx context.Context, f SubscriptionFilter) ([]model.Subscription, error) {
	where, args := f.clauses()
	where = append(where, "s.state <> 'deleted'")
	return s.listSubscriptions(ctx, where, args, "s.id")
}

// AllSubscriptions lists every subscription ever created, deleted ones
// included, ordered by ID.
func (s *SQLite) AllSubscriptions(ctx context.Context, f SubscriptionFilter) ([]model.Subscription, error) {
	where, args := f.clauses()
	return s.listSubscriptions(ctx, where, args, "s.id")
}

// Latests lists the subscriptions that are not deleted, the one with the most
// recent successful delivery first. Subscriptions that never received an issue
// come last; ties go to the higher ID.
func (s *SQLite) Latests(ctx context.Context) ([]model.Subscription, error) {
	return s.listSubscriptions(ctx,
		[]string{"s.state <> 'deleted'"}, nil,
		"ls.last_sent_at IS NULL, ls.last_sent_at DESC, s.id DESC",
	)
}

func (s *SQLite) listSubscriptions(ctx context.Context, where []string, args []any, order string) ([]model.Subscription, error) {
	query := subscriptionSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + order

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (f SubscriptionFilter) clauses() ([]string, []any) {
	var where []string
	var args []any
	if f.UserID != 0 {
		where = append(where, "s.user_id = ?")
		args = append(args, f.UserID)
	}
	if f.MangaID != 0 {
		where = append(where, "s.manga_id = ?")
		args = append(args, f.MangaID)
	}
	if f.State != "" {
		where = append(where, "s.state = ?")
		args = append(args, string(f.State))
	}
	return where, args
}

func scanSubscription(row scannable) (*model.Subscription, error) {
	var sub model.Subscription
	var state, created, updated string
	var lastIssue sql.NullInt64
	var lastSent sql.NullString
	err := row.Scan(&sub.ID, &sub.UserID, &sub.MangaID, &sub.MangaName, &sub.PerDay, &state,
		&lastIssue, &lastSent, &created, &updated)
	if err != nil {
		return nil, err
	}
	sub.State = model.SubscriptionState(state)
	if lastIssue.Valid {
		id := lastIssue.Int64
		sub.LastIssueID = &id
	}
	sub.LastSentAt = parseNullTime(lastSent)
	sub.CreatedAt = parseTime(created)
	sub.UpdatedAt = parseTime(updated)
	return &sub, nil
}
