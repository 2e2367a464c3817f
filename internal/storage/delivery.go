package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kmanga/internal/model"
)

// AddSent appends a delivery record. A successful delivery also becomes the
// subscription's last sent issue. Deliveries through deleted subscriptions
// are recorded as well, since they may race with an unsubscribe.
func (s *SQLite) AddSent(ctx context.Context, subscriptionID, issueID int64, outcome model.Outcome) (*model.DeliveryRecord, error) {
	if !outcome.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}

	var rec *model.DeliveryRecord
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var subManga int64
		err := tx.QueryRowContext(ctx,
			`SELECT manga_id FROM subscriptions WHERE id = ?`, subscriptionID,
		).Scan(&subManga)
		if err != nil {
			return notFound(err, "subscription", subscriptionID)
		}

		issue, err := getIssue(ctx, tx, issueID)
		if err != nil {
			return err
		}
		if issue.MangaID != subManga {
			return fmt.Errorf("issue %d, subscription %d: %w", issueID, subscriptionID, ErrIssueMismatch)
		}

		now := s.timestamp()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO deliveries (subscription_id, issue_id, outcome, sent_at) VALUES (?, ?, ?, ?)`,
			subscriptionID, issueID, string(outcome), now,
		)
		if err != nil {
			return fmt.Errorf("insert delivery: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		if outcome == model.OutcomeSuccess {
			if _, err := tx.ExecContext(ctx,
				`UPDATE subscriptions SET last_issue_id = ?, updated_at = ? WHERE id = ?`,
				issueID, now, subscriptionID,
			); err != nil {
				return fmt.Errorf("update last issue: %w", err)
			}
		}

		rec = &model.DeliveryRecord{
			ID:             id,
			SubscriptionID: subscriptionID,
			IssueID:        issueID,
			Outcome:        outcome,
			SentAt:         parseTime(now),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// IsSent reports whether the issue was successfully delivered to the user
// through any of the user's subscriptions, deleted ones included.
func (s *SQLite) IsSent(ctx context.Context, userID, issueID int64) (bool, error) {
	var sent bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM deliveries d
		     JOIN subscriptions s ON s.id = d.subscription_id
		     WHERE s.user_id = ? AND d.issue_id = ? AND d.outcome = 'success'
		 )`, userID, issueID,
	).Scan(&sent)
	if err != nil {
		return false, fmt.Errorf("check sent: %w", err)
	}
	return sent, nil
}

// History returns every delivery attempt of the issue to the user, oldest first.
func (s *SQLite) History(ctx context.Context, userID, issueID int64) ([]model.DeliveryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.id, d.subscription_id, d.issue_id, d.outcome, d.sent_at
		 FROM deliveries d
		 JOIN subscriptions s ON s.id = d.subscription_id
		 WHERE s.user_id = ? AND d.issue_id = ?
		 ORDER BY d.sent_at, d.id`, userID, issueID,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.DeliveryRecord
	for rows.Next() {
		var r model.DeliveryRecord
		var outcome, sentAt string
		if err := rows.Scan(&r.ID, &r.SubscriptionID, &r.IssueID, &outcome, &sentAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		r.Outcome = model.Outcome(outcome)
		r.SentAt = parseTime(sentAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// PendingIssues returns up to limit issues of the subscription's manga that
// were never successfully delivered to the subscriber, oldest first.
func (s *SQLite) PendingIssues(ctx context.Context, subscriptionID int64, limit int) ([]model.Issue, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+issueColumns+`
		 FROM issues i
		 JOIN subscriptions s ON s.manga_id = i.manga_id
		 WHERE s.id = ?
		   AND NOT EXISTS (
		       SELECT 1 FROM deliveries d
		       JOIN subscriptions o ON o.id = d.subscription_id
		       WHERE d.issue_id = i.id AND o.user_id = s.user_id AND d.outcome = 'success'
		   )
		 ORDER BY i.id
		 LIMIT ?`, subscriptionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending issues: %w", err)
	}
	return scanIssueRows(rows)
}

// SentSince counts the successful deliveries of a subscription after since.
func (s *SQLite) SentSince(ctx context.Context, subscriptionID int64, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM deliveries
		 WHERE subscription_id = ? AND outcome = 'success' AND sent_at > ?`,
		subscriptionID, formatTime(since),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count sent: %w", err)
	}
	return count, nil
}
