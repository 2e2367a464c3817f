// Package storage defines the persistence interfaces and their SQLite implementation.
package storage

import (
	"context"
	"errors"
	"time"

	"kmanga/internal/model"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrIssueMismatch is returned when an issue does not belong to the
	// manga of the subscription it is delivered through.
	ErrIssueMismatch = errors.New("issue does not belong to subscribed manga")

	// ErrInvalidOutcome is returned for delivery outcomes other than success or failure.
	ErrInvalidOutcome = errors.New("invalid delivery outcome")

	// ErrInvalidFrequency is returned when a delivery frequency is not positive.
	ErrInvalidFrequency = errors.New("delivery frequency must be positive")
)

// CatalogStore persists manga, their alternative names and issues.
type CatalogStore interface {
	CreateManga(ctx context.Context, m *model.Manga) error
	GetManga(ctx context.Context, id int64) (*model.Manga, error)
	ListManga(ctx context.Context) ([]model.Manga, error)
	UpdateManga(ctx context.Context, m *model.Manga) error
	LatestManga(ctx context.Context, limit int) ([]model.Manga, error)

	AddAltName(ctx context.Context, mangaID int64, name string) (*model.AltName, error)
	RemoveAltName(ctx context.Context, id int64) error

	CreateIssue(ctx context.Context, issue *model.Issue) error
	EnsureIssue(ctx context.Context, issue *model.Issue) (bool, error)
	GetIssue(ctx context.Context, id int64) (*model.Issue, error)
	ListIssues(ctx context.Context, mangaID int64) ([]model.Issue, error)
	RenameIssue(ctx context.Context, id int64, name string) error
}

// SubscriptionFilter narrows subscription listings. Zero fields match anything.
type SubscriptionFilter struct {
	UserID  int64
	MangaID int64
	State   model.SubscriptionState
}

// SubscriptionStore owns the subscription lifecycle per (user, manga).
//
// Subscriptions only sees rows that are not deleted; AllSubscriptions is the
// audit scope and returns every row ever created.
type SubscriptionStore interface {
	Subscribe(ctx context.Context, userID, mangaID int64) (*model.Subscription, error)
	Unsubscribe(ctx context.Context, userID, mangaID int64) error
	Pause(ctx context.Context, userID, mangaID int64) error
	Resume(ctx context.Context, userID, mangaID int64) error
	SetFrequency(ctx context.Context, userID, mangaID int64, perDay int) error
	IsSubscribed(ctx context.Context, userID, mangaID int64) (bool, error)

	GetSubscription(ctx context.Context, id int64) (*model.Subscription, error)
	Subscriptions(ctx context.Context, f SubscriptionFilter) ([]model.Subscription, error)
	AllSubscriptions(ctx context.Context, f SubscriptionFilter) ([]model.Subscription, error)
	Latests(ctx context.Context) ([]model.Subscription, error)
}

// DeliveryStore is the append-only log of delivery attempts.
type DeliveryStore interface {
	AddSent(ctx context.Context, subscriptionID, issueID int64, outcome model.Outcome) (*model.DeliveryRecord, error)
	IsSent(ctx context.Context, userID, issueID int64) (bool, error)
	History(ctx context.Context, userID, issueID int64) ([]model.DeliveryRecord, error)
	PendingIssues(ctx context.Context, subscriptionID int64, limit int) ([]model.Issue, error)
	SentSince(ctx context.Context, subscriptionID int64, since time.Time) (int, error)
}

// Storage is the interface for all persistence operations.
type Storage interface {
	CatalogStore
	SubscriptionStore
	DeliveryStore

	Close() error
}
