// Package model defines the domain types used across the application.
package model

import (
	"fmt"
	"time"
)

// MangaStatus is the lifecycle status of a catalog entry.
type MangaStatus string

// Supported manga statuses.
const (
	MangaOngoing   MangaStatus = "ongoing"
	MangaCompleted MangaStatus = "completed"
	MangaDeleted   MangaStatus = "deleted"
)

// Valid reports whether s is a known status.
func (s MangaStatus) Valid() bool {
	switch s {
	case MangaOngoing, MangaCompleted, MangaDeleted:
		return true
	}
	return false
}

// Manga is a serialized publication in the catalog.
type Manga struct {
	ID          int64
	Name        string
	AltNames    []AltName
	Description string
	Status      MangaStatus
	URL         string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (m Manga) String() string {
	return m.Name
}

// AltNameStrings returns the alternative names as plain strings, in order.
func (m Manga) AltNameStrings() []string {
	names := make([]string, len(m.AltNames))
	for i, a := range m.AltNames {
		names[i] = a.Name
	}
	return names
}

// AltName is an alternative title of a manga.
type AltName struct {
	ID      int64
	MangaID int64
	Name    string
}

func (a AltName) String() string {
	return a.Name
}

// Issue is a single released installment of a manga.
type Issue struct {
	ID      int64
	MangaID int64
	Name    string
	// Number is the release marker as published ("12", "12.5").
	Number    string
	URL       string
	GUID      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (i Issue) String() string {
	return i.Name
}

// SubscriptionState is the lifecycle state of a subscription.
type SubscriptionState string

// Supported subscription states.
const (
	StateActive  SubscriptionState = "active"
	StatePaused  SubscriptionState = "paused"
	StateDeleted SubscriptionState = "deleted"
)

// DefaultPerDay is the delivery frequency given to new subscriptions.
const DefaultPerDay = 4

// Subscription links a user to a manga.
type Subscription struct {
	ID        int64
	UserID    int64
	MangaID   int64
	MangaName string
	PerDay    int
	State     SubscriptionState
	// LastIssueID is the issue of the latest successful delivery, if any.
	LastIssueID *int64
	// LastSentAt is the time of the latest successful delivery, if any.
	LastSentAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (s Subscription) String() string {
	return fmt.Sprintf("%s (%d per day)", s.MangaName, s.PerDay)
}

// Live reports whether the subscription has not been deleted.
func (s Subscription) Live() bool {
	return s.State != StateDeleted
}

// Outcome is the result of a delivery attempt.
type Outcome string

// Supported delivery outcomes.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	return o == OutcomeSuccess || o == OutcomeFailure
}

// DeliveryRecord is an append-only log entry of one delivery attempt.
type DeliveryRecord struct {
	ID             int64
	SubscriptionID int64
	IssueID        int64
	Outcome        Outcome
	SentAt         time.Time
}
