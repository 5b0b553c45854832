package core

import (
	"context"
)

// Classifier defines the interface for the remote classification backend.
// Implementations never fail: every error resolves to VerdictUnknown.
type Classifier interface {
	// ClassifyURL classifies a URL
	ClassifyURL(ctx context.Context, url string) Verdict

	// ClassifyEmail classifies an email from its sender, subject and body
	ClassifyEmail(ctx context.Context, sender, subject, body string) Verdict
}

// ChangeListener is invoked with the keys touched by a store write
type ChangeListener func(changedKeys []string)

// Store defines the flat key-value store holding classification records
type Store interface {
	// GetAll returns every record
	GetAll(ctx context.Context) ([]*Record, error)

	// Get returns the record stored under key
	Get(ctx context.Context, key string) (*Record, error)

	// Set writes a record, replacing any record with the same key
	Set(ctx context.Context, record *Record) error

	// Remove deletes the records stored under keys
	Remove(ctx context.Context, keys ...string) error

	// Clear deletes every record
	Clear(ctx context.Context) error

	// Subscribe registers a listener for writes and returns a function that removes it
	Subscribe(listener ChangeListener) (unsubscribe func())
}

// Notifier raises user-facing notifications
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

// Exclusions decides which candidates never reach the classifier
type Exclusions interface {
	ExcludeURL(url string) bool
	ExcludeSender(sender string) bool
}

// ContentExtractor pulls email fields out of a rendered page
type ContentExtractor interface {
	Extract(html string) (*EmailCandidate, error)
}
