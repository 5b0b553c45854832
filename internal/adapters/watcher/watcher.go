// Package watcher turns capture surfaces (tab navigation, page captures and
// SMTP intake) into pipeline runs.
package watcher

import (
	"context"

	"github.com/mikey/phish-alert/internal/core"
)

// URLProcessor runs a URL through the classification pipeline
type URLProcessor interface {
	ProcessURL(ctx context.Context, url string) *core.Outcome
}

// EmailProcessor runs an email through the classification pipeline
type EmailProcessor interface {
	ProcessEmail(ctx context.Context, email *core.EmailCandidate) *core.Outcome
}
