package watcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/core"
)

// ErrNoContent is returned when a capture yields no sender, subject or body
var ErrNoContent = errors.New("no email content found")

// ContentWatcher classifies the email shown on a captured page, on demand
type ContentWatcher struct {
	extractor core.ContentExtractor
	pipeline  EmailProcessor
	logger    *zap.Logger
}

// NewContentWatcher creates a new content watcher
func NewContentWatcher(extractor core.ContentExtractor, pipeline EmailProcessor, logger *zap.Logger) *ContentWatcher {
	return &ContentWatcher{
		extractor: extractor,
		pipeline:  pipeline,
		logger:    logger,
	}
}

// Start is a no-op: scans are requested explicitly
func (w *ContentWatcher) Start() error { return nil }

// Stop is a no-op
func (w *ContentWatcher) Stop() error { return nil }

// Scan extracts the email from html and classifies it
func (w *ContentWatcher) Scan(ctx context.Context, html string) (*core.Outcome, error) {
	candidate, err := w.extractor.Extract(html)
	if err != nil {
		w.logger.Warn("Content extraction failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrNoContent, err)
	}
	return w.ScanFields(ctx, candidate)
}

// ScanFields classifies already extracted fields. Fields that are missing are
// forwarded empty; when all of them are missing the pipeline is not invoked.
func (w *ContentWatcher) ScanFields(ctx context.Context, candidate *core.EmailCandidate) (*core.Outcome, error) {
	if candidate == nil {
		return nil, ErrNoContent
	}
	trimmed := &core.EmailCandidate{
		Sender:  strings.TrimSpace(candidate.Sender),
		Subject: strings.TrimSpace(candidate.Subject),
		Body:    strings.TrimSpace(candidate.Body),
	}
	if trimmed.Sender == "" && trimmed.Subject == "" && trimmed.Body == "" {
		w.logger.Info("No email content found on page")
		return nil, ErrNoContent
	}

	return w.pipeline.ProcessEmail(ctx, trimmed), nil
}
