// Package notify delivers pipeline notifications to the user.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/core"
)

// LogNotifier writes notifications to the log
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new log notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification
func (n *LogNotifier) Notify(ctx context.Context, notification *core.Notification) error {
	n.logger.Info(notification.Title,
		zap.String("message", notification.Message),
		zap.String("key", notification.SubjectKey),
		zap.String("verdict", string(notification.Verdict)))
	return nil
}

// Multi fans a notification out to several notifiers
type Multi struct {
	notifiers []core.Notifier
	logger    *zap.Logger
}

// NewMulti creates a notifier that delivers to every one of notifiers
func NewMulti(logger *zap.Logger, notifiers ...core.Notifier) *Multi {
	return &Multi{
		notifiers: notifiers,
		logger:    logger,
	}
}

// Notify delivers to every notifier, even when an earlier one fails
func (m *Multi) Notify(ctx context.Context, notification *core.Notification) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, notification); err != nil {
			m.logger.Warn("Notifier failed", zap.Error(err), zap.String("id", notification.ID))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
