package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/adapters/notify"
	"github.com/mikey/phish-alert/internal/adapters/smtprelay"
	"github.com/mikey/phish-alert/internal/config"
	"github.com/mikey/phish-alert/internal/core"
)

// NotifierFactory creates the notification channels
type NotifierFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewNotifierFactory creates a new notifier factory
func NewNotifierFactory(cfg *config.Config, logger *zap.Logger) *NotifierFactory {
	return &NotifierFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateInbox creates the in-process notification inbox
func (f *NotifierFactory) CreateInbox() *notify.Inbox {
	return notify.NewInbox(f.cfg.GetNotify().InboxSize)
}

// CreateNotifier fans notifications out to every configured channel
func (f *NotifierFactory) CreateNotifier(inbox *notify.Inbox) (core.Notifier, error) {
	notifyCfg := f.cfg.GetNotify()

	var notifiers []core.Notifier
	for _, channel := range notifyCfg.Channels {
		switch channel {
		case "log":
			notifiers = append(notifiers, notify.NewLogNotifier(f.logger))
		case "inbox":
			notifiers = append(notifiers, inbox)
		case "smtp":
			if len(notifyCfg.SMTPTo) == 0 {
				return nil, fmt.Errorf("notify.smtp.to must name at least one recipient")
			}
			relay := smtprelay.NewRelay(notifyCfg.SMTPAddress, notifyCfg.SMTPPort, f.logger)
			notifiers = append(notifiers, notify.NewMailNotifier(relay, notifyCfg.SMTPFrom, notifyCfg.SMTPTo, f.logger))
		default:
			return nil, fmt.Errorf("unsupported notification channel: %s", channel)
		}
	}

	return notify.NewMulti(f.logger, notifiers...), nil
}
