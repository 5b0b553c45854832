package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/adapters/extract"
	"github.com/mikey/phish-alert/internal/adapters/smtprelay"
	"github.com/mikey/phish-alert/internal/adapters/watcher"
	"github.com/mikey/phish-alert/internal/config"
	"github.com/mikey/phish-alert/internal/core"
)

// WatcherFactory creates the capture watchers
type WatcherFactory struct {
	cfg      *config.Config
	logger   *zap.Logger
	pipeline *core.Pipeline
}

// NewWatcherFactory creates a new watcher factory
func NewWatcherFactory(cfg *config.Config, logger *zap.Logger, pipeline *core.Pipeline) *WatcherFactory {
	return &WatcherFactory{
		cfg:      cfg,
		logger:   logger,
		pipeline: pipeline,
	}
}

// CreateNavigationWatcher creates the tab navigation watcher
func (f *WatcherFactory) CreateNavigationWatcher() *watcher.NavigationWatcher {
	return watcher.NewNavigationWatcher(f.pipeline, f.logger)
}

// CreateContentWatcher creates the webmail content watcher
func (f *WatcherFactory) CreateContentWatcher() *watcher.ContentWatcher {
	return watcher.NewContentWatcher(extract.NewExtractor(extract.GmailSelectors(), f.logger), f.pipeline, f.logger)
}

// CreateSMTPWatcher creates the SMTP intake watcher, or nil when it is disabled
func (f *WatcherFactory) CreateSMTPWatcher() *watcher.SMTPWatcher {
	smtpCfg := f.cfg.GetSMTP()
	if !smtpCfg.Enabled {
		return nil
	}

	var forwarder watcher.Forwarder
	if smtpCfg.ForwardEnabled {
		forwarder = smtprelay.NewRelay(smtpCfg.ForwardAddress, smtpCfg.ForwardPort, f.logger)
	}

	return watcher.NewSMTPWatcher(f.pipeline, forwarder, f.logger, smtpCfg.ListenAddress, smtpCfg.VerdictHeader)
}
