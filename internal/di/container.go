package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/adapters/api"
	"github.com/mikey/phish-alert/internal/adapters/notify"
	"github.com/mikey/phish-alert/internal/adapters/watcher"
	"github.com/mikey/phish-alert/internal/config"
	"github.com/mikey/phish-alert/internal/core"
	"github.com/mikey/phish-alert/internal/factory"
	"github.com/mikey/phish-alert/internal/logging"
	"github.com/mikey/phish-alert/internal/presentation"
	"github.com/mikey/phish-alert/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
// for the phish-alert service. cfg may be nil to load the configuration
// from the standard locations.
func BuildContainer(cfg *config.Config) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if cfg != nil {
		if err := container.Provide(func() *config.Config { return cfg }); err != nil {
			return nil, err
		}
	} else if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideCore(container); err != nil {
		return nil, err
	}

	// Register watchers
	if err := container.Provide(factory.NewWatcherFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.WatcherFactory) *watcher.NavigationWatcher {
		return f.CreateNavigationWatcher()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.WatcherFactory) *watcher.ContentWatcher {
		return f.CreateContentWatcher()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.WatcherFactory) *watcher.SMTPWatcher {
		return f.CreateSMTPWatcher()
	}); err != nil {
		return nil, err
	}

	// Register presenter
	if err := container.Provide(func(store core.Store, logger *zap.Logger) (*presentation.Presenter, error) {
		return presentation.NewPresenter(context.Background(), store, logger)
	}); err != nil {
		return nil, err
	}

	// Register API server
	if err := container.Provide(func(
		cfg *config.Config,
		logger *zap.Logger,
		classifier core.Classifier,
		pipeline *core.Pipeline,
		navigation *watcher.NavigationWatcher,
		content *watcher.ContentWatcher,
		presenter *presentation.Presenter,
		inbox *notify.Inbox,
	) *api.Server {
		serverCfg := cfg.GetServer()
		return api.NewServer(api.Dependencies{
			Pipeline:   pipeline,
			Navigation: navigation,
			Content:    content,
			Presenter:  presenter,
			Inbox:      inbox,
			Health:     factory.HealthCheck(classifier),
		}, serverCfg.ListenAddress, serverCfg.AllowedOrigins, logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideCore registers the text processor, classifier, store, notifiers and
// pipeline shared by the service and the command line scanner
func provideCore(container *dig.Container) error {
	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return err
	}

	// Register factories
	if err := container.Provide(factory.NewClassifierFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewNotifierFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewPipelineFactory); err != nil {
		return err
	}

	// Register classifier
	if err := container.Provide(func(f *factory.ClassifierFactory) (core.Classifier, error) {
		return f.CreateClassifier()
	}); err != nil {
		return err
	}

	// Register record store
	if err := container.Provide(func(f *factory.StoreFactory) (core.Store, error) {
		return f.CreateStore()
	}); err != nil {
		return err
	}

	// Register notification inbox and channels
	if err := container.Provide(func(f *factory.NotifierFactory) *notify.Inbox {
		return f.CreateInbox()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.NotifierFactory, inbox *notify.Inbox) (core.Notifier, error) {
		return f.CreateNotifier(inbox)
	}); err != nil {
		return err
	}

	// Register pipeline
	if err := container.Provide(func(
		f *factory.PipelineFactory,
		classifier core.Classifier,
		store core.Store,
		notifier core.Notifier,
	) (*core.Pipeline, error) {
		return f.CreatePipeline(classifier, store, notifier)
	}); err != nil {
		return err
	}

	return nil
}
