package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/adapters/api"
	"github.com/mikey/phish-alert/internal/adapters/watcher"
	"github.com/mikey/phish-alert/internal/config"
	"github.com/mikey/phish-alert/internal/core"
	"github.com/mikey/phish-alert/internal/di"
	"github.com/mikey/phish-alert/internal/ports"
	"github.com/mikey/phish-alert/internal/presentation"
)

func main() {
	configFile := flag.String("config", "", "Path to config file (defaults to the standard search locations)")
	flag.Parse()

	var cfg *config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.NewWithFile(*configFile)
		if err != nil {
			fmt.Printf("Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	}

	// Build the dependency injection container
	container, err := di.BuildContainer(cfg)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	server *api.Server,
	navigation *watcher.NavigationWatcher,
	smtpWatcher *watcher.SMTPWatcher,
	presenter *presentation.Presenter,
	classifier core.Classifier,
	store core.Store,
) error {
	defer logger.Sync()

	watchers := []ports.Watcher{navigation}
	if smtpWatcher != nil {
		watchers = append(watchers, smtpWatcher)
	}

	// Start the watchers
	for _, w := range watchers {
		if err := w.Start(); err != nil {
			logger.Error("Failed to start watcher", zap.Error(err))
			return err
		}
	}

	if err := server.Start(); err != nil {
		logger.Error("Failed to start API server", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	// Closing the presenter ends open list streams so the server can drain
	presenter.Close()

	if err := server.Stop(); err != nil {
		logger.Error("Failed to stop API server", zap.Error(err))
	}

	// Stop the watchers
	for _, w := range watchers {
		if err := w.Stop(); err != nil {
			logger.Error("Failed to stop watcher", zap.Error(err))
		}
	}

	// Close any resources that need closing
	if closer, ok := classifier.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close classifier", zap.Error(err))
		}
	}

	// Stop the store if needed
	if stopper, ok := store.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	logger.Info("Shutdown complete")
	return nil
}
