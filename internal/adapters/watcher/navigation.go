package watcher

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/core"
)

// TabUpdate is a browser tab change as reported by the extension
type TabUpdate struct {
	TabID  int    `json:"tab_id"`
	URL    string `json:"url"`
	Active bool   `json:"active"`
}

// NavigationWatcher classifies the URL of every active tab that navigates.
// Each update runs on its own goroutine; runs are never coalesced or cancelled
// by later navigation.
type NavigationWatcher struct {
	pipeline URLProcessor
	logger   *zap.Logger

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	// OnOutcome, when set, receives the outcome of every run
	OnOutcome func(update TabUpdate, out *core.Outcome)
}

// NewNavigationWatcher creates a new navigation watcher
func NewNavigationWatcher(pipeline URLProcessor, logger *zap.Logger) *NavigationWatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &NavigationWatcher{
		pipeline: pipeline,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start is a no-op: updates are pushed through HandleTabUpdate
func (w *NavigationWatcher) Start() error {
	w.logger.Info("Navigation watcher started")
	return nil
}

// Stop cancels in-flight runs and waits for them to finish
func (w *NavigationWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
	w.logger.Info("Navigation watcher stopped")
	return nil
}

// HandleTabUpdate dispatches a pipeline run for update and returns
// immediately. Updates without a URL, for inactive tabs, or arriving after
// Stop are ignored. It reports whether a run was dispatched.
func (w *NavigationWatcher) HandleTabUpdate(update TabUpdate) bool {
	if update.URL == "" || !update.Active {
		return false
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return false
	}
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		out := w.pipeline.ProcessURL(w.ctx, update.URL)
		w.logger.Debug("Navigation classified",
			zap.Int("tab_id", update.TabID),
			zap.String("url", update.URL),
			zap.String("state", out.State.String()),
			zap.String("verdict", string(out.Verdict())))
		if w.OnOutcome != nil {
			w.OnOutcome(update, out)
		}
	}()
	return true
}

// Wait blocks until every dispatched run has finished
func (w *NavigationWatcher) Wait() {
	w.wg.Wait()
}
