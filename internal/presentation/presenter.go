package presentation

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/core"
)

// Presenter keeps the rendered lists in step with the store. Every change
// notification triggers a full rebuild.
type Presenter struct {
	store  core.Store
	logger *zap.Logger

	rebuildMu sync.Mutex

	mu       sync.RWMutex
	lists    Lists
	watchers map[chan Lists]struct{}
	closed   bool

	unsubscribe func()
}

// NewPresenter renders the current store contents and subscribes to changes
func NewPresenter(ctx context.Context, store core.Store, logger *zap.Logger) (*Presenter, error) {
	p := &Presenter{
		store:    store,
		logger:   logger,
		lists:    Render(nil),
		watchers: make(map[chan Lists]struct{}),
	}
	if err := p.Refresh(ctx); err != nil {
		return nil, err
	}
	p.unsubscribe = store.Subscribe(p.onChange)
	return p, nil
}

func (p *Presenter) onChange(keys []string) {
	p.logger.Debug("Store changed", zap.Strings("keys", keys))
	if err := p.Refresh(context.Background()); err != nil {
		p.logger.Error("Failed to rebuild lists", zap.Error(err))
	}
}

// Refresh rebuilds the lists from the store and publishes them to watchers
func (p *Presenter) Refresh(ctx context.Context) error {
	p.rebuildMu.Lock()
	defer p.rebuildMu.Unlock()

	records, err := p.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}
	lists := Render(records)

	p.mu.Lock()
	p.lists = lists
	for ch := range p.watchers {
		publish(ch, lists)
	}
	p.mu.Unlock()
	return nil
}

// publish hands lists to ch, replacing an unread older value
func publish(ch chan Lists, lists Lists) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- lists:
	default:
	}
}

// Lists returns the most recently rendered lists
func (p *Presenter) Lists() Lists {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lists
}

// Watch returns a channel that receives the current lists and then every
// rebuild. Slow readers only see the latest lists. The returned function
// stops the watch and closes the channel.
func (p *Presenter) Watch() (<-chan Lists, func()) {
	ch := make(chan Lists, 1)

	p.mu.Lock()
	ch <- p.lists
	if p.closed {
		close(ch)
		p.mu.Unlock()
		return ch, func() {}
	}
	p.watchers[ch] = struct{}{}
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			if _, ok := p.watchers[ch]; ok {
				delete(p.watchers, ch)
				close(ch)
			}
			p.mu.Unlock()
		})
	}
}

// Lookup returns the record for url, used for the active tab alert
func (p *Presenter) Lookup(ctx context.Context, url string) (*core.Record, error) {
	return p.store.Get(ctx, url)
}

// ClearAll removes every record
func (p *Presenter) ClearAll(ctx context.Context) (Toast, error) {
	records, err := p.store.GetAll(ctx)
	if err != nil {
		return Toast{}, fmt.Errorf("failed to load records: %w", err)
	}
	if err := p.store.Clear(ctx); err != nil {
		return Toast{}, fmt.Errorf("failed to clear records: %w", err)
	}
	p.logger.Info("Cleared all records", zap.Int("removed_count", len(records)))
	return Toast{Message: ToastAllCleared, Removed: len(records)}, nil
}

// ClearVerdict removes every record with the given verdict
func (p *Presenter) ClearVerdict(ctx context.Context, verdict core.Verdict) (Toast, error) {
	if !verdict.Valid() {
		return Toast{}, fmt.Errorf("invalid verdict: %s", verdict)
	}

	records, err := p.store.GetAll(ctx)
	if err != nil {
		return Toast{}, fmt.Errorf("failed to load records: %w", err)
	}

	var keys []string
	for _, r := range records {
		if r.Verdict == verdict {
			keys = append(keys, r.SubjectKey)
		}
	}
	if err := p.store.Remove(ctx, keys...); err != nil {
		return Toast{}, fmt.Errorf("failed to remove %s records: %w", verdict, err)
	}

	p.logger.Info("Cleared records", zap.String("verdict", string(verdict)), zap.Int("removed_count", len(keys)))
	return ClearedToast(verdict, len(keys)), nil
}

// Close stops following the store and closes every watch channel
func (p *Presenter) Close() {
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
	p.mu.Lock()
	p.closed = true
	for ch := range p.watchers {
		delete(p.watchers, ch)
		close(ch)
	}
	p.mu.Unlock()
}
