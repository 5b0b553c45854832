package store

import (
	"errors"
	"sync"

	"github.com/mikey/phish-alert/internal/core"
)

// ErrNotFound is returned when no record is stored under a key
var ErrNotFound = errors.New("record not found")

// changeFeed fans write notifications out to subscribed listeners.
// Listeners run on the writing goroutine after the write completed,
// never while a store lock is held.
type changeFeed struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]core.ChangeListener
}

func newChangeFeed() *changeFeed {
	return &changeFeed{listeners: make(map[int]core.ChangeListener)}
}

// Subscribe registers a listener and returns a function that removes it
func (f *changeFeed) Subscribe(listener core.ChangeListener) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	f.listeners[id] = listener

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.listeners, id)
			f.mu.Unlock()
		})
	}
}

func (f *changeFeed) publish(keys []string) {
	if len(keys) == 0 {
		return
	}

	f.mu.Lock()
	listeners := make([]core.ChangeListener, 0, len(f.listeners))
	for _, l := range f.listeners {
		listeners = append(listeners, l)
	}
	f.mu.Unlock()

	for _, l := range listeners {
		l(append([]string(nil), keys...))
	}
}

// cloneRecord returns a deep copy so callers never share a stored record
func cloneRecord(r *core.Record) *core.Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Email != nil {
		meta := *r.Email
		c.Email = &meta
	}
	return &c
}

func validateRecord(r *core.Record) error {
	if r == nil || r.SubjectKey == "" {
		return errors.New("record has no subject key")
	}
	if !r.Verdict.Valid() {
		return errors.New("record has invalid verdict: " + string(r.Verdict))
	}
	return nil
}
