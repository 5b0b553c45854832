package notify

import (
	"context"
	"sync"

	"github.com/mikey/phish-alert/internal/core"
)

// PopupPath is where the notification button takes the user
const PopupPath = "/popup"

// Inbox keeps the most recent notifications until the extension picks them up.
// When full, the oldest notification is dropped.
type Inbox struct {
	mu    sync.Mutex
	items []*core.Notification
	size  int
}

// NewInbox creates an inbox holding at most size notifications
func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = 1
	}
	return &Inbox{size: size}
}

// Notify queues the notification
func (i *Inbox) Notify(ctx context.Context, notification *core.Notification) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if len(i.items) == i.size {
		i.items = i.items[1:]
	}
	i.items = append(i.items, notification)
	return nil
}

// Pending returns the queued notifications, oldest first
func (i *Inbox) Pending() []*core.Notification {
	i.mu.Lock()
	defer i.mu.Unlock()

	out := make([]*core.Notification, len(i.items))
	copy(out, i.items)
	return out
}

// Click acknowledges the notification with the given id and removes it from
// the inbox. It reports false when no such notification is queued.
func (i *Inbox) Click(id string) (*core.Notification, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for idx, n := range i.items {
		if n.ID == id {
			i.items = append(i.items[:idx], i.items[idx+1:]...)
			return n, true
		}
	}
	return nil, false
}
