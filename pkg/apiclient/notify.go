package apiclient

import (
	"context"
	"sync"
	"time"
)

// SessionExpiredEvent is delivered when the client loses its credentials
// because a refresh failed or a refreshed token was rejected.
type SessionExpiredEvent struct {
	Cause error
	At    time.Time
}

// notifier fans session expiry out to subscribers
type notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(SessionExpiredEvent)
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]func(SessionExpiredEvent))}
}

func (n *notifier) subscribe(fn func(SessionExpiredEvent)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

// emit calls subscribers synchronously outside the lock, so a subscriber may
// unsubscribe or use the client.
func (n *notifier) emit(_ context.Context, cause error) {
	n.mu.Lock()
	subs := make([]func(SessionExpiredEvent), 0, len(n.subs))
	for _, fn := range n.subs {
		subs = append(subs, fn)
	}
	n.mu.Unlock()

	event := SessionExpiredEvent{Cause: cause, At: time.Now()}
	for _, fn := range subs {
		fn(event)
	}
}
