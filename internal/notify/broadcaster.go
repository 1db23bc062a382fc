package notify

import (
	"sync"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// Broadcaster fans notifications out to any number of subscriber channels.
// Sending never blocks: a subscriber whose buffer is full misses the alert.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners []chan Notification
	recent    []Notification
	keep      int
	closed    bool
}

// NewBroadcaster creates a broadcaster that also remembers the last keep
// notifications for status pages.
func NewBroadcaster(keep int) *Broadcaster {
	return &Broadcaster{keep: keep}
}

// AddListener adds a subscriber. The channel is closed by RemoveListener or Close.
func (b *Broadcaster) AddListener() chan Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Notification, constants.EventChannelBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes a subscriber and closes its channel.
func (b *Broadcaster) RemoveListener(ch chan Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Notify implements Sink.
func (b *Broadcaster) Notify(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	if b.keep > 0 {
		b.recent = append(b.recent, n)
		if len(b.recent) > b.keep {
			b.recent = b.recent[len(b.recent)-b.keep:]
		}
	}

	for _, listener := range b.listeners {
		select {
		case listener <- n:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Recent returns the remembered notifications, oldest first.
func (b *Broadcaster) Recent() []Notification {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Notification, len(b.recent))
	copy(out, b.recent)
	return out
}

// ListenerCount returns the number of active subscribers.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Close closes every subscriber channel. Further notifications are dropped.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, listener := range b.listeners {
		close(listener)
	}
	b.listeners = nil
}
