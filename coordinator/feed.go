// Package coordinator implements the coordinator-side match notifier: it
// watches for traders (re)connecting and replays any pending match for them.
package coordinator

import (
	"sync"

	"github.com/bikraj2/10101/logger"
)

// NewUserMessage signals that a trader connected or reconnected.
type NewUserMessage struct {
	TraderPubkey string
}

// UserFeed broadcasts NewUserMessage to all subscribers. Sends are
// non-blocking; a subscriber that cannot keep up drops events rather than
// stalling the publisher.
type UserFeed struct {
	mu          sync.RWMutex
	subscribers []chan NewUserMessage
	closed      bool
}

func NewUserFeed() *UserFeed {
	return &UserFeed{}
}

// Subscribe registers a new subscriber and returns its event channel.
func (f *UserFeed) Subscribe() <-chan NewUserMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan NewUserMessage, 100)
	f.subscribers = append(f.subscribers, ch)

	return ch
}

// Publish delivers the message to every subscriber without blocking.
func (f *UserFeed) Publish(msg NewUserMessage) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return
	}

	for _, ch := range f.subscribers {
		select {
		case ch <- msg:
		default:
			logger.Logger.Warn().
				Str("traderId", msg.TraderPubkey).
				Msg("Dropping user event, subscriber queue is full")
		}
	}
}

// Close closes all subscriber channels. Publish after Close is a no-op.
func (f *UserFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true

	for _, ch := range f.subscribers {
		close(ch)
	}
	f.subscribers = nil
}
