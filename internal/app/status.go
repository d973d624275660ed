package app

import (
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/statement-agent/internal/domain"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber
// that falls this far behind starts losing events rather than slowing
// down the orchestrator.
const subscriberBuffer = 64

// StatusHub fans a stream of domain.ProgressEvent out to any number of
// WebSocket subscribers. Unlike a typical broadcast hub that blocks on
// each connection's write, publishing here is always non-blocking: a
// slow or stalled subscriber misses events rather than stalling the
// publish path a tool dispatch runs on; it stays subscribed.
type StatusHub struct {
	mu          sync.RWMutex
	subscribers map[chan domain.ProgressEvent]struct{}
	logger      arbor.ILogger
}

func NewStatusHub(logger arbor.ILogger) *StatusHub {
	return &StatusHub{
		subscribers: make(map[chan domain.ProgressEvent]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a new subscriber and returns its event channel
// plus an unsubscribe function the caller must invoke on disconnect.
func (h *StatusHub) Subscribe() (<-chan domain.ProgressEvent, func()) {
	ch := make(chan domain.ProgressEvent, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		delete(h.subscribers, ch)
		h.mu.Unlock()
	}
	return ch, unsubscribe
}

// Publish fans an event out to every subscriber without blocking. A
// subscriber whose buffer is full simply misses the event.
func (h *StatusHub) Publish(event domain.ProgressEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			h.logger.Warn().Str("ticker", event.Ticker).Msg("status subscriber buffer full, dropping event")
		}
	}
}

// SubscriberCount reports the number of currently connected subscribers.
func (h *StatusHub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
