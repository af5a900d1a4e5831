package events

import (
	"sync"
	"time"
)

// Event describes one detected mail item, as exposed on the ops stream.
type Event struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"userId"`
	MailID      string    `json:"mailId"`
	From        string    `json:"from"`
	Subject     string    `json:"subject"`
	Truncated   bool      `json:"truncated"`
	Attachments int       `json:"attachments"`
	DetectedAt  time.Time `json:"detectedAt"`
}

type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

func (h *Hub) Subscribe() (chan Event, func()) {
	ch := make(chan Event, 8)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		close(ch)
	}
}

// Publish delivers the event to every subscriber without blocking; slow
// subscribers miss events rather than stalling the poll loop.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
