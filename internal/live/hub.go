// Package live fans change events out to in-process subscribers.
package live

import (
	"sync"
	"time"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/metrics"
)

// Event kinds published by the stores.
const (
	KindExpenseAdded         = "expense_added"
	KindExpenseEdited        = "expense_edited"
	KindExpenseDeleted       = "expense_deleted"
	KindProjectUpdated       = "project_updated"
	KindProjectDeleted       = "project_deleted"
	KindNotification         = "notification"
	KindNotificationsCleared = "notifications_cleared"
)

// Event is an immutable change notice. Payload must not be mutated after publishing.
type Event struct {
	Topic   string
	Kind    string
	ID      string
	At      time.Time
	Payload any
}

// ProjectTopic is the topic carrying changes to one project and its expenses.
func ProjectTopic(projectID string) string {
	return "project:" + projectID
}

// UserTopic is the topic carrying one user's notifications.
func UserTopic(userID string) string {
	return "user:" + userID
}

// Publisher publishes events. Services depend on this rather than on Hub.
type Publisher interface {
	Publish(Event)
}

type subscriber struct {
	ch chan Event
}

// Hub is an in-memory topic based pub/sub broker.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	buffer int
}

// NewHub creates a hub whose subscriber channels hold up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[string]map[*subscriber]struct{}), buffer: buffer}
}

// Subscribe registers interest in topic. The returned cancel func removes the
// subscription and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(topic string) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[*subscriber]struct{})
	}
	h.subs[topic][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[topic], sub)
			if len(h.subs[topic]) == 0 {
				delete(h.subs, topic)
			}
			close(sub.ch)
			h.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// Publish delivers ev to every current subscriber of ev.Topic. It never
// blocks: a subscriber whose buffer is full misses the event.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[ev.Topic] {
		select {
		case sub.ch <- ev:
		default:
			metrics.LiveEventsDropped.Inc()
		}
	}
}

// Subscribers returns the number of subscribers on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}
