package eventsvc

import (
	"sync"

	"github.com/coachingcentre/platform/core"
	"github.com/coachingcentre/platform/core/session"
)

// subscriberBuffer is how many events a slow subscriber may lag behind before events get dropped.
const subscriberBuffer = 64

// Subscription receives the events of one session.
type Subscription struct {
	sessionID string
	events    chan session.Event
	hub       *Hub
	once      sync.Once
}

func (sub *Subscription) Events() <-chan session.Event { return sub.events }

// Close detaches the subscription from its hub and closes the event channel.
func (sub *Subscription) Close() {
	sub.once.Do(func() { sub.hub.unsubscribe(sub) })
}

// Hub fans committed session events out to live subscribers, per session.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	logger core.Logger
}

var _ session.EventPublisher = (*Hub)(nil) // interface compliance check

func NewHub(logger core.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		logger: logger,
	}
}

func (h *Hub) Subscribe(sessionID string) *Subscription {
	sub := &Subscription{
		sessionID: sessionID,
		events:    make(chan session.Event, subscriberBuffer),
		hub:       h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*Subscription]struct{})
	}
	h.subs[sessionID][sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subs[sub.sessionID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subs, sub.sessionID)
		}
	}
	close(sub.events)
}

// Publish never blocks: subscribers with a full buffer miss the event.
func (h *Hub) Publish(evt session.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[evt.SessionID] {
		select {
		case sub.events <- evt:
		default:
			if h.logger != nil {
				h.logger.Warn("eventsvc.Publish: dropping event " + string(evt.Type) + " for a slow subscriber of " + evt.SessionID)
			}
		}
	}
}

// Subscribers returns the number of live subscriptions on a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}
