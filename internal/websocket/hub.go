package chatws

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/metrics"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
)

var (
	ErrSubscriberLagging = errors.New("subscriber is lagging behind")
	ErrBrokerClosed      = errors.New("broker closed")
)

const defaultSubscriptionBuffer = 64

// Hub fans conversation events out to subscriptions. A single goroutine
// (Run) owns the subscriber set, so events are delivered in the order they
// were published.
type Hub struct {
	subscribers map[string]map[*Subscription]struct{}
	register    chan *Subscription
	unregister  chan *Subscription
	broadcast   chan models.ConversationEvent
	done        chan struct{}
	closeOnce   sync.Once
	bufferSize  int
}

// Subscription receives the events of one user, optionally narrowed to a
// single conversation.
type Subscription struct {
	hub            *Hub
	userID         string
	conversationID string
	events         chan models.ConversationEvent
	errs           chan error
}

func NewHub() *Hub {
	return NewHubWithBuffer(defaultSubscriptionBuffer)
}

func NewHubWithBuffer(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = defaultSubscriptionBuffer
	}
	return &Hub{
		subscribers: make(map[string]map[*Subscription]struct{}),
		register:    make(chan *Subscription),
		unregister:  make(chan *Subscription),
		broadcast:   make(chan models.ConversationEvent, 256),
		done:        make(chan struct{}),
		bufferSize:  bufferSize,
	}
}

// Run serves the hub until ctx is cancelled. Every open subscription then
// receives ErrBrokerClosed.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case sub := <-h.register:
			set, ok := h.subscribers[sub.userID]
			if !ok {
				set = make(map[*Subscription]struct{})
				h.subscribers[sub.userID] = set
			}
			set[sub] = struct{}{}
			metrics.ActiveSubscriptions.Inc()
		case sub := <-h.unregister:
			h.remove(sub, nil)
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

// Publish queues event for delivery. It returns once the event is queued,
// so callers that serialise their calls get their events delivered in the
// same order.
func (h *Hub) Publish(event models.ConversationEvent) {
	select {
	case h.broadcast <- event:
	case <-h.done:
	}
}

func (h *Hub) Subscribe(userID, conversationID string) *Subscription {
	sub := &Subscription{
		hub:            h,
		userID:         userID,
		conversationID: conversationID,
		events:         make(chan models.ConversationEvent, h.bufferSize),
		errs:           make(chan error, 1),
	}

	select {
	case h.register <- sub:
	case <-h.done:
		sub.errs <- ErrBrokerClosed
		close(sub.events)
		close(sub.errs)
	}
	return sub
}

func (h *Hub) deliver(event models.ConversationEvent) {
	for _, participant := range event.Participants {
		set, ok := h.subscribers[participant]
		if !ok {
			continue
		}
		for sub := range set {
			if sub.conversationID != "" && sub.conversationID != event.ConversationID {
				continue
			}
			select {
			case sub.events <- event:
			default:
				metrics.DroppedSubscriptions.WithLabelValues("lagging").Inc()
				h.remove(sub, ErrSubscriberLagging)
			}
		}
	}
}

func (h *Hub) remove(sub *Subscription, reason error) {
	set, ok := h.subscribers[sub.userID]
	if !ok {
		return
	}
	if _, exists := set[sub]; !exists {
		return
	}

	delete(set, sub)
	if len(set) == 0 {
		delete(h.subscribers, sub.userID)
	}
	metrics.ActiveSubscriptions.Dec()

	if reason != nil {
		sub.errs <- reason
	}
	close(sub.events)
	close(sub.errs)
}

func (h *Hub) shutdown() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
	for _, set := range h.subscribers {
		for _, sub := range slices.Collect(maps.Keys(set)) {
			metrics.DroppedSubscriptions.WithLabelValues("closed").Inc()
			h.remove(sub, ErrBrokerClosed)
		}
	}
}

func (s *Subscription) Events() <-chan models.ConversationEvent {
	return s.events
}

// Err yields at most one error explaining why the hub closed the
// subscription. It is closed without a value after Cancel.
func (s *Subscription) Err() <-chan error {
	return s.errs
}

func (s *Subscription) Cancel() {
	select {
	case s.hub.unregister <- s:
	case <-s.hub.done:
	}
}

func (s *Subscription) UserID() string {
	return s.userID
}
