package events

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mezonai/sequencer/logx"
)

type SubscriberID string

const subscriberBuffer = 50

type Subscriber struct {
	ID      SubscriberID
	Channel chan SequencerEvent
}

type EventBus struct {
	subscribers map[SubscriberID]*Subscriber
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[SubscriberID]*Subscriber),
	}
}

func (eb *EventBus) generateUUIDID() SubscriberID {
	id := uuid.Must(uuid.NewV7())
	return SubscriberID(id.String())
}

func (eb *EventBus) Subscribe() (SubscriberID, <-chan SequencerEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	id := eb.generateUUIDID()
	ch := make(chan SequencerEvent, subscriberBuffer)
	eb.subscribers[id] = &Subscriber{ID: id, Channel: ch}

	logx.Info("EVENTBUS", fmt.Sprintf("Subscribed | subscriber_id=%s | total_subscribers=%d", id, len(eb.subscribers)))
	return id, ch
}

// Unsubscribe removes a subscription by ID and closes its channel
func (eb *EventBus) Unsubscribe(id SubscriberID) bool {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subscriber, exists := eb.subscribers[id]
	if !exists {
		logx.Warn("EVENTBUS", fmt.Sprintf("Attempted to unsubscribe non-existent subscriber | subscriber_id=%s", id))
		return false
	}

	delete(eb.subscribers, id)
	close(subscriber.Channel)

	logx.Info("EVENTBUS", fmt.Sprintf("Unsubscribed | subscriber_id=%s | remaining_subscribers=%d", id, len(eb.subscribers)))
	return true
}

// Publish delivers event to every subscriber without blocking. A subscriber
// whose buffer is full misses the event.
func (eb *EventBus) Publish(event SequencerEvent) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for id, subscriber := range eb.subscribers {
		select {
		case subscriber.Channel <- event:
		default:
			logx.Warn("EVENTBUS", fmt.Sprintf("Subscriber channel full | subscriber_id=%s | event_type=%s | subject=%s", id, event.Type(), event.Subject()))
		}
	}
}

func (eb *EventBus) GetTotalSubscriptions() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

func (eb *EventBus) HasSubscriber(id SubscriberID) bool {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	_, exists := eb.subscribers[id]
	return exists
}
