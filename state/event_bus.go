package state

import "sync"

// EventPublisher accepts events for fan out to any interested consumer.
type EventPublisher interface {
	Publish(any)
}

// EventSubscriber hands out channels that receive every published event.
type EventSubscriber interface {
	Subscribe() chan any
	Unsubscribe(chan any)
}

var _ EventPublisher = (*EventBus)(nil)
var _ EventSubscriber = (*EventBus)(nil)

type nullEventPublisher struct{}

func (_ nullEventPublisher) Publish(any) {}

// NullEventPublisher drops every event, for callers with no need to observe
// state changes.
var NullEventPublisher = nullEventPublisher{}

const subscriberQueueSize = 64

// EventBus fans published events out to subscriber channels. Publish never
// blocks, a subscriber that stops draining its channel loses events rather
// than stalling the publisher.
type EventBus struct {
	lock        sync.RWMutex
	subscribers []chan any
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

func (b *EventBus) Subscribe() chan any {
	b.lock.Lock()
	defer b.lock.Unlock()

	ch := make(chan any, subscriberQueueSize)
	b.subscribers = append(b.subscribers, ch)

	return ch
}

func (b *EventBus) Unsubscribe(ch chan any) {
	b.lock.Lock()
	defer b.lock.Unlock()

	for i, c := range b.subscribers {
		if c == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

func (b *EventBus) Publish(e any) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}
