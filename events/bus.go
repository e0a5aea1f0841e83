// Package events is the publish/subscribe primitive shared by the player
// adapter, the playlist controller and the application state. Each component
// owns one Bus over its own event type and a fixed vocabulary of names.
package events

import "sync"

// Event is anything that can be routed by name.
type Event interface {
	EventName() string
}

type subscription[E Event] struct {
	id      int
	name    string
	handler func(E)
}

// Bus delivers events synchronously, in subscription order, on the goroutine
// that publishes them. Handlers run without the bus lock held, so a handler
// may subscribe, unsubscribe or publish again.
type Bus[E Event] struct {
	mutex  sync.RWMutex
	subs   []subscription[E]
	nextID int
}

func NewBus[E Event]() *Bus[E] {
	return &Bus[E]{}
}

// Listen registers handler for events called name. An empty name receives
// every event. The returned function removes the subscription.
func (b *Bus[E]) Listen(name string, handler func(E)) func() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription[E]{id: id, name: name, handler: handler})

	return func() {
		b.mutex.Lock()
		defer b.mutex.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus[E]) Publish(event E) {
	name := event.EventName()

	b.mutex.RLock()
	matched := make([]func(E), 0, len(b.subs))
	for _, s := range b.subs {
		if s.name == "" || s.name == name {
			matched = append(matched, s.handler)
		}
	}
	b.mutex.RUnlock()

	for _, handler := range matched {
		handler(event)
	}
}

// Len returns the number of live subscriptions.
func (b *Bus[E]) Len() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.subs)
}
