package bus

import (
	"strings"
	"sync"
)

// Bus is an in-process publish/subscribe event bus with namespace filtering.
// Publishing never blocks: events for a full subscriber are dropped.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*Subscription
	next int
}

// Subscription is a live subscription to a namespace prefix.
type Subscription struct {
	C chan Event

	bus       *Bus
	id        int
	namespace string
	once      sync.Once
}

// Cancel removes the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		s.bus.mu.Unlock()
	})
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*Subscription)}
}

// Publish sends an event to all subscribers whose namespace is a prefix of
// evt.Kind. Slow subscribers miss events rather than stalling the publisher.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if strings.HasPrefix(evt.Kind, sub.namespace) {
			select {
			case sub.C <- evt:
			default:
			}
		}
	}
}

// Subscribe registers a subscriber for events whose Kind starts with
// namespace. bufSize controls how many events may queue before drops start.
func (b *Bus) Subscribe(namespace string, bufSize int) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &Subscription{
		C:         make(chan Event, bufSize),
		bus:       b,
		id:        b.next,
		namespace: namespace,
	}
	b.subs[sub.id] = sub
	b.next++
	return sub
}
