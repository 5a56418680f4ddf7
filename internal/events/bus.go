// Package events is the in-process channel between the front end and the
// transcoding worker. Subscribers listen on string topics; the worker emits.
package events

import (
	"sync"
)

// Event is a payload delivered on a topic.
type Event struct {
	Topic   string
	Payload any
}

// Handler receives events for a topic. It runs on the emitting goroutine
// and must not block.
type Handler func(Event)

// Unlisten removes a subscription. Calling it more than once is harmless.
type Unlisten func()

// Bus is a topic-keyed publish/subscribe hub.
type Bus struct {
	mu       sync.Mutex
	next     uint64
	handlers map[string]map[uint64]Handler
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string]map[uint64]Handler)}
}

// Listen registers h for topic until the returned Unlisten is called.
func (b *Bus) Listen(topic string, h Handler) Unlisten {
	b.mu.Lock()
	b.next++
	id := b.next
	hs := b.handlers[topic]
	if hs == nil {
		hs = make(map[uint64]Handler)
		b.handlers[topic] = hs
	}
	hs[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic, id) })
	}
}

// Once returns a channel that receives the first event emitted on topic.
// The subscription removes itself after that event; Unlisten drops it early.
func (b *Bus) Once(topic string) (<-chan Event, Unlisten) {
	ch := make(chan Event, 1)
	var (
		fired sync.Once
		stop  Unlisten
		ready = make(chan struct{})
	)
	stop = b.Listen(topic, func(ev Event) {
		fired.Do(func() {
			ch <- ev
			<-ready
			stop()
		})
	})
	close(ready)
	return ch, stop
}

// Emit delivers payload to every handler currently registered for topic.
func (b *Bus) Emit(topic string, payload any) {
	b.mu.Lock()
	hs := make([]Handler, 0, len(b.handlers[topic]))
	for _, h := range b.handlers[topic] {
		hs = append(hs, h)
	}
	b.mu.Unlock()

	ev := Event{Topic: topic, Payload: payload}
	for _, h := range hs {
		h(ev)
	}
}

// Listeners returns the number of handlers registered for topic.
func (b *Bus) Listeners(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[topic])
}

func (b *Bus) remove(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	hs := b.handlers[topic]
	if hs == nil {
		return
	}
	delete(hs, id)
	if len(hs) == 0 {
		delete(b.handlers, topic)
	}
}
