// Package events implements a small publish/subscribe bus keyed by event
// name.
package events

import (
	"sync"
)

// Handler receives the payload of a published event.
type Handler func(payload interface{})

// Disposable releases a resource such as a subscription.
// Dispose may be called more than once.
type Disposable interface {
	Dispose()
}

// DisposableFunc adapts a function to Disposable. The function runs at
// most once.
func DisposableFunc(f func()) Disposable {
	return &funcDisposable{f: f}
}

type funcDisposable struct {
	once sync.Once
	f    func()
}

func (d *funcDisposable) Dispose() {
	d.once.Do(d.f)
}

type subscription struct {
	id uint64
	h  Handler
}

// Bus delivers published events to the handlers subscribed to them.
// The zero value is ready to use.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string][]subscription
}

// Subscribe registers h for event. Handlers of one event run in the order
// they were subscribed. Disposing the result removes h.
func (b *Bus) Subscribe(event string, h Handler) Disposable {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs == nil {
		b.subs = make(map[string][]subscription)
	}
	b.nextID++
	id := b.nextID
	b.subs[event] = append(b.subs[event], subscription{id: id, h: h})

	return DisposableFunc(func() { b.unsubscribe(event, id) })
}

func (b *Bus) unsubscribe(event string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[event]
	for i, s := range subs {
		if s.id != id {
			continue
		}
		// Copy so that a Publish iterating the old slice is unaffected.
		n := make([]subscription, 0, len(subs)-1)
		n = append(n, subs[:i]...)
		n = append(n, subs[i+1:]...)
		if len(n) == 0 {
			delete(b.subs, event)
		} else {
			b.subs[event] = n
		}
		return
	}
}

// Publish calls every handler subscribed to event with payload.
// Handlers run on the calling goroutine without the bus lock held, so they
// may subscribe, dispose or publish.
func (b *Bus) Publish(event string, payload interface{}) {
	b.mu.Lock()
	subs := b.subs[event]
	b.mu.Unlock()

	for _, s := range subs {
		s.h(payload)
	}
}

// HasSubscribers reports whether any handler is subscribed to event.
func (b *Bus) HasSubscribers(event string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[event]) > 0
}

// Disposables disposes a group of disposables together.
// The zero value is ready to use.
type Disposables struct {
	mu    sync.Mutex
	items []Disposable
}

// Add appends ds to the group.
func (d *Disposables) Add(ds ...Disposable) {
	d.mu.Lock()
	d.items = append(d.items, ds...)
	d.mu.Unlock()
}

// Dispose disposes every member in reverse order of addition and empties
// the group.
func (d *Disposables) Dispose() {
	d.mu.Lock()
	items := d.items
	d.items = nil
	d.mu.Unlock()

	for i := len(items) - 1; i >= 0; i-- {
		items[i].Dispose()
	}
}
