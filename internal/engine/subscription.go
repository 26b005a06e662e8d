package engine

import "sync"

// Subscription is a handle to a registered callback. Unsubscribe is
// idempotent and safe on a nil handle.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

type listener[T any] struct {
	id int
	fn func(T)
}

// listeners notifies callbacks in registration order.
type listeners[T any] struct {
	next  int
	items []listener[T]
}

func (l *listeners[T]) add(fn func(T)) *Subscription {
	l.next++
	id := l.next
	l.items = append(l.items, listener[T]{id: id, fn: fn})
	return &Subscription{cancel: func() { l.remove(id) }}
}

func (l *listeners[T]) remove(id int) {
	for i, it := range l.items {
		if it.id == id {
			l.items = append(l.items[:i:i], l.items[i+1:]...)
			return
		}
	}
}

func (l *listeners[T]) notify(v T) {
	for _, it := range l.items {
		it.fn(v)
	}
}

func (l *listeners[T]) len() int {
	return len(l.items)
}
