// Package notify provides an explicit subscription list for components that
// publish events to observers.
package notify

// Subscription identifies a registered observer.
type Subscription uint64

// Subject is an ordered list of observers for values of type T. It is not
// safe for concurrent use; it is owned by a single emitting component.
type Subject[T any] struct {
	next      Subscription
	observers []observer[T]
}

type observer[T any] struct {
	id Subscription
	fn func(T)
}

// Subscribe registers fn and returns a handle for Unsubscribe.
func (s *Subject[T]) Subscribe(fn func(T)) Subscription {
	s.next++
	s.observers = append(s.observers, observer[T]{id: s.next, fn: fn})
	return s.next
}

// Unsubscribe removes the observer. Unknown handles are ignored.
func (s *Subject[T]) Unsubscribe(id Subscription) {
	for i, o := range s.observers {
		if o.id == id {
			s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
			return
		}
	}
}

// Notify calls every observer in subscription order. Observers added or
// removed during delivery take effect on the next Notify.
func (s *Subject[T]) Notify(v T) {
	snapshot := s.observers
	for _, o := range snapshot {
		o.fn(v)
	}
}

// Len reports the number of registered observers.
func (s *Subject[T]) Len() int {
	return len(s.observers)
}

// Clear drops every observer.
func (s *Subject[T]) Clear() {
	s.observers = nil
}
