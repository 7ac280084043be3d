package round

import "sync"

// signal is a one-shot notification carrying a value. The first Fire wins;
// a waiter that arrives after the fire still sees it.
type signal[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
}

func newSignal[T any]() *signal[T] {
	return &signal[T]{done: make(chan struct{})}
}

// Fire stores v and wakes every waiter. It reports false if the signal had
// already fired, in which case v is dropped.
func (s *signal[T]) Fire(v T) bool {
	fired := false
	s.once.Do(func() {
		s.value = v
		close(s.done)
		fired = true
	})
	return fired
}

func (s *signal[T]) Done() <-chan struct{} {
	return s.done
}

// Value returns the fired value, or false if the signal has not fired yet
func (s *signal[T]) Value() (T, bool) {
	select {
	case <-s.done:
		return s.value, true
	default:
		var zero T
		return zero, false
	}
}
