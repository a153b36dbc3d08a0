package store

import "sync"

// Listener is called after every dispatch with the action and the new state.
// It runs under the store's dispatch lock and must not dispatch.
type Listener func(a Action, s State)

// Store holds one session's state. Dispatch serialises reductions and their
// listener calls, so listeners observe states in dispatch order.
type Store struct {
	dispatch sync.Mutex
	mu       sync.RWMutex
	state    State
	listener Listener
}

// New creates a store from an initial state. listener may be nil.
func New(initial State, listener Listener) *Store {
	return &Store{state: initial, listener: listener}
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dispatch applies a and returns the new snapshot.
func (s *Store) Dispatch(a Action) State {
	s.dispatch.Lock()
	defer s.dispatch.Unlock()

	s.mu.Lock()
	s.state = Reduce(s.state, a)
	next := s.state
	s.mu.Unlock()

	if s.listener != nil {
		s.listener(a, next)
	}
	return next
}
