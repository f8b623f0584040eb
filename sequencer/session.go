package sequencer

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Session is the shared cell holding the current State. Readers get a
// complete immutable snapshot; writers clone, mutate and publish, so a tick
// never sees a half-updated chain or grid.
type Session struct {
	mu   sync.Mutex // serializes writers
	cur  atomic.Pointer[State]
	subs []func(*State)
}

// NewSession publishes an initial state
func NewSession(s *State) *Session {
	sess := &Session{}
	sess.cur.Store(s)
	return sess
}

// Snapshot returns the latest published state. Callers must not modify it.
func (s *Session) Snapshot() *State {
	return s.cur.Load()
}

// Update applies fn to a copy of the current state and publishes the result
func (s *Session) Update(fn func(*State)) *State {
	s.mu.Lock()
	next := s.cur.Load().Clone()
	fn(next)
	s.cur.Store(next)
	subs := s.subs
	s.mu.Unlock()

	for _, f := range subs {
		f(next)
	}
	return next
}

// Replace publishes st as is, e.g. after loading a saved session
func (s *Session) Replace(st *State) {
	s.mu.Lock()
	s.cur.Store(st)
	subs := s.subs
	s.mu.Unlock()

	for _, f := range subs {
		f(st)
	}
}

// Subscribe registers fn to run after every publish
func (s *Session) Subscribe(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(slices.Clone(s.subs), fn)
}
