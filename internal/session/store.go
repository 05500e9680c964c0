package session

import (
	"sync"
)

type Snapshot struct {
	Version int   `json:"version"`
	State   State `json:"state"`
}

// Publisher receives every committed snapshot, in version order.
type Publisher interface {
	PublishSnapshot(Snapshot)
}

type nopPublisher struct{}

func (nopPublisher) PublishSnapshot(Snapshot) {}

// Store is the client-side mirror of the server session. All writes go
// through Update, which commits a whole new State at once.
type Store struct {
	mu      sync.Mutex
	state   State
	version int
	pub     Publisher
}

func NewStore(pub Publisher) *Store {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &Store{pub: pub}
}

// Update runs fn against a private copy of the state. If fn reports a
// change the copy replaces the current state and a snapshot is published;
// otherwise it is discarded.
func (s *Store) Update(fn func(*State) bool) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Clone()
	if !fn(&next) {
		return Snapshot{Version: s.version, State: s.state.Clone()}, false
	}

	s.state = next
	s.version++
	snap := Snapshot{Version: s.version, State: s.state.Clone()}
	// Published under the lock so subscribers see versions in order.
	s.pub.PublishSnapshot(snap)
	return Snapshot{Version: s.version, State: s.state.Clone()}, true
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Version: s.version, State: s.state.Clone()}
}

// Reset clears all session state back to idle.
func (s *Store) Reset() Snapshot {
	snap, _ := s.Update(func(st *State) bool {
		if !st.IsMatchmaking() && st.Local == (Local{WindowFocused: st.Local.WindowFocused}) {
			return false
		}
		st.ResetSession()
		return true
	})
	return snap
}
