package optimistic

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type SlotState string

const (
	Idle       SlotState = "idle"
	Pending    SlotState = "pending"
	Committed  SlotState = "committed"
	RolledBack SlotState = "rolledBack"
)

// Slot tracks the single in-flight request of one logical action. A newer
// Begin supersedes the older request instead of queueing behind it; only the
// latest request id may leave Pending.
type Slot struct {
	mu      sync.Mutex
	state   SlotState
	current uuid.UUID
	cancel  context.CancelFunc
}

// Begin aborts whatever request is pending and starts a new one. apply runs
// under the slot lock so optimistic writes land in Begin order. timeout <= 0
// means no deadline beyond parent's.
func (s *Slot) Begin(parent context.Context, timeout time.Duration, apply func()) (context.Context, uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}

	s.current = uuid.New()
	s.cancel = cancel
	s.state = Pending
	if apply != nil {
		apply()
	}
	return ctx, s.current
}

// Resolve settles request id. It reports false, without running commit, if
// id was superseded or aborted in the meantime.
func (s *Slot) Resolve(id uuid.UUID, ok bool, commit func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Pending || id != s.current {
		return false
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if ok {
		s.state = Committed
	} else {
		s.state = RolledBack
	}
	if commit != nil {
		commit()
	}
	return true
}

// Abort cancels the pending request; its Resolve becomes a no-op.
func (s *Slot) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.state == Pending {
		s.state = RolledBack
	}
	s.current = uuid.Nil
}

func (s *Slot) State() SlotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == "" {
		return Idle
	}
	return s.state
}
