package countdown

import (
	"sync"
	"time"

	"github.com/DoyleJ11/matchmaking-client/internal/session"
	"github.com/jonboulle/clockwork"
)

const DefaultOvertimeGrace = 250 * time.Millisecond

// Pick flags a draft turn as overtime shortly after its nominal deadline so
// the lock-in control can be disabled early. Expiry itself is the server's
// call.
type Pick struct {
	clock    clockwork.Clock
	store    *session.Store
	pickTime time.Duration
	grace    time.Duration

	mu    sync.Mutex
	gen   uint64
	timer clockwork.Timer
}

func NewPick(clock clockwork.Clock, store *session.Store, pickTime, grace time.Duration) *Pick {
	return &Pick{clock: clock, store: store, pickTime: pickTime, grace: grace}
}

// Deadline is the nominal end of the turn that started at anchor.
func (p *Pick) Deadline(anchor time.Time) time.Time {
	return anchor.Add(p.pickTime)
}

func (p *Pick) Start(anchor time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.gen++
	gen := p.gen

	wait := p.Deadline(anchor).Add(p.grace).Sub(p.clock.Now())
	if wait < 0 {
		wait = 0
	}
	p.timer = p.clock.AfterFunc(wait, func() { p.fire(gen, anchor) })
}

func (p *Pick) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.gen++
}

func (p *Pick) stopLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Pick) fire(gen uint64, anchor time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return
	}
	p.timer = nil

	p.store.Update(func(s *session.State) bool {
		if s.DraftPickTimeStart == nil || !s.DraftPickTimeStart.Equal(anchor) || s.Local.DraftOvertime {
			return false
		}
		s.Local.DraftOvertime = true
		return true
	})
}
