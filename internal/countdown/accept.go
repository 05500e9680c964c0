package countdown

import (
	"sync"
	"time"

	"github.com/DoyleJ11/matchmaking-client/internal/session"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	TickFrom      = 10 // seconds left when ticking starts
	FinalTickFrom = 4
)

type Cue string

const (
	CueNone      Cue = ""
	CueTick      Cue = "tick"
	CueFinalTick Cue = "finalTick"
)

// CueSink gets the audible cue for each displayed second.
type CueSink interface {
	Cue(cue Cue, secondsLeft int)
}

type nopCues struct{}

func (nopCues) Cue(Cue, int) {}

// AcceptStart anchors the accept window on the local clock so the countdown
// matches the server's remaining time regardless of delivery latency.
func AcceptStart(now time.Time, total, left time.Duration) time.Time {
	if left > total {
		left = total
	}
	if left < 0 {
		left = 0
	}
	return now.Add(-(total - left))
}

// SecondsLeft is ceil((start + total - now) / 1s), never negative.
func SecondsLeft(now, start time.Time, total time.Duration) int {
	rem := start.Add(total).Sub(now)
	if rem <= 0 {
		return 0
	}
	return int((rem + time.Second - 1) / time.Second)
}

func CueFor(secondsLeft int) Cue {
	switch {
	case secondsLeft <= 0:
		return CueNone
	case secondsLeft <= FinalTickFrom:
		return CueFinalTick
	case secondsLeft <= TickFrom:
		return CueTick
	default:
		return CueNone
	}
}

// Accept drives the display countdown for a found match. It never fails the
// match: reaching zero only sets Local.AcceptExpired.
type Accept struct {
	clock  clockwork.Clock
	store  *session.Store
	cues   CueSink
	logger *zap.Logger

	mu    sync.Mutex
	gen   uint64
	timer clockwork.Timer
}

func NewAccept(clock clockwork.Clock, store *session.Store, cues CueSink, logger *zap.Logger) *Accept {
	if cues == nil {
		cues = nopCues{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accept{clock: clock, store: store, cues: cues, logger: logger}
}

func (a *Accept) Start(start time.Time, total time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopLocked()
	a.gen++
	a.logger.Debug("accept countdown started",
		zap.Time("acceptStart", start),
		zap.Duration("total", total))
	a.tickLocked(a.gen, start, total)
}

func (a *Accept) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
	a.gen++
}

func (a *Accept) stopLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Accept) tick(gen uint64, start time.Time, total time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen {
		return // stale fire from a stopped or restarted countdown
	}
	a.tickLocked(gen, start, total)
}

func (a *Accept) tickLocked(gen uint64, start time.Time, total time.Duration) {
	now := a.clock.Now()
	left := SecondsLeft(now, start, total)

	live := true
	a.store.Update(func(s *session.State) bool {
		if s.FoundMatch == nil || !s.FoundMatch.AcceptStart.Equal(start) {
			live = false
			return false
		}
		expired := left == 0
		if s.Local.AcceptSecondsLeft == left && s.Local.AcceptExpired == expired {
			return false
		}
		s.Local.AcceptSecondsLeft = left
		s.Local.AcceptExpired = expired
		return true
	})

	if !live {
		// The match this countdown belongs to is gone.
		a.timer = nil
		return
	}

	if cue := CueFor(left); cue != CueNone {
		a.cues.Cue(cue, left)
	}
	if left == 0 {
		a.timer = nil
		return
	}

	// Wake when the remaining time crosses the next whole second.
	wait := start.Add(total).Sub(now) - time.Duration(left-1)*time.Second
	a.timer = a.clock.AfterFunc(wait, func() { a.tick(gen, start, total) })
}
