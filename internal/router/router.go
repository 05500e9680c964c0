package router

import (
	"context"
	"time"

	"github.com/DoyleJ11/matchmaking-client/internal/journal"
	"github.com/DoyleJ11/matchmaking-client/internal/session"
	"github.com/DoyleJ11/matchmaking-client/pkg/types"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

const DefaultMaxPending = 256

type Msg interface{ isRouterMsg() }

// Inbound is one decoded server event.
type Inbound struct {
	Envelope types.Envelope
}

func (Inbound) isRouterMsg() {}

// Reconnected marks the start of a new upstream connection. Everything
// from the old connection is discarded.
type Reconnected struct{}

func (Reconnected) isRouterMsg() {}

type Shutdown struct{}

func (Shutdown) isRouterMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRouterMsg() {}

type View struct {
	NextSeq uint64
	Pending int
	Applied int
	State   session.State
}

type AcceptTimer interface {
	Start(start time.Time, total time.Duration)
	Stop()
}

type PickTimer interface {
	Start(anchor time.Time)
	Stop()
}

// PendingCanceler aborts optimistic requests whose target the server has
// taken away.
type PendingCanceler interface {
	CancelPending()
	CancelAccept()
}

type Recorder interface {
	Record(journal.Outcome)
}

type Options struct {
	Clock       clockwork.Clock
	Logger      *zap.Logger
	Notifier    session.Notifier
	AcceptTimer AcceptTimer
	PickTimer   PickTimer
	Pending     PendingCanceler
	Journal     Recorder

	SelfUserID string
	SelfName   string

	MaxPending int
}

// Router applies server events to the store one at a time, in sequence
// order, from a single goroutine.
type Router struct {
	inbox  chan Msg
	store  *session.Store
	clock  clockwork.Clock
	logger *zap.Logger

	notifier    session.Notifier
	acceptTimer AcceptTimer
	pickTimer   PickTimer
	pending     PendingCanceler
	journal     Recorder

	selfUserID    string
	mentionHandle string // case-folded "@name", empty when unknown
	fold          cases.Caser

	maxPending int
	nextSeq    uint64 // 0: adopt the next sequenced event as baseline
	buffered   map[uint64]types.Event
	applied    int

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, store *session.Store, opts Options) *Router {
	r := newRouter(parent, store, opts)
	go r.loop()
	return r
}

func newRouter(parent context.Context, store *session.Store, opts Options) *Router {
	ctx, cancel := context.WithCancel(parent)

	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Notifier == nil {
		opts.Notifier = session.NopNotifier{}
	}
	if opts.MaxPending <= 0 {
		opts.MaxPending = DefaultMaxPending
	}

	r := &Router{
		inbox:       make(chan Msg, 64),
		store:       store,
		clock:       opts.Clock,
		logger:      opts.Logger,
		notifier:    opts.Notifier,
		acceptTimer: opts.AcceptTimer,
		pickTimer:   opts.PickTimer,
		pending:     opts.Pending,
		journal:     opts.Journal,
		selfUserID:  opts.SelfUserID,
		fold:        cases.Fold(),
		maxPending:  opts.MaxPending,
		buffered:    make(map[uint64]types.Event),
		ctx:         ctx,
		cancel:      cancel,
	}
	if opts.SelfName != "" {
		r.mentionHandle = r.fold.String("@" + opts.SelfName)
	}
	return r
}

func (r *Router) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Inbound:
				r.deliver(msg.Envelope)

			case Reconnected:
				r.logger.Info("upstream reconnected, resetting session")
				r.resync()

			case GetState:
				msg.Reply <- View{
					NextSeq: r.nextSeq,
					Pending: len(r.buffered),
					Applied: r.applied,
					State:   r.store.Snapshot().State,
				}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Router) shutdown() {
	if r.acceptTimer != nil {
		r.acceptTimer.Stop()
	}
	if r.pickTimer != nil {
		r.pickTimer.Stop()
	}
	r.cancel()
}

// deliver enforces per-connection ordering: early events wait in the buffer,
// duplicates and stale ones are dropped.
func (r *Router) deliver(env types.Envelope) {
	if env.Seq == 0 {
		r.apply(env.Event)
		return
	}
	if r.nextSeq == 0 {
		r.nextSeq = env.Seq
	}

	switch {
	case env.Seq < r.nextSeq:
		r.logger.Debug("dropping stale event",
			zap.Uint64("seq", env.Seq),
			zap.Uint64("expected", r.nextSeq),
			zap.String("type", string(env.Event.Type())))
		return

	case env.Seq > r.nextSeq:
		if _, dup := r.buffered[env.Seq]; dup {
			return
		}
		r.buffered[env.Seq] = env.Event
		if len(r.buffered) > r.maxPending {
			r.logger.Warn("event gap never filled, resyncing",
				zap.Uint64("expected", r.nextSeq),
				zap.Int("buffered", len(r.buffered)))
			r.resync()
		}
		return
	}

	r.apply(env.Event)
	r.nextSeq++
	for {
		ev, ok := r.buffered[r.nextSeq]
		if !ok {
			return
		}
		delete(r.buffered, r.nextSeq)
		r.apply(ev)
		r.nextSeq++
	}
}

// resync drops ordering state and returns the session to idle; the server
// re-pushes whatever is still live.
func (r *Router) resync() {
	r.nextSeq = 0
	clear(r.buffered)

	var fx effects
	r.store.Update(func(s *session.State) bool {
		fx.before = keysOf(*s)
		if !s.IsMatchmaking() && s.Local == (session.Local{WindowFocused: s.Local.WindowFocused}) {
			fx.after = fx.before
			return false
		}
		s.ResetSession()
		fx.after = keysOf(*s)
		return true
	})
	r.runEffects(fx)
}

// Inbox exposes the router's mailbox to the upstream connection and tests.
func (r *Router) Inbox() chan<- Msg { return r.inbox }

// Deliver queues one envelope, giving up when ctx or the router is done.
func (r *Router) Deliver(ctx context.Context, env types.Envelope) error {
	select {
	case r.inbox <- Inbound{Envelope: env}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.ctx.Done():
		return r.ctx.Err()
	}
}

// Reconnected tells the router a fresh upstream connection is up.
func (r *Router) Reconnected(ctx context.Context) error {
	select {
	case r.inbox <- Reconnected{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.ctx.Done():
		return r.ctx.Err()
	}
}
