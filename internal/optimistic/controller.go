package optimistic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DoyleJ11/matchmaking-client/internal/engine"
	"github.com/DoyleJ11/matchmaking-client/internal/session"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// ErrNoActiveMatch is the upstream's answer when the match being accepted no
// longer exists. It is terminal: accepting again can't succeed.
var ErrNoActiveMatch = errors.New("no active match")

var (
	ErrSuperseded         = errors.New("superseded by a newer request")
	ErrNotInDraft         = errors.New("not in a draft")
	ErrNotYourTurn        = errors.New("not your turn to pick")
	ErrAlreadyLocked      = errors.New("race already locked")
	ErrPickOvertime       = errors.New("pick time is over")
	ErrNoFoundMatch       = errors.New("no match to accept")
	ErrAlreadyAccepted    = errors.New("match already accepted")
	ErrAcceptWindowClosed = errors.New("accept window closed")
	ErrInvalidRace        = errors.New("invalid race")
	ErrEmptyMessage       = errors.New("empty chat message")
)

// Requester issues actions against the matchmaking server.
type Requester interface {
	FindMatch(ctx context.Context, matchmakingType string, race engine.Race) error
	CancelFind(ctx context.Context) error
	AcceptMatch(ctx context.Context) error
	ChangeDraftRace(ctx context.Context, race engine.Race) error
	LockInDraftRace(ctx context.Context, race engine.Race) error
	SendDraftChat(ctx context.Context, message string) error
}

type Options struct {
	LockInTimeout    time.Duration
	AcceptAttempts   int
	AcceptRetryDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		LockInTimeout:    2 * time.Second,
		AcceptAttempts:   10,
		AcceptRetryDelay: 400 * time.Millisecond,
	}
}

// Controller applies user actions to the store ahead of server
// confirmation and rolls them back when the request fails.
type Controller struct {
	req      Requester
	store    *session.Store
	notifier session.Notifier
	clock    clockwork.Clock
	logger   *zap.Logger
	opts     Options

	find   Slot
	race   Slot
	lock   Slot
	accept Slot
}

func NewController(req Requester, store *session.Store, notifier session.Notifier, clock clockwork.Clock, logger *zap.Logger, opts Options) *Controller {
	if notifier == nil {
		notifier = session.NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultOptions()
	if opts.LockInTimeout <= 0 {
		opts.LockInTimeout = def.LockInTimeout
	}
	if opts.AcceptAttempts <= 0 {
		opts.AcceptAttempts = def.AcceptAttempts
	}
	if opts.AcceptRetryDelay < 0 {
		opts.AcceptRetryDelay = def.AcceptRetryDelay
	}
	return &Controller{
		req:      req,
		store:    store,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
		opts:     opts,
	}
}

func (c *Controller) FindMatch(ctx context.Context, matchmakingType string, race engine.Race) error {
	if !race.Valid() {
		return ErrInvalidRace
	}

	reqCtx, id := c.find.Begin(ctx, 0, nil)
	err := c.req.FindMatch(reqCtx, matchmakingType, race)
	resolved := c.find.Resolve(id, err == nil, func() {
		if err != nil {
			return
		}
		// startSearch from the server may already have filled this in.
		c.store.Update(func(s *session.State) bool {
			if s.SearchInfo != nil || s.FoundMatch != nil || s.Draft != nil || s.MatchLaunching {
				return false
			}
			s.SearchInfo = &session.SearchInfo{
				MatchmakingType: matchmakingType,
				Race:            race,
				StartTime:       c.clock.Now(),
			}
			return true
		})
	})
	if !resolved {
		return ErrSuperseded
	}
	if err != nil {
		return fmt.Errorf("find match: %w", err)
	}
	return nil
}

func (c *Controller) CancelFind(ctx context.Context) error {
	c.find.Abort()

	if err := c.req.CancelFind(ctx); err != nil {
		return fmt.Errorf("cancel find: %w", err)
	}
	c.store.Update(func(s *session.State) bool {
		if s.SearchInfo == nil && s.ResumeSearch == nil {
			return false
		}
		s.SearchInfo = nil
		s.ResumeSearch = nil
		return true
	})
	return nil
}

// AcceptMatch readies up for the found match, retrying transient failures
// with a fixed backoff. ErrNoActiveMatch ends it at once and clears the
// session since the match is gone.
func (c *Controller) AcceptMatch(ctx context.Context) error {
	st := c.store.Snapshot().State
	switch {
	case st.FoundMatch == nil:
		return ErrNoFoundMatch
	case st.FoundMatch.HasAccepted:
		return ErrAlreadyAccepted
	case st.Local.AcceptExpired:
		return ErrAcceptWindowClosed
	}

	start := st.FoundMatch.AcceptStart
	reqCtx, id := c.accept.Begin(ctx, 0, nil)

	var err error
	for attempt := 1; attempt <= c.opts.AcceptAttempts; attempt++ {
		err = c.req.AcceptMatch(reqCtx)
		if err == nil || errors.Is(err, ErrNoActiveMatch) || reqCtx.Err() != nil {
			break
		}
		c.logger.Warn("accept match failed",
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == c.opts.AcceptAttempts {
			break
		}
		select {
		case <-c.clock.After(c.opts.AcceptRetryDelay):
		case <-reqCtx.Done():
		}
		if reqCtx.Err() != nil {
			break
		}
	}

	resolved := c.accept.Resolve(id, err == nil, func() {
		// Only the match this accept was issued for may be touched.
		c.store.Update(func(s *session.State) bool {
			if s.FoundMatch == nil || !s.FoundMatch.AcceptStart.Equal(start) {
				return false
			}
			switch {
			case err == nil:
				if s.FoundMatch.HasAccepted {
					return false
				}
				s.FoundMatch.HasAccepted = true
				return true
			case errors.Is(err, ErrNoActiveMatch):
				c.logger.Info("match dissolved before accept, clearing session")
				s.ResetSession()
				return true
			}
			return false
		})
	})
	if !resolved {
		return ErrSuperseded
	}
	if err != nil {
		return fmt.Errorf("accept match: %w", err)
	}
	return nil
}

// SetRace changes the provisional race. Failures are silent: the last
// server-confirmed race shows through again.
func (c *Controller) SetRace(ctx context.Context, race engine.Race) error {
	if !race.Valid() {
		return ErrInvalidRace
	}
	if err := c.checkCanPick(false); err != nil {
		return err
	}

	reqCtx, id := c.race.Begin(ctx, 0, func() {
		c.setOptimistic(race, false)
	})
	err := c.req.ChangeDraftRace(reqCtx, race)
	resolved := c.race.Resolve(id, err == nil, func() {
		c.clearOptimistic()
	})
	if !resolved {
		return ErrSuperseded
	}
	if err != nil {
		c.logger.Debug("change race failed", zap.String("race", string(race)), zap.Error(err))
		return fmt.Errorf("change race: %w", err)
	}
	return nil
}

// LockIn locks the race with a bounded wait. On timeout or error both
// optimistic flags roll back and a transient notice is shown; there is no
// retry. On success the flags stay until the server's lock event lands.
func (c *Controller) LockIn(ctx context.Context, race engine.Race) error {
	if !race.Valid() {
		return ErrInvalidRace
	}
	if err := c.checkCanPick(true); err != nil {
		return err
	}

	c.race.Abort()
	reqCtx, id := c.lock.Begin(ctx, c.opts.LockInTimeout, func() {
		c.setOptimistic(race, true)
	})
	err := c.req.LockInDraftRace(reqCtx, race)
	resolved := c.lock.Resolve(id, err == nil, func() {
		if err == nil {
			// Stays locked until draftPickLocked replaces the local guess.
			return
		}
		c.clearOptimistic()
		c.notifier.Notify(session.Notice{
			Kind:      session.NoticeLockInFailed,
			Message:   "Failed to lock in race",
			Transient: true,
		})
	})
	if !resolved {
		return ErrSuperseded
	}
	if err != nil {
		c.logger.Warn("lock in failed", zap.String("race", string(race)), zap.Error(err))
		return fmt.Errorf("lock in race: %w", err)
	}
	return nil
}

func (c *Controller) SendChat(ctx context.Context, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return ErrEmptyMessage
	}
	if !c.store.Snapshot().State.IsInDraft() {
		return ErrNotInDraft
	}

	if err := c.req.SendDraftChat(ctx, message); err != nil {
		c.notifier.Notify(session.Notice{
			Kind:      session.NoticeChatFailed,
			Message:   "Failed to send message",
			Transient: true,
		})
		return fmt.Errorf("send chat: %w", err)
	}
	return nil
}

func (c *Controller) SetFocus(focused bool) {
	c.store.Update(func(s *session.State) bool {
		if s.Local.WindowFocused == focused {
			return false
		}
		s.Local.WindowFocused = focused
		return true
	})
}

// CancelPending aborts in-flight race and lock requests. Called when the
// draft goes away under them.
func (c *Controller) CancelPending() {
	c.race.Abort()
	c.lock.Abort()
}

// CancelAccept aborts an accept still retrying. Called when the server
// clears or replaces the found match.
func (c *Controller) CancelAccept() {
	c.accept.Abort()
}

func (c *Controller) checkCanPick(locking bool) error {
	st := c.store.Snapshot().State
	if st.Draft == nil {
		return ErrNotInDraft
	}
	me, ok := st.Draft.Me()
	if !ok {
		return ErrNotYourTurn
	}
	if p, _ := st.Draft.Slot(me); p.HasLocked || st.Local.OptimisticLocked {
		return ErrAlreadyLocked
	}
	if !st.Draft.IsMyTurn() {
		return ErrNotYourTurn
	}
	if locking && st.Local.DraftOvertime {
		return ErrPickOvertime
	}
	return nil
}

func (c *Controller) setOptimistic(race engine.Race, locked bool) {
	c.store.Update(func(s *session.State) bool {
		if s.Draft == nil {
			return false
		}
		s.Local.OptimisticRace = race
		s.Local.OptimisticLocked = locked
		return true
	})
}

func (c *Controller) clearOptimistic() {
	c.store.Update(func(s *session.State) bool {
		if s.Local.OptimisticRace == "" && !s.Local.OptimisticLocked {
			return false
		}
		s.Local.OptimisticRace = ""
		s.Local.OptimisticLocked = false
		return true
	})
}
