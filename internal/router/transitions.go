package router

import (
	"slices"
	"strings"
	"time"

	"github.com/DoyleJ11/matchmaking-client/internal/countdown"
	"github.com/DoyleJ11/matchmaking-client/internal/engine"
	"github.com/DoyleJ11/matchmaking-client/internal/journal"
	"github.com/DoyleJ11/matchmaking-client/internal/session"
	"github.com/DoyleJ11/matchmaking-client/pkg/types"
	"go.uber.org/zap"
)

// timerKeys captures the parts of the state that own a running timer.
type timerKeys struct {
	hasMatch    bool
	acceptStart time.Time
	acceptTotal time.Duration
	hasAnchor   bool
	pickAnchor  time.Time
	hasDraft    bool
}

func keysOf(s session.State) timerKeys {
	var k timerKeys
	if s.FoundMatch != nil {
		k.hasMatch = true
		k.acceptStart = s.FoundMatch.AcceptStart
		k.acceptTotal = s.FoundMatch.AcceptTimeTotal
	}
	if s.DraftPickTimeStart != nil {
		k.hasAnchor = true
		k.pickAnchor = *s.DraftPickTimeStart
	}
	k.hasDraft = s.Draft != nil
	return k
}

// effects are run after the store commit, outside its lock.
type effects struct {
	before, after timerKeys
	draftReplaced bool
	notices       []session.Notice
	outcomes      []journal.Outcome
}

func (r *Router) apply(ev types.Event) {
	now := r.clock.Now()
	var fx effects

	_, changed := r.store.Update(func(s *session.State) bool {
		fx.before = keysOf(*s)
		t := &transition{r: r, s: s, now: now, fx: &fx}
		ev.Accept(t)
		fx.after = keysOf(*s)
		return t.changed
	})
	r.applied++

	if !changed {
		fx = effects{}
	}
	r.runEffects(fx)
}

func (r *Router) runEffects(fx effects) {
	if fx.before.hasMatch != fx.after.hasMatch ||
		!fx.before.acceptStart.Equal(fx.after.acceptStart) ||
		fx.before.acceptTotal != fx.after.acceptTotal {
		if r.acceptTimer != nil {
			if fx.after.hasMatch {
				r.acceptTimer.Start(fx.after.acceptStart, fx.after.acceptTotal)
			} else {
				r.acceptTimer.Stop()
			}
		}
		// An accept in flight belongs to the match that just went away.
		if fx.before.hasMatch && r.pending != nil {
			r.pending.CancelAccept()
		}
	}

	if fx.before.hasAnchor != fx.after.hasAnchor || !fx.before.pickAnchor.Equal(fx.after.pickAnchor) {
		if r.pickTimer != nil {
			if fx.after.hasAnchor {
				r.pickTimer.Start(fx.after.pickAnchor)
			} else {
				r.pickTimer.Stop()
			}
		}
	}

	if (fx.before.hasDraft && !fx.after.hasDraft) || fx.draftReplaced {
		if r.pending != nil {
			r.pending.CancelPending()
		}
	}

	for _, n := range fx.notices {
		r.notifier.Notify(n)
	}
	if r.journal != nil {
		for _, o := range fx.outcomes {
			r.journal.Record(o)
		}
	}
}

// transition applies one event to a working copy of the state. Each method
// either mutates s and sets changed, or skips.
type transition struct {
	r       *Router
	s       *session.State
	now     time.Time
	fx      *effects
	changed bool
}

var _ types.Visitor = (*transition)(nil)

func (t *transition) skip(ev types.EventType, reason string) {
	t.r.logger.Debug("ignoring event", zap.String("type", string(ev)), zap.String("reason", reason))
}

func (t *transition) reject(ev types.EventType, err error) {
	t.r.logger.Warn("rejected draft event", zap.String("type", string(ev)), zap.Error(err))
}

func (t *transition) notice(n session.Notice) {
	t.fx.notices = append(t.fx.notices, n)
}

func (t *transition) outcome(o journal.Outcome) {
	o.CreatedAt = t.now
	t.fx.outcomes = append(t.fx.outcomes, o)
}

func (t *transition) StartSearch(e types.StartSearch) {
	t.s.SearchInfo = &session.SearchInfo{
		MatchmakingType: e.MatchmakingType,
		Race:            engine.Race(e.Race),
		StartTime:       t.now,
	}
	t.s.ResumeSearch = nil
	t.changed = true
}

func (t *transition) Requeue(types.Requeue) {
	if t.s.FoundMatch == nil && t.s.Draft == nil {
		t.skip(types.TypeRequeue, "no found match")
		return
	}
	t.s.ClearFoundMatch()
	t.s.ResetDraft()
	if t.s.SearchInfo == nil && t.s.ResumeSearch != nil {
		t.s.SearchInfo = t.s.ResumeSearch
	}
	t.s.ResumeSearch = nil
	t.changed = true
}

func (t *transition) MatchFound(e types.MatchFound) {
	if t.s.MatchLaunching || t.s.Draft != nil {
		t.skip(types.TypeMatchFound, "match already past accept")
		return
	}
	if e.NumPlayers <= 0 || e.AcceptTimeTotalMillis <= 0 {
		t.skip(types.TypeMatchFound, "malformed payload")
		return
	}

	total := time.Duration(e.AcceptTimeTotalMillis) * time.Millisecond
	left := time.Duration(e.AcceptTimeLeftMillis) * time.Millisecond
	start := countdown.AcceptStart(t.now, total, left)

	t.s.FoundMatch = &session.FoundMatch{
		MatchmakingType: e.MatchmakingType,
		NumPlayers:      e.NumPlayers,
		AcceptStart:     start,
		AcceptTimeTotal: total,
	}
	secs := countdown.SecondsLeft(t.now, start, total)
	t.s.Local.AcceptSecondsLeft = secs
	t.s.Local.AcceptExpired = secs == 0

	if t.s.SearchInfo != nil {
		t.s.ResumeSearch = t.s.SearchInfo
	}
	t.s.SearchInfo = nil
	t.s.LastGame = nil
	t.changed = true
}

func (t *transition) PlayerAccepted(e types.PlayerAccepted) {
	fm := t.s.FoundMatch
	if fm == nil {
		t.skip(types.TypePlayerAccepted, "no found match")
		return
	}
	n := min(max(e.AcceptedPlayers, 0), fm.NumPlayers)
	if n == fm.AcceptedPlayers {
		return
	}
	fm.AcceptedPlayers = n
	t.changed = true
}

func (t *transition) AcceptTimeout(types.AcceptTimeout) {
	fm := t.s.FoundMatch
	if fm == nil {
		t.skip(types.TypeAcceptTimeout, "no found match")
		return
	}
	if fm.AcceptedPlayers >= fm.NumPlayers {
		t.skip(types.TypeAcceptTimeout, "everyone accepted")
		return
	}

	t.outcome(journal.Outcome{Kind: journal.KindAcceptFailed, MatchmakingType: fm.MatchmakingType})
	t.s.ClearFoundMatch()
	t.s.SearchInfo = nil
	t.s.ResumeSearch = nil
	t.notice(session.Notice{
		Kind:    session.NoticeAcceptFailed,
		Message: "You failed to accept the match and were removed from the queue.",
	})
	t.changed = true
}

func (t *transition) DraftStarted(e types.DraftStarted) {
	if t.s.MatchLaunching {
		t.skip(types.TypeDraftStarted, "match already launching")
		return
	}

	order := make([]engine.TeamSlot, len(e.PickOrder))
	for i, p := range e.PickOrder {
		order[i] = engine.TeamSlot{Team: p[0], Slot: p[1]}
	}
	d, err := engine.NewDraftState(e.MapID, e.MyTeamIndex, toSlots(e.OwnTeam), toSlots(e.OpponentTeam), order, t.r.selfUserID)
	if err != nil {
		t.reject(types.TypeDraftStarted, err)
		return
	}

	t.fx.draftReplaced = t.s.Draft != nil
	t.s.ClearFoundMatch()
	t.s.ResetDraft()
	t.s.SearchInfo = nil
	t.s.Draft = &d
	t.s.DraftChat = []session.ChatMessage{}
	t.changed = true
}

func toSlots(players []types.DraftPlayer) []engine.PlayerSlot {
	out := make([]engine.PlayerSlot, len(players))
	for i, p := range players {
		out[i] = engine.PlayerSlot{
			UserID:          p.UserID,
			NameIndex:       p.NameIndex,
			ProvisionalRace: engine.Race(p.ProvisionalRace),
			HasLocked:       p.HasLocked,
			FinalRace:       engine.Race(p.FinalRace),
		}
	}
	return out
}

// applyDraft runs cmd through the draft reducer and installs the result.
func (t *transition) applyDraft(ev types.EventType, cmd engine.Command) bool {
	if t.s.Draft == nil {
		t.skip(ev, "no active draft")
		return false
	}
	next, err := engine.Apply(*t.s.Draft, cmd)
	if err != nil {
		t.reject(ev, err)
		return false
	}
	t.s.Draft = &next
	t.changed = true
	return true
}

func (t *transition) DraftPickStarted(e types.DraftPickStarted) {
	if !t.applyDraft(types.TypeDraftPickStarted, engine.Command{Type: engine.CmdPickStarted, Team: e.TeamID, Slot: e.Index}) {
		return
	}
	anchor := t.now
	t.s.DraftPickTimeStart = &anchor
	t.s.Local.DraftOvertime = false
}

func (t *transition) DraftProvisionalPick(e types.DraftProvisionalPick) {
	t.applyDraft(types.TypeDraftProvisionalPick, engine.Command{
		Type: engine.CmdProvisionalPick,
		Team: e.TeamID,
		Slot: e.Index,
		Race: engine.Race(e.Race),
	})
}

func (t *transition) DraftPickLocked(e types.DraftPickLocked) {
	if !t.applyDraft(types.TypeDraftPickLocked, engine.Command{
		Type: engine.CmdPickLocked,
		Team: e.TeamID,
		Slot: e.Index,
		Race: engine.Race(e.Race),
	}) {
		return
	}
	t.s.DraftPickTimeStart = nil
	t.s.Local.DraftOvertime = false

	// The server's lock, possibly a forced default, beats any local guess.
	if me, ok := t.s.Draft.Me(); ok && me == (engine.TeamSlot{Team: e.TeamID, Slot: e.Index}) {
		t.s.Local.OptimisticRace = ""
		t.s.Local.OptimisticLocked = false
	}
}

func (t *transition) DraftCompleted(types.DraftCompleted) {
	if !t.applyDraft(types.TypeDraftCompleted, engine.Command{Type: engine.CmdComplete}) {
		return
	}
	t.s.DraftPickTimeStart = nil
	t.s.Local.DraftOvertime = false
}

func (t *transition) DraftCancel(e types.DraftCancel) {
	if t.s.Draft == nil {
		t.skip(types.TypeDraftCancel, "no active draft")
		return
	}
	t.outcome(journal.Outcome{Kind: journal.KindDraftCancelled, Reason: e.Reason})
	t.s.ResetDraft()
	t.notice(session.Notice{Kind: session.NoticeDraftCancel, Message: e.Reason, Transient: true})
	t.changed = true
}

func (t *transition) DraftChatMessage(e types.DraftChatMessage) {
	if t.s.Draft == nil {
		t.skip(types.TypeDraftChatMessage, "no active draft")
		return
	}

	at := t.now
	if e.Time > 0 {
		at = time.UnixMilli(e.Time)
	}
	t.s.DraftChat = append(t.s.DraftChat, session.ChatMessage{
		ID:       e.ID,
		From:     e.From,
		Text:     e.Text,
		Time:     at,
		Mentions: append([]string(nil), e.Mentions...),
	})
	t.changed = true

	if !t.s.Local.WindowFocused && t.r.mentions(e) {
		t.notice(session.Notice{Kind: session.NoticeMention, Message: e.From + ": " + e.Text, Transient: true})
	}
}

func (r *Router) mentions(e types.DraftChatMessage) bool {
	if r.selfUserID != "" && slices.Contains(e.Mentions, r.selfUserID) {
		return true
	}
	if r.mentionHandle == "" {
		return false
	}
	return strings.Contains(r.fold.String(e.Text), r.mentionHandle)
}

func (t *transition) MatchReady(types.MatchReady) {
	switch {
	case t.s.Draft != nil && !t.s.Draft.IsCompleted:
		t.skip(types.TypeMatchReady, "draft not completed")
		return
	case t.s.Draft == nil && t.s.FoundMatch == nil:
		t.skip(types.TypeMatchReady, "no match")
		return
	}

	t.s.ClearFoundMatch()
	t.s.ResetDraft()
	t.s.SearchInfo = nil
	t.s.ResumeSearch = nil
	t.s.MatchLaunching = true
	t.changed = true
}

func (t *transition) CancelLoading(e types.CancelLoading) {
	if !t.s.MatchLaunching {
		t.skip(types.TypeCancelLoading, "not launching")
		return
	}
	t.outcome(journal.Outcome{Kind: journal.KindLoadFailed, Reason: e.Reason})
	t.s.ResetDraft()
	t.s.MatchLaunching = false
	t.notice(session.Notice{Kind: session.NoticeLoadFailed, Message: "The game failed to load."})
	t.changed = true
}

func (t *transition) GameStarted(e types.GameStarted) {
	if !t.s.MatchLaunching {
		t.skip(types.TypeGameStarted, "not launching")
		return
	}
	t.outcome(journal.Outcome{Kind: journal.KindGameStarted, GameID: e.GameID})
	t.s.ResetSession()
	t.s.LastGame = &session.LastGame{GameID: e.GameID, StartedAt: t.now}
	t.changed = true
}

func (t *transition) QueueStatus(e types.QueueStatus) {
	if e.InQueue {
		return
	}
	if !t.s.IsMatchmaking() {
		return
	}
	t.s.ResetSession()
	t.changed = true
}
