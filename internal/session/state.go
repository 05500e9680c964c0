package session

import (
	"time"

	"github.com/DoyleJ11/matchmaking-client/internal/engine"
)

type SearchInfo struct {
	MatchmakingType string      `json:"matchmakingType"`
	Race            engine.Race `json:"race"`
	StartTime       time.Time   `json:"startTime"`
}

type FoundMatch struct {
	MatchmakingType string        `json:"matchmakingType"`
	NumPlayers      int           `json:"numPlayers"`
	AcceptStart     time.Time     `json:"acceptStart"`
	AcceptTimeTotal time.Duration `json:"acceptTimeTotal"`
	AcceptedPlayers int           `json:"acceptedPlayers"`
	HasAccepted     bool          `json:"hasAccepted"`
}

// Deadline is the locally anchored end of the accept window.
func (f FoundMatch) Deadline() time.Time {
	return f.AcceptStart.Add(f.AcceptTimeTotal)
}

type ChatMessage struct {
	ID       string    `json:"id"`
	From     string    `json:"from"`
	Text     string    `json:"text"`
	Time     time.Time `json:"time"`
	Mentions []string  `json:"mentions,omitempty"`
}

type LastGame struct {
	GameID    string    `json:"gameId"`
	StartedAt time.Time `json:"startedAt"`
}

// Local is client-only state. None of it is authoritative.
type Local struct {
	OptimisticRace    engine.Race `json:"optimisticRace,omitempty"`
	OptimisticLocked  bool        `json:"optimisticLocked"`
	AcceptSecondsLeft int         `json:"acceptSecondsLeft"`
	AcceptExpired     bool        `json:"acceptExpired"`
	DraftOvertime     bool        `json:"draftOvertime"`
	WindowFocused     bool        `json:"windowFocused"`
}

type State struct {
	SearchInfo         *SearchInfo        `json:"searchInfo,omitempty"`
	FoundMatch         *FoundMatch        `json:"foundMatch,omitempty"`
	MatchLaunching     bool               `json:"matchLaunching"`
	Draft              *engine.DraftState `json:"draftState,omitempty"`
	DraftChat          []ChatMessage      `json:"draftChatMessages"`
	DraftPickTimeStart *time.Time         `json:"draftPickTimeStart,omitempty"`
	LastGame           *LastGame          `json:"lastGame,omitempty"`
	Local              Local              `json:"local"`

	// Search active before the current match was found; restored on requeue.
	ResumeSearch *SearchInfo `json:"-"`
}

type AcceptPhase string

const (
	NotSearching AcceptPhase = "notSearching"
	Searching    AcceptPhase = "searching"
	AcceptWindow AcceptPhase = "acceptWindow"
	Ready        AcceptPhase = "ready"
)

// Clone deep-copies s so snapshots never alias store memory.
func (s State) Clone() State {
	c := s
	if s.SearchInfo != nil {
		si := *s.SearchInfo
		c.SearchInfo = &si
	}
	if s.ResumeSearch != nil {
		rs := *s.ResumeSearch
		c.ResumeSearch = &rs
	}
	if s.FoundMatch != nil {
		fm := *s.FoundMatch
		c.FoundMatch = &fm
	}
	if s.Draft != nil {
		d := s.Draft.Clone()
		c.Draft = &d
	}
	if s.DraftChat != nil {
		c.DraftChat = make([]ChatMessage, len(s.DraftChat))
		for i, m := range s.DraftChat {
			m.Mentions = append([]string(nil), m.Mentions...)
			c.DraftChat[i] = m
		}
	}
	if s.DraftPickTimeStart != nil {
		t := *s.DraftPickTimeStart
		c.DraftPickTimeStart = &t
	}
	if s.LastGame != nil {
		lg := *s.LastGame
		c.LastGame = &lg
	}
	return c
}

// ResetDraft drops every piece of draft state, including local pick flags.
func (s *State) ResetDraft() {
	s.Draft = nil
	s.DraftChat = nil
	s.DraftPickTimeStart = nil
	s.Local.DraftOvertime = false
	s.Local.OptimisticRace = ""
	s.Local.OptimisticLocked = false
}

func (s *State) ClearFoundMatch() {
	s.FoundMatch = nil
	s.Local.AcceptSecondsLeft = 0
	s.Local.AcceptExpired = false
}

// ResetSession returns to the idle baseline. Window focus and the last game
// record survive.
func (s *State) ResetSession() {
	s.SearchInfo = nil
	s.ResumeSearch = nil
	s.ClearFoundMatch()
	s.MatchLaunching = false
	s.ResetDraft()
}

func (s State) IsMatchmaking() bool {
	return s.SearchInfo != nil || s.FoundMatch != nil || s.MatchLaunching || s.Draft != nil
}

func (s State) IsInDraft() bool {
	return s.Draft != nil
}

func (s State) HasAccepted() bool {
	return s.FoundMatch != nil && s.FoundMatch.HasAccepted
}

// AcceptPhase places the session on the accept-window state machine. The
// failed branch is a notice, not a resting state, so it never shows here.
func (s State) AcceptPhase() AcceptPhase {
	switch {
	case s.FoundMatch != nil:
		return AcceptWindow
	case s.Draft != nil || s.MatchLaunching:
		return Ready
	case s.SearchInfo != nil:
		return Searching
	default:
		return NotSearching
	}
}

// DisplayRace is the race the viewer's seat should render: a pending
// optimistic choice wins over the last server-confirmed one.
func (s State) DisplayRace() engine.Race {
	if s.Local.OptimisticRace != "" {
		return s.Local.OptimisticRace
	}
	if s.Draft == nil {
		return ""
	}
	me, ok := s.Draft.Me()
	if !ok {
		return ""
	}
	p, _ := s.Draft.Slot(me)
	if p.HasLocked {
		return p.FinalRace
	}
	return p.ProvisionalRace
}
