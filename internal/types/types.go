package types

import (
	"github.com/DoyleJ11/matchmaking-client/internal/countdown"
	"github.com/DoyleJ11/matchmaking-client/internal/session"
)

// UI -> daemon actions.
const (
	MsgFindMatch   = "FindMatch"
	MsgCancelFind  = "CancelFind"
	MsgAcceptMatch = "AcceptMatch"
	MsgSetRace     = "SetRace"
	MsgLockIn      = "LockIn"
	MsgSendChat    = "SendChat"
	MsgFocus       = "Focus"
)

// Daemon -> UI pushes.
const (
	MsgStateSnapshot = "StateSnapshot"
	MsgNotice        = "Notice"
	MsgCue           = "Cue"
	MsgError         = "Error"
)

type ClientMessage struct {
	Type            string `json:"type"`
	MatchmakingType string `json:"matchmakingType,omitempty"`
	Race            string `json:"race,omitempty"`
	Message         string `json:"message,omitempty"`
	Focused         *bool  `json:"focused,omitempty"`
}

type ServerMessage struct {
	Type        string          `json:"type"`
	Version     int             `json:"version,omitempty"`
	State       *session.State  `json:"state,omitempty"`
	Notice      *session.Notice `json:"notice,omitempty"`
	Cue         countdown.Cue   `json:"cue,omitempty"`
	SecondsLeft int             `json:"secondsLeft,omitempty"`
	Error       string          `json:"error,omitempty"`
}

func SnapshotMessage(snap session.Snapshot) ServerMessage {
	st := snap.State
	return ServerMessage{Type: MsgStateSnapshot, Version: snap.Version, State: &st}
}
