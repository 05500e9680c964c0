package engine

import (
	"errors"
)

var ErrSlotOutOfRange = errors.New("slot out of range")
var ErrSlotLocked = errors.New("slot already locked")
var ErrOpponentProvisional = errors.New("provisional pick for opponent team")
var ErrInvalidRace = errors.New("invalid race")
var ErrDraftIncomplete = errors.New("draft has unlocked slots")
var ErrDraftCompleted = errors.New("draft already completed")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Race string

const (
	RaceZerg    Race = "z"
	RaceProtoss Race = "p"
	RaceTerran  Race = "t"
	RaceRandom  Race = "r"
)

func (r Race) Valid() bool {
	switch r {
	case RaceZerg, RaceProtoss, RaceTerran, RaceRandom:
		return true
	}
	return false
}

// TeamSlot addresses one player in the draft. Team is the server's team
// index, not own/opponent.
type TeamSlot struct {
	Team int `json:"team"`
	Slot int `json:"slot"`
}

// PlayerSlot is one seat of a team. Own-team seats carry a UserID,
// opponent seats only a NameIndex.
type PlayerSlot struct {
	UserID          string `json:"userId,omitempty"`
	NameIndex       int    `json:"nameIndex"`
	ProvisionalRace Race   `json:"provisionalRace,omitempty"`
	HasLocked       bool   `json:"hasLocked"`
	FinalRace       Race   `json:"finalRace,omitempty"`
}

type DraftState struct {
	MapID         string       `json:"mapId"`
	MyTeamIndex   int          `json:"myTeamIndex"`
	MySlot        int          `json:"mySlot"` // -1 when the viewer isn't found in OwnTeam
	OwnTeam       []PlayerSlot `json:"ownTeam"`
	OpponentTeam  []PlayerSlot `json:"opponentTeam"`
	PickOrder     []TeamSlot   `json:"pickOrder"`
	CurrentPicker *TeamSlot    `json:"currentPicker,omitempty"`
	IsCompleted   bool         `json:"isCompleted"`
}

type SlotPhase string

const (
	PhaseWaiting SlotPhase = "waiting"
	PhasePicking SlotPhase = "picking"
	PhaseLocked  SlotPhase = "locked"
)

type CommandType string

const (
	CmdPickStarted     CommandType = "PickStarted"
	CmdProvisionalPick CommandType = "ProvisionalPick"
	CmdPickLocked      CommandType = "PickLocked"
	CmdComplete        CommandType = "Complete"
)

/*
	CmdPickStarted     -> currentPicker = {team, slot}
	CmdProvisionalPick -> own team only, slot must still be open
	CmdPickLocked      -> hasLocked + finalRace, currentPicker cleared until the next PickStarted
	CmdComplete        -> every slot locked, currentPicker cleared
*/

type Command struct {
	Type CommandType
	Team int
	Slot int
	Race Race
}

// Apply returns the state after cmd. s is never modified; on error the
// original s is returned unchanged.
func Apply(s DraftState, cmd Command) (DraftState, error) {
	if s.IsCompleted {
		return s, ErrDraftCompleted
	}

	switch cmd.Type {
	case CmdPickStarted:
		p, err := slotAt(s, cmd.Team, cmd.Slot)
		if err != nil {
			return s, err
		}
		if p.HasLocked {
			return s, ErrSlotLocked
		}

		next := s.Clone()
		next.CurrentPicker = &TeamSlot{Team: cmd.Team, Slot: cmd.Slot}
		return next, nil

	case CmdProvisionalPick:
		// Opponent provisional picks are never sent; treat one as corrupt.
		if cmd.Team != s.MyTeamIndex {
			return s, ErrOpponentProvisional
		}
		if !cmd.Race.Valid() {
			return s, ErrInvalidRace
		}
		p, err := slotAt(s, cmd.Team, cmd.Slot)
		if err != nil {
			return s, err
		}
		if p.HasLocked {
			return s, ErrSlotLocked
		}

		next := s.Clone()
		np, _ := slotAt(next, cmd.Team, cmd.Slot)
		np.ProvisionalRace = cmd.Race
		return next, nil

	case CmdPickLocked:
		if !cmd.Race.Valid() {
			return s, ErrInvalidRace
		}
		p, err := slotAt(s, cmd.Team, cmd.Slot)
		if err != nil {
			return s, err
		}
		if p.HasLocked {
			return s, ErrSlotLocked
		}

		next := s.Clone()
		np, _ := slotAt(next, cmd.Team, cmd.Slot)
		np.HasLocked = true
		np.FinalRace = cmd.Race
		np.ProvisionalRace = cmd.Race
		next.CurrentPicker = nil
		return next, nil

	case CmdComplete:
		if !AllLocked(s) {
			return s, ErrDraftIncomplete
		}

		next := s.Clone()
		next.IsCompleted = true
		next.CurrentPicker = nil
		return next, nil

	default:
		return s, ErrUnsupportedCommand
	}
}

// SlotPhaseOf reports where a seat is in its pick: locked, currently
// picking, or waiting for its turn.
func SlotPhaseOf(s DraftState, ts TeamSlot) SlotPhase {
	p, err := slotAt(s, ts.Team, ts.Slot)
	if err != nil {
		return PhaseWaiting
	}
	if p.HasLocked {
		return PhaseLocked
	}
	if s.CurrentPicker != nil && *s.CurrentPicker == ts {
		return PhasePicking
	}
	return PhaseWaiting
}

func teamOf(s DraftState, team int) ([]PlayerSlot, bool) {
	switch {
	case team == s.MyTeamIndex:
		return s.OwnTeam, true
	case team == 1-s.MyTeamIndex:
		return s.OpponentTeam, true
	default:
		return nil, false
	}
}

func slotAt(s DraftState, team, slot int) (*PlayerSlot, error) {
	players, ok := teamOf(s, team)
	if !ok || slot < 0 || slot >= len(players) {
		return nil, ErrSlotOutOfRange
	}
	return &players[slot], nil
}
