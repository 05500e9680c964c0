package engine

import "fmt"

// NewDraftState installs a fresh draft. selfUserID locates the viewer's own
// seat; MySlot is -1 when it can't be found.
func NewDraftState(mapID string, myTeam int, own, opponent []PlayerSlot, order []TeamSlot, selfUserID string) (DraftState, error) {
	if myTeam != 0 && myTeam != 1 {
		return DraftState{}, fmt.Errorf("team index %d: %w", myTeam, ErrSlotOutOfRange)
	}

	s := DraftState{
		MapID:        mapID,
		MyTeamIndex:  myTeam,
		MySlot:       -1,
		OwnTeam:      append([]PlayerSlot{}, own...),
		OpponentTeam: make([]PlayerSlot, len(opponent)),
		PickOrder:    append([]TeamSlot{}, order...),
	}

	// Opponents stay anonymous for the whole match.
	for i, p := range opponent {
		p.UserID = ""
		s.OpponentTeam[i] = p
	}

	if selfUserID != "" {
		for i, p := range s.OwnTeam {
			if p.UserID == selfUserID {
				s.MySlot = i
				break
			}
		}
	}

	if err := CheckLockInvariant(s); err != nil {
		return DraftState{}, err
	}
	return s, nil
}

func (s DraftState) Clone() DraftState {
	c := s
	c.OwnTeam = append([]PlayerSlot(nil), s.OwnTeam...)
	c.OpponentTeam = append([]PlayerSlot(nil), s.OpponentTeam...)
	c.PickOrder = append([]TeamSlot(nil), s.PickOrder...)
	if s.CurrentPicker != nil {
		cp := *s.CurrentPicker
		c.CurrentPicker = &cp
	}
	return c
}

// Me returns the viewer's own seat address, if known.
func (s DraftState) Me() (TeamSlot, bool) {
	if s.MySlot < 0 || s.MySlot >= len(s.OwnTeam) {
		return TeamSlot{}, false
	}
	return TeamSlot{Team: s.MyTeamIndex, Slot: s.MySlot}, true
}

// Slot returns a copy of the seat at ts.
func (s DraftState) Slot(ts TeamSlot) (PlayerSlot, bool) {
	p, err := slotAt(s, ts.Team, ts.Slot)
	if err != nil {
		return PlayerSlot{}, false
	}
	return *p, true
}

func (s DraftState) IsMyTurn() bool {
	me, ok := s.Me()
	return ok && s.CurrentPicker != nil && *s.CurrentPicker == me
}

func AllLocked(s DraftState) bool {
	for _, p := range s.OwnTeam {
		if !p.HasLocked {
			return false
		}
	}
	for _, p := range s.OpponentTeam {
		if !p.HasLocked {
			return false
		}
	}
	return true
}

// CheckLockInvariant verifies hasLocked <=> finalRace for every seat.
func CheckLockInvariant(s DraftState) error {
	check := func(team string, players []PlayerSlot) error {
		for i, p := range players {
			if p.HasLocked != (p.FinalRace != "") {
				return fmt.Errorf("%s slot %d: hasLocked=%v finalRace=%q", team, i, p.HasLocked, p.FinalRace)
			}
		}
		return nil
	}
	if err := check("own", s.OwnTeam); err != nil {
		return err
	}
	return check("opponent", s.OpponentTeam)
}
