package engine

// PickLabel gives the 1-based position of ts in the pick order and the
// total number of picks, for "Pick N of M" labels. Display only; transitions
// never consult the order.
func PickLabel(s DraftState, ts TeamSlot) (n, m int, ok bool) {
	for i, step := range s.PickOrder {
		if step == ts {
			return i + 1, len(s.PickOrder), true
		}
	}
	return 0, len(s.PickOrder), false
}

// PicksMade counts locked seats across both teams.
func PicksMade(s DraftState) int {
	n := 0
	for _, p := range s.OwnTeam {
		if p.HasLocked {
			n++
		}
	}
	for _, p := range s.OpponentTeam {
		if p.HasLocked {
			n++
		}
	}
	return n
}
