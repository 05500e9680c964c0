package types

import (
	"errors"
	"testing"
)

// countingVisitor records which handler ran.
type countingVisitor struct{ last string }

func (c *countingVisitor) StartSearch(StartSearch)                   { c.last = "StartSearch" }
func (c *countingVisitor) Requeue(Requeue)                           { c.last = "Requeue" }
func (c *countingVisitor) MatchFound(MatchFound)                     { c.last = "MatchFound" }
func (c *countingVisitor) PlayerAccepted(PlayerAccepted)             { c.last = "PlayerAccepted" }
func (c *countingVisitor) AcceptTimeout(AcceptTimeout)               { c.last = "AcceptTimeout" }
func (c *countingVisitor) DraftStarted(DraftStarted)                 { c.last = "DraftStarted" }
func (c *countingVisitor) DraftPickStarted(DraftPickStarted)         { c.last = "DraftPickStarted" }
func (c *countingVisitor) DraftProvisionalPick(DraftProvisionalPick) { c.last = "DraftProvisionalPick" }
func (c *countingVisitor) DraftPickLocked(DraftPickLocked)           { c.last = "DraftPickLocked" }
func (c *countingVisitor) DraftCompleted(DraftCompleted)             { c.last = "DraftCompleted" }
func (c *countingVisitor) DraftCancel(DraftCancel)                   { c.last = "DraftCancel" }
func (c *countingVisitor) DraftChatMessage(DraftChatMessage)         { c.last = "DraftChatMessage" }
func (c *countingVisitor) MatchReady(MatchReady)                     { c.last = "MatchReady" }
func (c *countingVisitor) CancelLoading(CancelLoading)               { c.last = "CancelLoading" }
func (c *countingVisitor) GameStarted(GameStarted)                   { c.last = "GameStarted" }
func (c *countingVisitor) QueueStatus(QueueStatus)                   { c.last = "QueueStatus" }

func TestDecode_MatchFound(t *testing.T) {
	env, err := Decode([]byte(`{"type":"matchFound","seq":7,"matchmakingType":"1v1","numPlayers":2,"acceptTimeTotalMillis":15000,"acceptTimeLeftMillis":14000}`))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if env.Seq != 7 {
		t.Fatalf("seq: got %d, want 7", env.Seq)
	}
	mf, ok := env.Event.(MatchFound)
	if !ok {
		t.Fatalf("want MatchFound, got %T", env.Event)
	}
	if mf.NumPlayers != 2 || mf.AcceptTimeLeftMillis != 14000 {
		t.Fatalf("payload not decoded: %+v", mf)
	}
}

func TestDecode_DraftStartedPickOrder(t *testing.T) {
	env, err := Decode([]byte(`{"type":"draftStarted","mapId":"m1","myTeamIndex":1,
		"ownTeam":[{"userId":"4","nameIndex":0,"hasLocked":false}],
		"opponentTeam":[{"nameIndex":0,"hasLocked":false}],
		"pickOrder":[[1,0],[0,0]]}`))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ds := env.Event.(DraftStarted)
	if len(ds.PickOrder) != 2 || ds.PickOrder[0] != [2]int{1, 0} {
		t.Fatalf("pick order: %+v", ds.PickOrder)
	}
}

func TestDecode_Errors(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"not json", `nope`},
		{"unknown type", `{"type":"surrender"}`},
		{"bad payload", `{"type":"playerAccepted","acceptedPlayers":"two"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode([]byte(tc.in)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	_, err := Decode([]byte(`{"type":"surrender"}`))
	if !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("want ErrUnknownEventType, got %v", err)
	}
}

func TestEncodeDecode_DispatchesEveryType(t *testing.T) {
	events := []Event{
		StartSearch{MatchmakingType: "1v1", Race: "z"},
		Requeue{},
		MatchFound{NumPlayers: 2},
		PlayerAccepted{AcceptedPlayers: 1},
		AcceptTimeout{},
		DraftStarted{MapID: "m"},
		DraftPickStarted{TeamID: 1},
		DraftProvisionalPick{Race: "p"},
		DraftPickLocked{Race: "t"},
		DraftCompleted{},
		DraftCancel{},
		DraftChatMessage{Text: "gl hf"},
		MatchReady{},
		CancelLoading{},
		GameStarted{GameID: "g"},
		QueueStatus{InQueue: true},
	}

	for i, ev := range events {
		t.Run(string(ev.Type()), func(t *testing.T) {
			data, err := Encode(uint64(i+1), ev)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			env, err := Decode(data)
			if err != nil {
				t.Fatalf("decode %s: %v", data, err)
			}
			if env.Seq != uint64(i+1) || env.Event.Type() != ev.Type() {
				t.Fatalf("got seq=%d type=%s", env.Seq, env.Event.Type())
			}

			v := &countingVisitor{}
			env.Event.Accept(v)
			if v.last == "" {
				t.Fatalf("no visitor method ran for %s", ev.Type())
			}
		})
	}
}
