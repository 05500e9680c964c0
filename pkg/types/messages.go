package types

// Server -> client events, one JSON object per frame:
//   {"type": "<EventType>", "seq": <uint, optional>, ...payload fields}
//
// seq is per connection and increases by one per event. Events without a
// seq are applied as soon as they arrive.

type EventType string

const (
	TypeStartSearch          EventType = "startSearch"
	TypeRequeue              EventType = "requeue"
	TypeMatchFound           EventType = "matchFound"
	TypePlayerAccepted       EventType = "playerAccepted"
	TypeAcceptTimeout        EventType = "acceptTimeout"
	TypeDraftStarted         EventType = "draftStarted"
	TypeDraftPickStarted     EventType = "draftPickStarted"
	TypeDraftProvisionalPick EventType = "draftProvisionalPick"
	TypeDraftPickLocked      EventType = "draftPickLocked"
	TypeDraftCompleted       EventType = "draftCompleted"
	TypeDraftCancel          EventType = "draftCancel"
	TypeDraftChatMessage     EventType = "draftChatMessage"
	TypeMatchReady           EventType = "matchReady"
	TypeCancelLoading        EventType = "cancelLoading"
	TypeGameStarted          EventType = "gameStarted"
	TypeQueueStatus          EventType = "queueStatus"
)

// Event is the closed set of server events. Each event hands itself to the
// matching Visitor method, so a new event type needs a new Visitor method
// and every Visitor stops compiling until it handles it.
type Event interface {
	Type() EventType
	Accept(v Visitor)
}

type Visitor interface {
	StartSearch(StartSearch)
	Requeue(Requeue)
	MatchFound(MatchFound)
	PlayerAccepted(PlayerAccepted)
	AcceptTimeout(AcceptTimeout)
	DraftStarted(DraftStarted)
	DraftPickStarted(DraftPickStarted)
	DraftProvisionalPick(DraftProvisionalPick)
	DraftPickLocked(DraftPickLocked)
	DraftCompleted(DraftCompleted)
	DraftCancel(DraftCancel)
	DraftChatMessage(DraftChatMessage)
	MatchReady(MatchReady)
	CancelLoading(CancelLoading)
	GameStarted(GameStarted)
	QueueStatus(QueueStatus)
}

type Envelope struct {
	Seq   uint64
	Event Event
}

type StartSearch struct {
	MatchmakingType string `json:"matchmakingType"`
	Race            string `json:"race"`
}

type Requeue struct{}

type MatchFound struct {
	MatchmakingType       string `json:"matchmakingType"`
	NumPlayers            int    `json:"numPlayers"`
	AcceptTimeTotalMillis int64  `json:"acceptTimeTotalMillis"`
	AcceptTimeLeftMillis  int64  `json:"acceptTimeLeftMillis"`
}

type PlayerAccepted struct {
	AcceptedPlayers int `json:"acceptedPlayers"`
}

type AcceptTimeout struct{}

type DraftPlayer struct {
	UserID          string `json:"userId,omitempty"`
	NameIndex       int    `json:"nameIndex"`
	ProvisionalRace string `json:"provisionalRace,omitempty"`
	HasLocked       bool   `json:"hasLocked"`
	FinalRace       string `json:"finalRace,omitempty"`
}

type DraftStarted struct {
	MapID        string        `json:"mapId"`
	MyTeamIndex  int           `json:"myTeamIndex"`
	OwnTeam      []DraftPlayer `json:"ownTeam"`
	OpponentTeam []DraftPlayer `json:"opponentTeam"`
	// [team, slot] tuples
	PickOrder [][2]int `json:"pickOrder"`
}

type DraftPickStarted struct {
	TeamID int `json:"teamId"`
	Index  int `json:"index"`
}

type DraftProvisionalPick struct {
	TeamID int    `json:"teamId"`
	Index  int    `json:"index"`
	Race   string `json:"race"`
}

type DraftPickLocked struct {
	TeamID int    `json:"teamId"`
	Index  int    `json:"index"`
	Race   string `json:"race"`
}

type DraftCompleted struct{}

type DraftCancel struct {
	Reason string `json:"reason,omitempty"`
}

type DraftChatMessage struct {
	ID       string   `json:"id"`
	From     string   `json:"from"`
	Text     string   `json:"text"`
	Time     int64    `json:"time"` // unix millis
	Mentions []string `json:"mentions,omitempty"`
}

type MatchReady struct{}

type CancelLoading struct {
	Reason string `json:"reason,omitempty"`
}

type GameStarted struct {
	GameID string `json:"gameId"`
}

type QueueStatus struct {
	InQueue         bool   `json:"inQueue"`
	MatchmakingType string `json:"matchmakingType,omitempty"`
}

func (StartSearch) Type() EventType          { return TypeStartSearch }
func (Requeue) Type() EventType              { return TypeRequeue }
func (MatchFound) Type() EventType           { return TypeMatchFound }
func (PlayerAccepted) Type() EventType       { return TypePlayerAccepted }
func (AcceptTimeout) Type() EventType        { return TypeAcceptTimeout }
func (DraftStarted) Type() EventType         { return TypeDraftStarted }
func (DraftPickStarted) Type() EventType     { return TypeDraftPickStarted }
func (DraftProvisionalPick) Type() EventType { return TypeDraftProvisionalPick }
func (DraftPickLocked) Type() EventType      { return TypeDraftPickLocked }
func (DraftCompleted) Type() EventType       { return TypeDraftCompleted }
func (DraftCancel) Type() EventType          { return TypeDraftCancel }
func (DraftChatMessage) Type() EventType     { return TypeDraftChatMessage }
func (MatchReady) Type() EventType           { return TypeMatchReady }
func (CancelLoading) Type() EventType        { return TypeCancelLoading }
func (GameStarted) Type() EventType          { return TypeGameStarted }
func (QueueStatus) Type() EventType          { return TypeQueueStatus }

func (e StartSearch) Accept(v Visitor)          { v.StartSearch(e) }
func (e Requeue) Accept(v Visitor)              { v.Requeue(e) }
func (e MatchFound) Accept(v Visitor)           { v.MatchFound(e) }
func (e PlayerAccepted) Accept(v Visitor)       { v.PlayerAccepted(e) }
func (e AcceptTimeout) Accept(v Visitor)        { v.AcceptTimeout(e) }
func (e DraftStarted) Accept(v Visitor)         { v.DraftStarted(e) }
func (e DraftPickStarted) Accept(v Visitor)     { v.DraftPickStarted(e) }
func (e DraftProvisionalPick) Accept(v Visitor) { v.DraftProvisionalPick(e) }
func (e DraftPickLocked) Accept(v Visitor)      { v.DraftPickLocked(e) }
func (e DraftCompleted) Accept(v Visitor)       { v.DraftCompleted(e) }
func (e DraftCancel) Accept(v Visitor)          { v.DraftCancel(e) }
func (e DraftChatMessage) Accept(v Visitor)     { v.DraftChatMessage(e) }
func (e MatchReady) Accept(v Visitor)           { v.MatchReady(e) }
func (e CancelLoading) Accept(v Visitor)        { v.CancelLoading(e) }
func (e GameStarted) Accept(v Visitor)          { v.GameStarted(e) }
func (e QueueStatus) Accept(v Visitor)          { v.QueueStatus(e) }
