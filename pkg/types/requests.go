package types

// Client -> server action bodies.

type FindMatchRequest struct {
	MatchmakingType string `json:"matchmakingType"`
	Race            string `json:"race"`
}

type CancelFindRequest struct{}

type AcceptMatchRequest struct{}

type DraftRaceRequest struct {
	Race string `json:"race"`
}

type DraftChatRequest struct {
	Message string `json:"message"`
}

// ErrorBody is the upstream error shape.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const ErrCodeNoActiveMatch = "noActiveMatch"
