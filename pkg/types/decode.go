package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownEventType = errors.New("unknown event type")

// Decode parses one server frame into its typed event.
func Decode(data []byte) (Envelope, error) {
	var head struct {
		Type EventType `json:"type"`
		Seq  uint64    `json:"seq"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Envelope{}, fmt.Errorf("decode event header: %w", err)
	}

	var (
		ev  Event
		err error
	)
	switch head.Type {
	case TypeStartSearch:
		ev, err = decodeAs[StartSearch](data)
	case TypeRequeue:
		ev, err = decodeAs[Requeue](data)
	case TypeMatchFound:
		ev, err = decodeAs[MatchFound](data)
	case TypePlayerAccepted:
		ev, err = decodeAs[PlayerAccepted](data)
	case TypeAcceptTimeout:
		ev, err = decodeAs[AcceptTimeout](data)
	case TypeDraftStarted:
		ev, err = decodeAs[DraftStarted](data)
	case TypeDraftPickStarted:
		ev, err = decodeAs[DraftPickStarted](data)
	case TypeDraftProvisionalPick:
		ev, err = decodeAs[DraftProvisionalPick](data)
	case TypeDraftPickLocked:
		ev, err = decodeAs[DraftPickLocked](data)
	case TypeDraftCompleted:
		ev, err = decodeAs[DraftCompleted](data)
	case TypeDraftCancel:
		ev, err = decodeAs[DraftCancel](data)
	case TypeDraftChatMessage:
		ev, err = decodeAs[DraftChatMessage](data)
	case TypeMatchReady:
		ev, err = decodeAs[MatchReady](data)
	case TypeCancelLoading:
		ev, err = decodeAs[CancelLoading](data)
	case TypeGameStarted:
		ev, err = decodeAs[GameStarted](data)
	case TypeQueueStatus:
		ev, err = decodeAs[QueueStatus](data)
	default:
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownEventType, head.Type)
	}
	if err != nil {
		return Envelope{}, fmt.Errorf("decode %s: %w", head.Type, err)
	}

	return Envelope{Seq: head.Seq, Event: ev}, nil
}

func decodeAs[T Event](data []byte) (Event, error) {
	var e T
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return e, nil
}

// Encode is the inverse of Decode. seq 0 is omitted.
func Encode(seq uint64, ev Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}

	fields["type"], _ = json.Marshal(ev.Type())
	if seq != 0 {
		fields["seq"], _ = json.Marshal(seq)
	}
	return json.Marshal(fields)
}
