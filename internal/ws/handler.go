package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/DoyleJ11/matchmaking-client/internal/engine"
	"github.com/DoyleJ11/matchmaking-client/internal/hub"
	"github.com/DoyleJ11/matchmaking-client/internal/optimistic"
	"github.com/DoyleJ11/matchmaking-client/internal/types"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnknownMessage = errors.New("unknown message type")
	ErrMissingFocus   = errors.New("focus message without focused flag")
)

// Actions are the player actions the UI can trigger. The optimistic
// controller implements them.
type Actions interface {
	FindMatch(ctx context.Context, matchmakingType string, race engine.Race) error
	CancelFind(ctx context.Context) error
	AcceptMatch(ctx context.Context) error
	SetRace(ctx context.Context, race engine.Race) error
	LockIn(ctx context.Context, race engine.Race) error
	SendChat(ctx context.Context, message string) error
	SetFocus(focused bool)
}

var _ Actions = (*optimistic.Controller)(nil)

// Dispatch runs one client message against actions.
func Dispatch(ctx context.Context, actions Actions, m types.ClientMessage) error {
	switch m.Type {
	case types.MsgFindMatch:
		return actions.FindMatch(ctx, m.MatchmakingType, engine.Race(m.Race))
	case types.MsgCancelFind:
		return actions.CancelFind(ctx)
	case types.MsgAcceptMatch:
		return actions.AcceptMatch(ctx)
	case types.MsgSetRace:
		return actions.SetRace(ctx, engine.Race(m.Race))
	case types.MsgLockIn:
		return actions.LockIn(ctx, engine.Race(m.Race))
	case types.MsgSendChat:
		return actions.SendChat(ctx, m.Message)
	case types.MsgFocus:
		if m.Focused == nil {
			return ErrMissingFocus
		}
		actions.SetFocus(*m.Focused)
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessage, m.Type)
	}
}

// Handler is the UI's push channel: state snapshots, notices and cues go
// out, player actions come in.
func Handler(h *hub.Hub, actions Actions, logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// The UI is served from a local dev server on another port.
			OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan types.ServerMessage, 16)
		clientID := uuid.NewString()
		log := logger.With(zap.String("client", clientID))

		h.Inbox() <- hub.Join{ClientID: clientID, Outbox: out}
		defer func() { h.Inbox() <- hub.Leave{ClientID: clientID} }()
		log.Debug("ui client connected")

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case <-writeCtx.Done():
					return
				case msg, ok := <-out:
					if !ok {
						// Dropped by the hub as too slow.
						conn.Close(websocket.StatusPolicyViolation, "too slow")
						return
					}
					payload, _ := json.Marshal(msg)
					ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
					_ = conn.Write(ctx, websocket.MessageText, payload)
					cancel()
				}
			}
		}()

		// Actions outlive the socket: a click that was sent still completes.
		actionCtx := context.WithoutCancel(r.Context())

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					log.Debug("ui client disconnected")
				default:
					log.Debug("ui client read failed", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(r.Context(), conn, "bad json")
				continue
			}

			go func() {
				err := Dispatch(actionCtx, actions, cm)
				if err == nil || errors.Is(err, optimistic.ErrSuperseded) {
					return
				}
				log.Debug("ui action failed", zap.String("type", cm.Type), zap.Error(err))
				writeError(writeCtx, conn, err.Error())
			}()
		}
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, msg string) {
	payload, _ := json.Marshal(types.ServerMessage{Type: types.MsgError, Error: msg})
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_ = conn.Write(ctx, websocket.MessageText, payload)
}
