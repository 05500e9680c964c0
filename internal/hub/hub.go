package hub

import (
	"context"

	"github.com/DoyleJ11/matchmaking-client/internal/countdown"
	"github.com/DoyleJ11/matchmaking-client/internal/session"
	"github.com/DoyleJ11/matchmaking-client/internal/types"
	"go.uber.org/zap"
)

type HubMsg interface{ isHubMsg() }

// Join registers a UI client. The latest snapshot is sent right away.
type Join struct {
	ClientID string
	Outbox   chan types.ServerMessage
}

type Leave struct {
	ClientID string
}

type Publish struct {
	Msg types.ServerMessage
}

type GetStats struct {
	Reply chan Stats
}

type Stats struct {
	NumClients int
	Version    int
}

type ShutdownHub struct{}

func (Join) isHubMsg()        {}
func (Leave) isHubMsg()       {}
func (Publish) isHubMsg()     {}
func (GetStats) isHubMsg()    {}
func (ShutdownHub) isHubMsg() {}

// Hub fans snapshots, notices and cues out to every connected UI client.
type Hub struct {
	inbox   chan HubMsg
	clients map[string]chan types.ServerMessage
	latest  types.ServerMessage
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

var (
	_ session.Publisher = (*Hub)(nil)
	_ session.Notifier  = (*Hub)(nil)
	_ countdown.CueSink = (*Hub)(nil)
)

func NewHub(parent context.Context, initial session.Snapshot, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		clients: make(map[string]chan types.ServerMessage),
		latest:  types.SnapshotMessage(initial),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Join:
				h.clients[msg.ClientID] = msg.Outbox
				h.send(msg.ClientID, msg.Outbox, h.latest)

			case Leave:
				delete(h.clients, msg.ClientID)

			case Publish:
				if msg.Msg.Type == types.MsgStateSnapshot {
					if msg.Msg.Version < h.latest.Version {
						break
					}
					h.latest = msg.Msg
				}
				h.broadcast(msg.Msg)

			case GetStats:
				msg.Reply <- Stats{NumClients: len(h.clients), Version: h.latest.Version}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
	h.cancel()
}

func (h *Hub) broadcast(msg types.ServerMessage) {
	for id, ch := range h.clients {
		h.send(id, ch, msg)
	}
}

func (h *Hub) send(id string, ch chan types.ServerMessage, msg types.ServerMessage) {
	select {
	case ch <- msg:
	default:
		// Slow client: drop it rather than stall everyone else.
		h.logger.Warn("dropping slow ui client", zap.String("client", id))
		close(ch)
		delete(h.clients, id)
	}
}

func (h *Hub) publish(msg types.ServerMessage) {
	select {
	case h.inbox <- Publish{Msg: msg}:
	case <-h.ctx.Done():
	}
}

// PublishSnapshot is called by the store under its lock. It only waits on
// the hub's inbox, and the hub never touches the store.
func (h *Hub) PublishSnapshot(snap session.Snapshot) {
	h.publish(types.SnapshotMessage(snap))
}

func (h *Hub) Notify(n session.Notice) {
	h.publish(types.ServerMessage{Type: types.MsgNotice, Notice: &n})
}

func (h *Hub) Cue(cue countdown.Cue, secondsLeft int) {
	h.publish(types.ServerMessage{Type: types.MsgCue, Cue: cue, SecondsLeft: secondsLeft})
}
