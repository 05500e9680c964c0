package httpapi

import (
	"net/http"

	"github.com/DoyleJ11/matchmaking-client/internal/hub"
	"github.com/DoyleJ11/matchmaking-client/internal/session"
	"github.com/DoyleJ11/matchmaking-client/internal/types"
	"github.com/DoyleJ11/matchmaking-client/internal/ws"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Deps struct {
	Store   *session.Store
	Hub     *hub.Hub
	Actions ws.Actions
	History History // nil when no journal database is configured
	Logger  *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/session", Session(d.Store))
	r.Get("/history", HistoryHandler(d.History, d.Logger))

	r.Route("/matchmaking", func(r chi.Router) {
		r.Post("/find", action(d.Actions, d.Logger, types.MsgFindMatch))
		r.Delete("/find", action(d.Actions, d.Logger, types.MsgCancelFind))
		r.Post("/accept", action(d.Actions, d.Logger, types.MsgAcceptMatch))
	})
	r.Route("/draft", func(r chi.Router) {
		r.Put("/race", action(d.Actions, d.Logger, types.MsgSetRace))
		r.Post("/lock", action(d.Actions, d.Logger, types.MsgLockIn))
		r.Post("/chat", action(d.Actions, d.Logger, types.MsgSendChat))
	})
	r.Put("/focus", action(d.Actions, d.Logger, types.MsgFocus))

	if d.Hub != nil {
		r.Get("/ws", ws.Handler(d.Hub, d.Actions, d.Logger))
	}
	return r
}
