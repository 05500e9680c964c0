package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/DoyleJ11/matchmaking-client/internal/engine"
	"github.com/DoyleJ11/matchmaking-client/internal/journal"
	"github.com/DoyleJ11/matchmaking-client/internal/optimistic"
	"github.com/DoyleJ11/matchmaking-client/internal/session"
	"github.com/DoyleJ11/matchmaking-client/internal/types"
	"github.com/DoyleJ11/matchmaking-client/internal/ws"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// History lists recorded match outcomes, newest first.
type History interface {
	Recent(ctx context.Context, limit int) ([]journal.Outcome, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, optimistic.ErrInvalidRace),
		errors.Is(err, optimistic.ErrEmptyMessage),
		errors.Is(err, ws.ErrUnknownMessage),
		errors.Is(err, ws.ErrMissingFocus):
		return http.StatusBadRequest
	case errors.Is(err, optimistic.ErrNotInDraft),
		errors.Is(err, optimistic.ErrNotYourTurn),
		errors.Is(err, optimistic.ErrAlreadyLocked),
		errors.Is(err, optimistic.ErrPickOvertime),
		errors.Is(err, optimistic.ErrNoFoundMatch),
		errors.Is(err, optimistic.ErrAlreadyAccepted),
		errors.Is(err, optimistic.ErrAcceptWindowClosed),
		errors.Is(err, optimistic.ErrSuperseded),
		errors.Is(err, optimistic.ErrNoActiveMatch):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// action decodes the body into a ClientMessage of the given type and runs it.
func action(actions ws.Actions, logger *zap.Logger, msgType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cm := types.ClientMessage{}
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&cm); err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad json"})
				return
			}
		}
		cm.Type = msgType

		if err := ws.Dispatch(r.Context(), actions, cm); err != nil {
			status := statusFor(err)
			if status >= http.StatusInternalServerError {
				logger.Warn("action failed", zap.String("type", msgType), zap.Error(err))
			}
			writeJSON(w, status, errorResponse{Error: err.Error()})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func Session(store *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := store.Snapshot()
		writeJSON(w, http.StatusOK, struct {
			session.Snapshot
			AcceptPhase session.AcceptPhase `json:"acceptPhase"`
			DisplayRace engine.Race         `json:"displayRace,omitempty"`
		}{
			Snapshot:    snap,
			AcceptPhase: snap.State.AcceptPhase(),
			DisplayRace: snap.State.DisplayRace(),
		})
	}
}

func HistoryHandler(h History, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultHistoryLimit
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
				return
			}
			limit = min(n, maxHistoryLimit)
		}

		if h == nil {
			writeJSON(w, http.StatusOK, []journal.Outcome{})
			return
		}
		out, err := h.Recent(r.Context(), limit)
		if err != nil {
			logger.Error("history query failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "history unavailable"})
			return
		}
		if out == nil {
			out = []journal.Outcome{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
