package realtime

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/flashbots/auctioneer/auction"
	"github.com/go-chi/chi/v5"
)

const maxCommandBody = 4096

var errNoActiveLot = &auction.Error{Kind: auction.KindValidation, Reason: auction.ReasonNoActiveLot}

// API serves the participant-facing HTTP surface: state re-requests,
// one-shot commands, the SSE stream and the WebSocket endpoint.
type API struct {
	dispatcher Dispatcher
	hub        *Hub
	auth       Authenticator
	ws         *WSHandler
	log        *slog.Logger
}

// APIConfig configures NewAPI.
type APIConfig struct {
	Dispatcher     Dispatcher
	Hub            *Hub
	Auth           Authenticator
	Log            *slog.Logger
	AllowedOrigins []string
}

func NewAPI(cfg APIConfig) *API {
	return &API{
		dispatcher: cfg.Dispatcher,
		hub:        cfg.Hub,
		auth:       cfg.Auth,
		ws:         NewWSHandler(cfg.Dispatcher, cfg.Hub, cfg.Auth, cfg.Log, cfg.AllowedOrigins),
		log:        cfg.Log,
	}
}

// RegisterRoutes mounts the API on r.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Get("/api/state", a.handleState)
	r.Post("/api/commands", a.handleCommand)
	r.Get("/events", a.handleSSE)
	r.Get("/ws", a.ws.ServeHTTP)
}

func (a *API) handleState(w http.ResponseWriter, r *http.Request) {
	snap, err := a.dispatcher.Snapshot(r.Context())
	if err != nil {
		if errors.Is(err, errNoActiveLot) {
			writeJSON(w, http.StatusOK, auction.Event{Type: auction.EventIdle})
			return
		}
		a.writeError(w, auction.Identity{}, "", err)
		return
	}
	writeJSON(w, http.StatusOK, auction.Event{Type: auction.EventState, Payload: snap})
}

func (a *API) handleCommand(w http.ResponseWriter, r *http.Request) {
	id := identify(r, a.auth)

	data, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody+1))
	if err != nil {
		a.writeError(w, id, "", auction.Invalid(auction.ReasonMalformed, "reading request body: %v", err))
		return
	}
	if len(data) > maxCommandBody {
		a.writeError(w, id, "", auction.Invalid(auction.ReasonMalformed, "request body too large"))
		return
	}

	cmd, err := auction.ParseCommand(data)
	if err != nil {
		a.writeError(w, id, "", err)
		return
	}

	reply, err := a.dispatcher.Handle(r.Context(), id, cmd)
	if err != nil {
		a.writeError(w, id, cmd.CommandType(), err)
		return
	}
	if reply == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (a *API) writeError(w http.ResponseWriter, id auction.Identity, cmd auction.CommandType, err error) {
	status := StatusForError(id, err)
	if status == http.StatusInternalServerError {
		a.log.Error("Command failed", "command", cmd, "err", err)
	}
	writeJSON(w, status, auction.NewErrorEvent(cmd, err))
}

// StatusForError maps a rejection onto an HTTP status. Authorization
// failures are 401 for guests and 403 for authenticated non-admins.
func StatusForError(id auction.Identity, err error) int {
	e := auction.AsError(err)
	switch e.Kind {
	case auction.KindAuthorization:
		if !id.Authenticated() {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	case auction.KindValidation:
		if e.Reason == auction.ReasonNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	case auction.KindRace:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
