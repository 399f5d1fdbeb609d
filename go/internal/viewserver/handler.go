package viewserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bzdash/go/clients"
	"github.com/mcdev12/bzdash/go/internal/events"
	"github.com/mcdev12/bzdash/go/internal/models"
	"github.com/mcdev12/bzdash/go/internal/presence"
	"github.com/mcdev12/bzdash/go/internal/sessions"
	"github.com/mcdev12/bzdash/go/internal/teampicker"
	"github.com/mcdev12/bzdash/go/internal/transport"
)

const requestTimeout = 15 * time.Second

// Dashboard is the state the view server exposes.
type Dashboard interface {
	Bus() *events.Bus

	Sessions() sessions.View
	SessionDetail(ctx context.Context, id string) (*models.Session, error)
	Criteria() (sessions.Filter, sessions.SortMode)
	SetFilter(ctx context.Context, f sessions.Filter, mode sessions.SortMode) error
	Live() transport.LiveStatus
	Online() presence.OnlineView

	Draft() teampicker.View
	OpenDraft(ctx context.Context, sessionID string) error
	CloseDraft()
	DraftID() string
	Execute(ctx context.Context, cmd teampicker.Command, playerID string) (teampicker.View, error)

	Invite() *presence.Invite
	DismissInvite() *presence.Invite
	AcceptInvite(ctx context.Context) (*presence.Invite, error)

	User() *models.User
	Logout(ctx context.Context) error
	Mods(ctx context.Context) ([]models.Mod, error)
	Activity(ctx context.Context) (models.HistoryPoint, bool, error)
}

// Handler serves the dashboard's render models as JSON.
type Handler struct {
	dash Dashboard
}

func NewHandler(dash Dashboard) *Handler {
	return &Handler{dash: dash}
}

// Routes sets up all HTTP routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", h.Health)
	r.Get("/readyz", h.Ready)

	r.Route("/view", func(r chi.Router) {
		r.Get("/sessions", h.GetSessions)
		r.Get("/sessions/{id}", h.GetSession)
		r.Get("/filter", h.GetFilter)
		r.Post("/filter", h.SetFilter)
		r.Get("/live", h.GetLive)
		r.Get("/online", h.GetOnline)
		r.Get("/events", h.Events)

		r.Get("/draft", h.GetDraft)
		r.Post("/draft/{id}/open", h.OpenDraft)
		r.Post("/draft/{id}/close", h.CloseDraft)
		r.Post("/draft/command/{name}", h.DraftCommand)

		r.Get("/invite", h.GetInvite)
		r.Post("/invite/dismiss", h.DismissInvite)
		r.Post("/invite/accept", h.AcceptInvite)

		r.Get("/me", h.GetMe)
		r.Post("/logout", h.Logout)
		r.Get("/mods", h.GetMods)
		r.Get("/activity", h.GetActivity)
	})

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) GetSessions(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.dash.Sessions())
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id := chi.URLParam(r, "id")
	s, err := h.dash.SessionDetail(ctx, id)
	if err != nil {
		h.respondUpstreamError(w, "failed to get session", err)
		return
	}
	if s == nil {
		h.respondError(w, http.StatusNotFound, "session not found", id)
		return
	}
	h.respondJSON(w, http.StatusOK, sessions.NewCard(*s))
}

type filterBody struct {
	sessions.Filter
	Sort string `json:"sort,omitempty"`
}

func (h *Handler) GetFilter(w http.ResponseWriter, r *http.Request) {
	f, mode := h.dash.Criteria()
	h.respondJSON(w, http.StatusOK, filterBody{Filter: f, Sort: string(mode)})
}

func (h *Handler) SetFilter(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req filterBody
	if r.ContentLength == 0 {
		// bodiless requests carry the filter in the query string
		req.Filter = sessions.FilterFromValues(r.URL.Query())
		req.Sort = r.URL.Query().Get("sort")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	mode, err := sessions.ParseSortMode(req.Sort)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid sort", err.Error())
		return
	}
	if req.MinPlayers < 0 {
		h.respondError(w, http.StatusBadRequest, "invalid min_players", "min_players must not be negative")
		return
	}

	if err := h.dash.SetFilter(ctx, req.Filter, mode); err != nil {
		// the filter is applied; only the re-poll failed
		log.Warn().Err(err).Msg("re-poll after filter change failed")
	}
	h.respondJSON(w, http.StatusOK, h.dash.Sessions())
}

func (h *Handler) GetLive(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.dash.Live())
}

func (h *Handler) GetOnline(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.dash.Online())
}

func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.dash.Draft())
}

func (h *Handler) OpenDraft(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.dash.OpenDraft(ctx, chi.URLParam(r, "id")); err != nil {
		h.respondUpstreamError(w, "failed to open team picker", err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.dash.Draft())
}

func (h *Handler) CloseDraft(w http.ResponseWriter, r *http.Request) {
	if open := h.dash.DraftID(); open != chi.URLParam(r, "id") {
		h.respondError(w, http.StatusConflict, "team picker not open", open)
		return
	}
	h.dash.CloseDraft()
	h.respondJSON(w, http.StatusOK, h.dash.Draft())
}

type commandBody struct {
	PlayerID string `json:"player_id,omitempty"`
}

type commandResponse struct {
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	View    teampicker.View `json:"view"`
}

func (h *Handler) DraftCommand(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	cmd, ok := teampicker.ParseCommand(chi.URLParam(r, "name"))
	if !ok {
		h.respondError(w, http.StatusNotFound, "unknown command", chi.URLParam(r, "name"))
		return
	}

	var req commandBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
	}
	if cmd == teampicker.CommandPick && req.PlayerID == "" {
		h.respondError(w, http.StatusBadRequest, "player_id is required", "")
		return
	}

	view, err := h.dash.Execute(ctx, cmd, req.PlayerID)
	if err != nil {
		h.respondJSON(w, commandStatus(err), commandResponse{
			Error:   commandCode(err),
			Message: teampicker.ErrorText(cmd, err),
			View:    view,
		})
		return
	}
	h.respondJSON(w, http.StatusOK, commandResponse{View: view})
}

func (h *Handler) GetInvite(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]*presence.Invite{"invite": h.dash.Invite()})
}

func (h *Handler) DismissInvite(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]*presence.Invite{"invite": h.dash.DismissInvite()})
}

func (h *Handler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	invite, err := h.dash.AcceptInvite(ctx)
	if err != nil {
		h.respondUpstreamError(w, "failed to open team picker", err)
		return
	}
	if invite == nil {
		h.respondError(w, http.StatusNotFound, "no invite", "")
		return
	}
	h.respondJSON(w, http.StatusOK, h.dash.Draft())
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]*models.User{"user": h.dash.User()})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.dash.Logout(ctx); err != nil {
		h.respondUpstreamError(w, "logout failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetMods(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	mods, err := h.dash.Mods(ctx)
	if err != nil {
		h.respondUpstreamError(w, "failed to get mods", err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string][]models.Mod{"mods": mods})
}

type activityResponse struct {
	Point *models.HistoryPoint `json:"point"`
}

func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	point, ok, err := h.dash.Activity(ctx)
	if err != nil {
		h.respondUpstreamError(w, "failed to get activity", err)
		return
	}
	var resp activityResponse
	if ok {
		resp.Point = &point
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// commandStatus maps a command failure to the HTTP status of the view response.
func commandStatus(err error) int {
	var apiErr *clients.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.StatusCode
	case errors.Is(err, teampicker.ErrNoDraft):
		return http.StatusNotFound
	case errors.Is(err, teampicker.ErrNotCommander), errors.Is(err, teampicker.ErrNotYourTurn):
		return http.StatusForbidden
	case errors.Is(err, teampicker.ErrCommandPending):
		return http.StatusConflict
	case errors.Is(err, teampicker.ErrEmptyPool), errors.Is(err, teampicker.ErrNotEligible):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func commandCode(err error) string {
	if code := clients.ErrorCode(err); code != "" {
		return code
	}
	switch {
	case errors.Is(err, teampicker.ErrNoDraft):
		return "no_draft"
	case errors.Is(err, teampicker.ErrNotCommander):
		return "not_commander"
	case errors.Is(err, teampicker.ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, teampicker.ErrCommandPending):
		return "command_pending"
	case errors.Is(err, teampicker.ErrEmptyPool):
		return "empty_pool"
	case errors.Is(err, teampicker.ErrNotEligible):
		return "not_eligible"
	default:
		return "request_failed"
	}
}

func (h *Handler) respondUpstreamError(w http.ResponseWriter, message string, err error) {
	status := http.StatusBadGateway
	var apiErr *clients.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.StatusCode
	}
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	log.Warn().Err(err).Int("status", status).Msg(message)
	h.respondError(w, status, message, err.Error())
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message, details string) {
	body := map[string]string{"error": message}
	if details != "" {
		body["details"] = details
	}
	h.respondJSON(w, status, body)
}
