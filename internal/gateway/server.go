// Package gateway exposes the read-only HTTP interface over the
// canonical ratings store.
package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hoopindex/ratings-pipeline/internal/config"
	"github.com/hoopindex/ratings-pipeline/internal/metrics"
	"github.com/hoopindex/ratings-pipeline/internal/ratings"
)

// Server wires HTTP handlers to the store and the request-side policies:
// API-key auth, per-caller rate limiting, and request logging.
type Server struct {
	router chi.Router
	store  ratings.Store
	logs   ratings.RequestLogStore
	limits ratings.RateLimitStore
	clock  ratings.Clock
	logger *zap.Logger
	cfg    config.Config
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	store ratings.Store,
	logs ratings.RequestLogStore,
	limits ratings.RateLimitStore,
	clock ratings.Clock,
	logger *zap.Logger,
	cfg config.Config,
) *Server {
	s := &Server{
		store:  store,
		logs:   logs,
		limits: limits,
		clock:  clock,
		logger: logger,
		cfg:    cfg,
	}

	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(s.metricsMiddleware)

	// Probes and scrapes are neither authenticated nor request-logged.
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requestLogMiddleware)
		r.Use(s.authMiddleware)
		r.Use(s.rateLimitMiddleware)

		r.Get("/players", s.listPlayers)
		r.Get("/players/search", s.searchPlayers)
		r.Get("/players/{category}/{name}", s.getPlayer)
		r.Get("/teams", s.listTeams)
		r.Get("/positions/{position}/averages", s.positionAverages)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// The store is the only hard dependency of the read path.
	if _, err := s.store.ListTeams(r.Context(), ratings.CategoryCurrent); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// listPlayers serves /v1/players?category=... or /v1/players?team=...
func (s *Server) listPlayers(w http.ResponseWriter, r *http.Request) {
	categoryRaw := r.URL.Query().Get("category")
	team := r.URL.Query().Get("team")

	switch {
	case categoryRaw != "":
		category, err := ratings.ParseCategory(categoryRaw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, kindBadRequest, err.Error())
			return
		}
		players, err := s.store.ListPlayersByCategory(r.Context(), category)
		if err != nil {
			s.internalError(w, r, "list players by category", err)
			return
		}
		s.writeJSON(w, http.StatusOK, playersResponse{Players: players})
	case team != "":
		players, err := s.store.ListPlayersByTeam(r.Context(), team)
		if err != nil {
			s.internalError(w, r, "list players by team", err)
			return
		}
		s.writeJSON(w, http.StatusOK, playersResponse{Players: players})
	default:
		s.writeError(w, http.StatusBadRequest, kindBadRequest, "category or team query parameter is required")
	}
}

func (s *Server) searchPlayers(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.writeError(w, http.StatusBadRequest, kindBadRequest, "q query parameter is required")
		return
	}
	players, err := s.store.SearchPlayers(r.Context(), q)
	if err != nil {
		s.internalError(w, r, "search players", err)
		return
	}
	s.writeJSON(w, http.StatusOK, playersResponse{Players: players})
}

func (s *Server) getPlayer(w http.ResponseWriter, r *http.Request) {
	category, err := ratings.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, kindBadRequest, err.Error())
		return
	}
	name := ratings.NormalizeName(chi.URLParam(r, "name"))
	player, err := s.store.GetPlayer(r.Context(), name, category)
	if errors.Is(err, ratings.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, kindNotFound, "player not found")
		return
	}
	if err != nil {
		s.internalError(w, r, "get player", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]ratings.Player{"player": player})
}

func (s *Server) listTeams(w http.ResponseWriter, r *http.Request) {
	category, err := ratings.ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, kindBadRequest, err.Error())
		return
	}
	teams, err := s.store.ListTeams(r.Context(), category)
	if err != nil {
		s.internalError(w, r, "list teams", err)
		return
	}
	if teams == nil {
		teams = []ratings.Team{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]ratings.Team{"teams": teams})
}

func (s *Server) positionAverages(w http.ResponseWriter, r *http.Request) {
	position := strings.TrimSpace(chi.URLParam(r, "position"))
	if position == "" {
		s.writeError(w, http.StatusBadRequest, kindBadRequest, "position is required")
		return
	}
	averages, err := s.store.PositionAverages(r.Context(), position, s.cfg.API.AggregateAllCategories)
	if err != nil {
		s.internalError(w, r, "position averages", err)
		return
	}
	if averages.PlayerCount == 0 {
		s.writeError(w, http.StatusNotFound, kindNotFound, "no players at position")
		return
	}
	s.writeJSON(w, http.StatusOK, averages)
}

type playersResponse struct {
	Players []ratings.Player `json:"players"`
}

func (p playersResponse) MarshalJSON() ([]byte, error) {
	players := p.Players
	if players == nil {
		players = []ratings.Player{}
	}
	type alias struct {
		Players []ratings.Player `json:"players"`
	}
	return json.Marshal(alias{Players: players})
}

// Error kinds surfaced in the JSON error envelope.
const (
	kindAuthenticationFailed = "authentication_failed"
	kindRateLimited          = "rate_limited"
	kindNotFound             = "not_found"
	kindBadRequest           = "bad_request"
	kindInternal             = "internal"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.Error("request failed",
		zap.String("op", op),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	s.writeError(w, http.StatusInternalServerError, kindInternal, "internal error")
}

func (s *Server) writeError(w http.ResponseWriter, status int, kind, message string) {
	s.writeJSON(w, status, map[string]errorBody{"error": {Kind: kind, Message: message}})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write response failed", zap.Error(err))
	}
}
