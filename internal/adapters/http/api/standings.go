package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/adapters/standings"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/logger"
)

const defaultStandingsLimit = 10

// StandingsDependencies defines the read model operations.
type StandingsDependencies interface {
	Standings(ctx context.Context, seasonID string, n int) ([]standings.Entry, error)
	Rank(ctx context.Context, seasonID, seasonPlayerID string) (standings.Entry, error)
	Achievements(ctx context.Context, seasonID, seasonPlayerID string) ([]model.Achievement, error)
}

// StandingsHandler handles standings and achievement requests.
type StandingsHandler struct {
	deps   StandingsDependencies
	logger logger.Logger
}

// NewStandingsHandler creates a new standings handler.
func NewStandingsHandler(deps StandingsDependencies, l logger.Logger) *StandingsHandler {
	return &StandingsHandler{deps: deps, logger: l}
}

// HandleTop handles GET /seasons/{seasonID}/standings?limit=N.
func (h *StandingsHandler) HandleTop(w http.ResponseWriter, r *http.Request) {
	const op = "api.standings"
	n, err := queryInt(op, "limit", r.URL.Query().Get("limit"), defaultStandingsLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := h.deps.Standings(r.Context(), chi.URLParam(r, "seasonID"), n)
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleRank handles GET /seasons/{seasonID}/standings/{seasonPlayerID}.
func (h *StandingsHandler) HandleRank(w http.ResponseWriter, r *http.Request) {
	entry, err := h.deps.Rank(r.Context(), chi.URLParam(r, "seasonID"), chi.URLParam(r, "seasonPlayerID"))
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// HandleAchievements handles GET /seasons/{seasonID}/players/{seasonPlayerID}/achievements.
func (h *StandingsHandler) HandleAchievements(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Achievements(r.Context(), chi.URLParam(r, "seasonID"), chi.URLParam(r, "seasonPlayerID"))
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	if list == nil {
		list = []model.Achievement{}
	}
	writeJSON(w, http.StatusOK, list)
}
