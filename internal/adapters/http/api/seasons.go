package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/season"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/errs"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/logger"
)

// SeasonDependencies defines the season administration operations.
type SeasonDependencies interface {
	CreateSeason(ctx context.Context, in season.CreateSeasonInput) (model.Season, error)
	Season(ctx context.Context, seasonID string) (model.Season, error)
	Seasons(ctx context.Context) ([]model.Season, error)
	CloseSeason(ctx context.Context, seasonID string) (model.Season, error)
	JoinSeason(ctx context.Context, seasonID, playerID string) (model.SeasonPlayer, bool, error)
	Participants(ctx context.Context, seasonID string) ([]model.SeasonPlayer, error)
	Teams(ctx context.Context, seasonID string) ([]model.SeasonTeam, error)
	SetParticipantDisabled(ctx context.Context, seasonID, seasonPlayerID string, disabled bool) error
}

// SeasonsHandler handles season requests.
type SeasonsHandler struct {
	deps   SeasonDependencies
	logger logger.Logger
}

// NewSeasonsHandler creates a new seasons handler.
func NewSeasonsHandler(deps SeasonDependencies, l logger.Logger) *SeasonsHandler {
	return &SeasonsHandler{deps: deps, logger: l}
}

// createSeasonRequest mirrors the OpenAPI schema for POST /seasons.
type createSeasonRequest struct {
	Name         string     `json:"name"`
	ScoreType    string     `json:"score_type"`
	InitialScore *int       `json:"initial_score,omitempty"`
	KFactor      *int       `json:"k_factor,omitempty"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
}

// HandleCreate handles POST /seasons.
func (h *SeasonsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_season"
	var req createSeasonRequest
	if err := decodeJSON(r, op, &req); err != nil {
		writeError(w, err)
		return
	}
	in := season.CreateSeasonInput{
		Name:         req.Name,
		ScoreType:    req.ScoreType,
		InitialScore: req.InitialScore,
		KFactor:      req.KFactor,
		EndDate:      req.EndDate,
		ActingUserID: ActingUser(r.Context()),
	}
	if req.StartDate != nil {
		in.StartDate = *req.StartDate
	}
	s, err := h.deps.CreateSeason(r.Context(), in)
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// HandleList handles GET /seasons.
func (h *SeasonsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	seasons, err := h.deps.Seasons(r.Context())
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, seasons)
}

// HandleGet handles GET /seasons/{seasonID}.
func (h *SeasonsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	s, err := h.deps.Season(r.Context(), chi.URLParam(r, "seasonID"))
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// HandleClose handles POST /seasons/{seasonID}/close.
func (h *SeasonsHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	s, err := h.deps.CloseSeason(r.Context(), chi.URLParam(r, "seasonID"))
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type joinSeasonRequest struct {
	PlayerID string `json:"player_id"`
}

// HandleJoin handles POST /seasons/{seasonID}/players. Joining twice
// returns the existing membership with 200.
func (h *SeasonsHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	const op = "api.join_season"
	var req joinSeasonRequest
	if err := decodeJSON(r, op, &req); err != nil {
		writeError(w, err)
		return
	}
	sp, created, err := h.deps.JoinSeason(r.Context(), chi.URLParam(r, "seasonID"), req.PlayerID)
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, sp)
}

// HandleParticipants handles GET /seasons/{seasonID}/players.
func (h *SeasonsHandler) HandleParticipants(w http.ResponseWriter, r *http.Request) {
	sps, err := h.deps.Participants(r.Context(), chi.URLParam(r, "seasonID"))
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, sps)
}

// HandleTeams handles GET /seasons/{seasonID}/teams.
func (h *SeasonsHandler) HandleTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.deps.Teams(r.Context(), chi.URLParam(r, "seasonID"))
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

type updateParticipantRequest struct {
	Disabled *bool `json:"disabled"`
}

// HandleSetDisabled handles PATCH /seasons/{seasonID}/players/{seasonPlayerID}.
func (h *SeasonsHandler) HandleSetDisabled(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_participant"
	var req updateParticipantRequest
	if err := decodeJSON(r, op, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Disabled == nil {
		writeError(w, errs.E(op, errs.ErrValidation, "disabled is required"))
		return
	}
	err := h.deps.SetParticipantDisabled(r.Context(), chi.URLParam(r, "seasonID"), chi.URLParam(r, "seasonPlayerID"), *req.Disabled)
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
