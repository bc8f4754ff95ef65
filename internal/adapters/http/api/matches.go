package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	service "github.com/thor-coding-cowboys/scorebrawl-sub001/internal/app"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/settlement"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/errs"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/logger"
)

const defaultMatchesLimit = 50

// MatchDependencies defines the settlement operations.
type MatchDependencies interface {
	CreateMatch(ctx context.Context, idempotencyKey string, in settlement.CreateMatchInput) (service.MatchOutcome, error)
	RemoveMatch(ctx context.Context, in settlement.RemoveMatchInput) (settlement.RemovalResult, error)
	ListMatches(ctx context.Context, seasonID string, limit int) ([]model.Match, error)
	Reconcile(ctx context.Context, seasonID string, repair bool) (settlement.ReconcileReport, error)
}

// MatchesHandler handles match requests.
type MatchesHandler struct {
	deps   MatchDependencies
	logger logger.Logger
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(deps MatchDependencies, l logger.Logger) *MatchesHandler {
	return &MatchesHandler{deps: deps, logger: l}
}

// createMatchRequest mirrors the OpenAPI schema for POST /seasons/{seasonID}/matches.
type createMatchRequest struct {
	HomePlayerIDs []string `json:"home_player_ids"`
	AwayPlayerIDs []string `json:"away_player_ids"`
	HomeScore     *int     `json:"home_score"`
	AwayScore     *int     `json:"away_score"`
}

func (req createMatchRequest) validate(op string) error {
	if req.HomeScore == nil || req.AwayScore == nil {
		return errs.E(op, errs.ErrValidation, "home_score and away_score are required")
	}
	return nil
}

type matchResponse struct {
	Match     model.Match         `json:"match"`
	ScoreType model.ScoreType     `json:"score_type"`
	Players   []model.MatchPlayer `json:"players"`
	Teams     []model.MatchTeam   `json:"teams"`
	NewTeams  []model.Team        `json:"new_teams,omitempty"`
	Duplicate bool                `json:"duplicate"`
}

// HandleCreate handles POST /seasons/{seasonID}/matches. A replayed
// Idempotency-Key answers 200 with the original match.
func (h *MatchesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_match"
	var req createMatchRequest
	if err := decodeJSON(r, op, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validate(op); err != nil {
		writeError(w, err)
		return
	}
	in := settlement.CreateMatchInput{
		SeasonID:      chi.URLParam(r, "seasonID"),
		HomePlayerIDs: req.HomePlayerIDs,
		AwayPlayerIDs: req.AwayPlayerIDs,
		HomeScore:     *req.HomeScore,
		AwayScore:     *req.AwayScore,
		ActingUserID:  ActingUser(r.Context()),
	}
	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	out, err := h.deps.CreateMatch(r.Context(), key, in)
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	status := http.StatusCreated
	if out.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, matchResponse{
		Match:     out.Result.Match,
		ScoreType: out.Result.Mode,
		Players:   out.Result.Players,
		Teams:     out.Result.Teams,
		NewTeams:  out.Result.NewTeams,
		Duplicate: out.Duplicate,
	})
}

type removalResponse struct {
	MatchID         string   `json:"match_id"`
	SeasonPlayerIDs []string `json:"season_player_ids"`
}

// HandleRemove handles DELETE /seasons/{seasonID}/matches/{matchID}.
func (h *MatchesHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.RemoveMatch(r.Context(), settlement.RemoveMatchInput{
		SeasonID:     chi.URLParam(r, "seasonID"),
		MatchID:      chi.URLParam(r, "matchID"),
		ActingUserID: ActingUser(r.Context()),
	})
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, removalResponse{MatchID: res.Match.ID, SeasonPlayerIDs: res.PlayerIDs})
}

// HandleList handles GET /seasons/{seasonID}/matches?limit=N.
func (h *MatchesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_matches"
	limit, err := queryInt(op, "limit", r.URL.Query().Get("limit"), defaultMatchesLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	matches, err := h.deps.ListMatches(r.Context(), chi.URLParam(r, "seasonID"), limit)
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

// HandleReconcile handles POST /seasons/{seasonID}/reconcile?repair=true.
func (h *MatchesHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	const op = "api.reconcile"
	repair := false
	if raw := r.URL.Query().Get("repair"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, errs.E(op, errs.ErrValidation, "repair must be a boolean"))
			return
		}
		repair = v
	}
	rep, err := h.deps.Reconcile(r.Context(), chi.URLParam(r, "seasonID"), repair)
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

var _ Dependencies = (*service.Service)(nil)
