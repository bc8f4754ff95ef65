package api

import (
	"context"
	"net/http"

	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/logger"
)

// PlayerDependencies defines the player registry operations.
type PlayerDependencies interface {
	CreatePlayer(ctx context.Context, name string) (model.Player, error)
	Players(ctx context.Context) ([]model.Player, error)
}

// PlayersHandler handles player requests.
type PlayersHandler struct {
	deps   PlayerDependencies
	logger logger.Logger
}

// NewPlayersHandler creates a new players handler.
func NewPlayersHandler(deps PlayerDependencies, l logger.Logger) *PlayersHandler {
	return &PlayersHandler{deps: deps, logger: l}
}

type createPlayerRequest struct {
	Name string `json:"name"`
}

// HandleCreate handles POST /players.
func (h *PlayersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_player"
	var req createPlayerRequest
	if err := decodeJSON(r, op, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := h.deps.CreatePlayer(r.Context(), req.Name)
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HandleList handles GET /players.
func (h *PlayersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	players, err := h.deps.Players(r.Context())
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}
