// Package api exposes the settlement service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/errs"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/logger"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/metrics"
)

// Request headers understood by the API.
const (
	HeaderUserID         = "X-User-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. The interface bundle keeps the
// handler layer loosely coupled to the service implementation.
type Dependencies interface {
	PlayerDependencies
	SeasonDependencies
	MatchDependencies
	StandingsDependencies
	HealthDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	players   *PlayersHandler
	seasons   *SeasonsHandler
	matches   *MatchesHandler
	standings *StandingsHandler
	health    *HealthHandler
	stats     *StatsHandler

	logger      logger.Logger
	corsOrigins []string
	mounts      []mount
}

type mount struct {
	pattern string
	handler http.Handler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{corsOrigins: []string{"*"}}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("api")
	}
	s.players = NewPlayersHandler(deps, s.logger)
	s.seasons = NewSeasonsHandler(deps, s.logger)
	s.matches = NewMatchesHandler(deps, s.logger)
	s.standings = NewStandingsHandler(deps, s.logger)
	s.health = NewHealthHandler(deps)
	s.stats = NewStatsHandler(deps)
	return s
}

// Handler builds the router with every route attached.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", HeaderUserID, HeaderIdempotencyKey},
		MaxAge:         300,
	}))

	r.Get("/healthz", MetricsMiddleware(s.health.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.stats.HandleStats, "stats"))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	// Writes carry the acting user.
	write := r.With(RequireUser)

	r.Get("/players", MetricsMiddleware(s.players.HandleList, "list_players"))
	write.Post("/players", MetricsMiddleware(s.players.HandleCreate, "create_player"))
	r.Get("/seasons", MetricsMiddleware(s.seasons.HandleList, "list_seasons"))
	write.Post("/seasons", MetricsMiddleware(s.seasons.HandleCreate, "create_season"))

	r.Route("/seasons/{seasonID}", func(r chi.Router) {
		write := r.With(RequireUser)

		r.Get("/", MetricsMiddleware(s.seasons.HandleGet, "get_season"))
		write.Post("/close", MetricsMiddleware(s.seasons.HandleClose, "close_season"))

		r.Get("/players", MetricsMiddleware(s.seasons.HandleParticipants, "list_participants"))
		write.Post("/players", MetricsMiddleware(s.seasons.HandleJoin, "join_season"))
		write.Patch("/players/{seasonPlayerID}", MetricsMiddleware(s.seasons.HandleSetDisabled, "update_participant"))
		r.Get("/players/{seasonPlayerID}/achievements", MetricsMiddleware(s.standings.HandleAchievements, "achievements"))
		r.Get("/teams", MetricsMiddleware(s.seasons.HandleTeams, "list_teams"))

		r.Get("/matches", MetricsMiddleware(s.matches.HandleList, "list_matches"))
		write.Post("/matches", MetricsMiddleware(s.matches.HandleCreate, "create_match"))
		write.Delete("/matches/{matchID}", MetricsMiddleware(s.matches.HandleRemove, "remove_match"))
		write.Post("/reconcile", MetricsMiddleware(s.matches.HandleReconcile, "reconcile"))

		r.Get("/standings", MetricsMiddleware(s.standings.HandleTop, "standings"))
		r.Get("/standings/{seasonPlayerID}", MetricsMiddleware(s.standings.HandleRank, "rank"))
	})

	for _, m := range s.mounts {
		r.Handle(m.pattern, m.handler)
	}
	return r
}

type ctxKey struct{}

// RequireUser rejects requests without an X-User-ID header and stores the
// acting user id in the request context.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if user == "" {
			writeError(w, errs.E("api.require_user", errs.ErrValidation, "missing "+HeaderUserID+" header"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, user)))
	})
}

// ActingUser returns the user id stored by RequireUser.
func ActingUser(ctx context.Context) string {
	user, _ := ctx.Value(ctxKey{}).(string)
	return user
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrValidation:
		return http.StatusBadRequest
	case errs.ErrNotFound:
		return http.StatusNotFound
	case errs.ErrForbidden:
		return http.StatusForbidden
	case errs.ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"code", "message"}. Internal causes are not
// echoed to the client.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := errs.Message(err)
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Code: errs.Code(err), Message: msg})
}

// fail logs server-side failures and renders err.
func fail(ctx context.Context, l logger.Logger, w http.ResponseWriter, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		l.Error(ctx, "request failed", logger.Error(err))
	}
	writeError(w, err)
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(r *http.Request, op string, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errs.E(op, errs.ErrValidation, "request body is required")
		}
		return errs.E(op, errs.ErrValidation, "invalid request body: "+err.Error())
	}
	return nil
}
