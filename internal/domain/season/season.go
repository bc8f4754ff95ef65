// Package season manages players, seasons and season membership. It never
// writes live scores; those belong to settlement.
package season

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/errs"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/logger"
)

// Store persists the administrative records. Lookups of absent rows fail
// with errs.ErrNotFound.
type Store interface {
	CreatePlayer(ctx context.Context, p model.Player) error
	Player(ctx context.Context, id string) (model.Player, error)
	ListPlayers(ctx context.Context) ([]model.Player, error)

	CreateSeason(ctx context.Context, s model.Season) error
	Season(ctx context.Context, id string) (model.Season, error)
	ListSeasons(ctx context.Context) ([]model.Season, error)
	SetSeasonClosed(ctx context.Context, id string, closed bool) error

	// JoinSeason stores sp unless the player already belongs to the season,
	// in which case the existing membership is returned with created=false.
	JoinSeason(ctx context.Context, sp model.SeasonPlayer) (out model.SeasonPlayer, created bool, err error)
	SetSeasonPlayerDisabled(ctx context.Context, seasonID, seasonPlayerID string, disabled bool) error
	ListSeasonPlayers(ctx context.Context, seasonID string) ([]model.SeasonPlayer, error)
	ListSeasonTeams(ctx context.Context, seasonID string) ([]model.SeasonTeam, error)
	// ListMatches returns up to limit matches of the season, newest first.
	ListMatches(ctx context.Context, seasonID string, limit int) ([]model.Match, error)
}

// Registry implements the administrative operations.
type Registry struct {
	store          Store
	clock          clock.Clock
	newID          func() string
	logger         logger.Logger
	initialElo     int
	defaultKFactor int
}

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithDefaults sets the initial ELO score and K-factor used when a season
// is created without them.
func WithDefaults(initialScore, kFactor int) Option {
	return func(r *Registry) {
		if initialScore >= 0 {
			r.initialElo = initialScore
		}
		if kFactor > 0 {
			r.defaultKFactor = kFactor
		}
	}
}

// WithClock sets the clock stamping created records.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithIDGenerator sets the id generator.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates a Registry over store.
func NewRegistry(store Store, opts ...Option) *Registry {
	r := &Registry{
		store:          store,
		clock:          clock.New(),
		newID:          uuid.NewString,
		initialElo:     1200,
		defaultKFactor: 32,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Named("season")
	}
	return r
}

// CreatePlayer registers a person.
func (r *Registry) CreatePlayer(ctx context.Context, name string) (model.Player, error) {
	const op = "season.create_player"
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Player{}, errs.E(op, errs.ErrValidation, "player name is required")
	}
	p := model.Player{ID: r.newID(), Name: name, CreatedAt: r.clock.Now().UTC()}
	if err := r.store.CreatePlayer(ctx, p); err != nil {
		return model.Player{}, errs.Wrap(op, err)
	}
	return p, nil
}

// CreateSeasonInput describes a new season. Nil numbers take the defaults
// of the scoring mode.
type CreateSeasonInput struct {
	Name         string
	ScoreType    string
	InitialScore *int
	KFactor      *int
	StartDate    time.Time
	EndDate      *time.Time
	ActingUserID string
}

// CreateSeason validates and stores a season.
func (r *Registry) CreateSeason(ctx context.Context, in CreateSeasonInput) (model.Season, error) {
	const op = "season.create_season"
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Season{}, errs.E(op, errs.ErrValidation, "season name is required")
	}
	st, err := model.ParseScoreType(in.ScoreType)
	if err != nil {
		return model.Season{}, &errs.Error{Op: op, Kind: errs.ErrValidation, Msg: fmt.Sprintf("score type must be one of %v", model.ScoreTypes), Err: err}
	}

	s := model.Season{
		ID:        r.newID(),
		Name:      name,
		ScoreType: st,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		CreatedBy: in.ActingUserID,
		CreatedAt: r.clock.Now().UTC(),
	}
	if s.StartDate.IsZero() {
		s.StartDate = s.CreatedAt
	}
	if s.EndDate != nil && !s.EndDate.After(s.StartDate) {
		return model.Season{}, errs.E(op, errs.ErrValidation, "end date must be after start date")
	}

	if st.IsElo() {
		s.InitialScore, s.KFactor = r.initialElo, r.defaultKFactor
	}
	if in.InitialScore != nil {
		s.InitialScore = *in.InitialScore
	}
	if in.KFactor != nil {
		s.KFactor = *in.KFactor
	}
	switch {
	case s.InitialScore < 0:
		return model.Season{}, errs.E(op, errs.ErrValidation, "initial score must not be negative")
	case st.IsElo() && s.KFactor <= 0:
		return model.Season{}, errs.E(op, errs.ErrValidation, "k-factor must be positive")
	}

	if err := r.store.CreateSeason(ctx, s); err != nil {
		return model.Season{}, errs.Wrap(op, err)
	}
	r.logger.Info(ctx, "season created",
		logger.String("season", s.ID),
		logger.String("score_type", string(s.ScoreType)),
		logger.Int("initial_score", s.InitialScore),
		logger.Int("k_factor", s.KFactor),
	)
	return s, nil
}

// CloseSeason blocks new matches in the season.
func (r *Registry) CloseSeason(ctx context.Context, seasonID string) (model.Season, error) {
	const op = "season.close_season"
	if err := r.store.SetSeasonClosed(ctx, seasonID, true); err != nil {
		return model.Season{}, errs.Wrap(op, err)
	}
	s, err := r.store.Season(ctx, seasonID)
	if err != nil {
		return model.Season{}, errs.Wrap(op, err)
	}
	r.logger.Info(ctx, "season closed", logger.String("season", seasonID))
	return s, nil
}

// JoinSeason makes a player a participant of a season, starting at the
// season's initial score. Joining twice returns the existing membership.
func (r *Registry) JoinSeason(ctx context.Context, seasonID, playerID string) (model.SeasonPlayer, bool, error) {
	const op = "season.join_season"
	s, err := r.store.Season(ctx, seasonID)
	if err != nil {
		return model.SeasonPlayer{}, false, errs.Wrap(op, err)
	}
	if s.Closed {
		return model.SeasonPlayer{}, false, errs.E(op, errs.ErrValidation, "season is closed")
	}
	p, err := r.store.Player(ctx, playerID)
	if err != nil {
		return model.SeasonPlayer{}, false, errs.Wrap(op, err)
	}
	sp, created, err := r.store.JoinSeason(ctx, model.SeasonPlayer{
		ID:        r.newID(),
		SeasonID:  s.ID,
		PlayerID:  p.ID,
		Name:      p.Name,
		Score:     s.InitialScore,
		CreatedAt: r.clock.Now().UTC(),
	})
	if err != nil {
		return model.SeasonPlayer{}, false, errs.Wrap(op, err)
	}
	return sp, created, nil
}

// SetParticipantDisabled toggles whether a season player may appear in new
// matches. The live score is untouched.
func (r *Registry) SetParticipantDisabled(ctx context.Context, seasonID, seasonPlayerID string, disabled bool) error {
	const op = "season.set_participant_disabled"
	return errs.Wrap(op, r.store.SetSeasonPlayerDisabled(ctx, seasonID, seasonPlayerID, disabled))
}

// Season returns one season.
func (r *Registry) Season(ctx context.Context, id string) (model.Season, error) {
	s, err := r.store.Season(ctx, id)
	return s, errs.Wrap("season.get", err)
}

// Seasons lists every season.
func (r *Registry) Seasons(ctx context.Context) ([]model.Season, error) {
	out, err := r.store.ListSeasons(ctx)
	return out, errs.Wrap("season.list", err)
}

// Players lists every player.
func (r *Registry) Players(ctx context.Context) ([]model.Player, error) {
	out, err := r.store.ListPlayers(ctx)
	return out, errs.Wrap("season.list_players", err)
}

// Participants lists the season players of a season.
func (r *Registry) Participants(ctx context.Context, seasonID string) ([]model.SeasonPlayer, error) {
	if _, err := r.store.Season(ctx, seasonID); err != nil {
		return nil, errs.Wrap("season.participants", err)
	}
	out, err := r.store.ListSeasonPlayers(ctx, seasonID)
	return out, errs.Wrap("season.participants", err)
}

// Teams lists the season teams of a season.
func (r *Registry) Teams(ctx context.Context, seasonID string) ([]model.SeasonTeam, error) {
	if _, err := r.store.Season(ctx, seasonID); err != nil {
		return nil, errs.Wrap("season.teams", err)
	}
	out, err := r.store.ListSeasonTeams(ctx, seasonID)
	return out, errs.Wrap("season.teams", err)
}

// Matches lists up to limit matches of a season, newest first.
func (r *Registry) Matches(ctx context.Context, seasonID string, limit int) ([]model.Match, error) {
	const op = "season.matches"
	if limit < 1 {
		return nil, errs.E(op, errs.ErrValidation, "limit must be positive")
	}
	if _, err := r.store.Season(ctx, seasonID); err != nil {
		return nil, errs.Wrap(op, err)
	}
	out, err := r.store.ListMatches(ctx, seasonID, limit)
	return out, errs.Wrap(op, err)
}
