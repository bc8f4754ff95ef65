package settlement

import (
	"context"

	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
)

// Store runs settlement work as atomic, isolated units.
//
// WithinTx commits when fn returns nil and rolls every write back when it
// returns an error or ctx is done. Reads made through tx observe the
// transaction's own writes.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the capability set available inside one unit of work. Lookups of
// absent rows fail with an error of kind errs.ErrNotFound.
type Tx interface {
	// Season loads a season and shares its lock with other settlements.
	Season(ctx context.Context, seasonID string) (model.Season, error)
	// LockSeason loads a season and excludes concurrent settlements of it.
	LockSeason(ctx context.Context, seasonID string) (model.Season, error)

	// SeasonPlayers returns the season players among ids, locked for update
	// in id order. Callers pass every participant they will write in one call
	// so overlapping settlements queue behind each other instead of deadlocking.
	// Ids that are not participants of the season are omitted.
	SeasonPlayers(ctx context.Context, seasonID string, ids []string) ([]model.SeasonPlayer, error)
	// UpdateSeasonPlayerScore sets the live score to `to` only if it still
	// equals `from`, failing with errs.ErrConflict otherwise.
	UpdateSeasonPlayerScore(ctx context.Context, seasonPlayerID string, from, to int) error

	TeamBySignature(ctx context.Context, signature string) (model.Team, error)
	CreateTeam(ctx context.Context, team model.Team) error
	SeasonTeam(ctx context.Context, seasonID, teamID string) (model.SeasonTeam, error)
	CreateSeasonTeam(ctx context.Context, st model.SeasonTeam) error
	// UpdateSeasonTeamScore is the team counterpart of UpdateSeasonPlayerScore.
	UpdateSeasonTeamScore(ctx context.Context, seasonTeamID string, from, to int) error

	// InsertMatch stores m and assigns its Seq.
	InsertMatch(ctx context.Context, m *model.Match) error
	InsertMatchPlayers(ctx context.Context, rows []model.MatchPlayer) error
	InsertMatchTeams(ctx context.Context, rows []model.MatchTeam) error

	Match(ctx context.Context, seasonID, matchID string) (model.Match, error)
	// LatestMatch returns the most recently created match of the season.
	LatestMatch(ctx context.Context, seasonID string) (model.Match, error)
	MatchPlayers(ctx context.Context, matchID string) ([]model.MatchPlayer, error)
	MatchTeams(ctx context.Context, matchID string) ([]model.MatchTeam, error)

	DeleteMatchPlayers(ctx context.Context, matchID string) error
	DeleteMatchTeams(ctx context.Context, matchID string) error
	DeleteMatch(ctx context.Context, matchID string) error

	// SeasonRoster returns every season player of the season.
	SeasonRoster(ctx context.Context, seasonID string) ([]model.SeasonPlayer, error)
	// SeasonTeams returns every season team of the season.
	SeasonTeams(ctx context.Context, seasonID string) ([]model.SeasonTeam, error)
	// LatestPlayerScores maps season player id to the ScoreAfter of its
	// latest effect row in the season.
	LatestPlayerScores(ctx context.Context, seasonID string) (map[string]int, error)
	// LatestTeamScores maps season team id to the ScoreAfter of its latest
	// effect row in the season.
	LatestTeamScores(ctx context.Context, seasonID string) (map[string]int, error)
}
