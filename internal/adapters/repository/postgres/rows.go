package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
)

const (
	seasonColumns = `id, name, score_type, initial_score, k_factor, start_date, end_date, closed, created_by, created_at`

	seasonPlayerSelect = `
		SELECT sp.id, sp.season_id, sp.player_id, p.name, sp.score, sp.disabled, sp.created_at
		FROM season_players sp
		JOIN players p ON p.id = sp.player_id`

	seasonTeamSelect = `
		SELECT st.id, st.season_id, st.team_id, t.name, st.score, st.created_at
		FROM season_teams st
		JOIN teams t ON t.id = st.team_id`

	matchColumns = `id, seq, season_id, home_player_ids, away_player_ids, home_score, away_score,
		home_expected, away_expected, created_by, created_at`

	matchPlayerColumns = `id, match_id, season_id, season_player_id, home, score_before, score_after, result, created_at`

	matchTeamColumns = `id, match_id, season_id, season_team_id, home, score_before, score_after, result, created_at`
)

func scanSeason(row pgx.Row) (model.Season, error) {
	var s model.Season
	var scoreType string
	err := row.Scan(&s.ID, &s.Name, &scoreType, &s.InitialScore, &s.KFactor,
		&s.StartDate, &s.EndDate, &s.Closed, &s.CreatedBy, &s.CreatedAt)
	s.ScoreType = model.ScoreType(scoreType)
	return s, err
}

func scanSeasonPlayer(row pgx.Row) (model.SeasonPlayer, error) {
	var sp model.SeasonPlayer
	err := row.Scan(&sp.ID, &sp.SeasonID, &sp.PlayerID, &sp.Name, &sp.Score, &sp.Disabled, &sp.CreatedAt)
	return sp, err
}

func scanSeasonTeam(row pgx.Row) (model.SeasonTeam, error) {
	var st model.SeasonTeam
	err := row.Scan(&st.ID, &st.SeasonID, &st.TeamID, &st.Name, &st.Score, &st.CreatedAt)
	return st, err
}

func scanMatch(row pgx.Row) (model.Match, error) {
	var m model.Match
	err := row.Scan(&m.ID, &m.Seq, &m.SeasonID, &m.HomePlayerIDs, &m.AwayPlayerIDs, &m.HomeScore, &m.AwayScore,
		&m.HomeExpected, &m.AwayExpected, &m.CreatedBy, &m.CreatedAt)
	return m, err
}

func scanMatchPlayer(row pgx.Row) (model.MatchPlayer, error) {
	var mp model.MatchPlayer
	var result string
	err := row.Scan(&mp.ID, &mp.MatchID, &mp.SeasonID, &mp.SeasonPlayerID, &mp.Home,
		&mp.ScoreBefore, &mp.ScoreAfter, &result, &mp.CreatedAt)
	mp.Result = model.Result(result)
	return mp, err
}

func scanMatchTeam(row pgx.Row) (model.MatchTeam, error) {
	var mt model.MatchTeam
	var result string
	err := row.Scan(&mt.ID, &mt.MatchID, &mt.SeasonID, &mt.SeasonTeamID, &mt.Home,
		&mt.ScoreBefore, &mt.ScoreAfter, &result, &mt.CreatedAt)
	mt.Result = model.Result(result)
	return mt, err
}

// collect runs sql and scans every row with scan.
func collect[T any](ctx context.Context, q querier, scan func(pgx.Row) (T, error), sql string, args ...any) ([]T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (T, error) {
		return scan(row)
	})
}

// latestScores maps an owner id to the score_after of its latest effect row.
func latestScores(ctx context.Context, q querier, sql, seasonID string) (map[string]int, error) {
	rows, err := q.Query(ctx, sql, seasonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var id string
		var score int
		if err := rows.Scan(&id, &score); err != nil {
			return nil, err
		}
		out[id] = score
	}
	return out, rows.Err()
}
