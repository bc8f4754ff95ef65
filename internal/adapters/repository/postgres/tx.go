package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/errs"
)

type tx struct {
	q pgx.Tx
}

func (t *tx) season(ctx context.Context, seasonID, lock string) (model.Season, error) {
	defer observe("season", time.Now())
	s, err := scanSeason(t.q.QueryRow(ctx, `SELECT `+seasonColumns+` FROM seasons WHERE id = $1 `+lock, seasonID))
	if err != nil {
		return model.Season{}, mapErr("postgres.season", "season", err)
	}
	return s, nil
}

// Season takes a share lock so removal of the same season waits for us.
func (t *tx) Season(ctx context.Context, seasonID string) (model.Season, error) {
	return t.season(ctx, seasonID, "FOR SHARE")
}

func (t *tx) LockSeason(ctx context.Context, seasonID string) (model.Season, error) {
	return t.season(ctx, seasonID, "FOR UPDATE")
}

func (t *tx) SeasonPlayers(ctx context.Context, seasonID string, ids []string) ([]model.SeasonPlayer, error) {
	defer observe("season_players", time.Now())
	out, err := collect(ctx, t.q, scanSeasonPlayer,
		seasonPlayerSelect+` WHERE sp.season_id = $1 AND sp.id = ANY($2) ORDER BY sp.id FOR UPDATE OF sp`,
		seasonID, ids)
	if err != nil {
		return nil, mapErr("postgres.season_players", "season player", err)
	}
	return out, nil
}

// updateScore applies a compare-and-set on a score column.
func (t *tx) updateScore(ctx context.Context, op, table, what, id string, from, to int) error {
	defer observe("update_score", time.Now())
	tag, err := t.q.Exec(ctx, `UPDATE `+table+` SET score = $3 WHERE id = $1 AND score = $2`, id, from, to)
	if err != nil {
		return mapErr(op, what, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := t.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists); err != nil {
		return mapErr(op, what, err)
	}
	if !exists {
		return notFound(op, what)
	}
	return errs.E(op, errs.ErrConflict, what+" score changed concurrently")
}

func (t *tx) UpdateSeasonPlayerScore(ctx context.Context, seasonPlayerID string, from, to int) error {
	return t.updateScore(ctx, "postgres.update_season_player_score", "season_players", "season player", seasonPlayerID, from, to)
}

func (t *tx) UpdateSeasonTeamScore(ctx context.Context, seasonTeamID string, from, to int) error {
	return t.updateScore(ctx, "postgres.update_season_team_score", "season_teams", "season team", seasonTeamID, from, to)
}

func (t *tx) TeamBySignature(ctx context.Context, signature string) (model.Team, error) {
	defer observe("team_by_signature", time.Now())
	var team model.Team
	err := t.q.QueryRow(ctx,
		`SELECT id, name, signature, player_ids, created_at FROM teams WHERE signature = $1`, signature,
	).Scan(&team.ID, &team.Name, &team.Signature, &team.PlayerIDs, &team.CreatedAt)
	if err != nil {
		return model.Team{}, mapErr("postgres.team_by_signature", "team", err)
	}
	return team, nil
}

// CreateTeam never aborts the transaction on a duplicate signature; the
// duplicate is reported as a conflict instead.
func (t *tx) CreateTeam(ctx context.Context, team model.Team) error {
	const op = "postgres.create_team"
	defer observe("create_team", time.Now())
	tag, err := t.q.Exec(ctx, `
		INSERT INTO teams (id, name, signature, player_ids, created_at)
		VALUES (@id, @name, @signature, @player_ids, @created_at)
		ON CONFLICT (signature) DO NOTHING`,
		pgx.NamedArgs{
			"id":         team.ID,
			"name":       team.Name,
			"signature":  team.Signature,
			"player_ids": team.PlayerIDs,
			"created_at": team.CreatedAt,
		})
	if err != nil {
		return mapErr(op, "team", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.E(op, errs.ErrConflict, "team already exists")
	}
	return nil
}

func (t *tx) SeasonTeam(ctx context.Context, seasonID, teamID string) (model.SeasonTeam, error) {
	defer observe("season_team", time.Now())
	st, err := scanSeasonTeam(t.q.QueryRow(ctx,
		seasonTeamSelect+` WHERE st.season_id = $1 AND st.team_id = $2 FOR UPDATE OF st`, seasonID, teamID))
	if err != nil {
		return model.SeasonTeam{}, mapErr("postgres.season_team", "season team", err)
	}
	return st, nil
}

func (t *tx) CreateSeasonTeam(ctx context.Context, st model.SeasonTeam) error {
	const op = "postgres.create_season_team"
	defer observe("create_season_team", time.Now())
	tag, err := t.q.Exec(ctx, `
		INSERT INTO season_teams (id, season_id, team_id, score, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (season_id, team_id) DO NOTHING`,
		st.ID, st.SeasonID, st.TeamID, st.Score, st.CreatedAt)
	if err != nil {
		return mapErr(op, "season team", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.E(op, errs.ErrConflict, "season team already exists")
	}
	return nil
}

func (t *tx) InsertMatch(ctx context.Context, m *model.Match) error {
	defer observe("insert_match", time.Now())
	err := t.q.QueryRow(ctx, `
		INSERT INTO matches (id, season_id, home_player_ids, away_player_ids, home_score, away_score,
			home_expected, away_expected, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq`,
		m.ID, m.SeasonID, m.HomePlayerIDs, m.AwayPlayerIDs, m.HomeScore, m.AwayScore,
		m.HomeExpected, m.AwayExpected, m.CreatedBy, m.CreatedAt,
	).Scan(&m.Seq)
	if err != nil {
		return mapErr("postgres.insert_match", "match", err)
	}
	return nil
}

func (t *tx) InsertMatchPlayers(ctx context.Context, rows []model.MatchPlayer) error {
	defer observe("insert_match_players", time.Now())
	_, err := t.q.CopyFrom(ctx, pgx.Identifier{"match_players"},
		[]string{"id", "match_id", "season_id", "season_player_id", "home", "score_before", "score_after", "result", "created_at"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			return []any{r.ID, r.MatchID, r.SeasonID, r.SeasonPlayerID, r.Home, r.ScoreBefore, r.ScoreAfter, string(r.Result), r.CreatedAt}, nil
		}))
	if err != nil {
		return mapErr("postgres.insert_match_players", "match player", err)
	}
	return nil
}

func (t *tx) InsertMatchTeams(ctx context.Context, rows []model.MatchTeam) error {
	defer observe("insert_match_teams", time.Now())
	_, err := t.q.CopyFrom(ctx, pgx.Identifier{"match_teams"},
		[]string{"id", "match_id", "season_id", "season_team_id", "home", "score_before", "score_after", "result", "created_at"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			return []any{r.ID, r.MatchID, r.SeasonID, r.SeasonTeamID, r.Home, r.ScoreBefore, r.ScoreAfter, string(r.Result), r.CreatedAt}, nil
		}))
	if err != nil {
		return mapErr("postgres.insert_match_teams", "match team", err)
	}
	return nil
}

func (t *tx) Match(ctx context.Context, seasonID, matchID string) (model.Match, error) {
	defer observe("match", time.Now())
	m, err := scanMatch(t.q.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE id = $1 AND season_id = $2`, matchID, seasonID))
	if err != nil {
		return model.Match{}, mapErr("postgres.match", "match", err)
	}
	return m, nil
}

func (t *tx) LatestMatch(ctx context.Context, seasonID string) (model.Match, error) {
	defer observe("latest_match", time.Now())
	m, err := scanMatch(t.q.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE season_id = $1 ORDER BY seq DESC LIMIT 1`, seasonID))
	if err != nil {
		return model.Match{}, mapErr("postgres.latest_match", "match", err)
	}
	return m, nil
}

func (t *tx) MatchPlayers(ctx context.Context, matchID string) ([]model.MatchPlayer, error) {
	out, err := collect(ctx, t.q, scanMatchPlayer,
		`SELECT `+matchPlayerColumns+` FROM match_players WHERE match_id = $1 ORDER BY home DESC, id`, matchID)
	if err != nil {
		return nil, mapErr("postgres.match_players", "match player", err)
	}
	return out, nil
}

func (t *tx) MatchTeams(ctx context.Context, matchID string) ([]model.MatchTeam, error) {
	out, err := collect(ctx, t.q, scanMatchTeam,
		`SELECT `+matchTeamColumns+` FROM match_teams WHERE match_id = $1 ORDER BY home DESC, id`, matchID)
	if err != nil {
		return nil, mapErr("postgres.match_teams", "match team", err)
	}
	return out, nil
}

func (t *tx) DeleteMatchPlayers(ctx context.Context, matchID string) error {
	if _, err := t.q.Exec(ctx, `DELETE FROM match_players WHERE match_id = $1`, matchID); err != nil {
		return mapErr("postgres.delete_match_players", "match player", err)
	}
	return nil
}

func (t *tx) DeleteMatchTeams(ctx context.Context, matchID string) error {
	if _, err := t.q.Exec(ctx, `DELETE FROM match_teams WHERE match_id = $1`, matchID); err != nil {
		return mapErr("postgres.delete_match_teams", "match team", err)
	}
	return nil
}

// DeleteMatch fails through the foreign keys while effect rows remain.
func (t *tx) DeleteMatch(ctx context.Context, matchID string) error {
	const op = "postgres.delete_match"
	defer observe("delete_match", time.Now())
	tag, err := t.q.Exec(ctx, `DELETE FROM matches WHERE id = $1`, matchID)
	if err != nil {
		return mapErr(op, "match", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(op, "match")
	}
	return nil
}

func (t *tx) SeasonRoster(ctx context.Context, seasonID string) ([]model.SeasonPlayer, error) {
	out, err := listSeasonPlayers(ctx, t.q, seasonID, "FOR UPDATE OF sp")
	if err != nil {
		return nil, mapErr("postgres.season_roster", "season player", err)
	}
	return out, nil
}

func (t *tx) SeasonTeams(ctx context.Context, seasonID string) ([]model.SeasonTeam, error) {
	out, err := listSeasonTeams(ctx, t.q, seasonID, "FOR UPDATE OF st")
	if err != nil {
		return nil, mapErr("postgres.season_teams", "season team", err)
	}
	return out, nil
}

func (t *tx) LatestPlayerScores(ctx context.Context, seasonID string) (map[string]int, error) {
	out, err := latestScores(ctx, t.q, `
		SELECT DISTINCT ON (mp.season_player_id) mp.season_player_id, mp.score_after
		FROM match_players mp
		JOIN matches m ON m.id = mp.match_id
		WHERE m.season_id = $1
		ORDER BY mp.season_player_id, m.seq DESC`, seasonID)
	if err != nil {
		return nil, mapErr("postgres.latest_player_scores", "match player", err)
	}
	return out, nil
}

func (t *tx) LatestTeamScores(ctx context.Context, seasonID string) (map[string]int, error) {
	out, err := latestScores(ctx, t.q, `
		SELECT DISTINCT ON (mt.season_team_id) mt.season_team_id, mt.score_after
		FROM match_teams mt
		JOIN matches m ON m.id = mt.match_id
		WHERE m.season_id = $1
		ORDER BY mt.season_team_id, m.seq DESC`, seasonID)
	if err != nil {
		return nil, mapErr("postgres.latest_team_scores", "match team", err)
	}
	return out, nil
}

func listSeasonPlayers(ctx context.Context, q querier, seasonID, lock string) ([]model.SeasonPlayer, error) {
	return collect(ctx, q, scanSeasonPlayer, seasonPlayerSelect+` WHERE sp.season_id = $1 ORDER BY sp.id `+lock, seasonID)
}

func listSeasonTeams(ctx context.Context, q querier, seasonID, lock string) ([]model.SeasonTeam, error) {
	return collect(ctx, q, scanSeasonTeam, seasonTeamSelect+` WHERE st.season_id = $1 ORDER BY st.id `+lock, seasonID)
}
