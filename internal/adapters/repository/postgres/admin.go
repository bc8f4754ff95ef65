package postgres

import (
	"context"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/achievement"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/season"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/errs"
)

var (
	_ season.Store      = (*Store)(nil)
	_ achievement.Store = (*Store)(nil)
)

func (s *Store) CreatePlayer(ctx context.Context, p model.Player) error {
	defer observe("create_player", time.Now())
	_, err := s.pool.Exec(ctx, `INSERT INTO players (id, name, created_at) VALUES ($1, $2, $3)`, p.ID, p.Name, p.CreatedAt)
	if err != nil {
		return mapErr("postgres.create_player", "player", err)
	}
	return nil
}

func (s *Store) Player(ctx context.Context, id string) (model.Player, error) {
	var p model.Player
	err := s.pool.QueryRow(ctx, `SELECT id, name, created_at FROM players WHERE id = $1`, id).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err != nil {
		return model.Player{}, mapErr("postgres.player", "player", err)
	}
	return p, nil
}

func (s *Store) ListPlayers(ctx context.Context) ([]model.Player, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM players ORDER BY created_at, id`)
	if err != nil {
		return nil, mapErr("postgres.list_players", "player", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Player, error) {
		var p model.Player
		err := row.Scan(&p.ID, &p.Name, &p.CreatedAt)
		return p, err
	})
	if err != nil {
		return nil, mapErr("postgres.list_players", "player", err)
	}
	return out, nil
}

func (s *Store) CreateSeason(ctx context.Context, season model.Season) error {
	defer observe("create_season", time.Now())
	_, err := s.pool.Exec(ctx, `
		INSERT INTO seasons (`+seasonColumns+`)
		VALUES (@id, @name, @score_type, @initial_score, @k_factor, @start_date, @end_date, @closed, @created_by, @created_at)`,
		pgx.NamedArgs{
			"id":            season.ID,
			"name":          season.Name,
			"score_type":    string(season.ScoreType),
			"initial_score": season.InitialScore,
			"k_factor":      season.KFactor,
			"start_date":    season.StartDate,
			"end_date":      season.EndDate,
			"closed":        season.Closed,
			"created_by":    season.CreatedBy,
			"created_at":    season.CreatedAt,
		})
	if err != nil {
		return mapErr("postgres.create_season", "season", err)
	}
	return nil
}

func (s *Store) Season(ctx context.Context, id string) (model.Season, error) {
	season, err := scanSeason(s.pool.QueryRow(ctx, `SELECT `+seasonColumns+` FROM seasons WHERE id = $1`, id))
	if err != nil {
		return model.Season{}, mapErr("postgres.season", "season", err)
	}
	return season, nil
}

func (s *Store) ListSeasons(ctx context.Context) ([]model.Season, error) {
	out, err := collect(ctx, s.pool, scanSeason, `SELECT `+seasonColumns+` FROM seasons ORDER BY start_date DESC, id`)
	if err != nil {
		return nil, mapErr("postgres.list_seasons", "season", err)
	}
	return out, nil
}

// SetSeasonClosed waits for in-flight settlements of the season, which
// hold its row in share mode.
func (s *Store) SetSeasonClosed(ctx context.Context, id string, closed bool) error {
	const op = "postgres.set_season_closed"
	tag, err := s.pool.Exec(ctx, `UPDATE seasons SET closed = $2 WHERE id = $1`, id, closed)
	if err != nil {
		return mapErr(op, "season", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(op, "season")
	}
	return nil
}

func (s *Store) JoinSeason(ctx context.Context, sp model.SeasonPlayer) (model.SeasonPlayer, bool, error) {
	const op = "postgres.join_season"
	defer observe("join_season", time.Now())
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO season_players (id, season_id, player_id, score, disabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (season_id, player_id) DO NOTHING`,
		sp.ID, sp.SeasonID, sp.PlayerID, sp.Score, sp.Disabled, sp.CreatedAt)
	if err != nil {
		return model.SeasonPlayer{}, false, mapErr(op, "season player", err)
	}
	created := tag.RowsAffected() == 1
	out, err := scanSeasonPlayer(s.pool.QueryRow(ctx,
		seasonPlayerSelect+` WHERE sp.season_id = $1 AND sp.player_id = $2`, sp.SeasonID, sp.PlayerID))
	if err != nil {
		return model.SeasonPlayer{}, false, mapErr(op, "season player", err)
	}
	return out, created, nil
}

func (s *Store) SetSeasonPlayerDisabled(ctx context.Context, seasonID, seasonPlayerID string, disabled bool) error {
	const op = "postgres.set_season_player_disabled"
	tag, err := s.pool.Exec(ctx,
		`UPDATE season_players SET disabled = $3 WHERE id = $2 AND season_id = $1`, seasonID, seasonPlayerID, disabled)
	if err != nil {
		return mapErr(op, "season player", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(op, "season player")
	}
	return nil
}

func (s *Store) ListSeasonPlayers(ctx context.Context, seasonID string) ([]model.SeasonPlayer, error) {
	defer observe("list_season_players", time.Now())
	out, err := listSeasonPlayers(ctx, s.pool, seasonID, "")
	if err != nil {
		return nil, mapErr("postgres.list_season_players", "season player", err)
	}
	return out, nil
}

func (s *Store) ListSeasonTeams(ctx context.Context, seasonID string) ([]model.SeasonTeam, error) {
	out, err := listSeasonTeams(ctx, s.pool, seasonID, "")
	if err != nil {
		return nil, mapErr("postgres.list_season_teams", "season team", err)
	}
	return out, nil
}

func (s *Store) ListMatches(ctx context.Context, seasonID string, limit int) ([]model.Match, error) {
	out, err := collect(ctx, s.pool, scanMatch,
		`SELECT `+matchColumns+` FROM matches WHERE season_id = $1 ORDER BY seq DESC LIMIT $2`, seasonID, limit)
	if err != nil {
		return nil, mapErr("postgres.list_matches", "match", err)
	}
	return out, nil
}

func (s *Store) PlayerHistory(ctx context.Context, seasonID, seasonPlayerID string) ([]model.MatchPlayer, error) {
	defer observe("player_history", time.Now())
	out, err := collect(ctx, s.pool, scanMatchPlayer, `
		SELECT mp.id, mp.match_id, mp.season_id, mp.season_player_id, mp.home,
			mp.score_before, mp.score_after, mp.result, mp.created_at
		FROM match_players mp
		JOIN matches m ON m.id = mp.match_id
		WHERE m.season_id = $1 AND mp.season_player_id = $2
		ORDER BY m.seq DESC`, seasonID, seasonPlayerID)
	if err != nil {
		return nil, mapErr("postgres.player_history", "match player", err)
	}
	return out, nil
}

// RecordAchievements stores rows in one transaction after key-share locking
// their matches, so a concurrent match removal either waits and cascades over
// the rows or wins and leaves nothing behind.
func (s *Store) RecordAchievements(ctx context.Context, rows []model.Achievement) error {
	const op = "postgres.record_achievements"
	if len(rows) == 0 {
		return nil
	}
	defer observe("record_achievements", time.Now())
	matchIDs := make([]string, 0, 1)
	for _, a := range rows {
		if !slices.Contains(matchIDs, a.MatchID) {
			matchIDs = append(matchIDs, a.MatchID)
		}
	}
	slices.Sort(matchIDs)

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, id := range matchIDs {
			var locked string
			err := tx.QueryRow(ctx, `SELECT id FROM matches WHERE id = $1 FOR KEY SHARE`, id).Scan(&locked)
			if err != nil {
				return mapErr(op, "match", err)
			}
		}
		batch := &pgx.Batch{}
		for _, a := range rows {
			batch.Queue(`
				INSERT INTO achievements (id, season_id, season_player_id, match_id, type, created_at)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id) DO NOTHING`,
				a.ID, a.SeasonID, a.SeasonPlayerID, a.MatchID, a.Type, a.CreatedAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return mapErr(op, "achievement", err)
		}
		return nil
	})
	if err != nil {
		return errs.Wrap(op, err)
	}
	return nil
}

func (s *Store) DeleteMatchAchievements(ctx context.Context, matchID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM achievements WHERE match_id = $1`, matchID)
	if err != nil {
		return 0, mapErr("postgres.delete_match_achievements", "achievement", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) Achievements(ctx context.Context, seasonID, seasonPlayerID string) ([]model.Achievement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, season_id, season_player_id, match_id, type, created_at
		FROM achievements
		WHERE season_id = $1 AND season_player_id = $2
		ORDER BY created_at, type`, seasonID, seasonPlayerID)
	if err != nil {
		return nil, mapErr("postgres.achievements", "achievement", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.Achievement])
	if err != nil {
		return nil, mapErr("postgres.achievements", "achievement", err)
	}
	return out, nil
}
