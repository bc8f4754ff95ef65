package memory

import (
	"context"
	"sort"

	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/achievement"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/season"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/errs"
)

var (
	_ season.Store      = (*Store)(nil)
	_ achievement.Store = (*Store)(nil)
)

func (s *Store) CreatePlayer(_ context.Context, p model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[p.ID]; ok {
		return errs.E("memory.create_player", errs.ErrConflict, "player already exists")
	}
	s.players[p.ID] = p
	return nil
}

func (s *Store) Player(_ context.Context, id string) (model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return model.Player{}, notFound("memory.player", "player")
	}
	return p, nil
}

func (s *Store) ListPlayers(_ context.Context) ([]model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt) || (out[i].CreatedAt.Equal(out[j].CreatedAt) && out[i].ID < out[j].ID)
	})
	return out, nil
}

func (s *Store) CreateSeason(_ context.Context, season model.Season) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seasons[season.ID]; ok {
		return errs.E("memory.create_season", errs.ErrConflict, "season already exists")
	}
	s.seasons[season.ID] = season
	return nil
}

func (s *Store) Season(_ context.Context, id string) (model.Season, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	season, ok := s.seasons[id]
	if !ok {
		return model.Season{}, notFound("memory.season", "season")
	}
	return season, nil
}

func (s *Store) ListSeasons(_ context.Context) ([]model.Season, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Season, 0, len(s.seasons))
	for _, season := range s.seasons {
		out = append(out, season)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartDate.After(out[j].StartDate) || (out[i].StartDate.Equal(out[j].StartDate) && out[i].ID < out[j].ID)
	})
	return out, nil
}

func (s *Store) SetSeasonClosed(_ context.Context, id string, closed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	season, ok := s.seasons[id]
	if !ok {
		return notFound("memory.set_season_closed", "season")
	}
	season.Closed = closed
	s.seasons[id] = season
	return nil
}

func (s *Store) JoinSeason(_ context.Context, sp model.SeasonPlayer) (model.SeasonPlayer, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.seasonPlayers {
		if existing.SeasonID == sp.SeasonID && existing.PlayerID == sp.PlayerID {
			return existing, false, nil
		}
	}
	s.seasonPlayers[sp.ID] = sp
	return sp, true, nil
}

func (s *Store) SetSeasonPlayerDisabled(_ context.Context, seasonID, seasonPlayerID string, disabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.seasonPlayers[seasonPlayerID]
	if !ok || sp.SeasonID != seasonID {
		return notFound("memory.set_season_player_disabled", "season player")
	}
	sp.Disabled = disabled
	s.seasonPlayers[seasonPlayerID] = sp
	return nil
}

func (s *Store) ListSeasonPlayers(_ context.Context, seasonID string) ([]model.SeasonPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seasonPlayersOf(seasonID), nil
}

func (s *Store) ListSeasonTeams(_ context.Context, seasonID string) ([]model.SeasonTeam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seasonTeamsOf(seasonID), nil
}

func (s *Store) ListMatches(_ context.Context, seasonID string, limit int) ([]model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Match
	for _, m := range s.matches {
		if m.SeasonID == seasonID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PlayerHistory returns the effect rows of a season player, newest first.
func (s *Store) PlayerHistory(_ context.Context, seasonID, seasonPlayerID string) ([]model.MatchPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type seqRow struct {
		seq int64
		row model.MatchPlayer
	}
	var rows []seqRow
	for matchID, effects := range s.matchPlayers {
		m := s.matches[matchID]
		if m.SeasonID != seasonID {
			continue
		}
		for _, row := range effects {
			if row.SeasonPlayerID == seasonPlayerID {
				rows = append(rows, seqRow{seq: m.Seq, row: row})
			}
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	out := make([]model.MatchPlayer, len(rows))
	for i, r := range rows {
		out[i] = r.row
	}
	return out, nil
}

// RecordAchievements stores rows, or none of them when one names a match that
// no longer exists.
func (s *Store) RecordAchievements(_ context.Context, rows []model.Achievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		if _, ok := s.matches[row.MatchID]; !ok {
			return notFound("memory.record_achievements", "match")
		}
	}
	for _, row := range rows {
		s.achievements[row.ID] = row
	}
	return nil
}

func (s *Store) DeleteMatchAchievements(_ context.Context, matchID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, a := range s.achievements {
		if a.MatchID == matchID {
			delete(s.achievements, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) Achievements(_ context.Context, seasonID, seasonPlayerID string) ([]model.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Achievement
	for _, a := range s.achievements {
		if a.SeasonID == seasonID && a.SeasonPlayerID == seasonPlayerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}
