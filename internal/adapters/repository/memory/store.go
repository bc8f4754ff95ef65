// Package memory is an in-process implementation of every store the
// service needs. Transactions are serialized and rolled back through an
// undo journal.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/roster"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/settlement"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/errs"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/metrics"
)

const storeName = "memory"

// Store keeps every record in maps guarded by one RWMutex. A transaction
// holds the write lock for its whole duration.
type Store struct {
	mu sync.RWMutex

	players       map[string]model.Player
	seasons       map[string]model.Season
	seasonPlayers map[string]model.SeasonPlayer
	teams         map[string]model.Team
	teamsByHash   map[uint64][]string
	seasonTeams   map[string]model.SeasonTeam
	matches       map[string]model.Match
	matchPlayers  map[string][]model.MatchPlayer
	matchTeams    map[string][]model.MatchTeam
	achievements  map[string]model.Achievement
	seq           int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		players:       make(map[string]model.Player),
		seasons:       make(map[string]model.Season),
		seasonPlayers: make(map[string]model.SeasonPlayer),
		teams:         make(map[string]model.Team),
		teamsByHash:   make(map[uint64][]string),
		seasonTeams:   make(map[string]model.SeasonTeam),
		matches:       make(map[string]model.Match),
		matchPlayers:  make(map[string][]model.MatchPlayer),
		matchTeams:    make(map[string][]model.MatchTeam),
		achievements:  make(map[string]model.Achievement),
	}
}

var _ settlement.Store = (*Store)(nil)

// WithinTx runs fn under the write lock. Every write fn makes is journaled
// and undone when fn fails or ctx is done before commit.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx settlement.Tx) error) (err error) {
	const op = "memory.within_tx"
	start := time.Now()
	defer func() {
		metrics.RecordStoreLatency(storeName, "tx", float64(time.Since(start).Milliseconds()))
	}()

	if err := ctx.Err(); err != nil {
		return errs.WrapKind(op, errs.ErrInternal, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{s: s}
	defer func() {
		if r := recover(); r != nil {
			t.rollback()
			panic(r)
		}
	}()

	if err := fn(ctx, t); err != nil {
		t.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		t.rollback()
		return errs.WrapKind(op, errs.ErrInternal, err)
	}
	return nil
}

type tx struct {
	s    *Store
	undo []func()
}

func (t *tx) journal(fn func()) { t.undo = append(t.undo, fn) }

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func notFound(op, what string) error {
	return errs.E(op, errs.ErrNotFound, what+" not found")
}

func (t *tx) Season(_ context.Context, seasonID string) (model.Season, error) {
	s, ok := t.s.seasons[seasonID]
	if !ok {
		return model.Season{}, notFound("memory.season", "season")
	}
	return s, nil
}

// LockSeason is Season: the transaction already excludes every other writer.
func (t *tx) LockSeason(ctx context.Context, seasonID string) (model.Season, error) {
	return t.Season(ctx, seasonID)
}

func (t *tx) SeasonPlayers(_ context.Context, seasonID string, ids []string) ([]model.SeasonPlayer, error) {
	out := make([]model.SeasonPlayer, 0, len(ids))
	for _, id := range ids {
		if sp, ok := t.s.seasonPlayers[id]; ok && sp.SeasonID == seasonID {
			out = append(out, sp)
		}
	}
	return out, nil
}

func (t *tx) UpdateSeasonPlayerScore(_ context.Context, seasonPlayerID string, from, to int) error {
	const op = "memory.update_season_player_score"
	sp, ok := t.s.seasonPlayers[seasonPlayerID]
	if !ok {
		return notFound(op, "season player")
	}
	if sp.Score != from {
		return errs.E(op, errs.ErrConflict, "season player score changed concurrently")
	}
	prev := sp
	sp.Score = to
	t.s.seasonPlayers[seasonPlayerID] = sp
	t.journal(func() { t.s.seasonPlayers[seasonPlayerID] = prev })
	return nil
}

func (t *tx) TeamBySignature(_ context.Context, signature string) (model.Team, error) {
	for _, id := range t.s.teamsByHash[roster.Hash(signature)] {
		if team := t.s.teams[id]; team.Signature == signature {
			return team, nil
		}
	}
	return model.Team{}, notFound("memory.team_by_signature", "team")
}

func (t *tx) CreateTeam(ctx context.Context, team model.Team) error {
	const op = "memory.create_team"
	if _, err := t.TeamBySignature(ctx, team.Signature); err == nil {
		return errs.E(op, errs.ErrConflict, "team already exists")
	}
	h := roster.Hash(team.Signature)
	prevIdx := t.s.teamsByHash[h]
	t.s.teams[team.ID] = team
	t.s.teamsByHash[h] = append(slices.Clone(prevIdx), team.ID)
	t.journal(func() {
		delete(t.s.teams, team.ID)
		if len(prevIdx) == 0 {
			delete(t.s.teamsByHash, h)
		} else {
			t.s.teamsByHash[h] = prevIdx
		}
	})
	return nil
}

func (t *tx) SeasonTeam(_ context.Context, seasonID, teamID string) (model.SeasonTeam, error) {
	for _, st := range t.s.seasonTeams {
		if st.SeasonID == seasonID && st.TeamID == teamID {
			return st, nil
		}
	}
	return model.SeasonTeam{}, notFound("memory.season_team", "season team")
}

func (t *tx) CreateSeasonTeam(ctx context.Context, st model.SeasonTeam) error {
	if _, err := t.SeasonTeam(ctx, st.SeasonID, st.TeamID); err == nil {
		return errs.E("memory.create_season_team", errs.ErrConflict, "season team already exists")
	}
	t.s.seasonTeams[st.ID] = st
	t.journal(func() { delete(t.s.seasonTeams, st.ID) })
	return nil
}

func (t *tx) UpdateSeasonTeamScore(_ context.Context, seasonTeamID string, from, to int) error {
	const op = "memory.update_season_team_score"
	st, ok := t.s.seasonTeams[seasonTeamID]
	if !ok {
		return notFound(op, "season team")
	}
	if st.Score != from {
		return errs.E(op, errs.ErrConflict, "season team score changed concurrently")
	}
	prev := st
	st.Score = to
	t.s.seasonTeams[seasonTeamID] = st
	t.journal(func() { t.s.seasonTeams[seasonTeamID] = prev })
	return nil
}

func (t *tx) InsertMatch(_ context.Context, m *model.Match) error {
	if _, ok := t.s.matches[m.ID]; ok {
		return errs.E("memory.insert_match", errs.ErrConflict, "match already exists")
	}
	prevSeq := t.s.seq
	t.s.seq++
	m.Seq = t.s.seq
	t.s.matches[m.ID] = *m
	t.journal(func() {
		delete(t.s.matches, m.ID)
		t.s.seq = prevSeq
	})
	return nil
}

func (t *tx) InsertMatchPlayers(_ context.Context, rows []model.MatchPlayer) error {
	for _, row := range rows {
		matchID := row.MatchID
		prev := t.s.matchPlayers[matchID]
		t.s.matchPlayers[matchID] = append(slices.Clone(prev), row)
		t.journal(func() { restore(t.s.matchPlayers, matchID, prev) })
	}
	return nil
}

func (t *tx) InsertMatchTeams(_ context.Context, rows []model.MatchTeam) error {
	for _, row := range rows {
		matchID := row.MatchID
		prev := t.s.matchTeams[matchID]
		t.s.matchTeams[matchID] = append(slices.Clone(prev), row)
		t.journal(func() { restore(t.s.matchTeams, matchID, prev) })
	}
	return nil
}

func restore[T any](m map[string][]T, key string, prev []T) {
	if prev == nil {
		delete(m, key)
		return
	}
	m[key] = prev
}

func (t *tx) Match(_ context.Context, seasonID, matchID string) (model.Match, error) {
	m, ok := t.s.matches[matchID]
	if !ok || m.SeasonID != seasonID {
		return model.Match{}, notFound("memory.match", "match")
	}
	return m, nil
}

func (t *tx) LatestMatch(_ context.Context, seasonID string) (model.Match, error) {
	var latest model.Match
	for _, m := range t.s.matches {
		if m.SeasonID == seasonID && m.Seq > latest.Seq {
			latest = m
		}
	}
	if latest.ID == "" {
		return model.Match{}, notFound("memory.latest_match", "match")
	}
	return latest, nil
}

func (t *tx) MatchPlayers(_ context.Context, matchID string) ([]model.MatchPlayer, error) {
	return slices.Clone(t.s.matchPlayers[matchID]), nil
}

func (t *tx) MatchTeams(_ context.Context, matchID string) ([]model.MatchTeam, error) {
	return slices.Clone(t.s.matchTeams[matchID]), nil
}

func (t *tx) DeleteMatchPlayers(_ context.Context, matchID string) error {
	prev, ok := t.s.matchPlayers[matchID]
	if !ok {
		return nil
	}
	delete(t.s.matchPlayers, matchID)
	t.journal(func() { t.s.matchPlayers[matchID] = prev })
	return nil
}

func (t *tx) DeleteMatchTeams(_ context.Context, matchID string) error {
	prev, ok := t.s.matchTeams[matchID]
	if !ok {
		return nil
	}
	delete(t.s.matchTeams, matchID)
	t.journal(func() { t.s.matchTeams[matchID] = prev })
	return nil
}

// DeleteMatch refuses to orphan effect rows, mirroring the foreign keys of
// the relational schema.
func (t *tx) DeleteMatch(_ context.Context, matchID string) error {
	const op = "memory.delete_match"
	m, ok := t.s.matches[matchID]
	if !ok {
		return notFound(op, "match")
	}
	if len(t.s.matchPlayers[matchID]) > 0 || len(t.s.matchTeams[matchID]) > 0 {
		return errs.E(op, errs.ErrInternal, "match still has effect rows")
	}
	delete(t.s.matches, matchID)
	t.journal(func() { t.s.matches[matchID] = m })
	for id, a := range t.s.achievements {
		if a.MatchID == matchID {
			delete(t.s.achievements, id)
			t.journal(func() { t.s.achievements[id] = a })
		}
	}
	return nil
}

func (t *tx) SeasonRoster(_ context.Context, seasonID string) ([]model.SeasonPlayer, error) {
	return t.s.seasonPlayersOf(seasonID), nil
}

func (t *tx) SeasonTeams(_ context.Context, seasonID string) ([]model.SeasonTeam, error) {
	return t.s.seasonTeamsOf(seasonID), nil
}

func (t *tx) LatestPlayerScores(_ context.Context, seasonID string) (map[string]int, error) {
	out := make(map[string]int)
	seqs := make(map[string]int64)
	for matchID, rows := range t.s.matchPlayers {
		m := t.s.matches[matchID]
		if m.SeasonID != seasonID {
			continue
		}
		for _, row := range rows {
			if m.Seq > seqs[row.SeasonPlayerID] {
				seqs[row.SeasonPlayerID] = m.Seq
				out[row.SeasonPlayerID] = row.ScoreAfter
			}
		}
	}
	return out, nil
}

func (t *tx) LatestTeamScores(_ context.Context, seasonID string) (map[string]int, error) {
	out := make(map[string]int)
	seqs := make(map[string]int64)
	for matchID, rows := range t.s.matchTeams {
		m := t.s.matches[matchID]
		if m.SeasonID != seasonID {
			continue
		}
		for _, row := range rows {
			if m.Seq > seqs[row.SeasonTeamID] {
				seqs[row.SeasonTeamID] = m.Seq
				out[row.SeasonTeamID] = row.ScoreAfter
			}
		}
	}
	return out, nil
}

// seasonPlayersOf must be called with s.mu held.
func (s *Store) seasonPlayersOf(seasonID string) []model.SeasonPlayer {
	var out []model.SeasonPlayer
	for _, sp := range s.seasonPlayers {
		if sp.SeasonID == seasonID {
			out = append(out, sp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// seasonTeamsOf must be called with s.mu held.
func (s *Store) seasonTeamsOf(seasonID string) []model.SeasonTeam {
	var out []model.SeasonTeam
	for _, st := range s.seasonTeams {
		if st.SeasonID == seasonID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
