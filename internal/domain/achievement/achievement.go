// Package achievement awards milestones to season players from their match
// history. It runs after settlement and never touches scores.
package achievement

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/errs"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/logger"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/metrics"
)

// Type names an achievement.
type Type string

const (
	WinStreak5     Type = "WIN_STREAK_5"
	WinStreak10    Type = "WIN_STREAK_10"
	WinStreak15    Type = "WIN_STREAK_15"
	GamesPlayed10  Type = "GAMES_PLAYED_10"
	GamesPlayed50  Type = "GAMES_PLAYED_50"
	GamesPlayed100 Type = "GAMES_PLAYED_100"
	Elo1300        Type = "ELO_1300"
	Elo1400        Type = "ELO_1400"
	Elo1500        Type = "ELO_1500"
)

var (
	streakThresholds = map[int]Type{5: WinStreak5, 10: WinStreak10, 15: WinStreak15}
	gamesThresholds  = map[int]Type{10: GamesPlayed10, 50: GamesPlayed50, 100: GamesPlayed100}
	eloThresholds    = []struct {
		score int
		kind  Type
	}{{1300, Elo1300}, {1400, Elo1400}, {1500, Elo1500}}
)

// Evaluate returns the achievements earned by the newest entry of history.
// history holds one season player's effect rows, newest first, and must end
// at the match being evaluated. Thresholds fire exactly when crossed so the
// same achievement is not awarded twice by later matches.
func Evaluate(mode model.ScoreType, history []model.MatchPlayer) []Type {
	if len(history) == 0 {
		return nil
	}
	var out []Type

	streak := 0
	for _, row := range history {
		if row.Result != model.ResultWin {
			break
		}
		streak++
	}
	if t, ok := streakThresholds[streak]; ok {
		out = append(out, t)
	}

	if t, ok := gamesThresholds[len(history)]; ok {
		out = append(out, t)
	}

	if mode.IsElo() {
		last := history[0]
		for _, th := range eloThresholds {
			if last.ScoreBefore < th.score && last.ScoreAfter >= th.score {
				out = append(out, th.kind)
			}
		}
	}
	return out
}

// EventKind distinguishes settled from removed matches.
type EventKind string

const (
	EventSettled EventKind = "settled"
	EventRemoved EventKind = "removed"
)

// Event is published after a settlement transaction commits.
type Event struct {
	Kind            EventKind       `json:"kind"`
	SeasonID        string          `json:"season_id"`
	MatchID         string          `json:"match_id"`
	Mode            model.ScoreType `json:"mode"`
	SeasonPlayerIDs []string        `json:"season_player_ids"`
	At              time.Time       `json:"at"`
}

// Store persists achievements and exposes the history they derive from.
type Store interface {
	// PlayerHistory returns the effect rows of a season player, newest first.
	PlayerHistory(ctx context.Context, seasonID, seasonPlayerID string) ([]model.MatchPlayer, error)
	// RecordAchievements stores rows atomically with respect to match
	// removal: it fails with a not found error once the match is gone, and
	// removing a match deletes the rows recorded for it.
	RecordAchievements(ctx context.Context, rows []model.Achievement) error
	DeleteMatchAchievements(ctx context.Context, matchID string) (int, error)
	Achievements(ctx context.Context, seasonID, seasonPlayerID string) ([]model.Achievement, error)
}

// Recorder handles settlement events.
type Recorder struct {
	store  Store
	newID  func() string
	logger logger.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(store Store, l logger.Logger) *Recorder {
	if l == nil {
		l = logger.Named("achievement")
	}
	return &Recorder{store: store, newID: uuid.NewString, logger: l}
}

// Handle applies one event. A settled event whose match has already been
// removed is skipped, including when the removal commits while the event is
// being evaluated.
func (r *Recorder) Handle(ctx context.Context, ev Event) error {
	const op = "achievement.handle"
	switch ev.Kind {
	case EventRemoved:
		n, err := r.store.DeleteMatchAchievements(ctx, ev.MatchID)
		if err != nil {
			return errs.Wrap(op, err)
		}
		if n > 0 {
			r.logger.Debug(ctx, "achievements revoked", logger.String("match", ev.MatchID), logger.Int("count", n))
		}
		return nil
	case EventSettled:
	default:
		return errs.E(op, errs.ErrValidation, "unknown event kind "+string(ev.Kind))
	}

	var rows []model.Achievement
	for _, spID := range ev.SeasonPlayerIDs {
		history, err := r.store.PlayerHistory(ctx, ev.SeasonID, spID)
		if err != nil {
			return errs.Wrap(op, err)
		}
		idx := slices.IndexFunc(history, func(row model.MatchPlayer) bool { return row.MatchID == ev.MatchID })
		if idx < 0 {
			continue
		}
		for _, t := range Evaluate(ev.Mode, history[idx:]) {
			rows = append(rows, model.Achievement{
				ID:             r.newID(),
				SeasonID:       ev.SeasonID,
				SeasonPlayerID: spID,
				MatchID:        ev.MatchID,
				Type:           string(t),
				CreatedAt:      ev.At,
			})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	if err := r.store.RecordAchievements(ctx, rows); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			r.logger.Debug(ctx, "match removed before its achievements were recorded", logger.String("match", ev.MatchID))
			return nil
		}
		return errs.Wrap(op, err)
	}
	for _, row := range rows {
		metrics.RecordAchievement(row.Type)
		r.logger.Info(ctx, "achievement unlocked",
			logger.String("season_player", row.SeasonPlayerID),
			logger.String("type", row.Type),
			logger.String("match", row.MatchID),
		)
	}
	return nil
}

// List returns the achievements of a season player.
func (r *Recorder) List(ctx context.Context, seasonID, seasonPlayerID string) ([]model.Achievement, error) {
	out, err := r.store.Achievements(ctx, seasonID, seasonPlayerID)
	return out, errs.Wrap("achievement.list", err)
}
