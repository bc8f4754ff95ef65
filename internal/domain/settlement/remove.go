package settlement

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/errs"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/logger"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/metrics"
)

// ErrNotLatest is the kind-less cause of reversals of older matches.
var ErrNotLatest = errors.New("only the last match can be deleted")

// RemoveMatchInput identifies the match to revert.
type RemoveMatchInput struct {
	SeasonID     string
	MatchID      string
	ActingUserID string
}

// RemovalResult describes a committed reversal.
type RemovalResult struct {
	Match model.Match
	// PlayerIDs lists the season players whose live score was restored.
	PlayerIDs []string
	// Players and Teams are the deleted effect rows. ScoreBefore is the
	// restored live score.
	Players []model.MatchPlayer
	Teams   []model.MatchTeam
}

// RemoveMatch reverts the season's most recent match: live scores go back to
// each effect row's ScoreBefore, then the effect rows and the match are
// deleted, children first. Any older match is refused with errs.ErrForbidden.
func (e *Engine) RemoveMatch(ctx context.Context, in RemoveMatchInput) (res RemovalResult, err error) {
	const op = "settlement.remove_match"
	start := time.Now()
	defer func() {
		e.observe(ctx, "remove_match", start, err,
			logger.String("season", in.SeasonID),
			logger.String("match", in.MatchID),
		)
	}()

	switch {
	case strings.TrimSpace(in.SeasonID) == "" || strings.TrimSpace(in.MatchID) == "":
		return RemovalResult{}, errs.E(op, errs.ErrValidation, "season id and match id are required")
	case strings.TrimSpace(in.ActingUserID) == "":
		return RemovalResult{}, errs.E(op, errs.ErrValidation, "acting user is required")
	}

	err = e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := revert(ctx, tx, in)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return RemovalResult{}, errs.Wrap(op, err)
	}

	metrics.RecordMatchReverted()
	e.logger.Info(ctx, "match removed",
		logger.String("season", in.SeasonID),
		logger.String("match", in.MatchID),
		logger.String("by", in.ActingUserID),
		logger.Int("players", len(res.PlayerIDs)),
	)
	return res, nil
}

func revert(ctx context.Context, tx Tx, in RemoveMatchInput) (RemovalResult, error) {
	const op = "settlement.revert"

	if _, err := tx.LockSeason(ctx, in.SeasonID); err != nil {
		return RemovalResult{}, err
	}
	m, err := tx.Match(ctx, in.SeasonID, in.MatchID)
	if err != nil {
		return RemovalResult{}, err
	}
	latest, err := tx.LatestMatch(ctx, in.SeasonID)
	if err != nil {
		return RemovalResult{}, err
	}
	if latest.ID != m.ID {
		return RemovalResult{}, &errs.Error{Op: op, Kind: errs.ErrForbidden, Msg: ErrNotLatest.Error(), Err: ErrNotLatest}
	}

	players, err := tx.MatchPlayers(ctx, m.ID)
	if err != nil {
		return RemovalResult{}, err
	}
	teams, err := tx.MatchTeams(ctx, m.ID)
	if err != nil {
		return RemovalResult{}, err
	}

	ids := make([]string, 0, len(players))
	for _, row := range players {
		if err := tx.UpdateSeasonPlayerScore(ctx, row.SeasonPlayerID, row.ScoreAfter, row.ScoreBefore); err != nil {
			return RemovalResult{}, err
		}
		ids = append(ids, row.SeasonPlayerID)
	}
	for _, row := range teams {
		if err := tx.UpdateSeasonTeamScore(ctx, row.SeasonTeamID, row.ScoreAfter, row.ScoreBefore); err != nil {
			return RemovalResult{}, err
		}
	}

	if err := tx.DeleteMatchPlayers(ctx, m.ID); err != nil {
		return RemovalResult{}, err
	}
	if err := tx.DeleteMatchTeams(ctx, m.ID); err != nil {
		return RemovalResult{}, err
	}
	if err := tx.DeleteMatch(ctx, m.ID); err != nil {
		return RemovalResult{}, err
	}
	return RemovalResult{Match: m, PlayerIDs: ids, Players: players, Teams: teams}, nil
}
