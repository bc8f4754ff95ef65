package settlement

import (
	"context"
	"time"

	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/errs"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/logger"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/metrics"
)

// Drift is a live score that disagrees with its effect rows.
type Drift struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"` // "player" or "team"
	Cached  int    `json:"cached"`
	Derived int    `json:"derived"`
}

// ReconcileReport summarizes a reconciliation pass.
type ReconcileReport struct {
	SeasonID string  `json:"season_id"`
	Checked  int     `json:"checked"`
	Drift    []Drift `json:"drift"`
	Repaired bool    `json:"repaired"`
}

// Reconcile checks every live score of the season against its derivation:
// the ScoreAfter of the latest effect row, or the season's initial score
// when there is none. With repair set, drifted scores are rewritten in the
// same unit of work.
func (e *Engine) Reconcile(ctx context.Context, seasonID string, repair bool) (rep ReconcileReport, err error) {
	const op = "settlement.reconcile"
	start := time.Now()
	defer func() {
		e.observe(ctx, "reconcile", start, err, logger.String("season", seasonID))
	}()

	err = e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		rep = ReconcileReport{SeasonID: seasonID, Drift: []Drift{}}
		season, err := tx.LockSeason(ctx, seasonID)
		if err != nil {
			return err
		}

		players, err := tx.SeasonRoster(ctx, seasonID)
		if err != nil {
			return err
		}
		latestPlayers, err := tx.LatestPlayerScores(ctx, seasonID)
		if err != nil {
			return err
		}
		for _, sp := range players {
			rep.Checked++
			latest, ok := latestPlayers[sp.ID]
			derived := model.CurrentScore(season.InitialScore, latest, ok)
			if derived == sp.Score {
				continue
			}
			rep.Drift = append(rep.Drift, Drift{ID: sp.ID, Kind: "player", Cached: sp.Score, Derived: derived})
			if repair {
				if err := tx.UpdateSeasonPlayerScore(ctx, sp.ID, sp.Score, derived); err != nil {
					return err
				}
			}
		}

		teams, err := tx.SeasonTeams(ctx, seasonID)
		if err != nil {
			return err
		}
		latestTeams, err := tx.LatestTeamScores(ctx, seasonID)
		if err != nil {
			return err
		}
		for _, st := range teams {
			rep.Checked++
			latest, ok := latestTeams[st.ID]
			derived := model.CurrentScore(season.InitialScore, latest, ok)
			if derived == st.Score {
				continue
			}
			rep.Drift = append(rep.Drift, Drift{ID: st.ID, Kind: "team", Cached: st.Score, Derived: derived})
			if repair {
				if err := tx.UpdateSeasonTeamScore(ctx, st.ID, st.Score, derived); err != nil {
					return err
				}
			}
		}
		rep.Repaired = repair && len(rep.Drift) > 0
		return nil
	})
	if err != nil {
		return ReconcileReport{}, errs.Wrap(op, err)
	}

	if rep.Repaired {
		metrics.RecordReconcileRepairs(len(rep.Drift))
		e.logger.Warn(ctx, "live scores repaired", logger.String("season", seasonID), logger.Int("drifted", len(rep.Drift)))
	}
	return rep, nil
}
