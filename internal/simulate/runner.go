package simulate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/logger"
)

// ErrMismatch is returned by Run when served scores differ from the replay.
var ErrMismatch = errors.New("served scores differ from replay")

// maxStandingsRows bounds the standings request to the server's default
// leaderboard limit.
const maxStandingsRows = 1000

// Run seeds a fresh season, settles cfg.Matches random matches, removes the
// latest cfg.Revert of them and checks the standings against the replay.
func Run(ctx context.Context, cfg *Config, out io.Writer) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.Get().Named("simulate")
	stats := &Stats{StartTime: time.Now()}
	client := NewClient(cfg.BaseURL, cfg.UserID, cfg.Timeout)

	log.Info(ctx, "starting simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("scoreType", cfg.ScoreType),
		logger.Int("players", cfg.Players),
		logger.Int("matches", cfg.Matches),
		logger.Int("revert", cfg.Revert),
		logger.Any("seed", cfg.Seed))

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Seed the season
	season, pool, names, err := seed(ctx, client, cfg)
	if err != nil {
		return nil, fmt.Errorf("seeding failed: %w", err)
	}
	log.Info(ctx, "season seeded", logger.String("seasonID", season.ID), logger.Int("participants", len(pool)))

	ledger, err := NewLedger(season, pool)
	if err != nil {
		return nil, err
	}

	// Step 3: Settle matches
	settled, deltas, err := play(ctx, client, cfg, season.ID, pool, ledger, stats, out)
	if err != nil {
		return nil, fmt.Errorf("settlement failed: %w", err)
	}

	// Step 4: Revert the latest matches
	for i := 0; i < cfg.Revert; i++ {
		last := settled[len(settled)-1]
		if err := client.RemoveMatch(ctx, season.ID, last); err != nil {
			return nil, fmt.Errorf("removing match %s: %w", last, err)
		}
		settled = settled[:len(settled)-1]
		ledger.Undo()
		stats.MatchesReverted++
	}

	// Step 5: Verify standings
	rows, err := client.Standings(ctx, season.ID, min(len(pool), maxStandingsRows))
	if err != nil {
		return nil, fmt.Errorf("standings retrieval failed: %w", err)
	}
	mismatches, err := compareStandings(rows, ledger)
	if err != nil {
		return nil, fmt.Errorf("standings verification failed: %w", err)
	}
	for _, m := range mismatches {
		log.Warn(ctx, "score mismatch", logger.String("mismatch", m.String()))
	}
	stats.Mismatches += len(mismatches)
	stats.MatchesReplayed = len(settled)
	summarize(stats, ledger.Scores(), deltas)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	RenderStandings(out, rows, ledger)
	RenderStats(out, stats)

	// Step 6: Optional workbook
	if cfg.Output != "" {
		if err := export(ctx, client, season, rows, names, cfg.Output); err != nil {
			return stats, fmt.Errorf("export failed: %w", err)
		}
		log.Info(ctx, "report written", logger.String("path", cfg.Output))
	}

	if stats.Mismatches > 0 {
		return stats, fmt.Errorf("%w: %d differences", ErrMismatch, stats.Mismatches)
	}
	log.Info(ctx, "simulation completed", logger.Duration("duration", stats.Duration))
	return stats, nil
}

func seed(ctx context.Context, client *Client, cfg *Config) (model.Season, []string, map[string]string, error) {
	tag := uuid.NewString()[:8]
	season, err := client.CreateSeason(ctx, "sim-"+tag, model.ScoreType(cfg.ScoreType))
	if err != nil {
		return model.Season{}, nil, nil, err
	}
	pool := make([]string, 0, cfg.Players)
	names := make(map[string]string, cfg.Players)
	for i := 0; i < cfg.Players; i++ {
		p, err := client.CreatePlayer(ctx, fmt.Sprintf("sim-%s-%03d", tag, i+1))
		if err != nil {
			return model.Season{}, nil, nil, err
		}
		sp, err := client.JoinSeason(ctx, season.ID, p.ID)
		if err != nil {
			return model.Season{}, nil, nil, err
		}
		pool = append(pool, sp.ID)
		names[sp.ID] = p.Name
	}
	return season, pool, names, nil
}

func play(ctx context.Context, client *Client, cfg *Config, seasonID string, pool []string,
	ledger *Ledger, stats *Stats, out io.Writer) ([]string, []float64, error) {
	gen := NewGenerator(cfg.Seed, pool, cfg.MaxSideSize, cfg.MaxGoals)
	bar := progressbar.NewOptions(cfg.Matches,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetVisibility(!cfg.NoProgress),
		progressbar.OptionSetDescription("settling"),
		progressbar.OptionShowCount())

	settled := make([]string, 0, cfg.Matches)
	deltas := make([]float64, 0, cfg.Matches*2)
	for i := 0; i < cfg.Matches; i++ {
		m := gen.Next()
		res, err := client.CreateMatch(ctx, seasonID, m.Key, m)
		if err != nil {
			return nil, nil, fmt.Errorf("match %d: %w", i+1, err)
		}
		effects, err := ledger.Apply(m)
		if err != nil {
			return nil, nil, err
		}
		served := make(map[string]model.MatchPlayer, len(res.Players))
		for _, p := range res.Players {
			served[p.SeasonPlayerID] = p
		}
		for _, e := range effects {
			got, ok := served[e.ID]
			if !ok || got.ScoreAfter != e.After || got.Delta() != e.After-e.Before {
				stats.Mismatches++
				continue
			}
			deltas = append(deltas, math.Abs(float64(got.Delta())))
		}
		settled = append(settled, res.Match.ID)
		stats.MatchesSubmitted++
		stats.TeamsCreated += len(res.NewTeams)
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	if !cfg.NoProgress {
		_, _ = fmt.Fprintln(out)
	}
	return settled, deltas, nil
}

// Export writes the standings and match log of an existing season to path.
func Export(ctx context.Context, client *Client, seasonID, path string, limit int) error {
	season, err := client.Season(ctx, seasonID)
	if err != nil {
		return err
	}
	rows, err := client.Standings(ctx, seasonID, limit)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(rows))
	for _, r := range rows {
		names[r.SeasonPlayerID] = r.Name
	}
	return export(ctx, client, season, rows, names, path)
}

func export(ctx context.Context, client *Client, season model.Season, rows []SeasonStanding, names map[string]string, path string) error {
	matches, err := client.Matches(ctx, season.ID, maxStandingsRows)
	if err != nil {
		return err
	}
	xl, err := WriteWorkbook(season, rows, matches, names)
	if err != nil {
		return err
	}
	defer func() {
		if err := xl.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close workbook", logger.Error(err))
		}
	}()
	return xl.SaveAs(path)
}
