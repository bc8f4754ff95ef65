package simulate

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mismatch is a participant whose served score differs from the replay.
type Mismatch struct {
	SeasonPlayerID string
	Served         int
	Replayed       int
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: served %d, replayed %d", m.SeasonPlayerID, m.Served, m.Replayed)
}

// compareStandings checks every served row against the ledger and that the
// rows are ordered by score with competition ranks.
func compareStandings(rows []SeasonStanding, l *Ledger) ([]Mismatch, error) {
	var out []Mismatch
	for i, row := range rows {
		want, ok := l.Score(row.SeasonPlayerID)
		if !ok {
			return nil, fmt.Errorf("standings list unknown participant %q", row.SeasonPlayerID)
		}
		if want != row.Score {
			out = append(out, Mismatch{SeasonPlayerID: row.SeasonPlayerID, Served: row.Score, Replayed: want})
		}
		if i == 0 {
			if row.Rank != 1 {
				return nil, fmt.Errorf("first standing has rank %d", row.Rank)
			}
			continue
		}
		prev := rows[i-1]
		switch {
		case row.Score > prev.Score:
			return nil, fmt.Errorf("standings not sorted at position %d", i+1)
		case row.Score == prev.Score && row.Rank != prev.Rank:
			return nil, fmt.Errorf("tied scores ranked %d and %d", prev.Rank, row.Rank)
		case row.Score < prev.Score && row.Rank != i+1:
			return nil, fmt.Errorf("position %d ranked %d", i+1, row.Rank)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeasonPlayerID < out[j].SeasonPlayerID })
	return out, nil
}

// summarize fills the distribution figures of stats from the replayed
// scores and the absolute per-participant deltas of every settled match.
func summarize(stats *Stats, scores map[string]int, deltas []float64) {
	values := make([]float64, 0, len(scores))
	for _, s := range scores {
		values = append(values, float64(s))
	}
	if len(values) > 0 {
		stats.MeanScore, stats.StdDevScore = stat.MeanStdDev(values, nil)
		if math.IsNaN(stats.StdDevScore) {
			stats.StdDevScore = 0
		}
	}
	if len(deltas) > 0 {
		stats.MeanAbsDelta = stat.Mean(deltas, nil)
	}
}
