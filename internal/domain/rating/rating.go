// Package rating computes post-match scores for one side-versus-side
// comparison. The set of strategies is closed: For returns the calculator
// of a season's scoring mode and rejects anything else.
package rating

import (
	"errors"
	"fmt"
	"math"

	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
)

// ErrUnknownMode is returned by For for modes outside the closed set.
var ErrUnknownMode = errors.New("unknown scoring mode")

// Member is one rated entity of a side with its current score.
type Member struct {
	ID    string
	Score int
}

// Side is one half of a comparison.
type Side struct {
	Members []Member
	Final   int
}

// MemberScore is a member's score before and after the match.
type MemberScore struct {
	ID     string
	Before int
	After  int
}

// SideOutcome carries a side's pre-match winning odds, its result and the
// new score of each member in input order.
type SideOutcome struct {
	WinningOdds float64
	Result      model.Result
	Members     []MemberScore
}

// Outcome is the settled comparison.
type Outcome struct {
	A SideOutcome
	B SideOutcome
}

// Calculator settles one comparison. Settle is total over its input.
type Calculator interface {
	Mode() model.ScoreType
	Settle(a, b Side) Outcome
}

// For returns the calculator for mode. kFactor is ignored by points mode.
func For(mode model.ScoreType, kFactor int) (Calculator, error) {
	switch mode {
	case model.ScoreTypeElo, model.ScoreTypeEloIndividualVsTeam:
		return &Elo{K: float64(kFactor), mode: mode}, nil
	case model.ScoreTypePoints:
		return Points{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// ExpectedScore is the logistic ELO expectation of a rating ra against rb.
func ExpectedScore(ra, rb float64) float64 {
	return 1 / (1 + math.Pow(10, (rb-ra)/400))
}

// Mean is the arithmetic mean of the members' scores, 0 for an empty side.
func Mean(members []Member) float64 {
	if len(members) == 0 {
		return 0
	}
	var sum float64
	for _, m := range members {
		sum += float64(m.Score)
	}
	return sum / float64(len(members))
}

// Elo settles with the ELO update new = current + K*(actual-odds).
//
// Every member of a side moves by the side's winning odds, so teammates with
// different scores get the same delta. Each side is rated by its size-weighted
// aggregate, which is the member mean: each member weighs 1/len(side). Rosters
// of equal size are enforced before settlement, so the individual-vs-team mode
// rates exactly like plain ELO and differs only in the mode it reports.
type Elo struct {
	K    float64
	mode model.ScoreType
}

// Mode implements Calculator.
func (e *Elo) Mode() model.ScoreType {
	if e.mode == "" {
		return model.ScoreTypeElo
	}
	return e.mode
}

// Settle implements Calculator.
func (e *Elo) Settle(a, b Side) Outcome {
	ra, rb := Mean(a.Members), Mean(b.Members)
	oa := SideOutcome{WinningOdds: ExpectedScore(ra, rb), Result: model.ResultFor(a.Final, b.Final)}
	ob := SideOutcome{WinningOdds: ExpectedScore(rb, ra), Result: model.ResultFor(b.Final, a.Final)}
	oa.Members = e.apply(a.Members, oa)
	ob.Members = e.apply(b.Members, ob)
	return Outcome{A: oa, B: ob}
}

func (e *Elo) apply(members []Member, side SideOutcome) []MemberScore {
	delta := int(math.Round(e.K * (side.Result.Actual() - side.WinningOdds)))
	out := make([]MemberScore, len(members))
	for i, m := range members {
		out[i] = MemberScore{ID: m.ID, Before: m.Score, After: m.Score + delta}
	}
	return out
}

// Points awards 3 for a win, 1 for a draw and 0 for a loss to every member.
type Points struct{}

const (
	pointsWin  = 3
	pointsDraw = 1
	pointsOdds = 0.5
)

// Mode implements Calculator.
func (Points) Mode() model.ScoreType { return model.ScoreTypePoints }

// Settle implements Calculator.
func (Points) Settle(a, b Side) Outcome {
	oa := SideOutcome{WinningOdds: pointsOdds, Result: model.ResultFor(a.Final, b.Final)}
	ob := SideOutcome{WinningOdds: pointsOdds, Result: model.ResultFor(b.Final, a.Final)}
	oa.Members = award(a.Members, oa.Result)
	ob.Members = award(b.Members, ob.Result)
	return Outcome{A: oa, B: ob}
}

func award(members []Member, r model.Result) []MemberScore {
	var pts int
	switch r {
	case model.ResultWin:
		pts = pointsWin
	case model.ResultDraw:
		pts = pointsDraw
	}
	out := make([]MemberScore, len(members))
	for i, m := range members {
		out[i] = MemberScore{ID: m.ID, Before: m.Score, After: m.Score + pts}
	}
	return out
}
