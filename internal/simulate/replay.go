package simulate

import (
	"fmt"

	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/rating"
)

// Ledger replays matches locally with the season's rating calculator and
// keeps an undo stack so removals can be mirrored.
type Ledger struct {
	calc    rating.Calculator
	scores  map[string]int
	history [][]rating.MemberScore
}

// NewLedger starts every participant at initial.
func NewLedger(season model.Season, participants []string) (*Ledger, error) {
	calc, err := rating.For(season.ScoreType, season.KFactor)
	if err != nil {
		return nil, err
	}
	l := &Ledger{calc: calc, scores: make(map[string]int, len(participants))}
	for _, id := range participants {
		l.scores[id] = season.InitialScore
	}
	return l, nil
}

// Apply settles m against the ledger and returns every member's effect.
func (l *Ledger) Apply(m GeneratedMatch) ([]rating.MemberScore, error) {
	home, err := l.side(m.Home, m.HomeScore)
	if err != nil {
		return nil, err
	}
	away, err := l.side(m.Away, m.AwayScore)
	if err != nil {
		return nil, err
	}
	out := l.calc.Settle(home, away)
	effects := append(append([]rating.MemberScore(nil), out.A.Members...), out.B.Members...)
	for _, e := range effects {
		l.scores[e.ID] = e.After
	}
	l.history = append(l.history, effects)
	return effects, nil
}

// Undo restores the scores before the latest applied match.
func (l *Ledger) Undo() bool {
	if len(l.history) == 0 {
		return false
	}
	last := l.history[len(l.history)-1]
	l.history = l.history[:len(l.history)-1]
	for _, e := range last {
		l.scores[e.ID] = e.Before
	}
	return true
}

// Score returns a participant's replayed score.
func (l *Ledger) Score(id string) (int, bool) {
	s, ok := l.scores[id]
	return s, ok
}

// Scores returns a copy of every replayed score.
func (l *Ledger) Scores() map[string]int {
	out := make(map[string]int, len(l.scores))
	for id, s := range l.scores {
		out[id] = s
	}
	return out
}

func (l *Ledger) side(ids []string, final int) (rating.Side, error) {
	s := rating.Side{Final: final, Members: make([]rating.Member, len(ids))}
	for i, id := range ids {
		score, ok := l.scores[id]
		if !ok {
			return rating.Side{}, fmt.Errorf("unknown participant %q", id)
		}
		s.Members[i] = rating.Member{ID: id, Score: score}
	}
	return s, nil
}
