// Package model contains the domain records passed between layers.
package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownScoreType reports a scoring mode outside the closed set.
var ErrUnknownScoreType = errors.New("unknown score type")

// ScoreType selects how a season settles matches.
type ScoreType string

// Supported scoring modes.
const (
	ScoreTypeElo                 ScoreType = "elo"
	ScoreTypeEloIndividualVsTeam ScoreType = "elo-individual-vs-team"
	ScoreTypePoints              ScoreType = "3-1-0"
)

// ScoreTypes lists every supported mode.
var ScoreTypes = []ScoreType{ScoreTypeElo, ScoreTypeEloIndividualVsTeam, ScoreTypePoints}

// Valid reports whether t is a supported mode.
func (t ScoreType) Valid() bool {
	switch t {
	case ScoreTypeElo, ScoreTypeEloIndividualVsTeam, ScoreTypePoints:
		return true
	}
	return false
}

// IsElo reports whether t belongs to the ELO family.
func (t ScoreType) IsElo() bool {
	return t == ScoreTypeElo || t == ScoreTypeEloIndividualVsTeam
}

// ParseScoreType validates s as a ScoreType.
func ParseScoreType(s string) (ScoreType, error) {
	t := ScoreType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownScoreType, s)
	}
	return t, nil
}

// Result is the categorical outcome of a match for one side.
type Result string

// Match results.
const (
	ResultWin  Result = "W"
	ResultDraw Result = "D"
	ResultLoss Result = "L"
)

// ResultFor compares a side's final score against the opponent's.
func ResultFor(own, other int) Result {
	switch {
	case own > other:
		return ResultWin
	case own < other:
		return ResultLoss
	default:
		return ResultDraw
	}
}

// Actual returns the ELO actual score: 1 for a win, 0.5 for a draw, 0 for a loss.
func (r Result) Actual() float64 {
	switch r {
	case ResultWin:
		return 1
	case ResultDraw:
		return 0.5
	default:
		return 0
	}
}

// Player is a person that can join seasons.
type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Season is a competition window with its scoring configuration.
type Season struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	ScoreType    ScoreType  `json:"score_type"`
	InitialScore int        `json:"initial_score"`
	KFactor      int        `json:"k_factor"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Closed       bool       `json:"closed"`
	CreatedBy    string     `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
}

// SeasonPlayer is a player's membership in one season. Score is the live
// score cache maintained by settlement and reversal only.
type SeasonPlayer struct {
	ID        string    `json:"id"`
	SeasonID  string    `json:"season_id"`
	PlayerID  string    `json:"player_id"`
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	Disabled  bool      `json:"disabled"`
	CreatedAt time.Time `json:"created_at"`
}

// Team is the identity of an exact set of players that played together.
// Signature is the canonical key of PlayerIDs.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Signature string    `json:"signature"`
	PlayerIDs []string  `json:"player_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// SeasonTeam is a team's membership in one season.
type SeasonTeam struct {
	ID        string    `json:"id"`
	SeasonID  string    `json:"season_id"`
	TeamID    string    `json:"team_id"`
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// Match is an immutable settlement record. Rosters hold season player ids.
// Seq orders matches of a season by creation.
type Match struct {
	ID            string    `json:"id"`
	SeasonID      string    `json:"season_id"`
	HomePlayerIDs []string  `json:"home_player_ids"`
	AwayPlayerIDs []string  `json:"away_player_ids"`
	HomeScore     int       `json:"home_score"`
	AwayScore     int       `json:"away_score"`
	HomeExpected  float64   `json:"home_expected"`
	AwayExpected  float64   `json:"away_expected"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	Seq           int64     `json:"seq"`
}

// ParticipantIDs returns home then away season player ids.
func (m Match) ParticipantIDs() []string {
	out := make([]string, 0, len(m.HomePlayerIDs)+len(m.AwayPlayerIDs))
	out = append(out, m.HomePlayerIDs...)
	return append(out, m.AwayPlayerIDs...)
}

// MatchPlayer is the effect row of one season player in one match.
type MatchPlayer struct {
	ID             string    `json:"id"`
	MatchID        string    `json:"match_id"`
	SeasonID       string    `json:"season_id"`
	SeasonPlayerID string    `json:"season_player_id"`
	Home           bool      `json:"home"`
	ScoreBefore    int       `json:"score_before"`
	ScoreAfter     int       `json:"score_after"`
	Result         Result    `json:"result"`
	CreatedAt      time.Time `json:"created_at"`
}

// Delta is the score change applied by the match.
func (e MatchPlayer) Delta() int { return e.ScoreAfter - e.ScoreBefore }

// MatchTeam is the effect row of one season team in one match.
type MatchTeam struct {
	ID           string    `json:"id"`
	MatchID      string    `json:"match_id"`
	SeasonID     string    `json:"season_id"`
	SeasonTeamID string    `json:"season_team_id"`
	Home         bool      `json:"home"`
	ScoreBefore  int       `json:"score_before"`
	ScoreAfter   int       `json:"score_after"`
	Result       Result    `json:"result"`
	CreatedAt    time.Time `json:"created_at"`
}

// Achievement records one occurrence of an achievement type reached by a
// season player in a match.
type Achievement struct {
	ID             string    `json:"id"`
	SeasonID       string    `json:"season_id"`
	SeasonPlayerID string    `json:"season_player_id"`
	MatchID        string    `json:"match_id"`
	Type           string    `json:"type"`
	CreatedAt      time.Time `json:"created_at"`
}

// CurrentScore is the live score implied by the effect history: the
// ScoreAfter of the latest effect row when there is one, the season's
// initial score otherwise.
func CurrentScore(initial, latestAfter int, hasEffect bool) int {
	if hasEffect {
		return latestAfter
	}
	return initial
}
