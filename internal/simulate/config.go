// Package simulate drives a running scorebrawl server with a random season
// of matches and checks the resulting standings against a local replay.
package simulate

import (
	"errors"
	"fmt"
	"time"

	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Config holds the knobs of one simulation run.
type Config struct {
	BaseURL     string        // Base URL of the service
	UserID      string        // Acting user sent on writes
	Players     int           // Players joining the season
	Matches     int           // Matches to settle
	MaxSideSize int           // Largest side of a generated match
	MaxGoals    int           // Largest final score of a side
	ScoreType   string        // Scoring mode of the season
	Seed        uint64        // Seed of the match generator
	Revert      int           // Latest matches to remove after settling
	Timeout     time.Duration // HTTP request timeout
	NoProgress  bool          // Hide the progress bar
	Output      string        // Optional xlsx report path
}

// Validate reports the first unusable field.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	case c.UserID == "":
		return fmt.Errorf("%w: user id is required", ErrInvalidConfig)
	case c.MaxSideSize < 1:
		return fmt.Errorf("%w: max side size must be positive", ErrInvalidConfig)
	case c.Players < 2*c.MaxSideSize:
		return fmt.Errorf("%w: need at least %d players for sides of %d", ErrInvalidConfig, 2*c.MaxSideSize, c.MaxSideSize)
	case c.Matches < 0 || c.Revert < 0 || c.Revert > c.Matches:
		return fmt.Errorf("%w: revert must be between 0 and the match count", ErrInvalidConfig)
	case c.MaxGoals < 0:
		return fmt.Errorf("%w: max goals must not be negative", ErrInvalidConfig)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	if _, err := model.ParseScoreType(c.ScoreType); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Stats holds run statistics.
type Stats struct {
	MatchesSubmitted int
	MatchesReplayed  int
	MatchesReverted  int
	TeamsCreated     int
	Mismatches       int
	MeanScore        float64
	StdDevScore      float64
	MeanAbsDelta     float64
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
