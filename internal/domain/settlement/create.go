package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/rating"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/roster"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/errs"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/logger"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/metrics"
)

// CreateMatchInput is a reported match result. Rosters hold season player ids.
type CreateMatchInput struct {
	SeasonID      string
	HomePlayerIDs []string
	AwayPlayerIDs []string
	HomeScore     int
	AwayScore     int
	ActingUserID  string
}

// MatchResult describes a committed settlement.
type MatchResult struct {
	Match model.Match
	// Mode is the scoring mode the match was settled with.
	Mode model.ScoreType
	// Players holds one effect row per season player, home first.
	Players []model.MatchPlayer
	// Teams holds the two team effect rows when both rosters have more than
	// one player, empty otherwise.
	Teams []model.MatchTeam
	// NewTeams lists teams created by this settlement.
	NewTeams []model.Team
}

// ParticipantIDs returns every season player id touched by the match.
func (r MatchResult) ParticipantIDs() []string { return r.Match.ParticipantIDs() }

// CreateMatch validates a reported result, settles it with the season's
// strategy and persists the match, its effect rows and the new live scores
// in one unit of work.
func (e *Engine) CreateMatch(ctx context.Context, in CreateMatchInput) (res MatchResult, err error) {
	const op = "settlement.create_match"
	start := time.Now()
	defer func() {
		e.observe(ctx, "create_match", start, err, logger.String("season", in.SeasonID))
	}()

	if err := validateInput(in); err != nil {
		return MatchResult{}, errs.Wrap(op, err)
	}

	err = e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := e.settle(ctx, tx, in)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return MatchResult{}, errs.Wrap(op, err)
	}

	metrics.RecordMatchSettled(string(res.Mode))
	for range res.NewTeams {
		metrics.RecordTeamCreated()
	}
	e.logger.Info(ctx, "match settled",
		logger.String("season", in.SeasonID),
		logger.String("match", res.Match.ID),
		logger.Int("home_score", in.HomeScore),
		logger.Int("away_score", in.AwayScore),
		logger.Int("players", len(res.Players)),
		logger.Int("teams", len(res.Teams)),
	)
	return res, nil
}

func validateInput(in CreateMatchInput) error {
	const op = "settlement.validate"
	switch {
	case strings.TrimSpace(in.SeasonID) == "":
		return errs.E(op, errs.ErrValidation, "season id is required")
	case strings.TrimSpace(in.ActingUserID) == "":
		return errs.E(op, errs.ErrValidation, "acting user is required")
	case in.HomeScore < 0 || in.AwayScore < 0:
		return errs.E(op, errs.ErrValidation, "scores must not be negative")
	}
	return nil
}

func (e *Engine) settle(ctx context.Context, tx Tx, in CreateMatchInput) (MatchResult, error) {
	const op = "settlement.settle"

	season, err := tx.Season(ctx, in.SeasonID)
	if err != nil {
		return MatchResult{}, err
	}
	if err := roster.Validate(in.HomePlayerIDs, in.AwayPlayerIDs); err != nil {
		return MatchResult{}, err
	}
	if season.Closed {
		return MatchResult{}, errs.E(op, errs.ErrValidation, "season is closed")
	}
	calc, err := rating.For(season.ScoreType, season.KFactor)
	if err != nil {
		return MatchResult{}, errs.WrapKind(op, errs.ErrInternal, err)
	}

	home, away, err := resolveRosters(ctx, tx, season.ID, in.HomePlayerIDs, in.AwayPlayerIDs)
	if err != nil {
		return MatchResult{}, err
	}

	now := e.clock.Now().UTC()
	players := calc.Settle(playerSide(home, in.HomeScore), playerSide(away, in.AwayScore))

	m := model.Match{
		ID:            e.newID(),
		SeasonID:      season.ID,
		HomePlayerIDs: append([]string(nil), in.HomePlayerIDs...),
		AwayPlayerIDs: append([]string(nil), in.AwayPlayerIDs...),
		HomeScore:     in.HomeScore,
		AwayScore:     in.AwayScore,
		HomeExpected:  players.A.WinningOdds,
		AwayExpected:  players.B.WinningOdds,
		CreatedBy:     in.ActingUserID,
		CreatedAt:     now,
	}
	res := MatchResult{Mode: season.ScoreType}
	res.Players = append(e.playerRows(m, players.A, true), e.playerRows(m, players.B, false)...)

	if roster.NeedsTeams(len(home), len(away)) {
		homeTeam, awayTeam, created, err := e.resolveTeams(ctx, tx, season, home, away, now)
		if err != nil {
			return MatchResult{}, err
		}
		res.NewTeams = created

		teams := calc.Settle(
			rating.Side{Members: []rating.Member{{ID: homeTeam.ID, Score: homeTeam.Score}}, Final: in.HomeScore},
			rating.Side{Members: []rating.Member{{ID: awayTeam.ID, Score: awayTeam.Score}}, Final: in.AwayScore},
		)
		res.Teams = []model.MatchTeam{
			e.teamRow(m, teams.A, true),
			e.teamRow(m, teams.B, false),
		}
	}

	if err := tx.InsertMatch(ctx, &m); err != nil {
		return MatchResult{}, err
	}
	res.Match = m
	for i := range res.Players {
		res.Players[i].MatchID = m.ID
	}
	if err := tx.InsertMatchPlayers(ctx, res.Players); err != nil {
		return MatchResult{}, err
	}
	if len(res.Teams) > 0 {
		if err := tx.InsertMatchTeams(ctx, res.Teams); err != nil {
			return MatchResult{}, err
		}
	}
	for _, row := range res.Players {
		if err := tx.UpdateSeasonPlayerScore(ctx, row.SeasonPlayerID, row.ScoreBefore, row.ScoreAfter); err != nil {
			return MatchResult{}, err
		}
	}
	for _, row := range res.Teams {
		if err := tx.UpdateSeasonTeamScore(ctx, row.SeasonTeamID, row.ScoreBefore, row.ScoreAfter); err != nil {
			return MatchResult{}, err
		}
	}
	return res, nil
}

// resolveRosters maps both rosters to active participants of the season,
// keeping roster order. Both rosters are locked in one call so the store
// takes every participant lock in a single id-ordered pass.
func resolveRosters(ctx context.Context, tx Tx, seasonID string, home, away []string) ([]model.SeasonPlayer, []model.SeasonPlayer, error) {
	const op = "settlement.resolve_rosters"
	ids := make([]string, 0, len(home)+len(away))
	ids = append(append(ids, home...), away...)
	found, err := tx.SeasonPlayers(ctx, seasonID, ids)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[string]model.SeasonPlayer, len(found))
	for _, sp := range found {
		byID[sp.ID] = sp
	}
	pick := func(roster []string) ([]model.SeasonPlayer, error) {
		out := make([]model.SeasonPlayer, len(roster))
		for i, id := range roster {
			sp, ok := byID[id]
			if !ok || sp.SeasonID != seasonID || sp.Disabled {
				return nil, errs.E(op, errs.ErrValidation, fmt.Sprintf("player %s is not an active participant of this season", id))
			}
			out[i] = sp
		}
		return out, nil
	}
	homePlayers, err := pick(home)
	if err != nil {
		return nil, nil, err
	}
	awayPlayers, err := pick(away)
	if err != nil {
		return nil, nil, err
	}
	return homePlayers, awayPlayers, nil
}

func playerSide(players []model.SeasonPlayer, final int) rating.Side {
	s := rating.Side{Final: final, Members: make([]rating.Member, len(players))}
	for i, p := range players {
		s.Members[i] = rating.Member{ID: p.ID, Score: p.Score}
	}
	return s
}

func (e *Engine) playerRows(m model.Match, side rating.SideOutcome, home bool) []model.MatchPlayer {
	rows := make([]model.MatchPlayer, len(side.Members))
	for i, ms := range side.Members {
		rows[i] = model.MatchPlayer{
			ID:             e.newID(),
			MatchID:        m.ID,
			SeasonID:       m.SeasonID,
			SeasonPlayerID: ms.ID,
			Home:           home,
			ScoreBefore:    ms.Before,
			ScoreAfter:     ms.After,
			Result:         side.Result,
			CreatedAt:      m.CreatedAt,
		}
	}
	return rows
}

func (e *Engine) teamRow(m model.Match, side rating.SideOutcome, home bool) model.MatchTeam {
	ms := side.Members[0]
	return model.MatchTeam{
		ID:           e.newID(),
		MatchID:      m.ID,
		SeasonID:     m.SeasonID,
		SeasonTeamID: ms.ID,
		Home:         home,
		ScoreBefore:  ms.Before,
		ScoreAfter:   ms.After,
		Result:       side.Result,
		CreatedAt:    m.CreatedAt,
	}
}

// resolveTeams resolves both sides' teams in signature order, so two
// settlements creating the same pair of teams insert them in the same order.
func (e *Engine) resolveTeams(ctx context.Context, tx Tx, season model.Season, home, away []model.SeasonPlayer, now time.Time) (model.SeasonTeam, model.SeasonTeam, []model.Team, error) {
	first, second := home, away
	swapped := teamSignature(away) < teamSignature(home)
	if swapped {
		first, second = away, home
	}
	a, createdA, err := e.resolveTeam(ctx, tx, season, first, now)
	if err != nil {
		return model.SeasonTeam{}, model.SeasonTeam{}, nil, err
	}
	b, createdB, err := e.resolveTeam(ctx, tx, season, second, now)
	if err != nil {
		return model.SeasonTeam{}, model.SeasonTeam{}, nil, err
	}
	created := append(createdA, createdB...)
	if swapped {
		return b, a, created, nil
	}
	return a, b, created, nil
}

func teamSignature(players []model.SeasonPlayer) string {
	ids := make([]string, len(players))
	for i, p := range players {
		ids[i] = p.PlayerID
	}
	return roster.Signature(ids)
}

// resolveTeam finds the team whose membership is exactly the roster's
// players, creating the team and its season membership when missing.
// A team inserted concurrently by another season's settlement is reused.
func (e *Engine) resolveTeam(ctx context.Context, tx Tx, season model.Season, players []model.SeasonPlayer, now time.Time) (model.SeasonTeam, []model.Team, error) {
	personIDs := make([]string, len(players))
	members := make([]roster.Member, len(players))
	for i, p := range players {
		personIDs[i] = p.PlayerID
		members[i] = roster.Member{ID: p.PlayerID, Name: p.Name}
	}
	sig := roster.Signature(personIDs)

	var created []model.Team
	team, err := tx.TeamBySignature(ctx, sig)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		team = model.Team{
			ID:        e.newID(),
			Name:      roster.TeamName(members),
			Signature: sig,
			PlayerIDs: personIDs,
			CreatedAt: now,
		}
		err := tx.CreateTeam(ctx, team)
		switch {
		case errors.Is(err, errs.ErrConflict):
			if team, err = tx.TeamBySignature(ctx, sig); err != nil {
				return model.SeasonTeam{}, nil, err
			}
		case err != nil:
			return model.SeasonTeam{}, nil, err
		default:
			created = append(created, team)
		}
	case err != nil:
		return model.SeasonTeam{}, nil, err
	}

	st, err := tx.SeasonTeam(ctx, season.ID, team.ID)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		st = model.SeasonTeam{
			ID:        e.newID(),
			SeasonID:  season.ID,
			TeamID:    team.ID,
			Name:      team.Name,
			Score:     season.InitialScore,
			CreatedAt: now,
		}
		if err := tx.CreateSeasonTeam(ctx, st); err != nil {
			return model.SeasonTeam{}, nil, err
		}
	case err != nil:
		return model.SeasonTeam{}, nil, err
	}
	return st, created, nil
}
