package achievement_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/adapters/repository/memory"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/achievement"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/settlement"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/logger"
)

func init() {
	logger.Init()
}

// history builds n effect rows newest first; the newest `wins` rows are wins.
func history(n, wins int) []model.MatchPlayer {
	out := make([]model.MatchPlayer, n)
	for i := range out {
		out[i] = model.MatchPlayer{MatchID: fmt.Sprintf("m%d", n-i), Result: model.ResultLoss, ScoreBefore: 1200, ScoreAfter: 1190}
		if i < wins {
			out[i].Result = model.ResultWin
		}
	}
	return out
}

func TestEvaluate(t *testing.T) {
	Convey("Given a player's match history", t, func() {
		Convey("When the fifth straight win is played", func() {
			So(achievement.Evaluate(model.ScoreTypePoints, history(7, 5)), ShouldResemble, []achievement.Type{achievement.WinStreak5})
		})

		Convey("When the streak has already passed five", func() {
			So(achievement.Evaluate(model.ScoreTypePoints, history(7, 6)), ShouldBeEmpty)
		})

		Convey("When the tenth game is played", func() {
			So(achievement.Evaluate(model.ScoreTypePoints, history(10, 0)), ShouldResemble, []achievement.Type{achievement.GamesPlayed10})
		})

		Convey("When the hundredth game extends a streak to fifteen", func() {
			So(achievement.Evaluate(model.ScoreTypePoints, history(100, 15)), ShouldResemble,
				[]achievement.Type{achievement.WinStreak15, achievement.GamesPlayed100})
		})

		Convey("When an ELO score crosses several thresholds at once", func() {
			h := history(3, 0)
			h[0].ScoreBefore, h[0].ScoreAfter = 1290, 1405
			So(achievement.Evaluate(model.ScoreTypeElo, h), ShouldResemble, []achievement.Type{achievement.Elo1300, achievement.Elo1400})

			Convey("Then points seasons never award ELO achievements", func() {
				So(achievement.Evaluate(model.ScoreTypePoints, h), ShouldBeEmpty)
			})
		})

		Convey("When the score falls back below a threshold", func() {
			h := history(2, 0)
			h[0].ScoreBefore, h[0].ScoreAfter = 1310, 1295
			So(achievement.Evaluate(model.ScoreTypeElo, h), ShouldBeEmpty)
		})

		Convey("When there is no history", func() {
			So(achievement.Evaluate(model.ScoreTypeElo, nil), ShouldBeNil)
		})
	})
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store holding five straight wins", t, func() {
		store := memory.New()
		So(store.CreateSeason(ctx, model.Season{ID: "s1", ScoreType: model.ScoreTypeElo, InitialScore: 1200, KFactor: 32}), ShouldBeNil)
		for _, id := range []string{"a", "b"} {
			_, _, err := store.JoinSeason(ctx, model.SeasonPlayer{ID: id, SeasonID: "s1", PlayerID: "p" + id, Score: 1200})
			So(err, ShouldBeNil)
		}
		So(store.WithinTx(ctx, func(ctx context.Context, tx settlement.Tx) error {
			for i := 1; i <= 5; i++ {
				id := fmt.Sprintf("m%d", i)
				if err := tx.InsertMatch(ctx, &model.Match{ID: id, SeasonID: "s1"}); err != nil {
					return err
				}
				if err := tx.InsertMatchPlayers(ctx, []model.MatchPlayer{
					{ID: id + "a", MatchID: id, SeasonPlayerID: "a", ScoreBefore: 1200 + 20*(i-1), ScoreAfter: 1200 + 20*i, Result: model.ResultWin},
					{ID: id + "b", MatchID: id, SeasonPlayerID: "b", ScoreBefore: 1200 - 20*(i-1), ScoreAfter: 1200 - 20*i, Result: model.ResultLoss},
				}); err != nil {
					return err
				}
			}
			return nil
		}), ShouldBeNil)

		rec := achievement.NewRecorder(store, logger.Nop())
		at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		Convey("When the settlement event of the fifth match is handled", func() {
			err := rec.Handle(ctx, achievement.Event{
				Kind: achievement.EventSettled, SeasonID: "s1", MatchID: "m5",
				Mode: model.ScoreTypeElo, SeasonPlayerIDs: []string{"a", "b"}, At: at,
			})
			So(err, ShouldBeNil)

			Convey("Then the winner gets the streak and crosses 1300", func() {
				got, err := rec.List(ctx, "s1", "a")
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 2)
				types := []string{got[0].Type, got[1].Type}
				So(types, ShouldContain, string(achievement.WinStreak5))
				So(types, ShouldContain, string(achievement.Elo1300))
				So(got[0].MatchID, ShouldEqual, "m5")
			})

			Convey("Then the loser gets nothing", func() {
				got, err := rec.List(ctx, "s1", "b")
				So(err, ShouldBeNil)
				So(got, ShouldBeEmpty)
			})

			Convey("And the match removal event revokes them", func() {
				So(rec.Handle(ctx, achievement.Event{Kind: achievement.EventRemoved, SeasonID: "s1", MatchID: "m5"}), ShouldBeNil)
				got, err := rec.List(ctx, "s1", "a")
				So(err, ShouldBeNil)
				So(got, ShouldBeEmpty)
			})
		})

		Convey("When the event refers to a match that is gone", func() {
			err := rec.Handle(ctx, achievement.Event{Kind: achievement.EventSettled, SeasonID: "s1", MatchID: "m9", Mode: model.ScoreTypeElo, SeasonPlayerIDs: []string{"a"}})
			So(err, ShouldBeNil)
			got, _ := rec.List(ctx, "s1", "a")
			So(got, ShouldBeEmpty)
		})

		Convey("When the match is removed while its event is being evaluated", func() {
			racing := &removingStore{Store: store, matchID: "m5"}
			err := achievement.NewRecorder(racing, logger.Nop()).Handle(ctx, achievement.Event{
				Kind: achievement.EventSettled, SeasonID: "s1", MatchID: "m5",
				Mode: model.ScoreTypeElo, SeasonPlayerIDs: []string{"a", "b"}, At: at,
			})

			Convey("Then the event is skipped and nothing is left behind", func() {
				So(err, ShouldBeNil)
				So(racing.removed, ShouldBeTrue)
				got, err := rec.List(ctx, "s1", "a")
				So(err, ShouldBeNil)
				So(got, ShouldBeEmpty)
			})
		})

		Convey("When a match is removed after its achievements were recorded", func() {
			So(rec.Handle(ctx, achievement.Event{
				Kind: achievement.EventSettled, SeasonID: "s1", MatchID: "m5",
				Mode: model.ScoreTypeElo, SeasonPlayerIDs: []string{"a"}, At: at,
			}), ShouldBeNil)
			So(removeMatch(ctx, store, "m5"), ShouldBeNil)

			Convey("Then the removal takes the achievements with it", func() {
				got, err := rec.List(ctx, "s1", "a")
				So(err, ShouldBeNil)
				So(got, ShouldBeEmpty)
			})
		})

		Convey("When an older match is replayed", func() {
			err := rec.Handle(ctx, achievement.Event{Kind: achievement.EventSettled, SeasonID: "s1", MatchID: "m4", Mode: model.ScoreTypeElo, SeasonPlayerIDs: []string{"a"}})
			So(err, ShouldBeNil)

			Convey("Then it is evaluated against history up to that match", func() {
				got, _ := rec.List(ctx, "s1", "a")
				So(got, ShouldBeEmpty)
			})
		})

		Convey("When the event kind is unknown", func() {
			So(rec.Handle(ctx, achievement.Event{Kind: "bogus"}), ShouldNotBeNil)
		})
	})
}

func removeMatch(ctx context.Context, store *memory.Store, matchID string) error {
	return store.WithinTx(ctx, func(ctx context.Context, tx settlement.Tx) error {
		if err := tx.DeleteMatchPlayers(ctx, matchID); err != nil {
			return err
		}
		return tx.DeleteMatch(ctx, matchID)
	})
}

// removingStore removes a match right after its history was read, the
// interleaving of a settled event with a concurrent removal.
type removingStore struct {
	*memory.Store
	matchID string
	removed bool
}

func (s *removingStore) PlayerHistory(ctx context.Context, seasonID, seasonPlayerID string) ([]model.MatchPlayer, error) {
	history, err := s.Store.PlayerHistory(ctx, seasonID, seasonPlayerID)
	if err != nil || s.removed {
		return history, err
	}
	s.removed = true
	return history, removeMatch(ctx, s.Store, s.matchID)
}
