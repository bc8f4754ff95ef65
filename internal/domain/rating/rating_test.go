package rating_test

import (
	"errors"
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/rating"
)

func side(final int, scores ...int) rating.Side {
	s := rating.Side{Final: final}
	for i, sc := range scores {
		s.Members = append(s.Members, rating.Member{ID: string(rune('a' + i)), Score: sc})
	}
	return s
}

func afters(o rating.SideOutcome) []int {
	out := make([]int, len(o.Members))
	for i, m := range o.Members {
		out[i] = m.After
	}
	return out
}

func TestFor(t *testing.T) {
	Convey("Given the closed set of modes", t, func() {
		for _, mode := range model.ScoreTypes {
			c, err := rating.For(mode, 32)
			So(err, ShouldBeNil)
			So(c.Mode(), ShouldEqual, mode)
		}

		Convey("When asking for an unknown mode", func() {
			_, err := rating.For(model.ScoreType("glicko"), 32)

			Convey("Then ErrUnknownMode is returned", func() {
				So(errors.Is(err, rating.ErrUnknownMode), ShouldBeTrue)
			})
		})
	})
}

func TestExpectedScore(t *testing.T) {
	Convey("Given two ratings", t, func() {
		So(rating.ExpectedScore(1200, 1200), ShouldEqual, 0.5)
		So(rating.ExpectedScore(1400, 1200), ShouldAlmostEqual, 0.7597, 0.0001)
		So(rating.ExpectedScore(1200, 1400)+rating.ExpectedScore(1400, 1200), ShouldAlmostEqual, 1.0, 1e-12)
	})
}

func TestEloSettle(t *testing.T) {
	Convey("Given the ELO calculator with K=32", t, func() {
		c, _ := rating.For(model.ScoreTypeElo, 32)

		Convey("When equal 2v2 sides finish 2-0", func() {
			o := c.Settle(side(2, 1200, 1200), side(0, 1200, 1200))

			Convey("Then the winners gain 16 and the losers drop 16", func() {
				So(o.A.WinningOdds, ShouldEqual, 0.5)
				So(o.B.WinningOdds, ShouldEqual, 0.5)
				So(afters(o.A), ShouldResemble, []int{1216, 1216})
				So(afters(o.B), ShouldResemble, []int{1184, 1184})
				So(o.A.Result, ShouldEqual, model.ResultWin)
				So(o.B.Result, ShouldEqual, model.ResultLoss)
			})
		})

		Convey("When equal sides draw", func() {
			o := c.Settle(side(1, 1200), side(1, 1200))

			Convey("Then nobody moves", func() {
				So(afters(o.A), ShouldResemble, []int{1200})
				So(afters(o.B), ShouldResemble, []int{1200})
				So(o.A.Result, ShouldEqual, model.ResultDraw)
			})
		})

		Convey("When teammates with different scores win together", func() {
			o := c.Settle(side(3, 1300, 1100), side(1, 1200, 1200))

			Convey("Then both teammates move by the side odds", func() {
				So(o.A.WinningOdds, ShouldEqual, 0.5)
				for _, m := range o.A.Members {
					So(m.After-m.Before, ShouldEqual, 16)
				}
				for _, m := range o.B.Members {
					So(m.After-m.Before, ShouldEqual, -16)
				}
			})

			Convey("And the mode is still reported as individual-vs-team", func() {
				So(c.Mode(), ShouldEqual, model.ScoreTypeEloIndividualVsTeam)
			})
		})

		Convey("When rosters have equal size", func() {
			elo, _ := rating.For(model.ScoreTypeElo, 32)
			a, b := side(2, 1250, 1310), side(1, 1180, 1120)

			Convey("Then it matches plain ELO", func() {
				So(c.Settle(a, b), ShouldResemble, elo.Settle(a, b))
			})
		})
	})
}

func TestEloDirection(t *testing.T) {
	Convey("Given random ELO settlements", t, func() {
		rng := rand.New(rand.NewSource(7))
		modes := []model.ScoreType{model.ScoreTypeElo, model.ScoreTypeEloIndividualVsTeam}

		for i := 0; i < 500; i++ {
			c, _ := rating.For(modes[i%2], 10+rng.Intn(40))
			size := 1 + rng.Intn(3)
			a, b := rating.Side{Final: rng.Intn(5)}, rating.Side{Final: rng.Intn(5)}
			for j := 0; j < size; j++ {
				a.Members = append(a.Members, rating.Member{ID: "a", Score: 800 + rng.Intn(800)})
				b.Members = append(b.Members, rating.Member{ID: "b", Score: 800 + rng.Intn(800)})
			}
			o := c.Settle(a, b)

			sum := func(s rating.SideOutcome) int {
				total := 0
				for _, m := range s.Members {
					total += m.After - m.Before
				}
				return total
			}
			switch {
			case a.Final > b.Final:
				So(sum(o.A), ShouldBeGreaterThanOrEqualTo, 0)
				So(sum(o.B), ShouldBeLessThanOrEqualTo, 0)
			case a.Final < b.Final:
				So(sum(o.A), ShouldBeLessThanOrEqualTo, 0)
				So(sum(o.B), ShouldBeGreaterThanOrEqualTo, 0)
			}
		}
	})
}

func TestPointsSettle(t *testing.T) {
	Convey("Given the 3-1-0 calculator", t, func() {
		c, _ := rating.For(model.ScoreTypePoints, 0)

		Convey("When X(5) beats Y(2) 4-1", func() {
			o := c.Settle(rating.Side{Members: []rating.Member{{ID: "x", Score: 5}}, Final: 4},
				rating.Side{Members: []rating.Member{{ID: "y", Score: 2}}, Final: 1})

			Convey("Then X becomes 8 and Y stays 2", func() {
				So(o.A.Members[0].After, ShouldEqual, 8)
				So(o.B.Members[0].After, ShouldEqual, 2)
				So(o.A.WinningOdds, ShouldEqual, 0.5)
				So(o.B.WinningOdds, ShouldEqual, 0.5)
			})
		})

		Convey("When a 3v3 match is drawn", func() {
			o := c.Settle(side(2, 0, 10, 20), side(2, 3, 4, 5))

			Convey("Then every player gains exactly 1", func() {
				So(afters(o.A), ShouldResemble, []int{1, 11, 21})
				So(afters(o.B), ShouldResemble, []int{4, 5, 6})
			})
		})
	})
}
