package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/adapters/repository/postgres"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/settlement"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/errs"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/logger"
)

const image = "postgres:16.3-alpine"

var (
	containerOnce sync.Once
	container     *tcpostgres.PostgresContainer
	sharedStore   *postgres.Store
	containerErr  error
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	code := m.Run()
	if sharedStore != nil {
		sharedStore.Close()
	}
	if container != nil {
		_ = container.Terminate(context.Background())
	}
	os.Exit(code)
}

// newStore returns a store backed by a shared throwaway container. The test
// is skipped under -short or when no container runtime is available.
func newStore(t *testing.T) *postgres.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres integration test skipped in short mode")
	}
	containerOnce.Do(func() {
		ctx := context.Background()
		container, containerErr = tcpostgres.Run(ctx, image,
			tcpostgres.WithDatabase("scorebrawl"),
			tcpostgres.WithUsername("scorebrawl"),
			tcpostgres.WithPassword("secret"),
			tcpostgres.WithInitScripts("schema.sql"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if containerErr != nil {
			return
		}
		// explicitly set sslmode=disable because the container is not configured to use TLS
		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			containerErr = err
			return
		}
		sharedStore, containerErr = postgres.New(ctx, dsn, postgres.WithLogger(logger.Nop()))
	})
	if containerErr != nil {
		t.Skipf("postgres container unavailable: %v", containerErr)
	}
	return sharedStore
}

type seeded struct {
	season  model.Season
	players []string
}

func seed(ctx context.Context, s *postgres.Store, st model.ScoreType, names ...string) seeded {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	season := model.Season{
		ID: uuid.NewString(), Name: "Spring", ScoreType: st, InitialScore: 1200, KFactor: 32,
		StartDate: now, CreatedBy: "admin", CreatedAt: now,
	}
	So(s.CreateSeason(ctx, season), ShouldBeNil)

	out := seeded{season: season}
	for _, name := range names {
		p := model.Player{ID: uuid.NewString(), Name: name, CreatedAt: now}
		So(s.CreatePlayer(ctx, p), ShouldBeNil)
		sp, created, err := s.JoinSeason(ctx, model.SeasonPlayer{
			ID: uuid.NewString(), SeasonID: season.ID, PlayerID: p.ID, Score: season.InitialScore, CreatedAt: now,
		})
		So(err, ShouldBeNil)
		So(created, ShouldBeTrue)
		So(sp.Name, ShouldEqual, name)
		out.players = append(out.players, sp.ID)
	}
	return out
}

func scoreOf(ctx context.Context, s *postgres.Store, seasonID, id string) int {
	sps, err := s.ListSeasonPlayers(ctx, seasonID)
	So(err, ShouldBeNil)
	for _, sp := range sps {
		if sp.ID == id {
			return sp.Score
		}
	}
	return -1
}

func TestSettlementOnPostgres(t *testing.T) {
	store := newStore(t)

	Convey("Given a postgres store and an elo season with four players", t, func() {
		ctx := context.Background()
		engine := settlement.NewEngine(store, settlement.WithLogger(logger.Nop()))
		fx := seed(ctx, store, model.ScoreTypeElo, "Ann", "Bob", "Cid", "Dee")

		Convey("When a 2v2 match is settled", func() {
			res, err := engine.CreateMatch(ctx, settlement.CreateMatchInput{
				SeasonID:      fx.season.ID,
				HomePlayerIDs: fx.players[:2],
				AwayPlayerIDs: fx.players[2:],
				HomeScore:     3,
				AwayScore:     1,
				ActingUserID:  "admin",
			})

			Convey("Then scores, teams and effect rows are committed together", func() {
				So(err, ShouldBeNil)
				So(res.Match.Seq, ShouldBeGreaterThan, 0)
				So(res.NewTeams, ShouldHaveLength, 2)
				So(scoreOf(ctx, store, fx.season.ID, fx.players[0]), ShouldEqual, 1216)
				So(scoreOf(ctx, store, fx.season.ID, fx.players[2]), ShouldEqual, 1184)

				teams, err := store.ListSeasonTeams(ctx, fx.season.ID)
				So(err, ShouldBeNil)
				So(teams, ShouldHaveLength, 2)

				history, err := store.PlayerHistory(ctx, fx.season.ID, fx.players[0])
				So(err, ShouldBeNil)
				So(history, ShouldHaveLength, 1)
				So(history[0].Result, ShouldEqual, model.ResultWin)
			})

			Convey("Then removing it restores every score", func() {
				So(err, ShouldBeNil)
				_, err := engine.RemoveMatch(ctx, settlement.RemoveMatchInput{
					SeasonID: fx.season.ID, MatchID: res.Match.ID, ActingUserID: "admin",
				})
				So(err, ShouldBeNil)
				for _, id := range fx.players {
					So(scoreOf(ctx, store, fx.season.ID, id), ShouldEqual, 1200)
				}
				matches, err := store.ListMatches(ctx, fx.season.ID, 10)
				So(err, ShouldBeNil)
				So(matches, ShouldBeEmpty)

				rep, err := engine.Reconcile(ctx, fx.season.ID, false)
				So(err, ShouldBeNil)
				So(rep.Drift, ShouldBeEmpty)
			})

			Convey("Then only the latest match can be removed", func() {
				So(err, ShouldBeNil)
				_, err := engine.CreateMatch(ctx, settlement.CreateMatchInput{
					SeasonID:      fx.season.ID,
					HomePlayerIDs: fx.players[:2],
					AwayPlayerIDs: fx.players[2:],
					HomeScore:     0,
					AwayScore:     0,
					ActingUserID:  "admin",
				})
				So(err, ShouldBeNil)

				_, err = engine.RemoveMatch(ctx, settlement.RemoveMatchInput{
					SeasonID: fx.season.ID, MatchID: res.Match.ID, ActingUserID: "admin",
				})
				So(errs.Code(err), ShouldEqual, errs.CodeForbidden)
			})
		})
	})
}

func TestConcurrentSettlementOnPostgres(t *testing.T) {
	store := newStore(t)

	Convey("Given a postgres store and four players in one season", t, func() {
		ctx := context.Background()
		engine := settlement.NewEngine(store, settlement.WithLogger(logger.Nop()))
		fx := seed(ctx, store, model.ScoreTypeElo, "Hal", "Ida", "Jon", "Kim")
		a, b := fx.players[:2], fx.players[2:]

		Convey("When overlapping matches with mirrored sides are settled at once", func() {
			const n = 8
			var wg sync.WaitGroup
			errCh := make(chan error, n)
			for i := 0; i < n; i++ {
				home, away := a, b
				if i%2 == 1 {
					home, away = b, a
				}
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := engine.CreateMatch(ctx, settlement.CreateMatchInput{
						SeasonID:      fx.season.ID,
						HomePlayerIDs: home,
						AwayPlayerIDs: away,
						HomeScore:     2,
						AwayScore:     1,
						ActingUserID:  "admin",
					})
					errCh <- err
				}()
			}
			wg.Wait()
			close(errCh)

			Convey("Then every settlement commits without conflict", func() {
				for err := range errCh {
					So(err, ShouldBeNil)
				}
				matches, err := store.ListMatches(ctx, fx.season.ID, 2*n)
				So(err, ShouldBeNil)
				So(matches, ShouldHaveLength, n)

				teams, err := store.ListSeasonTeams(ctx, fx.season.ID)
				So(err, ShouldBeNil)
				So(teams, ShouldHaveLength, 2)
			})

			Convey("Then the live scores match the effect rows", func() {
				rep, err := engine.Reconcile(ctx, fx.season.ID, false)
				So(err, ShouldBeNil)
				So(rep.Drift, ShouldBeEmpty)
				history, err := store.PlayerHistory(ctx, fx.season.ID, a[0])
				So(err, ShouldBeNil)
				So(history, ShouldHaveLength, n)
			})
		})
	})
}

func TestWithinTx(t *testing.T) {
	store := newStore(t)

	Convey("Given a postgres store", t, func() {
		ctx := context.Background()
		fx := seed(ctx, store, model.ScoreTypePoints, "Eve")

		Convey("When the transaction function fails", func() {
			boom := errors.New("boom")
			err := store.WithinTx(ctx, func(ctx context.Context, tx settlement.Tx) error {
				So(tx.UpdateSeasonPlayerScore(ctx, fx.players[0], 1200, 1203), ShouldBeNil)
				return boom
			})

			Convey("Then its writes are rolled back", func() {
				So(errors.Is(err, boom), ShouldBeTrue)
				So(scoreOf(ctx, store, fx.season.ID, fx.players[0]), ShouldEqual, 1200)
			})
		})

		Convey("When a score update expects a stale value", func() {
			err := store.WithinTx(ctx, func(ctx context.Context, tx settlement.Tx) error {
				return tx.UpdateSeasonPlayerScore(ctx, fx.players[0], 1, 2)
			})

			Convey("Then it reports a conflict", func() {
				So(errs.Code(err), ShouldEqual, errs.CodeConflict)
			})
		})

		Convey("When a lookup misses", func() {
			err := store.WithinTx(ctx, func(ctx context.Context, tx settlement.Tx) error {
				_, err := tx.Season(ctx, uuid.NewString())
				return err
			})

			Convey("Then it reports not found", func() {
				So(errs.Code(err), ShouldEqual, errs.CodeNotFound)
			})
		})

		Convey("When the same team signature is created twice", func() {
			sig := uuid.NewString()
			err := store.WithinTx(ctx, func(ctx context.Context, tx settlement.Tx) error {
				team := model.Team{ID: uuid.NewString(), Name: "x", Signature: sig, PlayerIDs: []string{"a", "b"}}
				if err := tx.CreateTeam(ctx, team); err != nil {
					return err
				}
				team.ID = uuid.NewString()
				return tx.CreateTeam(ctx, team)
			})

			Convey("Then the second insert is a conflict and nothing is kept", func() {
				So(errs.Code(err), ShouldEqual, errs.CodeConflict)
				err := store.WithinTx(ctx, func(ctx context.Context, tx settlement.Tx) error {
					_, err := tx.TeamBySignature(ctx, sig)
					return err
				})
				So(errs.Code(err), ShouldEqual, errs.CodeNotFound)
			})
		})
	})
}

func TestAdminQueries(t *testing.T) {
	store := newStore(t)

	Convey("Given a seeded season", t, func() {
		ctx := context.Background()
		fx := seed(ctx, store, model.ScoreTypeElo, "Fay", "Gus")

		Convey("When a player joins twice", func() {
			sps, err := store.ListSeasonPlayers(ctx, fx.season.ID)
			So(err, ShouldBeNil)
			again, created, err := store.JoinSeason(ctx, model.SeasonPlayer{
				ID: uuid.NewString(), SeasonID: fx.season.ID, PlayerID: sps[0].PlayerID, Score: 1200,
			})

			Convey("Then the existing membership is returned", func() {
				So(err, ShouldBeNil)
				So(created, ShouldBeFalse)
				So(again.ID, ShouldEqual, sps[0].ID)
			})
		})

		Convey("When a season is closed and a participant disabled", func() {
			So(store.SetSeasonClosed(ctx, fx.season.ID, true), ShouldBeNil)
			So(store.SetSeasonPlayerDisabled(ctx, fx.season.ID, fx.players[1], true), ShouldBeNil)

			Convey("Then both flags are persisted", func() {
				s, err := store.Season(ctx, fx.season.ID)
				So(err, ShouldBeNil)
				So(s.Closed, ShouldBeTrue)
				sps, err := store.ListSeasonPlayers(ctx, fx.season.ID)
				So(err, ShouldBeNil)
				for _, sp := range sps {
					So(sp.Disabled, ShouldEqual, sp.ID == fx.players[1])
				}
			})
		})

		Convey("When unknown rows are updated", func() {
			Convey("Then not found is reported", func() {
				So(errs.Code(store.SetSeasonClosed(ctx, uuid.NewString(), true)), ShouldEqual, errs.CodeNotFound)
				So(errs.Code(store.SetSeasonPlayerDisabled(ctx, fx.season.ID, uuid.NewString(), true)), ShouldEqual, errs.CodeNotFound)
				_, err := store.Player(ctx, uuid.NewString())
				So(errs.Code(err), ShouldEqual, errs.CodeNotFound)
			})
		})

		Convey("When achievements are recorded and their match removed", func() {
			engine := settlement.NewEngine(store, settlement.WithLogger(logger.Nop()))
			res, err := engine.CreateMatch(ctx, settlement.CreateMatchInput{
				SeasonID: fx.season.ID, HomePlayerIDs: fx.players[:1], AwayPlayerIDs: fx.players[1:],
				HomeScore: 1, AwayScore: 0, ActingUserID: "admin",
			})
			So(err, ShouldBeNil)
			rows := []model.Achievement{
				{ID: uuid.NewString(), SeasonID: fx.season.ID, SeasonPlayerID: fx.players[0], MatchID: res.Match.ID, Type: "GAMES_PLAYED_10", CreatedAt: time.Now().UTC()},
			}
			So(store.RecordAchievements(ctx, rows), ShouldBeNil)
			So(store.RecordAchievements(ctx, rows), ShouldBeNil)

			got, err := store.Achievements(ctx, fx.season.ID, fx.players[0])
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 1)
			So(got[0].Type, ShouldEqual, "GAMES_PLAYED_10")

			_, err = engine.RemoveMatch(ctx, settlement.RemoveMatchInput{
				SeasonID: fx.season.ID, MatchID: res.Match.ID, ActingUserID: "admin",
			})
			So(err, ShouldBeNil)

			Convey("Then the removal deletes them with the match", func() {
				got, err := store.Achievements(ctx, fx.season.ID, fx.players[0])
				So(err, ShouldBeNil)
				So(got, ShouldBeEmpty)
				n, err := store.DeleteMatchAchievements(ctx, res.Match.ID)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})

			Convey("Then recording for the removed match is not found", func() {
				rows[0].ID = uuid.NewString()
				So(errs.Code(store.RecordAchievements(ctx, rows)), ShouldEqual, errs.CodeNotFound)
				got, err := store.Achievements(ctx, fx.season.ID, fx.players[0])
				So(err, ShouldBeNil)
				So(got, ShouldBeEmpty)
			})
		})

		Convey("Then the store answers pings", func() {
			So(store.Ping(ctx), ShouldBeNil)
		})
	})
}
