package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/mock"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/adapters/http/api"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/adapters/http/api/mockapi"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/adapters/standings"
	service "github.com/thor-coding-cowboys/scorebrawl-sub001/internal/app"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/season"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/settlement"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/errs"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/logger"
)

func newHandler(svc *mockapi.Service, opts ...api.Option) http.Handler {
	opts = append([]api.Option{api.WithLogger(logger.Nop())}, opts...)
	return api.NewServer(svc, opts...).Handler()
}

func do(h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
	return body
}

const user = "user-1"

func TestServer_Operational(t *testing.T) {
	Convey("Given a new API server", t, func() {
		svc := &mockapi.Service{}
		h := newHandler(svc)

		Convey("When the store is reachable", func() {
			svc.On("Ping", mock.Anything).Return(nil)
			w := do(h, http.MethodGet, "/healthz", "")

			Convey("Then /healthz reports ok", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
			})
		})

		Convey("When the store is down", func() {
			svc.On("Ping", mock.Anything).Return(errors.New("connection refused"))
			w := do(h, http.MethodGet, "/healthz", "")

			Convey("Then /healthz reports unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When stats are requested", func() {
			svc.On("GetStats").Return(map[string]interface{}{"running": true})
			w := do(h, http.MethodGet, "/stats", "")

			Convey("Then the provider's map is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"running":true`)
			})
		})

		Convey("When metrics are scraped", func() {
			w := do(h, http.MethodGet, "/metrics", "")

			Convey("Then the prometheus handler answers", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When an unknown path is requested", func() {
			w := do(h, http.MethodGet, "/unknown", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When a CORS preflight arrives", func() {
			w := do(h, http.MethodOptions, "/seasons", "",
				"Origin", "https://app.example",
				"Access-Control-Request-Method", http.MethodPost,
				"Access-Control-Request-Headers", "X-User-ID")

			Convey("Then the origin is allowed", func() {
				So(w.Header().Get("Access-Control-Allow-Origin"), ShouldNotBeEmpty)
			})
		})

		Convey("When an extra handler is mounted", func() {
			h := newHandler(svc, api.WithMount("/api-docs", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			})))
			w := do(h, http.MethodGet, "/api-docs", "")

			Convey("Then it is routed", func() {
				So(w.Code, ShouldEqual, http.StatusTeapot)
			})
		})
	})
}

func TestServer_Writes(t *testing.T) {
	Convey("Given a new API server", t, func() {
		svc := &mockapi.Service{}
		h := newHandler(svc)

		Convey("When a write arrives without X-User-ID", func() {
			w := do(h, http.MethodPost, "/players", `{"name":"Ann"}`)

			Convey("Then it is rejected before reaching the service", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["code"], ShouldEqual, errs.CodeValidation)
				svc.AssertNotCalled(t, "CreatePlayer", mock.Anything, mock.Anything)
			})
		})

		Convey("When a player is created", func() {
			svc.On("CreatePlayer", mock.Anything, "Ann").Return(model.Player{ID: "p1", Name: "Ann"}, nil)
			w := do(h, http.MethodPost, "/players", `{"name":"Ann"}`, api.HeaderUserID, user)

			Convey("Then it answers 201 with the player", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(w.Body.String(), ShouldContainSubstring, `"id":"p1"`)
			})
		})

		Convey("When the body has unknown fields", func() {
			w := do(h, http.MethodPost, "/players", `{"nickname":"Ann"}`, api.HeaderUserID, user)

			Convey("Then it is a validation error", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a season is created", func() {
			svc.On("CreateSeason", mock.Anything, mock.MatchedBy(func(in season.CreateSeasonInput) bool {
				return in.Name == "Spring" && in.ScoreType == "elo" && in.KFactor != nil && *in.KFactor == 24 &&
					in.InitialScore == nil && in.ActingUserID == user
			})).Return(model.Season{ID: "s1", Name: "Spring", ScoreType: model.ScoreTypeElo}, nil)
			w := do(h, http.MethodPost, "/seasons", `{"name":"Spring","score_type":"elo","k_factor":24}`, api.HeaderUserID, user)

			Convey("Then the acting user and optional fields are passed through", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				svc.AssertExpectations(t)
			})
		})

		Convey("When a player joins a season", func() {
			svc.On("JoinSeason", mock.Anything, "s1", "p1").Return(model.SeasonPlayer{ID: "sp1"}, true, nil).Once()
			svc.On("JoinSeason", mock.Anything, "s1", "p1").Return(model.SeasonPlayer{ID: "sp1"}, false, nil).Once()

			first := do(h, http.MethodPost, "/seasons/s1/players", `{"player_id":"p1"}`, api.HeaderUserID, user)
			second := do(h, http.MethodPost, "/seasons/s1/players", `{"player_id":"p1"}`, api.HeaderUserID, user)

			Convey("Then the first join creates and the second returns the membership", func() {
				So(first.Code, ShouldEqual, http.StatusCreated)
				So(second.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When a participant is updated without the disabled flag", func() {
			w := do(h, http.MethodPatch, "/seasons/s1/players/sp1", `{}`, api.HeaderUserID, user)

			Convey("Then it is a validation error", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a participant is disabled", func() {
			svc.On("SetParticipantDisabled", mock.Anything, "s1", "sp1", true).Return(nil)
			w := do(h, http.MethodPatch, "/seasons/s1/players/sp1", `{"disabled":true}`, api.HeaderUserID, user)

			Convey("Then it answers 204", func() {
				So(w.Code, ShouldEqual, http.StatusNoContent)
			})
		})
	})
}

func TestServer_Matches(t *testing.T) {
	Convey("Given a new API server", t, func() {
		svc := &mockapi.Service{}
		h := newHandler(svc)
		body := `{"home_player_ids":["a","b"],"away_player_ids":["c","d"],"home_score":3,"away_score":1}`
		want := settlement.CreateMatchInput{
			SeasonID:      "s1",
			HomePlayerIDs: []string{"a", "b"},
			AwayPlayerIDs: []string{"c", "d"},
			HomeScore:     3,
			AwayScore:     1,
			ActingUserID:  user,
		}
		res := settlement.MatchResult{Match: model.Match{ID: "m1", SeasonID: "s1"}, Mode: model.ScoreTypeElo}

		Convey("When a match is reported", func() {
			svc.On("CreateMatch", mock.Anything, "key-1", want).Return(service.MatchOutcome{Result: res}, nil)
			w := do(h, http.MethodPost, "/seasons/s1/matches", body, api.HeaderUserID, user, api.HeaderIdempotencyKey, "key-1")

			Convey("Then it answers 201 with the settled match", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(w.Body.String(), ShouldContainSubstring, `"id":"m1"`)
				So(w.Body.String(), ShouldContainSubstring, `"duplicate":false`)
			})
		})

		Convey("When the same idempotency key is replayed", func() {
			svc.On("CreateMatch", mock.Anything, "key-1", want).Return(service.MatchOutcome{Result: res, Duplicate: true}, nil)
			w := do(h, http.MethodPost, "/seasons/s1/matches", body, api.HeaderUserID, user, api.HeaderIdempotencyKey, "key-1")

			Convey("Then it answers 200 flagged as duplicate", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"duplicate":true`)
			})
		})

		Convey("When a score is missing", func() {
			w := do(h, http.MethodPost, "/seasons/s1/matches", `{"home_player_ids":["a"],"away_player_ids":["b"],"home_score":1}`, api.HeaderUserID, user)

			Convey("Then it is a validation error", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["message"], ShouldContainSubstring, "away_score")
			})
		})

		Convey("When settlement fails with each error kind", func() {
			cases := []struct {
				err    error
				status int
				code   string
			}{
				{errs.E("settlement.create_match", errs.ErrValidation, "rosters must have equal size"), http.StatusBadRequest, errs.CodeValidation},
				{errs.E("settlement.create_match", errs.ErrNotFound, "season not found"), http.StatusNotFound, errs.CodeNotFound},
				{errs.E("service.create_match", errs.ErrConflict, "in progress"), http.StatusConflict, errs.CodeConflict},
				{errs.WrapKind("memory.within_tx", errs.ErrInternal, errors.New("disk on fire")), http.StatusInternalServerError, errs.CodeInternal},
			}
			for _, tc := range cases {
				svc := &mockapi.Service{}
				svc.On("CreateMatch", mock.Anything, "", want).Return(service.MatchOutcome{}, tc.err)
				w := do(newHandler(svc), http.MethodPost, "/seasons/s1/matches", body, api.HeaderUserID, user)

				So(w.Code, ShouldEqual, tc.status)
				got := decodeError(w)
				So(got["code"], ShouldEqual, tc.code)
				if tc.status == http.StatusInternalServerError {
					So(got["message"], ShouldNotContainSubstring, "disk on fire")
				}
			}
		})

		Convey("When an older match is removed", func() {
			svc.On("RemoveMatch", mock.Anything, settlement.RemoveMatchInput{SeasonID: "s1", MatchID: "m0", ActingUserID: user}).
				Return(settlement.RemovalResult{}, errs.E("settlement.remove_match", errs.ErrForbidden, "only the last match can be deleted"))
			w := do(h, http.MethodDelete, "/seasons/s1/matches/m0", "", api.HeaderUserID, user)

			Convey("Then it is forbidden", func() {
				So(w.Code, ShouldEqual, http.StatusForbidden)
				So(decodeError(w)["message"], ShouldEqual, "only the last match can be deleted")
			})
		})

		Convey("When the latest match is removed", func() {
			svc.On("RemoveMatch", mock.Anything, settlement.RemoveMatchInput{SeasonID: "s1", MatchID: "m1", ActingUserID: user}).
				Return(settlement.RemovalResult{Match: model.Match{ID: "m1"}, PlayerIDs: []string{"a", "c"}}, nil)
			w := do(h, http.MethodDelete, "/seasons/s1/matches/m1", "", api.HeaderUserID, user)

			Convey("Then the touched participants are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"season_player_ids":["a","c"]`)
			})
		})

		Convey("When matches are listed without a limit", func() {
			svc.On("ListMatches", mock.Anything, "s1", 50).Return([]model.Match{{ID: "m1"}}, nil)
			w := do(h, http.MethodGet, "/seasons/s1/matches", "")

			Convey("Then the default limit is used", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				svc.AssertExpectations(t)
			})
		})

		Convey("When reconcile is asked to repair", func() {
			svc.On("Reconcile", mock.Anything, "s1", true).Return(settlement.ReconcileReport{SeasonID: "s1", Repaired: true}, nil)
			w := do(h, http.MethodPost, "/seasons/s1/reconcile?repair=true", "", api.HeaderUserID, user)

			Convey("Then the report is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"repaired":true`)
			})
		})

		Convey("When reconcile gets a malformed repair flag", func() {
			w := do(h, http.MethodPost, "/seasons/s1/reconcile?repair=maybe", "", api.HeaderUserID, user)

			Convey("Then it is a validation error", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestServer_Standings(t *testing.T) {
	Convey("Given a new API server", t, func() {
		svc := &mockapi.Service{}
		h := newHandler(svc)

		Convey("When standings are requested with a limit", func() {
			svc.On("Standings", mock.Anything, "s1", 2).Return([]standings.Entry{
				{Rank: 1, SeasonPlayerID: "a", Score: 1216},
				{Rank: 2, SeasonPlayerID: "c", Score: 1184},
			}, nil)
			w := do(h, http.MethodGet, "/seasons/s1/standings?limit=2", "")

			Convey("Then the entries are returned in order", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var got []standings.Entry
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got, ShouldHaveLength, 2)
				So(got[0].SeasonPlayerID, ShouldEqual, "a")
			})
		})

		Convey("When the limit is not a positive integer", func() {
			for _, q := range []string{"0", "-1", "ten"} {
				w := do(h, http.MethodGet, "/seasons/s1/standings?limit="+q, "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
			svc.AssertNotCalled(t, "Standings", mock.Anything, mock.Anything, mock.Anything)
		})

		Convey("When a rank is requested for an unranked player", func() {
			svc.On("Rank", mock.Anything, "s1", "zz").Return(standings.Entry{}, standings.ErrNotFound)
			w := do(h, http.MethodGet, "/seasons/s1/standings/zz", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When a player has no achievements", func() {
			svc.On("Achievements", mock.Anything, "s1", "sp1").Return([]model.Achievement(nil), nil)
			w := do(h, http.MethodGet, "/seasons/s1/players/sp1/achievements", "")

			Convey("Then an empty list is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
			})
		})
	})
}
