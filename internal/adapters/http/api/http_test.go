package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/racetier/internal/adapters/http/api"
	"github.com/okian/racetier/internal/adapters/mq/queue"
	"github.com/okian/racetier/internal/adapters/repository"
	"github.com/okian/racetier/internal/domain/model"
	"github.com/okian/racetier/internal/domain/rating"
	"github.com/okian/racetier/internal/domain/types"
)

type mockDeps struct {
	classified  model.Classified
	classifyErr error

	run      model.AuditRun
	auditErr error

	sub       model.Submission
	submitErr error
	gotKey    string
	gotCount  int

	entries []api.Entry
	limit   int
}

func (m *mockDeps) Classify(_ context.Context, r rating.RaceRating) (model.Classified, error) {
	return m.classified, m.classifyErr
}

func (m *mockDeps) Audit(_ context.Context, records []rating.RaceRating) (model.AuditRun, error) {
	m.gotCount = len(records)
	return m.run, m.auditErr
}

func (m *mockDeps) SubmitAudit(_ context.Context, key string, records []rating.RaceRating) (model.Submission, error) {
	m.gotKey = key
	m.gotCount = len(records)
	return m.sub, m.submitErr
}

func (m *mockDeps) AuditRun(_ context.Context, id string) (model.AuditRun, error) {
	if id != m.run.ID {
		return model.AuditRun{}, fmt.Errorf("audit run %s: %w", id, repository.ErrNotFound)
	}
	return m.run, nil
}

func (m *mockDeps) TopN(_ context.Context, n int) ([]api.Entry, error) {
	if n > len(m.entries) {
		return m.entries, nil
	}
	return m.entries[:n], nil
}

func (m *mockDeps) Rank(_ context.Context, raceID string) (api.Entry, error) {
	for _, e := range m.entries {
		if e.RaceID == raceID {
			return e, nil
		}
	}
	return api.Entry{}, fmt.Errorf("race %s: %w", raceID, repository.ErrNotFound)
}

func (m *mockDeps) MaxRatingsLimit() int { return m.limit }

type mockStats struct{}

func (mockStats) GetStats(context.Context) types.Stats {
	return types.Stats{RatedRaces: 2, TierCounts: map[string]int{"T1": 1, "T2": 1}}
}

const corpusBody = `{"records":[
	{"race_id":"alpha","logistics":3,"length":3,"technicality":3,"elevation":3,"climate":3,"altitude":3,"adventure":3,"prestige":3,"race_quality":3,"experience":3,"community":3,"field_depth":3,"value":3,"expenses":3,"overall_score":60,"tier":2}
]}`

func serve(mux *http.ServeMux, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestServer_Routes(t *testing.T) {
	Convey("Given an API server on mock dependencies", t, func() {
		passed := true
		deps := &mockDeps{
			run:   model.AuditRun{ID: "run-1", Status: model.RunDone, Records: 1, Passed: &passed},
			sub:   model.Submission{RunID: "run-2"},
			limit: 2,
			entries: []api.Entry{
				{Rank: 1, RaceID: "beta", OverallScore: 80, Tier: 1, TierLabel: "TIER 1"},
				{Rank: 2, RaceID: "alpha", OverallScore: 60, Tier: 2, TierLabel: "TIER 2"},
			},
		}
		mux := http.NewServeMux()
		api.NewServer(deps, mockStats{}).Register(context.Background(), mux)

		Convey("Then /healthz serves Prometheus metrics", func() {
			w := serve(mux, http.MethodGet, "/healthz", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then /stats serves the service stats", func() {
			w := serve(mux, http.MethodGet, "/stats", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			var got types.Stats
			So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
			So(got.RatedRaces, ShouldEqual, 2)
		})

		Convey("Then POST /audit answers the run with 200", func() {
			w := serve(mux, http.MethodPost, "/audit", corpusBody, nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.gotCount, ShouldEqual, 1)
			So(w.Body.String(), ShouldContainSubstring, `"passed":true`)
		})

		Convey("Then POST /audit rejects bodies without records", func() {
			So(serve(mux, http.MethodPost, "/audit", `{"records":[]}`, nil).Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodPost, "/audit", `not json`, nil).Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodPost, "/audit", `{"records":[{"logistics":3}]}`, nil).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Then GET /audit is not routed", func() {
			So(serve(mux, http.MethodGet, "/audit", "", nil).Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("Then POST /audits accepts with 202 and passes the idempotency key", func() {
			w := serve(mux, http.MethodPost, "/audits", corpusBody, map[string]string{api.IdempotencyHeader: "k-1"})
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(deps.gotKey, ShouldEqual, "k-1")
			So(w.Body.String(), ShouldContainSubstring, `"run_id":"run-2"`)
		})

		Convey("Then a replayed submission answers 200 with duplicate", func() {
			deps.sub = model.Submission{RunID: "run-2", Duplicate: true}
			w := serve(mux, http.MethodPost, "/audits", corpusBody, map[string]string{api.IdempotencyHeader: "k-1"})
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"duplicate":true`)
		})

		Convey("Then a full queue answers 429", func() {
			deps.submitErr = fmt.Errorf("submit: %w", queue.ErrFull)
			w := serve(mux, http.MethodPost, "/audits", corpusBody, nil)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(w.Body.String(), ShouldContainSubstring, `"code":"backpressure"`)
		})

		Convey("Then GET /audits/{run_id} finds known runs only", func() {
			So(serve(mux, http.MethodGet, "/audits/run-1", "", nil).Code, ShouldEqual, http.StatusOK)
			So(serve(mux, http.MethodGet, "/audits/ghost", "", nil).Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then GET /ratings honours the limit", func() {
			w := serve(mux, http.MethodGet, "/ratings?limit=1", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			var got []api.Entry
			So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
			So(got, ShouldHaveLength, 1)
			So(got[0].RaceID, ShouldEqual, "beta")

			So(serve(mux, http.MethodGet, "/ratings?limit=3", "", nil).Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodGet, "/ratings", "", nil).Code, ShouldEqual, http.StatusOK)
			So(serve(mux, http.MethodGet, "/ratings?limit=zero", "", nil).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Then GET /ratings/{race_id} returns one entry or 404", func() {
			w := serve(mux, http.MethodGet, "/ratings/alpha", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"tier_label":"TIER 2"`)
			So(serve(mux, http.MethodGet, "/ratings/nope", "", nil).Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then an unscoreable record answers 422 with its violations", func() {
			deps.classifyErr = fmt.Errorf("classify: %w", rating.ErrScoreOutOfRange)
			w := serve(mux, http.MethodPost, "/classify", `{"race_id":"x","logistics":6}`, nil)
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
		})

		Convey("Then a record without race_id is rejected", func() {
			So(serve(mux, http.MethodPost, "/classify", `{"logistics":3}`, nil).Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestWrapKind(t *testing.T) {
	Convey("Given an error wrapped with a kind", t, func() {
		cause := errors.New("boom")
		err := api.WrapKind("api.op", api.ErrBadRequest, cause)

		Convey("Then both the kind and the cause match", func() {
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(api.Wrap("api.op", nil), ShouldBeNil)
			So(api.NewKind("api.op", api.ErrNotFound).Error(), ShouldEqual, "api.op: not found")
		})
	})
}
