package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/vinyl/internal/adapters/http/api"
	"github.com/okian/vinyl/internal/adapters/mq/queue"
	service "github.com/okian/vinyl/internal/app"
	"github.com/okian/vinyl/internal/domain/aggregation"
	"github.com/okian/vinyl/internal/domain/encoder"
	"github.com/okian/vinyl/internal/domain/model"
	"github.com/okian/vinyl/internal/domain/types"
	"github.com/okian/vinyl/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type mockDeps struct {
	mu        sync.Mutex
	seen      map[string]bool
	submitted []model.RawRecord
	queued    []model.RawRecord
	queueCap  int
	err       error
	averages  []types.CategoryAverage
}

func newMockDeps() *mockDeps {
	return &mockDeps{seen: map[string]bool{}, queueCap: 100}
}

func (m *mockDeps) admit(id string, rec model.RawRecord) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if err := encoder.Validate(rec); err != nil {
		return false, err
	}
	if id != "" && m.seen[id] {
		return true, nil
	}
	if id != "" {
		m.seen[id] = true
	}
	return false, nil
}

func (m *mockDeps) Submit(_ context.Context, id string, rec model.RawRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dup, err := m.admit(id, rec)
	if err == nil && !dup {
		m.submitted = append(m.submitted, rec)
	}
	return dup, err
}

func (m *mockDeps) Enqueue(_ context.Context, id string, rec model.RawRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queued) >= m.queueCap {
		return false, queue.ErrFull
	}
	dup, err := m.admit(id, rec)
	if err == nil && !dup {
		m.queued = append(m.queued, rec)
	}
	return dup, err
}

func (m *mockDeps) GenerateSamples(_ context.Context, n int) (int, error) {
	return n, m.err
}

func (m *mockDeps) Averages(context.Context) ([]types.CategoryAverage, error) {
	return m.averages, m.err
}

func (m *mockDeps) Profile(_ context.Context, category, period string) (model.Profile, error) {
	if model.CategoryIndex(category) < 0 {
		return model.Profile{}, aggregation.ErrUnknownCategory
	}
	return model.Profile{Category: category, Period: period, SampleCount: 2, Averages: map[model.Field]float64{model.FieldEnergy: 0.5}}, m.err
}

func (m *mockDeps) Compare(_ context.Context, value float64, category, period string) (model.ComparisonResult, error) {
	return model.ComparisonResult{Status: model.StatusInsufficientData, Category: category, Period: period, Value: value}, m.err
}

func (m *mockDeps) Privacy(context.Context) (model.PrivacyReport, error) {
	return model.PrivacyReport{TotalRecords: 3, PrivacyLevel: aggregation.PrivacyLevel}, m.err
}

type mockStats struct{ started bool }

func (m mockStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": m.started, "workerCount": 2}
}

func serve(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

const popRecord = `{"artist_id":"artist-1","category":"Pop","period":"2024-Q1","revenue":8500000,"energy":0.7}`

func TestRecords(t *testing.T) {
	Convey("Given a registered API", t, func() {
		deps := newMockDeps()
		mux := http.NewServeMux()
		api.NewServer(deps, mockStats{started: true}).Register(context.Background(), mux)

		Convey("POST /records folds a valid record", func() {
			w := serve(mux, http.MethodPost, "/records", popRecord)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(decode(w)["status"], ShouldEqual, "created")
			So(deps.submitted, ShouldHaveLength, 1)
			So(*deps.submitted[0].Energy, ShouldEqual, 0.7)
		})

		Convey("A repeated submission_id answers duplicate", func() {
			body := `{"submission_id":"s-1","artist_id":"a","category":"Rock","period":"2023-Q2","revenue":10}`
			So(serve(mux, http.MethodPost, "/records", body).Code, ShouldEqual, http.StatusCreated)
			w := serve(mux, http.MethodPost, "/records", body)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["duplicate"], ShouldEqual, true)
			So(deps.submitted, ShouldHaveLength, 1)
		})

		Convey("Legacy genre and duration_ms keys are accepted", func() {
			body := `{"artist_id":"a","genre":"Jazz","period":"2024-Q4","revenue":10,"duration_ms":240000}`
			So(serve(mux, http.MethodPost, "/records", body).Code, ShouldEqual, http.StatusCreated)
			So(deps.submitted[0].Category, ShouldEqual, "Jazz")
			So(*deps.submitted[0].Duration, ShouldEqual, 240000.0)
		})

		Convey("Invalid input answers 400", func() {
			w := serve(mux, http.MethodPost, "/records", `{"artist_id":"a","category":"Polka","period":"2024-Q1","revenue":1}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["code"], ShouldEqual, "bad_request")

			So(serve(mux, http.MethodPost, "/records", `{not json`).Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodPost, "/records", `{"artist_id":"a","category":"Pop","period":"2024-Q1","revenue":1,"energy":3}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Other methods are not routed", func() {
			So(serve(mux, http.MethodGet, "/records", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("A stopped service answers 503", func() {
			deps.err = service.ErrNotStarted
			w := serve(mux, http.MethodPost, "/records", popRecord)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(decode(w)["code"], ShouldEqual, "unavailable")
		})
	})
}

func TestBatch(t *testing.T) {
	Convey("Given a registered API", t, func() {
		deps := newMockDeps()
		mux := http.NewServeMux()
		api.NewServer(deps, mockStats{started: true}).Register(context.Background(), mux)

		Convey("Valid records are queued and invalid ones listed", func() {
			body := `{"records":[` + popRecord + `,{"artist_id":"","category":"Pop","period":"2024-Q1","revenue":1},` +
				`{"submission_id":"x","artist_id":"b","category":"Rock","period":"2024-Q2","revenue":2},` +
				`{"submission_id":"x","artist_id":"b","category":"Rock","period":"2024-Q2","revenue":2}]}`
			w := serve(mux, http.MethodPost, "/records/batch", body)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			resp := decode(w)
			So(resp["accepted"], ShouldEqual, 2.0)
			So(resp["duplicates"], ShouldEqual, 1.0)
			rejected := resp["rejected"].([]any)
			So(rejected, ShouldHaveLength, 1)
			So(rejected[0].(map[string]any)["index"], ShouldEqual, 1.0)
		})

		Convey("A full queue answers 429 with the deferred count", func() {
			deps.queueCap = 1
			body := `{"records":[` + popRecord + `,` + popRecord + `,` + popRecord + `]}`
			w := serve(mux, http.MethodPost, "/records/batch", body)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			resp := decode(w)
			So(resp["accepted"], ShouldEqual, 1.0)
			So(resp["deferred"], ShouldEqual, 2.0)
		})

		Convey("An empty batch answers 400", func() {
			So(serve(mux, http.MethodPost, "/records/batch", `{"records":[]}`).Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestQueries(t *testing.T) {
	Convey("Given a registered API", t, func() {
		deps := newMockDeps()
		deps.averages = []types.CategoryAverage{{Rank: 1, Category: "Pop", Average: 10_400_000}}
		mux := http.NewServeMux()
		api.NewServer(deps, mockStats{started: true}).Register(context.Background(), mux)

		Convey("GET /averages lists ranked averages", func() {
			w := serve(mux, http.MethodGet, "/averages", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var rows []types.CategoryAverage
			So(json.Unmarshal(w.Body.Bytes(), &rows), ShouldBeNil)
			So(rows, ShouldResemble, deps.averages)
		})

		Convey("GET /profile needs a known category", func() {
			So(serve(mux, http.MethodGet, "/profile", "").Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodGet, "/profile?category=Polka", "").Code, ShouldEqual, http.StatusBadRequest)

			w := serve(mux, http.MethodGet, "/profile?category=Pop&period=2024-Q1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["sample_count"], ShouldEqual, 2.0)
		})

		Convey("GET /compare parses the value", func() {
			So(serve(mux, http.MethodGet, "/compare?category=Pop&value=abc", "").Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodGet, "/compare?value=5", "").Code, ShouldEqual, http.StatusBadRequest)

			w := serve(mux, http.MethodGet, "/compare?category=Pop&value=5000000", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["status"], ShouldEqual, string(model.StatusInsufficientData))
		})

		Convey("GET /privacy returns the report", func() {
			w := serve(mux, http.MethodGet, "/privacy", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["total_records"], ShouldEqual, 3.0)
		})

		Convey("POST /samples defaults to fifteen records", func() {
			w := serve(mux, http.MethodPost, "/samples", "")
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(decode(w)["generated"], ShouldEqual, 15.0)

			So(serve(mux, http.MethodPost, "/samples?count=0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodPost, "/samples?count=5000", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given a service that has not started", t, func() {
		mux := http.NewServeMux()
		api.NewServer(newMockDeps(), mockStats{}).Register(context.Background(), mux)

		Convey("GET /healthz answers 503", func() {
			So(serve(mux, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})

	Convey("Given a started service", t, func() {
		mux := http.NewServeMux()
		api.NewServer(newMockDeps(), mockStats{started: true}).Register(context.Background(), mux)

		Convey("Health, stats and metrics are served", func() {
			So(serve(mux, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusOK)

			w := serve(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["workerCount"], ShouldEqual, 2.0)

			w = serve(mux, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "vinyl_")
		})
	})
}
