package seed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/vinyl/internal/domain/encoder"
	"github.com/okian/vinyl/internal/domain/model"
	"github.com/okian/vinyl/internal/domain/types"
	"github.com/okian/vinyl/pkg/logger"
)

func init() {
	_ = logger.Init(logger.WithOutput(io.Discard))
}

const legacyJSON = `{
  "description": "Sample artist data",
  "version": "1.0",
  "sample_artists": [
    {"artist_id": "a1", "genre": "Pop", "period": "2024-Q1", "revenue": 8500000, "duration_ms": 195000},
    {"artist_id": "a2", "category": "Rock", "period": "2023-Q4", "revenue": 100}
  ]
}`

const legacyYAML = `
- artist_id: y1
  genre: Jazz
  period: 2024-Q2
  revenue: 4200
  song_count: 3
  duration_ms: 200000
- artist_id: y2
  category: Jazz
  period: 2024-Q3
  revenue: 5800
`

func TestParse(t *testing.T) {
	Convey("Given sample documents", t, func() {
		Convey("A JSON document with legacy keys decodes", func() {
			recs, err := Parse([]byte(legacyJSON), ".json")
			So(err, ShouldBeNil)
			So(recs, ShouldHaveLength, 2)
			So(recs[0].Category, ShouldEqual, "Pop")
			So(*recs[0].Duration, ShouldEqual, 195000.0)
			So(recs[1].Category, ShouldEqual, "Rock")
		})

		Convey("A bare JSON array decodes", func() {
			recs, err := Parse([]byte(`[{"artist_id":"x","category":"Pop","period":"2024-Q1","revenue":1}]`), ".json")
			So(err, ShouldBeNil)
			So(recs, ShouldHaveLength, 1)
			So(*recs[0].Revenue, ShouldEqual, 1.0)
		})

		Convey("A YAML list accepts the same keys", func() {
			recs, err := Parse([]byte(legacyYAML), ".yaml")
			So(err, ShouldBeNil)
			So(recs, ShouldHaveLength, 2)
			So(recs[0].Category, ShouldEqual, "Jazz")
			So(recs[0].Period, ShouldEqual, "2024-Q2")
			So(*recs[0].SongCount, ShouldEqual, 3)
			So(*recs[0].Duration, ShouldEqual, 200000.0)
			So(recs[1].Duration, ShouldBeNil)
		})

		Convey("Unknown extensions are rejected", func() {
			_, err := Parse([]byte(legacyJSON), ".csv")
			So(errors.Is(err, ErrUnsupportedFormat), ShouldBeTrue)
		})

		Convey("Documents without records are rejected", func() {
			_, err := Parse([]byte(`{"description":"nothing"}`), ".json")
			So(errors.Is(err, ErrNoRecords), ShouldBeTrue)
			_, err = Parse([]byte(`[]`), ".json")
			So(errors.Is(err, ErrNoRecords), ShouldBeTrue)
		})

		Convey("Malformed JSON is an error", func() {
			_, err := Parse([]byte(`{"sample_artists": [`), ".json")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestFiles(t *testing.T) {
	Convey("Given a temporary directory", t, func() {
		dir := t.TempDir()
		ctx := context.Background()

		Convey("Records saved as JSON load back", func() {
			path, err := SaveFile(ctx, filepath.Join(dir, "out", "samples.json"), DefaultSamples())
			So(err, ShouldBeNil)
			recs, err := LoadFile(path)
			So(err, ShouldBeNil)
			So(recs, ShouldResemble, DefaultSamples())
		})

		Convey("Records saved as YAML load back", func() {
			path, err := SaveFile(ctx, filepath.Join(dir, "samples.yml"), DefaultSamples())
			So(err, ShouldBeNil)
			recs, err := LoadFile(path)
			So(err, ShouldBeNil)
			So(recs, ShouldHaveLength, 2)
			So(recs[1].ArtistID, ShouldEqual, "sample_002")
			So(*recs[1].Revenue, ShouldEqual, 12_300_000.0)
		})

		Convey("Saving nothing is refused", func() {
			_, err := SaveFile(ctx, filepath.Join(dir, "none.json"), nil)
			So(errors.Is(err, ErrNoRecords), ShouldBeTrue)
		})

		Convey("A missing file is an error", func() {
			_, err := LoadFile(filepath.Join(dir, "missing.json"))
			So(err, ShouldNotBeNil)
		})

		Convey("An upper-case extension is accepted", func() {
			path := filepath.Join(dir, "UPPER.JSON")
			So(os.WriteFile(path, []byte(legacyJSON), 0o600), ShouldBeNil)
			recs, err := LoadFile(path)
			So(err, ShouldBeNil)
			So(recs, ShouldHaveLength, 2)
		})
	})
}

func TestGenerate(t *testing.T) {
	Convey("Given the record generator", t, func() {
		Convey("Every generated record is valid", func() {
			recs := Generate(50, 0)
			So(recs, ShouldHaveLength, 50)
			for _, rec := range recs {
				So(encoder.Validate(rec), ShouldBeNil)
			}
		})

		Convey("A fixed seed reproduces labels and values", func() {
			a, b := Generate(10, 42), Generate(10, 42)
			for i := range a {
				So(a[i].Category, ShouldEqual, b[i].Category)
				So(a[i].Period, ShouldEqual, b[i].Period)
				So(*a[i].Revenue, ShouldEqual, *b[i].Revenue)
			}
		})

		Convey("Non-positive counts yield nothing", func() {
			So(Generate(0, 1), ShouldBeEmpty)
			So(Generate(-3, 1), ShouldBeEmpty)
		})

		Convey("The built-in samples are valid", func() {
			for _, rec := range DefaultSamples() {
				So(encoder.Validate(rec), ShouldBeNil)
			}
		})
	})
}

type fakeSink struct {
	mu   sync.Mutex
	seen map[string]bool
	fail string
}

func (f *fakeSink) Submit(_ context.Context, id string, rec model.RawRecord) (bool, error) { //nolint:gocritic // hugeParam
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.ArtistID == f.fail {
		return false, errors.New("rejected")
	}
	if f.seen[id] {
		return true, nil
	}
	f.seen[id] = true
	return false, nil
}

func TestSubmitAll(t *testing.T) {
	Convey("Given a sink", t, func() {
		ctx := context.Background()
		sink := &fakeSink{seen: map[string]bool{}}
		recs := Generate(20, 7)

		Convey("Every record is created once", func() {
			report, err := SubmitAll(ctx, sink, recs, 4, nil)
			So(err, ShouldBeNil)
			So(report, ShouldResemble, Report{Submitted: 20, Created: 20})

			Convey("And a second run only finds duplicates", func() {
				report, err := SubmitAll(ctx, sink, recs, 4, NewLimiter(1000, 5))
				So(err, ShouldBeNil)
				So(report, ShouldResemble, Report{Submitted: 20, Duplicates: 20})
			})
		})

		Convey("Failures are counted, not returned", func() {
			sink.fail = recs[3].ArtistID
			report, err := SubmitAll(ctx, sink, recs, 0, nil)
			So(err, ShouldBeNil)
			So(report.Failed, ShouldEqual, 1)
			So(report.Created, ShouldEqual, 19)
		})

		Convey("A cancelled context aborts the run", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := SubmitAll(cctx, sink, recs, 2, NewLimiter(1, 1))
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestSubmissionID(t *testing.T) {
	Convey("Submission ids are stable per position and content", t, func() {
		rec := DefaultSamples()[0]
		So(SubmissionID(0, rec), ShouldEqual, SubmissionID(0, rec))
		So(SubmissionID(0, rec), ShouldNotEqual, SubmissionID(1, rec))
		other := rec
		other.Set(model.FieldRevenue, 1)
		So(SubmissionID(0, rec), ShouldNotEqual, SubmissionID(0, other))
	})
}

func TestNewLimiter(t *testing.T) {
	Convey("A non-positive rate disables limiting", t, func() {
		So(NewLimiter(0, 10), ShouldBeNil)
		So(NewLimiter(-1, 10), ShouldBeNil)
		l := NewLimiter(5, 0)
		So(l, ShouldNotBeNil)
		So(l.Burst(), ShouldEqual, 1)
	})
}

func TestVerify(t *testing.T) {
	Convey("Given plaintext records", t, func() {
		recs := DefaultSamples()
		extra := model.RawRecord{ArtistID: "p", Category: "Pop", Period: "2024-Q2"}
		extra.Set(model.FieldRevenue, 1_500_000)
		recs = append(recs, extra)

		expected := PlainAverages(recs)
		So(expected[model.CategoryPop], ShouldEqual, 5_000_000.0)
		So(expected[model.CategoryHipHop], ShouldEqual, 12_300_000.0)

		Convey("Close reported averages pass", func() {
			reported := []types.CategoryAverage{
				{Rank: 1, Category: "Hip-Hop", Average: 12_300_000.4},
				{Rank: 2, Category: "Pop", Average: 5_000_010},
			}
			So(Verify(expected, reported, DefaultTolerance), ShouldBeEmpty)
		})

		Convey("Distant or missing averages are reported", func() {
			reported := []types.CategoryAverage{{Rank: 1, Category: "Pop", Average: 6_000_000}}
			mismatches := Verify(expected, reported, DefaultTolerance)
			So(mismatches, ShouldHaveLength, 2)
			So(mismatches[0].Category, ShouldEqual, "Pop")
			So(mismatches[0].Actual, ShouldEqual, 6_000_000.0)
			So(mismatches[1].Category, ShouldEqual, "Hip-Hop")
			So(mismatches[1].Missing, ShouldBeTrue)
		})
	})
}

// fakeService mimics the record and query endpoints over plaintext.
type fakeService struct {
	mu      sync.Mutex
	ids     map[string]bool
	records []model.RawRecord
	healthy bool
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !f.healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/records", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var envelope struct {
			SubmissionID string `json:"submission_id"`
		}
		var rec model.RawRecord
		if json.Unmarshal(body, &envelope) != nil || json.Unmarshal(body, &rec) != nil || encoder.Validate(rec) != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.ids[envelope.SubmissionID] {
			w.WriteHeader(http.StatusOK)
			return
		}
		f.ids[envelope.SubmissionID] = true
		f.records = append(f.records, rec)
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/averages", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(types.RankAverages(PlainAverages(f.records)))
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"totalRecords": len(f.records)})
	})
	return mux
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx := context.Background()
		svc := &fakeService{ids: map[string]bool{}, healthy: true}
		srv := httptest.NewServer(svc.handler())
		defer srv.Close()

		cfg := &Config{
			BaseURL:   srv.URL + "/",
			Random:    25,
			Workers:   3,
			Timeout:   DefaultTimeout,
			Tolerance: DefaultTolerance,
			Verify:    true,
		}

		Convey("Random records are submitted and verified", func() {
			stats, err := Run(ctx, cfg)
			So(err, ShouldBeNil)
			So(stats.Generated, ShouldEqual, 25)
			So(stats.Created, ShouldEqual, 25)
			So(stats.Mismatches, ShouldEqual, 0)
			So(svc.records, ShouldHaveLength, 25)
		})

		Convey("The built-in samples are used by default and saved on request", func() {
			cfg.Random = 0
			cfg.OutputFile = filepath.Join(t.TempDir(), "seeded.json")
			stats, err := Run(ctx, cfg)
			So(err, ShouldBeNil)
			So(stats.Loaded, ShouldEqual, 2)
			So(stats.Created, ShouldEqual, 2)

			saved, err := LoadFile(cfg.OutputFile)
			So(err, ShouldBeNil)
			So(saved, ShouldHaveLength, 2)

			Convey("And re-seeding reports duplicates only", func() {
				stats, err := Run(ctx, cfg)
				So(err, ShouldBeNil)
				So(stats.Duplicates, ShouldEqual, 2)
				So(stats.Created, ShouldEqual, 0)
			})
		})

		Convey("An unhealthy service stops the run", func() {
			svc.healthy = false
			_, err := Run(ctx, cfg)
			So(errors.Is(err, ErrUnexpectedStatus), ShouldBeTrue)
		})

		Convey("The client reads stats and averages", func() {
			client := NewClient(srv.URL, DefaultTimeout)
			dup, err := client.Submit(ctx, "id-1", DefaultSamples()[0])
			So(err, ShouldBeNil)
			So(dup, ShouldBeFalse)
			dup, err = client.Submit(ctx, "id-1", DefaultSamples()[0])
			So(err, ShouldBeNil)
			So(dup, ShouldBeTrue)

			stats, err := client.Stats(ctx)
			So(err, ShouldBeNil)
			So(stats["totalRecords"], ShouldEqual, 1.0)

			averages, err := client.Averages(ctx)
			So(err, ShouldBeNil)
			So(averages, ShouldHaveLength, 1)
			So(averages[0].Category, ShouldEqual, "Pop")

			_, err = client.Submit(ctx, "id-2", model.RawRecord{ArtistID: "bad"})
			So(errors.Is(err, ErrUnexpectedStatus), ShouldBeTrue)
		})
	})
}
