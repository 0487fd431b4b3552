package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"venue-discovery/internal/discovery"
	"venue-discovery/internal/models"
	"venue-discovery/internal/processor"
	"venue-discovery/internal/recommend"
	testutil "venue-discovery/internal/testing"
	"venue-discovery/pkg/cache"
	"venue-discovery/pkg/events"
)

var errTest = errors.New("upstream down")

type fixture struct {
	router *mux.Router
	source *testutil.MockSource
	store  *events.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	src := testutil.NewMockSource("search", models.SourceSearch, 3,
		testutil.RatedVenue("Casa Rolandi", models.CategoryDining, 21.135, -86.748),
		testutil.RatedVenue("Puerto Santo", models.CategoryDining, 21.137, -86.750),
		testutil.RatedVenue("Museo Subacuatico", models.CategoryCulture, 21.160, -86.820),
	)
	store := events.NewMemoryStore(10)
	cfg := processor.DefaultProcessingConfig()
	cfg.Retry = processor.Policy{MaxAttempts: 1, Timeout: time.Second}
	svc := recommend.NewService(recommend.Options{
		Discovery:     discovery.NewEngine(discovery.Options{}, src),
		Processing:    cfg,
		ResponseCache: cache.New[recommend.Response](cache.Options{Name: "api_test_responses", MaxSize: 10}),
		Events:        store,
	})
	r := mux.NewRouter()
	NewServer(Options{Service: svc, Events: store}).Register(r)
	return &fixture{router: r, source: src, store: store}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestRecommendations_OK(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/recommendations",
		`{"destination":"Cancun","categories":["Dining"],"budget":"medium","start_date":"2026-03-01","end_date":"2026-03-04"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var res recommend.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Success || len(res.Data) != 2 {
		t.Fatalf("expected 2 dining recommendations, got %+v", res)
	}
	got := f.source.Requests[0]
	if got.Budget != models.BudgetMedium || got.TripDays() != 4 || got.Categories[0] != models.CategoryDining {
		t.Fatalf("request not converted: %+v", got)
	}
}

func TestRecommendations_Rejected(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"malformed", `{"destination":`, ""},
		{"unknown field", `{"destination":"Cancun","mood":"happy"}`, ""},
		{"missing destination", `{"categories":["dining"]}`, "destination"},
		{"bad category", `{"destination":"Cancun","categories":["casino"]}`, "categories[0]"},
		{"bad budget", `{"destination":"Cancun","budget":"cheap"}`, "budget"},
		{"bad date", `{"destination":"Cancun","start_date":"01/03/2026"}`, "start_date"},
		{"reversed dates", `{"destination":"Cancun","start_date":"2026-03-04","end_date":"2026-03-01"}`, ""},
	}
	f := newFixture(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/recommendations", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status %d, want 400: %s", rec.Code, rec.Body.String())
			}
			if tt.field == "" {
				return
			}
			var body errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(body.Fields) == 0 || body.Fields[0].Field != tt.field {
				t.Fatalf("expected field %q, got %+v", tt.field, body.Fields)
			}
		})
	}
	if f.source.CallCount() != 0 {
		t.Fatalf("rejected requests reached the source")
	}
}

func TestRecommendations_PipelineFailure(t *testing.T) {
	f := newFixture(t)
	f.source.Err = errTest
	rec := f.do(t, http.MethodPost, "/api/recommendations", `{"destination":"Cancun"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", rec.Code)
	}
	var res recommend.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Metadata.FailedAt != recommend.StageDiscovery {
		t.Fatalf("failedAt %q", res.Metadata.FailedAt)
	}
}

func TestStatsCacheAndRuns(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(t, http.MethodPost, "/api/recommendations", `{"destination":"Cancun"}`); rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/api/stats", "")
	var stats struct {
		Pipeline processor.ProcessingStats `json:"pipeline"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Pipeline.TotalRuns != 1 {
		t.Fatalf("expected 1 run, got %+v", stats.Pipeline)
	}
	f.do(t, http.MethodPost, "/api/stats/reset", "")
	rec = f.do(t, http.MethodGet, "/api/stats", "")
	_ = json.Unmarshal(rec.Body.Bytes(), &stats)
	if stats.Pipeline.TotalRuns != 0 {
		t.Fatalf("stats not reset: %+v", stats.Pipeline)
	}

	rec = f.do(t, http.MethodGet, "/api/cache/stats", "")
	var cs map[string]cache.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &cs); err != nil {
		t.Fatalf("decode cache stats: %v", err)
	}
	if cs["responses"].Size != 1 {
		t.Fatalf("expected 1 cached response, got %+v", cs)
	}
	if rec := f.do(t, http.MethodPost, "/api/cache/optimize", ""); rec.Code != http.StatusOK {
		t.Fatalf("optimize status %d", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, "/api/cache/destinations/cancun", ""); !strings.Contains(rec.Body.String(), `"removed":1`) {
		t.Fatalf("invalidate: %s", rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/runs?limit=5", "")
	var runs struct {
		Runs  []events.RunState `json:"runs"`
		Count int               `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if runs.Count != 1 || !runs.Runs[0].Success || runs.Runs[0].Destination != "Cancun" {
		t.Fatalf("unexpected runs %+v", runs)
	}

	if rec := f.do(t, http.MethodGet, "/api/runs/"+runs.Runs[0].RunID, ""); rec.Code != http.StatusOK {
		t.Fatalf("run detail status %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/runs/missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing run status %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/runs?limit=0", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("limit=0 status %d", rec.Code)
	}
}
