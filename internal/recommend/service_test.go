package recommend

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"venue-discovery/internal/curated"
	"venue-discovery/internal/discovery"
	"venue-discovery/internal/fallback"
	"venue-discovery/internal/models"
	"venue-discovery/internal/processor"
	testutil "venue-discovery/internal/testing"
	"venue-discovery/pkg/cache"
	"venue-discovery/pkg/events"
)

func fastProcessing() processor.ProcessingConfig {
	cfg := processor.DefaultProcessingConfig()
	cfg.Retry = processor.Policy{MaxAttempts: 1, Timeout: 2 * time.Second}
	return cfg
}

func cancunVenues() []*models.Venue {
	return []*models.Venue{
		testutil.RatedVenue("Casa Rolandi", models.CategoryDining, 21.135, -86.748),
		testutil.RatedVenue("Puerto Santo", models.CategoryDining, 21.137, -86.750),
		testutil.RatedVenue("Museo Subacuatico", models.CategoryCulture, 21.160, -86.820),
	}
}

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	if opts.Processing.Retry.MaxAttempts == 0 {
		opts.Processing = fastProcessing()
	}
	return NewService(opts)
}

func stageNames(res Response) []string {
	var out []string
	for _, s := range res.Metadata.Stages {
		out = append(out, s.Stage)
	}
	return out
}

func TestGenerateRecommendations_Discovery(t *testing.T) {
	src := testutil.NewMockSource("search", models.SourceSearch, 3, cancunVenues()...)
	store := events.NewMemoryStore(10)
	svc := newTestService(t, Options{
		Discovery: discovery.NewEngine(discovery.Options{}, src),
		Events:    store,
	})

	res := svc.GenerateRecommendations(context.Background(), models.RequestContext{Destination: "  Cancun  "})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if len(res.Data) != 3 {
		t.Fatalf("expected 3 recommendations, got %d", len(res.Data))
	}
	if got := strings.Join(stageNames(res), ","); got != "discovery,quality,recommendation" {
		t.Fatalf("unexpected stages %s", got)
	}
	for i := 1; i < len(res.Data); i++ {
		if res.Data[i-1].Score < res.Data[i].Score {
			t.Fatalf("recommendations not sorted: %v then %v", res.Data[i-1].Score, res.Data[i].Score)
		}
	}
	if src.Requests[0].Destination != "Cancun" {
		t.Fatalf("destination not normalized: %q", src.Requests[0].Destination)
	}
	if res.Metadata.RunID == "" {
		t.Fatalf("expected run id")
	}
	if evs, _ := store.ListByRun(context.Background(), res.Metadata.RunID); len(evs) == 0 {
		t.Fatalf("expected run events to be recorded")
	}
}

func TestGenerateRecommendations_CuratedFallback(t *testing.T) {
	data, err := curated.Load()
	if err != nil {
		t.Fatalf("load curated: %v", err)
	}
	svc := newTestService(t, Options{
		Fallback: fallback.New(fallback.Options{Curated: data}),
	})

	res := svc.GenerateRecommendations(context.Background(), models.RequestContext{
		Destination: "Cancun",
		Categories:  []models.VenueCategory{models.CategoryDining},
	})
	if !res.Success || len(res.Data) == 0 {
		t.Fatalf("expected curated recommendations, got %+v", res)
	}
	if !res.Metadata.Stages[0].UsedFallback {
		t.Fatalf("discovery stage should report fallback use")
	}
	for _, r := range res.Data {
		if r.Venue.Category != models.CategoryDining {
			t.Fatalf("unexpected category %s", r.Venue.Category)
		}
		if !r.HasTag("curated") || !r.HasTag("fallback") {
			t.Fatalf("expected curated and fallback tags, got %v", r.Tags)
		}
	}
	var found bool
	for _, w := range res.Metadata.Warnings {
		if strings.Contains(w, "fallback curated") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected fallback warning, got %v", res.Metadata.Warnings)
	}
}

func TestGenerateRecommendations_NothingAvailable(t *testing.T) {
	svc := newTestService(t, Options{Fallback: fallback.New(fallback.Options{})})

	res := svc.GenerateRecommendations(context.Background(), models.RequestContext{Destination: "Nowhere"})
	if res.Success {
		t.Fatalf("expected failure")
	}
	if res.Metadata.FailedAt != StageDiscovery {
		t.Fatalf("expected failedAt discovery, got %q", res.Metadata.FailedAt)
	}
	if res.Data == nil || len(res.Data) != 0 {
		t.Fatalf("failed responses carry an empty list, got %v", res.Data)
	}
}

func TestGenerateRecommendations_InvalidRequest(t *testing.T) {
	src := testutil.NewMockSource("search", models.SourceSearch, 3, cancunVenues()...)
	svc := newTestService(t, Options{Discovery: discovery.NewEngine(discovery.Options{}, src)})

	tests := []struct {
		name string
		req  models.RequestContext
	}{
		{"no destination", models.RequestContext{Destination: "   "}},
		{"bad category", models.RequestContext{Destination: "Cancun", Categories: []models.VenueCategory{"casino"}}},
		{"bad budget", models.RequestContext{Destination: "Cancun", Budget: "cheap"}},
		{"dates reversed", models.RequestContext{
			Destination: "Cancun",
			StartDate:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			EndDate:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := svc.GenerateRecommendations(context.Background(), tt.req)
			if res.Success || res.Metadata.FailedAt != "request" || res.Error == "" {
				t.Fatalf("expected request failure, got %+v", res)
			}
		})
	}
	if src.CallCount() != 0 {
		t.Fatalf("invalid requests must not reach sources")
	}
}

func TestGenerateRecommendations_ResponseCache(t *testing.T) {
	src := testutil.NewMockSource("search", models.SourceSearch, 3, cancunVenues()...)
	responses := cache.New[Response](cache.Options{Name: "test_responses", MaxSize: 10, DefaultTTL: time.Minute})
	venues := cache.New[[]*models.Venue](cache.Options{Name: "test_venues", MaxSize: 10, DefaultTTL: time.Minute})
	svc := newTestService(t, Options{
		Discovery:     discovery.NewEngine(discovery.Options{}, src),
		ResponseCache: responses,
		VenueCache:    venues,
	})
	req := models.RequestContext{Destination: "Cancun"}

	first := svc.GenerateRecommendations(context.Background(), req)
	if !first.Success || first.Metadata.Cached {
		t.Fatalf("first call should run the pipeline, got %+v", first.Metadata)
	}
	second := svc.GenerateRecommendations(context.Background(), req)
	if !second.Metadata.Cached || len(second.Data) != len(first.Data) {
		t.Fatalf("second call should be cached, got %+v", second.Metadata)
	}
	if src.CallCount() != 1 {
		t.Fatalf("expected one source call, got %d", src.CallCount())
	}

	// cached responses are copies
	second.Data[0].Venue.Name = "mutated"
	third := svc.GenerateRecommendations(context.Background(), req)
	if third.Data[0].Venue.Name == "mutated" {
		t.Fatalf("cache returned a shared venue")
	}

	if n := svc.InvalidateDestination("CANCUN"); n != 2 {
		t.Fatalf("expected venue and response entries dropped, got %d", n)
	}
	svc.GenerateRecommendations(context.Background(), req)
	if src.CallCount() != 2 {
		t.Fatalf("expected a fresh source call after invalidation, got %d", src.CallCount())
	}
	stats := svc.CacheStats()
	if _, ok := stats["responses"]; !ok {
		t.Fatalf("missing response cache stats: %v", stats)
	}
}

func TestGenerateRecommendations_FailuresAreNotCached(t *testing.T) {
	src := testutil.NewMockSource("search", models.SourceSearch, 3)
	src.Err = errors.New("quota exceeded")
	responses := cache.New[Response](cache.Options{Name: "test_failed_responses", MaxSize: 10})
	svc := newTestService(t, Options{
		Discovery:     discovery.NewEngine(discovery.Options{}, src),
		ResponseCache: responses,
	})

	res := svc.GenerateRecommendations(context.Background(), models.RequestContext{Destination: "Cancun"})
	if res.Success {
		t.Fatalf("expected failure")
	}
	if responses.Len() != 0 {
		t.Fatalf("failed response was cached")
	}
}

func TestGenerateRecommendations_Enhancement(t *testing.T) {
	tests := []struct {
		name     string
		fn       func([]*models.Venue) ([]*models.Venue, error)
		wantDesc string
		warning  string
		fallback bool
	}{
		{name: "applied", wantDesc: "enhanced"},
		{
			name: "dropped venue keeps originals",
			fn: func(in []*models.Venue) ([]*models.Venue, error) {
				out := models.CloneVenues(in[:len(in)-1])
				for _, v := range out {
					v.Description = "enhanced"
				}
				return out, nil
			},
			warning: "enhancement discarded",
		},
		{
			name: "in-place edits are discarded with the enhancement",
			fn: func(in []*models.Venue) ([]*models.Venue, error) {
				for _, v := range in {
					v.Description = "mutated"
				}
				return in[:len(in)-1], nil
			},
			warning: "enhancement discarded",
		},
		{
			name: "renamed venue keeps originals",
			fn: func(in []*models.Venue) ([]*models.Venue, error) {
				out := models.CloneVenues(in)
				out[0].Name = "Somewhere Else"
				return out, nil
			},
			warning: "enhancement discarded",
		},
		{
			name:     "enhancer error skips stage",
			fn:       func([]*models.Venue) ([]*models.Venue, error) { return nil, errors.New("model down") },
			warning:  "enhancement skipped",
			fallback: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testutil.NewMockSource("search", models.SourceSearch, 3, cancunVenues()...)
			enh := &testutil.MockEnhancer{Fn: tt.fn}
			svc := newTestService(t, Options{
				Discovery: discovery.NewEngine(discovery.Options{}, src),
				Enhancer:  enh,
			})

			res := svc.GenerateRecommendations(context.Background(), models.RequestContext{Destination: "Cancun"})
			if !res.Success || len(res.Data) != 3 {
				t.Fatalf("expected 3 recommendations, got %+v", res)
			}
			if got := strings.Join(stageNames(res), ","); got != "discovery,quality,enhancement,recommendation" {
				t.Fatalf("unexpected stages %s", got)
			}
			for _, r := range res.Data {
				if r.Venue.Description != tt.wantDesc {
					t.Fatalf("%s: description %q, want %q", r.Venue.Name, r.Venue.Description, tt.wantDesc)
				}
			}
			if res.Metadata.Stages[2].UsedFallback != tt.fallback {
				t.Fatalf("enhancement fallback = %v, want %v", res.Metadata.Stages[2].UsedFallback, tt.fallback)
			}
			if tt.warning != "" {
				var found bool
				for _, w := range res.Metadata.Warnings {
					if strings.HasPrefix(w, tt.warning) {
						found = true
					}
				}
				if !found {
					t.Fatalf("expected warning %q, got %v", tt.warning, res.Metadata.Warnings)
				}
			}
		})
	}
}

func TestGenerateRecommendations_QualityDropsInvalid(t *testing.T) {
	bad := testutil.RatedVenue("Null Island Bar", models.CategoryNightlife, 0, 0)
	src := testutil.NewMockSource("search", models.SourceSearch, 3, append(cancunVenues(), bad)...)
	svc := newTestService(t, Options{Discovery: discovery.NewEngine(discovery.Options{}, src)})

	res := svc.GenerateRecommendations(context.Background(), models.RequestContext{Destination: "Cancun"})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	for _, r := range res.Data {
		if r.Venue.Name == bad.Name {
			t.Fatalf("invalid venue was recommended")
		}
		if _, ok := r.Venue.Metadata["quality_tier"]; !ok {
			t.Fatalf("%s has no quality tier", r.Venue.Name)
		}
	}
	if len(res.Metadata.Warnings) == 0 || !strings.Contains(res.Metadata.Warnings[0], "failed validation") {
		t.Fatalf("expected validation warning, got %v", res.Metadata.Warnings)
	}
}

func TestGenerateRecommendations_ChecksAreAdvisory(t *testing.T) {
	one := testutil.RatedVenue("Casa Rolandi", models.CategoryDining, 21.135, -86.748)
	src := testutil.NewMockSource("search", models.SourceSearch, 3, one)
	svc := newTestService(t, Options{Discovery: discovery.NewEngine(discovery.Options{}, src)})

	res := svc.GenerateRecommendations(context.Background(), models.RequestContext{
		Destination: "Cancun",
		Categories:  []models.VenueCategory{models.CategoryDining, models.CategoryCulture},
	})
	if !res.Success || len(res.Data) != 1 {
		t.Fatalf("failing checks must not fail the run, got %+v", res)
	}
	failed := map[string]bool{}
	for _, c := range res.Metadata.QualityChecks {
		if !c.Passed {
			failed[c.Name] = true
		}
	}
	if !failed["min-results"] || !failed["category-coverage"] || failed["no-duplicates"] {
		t.Fatalf("unexpected check outcome %+v", res.Metadata.QualityChecks)
	}
}
