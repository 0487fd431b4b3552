package fallback

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"venue-discovery/internal/curated"
	"venue-discovery/internal/models"
)

type countingStrategy struct {
	level int
	name  string
	calls atomic.Int32
	fetch func(ctx context.Context, req models.RequestContext) ([]*models.Venue, error)
}

func (s *countingStrategy) Level() int   { return s.level }
func (s *countingStrategy) Name() string { return s.name }
func (s *countingStrategy) Fetch(ctx context.Context, req models.RequestContext) ([]*models.Venue, error) {
	s.calls.Add(1)
	return s.fetch(ctx, req)
}

func returning(names ...string) func(context.Context, models.RequestContext) ([]*models.Venue, error) {
	return func(context.Context, models.RequestContext) ([]*models.Venue, error) {
		var out []*models.Venue
		for _, n := range names {
			out = append(out, models.NewVenue(n, models.CategoryDining))
		}
		return out, nil
	}
}

func failing(err error) func(context.Context, models.RequestContext) ([]*models.Venue, error) {
	return func(context.Context, models.RequestContext) ([]*models.Venue, error) { return nil, err }
}

func TestExecute_LevelOneStopsHierarchy(t *testing.T) {
	l1 := &countingStrategy{level: 1, name: "one", fetch: returning("A")}
	l2 := &countingStrategy{level: 2, name: "two", fetch: returning("B")}
	l3 := &countingStrategy{level: 3, name: "three", fetch: returning("C")}
	m := NewManager(nil)
	m.Add(l3, true)
	m.Add(l1, true)
	m.Add(l2, true)

	res := m.Execute(context.Background(), models.RequestContext{Destination: "Cancun"}, "discovery")
	if res.Level != 1 || res.Source != "one" || len(res.Venues) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if l2.calls.Load() != 0 || l3.calls.Load() != 0 {
		t.Fatalf("levels 2/3 must not run, got %d/%d", l2.calls.Load(), l3.calls.Load())
	}
	if res.Metadata.FailedStage != "discovery" || len(res.Metadata.Attempts) != 1 {
		t.Fatalf("unexpected metadata %+v", res.Metadata)
	}
	if got := res.Venues[0].Metadata["fallback_level"]; got != 1 {
		t.Fatalf("fallback_level = %v", got)
	}
}

func TestExecute_AdvancesOnErrorEmptyAndPanic(t *testing.T) {
	l1 := &countingStrategy{level: 1, name: "empty", fetch: returning()}
	l2 := &countingStrategy{level: 2, name: "broken", fetch: failing(errors.New("quota"))}
	l3 := &countingStrategy{level: 3, name: "panics", fetch: func(context.Context, models.RequestContext) ([]*models.Venue, error) {
		panic("boom")
	}}
	l4 := &countingStrategy{level: 4, name: "last", fetch: returning("Z")}
	m := NewManager(nil)
	for _, s := range []*countingStrategy{l1, l2, l3, l4} {
		m.Add(s, true)
	}

	res := m.Execute(context.Background(), models.RequestContext{Destination: "Nowhere"}, "quality")
	if res.Level != 4 || res.Source != "last" {
		t.Fatalf("expected level 4, got %+v", res)
	}
	if len(res.Metadata.Attempts) != 4 {
		t.Fatalf("expected 4 attempts, got %+v", res.Metadata.Attempts)
	}
	for i, a := range res.Metadata.Attempts[:3] {
		if !a.Ran || a.Succeeded || a.Error == "" {
			t.Fatalf("attempt %d should have run and failed: %+v", i, a)
		}
	}
	if !strings.Contains(res.Metadata.Attempts[2].Error, "panicked") {
		t.Fatalf("panic not recorded: %+v", res.Metadata.Attempts[2])
	}
}

func TestExecute_ExhaustedIsEmptyLevelZero(t *testing.T) {
	m := NewManager(nil)
	m.Add(&countingStrategy{level: 1, name: "a", fetch: failing(errors.New("x"))}, true)
	disabled := &countingStrategy{level: 2, name: "b", fetch: returning("B")}
	m.Add(disabled, false)

	res := m.Execute(context.Background(), models.RequestContext{}, "discovery")
	if !res.Exhausted() || res.Level != 0 || res.Venues == nil || len(res.Venues) != 0 {
		t.Fatalf("expected empty level-0 result, got %+v", res)
	}
	if disabled.calls.Load() != 0 {
		t.Fatalf("disabled strategy ran")
	}
	if a := res.Metadata.Attempts[1]; a.Ran {
		t.Fatalf("disabled attempt should be Ran=false: %+v", a)
	}
}

func TestExecute_SetEnabled(t *testing.T) {
	l1 := &countingStrategy{level: 1, name: "a", fetch: returning("A")}
	m := NewManager(nil)
	m.Add(l1, true)
	m.SetEnabled(1, false)
	if res := m.Execute(context.Background(), models.RequestContext{}, "x"); !res.Exhausted() {
		t.Fatalf("disabled level served: %+v", res)
	}
	m.SetEnabled(1, true)
	if res := m.Execute(context.Background(), models.RequestContext{}, "x"); res.Level != 1 {
		t.Fatalf("re-enabled level did not serve: %+v", res)
	}
}

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	results map[models.VenueCategory][]*models.Venue
	fail    map[models.VenueCategory]error
}

func (f *fakeSearcher) SearchVenues(_ context.Context, q string, c models.VenueCategory) ([]*models.Venue, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if err := f.fail[c]; err != nil {
		return nil, err
	}
	return f.results[c], nil
}

func rated(name string, cat models.VenueCategory, rating float64, count int) *models.Venue {
	v := models.NewVenue(name, cat)
	v.Rating = rating
	v.RatingCount = count
	return v
}

func TestSearchStrategy_DedupeSortCap(t *testing.T) {
	fs := &fakeSearcher{results: map[models.VenueCategory][]*models.Venue{
		models.CategoryDining: {
			rated("Joe's Restaurant", models.CategoryDining, 4.2, 100),
			rated("Casa Rolandi", models.CategoryDining, 4.7, 900),
		},
		models.CategoryNightlife: {
			rated("Joes Restaurant", models.CategoryNightlife, 4.5, 50),
			rated("Mandala Bar", models.CategoryNightlife, 3.9, 10),
		},
	}}
	s := &SearchStrategy{Searcher: fs, MaxQueries: 2, MaxResults: 2}
	req := models.RequestContext{Destination: "Cancun", Categories: []models.VenueCategory{
		models.CategoryDining, models.CategoryNightlife, models.CategoryCulture,
	}}

	got, err := s.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(fs.queries) != 2 {
		t.Fatalf("expected 2 queries, got %v", fs.queries)
	}
	if len(got) != 2 || got[0].Name != "Casa Rolandi" || got[1].Name != "Joes Restaurant" {
		names := make([]string, len(got))
		for i, v := range got {
			names[i] = v.Name
		}
		t.Fatalf("unexpected merge order %v", names)
	}
}

func TestSearchStrategy_AllQueriesFail(t *testing.T) {
	fs := &fakeSearcher{fail: map[models.VenueCategory]error{
		models.CategoryDining: errors.New("quota"),
	}}
	s := &SearchStrategy{Searcher: fs, MaxQueries: 1}
	_, err := s.Fetch(context.Background(), models.RequestContext{
		Destination: "Cancun", Categories: []models.VenueCategory{models.CategoryDining},
	})
	if err == nil {
		t.Fatalf("expected error when every query fails")
	}
}

func TestGenericStrategy(t *testing.T) {
	got, err := GenericStrategy{}.Fetch(context.Background(), models.RequestContext{
		Destination: "Oaxaca", Categories: []models.VenueCategory{models.CategoryDining},
	})
	if err != nil || len(got) == 0 {
		t.Fatalf("generic: %v n=%d", err, len(got))
	}
	for _, v := range got {
		if !strings.HasPrefix(v.Name, "Oaxaca ") || v.Category != models.CategoryDining {
			t.Fatalf("unexpected venue %+v", v)
		}
		if v.ConfidenceScore < 40 {
			t.Fatalf("template venue below floor: %v", v.ConfidenceScore)
		}
	}
	if _, err := (GenericStrategy{}).Fetch(context.Background(), models.RequestContext{}); err == nil {
		t.Fatalf("expected error without destination")
	}
}

func TestNew_StandardHierarchy(t *testing.T) {
	data, err := curated.Load()
	if err != nil {
		t.Fatalf("load curated: %v", err)
	}
	m := New(Options{Curated: data, GenericEnabled: true, SearchEnabled: true})

	res := m.Execute(context.Background(), models.RequestContext{Destination: "Paris"}, "discovery")
	if res.Level != LevelCurated {
		t.Fatalf("expected curated level, got %+v", res.Metadata.Attempts)
	}
	res = m.Execute(context.Background(), models.RequestContext{Destination: "Reykjavik"}, "discovery")
	if res.Level != LevelGeneric {
		t.Fatalf("expected generic level, got %+v", res.Metadata.Attempts)
	}
	if a := res.Metadata.Attempts[1]; a.Ran {
		t.Fatalf("search without a searcher must not run: %+v", a)
	}
	for _, v := range res.Venues {
		if !strings.Contains(v.Name, "Reykjavik") {
			t.Fatalf("unexpected generic venue %s", v.Name)
		}
	}
}
