package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"venue-discovery/internal/constants"
	"venue-discovery/internal/models"
	errs "venue-discovery/pkg/errors"
)

type fakeSource struct {
	name     string
	typ      models.SourceType
	priority int
	venues   func() []*models.Venue
	err      error
	block    bool
	panics   bool
}

func (f *fakeSource) Name() string            { return f.name }
func (f *fakeSource) Type() models.SourceType { return f.typ }
func (f *fakeSource) Priority() int           { return f.priority }

func (f *fakeSource) Discover(ctx context.Context, _ models.RequestContext) ([]*models.Venue, error) {
	if f.panics {
		panic("source exploded")
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.venues(), nil
}

func venueAt(name string, cat models.VenueCategory, st models.SourceType, lat, lng float64) *models.Venue {
	v := models.NewVenue(name, cat)
	v.Location = &models.Location{Lat: lat, Lng: lng}
	v.AddSource(models.VenueSource{Type: st})
	return v
}

func joesSources() (*fakeSource, *fakeSource) {
	search := &fakeSource{name: "maps", typ: models.SourceSearch, priority: constants.PrioritySearch, venues: func() []*models.Venue {
		v := venueAt("Joe's Restaurant", models.CategoryDining, models.SourceSearch, 21.16191, -86.85152)
		v.Rating, v.RatingCount = 4.4, 320
		return []*models.Venue{v}
	}}
	social := &fakeSource{name: "feeds", typ: models.SourceSocial, priority: constants.PrioritySocial, venues: func() []*models.Venue {
		v := venueAt("Joes Restaurant", models.CategoryDining, models.SourceSocial, 21.16193, -86.85155)
		v.Description = "Locals love the tacos."
		v.UpdateSignals(func(qs *models.QualitySignals) {
			qs.MentionFrequency = 3
			qs.SentimentScore = 0.8
		})
		return []*models.Venue{v}
	}}
	return search, social
}

func TestDiscover_MergesDuplicateAcrossSources(t *testing.T) {
	search, social := joesSources()
	orders := map[string][]Source{
		"search first": {search, social},
		"social first": {social, search},
	}
	for name, sources := range orders {
		t.Run(name, func(t *testing.T) {
			e := NewEngine(Options{}, sources...)
			res, err := e.Discover(context.Background(), models.RequestContext{Destination: "Cancun"})
			if err != nil {
				t.Fatalf("discover: %v", err)
			}
			if len(res.Venues) != 1 {
				t.Fatalf("expected one merged venue, got %d", len(res.Venues))
			}
			v := res.Venues[0]
			if v.Name != "Joe's Restaurant" || v.PrimarySource() != models.SourceSearch {
				t.Fatalf("higher-priority record should win, got %q from %s", v.Name, v.PrimarySource())
			}
			if !v.HasSource(models.SourceSocial) {
				t.Fatalf("loser's source not absorbed: %+v", v.Sources)
			}
			qs := v.QualitySignals
			if !qs.CrossSourceVerified || qs.MentionFrequency != 3 || qs.SentimentScore != 0.8 {
				t.Fatalf("unexpected merged signals %+v", qs)
			}
			if v.Description == "" {
				t.Fatalf("missing fields should be filled from the loser")
			}
			if res.Metadata.Discovered != 2 || res.Metadata.Merged != 1 {
				t.Fatalf("unexpected metadata %+v", res.Metadata)
			}
		})
	}
}

func TestDiscover_DoesNotMutateSourceVenues(t *testing.T) {
	shared := venueAt("Casa Rolandi", models.CategoryDining, models.SourceSearch, 21.1, -86.8)
	dup := venueAt("Casa Rolandi", models.CategoryDining, models.SourceSocial, 21.1, -86.8)
	a := &fakeSource{name: "a", priority: 3, venues: func() []*models.Venue { return []*models.Venue{shared} }}
	b := &fakeSource{name: "b", priority: 2, venues: func() []*models.Venue { return []*models.Venue{dup} }}

	if _, err := NewEngine(Options{}, a, b).Discover(context.Background(), models.RequestContext{}); err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(shared.Sources) != 1 || shared.QualitySignals.CrossSourceVerified {
		t.Fatalf("source-owned venue was mutated: %+v", shared)
	}
}

func TestDiscover_KeepsDistinctLocations(t *testing.T) {
	src := &fakeSource{name: "maps", priority: 3, venues: func() []*models.Venue {
		return []*models.Venue{
			venueAt("Starbucks", models.CategoryDining, models.SourceSearch, 21.1600, -86.8500),
			venueAt("Starbucks", models.CategoryDining, models.SourceSearch, 21.1700, -86.8600),
		}
	}}
	res, err := NewEngine(Options{}, src).Discover(context.Background(), models.RequestContext{})
	if err != nil || len(res.Venues) != 2 {
		t.Fatalf("branches in different cells must stay separate: n=%d err=%v", len(res.Venues), err)
	}
}

func TestDiscover_Errors(t *testing.T) {
	t.Run("no sources", func(t *testing.T) {
		_, err := NewEngine(Options{}).Discover(context.Background(), models.RequestContext{})
		if !errs.Is(err, errs.ErrNoSources) {
			t.Fatalf("expected ErrNoSources, got %v", err)
		}
	})
	t.Run("all disabled", func(t *testing.T) {
		e := NewEngine(Options{}, &fakeSource{name: "a", venues: func() []*models.Venue { return nil }})
		if !e.SetEnabled("a", false) {
			t.Fatalf("SetEnabled should find source")
		}
		if _, err := e.Discover(context.Background(), models.RequestContext{}); !errs.Is(err, errs.ErrNoSources) {
			t.Fatalf("expected ErrNoSources, got %v", err)
		}
	})
	t.Run("all failed", func(t *testing.T) {
		e := NewEngine(Options{},
			&fakeSource{name: "a", err: errors.New("quota")},
			&fakeSource{name: "b", panics: true},
		)
		observed := e.mDuration.Count()
		res, err := e.Discover(context.Background(), models.RequestContext{})
		if e.mDuration.Count() != observed+1 {
			t.Fatalf("failed run latency not observed")
		}
		if !errs.Is(err, errs.ErrAllSourcesFailed) {
			t.Fatalf("expected ErrAllSourcesFailed, got %v", err)
		}
		if res.Venues == nil || len(res.Metadata.Sources) != 2 {
			t.Fatalf("metadata should describe every source: %+v", res.Metadata)
		}
	})
}

func TestDiscover_PartialFailureIsTolerated(t *testing.T) {
	good := &fakeSource{name: "good", priority: 1, venues: func() []*models.Venue {
		return []*models.Venue{venueAt("Museo Maya", models.CategoryCulture, models.SourceCurated, 21.07, -86.78)}
	}}
	slow := &fakeSource{name: "slow", priority: 3, block: true}
	boom := &fakeSource{name: "boom", priority: 2, panics: true}

	e := NewEngine(Options{SourceTimeout: 30 * time.Millisecond}, good, slow, boom)
	start := time.Now()
	res, err := e.Discover(context.Background(), models.RequestContext{})
	if err != nil {
		t.Fatalf("partial failure should not error: %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("per-source timeout not applied")
	}
	if len(res.Venues) != 1 || res.Venues[0].Name != "Museo Maya" {
		t.Fatalf("unexpected venues %+v", res.Venues)
	}
	failed := 0
	for _, r := range res.Metadata.Sources {
		if r.Error != "" {
			failed++
		}
	}
	if failed != 2 {
		t.Fatalf("expected 2 failed reports, got %+v", res.Metadata.Sources)
	}
}

func TestDiscover_FiltersRequestedCategories(t *testing.T) {
	src := &fakeSource{name: "a", priority: 3, venues: func() []*models.Venue {
		return []*models.Venue{
			venueAt("Coco Bongo", models.CategoryNightlife, models.SourceSearch, 21.13, -86.74),
			venueAt("La Habichuela", models.CategoryDining, models.SourceSearch, 21.16, -86.82),
		}
	}}
	res, err := NewEngine(Options{}, src).Discover(context.Background(), models.RequestContext{
		Categories: []models.VenueCategory{models.CategoryDining},
	})
	if err != nil || len(res.Venues) != 1 || res.Venues[0].Category != models.CategoryDining {
		t.Fatalf("category filter not applied: %+v err=%v", res.Venues, err)
	}
}

func TestScore(t *testing.T) {
	top := models.NewVenue("Top", models.CategoryDining)
	top.RatingCount, top.Rating, top.AnalysisScore = 5000, 5, 100

	tests := []struct {
		name     string
		v        *models.Venue
		priority int
		want     float64
	}{
		{"empty curated", models.NewVenue("Empty", models.CategoryDining), 0, 0},
		{"saturated", top, constants.PrioritySearch, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.v, tt.priority); got != tt.want {
				t.Fatalf("Score = %v, want %v", got, tt.want)
			}
		})
	}

	mid := models.NewVenue("Mid", models.CategoryDining)
	mid.Rating = 4
	if got := Score(mid, constants.PrioritySocial); got < 22.6 || got > 22.7 {
		t.Fatalf("rating 4 + social bonus = %v, want ~22.67", got)
	}
}

func TestDiversify(t *testing.T) {
	var rs []ranked
	for i := 0; i < 10; i++ {
		rs = append(rs, ranked{venue: models.NewVenue(fmt.Sprintf("Dining %02d", i), models.CategoryDining), score: float64(90 - i)})
	}
	rs = append(rs,
		ranked{venue: models.NewVenue("Culture A", models.CategoryCulture), score: 20},
		ranked{venue: models.NewVenue("Culture B", models.CategoryCulture), score: 10},
	)

	got := diversify(rs, 4)
	if len(got) != 4 {
		t.Fatalf("expected 4, got %d", len(got))
	}
	counts := map[models.VenueCategory]int{}
	for _, r := range got {
		counts[r.venue.Category]++
	}
	if counts[models.CategoryDining] != 2 || counts[models.CategoryCulture] != 2 {
		t.Fatalf("per-category cap not applied: %v", counts)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].score < got[i].score {
			t.Fatalf("result not sorted by score")
		}
	}

	// The cap relaxes once 80% of the limit is filled.
	got = diversify(rs, 10)
	if len(got) != 10 {
		t.Fatalf("expected 10, got %d", len(got))
	}
	counts = map[models.VenueCategory]int{}
	for _, r := range got {
		counts[r.venue.Category]++
	}
	if counts[models.CategoryCulture] != 2 || counts[models.CategoryDining] != 8 {
		t.Fatalf("unexpected relaxed mix: %v", counts)
	}

	// After relaxing, a deferred venue still beats a weaker later one.
	mixed := []ranked{
		{venue: models.NewVenue("Dining 1", models.CategoryDining), score: 90},
		{venue: models.NewVenue("Dining 2", models.CategoryDining), score: 89},
		{venue: models.NewVenue("Dining 3", models.CategoryDining), score: 88},
		{venue: models.NewVenue("Dining 4", models.CategoryDining), score: 87},
		{venue: models.NewVenue("Culture 1", models.CategoryCulture), score: 10},
		{venue: models.NewVenue("Dining 5", models.CategoryDining), score: 5},
	}
	got = diversify(mixed, 5)
	names := make([]string, 0, len(got))
	for _, r := range got {
		names = append(names, r.venue.Name)
	}
	if want := "Dining 1,Dining 2,Dining 3,Dining 4,Culture 1"; strings.Join(names, ",") != want {
		t.Fatalf("relaxed fill = %v, want %s", names, want)
	}

	if got := diversify(nil, 5); got == nil || len(got) != 0 {
		t.Fatalf("empty input should give empty slice")
	}
}

func TestMergeKey(t *testing.T) {
	a := venueAt("The Joe's Café", models.CategoryDining, models.SourceSearch, 21.16191, -86.85152)
	b := venueAt("joes cafe", models.CategoryDining, models.SourceSocial, 21.16193, -86.85155)
	if MergeKey(a) != MergeKey(b) {
		t.Fatalf("keys differ: %q vs %q", MergeKey(a), MergeKey(b))
	}
	noLoc := models.NewVenue("Joe's Café", models.CategoryDining)
	if got := MergeKey(noLoc); got != "joes cafe|-" {
		t.Fatalf("MergeKey without location = %q", got)
	}
}
