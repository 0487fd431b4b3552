package models

import (
	"math"
	"testing"
	"time"
)

func TestAddSourceReplacesSameTypeInPlace(t *testing.T) {
	v := NewVenue(" Joe's Restaurant ", CategoryDining)
	if v.Name != "Joe's Restaurant" || v.ID == "" {
		t.Fatalf("unexpected venue: %+v", v)
	}
	v.AddSource(VenueSource{Type: SourceSocial, RawData: map[string]any{"post": 1}})
	v.AddSource(VenueSource{Type: SourceSearch})
	v.AddSource(VenueSource{Type: SourceSocial, RawData: map[string]any{"post": 2}})

	if len(v.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(v.Sources))
	}
	if v.Sources[0].Type != SourceSocial || v.Sources[0].RawData["post"] != 2 {
		t.Fatalf("replacement should keep position: %+v", v.Sources)
	}
	if v.PrimarySource() != SourceSocial || !v.HasSource(SourceSearch) || v.HasSource(SourceAI) {
		t.Fatalf("unexpected source lookups")
	}
}

func TestCompositeBounds(t *testing.T) {
	cases := []struct {
		name string
		qs   QualitySignals
		want float64
	}{
		{"zero", QualitySignals{}, 0},
		{"negative sentiment ignored", QualitySignals{SentimentScore: -1}, 0},
		{"mentions capped", QualitySignals{MentionFrequency: 50}, 20},
		{"everything", QualitySignals{
			MentionFrequency: 9, SentimentScore: 3, HasRealLocation: true, HasValidBusinessInfo: true,
			PassesNameValidation: true, CrossSourceVerified: true, HasUserRatings: true, HasRecentActivity: true,
		}, 100},
		{"huge custom", QualitySignals{Custom: map[string]CustomSignal{"x": {Value: 1e9, Weight: 2}}}, 100},
		{"negative custom", QualitySignals{HasRealLocation: true, Custom: map[string]CustomSignal{"x": {Value: -10, Weight: 5}}}, 0},
		{"nan custom skipped", QualitySignals{HasRealLocation: true, Custom: map[string]CustomSignal{"x": {Value: math.NaN(), Weight: 1}}}, 15},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.qs.Composite(); got != tc.want {
				t.Fatalf("Composite() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSignalMutationRecomputesScore(t *testing.T) {
	v := NewVenue("Museo Maya", CategoryCulture)
	v.UpdateSignals(func(qs *QualitySignals) {
		qs.HasRealLocation = true
		qs.SetCustom("editorial", 1, 7)
	})
	if v.ConfidenceScore != 22 {
		t.Fatalf("score = %v, want 22", v.ConfidenceScore)
	}
	v.SetSignals(QualitySignals{})
	if v.ConfidenceScore != 0 {
		t.Fatalf("score = %v after reset", v.ConfidenceScore)
	}
}

func TestCloneIsDeep(t *testing.T) {
	v := NewVenue("Playa Norte", CategoryNature)
	v.Location = &Location{Lat: 21.25, Lng: -86.75}
	v.Metadata["k"] = "v"
	v.AddSource(VenueSource{Type: SourceCurated, RawData: map[string]any{"a": 1}})
	v.QualitySignals.SetCustom("c", 1, 1)

	c := v.Clone()
	c.Location.Lat = 0
	c.Metadata["k"] = "changed"
	c.Sources[0].RawData["a"] = 2
	c.QualitySignals.Custom["c"] = CustomSignal{Value: 9}

	if v.Location.Lat != 21.25 || v.Metadata["k"] != "v" || v.Sources[0].RawData["a"] != 1 || v.QualitySignals.Custom["c"].Value != 1 {
		t.Fatalf("clone shares state with original")
	}
}

func TestLocationValid(t *testing.T) {
	var nilLoc *Location
	cases := []struct {
		loc  *Location
		want bool
	}{
		{nilLoc, false},
		{&Location{Lat: 90, Lng: 180}, true},
		{&Location{Lat: -90.01, Lng: 0}, false},
		{&Location{Lat: 0, Lng: 181}, false},
	}
	for _, tc := range cases {
		if got := tc.loc.Valid(); got != tc.want {
			t.Errorf("Valid(%+v) = %v", tc.loc, got)
		}
	}
}

func TestProcessingResultTransitions(t *testing.T) {
	r := NewProcessingResult("discovery")
	r.Start()
	if r.Status != StatusProcessing || r.Status.IsTerminal() {
		t.Fatalf("unexpected status %s", r.Status)
	}
	r.Complete(3, time.Millisecond)
	r.Fail(nil, time.Second)
	if r.Status != StatusCompleted || r.Elapsed != time.Millisecond {
		t.Fatalf("terminal result should not change: %+v", r)
	}
}

func TestRequestHelpers(t *testing.T) {
	start := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	req := RequestContext{
		Destination: " Cancun ",
		Categories:  []VenueCategory{CategoryNature, CategoryDining},
		StartDate:   start,
		EndDate:     start.AddDate(0, 0, 4),
		Budget:      BudgetMedium,
	}
	if req.TripDays() != 5 {
		t.Fatalf("trip days = %d", req.TripDays())
	}
	if req.CacheKey() != "cancun|dining,nature|medium|2026-11-01|2026-11-05" {
		t.Fatalf("cache key = %q", req.CacheKey())
	}
	if !req.WantsCategory(CategoryDining) || req.WantsCategory(CategoryNightlife) {
		t.Fatalf("category filter wrong")
	}
	if (RequestContext{}).TripDays() != 1 || !(RequestContext{}).WantsCategory(CategoryNightlife) {
		t.Fatalf("empty request defaults wrong")
	}
	if PriceLevel("$$$") != 3 || BudgetMedium.MaxPriceLevel() != 2 {
		t.Fatalf("price helpers wrong")
	}
}

func TestRecommendationTagsAreASet(t *testing.T) {
	r := Recommendation{}
	r.AddTag("beach")
	r.AddTag("beach")
	r.AddTag("")
	r.AddReason("Popular")
	r.AddReason("Popular")
	if len(r.Tags) != 1 || len(r.Reasons) != 1 {
		t.Fatalf("unexpected %+v", r)
	}
	if !r.FitsSlot(SlotNight) {
		t.Fatalf("empty slots means any slot")
	}
	r.TimeSlots = []TimeSlot{SlotMorning}
	if r.FitsSlot(SlotNight) {
		t.Fatalf("night should not fit")
	}
}
