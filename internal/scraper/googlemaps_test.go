package scraper

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"googlemaps.github.io/maps"

	"venue-discovery/internal/models"
	errs "venue-discovery/pkg/errors"
	"venue-discovery/pkg/logging"
)

type fakePlaces struct {
	mu      sync.Mutex
	queries []string
	results map[string][]maps.PlacesSearchResult // keyed by a query substring
	fail    map[string]error
}

func (f *fakePlaces) TextSearch(ctx context.Context, r *maps.TextSearchRequest) (maps.PlacesSearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, r.Query)
	for k, err := range f.fail {
		if strings.Contains(r.Query, k) {
			return maps.PlacesSearchResponse{}, err
		}
	}
	for k, res := range f.results {
		if strings.Contains(r.Query, k) {
			return maps.PlacesSearchResponse{Results: res}, nil
		}
	}
	return maps.PlacesSearchResponse{}, nil
}

func place(id, name string, lat, lng float64, types ...string) maps.PlacesSearchResult {
	r := maps.PlacesSearchResult{
		PlaceID:          id,
		Name:             name,
		FormattedAddress: name + ", Cancun",
		Types:            types,
		Rating:           4.5,
		UserRatingsTotal: 120,
		PriceLevel:       2,
		BusinessStatus:   "OPERATIONAL",
	}
	r.Geometry.Location = maps.LatLng{Lat: lat, Lng: lng}
	return r
}

func TestSearch_ConvertsAndSkipsClosed(t *testing.T) {
	closed := place("p3", "Old Pier", 21.1, -86.8, "tourist_attraction")
	closed.BusinessStatus = "CLOSED_PERMANENTLY"
	fp := &fakePlaces{results: map[string][]maps.PlacesSearchResult{
		"restaurants": {place("p1", "Joe's Restaurant", 21.16191, -86.85152, "restaurant", "food"), closed},
	}}
	s := NewGoogleMapsSourceWithClient(fp, logging.Nop())

	got, err := s.SearchVenues(context.Background(), "restaurants in Cancun", models.CategoryDining)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected closed place to be skipped, got %d venues", len(got))
	}
	v := got[0]
	if v.Name != "Joe's Restaurant" || v.Category != models.CategoryDining || v.PriceRange != "$$" {
		t.Fatalf("unexpected venue %+v", v)
	}
	if v.Location == nil || v.Location.Address == "" || !v.HasSource(models.SourceSearch) {
		t.Fatalf("expected location and search source, got %+v", v)
	}
	qs := v.QualitySignals
	if !qs.HasRealLocation || !qs.HasUserRatings || !qs.HasRecentActivity || !qs.HasValidBusinessInfo {
		t.Fatalf("unexpected signals %+v", qs)
	}
	if v.ConfidenceScore != qs.Composite() {
		t.Fatalf("confidence %v not recomputed from signals (%v)", v.ConfidenceScore, qs.Composite())
	}
}

func TestDiscover_PerCategoryQueriesPartialFailure(t *testing.T) {
	fp := &fakePlaces{
		results: map[string][]maps.PlacesSearchResult{
			"restaurants": {place("p1", "Joe's Restaurant", 21.16, -86.85, "restaurant")},
			"museums":     {place("p2", "Museo Maya", 21.07, -86.77, "museum"), place("p1", "Joe's Restaurant", 21.16, -86.85, "restaurant")},
		},
		fail: map[string]error{"nightlife": errors.New("quota")},
	}
	s := NewGoogleMapsSourceWithClient(fp, logging.Nop())
	req := models.RequestContext{
		Destination: "Cancun",
		Categories:  []models.VenueCategory{models.CategoryDining, models.CategoryCulture, models.CategoryNightlife},
	}
	got, err := s.Discover(context.Background(), req)
	if err != nil {
		t.Fatalf("partial failure should not error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected place ids to be deduplicated, got %d", len(got))
	}
	if len(fp.queries) != 3 {
		t.Fatalf("expected one query per category, got %v", fp.queries)
	}
	for _, q := range fp.queries {
		if !strings.HasSuffix(q, "in Cancun") {
			t.Fatalf("query %q should end with the destination", q)
		}
	}
}

func TestDiscover_AllFail(t *testing.T) {
	fp := &fakePlaces{fail: map[string]error{"Cancun": errors.New("down")}}
	s := NewGoogleMapsSourceWithClient(fp, logging.Nop())
	_, err := s.Discover(context.Background(), models.RequestContext{
		Destination: "Cancun",
		Categories:  []models.VenueCategory{models.CategoryDining},
	})
	if !errs.Is(err, errs.ErrExternal) {
		t.Fatalf("expected external error, got %v", err)
	}
	if _, err := s.Discover(context.Background(), models.RequestContext{}); !errs.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error for empty destination, got %v", err)
	}
}

func TestCategoryFromTypes(t *testing.T) {
	tests := []struct {
		types []string
		want  models.VenueCategory
		ok    bool
	}{
		{[]string{"bar", "restaurant"}, models.CategoryDining, true},
		{[]string{"point_of_interest", "museum"}, models.CategoryCulture, true},
		{[]string{"lodging"}, models.CategoryAccommodation, true},
		{[]string{"establishment"}, "", false},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.types, ","), func(t *testing.T) {
			got, ok := categoryFromTypes(tt.types)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("got (%q,%v), want (%q,%v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestPlaceToVenue_NullIslandHasNoLocation(t *testing.T) {
	v := placeToVenue(RawPlace{Name: "Somewhere", Types: []string{"park"}}, "")
	if v.Location != nil || v.QualitySignals.HasRealLocation {
		t.Fatalf("0,0 must not count as a real location: %+v", v)
	}
	if v.Category != models.CategoryNature {
		t.Fatalf("category = %q", v.Category)
	}
}
