package curated

import (
	"context"
	"testing"

	"venue-discovery/internal/models"
)

func TestLoadEmbedded(t *testing.T) {
	d, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(d.Destinations()) < 5 {
		t.Fatalf("expected several destinations, got %v", d.Destinations())
	}
}

func TestLookup(t *testing.T) {
	d, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	tests := []struct {
		name        string
		destination string
		cats        []models.VenueCategory
		wantAny     bool
	}{
		{"exact", "Cancun", nil, true},
		{"accent and case", "CANCÚN", nil, true},
		{"alias", "CDMX", nil, true},
		{"substring", "Tulum, Quintana Roo", nil, true},
		{"unknown", "Atlantis", nil, false},
		{"empty", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Lookup(tt.destination, tt.cats)
			if (len(got) > 0) != tt.wantAny {
				t.Fatalf("Lookup(%q) returned %d venues", tt.destination, len(got))
			}
		})
	}
}

func TestLookup_CategoryFilterAndShape(t *testing.T) {
	d, _ := Load()
	got := d.Lookup("Cancun", []models.VenueCategory{models.CategoryDining})
	if len(got) == 0 {
		t.Fatalf("expected dining venues")
	}
	for _, v := range got {
		if v.Category != models.CategoryDining {
			t.Fatalf("unexpected category %s", v.Category)
		}
		if !v.HasSource(models.SourceCurated) || !v.Location.Valid() || v.ID == "" {
			t.Fatalf("venue not fully populated: %+v", v)
		}
	}
	again := d.Lookup("Cancun", []models.VenueCategory{models.CategoryDining})
	if again[0] == got[0] || again[0].ID == got[0].ID {
		t.Fatalf("Lookup must return fresh venues")
	}
}

func TestParseRejectsUnknownCategory(t *testing.T) {
	_, err := Parse([]byte("destinations:\n  - name: X\n    venues:\n      - name: Y\n        category: spaceport\n"))
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestSource(t *testing.T) {
	d, _ := Load()
	s := NewSource(d)
	if s.Priority() != 1 || s.Type() != models.SourceCurated {
		t.Fatalf("unexpected source identity")
	}
	got, err := s.Discover(context.Background(), models.RequestContext{Destination: "Paris"})
	if err != nil || len(got) == 0 {
		t.Fatalf("discover: %v, n=%d", err, len(got))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Discover(ctx, models.RequestContext{Destination: "Paris"}); err == nil {
		t.Fatalf("expected ctx error")
	}
}
