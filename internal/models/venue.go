package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// VenueCategory is the closed set of itinerary categories.
type VenueCategory string

const (
	CategoryDining         VenueCategory = "dining"
	CategoryCulture        VenueCategory = "culture"
	CategoryNature         VenueCategory = "nature"
	CategoryShopping       VenueCategory = "shopping"
	CategoryNightlife      VenueCategory = "nightlife"
	CategoryAccommodation  VenueCategory = "accommodation"
	CategoryTransportation VenueCategory = "transportation"
	CategoryWellness       VenueCategory = "wellness"
	CategoryAttraction     VenueCategory = "attraction"
)

var allCategories = []VenueCategory{
	CategoryDining, CategoryCulture, CategoryNature, CategoryShopping, CategoryNightlife,
	CategoryAccommodation, CategoryTransportation, CategoryWellness, CategoryAttraction,
}

// AllCategories returns every category in declaration order.
func AllCategories() []VenueCategory {
	out := make([]VenueCategory, len(allCategories))
	copy(out, allCategories)
	return out
}

func (c VenueCategory) IsValid() bool {
	for _, k := range allCategories {
		if k == c {
			return true
		}
	}
	return false
}

// ParseCategory accepts any casing and surrounding whitespace.
func ParseCategory(s string) (VenueCategory, bool) {
	c := VenueCategory(strings.ToLower(strings.TrimSpace(s)))
	return c, c.IsValid()
}

// SourceType identifies where a venue record came from.
type SourceType string

const (
	SourceSearch   SourceType = "search"
	SourceSocial   SourceType = "social"
	SourceCurated  SourceType = "curated"
	SourceFallback SourceType = "fallback"
	SourceAI       SourceType = "ai"
)

// VenueSource is one provenance record on a venue.
type VenueSource struct {
	Type      SourceType     `json:"type"`
	RawData   map[string]any `json:"raw_data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Location is a geocoded point with an optional display address.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// Valid reports whether the coordinates are within WGS84 bounds.
func (l *Location) Valid() bool {
	if l == nil {
		return false
	}
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

type Venue struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Category        VenueCategory  `json:"category"`
	ConfidenceScore float64        `json:"confidence_score"`
	Sources         []VenueSource  `json:"sources"`
	Location        *Location      `json:"location,omitempty"`
	PriceRange      string         `json:"price_range,omitempty"` // "$".."$$$$"
	Description     string         `json:"description,omitempty"`
	Phone           string         `json:"phone,omitempty"`
	Website         string         `json:"website,omitempty"`
	Rating          float64        `json:"rating,omitempty"` // 0..5
	RatingCount     int            `json:"rating_count,omitempty"`
	AnalysisScore   float64        `json:"analysis_score,omitempty"` // 0..100, external analysis
	QualitySignals  QualitySignals `json:"quality_signals"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// NewVenue creates a venue with a fresh id.
func NewVenue(name string, category VenueCategory) *Venue {
	now := time.Now()
	return &Venue{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Category:  category,
		Metadata:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddSource appends a provenance record. A type already present is replaced
// in place so discovery order is kept.
func (v *Venue) AddSource(src VenueSource) {
	if src.Timestamp.IsZero() {
		src.Timestamp = time.Now()
	}
	for i := range v.Sources {
		if v.Sources[i].Type == src.Type {
			v.Sources[i] = src
			v.touch()
			return
		}
	}
	v.Sources = append(v.Sources, src)
	v.touch()
}

// HasSource reports whether a source of type t is attached.
func (v *Venue) HasSource(t SourceType) bool {
	for _, s := range v.Sources {
		if s.Type == t {
			return true
		}
	}
	return false
}

// PrimarySource is the first discovered source type, or "" when none.
func (v *Venue) PrimarySource() SourceType {
	if len(v.Sources) == 0 {
		return ""
	}
	return v.Sources[0].Type
}

// SetSignals replaces the quality signals and recomputes the score.
func (v *Venue) SetSignals(qs QualitySignals) {
	v.QualitySignals = qs
	v.Recompute()
}

// UpdateSignals mutates the signals in place and recomputes the score.
func (v *Venue) UpdateSignals(fn func(qs *QualitySignals)) {
	fn(&v.QualitySignals)
	v.Recompute()
}

// Recompute sets ConfidenceScore from the quality signals.
func (v *Venue) Recompute() {
	v.ConfidenceScore = v.QualitySignals.Composite()
	v.touch()
}

// HasBusinessInfo reports whether any contact detail is present.
func (v *Venue) HasBusinessInfo() bool {
	return v.Phone != "" || v.Website != "" || (v.Location != nil && v.Location.Address != "")
}

func (v *Venue) touch() { v.UpdatedAt = time.Now() }

// Clone returns a deep copy safe to mutate independently.
func (v *Venue) Clone() *Venue {
	if v == nil {
		return nil
	}
	c := *v
	if v.Sources != nil {
		c.Sources = make([]VenueSource, len(v.Sources))
		for i, s := range v.Sources {
			c.Sources[i] = VenueSource{Type: s.Type, Timestamp: s.Timestamp, RawData: cloneMap(s.RawData)}
		}
	}
	if v.Location != nil {
		loc := *v.Location
		c.Location = &loc
	}
	c.Metadata = cloneMap(v.Metadata)
	c.QualitySignals = v.QualitySignals.Clone()
	return &c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, val := range m {
		out[k] = val
	}
	return out
}

// CloneVenues deep-copies a slice of venues.
func CloneVenues(in []*Venue) []*Venue {
	if in == nil {
		return nil
	}
	out := make([]*Venue, len(in))
	for i, v := range in {
		out[i] = v.Clone()
	}
	return out
}
