// Package curated serves a static destination -> venue table. It backs the
// lowest-priority discovery source and the first fallback level.
package curated

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"venue-discovery/internal/constants"
	"venue-discovery/internal/models"
	"venue-discovery/pkg/utils"
)

//go:embed destinations.yaml
var embedded []byte

// SignalWeight is the custom quality signal carried by hand-vetted venues.
const SignalWeight = 20.0

type Venue struct {
	Name        string  `yaml:"name"`
	Category    string  `yaml:"category"`
	Lat         float64 `yaml:"lat"`
	Lng         float64 `yaml:"lng"`
	Address     string  `yaml:"address"`
	PriceRange  string  `yaml:"price_range"`
	Rating      float64 `yaml:"rating"`
	Description string  `yaml:"description"`
}

type Destination struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
	Country string   `yaml:"country"`
	Venues  []Venue  `yaml:"venues"`
}

type file struct {
	Destinations []Destination `yaml:"destinations"`
}

// Dataset is immutable after Parse and safe for concurrent use.
type Dataset struct {
	destinations []Destination
	keys         [][]string // normalized name + aliases per destination
}

// Load parses the embedded dataset.
func Load() (*Dataset, error) { return Parse(embedded) }

// Parse reads a dataset in the destinations.yaml format.
func Parse(b []byte) (*Dataset, error) {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse curated dataset: %w", err)
	}
	d := &Dataset{destinations: f.Destinations, keys: make([][]string, len(f.Destinations))}
	for i, dest := range f.Destinations {
		if strings.TrimSpace(dest.Name) == "" {
			return nil, fmt.Errorf("curated destination %d has no name", i)
		}
		for j, v := range dest.Venues {
			if _, ok := models.ParseCategory(v.Category); !ok {
				return nil, fmt.Errorf("curated venue %s/%d: unknown category %q", dest.Name, j, v.Category)
			}
		}
		keys := []string{utils.NormalizeName(dest.Name)}
		for _, a := range dest.Aliases {
			keys = append(keys, utils.NormalizeName(a))
		}
		d.keys[i] = keys
	}
	return d, nil
}

// Destinations lists destination names in file order.
func (d *Dataset) Destinations() []string {
	out := make([]string, len(d.destinations))
	for i, dest := range d.destinations {
		out[i] = dest.Name
	}
	return out
}

// find prefers an exact name/alias match and falls back to the first
// substring match in either direction.
func (d *Dataset) find(destination string) (Destination, bool) {
	q := utils.NormalizeName(destination)
	if q == "" {
		return Destination{}, false
	}
	for i, keys := range d.keys {
		for _, k := range keys {
			if k == q {
				return d.destinations[i], true
			}
		}
	}
	for i, keys := range d.keys {
		for _, k := range keys {
			if strings.Contains(q, k) || strings.Contains(k, q) {
				return d.destinations[i], true
			}
		}
	}
	return Destination{}, false
}

// Lookup returns fresh venues for destination filtered to cats (all when
// empty). Unknown destinations yield nil.
func (d *Dataset) Lookup(destination string, cats []models.VenueCategory) []*models.Venue {
	dest, ok := d.find(destination)
	if !ok {
		return nil
	}
	want := models.RequestContext{Categories: cats}
	now := time.Now()
	var out []*models.Venue
	for _, cv := range dest.Venues {
		cat, _ := models.ParseCategory(cv.Category)
		if !want.WantsCategory(cat) {
			continue
		}
		v := models.NewVenue(cv.Name, cat)
		v.Description = cv.Description
		v.PriceRange = cv.PriceRange
		v.Rating = cv.Rating
		v.Location = &models.Location{Lat: cv.Lat, Lng: cv.Lng, Address: cv.Address}
		v.AddSource(models.VenueSource{
			Type:      models.SourceCurated,
			RawData:   map[string]any{"destination": dest.Name, "country": dest.Country},
			Timestamp: now,
		})
		v.Metadata["curated"] = true
		v.UpdateSignals(func(qs *models.QualitySignals) {
			qs.PassesNameValidation = true
			qs.HasRealLocation = true
			qs.HasValidBusinessInfo = cv.Address != ""
			qs.SetCustom("curated", 1, SignalWeight)
		})
		out = append(out, v)
	}
	return out
}

// Source exposes the dataset as a discovery source.
type Source struct {
	data *Dataset
}

func NewSource(d *Dataset) *Source { return &Source{data: d} }

func (s *Source) Name() string            { return "curated" }
func (s *Source) Type() models.SourceType { return models.SourceCurated }
func (s *Source) Priority() int           { return constants.PriorityCurated }

func (s *Source) Discover(ctx context.Context, req models.RequestContext) ([]*models.Venue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.data.Lookup(req.Destination, req.Categories), nil
}
