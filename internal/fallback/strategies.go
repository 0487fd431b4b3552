package fallback

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"venue-discovery/internal/constants"
	"venue-discovery/internal/curated"
	"venue-discovery/internal/models"
	errs "venue-discovery/pkg/errors"
	"venue-discovery/pkg/logging"
	"venue-discovery/pkg/utils"
)

const (
	LevelCurated = 1
	LevelSearch  = 2
	LevelGeneric = 3
)

// Searcher is an external venue search capability.
type Searcher interface {
	SearchVenues(ctx context.Context, query string, category models.VenueCategory) ([]*models.Venue, error)
}

type Options struct {
	Curated        *curated.Dataset
	Searcher       Searcher
	SearchEnabled  bool
	GenericEnabled bool
	MaxQueries     int
	MaxResults     int
	Logger         *logging.ComponentLogger
}

// New builds the standard curated -> search -> generic hierarchy. A nil
// dataset or searcher leaves that level disabled.
func New(opts Options) *Manager {
	m := NewManager(opts.Logger)
	m.Add(&CuratedStrategy{Data: opts.Curated}, opts.Curated != nil)
	m.Add(&SearchStrategy{
		Searcher:   opts.Searcher,
		MaxQueries: opts.MaxQueries,
		MaxResults: opts.MaxResults,
	}, opts.SearchEnabled && opts.Searcher != nil)
	m.Add(&GenericStrategy{}, opts.GenericEnabled)
	return m
}

// CuratedStrategy serves the static destination table.
type CuratedStrategy struct {
	Data *curated.Dataset
}

func (s *CuratedStrategy) Level() int   { return LevelCurated }
func (s *CuratedStrategy) Name() string { return "curated" }

func (s *CuratedStrategy) Fetch(ctx context.Context, req models.RequestContext) ([]*models.Venue, error) {
	if s.Data == nil {
		return nil, errs.NewBiz("fallback.curated", "no dataset", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Data.Lookup(req.Destination, req.Categories), nil
}

// defaultSearchCategories are queried when the request names none.
var defaultSearchCategories = []models.VenueCategory{
	models.CategoryAttraction, models.CategoryDining, models.CategoryCulture,
	models.CategoryNature, models.CategoryNightlife, models.CategoryShopping,
}

var searchTerms = map[models.VenueCategory]string{
	models.CategoryDining:         "restaurants",
	models.CategoryCulture:        "museums",
	models.CategoryNature:         "parks and beaches",
	models.CategoryShopping:       "markets",
	models.CategoryNightlife:      "bars",
	models.CategoryAccommodation:  "hotels",
	models.CategoryTransportation: "transit stations",
	models.CategoryWellness:       "spas",
	models.CategoryAttraction:     "tourist attractions",
}

// SearchStrategy issues category-derived queries concurrently and merges
// the results deterministically.
type SearchStrategy struct {
	Searcher   Searcher
	MaxQueries int
	MaxResults int
}

func (s *SearchStrategy) Level() int   { return LevelSearch }
func (s *SearchStrategy) Name() string { return "external-search" }

type searchQuery struct {
	text     string
	category models.VenueCategory
}

// queries derives at most MaxQueries search queries for req.
func (s *SearchStrategy) queries(req models.RequestContext) []searchQuery {
	limit := s.MaxQueries
	if limit <= 0 {
		limit = constants.FallbackMaxQueriesDefault
	}
	cats := req.Categories
	if len(cats) == 0 {
		cats = defaultSearchCategories
	}
	var out []searchQuery
	for _, c := range cats {
		if len(out) == limit {
			break
		}
		term, ok := searchTerms[c]
		if !ok {
			continue
		}
		out = append(out, searchQuery{text: fmt.Sprintf("best %s in %s", term, req.Destination), category: c})
	}
	return out
}

func (s *SearchStrategy) Fetch(ctx context.Context, req models.RequestContext) ([]*models.Venue, error) {
	if s.Searcher == nil {
		return nil, errs.NewBiz("fallback.search", "no searcher", nil)
	}
	if strings.TrimSpace(req.Destination) == "" {
		return nil, errs.NewValidation("fallback.search", "destination required", nil)
	}
	qs := s.queries(req)
	results := make([][]*models.Venue, len(qs))
	failures := make([]error, len(qs))

	var g errgroup.Group
	for i, q := range qs {
		g.Go(func() error {
			vs, err := s.Searcher.SearchVenues(ctx, q.text, q.category)
			if err != nil {
				failures[i] = err
				return nil
			}
			results[i] = vs
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	var firstErr error
	for _, err := range failures {
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if len(qs) > 0 && failed == len(qs) {
		return nil, errs.NewExternal("fallback.search", "search", "every query failed", firstErr)
	}
	return s.merge(results), nil
}

// merge dedupes by normalized name keeping the better-rated record, sorts
// by rating, rating count and name, then caps at MaxResults.
func (s *SearchStrategy) merge(batches [][]*models.Venue) []*models.Venue {
	byName := map[string]*models.Venue{}
	for _, batch := range batches {
		for _, v := range batch {
			if v == nil {
				continue
			}
			key := utils.NormalizeName(v.Name)
			if key == "" {
				continue
			}
			if prev, ok := byName[key]; !ok || better(v, prev) {
				byName[key] = v
			}
		}
	}
	out := make([]*models.Venue, 0, len(byName))
	for _, v := range byName {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })

	limit := s.MaxResults
	if limit <= 0 {
		limit = constants.FallbackMaxResultsDefault
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func better(a, b *models.Venue) bool {
	if a.Rating != b.Rating {
		return a.Rating > b.Rating
	}
	if a.RatingCount != b.RatingCount {
		return a.RatingCount > b.RatingCount
	}
	return a.Name < b.Name
}
