package scraper

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"googlemaps.github.io/maps"

	"venue-discovery/internal/constants"
	"venue-discovery/internal/models"
	"venue-discovery/pkg/circuit"
	errs "venue-discovery/pkg/errors"
	"venue-discovery/pkg/geography"
	"venue-discovery/pkg/logging"
)

// PlacesClient is the subset of *maps.Client used for place search.
type PlacesClient interface {
	TextSearch(ctx context.Context, r *maps.TextSearchRequest) (maps.PlacesSearchResponse, error)
}

// RawPlace is one place search hit before it becomes a venue.
type RawPlace struct {
	PlaceID        string
	Name           string
	Address        string
	Lat            float64
	Lng            float64
	Types          []string
	Rating         float64
	RatingCount    int
	PriceLevel     int
	BusinessStatus string
}

// query words per category for place search
var categoryQueries = map[models.VenueCategory]string{
	models.CategoryDining:         "restaurants",
	models.CategoryCulture:        "museums and galleries",
	models.CategoryNature:         "parks and beaches",
	models.CategoryShopping:       "markets and shopping",
	models.CategoryNightlife:      "bars and nightlife",
	models.CategoryAccommodation:  "hotels",
	models.CategoryTransportation: "transit stations",
	models.CategoryWellness:       "spas",
	models.CategoryAttraction:     "tourist attractions",
}

// placeTypes maps Google place types to categories, most specific first.
var placeTypes = []struct {
	typ string
	cat models.VenueCategory
}{
	{"restaurant", models.CategoryDining},
	{"cafe", models.CategoryDining},
	{"bakery", models.CategoryDining},
	{"night_club", models.CategoryNightlife},
	{"bar", models.CategoryNightlife},
	{"museum", models.CategoryCulture},
	{"art_gallery", models.CategoryCulture},
	{"church", models.CategoryCulture},
	{"park", models.CategoryNature},
	{"natural_feature", models.CategoryNature},
	{"campground", models.CategoryNature},
	{"shopping_mall", models.CategoryShopping},
	{"clothing_store", models.CategoryShopping},
	{"store", models.CategoryShopping},
	{"lodging", models.CategoryAccommodation},
	{"spa", models.CategoryWellness},
	{"gym", models.CategoryWellness},
	{"airport", models.CategoryTransportation},
	{"train_station", models.CategoryTransportation},
	{"transit_station", models.CategoryTransportation},
	{"bus_station", models.CategoryTransportation},
	{"tourist_attraction", models.CategoryAttraction},
	{"point_of_interest", models.CategoryAttraction},
}

// categoryFromTypes picks the first known category for a place.
func categoryFromTypes(types []string) (models.VenueCategory, bool) {
	for _, pt := range placeTypes {
		for _, t := range types {
			if t == pt.typ {
				return pt.cat, true
			}
		}
	}
	return "", false
}

// GoogleMapsSource discovers venues through the Places text search. Calls go
// through a circuit breaker so an outage fails fast.
type GoogleMapsSource struct {
	client     PlacesClient
	breaker    *circuit.Breaker
	log        *logging.ComponentLogger
	maxResults int
}

// NewGoogleMapsSource creates a source backed by the Places API.
func NewGoogleMapsSource(apiKey string, log *logging.ComponentLogger) (*GoogleMapsSource, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, errs.NewExternal("scraper.NewGoogleMapsSource", "google_maps", "create client", err)
	}
	return NewGoogleMapsSourceWithClient(client, log), nil
}

// NewGoogleMapsSourceWithClient is used by tests and callers that share a
// client.
func NewGoogleMapsSourceWithClient(client PlacesClient, log *logging.ComponentLogger) *GoogleMapsSource {
	cfg := circuit.DefaultConfig("google_maps")
	cfg.OperationTimeout = constants.GoogleMapsOperationTimeout
	cfg.OpenFor = constants.GoogleMapsOpenFor
	cfg.FailureRate = constants.CircuitFailureRate
	cfg.MaxConsecFailures = constants.CircuitMaxConsecFailures
	return &GoogleMapsSource{
		client:     client,
		breaker:    circuit.New(cfg, log.With(logging.String("breaker", cfg.Name))),
		log:        log,
		maxResults: 20,
	}
}

func (s *GoogleMapsSource) Name() string            { return "google_maps" }
func (s *GoogleMapsSource) Type() models.SourceType { return models.SourceSearch }
func (s *GoogleMapsSource) Priority() int           { return constants.PrioritySearch }

// Breaker exposes the breaker for health reporting.
func (s *GoogleMapsSource) Breaker() *circuit.Breaker { return s.breaker }

// Search runs one text search for locationQuery refined by hints.
func (s *GoogleMapsSource) Search(ctx context.Context, locationQuery string, hints []string) ([]RawPlace, error) {
	q := strings.TrimSpace(strings.Join(append(append([]string{}, hints...), locationQuery), " "))
	if q == "" {
		return nil, errs.NewValidation("scraper.GoogleMaps.Search", "empty query", nil)
	}
	resp, err := circuit.Execute(ctx, s.breaker, func(ctx context.Context) (maps.PlacesSearchResponse, error) {
		return s.client.TextSearch(ctx, &maps.TextSearchRequest{Query: q})
	})
	if err != nil {
		return nil, errs.NewExternal("scraper.GoogleMaps.Search", "google_maps", "text search", err)
	}

	out := make([]RawPlace, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Name == "" || r.BusinessStatus == "CLOSED_PERMANENTLY" {
			continue
		}
		out = append(out, RawPlace{
			PlaceID:        r.PlaceID,
			Name:           r.Name,
			Address:        r.FormattedAddress,
			Lat:            r.Geometry.Location.Lat,
			Lng:            r.Geometry.Location.Lng,
			Types:          r.Types,
			Rating:         float64(r.Rating),
			RatingCount:    r.UserRatingsTotal,
			PriceLevel:     r.PriceLevel,
			BusinessStatus: r.BusinessStatus,
		})
		if len(out) == s.maxResults {
			break
		}
	}
	s.log.Debug("place search", logging.String("query", q), logging.Int("results", len(out)))
	return out, nil
}

// Discover searches once per requested category (every category when none
// were requested). Failed queries are skipped unless all of them fail.
func (s *GoogleMapsSource) Discover(ctx context.Context, req models.RequestContext) ([]*models.Venue, error) {
	if strings.TrimSpace(req.Destination) == "" {
		return nil, errs.NewValidation("scraper.GoogleMaps.Discover", "destination required", nil)
	}
	cats := req.Categories
	if len(cats) == 0 {
		cats = models.AllCategories()
	}

	batches := make([][]*models.Venue, len(cats))
	var (
		mu       sync.Mutex
		failures int
		lastErr  error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for i, cat := range cats {
		g.Go(func() error {
			places, err := s.Search(gctx, "in "+req.Destination, []string{categoryQueries[cat]})
			if err != nil {
				mu.Lock()
				failures++
				lastErr = err
				mu.Unlock()
				s.log.Warn("category search failed", logging.String("category", string(cat)), logging.Error(err))
				return nil
			}
			batches[i] = placesToVenues(places, cat)
			return nil
		})
	}
	_ = g.Wait()
	if failures == len(cats) {
		return nil, lastErr
	}

	seen := map[string]bool{}
	var out []*models.Venue
	for _, b := range batches {
		for _, v := range b {
			id, _ := v.Metadata["place_id"].(string)
			if id != "" && seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, v)
		}
	}
	return out, nil
}

// SearchVenues serves the fallback search strategy.
func (s *GoogleMapsSource) SearchVenues(ctx context.Context, query string, category models.VenueCategory) ([]*models.Venue, error) {
	places, err := s.Search(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	return placesToVenues(places, category), nil
}

func placesToVenues(places []RawPlace, hint models.VenueCategory) []*models.Venue {
	out := make([]*models.Venue, 0, len(places))
	for _, p := range places {
		out = append(out, placeToVenue(p, hint))
	}
	return out
}

// placeToVenue converts a hit. The hint category is used when the place
// types name none we know.
func placeToVenue(p RawPlace, hint models.VenueCategory) *models.Venue {
	cat, ok := categoryFromTypes(p.Types)
	if hint.IsValid() && (!ok || cat == models.CategoryAttraction) {
		cat = hint
	} else if !ok {
		cat = models.CategoryAttraction
	}
	v := models.NewVenue(p.Name, cat)
	v.Rating = p.Rating
	v.RatingCount = p.RatingCount
	if p.PriceLevel > 0 {
		v.PriceRange = strings.Repeat("$", p.PriceLevel)
	}
	realPoint := geography.ValidCoordinates(p.Lat, p.Lng) && !geography.IsNullIsland(p.Lat, p.Lng)
	if realPoint {
		v.Location = &models.Location{Lat: p.Lat, Lng: p.Lng, Address: p.Address}
	}
	v.Metadata["place_id"] = p.PlaceID
	v.AddSource(models.VenueSource{
		Type: models.SourceSearch,
		RawData: map[string]any{
			"place_id":        p.PlaceID,
			"types":           p.Types,
			"business_status": p.BusinessStatus,
		},
		Timestamp: time.Now(),
	})
	v.UpdateSignals(func(qs *models.QualitySignals) {
		qs.HasRealLocation = realPoint
		qs.HasValidBusinessInfo = p.Address != ""
		qs.HasUserRatings = p.RatingCount > 0
		qs.HasRecentActivity = p.BusinessStatus == "OPERATIONAL"
	})
	return v
}
