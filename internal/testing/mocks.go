package testutil

import (
	"context"
	"sync"

	"venue-discovery/internal/models"
)

// MockSource implements discovery.Source for tests.
type MockSource struct {
	Mu       sync.Mutex
	SrcName  string
	SrcType  models.SourceType
	Prio     int
	Venues   []*models.Venue
	Err      error
	Calls    int
	Requests []models.RequestContext
}

func NewMockSource(name string, typ models.SourceType, priority int, venues ...*models.Venue) *MockSource {
	return &MockSource{SrcName: name, SrcType: typ, Prio: priority, Venues: venues}
}

func (m *MockSource) Name() string            { return m.SrcName }
func (m *MockSource) Type() models.SourceType { return m.SrcType }
func (m *MockSource) Priority() int           { return m.Prio }

func (m *MockSource) Discover(ctx context.Context, req models.RequestContext) ([]*models.Venue, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Calls++
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	// default: fresh copies so callers can mutate freely
	return models.CloneVenues(m.Venues), nil
}

func (m *MockSource) CallCount() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.Calls
}

// MockSearcher implements fallback.Searcher for tests.
type MockSearcher struct {
	Mu      sync.Mutex
	Resp    map[models.VenueCategory][]*models.Venue
	Err     error
	Queries []string
}

func NewMockSearcher() *MockSearcher {
	return &MockSearcher{Resp: map[models.VenueCategory][]*models.Venue{}}
}

func (m *MockSearcher) SearchVenues(ctx context.Context, query string, category models.VenueCategory) ([]*models.Venue, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Queries = append(m.Queries, query)
	if m.Err != nil {
		return nil, m.Err
	}
	return models.CloneVenues(m.Resp[category]), nil
}

// MockEnhancer implements scorer.Enhancer for tests. Fn, when set, decides
// the output; the default returns clones with a description filled in.
type MockEnhancer struct {
	Mu    sync.Mutex
	Fn    func(venues []*models.Venue) ([]*models.Venue, error)
	Calls int
}

func (m *MockEnhancer) Enhance(ctx context.Context, venues []*models.Venue, req models.RequestContext) ([]*models.Venue, error) {
	m.Mu.Lock()
	m.Calls++
	fn := m.Fn
	m.Mu.Unlock()
	if fn != nil {
		return fn(venues)
	}
	out := models.CloneVenues(venues)
	for _, v := range out {
		if v.Description == "" {
			v.Description = "enhanced"
		}
	}
	return out, nil
}

// RatedVenue builds a venue whose signals clear the default confidence
// threshold.
func RatedVenue(name string, cat models.VenueCategory, lat, lng float64) *models.Venue {
	v := models.NewVenue(name, cat)
	v.Location = &models.Location{Lat: lat, Lng: lng, Address: name + " street"}
	v.Rating = 4.5
	v.RatingCount = 200
	v.AddSource(models.VenueSource{Type: models.SourceSearch})
	v.SetSignals(models.QualitySignals{
		HasRealLocation:      true,
		HasValidBusinessInfo: true,
		HasUserRatings:       true,
		HasRecentActivity:    true,
	})
	return v
}
