package models

import (
	"sort"
	"strings"
	"time"
)

// Budget is the traveller's spending level.
type Budget string

const (
	BudgetAny    Budget = ""
	BudgetLow    Budget = "low"
	BudgetMedium Budget = "medium"
	BudgetHigh   Budget = "high"
	BudgetLuxury Budget = "luxury"
)

// MaxPriceLevel returns the highest price level ("$" count) the budget allows,
// or 4 when unconstrained.
func (b Budget) MaxPriceLevel() int {
	switch b {
	case BudgetLow:
		return 1
	case BudgetMedium:
		return 2
	case BudgetHigh:
		return 3
	default:
		return 4
	}
}

func (b Budget) IsValid() bool {
	switch b {
	case BudgetAny, BudgetLow, BudgetMedium, BudgetHigh, BudgetLuxury:
		return true
	}
	return false
}

// PriceLevel counts the "$" signs in a price range; 0 when unknown.
func PriceLevel(priceRange string) int {
	return strings.Count(priceRange, "$")
}

// RequestContext is what a caller asks recommendations for.
type RequestContext struct {
	Destination string          `json:"destination"`
	Categories  []VenueCategory `json:"categories,omitempty"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     time.Time       `json:"end_date"`
	Budget      Budget          `json:"budget,omitempty"`
}

// TripDays is the inclusive number of days in the trip, at least 1.
func (r RequestContext) TripDays() int {
	if r.StartDate.IsZero() || r.EndDate.IsZero() || r.EndDate.Before(r.StartDate) {
		return 1
	}
	return int(r.EndDate.Sub(r.StartDate).Hours()/24) + 1
}

// WantsCategory reports whether c was requested (no categories means all).
func (r RequestContext) WantsCategory(c VenueCategory) bool {
	if len(r.Categories) == 0 {
		return true
	}
	for _, x := range r.Categories {
		if x == c {
			return true
		}
	}
	return false
}

// CacheKey identifies requests that produce the same recommendations.
func (r RequestContext) CacheKey() string {
	cats := make([]string, 0, len(r.Categories))
	for _, c := range r.Categories {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)
	return strings.Join([]string{
		strings.ToLower(strings.TrimSpace(r.Destination)),
		strings.Join(cats, ","),
		string(r.Budget),
		r.StartDate.Format("2006-01-02"),
		r.EndDate.Format("2006-01-02"),
	}, "|")
}

// PipelineData is threaded from stage to stage during a run.
type PipelineData struct {
	Request         RequestContext
	Venues          []*Venue
	Recommendations []Recommendation
	Warnings        []string
}

// Clone gives each stage attempt a private copy of the input.
func (d *PipelineData) Clone() *PipelineData {
	if d == nil {
		return nil
	}
	c := &PipelineData{
		Request:  d.Request,
		Venues:   CloneVenues(d.Venues),
		Warnings: append([]string(nil), d.Warnings...),
	}
	c.Request.Categories = append([]VenueCategory(nil), d.Request.Categories...)
	if d.Recommendations != nil {
		c.Recommendations = make([]Recommendation, len(d.Recommendations))
		for i, r := range d.Recommendations {
			c.Recommendations[i] = r.Clone()
		}
	}
	return c
}
