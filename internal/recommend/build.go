package recommend

import (
	"fmt"
	"sort"

	"venue-discovery/internal/models"
)

// Score blend and adjustments.
const (
	confidenceShare = 0.6
	qualityShare    = 0.4

	budgetFitBonus    = 5.0
	overBudgetPenalty = 10.0
	maxAlternatives   = 2
)

// slotsByCategory lists when a category is usually visited. Categories not
// listed fit any slot.
var slotsByCategory = map[models.VenueCategory][]models.TimeSlot{
	models.CategoryDining:     {models.SlotAfternoon, models.SlotEvening},
	models.CategoryNightlife:  {models.SlotEvening, models.SlotNight},
	models.CategoryCulture:    {models.SlotMorning, models.SlotAfternoon},
	models.CategoryNature:     {models.SlotMorning, models.SlotAfternoon},
	models.CategoryShopping:   {models.SlotMorning, models.SlotAfternoon, models.SlotEvening},
	models.CategoryWellness:   {models.SlotMorning, models.SlotAfternoon},
	models.CategoryAttraction: {models.SlotMorning, models.SlotAfternoon},
}

func qualityScore(v *models.Venue) float64 {
	switch q := v.Metadata["quality_score"].(type) {
	case float64:
		return q
	case int:
		return float64(q)
	}
	return v.ConfidenceScore
}

// Build ranks venues for req. Every venue yields one recommendation;
// alternatives are the next best venues of the same category.
func Build(venues []*models.Venue, req models.RequestContext) []models.Recommendation {
	recs := make([]models.Recommendation, 0, len(venues))
	for _, v := range venues {
		if v == nil {
			continue
		}
		recs = append(recs, recommendationFor(v, req))
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].Venue.Name < recs[j].Venue.Name
	})

	for i := range recs {
		cat := recs[i].Venue.Category
		for j := i + 1; j < len(recs) && len(recs[i].Alternatives) < maxAlternatives; j++ {
			if recs[j].Venue.Category == cat {
				recs[i].Alternatives = append(recs[i].Alternatives, recs[j].Venue)
			}
		}
	}
	return recs
}

func recommendationFor(v *models.Venue, req models.RequestContext) models.Recommendation {
	r := models.Recommendation{Venue: v, Reasons: []string{}, Tags: []string{}}
	score := confidenceShare*v.ConfidenceScore + qualityShare*qualityScore(v)
	r.AddTag(string(v.Category))

	qs := v.QualitySignals
	if qs.CrossSourceVerified {
		r.AddReason(fmt.Sprintf("confirmed by %d sources", len(v.Sources)))
		r.AddTag("verified")
	}
	if v.RatingCount > 0 && v.Rating >= 4 {
		r.AddReason(fmt.Sprintf("rated %.1f from %d reviews", v.Rating, v.RatingCount))
		r.AddTag("highly-rated")
	}
	if qs.MentionFrequency > 1 {
		r.AddReason(fmt.Sprintf("mentioned in %d travel posts", qs.MentionFrequency))
	}
	if qs.SentimentScore >= 0.5 {
		r.AddTag("loved")
	}
	if v.HasSource(models.SourceCurated) {
		r.AddReason("local favourite")
		r.AddTag("curated")
	}
	if tier, _ := v.Metadata["quality_tier"].(string); tier == "high" {
		r.AddReason("complete and consistent details")
	}
	if _, ok := v.Metadata["fallback_level"]; ok {
		r.AddTag("fallback")
	}
	if tags, ok := v.Metadata["ai_tags"].([]string); ok {
		for _, t := range tags {
			r.AddTag(t)
		}
	}

	score += budgetFit(&r, v, req.Budget)
	r.Score = models.Clamp(score, 0, 100)
	r.TimeSlots = append([]models.TimeSlot(nil), slotsByCategory[v.Category]...)
	return r
}

// budgetFit tags r and returns the score adjustment for the price level.
func budgetFit(r *models.Recommendation, v *models.Venue, b models.Budget) float64 {
	level := models.PriceLevel(v.PriceRange)
	if b == models.BudgetAny || level == 0 {
		return 0
	}
	if level > b.MaxPriceLevel() {
		r.AddTag("over-budget")
		return -overBudgetPenalty
	}
	r.AddTag("budget-fit")
	r.AddReason("fits a " + string(b) + " budget")
	if b == models.BudgetLuxury && level >= 3 {
		r.AddTag("premium")
	}
	return budgetFitBonus
}
