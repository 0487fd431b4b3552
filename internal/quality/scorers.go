package quality

import (
	"math"

	"venue-discovery/internal/models"
	"venue-discovery/internal/validation"
)

// Scorer contributes named points to a venue's quality score.
type Scorer struct {
	Name  string
	Score func(v *models.Venue) float64
}

const (
	pointsPerMention = 5.0
	maxMentionPoints = 30.0
	sentimentPoints  = 20.0
	locationPoints   = 25.0
	businessPoints   = 15.0
	crossPoints      = 10.0
)

func DefaultScorers() []Scorer {
	return []Scorer{
		{Name: "mention-frequency", Score: func(v *models.Venue) float64 {
			return math.Min(float64(v.QualitySignals.MentionFrequency)*pointsPerMention, maxMentionPoints)
		}},
		{Name: "sentiment", Score: func(v *models.Venue) float64 {
			return math.Max(0, models.Clamp(v.QualitySignals.SentimentScore, -1, 1)) * sentimentPoints
		}},
		{Name: "location", Score: func(v *models.Venue) float64 {
			return pointsIf(v.QualitySignals.HasRealLocation || hasRealLocation(v), locationPoints)
		}},
		{Name: "business-info", Score: func(v *models.Venue) float64 {
			return pointsIf(v.QualitySignals.HasValidBusinessInfo || v.HasBusinessInfo(), businessPoints)
		}},
		{Name: "cross-source", Score: func(v *models.Venue) float64 {
			return pointsIf(v.QualitySignals.CrossSourceVerified || distinctSources(v) > 1, crossPoints)
		}},
	}
}

func hasRealLocation(v *models.Venue) bool {
	return v.Location != nil && validation.ValidateCoordinates(v.Location) == nil
}

func distinctSources(v *models.Venue) int {
	seen := map[models.SourceType]bool{}
	for _, s := range v.Sources {
		seen[s.Type] = true
	}
	return len(seen)
}

func pointsIf(ok bool, pts float64) float64 {
	if ok {
		return pts
	}
	return 0
}
