package models

import "math"

// Weights of the base quality signals. They sum to 100.
const (
	WeightMentionPerCount = 4.0
	MaxMentionCount       = 5
	WeightSentiment       = 15.0
	WeightRealLocation    = 15.0
	WeightBusinessInfo    = 15.0
	WeightNameValidation  = 10.0
	WeightCrossSource     = 10.0
	WeightUserRatings     = 10.0
	WeightRecentActivity  = 5.0
)

// CustomSignal is an additional named contribution of Value*Weight points.
type CustomSignal struct {
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
}

// QualitySignals are the inputs of a venue's confidence score.
type QualitySignals struct {
	MentionFrequency     int                     `json:"mention_frequency"`
	SentimentScore       float64                 `json:"sentiment_score"` // -1..1
	HasRealLocation      bool                    `json:"has_real_location"`
	HasValidBusinessInfo bool                    `json:"has_valid_business_info"`
	PassesNameValidation bool                    `json:"passes_name_validation"`
	CrossSourceVerified  bool                    `json:"cross_source_verified"`
	HasUserRatings       bool                    `json:"has_user_ratings"`
	HasRecentActivity    bool                    `json:"has_recent_activity"`
	Custom               map[string]CustomSignal `json:"custom,omitempty"`
}

// SetCustom adds or replaces a named custom signal.
func (q *QualitySignals) SetCustom(name string, value, weight float64) {
	if q.Custom == nil {
		q.Custom = map[string]CustomSignal{}
	}
	q.Custom[name] = CustomSignal{Value: value, Weight: weight}
}

// Composite returns the weighted score clamped to [0,100].
func (q QualitySignals) Composite() float64 {
	score := 0.0

	mentions := q.MentionFrequency
	if mentions > MaxMentionCount {
		mentions = MaxMentionCount
	}
	if mentions > 0 {
		score += float64(mentions) * WeightMentionPerCount
	}
	if s := clampFloat(q.SentimentScore, -1, 1); s > 0 {
		score += s * WeightSentiment
	}
	score += boolPoints(q.HasRealLocation, WeightRealLocation)
	score += boolPoints(q.HasValidBusinessInfo, WeightBusinessInfo)
	score += boolPoints(q.PassesNameValidation, WeightNameValidation)
	score += boolPoints(q.CrossSourceVerified, WeightCrossSource)
	score += boolPoints(q.HasUserRatings, WeightUserRatings)
	score += boolPoints(q.HasRecentActivity, WeightRecentActivity)

	for _, c := range q.Custom {
		contrib := c.Value * c.Weight
		if math.IsNaN(contrib) || math.IsInf(contrib, 0) {
			continue
		}
		score += contrib
	}
	return clampFloat(score, 0, 100)
}

// Clone copies the custom signal map.
func (q QualitySignals) Clone() QualitySignals {
	c := q
	if q.Custom != nil {
		c.Custom = make(map[string]CustomSignal, len(q.Custom))
		for k, v := range q.Custom {
			c.Custom[k] = v
		}
	}
	return c
}

func boolPoints(b bool, w float64) float64 {
	if b {
		return w
	}
	return 0
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp is exported for scorers that share the same bounds handling.
func Clamp(v, lo, hi float64) float64 { return clampFloat(v, lo, hi) }
