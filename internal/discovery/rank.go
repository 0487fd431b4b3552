package discovery

import (
	"math"
	"sort"

	"venue-discovery/internal/constants"
	"venue-discovery/internal/models"
)

// Ranking components and their maximum points.
const (
	maxPopularity    = 40.0
	analysisWeight   = 0.3
	maxRatingPoints  = 20.0
	maxPriorityBonus = 10.0

	// popularityCap is the weighted engagement that earns full popularity.
	popularityCap = 1000.0
	mentionWeight = 10
)

type ranked struct {
	venue    *models.Venue
	priority int
	score    float64
}

// Score is a venue's discovery rank in [0,100].
func Score(v *models.Venue, priority int) float64 {
	engagement := float64(v.RatingCount + mentionWeight*v.QualitySignals.MentionFrequency)
	popularity := 0.0
	if engagement > 0 {
		popularity = math.Min(maxPopularity, maxPopularity*math.Log1p(engagement)/math.Log1p(popularityCap))
	}
	analysis := models.Clamp(v.AnalysisScore, 0, 100) * analysisWeight
	rating := models.Clamp(v.Rating, 0, 5) / 5 * maxRatingPoints
	bonus := models.Clamp(float64(priority)/float64(constants.PrioritySearch), 0, 1) * maxPriorityBonus
	return models.Clamp(popularity+analysis+rating+bonus, 0, 100)
}

// rank scores merged candidates and sorts them best first (ties by name).
func rank(cands []candidate) []ranked {
	out := make([]ranked, len(cands))
	for i, c := range cands {
		out[i] = ranked{venue: c.venue, priority: c.priority, score: Score(c.venue, c.priority)}
	}
	sortRanked(out)
	return out
}

func sortRanked(rs []ranked) {
	sort.SliceStable(rs, func(i, j int) bool { return outranks(rs[i], rs[j]) })
}

func outranks(a, b ranked) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.venue.Name < b.venue.Name
}

// diversify caps each category at ceil(min(limit, n)/categories) until 80%
// of the limit is filled, then admits the best remaining venues regardless
// of category. The result is re-sorted and holds at most limit venues.
func diversify(rs []ranked, limit int) []ranked {
	if limit <= 0 || len(rs) == 0 {
		return []ranked{}
	}
	cats := map[models.VenueCategory]int{}
	for _, r := range rs {
		cats[r.venue.Category] = 0
	}
	target := min(limit, len(rs))
	perCat := int(math.Ceil(float64(target) / float64(len(cats))))
	relaxAt := int(math.Ceil(float64(limit) * constants.DiversityRelaxShare))

	out := make([]ranked, 0, target)
	var deferred []ranked
	next := 0 // first deferred venue not yet admitted
	for _, r := range rs {
		if len(out) == limit {
			break
		}
		if len(out) >= relaxAt {
			// Past the relax point deferred venues compete on score again.
			for next < len(deferred) && len(out) < limit && outranks(deferred[next], r) {
				out = append(out, deferred[next])
				next++
			}
			if len(out) == limit {
				break
			}
			out = append(out, r)
			continue
		}
		if cats[r.venue.Category] < perCat {
			cats[r.venue.Category]++
			out = append(out, r)
			continue
		}
		deferred = append(deferred, r)
	}
	for ; next < len(deferred) && len(out) < limit; next++ {
		out = append(out, deferred[next])
	}
	sortRanked(out)
	return out
}
