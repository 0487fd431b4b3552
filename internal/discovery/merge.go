package discovery

import (
	"sort"

	"venue-discovery/internal/models"
	"venue-discovery/pkg/geography"
	"venue-discovery/pkg/utils"
)

// candidate is one reported venue plus the source that reported it.
type candidate struct {
	venue    *models.Venue
	source   string
	priority int
}

// MergeKey identifies the same real-world venue across sources: normalized
// name plus a ~100 m grid cell ("-" when the venue has no location).
func MergeKey(v *models.Venue) string {
	cell := "-"
	if v.Location != nil && v.Location.Valid() && !geography.IsNullIsland(v.Location.Lat, v.Location.Lng) {
		cell = geography.GridKey(v.Location.Lat, v.Location.Lng)
	}
	return utils.NormalizeName(v.Name) + "|" + cell
}

// merge collapses duplicates across the successful batches. Candidates are
// processed in priority order so the result does not depend on the order
// the sources completed in. Venues are cloned; source data is not mutated.
func merge(batches []sourceBatch, req models.RequestContext) []candidate {
	var all []candidate
	for _, b := range batches {
		if b.err != nil {
			continue
		}
		for _, v := range b.venues {
			if v == nil || utils.NormalizeName(v.Name) == "" || !req.WantsCategory(v.Category) {
				continue
			}
			all = append(all, candidate{venue: v, source: b.src.Name(), priority: b.src.Priority()})
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return precedes(all[i], all[j]) })

	byKey := make(map[string]int, len(all))
	var out []candidate
	for _, c := range all {
		key := MergeKey(c.venue)
		if i, ok := byKey[key]; ok {
			absorb(&out[i], c)
			continue
		}
		w := c
		w.venue = c.venue.Clone()
		if w.venue.Metadata == nil {
			w.venue.Metadata = map[string]any{}
		}
		byKey[key] = len(out)
		out = append(out, w)
	}
	return out
}

// precedes orders by priority, then source name, then a stable venue order
// for duplicates reported by the same source.
func precedes(a, b candidate) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	if a.source != b.source {
		return a.source < b.source
	}
	if a.venue.RatingCount != b.venue.RatingCount {
		return a.venue.RatingCount > b.venue.RatingCount
	}
	return a.venue.Name < b.venue.Name
}

// absorb folds loser into winner: provenance, mention counts and any field
// the winner lacks. Reports from a different source mark the winner
// cross-source verified.
func absorb(winner *candidate, loser candidate) {
	w, l := winner.venue, loser.venue
	for _, s := range l.Sources {
		if !w.HasSource(s.Type) {
			w.AddSource(s)
		}
	}
	if w.Location == nil && l.Location != nil {
		loc := *l.Location
		w.Location = &loc
	}
	if w.Phone == "" {
		w.Phone = l.Phone
	}
	if w.Website == "" {
		w.Website = l.Website
	}
	if w.Description == "" {
		w.Description = l.Description
	}
	if w.PriceRange == "" {
		w.PriceRange = l.PriceRange
	}
	if w.Rating == 0 && l.Rating > 0 {
		w.Rating, w.RatingCount = l.Rating, l.RatingCount
	}
	if l.AnalysisScore > w.AnalysisScore {
		w.AnalysisScore = l.AnalysisScore
	}

	merged, _ := w.Metadata["merged_from"].([]string)
	w.Metadata["merged_from"] = append(merged, loser.source)

	w.UpdateSignals(func(qs *models.QualitySignals) {
		qs.MentionFrequency += l.QualitySignals.MentionFrequency
		if l.QualitySignals.SentimentScore > qs.SentimentScore {
			qs.SentimentScore = l.QualitySignals.SentimentScore
		}
		qs.HasUserRatings = qs.HasUserRatings || l.QualitySignals.HasUserRatings
		qs.HasRecentActivity = qs.HasRecentActivity || l.QualitySignals.HasRecentActivity
		if loser.source != winner.source {
			qs.CrossSourceVerified = true
		}
	})
}
