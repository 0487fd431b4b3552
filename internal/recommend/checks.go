package recommend

import (
	"fmt"
	"strings"

	"venue-discovery/internal/discovery"
	"venue-discovery/internal/models"
	"venue-discovery/internal/processor"
)

// DefaultChecks are the advisory checks run after every pipeline.
func DefaultChecks(minResults int) []processor.QualityChecker {
	return []processor.QualityChecker{
		MinResultsCheck(minResults),
		CategoryCoverageCheck(),
		NoDuplicatesCheck(),
	}
}

func MinResultsCheck(min int) processor.QualityChecker {
	return processor.NewCheck("min-results", func(d *models.PipelineData) (bool, string) {
		n := len(d.Recommendations)
		if n < min {
			return false, fmt.Sprintf("%d recommendations, want at least %d", n, min)
		}
		return true, ""
	})
}

// CategoryCoverageCheck passes when every requested category has at least
// one recommendation.
func CategoryCoverageCheck() processor.QualityChecker {
	return processor.NewCheck("category-coverage", func(d *models.PipelineData) (bool, string) {
		have := map[models.VenueCategory]bool{}
		for _, r := range d.Recommendations {
			if r.Venue != nil {
				have[r.Venue.Category] = true
			}
		}
		var missing []string
		for _, c := range d.Request.Categories {
			if !have[c] {
				missing = append(missing, string(c))
			}
		}
		if len(missing) > 0 {
			return false, "no recommendations for " + strings.Join(missing, ", ")
		}
		return true, ""
	})
}

// NoDuplicatesCheck flags recommendations that share a merge key.
func NoDuplicatesCheck() processor.QualityChecker {
	return processor.NewCheck("no-duplicates", func(d *models.PipelineData) (bool, string) {
		seen := map[string]string{}
		for _, r := range d.Recommendations {
			if r.Venue == nil {
				continue
			}
			k := discovery.MergeKey(r.Venue)
			if prev, ok := seen[k]; ok {
				return false, fmt.Sprintf("%q duplicates %q", r.Venue.Name, prev)
			}
			seen[k] = r.Venue.Name
		}
		return true, ""
	})
}
