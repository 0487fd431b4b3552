package recommend

import (
	"strings"

	"venue-discovery/internal/models"
	errs "venue-discovery/pkg/errors"
)

// Normalize trims the destination and drops repeated categories.
func Normalize(req models.RequestContext) models.RequestContext {
	req.Destination = strings.Join(strings.Fields(req.Destination), " ")
	if len(req.Categories) > 0 {
		seen := make(map[models.VenueCategory]bool, len(req.Categories))
		cats := make([]models.VenueCategory, 0, len(req.Categories))
		for _, c := range req.Categories {
			c = models.VenueCategory(strings.ToLower(strings.TrimSpace(string(c))))
			if seen[c] {
				continue
			}
			seen[c] = true
			cats = append(cats, c)
		}
		req.Categories = cats
	}
	return req
}

// ValidateRequest checks the fields the pipeline relies on.
func ValidateRequest(req models.RequestContext) error {
	const op = "recommend.ValidateRequest"
	if req.Destination == "" {
		return errs.NewFieldValidation(op, "destination", "is required")
	}
	for _, c := range req.Categories {
		if !c.IsValid() {
			return errs.NewFieldValidation(op, "categories", "unknown category "+string(c))
		}
	}
	if !req.Budget.IsValid() {
		return errs.NewFieldValidation(op, "budget", "unknown budget "+string(req.Budget))
	}
	if !req.StartDate.IsZero() && !req.EndDate.IsZero() && req.EndDate.Before(req.StartDate) {
		return errs.NewFieldValidation(op, "end_date", "is before start_date")
	}
	return nil
}
