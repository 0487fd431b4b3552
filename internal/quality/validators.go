package quality

import (
	"venue-discovery/internal/models"
	"venue-discovery/internal/validation"
)

// Validator is a named check; a non-nil error fails the venue.
type Validator struct {
	Name  string
	Check func(v *models.Venue) error
}

// DefaultValidators are always registered. Strict mode adds BusinessNameValidator.
func DefaultValidators() []Validator {
	return []Validator{
		{Name: "name-format", Check: func(v *models.Venue) error { return validation.ValidateName(v.Name) }},
		{Name: "category", Check: func(v *models.Venue) error { return validation.ValidateCategory(v.Category) }},
		{Name: "coordinates", Check: func(v *models.Venue) error { return validation.ValidateCoordinates(v.Location) }},
		{Name: "source-presence", Check: func(v *models.Venue) error { return validation.ValidateSources(v.Sources) }},
	}
}

// BusinessNameValidator rejects names that read like prose rather than a business.
func BusinessNameValidator() Validator {
	return Validator{Name: "business-name", Check: func(v *models.Venue) error {
		return validation.LooksLikeBusinessName(v.Name)
	}}
}
