package validation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"venue-discovery/internal/models"
	errs "venue-discovery/pkg/errors"
	"venue-discovery/pkg/geography"
	"venue-discovery/pkg/utils"
)

var (
	// phoneChars allows digits, spaces, +, -, (, ) and dots
	phoneChars = regexp.MustCompile(`^[0-9+\-(). ]+$`)

	// genericNames are placeholders sources emit when a real name is missing
	genericNames = map[string]bool{
		"restaurant": true, "bar": true, "cafe": true, "hotel": true, "museum": true, "park": true,
		"beach": true, "shop": true, "store": true, "venue": true, "place": true, "unknown": true,
		"n/a": true, "na": true, "null": true, "untitled": true, "test": true,
	}

	businessMarkers = regexp.MustCompile(`(?i)\b(?:restaurant|cafe|café|bar|grill|bistro|kitchen|club|lounge|hotel|resort|inn|hostel|spa|museum|gallery|theater|theatre|park|beach|market|shop|boutique|tours?|center|centre|plaza|co\.?|inc\.?|ltd\.?|llc)\b`)
	possessiveName  = regexp.MustCompile(`\p{L}['’]s\b`)
)

const op = "validation"

// ValidateName validates the venue display name
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < 2 {
		return errs.NewFieldValidation(op, "name", "name must be at least 2 characters")
	}
	if n > 120 {
		return errs.NewFieldValidation(op, "name", "name must be less than 120 characters")
	}
	letters := 0
	for _, r := range name {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters == 0 {
		return errs.NewFieldValidation(op, "name", "name must contain letters")
	}
	if genericNames[strings.ToLower(name)] {
		return errs.NewFieldValidation(op, "name", "name is a generic placeholder")
	}
	return nil
}

// ValidateCategory checks the category is one of the known itinerary categories
func ValidateCategory(c models.VenueCategory) error {
	if !c.IsValid() {
		return errs.NewFieldValidation(op, "category", "unknown category "+string(c))
	}
	return nil
}

// ValidateCoordinates accepts a missing location; a present one must be in
// range and not the null island placeholder.
func ValidateCoordinates(loc *models.Location) error {
	if loc == nil {
		return nil
	}
	if err := ValidateLatitude(loc.Lat); err != nil {
		return err
	}
	if err := ValidateLongitude(loc.Lng); err != nil {
		return err
	}
	if geography.IsNullIsland(loc.Lat, loc.Lng) {
		return errs.NewFieldValidation(op, "location", "coordinates are the 0,0 placeholder")
	}
	return nil
}

// ValidateLatitude validates latitude coordinate
func ValidateLatitude(lat float64) error {
	if lat < -90 || lat > 90 {
		return errs.NewFieldValidation(op, "lat", "latitude must be between -90 and 90")
	}
	return nil
}

// ValidateLongitude validates longitude coordinate
func ValidateLongitude(lng float64) error {
	if lng < -180 || lng > 180 {
		return errs.NewFieldValidation(op, "lng", "longitude must be between -180 and 180")
	}
	return nil
}

// ValidateSources requires at least one provenance record.
func ValidateSources(sources []models.VenueSource) error {
	if len(sources) == 0 {
		return errs.NewFieldValidation(op, "sources", "venue has no sources")
	}
	for _, s := range sources {
		if s.Type == "" {
			return errs.NewFieldValidation(op, "sources", "source without type")
		}
	}
	return nil
}

// ValidatePhone validates phone number (flexible international format)
func ValidatePhone(phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil // Optional field
	}
	if len(phone) > 50 {
		return errs.NewFieldValidation(op, "phone", "phone must be less than 50 characters")
	}
	if !phoneChars.MatchString(phone) || !utils.IsValidPhone(phone) {
		return errs.NewFieldValidation(op, "phone", "phone contains invalid characters")
	}
	return nil
}

// ValidateWebsite validates the optional website URL
func ValidateWebsite(site string) error {
	if strings.TrimSpace(site) == "" {
		return nil
	}
	if !utils.IsValidWebsite(site) {
		return errs.NewFieldValidation(op, "website", "website is not a valid http(s) URL")
	}
	return nil
}

// ValidateDescription validates venue description
func ValidateDescription(desc string) error {
	if len(desc) > 5000 {
		return errs.NewFieldValidation(op, "description", "description must be less than 5000 characters")
	}
	return nil
}

// LooksLikeBusinessName is the strict-mode check: the name carries a
// business marker, a possessive, or at least two capitalized words.
func LooksLikeBusinessName(name string) error {
	name = strings.TrimSpace(name)
	if businessMarkers.MatchString(name) || possessiveName.MatchString(name) {
		return nil
	}
	capitalized := 0
	for _, w := range strings.Fields(name) {
		r, _ := utf8.DecodeRuneInString(w)
		if unicode.IsUpper(r) {
			capitalized++
		}
	}
	if capitalized >= 2 {
		return nil
	}
	return errs.NewFieldValidation(op, "name", "name does not look like a business")
}

// ValidateVenueFields validates all optional contact fields on a venue.
// Returns a map of field names to error messages.
func ValidateVenueFields(v *models.Venue) map[string]string {
	errors := make(map[string]string)
	check := func(field string, err error) {
		if err != nil {
			errors[field] = err.Error()
		}
	}
	check("phone", ValidatePhone(v.Phone))
	check("website", ValidateWebsite(v.Website))
	check("description", ValidateDescription(v.Description))
	if v.Rating < 0 || v.Rating > 5 {
		errors["rating"] = errs.NewFieldValidation(op, "rating", "rating must be between 0 and 5").Error()
	}
	return errors
}
