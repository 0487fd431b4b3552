package fallback

import (
	"context"
	"fmt"
	"strings"

	"venue-discovery/internal/models"
	errs "venue-discovery/pkg/errors"
)

// templateSignalWeight lifts synthesized activities to the default
// recommendation floor so they survive final filtering.
const templateSignalWeight = 30.0

type activityTemplate struct {
	name        string
	description string
	priceRange  string
}

var activityTemplates = map[models.VenueCategory][]activityTemplate{
	models.CategoryDining: {
		{"%s Local Food Tour", "Guided tasting walk through the neighbourhood eateries of %s.", "$$"},
		{"%s Street Food Market", "Evening stalls serving regional dishes from around %s.", "$"},
	},
	models.CategoryCulture: {
		{"%s Historic Center Walk", "Self-guided route past the main landmarks of %s.", ""},
		{"%s City Museum", "Overview of the history and people of %s.", "$"},
	},
	models.CategoryNature: {
		{"%s Scenic Viewpoint", "Best-known lookout over %s, ideal at sunrise.", ""},
		{"%s Botanical Garden", "Native plants and shaded paths near %s.", "$"},
	},
	models.CategoryShopping: {
		{"%s Artisan Market", "Handicrafts and souvenirs made in %s.", "$"},
	},
	models.CategoryNightlife: {
		{"%s Live Music Night", "Bars with live local bands in central %s.", "$$"},
	},
	models.CategoryAccommodation: {
		{"%s Central Hotel District", "Well-connected area to stay in %s.", "$$"},
	},
	models.CategoryTransportation: {
		{"%s Main Bus Terminal", "Regional connections from %s.", "$"},
	},
	models.CategoryWellness: {
		{"%s Day Spa", "Massage and relaxation treatments in %s.", "$$$"},
	},
	models.CategoryAttraction: {
		{"%s Highlights Tour", "Half-day tour covering the top sights of %s.", "$$"},
		{"%s Old Town", "The historic quarter of %s on foot.", ""},
	},
}

// GenericStrategy synthesizes template activities per destination and
// category. It is the last resort and only needs a destination.
type GenericStrategy struct{}

func (GenericStrategy) Level() int   { return LevelGeneric }
func (GenericStrategy) Name() string { return "generic" }

func (GenericStrategy) Fetch(ctx context.Context, req models.RequestContext) ([]*models.Venue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dest := strings.TrimSpace(req.Destination)
	if dest == "" {
		return nil, errs.NewValidation("fallback.generic", "destination required", nil)
	}
	cats := req.Categories
	if len(cats) == 0 {
		cats = defaultSearchCategories
	}
	var out []*models.Venue
	for _, c := range cats {
		for _, tpl := range activityTemplates[c] {
			v := models.NewVenue(fmt.Sprintf(tpl.name, dest), c)
			v.Description = fmt.Sprintf(tpl.description, dest)
			v.PriceRange = tpl.priceRange
			v.AddSource(models.VenueSource{
				Type:    models.SourceFallback,
				RawData: map[string]any{"template": tpl.name},
			})
			v.Metadata["generic"] = true
			v.UpdateSignals(func(qs *models.QualitySignals) {
				qs.PassesNameValidation = true
				qs.SetCustom("template", 1, templateSignalWeight)
			})
			out = append(out, v)
		}
	}
	return out, nil
}
