package extractor

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	"venue-discovery/internal/models"
)

// Rule is one extraction pattern. The first capture group is the candidate name.
type Rule struct {
	Name           string
	Pattern        *regexp.Regexp
	BaseConfidence float64
	CategoryHint   models.VenueCategory
}

// venueTypes maps venue-type keywords to the category they imply.
var venueTypes = map[string]models.VenueCategory{
	"restaurant": models.CategoryDining, "cafe": models.CategoryDining, "café": models.CategoryDining,
	"bistro": models.CategoryDining, "grill": models.CategoryDining, "cantina": models.CategoryDining,
	"taqueria": models.CategoryDining, "bakery": models.CategoryDining, "pizzeria": models.CategoryDining,
	"kitchen": models.CategoryDining, "diner": models.CategoryDining, "steakhouse": models.CategoryDining,
	"trattoria": models.CategoryDining, "brasserie": models.CategoryDining,

	"bar": models.CategoryNightlife, "pub": models.CategoryNightlife, "club": models.CategoryNightlife,
	"lounge": models.CategoryNightlife, "brewery": models.CategoryNightlife, "tavern": models.CategoryNightlife,

	"museum": models.CategoryCulture, "museo": models.CategoryCulture, "gallery": models.CategoryCulture,
	"theater": models.CategoryCulture, "theatre": models.CategoryCulture, "cathedral": models.CategoryCulture,
	"church": models.CategoryCulture, "temple": models.CategoryCulture, "palace": models.CategoryCulture,
	"castle": models.CategoryCulture, "ruins": models.CategoryCulture,

	"park": models.CategoryNature, "parque": models.CategoryNature, "beach": models.CategoryNature,
	"playa": models.CategoryNature, "garden": models.CategoryNature, "gardens": models.CategoryNature,
	"reserve": models.CategoryNature, "cenote": models.CategoryNature, "lagoon": models.CategoryNature,
	"falls": models.CategoryNature, "island": models.CategoryNature, "isla": models.CategoryNature,

	"market": models.CategoryShopping, "mercado": models.CategoryShopping, "mall": models.CategoryShopping,
	"boutique": models.CategoryShopping, "shop": models.CategoryShopping, "bazaar": models.CategoryShopping,

	"hotel": models.CategoryAccommodation, "resort": models.CategoryAccommodation,
	"hostel": models.CategoryAccommodation, "inn": models.CategoryAccommodation,

	"spa": models.CategoryWellness, "retreat": models.CategoryWellness, "yoga": models.CategoryWellness,

	"station": models.CategoryTransportation, "airport": models.CategoryTransportation,
	"terminal": models.CategoryTransportation, "ferry": models.CategoryTransportation,

	"zoo": models.CategoryAttraction, "aquarium": models.CategoryAttraction, "tower": models.CategoryAttraction,
	"plaza": models.CategoryAttraction, "square": models.CategoryAttraction,
}

// suffixAlternation is the venue-type keywords as a regexp alternation, longest first.
var suffixAlternation = func() string {
	words := make([]string, 0, len(venueTypes))
	for w := range venueTypes {
		words = append(words, regexp.QuoteMeta(strings.ToUpper(w[:1])+w[1:]))
	}
	slices.SortFunc(words, func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return strings.Join(words, "|")
}()

const (
	properWord = `[\p{Lu}][\p{L}'’&\-]*`
	connector  = `(?:de|del|la|el|los|las|of|the|and|y|&)`
)

// DefaultRules is the ordered rule table. Earlier rules are more specific.
var DefaultRules = []Rule{
	{
		Name:           "possessive-venue",
		Pattern:        regexp.MustCompile(`((?:\p{Lu}\p{L}+\s+)?\p{Lu}\p{L}+['’]s(?:\s+` + properWord + `){1,3})`),
		BaseConfidence: 0.6,
	},
	{
		Name:           "typed-venue",
		Pattern:        regexp.MustCompile(`((?:` + properWord + `\s+(?:` + connector + `\s+)?){1,4}(?:` + suffixAlternation + `)s?)(?:[^\p{L}]|$)`),
		BaseConfidence: 0.55,
	},
	{
		Name:           "type-prefixed",
		Pattern:        regexp.MustCompile(`\b((?:Museo|Playa|Parque|Mercado|Isla|Casa|Hotel|Cafe|Café)(?:\s+(?:` + connector + `\s+)?` + properWord + `){1,3})`),
		BaseConfidence: 0.55,
	},
	{
		Name:           "location-preposition",
		Pattern:        regexp.MustCompile(`(?i:\bat|\bvisit(?:ed)?|\btry|\btried|\bnear|\bcalled)\s+((?:[Tt]he\s+)?` + properWord + `(?:\s+(?:` + connector + `\s+)?` + properWord + `){0,3})`),
		BaseConfidence: 0.45,
		CategoryHint:   models.CategoryAttraction,
	},
	{
		Name:           "quoted-name",
		Pattern:        regexp.MustCompile(`["“](\p{Lu}[^"”\n]{2,40})["”]`),
		BaseConfidence: 0.4,
		CategoryHint:   models.CategoryAttraction,
	},
}

// Phase 1 denylist: sentence fragments that are never venue names.
var fragmentDenylist = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:i|we|you|he|she|they|it|this|that|these|those|there|here|my|our|your|his|her|their|its)\b`),
	regexp.MustCompile(`(?i)^(?:is|are|was|were|be|been|have|has|had|do|does|did|went|got|get|make|made|said|says|if|when|while|after|before|because|so|but|and|or)\b`),
	regexp.MustCompile(`(?i)\b(?:click here|read more|sign up|subscribe|top \d+|best of|things to do|travel guide|must see|how to|what to|where to|full review|photo gallery)\b`),
	regexp.MustCompile(`(?i)^(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday|january|february|march|april|may|june|july|august|september|october|november|december)\b`),
	regexp.MustCompile(`\d{4,}`),
	regexp.MustCompile(`https?://|www\.|@`),
}

// leadingNoise words are stripped from the start of a raw match.
var leadingNoise = map[string]bool{
	"the": true, "a": true, "an": true, "visit": true, "visited": true, "try": true, "tried": true,
	"at": true, "to": true, "check": true, "out": true, "see": true, "in": true, "near": true,
	"called": true, "recommend": true, "love": true, "loved": true,
}

// Phase 2 allow-patterns for business-likeness.
var (
	typeSuffixPattern  = regexp.MustCompile(`(?i)\b(?:` + suffixAlternation + `)s?$`)
	possessivePattern  = regexp.MustCompile(`^\p{Lu}\p{L}*(?:\s+\p{Lu}\p{L}*)?['’]s\b`)
	locationPrefix     = regexp.MustCompile(`^(?:El|La|Los|Las|Le|Les|Casa|Playa|Isla|Museo|Parque|Mercado|Mount|Mt\.?|Lake|Port|San|Santa|St\.?|Cafe|Café|Hotel|Club)\s+\p{Lu}`)
	multiProperPattern = regexp.MustCompile(`^` + properWord + `(?:\s+(?:` + connector + `\s+)?` + properWord + `)+$`)
)

// knownVenues are single names that pass phase 2 without any pattern.
var knownVenues = map[string]bool{
	"xcaret": true, "xel-ha": true, "xplor": true, "coco bongo": true, "chichen itza": true,
	"tulum": true, "starbucks": true, "señor frog's": true, "mandala": true, "hard rock": true,
	"louvre": true, "colosseum": true, "sagrada familia": true, "alhambra": true,
}

var (
	positiveContext = []string{"recommend", "love", "loved", "amazing", "best", "great", "delicious",
		"excellent", "favorite", "favourite", "must", "beautiful", "awesome", "incredible", "perfect",
		"wonderful", "fantastic", "gem", "stunning"}
	reportingContext = []string{"said", "says", "heard", "reported", "reportedly", "according",
		"claims", "claimed", "rumored", "rumoured", "allegedly"}
)

// categoryFor infers a category from venue-type keywords in name.
func categoryFor(name string) (models.VenueCategory, bool) {
	words := strings.Fields(strings.ToLower(name))
	// the last type word wins: "Hotel Bar" is nightlife
	for i := len(words) - 1; i >= 0; i-- {
		w := strings.Trim(words[i], ".,'’")
		if c, ok := venueTypes[w]; ok {
			return c, true
		}
		if c, ok := venueTypes[strings.TrimSuffix(w, "s")]; ok {
			return c, true
		}
	}
	return "", false
}
