package extractor

import (
	"context"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"venue-discovery/internal/constants"
	"venue-discovery/internal/domain/specs"
	"venue-discovery/internal/models"
	"venue-discovery/pkg/utils"
)

// DefaultThreshold is the minimum confidence FilterByConfidence keeps by default.
const DefaultThreshold = constants.ExtractionMinConfidence

const (
	minNameLen    = 3
	maxNameLen    = 60
	maxNameWords  = 6
	contextWindow = 40

	longNameWords = 4
	longNameLen   = 35
)

// Candidate is a venue name found in free text.
type Candidate struct {
	Name       string               `json:"name"`
	Confidence float64              `json:"confidence"` // 0..1
	SourceType models.SourceType    `json:"source_type"`
	Context    string               `json:"context"`
	Rule       string               `json:"rule"`
	Category   models.VenueCategory `json:"category"`
}

// Extractor finds venue-name candidates with an ordered rule table and a
// two-phase admission filter.
type Extractor struct {
	rules      []Rule
	sourceType models.SourceType
	known      map[string]bool

	structural specs.Specification[string]
	business   specs.Specification[string]
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithRules replaces the default rule table.
func WithRules(rules []Rule) Option {
	return func(e *Extractor) { e.rules = rules }
}

// WithSourceType sets the SourceType stamped on candidates.
func WithSourceType(t models.SourceType) Option {
	return func(e *Extractor) { e.sourceType = t }
}

// WithKnownVenues adds names that always pass the business-likeness check.
func WithKnownVenues(names ...string) Option {
	return func(e *Extractor) {
		for _, n := range names {
			e.known[strings.ToLower(strings.TrimSpace(n))] = true
		}
	}
}

func New(opts ...Option) *Extractor {
	e := &Extractor{
		rules:      DefaultRules,
		sourceType: models.SourceSocial,
		known:      make(map[string]bool, len(knownVenues)),
	}
	for k := range knownVenues {
		e.known[k] = true
	}
	for _, o := range opts {
		o(e)
	}
	e.structural = structuralSpec()
	e.business = e.businessSpec()
	return e
}

func structuralSpec() specs.Specification[string] {
	length := specs.New(func(_ context.Context, s string) bool {
		n := utf8.RuneCountInString(s)
		return n >= minNameLen && n <= maxNameLen
	})
	words := specs.New(func(_ context.Context, s string) bool {
		return len(strings.Fields(s)) <= maxNameWords
	})
	capitalized := specs.New(func(_ context.Context, s string) bool {
		r, _ := utf8.DecodeRuneInString(s)
		return unicode.IsUpper(r)
	})
	deny := make([]specs.Specification[string], 0, len(fragmentDenylist))
	for _, re := range fragmentDenylist {
		deny = append(deny, specs.New(func(_ context.Context, s string) bool { return re.MatchString(s) }))
	}
	return specs.All(length, words, capitalized, specs.None(deny...))
}

func (e *Extractor) businessSpec() specs.Specification[string] {
	matches := func(p interface{ MatchString(string) bool }) specs.Specification[string] {
		return specs.New(func(_ context.Context, s string) bool { return p.MatchString(s) })
	}
	known := specs.New(func(_ context.Context, s string) bool {
		return e.known[strings.ToLower(s)]
	})
	return specs.Any(
		matches(typeSuffixPattern),
		matches(possessivePattern),
		matches(locationPrefix),
		matches(multiProperPattern),
		known,
	)
}

// Extract runs every rule over text and returns admitted candidates sorted by
// confidence descending, one per case-insensitive name. It never fails; text
// without venues yields an empty slice.
func (e *Extractor) Extract(text string) []Candidate {
	return e.ExtractFrom(text, e.sourceType)
}

// ExtractFrom is Extract with an explicit source type.
func (e *Extractor) ExtractFrom(text string, st models.SourceType) (out []Candidate) {
	out = []Candidate{}
	defer func() {
		if r := recover(); r != nil {
			out = []Candidate{}
		}
	}()
	if strings.TrimSpace(text) == "" {
		return out
	}

	ctx := context.Background()
	best := make(map[string]Candidate)
	for _, rule := range e.rules {
		for _, loc := range rule.Pattern.FindAllStringSubmatchIndex(text, -1) {
			if len(loc) < 4 || loc[2] < 0 {
				continue
			}
			name := normalize(text[loc[2]:loc[3]])
			if !e.structural.IsSatisfiedBy(ctx, name) || !e.business.IsSatisfiedBy(ctx, name) {
				continue
			}
			window := snippet(text, loc[2], loc[3])
			c := Candidate{
				Name:       name,
				Confidence: score(rule.BaseConfidence, name, window),
				SourceType: st,
				Context:    window,
				Rule:       rule.Name,
				Category:   rule.CategoryHint,
			}
			if cat, ok := categoryFor(name); ok {
				c.Category = cat
			}
			if c.Category == "" {
				c.Category = models.CategoryAttraction
			}
			key := strings.ToLower(name)
			if prev, ok := best[key]; !ok || c.Confidence > prev.Confidence {
				best[key] = c
			}
		}
	}

	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// FilterByConfidence keeps candidates at or above threshold, preserving order.
func FilterByConfidence(cands []Candidate, threshold float64) []Candidate {
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Confidence >= threshold {
			out = append(out, c)
		}
	}
	return out
}

func score(base float64, name, window string) float64 {
	conf := base
	if _, ok := categoryFor(name); ok {
		conf += 0.1
	}
	if possessivePattern.MatchString(name) {
		conf += 0.1
	}
	lw := strings.ToLower(window)
	if containsWord(lw, positiveContext) {
		conf += 0.1
	}
	if containsWord(lw, reportingContext) {
		conf -= 0.15
	}
	if len(strings.Fields(name)) > longNameWords || utf8.RuneCountInString(name) > longNameLen {
		conf -= 0.2
	}
	return models.Clamp(conf, 0, 1)
}

func containsWord(lower string, words []string) bool {
	toks := strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) })
	for _, t := range toks {
		for _, w := range words {
			if t == w {
				return true
			}
		}
	}
	return false
}

// snippet returns up to contextWindow bytes around [start,end), widened to
// rune boundaries.
func snippet(text string, start, end int) string {
	lo := start - contextWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + contextWindow
	if hi > len(text) {
		hi = len(text)
	}
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}
	return strings.Join(strings.Fields(text[lo:hi]), " ")
}

const trimSet = ".,;:!?\"'“”‘’()[]{}<>*#"

// normalize collapses whitespace, trims punctuation, strips leading noise
// words and title-cases shouting.
func normalize(raw string) string {
	words := strings.Fields(raw)
	for len(words) > 1 && leadingNoise[strings.ToLower(strings.Trim(words[0], trimSet))] {
		words = words[1:]
	}
	s := strings.Trim(strings.Join(words, " "), trimSet)
	if isShouting(s) {
		s = utils.TitleCase(s)
	}
	return s
}

func isShouting(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters > 3
}
