package extractor

import (
	"strings"
	"unicode"
)

var (
	positiveLexicon = map[string]bool{
		"amazing": true, "awesome": true, "beautiful": true, "best": true, "delicious": true,
		"excellent": true, "fantastic": true, "favorite": true, "favourite": true, "friendly": true,
		"gem": true, "good": true, "great": true, "incredible": true, "love": true, "loved": true,
		"lovely": true, "nice": true, "perfect": true, "recommend": true, "recommended": true,
		"stunning": true, "tasty": true, "wonderful": true,
	}
	negativeLexicon = map[string]bool{
		"avoid": true, "awful": true, "bad": true, "closed": true, "dirty": true, "disappointing": true,
		"horrible": true, "mediocre": true, "overpriced": true, "rude": true, "scam": true,
		"terrible": true, "worst": true, "crowded": true, "bland": true,
	}
	negators = map[string]bool{"not": true, "never": true, "no": true, "don't": true, "isn't": true, "wasn't": true}
)

// Sentiment returns a lexicon score in [-1,1]: (positive-negative)/(positive+negative).
// A negator directly before a word flips it. Text with no opinion words scores 0.
func Sentiment(text string) float64 {
	toks := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	pos, neg := 0, 0
	for i, t := range toks {
		flip := i > 0 && negators[toks[i-1]]
		switch {
		case positiveLexicon[t] && !flip, negativeLexicon[t] && flip:
			pos++
		case negativeLexicon[t], positiveLexicon[t]:
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}
