package utils

import (
	"strings"
	"unicode"
)

var foldReplacer = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ä", "a", "ã", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"í", "i", "ì", "i", "î", "i", "ï", "i",
	"ó", "o", "ò", "o", "ô", "o", "ö", "o", "õ", "o",
	"ú", "u", "ù", "u", "û", "u", "ü", "u",
	"ñ", "n", "ç", "c",
	"’", "'", "‘", "'", "&", " and ",
)

// NormalizeName produces the comparison form of a venue name: lower case,
// accents folded, punctuation dropped, whitespace collapsed and a leading
// "the" removed. "The Joe’s  Café!" and "joes cafe" normalize identically.
func NormalizeName(name string) string {
	s := foldReplacer.Replace(strings.ToLower(strings.TrimSpace(name)))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '/':
			b.WriteRune(' ')
		}
	}
	fields := strings.Fields(b.String())
	if len(fields) > 1 && fields[0] == "the" {
		fields = fields[1:]
	}
	return strings.Join(fields, " ")
}

// CalculateStringSimilarity returns a similarity score between two strings in the range [0,1].
// It uses a simple character-overlap heuristic that works well enough for fuzzy matching
// of human-entered names.
func CalculateStringSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}
	if s1 == "" || s2 == "" {
		return 0.0
	}

	longer, shorter := s1, s2
	if len(s2) > len(s1) {
		longer, shorter = s2, s1
	}

	common := 0
	for _, r := range shorter {
		if strings.ContainsRune(longer, r) {
			common++
		}
	}
	return float64(common) / float64(len(longer))
}

// TitleCase upper-cases the first letter of every word and lower-cases the rest.
func TitleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		rs := []rune(strings.ToLower(w))
		if len(rs) > 0 {
			rs[0] = unicode.ToUpper(rs[0])
		}
		words[i] = string(rs)
	}
	return strings.Join(words, " ")
}
