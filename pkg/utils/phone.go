package utils

import (
	"regexp"
	"strings"
)

var nonPhoneChars = regexp.MustCompile(`[^\d+]`)

// NormalizePhoneNumber normalizes a phone number into a canonical format.
// A leading '+' is kept; 10-digit numbers are assumed North American.
func NormalizePhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}
	clean := nonPhoneChars.ReplaceAllString(phone, "")
	if strings.HasPrefix(clean, "+") {
		return clean
	}
	if len(clean) == 10 {
		return "+1" + clean
	}
	if len(clean) == 11 && strings.HasPrefix(clean, "1") {
		return "+" + clean
	}
	return "+" + clean
}

// IsValidPhone accepts numbers with 7 to 15 digits (E.164 upper bound).
func IsValidPhone(phone string) bool {
	digits := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 7 && digits <= 15
}
