package scorer

import (
	"fmt"
	"strings"

	"venue-discovery/internal/models"
)

// IdentityViolation explains why an enhanced list was rejected.
type IdentityViolation struct {
	Reason string
}

func (e *IdentityViolation) Error() string { return "identity check failed: " + e.Reason }

// CheckIdentity reports whether enhanced holds exactly the venues of
// original: same count, no duplicate names, every original name present.
// Names compare case-insensitively after trimming.
func CheckIdentity(original, enhanced []*models.Venue) error {
	if len(original) != len(enhanced) {
		return &IdentityViolation{Reason: fmt.Sprintf("count %d != %d", len(enhanced), len(original))}
	}
	seen := make(map[string]bool, len(enhanced))
	for _, v := range enhanced {
		if v == nil {
			return &IdentityViolation{Reason: "nil venue"}
		}
		k := identityKey(v.Name)
		if seen[k] {
			return &IdentityViolation{Reason: "duplicate " + v.Name}
		}
		seen[k] = true
	}
	for _, v := range original {
		if v == nil {
			continue
		}
		if !seen[identityKey(v.Name)] {
			return &IdentityViolation{Reason: "missing " + v.Name}
		}
	}
	return nil
}

// VerifyIdentity returns enhanced when it passes CheckIdentity and original
// otherwise. The boolean reports whether the enhancement was kept.
func VerifyIdentity(original, enhanced []*models.Venue) ([]*models.Venue, bool) {
	if CheckIdentity(original, enhanced) != nil {
		return original, false
	}
	return enhanced, true
}

func identityKey(name string) string { return strings.ToLower(strings.TrimSpace(name)) }
