package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

var (
	slugPattern    = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	nonSlugChars   = regexp.MustCompile(`[^a-z0-9]+`)
	leadingDashes  = regexp.MustCompile(`^-+`)
	trailingDashes = regexp.MustCompile(`-+$`)
)

// ValidSlug reports whether s is a well-formed organization slug.
func ValidSlug(s string) bool {
	return len(s) > 0 && len(s) <= 100 && slugPattern.MatchString(s)
}

// Slugify derives a slug candidate from an organization name.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = nonSlugChars.ReplaceAllString(s, "-")
	s = leadingDashes.ReplaceAllString(s, "")
	s = trailingDashes.ReplaceAllString(s, "")
	if len(s) > 80 {
		s = strings.Trim(s[:80], "-")
	}
	return s
}

// RandomSlugSuffix generates a short random suffix used to disambiguate
// slug collisions, e.g. "acme" -> "acme-1a2b3c".
func RandomSlugSuffix() (string, error) {
	bytes := make([]byte, 3)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
