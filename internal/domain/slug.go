package domain

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxDomainLength keeps generated domains within a single DNS label.
	MaxDomainLength = 63

	// DatabasePrefix separates tenant databases from the central one.
	DatabasePrefix = "school_"

	fallbackDomain = "school"
)

var reservedDomains = map[string]struct{}{
	"www":     {},
	"admin":   {},
	"api":     {},
	"app":     {},
	"mail":    {},
	"central": {},
}

// IsReservedDomain reports whether the label is kept for platform use.
func IsReservedDomain(domain string) bool {
	_, ok := reservedDomains[strings.ToLower(domain)]
	return ok
}

// Slugify turns a school name into a lowercase ASCII domain label.
// Accents are folded ("Académie" -> "academie"), every other run of
// non-alphanumerics becomes one dash, and the result is cut to MaxDomainLength.
// Inputs with nothing usable fall back to "school".
func Slugify(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}

	out := strings.Trim(b.String(), "-")
	out = cut(out, MaxDomainLength)
	if out == "" {
		return fallbackDomain
	}
	return out
}

// WithSuffix appends the numeric collision suffix, trimming the base so the
// result still fits in MaxDomainLength.
func WithSuffix(base string, n int) string {
	suffix := "-" + strconv.Itoa(n)
	return cut(base, MaxDomainLength-len(suffix)) + suffix
}

// DatabaseNameFor derives the backing database identifier of a tenant domain.
func DatabaseNameFor(domain string) string {
	return DatabasePrefix + strings.ReplaceAll(strings.ToLower(domain), "-", "_")
}

func cut(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.Trim(s[:n], "-")
}
