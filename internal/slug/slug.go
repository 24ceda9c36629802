// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slug provides URL-friendly slug generation from arbitrary strings.
package slug

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// Separator joins words in a slug.
	Separator = "-"

	// MaxLength is the longest slug the store accepts.
	MaxLength = 200
)

var (
	// nonAlphanumeric matches every run of characters outside [a-z0-9].
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

	// valid matches a canonical slug.
	valid = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// Generate creates a URL-friendly slug from the given string.
// Accents are folded to their base letters, everything is lowercased and each
// run of non-alphanumeric characters becomes a single hyphen.
// Example: "Café Culture: 2026 Edition" → "cafe-culture-2026-edition"
func Generate(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	result := strings.ToLower(folded)
	result = nonAlphanumeric.ReplaceAllString(result, Separator)
	return strings.Trim(result, Separator)
}

// IsValid reports whether s is already in canonical slug form.
func IsValid(s string) bool {
	return valid.MatchString(s)
}

// Truncate shortens s to at most n bytes, cutting at a word boundary when
// one is available.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	if s[n:n+1] != Separator {
		if i := strings.LastIndex(cut, Separator); i > 0 {
			cut = cut[:i]
		}
	}
	return strings.TrimRight(cut, Separator)
}

// Unique returns base if it is free, otherwise the first of base-2, base-3, …
// for which taken reports false. Every result fits in MaxLength: the base
// is shortened to make room for the suffix.
func Unique(base string, taken func(string) bool) string {
	base = Truncate(base, MaxLength)
	if !taken(base) {
		return base
	}
	for n := 2; ; n++ {
		suffix := Separator + strconv.Itoa(n)
		candidate := Truncate(base, MaxLength-len(suffix)) + suffix
		if !taken(candidate) {
			return candidate
		}
	}
}

// Stem returns the longest prefix shared by every slug Unique can derive
// from base while the suffix stays under ten digits.
func Stem(base string) string {
	return Truncate(base, MaxLength-len(Separator)-10)
}
