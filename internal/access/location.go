// Package access derives what an administrator may see and do from their role
// and assigned location. Everything here is pure: no I/O, no clock.
package access

import (
	"strings"
	"unicode"

	"github.com/civicreport/civic-server/internal/models"
)

const tehsilSuffix = "tehsil"

// NormalizeBlock case-folds a block name and strips trailing "Tehsil" tokens,
// so "Kasrawad", "kasrawad tehsil" and "KASRAWAD  Tehsil" compare equal.
func NormalizeBlock(block string) string {
	s := strings.ToLower(strings.TrimSpace(block))
	for strings.HasSuffix(s, tehsilSuffix) {
		head := s[:len(s)-len(tehsilSuffix)]
		trimmed := strings.TrimRightFunc(head, unicode.IsSpace)
		// "tehsil" must be its own token, not the tail of a longer word.
		if trimmed == head || trimmed == "" {
			break
		}
		s = trimmed
	}
	return s
}

// NormalizeName case-folds and trims a state, district or village name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func sameName(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}

func sameBlock(a, b string) bool {
	return NormalizeBlock(a) == NormalizeBlock(b)
}

// Contains reports whether target lies inside outer at the given granularity.
// granularity is a role hierarchy level: 0 compares state only, 3 compares all four fields.
func Contains(outer, target models.Location, granularity int) bool {
	if granularity < 0 || granularity > 3 {
		return false
	}
	if blank(outer.State) || !sameName(outer.State, target.State) {
		return false
	}
	if granularity >= 1 && (blank(outer.District) || !sameName(outer.District, target.District)) {
		return false
	}
	if granularity >= 2 && (blank(outer.Block) || !sameBlock(outer.Block, target.Block)) {
		return false
	}
	if granularity >= 3 && (blank(outer.Village) || !sameName(outer.Village, target.Village)) {
		return false
	}
	return true
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
