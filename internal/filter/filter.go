// Package filter selects samples by name using substring or /regex/ patterns.
package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern represents a compiled filter condition supporting substring and regex matching.
type Pattern struct {
	raw    string
	regex  *regexp.Regexp
	lower  string
	negate bool
}

// Compile transforms raw pattern strings into Pattern values. A leading "!"
// turns the pattern into an exclusion.
func Compile(patterns []string) ([]Pattern, error) {
	result := make([]Pattern, 0, len(patterns))
	for _, raw := range patterns {
		raw = strings.TrimSpace(raw)
		negate := strings.HasPrefix(raw, "!")
		body := strings.TrimSpace(strings.TrimPrefix(raw, "!"))
		if body == "" {
			continue
		}
		if strings.HasPrefix(body, "/") && strings.HasSuffix(body, "/") && len(body) >= 2 {
			re, err := regexp.Compile(body[1 : len(body)-1])
			if err != nil {
				return nil, fmt.Errorf("compile regexp %q: %w", raw, err)
			}
			result = append(result, Pattern{raw: raw, regex: re, negate: negate})
			continue
		}
		result = append(result, Pattern{raw: raw, lower: strings.ToLower(body), negate: negate})
	}
	return result, nil
}

// String returns the pattern as written.
func (p Pattern) String() string { return p.raw }

// Excludes reports whether the pattern was written with a leading "!".
func (p Pattern) Excludes() bool { return p.negate }

// Match reports whether the pattern body matches s, ignoring negation.
func (p Pattern) Match(s string) bool {
	if s == "" {
		return false
	}
	if p.regex != nil {
		return p.regex.MatchString(s)
	}
	return strings.Contains(strings.ToLower(s), p.lower)
}

// Allow reports whether name passes the pattern set: it must match at least
// one inclusion (when any exist) and no exclusion.
func Allow(name string, patterns []Pattern) bool {
	included, hasInclude := false, false
	for _, p := range patterns {
		if p.negate {
			if p.Match(name) {
				return false
			}
			continue
		}
		hasInclude = true
		if p.Match(name) {
			included = true
		}
	}
	return !hasInclude || included
}

// Select returns the items whose name passes the pattern set, keeping order.
func Select[T any](items []T, name func(T) string, patterns []Pattern) []T {
	if len(patterns) == 0 {
		return items
	}
	result := make([]T, 0, len(items))
	for _, item := range items {
		if Allow(name(item), patterns) {
			result = append(result, item)
		}
	}
	return result
}
