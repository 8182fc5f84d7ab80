// Package identity decides which actors are automation accounts and
// must be excluded from human-contribution statistics.
package identity

import (
	"fmt"
	"regexp"
	"strings"
)

// Filter matches display names and handles against an ordered list of
// bot patterns. Matching is case-insensitive; an empty pattern list
// matches nobody.
type Filter struct {
	patterns []*regexp.Regexp
}

// NewFilter compiles the given patterns. Patterns are made
// case-insensitive unless they already carry an inline flag group.
func NewFilter(patterns []string) (*Filter, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		expr := p
		if !strings.HasPrefix(expr, "(?") {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid bot pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return &Filter{patterns: compiled}, nil
}

// IsBot reports whether the actor matches any bot pattern
func (f *Filter) IsBot(nameOrHandle string) bool {
	for _, re := range f.patterns {
		if re.MatchString(nameOrHandle) {
			return true
		}
	}
	return false
}
