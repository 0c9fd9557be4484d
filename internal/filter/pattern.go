package filter

import (
	"strings"

	"github.com/gobwas/glob"
)

// URLPatternFilter admits URLs whose path (plus query) matches any glob.
// "*" matches across path separators, so "*quest*" admits "/quests/42".
type URLPatternFilter struct {
	patterns []glob.Glob
}

// NewURLPatternFilter compiles patterns case-insensitively. It returns nil
// when no usable pattern is given so callers can pass it straight to
// NewChain.
func NewURLPatternFilter(patterns []string) (*URLPatternFilter, error) {
	f := &URLPatternFilter{}
	for _, raw := range patterns {
		p := strings.ToLower(strings.TrimSpace(raw))
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, err
		}
		f.patterns = append(f.patterns, g)
	}
	if len(f.patterns) == 0 {
		return nil, nil
	}
	return f, nil
}

// Name implements Predicate.
func (*URLPatternFilter) Name() string { return "url_pattern" }

// Stage implements Predicate.
func (*URLPatternFilter) Stage() Stage { return StageLink }

// Admit implements Predicate.
func (f *URLPatternFilter) Admit(c Candidate) bool {
	if f == nil || len(f.patterns) == 0 {
		return true
	}
	if c.URL == nil {
		return false
	}
	target := strings.ToLower(c.URL.EscapedPath())
	if c.URL.RawQuery != "" {
		target += "?" + strings.ToLower(c.URL.RawQuery)
	}
	for _, g := range f.patterns {
		if g.Match(target) {
			return true
		}
	}
	return false
}
