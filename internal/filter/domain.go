package filter

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// domainPatterns stores exact hosts, suffix wildcards ("*.example.com" or
// ".example.com") and any other glob expressions.
type domainPatterns struct {
	exact    map[string]struct{}
	suffixes []string
	globs    []string
}

func newDomainPatterns(patterns []string) *domainPatterns {
	matcher := &domainPatterns{
		exact: make(map[string]struct{}),
	}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		if value == "" {
			continue
		}
		switch {
		case strings.HasPrefix(value, "*.") && !strings.ContainsAny(value[2:], "*?[{"):
			matcher.addSuffix(strings.TrimPrefix(value, "*."))
		case strings.HasPrefix(value, "."):
			matcher.addSuffix(strings.TrimPrefix(value, "."))
		case strings.ContainsAny(value, "*?[{"):
			if doublestar.ValidatePattern(value) {
				matcher.globs = append(matcher.globs, value)
			}
		default:
			matcher.exact[value] = struct{}{}
		}
	}
	if len(matcher.exact) == 0 && len(matcher.suffixes) == 0 && len(matcher.globs) == 0 {
		return nil
	}
	return matcher
}

func (m *domainPatterns) addSuffix(suffix string) {
	if suffix == "" {
		return
	}
	for _, existing := range m.suffixes {
		if existing == suffix {
			return
		}
	}
	m.suffixes = append(m.suffixes, suffix)
}

func (m *domainPatterns) Match(host string) bool {
	if m == nil {
		return false
	}
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return false
	}
	if _, exact := m.exact[host]; exact {
		return true
	}
	for _, suffix := range m.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	for _, g := range m.globs {
		if ok, _ := doublestar.Match(g, host); ok {
			return true
		}
	}
	return false
}

// DomainFilter admits hosts on the allow list (when one is configured) and
// rejects hosts on the deny list. Deny wins over allow.
type DomainFilter struct {
	allow *domainPatterns
	deny  *domainPatterns
}

// NewDomainFilter returns nil when both lists are empty.
func NewDomainFilter(allow, deny []string) *DomainFilter {
	f := &DomainFilter{
		allow: newDomainPatterns(allow),
		deny:  newDomainPatterns(deny),
	}
	if f.allow == nil && f.deny == nil {
		return nil
	}
	return f
}

// Name implements Predicate.
func (*DomainFilter) Name() string { return "domain" }

// Stage implements Predicate.
func (*DomainFilter) Stage() Stage { return StageLink }

// Admit implements Predicate.
func (f *DomainFilter) Admit(c Candidate) bool {
	if f == nil {
		return true
	}
	if c.URL == nil {
		return false
	}
	host := c.URL.Hostname()
	if f.deny.Match(host) {
		return false
	}
	if f.allow != nil && !f.allow.Match(host) {
		return false
	}
	return true
}
