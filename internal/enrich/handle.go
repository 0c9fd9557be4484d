package enrich

import (
	"strings"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
)

var profilePrefixes = []string{
	"https://twitter.com/", "https://x.com/",
	"http://twitter.com/", "http://x.com/",
	"https://www.twitter.com/", "https://www.x.com/",
	"twitter.com/", "x.com/",
}

// NormalizeHandle strips a profile URL prefix and the leading sigil from
// raw. The result is empty when nothing usable remains.
func NormalizeHandle(raw string) string {
	h := strings.TrimSpace(raw)
	lower := strings.ToLower(h)
	for _, p := range profilePrefixes {
		if strings.HasPrefix(lower, p) {
			h = h[len(p):]
			break
		}
	}
	if i := strings.IndexAny(h, "/?#"); i >= 0 {
		h = h[:i]
	}
	h = strings.Trim(h, "@ ")
	if strings.ContainsAny(h, " \t\n") {
		return ""
	}
	return h
}

// PlatformFromURL names the platform a page belongs to: the first known
// platform contained in its host, else the host's second-level label.
func PlatformFromURL(rawURL string, known []string) string {
	host := crawler.Hostname(rawURL)
	if host == "" {
		return ""
	}
	for _, p := range known {
		if p != "" && strings.Contains(host, strings.ToLower(p)) {
			return strings.ToLower(p)
		}
	}
	labels := strings.Split(host, ".")
	if len(labels) >= 2 {
		return labels[len(labels)-2]
	}
	return host
}
