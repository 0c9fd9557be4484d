// Package detector decides when a statically fetched page must be
// re-fetched in a browser because its content is rendered by JavaScript.
package detector

import (
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
)

// Heuristic implements rule-based promotion.
type Heuristic struct {
	// BodyLengthThreshold is the size below which a script-heavy page
	// counts as an app shell.
	BodyLengthThreshold int
	// MinVisibleText is the least amount of body text a server-rendered
	// page is expected to carry.
	MinVisibleText int
}

// NewHeuristic creates a new detector.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = 2048
	}
	return &Heuristic{BodyLengthThreshold: threshold, MinVisibleText: 200}
}

var spaMarkers = []string{
	`id="__next"`,
	`id="__nuxt"`,
	`id="root"`,
	`id="app"`,
	"data-reactroot",
	"ng-version=",
}

var noscriptHints = []string{
	"enable javascript",
	"javascript is required",
	"javascript to run this app",
}

// ShouldPromote reports whether res looks like a client-rendered shell.
// Non-200 responses are never promoted.
func (h *Heuristic) ShouldPromote(res crawler.NavigateResult) bool {
	if res.StatusCode != http.StatusOK {
		return false
	}
	body := res.Content
	if strings.TrimSpace(body) == "" {
		return true
	}
	lower := strings.ToLower(body)
	if len(body) < h.BodyLengthThreshold && scriptDensityHigh(lower) {
		return true
	}
	for _, hint := range noscriptHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}

	hasMarker := false
	for _, marker := range spaMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			hasMarker = true
			break
		}
	}
	if !hasMarker {
		return false
	}
	// A framework root that already carries real text was server-rendered.
	return visibleTextLen(body) < h.MinVisibleText
}

func visibleTextLen(body string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return 0
	}
	doc.Find("script, style, noscript, template").Remove()
	return len(strings.Join(strings.Fields(doc.Find("body").Text()), " "))
}

// scriptDensityHigh reports whether script elements cover at least a
// quarter of the lowercased document.
func scriptDensityHigh(lower string) bool {
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	coverage := 0
	pos := 0
	for {
		rel := strings.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel
		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			coverage += total - start
			break
		}
		contentStart := start + tagClose + 1
		next := total
		if end := strings.Index(lower[contentStart:], closeTag); end != -1 {
			next = contentStart + end + len(closeTag)
		}
		coverage += next - start
		pos = next
	}
	return coverage*100/total >= 25
}
