package enrich

import (
	"strings"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
)

// DefaultKeywords mark a post as relevant regardless of platform.
var DefaultKeywords = []string{"quest", "points", "rank", "leaderboard", "referral"}

// PostRelevance decides whether a post is about the crawled platform.
type PostRelevance interface {
	Relevant(post crawler.Post, platform string) bool
}

// KeywordRelevance matches posts containing the platform name or any of
// Keywords, case-insensitively.
type KeywordRelevance struct {
	Keywords []string
}

// Relevant implements PostRelevance.
func (k KeywordRelevance) Relevant(post crawler.Post, platform string) bool {
	text := strings.ToLower(post.Text)
	if platform != "" && strings.Contains(text, strings.ToLower(platform)) {
		return true
	}
	for _, kw := range k.Keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
