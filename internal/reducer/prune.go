package reducer

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const blockSelector = "nav, header, footer, aside, form, div, section, ul, ol"

var tagWeights = map[string]float64{
	"nav":    -1.0,
	"footer": -1.0,
	"aside":  -0.8,
	"header": -0.5,
	"form":   -0.5,
}

var negativeHints = regexp.MustCompile(`(?i)(^|[\s_-])(nav|navbar|menu|footer|sidebar|advert|ads?|banner|cookie|consent|share|social|breadcrumbs?|newsletter|popup|modal)([\s_-]|$)`)

// prune removes blocks whose score falls below the threshold. A block's
// score is (1 - link density) plus penalties for boilerplate tags and
// class/id hints; long text blocks get a small bonus.
func (r *Reducer) prune(root *goquery.Selection) {
	root.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		if s.Closest("body").Length() == 0 {
			return
		}
		if s.Find("main, article").Length() > 0 {
			return
		}
		if r.blockScore(s) < r.cfg.PruneThreshold {
			s.Remove()
		}
	})
}

func (r *Reducer) blockScore(s *goquery.Selection) float64 {
	textChars := len(collapseSpace(s.Text()))
	linkChars := 0
	s.Find("a").Each(func(_ int, a *goquery.Selection) {
		linkChars += len(collapseSpace(a.Text()))
	})
	density := 0.0
	if textChars > 0 {
		density = float64(linkChars) / float64(textChars)
		if density > 1 {
			density = 1
		}
	}
	score := 1 - density
	score += tagWeights[goquery.NodeName(s)]
	if hintsBoilerplate(s) {
		score -= 0.5
	}
	if textChars >= 4*r.cfg.MinBlockChars {
		score += 0.2
	}
	return score
}

func hintsBoilerplate(s *goquery.Selection) bool {
	class, _ := s.Attr("class")
	id, _ := s.Attr("id")
	role, _ := s.Attr("role")
	if strings.EqualFold(role, "navigation") || strings.EqualFold(role, "banner") || strings.EqualFold(role, "contentinfo") {
		return true
	}
	return negativeHints.MatchString(class) || negativeHints.MatchString(id)
}
