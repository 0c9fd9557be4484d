package llm

import (
	"context"
	"net/url"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
)

// Score embeds query and every link, and scores each link by cosine
// similarity to the query, clamped to [0, 1]. Results keep input order.
func (c *Client) Score(ctx context.Context, links []crawler.Link, query string) ([]crawler.ScoredLink, error) {
	if len(links) == 0 {
		return nil, nil
	}
	inputs := make([]string, 0, len(links)+1)
	inputs = append(inputs, query)
	for _, l := range links {
		inputs = append(inputs, LinkText(l))
	}
	vectors, err := c.embed(ctx, inputs)
	if err != nil {
		return nil, err
	}
	out := make([]crawler.ScoredLink, len(links))
	for i, l := range links {
		out[i] = crawler.ScoredLink{Link: l, Score: Cosine(vectors[0], vectors[i+1])}
	}
	return out, nil
}

// LinkText is the text embedded for a link: its anchor text followed by
// the words of its path.
func LinkText(l crawler.Link) string {
	parts := []string{l.Text}
	if u, err := url.Parse(l.URL); err == nil {
		path := strings.NewReplacer("/", " ", "-", " ", "_", " ").Replace(u.Path)
		parts = append(parts, path)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// Cosine returns the cosine similarity of a and b clamped to [0, 1]; it is
// zero for mismatched or zero-length vectors.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	sim := floats.Dot(a, b) / (na * nb)
	switch {
	case sim < 0:
		return 0
	case sim > 1:
		return 1
	default:
		return sim
	}
}
