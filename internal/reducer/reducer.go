// Package reducer turns rendered HTML into the compact markdown handed to
// structured extraction. It discovers outbound links, keeps well-formed data
// tables verbatim, prunes boilerplate blocks by link density and tag hints,
// and can optionally run a semantic reduction pass through a language model.
package reducer

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
)

// Config controls pruning and table retention.
type Config struct {
	PruneThreshold      float64
	MinBlockChars       int
	TableScoreThreshold int
	MinTableRows        int
	Semantic            bool
	ChunkSize           int
	Instruction         string
}

// Reducer implements the content reduction stage.
type Reducer struct {
	cfg       Config
	semantic  crawler.SemanticReducer
	policy    *bluemonday.Policy
	converter *md.Converter
	logger    *zap.Logger
}

// New builds a Reducer. semantic may be nil, which disables the semantic
// pass regardless of cfg.Semantic.
func New(cfg Config, semantic crawler.SemanticReducer, logger *zap.Logger) *Reducer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PruneThreshold == 0 {
		cfg.PruneThreshold = 0.3
	}
	if cfg.MinBlockChars <= 0 {
		cfg.MinBlockChars = 80
	}
	if cfg.TableScoreThreshold <= 0 {
		cfg.TableScoreThreshold = 6
	}
	if cfg.MinTableRows <= 0 {
		cfg.MinTableRows = 2
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 4096
	}
	return &Reducer{
		cfg:       cfg,
		semantic:  semantic,
		policy:    bluemonday.UGCPolicy(),
		converter: md.NewConverter("", true, nil),
		logger:    logger.Named("reducer"),
	}
}

// Reduce parses html fetched from pageURL and returns its reduced form.
// A failing semantic pass falls back to the pruned markdown.
func (r *Reducer) Reduce(ctx context.Context, pageURL, html string) (crawler.ReducedContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return crawler.ReducedContent{}, fmt.Errorf("parse html: %w", err)
	}
	base, _ := url.Parse(pageURL)

	out := crawler.ReducedContent{
		URL:   pageURL,
		Title: collapseSpace(doc.Find("title").First().Text()),
		Links: DiscoverLinks(doc, base),
	}

	doc.Find("script, style, noscript, iframe, svg, template, link, meta, object, embed").Remove()
	out.Tables = r.retainTables(doc)
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	r.prune(body)

	markdown, err := r.toMarkdown(body)
	if err != nil {
		return crawler.ReducedContent{}, err
	}
	if r.cfg.Semantic && r.semantic != nil && strings.TrimSpace(markdown) != "" {
		reduced, semErr := r.semantic.Reduce(ctx, markdown, r.cfg.Instruction, r.cfg.ChunkSize)
		switch {
		case semErr != nil:
			r.logger.Warn("semantic reduction failed; keeping pruned content",
				zap.String("url", pageURL), zap.Error(semErr))
		case strings.TrimSpace(reduced) != "":
			markdown = reduced
		}
	}
	out.Markdown = appendTables(markdown, out.Tables)
	return out, nil
}

func (r *Reducer) toMarkdown(sel *goquery.Selection) (string, error) {
	html, err := sel.Html()
	if err != nil {
		return "", fmt.Errorf("render pruned html: %w", err)
	}
	markdown, err := r.converter.ConvertString(r.policy.Sanitize(html))
	if err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}

// DiscoverLinks returns the absolute http(s) anchors of doc in document
// order, without duplicates.
func DiscoverLinks(doc *goquery.Document, base *url.URL) []crawler.Link {
	var links []crawler.Link
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs, ok := crawler.ResolveLink(base, href)
		if !ok {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		text := collapseSpace(s.Text())
		if text == "" {
			text, _ = s.Attr("title")
		}
		links = append(links, crawler.Link{URL: abs, Text: text})
	})
	return links
}

func appendTables(markdown string, tables []crawler.Table) string {
	if len(tables) == 0 {
		return markdown
	}
	var b strings.Builder
	b.WriteString(markdown)
	for _, t := range tables {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(RenderTable(t))
	}
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
