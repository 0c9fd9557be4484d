package harvest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
	"github.com/JakeFAU/infofi-harvester/internal/filter"
	"github.com/JakeFAU/infofi-harvester/internal/frontier"
	"github.com/JakeFAU/infofi-harvester/internal/metrics"
	"github.com/JakeFAU/infofi-harvester/internal/progress"
)

// processNode drives one admitted node to a terminal state and returns its
// artifact. Failures stay inside the artifact.
func (s *Session) processNode(ctx context.Context, sessionID string, sched *frontier.Scheduler, node *crawler.FrontierNode) crawler.PageArtifact {
	logger := s.logger.With(
		zap.String("session_id", sessionID),
		zap.String("url", node.URL),
		zap.Int("depth", node.Depth),
	)
	page := crawler.PageArtifact{
		URL:       node.URL,
		ParentURL: node.ParentURL,
		Depth:     node.Depth,
		LinkScore: node.LinkScore,
		State:     crawler.NodeAdmitted,
		FetchedAt: s.deps.Clock.Now(),
	}

	nav, err := s.fetch(ctx, node.URL)
	if err != nil {
		node.State = crawler.NodeFetchFailed
		page.State = node.State
		page.Error = err.Error()
		logger.Warn("fetch failed", zap.Error(err))
		s.finishPage(sessionID, node, &page, nav)
		return page
	}
	node.State = crawler.NodeFetched
	page.State = node.State
	page.FinalURL = nav.FinalURL
	page.StatusCode = nav.StatusCode
	page.ContentType = nav.ContentType
	if hash, hashErr := s.deps.Hasher.Hash([]byte(nav.Content)); hashErr == nil {
		page.ContentHash = hash
	} else {
		logger.Debug("hash content failed", zap.Error(hashErr))
	}

	pageURL := node.URL
	if nav.FinalURL != "" {
		pageURL = nav.FinalURL
	}
	// The response stage gates expansion only; the page itself is still
	// extracted.
	if cand, candErr := filter.NewCandidate(pageURL, nav.ContentType); candErr == nil {
		if decision := s.deps.Chain.Admit(filter.StageResponse, cand); !decision.Admitted {
			page.ChildrenRejected = decision.RejectedBy
			logger.Debug("children rejected", zap.String("rejected_by", decision.RejectedBy), zap.String("content_type", nav.ContentType))
		}
	}

	reduced, err := s.deps.Reducer.Reduce(ctx, pageURL, nav.Content)
	if err != nil {
		node.State = crawler.NodeExtractionFailed
		page.State = node.State
		page.Error = fmt.Sprintf("reduce: %v", err)
		logger.Warn("reduce failed", zap.Error(err))
		s.finishPage(sessionID, node, &page, nav)
		return page
	}
	page.Tables = reduced.Tables

	result, err := s.extract(ctx, pageURL, reduced)
	switch {
	case err != nil:
		node.State = crawler.NodeExtractionFailed
		page.Error = err.Error()
		page.RawExtracted = result.Raw()
		var extErr *crawler.ExtractionError
		if errors.As(err, &extErr) && extErr.Raw != "" {
			page.RawExtracted = extErr.Raw
		}
		logger.Warn("extraction failed", zap.Error(err))
	case result.Kind() == crawler.ResultRaw:
		node.State = crawler.NodeExtractionFailed
		page.Error = (&crawler.ExtractionError{URL: pageURL, Raw: result.Raw(), Err: errors.New("undecodable output")}).Error()
		page.RawExtracted = result.Raw()
		logger.Warn("extraction output could not be decoded; keeping raw text", zap.Int("raw_bytes", len(result.Raw())))
	default:
		node.State = crawler.NodeExtracted
		page.Summary = result.Summary()
		page.Records = result.Records()
	}
	page.State = node.State
	if node.State != crawler.NodeExtracted {
		s.finishPage(sessionID, node, &page, nav)
		return page
	}

	if node.Depth < s.cfg.Scope.MaxDepth && page.ChildrenRejected == "" && ctx.Err() == nil {
		s.expand(ctx, sched, node, reduced.Links, logger)
		node.State = crawler.NodeChildrenEnqueued
		page.State = node.State
	}
	s.finishPage(sessionID, node, &page, nav)
	return page
}

// fetch navigates with a context detached from session cancellation so the
// in-flight request ends by completing or by its own timeout.
func (s *Session) fetch(ctx context.Context, rawURL string) (crawler.NavigateResult, error) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NavTimeout)
	defer cancel()
	nav, err := s.deps.Navigator.Navigate(fetchCtx, rawURL, s.deps.Hooks)
	if err != nil {
		var fetchErr *crawler.FetchError
		if !errors.As(err, &fetchErr) {
			err = &crawler.FetchError{URL: rawURL, Err: err}
		}
		return nav, err
	}
	if !nav.Success {
		msg := nav.ErrorMessage
		if msg == "" {
			msg = "navigation unsuccessful"
		}
		return nav, &crawler.FetchError{URL: rawURL, Err: errors.New(msg)}
	}
	return nav, nil
}

func (s *Session) extract(ctx context.Context, pageURL string, reduced crawler.ReducedContent) (crawler.ExtractionResult, error) {
	extractCtx, cancel := context.WithTimeout(ctx, s.cfg.ExtractTimeout)
	defer cancel()
	return s.deps.Extractor.Extract(extractCtx, pageURL, reduced)
}

// expand scores the links that can still be scheduled and hands them to the
// frontier.
func (s *Session) expand(ctx context.Context, sched *frontier.Scheduler, node *crawler.FrontierNode, links []crawler.Link, logger *zap.Logger) {
	eligible := sched.Eligible(node, links)
	if len(eligible) == 0 {
		logger.Debug("no eligible links", zap.Int("discovered", len(links)))
		return
	}
	var scored []crawler.ScoredLink
	if s.deps.Ranker != nil {
		scored = s.deps.Ranker.Rank(ctx, eligible)
	} else {
		scored = make([]crawler.ScoredLink, len(eligible))
		for i, l := range eligible {
			scored[i] = crawler.ScoredLink{Link: l}
		}
	}
	stats := sched.Complete(node, scored)
	logger.Debug("children enqueued",
		zap.Int("discovered", len(links)),
		zap.Int("enqueued", stats.Enqueued),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("rejected", stats.Rejected),
		zap.Int("external", stats.External),
	)
}

func (s *Session) finishPage(sessionID string, node *crawler.FrontierNode, page *crawler.PageArtifact, nav crawler.NavigateResult) {
	site := metrics.SanitizeSite(node.URL)
	metrics.ObservePage(site, string(page.State))
	metrics.ObserveRecords(site, len(page.Records))

	evt := progress.Event{
		SessionID: sessionID,
		Seed:      node.SeedURL,
		Site:      site,
		URL:       node.URL,
		Depth:     node.Depth,
		Bytes:     int64(len(nav.Content)),
		Records:   len(page.Records),
		Dur:       nav.Duration,
	}
	switch page.State {
	case crawler.NodeFetchFailed, crawler.NodeExtractionFailed:
		evt.Stage = progress.StagePageFailed
		evt.Note = strings.TrimSpace(page.Error)
	case crawler.NodeRejected:
		evt.Stage = progress.StagePageSkipped
		evt.Note = page.Error
	default:
		evt.Stage = progress.StagePageDone
		evt.StatusClass = progress.ClassifyStatus(page.StatusCode)
	}
	s.emit(evt)
}
