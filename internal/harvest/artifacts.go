package harvest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
)

const (
	dataContentType = "application/json"
	rawContentType  = "text/plain; charset=utf-8"
)

// Notice announces a written seed artifact.
type Notice struct {
	SessionID string `json:"session_id"`
	SeedURL   string `json:"seed_url"`
	URI       string `json:"uri"`
	Records   int    `json:"records"`
	Pages     int    `json:"pages"`
}

// Attributes returns the message attributes for transports that support
// them.
func (n Notice) Attributes() map[string]string {
	return map[string]string{
		"session_id": n.SessionID,
		"seed_url":   n.SeedURL,
	}
}

// writeSeed stores the data artifact and, when any page kept undecodable
// extraction output, the raw artifact. Writes are not interrupted by
// session cancellation.
func (s *Session) writeSeed(ctx context.Context, art *crawler.SeedArtifact) (dataURI, rawURI string, err error) {
	ctx = context.WithoutCancel(ctx)
	dataURI, err = s.putData(ctx, art)
	if err != nil {
		return "", "", err
	}

	raw := rawText(art.Pages)
	if raw == "" {
		return dataURI, "", nil
	}
	rawURI, err = s.deps.Store.PutObject(ctx, crawler.RawArtifactName(art.SeedURL), rawContentType, strings.NewReader(raw))
	if err != nil {
		return dataURI, "", fmt.Errorf("put raw artifact: %w", err)
	}
	return dataURI, rawURI, nil
}

func (s *Session) putData(ctx context.Context, art *crawler.SeedArtifact) (string, error) {
	body, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode seed artifact: %w", err)
	}
	uri, err := s.deps.Store.PutObject(ctx, crawler.DataArtifactName(art.SeedURL), dataContentType, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("put data artifact: %w", err)
	}
	return uri, nil
}

// rewriteEnriched replaces the data artifact of every written seed that
// holds records, so the stored records carry their engagement data.
func (s *Session) rewriteEnriched(ctx context.Context, sessionID string, seeds []SeedResult) {
	for i := range seeds {
		sr := &seeds[i]
		if sr.Skipped || sr.Err != nil || sr.DataURI == "" || len(sr.Artifact.Records()) == 0 {
			continue
		}
		if _, err := s.putData(context.WithoutCancel(ctx), &sr.Artifact); err != nil {
			sr.Err = err
			s.logger.Error("rewrite enriched artifact failed",
				zap.String("session_id", sessionID),
				zap.String("seed", sr.Artifact.SeedURL),
				zap.Error(err))
		}
	}
}

func (s *Session) notify(ctx context.Context, sr SeedResult) {
	if s.cfg.Topic == "" || s.deps.Publisher == nil {
		return
	}
	notice := Notice{
		SessionID: sr.Artifact.SessionID,
		SeedURL:   sr.Artifact.SeedURL,
		URI:       sr.DataURI,
		Records:   len(sr.Artifact.Records()),
		Pages:     len(sr.Artifact.Pages),
	}
	id, err := s.deps.Publisher.Publish(context.WithoutCancel(ctx), s.cfg.Topic, notice)
	if err != nil {
		s.logger.Warn("publish artifact notice failed",
			zap.String("session_id", notice.SessionID),
			zap.String("seed", notice.SeedURL),
			zap.Error(err))
		return
	}
	s.logger.Debug("artifact notice published",
		zap.String("session_id", notice.SessionID),
		zap.String("seed", notice.SeedURL),
		zap.String("message_id", id))
}

// rawText concatenates the undecodable extraction output of pages, each
// block headed by its page URL.
func rawText(pages []crawler.PageArtifact) string {
	var b strings.Builder
	for _, p := range pages {
		if strings.TrimSpace(p.RawExtracted) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "=== %s ===\n%s\n", p.URL, p.RawExtracted)
	}
	return b.String()
}
