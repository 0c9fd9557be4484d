package collyfetcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
)

// Detector decides whether a static result needs a browser.
type Detector interface {
	ShouldPromote(res crawler.NavigateResult) bool
}

// Hybrid tries a static fetch first and re-fetches in the browser when
// the static fetch fails or the detector flags a client-rendered page.
type Hybrid struct {
	static   crawler.Navigator
	browser  crawler.Navigator
	detector Detector
	logger   *zap.Logger
}

// NewHybrid builds a Hybrid navigator.
func NewHybrid(static, browser crawler.Navigator, detector Detector, logger *zap.Logger) *Hybrid {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hybrid{static: static, browser: browser, detector: detector, logger: logger.Named("hybrid")}
}

// Navigate implements crawler.Navigator.
func (h *Hybrid) Navigate(ctx context.Context, rawURL string, hooks crawler.Hooks) (crawler.NavigateResult, error) {
	res, err := h.static.Navigate(ctx, rawURL, hooks)
	switch {
	case err != nil:
		h.logger.Debug("static fetch failed, promoting", zap.String("url", rawURL), zap.Error(err))
	case h.detector != nil && h.detector.ShouldPromote(res):
		h.logger.Debug("client-rendered page, promoting", zap.String("url", rawURL))
	default:
		return res, nil
	}
	return h.browser.Navigate(ctx, rawURL, hooks)
}
