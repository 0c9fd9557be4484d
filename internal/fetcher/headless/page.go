package headless

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
)

// clickScript clicks the first visible element matching a CSS selector,
// or the first button/link whose text contains the wanted label.
const clickScript = `(() => {
  const css = %s, label = %s;
  const visible = el => !!(el.offsetWidth || el.offsetHeight || el.getClientRects().length);
  let target = null;
  if (css) {
    target = Array.from(document.querySelectorAll(css)).find(visible) || null;
  } else if (label) {
    const want = label.toLowerCase();
    target = Array.from(document.querySelectorAll('button, a, [role="button"]'))
      .find(el => visible(el) && (el.innerText || '').trim().toLowerCase().includes(want)) || null;
  }
  if (!target || target.disabled) return false;
  target.click();
  return true;
})()`

// chromedpPage is the PageHandle handed to AfterLoad hooks. ctx must be
// the chromedp task context of the navigation.
type chromedpPage struct {
	ctx context.Context
}

func (p chromedpPage) ScrollBy(ctx context.Context, pixels int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	script := fmt.Sprintf("window.scrollBy(0, %d)", pixels)
	if err := chromedp.Run(p.ctx, chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

func (p chromedpPage) Click(ctx context.Context, sel crawler.Selector) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	script, err := buildClickScript(sel)
	if err != nil {
		return false, err
	}
	var clicked bool
	if err := chromedp.Run(p.ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return false, fmt.Errorf("click %s: %w", sel, err)
	}
	return clicked, nil
}

func buildClickScript(sel crawler.Selector) (string, error) {
	css, err := json.Marshal(sel.CSS)
	if err != nil {
		return "", err
	}
	label, err := json.Marshal(sel.Text)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(clickScript, css, label), nil
}
