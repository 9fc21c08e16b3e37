package browser

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

const (
	// urlPollInterval is how often WaitURL checks the current location
	urlPollInterval = 100 * time.Millisecond
	// nodePollInterval is how often a selector is re-queried for a visible match
	nodePollInterval = 50 * time.Millisecond
)

// visibleJS reports whether the element renders a box that is not hidden
const visibleJS = `function() {
	if (!(this.offsetWidth || this.offsetHeight || this.getClientRects().length)) {
		return false;
	}
	return getComputedStyle(this).visibility !== 'hidden';
}`

// Page is a chromedp-backed browser tab
type Page struct {
	ctx             context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
	baseURL         string
	timeout         time.Duration
	logger          arbor.ILogger
	closeOnce       sync.Once
	closeErr        error
}

// actionContext derives a context for one blocking browser action: it targets
// this page, expires after the action timeout and is cancelled with ctx.
func (p *Page) actionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	actionCtx, cancel := context.WithTimeout(p.ctx, p.timeout)
	stop := context.AfterFunc(ctx, cancel)
	return actionCtx, func() {
		stop()
		cancel()
	}
}

// run executes actions under an action context
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	actionCtx, cancel := p.actionContext(ctx)
	defer cancel()
	return chromedp.Run(actionCtx, actions...)
}

// ResolveURL resolves route against the base URL
func (p *Page) ResolveURL(route string) (string, error) {
	if p.baseURL == "" {
		return route, nil
	}
	base, err := url.Parse(p.baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse base url: %w", err)
	}
	ref, err := url.Parse(route)
	if err != nil {
		return "", fmt.Errorf("failed to parse route %s: %w", route, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// Navigate loads route and waits for the load event
func (p *Page) Navigate(ctx context.Context, route string) error {
	target, err := p.ResolveURL(route)
	if err != nil {
		return err
	}

	p.logger.Debug().Str("url", target).Msg("Navigating")

	if err := p.run(ctx, chromedp.Navigate(target)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", target, err)
	}
	return nil
}

// FillPlaceholder replaces the value of the visible input whose placeholder is placeholder
func (p *Page) FillPlaceholder(ctx context.Context, placeholder, value string) error {
	actionCtx, cancel := p.actionContext(ctx)
	defer cancel()

	id, err := visibleNode(actionCtx, placeholderSelector(placeholder))
	if err == nil {
		ids := []cdp.NodeID{id}
		err = chromedp.Run(actionCtx,
			chromedp.Clear(ids, chromedp.ByNodeID),
			chromedp.SendKeys(ids, value, chromedp.ByNodeID),
		)
	}
	if err != nil {
		return fmt.Errorf("failed to fill field with placeholder %q: %w", placeholder, err)
	}
	return nil
}

// ClickText clicks the first visible element whose own text contains text
func (p *Page) ClickText(ctx context.Context, text string) error {
	actionCtx, cancel := p.actionContext(ctx)
	defer cancel()

	id, err := visibleNode(actionCtx, textSelector(text))
	if err == nil {
		err = chromedp.Run(actionCtx, chromedp.Click([]cdp.NodeID{id}, chromedp.ByNodeID))
	}
	if err != nil {
		return fmt.Errorf("failed to click %q: %w", text, err)
	}
	return nil
}

// visibleNode polls sel until one of its matches is visible and returns the
// first such node in document order. Hidden matches are skipped rather than
// waited on.
func visibleNode(ctx context.Context, sel string) (cdp.NodeID, error) {
	ticker := time.NewTicker(nodePollInterval)
	defer ticker.Stop()

	for {
		var nodes []*cdp.Node
		if err := chromedp.Run(ctx, chromedp.Nodes(sel, &nodes, chromedp.BySearch)); err != nil {
			return 0, err
		}
		for _, n := range nodes {
			if nodeVisible(ctx, n.NodeID) {
				return n.NodeID, nil
			}
		}

		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("no visible match for %s: %w", sel, ctx.Err())
		case <-ticker.C:
		}
	}
}

// nodeVisible reports false for nodes that vanished between query and check
func nodeVisible(ctx context.Context, id cdp.NodeID) bool {
	var visible bool
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(id).Do(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()

		return chromedp.CallFunctionOn(visibleJS, &visible,
			func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
				return p.WithObjectID(obj.ObjectID)
			},
		).Do(ctx)
	}))
	return err == nil && visible
}

// WaitURL blocks until the page URL matches pattern
func (p *Page) WaitURL(ctx context.Context, pattern *regexp.Regexp) error {
	actionCtx, cancel := p.actionContext(ctx)
	defer cancel()

	ticker := time.NewTicker(urlPollInterval)
	defer ticker.Stop()

	var location string
	for {
		if err := chromedp.Run(actionCtx, chromedp.Location(&location)); err != nil {
			return fmt.Errorf("failed waiting for url %s (last url %s): %w", pattern, location, err)
		}
		if pattern.MatchString(location) {
			return nil
		}

		select {
		case <-actionCtx.Done():
			return fmt.Errorf("failed waiting for url %s (last url %s): %w", pattern, location, actionCtx.Err())
		case <-ticker.C:
		}
	}
}

// Listen registers fn for every target event until the page is closed
func (p *Page) Listen(fn func(ev interface{})) {
	chromedp.ListenTarget(p.ctx, fn)
}

// ResponseBody fetches the body of a finished request
func (p *Page) ResponseBody(ctx context.Context, requestID network.RequestID) ([]byte, error) {
	var body []byte
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		body, err = network.GetResponseBody(requestID).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to get response body for request %s: %w", requestID, err)
	}
	return body, nil
}

// Close shuts the browser down
func (p *Page) Close() error {
	p.closeOnce.Do(func() {
		// Cancel closes the browser gracefully, the cancel funcs release the contexts
		if err := chromedp.Cancel(p.ctx); err != nil {
			p.closeErr = fmt.Errorf("failed to close browser: %w", err)
		}
		p.browserCancel()
		p.allocatorCancel()
		p.logger.Debug().Msg("Browser closed")
	})
	return p.closeErr
}

// textSelector matches body elements owning a text node that contains text.
// Non-rendered content such as scripts is excluded.
func textSelector(text string) string {
	return fmt.Sprintf(
		`//body//*[not(ancestor-or-self::script or ancestor-or-self::style or ancestor-or-self::noscript or ancestor-or-self::template or self::option)][text()[contains(normalize-space(.), %s)]]`,
		xpathLiteral(text))
}

// placeholderSelector matches inputs and textareas by placeholder
func placeholderSelector(placeholder string) string {
	return fmt.Sprintf(`//body//*[self::input or self::textarea][@placeholder=%s]`, xpathLiteral(placeholder))
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, len(parts)*2)
	for i, part := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		quoted = append(quoted, `"`+part+`"`)
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
