package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-pkgz/lgr"

	"github.com/2003riku/static-legal-rss/pkg/site"
)

// hides the most common automation markers before any page script runs
const stealthScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
Object.defineProperty(navigator, 'languages', {get: () => ['ja-JP', 'ja', 'en-US', 'en']});
window.chrome = window.chrome || {runtime: {}};`

// Browser renders pages in one headless chrome tab reused for the whole run.
// It is not safe for concurrent use: a navigation replaces the live page.
type Browser struct {
	opts        Options
	ctx         context.Context // tab context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// NewBrowser starts chrome and opens the shared tab
func NewBrowser(ctx context.Context, opts Options) (*Browser, error) {
	opts = opts.withDefaults()
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(opts.UserAgent),
		chromedp.WindowSize(1366, 900),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancel := chromedp.NewContext(allocCtx)

	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	}))
	if err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	lgr.Printf("[DEBUG] browser session started, headless=%v", opts.Headless)
	return &Browser{opts: opts, ctx: tabCtx, cancel: cancel, allocCancel: allocCancel}, nil
}

// Fetch navigates the shared tab to pageURL and returns the rendered DOM
func (b *Browser) Fetch(ctx context.Context, pageURL string, s site.Config) (*Snapshot, error) {
	nctx, cancel := b.opCtx(ctx, b.opts.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(nctx, chromedp.Navigate(pageURL)); err != nil {
		return nil, b.failure(ctx, pageURL, fmt.Errorf("navigate: %w", err))
	}
	return b.settle(ctx, pageURL, s)
}

// NextPage activates the pagination control of the live page. Anchors with a real
// href are navigated to, script-driven controls are clicked. A failure after a click
// is exhausted, the live page is no longer the current one.
func (b *Browser) NextPage(ctx context.Context, current *Snapshot, s site.Config) (*Snapshot, error) {
	if s.NextPage == "" || current == nil {
		return nil, ErrNoNextPage
	}
	sel, err := json.Marshal(s.NextPage)
	if err != nil {
		return nil, Exhausted(current.URL, err)
	}
	lookup := fmt.Sprintf(`(function() {
		const el = document.querySelector(%s);
		if (!el) return "-";
		const a = el.closest('a') || el.querySelector('a');
		return a && a.href ? a.href : "";
	})()`, sel)

	var href string
	qctx, cancel := b.opCtx(ctx, b.opts.ReadyTimeout)
	defer cancel()
	if err := chromedp.Run(qctx, chromedp.Evaluate(lookup, &href)); err != nil {
		return nil, b.failure(ctx, current.URL, fmt.Errorf("find next page control: %w", err))
	}
	if href == "-" {
		return nil, ErrNoNextPage
	}
	if u, err := url.Parse(href); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		u.Fragment = ""
		if u.String() == current.URL {
			return nil, ErrNoNextPage
		}
		return b.Fetch(ctx, u.String(), s)
	}

	cctx, ccancel := b.opCtx(ctx, b.opts.NavigationTimeout)
	defer ccancel()
	if err := chromedp.Run(cctx, chromedp.Click(s.NextPage, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return nil, b.failure(ctx, current.URL, fmt.Errorf("click next page: %w", err))
	}
	snap, err := b.settle(ctx, current.URL, s)
	if err != nil {
		// the click already moved the live page, another attempt would click again and skip a page
		var fe *FetchError
		if errors.As(err, &fe) && fe.Kind == KindTransient {
			return nil, Exhausted(current.URL, fmt.Errorf("settle after click: %w", fe.Err))
		}
		return nil, err
	}
	return snap, nil
}

// Close shuts down the tab and the browser process
func (b *Browser) Close() error {
	b.cancel()
	b.allocCancel()
	return nil
}

// settle runs post-navigation steps: consent, lazy-load scroll, readiness wait,
// snapshot and the politeness delay
func (b *Browser) settle(ctx context.Context, pageURL string, s site.Config) (*Snapshot, error) {
	b.dismissConsent(ctx, s)
	if s.LazyLoad {
		b.scroll(ctx)
	}

	ready := s.WaitFor
	if ready == "" {
		ready = "body"
	}
	rctx, cancel := b.opCtx(ctx, b.opts.ReadyTimeout)
	defer cancel()
	var html, location string
	err := chromedp.Run(rctx,
		chromedp.WaitReady(ready, chromedp.ByQuery),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, b.failure(ctx, pageURL, fmt.Errorf("wait for %q: %w", ready, err))
	}
	if location == "" {
		location = pageURL
	}
	snap := &Snapshot{URL: location, HTML: html, FetchedAt: time.Now()}

	if err := pause(ctx, s.RateDelay()); err != nil {
		return nil, Exhausted(pageURL, err)
	}
	return snap, nil
}

// dismissConsent clicks the consent button if it shows up within ConsentTimeout.
// A missing dialog is normal, sites do not show it on every visit.
func (b *Browser) dismissConsent(ctx context.Context, s site.Config) {
	if s.Consent == "" {
		return
	}
	cctx, cancel := b.opCtx(ctx, b.opts.ConsentTimeout)
	defer cancel()
	if err := chromedp.Run(cctx, chromedp.Click(s.Consent, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		lgr.Printf("[DEBUG] no consent dialog on %s: %v", s.Key, err)
		return
	}
	lgr.Printf("[DEBUG] consent dialog dismissed on %s", s.Key)
}

// scroll moves to the bottom and back to trigger lazy-loaded content
func (b *Browser) scroll(ctx context.Context) {
	sctx, cancel := b.opCtx(ctx, b.opts.ReadyTimeout)
	defer cancel()
	err := chromedp.Run(sctx,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(b.opts.ScrollPause),
		chromedp.Evaluate(`window.scrollTo(0, 0)`, nil),
		chromedp.Sleep(b.opts.ScrollPause),
	)
	if err != nil {
		lgr.Printf("[DEBUG] scroll pass failed: %v", err)
	}
}

// opCtx derives a bounded context from the tab context that also ends when the
// caller's ctx does
func (b *Browser) opCtx(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(b.ctx, timeout)
	stop := context.AfterFunc(parent, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// failure classifies an automation error. Caller cancellation and a dead browser
// are not worth retrying, everything else is.
func (b *Browser) failure(ctx context.Context, pageURL string, err error) error {
	if ctx.Err() != nil {
		return Exhausted(pageURL, errors.Join(ctx.Err(), err))
	}
	if b.ctx.Err() != nil {
		return Exhausted(pageURL, fmt.Errorf("browser session closed: %w", err))
	}
	return Transient(pageURL, err)
}
