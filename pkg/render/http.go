package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"

	"github.com/2003riku/static-legal-rss/pkg/site"
)

// HTTPFetcher fetches pages without rendering. It fits sites serving complete markup
// and is used as the lightweight mode. Readiness is the end of the response.
type HTTPFetcher struct {
	client *resty.Client
	opts   Options
}

// NewHTTPFetcher makes a fetcher on a resty client
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	opts = opts.withDefaults()
	client := resty.New().
		SetTimeout(opts.NavigationTimeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		SetResponseBodyLimit(int(opts.MaxBodyBytes))
	return &HTTPFetcher{client: client, opts: opts}
}

// Fetch loads url and waits the site's politeness delay before returning
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string, s site.Config) (*Snapshot, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeaders(browserHeaders(f.opts.UserAgent)).
		Get(pageURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, Exhausted(pageURL, ctx.Err())
		}
		if errors.Is(err, resty.ErrResponseBodyTooLarge) {
			return nil, Exhausted(pageURL, fmt.Errorf("body over %d bytes: %w", f.opts.MaxBodyBytes, err))
		}
		return nil, Transient(pageURL, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusOK:
	case code == http.StatusTooManyRequests || code >= 500:
		return nil, Transient(pageURL, fmt.Errorf("status %d", code))
	default:
		return nil, Exhausted(pageURL, fmt.Errorf("status %d", code))
	}

	text, err := decode(resp.Body(), resp.Header().Get("Content-Type"))
	if err != nil {
		return nil, Exhausted(pageURL, err)
	}

	finalURL := pageURL
	if resp.RawResponse != nil && resp.RawResponse.Request != nil && resp.RawResponse.Request.URL != nil {
		finalURL = resp.RawResponse.Request.URL.String()
	}
	snap := &Snapshot{URL: finalURL, HTML: text, FetchedAt: time.Now()}

	if err := pause(ctx, s.RateDelay()); err != nil {
		return nil, Exhausted(pageURL, err)
	}
	return snap, nil
}

// NextPage follows the href of the site's pagination control in current
func (f *HTTPFetcher) NextPage(ctx context.Context, current *Snapshot, s site.Config) (*Snapshot, error) {
	if s.NextPage == "" || current == nil {
		return nil, ErrNoNextPage
	}
	doc, err := current.Document()
	if err != nil {
		return nil, Exhausted(current.URL, err)
	}
	next, ok := nextHref(doc, s.NextPage, current.URL)
	if !ok {
		return nil, ErrNoNextPage
	}
	return f.Fetch(ctx, next, s)
}

// Close is a no-op, the client holds no session
func (f *HTTPFetcher) Close() error { return nil }

// nextHref finds the absolute link of the pagination control
func nextHref(doc *goquery.Document, sel, base string) (string, bool) {
	ctrl := doc.Find(sel).First()
	if ctrl.Length() == 0 {
		return "", false
	}
	anchor := ctrl
	if !ctrl.Is("a") {
		if parent := ctrl.Closest("a"); parent.Length() > 0 {
			anchor = parent
		} else {
			anchor = ctrl.Find("a").First()
		}
	}
	href, _ := anchor.Attr("href")
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", false
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := b.ResolveReference(ref)
	abs.Fragment = ""
	if abs.String() == base {
		return "", false
	}
	return abs.String(), true
}

// decode converts the body to utf-8 using the declared or sniffed charset
func decode(body []byte, contentType string) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", fmt.Errorf("charset reader: %w", err)
	}
	res, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	return string(res), nil
}
