// Package discovery collects article links from a site's listing pages.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pkgz/lgr"

	"github.com/2003riku/static-legal-rss/pkg/domain"
	"github.com/2003riku/static-legal-rss/pkg/render"
	"github.com/2003riku/static-legal-rss/pkg/site"
)

// MaxPages is the hard limit of listing pages visited per site
const MaxPages = 20

// Retry runs fn under a retry policy. Nil means a single attempt.
type Retry func(ctx context.Context, fn func() error) error

// Discoverer finds article links on listing pages
type Discoverer struct {
	Fetcher render.Fetcher
	Retry   Retry
}

// Discover returns up to maxLinks unique article links of s in first-seen order.
// Failure to load the first listing page is an error, a failure on a later page ends
// pagination with the links found so far.
func (d *Discoverer) Discover(ctx context.Context, s site.Config, maxLinks int) ([]domain.Link, error) {
	if maxLinks <= 0 {
		return nil, nil
	}

	var snap *render.Snapshot
	err := d.retry(ctx, func() error {
		var err error
		snap, err = d.Fetcher.Fetch(ctx, s.ListURL, s)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch listing %s: %w", s.ListURL, err)
	}

	seen := map[string]bool{}
	res := make([]domain.Link, 0, maxLinks)
	for page := 1; ; page++ {
		added, err := collect(snap, s, seen, &res, maxLinks)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			lgr.Printf("[WARN] %s listing page %d unreadable: %v", s.Key, page, err)
			break
		}
		lgr.Printf("[DEBUG] %s listing page %d: %d new links, %d total", s.Key, page, added, len(res))

		if len(res) >= maxLinks || s.NextPage == "" || added == 0 {
			break
		}
		if page >= MaxPages {
			lgr.Printf("[WARN] %s pagination stopped at page limit %d", s.Key, MaxPages)
			break
		}

		next, err := d.nextPage(ctx, snap, s)
		if err != nil {
			lgr.Printf("[WARN] %s pagination stopped after page %d: %v", s.Key, page, err)
			break
		}
		if next == nil {
			break
		}
		snap = next
	}
	return res, nil
}

// nextPage activates the pagination control. Nil snapshot without error means the
// control is gone. Exhausted failures end the attempts whatever the retry policy is:
// after a click the live page has moved and a repeat could skip a listing page.
func (d *Discoverer) nextPage(ctx context.Context, cur *render.Snapshot, s site.Config) (*render.Snapshot, error) {
	var next *render.Snapshot
	var exhausted error
	err := d.retry(ctx, func() error {
		snap, err := d.Fetcher.NextPage(ctx, cur, s)
		switch {
		case errors.Is(err, render.ErrNoNextPage):
			return nil
		case errors.Is(err, render.ErrExhausted):
			exhausted = err
			return nil
		case err != nil:
			return err
		}
		next = snap
		return nil
	})
	if exhausted != nil {
		return nil, exhausted
	}
	return next, err
}

func (d *Discoverer) retry(ctx context.Context, fn func() error) error {
	if d.Retry == nil {
		return fn()
	}
	return d.Retry(ctx, fn)
}

// collect appends new links of snap to res and returns how many were added
func collect(snap *render.Snapshot, s site.Config, seen map[string]bool, res *[]domain.Link, maxLinks int) (int, error) {
	doc, err := snap.Document()
	if err != nil {
		return 0, err
	}
	base, err := url.Parse(snap.URL)
	if err != nil || !base.IsAbs() {
		if base, err = url.Parse(s.ListURL); err != nil {
			return 0, fmt.Errorf("parse listing url: %w", err)
		}
	}

	nodes, _ := s.Selectors.Links.All(doc.Selection)
	if nodes == nil {
		return 0, nil
	}
	pattern := s.LinkPattern()
	added := 0
	nodes.EachWithBreak(func(_ int, node *goquery.Selection) bool {
		if len(*res) >= maxLinks {
			return false
		}
		link, ok := Resolve(base, href(node))
		if !ok || seen[link] {
			return true
		}
		if pattern != nil && !pattern.MatchString(link) {
			return true
		}
		seen[link] = true
		*res = append(*res, domain.Link{URL: link, SiteKey: s.Key})
		added++
		return true
	})
	return added, nil
}

// href returns the target of an anchor, or of the first anchor inside a container
func href(node *goquery.Selection) string {
	if v, ok := node.Attr("href"); ok {
		return v
	}
	v, _ := node.Find("a[href]").First().Attr("href")
	return v
}

// Resolve turns a raw href into an absolute http(s) url without fragment.
// Placeholder targets (empty, fragment-only, script and other pseudo protocols) are rejected.
func Resolve(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return "", false
	}
	lower := strings.ToLower(raw)
	for _, p := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, p) {
			return "", false
		}
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if (abs.Scheme != "http" && abs.Scheme != "https") || abs.Host == "" {
		return "", false
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String(), true
}
