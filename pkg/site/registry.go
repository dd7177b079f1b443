package site

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/2003riku/static-legal-rss/pkg/selector"
)

// Registry is a validated, read-only, ordered set of sites
type Registry struct {
	sites []Config
}

// NewRegistry validates sites and builds a registry. Any problem returns *ConfigError.
func NewRegistry(sites ...Config) (*Registry, error) {
	res := &Registry{sites: make([]Config, 0, len(sites))}
	var problems []string
	seen := map[string]bool{}
	for _, s := range sites {
		s = s.clone()
		problems = append(problems, s.validate()...)
		if s.Key != "" {
			if seen[s.Key] {
				problems = append(problems, fmt.Sprintf("site %s: duplicate key", s.Key))
			}
			seen[s.Key] = true
		}
		res.sites = append(res.sites, s)
	}
	if len(res.sites) == 0 {
		problems = append(problems, "no sites configured")
	}
	if len(problems) > 0 {
		return nil, &ConfigError{Problems: problems}
	}
	return res, nil
}

// Sites returns copies of all sites in registry order
func (r *Registry) Sites() []Config {
	res := make([]Config, 0, len(r.sites))
	for _, s := range r.sites {
		res = append(res, s.clone())
	}
	return res
}

// Get returns a site by key
func (r *Registry) Get(key string) (Config, bool) {
	for _, s := range r.sites {
		if s.Key == key {
			return s.clone(), true
		}
	}
	return Config{}, false
}

// Len returns number of sites
func (r *Registry) Len() int { return len(r.sites) }

// Select returns a registry limited to keys, keeping registry order.
// Empty keys means all sites. Unknown keys are a *ConfigError.
func (r *Registry) Select(keys []string) (*Registry, error) {
	if len(keys) == 0 {
		return r, nil
	}
	var problems []string
	for _, k := range keys {
		if _, ok := r.Get(k); !ok {
			problems = append(problems, fmt.Sprintf("unknown site %q", k))
		}
	}
	if len(problems) > 0 {
		return nil, &ConfigError{Problems: problems}
	}
	res := &Registry{}
	for _, s := range r.sites {
		if slices.Contains(keys, s.Key) {
			res.sites = append(res.sites, s.clone())
		}
	}
	return res, nil
}

// Merge applies overrides on top of base. An override with a known key replaces the
// non-empty fields of that site, an unknown key appends a new site.
func Merge(base, overrides []Config) []Config {
	res := make([]Config, 0, len(base)+len(overrides))
	for _, s := range base {
		res = append(res, s.clone())
	}
	for _, o := range overrides {
		idx := slices.IndexFunc(res, func(s Config) bool { return s.Key == o.Key })
		if idx < 0 {
			res = append(res, o.clone())
			continue
		}
		res[idx] = res[idx].overlay(o)
	}
	return res
}

func (c Config) overlay(o Config) Config {
	str := func(dst *string, src string) {
		if strings.TrimSpace(src) != "" {
			*dst = src
		}
	}
	chain := func(dst *selector.Chain, src selector.Chain) {
		if len(src) > 0 {
			*dst = slices.Clone(src)
		}
	}
	str(&c.Name, o.Name)
	str(&c.ListURL, o.ListURL)
	str(&c.DateAttr, o.DateAttr)
	str(&c.Paragraph, o.Paragraph)
	str(&c.LinkMatch, o.LinkMatch)
	str(&c.NextPage, o.NextPage)
	str(&c.WaitFor, o.WaitFor)
	str(&c.Consent, o.Consent)
	chain(&c.Selectors.Links, o.Selectors.Links)
	chain(&c.Selectors.Title, o.Selectors.Title)
	chain(&c.Selectors.Content, o.Selectors.Content)
	chain(&c.Selectors.Date, o.Selectors.Date)
	chain(&c.Selectors.Author, o.Selectors.Author)
	if o.Delay != 0 {
		c.Delay = o.Delay
	}
	if o.MaxLinks != 0 {
		c.MaxLinks = o.MaxLinks
	}
	c.LazyLoad = c.LazyLoad || o.LazyLoad
	c.Fallback = c.Fallback || o.Fallback
	return c
}

func (c Config) clone() Config {
	c.Selectors = Selectors{
		Links:   slices.Clone(c.Selectors.Links),
		Title:   slices.Clone(c.Selectors.Title),
		Content: slices.Clone(c.Selectors.Content),
		Date:    slices.Clone(c.Selectors.Date),
		Author:  slices.Clone(c.Selectors.Author),
	}
	return c
}

// Builtin returns the built-in legal news sites. Chains list the current markup first
// and markup seen in earlier site versions after it.
func Builtin() []Config {
	return []Config{
		{
			Key:     "bengo4",
			Name:    "弁護士ドットコム",
			ListURL: "https://www.bengo4.com/times/",
			Selectors: Selectors{
				Links:   selector.Chain{"a.p-topics-list-item__container", "a.p-topics-list-item__link", "a[href*='/times/articles/']"},
				Title:   selector.Chain{"h1.p-article-header__title", "h1.p-articleHeader__title", "article h1", "h1"},
				Content: selector.Chain{"div.story_body", "div.p-articleBody", "div.p-article-body", "article"},
				Date:    selector.Chain{"time.p-article-header__date", "time[datetime]", ".p-article-header__date", ".p-articleHeader__date"},
				Author:  selector.Chain{".p-article-header__author", ".p-articleHeader__author"},
			},
			LinkMatch: `^https://www\.bengo4\.com/times/articles/\d+/?$`,
			WaitFor:   "a[href*='/times/articles/'], h1",
			LazyLoad:  true,
			Delay:     2 * time.Second,
		},
		{
			Key:     "corporate_legal",
			Name:    "企業法務ナビ",
			ListURL: "https://www.corporate-legal.jp/news/",
			Selectors: Selectors{
				Links:   selector.Chain{"a.article-list--link", ".article-list a", "a[href*='/news/']"},
				Title:   selector.Chain{"h1.article_title", "h1.article-title", "h1"},
				Content: selector.Chain{"div.article_text_area", "div.article-body", "article"},
				Date:    selector.Chain{"p.article_date", "time[datetime]", ".article-date", ".date"},
			},
			LinkMatch: `^https://www\.corporate-legal\.jp/news/\d+/?$`,
			NextPage:  "a.next, li.next a, a[rel='next']",
			Consent:   "#cookie-consent button, .cookie-agree",
			Delay:     time.Second,
		},
		{
			Key:     "ben54",
			Name:    "弁護士JPニュース",
			ListURL: "https://www.ben54.jp/news/",
			Selectors: Selectors{
				Links:   selector.Chain{"div.article_item a", ".news-list a", "a[href*='/news/']"},
				Title:   selector.Chain{"h1.article_title", "h1.news-title", "h1"},
				Content: selector.Chain{"div.article_cont", "div.news-body", "article"},
				Date:    selector.Chain{"span.date", "time[datetime]", ".article_date"},
				Author:  selector.Chain{".author_name", ".writer"},
			},
			LinkMatch: `^https://www\.ben54\.jp/news/\d+/?$`,
			NextPage:  "a.next, .pagination .next a",
			Delay:     time.Second,
		},
	}
}
