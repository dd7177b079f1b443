// Package feed renders harvested articles as static RSS 2.0 files
package feed

import (
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/2003riku/static-legal-rss/pkg/dates"
	"github.com/2003riku/static-legal-rss/pkg/domain"
	"github.com/2003riku/static-legal-rss/pkg/site"
	"github.com/2003riku/static-legal-rss/pkg/store"
)

// CombinedName is the file name (without extension) of the feed with all sites
const CombinedName = "combined"

// Channel describes the published feed
type Channel struct {
	Title       string
	Link        string // site root, ends with a slash
	Description string
	Language    string
	Generator   string
}

// Generator creates RSS feeds from articles
type Generator struct {
	channel  Channel
	maxItems int
	feedPath string // feed directory relative to the channel link
	location *time.Location
	now      func() time.Time
	policy   *bluemonday.Policy
}

// NewGenerator makes a generator. maxItems <= 0 keeps every article.
func NewGenerator(ch Channel, feedPath string, maxItems int, loc *time.Location) *Generator {
	if loc == nil {
		loc = dates.JST
	}
	if ch.Link != "" && !strings.HasSuffix(ch.Link, "/") {
		ch.Link += "/"
	}
	return &Generator{
		channel:  ch,
		maxItems: maxItems,
		feedPath: strings.Trim(filepath.ToSlash(feedPath), "/"),
		location: loc,
		now:      time.Now,
		policy:   bluemonday.StrictPolicy(),
	}
}

// GenerateRSS creates the combined feed of all articles
func (g *Generator) GenerateRSS(articles []domain.Article) (string, error) {
	return g.render(g.channel.Title, CombinedName, articles)
}

// GenerateSiteRSS creates the feed of one site
func (g *Generator) GenerateSiteRSS(articles []domain.Article, s site.Config) (string, error) {
	var filtered []domain.Article
	for _, a := range articles {
		if a.SiteKey == s.Key || (a.SiteKey == "" && a.Source == s.Name) {
			filtered = append(filtered, a)
		}
	}
	return g.render(s.Name+" - 法律ニュースRSS", s.Key, filtered)
}

// WriteAll writes the combined feed and one feed per site into dir
func (g *Generator) WriteAll(dir string, articles []domain.Article, sites []site.Config) ([]string, error) {
	var written []string
	write := func(name, body string) error {
		path := filepath.Join(dir, name+".xml")
		if err := store.WriteFile(path, []byte(body)); err != nil {
			return fmt.Errorf("write feed %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	combined, err := g.GenerateRSS(articles)
	if err != nil {
		return nil, err
	}
	if err := write(CombinedName, combined); err != nil {
		return nil, err
	}
	for _, s := range sites {
		body, err := g.GenerateSiteRSS(articles, s)
		if err != nil {
			return written, err
		}
		if err := write(s.Key, body); err != nil {
			return written, err
		}
	}
	return written, nil
}

func (g *Generator) render(title, name string, articles []domain.Article) (string, error) {
	sorted := slices.Clone(articles)
	slices.SortStableFunc(sorted, func(a, b domain.Article) int {
		return cmp.Compare(b.PublishedDate.UnixNano(), a.PublishedDate.UnixNano())
	})
	if g.maxItems > 0 && len(sorted) > g.maxItems {
		sorted = sorted[:g.maxItems]
	}

	items := make([]*RSSItem, 0, len(sorted))
	for _, a := range sorted {
		items = append(items, g.convertToRSSItem(a))
	}

	selfLink := g.channel.Link
	if g.feedPath != "" {
		selfLink += g.feedPath + "/"
	}
	feed := &RSS{
		Version: "2.0",
		Atom:    "http://www.w3.org/2005/Atom",
		Channel: &RSSChannel{
			Title:         title,
			Link:          g.channel.Link,
			Description:   g.channel.Description,
			Language:      g.channel.Language,
			LastBuildDate: g.now().In(g.location).Format(time.RFC1123Z),
			Generator:     g.channel.Generator,
			AtomLink:      &AtomLink{Href: selfLink + name + ".xml", Rel: "self", Type: "application/rss+xml"},
			Items:         items,
		},
	}

	output, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal RSS: %w", err)
	}
	return xml.Header + string(output), nil
}

func (g *Generator) convertToRSSItem(a domain.Article) *RSSItem {
	title, content, source := g.clean(a.Title), g.clean(a.Content), g.clean(a.Source)
	return &RSSItem{
		Title:       title,
		Link:        a.URL,
		Description: fmt.Sprintf("【%s】%s", source, content),
		PubDate:     a.PublishedDate.In(g.location).Format(time.RFC1123Z),
		GUID:        &RSSGUID{Value: a.URL, IsPermaLink: true},
		Category:    Categorize(title, content),
		Source:      &RSSSource{Name: source, URL: a.URL},
	}
}

// clean drops any markup and leaves plain text, xml encoding escapes it later
func (g *Generator) clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(g.policy.Sanitize(s)))
}
