// Package extract resolves article fields from a detail page snapshot.
package extract

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pkgz/lgr"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"

	"github.com/2003riku/static-legal-rss/pkg/render"
	"github.com/2003riku/static-legal-rss/pkg/selector"
	"github.com/2003riku/static-legal-rss/pkg/site"
)

// field sentinels and defaults
const (
	UnknownTitle        = "タイトル不明"
	NoContent           = "内容を取得できませんでした。"
	DefaultMarker       = "..."
	DefaultContentCap   = 300
	DefaultMinParagraph = 20
)

// boilerplate regions removed from the working copy before field resolution. Class
// words are matched as whole tokens or hyphen/underscore parts of a token, so that
// "share-buttons" is boilerplate and "sharedLayout" is not.
var boilerplate = strings.Join(append([]string{
	"script", "style", "noscript", "iframe", "template", "nav", "aside", "footer",
	".sns", ".ad", ".breadcrumb",
}, append(classWord("related"), classWord("share")...)...), ", ")

// classWord returns selectors matching word as a class token or a delimited part of one
func classWord(word string) []string {
	res := []string{"." + word}
	for _, d := range []string{"-", "_"} {
		res = append(res,
			`[class^="`+word+d+`"]`, `[class*=" `+word+d+`"]`,
			`[class$="`+d+word+`"]`, `[class*="`+d+word+` "]`, `[class*="`+d+word+d+`"]`)
	}
	return res
}

// Fields are the raw article fields of one detail page
type Fields struct {
	Title        string
	TitleFound   bool
	Content      string
	ContentFound bool
	DateText     string
	DateAttr     string
	DateFound    bool
	Author       string // empty when not configured or not found
}

// Extractor resolves fields with per-site selector chains
type Extractor struct {
	ContentCap   int    // content length limit in runes, marker excluded
	MinParagraph int    // fragments of this many runes or fewer are dropped
	Marker       string // appended to truncated content
}

// New makes an extractor with default limits
func New() *Extractor {
	return &Extractor{ContentCap: DefaultContentCap, MinParagraph: DefaultMinParagraph, Marker: DefaultMarker}
}

// Extract resolves title, content, date and author of snap. A missing field falls back
// to its sentinel; only an unparsable snapshot is an error.
func (e *Extractor) Extract(snap *render.Snapshot, s site.Config) (Fields, error) {
	doc, err := snap.Document()
	if err != nil {
		return Fields{}, fmt.Errorf("extract %s: %w", snap.URL, err)
	}
	Clean(doc, anchor(s.Selectors.Title, doc.Selection), anchor(s.Selectors.Content, doc.Selection))
	root := doc.Selection

	res := Fields{Title: UnknownTitle, Content: NoContent}

	if m, ok := s.Selectors.Title.FirstMatch(root, nil); ok {
		res.Title, res.TitleFound = m.Text, true
	}

	if m, ok := s.Selectors.Content.FirstMatch(root, e.contentResolver(s.ParagraphSelector())); ok {
		res.Content, res.ContentFound = e.truncate(m.Text), true
	} else if s.Fallback {
		if txt := e.readability(snap); txt != "" {
			lgr.Printf("[DEBUG] content chain missed on %s, used readability fallback", snap.URL)
			res.Content, res.ContentFound = e.truncate(txt), true
		}
	}

	attrName := s.DateAttribute()
	dateResolver := func(n *goquery.Selection) string {
		if v := dateAttr(n, attrName); v != "" {
			return v
		}
		return selector.Text(n)
	}
	if m, ok := s.Selectors.Date.FirstMatch(root, dateResolver); ok {
		res.DateFound = true
		res.DateAttr = dateAttr(m.Node, attrName)
		res.DateText = selector.Text(m.Node)
	}

	if len(s.Selectors.Author) > 0 {
		if m, ok := s.Selectors.Author.FirstMatch(root, nil); ok {
			res.Author = m.Text
		}
	}
	return res, nil
}

// anchor returns the node chain c picks on the uncleaned page, nil on a miss
func anchor(c selector.Chain, root *goquery.Selection) *goquery.Selection {
	if m, ok := c.FirstMatch(root, nil); ok {
		return m.Node
	}
	return nil
}

// Clean removes boilerplate regions and comment nodes from doc. A boilerplate region
// holding one of the keep nodes stays, page wrappers sometimes carry such class names.
func Clean(doc *goquery.Document, keep ...*goquery.Selection) {
	doc.Find(boilerplate).Each(func(_ int, n *goquery.Selection) {
		for _, k := range keep {
			if k != nil && k.Length() > 0 && (n.IsSelection(k) || n.HasSelection(k).Length() > 0) {
				return
			}
		}
		n.Remove()
	})
	for _, n := range doc.Nodes {
		removeComments(n)
	}
}

func removeComments(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			removeComments(c)
		}
		c = next
	}
}

// contentResolver prefers the long block fragments of a container and falls back to
// the container's full text
func (e *Extractor) contentResolver(paragraph string) selector.Resolver {
	return func(n *goquery.Selection) string {
		var parts []string
		n.Find(paragraph).Each(func(_ int, p *goquery.Selection) {
			if txt := selector.Text(p); utf8.RuneCountInString(txt) > e.MinParagraph {
				parts = append(parts, txt)
			}
		})
		if len(parts) > 0 {
			return strings.Join(parts, "\n")
		}
		return selector.Text(n)
	}
}

// truncate caps s at ContentCap runes and appends the marker when it cut anything
func (e *Extractor) truncate(s string) string {
	if e.ContentCap <= 0 || utf8.RuneCountInString(s) <= e.ContentCap {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:e.ContentCap])) + e.Marker
}

// readability extracts the main text of the raw snapshot with trafilatura
func (e *Extractor) readability(snap *render.Snapshot) string {
	opts := trafilatura.Options{
		EnableFallback:  true,
		ExcludeComments: true,
		IncludeImages:   false,
		IncludeLinks:    false,
		Deduplicate:     true,
	}
	if u, err := url.Parse(snap.URL); err == nil {
		opts.OriginalURL = u
	}
	result, err := trafilatura.Extract(strings.NewReader(snap.HTML), opts)
	if err != nil || result == nil {
		lgr.Printf("[DEBUG] readability fallback failed for %s: %v", snap.URL, err)
		return ""
	}
	return selector.Normalize(result.ContentText)
}

// dateAttr reads the machine-readable date attribute from n or its first descendant carrying it
func dateAttr(n *goquery.Selection, name string) string {
	if v, ok := n.Attr(name); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	v, _ := n.Find("[" + name + "]").First().Attr(name)
	return strings.TrimSpace(v)
}
