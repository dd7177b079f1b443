// Package selector implements ordered selector chains with a first-match policy.
//
// A chain is a list of CSS selectors for one logical field. Entries are evaluated
// left to right and the first entry that resolves to non-empty text wins, even if a
// later entry would produce "better" text.
package selector

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Chain is an ordered list of selectors for one field
type Chain []string

// Resolver turns a matched node into field text. Empty result means "no match".
type Resolver func(s *goquery.Selection) string

// Match describes the chain entry that won
type Match struct {
	Selector string
	Index    int
	Node     *goquery.Selection
	Text     string
}

// FirstMatch evaluates the chain against root and returns the first entry whose first
// matching node resolves to non-empty text. With nil resolver Text is used.
func (c Chain) FirstMatch(root *goquery.Selection, resolve Resolver) (Match, bool) {
	if root == nil {
		return Match{}, false
	}
	if resolve == nil {
		resolve = Text
	}
	for i, sel := range c {
		sel = strings.TrimSpace(sel)
		if sel == "" {
			continue
		}
		node := root.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if txt := resolve(node); txt != "" {
			return Match{Selector: sel, Index: i, Node: node, Text: txt}, true
		}
	}
	return Match{}, false
}

// All returns every node matched by the first chain entry that matches anything.
// Used for plural fields like link candidates.
func (c Chain) All(root *goquery.Selection) (*goquery.Selection, string) {
	if root == nil {
		return nil, ""
	}
	for _, sel := range c {
		sel = strings.TrimSpace(sel)
		if sel == "" {
			continue
		}
		if nodes := root.Find(sel); nodes.Length() > 0 {
			return nodes, sel
		}
	}
	return nil, ""
}

// Validate checks every entry is a parsable CSS selector
func (c Chain) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("empty selector chain")
	}
	for i, sel := range c {
		if strings.TrimSpace(sel) == "" {
			return fmt.Errorf("selector #%d is empty", i)
		}
		if _, err := cascadia.ParseGroup(sel); err != nil {
			return fmt.Errorf("selector #%d %q: %w", i, sel, err)
		}
	}
	return nil
}

// Empty reports whether the chain has no usable entries
func (c Chain) Empty() bool {
	for _, sel := range c {
		if strings.TrimSpace(sel) != "" {
			return false
		}
	}
	return true
}

// Text returns node text with whitespace collapsed to single spaces
func Text(s *goquery.Selection) string {
	return Normalize(s.Text())
}

// Normalize collapses runs of whitespace into single spaces and trims the result
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
