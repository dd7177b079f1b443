// Package site holds the static per-source configuration of the harvester.
//
// Every site-specific behaviour of the pipeline (selectors, URL filter, pagination,
// consent dialogs, lazy loading, politeness delay) is a field of Config. The pipeline
// has no per-site branches of its own.
package site

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/2003riku/static-legal-rss/pkg/selector"
)

// DefaultDelay is the politeness delay applied after each page load when a site sets none
const DefaultDelay = time.Second

// Selectors groups selector chains for every extracted field
type Selectors struct {
	Links   selector.Chain `yaml:"links" json:"links" jsonschema:"description=Anchors on the listing page pointing to articles"`
	Title   selector.Chain `yaml:"title" json:"title" jsonschema:"description=Article title"`
	Content selector.Chain `yaml:"content" json:"content" jsonschema:"description=Article body container"`
	Date    selector.Chain `yaml:"date" json:"date" jsonschema:"description=Publication date element"`
	Author  selector.Chain `yaml:"author,omitempty" json:"author,omitempty" jsonschema:"description=Optional author element"`
}

// Config describes one source site
type Config struct {
	Key       string        `yaml:"key" json:"key" jsonschema:"required,description=Unique site key"`
	Name      string        `yaml:"name" json:"name" jsonschema:"description=Display name used as record source"`
	ListURL   string        `yaml:"list_url" json:"list_url" jsonschema:"description=Listing page URL"`
	Selectors Selectors     `yaml:"selectors" json:"selectors" jsonschema:"description=Field selector chains"`
	DateAttr  string        `yaml:"date_attr,omitempty" json:"date_attr,omitempty" jsonschema:"default=datetime,description=Machine readable date attribute"`
	Paragraph string        `yaml:"paragraph,omitempty" json:"paragraph,omitempty" jsonschema:"default=p,description=Block level fragment selector inside content"`
	LinkMatch string        `yaml:"link_pattern,omitempty" json:"link_pattern,omitempty" jsonschema:"description=Regexp an article URL must match"`
	NextPage  string        `yaml:"next_page,omitempty" json:"next_page,omitempty" jsonschema:"description=Pagination control selector"`
	WaitFor   string        `yaml:"wait_for,omitempty" json:"wait_for,omitempty" jsonschema:"description=Selector signalling the page is ready"`
	Consent   string        `yaml:"consent,omitempty" json:"consent,omitempty" jsonschema:"description=Consent dialog dismiss button selector"`
	LazyLoad  bool          `yaml:"lazy_load,omitempty" json:"lazy_load,omitempty" jsonschema:"description=Scroll down and up before snapshot"`
	Delay     time.Duration `yaml:"delay,omitempty" json:"delay,omitempty" jsonschema:"default=1s,description=Delay after each page load"`
	MaxLinks  int           `yaml:"max_links,omitempty" json:"max_links,omitempty" jsonschema:"description=Per-site link cap; zero uses the run default"`
	Fallback  bool          `yaml:"content_fallback,omitempty" json:"content_fallback,omitempty" jsonschema:"description=Use readability extraction when the content chain misses"`

	linkRe *regexp.Regexp
}

// LinkPattern returns the compiled URL-shape filter, nil if none is configured.
// Sites built outside of a registry compile the pattern on demand.
func (c Config) LinkPattern() *regexp.Regexp {
	if c.linkRe != nil || c.LinkMatch == "" {
		return c.linkRe
	}
	re, err := regexp.Compile(c.LinkMatch)
	if err != nil {
		return nil
	}
	return re
}

// DateAttribute returns the machine-readable date attribute name
func (c Config) DateAttribute() string {
	if c.DateAttr == "" {
		return "datetime"
	}
	return c.DateAttr
}

// ParagraphSelector returns the selector for block level text fragments
func (c Config) ParagraphSelector() string {
	if c.Paragraph == "" {
		return "p"
	}
	return c.Paragraph
}

// RateDelay returns the per-site politeness delay
func (c Config) RateDelay() time.Duration {
	if c.Delay == 0 {
		return DefaultDelay
	}
	return c.Delay
}

// validate checks a single site and compiles its link pattern
func (c *Config) validate() []string {
	var problems []string
	add := func(format string, args ...any) {
		key := c.Key
		if key == "" {
			key = "<no key>"
		}
		problems = append(problems, fmt.Sprintf("site %s: ", key)+fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.Key) == "" {
		add("key is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		add("name is required")
	}
	if u, err := url.Parse(c.ListURL); err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("list_url %q must be an absolute http(s) url", c.ListURL)
	}

	required := []struct {
		name  string
		chain selector.Chain
	}{
		{"links", c.Selectors.Links},
		{"title", c.Selectors.Title},
		{"content", c.Selectors.Content},
		{"date", c.Selectors.Date},
	}
	for _, r := range required {
		if err := r.chain.Validate(); err != nil {
			add("selectors.%s: %v", r.name, err)
		}
	}
	if len(c.Selectors.Author) > 0 {
		if err := c.Selectors.Author.Validate(); err != nil {
			add("selectors.author: %v", err)
		}
	}

	optional := []struct{ name, sel string }{
		{"next_page", c.NextPage}, {"wait_for", c.WaitFor}, {"consent", c.Consent}, {"paragraph", c.Paragraph},
	}
	for _, o := range optional {
		if o.sel == "" {
			continue
		}
		if err := (selector.Chain{o.sel}).Validate(); err != nil {
			add("%s: %v", o.name, err)
		}
	}

	c.linkRe = nil
	if c.LinkMatch != "" {
		re, err := regexp.Compile(c.LinkMatch)
		if err != nil {
			add("link_pattern: %v", err)
		} else {
			c.linkRe = re
		}
	}

	if c.Delay < 0 {
		add("delay must be non-negative")
	}
	if c.MaxLinks < 0 {
		add("max_links must be non-negative")
	}
	return problems
}

// ConfigError reports invalid registry entries. It is fatal: the run must not start.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid site registry: " + strings.Join(e.Problems, "; ")
}
