// Package render loads pages into DOM snapshots.
//
// All automation side effects (consent dialogs, scrolling, readiness waits, rate
// delays, pagination clicks) live behind Fetcher. Consumers only see Snapshot values.
package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/2003riku/static-legal-rss/pkg/site"
)

//go:generate moq -out mocks/fetcher.go -pkg mocks -skip-ensure -fmt goimports . Fetcher

// Fetcher loads pages. Implementations never retry, callers own the retry policy.
// A new fetch invalidates the live page of the previous one.
type Fetcher interface {
	Fetch(ctx context.Context, url string, s site.Config) (*Snapshot, error)
	NextPage(ctx context.Context, current *Snapshot, s site.Config) (*Snapshot, error)
	Close() error
}

// Snapshot is the rendered DOM of one fetch
type Snapshot struct {
	URL       string // final url after redirects
	HTML      string
	FetchedAt time.Time
}

// Document parses the snapshot into a new goquery document. Every call returns an
// independent copy, so callers may mutate it freely.
func (s *Snapshot) Document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", s.URL, err)
	}
	return doc, nil
}

// Kind classifies fetch failures
type Kind int

// fetch failure kinds
const (
	KindTransient Kind = iota // timeouts, network errors, 5xx; worth retrying
	KindExhausted             // nothing more to gain by retrying
)

// sentinel errors matched through errors.Is
var (
	ErrTransient  = errors.New("transient fetch failure")
	ErrExhausted  = errors.New("fetch exhausted")
	ErrNoNextPage = errors.New("no next page control")
)

// FetchError is a typed fetch failure
type FetchError struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	kind := "transient"
	if e.Kind == KindExhausted {
		kind = "exhausted"
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.URL, kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTransient) and errors.Is(err, ErrExhausted) work
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrTransient:
		return e.Kind == KindTransient
	case ErrExhausted:
		return e.Kind == KindExhausted
	}
	return false
}

// Transient wraps err as a retryable failure
func Transient(url string, err error) error {
	return &FetchError{Kind: KindTransient, URL: url, Err: err}
}

// Exhausted wraps err as a non-retryable failure
func Exhausted(url string, err error) error {
	return &FetchError{Kind: KindExhausted, URL: url, Err: err}
}

// Options are the named timeouts and limits of a fetcher
type Options struct {
	NavigationTimeout time.Duration // page load
	ReadyTimeout      time.Duration // readiness condition wait
	ConsentTimeout    time.Duration // consent dialog lookup
	ScrollPause       time.Duration // pause between lazy-load scroll steps
	UserAgent         string
	Headless          bool
	MaxBodyBytes      int64
}

// DefaultOptions returns options used when a field is not set
func DefaultOptions() Options {
	return Options{
		NavigationTimeout: 30 * time.Second,
		ReadyTimeout:      15 * time.Second,
		ConsentTimeout:    3 * time.Second,
		ScrollPause:       500 * time.Millisecond,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		Headless:          true,
		MaxBodyBytes:      4 << 20,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = def.NavigationTimeout
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = def.ReadyTimeout
	}
	if o.ConsentTimeout <= 0 {
		o.ConsentTimeout = def.ConsentTimeout
	}
	if o.ScrollPause <= 0 {
		o.ScrollPause = def.ScrollPause
	}
	if o.UserAgent == "" {
		o.UserAgent = def.UserAgent
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = def.MaxBodyBytes
	}
	return o
}

// pause sleeps for the site's politeness delay, returning early on ctx cancellation
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
