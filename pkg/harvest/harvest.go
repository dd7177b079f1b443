// Package harvest runs the extraction pipeline over every registered site.
//
// Sites and links are processed strictly one at a time in registry and discovery
// order, because all fetches share one rendering session. A failing link is skipped
// and a failing site only loses its own contribution.
package harvest

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/google/uuid"

	"github.com/2003riku/static-legal-rss/pkg/dates"
	"github.com/2003riku/static-legal-rss/pkg/discovery"
	"github.com/2003riku/static-legal-rss/pkg/domain"
	"github.com/2003riku/static-legal-rss/pkg/extract"
	"github.com/2003riku/static-legal-rss/pkg/render"
	"github.com/2003riku/static-legal-rss/pkg/site"
)

//go:generate moq -out mocks/discoverer.go -pkg mocks -skip-ensure -fmt goimports . Discoverer
//go:generate moq -out mocks/recorder.go -pkg mocks -skip-ensure -fmt goimports . Recorder

// DefaultMaxLinks is the per-site link cap when neither the run nor the site sets one
const DefaultMaxLinks = 5

// Discoverer finds article links of a site
type Discoverer interface {
	Discover(ctx context.Context, s site.Config, maxLinks int) ([]domain.Link, error)
}

// Recorder persists a finished run
type Recorder interface {
	RecordRun(ctx context.Context, res *Result) error
}

// SiteState is the terminal state of a site
type SiteState string

// site states
const (
	SiteComplete SiteState = "complete"
	SiteFailed   SiteState = "failed"
)

// SiteReport summarizes one site of a run
type SiteReport struct {
	Key            string    `json:"key"`
	Name           string    `json:"name"`
	State          SiteState `json:"state"`
	Discovered     int       `json:"discovered"`
	Emitted        int       `json:"emitted"`
	Skipped        int       `json:"skipped"`
	TitleMisses    int       `json:"title_misses"`
	EstimatedDates int       `json:"estimated_dates"`
	Err            string    `json:"error,omitempty"`
}

func (r SiteReport) String() string {
	res := fmt.Sprintf("%s: %s, discovered %d, emitted %d, skipped %d, title misses %d, estimated dates %d",
		r.Key, r.State, r.Discovered, r.Emitted, r.Skipped, r.TitleMisses, r.EstimatedDates)
	if r.Err != "" {
		res += ", error: " + r.Err
	}
	return res
}

// Result is the outcome of a run
type Result struct {
	ID         string // unique run id
	Articles   []domain.Article
	Sites      []SiteReport
	StartedAt  time.Time
	FinishedAt time.Time
}

// Runner drives discovery, fetch, extraction and date normalization
type Runner struct {
	Fetcher    render.Fetcher
	Discoverer Discoverer
	Extractor  *extract.Extractor
	Normalizer *dates.Normalizer
	Retry      discovery.Retry
	MaxLinks   int
	Recorder   Recorder // optional
}

// linkOutcome is the terminal state of one link
type linkOutcome int

const (
	linkEmitted linkOutcome = iota
	linkSkipped
	linkTitleMiss
)

// Run harvests every site of reg. It returns all emitted articles in registry and
// discovery order; an error is returned only when ctx ends the run early, together
// with the partial result.
func (r *Runner) Run(ctx context.Context, reg *site.Registry) (*Result, error) {
	res := &Result{ID: uuid.NewString(), StartedAt: time.Now()}
	for _, s := range reg.Sites() {
		if ctx.Err() != nil {
			break
		}
		rep, articles := r.runSite(ctx, s)
		lgr.Printf("[INFO] site %s", rep)
		res.Sites = append(res.Sites, rep)
		res.Articles = append(res.Articles, articles...)
	}
	res.FinishedAt = time.Now()
	lgr.Printf("[INFO] run finished in %v, %d articles from %d sites",
		res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond), len(res.Articles), len(res.Sites))

	if r.Recorder != nil {
		if err := r.Recorder.RecordRun(context.WithoutCancel(ctx), res); err != nil {
			lgr.Printf("[WARN] failed to record run: %v", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("run interrupted: %w", err)
	}
	return res, nil
}

func (r *Runner) runSite(ctx context.Context, s site.Config) (SiteReport, []domain.Article) {
	rep := SiteReport{Key: s.Key, Name: s.Name, State: SiteComplete}
	maxLinks := r.MaxLinks
	if s.MaxLinks > 0 {
		maxLinks = s.MaxLinks
	}
	if maxLinks <= 0 {
		maxLinks = DefaultMaxLinks
	}

	lgr.Printf("[DEBUG] discovering links of %s, max %d", s.Key, maxLinks)
	links, err := r.Discoverer.Discover(ctx, s, maxLinks)
	if err != nil {
		lgr.Printf("[ERROR] site %s failed: %v", s.Key, err)
		rep.State, rep.Err = SiteFailed, err.Error()
		return rep, nil
	}
	rep.Discovered = len(links)

	var articles []domain.Article
	for i, link := range links {
		if ctx.Err() != nil {
			rep.Skipped += len(links) - i
			break
		}
		art, outcome := r.harvestLink(ctx, s, link)
		switch outcome {
		case linkEmitted:
			rep.Emitted++
			if art.DateEstimated {
				rep.EstimatedDates++
			}
			articles = append(articles, art)
		case linkTitleMiss:
			rep.TitleMisses++
		case linkSkipped:
			rep.Skipped++
		}
	}
	return rep, articles
}

// harvestLink fetches and extracts one article. Only the fetch is retried, extraction
// of a snapshot is deterministic.
func (r *Runner) harvestLink(ctx context.Context, s site.Config, link domain.Link) (domain.Article, linkOutcome) {
	var snap *render.Snapshot
	err := r.retry(ctx, func() error {
		var err error
		snap, err = r.Fetcher.Fetch(ctx, link.URL, s)
		return err
	})
	if err != nil {
		lgr.Printf("[WARN] skip %s %s: %v", s.Key, link.URL, err)
		return domain.Article{}, linkSkipped
	}

	fields, err := r.Extractor.Extract(snap, s)
	if err != nil {
		lgr.Printf("[WARN] skip %s %s: %v", s.Key, link.URL, err)
		return domain.Article{}, linkSkipped
	}
	if !fields.TitleFound {
		lgr.Printf("[WARN] skip %s %s: title not found", s.Key, link.URL)
		return domain.Article{}, linkTitleMiss
	}
	if !fields.ContentFound {
		lgr.Printf("[DEBUG] content not found on %s", link.URL)
	}

	date := r.Normalizer.Normalize(fields.DateText, fields.DateAttr)
	if date.Estimated() {
		lgr.Printf("[WARN] no parsable date on %s, using current time", link.URL)
	}

	art := domain.Article{
		Title:         fields.Title,
		URL:           articleURL(link, snap),
		Content:       fields.Content,
		PublishedDate: date.Time,
		Source:        s.Name,
		Author:        fields.Author,
		SiteKey:       s.Key,
		DateEstimated: date.Estimated(),
	}
	lgr.Printf("[DEBUG] emitted %s %q, date %s (%s)", s.Key, art.Title, art.PublishedDate.Format(time.RFC3339), date.Source)
	return art, linkEmitted
}

// articleURL prefers the final url of the snapshot, links may redirect to a canonical
// address. Non-web final urls like about:blank keep the discovered one.
func articleURL(link domain.Link, snap *render.Snapshot) string {
	u, err := url.Parse(snap.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return link.URL
	}
	u.Fragment = ""
	return u.String()
}

func (r *Runner) retry(ctx context.Context, fn func() error) error {
	if r.Retry == nil {
		return fn()
	}
	return r.Retry(ctx, fn)
}
