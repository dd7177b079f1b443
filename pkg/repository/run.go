package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/jmoiron/sqlx"

	"github.com/2003riku/static-legal-rss/pkg/harvest"
)

// RunRepository stores harvest runs and the articles they emitted
type RunRepository struct {
	db *sqlx.DB
}

// runSQL represents a run row
type runSQL struct {
	ID         string    `db:"id"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`
	Articles   int       `db:"articles"`
}

// siteRunSQL represents a per-site row of a run
type siteRunSQL struct {
	RunID          string `db:"run_id"`
	SiteKey        string `db:"site_key"`
	Name           string `db:"name"`
	State          string `db:"state"`
	Discovered     int    `db:"discovered"`
	Emitted        int    `db:"emitted"`
	Skipped        int    `db:"skipped"`
	TitleMisses    int    `db:"title_misses"`
	EstimatedDates int    `db:"estimated_dates"`
	Error          string `db:"error"`
}

// RunSummary is a stored run with its site reports
type RunSummary struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Articles   int
	Sites      []harvest.SiteReport
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// RecordRun stores res in one transaction. Articles are upserted by url, so first_seen
// keeps the run that emitted an article for the first time.
func (r *RunRepository) RecordRun(ctx context.Context, res *harvest.Result) error {
	if res == nil || res.ID == "" {
		return errors.New("record run: missing run id")
	}
	var added int
	err := withRetry(ctx, func() error {
		var err error
		added, err = r.recordRun(ctx, res)
		return err
	})
	if err != nil {
		return fmt.Errorf("record run %s: %w", res.ID, err)
	}
	lgr.Printf("[INFO] recorded run %s, %d articles, %d new", res.ID, len(res.Articles), added)
	return nil
}

func (r *RunRepository) recordRun(ctx context.Context, res *harvest.Result) (added int, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	run := runSQL{ID: res.ID, StartedAt: res.StartedAt, FinishedAt: res.FinishedAt, Articles: len(res.Articles)}
	if _, err = tx.NamedExecContext(ctx, `INSERT INTO runs (id, started_at, finished_at, articles)
		VALUES (:id, :started_at, :finished_at, :articles)`, run); err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	for _, s := range res.Sites {
		row := siteRunSQL{RunID: res.ID, SiteKey: s.Key, Name: s.Name, State: string(s.State), Discovered: s.Discovered,
			Emitted: s.Emitted, Skipped: s.Skipped, TitleMisses: s.TitleMisses, EstimatedDates: s.EstimatedDates, Error: s.Err}
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO site_runs
			(run_id, site_key, name, state, discovered, emitted, skipped, title_misses, estimated_dates, error)
			VALUES (:run_id, :site_key, :name, :state, :discovered, :emitted, :skipped, :title_misses, :estimated_dates, :error)`,
			row); err != nil {
			return 0, fmt.Errorf("insert site run %s: %w", s.Key, err)
		}
	}

	seen := res.FinishedAt
	if seen.IsZero() {
		seen = time.Now()
	}
	for _, a := range res.Articles {
		var exists int
		if err = tx.GetContext(ctx, &exists, "SELECT COUNT(*) FROM articles WHERE url = ?", a.URL); err != nil {
			return 0, fmt.Errorf("check article %s: %w", a.URL, err)
		}
		if exists == 0 {
			added++
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO articles
			(url, site_key, title, published_at, date_estimated, first_seen, last_seen)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(url) DO UPDATE SET
				title = excluded.title,
				published_at = CASE WHEN excluded.date_estimated THEN articles.published_at ELSE excluded.published_at END,
				date_estimated = articles.date_estimated AND excluded.date_estimated,
				last_seen = excluded.last_seen`,
			a.URL, a.SiteKey, a.Title, a.PublishedDate, a.DateEstimated, seen, seen); err != nil {
			return 0, fmt.Errorf("upsert article %s: %w", a.URL, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return added, nil
}

// RecentRuns returns up to limit runs, newest first
func (r *RunRepository) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	var runs []runSQL
	if err := r.db.SelectContext(ctx, &runs,
		"SELECT id, started_at, finished_at, articles FROM runs ORDER BY started_at DESC LIMIT ?", limit); err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}

	res := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		var sites []siteRunSQL
		if err := r.db.SelectContext(ctx, &sites,
			"SELECT * FROM site_runs WHERE run_id = ? ORDER BY rowid", run.ID); err != nil {
			return nil, fmt.Errorf("select site runs of %s: %w", run.ID, err)
		}
		summary := RunSummary{ID: run.ID, StartedAt: run.StartedAt, FinishedAt: run.FinishedAt, Articles: run.Articles}
		for _, s := range sites {
			summary.Sites = append(summary.Sites, harvest.SiteReport{Key: s.SiteKey, Name: s.Name,
				State: harvest.SiteState(s.State), Discovered: s.Discovered, Emitted: s.Emitted, Skipped: s.Skipped,
				TitleMisses: s.TitleMisses, EstimatedDates: s.EstimatedDates, Err: s.Error})
		}
		res = append(res, summary)
	}
	return res, nil
}

// SeenURLs returns every article url ever recorded for a site
func (r *RunRepository) SeenURLs(ctx context.Context, siteKey string) (map[string]bool, error) {
	var urls []string
	if err := r.db.SelectContext(ctx, &urls, "SELECT url FROM articles WHERE site_key = ?", siteKey); err != nil {
		return nil, fmt.Errorf("select urls of %s: %w", siteKey, err)
	}
	res := make(map[string]bool, len(urls))
	for _, u := range urls {
		res[u] = true
	}
	return res, nil
}
