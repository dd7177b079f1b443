// Package store persists the harvested record list and the run summary as JSON files.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/2003riku/static-legal-rss/pkg/dates"
	"github.com/2003riku/static-legal-rss/pkg/domain"
	"github.com/2003riku/static-legal-rss/pkg/harvest"
)

// Metadata summarizes a run for the published site
type Metadata struct {
	RunID         string               `json:"run_id,omitempty"`
	GeneratedAt   time.Time            `json:"generated_at"`
	TotalArticles int                  `json:"total_articles"`
	Sources       []string             `json:"sources"`
	Categories    []string             `json:"categories"`
	Sites         []harvest.SiteReport `json:"sites"`
}

// NewMetadata builds the summary of res with GeneratedAt in loc, the zone of article
// dates. Sources lists the display names of sites that contributed at least one
// article, in registry order.
func NewMetadata(res *harvest.Result, loc *time.Location) Metadata {
	if loc == nil {
		loc = dates.JST
	}
	md := Metadata{
		RunID:         res.ID,
		GeneratedAt:   res.FinishedAt.In(loc),
		TotalArticles: len(res.Articles),
		Sources:       []string{},
		Categories:    []string{},
		Sites:         res.Sites,
	}
	for _, s := range res.Sites {
		if s.Emitted > 0 {
			md.Sources = append(md.Sources, s.Name)
		}
	}
	return md
}

// SaveArticles writes articles as a JSON array. Timestamps keep their offset.
func SaveArticles(path string, articles []domain.Article) error {
	if articles == nil {
		articles = []domain.Article{}
	}
	if err := writeJSON(path, articles); err != nil {
		return fmt.Errorf("save articles: %w", err)
	}
	return nil
}

// LoadArticles reads articles written by SaveArticles
func LoadArticles(path string) ([]domain.Article, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from config
	if err != nil {
		return nil, fmt.Errorf("read articles: %w", err)
	}
	var res []domain.Article
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("parse articles %s: %w", path, err)
	}
	return res, nil
}

// SaveMetadata writes the run summary
func SaveMetadata(path string, md Metadata) error {
	if err := writeJSON(path, md); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	return nil
}

// writeJSON encodes v with indentation and without html escaping, then replaces path
// through a temp file in the same directory
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return WriteFile(path, buf.Bytes())
}

// WriteFile atomically replaces path with data, creating parent directories
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("make dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil { //nolint:gosec // published files are world readable
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}
