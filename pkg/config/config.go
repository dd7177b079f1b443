package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"gopkg.in/yaml.v3"

	"github.com/2003riku/static-legal-rss/pkg/dates"
	"github.com/2003riku/static-legal-rss/pkg/render"
	"github.com/2003riku/static-legal-rss/pkg/site"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// fetch modes
const (
	ModeBrowser = "browser"
	ModeHTTP    = "http"
)

// Config holds the application configuration
type Config struct {
	Fetch   FetchConfig   `yaml:"fetch" json:"fetch" jsonschema:"description=Page loading"`
	Retry   RetryConfig   `yaml:"retry" json:"retry" jsonschema:"description=Retry policy of page fetches"`
	Harvest HarvestConfig `yaml:"harvest" json:"harvest" jsonschema:"description=Extraction limits"`
	Output  OutputConfig  `yaml:"output" json:"output" jsonschema:"description=Output files"`
	Feed    FeedConfig    `yaml:"feed" json:"feed" jsonschema:"description=Published RSS channel"`
	Sites   []site.Config `yaml:"sites,omitempty" json:"sites,omitempty" jsonschema:"description=Site overrides and additional sites"`
}

// FetchConfig holds rendering fetcher settings
type FetchConfig struct {
	Mode              string        `yaml:"mode" json:"mode" jsonschema:"enum=browser,enum=http,default=browser,description=Render pages in headless chrome or fetch plain html"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent" jsonschema:"description=User agent; empty uses a desktop chrome one"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout" jsonschema:"default=30s,description=Page load timeout"`
	ReadyTimeout      time.Duration `yaml:"ready_timeout" json:"ready_timeout" jsonschema:"default=15s,description=Readiness wait timeout"`
	ConsentTimeout    time.Duration `yaml:"consent_timeout" json:"consent_timeout" jsonschema:"default=3s,description=Consent dialog lookup timeout"`
	ScrollPause       time.Duration `yaml:"scroll_pause" json:"scroll_pause" jsonschema:"default=500ms,description=Pause between lazy-load scroll steps"`
	Headful           bool          `yaml:"headful" json:"headful" jsonschema:"default=false,description=Show the browser window"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes" json:"max_body_bytes" jsonschema:"default=4194304,description=Response size limit in http mode"`
}

// RetryConfig holds retry settings of a single fetch
type RetryConfig struct {
	Attempts int           `yaml:"attempts" json:"attempts" jsonschema:"default=3,minimum=1,description=Attempts per page"`
	Delay    time.Duration `yaml:"delay" json:"delay" jsonschema:"default=2s,description=Initial delay between attempts"`
	MaxDelay time.Duration `yaml:"max_delay" json:"max_delay" jsonschema:"default=10s,description=Maximum delay between attempts"`
}

// HarvestConfig holds extraction limits
type HarvestConfig struct {
	MaxLinks     int      `yaml:"max_links" json:"max_links" jsonschema:"default=5,minimum=1,description=Articles per site"`
	ContentCap   int      `yaml:"content_cap" json:"content_cap" jsonschema:"default=300,minimum=1,description=Content excerpt length in characters"`
	MinParagraph int      `yaml:"min_paragraph" json:"min_paragraph" jsonschema:"default=20,description=Shorter paragraphs are ignored"`
	Timezone     string   `yaml:"timezone" json:"timezone" jsonschema:"default=+09:00,description=Canonical UTC offset of published dates"`
	Sites        []string `yaml:"sites,omitempty" json:"sites,omitempty" jsonschema:"description=Site keys to harvest; empty means all"`
}

// OutputConfig holds output locations
type OutputConfig struct {
	Articles string `yaml:"articles" json:"articles" jsonschema:"default=articles.json,description=Harvested record list"`
	Metadata string `yaml:"metadata" json:"metadata" jsonschema:"default=metadata.json,description=Run summary"`
	FeedDir  string `yaml:"feed_dir" json:"feed_dir" jsonschema:"default=rss,description=Directory of generated RSS files"`
	DB       string `yaml:"db" json:"db" jsonschema:"description=SQLite run history; empty disables it"`
}

// FeedConfig holds RSS channel settings
type FeedConfig struct {
	Title       string `yaml:"title" json:"title" jsonschema:"default=法律ニュース総合RSS,description=Channel title"`
	Link        string `yaml:"link" json:"link" jsonschema:"description=Public url of the published site"`
	Description string `yaml:"description" json:"description" jsonschema:"description=Channel description"`
	Language    string `yaml:"language" json:"language" jsonschema:"default=ja,description=Channel language"`
	MaxItems    int    `yaml:"max_items" json:"max_items" jsonschema:"default=20,minimum=1,description=Items per feed"`
}

// Default returns the configuration used without a config file
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// Load reads configuration from a YAML file. Empty path returns defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.setDefaults()

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// unknown keys are reported but not fatal, the schema is supplementary
	if err := VerifyAgainstEmbeddedSchema(expanded); err != nil {
		lgr.Printf("[WARN] schema validation failed: %v", err)
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Fetch.Mode == "" {
		c.Fetch.Mode = ModeBrowser
	}
	def := render.DefaultOptions()
	if c.Fetch.NavigationTimeout == 0 {
		c.Fetch.NavigationTimeout = def.NavigationTimeout
	}
	if c.Fetch.ReadyTimeout == 0 {
		c.Fetch.ReadyTimeout = def.ReadyTimeout
	}
	if c.Fetch.ConsentTimeout == 0 {
		c.Fetch.ConsentTimeout = def.ConsentTimeout
	}
	if c.Fetch.ScrollPause == 0 {
		c.Fetch.ScrollPause = def.ScrollPause
	}
	if c.Fetch.MaxBodyBytes == 0 {
		c.Fetch.MaxBodyBytes = def.MaxBodyBytes
	}

	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = 3
	}
	if c.Retry.Delay == 0 {
		c.Retry.Delay = 2 * time.Second
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = 10 * time.Second
	}

	if c.Harvest.MaxLinks == 0 {
		c.Harvest.MaxLinks = 5
	}
	if c.Harvest.ContentCap == 0 {
		c.Harvest.ContentCap = 300
	}
	if c.Harvest.MinParagraph == 0 {
		c.Harvest.MinParagraph = 20
	}
	if c.Harvest.Timezone == "" {
		c.Harvest.Timezone = "+09:00"
	}

	if c.Output.Articles == "" {
		c.Output.Articles = "articles.json"
	}
	if c.Output.Metadata == "" {
		c.Output.Metadata = "metadata.json"
	}
	if c.Output.FeedDir == "" {
		c.Output.FeedDir = "rss"
	}

	if c.Feed.Title == "" {
		c.Feed.Title = "法律ニュース総合RSS"
	}
	if c.Feed.Link == "" {
		c.Feed.Link = "https://2003riku.github.io/static-legal-rss/"
	}
	if c.Feed.Description == "" {
		c.Feed.Description = "複数の法律関連サイトから取得した最新ニュースを統合配信"
	}
	if c.Feed.Language == "" {
		c.Feed.Language = "ja"
	}
	if c.Feed.MaxItems == 0 {
		c.Feed.MaxItems = 20
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Fetch.Mode != ModeBrowser && cfg.Fetch.Mode != ModeHTTP {
		return fmt.Errorf("fetch.mode must be %q or %q, got %q", ModeBrowser, ModeHTTP, cfg.Fetch.Mode)
	}
	if cfg.Fetch.NavigationTimeout < time.Second || cfg.Fetch.ReadyTimeout < time.Second {
		return fmt.Errorf("fetch timeouts must be at least 1 second")
	}
	if cfg.Fetch.ConsentTimeout < 0 || cfg.Fetch.ScrollPause < 0 || cfg.Fetch.MaxBodyBytes < 0 {
		return fmt.Errorf("fetch values must be non-negative")
	}
	if cfg.Retry.Attempts < 1 {
		return fmt.Errorf("retry.attempts must be at least 1")
	}
	if cfg.Retry.Delay < 0 || cfg.Retry.MaxDelay < cfg.Retry.Delay {
		return fmt.Errorf("retry.max_delay must not be less than retry.delay")
	}
	if cfg.Harvest.MaxLinks < 1 {
		return fmt.Errorf("harvest.max_links must be at least 1")
	}
	if cfg.Harvest.ContentCap < 1 {
		return fmt.Errorf("harvest.content_cap must be at least 1")
	}
	if cfg.Harvest.MinParagraph < 0 {
		return fmt.Errorf("harvest.min_paragraph must be non-negative")
	}
	if _, err := parseOffset(cfg.Harvest.Timezone); err != nil {
		return err
	}
	if cfg.Feed.MaxItems < 1 {
		return fmt.Errorf("feed.max_items must be at least 1")
	}
	return nil
}

// parseOffset parses a "+09:00" style UTC offset
func parseOffset(s string) (time.Duration, error) {
	t, err := time.Parse("-07:00", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("harvest.timezone %q must look like +09:00: %w", s, err)
	}
	_, offset := t.Zone()
	return time.Duration(offset) * time.Second, nil
}

// Normalizer returns the date normalizer for the canonical zone
func (c *Config) Normalizer() *dates.Normalizer {
	offset, err := parseOffset(c.Harvest.Timezone)
	if err != nil {
		offset = 9 * time.Hour
	}
	return dates.New(offset)
}

// FetchOptions returns fetcher options
func (c *Config) FetchOptions() render.Options {
	return render.Options{
		NavigationTimeout: c.Fetch.NavigationTimeout,
		ReadyTimeout:      c.Fetch.ReadyTimeout,
		ConsentTimeout:    c.Fetch.ConsentTimeout,
		ScrollPause:       c.Fetch.ScrollPause,
		UserAgent:         c.Fetch.UserAgent,
		Headless:          !c.Fetch.Headful,
		MaxBodyBytes:      c.Fetch.MaxBodyBytes,
	}
}

// Registry merges site overrides into the built-in sites, validates them and keeps
// the selected ones. Errors are *site.ConfigError.
func (c *Config) Registry() (*site.Registry, error) {
	reg, err := site.NewRegistry(site.Merge(site.Builtin(), c.Sites)...)
	if err != nil {
		return nil, err
	}
	return reg.Select(c.Harvest.Sites)
}
