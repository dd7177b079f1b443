package harvest_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2003riku/static-legal-rss/pkg/dates"
	"github.com/2003riku/static-legal-rss/pkg/domain"
	"github.com/2003riku/static-legal-rss/pkg/extract"
	"github.com/2003riku/static-legal-rss/pkg/harvest"
	"github.com/2003riku/static-legal-rss/pkg/harvest/mocks"
	"github.com/2003riku/static-legal-rss/pkg/render"
	rmocks "github.com/2003riku/static-legal-rss/pkg/render/mocks"
	"github.com/2003riku/static-legal-rss/pkg/selector"
	"github.com/2003riku/static-legal-rss/pkg/site"
)

var fixedNow = time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)

func testSite(key string) site.Config {
	return site.Config{
		Key:     key,
		Name:    "Site " + key,
		ListURL: "https://" + key + ".example.com/list",
		Selectors: site.Selectors{
			Links:   selector.Chain{"a"},
			Title:   selector.Chain{"h1"},
			Content: selector.Chain{"article"},
			Date:    selector.Chain{"time"},
		},
	}
}

func registry(t *testing.T, sites ...site.Config) *site.Registry {
	t.Helper()
	reg, err := site.NewRegistry(sites...)
	require.NoError(t, err)
	return reg
}

func page(title, date string) string {
	res := "<html><body>"
	if title != "" {
		res += "<h1>" + title + "</h1>"
	}
	res += "<article><p>民法改正に関する最新の解説記事の本文がここに入ります。詳細は本文をご覧ください。</p></article>"
	if date != "" {
		res += `<time datetime="` + date + `">` + date + "</time>"
	}
	return res + "</body></html>"
}

func links(key string, paths ...string) []domain.Link {
	res := make([]domain.Link, 0, len(paths))
	for _, p := range paths {
		res = append(res, domain.Link{URL: "https://" + key + ".example.com" + p, SiteKey: key})
	}
	return res
}

// pages serves detail pages by url, unknown urls fail with a transient error
func pages(m map[string]string) *rmocks.FetcherMock {
	return &rmocks.FetcherMock{
		FetchFunc: func(ctx context.Context, u string, s site.Config) (*render.Snapshot, error) {
			if html, ok := m[u]; ok {
				return &render.Snapshot{URL: u, HTML: html, FetchedAt: time.Now()}, nil
			}
			return nil, render.Transient(u, errors.New("navigation timeout"))
		},
	}
}

func newRunner(f render.Fetcher, d harvest.Discoverer) *harvest.Runner {
	norm := dates.New(9 * time.Hour)
	norm.Now = func() time.Time { return fixedNow }
	return &harvest.Runner{
		Fetcher:    f,
		Discoverer: d,
		Extractor:  extract.New(),
		Normalizer: norm,
		Retry:      harvest.NewRetry(3, time.Millisecond, 2*time.Millisecond),
		MaxLinks:   5,
	}
}

func fetchCount(f *rmocks.FetcherMock, u string) int {
	n := 0
	for _, c := range f.FetchCalls() {
		if c.URL == u {
			n++
		}
	}
	return n
}

func TestRun_TransientFailuresSkipLink(t *testing.T) {
	fetcher := pages(map[string]string{
		"https://a.example.com/2": page("二本目", "2024-01-05T10:00:00+09:00"),
	})
	disc := &mocks.DiscovererMock{DiscoverFunc: func(ctx context.Context, s site.Config, maxLinks int) ([]domain.Link, error) {
		return links(s.Key, "/1", "/2"), nil
	}}

	res, err := newRunner(fetcher, disc).Run(context.Background(), registry(t, testSite("a")))
	require.NoError(t, err)
	assert.Equal(t, 3, fetchCount(fetcher, "https://a.example.com/1"), "retried up to the bound")
	assert.Equal(t, 1, fetchCount(fetcher, "https://a.example.com/2"))
	require.Len(t, res.Articles, 1)
	assert.Equal(t, "二本目", res.Articles[0].Title)

	require.Len(t, res.Sites, 1)
	rep := res.Sites[0]
	assert.Equal(t, harvest.SiteComplete, rep.State)
	assert.Equal(t, 2, rep.Discovered)
	assert.Equal(t, 1, rep.Emitted)
	assert.Equal(t, 1, rep.Skipped)
}

func TestRun_ExhaustedNotRetried(t *testing.T) {
	fetcher := &rmocks.FetcherMock{
		FetchFunc: func(ctx context.Context, u string, s site.Config) (*render.Snapshot, error) {
			return nil, render.Exhausted(u, errors.New("status 404"))
		},
	}
	disc := &mocks.DiscovererMock{DiscoverFunc: func(ctx context.Context, s site.Config, maxLinks int) ([]domain.Link, error) {
		return links(s.Key, "/gone"), nil
	}}

	res, err := newRunner(fetcher, disc).Run(context.Background(), registry(t, testSite("a")))
	require.NoError(t, err)
	assert.Len(t, fetcher.FetchCalls(), 1)
	assert.Empty(t, res.Articles)
	assert.Equal(t, 1, res.Sites[0].Skipped)
}

func TestRun_TitleMissExcluded(t *testing.T) {
	fetcher := pages(map[string]string{
		"https://a.example.com/1": page("", "2024-01-05T10:00:00+09:00"),
		"https://a.example.com/2": page("タイトルあり", "2024-01-06T10:00:00+09:00"),
	})
	disc := &mocks.DiscovererMock{DiscoverFunc: func(ctx context.Context, s site.Config, maxLinks int) ([]domain.Link, error) {
		return links(s.Key, "/1", "/2"), nil
	}}

	res, err := newRunner(fetcher, disc).Run(context.Background(), registry(t, testSite("a")))
	require.NoError(t, err)
	require.Len(t, res.Articles, 1)
	assert.Equal(t, "タイトルあり", res.Articles[0].Title)
	assert.Equal(t, "https://a.example.com/2", res.Articles[0].URL)
	assert.Equal(t, 1, fetchCount(fetcher, "https://a.example.com/1"), "title miss is not retried")
	assert.Equal(t, 1, res.Sites[0].TitleMisses)
	assert.Equal(t, 1, res.Sites[0].Emitted)
	for _, a := range res.Articles {
		assert.NotEqual(t, extract.UnknownTitle, a.Title)
	}
}

func TestRun_SiteFailureDoesNotStopOthers(t *testing.T) {
	fetcher := pages(map[string]string{
		"https://b.example.com/1": page("B記事", "2024-01-05T10:00:00+09:00"),
	})
	disc := &mocks.DiscovererMock{DiscoverFunc: func(ctx context.Context, s site.Config, maxLinks int) ([]domain.Link, error) {
		if s.Key == "a" {
			return nil, fmt.Errorf("fetch listing: %w", render.Transient(s.ListURL, errors.New("timeout")))
		}
		return links(s.Key, "/1"), nil
	}}

	res, err := newRunner(fetcher, disc).Run(context.Background(), registry(t, testSite("a"), testSite("b")))
	require.NoError(t, err)
	require.Len(t, res.Sites, 2)
	assert.Equal(t, harvest.SiteFailed, res.Sites[0].State)
	assert.Contains(t, res.Sites[0].Err, "timeout")
	assert.Equal(t, harvest.SiteComplete, res.Sites[1].State)
	require.Len(t, res.Articles, 1)
	assert.Equal(t, "Site b", res.Articles[0].Source)
	assert.Equal(t, "b", res.Articles[0].SiteKey)
}

func TestRun_DateFallbackFlagged(t *testing.T) {
	fetcher := pages(map[string]string{
		"https://a.example.com/1": page("日付なし", ""),
		"https://a.example.com/2": page("日付あり", "2024-01-05T01:00:00Z"),
	})
	disc := &mocks.DiscovererMock{DiscoverFunc: func(ctx context.Context, s site.Config, maxLinks int) ([]domain.Link, error) {
		return links(s.Key, "/1", "/2"), nil
	}}

	res, err := newRunner(fetcher, disc).Run(context.Background(), registry(t, testSite("a")))
	require.NoError(t, err)
	require.Len(t, res.Articles, 2)

	est := res.Articles[0]
	assert.True(t, est.DateEstimated)
	assert.True(t, fixedNow.Equal(est.PublishedDate))

	parsed := res.Articles[1]
	assert.False(t, parsed.DateEstimated)
	assert.Equal(t, time.Date(2024, 1, 5, 10, 0, 0, 0, dates.JST), parsed.PublishedDate)
	assert.Equal(t, 1, res.Sites[0].EstimatedDates)

	for _, a := range res.Articles {
		_, offset := a.PublishedDate.Zone()
		assert.Equal(t, 9*3600, offset)
	}
}

func TestRun_ArticleFields(t *testing.T) {
	long := ""
	for utf8.RuneCountInString(long) < 500 {
		long += "会社法の改正により取締役会の運営方法が大きく変わります。"
	}
	fetcher := pages(map[string]string{
		"https://a.example.com/1": `<html><body><h1> 記事 タイトル </h1><span class="author">編集部</span>
			<article><p>` + long + `</p></article><time>2024年3月10日 9:05</time></body></html>`,
	})
	disc := &mocks.DiscovererMock{DiscoverFunc: func(ctx context.Context, s site.Config, maxLinks int) ([]domain.Link, error) {
		return links(s.Key, "/1"), nil
	}}
	s := testSite("a")
	s.Selectors.Author = selector.Chain{".author"}

	res, err := newRunner(fetcher, disc).Run(context.Background(), registry(t, s))
	require.NoError(t, err)
	require.Len(t, res.Articles, 1)
	a := res.Articles[0]
	assert.Equal(t, "記事 タイトル", a.Title)
	assert.Equal(t, "https://a.example.com/1", a.URL)
	assert.Equal(t, "Site a", a.Source)
	assert.Equal(t, "編集部", a.Author)
	assert.Equal(t, time.Date(2024, 3, 10, 9, 5, 0, 0, dates.JST), a.PublishedDate)
	assert.LessOrEqual(t, utf8.RuneCountInString(a.Content), extract.DefaultContentCap+utf8.RuneCountInString(extract.DefaultMarker))
	assert.NotEmpty(t, res.ID)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))
}

func TestRun_ArticleURLAfterRedirect(t *testing.T) {
	final := map[string]string{
		"https://a.example.com/1": "https://a.example.com/articles/1#top",
		"https://a.example.com/2": "about:blank",
		"https://a.example.com/3": "https://a.example.com/3",
	}
	fetcher := &rmocks.FetcherMock{
		FetchFunc: func(ctx context.Context, u string, s site.Config) (*render.Snapshot, error) {
			return &render.Snapshot{URL: final[u], HTML: page("記事", "2024-01-05T10:00:00+09:00")}, nil
		},
	}
	disc := &mocks.DiscovererMock{DiscoverFunc: func(ctx context.Context, s site.Config, maxLinks int) ([]domain.Link, error) {
		return links(s.Key, "/1", "/2", "/3"), nil
	}}

	res, err := newRunner(fetcher, disc).Run(context.Background(), registry(t, testSite("a")))
	require.NoError(t, err)
	require.Len(t, res.Articles, 3)
	assert.Equal(t, "https://a.example.com/articles/1", res.Articles[0].URL, "redirect target without fragment")
	assert.Equal(t, "https://a.example.com/2", res.Articles[1].URL, "non-web final url keeps discovered link")
	assert.Equal(t, "https://a.example.com/3", res.Articles[2].URL)
}

func TestRun_MaxLinks(t *testing.T) {
	disc := &mocks.DiscovererMock{DiscoverFunc: func(ctx context.Context, s site.Config, maxLinks int) ([]domain.Link, error) {
		return nil, nil
	}}
	a, b := testSite("a"), testSite("b")
	b.MaxLinks = 2

	r := newRunner(pages(nil), disc)
	r.MaxLinks = 7
	_, err := r.Run(context.Background(), registry(t, a, b))
	require.NoError(t, err)
	require.Len(t, disc.DiscoverCalls(), 2)
	assert.Equal(t, 7, disc.DiscoverCalls()[0].MaxLinks)
	assert.Equal(t, 2, disc.DiscoverCalls()[1].MaxLinks)

	r.MaxLinks = 0
	_, err = r.Run(context.Background(), registry(t, a))
	require.NoError(t, err)
	assert.Equal(t, harvest.DefaultMaxLinks, disc.DiscoverCalls()[2].MaxLinks)
}

func TestRun_Recorder(t *testing.T) {
	fetcher := pages(map[string]string{"https://a.example.com/1": page("記事", "2024-01-05")})
	disc := &mocks.DiscovererMock{DiscoverFunc: func(ctx context.Context, s site.Config, maxLinks int) ([]domain.Link, error) {
		return links(s.Key, "/1"), nil
	}}
	rec := &mocks.RecorderMock{RecordRunFunc: func(ctx context.Context, res *harvest.Result) error {
		return errors.New("database is locked")
	}}

	r := newRunner(fetcher, disc)
	r.Recorder = rec
	res, err := r.Run(context.Background(), registry(t, testSite("a")))
	require.NoError(t, err, "recorder failure is not fatal")
	require.Len(t, rec.RecordRunCalls(), 1)
	assert.Same(t, res, rec.RecordRunCalls()[0].Res)
	assert.Len(t, res.Articles, 1)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetcher := pages(map[string]string{
		"https://a.example.com/1": page("一本目", "2024-01-05"),
		"https://a.example.com/2": page("二本目", "2024-01-06"),
	})
	fetcher.FetchFunc = func(ctx context.Context, u string, s site.Config) (*render.Snapshot, error) {
		defer cancel()
		return &render.Snapshot{URL: u, HTML: page("一本目", "2024-01-05")}, nil
	}
	disc := &mocks.DiscovererMock{DiscoverFunc: func(ctx context.Context, s site.Config, maxLinks int) ([]domain.Link, error) {
		return links(s.Key, "/1", "/2"), nil
	}}

	res, err := newRunner(fetcher, disc).Run(ctx, registry(t, testSite("a"), testSite("b")))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Len(t, res.Articles, 1, "partial result kept")
	require.Len(t, res.Sites, 1, "second site not started")
	assert.Equal(t, 1, res.Sites[0].Skipped)
	assert.Len(t, disc.DiscoverCalls(), 1)
}

func TestSiteReport_String(t *testing.T) {
	rep := harvest.SiteReport{Key: "a", State: harvest.SiteFailed, Err: "boom"}
	assert.Equal(t, "a: failed, discovered 0, emitted 0, skipped 0, title misses 0, estimated dates 0, error: boom", rep.String())
}
