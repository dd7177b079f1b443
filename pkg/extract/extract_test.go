package extract

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2003riku/static-legal-rss/pkg/render"
	"github.com/2003riku/static-legal-rss/pkg/selector"
	"github.com/2003riku/static-legal-rss/pkg/site"
)

func testSite() site.Config {
	return site.Config{
		Key:  "ex",
		Name: "Example",
		Selectors: site.Selectors{
			Title:   selector.Chain{"h1.headline", "h1.title", "h1"},
			Content: selector.Chain{"div.article-body", "article"},
			Date:    selector.Chain{"time", ".date"},
		},
	}
}

func snap(body string) *render.Snapshot {
	return &render.Snapshot{URL: "https://news.example.com/a/1", HTML: "<html><body>" + body + "</body></html>"}
}

const longPara = "最高裁判所は本日、労働契約に関する重要な判断を示しました。"

func TestExtract_FallbackOrderIsExact(t *testing.T) {
	s := testSite()
	s.Selectors.Title = selector.Chain{"h1.a", "h1.b", "h1.c"}
	e := New()

	res, err := e.Extract(snap(`<h1 class="x">wrong</h1><h1 class="c">right title</h1>`), s)
	require.NoError(t, err)
	assert.True(t, res.TitleFound)
	assert.Equal(t, "right title", res.Title)

	res, err = e.Extract(snap(`<h1 class="c">third</h1><h1 class="b">second</h1>`), s)
	require.NoError(t, err)
	assert.Equal(t, "second", res.Title, "earlier chain entry wins regardless of document order")
}

func TestExtract_EmptyMatchMovesOn(t *testing.T) {
	e := New()
	res, err := e.Extract(snap(`<h1 class="headline">  </h1><h1 class="title">  見出し
		テキスト </h1>`), testSite())
	require.NoError(t, err)
	assert.Equal(t, "見出し テキスト", res.Title)
}

func TestExtract_TitleMiss(t *testing.T) {
	e := New()
	res, err := e.Extract(snap(`<article><p>`+longPara+`</p></article><time datetime="2024-01-05T10:00:00+09:00">x</time>`), testSite())
	require.NoError(t, err)
	assert.False(t, res.TitleFound)
	assert.Equal(t, UnknownTitle, res.Title)
	assert.True(t, res.ContentFound)
	assert.Equal(t, longPara, res.Content)
	assert.True(t, res.DateFound)
}

func TestExtract_Content(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		want  string
		found bool
	}{
		{
			name:  "long paragraphs joined, captions dropped",
			body:  `<article><p>写真：裁判所</p><p>` + longPara + `</p><p>短い</p><p>` + longPara + `</p></article>`,
			want:  longPara + "\n" + longPara,
			found: true,
		},
		{
			name:  "no qualifying paragraph uses container text",
			body:  `<article><p>短い</p><div>本文 テキスト</div></article>`,
			want:  "短い本文 テキスト",
			found: true,
		},
		{
			name:  "first chain entry preferred",
			body:  `<div class="article-body"><p>` + longPara + `</p></div><article><p>other text that is long enough to count</p></article>`,
			want:  longPara,
			found: true,
		},
		{
			name:  "boilerplate stripped",
			body:  `<article><script>var x = "tracking";</script><!-- ad slot --><div class="share-buttons">シェアする</div><p>` + longPara + `</p><aside>関連記事一覧がここに入ります長い長い</aside></article>`,
			want:  longPara,
			found: true,
		},
		{
			name:  "miss yields sentinel",
			body:  `<div class="nothing">text</div>`,
			want:  NoContent,
			found: false,
		},
	}
	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Extract(snap(`<h1>t</h1>`+tt.body), testSite())
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Content)
			assert.Equal(t, tt.found, res.ContentFound)
		})
	}
}

func TestExtract_ContentCap(t *testing.T) {
	e := New()
	body := strings.Repeat("あ", 500)
	res, err := e.Extract(snap(`<h1>t</h1><article><p>`+body+`</p></article>`), testSite())
	require.NoError(t, err)
	assert.Equal(t, DefaultContentCap+utf8.RuneCountInString(DefaultMarker), utf8.RuneCountInString(res.Content))
	assert.True(t, strings.HasSuffix(res.Content, DefaultMarker))

	exact := strings.Repeat("い", DefaultContentCap)
	res, err = e.Extract(snap(`<h1>t</h1><article><p>`+exact+`</p></article>`), testSite())
	require.NoError(t, err)
	assert.Equal(t, exact, res.Content, "content at the cap is not truncated")

	custom := &Extractor{ContentCap: 10, MinParagraph: 5, Marker: "…"}
	res, err = custom.Extract(snap(`<h1>t</h1><article><p>`+longPara+`</p></article>`), testSite())
	require.NoError(t, err)
	assert.Equal(t, string([]rune(longPara)[:10])+"…", res.Content)
	assert.LessOrEqual(t, utf8.RuneCountInString(res.Content), 11)
}

func TestExtract_Date(t *testing.T) {
	tests := []struct {
		name     string
		attr     string
		body     string
		wantText string
		wantAttr string
		found    bool
	}{
		{name: "time with attribute", body: `<time datetime="2024-01-05T10:00:00Z">2024年1月5日</time>`,
			wantText: "2024年1月5日", wantAttr: "2024-01-05T10:00:00Z", found: true},
		{name: "text only", body: `<span class="date">2024/01/05 10:30</span>`,
			wantText: "2024/01/05 10:30", found: true},
		{name: "attribute on descendant", body: `<div class="date">公開日 <span datetime="2024-02-01">2月1日</span></div>`,
			wantText: "公開日 2月1日", wantAttr: "2024-02-01", found: true},
		{name: "attribute without text", body: `<time datetime="2024-03-01T09:00:00+09:00"></time>`,
			wantAttr: "2024-03-01T09:00:00+09:00", found: true},
		{name: "custom attribute", attr: "data-published", body: `<time data-published="2024-04-01">4/1</time>`,
			wantText: "4/1", wantAttr: "2024-04-01", found: true},
		{name: "missing", body: `<p>no date here</p>`, found: false},
	}
	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSite()
			s.DateAttr = tt.attr
			res, err := e.Extract(snap(`<h1>t</h1>`+tt.body), s)
			require.NoError(t, err)
			assert.Equal(t, tt.found, res.DateFound)
			assert.Equal(t, tt.wantText, res.DateText)
			assert.Equal(t, tt.wantAttr, res.DateAttr)
		})
	}
}

func TestExtract_Author(t *testing.T) {
	e := New()
	page := snap(`<h1>t</h1><span class="author"> 山田 太郎 </span>`)

	res, err := e.Extract(page, testSite())
	require.NoError(t, err)
	assert.Empty(t, res.Author, "author chain not configured")

	s := testSite()
	s.Selectors.Author = selector.Chain{".writer", ".author"}
	res, err = e.Extract(page, s)
	require.NoError(t, err)
	assert.Equal(t, "山田 太郎", res.Author)

	s.Selectors.Author = selector.Chain{".writer"}
	res, err = e.Extract(page, s)
	require.NoError(t, err)
	assert.Empty(t, res.Author)
}

func TestExtract_ReadabilityFallback(t *testing.T) {
	paras := []string{
		"The Supreme Court issued a ruling today on the interpretation of fixed-term employment contracts, clarifying when renewals create an expectation of continued employment.",
		"According to the decision, employers must consider the number of previous renewals, the nature of the work performed, and statements made during hiring interviews.",
		"Labor law specialists said the ruling is likely to affect thousands of contract workers whose agreements are renewed every year without substantial review by management.",
		"The court also noted that documentation of performance reviews will become increasingly important when companies decide not to renew an existing fixed-term agreement.",
		"Several business associations announced that they would publish updated guidance for their members in response to the decision within the coming months of this year.",
	}
	body := "<article><h1>Court rules on contract renewals</h1><p>" + strings.Join(paras, "</p><p>") + "</p></article>"
	s := testSite()
	s.Selectors.Content = selector.Chain{"div.missing"}
	e := New()

	res, err := e.Extract(snap(body), s)
	require.NoError(t, err)
	assert.False(t, res.ContentFound, "fallback disabled")
	assert.Equal(t, NoContent, res.Content)

	s.Fallback = true
	res, err = e.Extract(snap(body), s)
	require.NoError(t, err)
	assert.True(t, res.ContentFound)
	assert.Contains(t, res.Content, "The Supreme Court issued a ruling")
	assert.LessOrEqual(t, utf8.RuneCountInString(res.Content), DefaultContentCap+utf8.RuneCountInString(DefaultMarker))
}

func TestExtract_SnapshotUntouched(t *testing.T) {
	page := snap(`<h1>t</h1><article><script>x()</script><p>` + longPara + `</p></article>`)
	orig := page.HTML
	_, err := New().Extract(page, testSite())
	require.NoError(t, err)
	assert.Equal(t, orig, page.HTML)
}

func TestExtract_BoilerplateClassTokens(t *testing.T) {
	e := New()

	t.Run("wrapper with share-like class kept", func(t *testing.T) {
		res, err := e.Extract(snap(`<div class="l-main sharedLayout"><h1>判決の解説</h1>
			<div class="article-body"><p>`+longPara+`</p></div></div>`), testSite())
		require.NoError(t, err)
		assert.True(t, res.TitleFound)
		assert.Equal(t, "判決の解説", res.Title)
		assert.True(t, res.ContentFound)
		assert.Equal(t, longPara, res.Content)
	})

	t.Run("wrapper with related class holding the article kept", func(t *testing.T) {
		res, err := e.Extract(snap(`<div class="related"><h1>見出し</h1>
			<div class="article-body"><p>`+longPara+`</p></div></div>`), testSite())
		require.NoError(t, err)
		assert.Equal(t, "見出し", res.Title)
		assert.Equal(t, longPara, res.Content)
	})

	tests := []struct {
		class  string
		strips bool
	}{
		{class: "share", strips: true},
		{class: "share-buttons", strips: true},
		{class: "box sns_share", strips: true},
		{class: "article-share-area", strips: true},
		{class: "related_posts wide", strips: true},
		{class: "c-related", strips: true},
		{class: "sharedLayout", strips: false},
		{class: "unrelated", strips: false},
		{class: "shareholder-news", strips: false},
	}
	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			body := `<h1>t</h1><div class="article-body"><p>` + longPara + `</p><div class="` + tt.class +
				`"><p>この段落はボイラープレート判定の対象となる十分に長いテキストです。</p></div></div>`
			res, err := e.Extract(snap(body), testSite())
			require.NoError(t, err)
			assert.Equal(t, tt.strips, !strings.Contains(res.Content, "ボイラープレート"), res.Content)
		})
	}
}
