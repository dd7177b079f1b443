package selector

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return d.Selection
}

func TestChain_FirstMatch(t *testing.T) {
	page := doc(t, `<html><body>
		<h1 class="a"></h1>
		<h2 class="b">  second   choice </h2>
		<h3 class="c">third choice</h3>
	</body></html>`)

	tests := []struct {
		name      string
		chain     Chain
		wantText  string
		wantIndex int
		wantOK    bool
	}{
		{name: "only last matches", chain: Chain{".x", ".y", ".c"}, wantText: "third choice", wantIndex: 2, wantOK: true},
		{name: "empty match is skipped", chain: Chain{".a", ".b", ".c"}, wantText: "second choice", wantIndex: 1, wantOK: true},
		{name: "order wins over quality", chain: Chain{".c", ".b"}, wantText: "third choice", wantIndex: 0, wantOK: true},
		{name: "nothing matches", chain: Chain{".x", ".y"}, wantOK: false},
		{name: "blank entries ignored", chain: Chain{"", "  ", ".b"}, wantText: "second choice", wantIndex: 2, wantOK: true},
		{name: "empty chain", chain: nil, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := tt.chain.FirstMatch(page, nil)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantText, m.Text)
			assert.Equal(t, tt.wantIndex, m.Index)
		})
	}
}

func TestChain_FirstMatchCustomResolver(t *testing.T) {
	page := doc(t, `<div><time class="d" datetime="2024-01-02T10:00:00+09:00"></time></div>`)
	attr := func(s *goquery.Selection) string {
		v, _ := s.Attr("datetime")
		return v
	}
	m, ok := Chain{"time.d"}.FirstMatch(page, attr)
	require.True(t, ok)
	assert.Equal(t, "2024-01-02T10:00:00+09:00", m.Text)
	assert.Equal(t, "time.d", m.Selector)
}

func TestChain_All(t *testing.T) {
	page := doc(t, `<ul><li><a class="l" href="/1">1</a></li><li><a class="l" href="/2">2</a></li></ul>`)

	nodes, sel := Chain{"a.missing", "a.l", "a"}.All(page)
	require.NotNil(t, nodes)
	assert.Equal(t, 2, nodes.Length())
	assert.Equal(t, "a.l", sel)

	nodes, sel = Chain{"a.missing"}.All(page)
	assert.Nil(t, nodes)
	assert.Empty(t, sel)
}

func TestChain_Validate(t *testing.T) {
	assert.NoError(t, Chain{"h1.title", "div > p", "a[href*='/news/']"}.Validate())
	assert.Error(t, Chain{}.Validate())
	assert.Error(t, Chain{"h1", ""}.Validate())
	assert.Error(t, Chain{"h1[", "h2"}.Validate())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a b c", Normalize("  a\n\tb   c "))
	assert.Empty(t, Normalize(" \n "))
	assert.True(t, Chain{" ", ""}.Empty())
	assert.False(t, Chain{"", "h1"}.Empty())
}
