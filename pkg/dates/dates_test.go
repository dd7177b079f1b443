package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

func TestNormalizer_Normalize(t *testing.T) {
	n := &Normalizer{Location: JST, Now: fixedNow}

	tests := []struct {
		name   string
		text   string
		attr   string
		want   time.Time
		source Source
	}{
		{
			name: "attr with offset", attr: "2024-05-10T08:30:00+09:00",
			want: time.Date(2024, 5, 10, 8, 30, 0, 0, JST), source: SourceAttr,
		},
		{
			name: "attr with Z converted to canonical zone", attr: "2024-05-10T00:00:00Z",
			want: time.Date(2024, 5, 10, 9, 0, 0, 0, JST), source: SourceAttr,
		},
		{
			name: "attr with fraction", attr: "2024-05-10T00:00:00.123Z",
			want: time.Date(2024, 5, 10, 9, 0, 0, 123000000, JST), source: SourceAttr,
		},
		{
			name: "naive attr gets canonical zone", attr: "2024-05-10",
			want: time.Date(2024, 5, 10, 0, 0, 0, 0, JST), source: SourceAttr,
		},
		{
			name: "attr preferred over text", attr: "2024-05-10T08:30:00+09:00", text: "2020年1月1日",
			want: time.Date(2024, 5, 10, 8, 30, 0, 0, JST), source: SourceAttr,
		},
		{
			name: "unparsable attr falls back to text", attr: "yesterday-ish", text: "2024年5月10日",
			want: time.Date(2024, 5, 10, 0, 0, 0, 0, JST), source: SourceText,
		},
		{
			name: "attr without year falls back to text", attr: "12.05", text: "2024年12月5日 10:30",
			want: time.Date(2024, 12, 5, 10, 30, 0, 0, JST), source: SourceText,
		},
		{
			name: "truncated attr falls back to text", attr: "1/", text: "2024/01/05",
			want: time.Date(2024, 1, 5, 0, 0, 0, 0, JST), source: SourceText,
		},
		{
			name: "short dotted attr falls back to text", attr: "2.3", text: "2024.02.03",
			want: time.Date(2024, 2, 3, 0, 0, 0, 0, JST), source: SourceText,
		},
		{
			name: "attr without year and no text", attr: "12.05",
			want: fixedNow().In(JST), source: SourceFallback,
		},
		{
			name: "implausible year attr falls back to text", attr: "0001-01-01 00:00", text: "2024年5月10日",
			want: time.Date(2024, 5, 10, 0, 0, 0, 0, JST), source: SourceText,
		},
		{
			name: "free form attr with year", attr: "May 10, 2024",
			want: time.Date(2024, 5, 10, 0, 0, 0, 0, JST), source: SourceAttr,
		},
		{
			name: "japanese date and time", text: "公開日 2024年1月5日(金) 10:30",
			want: time.Date(2024, 1, 5, 10, 30, 0, 0, JST), source: SourceText,
		},
		{
			name: "slash date time with seconds", text: "2024/01/05 10:30:15",
			want: time.Date(2024, 1, 5, 10, 30, 15, 0, JST), source: SourceText,
		},
		{
			name: "dash date with hour kanji", text: "2024-1-5 9時05分",
			want: time.Date(2024, 1, 5, 9, 5, 0, 0, JST), source: SourceText,
		},
		{
			name: "dotted date only", text: "2024.01.05",
			want: time.Date(2024, 1, 5, 0, 0, 0, 0, JST), source: SourceText,
		},
		{
			name: "slash date only", text: "更新: 2023/12/31",
			want: time.Date(2023, 12, 31, 0, 0, 0, 0, JST), source: SourceText,
		},
		{
			name: "impossible date skipped for next match", text: "2024/02/30 or 2024/02/28",
			want: time.Date(2024, 2, 28, 0, 0, 0, 0, JST), source: SourceText,
		},
		{
			name: "nothing parsable", text: "昨日",
			want: fixedNow().In(JST), source: SourceFallback,
		},
		{
			name: "no input at all",
			want: fixedNow().In(JST), source: SourceFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := n.Normalize(tt.text, tt.attr)
			assert.Equal(t, tt.source, res.Source)
			assert.True(t, tt.want.Equal(res.Time), "want %v, got %v", tt.want, res.Time)
			_, off := res.Time.Zone()
			assert.Equal(t, 9*60*60, off, "canonical offset")
			assert.Equal(t, tt.source == SourceFallback, res.Estimated())
		})
	}
}

func TestNew_CustomOffset(t *testing.T) {
	n := New(-5 * time.Hour)
	n.Now = fixedNow
	res := n.Normalize("", "2024-05-10T12:00:00Z")
	require.Equal(t, SourceAttr, res.Source)
	name, off := res.Time.Zone()
	assert.Equal(t, -5*60*60, off)
	assert.Equal(t, "UTC-05:00", name)
	assert.Equal(t, 7, res.Time.Hour())

	assert.Equal(t, JST, New(9*time.Hour).Location)
}

func TestNormalizer_ZeroValue(t *testing.T) {
	var n Normalizer
	res := n.Normalize("", "")
	_, off := res.Time.Zone()
	assert.Equal(t, 9*60*60, off)
	assert.WithinDuration(t, time.Now(), res.Time, time.Minute)
	assert.Equal(t, "fallback", res.Source.String())
}
