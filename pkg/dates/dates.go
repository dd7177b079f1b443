// Package dates normalizes heterogeneous publication dates into one canonical zone.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// JST is the canonical zone of the built-in sites
var JST = time.FixedZone("JST", 9*60*60)

// Source tells where a normalized timestamp came from
type Source int

// Sources of a normalized timestamp
const (
	SourceFallback Source = iota // nothing parsed, current time used
	SourceAttr                   // machine-readable attribute
	SourceText                   // visible text pattern
)

func (s Source) String() string {
	switch s {
	case SourceAttr:
		return "attr"
	case SourceText:
		return "text"
	default:
		return "fallback"
	}
}

// Result is a normalized timestamp
type Result struct {
	Time   time.Time
	Source Source
}

// Estimated reports whether the time is the "now" fallback rather than a parsed date
func (r Result) Estimated() bool { return r.Source == SourceFallback }

// Normalizer converts date attributes and free text into the canonical zone
type Normalizer struct {
	Location *time.Location
	Now      func() time.Time
}

// New makes a normalizer for a fixed UTC offset
func New(offset time.Duration) *Normalizer {
	loc := JST
	if offset != 9*time.Hour {
		loc = time.FixedZone(zoneName(offset), int(offset/time.Second))
	}
	return &Normalizer{Location: loc, Now: time.Now}
}

// Normalize prefers the machine-readable attribute, then visible text patterns,
// then falls back to the current time. The result is always in the canonical zone.
func (n *Normalizer) Normalize(text, attr string) Result {
	loc := n.location()
	if attr = strings.TrimSpace(attr); attr != "" {
		if t, ok := parseAttr(attr, loc); ok {
			return Result{Time: t.In(loc), Source: SourceAttr}
		}
	}
	if t, ok := matchText(text, loc); ok {
		return Result{Time: t, Source: SourceText}
	}
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	return Result{Time: now().In(loc), Source: SourceFallback}
}

func (n *Normalizer) location() *time.Location {
	if n.Location == nil {
		return JST
	}
	return n.Location
}

var offsetLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 -0700",
	time.RFC1123Z,
	time.RFC1123,
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseAttr parses an absolute timestamp attribute. A trailing Z is turned into an
// explicit +00:00 offset first. Naive values get the canonical zone. Years before
// minYear are treated as unparsable.
func parseAttr(attr string, loc *time.Location) (time.Time, bool) {
	if strings.HasSuffix(attr, "Z") || strings.HasSuffix(attr, "z") {
		attr = attr[:len(attr)-1] + "+00:00"
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, attr); err == nil && t.Year() >= minYear {
			return t, true
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, attr, loc); err == nil && t.Year() >= minYear {
			return t, true
		}
	}
	// dateparse guesses freely, "12.05" comes back as year 0
	if !fullYear.MatchString(attr) {
		return time.Time{}, false
	}
	if t, err := dateparse.ParseIn(attr, loc); err == nil && t.Year() >= minYear {
		return t, true
	}
	return time.Time{}, false
}

// attribute values without a four digit year are never trusted
var fullYear = regexp.MustCompile(`(^|\D)\d{4}(\D|$)`)

const minYear = 1970

// text patterns, most specific first
var textPatterns = []*regexp.Regexp{
	// 2024年1月5日 10:30, 2024/01/05 10:30:15, 2024-1-5 9:05, 2024.01.05 10時30分
	regexp.MustCompile(`(\d{4})\s*[/.\-年]\s*(\d{1,2})\s*[/.\-月]\s*(\d{1,2})\s*日?(?:\s*\([^)]*\)|\s*（[^）]*）)?\s*(\d{1,2})\s*[:時]\s*(\d{1,2})(?:\s*[:分]\s*(\d{1,2}))?`),
	// 2024年1月5日, 2024/1/5, 2024.01.05, 2024-01-05
	regexp.MustCompile(`(\d{4})\s*[/.\-年]\s*(\d{1,2})\s*[/.\-月]\s*(\d{1,2})`),
}

// matchText finds the first valid date in text. Matched values are naive and get the
// canonical zone directly.
func matchText(text string, loc *time.Location) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	for _, re := range textPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if t, ok := buildTime(m[1:], loc); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func buildTime(parts []string, loc *time.Location) (time.Time, bool) {
	nums := make([]int, 6)
	for i, p := range parts {
		if i >= len(nums) || p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, false
		}
		nums[i] = v
	}
	year, month, day, hour, minute, sec := nums[0], nums[1], nums[2], nums[3], nums[4], nums[5]
	if month < 1 || month > 12 || day < 1 || hour > 23 || minute > 59 || sec > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, loc)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false // e.g. Feb 30
	}
	return t, true
}

func zoneName(offset time.Duration) string {
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	return "UTC" + sign + twoDigits(h) + ":" + twoDigits(m)
}

func twoDigits(v int) string {
	if v < 10 {
		return "0" + strconv.Itoa(v)
	}
	return strconv.Itoa(v)
}
