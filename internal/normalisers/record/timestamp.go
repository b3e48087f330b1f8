package record

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// epochToken matches millisecond-epoch wrapped tokens such as
// "/Date(1724576288000)/" or "/Date(1724576288000+0530)/".
var epochToken = regexp.MustCompile(`^/Date\((-?\d+)(?:[+-]\d{4})?\)/$`)

// isoLayouts are ISO-8601 variants, offset-carrying first. Parsed with
// time.Parse; the result is converted into the target timezone.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
}

// naiveISOLayouts are ISO-8601 variants without an offset. Parsed in
// the target timezone directly.
var naiveISOLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// explicitLayouts are the known upstream encodings, tried in order
// after the epoch token and ISO forms. All are naive and assumed to
// already be in the target timezone.
var explicitLayouts = []string{
	"02-01-2006 15:04:05",
	"02-01-2006 15:04",
	"2006-01-02 15:04:05",
	"02-Jan-2006 15:04:05",
	"02-01-2006",
	"2006-01-02",
}

// ParseTimestamp parses one of several known date/time encodings into
// an instant in loc. Priority: epoch-wrapped token, then ISO-8601, then
// the explicit layout list; the first successful parse is final.
// Returns ok=false for anything unparsable. Pure and stateless.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if m := epochToken.FindStringSubmatch(s); m != nil {
		ms, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms).In(loc), true
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc), true
		}
	}

	for _, layout := range naiveISOLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}

	for _, layout := range explicitLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
