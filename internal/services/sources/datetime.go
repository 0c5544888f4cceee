package sources

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var compactStampRe = regexp.MustCompile(`^\d{8}T\d{6}$`)

// generalLayouts are tried in order for free-form provider timestamps
var generalLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC850,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
}

// ParseProviderTime parses the timestamp shapes providers actually
// send: epoch seconds or milliseconds (numbers above 1e12 are treated
// as milliseconds), compact YYYYMMDDTHHMMSS stamps, and the common
// textual layouts. Timestamps without an offset are taken as UTC.
// A zero time means unparseable.
func ParseProviderTime(value interface{}) time.Time {
	switch v := value.(type) {
	case nil:
		return time.Time{}
	case float64:
		return epochToTime(v)
	case int:
		return epochToTime(float64(v))
	case int64:
		return epochToTime(float64(v))
	case string:
		return parseTimeString(v)
	}
	return time.Time{}
}

func epochToTime(ts float64) time.Time {
	if ts <= 0 {
		return time.Time{}
	}
	if ts > 1e12 {
		ts = ts / 1000.0
	}
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

func parseTimeString(text string) time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}
	}

	// Numeric strings are epoch stamps
	if f, err := strconv.ParseFloat(text, 64); err == nil && len(text) >= 9 {
		return epochToTime(f)
	}

	if compactStampRe.MatchString(text) {
		if t, err := time.Parse("20060102T150405", text); err == nil {
			return t.UTC()
		}
		return time.Time{}
	}

	for _, layout := range generalLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
