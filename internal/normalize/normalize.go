package normalize

import (
	"log/slog"
	"regexp"
	"time"
)

// Keys whose string values are candidates for timestamp conversion.
var dateKeys = map[string]bool{
	"publishedAt": true,
	"time":        true,
	"nsTime":      true,
}

// Matches e.g. "2025-04-28T02:44:39.559014059Z". Sub-second digits are
// required by the shape but discarded on conversion; the trailing Z is optional.
var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d+Z?$`)

// Content rewrites recognized date-string leaves in a decoded JSON tree into
// UTC time.Time values truncated to whole seconds. The tree is the usual
// encoding/json shape: map[string]any, []any and scalars. Values that do not
// match the expected shape are left untouched, and a conversion failure on one
// field never affects its siblings. Already-converted values are not strings,
// so applying Content twice is the same as applying it once.
func Content(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if s, ok := val.(string); ok && dateKeys[k] {
				t[k] = convert(k, s)
				continue
			}
			t[k] = Content(val)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = Content(item)
		}
		return t
	default:
		return v
	}
}

func convert(key, s string) any {
	if !datePattern.MatchString(s) {
		return s
	}
	ts, err := time.ParseInLocation("2006-01-02T15:04:05", s[:19], time.UTC)
	if err != nil {
		slog.Warn("date conversion failed", "key", key, "value", s, "error", err)
		return s
	}
	return ts
}
