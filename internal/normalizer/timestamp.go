package normalizer

import (
	"strings"
	"time"
)

// timestampLayouts lists the formats observed across portal and network
// exports, tried in order. The comma variant with a trailing zone is the
// Flock network-audit format ("6/19/2025, 10:08:20 AM UTC").
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"1/2/2006, 3:04:05 PM MST",
	"1/2/2006, 3:04:05 PM",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
}

// ParseTimestamp parses a source timestamp into canonical UTC form.
// Returns ok=false when no known layout matches.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
