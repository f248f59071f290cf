package normalizer

import "strings"

// Canonical field names used by the alias tables.
const (
	FieldSurrogate   = "surrogate_id"
	FieldPlate       = "plate_query"
	FieldTimestamp   = "search_timestamp"
	FieldSearchGUID  = "search_guid"
	FieldCameraCount = "camera_count"
	FieldReason      = "reason"
)

// portalAliases maps canonical fields to the header spellings observed
// across agency portal exports. Matching is against normalized headers
// (lowercased, punctuation collapsed to single spaces).
var portalAliases = map[string][]string{
	FieldSurrogate: {
		"user guid", "user id", "userid", "requester", "requester id",
		"user", "officer id",
	},
	FieldPlate: {
		"plate", "plate query", "license plate", "plate searched",
		"plate number", "query",
	},
	FieldTimestamp: {
		"search timestamp", "timestamp", "search time", "date time",
		"searched at", "search date",
	},
	FieldSearchGUID:  {"search guid", "search id"},
	FieldCameraCount: {"camera count", "cameras", "devices"},
	FieldReason:      {"reason", "purpose", "justification"},
}

var headerReplacer = strings.NewReplacer("_", " ", "-", " ", "/", " ", ".", " ")

// normalizeHeader lowercases a header and collapses underscores, dashes,
// slashes, and runs of whitespace so "User_GUID", "user-guid" and
// "User GUID" all compare equal.
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = headerReplacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// MapColumns resolves a header row against an alias table. Recognized
// columns map canonical field → index; every other column index is
// returned in extras so unknown data rides through verbatim.
func MapColumns(header []string, aliases map[string][]string) (fields map[string]int, extras []int) {
	byName := make(map[string]int, len(header))
	for i, col := range header {
		n := normalizeHeader(col)
		if _, seen := byName[n]; !seen && n != "" {
			byName[n] = i
		}
	}

	fields = make(map[string]int)
	claimed := make(map[int]bool)
	for canonical, names := range aliases {
		for _, name := range names {
			if idx, ok := byName[name]; ok && !claimed[idx] {
				fields[canonical] = idx
				claimed[idx] = true
				break
			}
		}
	}

	for i := range header {
		if !claimed[i] {
			extras = append(extras, i)
		}
	}
	return fields, extras
}

// cell returns the value at idx, tolerating short rows.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// Field returns the canonical field value from a row, or "".
func Field(row []string, fields map[string]int, name string) string {
	idx, ok := fields[name]
	if !ok {
		return ""
	}
	return cell(row, idx)
}

// NormalizePlate canonicalizes a plate query for cross-dataset matching:
// uppercase, no surrounding space, no interior spaces or dashes.
func NormalizePlate(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	return s
}
