// Package normalizer parses heterogeneous per-agency audit exports into
// canonical SearchAuditEntry records. Column presence varies across
// agencies; known header spellings map to canonical fields and every
// unrecognized column is carried through verbatim, never dropped.
package normalizer

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/openplates/audit-cli/internal/model"
	"github.com/openplates/audit-cli/internal/tabular"
)

// ErrUnrecognizedFormat is returned for files whose header lacks the
// minimum recognizable columns. It is a file-level skip signal, never
// fatal to a run.
var ErrUnrecognizedFormat = eris.New("normalizer: unrecognized export format")

// FileContext carries the agency/date provenance of a raw export file,
// derived from its position in the scraped-data hierarchy.
type FileContext struct {
	AgencyID     string
	Jurisdiction string
	DisplayName  string
	ScrapeDate   string // YYYY-MM-DD
}

// RowError records a row that could not be normalized. The offending
// row is retained for diagnostics rather than aborting the file.
type RowError struct {
	Line   int
	Reason string
	Raw    []string
}

// Result is the outcome of normalizing one export file.
type Result struct {
	Entries   []model.SearchAuditEntry
	RowErrors []RowError
	Partial   int // entries kept with an unparseable timestamp
}

// NormalizeFile reads and normalizes a single audit export file.
func NormalizeFile(path string, fc FileContext) (*Result, error) {
	rows, err := tabular.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Normalize(rows, fc)
}

// Normalize maps raw tabular rows to SearchAuditEntry records. The first
// row must be a header carrying at least a requester-identifier column, a
// plate-query column, and a timestamp column; otherwise the whole file is
// rejected with ErrUnrecognizedFormat.
func Normalize(rows [][]string, fc FileContext) (*Result, error) {
	if len(rows) == 0 {
		return nil, ErrUnrecognizedFormat
	}

	header := rows[0]
	fields, extras := MapColumns(header, portalAliases)
	for _, required := range []string{FieldSurrogate, FieldPlate, FieldTimestamp} {
		if _, ok := fields[required]; !ok {
			return nil, eris.Wrapf(ErrUnrecognizedFormat, "missing %s column in %q", required, strings.Join(header, ","))
		}
	}

	log := zap.L().With(
		zap.String("component", "normalizer"),
		zap.String("agency_id", fc.AgencyID),
	)

	res := &Result{}
	for i, row := range rows[1:] {
		line := i + 2 // 1-based, after header

		// Blank padding rows are common at the tail of portal exports.
		if isBlank(row) {
			continue
		}

		entry, rowErr := normalizeRow(row, fields, extras, header, fc)
		if rowErr != nil {
			rowErr.Line = line
			res.RowErrors = append(res.RowErrors, *rowErr)
			continue
		}
		if entry.Partial {
			res.Partial++
		}
		res.Entries = append(res.Entries, *entry)
	}

	log.Debug("normalized export",
		zap.Int("entries", len(res.Entries)),
		zap.Int("row_errors", len(res.RowErrors)),
		zap.Int("partial", res.Partial),
	)
	return res, nil
}

func normalizeRow(row []string, fields map[string]int, extras []int, header []string, fc FileContext) (*model.SearchAuditEntry, *RowError) {
	surrogate := Field(row, fields, FieldSurrogate)
	if surrogate == "" {
		return nil, &RowError{Reason: "missing surrogate id", Raw: row}
	}

	plate := NormalizePlate(Field(row, fields, FieldPlate))
	if plate == "" {
		return nil, &RowError{Reason: "missing plate query", Raw: row}
	}

	rawTS := Field(row, fields, FieldTimestamp)
	ts, ok := ParseTimestamp(rawTS)

	entry := &model.SearchAuditEntry{
		AgencyID:     fc.AgencyID,
		Jurisdiction: fc.Jurisdiction,
		ScrapeDate:   fc.ScrapeDate,
		SurrogateID:  surrogate,
		PlateQuery:   plate,
		SearchTime:   ts,
		RawTimestamp: rawTS,
		SearchGUID:   Field(row, fields, FieldSearchGUID),
		Reason:       Field(row, fields, FieldReason),
		Partial:      !ok,
	}

	if v := Field(row, fields, FieldCameraCount); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			entry.CameraCount = n
		}
	}

	for _, idx := range extras {
		v := cell(row, idx)
		if v == "" {
			continue
		}
		if entry.RawFields == nil {
			entry.RawFields = make(map[string]string)
		}
		entry.RawFields[header[idx]] = v
	}

	return entry, nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
