// Package netaudit loads the unredacted full-network audit export. This
// is the ground-truth side of the re-identification join: each row names
// the true officer and organization behind a search.
package netaudit

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/openplates/audit-cli/internal/model"
	"github.com/openplates/audit-cli/internal/normalizer"
	"github.com/openplates/audit-cli/internal/tabular"
)

// networkAliases maps canonical network-audit fields to observed header
// spellings. The export schema differs per reporting agency but always
// carries explicit identity columns.
var networkAliases = map[string][]string{
	fieldOfficer: {
		"name", "officer", "officer name", "user name", "searcher",
	},
	fieldOrg: {
		"organization", "organization name", "org", "org name", "agency",
		"department",
	},
	fieldPlate: {
		"plate", "plate query", "license plate", "plate searched",
		"plate number", "query",
	},
	fieldTimestamp: {
		"search timestamp", "timestamp", "search time", "date time",
		"searched at", "search date", "time",
	},
	fieldShareGroup: {"share group", "network", "sharing group"},
	fieldReason:     {"reason", "purpose", "justification"},
}

const (
	fieldOfficer    = "officer_name"
	fieldOrg        = "organization_name"
	fieldPlate      = "plate_query"
	fieldTimestamp  = "search_timestamp"
	fieldShareGroup = "share_group"
	fieldReason     = "reason"
)

// Result is the outcome of loading one network audit export.
type Result struct {
	Entries []model.NetworkAuditEntry
	// Discarded counts rows that can never contribute to
	// re-identification: missing both identity fields, missing the
	// plate, or carrying an unparseable timestamp.
	Discarded int
}

// LoadFile reads and validates a network audit export from disk.
func LoadFile(path string) (*Result, error) {
	rows, err := tabular.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(rows)
}

// Load validates raw network-audit rows. The header must expose a plate
// column, a timestamp column, and at least one identity column.
func Load(rows [][]string) (*Result, error) {
	if len(rows) == 0 {
		return nil, eris.Wrap(normalizer.ErrUnrecognizedFormat, "netaudit: empty export")
	}

	header := rows[0]
	fields, _ := normalizer.MapColumns(header, networkAliases)

	if _, ok := fields[fieldPlate]; !ok {
		return nil, eris.Wrapf(normalizer.ErrUnrecognizedFormat, "netaudit: missing plate column in %q", strings.Join(header, ","))
	}
	if _, ok := fields[fieldTimestamp]; !ok {
		return nil, eris.Wrapf(normalizer.ErrUnrecognizedFormat, "netaudit: missing timestamp column in %q", strings.Join(header, ","))
	}
	_, hasOfficer := fields[fieldOfficer]
	_, hasOrg := fields[fieldOrg]
	if !hasOfficer && !hasOrg {
		return nil, eris.Wrapf(normalizer.ErrUnrecognizedFormat, "netaudit: no identity columns in %q", strings.Join(header, ","))
	}

	res := &Result{}
	for _, row := range rows[1:] {
		entry, ok := loadRow(row, fields)
		if !ok {
			res.Discarded++
			continue
		}
		res.Entries = append(res.Entries, entry)
	}

	zap.L().With(zap.String("component", "netaudit")).Info("network audit loaded",
		zap.Int("entries", len(res.Entries)),
		zap.Int("discarded", res.Discarded),
	)
	return res, nil
}

func loadRow(row []string, fields map[string]int) (model.NetworkAuditEntry, bool) {
	officer := normalizer.Field(row, fields, fieldOfficer)
	org := normalizer.Field(row, fields, fieldOrg)
	if officer == "" && org == "" {
		return model.NetworkAuditEntry{}, false
	}

	plate := normalizer.NormalizePlate(normalizer.Field(row, fields, fieldPlate))
	if plate == "" {
		return model.NetworkAuditEntry{}, false
	}

	ts, ok := normalizer.ParseTimestamp(normalizer.Field(row, fields, fieldTimestamp))
	if !ok {
		// A row outside any parseable time can never satisfy the
		// join's time-window predicate.
		return model.NetworkAuditEntry{}, false
	}

	entry := model.NetworkAuditEntry{
		OrganizationName: org,
		OfficerName:      officer,
		SearchTime:       ts,
		PlateQuery:       plate,
		ShareGroup:       normalizer.Field(row, fields, fieldShareGroup),
		Reason:           normalizer.Field(row, fields, fieldReason),
	}
	return entry, true
}
