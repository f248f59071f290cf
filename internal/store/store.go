// Package store persists normalized audit entries, agency metadata, and
// resolved mapping records behind a relational Store interface with
// SQLite and Postgres backends.
package store

import (
	"context"
	"time"

	"github.com/openplates/audit-cli/internal/model"
)

// Filter specifies predicates for querying normalized entries.
type Filter struct {
	AgencyID    string
	SurrogateID string
	From        time.Time // inclusive; zero = unbounded
	To          time.Time // exclusive; zero = unbounded
	// IncludePartial includes rows whose timestamp never parsed. The
	// join engine leaves this false: partial rows have no position on
	// the time axis and cannot be window-matched.
	IncludePartial bool
}

// UpsertResult reports the outcome of an idempotent bulk insert.
type UpsertResult struct {
	Inserted        int
	Duplicate       int
	AgenciesCreated int
}

// AgencyCounts is a per-agency coverage rollup for status reporting.
type AgencyCounts struct {
	Agency     model.AgencyPortal
	Entries    int
	Partial    int
	Surrogates int
	Mapped     int
}

// Store defines the persistence interface for the pipeline. All writes
// serialize through the store; inserting an already-present logical row
// is a no-op, not an error.
type Store interface {
	// Agencies
	EnsureAgency(ctx context.Context, a model.AgencyPortal) (created bool, err error)
	GetAgency(ctx context.Context, agencyID string) (*model.AgencyPortal, error)
	ListAgencies(ctx context.Context) ([]model.AgencyPortal, error)
	SetAgencyShareGroup(ctx context.Context, agencyID, shareGroup string) error

	// Normalized entries
	UpsertEntries(ctx context.Context, entries []model.SearchAuditEntry) (UpsertResult, error)
	QueryEntries(ctx context.Context, f Filter) ([]model.SearchAuditEntry, error)

	// Portal page-capture stats
	UpsertScrapeStats(ctx context.Context, s model.ScrapeStats) error

	// Mapping records: the set is regenerated whole on each join run.
	ReplaceMappings(ctx context.Context, records []model.MappingRecord) error
	ListMappings(ctx context.Context) ([]model.MappingRecord, error)

	// Reporting
	CountsByAgency(ctx context.Context) ([]AgencyCounts, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open constructs the configured backend.
func Open(ctx context.Context, driver, databaseURL string) (Store, error) {
	if driver == "postgres" {
		return NewPostgres(ctx, databaseURL)
	}
	return NewSQLite(databaseURL)
}
