package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/openplates/audit-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies
// it for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS agencies (
	agency_id    TEXT PRIMARY KEY,
	jurisdiction TEXT NOT NULL,
	display_name TEXT NOT NULL,
	share_group  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS search_audit_entries (
	id            BIGSERIAL PRIMARY KEY,
	agency_id     TEXT NOT NULL REFERENCES agencies(agency_id),
	jurisdiction  TEXT NOT NULL,
	scrape_date   TEXT NOT NULL,
	surrogate_id  TEXT NOT NULL,
	plate_query   TEXT NOT NULL,
	search_ts     TEXT NOT NULL DEFAULT '',
	raw_timestamp TEXT NOT NULL,
	search_guid   TEXT NOT NULL DEFAULT '',
	camera_count  INTEGER NOT NULL DEFAULT 0,
	reason        TEXT NOT NULL DEFAULT '',
	partial       BOOLEAN NOT NULL DEFAULT FALSE,
	raw_fields    JSONB,
	UNIQUE(agency_id, raw_timestamp, plate_query, surrogate_id)
);

CREATE TABLE IF NOT EXISTS scrape_stats (
	agency_id             TEXT NOT NULL REFERENCES agencies(agency_id),
	scrape_date           TEXT NOT NULL,
	overview              TEXT NOT NULL DEFAULT '',
	vehicles_detected     INTEGER NOT NULL DEFAULT 0,
	hotlist_hits          INTEGER NOT NULL DEFAULT 0,
	searches_last_30_days INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (agency_id, scrape_date)
);

CREATE TABLE IF NOT EXISTS mapping_records (
	agency_id              TEXT NOT NULL,
	surrogate_id           TEXT NOT NULL,
	officer_name           TEXT NOT NULL,
	organization_name      TEXT NOT NULL,
	confidence             DOUBLE PRECISION NOT NULL,
	supporting_match_count INTEGER NOT NULL,
	PRIMARY KEY (agency_id, surrogate_id)
);

CREATE INDEX IF NOT EXISTS idx_entries_agency ON search_audit_entries(agency_id);
CREATE INDEX IF NOT EXISTS idx_entries_surrogate ON search_audit_entries(agency_id, surrogate_id);
CREATE INDEX IF NOT EXISTS idx_entries_ts ON search_audit_entries(search_ts);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) EnsureAgency(ctx context.Context, a model.AgencyPortal) (bool, error) {
	if a.DisplayName == "" {
		a.DisplayName = a.AgencyID
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO agencies (agency_id, jurisdiction, display_name, share_group)
		 VALUES ($1, $2, $3, $4) ON CONFLICT (agency_id) DO NOTHING`,
		a.AgencyID, a.Jurisdiction, a.DisplayName, a.ShareGroup,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: ensure agency %s", a.AgencyID)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetAgency(ctx context.Context, agencyID string) (*model.AgencyPortal, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT agency_id, jurisdiction, display_name, share_group FROM agencies WHERE agency_id = $1`,
		agencyID,
	)
	var a model.AgencyPortal
	err := row.Scan(&a.AgencyID, &a.Jurisdiction, &a.DisplayName, &a.ShareGroup)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get agency %s", agencyID)
	}
	return &a, nil
}

func (s *PostgresStore) ListAgencies(ctx context.Context) ([]model.AgencyPortal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT agency_id, jurisdiction, display_name, share_group FROM agencies ORDER BY agency_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list agencies")
	}
	defer rows.Close()

	var out []model.AgencyPortal
	for rows.Next() {
		var a model.AgencyPortal
		if err := rows.Scan(&a.AgencyID, &a.Jurisdiction, &a.DisplayName, &a.ShareGroup); err != nil {
			return nil, eris.Wrap(err, "postgres: scan agency")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list agencies iterate")
}

func (s *PostgresStore) SetAgencyShareGroup(ctx context.Context, agencyID, shareGroup string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE agencies SET share_group = $1 WHERE agency_id = $2`,
		shareGroup, agencyID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set share group for %s", agencyID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("agency not found: %s", agencyID)
	}
	return nil
}

func (s *PostgresStore) UpsertEntries(ctx context.Context, entries []model.SearchAuditEntry) (UpsertResult, error) {
	var result UpsertResult
	if len(entries) == 0 {
		return result, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return result, eris.Wrap(err, "postgres: begin upsert tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	seen := make(map[string]bool)
	for _, e := range entries {
		if seen[e.AgencyID] {
			continue
		}
		seen[e.AgencyID] = true
		tag, err := tx.Exec(ctx,
			`INSERT INTO agencies (agency_id, jurisdiction, display_name, share_group)
			 VALUES ($1, $2, $3, '') ON CONFLICT (agency_id) DO NOTHING`,
			e.AgencyID, e.Jurisdiction, e.AgencyID,
		)
		if err != nil {
			return result, eris.Wrapf(err, "postgres: ensure agency %s", e.AgencyID)
		}
		if tag.RowsAffected() > 0 {
			result.AgenciesCreated++
		}
	}

	for _, e := range entries {
		rawJSON, err := marshalRawFields(e.RawFields)
		if err != nil {
			return result, err
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO search_audit_entries
				(agency_id, jurisdiction, scrape_date, surrogate_id, plate_query,
				 search_ts, raw_timestamp, search_guid, camera_count, reason, partial, raw_fields)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (agency_id, raw_timestamp, plate_query, surrogate_id) DO NOTHING`,
			e.AgencyID, e.Jurisdiction, e.ScrapeDate, e.SurrogateID, e.PlateQuery,
			fmtTime(e.SearchTime), e.RawTimestamp, e.SearchGUID, e.CameraCount,
			e.Reason, e.Partial, rawJSON,
		)
		if err != nil {
			return result, eris.Wrapf(err, "postgres: insert entry for %s", e.AgencyID)
		}
		if tag.RowsAffected() > 0 {
			result.Inserted++
		} else {
			result.Duplicate++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return result, eris.Wrap(err, "postgres: commit upsert tx")
	}
	return result, nil
}

func (s *PostgresStore) QueryEntries(ctx context.Context, f Filter) ([]model.SearchAuditEntry, error) {
	query := `SELECT agency_id, jurisdiction, scrape_date, surrogate_id, plate_query,
		search_ts, raw_timestamp, search_guid, camera_count, reason, partial, raw_fields
		FROM search_audit_entries WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.AgencyID != "" {
		query += ` AND agency_id = ` + arg(f.AgencyID)
	}
	if f.SurrogateID != "" {
		query += ` AND surrogate_id = ` + arg(f.SurrogateID)
	}
	if !f.IncludePartial || !f.From.IsZero() || !f.To.IsZero() {
		query += ` AND NOT partial`
	}
	if !f.From.IsZero() {
		query += ` AND search_ts >= ` + arg(fmtTime(f.From))
	}
	if !f.To.IsZero() {
		query += ` AND search_ts < ` + arg(fmtTime(f.To))
	}
	query += ` ORDER BY agency_id, surrogate_id, search_ts, plate_query, raw_timestamp`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query entries")
	}
	defer rows.Close()

	var out []model.SearchAuditEntry
	for rows.Next() {
		e, err := scanEntryPG(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: query entries iterate")
}

func (s *PostgresStore) UpsertScrapeStats(ctx context.Context, st model.ScrapeStats) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scrape_stats
			(agency_id, scrape_date, overview, vehicles_detected, hotlist_hits, searches_last_30_days)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (agency_id, scrape_date) DO UPDATE SET
			overview = EXCLUDED.overview,
			vehicles_detected = EXCLUDED.vehicles_detected,
			hotlist_hits = EXCLUDED.hotlist_hits,
			searches_last_30_days = EXCLUDED.searches_last_30_days`,
		st.AgencyID, st.ScrapeDate, st.Overview, st.VehiclesDetected,
		st.HotlistHits, st.SearchesLast30d,
	)
	return eris.Wrapf(err, "postgres: upsert scrape stats for %s", st.AgencyID)
}

func (s *PostgresStore) ReplaceMappings(ctx context.Context, records []model.MappingRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin mapping tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM mapping_records`); err != nil {
		return eris.Wrap(err, "postgres: clear mapping records")
	}

	for _, m := range records {
		_, err := tx.Exec(ctx, `
			INSERT INTO mapping_records
				(agency_id, surrogate_id, officer_name, organization_name, confidence, supporting_match_count)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			m.AgencyID, m.SurrogateID, m.OfficerName, m.OrganizationName,
			m.Confidence, m.SupportingMatchCount,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert mapping for %s/%s", m.AgencyID, m.SurrogateID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit mapping tx")
}

func (s *PostgresStore) ListMappings(ctx context.Context) ([]model.MappingRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT agency_id, surrogate_id, officer_name, organization_name, confidence, supporting_match_count
		FROM mapping_records ORDER BY agency_id, surrogate_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list mappings")
	}
	defer rows.Close()

	var out []model.MappingRecord
	for rows.Next() {
		var m model.MappingRecord
		if err := rows.Scan(&m.AgencyID, &m.SurrogateID, &m.OfficerName,
			&m.OrganizationName, &m.Confidence, &m.SupportingMatchCount); err != nil {
			return nil, eris.Wrap(err, "postgres: scan mapping")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list mappings iterate")
}

func (s *PostgresStore) CountsByAgency(ctx context.Context) ([]AgencyCounts, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.agency_id, a.jurisdiction, a.display_name, a.share_group,
			COUNT(e.id),
			COALESCE(SUM(CASE WHEN e.partial THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT e.surrogate_id),
			(SELECT COUNT(*) FROM mapping_records m WHERE m.agency_id = a.agency_id)
		FROM agencies a
		LEFT JOIN search_audit_entries e ON e.agency_id = a.agency_id
		GROUP BY a.agency_id, a.jurisdiction, a.display_name, a.share_group
		ORDER BY a.agency_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: counts by agency")
	}
	defer rows.Close()

	var out []AgencyCounts
	for rows.Next() {
		var c AgencyCounts
		if err := rows.Scan(&c.Agency.AgencyID, &c.Agency.Jurisdiction,
			&c.Agency.DisplayName, &c.Agency.ShareGroup,
			&c.Entries, &c.Partial, &c.Surrogates, &c.Mapped); err != nil {
			return nil, eris.Wrap(err, "postgres: scan agency counts")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: counts iterate")
}

// helpers

func scanEntryPG(rows pgx.Rows) (*model.SearchAuditEntry, error) {
	var e model.SearchAuditEntry
	var ts string
	var rawJSON []byte

	err := rows.Scan(&e.AgencyID, &e.Jurisdiction, &e.ScrapeDate, &e.SurrogateID,
		&e.PlateQuery, &ts, &e.RawTimestamp, &e.SearchGUID, &e.CameraCount,
		&e.Reason, &e.Partial, &rawJSON)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan entry")
	}

	e.SearchTime = parseStoredTime(ts)
	if len(rawJSON) > 0 {
		if err := json.Unmarshal(rawJSON, &e.RawFields); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal raw fields")
		}
	}
	return &e, nil
}
