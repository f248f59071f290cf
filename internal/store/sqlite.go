package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/openplates/audit-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB

	// Parallel ingesters all funnel through this lock; SQLite allows a
	// single writer and the upsert discipline makes ordering immaterial.
	writeMu sync.Mutex
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS agencies (
	agency_id    TEXT PRIMARY KEY,
	jurisdiction TEXT NOT NULL,
	display_name TEXT NOT NULL,
	share_group  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS search_audit_entries (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
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
	partial       INTEGER NOT NULL DEFAULT 0,
	raw_fields    TEXT,
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
	confidence             REAL NOT NULL,
	supporting_match_count INTEGER NOT NULL,
	PRIMARY KEY (agency_id, surrogate_id)
);

CREATE INDEX IF NOT EXISTS idx_entries_agency ON search_audit_entries(agency_id);
CREATE INDEX IF NOT EXISTS idx_entries_surrogate ON search_audit_entries(agency_id, surrogate_id);
CREATE INDEX IF NOT EXISTS idx_entries_ts ON search_audit_entries(search_ts);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) EnsureAgency(ctx context.Context, a model.AgencyPortal) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.ensureAgencyLocked(ctx, s.db, a)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) ensureAgencyLocked(ctx context.Context, db execer, a model.AgencyPortal) (bool, error) {
	if a.DisplayName == "" {
		a.DisplayName = a.AgencyID
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO agencies (agency_id, jurisdiction, display_name, share_group)
		 VALUES (?, ?, ?, ?) ON CONFLICT(agency_id) DO NOTHING`,
		a.AgencyID, a.Jurisdiction, a.DisplayName, a.ShareGroup,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: ensure agency %s", a.AgencyID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetAgency(ctx context.Context, agencyID string) (*model.AgencyPortal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT agency_id, jurisdiction, display_name, share_group FROM agencies WHERE agency_id = ?`,
		agencyID,
	)
	var a model.AgencyPortal
	err := row.Scan(&a.AgencyID, &a.Jurisdiction, &a.DisplayName, &a.ShareGroup)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get agency %s", agencyID)
	}
	return &a, nil
}

func (s *SQLiteStore) ListAgencies(ctx context.Context) ([]model.AgencyPortal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT agency_id, jurisdiction, display_name, share_group FROM agencies ORDER BY agency_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list agencies")
	}
	defer rows.Close()

	var out []model.AgencyPortal
	for rows.Next() {
		var a model.AgencyPortal
		if err := rows.Scan(&a.AgencyID, &a.Jurisdiction, &a.DisplayName, &a.ShareGroup); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan agency")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list agencies iterate")
}

func (s *SQLiteStore) SetAgencyShareGroup(ctx context.Context, agencyID, shareGroup string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE agencies SET share_group = ? WHERE agency_id = ?`,
		shareGroup, agencyID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set share group for %s", agencyID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("agency not found: %s", agencyID)
	}
	return nil
}

func (s *SQLiteStore) UpsertEntries(ctx context.Context, entries []model.SearchAuditEntry) (UpsertResult, error) {
	var result UpsertResult
	if len(entries) == 0 {
		return result, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, eris.Wrap(err, "sqlite: begin upsert tx")
	}
	defer tx.Rollback() //nolint:errcheck

	// Unknown agencies are a referential gap, not an error: create a
	// minimal record on first sight.
	seen := make(map[string]bool)
	for _, e := range entries {
		if seen[e.AgencyID] {
			continue
		}
		seen[e.AgencyID] = true
		created, err := s.ensureAgencyLocked(ctx, tx, model.AgencyPortal{
			AgencyID:     e.AgencyID,
			Jurisdiction: e.Jurisdiction,
		})
		if err != nil {
			return result, err
		}
		if created {
			result.AgenciesCreated++
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO search_audit_entries
			(agency_id, jurisdiction, scrape_date, surrogate_id, plate_query,
			 search_ts, raw_timestamp, search_guid, camera_count, reason, partial, raw_fields)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(agency_id, raw_timestamp, plate_query, surrogate_id) DO NOTHING`)
	if err != nil {
		return result, eris.Wrap(err, "sqlite: prepare entry insert")
	}
	defer stmt.Close()

	for _, e := range entries {
		rawJSON, err := marshalRawFields(e.RawFields)
		if err != nil {
			return result, err
		}
		res, err := stmt.ExecContext(ctx,
			e.AgencyID, e.Jurisdiction, e.ScrapeDate, e.SurrogateID, e.PlateQuery,
			fmtTime(e.SearchTime), e.RawTimestamp, e.SearchGUID, e.CameraCount,
			e.Reason, boolToInt(e.Partial), rawJSON,
		)
		if err != nil {
			return result, eris.Wrapf(err, "sqlite: insert entry for %s", e.AgencyID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return result, eris.Wrap(err, "sqlite: rows affected")
		}
		if n > 0 {
			result.Inserted++
		} else {
			result.Duplicate++
		}
	}

	if err := tx.Commit(); err != nil {
		return result, eris.Wrap(err, "sqlite: commit upsert tx")
	}
	return result, nil
}

func (s *SQLiteStore) QueryEntries(ctx context.Context, f Filter) ([]model.SearchAuditEntry, error) {
	query := `SELECT agency_id, jurisdiction, scrape_date, surrogate_id, plate_query,
		search_ts, raw_timestamp, search_guid, camera_count, reason, partial, raw_fields
		FROM search_audit_entries WHERE 1=1`
	var args []any

	if f.AgencyID != "" {
		query += ` AND agency_id = ?`
		args = append(args, f.AgencyID)
	}
	if f.SurrogateID != "" {
		query += ` AND surrogate_id = ?`
		args = append(args, f.SurrogateID)
	}
	// Time-bounded queries always exclude partial rows: they have no
	// position on the time axis.
	if !f.IncludePartial || !f.From.IsZero() || !f.To.IsZero() {
		query += ` AND partial = 0`
	}
	// RFC3339 UTC strings order lexicographically, so range predicates
	// are plain string comparisons.
	if !f.From.IsZero() {
		query += ` AND search_ts >= ?`
		args = append(args, fmtTime(f.From))
	}
	if !f.To.IsZero() {
		query += ` AND search_ts < ?`
		args = append(args, fmtTime(f.To))
	}
	query += ` ORDER BY agency_id, surrogate_id, search_ts, plate_query, raw_timestamp`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query entries")
	}
	defer rows.Close()

	var out []model.SearchAuditEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: query entries iterate")
}

func (s *SQLiteStore) UpsertScrapeStats(ctx context.Context, st model.ScrapeStats) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scrape_stats
			(agency_id, scrape_date, overview, vehicles_detected, hotlist_hits, searches_last_30_days)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(agency_id, scrape_date) DO UPDATE SET
			overview = excluded.overview,
			vehicles_detected = excluded.vehicles_detected,
			hotlist_hits = excluded.hotlist_hits,
			searches_last_30_days = excluded.searches_last_30_days`,
		st.AgencyID, st.ScrapeDate, st.Overview, st.VehiclesDetected,
		st.HotlistHits, st.SearchesLast30d,
	)
	return eris.Wrapf(err, "sqlite: upsert scrape stats for %s", st.AgencyID)
}

func (s *SQLiteStore) ReplaceMappings(ctx context.Context, records []model.MappingRecord) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin mapping tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM mapping_records`); err != nil {
		return eris.Wrap(err, "sqlite: clear mapping records")
	}

	for _, m := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO mapping_records
				(agency_id, surrogate_id, officer_name, organization_name, confidence, supporting_match_count)
			VALUES (?, ?, ?, ?, ?, ?)`,
			m.AgencyID, m.SurrogateID, m.OfficerName, m.OrganizationName,
			m.Confidence, m.SupportingMatchCount,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert mapping for %s/%s", m.AgencyID, m.SurrogateID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit mapping tx")
}

func (s *SQLiteStore) ListMappings(ctx context.Context) ([]model.MappingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agency_id, surrogate_id, officer_name, organization_name, confidence, supporting_match_count
		FROM mapping_records ORDER BY agency_id, surrogate_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list mappings")
	}
	defer rows.Close()

	var out []model.MappingRecord
	for rows.Next() {
		var m model.MappingRecord
		if err := rows.Scan(&m.AgencyID, &m.SurrogateID, &m.OfficerName,
			&m.OrganizationName, &m.Confidence, &m.SupportingMatchCount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan mapping")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list mappings iterate")
}

func (s *SQLiteStore) CountsByAgency(ctx context.Context) ([]AgencyCounts, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.agency_id, a.jurisdiction, a.display_name, a.share_group,
			COUNT(e.id),
			COALESCE(SUM(e.partial), 0),
			COUNT(DISTINCT e.surrogate_id),
			(SELECT COUNT(*) FROM mapping_records m WHERE m.agency_id = a.agency_id)
		FROM agencies a
		LEFT JOIN search_audit_entries e ON e.agency_id = a.agency_id
		GROUP BY a.agency_id, a.jurisdiction, a.display_name, a.share_group
		ORDER BY a.agency_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: counts by agency")
	}
	defer rows.Close()

	var out []AgencyCounts
	for rows.Next() {
		var c AgencyCounts
		if err := rows.Scan(&c.Agency.AgencyID, &c.Agency.Jurisdiction,
			&c.Agency.DisplayName, &c.Agency.ShareGroup,
			&c.Entries, &c.Partial, &c.Surrogates, &c.Mapped); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan agency counts")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: counts iterate")
}

// helpers

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseStoredTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func marshalRawFields(m map[string]string) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal raw fields")
	}
	return string(b), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (*model.SearchAuditEntry, error) {
	var e model.SearchAuditEntry
	var ts string
	var partial int
	var rawJSON sql.NullString

	err := row.Scan(&e.AgencyID, &e.Jurisdiction, &e.ScrapeDate, &e.SurrogateID,
		&e.PlateQuery, &ts, &e.RawTimestamp, &e.SearchGUID, &e.CameraCount,
		&e.Reason, &partial, &rawJSON)
	if err != nil {
		return nil, eris.Wrap(err, "store: scan entry")
	}

	e.SearchTime = parseStoredTime(ts)
	e.Partial = partial != 0
	if rawJSON.Valid && rawJSON.String != "" {
		if err := json.Unmarshal([]byte(rawJSON.String), &e.RawFields); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal raw fields")
		}
	}
	return &e, nil
}
