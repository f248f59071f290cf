package model

// MappingRecord is one resolved surrogate-to-identity mapping. Records
// are immutable once written; a join run regenerates the full set.
//
// The csv tags define the export column order used by the exporter.
type MappingRecord struct {
	AgencyID             string  `json:"agency_id" csv:"-"`
	SurrogateID          string  `json:"surrogate_id" csv:"surrogate_id"`
	OfficerName          string  `json:"officer_name" csv:"officer_name"`
	OrganizationName     string  `json:"organization_name" csv:"organization_name"`
	Confidence           float64 `json:"confidence" csv:"confidence"`
	SupportingMatchCount int     `json:"supporting_match_count" csv:"supporting_match_count"`
}

// IngestSummary counts the outcomes of one ingest run, per error
// taxonomy category, so coverage limitations are visible rather than
// silent.
type IngestSummary struct {
	FilesSeen         int `json:"files_seen" yaml:"files_seen"`
	FilesUnrecognized int `json:"files_unrecognized" yaml:"files_unrecognized"`
	PageCaptures      int `json:"page_captures" yaml:"page_captures"`
	RowsParsed        int `json:"rows_parsed" yaml:"rows_parsed"`
	RowsFailed        int `json:"rows_failed" yaml:"rows_failed"`
	RowsPartial       int `json:"rows_partial" yaml:"rows_partial"`
	EntriesInserted   int `json:"entries_inserted" yaml:"entries_inserted"`
	EntriesDuplicate  int `json:"entries_duplicate" yaml:"entries_duplicate"`
	AgenciesCreated   int `json:"agencies_created" yaml:"agencies_created"`
}

// Add accumulates another summary into s.
func (s *IngestSummary) Add(o IngestSummary) {
	s.FilesSeen += o.FilesSeen
	s.FilesUnrecognized += o.FilesUnrecognized
	s.PageCaptures += o.PageCaptures
	s.RowsParsed += o.RowsParsed
	s.RowsFailed += o.RowsFailed
	s.RowsPartial += o.RowsPartial
	s.EntriesInserted += o.EntriesInserted
	s.EntriesDuplicate += o.EntriesDuplicate
	s.AgenciesCreated += o.AgenciesCreated
}

// JoinSummary counts the outcomes of one join run.
type JoinSummary struct {
	RunID                string `json:"run_id" yaml:"run_id"`
	NetworkRowsLoaded    int    `json:"network_rows_loaded" yaml:"network_rows_loaded"`
	NetworkRowsDiscarded int    `json:"network_rows_discarded" yaml:"network_rows_discarded"`
	SurrogatesTotal      int    `json:"surrogates_total" yaml:"surrogates_total"`
	Resolved             int    `json:"resolved" yaml:"resolved"`
	Ambiguous            int    `json:"ambiguous" yaml:"ambiguous"`
	InsufficientEvidence int    `json:"insufficient_evidence" yaml:"insufficient_evidence"`
	NoCandidates         int    `json:"no_candidates" yaml:"no_candidates"`
}
