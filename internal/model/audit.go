// Package model defines the canonical record types shared across the
// normalization and re-identification pipeline.
package model

import "time"

// SearchAuditEntry is one normalized row from an agency's published
// search-audit export. The surrogate ID is the opaque token the portal
// substitutes for the requester's identity; it is only meaningful within
// the exporting agency's logs.
type SearchAuditEntry struct {
	AgencyID     string            `json:"agency_id"`
	Jurisdiction string            `json:"jurisdiction"`
	ScrapeDate   string            `json:"scrape_date"` // YYYY-MM-DD, from the raw store path
	SurrogateID  string            `json:"surrogate_id"`
	PlateQuery   string            `json:"plate_query"`
	SearchTime   time.Time         `json:"search_time"`             // UTC; zero when Partial
	RawTimestamp string            `json:"raw_timestamp"`           // verbatim source value, part of the logical key
	SearchGUID   string            `json:"search_guid,omitempty"`   // present in some portal schemas
	CameraCount  int               `json:"camera_count,omitempty"`  // 0 when absent
	Reason       string            `json:"reason,omitempty"`        // stated search reason
	Partial      bool              `json:"partial"`                 // timestamp failed to parse; excluded from join candidacy
	RawFields    map[string]string `json:"raw_fields,omitempty"`    // unrecognized columns, carried verbatim
}

// EntryKey is the logical uniqueness key for idempotent ingestion.
// Partial rows key on the raw timestamp text so duplicate scrapes of
// the same period stay no-ops even when the timestamp never parsed.
type EntryKey struct {
	AgencyID     string
	RawTimestamp string
	PlateQuery   string
	SurrogateID  string
}

// Key returns the entry's logical uniqueness key.
func (e SearchAuditEntry) Key() EntryKey {
	return EntryKey{
		AgencyID:     e.AgencyID,
		RawTimestamp: e.RawTimestamp,
		PlateQuery:   e.PlateQuery,
		SurrogateID:  e.SurrogateID,
	}
}

// NetworkAuditEntry is one row from the unredacted full-network audit
// export. This is the ground-truth side of the join: it carries true
// identity fields and no surrogate ID.
type NetworkAuditEntry struct {
	OrganizationName string            `json:"organization_name"`
	OfficerName      string            `json:"officer_name"`
	SearchTime       time.Time         `json:"search_time"` // UTC
	PlateQuery       string            `json:"plate_query"`
	ShareGroup       string            `json:"share_group,omitempty"`
	Reason           string            `json:"reason,omitempty"`
	RawFields        map[string]string `json:"raw_fields,omitempty"`
}

// Identity returns the candidate identity key used by the join engine.
func (n NetworkAuditEntry) Identity() Identity {
	return Identity{Organization: n.OrganizationName, Officer: n.OfficerName}
}

// Identity is a (organization, officer) pair scored as a join candidate.
type Identity struct {
	Organization string `json:"organization_name"`
	Officer      string `json:"officer_name"`
}

// AgencyPortal describes one agency whose transparency portal has been
// scraped. Created on first sight during ingestion; the share group is
// operator-maintained since portal exports never carry it.
type AgencyPortal struct {
	AgencyID     string `json:"agency_id"`
	Jurisdiction string `json:"jurisdiction"`
	DisplayName  string `json:"display_name"`
	ShareGroup   string `json:"share_group,omitempty"`
}

// ScrapeStats holds usage metrics parsed from a portal page capture
// (page_content.html) for one agency/scrape-date.
type ScrapeStats struct {
	AgencyID         string `json:"agency_id"`
	ScrapeDate       string `json:"scrape_date"`
	Overview         string `json:"overview,omitempty"`
	VehiclesDetected int    `json:"vehicles_detected,omitempty"`
	HotlistHits      int    `json:"hotlist_hits,omitempty"`
	SearchesLast30d  int    `json:"searches_last_30_days,omitempty"`
}
