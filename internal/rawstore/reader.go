// Package rawstore reads the per-agency artifact hierarchy produced by
// the portal crawler: <root>/<jurisdiction>/<agency>/<YYYY-MM-DD>/files.
// The crawler itself is an external collaborator; this package only
// consumes its on-disk layout.
package rawstore

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/openplates/audit-cli/internal/normalizer"
)

// ArtifactKind classifies a scraped file.
type ArtifactKind string

const (
	// ArtifactAuditExport is a tabular search-audit export.
	ArtifactAuditExport ArtifactKind = "audit_export"
	// ArtifactPageCapture is a saved portal page (page_content.html).
	ArtifactPageCapture ArtifactKind = "page_capture"
	// ArtifactOther is anything else the crawler saved (PDFs, images).
	ArtifactOther ArtifactKind = "other"
)

// Artifact is one scraped file with its agency/date provenance.
type Artifact struct {
	Path    string
	Kind    ArtifactKind
	Context normalizer.FileContext
}

// Walk enumerates artifacts under root in deterministic (sorted path)
// order. Directories that don't match the jurisdiction/agency/date
// layout are skipped silently; the crawler writes bookkeeping files
// (history CSVs, progress markers) at other depths.
func Walk(root string) ([]Artifact, error) {
	var artifacts []Artifact

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return eris.Wrap(err, "rawstore: relative path")
		}
		parts := strings.Split(rel, string(os.PathSeparator))
		if len(parts) != 4 {
			return nil
		}

		jurisdiction, agencyDir, date := parts[0], parts[1], parts[2]
		if !validJurisdiction(jurisdiction) || !validDate(date) {
			return nil
		}

		artifacts = append(artifacts, Artifact{
			Path: path,
			Kind: classify(d.Name()),
			Context: normalizer.FileContext{
				AgencyID:     jurisdiction + "/" + agencyDir,
				Jurisdiction: jurisdiction,
				DisplayName:  agencyDir,
				ScrapeDate:   date,
			},
		})
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "rawstore: walk %s", root)
	}

	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Path < artifacts[j].Path })
	return artifacts, nil
}

func classify(name string) ArtifactKind {
	lower := strings.ToLower(name)
	if lower == "page_content.html" {
		return ArtifactPageCapture
	}
	switch filepath.Ext(lower) {
	case ".csv", ".xlsx":
		return ArtifactAuditExport
	}
	return ArtifactOther
}

// validJurisdiction accepts the two-letter uppercase state directories
// the crawler creates, plus its "Uncategorized" fallback bucket.
func validJurisdiction(s string) bool {
	if s == "Uncategorized" {
		return true
	}
	if len(s) != 2 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
