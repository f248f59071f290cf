// Package export serializes resolved mapping records to a portable
// tabular file.
package export

import (
	"os"
	"path/filepath"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/openplates/audit-cli/internal/model"
)

// WriteMappingCSV writes the mapping set to path with a stable column
// order. The write is atomic: the file appears complete or not at all,
// so a failed run never corrupts a previous good mapping.
func WriteMappingCSV(records []model.MappingRecord, path string) error {
	if records == nil {
		records = []model.MappingRecord{}
	}
	// csvutil derives the header from MappingRecord's csv tags.
	data, err := csvutil.Marshal(records)
	if err != nil {
		return eris.Wrap(err, "export: marshal mapping records")
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrap(err, "export: create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return eris.Wrap(err, "export: write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return eris.Wrap(err, "export: sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "export: close temp file")
	}

	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrap(err, "export: rename into place")
	}
	return nil
}
